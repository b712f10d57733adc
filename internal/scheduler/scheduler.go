package scheduler

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/pkg/errors"

	"github.com/example/lingotrack/internal/notification"
	"github.com/example/lingotrack/pkg/models"
)

// Default notification window and batch settings
const (
	DefaultNotificationStartHour = 8  // Hour reminders start being sent
	DefaultNotificationEndHour   = 22 // Last hour reminders are sent
	DefaultBatchSize             = 100
	DefaultDigestTime            = "20:00"
	jobTimeout                   = 10 * time.Minute
)

// Config tunes the background jobs
type Config struct {
	StartHour  int
	EndHour    int
	BatchSize  int
	DigestTime string // "HH:MM" in Location
	Location   *time.Location
}

// DefaultConfig returns the default job configuration
func DefaultConfig() Config {
	return Config{
		StartHour:  DefaultNotificationStartHour,
		EndHour:    DefaultNotificationEndHour,
		BatchSize:  DefaultBatchSize,
		DigestTime: DefaultDigestTime,
		Location:   time.UTC,
	}
}

// Notifier hands notifications off for delivery
type Notifier interface {
	Send(userID int64, kind string, payload map[string]string)
}

// UserPager pages through users by id
type UserPager interface {
	GetUsersForNotification(ctx context.Context, hour int, afterID int64, limit int) ([]models.User, error)
	ListPage(ctx context.Context, afterID int64, limit int) ([]models.User, error)
}

// DueCounter counts a user's due reviews
type DueCounter interface {
	CountDue(ctx context.Context, userID int64, now time.Time) (int, error)
}

// Summarizer builds a user's progress summary
type Summarizer interface {
	Summarize(ctx context.Context, userID int64) (*models.ProgressSummary, error)
}

// SummarizerFunc adapts a function to the Summarizer interface
type SummarizerFunc func(ctx context.Context, userID int64) (*models.ProgressSummary, error)

// Summarize calls f(ctx, userID)
func (f SummarizerFunc) Summarize(ctx context.Context, userID int64) (*models.ProgressSummary, error) {
	return f(ctx, userID)
}

// Scheduler manages scheduled tasks for the application
type Scheduler struct {
	scheduler  *gocron.Scheduler
	cfg        Config
	notifier   Notifier
	users      UserPager
	due        DueCounter
	summarizer Summarizer
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a new scheduler instance. When locker is not nil every job
// runs on at most one instance at a time.
func New(cfg Config, notifier Notifier, users UserPager, due DueCounter, summarizer Summarizer, locker gocron.Locker) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.DigestTime == "" {
		cfg.DigestTime = DefaultDigestTime
	}

	s := gocron.NewScheduler(cfg.Location)
	if locker != nil {
		s.WithDistributedLocker(locker)
	}
	return &Scheduler{
		scheduler:  s,
		cfg:        cfg,
		notifier:   notifier,
		users:      users,
		due:        due,
		summarizer: summarizer,
		logger:     slog.Default().With("component", "scheduler"),
		now:        time.Now,
	}
}

// Start begins running all scheduled tasks
func (s *Scheduler) Start() error {
	// Hourly check for users who need review reminders
	if _, err := s.scheduler.Every(1).Hour().Name("due-review-reminders").Do(s.runJob(s.ProcessDueReviews)); err != nil {
		return errors.Wrap(err, "failed to schedule due review reminders")
	}
	if _, err := s.scheduler.Every(1).Day().At(s.cfg.DigestTime).Name("daily-digest").Do(s.runJob(s.SendDailyDigest)); err != nil {
		return errors.Wrap(err, "failed to schedule daily digest")
	}

	// Start the scheduler in a non-blocking manner
	s.scheduler.StartAsync()
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) runJob(job func(ctx context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		if err := job(ctx); err != nil {
			s.logger.Error("scheduled job failed", "error", err)
		}
	}
}

// ProcessDueReviews reminds every user whose notification hour is now about
// their due reviews. Users are processed in pages of BatchSize.
func (s *Scheduler) ProcessDueReviews(ctx context.Context) error {
	now := s.now().In(s.cfg.Location)
	currentHour := now.Hour()

	if currentHour < s.cfg.StartHour || currentHour > s.cfg.EndHour {
		s.logger.Info("outside notification hours, skipping reminders",
			"hour", currentHour, "start", s.cfg.StartHour, "end", s.cfg.EndHour)
		return nil
	}

	sent := 0
	var afterID int64
	for {
		users, err := s.users.GetUsersForNotification(ctx, currentHour, afterID, s.cfg.BatchSize)
		if err != nil {
			return errors.Wrap(err, "failed to get users for notification")
		}

		for _, user := range users {
			if s.remind(ctx, user, now) {
				sent++
			}
		}

		if len(users) < s.cfg.BatchSize {
			break
		}
		afterID = users[len(users)-1].ID
	}

	s.logger.Info("review reminders queued", "hour", currentHour, "count", sent)
	return nil
}

// RunManualCheck forces a reminder check for a specific user
func (s *Scheduler) RunManualCheck(ctx context.Context, user models.User) bool {
	return s.remind(ctx, user, s.now())
}

func (s *Scheduler) remind(ctx context.Context, user models.User, now time.Time) bool {
	count, err := s.due.CountDue(ctx, user.ID, now)
	if err != nil {
		s.logger.Warn("failed to count due reviews", "user_id", user.ID, "error", err)
		return false
	}
	if count == 0 {
		return false
	}

	// Don't announce more than the user's daily preference
	if user.ReviewsPerDay > 0 && count > user.ReviewsPerDay {
		count = user.ReviewsPerDay
	}

	s.notifier.Send(user.ID, notification.KindReviewReminder, map[string]string{
		"due_count": strconv.Itoa(count),
	})
	return true
}

// SendDailyDigest sends each active user a short summary of their progress
func (s *Scheduler) SendDailyDigest(ctx context.Context) error {
	sent := 0
	var afterID int64
	for {
		users, err := s.users.ListPage(ctx, afterID, s.cfg.BatchSize)
		if err != nil {
			return errors.Wrap(err, "failed to list users")
		}

		for _, user := range users {
			summary, err := s.summarizer.Summarize(ctx, user.ID)
			if err != nil {
				s.logger.Warn("failed to summarize progress", "user_id", user.ID, "error", err)
				continue
			}
			if summary.LessonsCompleted == 0 {
				continue
			}

			s.notifier.Send(user.ID, notification.KindDailyDigest, map[string]string{
				"streak_days":       strconv.Itoa(summary.Streak.CurrentStreakDays),
				"lessons_completed": strconv.Itoa(summary.LessonsCompleted),
				"weak_areas":        strconv.Itoa(len(summary.WeakAreas)),
			})
			sent++
		}

		if len(users) < s.cfg.BatchSize {
			break
		}
		afterID = users[len(users)-1].ID
	}

	s.logger.Info("daily digests queued", "count", sent)
	return nil
}
