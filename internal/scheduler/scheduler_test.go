package scheduler

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/lingotrack/internal/notification"
	"github.com/example/lingotrack/pkg/models"
)

type sent struct {
	userID  int64
	kind    string
	payload map[string]string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sent
}

func (n *recordingNotifier) Send(userID int64, kind string, payload map[string]string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sent{userID: userID, kind: kind, payload: payload})
}

type fakeUsers struct {
	users []models.User
	pages int
}

func (f *fakeUsers) page(match func(models.User) bool, afterID int64, limit int) []models.User {
	f.pages++
	var out []models.User
	for _, u := range f.users {
		if u.ID > afterID && match(u) {
			out = append(out, u)
			if len(out) == limit {
				break
			}
		}
	}
	return out
}

func (f *fakeUsers) GetUsersForNotification(_ context.Context, hour int, afterID int64, limit int) ([]models.User, error) {
	return f.page(func(u models.User) bool { return u.NotificationEnabled && u.NotificationHour == hour }, afterID, limit), nil
}

func (f *fakeUsers) ListPage(_ context.Context, afterID int64, limit int) ([]models.User, error) {
	return f.page(func(u models.User) bool { return u.NotificationEnabled }, afterID, limit), nil
}

type fakeDue map[int64]int

func (f fakeDue) CountDue(_ context.Context, userID int64, _ time.Time) (int, error) {
	if userID == 13 {
		return 0, errors.New("boom")
	}
	return f[userID], nil
}

type fakeSummarizer map[int64]*models.ProgressSummary

func (f fakeSummarizer) Summarize(_ context.Context, userID int64) (*models.ProgressSummary, error) {
	summary, ok := f[userID]
	if !ok {
		return &models.ProgressSummary{UserID: userID}, nil
	}
	return summary, nil
}

func newTestScheduler(users *fakeUsers, due fakeDue, summaries fakeSummarizer, at time.Time) (*Scheduler, *recordingNotifier) {
	notifier := &recordingNotifier{}
	cfg := DefaultConfig()
	cfg.BatchSize = 2
	s := New(cfg, notifier, users, due, summaries, nil)
	s.now = func() time.Time { return at }
	return s, notifier
}

func TestProcessDueReviews(t *testing.T) {
	users := &fakeUsers{users: []models.User{
		{ID: 1, NotificationEnabled: true, NotificationHour: 9, ReviewsPerDay: 20},
		{ID: 2, NotificationEnabled: true, NotificationHour: 9, ReviewsPerDay: 5},
		{ID: 3, NotificationEnabled: true, NotificationHour: 10, ReviewsPerDay: 20},
		{ID: 4, NotificationEnabled: false, NotificationHour: 9, ReviewsPerDay: 20},
		{ID: 5, NotificationEnabled: true, NotificationHour: 9, ReviewsPerDay: 20},
		{ID: 13, NotificationEnabled: true, NotificationHour: 9, ReviewsPerDay: 20},
	}}
	due := fakeDue{1: 3, 2: 12, 3: 7, 5: 0}
	s, notifier := newTestScheduler(users, due, nil, time.Date(2026, time.September, 1, 9, 30, 0, 0, time.UTC))

	require.NoError(t, s.ProcessDueReviews(context.Background()))

	require.Len(t, notifier.sent, 2)
	assert.Equal(t, int64(1), notifier.sent[0].userID)
	assert.Equal(t, notification.KindReviewReminder, notifier.sent[0].kind)
	assert.Equal(t, "3", notifier.sent[0].payload["due_count"])
	assert.Equal(t, int64(2), notifier.sent[1].userID)
	assert.Equal(t, "5", notifier.sent[1].payload["due_count"])
	// four matching users in pages of two, plus the empty page
	assert.Equal(t, 3, users.pages)
}

func TestProcessDueReviews_OutsideHours(t *testing.T) {
	users := &fakeUsers{users: []models.User{{ID: 1, NotificationEnabled: true, NotificationHour: 3}}}
	s, notifier := newTestScheduler(users, fakeDue{1: 3}, nil, time.Date(2026, time.September, 1, 3, 0, 0, 0, time.UTC))

	require.NoError(t, s.ProcessDueReviews(context.Background()))
	assert.Empty(t, notifier.sent)
	assert.Zero(t, users.pages)
}

func TestSendDailyDigest(t *testing.T) {
	users := &fakeUsers{users: []models.User{
		{ID: 1, NotificationEnabled: true},
		{ID: 2, NotificationEnabled: true},
		{ID: 3, NotificationEnabled: true},
	}}
	summaries := fakeSummarizer{
		1: {UserID: 1, LessonsCompleted: 4, Streak: models.StreakSnapshot{CurrentStreakDays: 2}, WeakAreas: []models.WeakArea{{Category: "food"}}},
		3: {UserID: 3, LessonsCompleted: 1},
	}
	s, notifier := newTestScheduler(users, nil, summaries, time.Date(2026, time.September, 1, 20, 0, 0, 0, time.UTC))

	require.NoError(t, s.SendDailyDigest(context.Background()))

	require.Len(t, notifier.sent, 2)
	assert.Equal(t, notification.KindDailyDigest, notifier.sent[0].kind)
	assert.Equal(t, map[string]string{"streak_days": "2", "lessons_completed": "4", "weak_areas": "1"}, notifier.sent[0].payload)
	assert.Equal(t, int64(3), notifier.sent[1].userID)
}

func TestRunManualCheck(t *testing.T) {
	s, notifier := newTestScheduler(&fakeUsers{}, fakeDue{7: 2}, nil, time.Now())

	assert.True(t, s.RunManualCheck(context.Background(), models.User{ID: 7}))
	assert.False(t, s.RunManualCheck(context.Background(), models.User{ID: 8}))
	assert.Len(t, notifier.sent, 1)
}

func TestStartStop(t *testing.T) {
	s, _ := newTestScheduler(&fakeUsers{}, fakeDue{}, fakeSummarizer{}, time.Now())
	require.NoError(t, s.Start())
	s.Stop()
}

func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx := context.Background()
	locker := NewRedisLocker(client, time.Minute)
	key := "test-" + time.Now().Format(time.RFC3339Nano)

	lock, err := locker.Lock(ctx, key)
	require.NoError(t, err)

	_, err = locker.Lock(ctx, key)
	assert.True(t, errors.Is(err, ErrLockHeld))

	require.NoError(t, lock.Unlock(ctx))
	again, err := locker.Lock(ctx, key)
	require.NoError(t, err)
	require.NoError(t, again.Unlock(ctx))
}
