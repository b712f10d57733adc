package mastery

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/lingotrack/internal/spaced_repetition"
	"github.com/example/lingotrack/pkg/models"
)

type memoryStore struct {
	mu        sync.Mutex
	records   map[string]models.MasteryRecord
	nextID    int64
	casMisses int // CompareAndSwap calls left that report a lost race
	casCalls  int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: map[string]models.MasteryRecord{}}
}

func key(userID, itemID int64, kind models.ItemKind) string {
	return fmt.Sprintf("%d/%d/%s", userID, itemID, kind)
}

func (s *memoryStore) Get(_ context.Context, userID, itemID int64, kind models.ItemKind) (*models.MasteryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key(userID, itemID, kind)]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &rec, nil
}

func (s *memoryStore) Insert(_ context.Context, rec *models.MasteryRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(rec.UserID, rec.ItemID, rec.ItemKind)
	if _, ok := s.records[k]; ok {
		return false, nil
	}
	s.nextID++
	rec.ID = s.nextID
	rec.Version = 1
	s.records[k] = *rec
	return true, nil
}

func (s *memoryStore) CompareAndSwap(_ context.Context, rec *models.MasteryRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.casCalls++
	if s.casMisses > 0 {
		s.casMisses--
		return false, nil
	}
	k := key(rec.UserID, rec.ItemID, rec.ItemKind)
	stored, ok := s.records[k]
	if !ok || stored.Version != rec.Version {
		return false, nil
	}
	rec.Version++
	s.records[k] = *rec
	return true, nil
}

func (s *memoryStore) Delete(_ context.Context, userID, itemID int64, kind models.ItemKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(userID, itemID, kind)
	if _, ok := s.records[k]; !ok {
		return models.ErrNotFound
	}
	delete(s.records, k)
	return nil
}

func (s *memoryStore) put(rec models.MasteryRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.Version == 0 {
		rec.Version = 1
	}
	s.records[key(rec.UserID, rec.ItemID, rec.ItemKind)] = rec
}

type staticCatalog map[string]string

func (c staticCatalog) ItemExists(_ context.Context, itemID int64, kind models.ItemKind) (bool, error) {
	_, ok := c[key(0, itemID, kind)]
	return ok, nil
}

func (c staticCatalog) ItemCategory(_ context.Context, itemID int64, kind models.ItemKind) (string, error) {
	category, ok := c[key(0, itemID, kind)]
	if !ok {
		return "", models.ErrNotFound
	}
	return category, nil
}

var testCatalog = staticCatalog{
	key(0, 1, models.ItemKindVocabulary): "food",
	key(0, 2, models.ItemKindGrammar):    "past-tense",
}

func newTestTracker(store Store) *Tracker {
	tracker := NewTracker(store, testCatalog, spaced_repetition.NewScheduler(nil), nil)
	clock := time.Date(2026, time.June, 1, 9, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return tracker
}

func TestRecordAttempt_VocabularyPromotesOncePerCrossing(t *testing.T) {
	ctx := context.Background()
	tracker := newTestTracker(newMemoryStore())

	var levels []int
	for i := 0; i < 5; i++ {
		rec, err := tracker.RecordAttempt(ctx, 1, 1, models.ItemKindVocabulary, true)
		require.NoError(t, err)
		levels = append(levels, rec.MasteryLevel)
	}
	assert.Equal(t, []int{0, 0, 0, 0, 1}, levels)

	// Further correct attempts do not bump the level again until a new crossing
	for i := 0; i < 4; i++ {
		rec, err := tracker.RecordAttempt(ctx, 1, 1, models.ItemKindVocabulary, true)
		require.NoError(t, err)
		assert.Equal(t, 1, rec.MasteryLevel)
	}
}

func TestRecordAttempt_GrammarRegression(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	store.put(models.MasteryRecord{
		UserID:             1,
		ItemID:             2,
		ItemKind:           models.ItemKindGrammar,
		MasteryLevel:       3,
		CorrectAttempts:    3,
		TotalAttempts:      4,
		ReviewIntervalDays: 8,
	})
	tracker := newTestTracker(store)

	var levels []int
	for i := 0; i < 4; i++ {
		rec, err := tracker.RecordAttempt(ctx, 1, 2, models.ItemKindGrammar, false)
		require.NoError(t, err)
		levels = append(levels, rec.MasteryLevel)
		assert.Equal(t, 1, rec.ReviewIntervalDays)
	}
	assert.Equal(t, []int{3, 3, 3, 2}, levels)
}

func TestRecordAttempt_LevelNeverBelowZero(t *testing.T) {
	ctx := context.Background()
	tracker := newTestTracker(newMemoryStore())

	for i := 0; i < 12; i++ {
		rec, err := tracker.RecordAttempt(ctx, 1, 2, models.ItemKindGrammar, false)
		require.NoError(t, err)
		assert.Equal(t, 0, rec.MasteryLevel)
	}
}

func TestRecordAttempt_Bounds(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	tracker := newTestTracker(store)
	rng := rand.New(rand.NewSource(7))

	prevCorrect, prevTotal := 0, 0
	for i := 0; i < 300; i++ {
		correct := rng.Intn(10) < 8
		rec, err := tracker.RecordAttempt(ctx, 1, 1, models.ItemKindVocabulary, correct)
		require.NoError(t, err)

		assert.GreaterOrEqual(t, rec.MasteryLevel, models.MinMasteryLevel)
		assert.LessOrEqual(t, rec.MasteryLevel, models.MaxMasteryLevel)
		assert.GreaterOrEqual(t, rec.ReviewIntervalDays, models.MinReviewIntervalDays)
		assert.LessOrEqual(t, rec.ReviewIntervalDays, models.MaxReviewIntervalDays)
		assert.False(t, rec.NextReviewAt.Before(rec.LastPracticedAt))
		assert.GreaterOrEqual(t, rec.CorrectAttempts, prevCorrect)
		assert.Equal(t, prevTotal+1, rec.TotalAttempts)
		prevCorrect, prevTotal = rec.CorrectAttempts, rec.TotalAttempts
	}
}

func TestRecordAttempt_NewRecordTakesCategory(t *testing.T) {
	tracker := newTestTracker(newMemoryStore())

	rec, err := tracker.RecordAttempt(context.Background(), 1, 1, models.ItemKindVocabulary, true)
	require.NoError(t, err)
	assert.Equal(t, "food", rec.Category)
	assert.Equal(t, 2, rec.ReviewIntervalDays)
	assert.Equal(t, int64(1), rec.Version)
}

func TestRecordAttempt_Validation(t *testing.T) {
	store := newMemoryStore()
	tracker := newTestTracker(store)

	_, err := tracker.RecordAttempt(context.Background(), 1, 1, models.ItemKind("kanji"), true)
	assert.True(t, errors.Is(err, models.ErrValidation))
	assert.Empty(t, store.records)
}

func TestRecordAttempt_UnknownItem(t *testing.T) {
	store := newMemoryStore()
	tracker := newTestTracker(store)

	_, err := tracker.RecordAttempt(context.Background(), 1, 99, models.ItemKindVocabulary, true)
	assert.True(t, errors.Is(err, models.ErrNotFound))
	assert.Empty(t, store.records)
}

func TestRecordAttempt_ReappliesAfterLostRace(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	store.put(models.MasteryRecord{UserID: 1, ItemID: 1, ItemKind: models.ItemKindVocabulary, TotalAttempts: 3, ReviewIntervalDays: 1})
	store.casMisses = 2
	tracker := newTestTracker(store)

	rec, err := tracker.RecordAttempt(ctx, 1, 1, models.ItemKindVocabulary, true)
	require.NoError(t, err)
	assert.Equal(t, 4, rec.TotalAttempts)
	assert.Equal(t, 3, store.casCalls)
}

func TestRecordAttempt_ConflictAfterRetries(t *testing.T) {
	store := newMemoryStore()
	store.put(models.MasteryRecord{UserID: 1, ItemID: 1, ItemKind: models.ItemKindVocabulary, ReviewIntervalDays: 1})
	store.casMisses = MaxCASRetries + 1
	tracker := newTestTracker(store)

	_, err := tracker.RecordAttempt(context.Background(), 1, 1, models.ItemKindVocabulary, true)
	assert.True(t, errors.Is(err, models.ErrConflict))
	assert.Equal(t, MaxCASRetries+1, store.casCalls)

	stored, err := store.Get(context.Background(), 1, 1, models.ItemKindVocabulary)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.TotalAttempts)
}

func TestRecordAttempt_ConcurrentAttemptsAllCounted(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	store.put(models.MasteryRecord{UserID: 1, ItemID: 1, ItemKind: models.ItemKindVocabulary, ReviewIntervalDays: 1})
	tracker := NewTracker(store, testCatalog, spaced_repetition.NewScheduler(nil), nil)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tracker.RecordAttempt(ctx, 1, 1, models.ItemKindVocabulary, true)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// each lost race means another writer saved, so four writers never exhaust the retries
	stored, err := store.Get(ctx, 1, 1, models.ItemKindVocabulary)
	require.NoError(t, err)
	assert.Equal(t, 4, stored.TotalAttempts)
	assert.Equal(t, 4, stored.CorrectAttempts)
	assert.Equal(t, stored.Version-1, int64(stored.TotalAttempts))
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	tracker := newTestTracker(store)

	_, err := tracker.RecordAttempt(ctx, 1, 1, models.ItemKindVocabulary, true)
	require.NoError(t, err)
	require.NoError(t, tracker.Reset(ctx, 1, 1, models.ItemKindVocabulary))

	_, err = store.Get(ctx, 1, 1, models.ItemKindVocabulary)
	assert.True(t, errors.Is(err, models.ErrNotFound))
	assert.True(t, errors.Is(tracker.Reset(ctx, 1, 1, models.ItemKindVocabulary), models.ErrNotFound))
}

func TestPolicyOverride(t *testing.T) {
	policies := Policies{models.ItemKindVocabulary: {PromoteAccuracy: 0.5, DemoteAccuracy: 0.1, MinAttempts: 1}}
	tracker := NewTracker(newMemoryStore(), testCatalog, spaced_repetition.NewScheduler(nil), policies)

	rec, err := tracker.RecordAttempt(context.Background(), 1, 1, models.ItemKindVocabulary, true)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.MasteryLevel)
	assert.Equal(t, DefaultPolicies()[models.ItemKindGrammar], tracker.policies[models.ItemKindGrammar])
}
