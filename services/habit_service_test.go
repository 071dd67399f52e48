package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habitFlowAPI/internal/apperr"
	"habitFlowAPI/internal/habit"
	"habitFlowAPI/storage"
)

// monday is a fixed Monday morning; the named days below are relative
// to it.
var monday = time.Date(2026, 8, 31, 9, 0, 0, 0, time.Local)

func newTestHabitService(t *testing.T) (*HabitService, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	svc := NewHabitService(store)
	svc.now = func() time.Time { return monday }
	return svc, store
}

func mustCreate(t *testing.T, svc *HabitService, userID string, req *habit.CreateHabitRequest) *habit.Habit {
	t.Helper()
	h, err := svc.Create(context.Background(), userID, req)
	require.NoError(t, err)
	return h
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestHabitService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "", &habit.CreateHabitRequest{Name: "Read", Frequency: habit.FrequencyDaily})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = svc.Create(ctx, "u1", &habit.CreateHabitRequest{Frequency: habit.FrequencyDaily})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.Create(ctx, "u1", &habit.CreateHabitRequest{Name: "Read", Frequency: habit.FrequencyCustom})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	h, err := svc.Create(ctx, "u1", &habit.CreateHabitRequest{Name: "Read", Frequency: habit.FrequencyDaily, Color: "#2196f3"})
	require.NoError(t, err)
	assert.NotEmpty(t, h.ID)
	assert.Equal(t, "u1", h.UserID)
	assert.Equal(t, 0, h.Streak)
	assert.Empty(t, h.Completions)
	assert.Equal(t, h.CreatedAt, h.UpdatedAt)
}

func TestUpdateMergesPartialFields(t *testing.T) {
	svc, _ := newTestHabitService(t)
	ctx := context.Background()
	h := mustCreate(t, svc, "u1", &habit.CreateHabitRequest{
		Name:        "Read",
		Description: "Twenty pages",
		Frequency:   habit.FrequencyDaily,
		Color:       "#2196f3",
	})

	later := monday.Add(2 * time.Hour)
	svc.now = func() time.Time { return later }

	newName := "Read more"
	updated, err := svc.Update(ctx, "u1", h.ID, &habit.UpdateHabitRequest{Name: &newName})
	require.NoError(t, err)

	assert.Equal(t, "Read more", updated.Name)
	assert.Equal(t, "Twenty pages", updated.Description, "untouched fields survive")
	assert.Equal(t, "#2196f3", updated.Color)
	assert.Equal(t, later, updated.UpdatedAt)

	_, err = svc.Update(ctx, "u1", "missing", &habit.UpdateHabitRequest{Name: &newName})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	// Switching to custom frequency without days must fail.
	custom := habit.FrequencyCustom
	_, err = svc.Update(ctx, "u1", h.ID, &habit.UpdateHabitRequest{Frequency: &custom})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestCompleteIdempotentSameDay(t *testing.T) {
	svc, _ := newTestHabitService(t)
	ctx := context.Background()
	h := mustCreate(t, svc, "u1", &habit.CreateHabitRequest{Name: "Read", Frequency: habit.FrequencyDaily})

	require.NoError(t, svc.Complete(ctx, "u1", h.ID))
	got, err := svc.GetByID(ctx, "u1", h.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Streak)
	assert.Len(t, got.Completions, 1)

	// Second completion the same day changes nothing, even hours later.
	svc.now = func() time.Time { return monday.Add(10 * time.Hour) }
	require.NoError(t, svc.Complete(ctx, "u1", h.ID))
	got, err = svc.GetByID(ctx, "u1", h.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Streak)
	assert.Len(t, got.Completions, 1)
}

func TestStreakContinuityAndReset(t *testing.T) {
	svc, _ := newTestHabitService(t)
	ctx := context.Background()
	h := mustCreate(t, svc, "u1", &habit.CreateHabitRequest{Name: "Run", Frequency: habit.FrequencyDaily})

	// Three consecutive days.
	for day := 0; day < 3; day++ {
		d := monday.AddDate(0, 0, day)
		svc.now = func() time.Time { return d }
		require.NoError(t, svc.Complete(ctx, "u1", h.ID))
	}
	got, err := svc.GetByID(ctx, "u1", h.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Streak)

	// Skip a day; the streak resets to 1.
	d := monday.AddDate(0, 0, 4)
	svc.now = func() time.Time { return d }
	require.NoError(t, svc.Complete(ctx, "u1", h.ID))
	got, err = svc.GetByID(ctx, "u1", h.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Streak)
	assert.Len(t, got.Completions, 4)

	require.ErrorIs(t, svc.Complete(ctx, "u1", "missing"), apperr.ErrNotFound)
}

// The shipped scenario: complete on day 1 at 09:00 and day 2 at 08:00,
// skip day 3, complete on day 4.
func TestStreakScenario(t *testing.T) {
	svc, _ := newTestHabitService(t)
	ctx := context.Background()
	h := mustCreate(t, svc, "u1", &habit.CreateHabitRequest{Name: "Water", Frequency: habit.FrequencyDaily, Color: "#2196f3"})

	day1 := time.Date(2026, 8, 31, 9, 0, 0, 0, time.Local)
	day2 := time.Date(2026, 9, 1, 8, 0, 0, 0, time.Local)
	day4 := time.Date(2026, 9, 3, 12, 0, 0, 0, time.Local)

	svc.now = func() time.Time { return day1 }
	require.NoError(t, svc.Complete(ctx, "u1", h.ID))
	got, _ := svc.GetByID(ctx, "u1", h.ID)
	assert.Equal(t, 1, got.Streak)
	assert.Len(t, got.Completions, 1)

	svc.now = func() time.Time { return day2 }
	require.NoError(t, svc.Complete(ctx, "u1", h.ID))
	got, _ = svc.GetByID(ctx, "u1", h.ID)
	assert.Equal(t, 2, got.Streak)

	svc.now = func() time.Time { return day4 }
	require.NoError(t, svc.Complete(ctx, "u1", h.ID))
	got, _ = svc.GetByID(ctx, "u1", h.ID)
	assert.Equal(t, 1, got.Streak)
	assert.Len(t, got.Completions, 3)
}

func TestTodayHabitsByFrequency(t *testing.T) {
	svc, _ := newTestHabitService(t)
	ctx := context.Background()

	daily := mustCreate(t, svc, "u1", &habit.CreateHabitRequest{Name: "Daily", Frequency: habit.FrequencyDaily})
	weekly := mustCreate(t, svc, "u1", &habit.CreateHabitRequest{Name: "Weekly", Frequency: habit.FrequencyWeekly})
	monthly := mustCreate(t, svc, "u1", &habit.CreateHabitRequest{Name: "Monthly", Frequency: habit.FrequencyMonthly})
	mwf := mustCreate(t, svc, "u1", &habit.CreateHabitRequest{Name: "MWF", Frequency: habit.FrequencyCustom, CustomDays: []int{1, 3, 5}})

	ids := func(habits []*habit.Habit) []string {
		out := make([]string, 0, len(habits))
		for _, h := range habits {
			out = append(out, h.ID)
		}
		return out
	}

	// Monday: daily, weekly, and Mon/Wed/Fri custom are due.
	due, err := svc.TodayHabits(ctx, "u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{daily.ID, weekly.ID, mwf.ID}, ids(due))

	// Tuesday the 1st: daily and monthly.
	svc.now = func() time.Time { return time.Date(2026, 9, 1, 9, 0, 0, 0, time.Local) }
	due, err = svc.TodayHabits(ctx, "u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{daily.ID, monthly.ID}, ids(due))

	// Thursday the 3rd: only daily.
	svc.now = func() time.Time { return time.Date(2026, 9, 3, 9, 0, 0, 0, time.Local) }
	due, err = svc.TodayHabits(ctx, "u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{daily.ID}, ids(due))

	// Friday the 4th: daily plus the custom habit.
	svc.now = func() time.Time { return time.Date(2026, 9, 4, 9, 0, 0, 0, time.Local) }
	due, err = svc.TodayHabits(ctx, "u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{daily.ID, mwf.ID}, ids(due))
}

func TestTodayCompletedHabits(t *testing.T) {
	svc, _ := newTestHabitService(t)
	ctx := context.Background()

	done := mustCreate(t, svc, "u1", &habit.CreateHabitRequest{Name: "Done", Frequency: habit.FrequencyDaily})
	mustCreate(t, svc, "u1", &habit.CreateHabitRequest{Name: "Not done", Frequency: habit.FrequencyDaily})

	require.NoError(t, svc.Complete(ctx, "u1", done.ID))

	completed, err := svc.TodayCompletedHabits(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, done.ID, completed[0].ID)
}

func TestWeeklyStats(t *testing.T) {
	svc, _ := newTestHabitService(t)
	ctx := context.Background()

	daily := mustCreate(t, svc, "u1", &habit.CreateHabitRequest{Name: "Daily", Frequency: habit.FrequencyDaily})
	mustCreate(t, svc, "u1", &habit.CreateHabitRequest{Name: "Weekly", Frequency: habit.FrequencyWeekly})
	mustCreate(t, svc, "u1", &habit.CreateHabitRequest{Name: "Monthly", Frequency: habit.FrequencyMonthly})
	mustCreate(t, svc, "u1", &habit.CreateHabitRequest{Name: "MWF", Frequency: habit.FrequencyCustom, CustomDays: []int{1, 3, 5}})

	// No completions yet: expected counts only. Daily adds 7, weekly 1,
	// Mon/Wed/Fri adds 3, monthly adds nothing.
	weekly, err := svc.WeeklyStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, weekly.Completed)
	assert.Equal(t, 11, weekly.Total)
	assert.Equal(t, 0, weekly.Percentage)

	// Complete the daily habit on three days inside the window.
	for day := 0; day < 3; day++ {
		d := monday.AddDate(0, 0, day)
		svc.now = func() time.Time { return d }
		require.NoError(t, svc.Complete(ctx, "u1", daily.ID))
	}
	svc.now = func() time.Time { return monday.AddDate(0, 0, 2) }

	weekly, err = svc.WeeklyStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, weekly.Completed)
	assert.Equal(t, 11, weekly.Total)
	assert.Equal(t, 27, weekly.Percentage) // round(3/11*100)
}

func TestWeeklyStatsEmptyCollection(t *testing.T) {
	svc, _ := newTestHabitService(t)

	weekly, err := svc.WeeklyStats(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, weekly.Completed)
	assert.Equal(t, 0, weekly.Total)
	assert.Equal(t, 0, weekly.Percentage)
}

func TestDeleteRemovesHabitAndPersists(t *testing.T) {
	svc, store := newTestHabitService(t)
	ctx := context.Background()

	keep := mustCreate(t, svc, "u1", &habit.CreateHabitRequest{Name: "Keep", Frequency: habit.FrequencyDaily})
	drop := mustCreate(t, svc, "u1", &habit.CreateHabitRequest{Name: "Drop", Frequency: habit.FrequencyDaily})

	require.NoError(t, svc.Delete(ctx, "u1", drop.ID))

	_, err := svc.GetByID(ctx, "u1", drop.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, "u1", drop.ID), apperr.ErrNotFound)

	svc.Flush()
	raw, err := store.Get(ctx, storage.HabitsKey("u1"))
	require.NoError(t, err)

	var persisted []*habit.Habit
	require.NoError(t, json.Unmarshal([]byte(raw), &persisted))
	require.Len(t, persisted, 1)
	assert.Equal(t, keep.ID, persisted[0].ID)
}

// stallingStore blocks its first write until released, standing in for
// a backend with uneven latency.
type stallingStore struct {
	storage.Store
	mu      sync.Mutex
	calls   int
	release chan struct{}
}

func (s *stallingStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	first := s.calls == 0
	s.calls++
	s.mu.Unlock()
	if first {
		<-s.release
	}
	return s.Store.Set(ctx, key, value)
}

func TestSlowWriteCannotClobberNewerState(t *testing.T) {
	slow := &stallingStore{Store: storage.NewMemoryStore(), release: make(chan struct{})}
	svc := NewHabitService(slow)
	svc.now = func() time.Time { return monday }
	ctx := context.Background()

	h := mustCreate(t, svc, "u1", &habit.CreateHabitRequest{Name: "Read", Frequency: habit.FrequencyDaily})
	require.NoError(t, svc.Delete(ctx, "u1", h.ID))

	// The create-time snapshot is still stalled; releasing it now must
	// not let it overwrite the delete-time snapshot.
	close(slow.release)
	svc.Flush()

	raw, err := slow.Store.Get(ctx, storage.HabitsKey("u1"))
	require.NoError(t, err)

	var persisted []*habit.Habit
	require.NoError(t, json.Unmarshal([]byte(raw), &persisted))
	assert.Empty(t, persisted)
}

func TestCollectionRoundTrip(t *testing.T) {
	svc, store := newTestHabitService(t)
	ctx := context.Background()

	h := mustCreate(t, svc, "u1", &habit.CreateHabitRequest{
		Name:        "Hydrate",
		Description: "Eight glasses",
		Frequency:   habit.FrequencyCustom,
		CustomDays:  []int{1, 3, 5},
		Color:       "#2196f3",
		Icon:        "water",
		Reminders:   []habit.Reminder{{Time: "10:00", Days: []int{1, 3, 5}, Enabled: true}},
	})
	require.NoError(t, svc.Complete(ctx, "u1", h.ID))
	svc.Flush()

	// A fresh service over the same store must reproduce the collection
	// field for field.
	reloaded := NewHabitService(store)
	reloaded.now = svc.now

	before, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	after, err := reloaded.List(ctx, "u1")
	require.NoError(t, err)

	beforeJSON, err := json.Marshal(before)
	require.NoError(t, err)
	afterJSON, err := json.Marshal(after)
	require.NoError(t, err)
	assert.JSONEq(t, string(beforeJSON), string(afterJSON))

	got, err := reloaded.GetByID(ctx, "u1", h.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Streak)
	require.Len(t, got.Reminders, 1)
	assert.Equal(t, h.ID, got.Reminders[0].HabitID)
}

func TestLoadFailureStartsEmpty(t *testing.T) {
	svc, store := newTestHabitService(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, storage.HabitsKey("u1"), "{not json"))

	habits, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, habits)
}

func TestHabitStatsLongestStreak(t *testing.T) {
	svc, _ := newTestHabitService(t)
	ctx := context.Background()
	h := mustCreate(t, svc, "u1", &habit.CreateHabitRequest{Name: "Run", Frequency: habit.FrequencyDaily})

	// Four-day run, two-day gap, two-day run.
	for _, offset := range []int{0, 1, 2, 3, 6, 7} {
		d := monday.AddDate(0, 0, offset)
		svc.now = func() time.Time { return d }
		require.NoError(t, svc.Complete(ctx, "u1", h.ID))
	}

	got, err := svc.HabitStats(ctx, "u1", h.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentStreak)
	assert.Equal(t, 4, got.LongestStreak)
	assert.Equal(t, 6, got.TotalCompletions)
	assert.True(t, got.CompletedToday)
}

func TestCalendar(t *testing.T) {
	svc, _ := newTestHabitService(t)
	ctx := context.Background()
	h := mustCreate(t, svc, "u1", &habit.CreateHabitRequest{Name: "Run", Frequency: habit.FrequencyDaily})

	require.NoError(t, svc.Complete(ctx, "u1", h.ID))

	cal, err := svc.Calendar(ctx, "u1", h.ID, 2026, time.August)
	require.NoError(t, err)
	assert.Equal(t, 2026, cal.Year)
	assert.Equal(t, 8, cal.Month)
	require.Len(t, cal.Days, 31)

	last := cal.Days[30]
	assert.True(t, last.Completed, "completion on Aug 31 shows up")
	assert.True(t, last.IsToday)
	assert.False(t, cal.Days[29].Completed)

	_, err = svc.Calendar(ctx, "u1", "missing", 2026, time.August)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestEnsureDemoHabits(t *testing.T) {
	svc, _ := newTestHabitService(t)
	ctx := context.Background()

	require.NoError(t, svc.EnsureDemoHabits(ctx, "u1"))
	habits, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, habits, 2)
	assert.Equal(t, "Drink Water", habits[0].Name)
	assert.Equal(t, "Exercise", habits[1].Name)

	// Seeding again is a no-op.
	require.NoError(t, svc.EnsureDemoHabits(ctx, "u1"))
	habits, err = svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, habits, 2)
}

func TestCollectionsAreIsolatedPerUser(t *testing.T) {
	svc, _ := newTestHabitService(t)
	ctx := context.Background()

	mine := mustCreate(t, svc, "u1", &habit.CreateHabitRequest{Name: "Mine", Frequency: habit.FrequencyDaily})
	mustCreate(t, svc, "u2", &habit.CreateHabitRequest{Name: "Theirs", Frequency: habit.FrequencyDaily})

	_, err := svc.GetByID(ctx, "u2", mine.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	habits, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, habits, 1)
	assert.Equal(t, "Mine", habits[0].Name)
}
