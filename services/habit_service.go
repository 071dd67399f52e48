package services

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"habitFlowAPI/internal/apperr"
	"habitFlowAPI/internal/calendar"
	"habitFlowAPI/internal/dateutil"
	"habitFlowAPI/internal/habit"
	"habitFlowAPI/internal/stats"
	"habitFlowAPI/storage"
)

// HabitService owns the habit collection of every signed-in user. The
// in-memory collection is the source of truth for the session; the
// key-value store is write-through. Collections load lazily per user
// and a failed load starts the user with an empty collection.
type HabitService struct {
	store  storage.Store
	logger *log.Logger

	mu          sync.RWMutex
	collections map[string][]*habit.Habit

	// pending tracks in-flight persistence writes so Flush can drain
	// them before shutdown.
	pending sync.WaitGroup

	// writers serializes store writes per habits key. Without it a
	// stalled earlier write could land after a later one and re-persist
	// stale state.
	writers map[string]*collectionWriter

	now func() time.Time
}

// collectionWriter coalesces writes for one habits key. At most one
// store write is in flight; a payload queued while it runs replaces any
// earlier queued payload, so the newest snapshot always lands last.
type collectionWriter struct {
	mu      sync.Mutex
	queued  string
	hasNext bool
	active  bool
}

func NewHabitService(store storage.Store) *HabitService {
	return &HabitService{
		store:       store,
		logger:      log.With("component", "habits"),
		collections: make(map[string][]*habit.Habit),
		writers:     make(map[string]*collectionWriter),
		now:         time.Now,
	}
}

// Create validates the input, assigns identity and zeroed derived state,
// appends the habit to the caller's collection and persists it.
func (s *HabitService) Create(ctx context.Context, userID string, req *habit.CreateHabitRequest) (*habit.Habit, error) {
	if userID == "" {
		return nil, apperr.ErrUnauthorized
	}
	if req.Name == "" {
		return nil, apperr.Validationf("habit name is required")
	}
	if err := habit.ValidateSchedule(req.Frequency, req.CustomDays); err != nil {
		return nil, err
	}

	now := s.now()
	h := &habit.Habit{
		ID:          uuid.New().String(),
		UserID:      userID,
		Name:        req.Name,
		Description: req.Description,
		Frequency:   req.Frequency,
		CustomDays:  req.CustomDays,
		CreatedAt:   now,
		UpdatedAt:   now,
		Color:       req.Color,
		Icon:        req.Icon,
		Reminders:   req.Reminders,
		Streak:      0,
		Completions: []habit.Completion{},
	}
	for i := range h.Reminders {
		if h.Reminders[i].ID == "" {
			h.Reminders[i].ID = uuid.New().String()
		}
		h.Reminders[i].HabitID = h.ID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked(ctx, userID)
	s.collections[userID] = append(s.collections[userID], h)
	s.persistLocked(userID)

	return h, nil
}

// Update merges the provided fields over the existing record and stamps
// updatedAt. The scheduling rule is revalidated against the merged
// state.
func (s *HabitService) Update(ctx context.Context, userID, id string, req *habit.UpdateHabitRequest) (*habit.Habit, error) {
	if userID == "" {
		return nil, apperr.ErrUnauthorized
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked(ctx, userID)

	h := s.findLocked(userID, id)
	if h == nil {
		return nil, apperr.NotFoundf("habit %s", id)
	}

	freq := h.Frequency
	customDays := h.CustomDays
	if req.Frequency != nil {
		freq = *req.Frequency
	}
	if req.CustomDays != nil {
		customDays = *req.CustomDays
	}
	if err := habit.ValidateSchedule(freq, customDays); err != nil {
		return nil, err
	}
	if req.Name != nil {
		if *req.Name == "" {
			return nil, apperr.Validationf("habit name is required")
		}
		h.Name = *req.Name
	}
	if req.Description != nil {
		h.Description = *req.Description
	}
	h.Frequency = freq
	h.CustomDays = customDays
	if req.Color != nil {
		h.Color = *req.Color
	}
	if req.Icon != nil {
		h.Icon = *req.Icon
	}
	if req.Reminders != nil {
		h.Reminders = *req.Reminders
		for i := range h.Reminders {
			if h.Reminders[i].ID == "" {
				h.Reminders[i].ID = uuid.New().String()
			}
			h.Reminders[i].HabitID = h.ID
		}
	}
	h.UpdatedAt = s.now()
	s.persistLocked(userID)

	return h, nil
}

// Delete removes the habit and, with it, every completion it owns.
func (s *HabitService) Delete(ctx context.Context, userID, id string) error {
	if userID == "" {
		return apperr.ErrUnauthorized
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked(ctx, userID)

	habits := s.collections[userID]
	for i, h := range habits {
		if h.ID == id {
			s.collections[userID] = append(habits[:i], habits[i+1:]...)
			s.persistLocked(userID)
			return nil
		}
	}
	return apperr.NotFoundf("habit %s", id)
}

func (s *HabitService) GetByID(ctx context.Context, userID, id string) (*habit.Habit, error) {
	if userID == "" {
		return nil, apperr.ErrUnauthorized
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked(ctx, userID)

	h := s.findLocked(userID, id)
	if h == nil {
		return nil, apperr.NotFoundf("habit %s", id)
	}
	return h, nil
}

func (s *HabitService) List(ctx context.Context, userID string) ([]*habit.Habit, error) {
	if userID == "" {
		return nil, apperr.ErrUnauthorized
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked(ctx, userID)

	return append([]*habit.Habit{}, s.collections[userID]...), nil
}

// Complete records today's completion for the habit and recomputes its
// streak. Completing twice on the same calendar day is a no-op.
//
// The streak test reads the last appended completion, not the maximum
// date in the collection. Completions are only ever appended in
// chronological order, which is what makes that safe; never backfill or
// reorder them.
func (s *HabitService) Complete(ctx context.Context, userID, id string) error {
	if userID == "" {
		return apperr.ErrUnauthorized
	}

	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked(ctx, userID)

	h := s.findLocked(userID, id)
	if h == nil {
		return apperr.NotFoundf("habit %s", id)
	}

	for _, c := range h.Completions {
		if dateutil.SameDay(c.CompletedAt, now) {
			return nil
		}
	}

	newStreak := 1
	if len(h.Completions) > 0 {
		last := h.Completions[len(h.Completions)-1].CompletedAt
		yesterdayStart := dateutil.StartOfDay(dateutil.DaysAgo(now, 1))
		if dateutil.SameDay(last, now) || dateutil.WithinInterval(last, yesterdayStart, now) {
			newStreak = h.Streak + 1
		}
	}

	h.Completions = append(h.Completions, habit.Completion{
		ID:          uuid.New().String(),
		HabitID:     h.ID,
		CompletedAt: now,
	})
	h.Streak = newStreak
	h.UpdatedAt = now
	s.persistLocked(userID)

	return nil
}

// TodayHabits returns the habits due today. Weekly habits are due on
// Monday and monthly habits on the 1st of the month; neither day is
// user-configurable.
func (s *HabitService) TodayHabits(ctx context.Context, userID string) ([]*habit.Habit, error) {
	if userID == "" {
		return nil, apperr.ErrUnauthorized
	}

	now := s.now()
	today := dateutil.WeekdayIndex(now)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked(ctx, userID)

	due := []*habit.Habit{}
	for _, h := range s.collections[userID] {
		switch h.Frequency {
		case habit.FrequencyDaily:
			due = append(due, h)
		case habit.FrequencyWeekly:
			if today == 1 {
				due = append(due, h)
			}
		case habit.FrequencyMonthly:
			if dateutil.FirstOfMonth(now) {
				due = append(due, h)
			}
		case habit.FrequencyCustom:
			for _, d := range h.CustomDays {
				if d == today {
					due = append(due, h)
					break
				}
			}
		}
	}
	return due, nil
}

// TodayCompletedHabits returns the habits with a completion dated today.
func (s *HabitService) TodayCompletedHabits(ctx context.Context, userID string) ([]*habit.Habit, error) {
	if userID == "" {
		return nil, apperr.ErrUnauthorized
	}

	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked(ctx, userID)

	done := []*habit.Habit{}
	for _, h := range s.collections[userID] {
		for _, c := range h.Completions {
			if dateutil.SameDay(c.CompletedAt, now) {
				done = append(done, h)
				break
			}
		}
	}
	return done, nil
}

// WeeklyStats aggregates completed versus expected counts over the
// trailing seven days ending now. Monthly habits add nothing to the
// expected count.
func (s *HabitService) WeeklyStats(ctx context.Context, userID string) (*stats.WeeklyStats, error) {
	if userID == "" {
		return nil, apperr.ErrUnauthorized
	}

	now := s.now()
	windowStart := dateutil.DaysAgo(now, 7)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked(ctx, userID)

	var completed, total int
	for _, h := range s.collections[userID] {
		for _, c := range h.Completions {
			if dateutil.WithinInterval(c.CompletedAt, windowStart, now) {
				completed++
			}
		}

		switch h.Frequency {
		case habit.FrequencyDaily:
			total += 7
		case habit.FrequencyWeekly:
			total++
		case habit.FrequencyCustom:
			for i := 0; i < 7; i++ {
				day := (dateutil.WeekdayIndex(now) - i + 7) % 7
				for _, d := range h.CustomDays {
					if d == day {
						total++
						break
					}
				}
			}
		}
	}

	percentage := 0
	if total > 0 {
		percentage = int(math.Round(float64(completed) / float64(total) * 100))
	}
	return &stats.WeeklyStats{Completed: completed, Total: total, Percentage: percentage}, nil
}

// HabitStats reports the stored current streak plus the longest run of
// consecutive completion days found in the history.
func (s *HabitService) HabitStats(ctx context.Context, userID, id string) (*stats.HabitStats, error) {
	if userID == "" {
		return nil, apperr.ErrUnauthorized
	}

	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked(ctx, userID)

	h := s.findLocked(userID, id)
	if h == nil {
		return nil, apperr.NotFoundf("habit %s", id)
	}

	completedToday := false
	for _, c := range h.Completions {
		if dateutil.SameDay(c.CompletedAt, now) {
			completedToday = true
			break
		}
	}

	return &stats.HabitStats{
		HabitID:          h.ID,
		CurrentStreak:    h.Streak,
		LongestStreak:    longestStreak(h.Completions),
		TotalCompletions: len(h.Completions),
		CompletedToday:   completedToday,
	}, nil
}

// Calendar returns one entry per day of the given month with a completed
// flag. An empty habitID means "any habit completed that day".
func (s *HabitService) Calendar(ctx context.Context, userID, habitID string, year int, month time.Month) (*calendar.CalendarResponse, error) {
	if userID == "" {
		return nil, apperr.ErrUnauthorized
	}

	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked(ctx, userID)

	habits := s.collections[userID]
	if habitID != "" {
		h := s.findLocked(userID, habitID)
		if h == nil {
			return nil, apperr.NotFoundf("habit %s", habitID)
		}
		habits = []*habit.Habit{h}
	}

	first := time.Date(year, month, 1, 0, 0, 0, 0, now.Location())
	resp := &calendar.CalendarResponse{Year: year, Month: int(month)}
	for d := first; d.Month() == month; d = d.AddDate(0, 0, 1) {
		day := &calendar.CalendarDay{Date: d, IsToday: dateutil.SameDay(d, now)}
		for _, h := range habits {
			for _, c := range h.Completions {
				if dateutil.SameDay(c.CompletedAt, d) {
					day.Completed = true
					break
				}
			}
			if day.Completed {
				break
			}
		}
		resp.Days = append(resp.Days, day)
	}
	return resp, nil
}

// EnsureDemoHabits seeds the starter habits for a user with no stored
// collection. Existing collections are left alone.
func (s *HabitService) EnsureDemoHabits(ctx context.Context, userID string) error {
	if userID == "" {
		return apperr.ErrUnauthorized
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked(ctx, userID)
	if len(s.collections[userID]) > 0 {
		return nil
	}

	now := s.now()
	water := &habit.Habit{
		ID:          uuid.New().String(),
		UserID:      userID,
		Name:        "Drink Water",
		Description: "Drink at least 8 glasses of water per day",
		Frequency:   habit.FrequencyDaily,
		CreatedAt:   now,
		UpdatedAt:   now,
		Color:       "#2196f3",
		Icon:        "water",
		Streak:      0,
		Completions: []habit.Completion{},
	}
	water.Reminders = []habit.Reminder{{
		ID:      uuid.New().String(),
		HabitID: water.ID,
		Time:    "10:00",
		Days:    []int{1, 2, 3, 4, 5, 6, 0},
		Enabled: true,
	}}

	exercise := &habit.Habit{
		ID:          uuid.New().String(),
		UserID:      userID,
		Name:        "Exercise",
		Description: "Go for a run or do a workout for at least 30 minutes",
		Frequency:   habit.FrequencyWeekly,
		CustomDays:  []int{1, 3, 5},
		CreatedAt:   now,
		UpdatedAt:   now,
		Color:       "#4caf50",
		Icon:        "fitness",
		Streak:      0,
		Completions: []habit.Completion{},
	}
	exercise.Reminders = []habit.Reminder{{
		ID:      uuid.New().String(),
		HabitID: exercise.ID,
		Time:    "18:00",
		Days:    []int{1, 3, 5},
		Enabled: true,
	}}

	s.collections[userID] = []*habit.Habit{water, exercise}
	s.persistLocked(userID)
	return nil
}

// Flush waits for in-flight persistence writes. Called on shutdown and
// by tests that inspect the store directly.
func (s *HabitService) Flush() {
	s.pending.Wait()
}

// findLocked returns the habit with the given id from the user's loaded
// collection, or nil. Callers hold s.mu.
func (s *HabitService) findLocked(userID, id string) *habit.Habit {
	for _, h := range s.collections[userID] {
		if h.ID == id {
			return h
		}
	}
	return nil
}

// loadLocked populates the user's collection from the store on first
// touch. Any failure leaves the user with an empty collection rather
// than blocking the session. Callers hold s.mu.
func (s *HabitService) loadLocked(ctx context.Context, userID string) {
	if _, ok := s.collections[userID]; ok {
		return
	}

	s.collections[userID] = []*habit.Habit{}

	raw, err := s.store.Get(ctx, storage.HabitsKey(userID))
	if err != nil {
		if !errors.Is(err, storage.ErrKeyNotFound) {
			s.logger.Error("failed to load habits, starting empty", "user", userID, "err", err)
		}
		return
	}

	var habits []*habit.Habit
	if err := json.Unmarshal([]byte(raw), &habits); err != nil {
		s.logger.Error("failed to parse stored habits, starting empty", "user", userID, "err", err)
		return
	}
	s.collections[userID] = habits
}

// persistLocked serializes the user's full collection under the lock and
// hands it to the user's writer; the in-memory collection stays
// authoritative for the session. Callers hold s.mu.
func (s *HabitService) persistLocked(userID string) {
	raw, err := json.Marshal(s.collections[userID])
	if err != nil {
		s.logger.Error("failed to serialize habits", "user", userID, "err", err)
		return
	}

	w := s.writers[userID]
	if w == nil {
		w = &collectionWriter{}
		s.writers[userID] = w
	}

	w.mu.Lock()
	w.queued = string(raw)
	w.hasNext = true
	if !w.active {
		w.active = true
		s.pending.Add(1)
		go s.drainWrites(storage.HabitsKey(userID), userID, w)
	}
	w.mu.Unlock()
}

// drainWrites writes queued snapshots for one key until none remain,
// always taking the newest one. Write failures are logged and otherwise
// ignored.
func (s *HabitService) drainWrites(key, userID string, w *collectionWriter) {
	defer s.pending.Done()
	for {
		w.mu.Lock()
		if !w.hasNext {
			w.active = false
			w.mu.Unlock()
			return
		}
		payload := w.queued
		w.hasNext = false
		w.mu.Unlock()

		if err := s.store.Set(context.Background(), key, payload); err != nil {
			s.logger.Error("failed to persist habits", "user", userID, "err", err)
		}
	}
}

// longestStreak walks the completion history counting runs of adjacent
// calendar days. The history carries at most one completion per day.
func longestStreak(completions []habit.Completion) int {
	if len(completions) == 0 {
		return 0
	}

	days := make([]time.Time, 0, len(completions))
	for _, c := range completions {
		days = append(days, dateutil.StartOfDay(c.CompletedAt))
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	longest, run := 1, 1
	for i := 1; i < len(days); i++ {
		if dateutil.SameDay(days[i-1].AddDate(0, 0, 1), days[i]) {
			run++
		} else if !dateutil.SameDay(days[i-1], days[i]) {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}

