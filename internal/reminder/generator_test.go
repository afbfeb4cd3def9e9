package reminder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/beaconcoach/beacon/internal/db"
)

type mockPrefs struct {
	prefs   []*db.NotificationPreference
	listErr error
}

func (m *mockPrefs) ListAll(context.Context) ([]*db.NotificationPreference, error) {
	return m.prefs, m.listErr
}

type mockActivity struct {
	incompleteHabits map[uuid.UUID][]string
	hasJournal       map[uuid.UUID]bool
	hasMood          map[uuid.UUID]bool
	openGoals        map[uuid.UUID]int
	habitErr         error
}

func (m *mockActivity) IncompleteHabitsToday(_ context.Context, userID uuid.UUID) ([]string, error) {
	if m.habitErr != nil {
		return nil, m.habitErr
	}
	return m.incompleteHabits[userID], nil
}

func (m *mockActivity) HasJournalEntryToday(_ context.Context, userID uuid.UUID) (bool, error) {
	return m.hasJournal[userID], nil
}

func (m *mockActivity) HasMoodLogToday(_ context.Context, userID uuid.UUID) (bool, error) {
	return m.hasMood[userID], nil
}

func (m *mockActivity) OpenGoalCount(_ context.Context, userID uuid.UUID) (int, error) {
	return m.openGoals[userID], nil
}

type mockNotifs struct {
	created   []*db.Notification
	createErr error
	lastNow   time.Time
}

func (m *mockNotifs) ExistsToday(_ context.Context, userID uuid.UUID, title string, now time.Time) (bool, error) {
	m.lastNow = now
	for _, n := range m.created {
		if n.UserID == userID && n.Title == title && sameDay(n.CreatedAt, now) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockNotifs) Create(_ context.Context, notif *db.Notification) error {
	if m.createErr != nil {
		return m.createErr
	}
	notif.CreatedAt = m.lastNow
	m.created = append(m.created, notif)
	return nil
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func habitPref(userID uuid.UUID, enabled bool, at string) *db.NotificationPreference {
	return &db.NotificationPreference{
		UserID:                userID,
		HabitRemindersEnabled: enabled,
		HabitReminderTime:     at,
	}
}

// clockAt builds a time on an arbitrary Wednesday with the given HH:MM.
func clockAt(hhmm string) time.Time {
	parsed, err := time.Parse("15:04", hhmm)
	if err != nil {
		panic(err)
	}
	return time.Date(2026, 3, 4, parsed.Hour(), parsed.Minute(), 0, 0, time.UTC)
}

func TestGenerator_HabitReminderInserted(t *testing.T) {
	userID := uuid.New()
	prefs := &mockPrefs{prefs: []*db.NotificationPreference{habitPref(userID, true, "08:00")}}
	activity := &mockActivity{incompleteHabits: map[uuid.UUID][]string{
		userID: {"Meditate", "Stretch"},
	}}
	notifs := &mockNotifs{}

	gen := NewGenerator(prefs, activity, notifs, 0, zap.NewNop())

	inserted, err := gen.Run(context.Background(), clockAt("08:00"))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if inserted != 1 || len(notifs.created) != 1 {
		t.Fatalf("inserted = %d, created = %d", inserted, len(notifs.created))
	}

	n := notifs.created[0]
	if n.Title != "Complete Your Habits" {
		t.Errorf("title = %q", n.Title)
	}
	if n.Message != "You still have habits to complete today: Meditate, Stretch" {
		t.Errorf("message = %q", n.Message)
	}
	if n.Type != db.TypeReminder {
		t.Errorf("type = %q", n.Type)
	}
}

func TestGenerator_DisabledCategoryNeverFires(t *testing.T) {
	userID := uuid.New()
	prefs := &mockPrefs{prefs: []*db.NotificationPreference{habitPref(userID, false, "08:00")}}
	activity := &mockActivity{incompleteHabits: map[uuid.UUID][]string{userID: {"Meditate"}}}
	notifs := &mockNotifs{}

	gen := NewGenerator(prefs, activity, notifs, 0, zap.NewNop())

	inserted, err := gen.Run(context.Background(), clockAt("08:00"))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if inserted != 0 || len(notifs.created) != 0 {
		t.Fatal("disabled category must never generate a notification")
	}
}

func TestGenerator_TimeMismatchNoReminder(t *testing.T) {
	userID := uuid.New()
	prefs := &mockPrefs{prefs: []*db.NotificationPreference{habitPref(userID, true, "08:00")}}
	activity := &mockActivity{incompleteHabits: map[uuid.UUID][]string{userID: {"Meditate"}}}
	notifs := &mockNotifs{}

	gen := NewGenerator(prefs, activity, notifs, 0, zap.NewNop())

	// One minute late: exact match only, the reminder is skipped.
	inserted, _ := gen.Run(context.Background(), clockAt("08:01"))
	if inserted != 0 {
		t.Fatal("no reminder should fire off the configured minute")
	}
}

func TestGenerator_SequentialRunsDedupe(t *testing.T) {
	// At most one notification per (user, category, day) holds only for
	// sequential passes. The guard is check-then-insert with no
	// transaction, so concurrent passes can double-insert; that race is
	// a known limitation, not covered here.
	userID := uuid.New()
	prefs := &mockPrefs{prefs: []*db.NotificationPreference{habitPref(userID, true, "08:00")}}
	activity := &mockActivity{incompleteHabits: map[uuid.UUID][]string{userID: {"Meditate"}}}
	notifs := &mockNotifs{}

	gen := NewGenerator(prefs, activity, notifs, 0, zap.NewNop())

	for i := 0; i < 3; i++ {
		if _, err := gen.Run(context.Background(), clockAt("08:00")); err != nil {
			t.Fatalf("run %d failed: %v", i, err)
		}
	}

	if len(notifs.created) != 1 {
		t.Fatalf("expected exactly 1 notification, got %d", len(notifs.created))
	}
}

func TestGenerator_DedupDayFollowsPassClock(t *testing.T) {
	// The pass's own now defines "today" for the dedup guard, so a pass
	// on the next calendar day inserts again.
	userID := uuid.New()
	prefs := &mockPrefs{prefs: []*db.NotificationPreference{habitPref(userID, true, "08:00")}}
	activity := &mockActivity{incompleteHabits: map[uuid.UUID][]string{userID: {"Meditate"}}}
	notifs := &mockNotifs{}

	gen := NewGenerator(prefs, activity, notifs, 0, zap.NewNop())

	day1 := clockAt("08:00")
	day2 := day1.AddDate(0, 0, 1)

	for _, now := range []time.Time{day1, day1, day2} {
		if _, err := gen.Run(context.Background(), now); err != nil {
			t.Fatalf("run at %s failed: %v", now, err)
		}
	}

	if len(notifs.created) != 2 {
		t.Fatalf("expected one notification per day, got %d", len(notifs.created))
	}
}

func TestGenerator_NoIncompleteHabitsNoReminder(t *testing.T) {
	userID := uuid.New()
	prefs := &mockPrefs{prefs: []*db.NotificationPreference{habitPref(userID, true, "08:00")}}
	activity := &mockActivity{}
	notifs := &mockNotifs{}

	gen := NewGenerator(prefs, activity, notifs, 0, zap.NewNop())

	inserted, _ := gen.Run(context.Background(), clockAt("08:00"))
	if inserted != 0 {
		t.Fatal("all habits complete, nothing to remind about")
	}
}

func TestGenerator_JournalSkippedWhenEntryExists(t *testing.T) {
	userID := uuid.New()
	prefs := &mockPrefs{prefs: []*db.NotificationPreference{{
		UserID:                  userID,
		JournalRemindersEnabled: true,
		JournalReminderTime:     "20:00",
	}}}
	activity := &mockActivity{hasJournal: map[uuid.UUID]bool{userID: true}}
	notifs := &mockNotifs{}

	gen := NewGenerator(prefs, activity, notifs, 0, zap.NewNop())

	inserted, _ := gen.Run(context.Background(), clockAt("20:00"))
	if inserted != 0 {
		t.Fatal("journal entry already written today")
	}
}

func TestGenerator_MoodReminder(t *testing.T) {
	userID := uuid.New()
	prefs := &mockPrefs{prefs: []*db.NotificationPreference{{
		UserID:               userID,
		MoodRemindersEnabled: true,
		MoodReminderTime:     "12:00",
	}}}
	activity := &mockActivity{}
	notifs := &mockNotifs{}

	gen := NewGenerator(prefs, activity, notifs, 0, zap.NewNop())

	inserted, _ := gen.Run(context.Background(), clockAt("12:00"))
	if inserted != 1 {
		t.Fatalf("inserted = %d", inserted)
	}
	if notifs.created[0].Title != TitleMood {
		t.Errorf("title = %q", notifs.created[0].Title)
	}
}

func TestGenerator_WeeklyGoalOnlyOnMonday(t *testing.T) {
	userID := uuid.New()
	pref := &db.NotificationPreference{
		UserID:                userID,
		GoalRemindersEnabled:  true,
		GoalReminderTime:      "09:00",
		GoalReminderFrequency: db.FrequencyWeekly,
	}
	activity := &mockActivity{openGoals: map[uuid.UUID]int{userID: 2}}

	monday := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	tuesday := monday.AddDate(0, 0, 1)

	t.Run("tuesday is a no-op", func(t *testing.T) {
		notifs := &mockNotifs{}
		gen := NewGenerator(&mockPrefs{prefs: []*db.NotificationPreference{pref}}, activity, notifs, 0, zap.NewNop())
		inserted, _ := gen.Run(context.Background(), tuesday)
		if inserted != 0 {
			t.Fatal("weekly goal reminder fired off Monday")
		}
	})

	t.Run("monday fires", func(t *testing.T) {
		notifs := &mockNotifs{}
		gen := NewGenerator(&mockPrefs{prefs: []*db.NotificationPreference{pref}}, activity, notifs, 0, zap.NewNop())
		inserted, _ := gen.Run(context.Background(), monday)
		if inserted != 1 {
			t.Fatalf("inserted = %d", inserted)
		}
	})
}

func TestGenerator_DailyGoalAnyDay(t *testing.T) {
	userID := uuid.New()
	prefs := &mockPrefs{prefs: []*db.NotificationPreference{{
		UserID:                userID,
		GoalRemindersEnabled:  true,
		GoalReminderTime:      "09:00",
		GoalReminderFrequency: db.FrequencyDaily,
	}}}
	activity := &mockActivity{openGoals: map[uuid.UUID]int{userID: 1}}
	notifs := &mockNotifs{}

	gen := NewGenerator(prefs, activity, notifs, 0, zap.NewNop())

	inserted, _ := gen.Run(context.Background(), clockAt("09:00"))
	if inserted != 1 {
		t.Fatalf("inserted = %d", inserted)
	}
}

func TestGenerator_PerUserErrorContinues(t *testing.T) {
	brokenUser := uuid.New()
	healthyUser := uuid.New()

	prefs := &mockPrefs{prefs: []*db.NotificationPreference{
		habitPref(brokenUser, true, "08:00"),
		{UserID: healthyUser, MoodRemindersEnabled: true, MoodReminderTime: "08:00"},
	}}
	activity := &mockActivity{habitErr: errors.New("connection reset")}
	notifs := &mockNotifs{}

	gen := NewGenerator(prefs, activity, notifs, 0, zap.NewNop())

	inserted, err := gen.Run(context.Background(), clockAt("08:00"))
	if err != nil {
		t.Fatalf("run should not fail on a per-user error: %v", err)
	}
	if inserted != 1 {
		t.Fatalf("healthy user should still get a reminder, inserted = %d", inserted)
	}
	if notifs.created[0].UserID != healthyUser {
		t.Error("wrong recipient")
	}
}

func TestGenerator_ListFailureAborts(t *testing.T) {
	prefs := &mockPrefs{listErr: errors.New("db down")}
	gen := NewGenerator(prefs, &mockActivity{}, &mockNotifs{}, 0, zap.NewNop())

	if _, err := gen.Run(context.Background(), clockAt("08:00")); err == nil {
		t.Fatal("expected error when preference listing fails")
	}
}
