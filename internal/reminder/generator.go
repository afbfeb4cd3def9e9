package reminder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/beaconcoach/beacon/internal/db"
	"github.com/beaconcoach/beacon/internal/metrics"
)

// Reminder categories. Each maps to one preference pair (enabled flag +
// HH:MM time) and one fact check.
const (
	CategoryHabit   = "habit"
	CategoryJournal = "journal"
	CategoryMood    = "mood"
	CategoryGoal    = "goal"
)

// Notification titles per category. The dedup guard matches on title,
// so these double as the per-day uniqueness key.
const (
	TitleHabit   = "Complete Your Habits"
	TitleJournal = "Time to Journal"
	TitleMood    = "Mood Check-In"
	TitleGoal    = "Check In on Your Goals"
)

// PreferenceSource lists every user's reminder preferences.
type PreferenceSource interface {
	ListAll(ctx context.Context) ([]*db.NotificationPreference, error)
}

// ActivitySource answers "does the user already have today's qualifying
// record" per category.
type ActivitySource interface {
	IncompleteHabitsToday(ctx context.Context, userID uuid.UUID) ([]string, error)
	HasJournalEntryToday(ctx context.Context, userID uuid.UUID) (bool, error)
	HasMoodLogToday(ctx context.Context, userID uuid.UUID) (bool, error)
	OpenGoalCount(ctx context.Context, userID uuid.UUID) (int, error)
}

// NotificationSink checks for and creates in-app notifications.
type NotificationSink interface {
	ExistsToday(ctx context.Context, userID uuid.UUID, title string, now time.Time) (bool, error)
	Create(ctx context.Context, notif *db.Notification) error
}

// Generator walks every preference row on each tick and inserts at most
// one notification per category per user per day. The time comparison
// is an exact string match on the truncated wall clock: a tick that
// lands on a different minute means the reminder never fires that day.
type Generator struct {
	prefs    PreferenceSource
	activity ActivitySource
	notifs   NotificationSink
	logger   *zap.Logger
	interval time.Duration
}

// NewGenerator creates a Generator. interval is only used by Start;
// pass zero when the pass is driven by an external tick.
func NewGenerator(prefs PreferenceSource, activity ActivitySource, notifs NotificationSink, interval time.Duration, logger *zap.Logger) *Generator {
	return &Generator{
		prefs:    prefs,
		activity: activity,
		notifs:   notifs,
		logger:   logger,
		interval: interval,
	}
}

// Start runs a pass every interval until the context is cancelled.
func (g *Generator) Start(ctx context.Context) {
	g.logger.Info("reminder generator started", zap.Duration("interval", g.interval))

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			g.logger.Info("reminder generator stopped")
			return
		case <-ticker.C:
			if _, err := g.Run(ctx, time.Now()); err != nil {
				g.logger.Error("generator pass failed", zap.Error(err))
			}
		}
	}
}

// Run executes one generation pass. Per-user/category failures are
// logged and counted, and the loop moves on; only a failure to list the
// preferences aborts the pass. Returns the number of notifications
// inserted.
func (g *Generator) Run(ctx context.Context, now time.Time) (int, error) {
	prefs, err := g.prefs.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("list preferences: %w", err)
	}

	clock := now.Format("15:04")
	inserted := 0

	for _, pref := range prefs {
		if pref.HabitRemindersEnabled && pref.HabitReminderTime == clock {
			if g.generateHabit(ctx, pref.UserID, now) {
				inserted++
			}
		}
		if pref.JournalRemindersEnabled && pref.JournalReminderTime == clock {
			if g.generateJournal(ctx, pref.UserID, now) {
				inserted++
			}
		}
		if pref.MoodRemindersEnabled && pref.MoodReminderTime == clock {
			if g.generateMood(ctx, pref.UserID, now) {
				inserted++
			}
		}
		if pref.GoalRemindersEnabled && pref.GoalReminderTime == clock && goalDayMatches(pref.GoalReminderFrequency, now) {
			if g.generateGoal(ctx, pref.UserID, now) {
				inserted++
			}
		}
	}

	if inserted > 0 {
		g.logger.Info("generator pass complete",
			zap.Int("users", len(prefs)),
			zap.Int("inserted", inserted),
		)
	}

	return inserted, nil
}

// goalDayMatches gates the goal category: daily always qualifies,
// weekly only on Mondays.
func goalDayMatches(frequency string, now time.Time) bool {
	if frequency == db.FrequencyWeekly {
		return now.Weekday() == time.Monday
	}
	return true
}

func (g *Generator) generateHabit(ctx context.Context, userID uuid.UUID, now time.Time) bool {
	habits, err := g.activity.IncompleteHabitsToday(ctx, userID)
	if err != nil {
		g.fail(CategoryHabit, userID, err)
		return false
	}
	if len(habits) == 0 {
		return false
	}

	message := fmt.Sprintf("You still have habits to complete today: %s", strings.Join(habits, ", "))
	return g.insert(ctx, userID, CategoryHabit, TitleHabit, message, now)
}

func (g *Generator) generateJournal(ctx context.Context, userID uuid.UUID, now time.Time) bool {
	has, err := g.activity.HasJournalEntryToday(ctx, userID)
	if err != nil {
		g.fail(CategoryJournal, userID, err)
		return false
	}
	if has {
		return false
	}

	return g.insert(ctx, userID, CategoryJournal, TitleJournal,
		"You haven't written in your journal today. Take a few minutes to reflect.", now)
}

func (g *Generator) generateMood(ctx context.Context, userID uuid.UUID, now time.Time) bool {
	has, err := g.activity.HasMoodLogToday(ctx, userID)
	if err != nil {
		g.fail(CategoryMood, userID, err)
		return false
	}
	if has {
		return false
	}

	return g.insert(ctx, userID, CategoryMood, TitleMood,
		"How are you feeling today? Log your mood to keep your check-in streak going.", now)
}

func (g *Generator) generateGoal(ctx context.Context, userID uuid.UUID, now time.Time) bool {
	open, err := g.activity.OpenGoalCount(ctx, userID)
	if err != nil {
		g.fail(CategoryGoal, userID, err)
		return false
	}
	if open == 0 {
		return false
	}

	message := fmt.Sprintf("You have %d open goal(s). Take a moment to review your progress.", open)
	return g.insert(ctx, userID, CategoryGoal, TitleGoal, message, now)
}

// insert runs the dedup guard and creates the notification. The guard
// is a plain check-then-insert: two overlapping passes can both see "no
// notification today" and double-insert. That race is accepted. The
// pass's own now defines "today" so the dedup day and the match day
// never diverge.
func (g *Generator) insert(ctx context.Context, userID uuid.UUID, category, title, message string, now time.Time) bool {
	exists, err := g.notifs.ExistsToday(ctx, userID, title, now)
	if err != nil {
		g.fail(category, userID, err)
		return false
	}
	if exists {
		return false
	}

	notif := &db.Notification{
		ID:      uuid.New(),
		UserID:  userID,
		Title:   title,
		Message: message,
		Type:    db.TypeReminder,
	}
	if err := g.notifs.Create(ctx, notif); err != nil {
		g.fail(category, userID, err)
		return false
	}

	metrics.RecordReminderGenerated(category)
	g.logger.Debug("reminder generated",
		zap.String("category", category),
		zap.String("user_id", userID.String()),
	)

	return true
}

func (g *Generator) fail(category string, userID uuid.UUID, err error) {
	metrics.RecordGeneratorError(category)
	g.logger.Error("reminder generation failed, continuing",
		zap.String("category", category),
		zap.String("user_id", userID.String()),
		zap.Error(err),
	)
}
