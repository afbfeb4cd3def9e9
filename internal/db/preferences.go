package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// PreferenceStore handles notification preference rows.
type PreferenceStore struct {
	db     *DB
	logger *zap.Logger
}

func NewPreferenceStore(db *DB, logger *zap.Logger) *PreferenceStore {
	return &PreferenceStore{db: db, logger: logger}
}

const preferenceColumns = `
	user_id,
	habit_reminders_enabled, habit_reminder_time,
	journal_reminders_enabled, journal_reminder_time,
	mood_reminders_enabled, mood_reminder_time,
	goal_reminders_enabled, goal_reminder_time, goal_reminder_frequency,
	updated_at
`

func scanPreference(row pgx.Row) (*NotificationPreference, error) {
	var pref NotificationPreference
	err := row.Scan(
		&pref.UserID,
		&pref.HabitRemindersEnabled, &pref.HabitReminderTime,
		&pref.JournalRemindersEnabled, &pref.JournalReminderTime,
		&pref.MoodRemindersEnabled, &pref.MoodReminderTime,
		&pref.GoalRemindersEnabled, &pref.GoalReminderTime, &pref.GoalReminderFrequency,
		&pref.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &pref, nil
}

// ListAll returns every preference row. The generator walks the full
// set on each tick.
func (s *PreferenceStore) ListAll(ctx context.Context) ([]*NotificationPreference, error) {
	query := `SELECT ` + preferenceColumns + ` FROM notification_preferences ORDER BY user_id`

	rows, err := s.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query preferences: %w", err)
	}
	defer rows.Close()

	var prefs []*NotificationPreference
	for rows.Next() {
		pref, err := scanPreference(rows)
		if err != nil {
			return nil, fmt.Errorf("scan preference: %w", err)
		}
		prefs = append(prefs, pref)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return prefs, nil
}

// GetByUser retrieves a single user's preference row.
func (s *PreferenceStore) GetByUser(ctx context.Context, userID uuid.UUID) (*NotificationPreference, error) {
	query := `SELECT ` + preferenceColumns + ` FROM notification_preferences WHERE user_id = $1`

	pref, err := scanPreference(s.db.Pool().QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query preference: %w", err)
	}

	return pref, nil
}

// Upsert writes the full preference row for a user, inserting on first
// save and replacing on subsequent ones.
func (s *PreferenceStore) Upsert(ctx context.Context, pref *NotificationPreference) error {
	query := `
		INSERT INTO notification_preferences (
			user_id,
			habit_reminders_enabled, habit_reminder_time,
			journal_reminders_enabled, journal_reminder_time,
			mood_reminders_enabled, mood_reminder_time,
			goal_reminders_enabled, goal_reminder_time, goal_reminder_frequency
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id) DO UPDATE SET
			habit_reminders_enabled = EXCLUDED.habit_reminders_enabled,
			habit_reminder_time = EXCLUDED.habit_reminder_time,
			journal_reminders_enabled = EXCLUDED.journal_reminders_enabled,
			journal_reminder_time = EXCLUDED.journal_reminder_time,
			mood_reminders_enabled = EXCLUDED.mood_reminders_enabled,
			mood_reminder_time = EXCLUDED.mood_reminder_time,
			goal_reminders_enabled = EXCLUDED.goal_reminders_enabled,
			goal_reminder_time = EXCLUDED.goal_reminder_time,
			goal_reminder_frequency = EXCLUDED.goal_reminder_frequency,
			updated_at = NOW()
		RETURNING updated_at
	`

	err := s.db.Pool().QueryRow(ctx, query,
		pref.UserID,
		pref.HabitRemindersEnabled, pref.HabitReminderTime,
		pref.JournalRemindersEnabled, pref.JournalReminderTime,
		pref.MoodRemindersEnabled, pref.MoodReminderTime,
		pref.GoalRemindersEnabled, pref.GoalReminderTime, pref.GoalReminderFrequency,
	).Scan(&pref.UpdatedAt)

	if err != nil {
		s.logger.Error("failed to upsert preferences",
			zap.Error(err),
			zap.String("user_id", pref.UserID.String()),
		)
		return fmt.Errorf("upsert preferences: %w", err)
	}

	s.logger.Info("preferences saved",
		zap.String("user_id", pref.UserID.String()),
	)

	return nil
}
