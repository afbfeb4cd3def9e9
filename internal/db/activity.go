package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ActivityStore covers the dashboard activity tables (habits, journal,
// mood, goals) and the read-only fact checks the reminder generator
// runs against them.
type ActivityStore struct {
	db     *DB
	logger *zap.Logger
}

func NewActivityStore(db *DB, logger *zap.Logger) *ActivityStore {
	return &ActivityStore{db: db, logger: logger}
}

// IncompleteHabitsToday returns the names of active habits the user has
// not completed on the current calendar day.
func (s *ActivityStore) IncompleteHabitsToday(ctx context.Context, userID uuid.UUID) ([]string, error) {
	query := `
		SELECT h.name
		FROM habits h
		WHERE h.user_id = $1
		  AND h.active = TRUE
		  AND NOT EXISTS (
			SELECT 1 FROM habit_completions hc
			WHERE hc.habit_id = h.id AND hc.completed_on = CURRENT_DATE
		  )
		ORDER BY h.created_at ASC
	`

	rows, err := s.db.Pool().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query incomplete habits: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan habit name: %w", err)
		}
		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return names, nil
}

// HasJournalEntryToday reports whether the user journaled today.
func (s *ActivityStore) HasJournalEntryToday(ctx context.Context, userID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM journal_entries
			WHERE user_id = $1 AND created_at::date = CURRENT_DATE
		)
	`

	var exists bool
	if err := s.db.Pool().QueryRow(ctx, query, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("query journal entry: %w", err)
	}

	return exists, nil
}

// HasMoodLogToday reports whether the user checked in today.
func (s *ActivityStore) HasMoodLogToday(ctx context.Context, userID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM mood_logs
			WHERE user_id = $1 AND created_at::date = CURRENT_DATE
		)
	`

	var exists bool
	if err := s.db.Pool().QueryRow(ctx, query, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("query mood log: %w", err)
	}

	return exists, nil
}

// OpenGoalCount returns the number of goals not yet completed.
func (s *ActivityStore) OpenGoalCount(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := s.db.Pool().QueryRow(ctx,
		`SELECT COUNT(*) FROM goals WHERE user_id = $1 AND completed = FALSE`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count open goals: %w", err)
	}

	return count, nil
}

// ListHabits returns a user's active habits.
func (s *ActivityStore) ListHabits(ctx context.Context, userID uuid.UUID) ([]*Habit, error) {
	query := `
		SELECT id, user_id, name, active, created_at
		FROM habits
		WHERE user_id = $1 AND active = TRUE
		ORDER BY created_at ASC
	`

	rows, err := s.db.Pool().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query habits: %w", err)
	}
	defer rows.Close()

	var habits []*Habit
	for rows.Next() {
		var h Habit
		if err := rows.Scan(&h.ID, &h.UserID, &h.Name, &h.Active, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan habit: %w", err)
		}
		habits = append(habits, &h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return habits, nil
}

// CreateHabit inserts a new habit.
func (s *ActivityStore) CreateHabit(ctx context.Context, h *Habit) error {
	err := s.db.Pool().QueryRow(ctx,
		`INSERT INTO habits (id, user_id, name, active) VALUES ($1, $2, $3, TRUE) RETURNING created_at`,
		h.ID, h.UserID, h.Name,
	).Scan(&h.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert habit: %w", err)
	}

	h.Active = true
	return nil
}

// CompleteHabit records today's completion for a habit. Re-completing
// the same day is a no-op thanks to the unique constraint.
func (s *ActivityStore) CompleteHabit(ctx context.Context, habitID uuid.UUID) error {
	_, err := s.db.Pool().Exec(ctx, `
		INSERT INTO habit_completions (id, habit_id, completed_on)
		VALUES ($1, $2, CURRENT_DATE)
		ON CONFLICT (habit_id, completed_on) DO NOTHING
	`, uuid.New(), habitID)
	if err != nil {
		return fmt.Errorf("insert habit completion: %w", err)
	}

	return nil
}

// CreateJournalEntry inserts a journal entry.
func (s *ActivityStore) CreateJournalEntry(ctx context.Context, e *JournalEntry) error {
	err := s.db.Pool().QueryRow(ctx,
		`INSERT INTO journal_entries (id, user_id, content) VALUES ($1, $2, $3) RETURNING created_at`,
		e.ID, e.UserID, e.Content,
	).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}

	return nil
}

// ListJournalEntries returns a user's journal entries, newest first.
func (s *ActivityStore) ListJournalEntries(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*JournalEntry, error) {
	query := `
		SELECT id, user_id, content, created_at
		FROM journal_entries
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := s.db.Pool().Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query journal entries: %w", err)
	}
	defer rows.Close()

	var entries []*JournalEntry
	for rows.Next() {
		var e JournalEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Content, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return entries, nil
}

// CreateMoodLog inserts a mood check-in.
func (s *ActivityStore) CreateMoodLog(ctx context.Context, m *MoodLog) error {
	err := s.db.Pool().QueryRow(ctx,
		`INSERT INTO mood_logs (id, user_id, mood, note) VALUES ($1, $2, $3, $4) RETURNING created_at`,
		m.ID, m.UserID, m.Mood, m.Note,
	).Scan(&m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert mood log: %w", err)
	}

	return nil
}

// ListGoals returns all of a user's goals.
func (s *ActivityStore) ListGoals(ctx context.Context, userID uuid.UUID) ([]*Goal, error) {
	query := `
		SELECT id, user_id, title, completed, created_at
		FROM goals
		WHERE user_id = $1
		ORDER BY created_at ASC
	`

	rows, err := s.db.Pool().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query goals: %w", err)
	}
	defer rows.Close()

	var goals []*Goal
	for rows.Next() {
		var g Goal
		if err := rows.Scan(&g.ID, &g.UserID, &g.Title, &g.Completed, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		goals = append(goals, &g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return goals, nil
}

// CreateGoal inserts a new goal.
func (s *ActivityStore) CreateGoal(ctx context.Context, g *Goal) error {
	err := s.db.Pool().QueryRow(ctx,
		`INSERT INTO goals (id, user_id, title, completed) VALUES ($1, $2, $3, FALSE) RETURNING created_at`,
		g.ID, g.UserID, g.Title,
	).Scan(&g.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert goal: %w", err)
	}

	return nil
}

// CompleteGoal marks a goal as done.
func (s *ActivityStore) CompleteGoal(ctx context.Context, goalID uuid.UUID) error {
	result, err := s.db.Pool().Exec(ctx, `UPDATE goals SET completed = TRUE WHERE id = $1`, goalID)
	if err != nil {
		return fmt.Errorf("complete goal: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("goal %s: %w", goalID, ErrNotFound)
	}

	return nil
}
