package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// ReminderStore handles class reminder rows and the live class lookups
// the scheduler and dispatcher need.
type ReminderStore struct {
	db     *DB
	logger *zap.Logger
}

func NewReminderStore(db *DB, logger *zap.Logger) *ReminderStore {
	return &ReminderStore{db: db, logger: logger}
}

// GetLiveClass retrieves a live class by ID.
func (s *ReminderStore) GetLiveClass(ctx context.Context, id uuid.UUID) (*LiveClass, error) {
	query := `SELECT id, title, start_time, join_url, created_at FROM live_classes WHERE id = $1`

	var class LiveClass
	err := s.db.Pool().QueryRow(ctx, query, id).Scan(
		&class.ID,
		&class.Title,
		&class.StartTime,
		&class.JoinURL,
		&class.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query live class: %w", err)
	}

	return &class, nil
}

// CreateClassReminder persists a scheduled reminder with sent=false.
// scheduled_reminder_time is taken as computed by the caller; a time in
// the past simply makes the row immediately due.
func (s *ReminderStore) CreateClassReminder(ctx context.Context, rem *ClassReminder) error {
	query := `
		INSERT INTO class_reminders (
			id, user_id, live_class_id, notification_type,
			reminder_minutes_before, scheduled_reminder_time, sent
		) VALUES ($1, $2, $3, $4, $5, $6, FALSE)
		RETURNING created_at
	`

	err := s.db.Pool().QueryRow(ctx, query,
		rem.ID,
		rem.UserID,
		rem.LiveClassID,
		rem.NotificationType,
		rem.ReminderMinutesBefore,
		rem.ScheduledReminderTime,
	).Scan(&rem.CreatedAt)

	if err != nil {
		s.logger.Error("failed to create class reminder",
			zap.Error(err),
			zap.String("reminder_id", rem.ID.String()),
		)
		return fmt.Errorf("insert class reminder: %w", err)
	}

	s.logger.Info("class reminder scheduled",
		zap.String("reminder_id", rem.ID.String()),
		zap.String("user_id", rem.UserID.String()),
		zap.String("channel", rem.NotificationType),
		zap.Time("scheduled_for", rem.ScheduledReminderTime),
	)

	return nil
}

// DueReminders returns unsent reminders for the given channel whose
// scheduled time has passed, joined to class and recipient details.
func (s *ReminderStore) DueReminders(ctx context.Context, channel string, now time.Time) ([]*DueReminder, error) {
	query := `
		SELECT
			cr.id, cr.user_id, cr.live_class_id, cr.notification_type,
			cr.reminder_minutes_before, cr.scheduled_reminder_time, cr.sent, cr.created_at,
			lc.title, lc.start_time, lc.join_url,
			u.email, u.full_name
		FROM class_reminders cr
		JOIN live_classes lc ON lc.id = cr.live_class_id
		JOIN users u ON u.id = cr.user_id
		WHERE cr.notification_type = $1
		  AND cr.sent = FALSE
		  AND cr.scheduled_reminder_time <= $2
		ORDER BY cr.scheduled_reminder_time ASC
	`

	rows, err := s.db.Pool().Query(ctx, query, channel, now)
	if err != nil {
		return nil, fmt.Errorf("query due reminders: %w", err)
	}
	defer rows.Close()

	var due []*DueReminder
	for rows.Next() {
		var d DueReminder
		err := rows.Scan(
			&d.ID, &d.UserID, &d.LiveClassID, &d.NotificationType,
			&d.ReminderMinutesBefore, &d.ScheduledReminderTime, &d.Sent, &d.CreatedAt,
			&d.ClassTitle, &d.ClassStartTime, &d.JoinURL,
			&d.UserEmail, &d.UserName,
		)
		if err != nil {
			return nil, fmt.Errorf("scan due reminder: %w", err)
		}
		due = append(due, &d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return due, nil
}

// MarkSent flips sent to true, permanently excluding the row from the
// due set.
func (s *ReminderStore) MarkSent(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.Pool().Exec(ctx, `UPDATE class_reminders SET sent = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("class reminder %s: %w", id, ErrNotFound)
	}

	return nil
}

// ListByUser returns a user's scheduled reminders, most recent first.
func (s *ReminderStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*ClassReminder, error) {
	query := `
		SELECT id, user_id, live_class_id, notification_type,
		       reminder_minutes_before, scheduled_reminder_time, sent, created_at
		FROM class_reminders
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := s.db.Pool().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query class reminders: %w", err)
	}
	defer rows.Close()

	var reminders []*ClassReminder
	for rows.Next() {
		var rem ClassReminder
		err := rows.Scan(
			&rem.ID, &rem.UserID, &rem.LiveClassID, &rem.NotificationType,
			&rem.ReminderMinutesBefore, &rem.ScheduledReminderTime, &rem.Sent, &rem.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan class reminder: %w", err)
		}
		reminders = append(reminders, &rem)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return reminders, nil
}
