package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NotificationStore handles in-app notification rows.
type NotificationStore struct {
	db     *DB
	logger *zap.Logger
}

func NewNotificationStore(db *DB, logger *zap.Logger) *NotificationStore {
	return &NotificationStore{db: db, logger: logger}
}

// Create inserts a new notification.
func (s *NotificationStore) Create(ctx context.Context, notif *Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, title, message, type, link)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	err := s.db.Pool().QueryRow(ctx, query,
		notif.ID,
		notif.UserID,
		notif.Title,
		notif.Message,
		notif.Type,
		notif.Link,
	).Scan(&notif.CreatedAt)

	if err != nil {
		s.logger.Error("failed to create notification",
			zap.Error(err),
			zap.String("notification_id", notif.ID.String()),
		)
		return fmt.Errorf("insert notification: %w", err)
	}

	s.logger.Info("notification created",
		zap.String("notification_id", notif.ID.String()),
		zap.String("user_id", notif.UserID.String()),
		zap.String("title", notif.Title),
	)

	return nil
}

// ExistsToday reports whether the user already has a notification with
// the given title created on the calendar day of now. This is the dedup
// guard: check-then-insert, not a uniqueness constraint, so overlapping
// ticks can still double-insert.
func (s *NotificationStore) ExistsToday(ctx context.Context, userID uuid.UUID, title string, now time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM notifications
			WHERE user_id = $1
			  AND title = $2
			  AND created_at::date = $3::date
		)
	`

	var exists bool
	if err := s.db.Pool().QueryRow(ctx, query, userID, title, now).Scan(&exists); err != nil {
		return false, fmt.Errorf("query existing notification: %w", err)
	}

	return exists, nil
}

// ListByUser retrieves notifications for a user with pagination.
func (s *NotificationStore) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Notification, error) {
	query := `
		SELECT id, user_id, title, message, type, link, read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := s.db.Pool().Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*Notification
	for rows.Next() {
		var notif Notification
		err := rows.Scan(
			&notif.ID,
			&notif.UserID,
			&notif.Title,
			&notif.Message,
			&notif.Type,
			&notif.Link,
			&notif.Read,
			&notif.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, &notif)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return notifications, nil
}

// MarkRead flips the read flag, the only mutation a notification allows.
func (s *NotificationStore) MarkRead(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.Pool().Exec(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}

	return nil
}
