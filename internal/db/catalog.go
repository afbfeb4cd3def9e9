package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// CatalogStore handles recorded session rows synced from the course
// platform. Lookups are by natural key so syncs stay idempotent.
type CatalogStore struct {
	db     *DB
	logger *zap.Logger
}

func NewCatalogStore(db *DB, logger *zap.Logger) *CatalogStore {
	return &CatalogStore{db: db, logger: logger}
}

const sessionColumns = `
	id, title, video_url, instructor, category, tags, duration_minutes,
	kajabi_product_id, kajabi_offering_id, created_at, updated_at
`

func scanSession(row pgx.Row) (*RecordedSession, error) {
	var sess RecordedSession
	err := row.Scan(
		&sess.ID, &sess.Title, &sess.VideoURL, &sess.Instructor,
		&sess.Category, &sess.Tags, &sess.DurationMinutes,
		&sess.KajabiProductID, &sess.KajabiOfferingID,
		&sess.CreatedAt, &sess.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// GetByVideoURL looks up a session by its video URL natural key.
func (s *CatalogStore) GetByVideoURL(ctx context.Context, videoURL string) (*RecordedSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM recorded_sessions WHERE video_url = $1`

	sess, err := scanSession(s.db.Pool().QueryRow(ctx, query, videoURL))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query session by url: %w", err)
	}

	return sess, nil
}

// GetByKajabiIDs looks up a session by the product/offering ID pair.
func (s *CatalogStore) GetByKajabiIDs(ctx context.Context, productID, offeringID string) (*RecordedSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM recorded_sessions
		WHERE kajabi_product_id = $1 AND kajabi_offering_id = $2`

	sess, err := scanSession(s.db.Pool().QueryRow(ctx, query, productID, offeringID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query session by kajabi ids: %w", err)
	}

	return sess, nil
}

// Insert creates a new catalog row.
func (s *CatalogStore) Insert(ctx context.Context, sess *RecordedSession) error {
	query := `
		INSERT INTO recorded_sessions (
			id, title, video_url, instructor, category, tags,
			duration_minutes, kajabi_product_id, kajabi_offering_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`

	err := s.db.Pool().QueryRow(ctx, query,
		sess.ID, sess.Title, sess.VideoURL, sess.Instructor,
		sess.Category, sess.Tags, sess.DurationMinutes,
		sess.KajabiProductID, sess.KajabiOfferingID,
	).Scan(&sess.CreatedAt, &sess.UpdatedAt)

	if err != nil {
		s.logger.Error("failed to insert session",
			zap.Error(err),
			zap.String("video_url", sess.VideoURL),
		)
		return fmt.Errorf("insert session: %w", err)
	}

	return nil
}

// Update rewrites the mutable fields of an existing catalog row,
// matched by ID.
func (s *CatalogStore) Update(ctx context.Context, sess *RecordedSession) error {
	query := `
		UPDATE recorded_sessions SET
			title = $1, video_url = $2, instructor = $3, category = $4,
			tags = $5, duration_minutes = $6,
			kajabi_product_id = $7, kajabi_offering_id = $8,
			updated_at = NOW()
		WHERE id = $9
		RETURNING updated_at
	`

	err := s.db.Pool().QueryRow(ctx, query,
		sess.Title, sess.VideoURL, sess.Instructor, sess.Category,
		sess.Tags, sess.DurationMinutes,
		sess.KajabiProductID, sess.KajabiOfferingID,
		sess.ID,
	).Scan(&sess.UpdatedAt)

	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}

	return nil
}

// List returns catalog entries with pagination.
func (s *CatalogStore) List(ctx context.Context, limit, offset int) ([]*RecordedSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM recorded_sessions
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := s.db.Pool().Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*RecordedSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return sessions, nil
}
