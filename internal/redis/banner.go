package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// BannerService tracks per-user dashboard banner dismissals. A
// dismissal holds until the next local midnight, after which the banner
// shows again. The key simply expires at the day boundary.
type BannerService struct {
	client *Client
	logger *zap.Logger
}

func NewBannerService(client *Client, logger *zap.Logger) *BannerService {
	return &BannerService{client: client, logger: logger}
}

func bannerKey(userID uuid.UUID, day time.Time) string {
	return fmt.Sprintf("banner:dismissed:%s:%s", userID, day.Format("2006-01-02"))
}

// Dismiss records that the user closed today's banner.
func (s *BannerService) Dismiss(ctx context.Context, userID uuid.UUID, now time.Time) error {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	ttl := midnight.Sub(now)

	if err := s.client.rdb.Set(ctx, bannerKey(userID, now), "1", ttl).Err(); err != nil {
		return fmt.Errorf("set banner flag: %w", err)
	}

	s.logger.Debug("banner dismissed",
		zap.String("user_id", userID.String()),
		zap.Duration("ttl", ttl),
	)

	return nil
}

// Dismissed reports whether the user already closed today's banner.
func (s *BannerService) Dismissed(ctx context.Context, userID uuid.UUID, now time.Time) (bool, error) {
	_, err := s.client.rdb.Get(ctx, bannerKey(userID, now)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get banner flag: %w", err)
	}

	return true, nil
}
