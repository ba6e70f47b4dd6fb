package app

import (
	"context"
	"errors"
	"time"

	"tour_chat_service/internal/chat/domain"
	"tour_chat_service/internal/chat/repository"
	"tour_chat_service/pkg/database"
	errprocess "tour_chat_service/pkg/err"
	"tour_chat_service/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const groupCachePrefix = "chat:groups:"

// GroupUseCase paid-booking groups of a user
type GroupUseCase struct {
	bookings repository.BookingRepository
	cache    database.RedisRepository[[]domain.Group]
	ttl      time.Duration
	flight   singleflight.Group
}

// NewGroupUseCase create GroupUseCase, cache may be nil
func NewGroupUseCase(
	bookings repository.BookingRepository,
	cache database.RedisRepository[[]domain.Group],
	ttl time.Duration,
) *GroupUseCase {
	return &GroupUseCase{bookings: bookings, cache: cache, ttl: ttl}
}

// Groups the user's paid bookings as chat groups, read through the cache
func (uc *GroupUseCase) Groups(ctx context.Context, email string) ([]domain.Group, error) {
	if email == "" {
		return []domain.Group{}, nil
	}

	key := groupCachePrefix + email
	if uc.cache != nil {
		groups, err := uc.cache.Get(ctx, key)
		if err == nil {
			return groups, nil
		}
		if !errors.Is(err, database.ErrCacheMiss) {
			logger.Log.Warn("group cache read failed", zap.String("email", email), zap.Error(err))
		}
	}

	// concurrent misses for one email share a single booking lookup
	v, err, _ := uc.flight.Do(key, func() (interface{}, error) {
		groups, err := uc.bookings.FindPaidGroups(ctx, email)
		if err != nil {
			return nil, errprocess.Wrap(err, "find paid groups", zap.String("email", email))
		}
		if uc.cache != nil {
			if err := uc.cache.Set(ctx, key, groups, uc.ttl); err != nil {
				logger.Log.Warn("group cache write failed", zap.String("email", email), zap.Error(err))
			}
		}
		return groups, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Group), nil
}

// CanJoin true when one of the identity's groups is room
func (uc *GroupUseCase) CanJoin(ctx context.Context, identity domain.Identity, room string) (bool, error) {
	groups, err := uc.Groups(ctx, identity.Email)
	if err != nil {
		return false, err
	}
	for _, g := range groups {
		if g.TourName == room {
			return true, nil
		}
	}
	return false, nil
}
