package app

import (
	"context"
	"time"

	"tour_chat_service/internal/chat/domain"

	"github.com/stretchr/testify/mock"
)

// MockMessageRepository Mock MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

// Append mock append, sets msg.ID to the returned id
func (m *MockMessageRepository) Append(ctx context.Context, msg *domain.Message) (string, error) {
	args := m.Called(ctx, msg)
	id := args.String(0)
	if args.Error(1) == nil {
		msg.ID = id
	}
	return id, args.Error(1)
}

// ListByRoom mock list
func (m *MockMessageRepository) ListByRoom(ctx context.Context, room string) ([]domain.Message, error) {
	args := m.Called(ctx, room)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockBookingRepository Mock BookingRepository
type MockBookingRepository struct {
	mock.Mock
}

// FindPaidGroups mock paid groups
func (m *MockBookingRepository) FindPaidGroups(ctx context.Context, email string) ([]domain.Group, error) {
	args := m.Called(ctx, email)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Group), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockGroupCache Mock RedisRepository[[]domain.Group]
type MockGroupCache struct {
	mock.Mock
}

// Set mock set
func (m *MockGroupCache) Set(ctx context.Context, key string, value []domain.Group, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

// Get mock get
func (m *MockGroupCache) Get(ctx context.Context, key string) ([]domain.Group, error) {
	args := m.Called(ctx, key)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Group), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockEventPublisher Mock EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

// Publish mock publish
func (m *MockEventPublisher) Publish(ctx context.Context, ev domain.MessageEvent) error {
	return m.Called(ctx, ev).Error(0)
}

// Close mock close
func (m *MockEventPublisher) Close() error {
	return m.Called().Error(0)
}

// MockBroadcaster Mock Broadcaster
type MockBroadcaster struct {
	mock.Mock
}

// Publish mock publish
func (m *MockBroadcaster) Publish(ctx context.Context, room string, resp domain.WSResponse, except string) error {
	return m.Called(ctx, room, resp, except).Error(0)
}
