package app

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"tour_chat_service/internal/chat/domain"
	"tour_chat_service/internal/chat/repository"
	errprocess "tour_chat_service/pkg/err"
	"tour_chat_service/pkg/logger"

	"go.uber.org/zap"
)

// SendMessageUseCase persists chat messages and relays them to the room
type SendMessageUseCase struct {
	msgRepo       repository.MessageRepository
	broadcaster   Broadcaster
	events        repository.EventPublisher
	locks         *RoomLocks
	maxTextLength int
	now           func() time.Time
}

// NewSendMessageUseCase init send message use case
func NewSendMessageUseCase(
	msgRepo repository.MessageRepository,
	broadcaster Broadcaster,
	events repository.EventPublisher,
	locks *RoomLocks,
	maxTextLength int,
) *SendMessageUseCase {
	if events == nil {
		events = repository.NewNopEventPublisher()
	}
	return &SendMessageUseCase{
		msgRepo:       msgRepo,
		broadcaster:   broadcaster,
		events:        events,
		locks:         locks,
		maxTextLength: maxTextLength,
		now:           time.Now,
	}
}

// Validate check the text of msg
func (uc *SendMessageUseCase) Validate(msg domain.Message) error {
	if strings.TrimSpace(msg.Text) == "" {
		return domain.ErrEmptyText
	}
	if uc.maxTextLength > 0 && utf8.RuneCountInString(msg.Text) > uc.maxTextLength {
		return domain.ErrTextTooLong
	}
	return nil
}

// Execute store msg in room, then broadcast the stored copy to every member.
// Nothing is broadcast when the store fails.
func (uc *SendMessageUseCase) Execute(ctx context.Context, room string, msg domain.Message) (domain.Message, error) {
	if err := uc.Validate(msg); err != nil {
		return domain.Message{}, err
	}

	msg.TourName = room
	if msg.Date == "" {
		msg.Date = domain.FormatDate(uc.now())
	}

	unlock := uc.locks.Lock(room)
	if _, err := uc.msgRepo.Append(ctx, &msg); err != nil {
		unlock()
		return domain.Message{}, errprocess.Wrap(err, "append message", zap.String("room", room))
	}
	msg.Durable = true

	err := uc.broadcaster.Publish(ctx, room, domain.NewResponse(domain.ChatMessage, msg), "")
	unlock()
	if err != nil {
		// already durable, members will see it in history
		logger.Log.Error("broadcast message failed", zap.String("room", room), zap.String("id", msg.ID), zap.Error(err))
	}

	if err := uc.events.Publish(ctx, domain.NewMessageEvent(msg, uc.now())); err != nil {
		logger.Log.Warn("publish message event failed", zap.String("id", msg.ID), zap.Error(err))
	}
	return msg, nil
}

// History every message of room in send order
func (uc *SendMessageUseCase) History(ctx context.Context, room string) ([]domain.Message, error) {
	return uc.msgRepo.ListByRoom(ctx, room)
}
