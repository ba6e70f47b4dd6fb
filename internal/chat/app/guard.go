package app

import (
	"context"

	"tour_chat_service/internal/chat/domain"
)

// RoomGuard decide whether an identity may join a room. verified is true only
// when the identity came from a checked token.
type RoomGuard interface {
	CanJoin(ctx context.Context, identity domain.Identity, verified bool, room string) (bool, error)
}

type openGuard struct{}

// NewOpenGuard admit everyone to every room
func NewOpenGuard() RoomGuard {
	return openGuard{}
}

func (openGuard) CanJoin(context.Context, domain.Identity, bool, string) (bool, error) {
	return true, nil
}

type bookingGuard struct {
	groups *GroupUseCase
}

// NewBookingGuard admit only verified identities holding a paid booking of the tour
func NewBookingGuard(groups *GroupUseCase) RoomGuard {
	return &bookingGuard{groups: groups}
}

func (g *bookingGuard) CanJoin(ctx context.Context, identity domain.Identity, verified bool, room string) (bool, error) {
	if !verified || identity.Email == "" {
		return false, nil
	}
	return g.groups.CanJoin(ctx, identity, room)
}
