package app

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"

	"tour_chat_service/internal/chat/domain"
	"tour_chat_service/internal/chat/repository"
	"tour_chat_service/pkg/logger"

	"go.uber.org/zap"
)

const (
	// RoomChannelPrefix redis channel prefix of room broadcasts
	RoomChannelPrefix = "chat:room:"

	roomLockStripes = 64
)

// RoomChannel redis channel of room
func RoomChannel(room string) string {
	return RoomChannelPrefix + room
}

// RoomLocks one critical section per room (striped), everything that is
// broadcast to a room is committed while holding it
type RoomLocks struct {
	stripes [roomLockStripes]sync.Mutex
}

// NewRoomLocks create RoomLocks
func NewRoomLocks() *RoomLocks {
	return &RoomLocks{}
}

// Lock lock room and return the unlock func
func (l *RoomLocks) Lock(room string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(room))
	m := &l.stripes[h.Sum32()%roomLockStripes]
	m.Lock()
	return m.Unlock
}

// Broadcaster deliver a frame to the members of a room, except one session
type Broadcaster interface {
	Publish(ctx context.Context, room string, resp domain.WSResponse, except string) error
}

type localBroadcaster struct {
	registry *RoomRegistry
}

// NewLocalBroadcaster single instance fan-out through the registry
func NewLocalBroadcaster(registry *RoomRegistry) Broadcaster {
	return &localBroadcaster{registry: registry}
}

func (b *localBroadcaster) Publish(_ context.Context, room string, resp domain.WSResponse, except string) error {
	frame, err := resp.Encode()
	if err != nil {
		return fmt.Errorf("encode %s: %w", resp.Action, err)
	}
	deliverLocal(b.registry, room, frame, except)
	return nil
}

// deliverLocal queue frame on every local member of room, slow consumers are closed
func deliverLocal(registry *RoomRegistry, room string, frame []byte, except string) int {
	delivered := 0
	for _, s := range registry.Members(room) {
		if s.ID == except {
			continue
		}
		if s.Enqueue(frame) {
			delivered++
			continue
		}
		if !s.Closed() {
			logger.Log.Warn("evicting slow session",
				zap.String("session", s.ID),
				zap.String("room", room),
			)
			s.Close()
		}
	}
	return delivered
}

// clusterFrame what travels between instances
type clusterFrame struct {
	Room   string          `json:"room"`
	Except string          `json:"except,omitempty"`
	Frame  json.RawMessage `json:"frame"`
}

// RedisBroadcaster room fan-out shared by every instance subscribed to the same redis
type RedisBroadcaster struct {
	pubsub   repository.PubSub
	registry *RoomRegistry
}

// NewRedisBroadcaster create a RedisBroadcaster, call Start before publishing
func NewRedisBroadcaster(pubsub repository.PubSub, registry *RoomRegistry) *RedisBroadcaster {
	return &RedisBroadcaster{pubsub: pubsub, registry: registry}
}

// Start subscribe to every room channel until ctx is done
func (b *RedisBroadcaster) Start(ctx context.Context) error {
	return b.pubsub.PSubscribe(ctx, RoomChannelPrefix+"*", b.handle)
}

func (b *RedisBroadcaster) handle(channel string, payload []byte) {
	var f clusterFrame
	if err := json.Unmarshal(payload, &f); err != nil {
		logger.Log.Error("drop malformed cluster frame", zap.String("channel", channel), zap.Error(err))
		return
	}
	if f.Room == "" {
		f.Room = strings.TrimPrefix(channel, RoomChannelPrefix)
	}
	deliverLocal(b.registry, f.Room, f.Frame, f.Except)
}

// Publish send the frame to every instance, including this one
func (b *RedisBroadcaster) Publish(ctx context.Context, room string, resp domain.WSResponse, except string) error {
	frame, err := resp.Encode()
	if err != nil {
		return fmt.Errorf("encode %s: %w", resp.Action, err)
	}
	return b.pubsub.Publish(ctx, RoomChannel(room), clusterFrame{Room: room, Except: except, Frame: frame})
}
