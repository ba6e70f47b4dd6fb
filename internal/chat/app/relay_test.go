package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tour_chat_service/internal/chat/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func join(t *testing.T, f *relayFixture, s *Session, room, username string) {
	t.Helper()
	f.relay.Dispatch(context.Background(), s, frame(t, domain.JoinRoom, domain.JoinRoomEvent{Username: username, Room: room}))
}

func say(t *testing.T, f *relayFixture, s *Session, room, name, email, text string) {
	t.Helper()
	f.relay.Dispatch(context.Background(), s, frame(t, domain.ChatMessage, map[string]interface{}{
		"room":    room,
		"message": map[string]interface{}{"id": 1718000000000, "name": name, "senderEmail": email, "text": text},
	}))
}

func TestRelay_JoinBroadcastsNotice(t *testing.T) {
	f := newRelayFixture(t, nil, nil)
	a := f.relay.Connect(domain.Identity{}, false)
	b := f.relay.Connect(domain.Identity{}, false)

	join(t, f, a, "Sajek Valley", "Alice")
	got := drain(t, a)
	require.Len(t, got, 1)
	assert.Equal(t, domain.RoomNotice, got[0].Action)
	assert.Equal(t, "Alice joined the room", payloadString(t, got[0]))

	join(t, f, b, "Sajek Valley", "Bob")
	assert.Equal(t, "Bob joined the room", payloadString(t, drain(t, a)[0]))
	assert.Equal(t, "Bob joined the room", payloadString(t, drain(t, b)[0]))
}

func TestRelay_SajekValleyScenario(t *testing.T) {
	f := newRelayFixture(t, nil, nil)
	a := f.relay.Connect(domain.Identity{}, false)
	b := f.relay.Connect(domain.Identity{}, false)
	join(t, f, a, "Sajek Valley", "Alice")
	join(t, f, b, "Sajek Valley", "Bob")
	drain(t, a)
	drain(t, b)

	say(t, f, a, "Sajek Valley", "Alice", "alice@example.com", "hi")

	gotB := drain(t, b)
	require.Len(t, gotB, 1)
	msgB := payloadMessage(t, gotB[0])
	assert.Equal(t, "hi", msgB.Text)
	assert.Equal(t, "Alice", msgB.Name)
	assert.Equal(t, "alice@example.com", msgB.SenderEmail)
	assert.Equal(t, "1718000000000", msgB.ClientID)
	assert.True(t, msgB.Durable)

	gotA := drain(t, a)
	require.Len(t, gotA, 1, "sender receives its own message once")
	msgA := payloadMessage(t, gotA[0])
	assert.Equal(t, msgB, msgA, "identical text, sender and timestamp")

	history, err := f.messages.History(context.Background(), "Sajek Valley")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, msgA.ID, history[0].ID)
}

func TestRelay_RoomIsolationAndOpenJoin(t *testing.T) {
	f := newRelayFixture(t, nil, nil)
	a := f.relay.Connect(domain.Identity{}, false)
	outsider := f.relay.Connect(domain.Identity{}, false)
	join(t, f, a, "Sajek Valley", "Alice")
	join(t, f, outsider, "Bandarban", "Eve")
	drain(t, a)
	drain(t, outsider)

	say(t, f, a, "Sajek Valley", "Alice", "alice@example.com", "hi")
	assert.Empty(t, drain(t, outsider))

	// anyone can join any room by name when the guard is open
	join(t, f, outsider, "Sajek Valley", "Eve")
	drain(t, a)
	drain(t, outsider)
	say(t, f, a, "Sajek Valley", "Alice", "alice@example.com", "again")
	assert.Len(t, drain(t, outsider), 1)
}

func TestRelay_IdempotentRejoin(t *testing.T) {
	f := newRelayFixture(t, nil, nil)
	a := f.relay.Connect(domain.Identity{}, false)
	b := f.relay.Connect(domain.Identity{}, false)
	join(t, f, a, "r", "Alice")
	join(t, f, b, "r", "Bob")
	join(t, f, b, "r", "Bob")
	drain(t, a)
	got := drain(t, b)
	assert.Equal(t, []domain.Action{domain.RoomNotice, domain.RoomNotice}, actions(got), "notice on every join")

	say(t, f, a, "r", "Alice", "alice@example.com", "hi")
	assert.Len(t, drain(t, b), 1)
}

func TestRelay_SendRequiresMembership(t *testing.T) {
	f := newRelayFixture(t, nil, nil)
	a := f.relay.Connect(domain.Identity{}, false)

	say(t, f, a, "r", "Alice", "alice@example.com", "hi")
	got := drain(t, a)
	require.Len(t, got, 1)
	assert.Equal(t, domain.ErrorAction, got[0].Action)
	assert.Equal(t, domain.ErrNotInRoom.Error(), got[0].Error)

	history, _ := f.messages.History(context.Background(), "r")
	assert.Empty(t, history)
}

func TestRelay_InvalidFramesKeepConnection(t *testing.T) {
	f := newRelayFixture(t, nil, nil)
	a := f.relay.Connect(domain.Identity{}, false)

	f.relay.Dispatch(context.Background(), a, []byte(`garbage`))
	f.relay.Dispatch(context.Background(), a, []byte(`{"action":"dance","payload":{}}`))
	f.relay.Dispatch(context.Background(), a, []byte(`{"action":"joinRoom","payload":{"room":"r"}}`))

	got := drain(t, a)
	require.Len(t, got, 3)
	for _, fr := range got {
		assert.Equal(t, domain.ErrorAction, fr.Action)
		assert.False(t, fr.Success)
	}
	assert.False(t, a.Closed())

	join(t, f, a, "r", "Alice")
	assert.Equal(t, domain.RoomNotice, drain(t, a)[0].Action)
}

func TestRelay_TextTooLong(t *testing.T) {
	f := newRelayFixture(t, nil, nil)
	a := f.relay.Connect(domain.Identity{}, false)
	join(t, f, a, "r", "Alice")
	drain(t, a)

	long := make([]rune, f.relay.cfg.MaxTextLength+1)
	for i := range long {
		long[i] = 'x'
	}
	say(t, f, a, "r", "Alice", "alice@example.com", string(long))

	got := drain(t, a)
	require.Len(t, got, 1)
	assert.Equal(t, domain.ErrTextTooLong.Error(), got[0].Error)
}

func TestRelay_AppendFailure(t *testing.T) {
	repo := new(MockMessageRepository)
	repo.On("Append", mock.Anything, mock.Anything).Return("", errors.New("mongo down"))

	f := newRelayFixture(t, repo, nil)
	a := f.relay.Connect(domain.Identity{}, false)
	b := f.relay.Connect(domain.Identity{}, false)
	join(t, f, a, "r", "Alice")
	join(t, f, b, "r", "Bob")
	drain(t, a)
	drain(t, b)

	say(t, f, a, "r", "Alice", "alice@example.com", "hi")

	gotA := drain(t, a)
	require.Len(t, gotA, 1)
	assert.Equal(t, domain.ErrorAction, gotA[0].Action)
	assert.Empty(t, drain(t, b), "nothing broadcast when the store fails")
}

func TestRelay_VerifiedIdentityWins(t *testing.T) {
	f := newRelayFixture(t, nil, nil)
	a := f.relay.Connect(domain.Identity{Name: "Alice", Email: "alice@example.com"}, true)
	join(t, f, a, "r", "Mallory")
	assert.Equal(t, "Alice joined the room", payloadString(t, drain(t, a)[0]))

	say(t, f, a, "r", "Mallory", "mallory@example.com", "hi")
	msg := payloadMessage(t, drain(t, a)[0])
	assert.Equal(t, "Alice", msg.Name)
	assert.Equal(t, "alice@example.com", msg.SenderEmail)
}

func TestRelay_Typing(t *testing.T) {
	f := newRelayFixture(t, nil, nil)
	a := f.relay.Connect(domain.Identity{}, false)
	b := f.relay.Connect(domain.Identity{}, false)
	join(t, f, a, "r", "Alice")
	join(t, f, b, "r", "Bob")
	drain(t, a)
	drain(t, b)
	ctx := context.Background()

	f.relay.Dispatch(ctx, a, frame(t, domain.Typing, domain.TypingEvent{Username: "Alice", Room: "r"}))
	assert.Empty(t, drain(t, a), "typing goes to the other members only")
	got := drain(t, b)
	require.Len(t, got, 1)
	assert.Equal(t, domain.Typing, got[0].Action)
	assert.Equal(t, "Alice", payloadString(t, got[0]))
	assert.Equal(t, []string{"Alice"}, f.relay.Typing("r"))

	f.relay.Dispatch(ctx, a, frame(t, domain.StopTyping, domain.StopTypingEvent{Username: "Alice", Room: "r"}))
	got = drain(t, b)
	require.Len(t, got, 1)
	assert.Equal(t, domain.StopTyping, got[0].Action)
	assert.Empty(t, f.relay.Typing("r"))

	// nothing to clear, nothing broadcast
	f.relay.Dispatch(ctx, a, frame(t, domain.StopTyping, domain.StopTypingEvent{Username: "Alice", Room: "r"}))
	assert.Empty(t, drain(t, b))
	assert.Empty(t, drain(t, a))
}

func TestRelay_TypingExpires(t *testing.T) {
	f := newRelayFixture(t, nil, nil)
	a := f.relay.Connect(domain.Identity{}, false)
	b := f.relay.Connect(domain.Identity{}, false)
	join(t, f, a, "r", "Alice")
	join(t, f, b, "r", "Bob")
	f.relay.Dispatch(context.Background(), a, frame(t, domain.Typing, domain.TypingEvent{Username: "Alice", Room: "r"}))
	drain(t, a)
	drain(t, b)

	f.advance(500 * time.Millisecond)
	f.relay.Sweep(context.Background())
	assert.Empty(t, drain(t, b))

	f.advance(f.relay.cfg.TypingTTL)
	f.relay.Sweep(context.Background())
	got := drain(t, b)
	require.Len(t, got, 1)
	assert.Equal(t, domain.StopTyping, got[0].Action)
	assert.Equal(t, "Alice", payloadString(t, got[0]))
	assert.Empty(t, f.relay.Typing("r"))
}

func TestRelay_SweepExpiresUnderRoomLock(t *testing.T) {
	f := newRelayFixture(t, nil, nil)
	a := f.relay.Connect(domain.Identity{}, false)
	b := f.relay.Connect(domain.Identity{}, false)
	join(t, f, a, "r", "Alice")
	join(t, f, b, "r", "Bob")
	f.relay.Dispatch(context.Background(), a, frame(t, domain.Typing, domain.TypingEvent{Username: "Alice", Room: "r"}))
	drain(t, a)
	drain(t, b)
	f.advance(2 * f.relay.cfg.TypingTTL)

	unlock := f.relay.locks.Lock("r")
	done := make(chan struct{})
	go func() {
		f.relay.Sweep(context.Background())
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []string{"Alice"}, f.relay.Typing("r"), "a held room is not expired behind its lock")
	unlock()
	<-done

	assert.Equal(t, []domain.Action{domain.StopTyping}, actions(drain(t, b)))
	assert.Empty(t, f.relay.Typing("r"))
}

func TestRelay_RefreshBeforeSweepKeepsTyping(t *testing.T) {
	f := newRelayFixture(t, nil, nil)
	a := f.relay.Connect(domain.Identity{}, false)
	b := f.relay.Connect(domain.Identity{}, false)
	join(t, f, a, "r", "Alice")
	join(t, f, b, "r", "Bob")
	f.relay.Dispatch(context.Background(), a, frame(t, domain.Typing, domain.TypingEvent{Username: "Alice", Room: "r"}))
	f.advance(2 * f.relay.cfg.TypingTTL)
	f.relay.Dispatch(context.Background(), a, frame(t, domain.Typing, domain.TypingEvent{Username: "Alice", Room: "r"}))
	drain(t, a)
	drain(t, b)

	f.relay.Sweep(context.Background())
	assert.Empty(t, drain(t, b))
	assert.Equal(t, []string{"Alice"}, f.relay.Typing("r"))
}

func TestRelay_DisconnectClearsTyping(t *testing.T) {
	f := newRelayFixture(t, nil, nil)
	a := f.relay.Connect(domain.Identity{}, false)
	b := f.relay.Connect(domain.Identity{}, false)
	join(t, f, a, "r", "Alice")
	join(t, f, b, "r", "Bob")
	f.relay.Dispatch(context.Background(), a, frame(t, domain.Typing, domain.TypingEvent{Username: "Alice", Room: "r"}))
	drain(t, b)

	f.relay.Disconnect(context.Background(), a)

	got := drain(t, b)
	require.Len(t, got, 1, "stopTyping only, no left notice")
	assert.Equal(t, domain.StopTyping, got[0].Action)
	assert.Equal(t, "Alice", payloadString(t, got[0]))
	assert.True(t, a.Closed())
	assert.Len(t, f.registry.Members("r"), 1)
	assert.Empty(t, f.relay.Typing("r"))
}

func TestRelay_LeaveRoom(t *testing.T) {
	f := newRelayFixture(t, nil, nil)
	a := f.relay.Connect(domain.Identity{}, false)
	b := f.relay.Connect(domain.Identity{}, false)
	join(t, f, a, "r", "Alice")
	join(t, f, b, "r", "Bob")
	f.relay.Dispatch(context.Background(), a, frame(t, domain.Typing, domain.TypingEvent{Username: "Alice", Room: "r"}))
	drain(t, a)
	drain(t, b)

	f.relay.Dispatch(context.Background(), a, frame(t, domain.LeaveRoom, domain.LeaveRoomEvent{Room: "r"}))
	assert.Equal(t, []domain.Action{domain.StopTyping}, actions(drain(t, b)))
	assert.Empty(t, drain(t, a))
	assert.False(t, f.registry.IsMember("r", a.ID))

	say(t, f, b, "r", "Bob", "bob@example.com", "still here?")
	assert.Empty(t, drain(t, a))

	f.relay.Dispatch(context.Background(), a, frame(t, domain.LeaveRoom, domain.LeaveRoomEvent{Room: "r"}))
	assert.Equal(t, domain.ErrNotInRoom.Error(), drain(t, a)[0].Error)
}

func TestRelay_BookingGuard(t *testing.T) {
	repo := new(MockBookingRepository)
	repo.On("FindPaidGroups", mock.Anything, "alice@example.com").Return(sajekGroups, nil)
	repo.On("FindPaidGroups", mock.Anything, "eve@example.com").Return([]domain.Group{}, nil)

	f := newRelayFixture(t, nil, NewBookingGuard(NewGroupUseCase(repo, nil, time.Minute)))

	alice := f.relay.Connect(domain.Identity{Name: "Alice", Email: "alice@example.com"}, true)
	join(t, f, alice, "Sajek Valley", "Alice")
	assert.Equal(t, domain.RoomNotice, drain(t, alice)[0].Action)

	eve := f.relay.Connect(domain.Identity{Name: "Eve", Email: "eve@example.com"}, true)
	join(t, f, eve, "Sajek Valley", "Eve")
	got := drain(t, eve)
	require.Len(t, got, 1)
	assert.Equal(t, domain.ErrNotEligible.Error(), got[0].Error)
	assert.False(t, f.registry.IsMember("Sajek Valley", eve.ID))
	assert.Empty(t, drain(t, alice))

	anon := f.relay.Connect(domain.Identity{}, false)
	join(t, f, anon, "Sajek Valley", "Anon")
	assert.Equal(t, domain.ErrorAction, drain(t, anon)[0].Action)

	// an unverified session announcing a booked email is still refused
	impostor := f.relay.Connect(domain.Identity{}, false)
	f.relay.Dispatch(context.Background(), impostor, frame(t, domain.JoinRoom, domain.JoinRoomEvent{
		Username: "Eve", Email: "alice@example.com", Room: "Sajek Valley",
	}))
	got = drain(t, impostor)
	require.Len(t, got, 1)
	assert.Equal(t, domain.ErrNotEligible.Error(), got[0].Error)
	assert.False(t, f.registry.IsMember("Sajek Valley", impostor.ID))
	assert.Empty(t, drain(t, alice))
}

func TestRelay_TokenNameWithoutUsername(t *testing.T) {
	f := newRelayFixture(t, nil, nil)
	alice := f.relay.Connect(domain.Identity{Name: "Alice", Email: "alice@example.com"}, true)
	b := f.relay.Connect(domain.Identity{}, false)
	join(t, f, b, "r", "Bob")
	drain(t, b)

	join(t, f, alice, "r", "")
	assert.Equal(t, "Alice joined the room", payloadString(t, drain(t, alice)[0]))
	assert.Equal(t, "Alice joined the room", payloadString(t, drain(t, b)[0]))

	f.relay.Dispatch(context.Background(), alice, frame(t, domain.Typing, domain.TypingEvent{Room: "r"}))
	assert.Equal(t, "Alice", payloadString(t, drain(t, b)[0]))

	anon := f.relay.Connect(domain.Identity{}, false)
	join(t, f, anon, "r", "")
	got := drain(t, anon)
	require.Len(t, got, 1)
	assert.Equal(t, domain.ErrorAction, got[0].Action)
	assert.Contains(t, got[0].Error, "username is required")
	assert.False(t, f.registry.IsMember("r", anon.ID))
}

func TestRelay_PerRoomOrdering(t *testing.T) {
	f := newRelayFixture(t, nil, nil)
	f.relay.now = time.Now
	reader := NewSession(domain.Identity{}, false, 1024)
	f.registry.Join("r", reader)

	const writers, perWriter = 8, 20
	sessions := make([]*Session, writers)
	for i := range sessions {
		sessions[i] = NewSession(domain.Identity{}, false, 1024)
		f.registry.Join("r", sessions[i])
	}

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				_, err := f.messages.Execute(context.Background(), "r", domain.Message{Text: s.ID, SenderEmail: s.ID})
				assert.NoError(t, err)
			}
		}(s)
	}
	wg.Wait()

	live := drain(t, reader)
	require.Len(t, live, writers*perWriter)
	history, err := f.messages.History(context.Background(), "r")
	require.NoError(t, err)
	for i := range history {
		assert.Equal(t, history[i].ID, payloadMessage(t, live[i]).ID, "live order equals history order")
	}
}
