package client

import (
	"context"
	"net"
	"os"
	"testing"
	"time"

	"tour_chat_service/internal/chat/app"
	"tour_chat_service/internal/chat/domain"
	"tour_chat_service/internal/chat/repository"
	"tour_chat_service/internal/chat/router"
	"tour_chat_service/pkg/config"
	"tour_chat_service/pkg/logger"
	t_token "tour_chat_service/pkg/token"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.SetNewNop()
	os.Exit(m.Run())
}

type fixedBookings map[string][]domain.Group

func (b fixedBookings) FindPaidGroups(_ context.Context, email string) ([]domain.Group, error) {
	return b[email], nil
}

func startRelay(t *testing.T) string {
	t.Helper()

	cfg := config.RelayConfig{TypingTTL: 5 * time.Second}.WithDefaults()
	registry := app.NewRoomRegistry()
	locks := app.NewRoomLocks()
	broadcaster := app.NewLocalBroadcaster(registry)
	messages := app.NewSendMessageUseCase(repository.NewMemoryMessageRepository(), broadcaster, nil, locks, cfg.MaxTextLength)
	groups := app.NewGroupUseCase(fixedBookings{
		"alice@example.com": {{ID: "b1", TourName: "Sajek Valley", Image: domain.DefaultImage}},
	}, nil, time.Minute)
	relay := app.NewRelay(cfg, registry, app.NewPresenceTracker(cfg.TypingTTL), broadcaster, nil, messages, locks)

	f := fiber.New(fiber.Config{DisableStartupMessage: true})
	router.RegisterRoutes(f, app.NewChatHTTPHandler(messages, groups, nil), app.NewChatWebsocketHandler(relay, cfg), false)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = f.Listener(ln) }()
	t.Cleanup(func() { _ = f.Shutdown() })

	return "http://" + ln.Addr().String()
}

func dialAs(t *testing.T, server, name, email string) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	c, err := Dial(ctx, Config{Server: server, Name: name, Email: email, TypingIdle: 100 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// await read events until match accepts one
func await(t *testing.T, c *Client, match func(Event) bool) Event {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-c.Events():
			require.True(t, ok, "connection closed")
			if match(ev) {
				return ev
			}
		case <-timeout:
			t.Fatal("timed out waiting for event")
		}
	}
}

func action(a domain.Action) func(Event) bool {
	return func(ev Event) bool { return ev.Action == a }
}

func TestClient_SajekValley(t *testing.T) {
	server := startRelay(t)

	alice := dialAs(t, server, "Alice", "alice@example.com")
	bob := dialAs(t, server, "Bob", "bob@example.com")

	require.NoError(t, alice.JoinRoom("Sajek Valley"))
	await(t, alice, action(domain.RoomNotice))
	require.NoError(t, bob.JoinRoom("Sajek Valley"))
	await(t, bob, action(domain.RoomNotice))

	sent, err := alice.Send("hi")
	require.NoError(t, err)
	require.Len(t, alice.View().Messages(), 1, "optimistic entry shows immediately")

	got := await(t, bob, action(domain.ChatMessage))
	assert.True(t, got.Fresh)
	assert.Equal(t, "hi", got.Message.Text)
	assert.Equal(t, "Alice", got.Message.Name)
	assert.Equal(t, sent.Date, got.Message.Date)
	assert.Len(t, bob.View().Messages(), 1)

	echo := await(t, alice, action(domain.ChatMessage))
	assert.False(t, echo.Fresh)

	msgs := alice.View().Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, sent.ClientID, msgs[0].ClientID)
	assert.NotEmpty(t, msgs[0].ID)
	assert.True(t, msgs[0].Durable)

	t.Run("late joiner hydrates history", func(t *testing.T) {
		carol := dialAs(t, server, "Carol", "carol@example.com")
		require.NoError(t, carol.JoinRoom("Sajek Valley"))

		history := carol.View().Messages()
		require.Len(t, history, 1)
		assert.Equal(t, "hi", history[0].Text)
	})
}

func TestClient_TokenIdentity(t *testing.T) {
	server := startRelay(t)
	bob := dialAs(t, server, "Bob", "bob@example.com")
	require.NoError(t, bob.JoinRoom("Sajek Valley"))
	await(t, bob, action(domain.RoomNotice))

	tok, err := t_token.GenerateJWT("alice@example.com", "Alice", "test")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	// a stale name flag must not split the sender from its echo
	alice, err := Dial(ctx, Config{Server: server, Token: tok, Name: "Ally"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = alice.Close() })
	assert.Equal(t, domain.Identity{Name: "Alice", Email: "alice@example.com"}, alice.Identity())

	require.NoError(t, alice.JoinRoom("Sajek Valley"))
	notice := await(t, alice, action(domain.RoomNotice))
	assert.Equal(t, domain.RoomNoticeText("Alice"), notice.Text)

	_, err = alice.Send("hi")
	require.NoError(t, err)
	echo := await(t, alice, action(domain.ChatMessage))
	assert.False(t, echo.Fresh)

	msgs := alice.View().Messages()
	require.Len(t, msgs, 1, "exactly one copy of the own message")
	assert.Equal(t, "alice@example.com", msgs[0].SenderEmail)
	assert.True(t, msgs[0].Durable)

	got := await(t, bob, action(domain.ChatMessage))
	assert.Equal(t, "Alice", got.Message.Name)
	assert.Equal(t, "alice@example.com", got.Message.SenderEmail)

	t.Run("nameless token keeps the configured name", func(t *testing.T) {
		tok, err := t_token.GenerateJWT("dana@example.com", "", "test")
		require.NoError(t, err)
		dana, err := Dial(ctx, Config{Server: server, Token: tok, Name: "Dana"})
		require.NoError(t, err)
		t.Cleanup(func() { _ = dana.Close() })
		assert.Equal(t, domain.Identity{Name: "Dana", Email: "dana@example.com"}, dana.Identity())

		require.NoError(t, dana.JoinRoom("Sajek Valley"))
		assert.Equal(t, domain.RoomNoticeText("Dana"), await(t, dana, action(domain.RoomNotice)).Text)
	})

	t.Run("unreadable token", func(t *testing.T) {
		_, err := Dial(ctx, Config{Server: server, Token: "garbage"})
		assert.Error(t, err)
	})
}

func TestClient_SwitchRoomLeavesPrevious(t *testing.T) {
	server := startRelay(t)

	alice := dialAs(t, server, "Alice", "alice@example.com")
	bob := dialAs(t, server, "Bob", "bob@example.com")
	require.NoError(t, alice.JoinRoom("Sajek Valley"))
	await(t, alice, action(domain.RoomNotice))
	require.NoError(t, bob.JoinRoom("Sajek Valley"))
	await(t, bob, action(domain.RoomNotice))

	require.NoError(t, alice.JoinRoom("Bandarban"))
	await(t, alice, func(ev Event) bool {
		return ev.Action == domain.RoomNotice && ev.Text == domain.RoomNoticeText("Alice")
	})
	assert.Equal(t, "Bandarban", alice.View().Room())

	// bob types in the old room, then follows into the new one
	require.NoError(t, bob.Typing())
	require.NoError(t, bob.JoinRoom("Bandarban"))

	sawTyping := false
	await(t, alice, func(ev Event) bool {
		if ev.Action == domain.Typing || ev.Action == domain.StopTyping {
			sawTyping = true
		}
		return ev.Action == domain.RoomNotice && ev.Text == domain.RoomNoticeText("Bob")
	})
	assert.False(t, sawTyping, "typing from the room left behind")
	assert.Empty(t, alice.View().Typing())
}

func TestClient_TypingDebounce(t *testing.T) {
	server := startRelay(t)

	alice := dialAs(t, server, "Alice", "alice@example.com")
	bob := dialAs(t, server, "Bob", "bob@example.com")
	require.NoError(t, alice.JoinRoom("Sajek Valley"))
	require.NoError(t, bob.JoinRoom("Sajek Valley"))
	await(t, bob, func(ev Event) bool {
		return ev.Action == domain.RoomNotice && ev.Text == domain.RoomNoticeText("Bob")
	})

	for i := 0; i < 3; i++ {
		require.NoError(t, alice.Typing())
		time.Sleep(20 * time.Millisecond)
	}

	ev := await(t, bob, action(domain.Typing))
	assert.Equal(t, "Alice", ev.Text)
	assert.Equal(t, []string{"Alice"}, bob.View().Typing())

	ev = await(t, bob, func(ev Event) bool { return ev.Action == domain.StopTyping || ev.Action == domain.Typing })
	assert.Equal(t, domain.StopTyping, ev.Action, "one typing per burst")
	assert.Empty(t, bob.View().Typing())
}

func TestClient_RoomRequired(t *testing.T) {
	server := startRelay(t)
	alice := dialAs(t, server, "Alice", "alice@example.com")

	_, err := alice.Send("hi")
	assert.ErrorIs(t, err, ErrNoRoom)
	assert.ErrorIs(t, alice.Typing(), ErrNoRoom)
	assert.ErrorIs(t, alice.Leave(), ErrNoRoom)
}

func TestClient_Groups(t *testing.T) {
	server := startRelay(t)

	groups, err := dialAs(t, server, "Alice", "alice@example.com").Groups()
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "Sajek Valley", groups[0].TourName)

	groups, err = dialAs(t, server, "Eve", "eve@example.com").Groups()
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestSocketURL(t *testing.T) {
	u, err := socketURL(Config{Server: "https://chat.example.com/", Token: "abc"})
	require.NoError(t, err)
	assert.Equal(t, "wss://chat.example.com/ws?auth=abc", u)

	u, err = socketURL(Config{Server: "http://localhost:8080"})
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/ws", u)
}
