package repository

import (
	"context"
	"fmt"
	"testing"

	"tour_chat_service/internal/chat/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryMessageRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryMessageRepository()

	for i := 0; i < 5; i++ {
		msg := &domain.Message{TourName: "Sajek Valley", Text: fmt.Sprintf("m%d", i), SenderEmail: "alice@example.com"}
		id, err := repo.Append(ctx, msg)
		require.NoError(t, err)
		assert.NotEmpty(t, id)
		assert.Equal(t, id, msg.ID)
	}
	_, err := repo.Append(ctx, &domain.Message{TourName: "Cox's Bazar", Text: "elsewhere"})
	require.NoError(t, err)

	got, err := repo.ListByRoom(ctx, "Sajek Valley")
	require.NoError(t, err)
	require.Len(t, got, 5)
	for i, m := range got {
		assert.Equal(t, fmt.Sprintf("m%d", i), m.Text)
		assert.True(t, m.Durable)
	}

	empty, err := repo.ListByRoom(ctx, "Nowhere")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestMemoryMessageRepository_ListIsACopy(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryMessageRepository()
	_, err := repo.Append(ctx, &domain.Message{TourName: "r", Text: "a"})
	require.NoError(t, err)

	got, _ := repo.ListByRoom(ctx, "r")
	got[0].Text = "changed"

	again, _ := repo.ListByRoom(ctx, "r")
	assert.Equal(t, "a", again[0].Text)
}

func TestMemoryMessageRepository_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	repo := NewMemoryMessageRepository()
	_, err := repo.Append(ctx, &domain.Message{TourName: "r", Text: "a"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClientIDConversion(t *testing.T) {
	assert.Nil(t, clientIDValue(""))
	assert.Equal(t, int64(1718000000000), clientIDValue("1718000000000"))
	assert.Equal(t, "c-42", clientIDValue("c-42"))

	assert.Equal(t, "", clientIDString(nil))
	assert.Equal(t, "c-42", clientIDString("c-42"))
	assert.Equal(t, "7", clientIDString(int32(7)))
	assert.Equal(t, "1718000000000", clientIDString(int64(1718000000000)))
	assert.Equal(t, "1718000000000", clientIDString(float64(1718000000000)))
}
