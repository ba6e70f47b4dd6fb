package errprocess

import (
	"errors"
	"os"
	"testing"

	"tour_chat_service/pkg/logger"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	logger.SetNewNop()
	os.Exit(m.Run())
}

func TestSet(t *testing.T) {
	assert.EqualError(t, Set("room is required"), "room is required")
}

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap(nil, "append message"))

	cause := errors.New("connection refused")
	err := Wrap(cause, "append message", zap.String("room", "Sajek Valley"))
	assert.EqualError(t, err, "append message: connection refused")
	assert.ErrorIs(t, err, cause)
}
