package app

import (
	"fmt"

	"tour_chat_service/internal/chat/domain"
)

var errUnsupportedFrame = fmt.Errorf("%w: only text frames are supported", domain.ErrInvalidEvent)
