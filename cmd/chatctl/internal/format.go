package internal

import (
	"fmt"
	"time"

	"tour_chat_service/internal/chat/domain"
)

// FormatMessage one line rendering of m
func FormatMessage(m domain.Message) string {
	stamp := m.Date
	if t, err := time.Parse(domain.DateLayout, m.Date); err == nil {
		stamp = t.Local().Format("15:04")
	}
	return fmt.Sprintf("[%s] %s: %s", stamp, m.Name, m.Text)
}
