package errprocess

import (
	"errors"
	"fmt"

	"tour_chat_service/pkg/logger"

	"go.uber.org/zap"
)

// Set log errMsg and return it as an error
func Set(errMsg string) error {
	logger.Log.Error(errMsg)
	return errors.New(errMsg)
}

// Wrap log and wrap err with msg, nil stays nil
func Wrap(err error, msg string, fields ...zap.Field) error {
	if err == nil {
		return nil
	}
	logger.Log.Error(msg, append(fields, zap.Error(err))...)
	return fmt.Errorf("%s: %w", msg, err)
}
