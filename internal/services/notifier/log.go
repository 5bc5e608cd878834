package notifier

import (
	"context"

	"go.uber.org/zap"
)

// Log writes alerts to the process log. Used when no chat is configured.
type Log struct {
	logger *zap.Logger
}

func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger.Named("alert")}
}

func (l *Log) Send(_ context.Context, text string) error {
	l.logger.Info(text)
	return nil
}
