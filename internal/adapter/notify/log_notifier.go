package notify

import (
	"context"
	"log/slog"
)

// LogNotifier writes user-facing messages to the structured log. Used when
// no UI is attached.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, message string) {
	n.logger.WarnContext(ctx, "cart notification", "message", message)
}
