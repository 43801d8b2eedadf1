package logging

import (
	"log/slog"
)

// Reporter logs run progress
type Reporter struct {
	logger *slog.Logger
}

// NewReporter creates a Reporter. A nil logger uses slog.Default().
func NewReporter(logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{logger: logger}
}

func (r *Reporter) OnStart(op string, attrs map[string]any) {
	r.logger.Info("started", append([]any{"op", op}, flatten(attrs)...)...)
}

func (r *Reporter) OnProgress(op string, message string, current int, total int) {
	r.logger.Debug(message, "op", op, "current", current, "total", total)
}

func (r *Reporter) OnComplete(op string, attrs map[string]any) {
	r.logger.Info("completed", append([]any{"op", op}, flatten(attrs)...)...)
}

func (r *Reporter) OnError(op string, err error) {
	r.logger.Error("failed", "op", op, "error", err)
}

func flatten(attrs map[string]any) []any {
	out := make([]any, 0, len(attrs))
	for k, v := range attrs {
		out = append(out, slog.Any(k, v))
	}
	return out
}
