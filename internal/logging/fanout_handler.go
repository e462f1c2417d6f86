package logging

import (
	"context"
	"log/slog"
)

// fanoutHandler duplicates records at or above mirrorLevel to a second
// handler while every record still reaches the primary handler. StageIO
// uses this to satisfy the "DEBUG stays in stage.log, INFO and above also
// reach the main pipeline log" contract without callers needing to know
// about the split.
type fanoutHandler struct {
	primary     slog.Handler
	mirror      slog.Handler
	mirrorLevel slog.Level
}

func newFanoutHandler(primary, mirror slog.Handler, mirrorLevel slog.Level) *fanoutHandler {
	return &fanoutHandler{primary: primary, mirror: mirror, mirrorLevel: mirrorLevel}
}

func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.primary != nil && h.primary.Enabled(ctx, level) {
		return true
	}
	return h.mirror != nil && level >= h.mirrorLevel && h.mirror.Enabled(ctx, level)
}

func (h *fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var err error
	if h.primary != nil && h.primary.Enabled(ctx, record.Level) {
		if handleErr := h.primary.Handle(ctx, record.Clone()); handleErr != nil {
			err = handleErr
		}
	}
	if h.mirror != nil && record.Level >= h.mirrorLevel && h.mirror.Enabled(ctx, record.Level) {
		if handleErr := h.mirror.Handle(ctx, record.Clone()); handleErr != nil && err == nil {
			err = handleErr
		}
	}
	return err
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &fanoutHandler{mirrorLevel: h.mirrorLevel}
	if h.primary != nil {
		next.primary = h.primary.WithAttrs(attrs)
	}
	if h.mirror != nil {
		next.mirror = h.mirror.WithAttrs(attrs)
	}
	return next
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	next := &fanoutHandler{mirrorLevel: h.mirrorLevel}
	if h.primary != nil {
		next.primary = h.primary.WithGroup(name)
	}
	if h.mirror != nil {
		next.mirror = h.mirror.WithGroup(name)
	}
	return next
}

// TeeLogger returns a logger that writes every record to primary and also
// mirrors records at or above mirrorLevel to mirror. Passing a nil mirror
// degenerates to a plain pass-through to primary.
func TeeLogger(primary *slog.Logger, mirror *slog.Logger, mirrorLevel slog.Level) *slog.Logger {
	if mirror == nil {
		return primary
	}
	return slog.New(newFanoutHandler(primary.Handler(), mirror.Handler(), mirrorLevel))
}
