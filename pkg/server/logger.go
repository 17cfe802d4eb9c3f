package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// LogWriter stores one log record of an investigation.
type LogWriter interface {
	InsertLog(ctx context.Context, id uuid.UUID, ts time.Time, level, message string, metadata []byte) error
}

// DBLogHandler is a slog.Handler that writes records to the investigation_logs
// table and forwards them to next, if set.
type DBLogHandler struct {
	store LogWriter
	id    uuid.UUID
	next  slog.Handler

	attrs  []slog.Attr
	prefix string
}

func NewDBLogHandler(store LogWriter, id uuid.UUID, next slog.Handler) *DBLogHandler {
	return &DBLogHandler{store: store, id: id, next: next}
}

// Enabled accepts every level; the database keeps the full job trace.
func (h *DBLogHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

func (h *DBLogHandler) Handle(ctx context.Context, r slog.Record) error {
	meta := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		addAttr(meta, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		addAttr(meta, h.prefix, a)
		return true
	})

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		metaJSON = []byte("{}")
	}

	// Records outlive request contexts; the insert must not be cancelled with them.
	err = h.store.InsertLog(context.Background(), h.id, r.Time, r.Level.String(), r.Message, metaJSON)

	if h.next != nil && h.next.Enabled(ctx, r.Level) {
		r = r.Clone()
		r.AddAttrs(slog.String("investigation_id", h.id.String()))
		_ = h.next.Handle(ctx, r)
	}
	return err
}

func (h *DBLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	clone.attrs = append(clone.attrs, h.attrs...)
	for _, a := range attrs {
		if h.prefix != "" {
			a.Key = h.prefix + a.Key
		}
		clone.attrs = append(clone.attrs, a)
	}
	if h.next != nil {
		clone.next = h.next.WithAttrs(attrs)
	}
	return &clone
}

func (h *DBLogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	if h.next != nil {
		clone.next = h.next.WithGroup(name)
	}
	return &clone
}

// addAttr flattens groups into dotted keys.
func addAttr(dst map[string]any, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p = prefix + a.Key + "."
		}
		for _, g := range a.Value.Group() {
			addAttr(dst, p, g)
		}
		return
	}
	if a.Key == "" {
		return
	}
	key := prefix + a.Key
	switch v := a.Value.Any().(type) {
	case error:
		dst[key] = v.Error()
	case time.Duration:
		dst[key] = v.String()
	default:
		dst[key] = v
	}
}
