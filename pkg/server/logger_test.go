package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDBLogHandler(t *testing.T) {
	store := newMemStore()
	id := uuid.New()
	var out bytes.Buffer
	next := slog.NewTextHandler(&out, nil)

	logger := slog.New(NewDBLogHandler(store, id, next)).
		With("kind", "lookup").
		WithGroup("job")
	logger.Warn("Page fetch failed", "url", "https://a.example", "error", errors.New("timeout"), "attempt", 2)
	logger.Debug("Not forwarded to next")

	logs, err := store.GetLogs(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "WARN", logs[0].Level)
	assert.Equal(t, "Page fetch failed", logs[0].Message)

	var meta map[string]any
	require.NoError(t, json.Unmarshal(logs[0].Metadata, &meta))
	assert.Equal(t, "lookup", meta["kind"])
	assert.Equal(t, "https://a.example", meta["job.url"])
	assert.Equal(t, "timeout", meta["job.error"])
	assert.EqualValues(t, 2, meta["job.attempt"])

	assert.Contains(t, out.String(), "Page fetch failed")
	assert.Contains(t, out.String(), "investigation_id="+id.String())
	assert.NotContains(t, out.String(), "Not forwarded")
}
