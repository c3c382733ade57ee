package observability

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrichLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	enriched := EnrichLogger(logger, "sess-1", "corr-1")
	require.NotNil(t, enriched)
	enriched.Info("processing")

	out := buf.String()
	assert.Contains(t, out, `"session_id":"sess-1"`)
	assert.Contains(t, out, `"correlation_id":"corr-1"`)
}

func TestEnrichLogger_NilLogger(t *testing.T) {
	assert.Nil(t, EnrichLogger(nil, "sess-1", "corr-1"))
}

func TestLogHelpers_NilLoggerSafe(t *testing.T) {
	// None of these should panic with a nil logger.
	LogTurnStart(nil, "sess-1")
	LogTurnComplete(nil, "sess-1", "greeting", 12.5)
	LogTurnRejected(nil, "sess-1", "input", map[string]any{"x": true})
	LogTurnError(nil, "sess-1", assert.AnError)
	LogPersistFailure(nil, "sess-1", assert.AnError)
}

func TestLogTurnComplete(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	LogTurnComplete(logger, "sess-1", "time.query", 42.0)

	out := buf.String()
	assert.Contains(t, out, "turn completed")
	assert.Contains(t, out, `"intent":"time.query"`)
	assert.Contains(t, out, `"duration_ms":42`)
}

func TestLogTurnRejected(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	LogTurnRejected(logger, "sess-1", "input", map[string]any{"sql_injection": true})

	out := buf.String()
	assert.Contains(t, out, "turn rejected by policy")
	assert.Contains(t, out, `"stage":"input"`)
}

func TestTimedOperation(t *testing.T) {
	done := TimedOperation()
	time.Sleep(10 * time.Millisecond)
	elapsed := done()
	assert.GreaterOrEqual(t, elapsed, 10.0)
}
