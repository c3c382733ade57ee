package policy_test

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SomeRandomTV/AXIOM/pkg/axiom/policy"
)

func newEngine() *policy.Engine {
	e := policy.NewEngine(nil)
	e.AddPolicy(policy.NewContentFilterPolicy())
	e.AddPolicy(policy.NewResponseLengthPolicy(0))
	e.AddPolicy(policy.NewInputSanitizationPolicy(0))
	return e
}

func TestEngine_CleanInputPasses(t *testing.T) {
	r := newEngine().EvaluateInput("what time is it")
	assert.True(t, r.Passed)
	assert.Empty(t, r.Violations)
}

func TestEngine_SQLInjectionRejected(t *testing.T) {
	r := newEngine().EvaluateInput("'; DROP TABLE users;--")

	require.False(t, r.Passed)
	sanitization, ok := r.Violations["InputSanitizationPolicy"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, sanitization["sql_injection"])
}

func TestEngine_BannedWordRejected(t *testing.T) {
	r := newEngine().EvaluateInput("you are stupid")

	require.False(t, r.Passed)
	filter, ok := r.Violations["ContentFilterPolicy"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, filter, "stupid")
}

func TestEngine_BannedWordIsWordBounded(t *testing.T) {
	// "killer" contains "kill" but is not the banned word itself.
	r := newEngine().EvaluateInput("that movie had a great killer soundtrack")
	assert.True(t, r.Passed)
}

func TestEngine_OverlongResponseBlocked(t *testing.T) {
	long := strings.Repeat("a", 501)
	r := newEngine().EvaluateResponse(long)

	require.False(t, r.Passed)
	length, ok := r.Violations["ResponseLengthPolicy"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 501, length["length"])
}

func TestEngine_ResponseLengthIgnoresInput(t *testing.T) {
	long := strings.Repeat("a", 501)
	r := newEngine().EvaluateInput(long)

	// Input length is checked by sanitization (limit 1000), not the
	// response length policy.
	assert.True(t, r.Passed)
}

func TestEngine_OverlongInputRejected(t *testing.T) {
	r := newEngine().EvaluateInput(strings.Repeat("a", 1001))

	require.False(t, r.Passed)
	assert.Contains(t, r.Violations, "InputSanitizationPolicy")
}

func TestEngine_MultipleViolationsAggregated(t *testing.T) {
	r := newEngine().EvaluateInput("you stupid idiot; DROP TABLE users")

	require.False(t, r.Passed)
	assert.Contains(t, r.Violations, "ContentFilterPolicy")
	assert.Contains(t, r.Violations, "InputSanitizationPolicy")

	filter := r.Violations["ContentFilterPolicy"].(map[string]any)
	assert.Contains(t, filter, "stupid")
	assert.Contains(t, filter, "idiot")
}

func TestEngine_PolicyNames(t *testing.T) {
	assert.Equal(t, []string{
		"ContentFilterPolicy",
		"ResponseLengthPolicy",
		"InputSanitizationPolicy",
	}, newEngine().PolicyNames())
}

func TestEngine_EmptyEnginePasses(t *testing.T) {
	e := policy.NewEngine(nil)
	assert.True(t, e.EvaluateInput("anything at all").Passed)
}

func TestEngine_AuditLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	e := newEngine()
	e.EnableAuditLog(path)

	e.EvaluateInput("hello")
	e.EvaluateInput("'; DROP TABLE users;--")

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var entries []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		entries = append(entries, entry)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, entries, 2)

	first := entries[0]["result"].(map[string]any)
	assert.Equal(t, true, first["passed"])
	second := entries[1]["result"].(map[string]any)
	assert.Equal(t, false, second["passed"])
}

func TestEngine_AuditLogFailureSwallowed(t *testing.T) {
	e := newEngine()
	e.EnableAuditLog(filepath.Join(t.TempDir(), "missing", "audit.jsonl"))

	// Unwritable audit path never affects evaluation.
	r := e.EvaluateInput("hello")
	assert.True(t, r.Passed)
}

func TestCustomPolicy(t *testing.T) {
	e := policy.NewEngine(nil)
	e.AddPolicy(rejectAll{})

	r := e.EvaluateInput("anything")
	require.False(t, r.Passed)
	assert.Contains(t, r.Violations, "RejectAll")
}

type rejectAll struct{}

func (rejectAll) Evaluate(policy.Context) policy.Result {
	return policy.Result{Passed: false, Violations: map[string]any{"rejected": true}}
}

func (rejectAll) Name() string        { return "RejectAll" }
func (rejectAll) Description() string { return "Rejects everything." }
