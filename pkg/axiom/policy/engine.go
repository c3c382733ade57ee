package policy

import (
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Engine evaluates an ordered list of policies over input and response
// text, merging every policy's violations into one aggregate Result.
type Engine struct {
	mu       sync.RWMutex
	policies []Policy

	auditMu   sync.Mutex
	auditPath string
	auditOn   bool

	logger *slog.Logger
}

// NewEngine creates an empty engine. logger may be nil.
func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{logger: logger}
}

// AddPolicy appends a policy to the evaluation order.
func (e *Engine) AddPolicy(p Policy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.policies = append(e.policies, p)
	if e.logger != nil {
		e.logger.Debug("policy registered", slog.String("policy", p.Name()))
	}
}

// PolicyNames returns the names of the registered policies, in order.
func (e *Engine) PolicyNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, len(e.policies))
	for i, p := range e.policies {
		names[i] = p.Name()
	}
	return names
}

// EnableAuditLog turns on append-only JSON-lines audit logging at path.
func (e *Engine) EnableAuditLog(path string) {
	e.auditMu.Lock()
	defer e.auditMu.Unlock()
	e.auditPath = path
	e.auditOn = path != ""
}

// EvaluateInput runs every policy against user input text.
func (e *Engine) EvaluateInput(text string) Result {
	return e.evaluate(Context{UserInput: text})
}

// EvaluateResponse runs every policy against assistant response text.
func (e *Engine) EvaluateResponse(text string) Result {
	return e.evaluate(Context{Response: text})
}

func (e *Engine) evaluate(ctx Context) Result {
	e.mu.RLock()
	policies := make([]Policy, len(e.policies))
	copy(policies, e.policies)
	e.mu.RUnlock()

	violations := make(map[string]any)
	names := make([]string, 0, len(policies))
	for _, p := range policies {
		names = append(names, p.Name())
		if r := p.Evaluate(ctx); !r.Passed {
			violations[p.Name()] = r.Violations
		}
	}

	result := Result{Passed: len(violations) == 0, Violations: violations}
	e.auditLog(auditEntry{
		Timestamp: time.Now(),
		Context:   ctx,
		Result:    result,
		Policies:  names,
	})
	return result
}

// auditEntry is one JSON record in the audit log.
type auditEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Context   Context   `json:"context"`
	Result    Result    `json:"result"`
	Policies  []string  `json:"policies"`
}

// auditLog appends one record per evaluation. Write failures are logged,
// never propagated.
func (e *Engine) auditLog(entry auditEntry) {
	e.auditMu.Lock()
	defer e.auditMu.Unlock()

	if !e.auditOn {
		return
	}

	line, err := json.Marshal(entry)
	if err != nil {
		e.logAuditFailure(err)
		return
	}

	f, err := os.OpenFile(e.auditPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		e.logAuditFailure(err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		e.logAuditFailure(err)
	}
}

func (e *Engine) logAuditFailure(err error) {
	if e.logger != nil {
		e.logger.Error("failed to write policy audit log", slog.String("error", err.Error()))
	}
}
