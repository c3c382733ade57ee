// Package policy provides ordered evaluation of pluggable content and
// safety policies over conversation input and output text, with optional
// append-only audit logging.
//
// Policies are stateless per call and independent of each other: evaluation
// order affects only the audit log, never the union of violations. Policy
// violations are data, not errors: a failed check surfaces as a Result
// with Passed=false.
package policy

// Context carries the text under evaluation: exactly one side of a turn.
type Context struct {
	UserInput string `json:"user_input,omitempty"`
	Response  string `json:"response,omitempty"`
}

// Text returns whichever side of the turn is populated.
func (c Context) Text() string {
	if c.UserInput != "" {
		return c.UserInput
	}
	return c.Response
}

// Result is the outcome of a policy evaluation. For a single policy,
// Violations maps violation keys to detail. For the engine's aggregate,
// Violations maps policy names to each policy's violation map.
type Result struct {
	Passed     bool           `json:"passed"`
	Violations map[string]any `json:"violations"`
}

// Policy is a pluggable rule that inspects input or output text and reports
// pass/fail with structured violation detail.
type Policy interface {
	Evaluate(ctx Context) Result
	Name() string
	Description() string
}
