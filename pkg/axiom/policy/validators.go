package policy

import (
	"fmt"
	"regexp"
	"unicode/utf8"
)

// defaultBannedWords seeds ContentFilterPolicy when no list is given.
var defaultBannedWords = []string{
	"damn", "hell", "stupid", "idiot", "hate", "kill", "die",
}

// ContentFilterPolicy blocks text containing banned words. Matching is
// case-insensitive on word boundaries; each matched word becomes a
// violation key.
type ContentFilterPolicy struct {
	patterns map[string]*regexp.Regexp
}

// NewContentFilterPolicy creates a filter for the given words, or the
// default list when none are given.
func NewContentFilterPolicy(bannedWords ...string) *ContentFilterPolicy {
	if len(bannedWords) == 0 {
		bannedWords = defaultBannedWords
	}
	patterns := make(map[string]*regexp.Regexp, len(bannedWords))
	for _, word := range bannedWords {
		if word == "" {
			continue
		}
		patterns[word] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`)
	}
	return &ContentFilterPolicy{patterns: patterns}
}

// Evaluate implements Policy.
func (p *ContentFilterPolicy) Evaluate(ctx Context) Result {
	text := ctx.Text()
	violations := make(map[string]any)
	for word, re := range p.patterns {
		if re.MatchString(text) {
			violations[word] = true
		}
	}
	return Result{Passed: len(violations) == 0, Violations: violations}
}

// Name implements Policy.
func (p *ContentFilterPolicy) Name() string { return "ContentFilterPolicy" }

// Description implements Policy.
func (p *ContentFilterPolicy) Description() string {
	return "Blocks inappropriate or disallowed content."
}

// ResponseLengthPolicy validates response length against a configured
// maximum. Input text always passes.
type ResponseLengthPolicy struct {
	maxLength int
}

// NewResponseLengthPolicy creates a length check. maxLength <= 0 uses the
// default of 500 characters.
func NewResponseLengthPolicy(maxLength int) *ResponseLengthPolicy {
	if maxLength <= 0 {
		maxLength = 500
	}
	return &ResponseLengthPolicy{maxLength: maxLength}
}

// Evaluate implements Policy.
func (p *ResponseLengthPolicy) Evaluate(ctx Context) Result {
	violations := make(map[string]any)
	if n := utf8.RuneCountInString(ctx.Response); n > p.maxLength {
		violations["length"] = n
	}
	return Result{Passed: len(violations) == 0, Violations: violations}
}

// Name implements Policy.
func (p *ResponseLengthPolicy) Name() string { return "ResponseLengthPolicy" }

// Description implements Policy.
func (p *ResponseLengthPolicy) Description() string {
	return fmt.Sprintf("Ensures response does not exceed %d characters.", p.maxLength)
}

var sqlInjectionPattern = regexp.MustCompile(`(?i)(;|--|\bDROP\b|\bDELETE\b|\bINSERT\b|\bUPDATE\b)`)

// InputSanitizationPolicy validates user input for safety: SQL-injection
// markers and overlong input. Response text always passes.
type InputSanitizationPolicy struct {
	maxLength int
}

// NewInputSanitizationPolicy creates an input check. maxLength <= 0 uses the
// default of 1000 characters.
func NewInputSanitizationPolicy(maxLength int) *InputSanitizationPolicy {
	if maxLength <= 0 {
		maxLength = 1000
	}
	return &InputSanitizationPolicy{maxLength: maxLength}
}

// Evaluate implements Policy.
func (p *InputSanitizationPolicy) Evaluate(ctx Context) Result {
	violations := make(map[string]any)
	if sqlInjectionPattern.MatchString(ctx.UserInput) {
		violations["sql_injection"] = true
	}
	if n := utf8.RuneCountInString(ctx.UserInput); n > p.maxLength {
		violations["length"] = n
	}
	return Result{Passed: len(violations) == 0, Violations: violations}
}

// Name implements Policy.
func (p *InputSanitizationPolicy) Name() string { return "InputSanitizationPolicy" }

// Description implements Policy.
func (p *InputSanitizationPolicy) Description() string {
	return "Sanitizes and validates user input for safety."
}
