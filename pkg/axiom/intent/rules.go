package intent

import (
	"fmt"
	"os"
	"regexp"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Rule maps an intent name to its ordered match patterns. Rules are
// evaluated in definition order, which is what breaks confidence ties.
type Rule struct {
	Intent   string   `yaml:"intent" json:"intent"`
	Patterns []string `yaml:"patterns" json:"patterns"`
}

type compiledRule struct {
	name     string
	patterns []*regexp.Regexp
}

// RuleBasedDetector detects intents with regex patterns and a confidence
// score derived from match coverage and position.
type RuleBasedDetector struct {
	rules []compiledRule
	now   func() time.Time
}

// DetectorOption configures a RuleBasedDetector.
type DetectorOption func(*RuleBasedDetector)

// WithClock overrides the time source used for entity extraction. Intended
// for tests.
func WithClock(now func() time.Time) DetectorOption {
	return func(d *RuleBasedDetector) {
		d.now = now
	}
}

// NewRuleBased compiles the given rules into a detector. Patterns are
// matched case-insensitively.
func NewRuleBased(rules []Rule, opts ...DetectorOption) (*RuleBasedDetector, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("no intent rules provided")
	}

	d := &RuleBasedDetector{
		rules: make([]compiledRule, 0, len(rules)),
		now:   time.Now,
	}
	for _, rule := range rules {
		cr := compiledRule{name: rule.Intent, patterns: make([]*regexp.Regexp, 0, len(rule.Patterns))}
		for _, pat := range rule.Patterns {
			re, err := regexp.Compile(`(?i)` + pat)
			if err != nil {
				return nil, fmt.Errorf("intent %q: compile pattern %q: %w", rule.Intent, pat, err)
			}
			cr.patterns = append(cr.patterns, re)
		}
		d.rules = append(d.rules, cr)
	}

	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// LoadRules reads intent rules from a YAML or JSON file containing a list
// of {intent, patterns} entries.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read intent rules: %w", err)
	}
	var rules []Rule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse intent rules: %w", err)
	}
	return rules, nil
}

// DetectIntent returns the single highest-confidence match across all
// rules and patterns, or nil when nothing matches.
//
// Confidence = (match length / text length) * position factor, where the
// position factor is 1.0 for a match starting at offset 0 and 0.8
// otherwise. Lengths are in runes. The comparison is strict, so ties keep
// the first match found in rule order.
func (d *RuleBasedDetector) DetectIntent(text string) *Intent {
	if text == "" {
		return nil
	}

	textLen := float64(utf8.RuneCountInString(text))
	var best *Intent
	highest := 0.0

	for _, rule := range d.rules {
		for _, re := range rule.patterns {
			loc := re.FindStringIndex(text)
			if loc == nil {
				continue
			}
			matchLen := float64(utf8.RuneCountInString(text[loc[0]:loc[1]]))
			positionFactor := 0.8
			if loc[0] == 0 {
				positionFactor = 1.0
			}
			confidence := (matchLen / textLen) * positionFactor

			if confidence > highest {
				best = &Intent{
					Name:       rule.name,
					Confidence: confidence,
					Entities:   d.extractEntities(rule.name, text),
				}
				highest = confidence
			}
		}
	}

	return best
}

// SupportedIntents returns the intent names in rule order.
func (d *RuleBasedDetector) SupportedIntents() []string {
	names := make([]string, len(d.rules))
	for i, rule := range d.rules {
		names[i] = rule.name
	}
	return names
}

var caregiverRolePattern = regexp.MustCompile(`(?i)(caregiver|nurse|doctor)`)

// extractEntities attaches intent-specific, deterministic entities.
func (d *RuleBasedDetector) extractEntities(intentName, text string) map[string]any {
	entities := make(map[string]any)
	now := d.now()

	switch intentName {
	case "time.query":
		entities["current_time"] = now.Format("03:04 PM")

	case "date.query":
		entities["date"] = now.Format("2006-01-02")
		entities["weekday"] = now.Format("Monday")
		entities["formatted_date"] = now.Format("January 02, 2006")

	case "greeting", "farewell":
		entities["time_of_day"] = timeOfDay(now.Hour())

	case "caregiver.notify":
		if role := caregiverRolePattern.FindString(text); role != "" {
			entities["role"] = role
		}
	}

	return entities
}

// timeOfDay buckets an hour into morning, afternoon, or evening.
func timeOfDay(hour int) string {
	switch {
	case hour < 12:
		return "morning"
	case hour < 17:
		return "afternoon"
	default:
		return "evening"
	}
}

// DefaultRules returns the built-in rule set covering the assistant's core
// conversational intents.
func DefaultRules() []Rule {
	return []Rule{
		{Intent: "greeting", Patterns: []string{
			`\b(hello|hi|hey)\b`,
			`\bgood (morning|afternoon|evening)\b`,
		}},
		{Intent: "farewell", Patterns: []string{
			`\b(goodbye|bye|see you)\b`,
			`\bgood night\b`,
		}},
		{Intent: "time.query", Patterns: []string{
			`\bwhat time\b`,
			`\btime is it\b`,
			`\bcurrent time\b`,
		}},
		{Intent: "date.query", Patterns: []string{
			`\bwhat (day|date)\b`,
			`\btoday'?s date\b`,
		}},
		{Intent: "help.request", Patterns: []string{
			`\bhelp\b`,
			`\bwhat can you do\b`,
		}},
		{Intent: "caregiver.notify", Patterns: []string{
			`\b(call|contact|notify|get)\b.*\b(caregiver|nurse|doctor)\b`,
		}},
		{Intent: "smalltalk.how_are_you", Patterns: []string{
			`\bhow are you\b`,
		}},
	}
}
