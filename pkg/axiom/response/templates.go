// Package response provides template-based response generation for the
// conversation pipeline.
package response

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"sync"
)

// Generator produces a response for a detected intent.
type Generator interface {
	// GenerateResponse renders a response for intentName using entities.
	// ctx carries session context and may be nil.
	GenerateResponse(intentName string, entities map[string]any, ctx map[string]any) string
}

// defaultIntent is the fallback template pool for unknown intents and
// templates whose required entities are missing.
const defaultIntent = "default"

// TemplateGenerator selects uniformly at random among an intent's
// templates, excluding the one used last time when more than one remains.
type TemplateGenerator struct {
	mu        sync.Mutex
	templates map[string][]string
	lastUsed  map[string]string
	pick      func(n int) int
}

// GeneratorOption configures a TemplateGenerator.
type GeneratorOption func(*TemplateGenerator)

// WithTemplates replaces the built-in template pools. The map must contain
// a "default" pool.
func WithTemplates(templates map[string][]string) GeneratorOption {
	return func(g *TemplateGenerator) {
		g.templates = templates
	}
}

// WithPicker overrides the random selection function. Intended for tests;
// pick receives the pool size and must return an index in [0, n).
func WithPicker(pick func(n int) int) GeneratorOption {
	return func(g *TemplateGenerator) {
		g.pick = pick
	}
}

// NewTemplateGenerator creates a generator with the built-in template
// pools.
func NewTemplateGenerator(opts ...GeneratorOption) *TemplateGenerator {
	g := &TemplateGenerator{
		templates: defaultTemplates(),
		lastUsed:  make(map[string]string),
		pick:      rand.IntN,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GenerateResponse implements Generator.
func (g *TemplateGenerator) GenerateResponse(intentName string, entities map[string]any, _ map[string]any) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	templates, ok := g.templates[intentName]
	if !ok || len(templates) == 0 {
		templates = g.templates[defaultIntent]
	}

	// Exclude the template used last time, unless that would leave nothing.
	available := templates
	if last, ok := g.lastUsed[intentName]; ok && len(templates) > 1 {
		available = make([]string, 0, len(templates)-1)
		for _, t := range templates {
			if t != last {
				available = append(available, t)
			}
		}
		if len(available) == 0 {
			available = templates
		}
	}

	tpl := available[g.pick(len(available))]
	g.lastUsed[intentName] = tpl

	out, ok := expand(tpl, entities)
	if !ok {
		// A required entity is missing; answer from the default pool
		// rather than exposing a broken template.
		defaults := g.templates[defaultIntent]
		out = defaults[g.pick(len(defaults))]
	}
	return out
}

var placeholderPattern = regexp.MustCompile(`\{(\w+)\}`)

// expand substitutes {name} placeholders from entities. ok is false when
// any referenced entity is missing.
func expand(tpl string, entities map[string]any) (out string, ok bool) {
	missing := false
	out = placeholderPattern.ReplaceAllStringFunc(tpl, func(m string) string {
		key := m[1 : len(m)-1]
		v, found := entities[key]
		if !found {
			missing = true
			return m
		}
		return fmt.Sprint(v)
	})
	return out, !missing
}

func defaultTemplates() map[string][]string {
	return map[string][]string{
		"time.query": {
			"It's {current_time}.",
			"The current time is {current_time}.",
			"Right now it's {current_time}.",
		},
		"date.query": {
			"Today is {weekday}, {formatted_date}.",
			"It's {weekday}, {formatted_date}.",
			"The date is {formatted_date}.",
		},
		"greeting": {
			"Good {time_of_day}! How can I help you today?",
			"Hello! Hope you're having a good {time_of_day}.",
			"Hi there! How may I assist you this {time_of_day}?",
		},
		"farewell": {
			"Goodbye! Have a nice {time_of_day}.",
			"See you later! Enjoy your {time_of_day}.",
			"Bye for now! Take care.",
		},
		"help.request": {
			"I can help you with several things:\n- Checking the time and date\n- Basic conversation\n- Contacting your caregiver\n- Answering questions\nWhat would you like to know?",
			"Here's what I can do:\n- Tell you the time and date\n- Chat with you\n- Help you contact your caregiver\n- Answer your questions\nHow can I assist you?",
		},
		"caregiver.notify": {
			"I'll notify your {role} right away.",
			"I'm contacting your {role} now.",
			"I'll get your {role} for you immediately.",
		},
		"smalltalk.how_are_you": {
			"I'm doing well, thank you for asking! How can I help you today?",
			"I'm functioning perfectly! What can I do for you?",
			"All systems operational! How may I assist you?",
		},
		defaultIntent: {
			"I'm not sure I understood that. Could you please rephrase?",
			"I didn't quite catch that. Can you say it another way?",
			"I'm still learning. Could you try asking in a different way?",
		},
	}
}
