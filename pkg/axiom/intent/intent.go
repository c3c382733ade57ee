// Package intent provides rule-based intent classification for the
// conversation pipeline.
package intent

// Intent is a detector's classification of one input string. It is
// transient per call and never persisted directly.
type Intent struct {
	Name       string
	Confidence float64 // in [0, 1]
	Entities   map[string]any
}

// Detector classifies user input text.
type Detector interface {
	// DetectIntent returns the highest-confidence intent for text, or nil
	// when nothing matches.
	DetectIntent(text string) *Intent

	// SupportedIntents returns the intent names this detector can produce.
	SupportedIntents() []string
}
