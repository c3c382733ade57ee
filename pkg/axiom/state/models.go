package state

import "time"

// AlertSeverity levels for the alerts table.
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// Valid reports whether s is a known severity level.
func (s AlertSeverity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// ConversationTurn is one persisted conversation interaction. Rows are
// append-only and queryable by session for history replay.
type ConversationTurn struct {
	ID                int64
	SessionID         string
	UserInput         string
	AssistantResponse string
	DetectedIntent    map[string]any // nil when the turn had no intent
	ProcessingTime    int            // milliseconds
	Timestamp         time.Time
	Metadata          map[string]any
}

// SystemEvent is one persisted bus event.
type SystemEvent struct {
	ID            int64
	EventType     string
	Payload       map[string]any
	Timestamp     time.Time
	Source        string
	CorrelationID string
}

// Alert is a severity-leveled system alert (future expansion).
type Alert struct {
	ID         int64
	AlertType  string
	Severity   AlertSeverity
	Message    string
	Timestamp  time.Time
	ResolvedAt *time.Time
	Metadata   map[string]any
}
