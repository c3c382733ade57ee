package event

import "sort"

// The closed registry of event types. Adding a type means updating this file
// together with every publisher and subscriber that emits or consumes it.
const (
	TypeSystemStart      = "system.start"
	TypeSystemShutdown   = "system.shutdown"
	TypeConversationTurn = "conversation.turn"
	TypeStateUpdated     = "state.updated"
)

var registry = map[string]struct{}{
	TypeSystemStart:      {},
	TypeSystemShutdown:   {},
	TypeConversationTurn: {},
	TypeStateUpdated:     {},
}

// ValidType reports whether t is a member of the event type registry.
func ValidType(t string) bool {
	_, ok := registry[t]
	return ok
}

// Types returns all valid event types, sorted.
func Types() []string {
	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
