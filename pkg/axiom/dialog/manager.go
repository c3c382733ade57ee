// Package dialog coordinates intent detection and response generation per
// conversation session.
package dialog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/SomeRandomTV/AXIOM/pkg/axiom/event"
	"github.com/SomeRandomTV/AXIOM/pkg/axiom/intent"
	"github.com/SomeRandomTV/AXIOM/pkg/axiom/response"
)

// publisherName identifies the dialog manager on the event bus.
const publisherName = "dialog_manager"

const (
	apologyResponse = "I apologize, but I encountered an error. Please try again."
	troubleResponse = "I'm having trouble formulating a response. Please try again."
)

// SessionContext is the per-session conversation state the manager keeps
// between turns.
type SessionContext struct {
	SessionID    string
	TurnCount    int
	LastIntent   string
	LastResponse string
}

// Turn is the outcome of processing one user input.
type Turn struct {
	// Response is the assistant's reply text. Always non-empty: internal
	// failures degrade to a generic apology rather than an error.
	Response string

	// Intent is the detected intent, or nil when nothing matched or
	// detection failed.
	Intent *intent.Intent

	// Elapsed is the processing time for the turn.
	Elapsed time.Duration
}

// ManagerConfig configures a Manager. Zero-value fields get defaults.
type ManagerConfig struct {
	// Detector classifies user input. Defaults to the built-in rule set.
	Detector intent.Detector

	// Generator produces response text. Defaults to the built-in
	// templates.
	Generator response.Generator

	// Logger for turn processing. May be nil.
	Logger *slog.Logger
}

// Manager runs the detect-generate loop for conversation turns and publishes
// a conversation.turn event after each one. ProcessInput never returns an
// error: any internal failure degrades to a fallback response.
type Manager struct {
	detector  intent.Detector
	generator response.Generator
	bus       *event.Bus
	logger    *slog.Logger

	mu       sync.Mutex
	sessions map[string]*SessionContext
}

// NewManager creates a Manager wired to the given bus. The manager registers
// itself as a publisher of conversation.turn events.
func NewManager(bus *event.Bus, cfg ManagerConfig) (*Manager, error) {
	if cfg.Detector == nil {
		d, err := intent.NewRuleBased(intent.DefaultRules())
		if err != nil {
			return nil, err
		}
		cfg.Detector = d
	}
	if cfg.Generator == nil {
		cfg.Generator = response.NewTemplateGenerator()
	}

	if bus != nil {
		if err := bus.RegisterPublisher(publisherName, []string{event.TypeConversationTurn}); err != nil {
			return nil, err
		}
	}

	return &Manager{
		detector:  cfg.Detector,
		generator: cfg.Generator,
		bus:       bus,
		logger:    cfg.Logger,
	}, nil
}

// ProcessInput runs one conversation turn for sessionID. It always returns
// a usable Turn, falling back to an apology when anything inside panics.
func (m *Manager) ProcessInput(ctx context.Context, text, sessionID string) (turn Turn) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			if m.logger != nil {
				m.logger.Error("turn processing panicked",
					slog.String("session_id", sessionID),
					slog.Any("panic", r))
			}
			turn = Turn{Response: apologyResponse, Elapsed: time.Since(start)}
		}
	}()

	detected := m.detectIntent(text)
	resp := m.generateResponse(detected)

	m.updateContext(sessionID, detected, resp)

	turn = Turn{Response: resp, Intent: detected, Elapsed: time.Since(start)}
	m.publishTurnEvent(ctx, sessionID, text, turn)
	return turn
}

// Session returns a copy of the session context, or false when the session
// has no recorded turns.
func (m *Manager) Session(sessionID string) (SessionContext, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sc, ok := m.sessions[sessionID]
	if !ok {
		return SessionContext{}, false
	}
	return *sc, true
}

// EndSession drops the session context.
func (m *Manager) EndSession(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) detectIntent(text string) (result *intent.Intent) {
	defer func() {
		if r := recover(); r != nil {
			if m.logger != nil {
				m.logger.Error("intent detection panicked", slog.Any("panic", r))
			}
			result = nil
		}
	}()
	return m.detector.DetectIntent(text)
}

func (m *Manager) generateResponse(detected *intent.Intent) (resp string) {
	defer func() {
		if r := recover(); r != nil {
			if m.logger != nil {
				m.logger.Error("response generation panicked", slog.Any("panic", r))
			}
			resp = troubleResponse
		}
	}()

	name := ""
	var entities map[string]any
	if detected != nil {
		name = detected.Name
		entities = detected.Entities
	}
	return m.generator.GenerateResponse(name, entities, nil)
}

func (m *Manager) updateContext(sessionID string, detected *intent.Intent, resp string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions == nil {
		m.sessions = make(map[string]*SessionContext)
	}
	sc, ok := m.sessions[sessionID]
	if !ok {
		sc = &SessionContext{SessionID: sessionID}
		m.sessions[sessionID] = sc
	}
	sc.TurnCount++
	if detected != nil {
		sc.LastIntent = detected.Name
	}
	sc.LastResponse = resp
}

// publishTurnEvent emits a conversation.turn event. Publish failures are
// logged, never surfaced to the caller.
func (m *Manager) publishTurnEvent(ctx context.Context, sessionID, text string, turn Turn) {
	if m.bus == nil {
		return
	}

	var intentMap map[string]any
	if turn.Intent != nil {
		intentMap = map[string]any{
			"name":       turn.Intent.Name,
			"confidence": turn.Intent.Confidence,
		}
	}

	evt := event.NewConversationTurn(publisherName, sessionID, text, turn.Response,
		intentMap, float64(turn.Elapsed)/float64(time.Millisecond))
	if err := m.bus.Publish(ctx, evt); err != nil {
		if m.logger != nil {
			m.logger.Warn("conversation turn event not published",
				slog.String("session_id", sessionID),
				slog.Any("error", err))
		}
	}
}
