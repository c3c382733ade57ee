// Package pipeline runs policy-gated conversation turns end to end:
// input gate, dialog processing, response gate, persistence.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SomeRandomTV/AXIOM/pkg/axiom/dialog"
	"github.com/SomeRandomTV/AXIOM/pkg/axiom/event"
	"github.com/SomeRandomTV/AXIOM/pkg/axiom/intent"
	"github.com/SomeRandomTV/AXIOM/pkg/axiom/observability"
	"github.com/SomeRandomTV/AXIOM/pkg/axiom/policy"
	"github.com/SomeRandomTV/AXIOM/pkg/axiom/state"
)

// Sample is one recorded turn measurement. Every ProcessTextInput call
// appends exactly one sample, including rejected and blocked turns.
type Sample struct {
	SessionID      string
	Input          string
	Response       string
	Elapsed        time.Duration
	InputPolicy    policy.Result
	ResponsePolicy policy.Result
}

// Stats summarizes the recorded samples.
type Stats struct {
	Turns        int
	Rejected     int
	Blocked      int
	AvgElapsed   time.Duration
	TotalElapsed time.Duration
}

// Config configures a Pipeline. Zero-value fields get defaults.
type Config struct {
	// Engine evaluates policies at the input and response gates.
	// Defaults to an engine with the three built-in policies.
	Engine *policy.Engine

	// Store persists conversation turns. Nil disables persistence.
	Store *state.Store

	// Logger for pipeline processing. May be nil.
	Logger *slog.Logger

	// Metrics records turn counters and latency. Defaults to noop.
	Metrics observability.MetricsRecorder

	// Spans manages turn and stage trace spans. Defaults to noop.
	Spans observability.SpanManager
}

// Pipeline gates conversation turns through policy checks and persists the
// outcome. All methods are safe for concurrent use.
type Pipeline struct {
	bus     *event.Bus
	dm      *dialog.Manager
	engine  *policy.Engine
	store   *state.Store
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager

	mu      sync.Mutex
	current string
	samples []Sample
}

// publisherName identifies the pipeline on the event bus.
const publisherName = "pipeline"

// New creates a Pipeline around the given bus and dialog manager. The
// pipeline registers itself as a publisher of state.updated events, which
// it emits after each persisted turn.
func New(bus *event.Bus, dm *dialog.Manager, cfg Config) *Pipeline {
	if cfg.Engine == nil {
		cfg.Engine = policy.NewEngine(cfg.Logger)
		cfg.Engine.AddPolicy(policy.NewContentFilterPolicy())
		cfg.Engine.AddPolicy(policy.NewResponseLengthPolicy(0))
		cfg.Engine.AddPolicy(policy.NewInputSanitizationPolicy(0))
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NoopMetrics{}
	}
	if cfg.Spans == nil {
		cfg.Spans = observability.NoopSpanManager{}
	}

	if bus != nil {
		// Cannot fail: the type is a registry constant.
		_ = bus.RegisterPublisher(publisherName, []string{event.TypeStateUpdated})
	}

	return &Pipeline{
		bus:     bus,
		dm:      dm,
		engine:  cfg.Engine,
		store:   cfg.Store,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		spans:   cfg.Spans,
	}
}

// StartSession returns a fresh session identifier and makes it the current
// session for calls that pass an empty one.
func (p *Pipeline) StartSession() string {
	id := uuid.NewString()
	p.mu.Lock()
	p.current = id
	p.mu.Unlock()
	return id
}

// EndSession drops the dialog context for the session.
func (p *Pipeline) EndSession(sessionID string) {
	p.mu.Lock()
	if p.current == sessionID {
		p.current = ""
	}
	p.mu.Unlock()
	if p.dm != nil {
		p.dm.EndSession(sessionID)
	}
}

// resolveSession falls back to the current session, starting one lazily
// when none exists.
func (p *Pipeline) resolveSession(sessionID string) string {
	if sessionID != "" {
		return sessionID
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == "" {
		p.current = uuid.NewString()
	}
	return p.current
}

// ProcessTextInput runs one gated turn. An empty sessionID resolves to the
// current session, starting one lazily. Input failing the input gate is
// rejected before any dialog processing or persistence. A response failing
// the response gate is replaced with a blocked notice but the turn is still
// persisted for audit.
func (p *Pipeline) ProcessTextInput(ctx context.Context, text, sessionID string) string {
	sessionID = p.resolveSession(sessionID)
	start := time.Now()
	ctx, span := p.spans.StartTurnSpan(ctx, sessionID)

	observability.LogTurnStart(p.logger, sessionID)

	inputResult := p.evaluateStage(ctx, "input_policy", policy.Context{UserInput: text})
	if !inputResult.Passed {
		observability.LogTurnRejected(p.logger, sessionID, "input", inputResult.Violations)
		elapsed := time.Since(start)
		p.record(Sample{
			SessionID:   sessionID,
			Input:       text,
			Elapsed:     elapsed,
			InputPolicy: inputResult,
		})
		p.metrics.RecordTurn(ctx, false, elapsed)
		p.spans.EndSpanWithError(span, nil)
		return fmt.Sprintf("Input rejected due to policy violation: %v", inputResult.Violations)
	}

	dialogCtx, dialogSpan := p.spans.StartStageSpan(ctx, "dialog")
	turn := p.dm.ProcessInput(dialogCtx, text, sessionID)
	p.spans.EndSpanWithError(dialogSpan, nil)

	respResult := p.evaluateStage(ctx, "response_policy",
		policy.Context{UserInput: text, Response: turn.Response})

	elapsed := time.Since(start)
	p.record(Sample{
		SessionID:      sessionID,
		Input:          text,
		Response:       turn.Response,
		Elapsed:        elapsed,
		InputPolicy:    inputResult,
		ResponsePolicy: respResult,
	})

	p.persistTurn(ctx, sessionID, text, turn)

	intentName := ""
	if turn.Intent != nil {
		intentName = turn.Intent.Name
	}
	observability.LogTurnComplete(p.logger, sessionID, intentName,
		float64(elapsed)/float64(time.Millisecond))
	p.metrics.RecordTurn(ctx, respResult.Passed, elapsed)
	p.spans.EndSpanWithError(span, nil)

	if !respResult.Passed {
		observability.LogTurnRejected(p.logger, sessionID, "response", respResult.Violations)
		return fmt.Sprintf("Response blocked due to policy violation: %v", respResult.Violations)
	}
	return turn.Response
}

// PerformanceStats returns aggregate stats over all recorded samples.
func (p *Pipeline) PerformanceStats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := Stats{Turns: len(p.samples)}
	for _, s := range p.samples {
		stats.TotalElapsed += s.Elapsed
		if !s.InputPolicy.Passed {
			stats.Rejected++
		} else if !s.ResponsePolicy.Passed {
			stats.Blocked++
		}
	}
	if stats.Turns > 0 {
		stats.AvgElapsed = stats.TotalElapsed / time.Duration(stats.Turns)
	}
	return stats
}

// Samples returns a copy of all recorded samples.
func (p *Pipeline) Samples() []Sample {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Sample, len(p.samples))
	copy(out, p.samples)
	return out
}

func (p *Pipeline) evaluateStage(ctx context.Context, stage string, pctx policy.Context) policy.Result {
	_, span := p.spans.StartStageSpan(ctx, stage)
	defer p.spans.EndSpanWithError(span, nil)
	if pctx.Response != "" {
		return p.engine.EvaluateResponse(pctx.Response)
	}
	return p.engine.EvaluateInput(pctx.UserInput)
}

func (p *Pipeline) record(s Sample) {
	p.mu.Lock()
	p.samples = append(p.samples, s)
	p.mu.Unlock()
}

// persistTurn writes the turn to the store. Failures are logged and never
// surfaced: persistence is best effort.
func (p *Pipeline) persistTurn(ctx context.Context, sessionID, text string, turn dialog.Turn) {
	if p.store == nil {
		return
	}

	_, span := p.spans.StartStageSpan(ctx, "persist")
	defer p.spans.EndSpanWithError(span, nil)

	err := p.store.LogConversationTurn(ctx, state.ConversationTurn{
		SessionID:         sessionID,
		UserInput:         text,
		AssistantResponse: turn.Response,
		DetectedIntent:    intentMap(turn.Intent),
		ProcessingTime:    int(turn.Elapsed / time.Millisecond),
		Timestamp:         time.Now().UTC(),
	})
	if err != nil {
		observability.LogPersistFailure(p.logger, sessionID, err)
		return
	}

	if p.bus != nil {
		evt := event.NewStateUpdated(publisherName, map[string]any{
			"session_id": sessionID,
		}, "conversation", sessionID)
		if pubErr := p.bus.Publish(ctx, evt); pubErr != nil && p.logger != nil {
			p.logger.Warn("state update event not published",
				slog.String("session_id", sessionID),
				slog.Any("error", pubErr))
		}
	}
}

func intentMap(detected *intent.Intent) map[string]any {
	if detected == nil {
		return nil
	}
	return map[string]any{
		"name":       detected.Name,
		"confidence": detected.Confidence,
	}
}
