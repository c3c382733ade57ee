package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestNoopMetrics(t *testing.T) {
	m := NoopMetrics{}
	ctx := context.Background()

	// All calls are safe no-ops.
	m.RecordPublish(ctx, "system.start")
	m.RecordDelivery(ctx, "system.start", time.Millisecond, nil)
	m.RecordDelivery(ctx, "system.start", time.Millisecond, assert.AnError)
	m.RecordDeadLetter(ctx, "system.start")
	m.RecordTurn(ctx, true, time.Millisecond)
}

func TestNoopSpanManager(t *testing.T) {
	sm := NoopSpanManager{}
	ctx := context.Background()

	turnCtx, turnSpan := sm.StartTurnSpan(ctx, "sess-1")
	assert.Equal(t, ctx, turnCtx)
	assert.NotNil(t, turnSpan)

	stageCtx, stageSpan := sm.StartStageSpan(ctx, "dialog")
	assert.Equal(t, ctx, stageCtx)
	assert.NotNil(t, stageSpan)

	sm.EndSpanWithError(turnSpan, nil)
	sm.EndSpanWithError(stageSpan, assert.AnError)
	sm.AddSpanEvent(ctx, "event", attribute.String("k", "v"))
}
