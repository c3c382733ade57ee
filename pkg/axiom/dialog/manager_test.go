package dialog_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SomeRandomTV/AXIOM/pkg/axiom/dialog"
	"github.com/SomeRandomTV/AXIOM/pkg/axiom/event"
	"github.com/SomeRandomTV/AXIOM/pkg/axiom/intent"
)

func newTestBus(t *testing.T) *event.Bus {
	t.Helper()
	b := event.NewBus(event.BusConfig{
		RetryDelay:    time.Millisecond,
		SweepInterval: -1,
	})
	t.Cleanup(func() { _ = b.Close() })
	return b
}

// turnCollector records conversation.turn events.
type turnCollector struct {
	mu     sync.Mutex
	events []*event.Event
}

func (c *turnCollector) Handle(_ context.Context, evt *event.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *turnCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func (c *turnCollector) last() *event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events[len(c.events)-1]
}

func TestManager_ProcessInput(t *testing.T) {
	dm, err := dialog.NewManager(nil, dialog.ManagerConfig{})
	require.NoError(t, err)

	turn := dm.ProcessInput(context.Background(), "what time is it", "s-1")

	require.NotNil(t, turn.Intent)
	assert.Equal(t, "time.query", turn.Intent.Name)
	assert.NotEmpty(t, turn.Response)
	assert.GreaterOrEqual(t, turn.Elapsed, time.Duration(0))
}

func TestManager_UnknownInputGetsFallback(t *testing.T) {
	dm, err := dialog.NewManager(nil, dialog.ManagerConfig{})
	require.NoError(t, err)

	turn := dm.ProcessInput(context.Background(), "xyzzy plugh", "s-1")

	assert.Nil(t, turn.Intent)
	assert.NotEmpty(t, turn.Response)
}

func TestManager_SessionContextUpdates(t *testing.T) {
	dm, err := dialog.NewManager(nil, dialog.ManagerConfig{})
	require.NoError(t, err)
	ctx := context.Background()

	_, ok := dm.Session("s-1")
	assert.False(t, ok)

	dm.ProcessInput(ctx, "hello", "s-1")
	dm.ProcessInput(ctx, "what time is it", "s-1")

	sc, ok := dm.Session("s-1")
	require.True(t, ok)
	assert.Equal(t, 2, sc.TurnCount)
	assert.Equal(t, "time.query", sc.LastIntent)
	assert.NotEmpty(t, sc.LastResponse)
}

func TestManager_SessionsAreIsolated(t *testing.T) {
	dm, err := dialog.NewManager(nil, dialog.ManagerConfig{})
	require.NoError(t, err)
	ctx := context.Background()

	dm.ProcessInput(ctx, "hello", "s-1")
	dm.ProcessInput(ctx, "goodbye", "s-2")

	sc1, ok := dm.Session("s-1")
	require.True(t, ok)
	assert.Equal(t, "greeting", sc1.LastIntent)

	sc2, ok := dm.Session("s-2")
	require.True(t, ok)
	assert.Equal(t, "farewell", sc2.LastIntent)
}

func TestManager_EndSession(t *testing.T) {
	dm, err := dialog.NewManager(nil, dialog.ManagerConfig{})
	require.NoError(t, err)

	dm.ProcessInput(context.Background(), "hello", "s-1")
	dm.EndSession("s-1")

	_, ok := dm.Session("s-1")
	assert.False(t, ok)
}

func TestManager_PublishesTurnEvent(t *testing.T) {
	b := newTestBus(t)
	c := &turnCollector{}
	require.NoError(t, b.Subscribe(event.TypeConversationTurn, c))

	dm, err := dialog.NewManager(b, dialog.ManagerConfig{})
	require.NoError(t, err)

	dm.ProcessInput(context.Background(), "what time is it", "s-1")

	require.Eventually(t, func() bool { return c.count() == 1 },
		2*time.Second, 2*time.Millisecond)

	m := c.last().PayloadMap()
	assert.Equal(t, "s-1", m["session_id"])
	assert.Equal(t, "what time is it", m["user_input"])
	assert.NotEmpty(t, m["assistant_response"])
	intentPayload, ok := m["intent"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "time.query", intentPayload["name"])
}

func TestManager_PanickingDetectorDegrades(t *testing.T) {
	dm, err := dialog.NewManager(nil, dialog.ManagerConfig{
		Detector: panickingDetector{},
	})
	require.NoError(t, err)

	turn := dm.ProcessInput(context.Background(), "hello", "s-1")

	// Detection failure degrades to the unknown-intent path.
	assert.Nil(t, turn.Intent)
	assert.NotEmpty(t, turn.Response)

	sc, ok := dm.Session("s-1")
	require.True(t, ok)
	assert.Equal(t, 1, sc.TurnCount)
}

func TestManager_PanickingGeneratorDegrades(t *testing.T) {
	dm, err := dialog.NewManager(nil, dialog.ManagerConfig{
		Generator: panickingGenerator{},
	})
	require.NoError(t, err)

	turn := dm.ProcessInput(context.Background(), "hello", "s-1")

	assert.Equal(t,
		"I'm having trouble formulating a response. Please try again.",
		turn.Response)
}

type panickingDetector struct{}

func (panickingDetector) DetectIntent(string) *intent.Intent { panic("detector down") }
func (panickingDetector) SupportedIntents() []string         { return nil }

type panickingGenerator struct{}

func (panickingGenerator) GenerateResponse(string, map[string]any, map[string]any) string {
	panic("generator down")
}
