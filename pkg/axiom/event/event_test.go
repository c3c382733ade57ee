package event_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SomeRandomTV/AXIOM/pkg/axiom/event"
)

func TestNew_Defaults(t *testing.T) {
	before := time.Now()
	evt := event.New(event.TypeSystemStart, "test", nil)

	assert.Equal(t, event.TypeSystemStart, evt.Type)
	assert.Equal(t, "test", evt.Source)
	assert.NotEmpty(t, evt.CorrelationID)
	assert.NotNil(t, evt.Payload)
	assert.False(t, evt.Timestamp.Before(before))
}

func TestNew_Options(t *testing.T) {
	ts := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	evt := event.New(event.TypeSystemStart, "test", nil,
		event.WithCorrelationID("corr-1"),
		event.WithTimestamp(ts),
	)

	assert.Equal(t, "corr-1", evt.CorrelationID)
	assert.Equal(t, ts, evt.Timestamp)
}

func TestNew_DistinctCorrelationIDs(t *testing.T) {
	a := event.New(event.TypeSystemStart, "test", nil)
	b := event.New(event.TypeSystemStart, "test", nil)
	assert.NotEqual(t, a.CorrelationID, b.CorrelationID)
}

func TestCorrelate(t *testing.T) {
	parent := event.New(event.TypeConversationTurn, "dialog_manager",
		event.NewPayload(event.KV("session_id", "s-1")))

	child := event.Correlate(parent, event.TypeStateUpdated, "state_store",
		event.NewPayload(event.KV("entity_type", "conversation")))

	assert.Equal(t, parent.CorrelationID, child.CorrelationID)
	assert.Equal(t, event.TypeStateUpdated, child.Type)
	assert.Equal(t, "state_store", child.Source)

	// Empty fields fall back to the parent's values.
	fallback := event.Correlate(parent, "", "", nil)
	assert.Equal(t, parent.Type, fallback.Type)
	assert.Equal(t, parent.Source, fallback.Source)
	assert.Equal(t, parent.Payload, fallback.Payload)
}

func TestJSONRoundTrip(t *testing.T) {
	evt := event.New(event.TypeConversationTurn, "dialog_manager",
		event.NewPayload(
			event.KV("session_id", "s-1"),
			event.KV("user_input", "hello"),
		),
		event.WithCorrelationID("corr-9"),
	)

	data, err := evt.ToJSON()
	require.NoError(t, err)

	decoded, err := event.FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, evt.Type, decoded.Type)
	assert.Equal(t, evt.Source, decoded.Source)
	assert.Equal(t, "corr-9", decoded.CorrelationID)

	sid, ok := decoded.Payload.Get("session_id")
	require.True(t, ok)
	assert.Equal(t, "s-1", sid)
}

func TestJSON_PreservesPayloadOrder(t *testing.T) {
	evt := event.New(event.TypeSystemShutdown, "main",
		event.NewPayload(
			event.KV("zebra", 1),
			event.KV("apple", 2),
			event.KV("mango", 3),
		))

	data, err := evt.ToJSON()
	require.NoError(t, err)

	decoded, err := event.FromJSON(data)
	require.NoError(t, err)

	var keys []string
	for pair := decoded.Payload.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	assert.Equal(t, []string{"zebra", "apple", "mango"}, keys)
}

func TestFromJSON_Invalid(t *testing.T) {
	_, err := event.FromJSON([]byte("not json"))
	assert.Error(t, err)
}

func TestPayloadMap(t *testing.T) {
	evt := event.New(event.TypeSystemStart, "main",
		event.NewPayload(event.KV("version", "1.0.0")))

	m := evt.PayloadMap()
	assert.Equal(t, "1.0.0", m["version"])
}

func TestTypedConstructors(t *testing.T) {
	t.Run("system start", func(t *testing.T) {
		evt := event.NewSystemStart("main", "2.1.0", map[string]any{"debug": true})
		assert.Equal(t, event.TypeSystemStart, evt.Type)
		m := evt.PayloadMap()
		assert.Equal(t, "2.1.0", m["version"])
	})

	t.Run("system shutdown", func(t *testing.T) {
		evt := event.NewSystemShutdown("main", "user exit", true)
		assert.Equal(t, event.TypeSystemShutdown, evt.Type)
		m := evt.PayloadMap()
		assert.Equal(t, "user exit", m["reason"])
		assert.Equal(t, true, m["graceful"])
	})

	t.Run("conversation turn", func(t *testing.T) {
		evt := event.NewConversationTurn("dialog_manager", "s-1", "hi", "Hello!",
			map[string]any{"name": "greeting"}, 12.5)
		assert.Equal(t, event.TypeConversationTurn, evt.Type)
		m := evt.PayloadMap()
		assert.Equal(t, "s-1", m["session_id"])
		assert.Equal(t, "hi", m["user_input"])
		assert.Equal(t, "Hello!", m["assistant_response"])
		assert.Equal(t, 12.5, m["processing_time"])
	})

	t.Run("state updated", func(t *testing.T) {
		evt := event.NewStateUpdated("state_store", map[string]any{"rows": 1},
			"conversation", "42")
		assert.Equal(t, event.TypeStateUpdated, evt.Type)
		m := evt.PayloadMap()
		assert.Equal(t, map[string]any{"rows": 1}, m["changes"])
		assert.Equal(t, "conversation", m["entity_type"])
		assert.Equal(t, "42", m["entity_id"])
	})
}

func TestValidType(t *testing.T) {
	for _, valid := range event.Types() {
		assert.True(t, event.ValidType(valid), valid)
	}
	assert.False(t, event.ValidType("sensor.reading"))
	assert.False(t, event.ValidType(""))
}

func TestTypes_Sorted(t *testing.T) {
	types := event.Types()
	require.Len(t, types, 4)
	assert.Equal(t, []string{
		event.TypeConversationTurn,
		event.TypeStateUpdated,
		event.TypeSystemShutdown,
		event.TypeSystemStart,
	}, types)
}
