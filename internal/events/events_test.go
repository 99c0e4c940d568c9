package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeEvent(t *testing.T) {
	raw := MakeEvent("req-1", CycleFinished, 1, Cycle{Source: "browser", Postings: 3, Added: []string{"Data Analyst"}})

	var e Event
	require.NoError(t, json.Unmarshal([]byte(raw), &e))
	assert.Equal(t, CycleFinished, e.Type)
	assert.Equal(t, 1, e.Version)
	assert.Equal(t, "req-1", e.RequestID)
	assert.False(t, e.At.IsZero())

	var c Cycle
	require.NoError(t, json.Unmarshal(e.Data, &c))
	assert.Equal(t, "browser", c.Source)
	assert.Equal(t, []string{"Data Analyst"}, c.Added)
}

func TestMakeEvent_NoData(t *testing.T) {
	assert.NotContains(t, MakeEvent("", Ping, 1, nil), `"data"`)
}

func TestHub(t *testing.T) {
	h := NewHub()
	a := h.Subscribe()
	b := h.Subscribe()
	assert.Equal(t, 2, h.Subscribers())

	h.Emit(CycleStarted, nil)
	assert.Contains(t, <-a, `"type":"cycle_started"`)
	assert.Contains(t, <-b, `"type":"cycle_started"`)

	h.Unsubscribe(a)
	h.Unsubscribe(a)
	assert.Equal(t, 1, h.Subscribers())
	_, open := <-a
	assert.False(t, open)
}

func TestHub_SlowSubscriberDropped(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe()
	for i := 0; i < 25; i++ {
		h.Publish("x")
	}
	assert.Len(t, ch, 10)
}

func TestHub_Nil(t *testing.T) {
	var h *Hub
	h.Emit(CycleFailed, Cycle{Error: "boom"})
	h.Publish("x")
	assert.Equal(t, 0, h.Subscribers())
}
