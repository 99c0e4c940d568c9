package events

import (
	"encoding/json"
	"time"
)

// Event types published by the poller and the status API.
const (
	Ping          = "ping"
	CycleStarted  = "cycle_started"
	CycleFinished = "cycle_finished"
	CycleFailed   = "cycle_failed"
	RunQueued     = "run_queued"
)

type Event struct {
	Type      string          `json:"type"`
	Version   int             `json:"v"`
	At        time.Time       `json:"at"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Cycle is the payload of the cycle_* events.
type Cycle struct {
	Source     string   `json:"source"`
	Postings   int      `json:"postings"`
	Added      []string `json:"added,omitempty"`
	Removed    []string `json:"removed,omitempty"`
	FirstRun   bool     `json:"first_run,omitempty"`
	Error      string   `json:"error,omitempty"`
	DurationMs int64    `json:"duration_ms,omitempty"`
}

func MakeEvent(reqID, typ string, v int, data any) string {
	var raw json.RawMessage
	if data != nil {
		b, _ := json.Marshal(data)
		raw = b
	}
	e := Event{
		Type:      typ,
		Version:   v,
		At:        time.Now().UTC(),
		RequestID: reqID,
		Data:      raw,
	}
	b, _ := json.Marshal(e)
	return string(b)
}
