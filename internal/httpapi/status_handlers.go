package httpapi

import (
	"net/http"

	"careerwatch/internal/events"
)

type StatusHandler struct {
	Poller  Poller
	Trigger chan<- struct{}
	Hub     *events.Hub
}

func (h StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.Poller.Status())
}

// Run queues a cycle on the scheduler loop. It never runs one itself, so a
// cycle started over HTTP cannot overlap a scheduled one.
func (h StatusHandler) Run(w http.ResponseWriter, r *http.Request) {
	if h.Trigger == nil {
		WriteError(w, r, http.StatusServiceUnavailable, "loop_not_running", "no scheduler loop to trigger")
		return
	}
	if h.Poller.Status().Running {
		WriteJSON(w, http.StatusConflict, map[string]any{"ok": false, "msg": "already running"})
		return
	}

	select {
	case h.Trigger <- struct{}{}:
		h.Hub.Publish(events.MakeEvent(RequestIDFrom(r.Context()), events.RunQueued, 1, nil))
		WriteJSON(w, http.StatusAccepted, map[string]any{"ok": true})
	default:
		WriteJSON(w, http.StatusConflict, map[string]any{"ok": false, "msg": "run already queued"})
	}
}
