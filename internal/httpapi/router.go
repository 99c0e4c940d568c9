package httpapi

import (
	"net/http"
	"time"
)

func NewMux(d Deps) *http.ServeMux {
	mux := http.NewServeMux()

	hh := HealthHandler{Started: time.Now()}
	mux.HandleFunc("/health", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: hh.Health,
	}))

	// Cycle status + run now
	st := StatusHandler{Poller: d.Poller, Trigger: d.Trigger, Hub: d.Hub}
	mux.HandleFunc("/status", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: st.Status,
	}))
	mux.HandleFunc("/run", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: st.Run,
	}))

	sh := SnapshotHandler{Poller: d.Poller, Store: d.Store}
	mux.HandleFunc("/snapshot", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: sh.Snapshot,
	}))
	mux.HandleFunc("/report", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: sh.Report,
	}))

	// History (sqlite)
	hist := HistoryHandler{DB: d.DB}
	mux.HandleFunc("/history", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: hist.Runs,
	}))
	mux.HandleFunc("/history/postings", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: hist.Postings,
	}))
	mux.HandleFunc("/history/checkpoint", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: hist.Checkpoint,
	}))

	// Config
	ch := ConfigHandler{CfgVal: d.CfgVal, UserCfgPath: d.UserCfgPath}
	mux.HandleFunc("/config", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Get,
		http.MethodPut: ch.Put,
	}))
	mux.HandleFunc("/config/path", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Path,
	}))
	mux.HandleFunc("/config/validate", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Validate,
	}))

	// Secrets (use cfgVal, NOT a snapshot cfg)
	if d.Secrets != nil {
		sec := SecretsHandler{CfgVal: d.CfgVal, Secrets: d.Secrets}
		mux.HandleFunc("/secrets/", methodMux(map[string]http.HandlerFunc{
			http.MethodPost: sec.Set,
		}))
	}

	// SSE events
	eh := EventsHandler{Hub: d.Hub}
	mux.HandleFunc("/events", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: eh.ServeSSE,
	}))

	return mux
}

// Handler is NewMux wrapped in the standard middleware chain.
func Handler(d Deps) http.Handler {
	return Chain(NewMux(d), RequestID, Recover, AccessLog)
}
