package httpapi

import (
	"database/sql"
	"net/http"
	"strconv"

	"careerwatch/internal/store"
)

type HistoryHandler struct {
	DB *sql.DB
}

// Runs lists recent cycles, newest first. ?limit=N (default 20, max 500).
func (h HistoryHandler) Runs(w http.ResponseWriter, r *http.Request) {
	if h.DB == nil {
		WriteError(w, r, http.StatusNotFound, "history_disabled", "storage.history_db is not configured")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			WriteError(w, r, http.StatusBadRequest, "bad_limit", "limit must be a positive integer")
			return
		}
		limit = min(n, 500)
	}

	runs, err := store.RecentRuns(r.Context(), h.DB, limit)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	writeJSON(w, map[string]any{"runs": runs})
}

// Postings lists every title ever seen with first/last seen times. Removed
// postings are included with ?all=1.
func (h HistoryHandler) Postings(w http.ResponseWriter, r *http.Request) {
	if h.DB == nil {
		WriteError(w, r, http.StatusNotFound, "history_disabled", "storage.history_db is not configured")
		return
	}
	all, _ := strconv.ParseBool(r.URL.Query().Get("all"))
	ps, err := store.ListPostings(r.Context(), h.DB, all)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	if ps == nil {
		ps = []store.PostingRecord{}
	}
	writeJSON(w, map[string]any{"postings": ps})
}

// Checkpoint folds the WAL into the main database file. Loopback only.
func (h HistoryHandler) Checkpoint(w http.ResponseWriter, r *http.Request) {
	if h.DB == nil {
		WriteError(w, r, http.StatusNotFound, "history_disabled", "storage.history_db is not configured")
		return
	}
	if !isLoopback(r) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if _, err := h.DB.ExecContext(r.Context(), `PRAGMA wal_checkpoint(FULL);`); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
