package httpapi

import (
	"io"
	"net/http"
	"time"

	"careerwatch/internal/domain"
)

type SnapshotHandler struct {
	Poller Poller
	Store  SnapshotLoader
}

type snapshotView struct {
	Count            int                      `json:"count"`
	Postings         []domain.Posting         `json:"postings"`
	DepartmentCounts []domain.DepartmentCount `json:"department_counts"`
	CapturedAt       time.Time                `json:"captured_at"`
	Source           string                   `json:"source"` // "cycle" or "store"
}

// Snapshot serves the last cycle's snapshot, or the stored one before the
// first cycle of this process has finished.
func (h SnapshotHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	if res, ok := h.Poller.Last(); ok {
		writeJSON(w, view(res.Snapshot, "cycle"))
		return
	}
	if h.Store == nil {
		WriteError(w, r, http.StatusNotFound, "no_snapshot", "no snapshot yet")
		return
	}
	snap, err := h.Store.Load(r.Context())
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	if snap == nil {
		WriteError(w, r, http.StatusNotFound, "no_snapshot", "no snapshot yet")
		return
	}
	writeJSON(w, view(*snap, "store"))
}

func (h SnapshotHandler) Report(w http.ResponseWriter, r *http.Request) {
	res, ok := h.Poller.Last()
	if !ok {
		WriteError(w, r, http.StatusNotFound, "no_report", "no cycle has finished yet")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, res.Report)
}

func view(s domain.Snapshot, from string) snapshotView {
	ps := s.Postings
	if ps == nil {
		ps = []domain.Posting{}
	}
	dc := s.DepartmentCounts
	if dc == nil {
		dc = []domain.DepartmentCount{}
	}
	return snapshotView{
		Count:            len(ps),
		Postings:         ps,
		DepartmentCounts: dc,
		CapturedAt:       s.CapturedAt,
		Source:           from,
	}
}
