package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"careerwatch/internal/config"
	"careerwatch/internal/domain"
	"careerwatch/internal/events"
	"careerwatch/internal/poll"
	"careerwatch/internal/secrets"
	"careerwatch/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePoller struct {
	status poll.Status
	last   *poll.Result
}

func (f *fakePoller) Status() poll.Status { return f.status }

func (f *fakePoller) Last() (poll.Result, bool) {
	if f.last == nil {
		return poll.Result{}, false
	}
	return *f.last, true
}

type fakeLoader struct {
	snap *domain.Snapshot
}

func (f fakeLoader) Load(context.Context) (*domain.Snapshot, error) { return f.snap, nil }

type fakeSetter struct {
	kind  secrets.Kind
	value string
}

func (f *fakeSetter) Set(k secrets.Kind, _ config.Config, v string) error {
	f.kind, f.value = k, v
	return nil
}

func cfgVal() *atomic.Value {
	var v atomic.Value
	v.Store(config.Default())
	return &v
}

func serve(t *testing.T, d Deps, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	if d.CfgVal == nil {
		d.CfgVal = cfgVal()
	}
	if d.Poller == nil {
		d.Poller = &fakePoller{}
	}
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.RemoteAddr = "127.0.0.1:50123"
	rec := httptest.NewRecorder()
	Handler(d).ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestHealth(t *testing.T) {
	rec := serve(t, Deps{}, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var out map[string]any
	decode(t, rec, &out)
	assert.Equal(t, true, out["ok"])
}

func TestRequestIDIsEchoed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc123")
	rec := httptest.NewRecorder()
	Handler(Deps{Poller: &fakePoller{}, CfgVal: cfgVal()}).ServeHTTP(rec, req)
	assert.Equal(t, "abc123", rec.Header().Get("X-Request-ID"))
}

func TestMethodNotAllowed(t *testing.T) {
	rec := serve(t, Deps{}, http.MethodGet, "/run", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "POST", rec.Header().Get("Allow"))

	var e APIError
	decode(t, rec, &e)
	assert.Equal(t, "method_not_allowed", e.Error.Code)
}

func TestAccessLogKeepsFlusher(t *testing.T) {
	var flushed bool
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, ok := w.(http.Flusher)
		require.True(t, ok)
		f.Flush()
		flushed = true
	}), RequestID, AccessLog)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events", nil))
	assert.True(t, flushed)
	assert.True(t, rec.Flushed)
}

func TestRecover(t *testing.T) {
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), RequestID, Recover)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var e APIError
	decode(t, rec, &e)
	assert.Equal(t, "internal_error", e.Error.Code)
	assert.NotEmpty(t, e.Error.RequestID)
}

func TestStatus(t *testing.T) {
	p := &fakePoller{status: poll.Status{LastRunAt: "2026-04-02T08:00:00Z", LastAdded: 2, Runs: 5}}
	rec := serve(t, Deps{Poller: p}, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var st poll.Status
	decode(t, rec, &st)
	assert.Equal(t, p.status, st)
}

func TestRun(t *testing.T) {
	trigger := make(chan struct{}, 1)
	hub := events.NewHub()
	sub := hub.Subscribe()
	d := Deps{Trigger: trigger, Hub: hub}

	rec := serve(t, d, http.MethodPost, "/run", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Len(t, trigger, 1)
	assert.Contains(t, <-sub, events.RunQueued)

	rec = serve(t, d, http.MethodPost, "/run", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "already queued")
}

func TestRun_AlreadyRunning(t *testing.T) {
	trigger := make(chan struct{}, 1)
	rec := serve(t, Deps{Trigger: trigger, Poller: &fakePoller{status: poll.Status{Running: true}}}, http.MethodPost, "/run", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Len(t, trigger, 0)
}

func TestRun_NoLoop(t *testing.T) {
	rec := serve(t, Deps{}, http.MethodPost, "/run", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSnapshotAndReport(t *testing.T) {
	snap := domain.NewSnapshot([]domain.Posting{{Title: "Data Analyst", Department: "Data Science & Research"}}, nil,
		time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC))
	p := &fakePoller{last: &poll.Result{Snapshot: snap, Report: "the report"}}

	rec := serve(t, Deps{Poller: p}, http.MethodGet, "/snapshot", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"title":"Data Analyst"`)
	assert.Contains(t, rec.Body.String(), `"department":"Data Science & Research"`)
	var v snapshotView
	decode(t, rec, &v)
	assert.Equal(t, 1, v.Count)
	assert.Equal(t, "cycle", v.Source)

	rec = serve(t, Deps{Poller: p}, http.MethodGet, "/report", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "the report", rec.Body.String())
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
}

func TestSnapshot_FallsBackToStore(t *testing.T) {
	snap := domain.NewSnapshot(nil, nil, time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC))
	rec := serve(t, Deps{Store: fakeLoader{snap: &snap}}, http.MethodGet, "/snapshot", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var v snapshotView
	decode(t, rec, &v)
	assert.Equal(t, "store", v.Source)
	assert.Equal(t, 0, v.Count)
	assert.NotNil(t, v.Postings)
}

func TestSnapshot_NoneYet(t *testing.T) {
	rec := serve(t, Deps{Store: fakeLoader{}}, http.MethodGet, "/snapshot", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, Deps{}, http.MethodGet, "/report", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHistory(t *testing.T) {
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	base := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := store.RecordRun(ctx, db.Pool, store.Run{
			StartedAt:  base.Add(time.Duration(i) * time.Hour),
			FinishedAt: base.Add(time.Duration(i)*time.Hour + time.Second),
			Source:     "browser",
			OK:         true,
			Postings:   i,
		})
		require.NoError(t, err)
	}
	require.NoError(t, store.RecordSnapshot(ctx, db.Pool, domain.NewSnapshot(
		[]domain.Posting{{Title: "Data Analyst", Department: "Data Science & Research"}}, nil, base)))

	d := Deps{DB: db.Pool}
	rec := serve(t, d, http.MethodGet, "/history?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var runs struct {
		Runs []store.Run `json:"runs"`
	}
	decode(t, rec, &runs)
	require.Len(t, runs.Runs, 2)
	assert.Equal(t, 2, runs.Runs[0].Postings)

	rec = serve(t, d, http.MethodGet, "/history?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, d, http.MethodGet, "/history/postings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"title":"Data Analyst"`)

	rec = serve(t, d, http.MethodPost, "/history/checkpoint", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHistory_Disabled(t *testing.T) {
	rec := serve(t, Deps{}, http.MethodGet, "/history", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var e APIError
	decode(t, rec, &e)
	assert.Equal(t, "history_disabled", e.Error.Code)
}

func TestConfigGetAndValidate(t *testing.T) {
	rec := serve(t, Deps{}, http.MethodGet, "/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Performance Science")

	rec = serve(t, Deps{}, http.MethodGet, "/config/validate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var vr config.Validation
	decode(t, rec, &vr)
}

func TestConfigPut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	d := Deps{UserCfgPath: path}

	rec := serve(t, d, http.MethodPut, "/config", `{"Departments":["Sales"],"Notify":{"Channels":["console"]}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	saved, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sales"}, saved.Departments)

	rec = serve(t, d, http.MethodPut, "/config", `{"Departments":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, d, http.MethodPut, "/config", `{"Nope":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConfigPut_RemoteForbidden(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/config", strings.NewReader(`{}`))
	req.RemoteAddr = "192.0.2.10:4000"
	rec := httptest.NewRecorder()
	Handler(Deps{Poller: &fakePoller{}, CfgVal: cfgVal(), UserCfgPath: "x.yml"}).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSecretsSet(t *testing.T) {
	fs := &fakeSetter{}
	d := Deps{Secrets: fs}

	rec := serve(t, d, http.MethodPost, "/secrets/telegram", `{"password":"123:abc"}`)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.Equal(t, secrets.Telegram, fs.kind)
	assert.Equal(t, "123:abc", fs.value)

	rec = serve(t, d, http.MethodPost, "/secrets/ftp", `{"password":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, d, http.MethodPost, "/secrets/smtp", `{"password":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEventsSSE(t *testing.T) {
	hub := events.NewHub()
	srv := httptest.NewServer(Handler(Deps{Hub: hub, Poller: &fakePoller{}, CfgVal: cfgVal()}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	rd := bufio.NewReader(resp.Body)
	readData := func() string {
		for {
			line, err := rd.ReadString('\n')
			require.NoError(t, err)
			if strings.HasPrefix(line, "data: ") {
				return strings.TrimSpace(strings.TrimPrefix(line, "data: "))
			}
		}
	}

	assert.Contains(t, readData(), `"type":"ping"`)

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)
	hub.Emit(events.CycleFinished, events.Cycle{Source: "browser", Postings: 2})
	msg := readData()
	assert.Contains(t, msg, `"type":"cycle_finished"`)
	assert.Contains(t, msg, `"postings":2`)
}
