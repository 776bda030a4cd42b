package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"tadka/internal/clock"
	"tadka/internal/control"
	"tadka/internal/db"
	"tadka/internal/logger"
	"tadka/internal/metrics"
	"tadka/internal/models"
	"tadka/internal/publisher"
	"tadka/internal/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	handler http.Handler
	store   db.Store
	clock   *clock.Fake
}

func setup(t *testing.T, enabled bool) *testServer {
	t.Helper()
	logger.Discard()
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	clk := clock.NewFake(time.Date(2024, 5, 10, 9, 0, 0, 0, loc))

	store, err := db.NewSQLiteDB(context.Background(), ":memory:", db.Options{
		Clock:    clk,
		Defaults: models.SchedulerSettings{Enabled: enabled, CheckFrequencyMinutes: 5},
	})
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.Migrate(context.Background()))

	reg := prometheus.NewRegistry()
	job := publisher.New(publisher.Deps{
		Articles: store,
		Settings: store,
		Clock:    clk,
		Metrics:  metrics.NewPublisher(reg),
	})
	require.NoError(t, job.Start(context.Background()))
	t.Cleanup(func() { require.NoError(t, job.Stop(context.Background())) })

	srv := server.NewServer(server.Deps{
		Control:  control.NewService(store, job),
		Articles: store,
		Health:   store,
		Gatherer: reg,
	})
	return &testServer{handler: srv.Routes(), store: store, clock: clk}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthCheck(t *testing.T) {
	ts := setup(t, false)

	w := ts.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "OK", w.Body.String())
	require.NotEmpty(t, w.Header().Get(server.RequestIDHeader))
}

func TestHealthCheck_StoreDown(t *testing.T) {
	srv := server.NewServer(server.Deps{Health: downStore{}})
	w := httptest.NewRecorder()
	srv.HealthCheck(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

type downStore struct{}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestRequestIDIsPropagated(t *testing.T) {
	ts := setup(t, false)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(server.RequestIDHeader, "abc123")
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	require.Equal(t, "abc123", w.Header().Get(server.RequestIDHeader))
}

func TestSchedulerStatusAndToggles(t *testing.T) {
	ts := setup(t, false)

	w := ts.do(t, http.MethodGet, "/api/scheduler/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	st := decode[models.Status](t, w)
	require.False(t, st.Enabled)
	require.Equal(t, 5, st.CheckFrequencyMinutes)
	require.Equal(t, models.JobStopped, st.JobStatus)

	w = ts.do(t, http.MethodPut, "/api/scheduler/enabled", `{"enabled": true}`)
	require.Equal(t, http.StatusOK, w.Code)
	settings := decode[models.SchedulerSettings](t, w)
	require.True(t, settings.Enabled)

	w = ts.do(t, http.MethodPut, "/api/scheduler/frequency", `{"minutes": 2}`)
	require.Equal(t, http.StatusOK, w.Code)
	settings = decode[models.SchedulerSettings](t, w)
	require.Equal(t, 2, settings.CheckFrequencyMinutes)

	w = ts.do(t, http.MethodGet, "/api/scheduler/status", "")
	st = decode[models.Status](t, w)
	require.True(t, st.Enabled)
	require.Equal(t, 2, st.CheckFrequencyMinutes)
	require.Equal(t, models.JobRunningIdle, st.JobStatus)
}

func TestSchedulerBadRequests(t *testing.T) {
	ts := setup(t, true)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"zero frequency", http.MethodPut, "/api/scheduler/frequency", `{"minutes": 0}`, http.StatusBadRequest},
		{"negative frequency", http.MethodPut, "/api/scheduler/frequency", `{"minutes": -1}`, http.StatusBadRequest},
		{"missing minutes", http.MethodPut, "/api/scheduler/frequency", `{}`, http.StatusBadRequest},
		{"non-integer minutes", http.MethodPut, "/api/scheduler/frequency", `{"minutes": "ten"}`, http.StatusBadRequest},
		{"missing enabled", http.MethodPut, "/api/scheduler/enabled", `{}`, http.StatusBadRequest},
		{"malformed json", http.MethodPut, "/api/scheduler/enabled", `{"enabled":`, http.StatusBadRequest},
		{"unknown field", http.MethodPut, "/api/scheduler/enabled", `{"on": true}`, http.StatusBadRequest},
		{"wrong method", http.MethodGet, "/api/scheduler/run", "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, tt.method, tt.path, tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.status == http.StatusBadRequest {
				require.Contains(t, decode[map[string]string](t, w)["error"], "invalid argument")
			}
		})
	}

	settings, err := ts.store.GetSettings(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, settings.CheckFrequencyMinutes)
}

func TestRunNow(t *testing.T) {
	ts := setup(t, false)

	w := ts.do(t, http.MethodPost, "/api/articles",
		`{"title": "Budget session opens", "state": "scheduled", "scheduled_publish_at": "2024-05-10T08:59:00+05:30"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[models.Article](t, w)

	w = ts.do(t, http.MethodPost, "/api/scheduler/run", "")
	require.Equal(t, http.StatusPreconditionFailed, w.Code)

	w = ts.do(t, http.MethodPut, "/api/scheduler/enabled", `{"enabled": true}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPost, "/api/scheduler/run", "")
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[models.ScanResult](t, w)
	require.Equal(t, 1, res.PublishedCount)
	require.Equal(t, []int64{created.ID}, res.Published)
	require.Empty(t, res.Errors)

	w = ts.do(t, http.MethodGet, "/api/articles/"+itoa(created.ID), "")
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[models.Article](t, w)
	require.Equal(t, models.StatePublished, got.State)
	require.NotNil(t, got.PublishedAt)

	w = ts.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `tadka_publisher_scans_total{result="ok"} 1`)
	require.Contains(t, w.Body.String(), "tadka_publisher_articles_published_total 1")
}

func TestArticleEditing(t *testing.T) {
	ts := setup(t, true)

	w := ts.do(t, http.MethodPost, "/api/articles", `{"title": "Cricket final preview", "category": "sports"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	a := decode[models.Article](t, w)
	require.Equal(t, models.StateDraft, a.State)
	id := itoa(a.ID)

	w = ts.do(t, http.MethodPut, "/api/articles/"+id+"/schedule", `{"publish_at": "2024-05-10T18:00:00+05:30"}`)
	require.Equal(t, http.StatusOK, w.Code)
	a = decode[models.Article](t, w)
	require.Equal(t, models.StateScheduled, a.State)
	require.NotNil(t, a.ScheduledPublishAt)
	require.True(t, a.ScheduledPublishAt.Equal(time.Date(2024, 5, 10, 12, 30, 0, 0, time.UTC)))

	w = ts.do(t, http.MethodPut, "/api/articles/"+id+"/draft", "")
	require.Equal(t, http.StatusOK, w.Code)
	a = decode[models.Article](t, w)
	require.Equal(t, models.StateDraft, a.State)
	require.Nil(t, a.ScheduledPublishAt)

	w = ts.do(t, http.MethodPut, "/api/articles/"+id+"/schedule", `{"publish_at": "tomorrow"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestArticleErrors(t *testing.T) {
	ts := setup(t, true)

	at := ts.clock.Now().Add(-time.Minute)
	published, err := ts.store.CreateArticle(context.Background(), models.Article{
		Title: "Old news", State: models.StateScheduled, ScheduledPublishAt: &at,
	})
	require.NoError(t, err)
	outcome, err := ts.store.Publish(context.Background(), published.ID, ts.clock.Now())
	require.NoError(t, err)
	require.Equal(t, models.PublishPublished, outcome)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"missing article", http.MethodGet, "/api/articles/999", "", http.StatusNotFound},
		{"non-numeric id", http.MethodGet, "/api/articles/abc", "", http.StatusBadRequest},
		{"empty title", http.MethodPost, "/api/articles", `{"title": " "}`, http.StatusBadRequest},
		{"create published", http.MethodPost, "/api/articles", `{"title": "x", "state": "published"}`, http.StatusBadRequest},
		{"scheduled without time", http.MethodPost, "/api/articles", `{"title": "x", "state": "scheduled"}`, http.StatusBadRequest},
		{"reschedule published", http.MethodPut, "/api/articles/" + itoa(published.ID) + "/schedule",
			`{"publish_at": "2024-06-01T10:00:00+05:30"}`, http.StatusConflict},
		{"draft published", http.MethodPut, "/api/articles/" + itoa(published.ID) + "/draft", "", http.StatusConflict},
		{"draft missing", http.MethodPut, "/api/articles/999/draft", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, tt.method, tt.path, tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			require.NotEmpty(t, decode[map[string]string](t, w)["error"])
		})
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
