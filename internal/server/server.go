package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"tadka/internal/models"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Control is the scheduler control surface.
type Control interface {
	GetStatus(ctx context.Context) (models.Status, error)
	SetEnabled(ctx context.Context, enabled bool) (models.SchedulerSettings, error)
	SetFrequency(ctx context.Context, minutes int) (models.SchedulerSettings, error)
	RunNow(ctx context.Context) (models.ScanResult, error)
}

// Articles is the article editing surface.
type Articles interface {
	CreateArticle(ctx context.Context, a models.Article) (models.Article, error)
	GetArticle(ctx context.Context, id int64) (models.Article, error)
	ScheduleArticle(ctx context.Context, id int64, at time.Time) (models.Article, error)
	DraftArticle(ctx context.Context, id int64) (models.Article, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Control  Control
	Articles Articles
	Health   Pinger
	// Gatherer backs /metrics. Nil falls back to the default registry.
	Gatherer prometheus.Gatherer
}

// Server holds the HTTP handler dependencies.
type Server struct {
	control  Control
	articles Articles
	health   Pinger
	gatherer prometheus.Gatherer
}

func NewServer(deps Deps) *Server {
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		control:  deps.Control,
		articles: deps.Articles,
		health:   deps.Health,
		gatherer: deps.Gatherer,
	}
}

// Routes returns the router with request id and logging middleware applied.
func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()
	r.Use(RequestIDMiddleware, LoggingMiddleware)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/scheduler/status", s.GetStatus).Methods(http.MethodGet)
	api.HandleFunc("/scheduler/enabled", s.SetEnabled).Methods(http.MethodPut)
	api.HandleFunc("/scheduler/frequency", s.SetFrequency).Methods(http.MethodPut)
	api.HandleFunc("/scheduler/run", s.RunNow).Methods(http.MethodPost)

	api.HandleFunc("/articles", s.CreateArticle).Methods(http.MethodPost)
	api.HandleFunc("/articles/{id}", s.GetArticle).Methods(http.MethodGet)
	api.HandleFunc("/articles/{id}/schedule", s.ScheduleArticle).Methods(http.MethodPut)
	api.HandleFunc("/articles/{id}/draft", s.DraftArticle).Methods(http.MethodPut)

	r.HandleFunc("/health", s.HealthCheck).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}

// HealthCheck answers 200 OK when the store is reachable, 503 otherwise.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.health.Ping(r.Context()); err != nil {
		http.Error(w, "DB unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Write([]byte("OK"))
}

func (s *Server) GetStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.control.GetStatus(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) SetEnabled(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Enabled == nil {
		writeError(w, r, invalid("enabled is required"))
		return
	}
	settings, err := s.control.SetEnabled(r.Context(), *req.Enabled)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) SetFrequency(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Minutes *int `json:"minutes"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Minutes == nil {
		writeError(w, r, invalid("minutes is required"))
		return
	}
	settings, err := s.control.SetFrequency(r.Context(), *req.Minutes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// RunNow blocks until the scan completes.
func (s *Server) RunNow(w http.ResponseWriter, r *http.Request) {
	res, err := s.control.RunNow(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type articleRequest struct {
	Title              string              `json:"title"`
	Slug               string              `json:"slug"`
	Body               string              `json:"body"`
	Category           string              `json:"category"`
	State              models.ArticleState `json:"state"`
	ScheduledPublishAt *time.Time          `json:"scheduled_publish_at"`
}

func (s *Server) CreateArticle(w http.ResponseWriter, r *http.Request) {
	var req articleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	a, err := s.articles.CreateArticle(r.Context(), models.Article{
		Title:              req.Title,
		Slug:               req.Slug,
		Body:               req.Body,
		Category:           req.Category,
		State:              req.State,
		ScheduledPublishAt: req.ScheduledPublishAt,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) GetArticle(w http.ResponseWriter, r *http.Request) {
	id, err := articleID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, err := s.articles.GetArticle(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) ScheduleArticle(w http.ResponseWriter, r *http.Request) {
	id, err := articleID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		PublishAt string `json:"publish_at"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	at, err := time.Parse(time.RFC3339, req.PublishAt)
	if err != nil {
		writeError(w, r, invalid("publish_at must be an RFC3339 timestamp"))
		return
	}
	a, err := s.articles.ScheduleArticle(r.Context(), id, at)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) DraftArticle(w http.ResponseWriter, r *http.Request) {
	id, err := articleID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, err := s.articles.DraftArticle(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func articleID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id < 1 {
		return 0, invalid("article id must be a positive integer")
	}
	return id, nil
}
