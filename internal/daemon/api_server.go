package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"meddoc/internal/config"
	"meddoc/internal/index"
	"meddoc/internal/logging"
	"meddoc/internal/search"
	"meddoc/internal/services"
)

const (
	defaultListLimit   = 100
	defaultSearchLimit = 20
	maxBodyBytes       = 64 * 1024
)

type recordStore interface {
	GetByID(ctx context.Context, id int64) (*index.Record, error)
	Search(ctx context.Context, q index.Query) ([]index.Record, error)
	ListByDevice(ctx context.Context, deviceSlug string) ([]index.Record, error)
	CountByDevice(ctx context.Context, deviceSlug string) (map[string]int, error)
	Stats(ctx context.Context) (index.Stats, error)
}

type recordActions interface {
	Confirm(ctx context.Context, id int64) (*index.Record, error)
	Edit(ctx context.Context, id int64, field, value string) (*index.Record, error)
}

type fullTextSearcher interface {
	Search(ctx context.Context, raw string, limit int) ([]search.Hit, error)
}

type apiServer struct {
	bind    string
	token   string
	logger  *slog.Logger
	status  func(ctx context.Context) Status
	store   recordStore
	actions recordActions
	search  fullTextSearcher

	listener net.Listener
	server   *http.Server
}

// EditRequest is the PATCH /api/records/{id} body.
type EditRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// RecordResponse wraps a single record.
type RecordResponse struct {
	Record index.Record `json:"record"`
}

// RecordListResponse wraps a record listing.
type RecordListResponse struct {
	Records []index.Record `json:"records"`
}

// SearchHit pairs a full-text hit with its record.
type SearchHit struct {
	Score  float64      `json:"score"`
	Record index.Record `json:"record"`
}

// SearchResponse is returned by GET /api/search.
type SearchResponse struct {
	Query   string      `json:"query"`
	DocType string      `json:"doc_type,omitempty"`
	Keyword string      `json:"keyword,omitempty"`
	Hits    []SearchHit `json:"hits"`
}

// DeviceResponse is returned by GET /api/devices/{slug}.
type DeviceResponse struct {
	DeviceSlug string         `json:"device_slug"`
	Counts     map[string]int `json:"counts"`
	Records    []index.Record `json:"records"`
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}
	srv := &apiServer{
		bind:    bind,
		token:   strings.TrimSpace(cfg.Paths.APIToken),
		logger:  logging.NewComponentLogger(logger, "api-server"),
		status:  d.Status,
		store:   d.store,
		actions: d.pipeline,
	}
	if d.search != nil {
		srv.search = d.search
	}
	srv.server = &http.Server{
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(instrument(s.log()))
	r.Use(authMiddleware(s.token, "/metrics"))

	r.Handle("/metrics", promhttp.Handler())
	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/records", s.handleListRecords)
		r.Get("/records/{id}", s.handleGetRecord)
		r.Post("/records/{id}/approve", s.handleApprove)
		r.Patch("/records/{id}", s.handleEdit)
		r.Get("/search", s.handleSearch)
		r.Get("/devices/{slug}", s.handleDevice)
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening",
		logging.String("address", listener.Addr().String()),
		logging.Bool("auth", s.token != ""),
	)
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) address() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		s.writeError(w, http.StatusServiceUnavailable, "status unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, s.status(r.Context()))
}

func (s *apiServer) handleListRecords(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q := index.Query{
		DocType:    strings.TrimSpace(query.Get("doc_type")),
		DeviceSlug: strings.TrimSpace(query.Get("device")),
		Category:   strings.TrimSpace(query.Get("category")),
		Group:      strings.TrimSpace(query.Get("group")),
		Keyword:    strings.TrimSpace(query.Get("q")),
		OrderBy:    strings.TrimSpace(query.Get("order_by")),
		Limit:      defaultListLimit,
	}
	if raw := strings.TrimSpace(query.Get("confirmed")); raw != "" {
		confirmed, err := strconv.ParseBool(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "confirmed must be true or false")
			return
		}
		q.Confirmed = &confirmed
	}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		q.Limit = limit
	}

	records, err := s.store.Search(r.Context(), q)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if records == nil {
		records = []index.Record{}
	}
	s.writeJSON(w, http.StatusOK, RecordListResponse{Records: records})
}

func (s *apiServer) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := s.recordID(w, r)
	if !ok {
		return
	}
	rec, err := s.store.GetByID(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if rec == nil {
		s.writeError(w, http.StatusNotFound, "record not found")
		return
	}
	s.writeJSON(w, http.StatusOK, RecordResponse{Record: *rec})
}

func (s *apiServer) handleApprove(w http.ResponseWriter, r *http.Request) {
	id, ok := s.recordID(w, r)
	if !ok {
		return
	}
	if s.actions == nil {
		s.writeError(w, http.StatusServiceUnavailable, "pipeline unavailable")
		return
	}
	rec, err := s.actions.Confirm(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, RecordResponse{Record: *rec})
}

func (s *apiServer) handleEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := s.recordID(w, r)
	if !ok {
		return
	}
	if s.actions == nil {
		s.writeError(w, http.StatusServiceUnavailable, "pipeline unavailable")
		return
	}
	var req EditRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Field) == "" {
		s.writeError(w, http.StatusBadRequest, "field is required")
		return
	}
	rec, err := s.actions.Edit(r.Context(), id, req.Field, req.Value)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, RecordResponse{Record: *rec})
}

func (s *apiServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("q"))
	if raw == "" {
		s.writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	if s.search == nil {
		s.writeError(w, http.StatusServiceUnavailable, "search index unavailable")
		return
	}
	limit := defaultSearchLimit
	if value := strings.TrimSpace(r.URL.Query().Get("limit")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	hits, err := s.search.Search(r.Context(), raw, limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	docType, keyword := search.ParseQuery(raw)
	resp := SearchResponse{Query: raw, DocType: docType, Keyword: keyword, Hits: []SearchHit{}}
	for _, hit := range hits {
		rec, err := s.store.GetByID(r.Context(), hit.RecordID)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		if rec == nil || !rec.Confirmed {
			continue
		}
		resp.Hits = append(resp.Hits, SearchHit{Score: hit.Score, Record: *rec})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleDevice(w http.ResponseWriter, r *http.Request) {
	deviceSlug := chi.URLParam(r, "slug")
	records, err := s.store.ListByDevice(r.Context(), deviceSlug)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	counts, err := s.store.CountByDevice(r.Context(), deviceSlug)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if len(records) == 0 {
		s.writeError(w, http.StatusNotFound, "device not found")
		return
	}
	s.writeJSON(w, http.StatusOK, DeviceResponse{DeviceSlug: deviceSlug, Counts: counts, Records: records})
}

func (s *apiServer) recordID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid record id")
		return 0, false
	}
	return id, true
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	status := services.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.log().Error("api request failed", logging.Error(err))
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error(), "kind": services.FailureKind(err)})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return logging.NewNop()
}
