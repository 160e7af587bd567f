// Package api exposes the registry and the pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/project-registry/internal/model"
	"github.com/sells-group/project-registry/internal/store"
)

// MaxRunItems bounds the items accepted by one run request.
const MaxRunItems = 1000

const maxBodyBytes = 16 << 20

// Runner executes pipeline runs. *pipeline.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, items []model.RawItem) model.Summary
	RunStreaming(ctx context.Context, items []model.RawItem, emit func(model.ProgressEvent)) model.Summary
}

// Server serves the registry API.
type Server struct {
	store       store.Store
	runner      Runner
	corsOrigins []string
}

// NewServer creates a Server. An empty corsOrigins allows every origin.
func NewServer(st store.Store, runner Runner, corsOrigins []string) *Server {
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	return &Server{store: st, runner: runner, corsOrigins: corsOrigins}
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/projects", func(r chi.Router) {
		r.Get("/", s.handleListProjects)
		r.Get("/{id}", s.handleGetProject)
	})
	r.Get("/stats", s.handleStats)
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", s.handleListRuns)
		r.Post("/", s.handleRun)
		r.Post("/stream", s.handleRunStream)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ProjectFilter{
		Region:     q.Get("region"),
		City:       q.Get("city"),
		Category:   q.Get("category"),
		Contractor: q.Get("contractor"),
		Search:     q.Get("q"),
	}
	if raw := q.Get("status"); raw != "" {
		status, ok := model.ParseStatus(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		filter.Status = status
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	projects, err := s.store.ListProjects(r.Context(), filter)
	if err != nil {
		s.internalError(w, "list projects", err)
		return
	}
	if projects == nil {
		projects = []model.ProjectRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects, "count": len(projects)})
}

type projectDetail struct {
	Project *model.ProjectRecord `json:"project"`
	Summary string               `json:"summary"`
	Sources []model.SourceRecord `json:"sources"`
	Updates []model.UpdateLog    `json:"updates"`
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	project, err := s.store.GetProject(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}
	if err != nil {
		s.internalError(w, "get project", err)
		return
	}
	sources, err := s.store.ListSources(r.Context(), id)
	if err != nil {
		s.internalError(w, "list sources", err)
		return
	}
	updates, err := s.store.ListUpdateLogs(r.Context(), id)
	if err != nil {
		s.internalError(w, "list update logs", err)
		return
	}
	summary := project.Description
	if summary == "" {
		summary = project.Summary()
	}
	writeJSON(w, http.StatusOK, projectDetail{Project: project, Summary: summary, Sources: sources, Updates: updates})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context(), time.Now().UTC())
	if err != nil {
		s.internalError(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		s.internalError(w, "list runs", err)
		return
	}
	if runs == nil {
		runs = []model.RunLog{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	items, ok := decodeItems(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.runner.Run(r.Context(), items))
}

// handleRunStream writes one JSON object per line: a ProgressEvent per item
// and a final event with completed set. The run stops at the next item
// boundary when the client disconnects.
func (s *Server) handleRunStream(w http.ResponseWriter, r *http.Request) {
	items, ok := decodeItems(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	s.runner.RunStreaming(r.Context(), items, func(ev model.ProgressEvent) {
		if err := enc.Encode(ev); err != nil {
			zap.L().Debug("api: stream write failed", zap.Error(err))
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	})
}

func decodeItems(w http.ResponseWriter, r *http.Request) ([]model.RawItem, bool) {
	var items []model.RawItem
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&items); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: expected a JSON array of items")
		return nil, false
	}
	if len(items) > MaxRunItems {
		writeError(w, http.StatusRequestEntityTooLarge, "too many items")
		return nil, false
	}
	return items, true
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	zap.L().Error("api: "+op+" failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New("invalid integer")
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: write response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// requestLogger logs one line per request with zap.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
