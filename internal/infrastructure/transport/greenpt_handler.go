package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"greenpt/app/usecase"
	"greenpt/internal/domain/entity"
	"greenpt/internal/infrastructure/archive"
	"greenpt/internal/infrastructure/llm"
)

const watchPollInterval = time.Second

type GreenPTHandler struct {
	projectService usecase.ProjectUsecase
	chatService    usecase.ChatUsecase
	buildService   usecase.BuildUsecase
	models         ModelLister
	logger         *slog.Logger
	upgrader       websocket.Upgrader

	// метрики
	reqDuration *prometheus.HistogramVec
	reqCount    *prometheus.CounterVec
	errCount    *prometheus.CounterVec
}

// ModelLister — срез CompletionClient, который нужен транспорту.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

func NewGreenPTHandler(
	projectService usecase.ProjectUsecase,
	chatService usecase.ChatUsecase,
	buildService usecase.BuildUsecase,
	models ModelLister,
	logger *slog.Logger,
) *GreenPTHandler {

	reqDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	reqCount := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed.",
		},
		[]string{"method", "path"},
	)

	errCount := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total number of HTTP request errors.",
		},
		[]string{"method", "path", "status"},
	)

	prometheus.MustRegister(reqDuration, reqCount, errCount)

	return &GreenPTHandler{
		projectService: projectService,
		chatService:    chatService,
		buildService:   buildService,
		models:         models,
		logger:         logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		reqDuration: reqDuration,
		reqCount:    reqCount,
		errCount:    errCount,
	}
}

// Middleware для метрик
func (h *GreenPTHandler) withMetrics(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := r.URL.Path
		method := r.Method

		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rw, r)

		duration := time.Since(start).Seconds()
		statusStr := strconv.Itoa(rw.status)

		h.reqCount.WithLabelValues(method, path).Inc()
		h.reqDuration.WithLabelValues(method, path, statusStr).Observe(duration)

		if rw.status >= 400 {
			h.errCount.WithLabelValues(method, path, statusStr).Inc()
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (h *GreenPTHandler) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/health", h.withMetrics(h.handleHealth)).Methods(http.MethodGet)
	api.HandleFunc("/models", h.withMetrics(h.handleListModels)).Methods(http.MethodGet)

	api.HandleFunc("/projects", h.withMetrics(h.handleCreateProject)).Methods(http.MethodPost)
	api.HandleFunc("/projects", h.withMetrics(h.handleListProjects)).Methods(http.MethodGet)
	api.HandleFunc("/projects/{slug}", h.withMetrics(h.handleGetProject)).Methods(http.MethodGet)
	api.HandleFunc("/projects/{slug}", h.withMetrics(h.handleDeleteProject)).Methods(http.MethodDelete)
	api.HandleFunc("/projects/{slug}/chat", h.withMetrics(h.handleChat)).Methods(http.MethodPost)
	api.HandleFunc("/projects/{slug}/builds", h.withMetrics(h.handleEnqueueBuild)).Methods(http.MethodPost)
	api.HandleFunc("/projects/{slug}/builds", h.withMetrics(h.handleListProjectBuilds)).Methods(http.MethodGet)

	api.HandleFunc("/builds", h.withMetrics(h.handleListBuilds)).Methods(http.MethodGet)
	api.HandleFunc("/builds/{id}", h.withMetrics(h.handleGetBuild)).Methods(http.MethodGet)
	api.HandleFunc("/builds/{id}", h.withMetrics(h.handleDeleteBuild)).Methods(http.MethodDelete)
	api.HandleFunc("/builds/{id}/files", h.withMetrics(h.handleGetFiles)).Methods(http.MethodGet)
	api.HandleFunc("/builds/{id}/archive", h.withMetrics(h.handleArchive)).Methods(http.MethodGet)
	api.HandleFunc("/builds/{id}/watch", h.handleWatchBuild).Methods(http.MethodGet)

	// Prometheus
	r.Handle("/metrics", promhttp.Handler())
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// GET /api/v1/health
func (h *GreenPTHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"ok": true,
		"ts": time.Now().UTC(),
	}
	writeJSON(w, http.StatusOK, status)
}

// GET /api/v1/models
func (h *GreenPTHandler) handleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.models.ListModels(r.Context())
	if err != nil {
		h.logger.Error("list models failed", "err", err)
		writeError(w, completionErrorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"models": models})
}

type createProjectReq struct {
	Name string `json:"name"`
}

// POST /api/v1/projects
func (h *GreenPTHandler) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("bad request body: %w", err))
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, errors.New("name is required"))
		return
	}

	project, err := h.projectService.CreateProject(r.Context(), req.Name)
	if err != nil {
		h.logger.Error("create project failed", "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

// GET /api/v1/projects
func (h *GreenPTHandler) handleListProjects(w http.ResponseWriter, r *http.Request) {
	slugs, err := h.projectService.ListProjects(r.Context())
	if err != nil {
		h.logger.Error("list projects failed", "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"projects": slugs})
}

// GET /api/v1/projects/{slug}
func (h *GreenPTHandler) handleGetProject(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]
	project, err := h.projectService.GetProject(r.Context(), slug)
	if err != nil {
		h.logger.Error("get project failed", "slug", slug, "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if project == nil {
		writeError(w, http.StatusNotFound, errors.New("project not found"))
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// DELETE /api/v1/projects/{slug}
func (h *GreenPTHandler) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]
	if err := h.projectService.DeleteProject(r.Context(), slug); err != nil {
		h.logger.Error("delete project failed", "slug", slug, "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// POST /api/v1/projects/{slug}/chat
func (h *GreenPTHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]

	var req usecase.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("bad request body: %w", err))
		return
	}

	resp, err := h.chatService.SendMessage(r.Context(), slug, req)
	if err != nil {
		h.logger.Error("chat failed", "slug", slug, "err", err)
		writeError(w, completionErrorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type enqueueBuildReq struct {
	Model string `json:"model,omitempty"`
	Tone  string `json:"tone,omitempty"`
}

// POST /api/v1/projects/{slug}/builds
func (h *GreenPTHandler) handleEnqueueBuild(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]

	var req enqueueBuildReq
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	build, err := h.buildService.EnqueueBuild(r.Context(), slug, req.Model, req.Tone)
	if err != nil {
		h.logger.Error("enqueue build failed", "slug", slug, "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusAccepted, build)
}

// GET /api/v1/projects/{slug}/builds
func (h *GreenPTHandler) handleListProjectBuilds(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]
	builds, err := h.buildService.ListBuildsByProject(r.Context(), slug)
	if err != nil {
		h.logger.Error("list project builds failed", "slug", slug, "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, builds)
}

// GET /api/v1/builds
func (h *GreenPTHandler) handleListBuilds(w http.ResponseWriter, r *http.Request) {
	builds, err := h.buildService.ListBuilds(r.Context())
	if err != nil {
		h.logger.Error("list builds failed", "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, builds)
}

// GET /api/v1/builds/{id}
func (h *GreenPTHandler) handleGetBuild(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	build, err := h.buildService.GetBuild(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, build)
}

// DELETE /api/v1/builds/{id}
func (h *GreenPTHandler) handleDeleteBuild(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.buildService.DeleteBuild(r.Context(), id); err != nil {
		h.logger.Error("delete build failed", "id", id, "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// GET /api/v1/builds/{id}/files
func (h *GreenPTHandler) handleGetFiles(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	files, err := h.buildService.GetFiles(r.Context(), id)
	if err != nil {
		h.logger.Error("get files failed", "build_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

// GET /api/v1/builds/{id}/archive
func (h *GreenPTHandler) handleArchive(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	name, data, err := h.buildService.ArchiveBuild(r.Context(), id)
	if err != nil {
		var archiveErr *archive.ArchiveError
		if errors.As(err, &archiveErr) {
			// Директория сборки удалена с диска — архив больше не собрать.
			writeError(w, http.StatusGone, err)
			return
		}
		h.logger.Error("archive build failed", "build_id", id, "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

// GET /api/v1/builds/{id}/watch — websocket со статусами сборки до терминального.
func (h *GreenPTHandler) handleWatchBuild(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "build_id", id, "err", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	ticker := time.NewTicker(watchPollInterval)
	defer ticker.Stop()

	var lastStatus entity.BuildStatus
	for {
		build, err := h.buildService.GetBuild(r.Context(), id)
		if err != nil {
			_ = conn.WriteJSON(map[string]string{"error": err.Error()})
			return
		}

		if build.Status != lastStatus {
			lastStatus = build.Status
			if err := conn.WriteJSON(build); err != nil {
				return
			}
		}
		if build.Status.Terminal() {
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

// completionErrorStatus маппит ошибки completion API на HTTP-коды:
// 502 для ошибок API, 504 для сетевых, 400 для остального.
func completionErrorStatus(err error) int {
	var apiErr *llm.APIError
	if errors.As(err, &apiErr) {
		return http.StatusBadGateway
	}
	var netErr *llm.NetworkError
	if errors.As(err, &netErr) {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadRequest
}
