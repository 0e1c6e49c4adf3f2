package transport

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"

	"greenpt/app/usecase"
	"greenpt/internal/domain/entity"
	"greenpt/internal/infrastructure/archive"
	"greenpt/internal/infrastructure/llm"
)

// Заглушки сервисов с подменяемым поведением. Handler регистрирует prometheus
// коллекторы в конструкторе, поэтому собирается один на весь пакет.

type stubProjects struct {
	create func(ctx context.Context, name string) (*entity.ProjectLog, error)
	get    func(ctx context.Context, slug string) (*entity.ProjectLog, error)
	list   func(ctx context.Context) ([]string, error)
	del    func(ctx context.Context, slug string) error
}

func (s *stubProjects) CreateProject(ctx context.Context, name string) (*entity.ProjectLog, error) {
	return s.create(ctx, name)
}
func (s *stubProjects) GetProject(ctx context.Context, slug string) (*entity.ProjectLog, error) {
	return s.get(ctx, slug)
}
func (s *stubProjects) ListProjects(ctx context.Context) ([]string, error) { return s.list(ctx) }
func (s *stubProjects) DeleteProject(ctx context.Context, slug string) error {
	return s.del(ctx, slug)
}

type stubChat struct {
	send func(ctx context.Context, slug string, req usecase.ChatRequest) (*usecase.ChatResponse, error)
}

func (s *stubChat) SendMessage(ctx context.Context, slug string, req usecase.ChatRequest) (*usecase.ChatResponse, error) {
	return s.send(ctx, slug, req)
}

type stubBuilds struct {
	enqueue func(ctx context.Context, slug, model, tone string) (*entity.Build, error)
	get     func(ctx context.Context, id string) (*entity.Build, error)
	archive func(ctx context.Context, id string) (string, []byte, error)
}

func (s *stubBuilds) EnqueueBuild(ctx context.Context, slug, model, tone string) (*entity.Build, error) {
	return s.enqueue(ctx, slug, model, tone)
}
func (s *stubBuilds) GetBuild(ctx context.Context, id string) (*entity.Build, error) {
	return s.get(ctx, id)
}
func (s *stubBuilds) ListBuilds(ctx context.Context) ([]*entity.Build, error) { return nil, nil }
func (s *stubBuilds) ListBuildsByProject(ctx context.Context, slug string) ([]*entity.Build, error) {
	return nil, nil
}
func (s *stubBuilds) GetFiles(ctx context.Context, buildID string) ([]*entity.FileOutcome, error) {
	return nil, nil
}
func (s *stubBuilds) ArchiveBuild(ctx context.Context, buildID string) (string, []byte, error) {
	return s.archive(ctx, buildID)
}
func (s *stubBuilds) DeleteBuild(ctx context.Context, buildID string) error { return nil }

type stubModels struct {
	list func(ctx context.Context) ([]string, error)
}

func (s *stubModels) ListModels(ctx context.Context) ([]string, error) { return s.list(ctx) }

var (
	setupOnce  sync.Once
	testRouter *mux.Router
	projects   = &stubProjects{}
	chat       = &stubChat{}
	builds     = &stubBuilds{}
	models     = &stubModels{}
)

func setup() *mux.Router {
	setupOnce.Do(func() {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		handler := NewGreenPTHandler(projects, chat, builds, models, logger)
		testRouter = mux.NewRouter()
		handler.RegisterRoutes(testRouter)
	})
	return testRouter
}

func doRequest(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	setup().ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	rec := doRequest(t, http.MethodGet, "/api/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["ok"] != true {
		t.Errorf("body = %v", resp)
	}
}

func TestHandleCreateProject(t *testing.T) {
	projects.create = func(ctx context.Context, name string) (*entity.ProjectLog, error) {
		return entity.NewProjectLog(entity.SanitizeSlug(name)), nil
	}

	rec := doRequest(t, http.MethodPost, "/api/v1/projects", map[string]string{"name": "My Demo"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var log entity.ProjectLog
	if err := json.Unmarshal(rec.Body.Bytes(), &log); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if log.Project != "my-demo" {
		t.Errorf("slug = %q", log.Project)
	}
}

func TestHandleCreateProjectValidation(t *testing.T) {
	rec := doRequest(t, http.MethodPost, "/api/v1/projects", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for missing name", rec.Code)
	}
}

func TestHandleGetProjectNotFound(t *testing.T) {
	projects.get = func(ctx context.Context, slug string) (*entity.ProjectLog, error) {
		return nil, nil
	}
	rec := doRequest(t, http.MethodGet, "/api/v1/projects/ghost", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleChatUpstreamErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"api error maps to bad gateway", &llm.APIError{StatusCode: 500, Body: "oops"}, http.StatusBadGateway},
		{"network error maps to gateway timeout", &llm.NetworkError{Attempts: 3, Err: errors.New("dial")}, http.StatusGatewayTimeout},
		{"validation maps to bad request", errors.New("message is required"), http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			chat.send = func(ctx context.Context, slug string, req usecase.ChatRequest) (*usecase.ChatResponse, error) {
				return nil, tc.err
			}
			rec := doRequest(t, http.MethodPost, "/api/v1/projects/demo/chat", map[string]string{"message": "hi"})
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestHandleChatSuccess(t *testing.T) {
	chat.send = func(ctx context.Context, slug string, req usecase.ChatRequest) (*usecase.ChatResponse, error) {
		if slug != "demo" || req.Message != "an idea" {
			t.Errorf("unexpected args: %q %+v", slug, req)
		}
		return &usecase.ChatResponse{Reply: "## Concept", Blueprint: true}, nil
	}

	rec := doRequest(t, http.MethodPost, "/api/v1/projects/demo/chat", map[string]string{"message": "an idea"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var resp usecase.ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Blueprint || resp.Reply != "## Concept" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestHandleEnqueueBuild(t *testing.T) {
	builds.enqueue = func(ctx context.Context, slug, model, tone string) (*entity.Build, error) {
		return entity.NewBuild(slug, "bp", model, tone), nil
	}

	rec := doRequest(t, http.MethodPost, "/api/v1/projects/demo/builds", map[string]string{"model": "greenpt-1"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var build entity.Build
	if err := json.Unmarshal(rec.Body.Bytes(), &build); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if build.Status != entity.BuildStatusPending {
		t.Errorf("status = %s", build.Status)
	}
}

func TestHandleArchive(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	fw, _ := zw.Create("README.md")
	_, _ = fw.Write([]byte("# Demo"))
	_ = zw.Close()

	builds.archive = func(ctx context.Context, id string) (string, []byte, error) {
		return "demo.zip", buf.Bytes(), nil
	}

	rec := doRequest(t, http.MethodGet, "/api/v1/builds/b1/archive", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/zip" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "demo.zip") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if !bytes.Equal(rec.Body.Bytes(), buf.Bytes()) {
		t.Error("archive bytes altered in transit")
	}
}

func TestHandleArchiveGone(t *testing.T) {
	builds.archive = func(ctx context.Context, id string) (string, []byte, error) {
		return "", nil, &archive.ArchiveError{Root: "/gone", Err: errors.New("no such file")}
	}

	rec := doRequest(t, http.MethodGet, "/api/v1/builds/b1/archive", nil)
	if rec.Code != http.StatusGone {
		t.Errorf("status = %d, want 410", rec.Code)
	}
}

func TestHandleListModels(t *testing.T) {
	models.list = func(ctx context.Context) ([]string, error) {
		return []string{"greenpt-1", "greenpt-1-mini"}, nil
	}

	rec := doRequest(t, http.MethodGet, "/api/v1/models", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string][]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp["models"]) != 2 {
		t.Errorf("models = %v", resp["models"])
	}
}
