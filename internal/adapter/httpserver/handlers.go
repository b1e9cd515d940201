package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fairyhunter13/hireval/internal/app"
	"github.com/fairyhunter13/hireval/internal/config"
	"github.com/fairyhunter13/hireval/internal/domain"
	"github.com/fairyhunter13/hireval/internal/usecase"
)

// ownerHeader identifies the caller. Authentication proper is an edge concern;
// the services only need a stable owner id for scoping.
const ownerHeader = "X-Owner-ID"

// Server aggregates handler dependencies.
type Server struct {
	Cfg       config.Config
	Submit    usecase.SubmitService
	Status    usecase.StatusService
	Readiness *app.Readiness
}

// NewServer constructs a Server.
func NewServer(cfg config.Config, submit usecase.SubmitService, status usecase.StatusService, readiness *app.Readiness) *Server {
	return &Server{Cfg: cfg, Submit: submit, Status: status, Readiness: readiness}
}

type submitBody struct {
	JobTitle   string `json:"job_title"`
	CVRef      string `json:"cv_ref"`
	ProjectRef string `json:"project_ref"`
}

// SubmitHandler handles POST /v1/evaluations.
func (s *Server) SubmitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := ownerFrom(w, r)
		if !ok {
			return
		}
		var body submitBody
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&body); err != nil {
			writeError(w, fmt.Errorf("%w: malformed json body", domain.ErrInvalidArgument), nil)
			return
		}
		resp, err := s.Submit.Submit(r.Context(), usecase.SubmitRequest{
			JobTitle:   body.JobTitle,
			CVRef:      body.CVRef,
			ProjectRef: body.ProjectRef,
			OwnerID:    owner,
		})
		if err != nil {
			writeError(w, err, nil)
			return
		}
		writeJSON(w, http.StatusAccepted, resp)
	}
}

// GetHandler handles GET /v1/evaluations/{id}.
func (s *Server) GetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := ownerFrom(w, r)
		if !ok {
			return
		}
		view, err := s.Status.GetStatus(r.Context(), chi.URLParam(r, "id"), owner)
		if err != nil {
			writeError(w, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

type listEnvelope struct {
	Jobs []usecase.JobView `json:"jobs"`
	Page domain.Page       `json:"pagination"`
}

// ListHandler handles GET /v1/evaluations.
func (s *Server) ListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := ownerFrom(w, r)
		if !ok {
			return
		}
		filter := domain.ListFilter{
			Page:  queryInt(r, "page", 1),
			Limit: queryInt(r, "limit", 20),
		}
		if raw := r.URL.Query().Get("status"); raw != "" {
			status := domain.JobStatus(raw)
			if !status.Valid() {
				writeError(w, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidArgument, raw), nil)
				return
			}
			filter.Status = &status
		}
		views, page, err := s.Status.List(r.Context(), owner, filter)
		if err != nil {
			writeError(w, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, listEnvelope{Jobs: views, Page: page})
	}
}

// CancelHandler handles DELETE /v1/evaluations/{id}.
func (s *Server) CancelHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := ownerFrom(w, r)
		if !ok {
			return
		}
		view, err := s.Status.Cancel(r.Context(), chi.URLParam(r, "id"), owner)
		if err != nil {
			writeError(w, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// ReadyzHandler probes every dependency and reports per-check failures.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
			return
		}
		failures := s.Readiness.Run(r.Context())
		if len(failures) == 0 {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
			return
		}
		detail := make(map[string]string, len(failures))
		for name, err := range failures {
			detail[name] = err.Error()
		}
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "checks": detail})
	}
}

func ownerFrom(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner := r.Header.Get(ownerHeader)
	if owner == "" {
		writeError(w, fmt.Errorf("%w: %s header required", domain.ErrInvalidArgument, ownerHeader), nil)
		return "", false
	}
	return owner, true
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}
