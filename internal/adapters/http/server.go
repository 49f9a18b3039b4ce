// Package httpadapter exposes the candidate pipeline over HTTP.
package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/runtime"

	"recruitpipe/internal/domain"
	"recruitpipe/internal/ports"
	"recruitpipe/internal/services/ingest"
	"recruitpipe/internal/workers/enrichrunner"
)

const (
	maxBodyBytes   = 1 << 20
	maxUploadBytes = 32 << 20
	inlineTimeout  = 30 * time.Second
)

// Candidates is the pipeline plus background rescoring.
type Candidates interface {
	ports.Pipeline
	EnqueueRescore(ctx context.Context, tenantID, id string) (string, error)
}

type Server struct {
	candidates Candidates
	jobs       ports.JobRepository
	processor  enrichrunner.Processor
	logger     *slog.Logger
}

func New(candidates Candidates, jobs ports.JobRepository, processor enrichrunner.Processor, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{candidates: candidates, jobs: jobs, processor: processor, logger: logger}
}

// Routes returns a chi.Router with every endpoint mounted.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.getHealthz)
	r.Route("/tenants/{tenantID}", func(r chi.Router) {
		r.Post("/candidates", s.postCandidate)
		r.Post("/uploads", s.postUpload)
		r.Get("/candidates/{id}", s.getCandidate)
		r.Post("/candidates/{id}/score", s.postScore)
	})
	return r
}

func (s *Server) getHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) postCandidate(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := s.pathParam(w, r, "tenantID")
	if !ok {
		return
	}
	var rec domain.Record
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&rec); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	res, err := s.candidates.ProcessCandidate(r.Context(), tenantID, rec)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if res.IsNew {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

// postUpload ingests a CSV or XLSX file. Row numbers in the response are
// lines of the uploaded file.
func (s *Server) postUpload(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := s.pathParam(w, r, "tenantID")
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close() //nolint:errcheck // upload is read-only

	sheet, err := ingest.Parse(header.Filename, file)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sum, err := s.candidates.ProcessBatch(r.Context(), tenantID, sheet.Records())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	for i, e := range sum.Errors {
		if e.Row >= 1 && e.Row <= len(sheet.Rows) {
			sum.Errors[i].Row = sheet.Rows[e.Row-1].Line
		}
	}
	sum.Skipped += len(sheet.Skipped)
	sum.Errors = append(sum.Errors, sheet.Skipped...)
	sort.SliceStable(sum.Errors, func(i, j int) bool { return sum.Errors[i].Row < sum.Errors[j].Row })
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) getCandidate(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := s.pathParam(w, r, "tenantID")
	if !ok {
		return
	}
	id, ok := s.pathParam(w, r, "id")
	if !ok {
		return
	}
	c, err := s.candidates.Get(r.Context(), tenantID, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// postScore rescores inline with ?wait=true, otherwise it queues a job and
// answers 202 with its id.
func (s *Server) postScore(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := s.pathParam(w, r, "tenantID")
	if !ok {
		return
	}
	id, ok := s.pathParam(w, r, "id")
	if !ok {
		return
	}
	var wait *bool
	if err := runtime.BindQueryParameter("form", true, false, "wait", r.URL.Query(), &wait); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid wait parameter: "+err.Error())
		return
	}

	if wait == nil || !*wait {
		jobID, err := s.candidates.EnqueueRescore(r.Context(), tenantID, id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"jobId": jobID})
		return
	}

	if _, err := s.candidates.Get(r.Context(), tenantID, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), inlineTimeout)
	defer cancel()
	if err := enrichrunner.ProcessInline(ctx, s.jobs, s.processor, tenantID, id, ports.JobScore); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.candidates.Get(ctx, tenantID, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) pathParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	var v string
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &v,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid path parameter "+name+": "+err.Error())
		return "", false
	}
	return v, true
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNoIdentifier),
		errors.Is(err, domain.ErrTenantRequired),
		errors.Is(err, ingest.ErrUnsupportedFormat):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeMessage(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()), "error", err)
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
