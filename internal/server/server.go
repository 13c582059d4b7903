// Package server exposes the integration engine over HTTP: upload a
// document, poll job status, download the annotated result.
//
// The failure list in a finished job's report is informational; a job only
// fails when the engine reports a fatal package error.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/m2ix4i/korrektor/internal/analyzer"
	"github.com/m2ix4i/korrektor/internal/config"
	"github.com/m2ix4i/korrektor/internal/logging"
	"github.com/m2ix4i/korrektor/pkg/annotate"
)

// Server wires the HTTP layer to the engine and the analyzer.
type Server struct {
	cfg      *config.Config
	it       *annotate.Integrator
	analyzer analyzer.Analyzer
	jobs     *jobStore
	log      *zerolog.Logger
	router   chi.Router
	sem      chan struct{}
}

// New builds a Server. The analyzer may be nil, in which case uploads must
// carry their own suggestion list.
func New(cfg *config.Config, it *annotate.Integrator, az analyzer.Analyzer) *Server {
	s := &Server{
		cfg:      cfg,
		it:       it,
		analyzer: az,
		jobs:     newJobStore(),
		log:      logging.Named("server"),
		sem:      make(chan struct{}, cfg.Batch.Concurrency),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	if len(cfg.Server.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
		}))
	}

	r.Get("/healthz", s.handleHealth)
	r.Route("/api/v1/jobs", func(r chi.Router) {
		r.Post("/", s.handleSubmit)
		r.Get("/{id}", s.handleStatus)
		r.Get("/{id}/download", s.handleDownload)
	})

	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe runs the service until the context is canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Server.Addr).Msg("listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errc:
		return err
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSubmit accepts a multipart form with a "document" file and either a
// "suggestions" JSON array or "analyze=true" to produce suggestions via the
// configured analyzer. The document is copied into a per-job work directory,
// so concurrent jobs never share a source path.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(s.cfg.Server.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse upload: %w", err))
		return
	}

	file, header, err := r.FormFile("document")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing document: %w", err))
		return
	}
	defer file.Close()

	var suggestions []annotate.Suggestion
	useAnalyzer := r.FormValue("analyze") == "true"
	if !useAnalyzer {
		raw := r.FormValue("suggestions")
		if raw == "" {
			writeError(w, http.StatusBadRequest,
				fmt.Errorf("either suggestions or analyze=true is required"))
			return
		}
		if err := json.Unmarshal([]byte(raw), &suggestions); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("decode suggestions: %w", err))
			return
		}
	} else if s.analyzer == nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("no analyzer configured"))
		return
	}

	workDir, err := os.MkdirTemp("", "korrektor-job-*")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	name := filepath.Base(header.Filename)
	if name == "" || name == "." {
		name = "document.docx"
	}
	inputPath := filepath.Join(workDir, name)
	outputPath := filepath.Join(workDir, "annotated_"+name)

	dst, err := os.Create(inputPath)
	if err != nil {
		os.RemoveAll(workDir)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.RemoveAll(workDir)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	dst.Close()

	job := s.jobs.create(workDir, inputPath, outputPath)
	go s.process(job.ID, suggestions, useAnalyzer)

	writeJSON(w, http.StatusAccepted, job)
}

// process runs one job, bounded by the concurrency semaphore.
func (s *Server) process(id string, suggestions []annotate.Suggestion, useAnalyzer bool) {
	s.sem <- struct{}{}
	defer func() { <-s.sem }()

	job, ok := s.jobs.get(id)
	if !ok {
		return
	}
	s.jobs.setRunning(id)

	if useAnalyzer {
		text, err := annotate.DocumentText(job.inputPath)
		if err != nil {
			s.jobs.setFailed(id, err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		suggestions, err = s.analyzer.Analyze(ctx, text)
		cancel()
		if err != nil {
			s.jobs.setFailed(id, err)
			return
		}
	}

	report, err := s.it.Integrate(job.inputPath, job.outputPath, suggestions)
	if err != nil {
		s.jobs.setFailed(id, err)
		return
	}
	s.jobs.setDone(id, report)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobs.get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown job"))
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobs.get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown job"))
		return
	}
	if job.State != JobDone {
		writeError(w, http.StatusConflict, fmt.Errorf("job is %s", job.State))
		return
	}

	w.Header().Set("Content-Type",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename=%q`, filepath.Base(job.outputPath)))
	http.ServeFile(w, r, job.outputPath)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
