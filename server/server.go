// Package server serves XML renditions of the reports found in a data
// directory. Reports are converted on first request and cached on disk.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/calumari/jxml"
)

const staticPrefix = "/static/reports_xml/"

var errWriteFailed = errors.New("server: write failed")

// Server converts reports to XML on demand.
type Server struct {
	cfg      Config
	encoder  *jxml.Encoder
	registry *jxml.Registry
	logger   *zap.Logger
	group    singleflight.Group
	handler  http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger. The encoder logs through it as well
// unless WithEncoder is given.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithEncoder replaces the encoder built from the configuration.
func WithEncoder(e *jxml.Encoder) Option {
	return func(s *Server) { s.encoder = e }
}

// WithRegistry enables directives while decoding reports.
func WithRegistry(r *jxml.Registry) Option {
	return func(s *Server) { s.registry = r }
}

// New validates cfg, creates the cache directory and returns a Server.
func New(cfg Config, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Server{cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	if s.encoder == nil {
		encOpts := []jxml.Option{jxml.WithLogger(s.logger)}
		if cfg.ItemTag != "" {
			encOpts = append(encOpts, jxml.WithItemTag(cfg.ItemTag))
		}
		if cfg.RootTag != "" {
			encOpts = append(encOpts, jxml.WithRootTag(cfg.RootTag))
		}
		enc, err := jxml.NewEncoder(encOpts...)
		if err != nil {
			return nil, fmt.Errorf("server: %w", err)
		}
		s.encoder = enc
	}

	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("server: create cache dir: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /index", s.handleIndex)
	mux.HandleFunc("GET /xml/{$}", s.handleList)
	mux.HandleFunc("GET /xml/{id}", s.handleReport)
	mux.Handle("GET "+staticPrefix, gzhttp.GzipHandler(
		http.StripPrefix(staticPrefix, http.FileServer(http.Dir(cfg.CacheDir))),
	))
	mux.HandleFunc("/", s.notFound)
	s.handler = s.logRequests(mux)
	return s, nil
}

// Handler returns the HTTP handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: listen: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// Report is a source report listed on the index page.
type Report struct {
	Name     string
	Modified string
}

// Reports lists the regular files of the data directory sorted by name.
func (s *Server) Reports() ([]Report, error) {
	entries, err := os.ReadDir(s.cfg.DataDir)
	if err != nil {
		return nil, err
	}
	var out []Report
	for _, e := range entries {
		info, err := e.Info()
		if err != nil || !info.Mode().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		out = append(out, Report{Name: e.Name(), Modified: info.ModTime().Format(time.ANSIC)})
	}
	return out, nil
}

// Generated lists the XML documents in the cache directory sorted by name.
func (s *Server) Generated() ([]string, error) {
	entries, err := os.ReadDir(s.cfg.CacheDir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		out = append(out, e.Name())
	}
	slices.Sort(out)
	return out, nil
}

// Generate makes sure the XML document of report id exists in the cache
// and returns its path. Concurrent calls for the same id share one
// conversion.
func (s *Server) Generate(id string) (string, error) {
	if !validID(id) {
		return "", fmt.Errorf("server: invalid report id %q: %w", id, fs.ErrNotExist)
	}
	out := filepath.Join(s.cfg.CacheDir, reportFileName(id))
	_, err, _ := s.group.Do(id, func() (any, error) {
		return nil, s.generate(id, out)
	})
	return out, err
}

func (s *Server) generate(id, out string) error {
	if _, err := os.Stat(out); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	s.logger.Info("generating report", zap.String("id", id), zap.String("path", out))
	v, err := jxml.DecodeFile(filepath.Join(s.cfg.DataDir, id), jxml.WithRegistry(s.registry))
	if err != nil {
		return err
	}
	ok, err := s.encoder.WriteDocument(v, out)
	if err != nil {
		return err
	}
	if !ok {
		return errWriteFailed
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	reports, err := s.Reports()
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "index", reports)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	names, err := s.Generated()
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "xmls", names)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.Generate(id); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.notFound(w, r)
			return
		}
		s.internalError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "singlelink", staticPrefix+reportFileName(id))
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusNotFound, "404", nil)
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	s.render(w, r, http.StatusInternalServerError, "500", nil)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error("render template", zap.String("template", name), zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func reportFileName(id string) string {
	return "reports_" + id + ".xml"
}

// validID accepts a single, non-hidden path element.
func validID(id string) bool {
	return id != "" && !strings.HasPrefix(id, ".") && !strings.ContainsAny(id, `/\`) && filepath.Base(id) == id
}
