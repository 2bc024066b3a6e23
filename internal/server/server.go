// Package server exposes the build pipeline over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"wasmloader/internal/buildpipeline"
	"wasmloader/internal/config"
	"wasmloader/internal/emit"
	"wasmloader/internal/version"
)

// RequestIDHeader carries the per-build request ID in responses.
const RequestIDHeader = "X-Request-ID"

const msgpackContentType = "application/msgpack"

// Builder is the part of buildpipeline.Pipeline the server needs.
type Builder interface {
	Load(ctx context.Context, req buildpipeline.Request) (emit.Payload, buildpipeline.Result, error)
}

// BuildRequest is the body of POST /v1/build.
type BuildRequest struct {
	Path   string          `json:"path"`
	Module string          `json:"module,omitempty"`
	Config json.RawMessage `json:"config,omitempty"`
}

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id"`
}

// Server serves builds rooted at a single directory.
type Server struct {
	builder Builder
	root    string
	timeout time.Duration
	log     *zap.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithRoot confines request paths to dir; relative paths resolve against it.
func WithRoot(dir string) Option {
	return func(s *Server) { s.root = dir }
}

// WithTimeout bounds each build.
func WithTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.log = l }
}

// New returns a server that builds through b.
func New(b Builder, opts ...Option) *Server {
	s := &Server{builder: b, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// Handler returns the router for the server's endpoints.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/v1/build", s.handleBuild).Methods(http.MethodPost)
	r.HandleFunc("/v1/version", s.handleVersion).Methods(http.MethodGet)
	return r
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, version.Current())
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	id := uuid.New().String()
	w.Header().Set(RequestIDHeader, id)
	log := s.log.With(zap.String("request_id", id))

	var body BuildRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error(), RequestID: id})
		return
	}
	path, err := s.resolvePath(body.Path)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), RequestID: id})
		return
	}
	cfg, err := decodeConfig(body.Config)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), RequestID: id})
		return
	}
	if cfg.Boundary, err = s.resolveBoundary(cfg.Boundary); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), RequestID: id})
		return
	}
	format := emit.FormatJSON
	if wantsMsgpack(r) {
		format = emit.FormatMsgpack
	}

	ctx := r.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	payload, _, err := s.builder.Load(ctx, buildpipeline.Request{
		SourcePath: path,
		Module:     body.Module,
		Config:     cfg,
	})
	log.Info("build finished",
		zap.String("path", path),
		zap.Bool("success", payload.Success),
		zap.Int("diagnostics", len(payload.Diagnostics)),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err),
	)
	status := http.StatusOK
	switch {
	case err == nil:
	case errors.Is(err, buildpipeline.ErrProjectNotFound):
		status = http.StatusNotFound
	case errors.Is(err, buildpipeline.ErrToolchainLaunch):
		status = http.StatusBadGateway
	case errors.Is(err, config.ErrExclusiveModes), errors.Is(err, config.ErrShimWithoutBindgen), errors.Is(err, config.ErrTemplate):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), RequestID: id})
		return
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	default:
		if len(payload.Diagnostics) == 0 {
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error(), RequestID: id})
			return
		}
		status = http.StatusInternalServerError
	}
	writePayload(w, status, payload, format)
}

func (s *Server) resolvePath(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", errors.New("path is required")
	}
	if s.root == "" {
		return filepath.Abs(p)
	}
	return s.confine("path", p)
}

// resolveBoundary keeps the manifest search inside the server root. The root
// is the default; a client boundary may only narrow it.
func (s *Server) resolveBoundary(b string) (string, error) {
	if s.root == "" {
		return b, nil
	}
	if strings.TrimSpace(b) == "" {
		return filepath.Abs(s.root)
	}
	return s.confine("boundary", b)
}

// confine resolves p against the server root and rejects anything outside it.
func (s *Server) confine(what, p string) (string, error) {
	root, err := filepath.Abs(s.root)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	p = filepath.Clean(p)
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s %q is outside the server root", what, p)
	}
	return p, nil
}

func decodeConfig(raw json.RawMessage) (config.Config, error) {
	cfg := config.Default()
	if len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return cfg, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	cfg = cfg.Normalized()
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func wantsMsgpack(r *http.Request) bool {
	if r.URL.Query().Get("format") == string(emit.FormatMsgpack) {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), msgpackContentType)
}

func writePayload(w http.ResponseWriter, status int, p emit.Payload, f emit.Format) {
	var buf bytes.Buffer
	if err := p.Encode(&buf, f); err != nil {
		http.Error(w, "failed to encode payload", http.StatusInternalServerError)
		return
	}
	if f == emit.FormatMsgpack {
		w.Header().Set("Content-Type", msgpackContentType)
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
