// Package web serves the ingest and query endpoints, the snapshot stream and the browser dashboard.
package web

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/botboard/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"
)

const (
	defaultPollInterval      = 3 * time.Second
	defaultHeartbeatInterval = 20 * time.Second
	maxIngestBody            = 8 << 20
	tokenHeader              = "x-dashboard-token"
)

// Repository persists the dashboard state.
type Repository interface {
	Load(ctx context.Context) (domain.StoredData, error)
	Save(ctx context.Context, payload domain.DashboardPayload) error
}

// SnapshotSink receives every successfully ingested snapshot.
type SnapshotSink interface {
	Record(ctx context.Context, s domain.Snapshot) error
}

type snapshotReader interface {
	SnapshotsAfter(index uint64) ([]domain.SnapshotRecord, error)
}

// Server exposes the HTTP API and the HTML dashboard.
type Server struct {
	addr   string
	repo   Repository
	token  string
	sinks  []SnapshotSink
	stream snapshotReader
	l      *zap.Logger

	metrics           *metrics
	pollInterval      time.Duration
	heartbeatInterval time.Duration
	handler           http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and error logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.l = l
		}
	}
}

// WithSinks adds sinks fed after every successful ingest.
func WithSinks(sinks ...SnapshotSink) Option {
	return func(s *Server) {
		for _, sink := range sinks {
			if sink != nil {
				s.sinks = append(s.sinks, sink)
			}
		}
	}
}

// WithStream enables GET /api/stream backed by the given journal.
func WithStream(r snapshotReader) Option {
	return func(s *Server) {
		s.stream = r
	}
}

// WithPollInterval sets how often open streams check the journal.
func WithPollInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// NewServer creates a server. An empty ingestToken rejects every ingest.
func NewServer(addr string, repo Repository, ingestToken string, opts ...Option) *Server {
	s := &Server{
		addr:              addr,
		repo:              repo,
		token:             ingestToken,
		l:                 zap.NewNop(),
		metrics:           newMetrics(),
		pollInterval:      defaultPollInterval,
		heartbeatInterval: defaultHeartbeatInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.handler = s.routes()
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := gin.New()
	r.Use(s.recovery(), requestID(), s.accessLog())

	r.GET("/", gzipped(), s.handleIndex)
	r.GET("/metrics", gin.WrapH(s.metrics.handler()))

	api := r.Group("/api", noStore())
	api.GET("/data", gzipped(), s.handleData)
	api.POST("/ingest", s.handleIngest)
	api.GET("/history.csv", gzipped(), s.handleHistoryCSV)
	api.GET("/stream", s.handleStream)
	api.GET("/health", s.handleHealth)

	return r
}

func (s *Server) httpServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	server := s.httpServer(s.addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.l.Info("web server listening", zap.String("addr", s.addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "listen")
	}
	return nil
}

// StartWithAutoTLS runs an HTTPS server with automatic TLS certificates via ACME.
// It also starts an HTTP server on port 80 to handle ACME HTTP-01 challenges.
func (s *Server) StartWithAutoTLS(ctx context.Context, domains []string, cacheDir string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(domains) == 0 {
		return errors.New("no domains provided for automatic TLS")
	}
	if cacheDir == "" {
		cacheDir = "cert-cache"
	}

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domains...),
		Cache:      autocert.DirCache(cacheDir),
	}

	httpSrv := &http.Server{
		Addr:              ":80",
		Handler:           manager.HTTPHandler(nil),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	tlsConfig := manager.TLSConfig()
	tlsConfig.MinVersion = tls.VersionTLS12

	httpsSrv := s.httpServer(s.addr)
	httpsSrv.TLSConfig = tlsConfig

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.l.Warn("acme server shutdown", zap.Error(err))
		}
		if err := httpsSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.l.Warn("https server shutdown", zap.Error(err))
		}
	}()

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.l.Error("acme server", zap.Error(err))
		}
	}()

	s.l.Info("web server listening with autocert", zap.String("addr", s.addr), zap.Strings("domains", domains))
	if err := httpsSrv.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "listen tls")
	}
	return nil
}
