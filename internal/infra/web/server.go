package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"market-ai-pipeline/internal/infra/gateway"
	"market-ai-pipeline/internal/usecase"
)

// Server exposes the operator surface: pipeline stats, usage replay,
// model toggles, cache invalidation and Prometheus metrics.
type Server struct {
	addr   string
	apiKey string
	auth   *AuthManager
	logger zerolog.Logger

	ledger   usecase.UsageLedger
	analysis usecase.AnalysisCache
	gw       *gateway.Gateway

	httpSrv *http.Server
}

type Options struct {
	Addr      string
	APIKey    string
	JWTSecret string
	Dev       bool
}

func NewServer(
	opts Options,
	ledger usecase.UsageLedger,
	analysis usecase.AnalysisCache,
	gw *gateway.Gateway,
	logger zerolog.Logger,
) *Server {
	s := &Server{
		addr:     opts.Addr,
		apiKey:   opts.APIKey,
		auth:     NewAuthManager(opts.JWTSecret, !opts.Dev, 30*time.Minute),
		logger:   logger.With().Str("component", "web").Logger(),
		ledger:   ledger,
		analysis: analysis,
		gw:       gw,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/api/v1/auth/session", s.handleSession)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/api/v1/stats", s.handleStats)
		r.Get("/api/v1/usage", s.handleUsage)
		r.Post("/api/v1/models/{model}/enable", s.handleModelEnable)
		r.Post("/api/v1/models/{model}/disable", s.handleModelDisable)
		r.Post("/api/v1/cache/invalidate", s.handleCacheInvalidate)
		r.Post("/api/v1/cache/cleanup", s.handleCacheCleanup)
	})

	s.httpSrv = &http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start blocks until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.addr).Msg("admin server listening")
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// requireAuth accepts either the static API key as a bearer token or a
// session JWT minted by /api/v1/auth/session.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.bearerMatchesKey(r) {
			next.ServeHTTP(w, r)
			return
		}
		if _, err := s.auth.ParseFromRequest(r); err == nil {
			next.ServeHTTP(w, r)
			return
		}
		writeError(w, http.StatusUnauthorized, "unauthorized")
	})
}

func (s *Server) bearerMatchesKey(r *http.Request) bool {
	if s.apiKey == "" {
		return false
	}
	hdr := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(hdr) <= len(prefix) || hdr[:len(prefix)] != prefix {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(hdr[len(prefix):]), []byte(s.apiKey)) == 1
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
