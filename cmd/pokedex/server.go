package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/pokeapi-browser/pkg/browse"
	"github.com/Sternrassler/pokeapi-browser/pkg/logging"
	"github.com/Sternrassler/pokeapi-browser/pkg/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the browsing API over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	a, err := newApp(cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.redis != nil {
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return err
		}
		a.logger.Info().Str("redis", cfg.Cache.RedisURL).Msg("Connected to Redis")
	}

	if err := a.session.Load(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("Initial catalog load failed, serving with error state")
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newServer(a.session, a.redis, cfg.Server.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().
			Str("addr", cfg.Server.Addr).
			Str("user_agent", cfg.API.UserAgent).
			Msg("Starting pokedex server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.logger.Info().Msg("Shutting down")
	return srv.Shutdown(shutdownCtx)
}

// Server exposes a browse session over HTTP.
type Server struct {
	session *browse.Session
	redis   *redis.Client
	router  chi.Router
	logger  zerolog.Logger

	// mu keeps navigate-then-render atomic per request.
	mu sync.Mutex
}

func newServer(session *browse.Session, rdb *redis.Client, allowedOrigins []string) *Server {
	s := &Server{
		session: session,
		redis:   rdb,
		router:  chi.NewRouter(),
		logger:  logging.NewLogger(logging.ComponentServer),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	s.router.Get("/health", healthHandler)
	s.router.Get("/ready", readyHandler(rdb))
	s.router.Handle("/metrics", metrics.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/pokemon", s.handleList)
		r.Get("/pokemon/{id}", s.handleGet)
		r.Post("/reload", s.handleReload)
	})

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// readyHandler pings Redis when one is configured.
func readyHandler(rdb *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rdb != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := rdb.Ping(ctx).Err(); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}
}

// handleList applies the request's query string and returns the page.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session.Navigate(r.URL.RawQuery)
	view, err := s.session.View(r.Context())
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// handleGet selects one loaded Pokemon.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "id must be a positive integer")
		return
	}

	item, err := s.session.Select(id)
	if errors.Is(err, browse.ErrNotLoaded) {
		respondError(w, http.StatusNotFound, "Pokemon not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, item)
}

// handleReload reloads the catalog from upstream.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.session.Reload(r.Context()); err != nil {
		s.logger.Error().Err(err).Msg("Reload failed")
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	snap := s.session.Store().Snapshot()
	respondJSON(w, http.StatusOK, map[string]any{
		"items": len(snap.Items),
	})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
