// Package api exposes run history and on-demand game runs over HTTP.
package api

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
	"go.uber.org/zap"

	"github.com/reverscodes/codes-cli/internal/model"
	"github.com/reverscodes/codes-cli/internal/store"
)

// Runner runs the pipeline for one game.
type Runner interface {
	RunGame(ctx context.Context, game model.Game) (*model.GameResult, error)
}

// Deps are the collaborators of the HTTP API. Store and Runner are optional;
// the endpoints that need them answer 503 when they are nil.
type Deps struct {
	Store          store.Store
	Runner         Runner
	Games          []model.Game
	AllowedOrigins []string
}

// Server holds handler state. Runs triggered over HTTP use the context given
// to NewServer so they outlive the request that started them.
type Server struct {
	ctx  context.Context
	deps Deps

	mu      sync.Mutex
	running map[string]bool
	wg      sync.WaitGroup
}

// NewServer creates a Server.
func NewServer(ctx context.Context, deps Deps) *Server {
	return &Server{ctx: ctx, deps: deps, running: make(map[string]bool)}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	origins := s.deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Get("/games", s.listGames)
	r.Post("/games/{key}/run", s.runGame)
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", s.listRuns)
		r.Get("/{id}", s.getRun)
	})
	return r
}

// Wait blocks until runs started over HTTP have finished.
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listGames(w http.ResponseWriter, _ *http.Request) {
	games := s.deps.Games
	if games == nil {
		games = []model.Game{}
	}
	writeJSON(w, http.StatusOK, games)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "run history is disabled")
		return
	}

	q := r.URL.Query()
	filter := store.RunFilter{
		Game:   q.Get("game"),
		Status: model.RunStatus(q.Get("status")),
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}

	runs, err := s.deps.Store.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("api: list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list runs")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "run history is disabled")
		return
	}

	id := chi.URLParam(r, "id")
	run, err := s.deps.Store.GetRun(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "run not found")
		return
	case err != nil:
		zap.L().Error("api: get run", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// runGame starts a pipeline run in the background and answers 202. A game
// that is already running answers 409.
func (s *Server) runGame(w http.ResponseWriter, r *http.Request) {
	if s.deps.Runner == nil {
		writeError(w, http.StatusServiceUnavailable, "runs are disabled")
		return
	}

	key := chi.URLParam(r, "key")
	game, ok := s.game(key)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown game")
		return
	}
	if !s.claim(key) {
		writeError(w, http.StatusConflict, "game is already running")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release(key)
		res, err := s.deps.Runner.RunGame(s.ctx, game)
		if err != nil {
			zap.L().Error("api: triggered run failed", zap.String("game", key), zap.Error(err))
			return
		}
		zap.L().Info("api: triggered run complete",
			zap.String("game", key),
			zap.Int("active", len(res.Active)),
			zap.Bool("updated", res.Updated),
		)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "game": key})
}

func (s *Server) game(key string) (model.Game, bool) {
	for _, g := range s.deps.Games {
		if g.Key == key {
			return g, true
		}
	}
	return model.Game{}, false
}

// claim marks key as running. It reports false when it already was.
func (s *Server) claim(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[key] {
		return false
	}
	s.running[key] = true
	return true
}

func (s *Server) release(key string) {
	s.mu.Lock()
	delete(s.running, key)
	s.mu.Unlock()
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New("invalid")
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// requestLogger logs each request at debug level with its status and latency.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
