// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/okian/gridrank/internal/adapters/http/swagger"
	service "github.com/okian/gridrank/internal/app"
	"github.com/okian/gridrank/internal/domain/model"
	"github.com/okian/gridrank/internal/domain/standings"
	"github.com/okian/gridrank/internal/domain/types"
	"github.com/okian/gridrank/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	LeaderboardDependencies
	RankDependencies
	RunDependencies
	LeagueDependencies
	StatsProvider
}

// LeaderboardDependencies serves the team and coach leaderboards.
type LeaderboardDependencies interface {
	Leaderboard(ctx context.Context, kind model.EntityKind, limit int) ([]Entry, error)
	Ranges(ctx context.Context, kind model.EntityKind) ([]types.Range, error)
}

// RankDependencies serves single entity lookups.
type RankDependencies interface {
	Rank(ctx context.Context, kind model.EntityKind, id string) (Entry, error)
	Timeline(ctx context.Context, ref model.EntityRef) ([]model.Snapshot, error)
}

// RunDependencies triggers and clears metrics runs.
type RunDependencies interface {
	Update(ctx context.Context, seasonNo int, weekNo *int) (service.RunReport, error)
	ResetSeason(ctx context.Context, seasonNo int) error
}

// LeagueDependencies serves the schedule, standings and wPN views.
type LeagueDependencies interface {
	CurrentSeason() int
	Seasons(ctx context.Context) ([]model.Season, error)
	Conferences(ctx context.Context) ([]model.Conference, error)
	Games(ctx context.Context, seasonNo int, weekNo *int) ([]model.Game, error)
	Standings(ctx context.Context, seasonNo int) (standings.Standings, error)
	WPN(ctx context.Context, seasonNo int) ([]model.WPNScore, error)
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// DefaultMaxLimit caps ?limit when no option overrides it.
const DefaultMaxLimit = 500

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithMaxLimit caps the leaderboard ?limit parameter.
func WithMaxLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithCORSOrigins sets the origins allowed to call the API.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.origins = origins
		}
	}
}

// WithRequestTimeout bounds every request.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
	runHandler         *RunHandler
	leagueHandler      *LeagueHandler

	maxLimit int
	origins  []string
	timeout  time.Duration
	log      logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		maxLimit: DefaultMaxLimit,
		origins:  []string{"*"},
		timeout:  5 * time.Minute,
		log:      logger.Get().Named("http"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(deps)
	s.leaderboardHandler = NewLeaderboardHandler(deps, s.maxLimit)
	s.rankHandler = NewRankHandler(deps)
	s.runHandler = NewRunHandler(deps)
	s.leagueHandler = NewLeagueHandler(deps)
	return s
}

// Handler builds the router with every route and middleware attached.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(RequestLogger(s.log))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(s.timeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(MetricsMiddleware)

	swagger.Register(r)
	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Get("/stats", s.statsHandler.HandleStats)

	r.Get("/seasons", s.leagueHandler.HandleSeasons)
	r.Get("/conferences", s.leagueHandler.HandleConferences)
	r.Get("/games/{season}", s.leagueHandler.HandleGames)
	r.Get("/games/{season}/{week}", s.leagueHandler.HandleGames)
	r.Get("/standings", s.leagueHandler.HandleStandings)
	r.Get("/standings/{season}", s.leagueHandler.HandleStandings)
	r.Get("/wpn/{season}", s.leagueHandler.HandleWPN)

	r.Get("/metrics", s.leaderboardHandler.HandleTeams)
	r.Get("/metrics/sheets", s.leaderboardHandler.HandleTeamSheet)
	r.Get("/coach-metrics", s.leaderboardHandler.HandleCoaches)
	r.Get("/coach-metrics/sheets", s.leaderboardHandler.HandleCoachSheet)

	r.Get("/teams/{id}/rank", s.rankHandler.HandleRank(model.KindTeam))
	r.Get("/teams/{id}/ratings", s.rankHandler.HandleTimeline(model.KindTeam))
	r.Get("/coaches/{id}/rank", s.rankHandler.HandleRank(model.KindCoach))
	r.Get("/coaches/{id}/ratings", s.rankHandler.HandleTimeline(model.KindCoach))

	r.Post("/calc-metrics/{season}", s.runHandler.HandleCalc)
	r.Post("/calc-metrics/{season}/{week}", s.runHandler.HandleCalc)
	r.Delete("/metrics/{season}", s.runHandler.HandleReset)

	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// fail writes err with the status its kind maps to.
func fail(w http.ResponseWriter, op string, err error) {
	status, code := classify(err)
	writeError(w, status, code, Wrap(op, err))
}
