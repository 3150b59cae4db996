// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/okian/crease/internal/adapters/directory"
	"github.com/okian/crease/internal/adapters/http/swagger"
	"github.com/okian/crease/internal/adapters/mq/queue"
	"github.com/okian/crease/internal/adapters/repository"
	service "github.com/okian/crease/internal/app"
	"github.com/okian/crease/internal/domain/model"
	"github.com/okian/crease/internal/domain/scoring"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the scoring service.
type Dependencies interface {
	Score(ctx context.Context, matchID string) (model.MatchScore, error)
	Summary(ctx context.Context, matchID string) (scoring.Summary, error)
	Roster(ctx context.Context, matchID string) (model.MatchInfo, error)

	RecordBall(ctx context.Context, matchID string, ev model.BallEvent) (model.CommandResult, error)
	Undo(ctx context.Context, matchID string) (model.CommandResult, error)
	SetPlayer(ctx context.Context, matchID, slot string, p model.Player) (model.CommandResult, error)
	SetBattingTeam(ctx context.Context, matchID, teamID string) (model.CommandResult, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	matchHandler  *MatchHandler

	websocket      http.HandlerFunc
	requestTimeout time.Duration
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		matchHandler:   NewMatchHandler(deps),
		requestTimeout: defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the chi router serving every route.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)

	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Get("/stats", s.statsHandler.HandleStats)
	if s.websocket != nil {
		r.Get("/ws", s.websocket)
	}
	swagger.Register(r)

	r.Route("/matches/{matchID}", func(r chi.Router) {
		r.Use(TimeoutMiddleware(s.requestTimeout))
		r.Get("/score", s.matchHandler.HandleGetScore)
		r.Get("/summary", s.matchHandler.HandleGetSummary)
		r.Get("/roster", s.matchHandler.HandleGetRoster)
		r.Post("/balls", s.matchHandler.HandlePostBall)
		r.Post("/undo", s.matchHandler.HandleUndo)
		r.Put("/players/{slot}", s.matchHandler.HandlePutPlayer)
		r.Put("/batting-team", s.matchHandler.HandlePutBattingTeam)
	})
	return r
}

// commandResponse is returned by every scoring command.
type commandResponse struct {
	Status    string           `json:"status"`
	Duplicate bool             `json:"duplicate"`
	Version   uint64           `json:"version"`
	Score     model.MatchScore `json:"score"`
}

func newCommandResponse(res model.CommandResult) commandResponse { //nolint:gocritic // hugeParam: results travel by value
	status := "applied"
	switch {
	case res.Duplicate:
		status = "duplicate"
	case !res.Applied:
		status = "unchanged"
	}
	return commandResponse{
		Status:    status,
		Duplicate: res.Duplicate,
		Version:   res.Score.Version,
		Score:     res.Score,
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Slot    string `json:"slot,omitempty"`
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
	body := errorResponse{Code: code, Message: msg}
	var required *scoring.PlayerRequiredError
	if errors.As(err, &required) {
		body.Slot = string(required.Slot)
	}
	writeJSON(w, status, body)
}

// classify maps a failure to its HTTP status and error code.
func classify(err error) (int, string) {
	var required *scoring.PlayerRequiredError
	switch {
	case errors.As(err, &required):
		return http.StatusConflict, "player_required"
	case errors.Is(err, scoring.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, repository.ErrVersionConflict):
		return http.StatusConflict, "version_conflict"
	case errors.Is(err, model.ErrInvalidBall):
		return http.StatusBadRequest, "invalid_ball"
	case errors.Is(err, scoring.ErrInvalidSlot):
		return http.StatusBadRequest, "invalid_slot"
	case errors.Is(err, scoring.ErrInvalidPlayer):
		return http.StatusBadRequest, "invalid_player"
	case errors.Is(err, service.ErrInvalidTeam):
		return http.StatusBadRequest, "invalid_team"
	case errors.Is(err, service.ErrInvalidMatch), errors.Is(err, repository.ErrInvalidMatchID):
		return http.StatusBadRequest, "invalid_match"
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, directory.ErrMatchNotFound), errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, queue.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, queue.ErrStopped), errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	}
	return http.StatusInternalServerError, "internal_error"
}

func writeFailure(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}
