package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/okian/crease/internal/domain/model"
)

const maxBodyBytes = 64 << 10

// MatchHandler serves the per-match scoring routes.
type MatchHandler struct {
	deps Dependencies
}

// NewMatchHandler creates a new match handler.
func NewMatchHandler(deps Dependencies) *MatchHandler {
	return &MatchHandler{deps: deps}
}

type battingTeamRequest struct {
	TeamID string `json:"teamId"`
}

// HandleGetScore handles GET /matches/{matchID}/score.
func (h *MatchHandler) HandleGetScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_score"
	score, err := h.deps.Score(r.Context(), matchID(r))
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, score)
}

// HandleGetSummary handles GET /matches/{matchID}/summary.
func (h *MatchHandler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_summary"
	sum, err := h.deps.Summary(r.Context(), matchID(r))
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// HandleGetRoster handles GET /matches/{matchID}/roster.
func (h *MatchHandler) HandleGetRoster(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_roster"
	info, err := h.deps.Roster(r.Context(), matchID(r))
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// HandlePostBall handles POST /matches/{matchID}/balls.
func (h *MatchHandler) HandlePostBall(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_ball"
	var ev model.BallEvent
	if err := decode(r, &ev); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	res, err := h.deps.RecordBall(r.Context(), matchID(r), ev)
	h.reply(w, op, res, err)
}

// HandleUndo handles POST /matches/{matchID}/undo.
func (h *MatchHandler) HandleUndo(w http.ResponseWriter, r *http.Request) {
	const op = "api.undo"
	res, err := h.deps.Undo(r.Context(), matchID(r))
	h.reply(w, op, res, err)
}

// HandlePutPlayer handles PUT /matches/{matchID}/players/{slot}.
func (h *MatchHandler) HandlePutPlayer(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_player"
	var p model.Player
	if err := decode(r, &p); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	res, err := h.deps.SetPlayer(r.Context(), matchID(r), chi.URLParam(r, "slot"), p)
	h.reply(w, op, res, err)
}

// HandlePutBattingTeam handles PUT /matches/{matchID}/batting-team.
func (h *MatchHandler) HandlePutBattingTeam(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_batting_team"
	var req battingTeamRequest
	if err := decode(r, &req); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	res, err := h.deps.SetBattingTeam(r.Context(), matchID(r), req.TeamID)
	h.reply(w, op, res, err)
}

func (h *MatchHandler) reply(w http.ResponseWriter, op string, res model.CommandResult, err error) { //nolint:gocritic // hugeParam: results travel by value
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, newCommandResponse(res))
}

func matchID(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "matchID"))
}

// decode reads one JSON document from the request body. Ball validation
// errors raised while decoding keep their kind.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty request body")
		}
		return err
	}
	return nil
}
