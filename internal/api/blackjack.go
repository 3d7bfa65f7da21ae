package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/YousefHassab/Progettino-Natale/internal/blackjack"
	"github.com/YousefHassab/Progettino-Natale/internal/domain"
	"github.com/YousefHassab/Progettino-Natale/internal/game"
)

func respondBlackjackError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrRoundInProgress):
		respondError(w, http.StatusConflict, "ROUND_IN_PROGRESS", "Session already has an active round")
	case errors.Is(err, game.ErrNoActiveRound):
		respondError(w, http.StatusNotFound, "NO_ACTIVE_ROUND", "Session has no active round")
	case errors.Is(err, blackjack.ErrInvalidAction):
		respondError(w, http.StatusBadRequest, "INVALID_ACTION", "Action not valid in current round state")
	case errors.Is(err, blackjack.ErrDoubleAfterHit):
		respondError(w, http.StatusBadRequest, "DOUBLE_UNAVAILABLE", "Double is only available before the first hit")
	default:
		respondPlayError(w, err)
	}
}

type blackjackActionRequest struct {
	SessionID string `json:"session_id"`
}

// DealBlackjack handles POST /api/v1/games/blackjack/deal
func (h *Handler) DealBlackjack(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string         `json:"session_id"`
		Bet       domain.Credits `json:"bet"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if !h.ownSession(w, r, req.SessionID) {
		return
	}

	result, err := h.game.DealBlackjack(r.Context(), req.SessionID, req.Bet)
	if err != nil {
		respondBlackjackError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// HitBlackjack handles POST /api/v1/games/blackjack/hit
func (h *Handler) HitBlackjack(w http.ResponseWriter, r *http.Request) {
	h.blackjackAction(w, r, h.game.HitBlackjack)
}

// StandBlackjack handles POST /api/v1/games/blackjack/stand
func (h *Handler) StandBlackjack(w http.ResponseWriter, r *http.Request) {
	h.blackjackAction(w, r, h.game.StandBlackjack)
}

// DoubleBlackjack handles POST /api/v1/games/blackjack/double
func (h *Handler) DoubleBlackjack(w http.ResponseWriter, r *http.Request) {
	h.blackjackAction(w, r, h.game.DoubleBlackjack)
}

// GetBlackjackRound handles GET /api/v1/games/blackjack/round
func (h *Handler) GetBlackjackRound(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "session_id is required")
		return
	}
	if !h.ownSession(w, r, sessionID) {
		return
	}

	result, err := h.game.GetBlackjackView(r.Context(), sessionID)
	if err != nil {
		respondBlackjackError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) blackjackAction(w http.ResponseWriter, r *http.Request,
	action func(ctx context.Context, sessionID string) (*game.BlackjackResult, error)) {

	var req blackjackActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if !h.ownSession(w, r, req.SessionID) {
		return
	}

	result, err := action(r.Context(), req.SessionID)
	if err != nil {
		respondBlackjackError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}
