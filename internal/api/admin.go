package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/YousefHassab/Progettino-Natale/internal/game"
	"github.com/gorilla/mux"
)

// Operator endpoints. Gated by OperatorMiddleware; the operator name
// from the key header lands in the audit trail.

func operatorFrom(r *http.Request) string {
	if op := r.Header.Get("X-Operator-Id"); op != "" {
		return op
	}
	return "operator"
}

// GetControlStatus handles GET /api/v1/admin/status
func (h *Handler) GetControlStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.control.GetStatus(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STATUS_ERROR", "Failed to get control status")
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// DisableGaming handles POST /api/v1/admin/gaming/disable
func (h *Handler) DisableGaming(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	if err := h.control.DisableAllGaming(r.Context(), req.Reason, operatorFrom(r)); err != nil {
		respondError(w, http.StatusInternalServerError, "CONTROL_ERROR", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Gaming disabled"})
}

// EnableGaming handles POST /api/v1/admin/gaming/enable
func (h *Handler) EnableGaming(w http.ResponseWriter, r *http.Request) {
	if err := h.control.EnableAllGaming(r.Context(), operatorFrom(r)); err != nil {
		respondError(w, http.StatusInternalServerError, "CONTROL_ERROR", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Gaming enabled"})
}

// DisableGame handles POST /api/v1/admin/games/{id}/disable
func (h *Handler) DisableGame(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["id"]
	if _, err := h.game.GetGame(gameID); err != nil {
		respondError(w, http.StatusNotFound, "GAME_NOT_FOUND", "Game not found")
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	if err := h.control.DisableGame(r.Context(), gameID, req.Reason, operatorFrom(r)); err != nil {
		respondError(w, http.StatusInternalServerError, "CONTROL_ERROR", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Game disabled", "game_id": gameID})
}

// EnableGame handles POST /api/v1/admin/games/{id}/enable
func (h *Handler) EnableGame(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["id"]
	if err := h.control.EnableGame(r.Context(), gameID, operatorFrom(r)); err != nil {
		respondError(w, http.StatusInternalServerError, "CONTROL_ERROR", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Game enabled", "game_id": gameID})
}

// DisablePlayer handles POST /api/v1/admin/players/{id}/disable
func (h *Handler) DisablePlayer(w http.ResponseWriter, r *http.Request) {
	playerID := mux.Vars(r)["id"]

	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	if err := h.control.DisablePlayer(r.Context(), playerID, req.Reason, operatorFrom(r)); err != nil {
		respondError(w, http.StatusInternalServerError, "CONTROL_ERROR", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Player disabled", "player_id": playerID})
}

// EnablePlayer handles POST /api/v1/admin/players/{id}/enable
func (h *Handler) EnablePlayer(w http.ResponseWriter, r *http.Request) {
	playerID := mux.Vars(r)["id"]
	if err := h.control.EnablePlayer(r.Context(), playerID, operatorFrom(r)); err != nil {
		respondError(w, http.StatusInternalServerError, "CONTROL_ERROR", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Player enabled", "player_id": playerID})
}

// GetInterruptedRounds handles GET /api/v1/admin/rounds/interrupted
func (h *Handler) GetInterruptedRounds(w http.ResponseWriter, r *http.Request) {
	queue, err := h.game.GetInterruptedRounds(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "ROUNDS_ERROR", "Failed to list interrupted rounds")
		return
	}
	respondJSON(w, http.StatusOK, queue)
}

// ResumeRound handles POST /api/v1/admin/rounds/{id}/resume
func (h *Handler) ResumeRound(w http.ResponseWriter, r *http.Request) {
	roundID := mux.Vars(r)["id"]

	result, err := h.game.ResumeRound(r.Context(), roundID)
	if err != nil {
		if errors.Is(err, game.ErrRoundNotInterrupted) {
			respondError(w, http.StatusNotFound, "ROUND_NOT_INTERRUPTED", "Round is not interrupted")
			return
		}
		respondError(w, http.StatusInternalServerError, "ROUNDS_ERROR", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// VoidRound handles POST /api/v1/admin/rounds/{id}/void
func (h *Handler) VoidRound(w http.ResponseWriter, r *http.Request) {
	roundID := mux.Vars(r)["id"]

	if err := h.game.VoidRound(r.Context(), roundID); err != nil {
		if errors.Is(err, game.ErrRoundNotInterrupted) {
			respondError(w, http.StatusNotFound, "ROUND_NOT_INTERRUPTED", "Round is not interrupted")
			return
		}
		respondError(w, http.StatusInternalServerError, "ROUNDS_ERROR", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Round voided", "round_id": roundID})
}
