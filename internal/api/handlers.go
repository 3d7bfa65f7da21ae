// Package api provides the HTTP surface of the casino service: JSON
// handlers, middleware and the realtime blackjack stream.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/YousefHassab/Progettino-Natale/internal/auth"
	"github.com/YousefHassab/Progettino-Natale/internal/control"
	"github.com/YousefHassab/Progettino-Natale/internal/domain"
	"github.com/YousefHassab/Progettino-Natale/internal/game"
	"github.com/YousefHassab/Progettino-Natale/internal/limits"
	"github.com/YousefHassab/Progettino-Natale/internal/roulette"
	"github.com/YousefHassab/Progettino-Natale/internal/rng"
	"github.com/YousefHassab/Progettino-Natale/internal/wallet"
	"github.com/gorilla/mux"
)

// Handler contains all HTTP handlers
type Handler struct {
	auth        *auth.Service
	wallet      *wallet.Service
	game        *game.Engine
	limits      *limits.Service
	control     *control.Service
	rng         *rng.Service
	operatorKey string
}

// New creates a new API handler
func New(authSvc *auth.Service, walletSvc *wallet.Service, gameEngine *game.Engine,
	limitsSvc *limits.Service, controlSvc *control.Service, rngSvc *rng.Service,
	operatorKey string) *Handler {
	return &Handler{
		auth:        authSvc,
		wallet:      walletSvc,
		game:        gameEngine,
		limits:      limitsSvc,
		control:     controlSvc,
		rng:         rngSvc,
		operatorKey: operatorKey,
	}
}

// Response helpers

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
		},
	})
}

// respondPlayError maps the errors shared by every play path to a response.
func respondPlayError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrSessionNotFound):
		respondError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "Game session not found")
	case errors.Is(err, game.ErrSessionNotActive):
		respondError(w, http.StatusBadRequest, "SESSION_NOT_ACTIVE", "Game session is not active")
	case errors.Is(err, game.ErrWrongGame):
		respondError(w, http.StatusBadRequest, "WRONG_GAME", "Session belongs to a different game")
	case errors.Is(err, game.ErrInvalidWager):
		respondError(w, http.StatusBadRequest, "INVALID_WAGER", "Wager amount is invalid")
	case errors.Is(err, wallet.ErrInsufficientFunds):
		respondError(w, http.StatusBadRequest, "INSUFFICIENT_FUNDS", "Insufficient balance")
	case errors.Is(err, limits.ErrWagerLimitExceeded):
		respondError(w, http.StatusForbidden, "WAGER_LIMIT", "Wager limit exceeded")
	case errors.Is(err, limits.ErrLossLimitExceeded):
		respondError(w, http.StatusForbidden, "LOSS_LIMIT", "Loss limit exceeded")
	case errors.Is(err, limits.ErrPlayerExcluded):
		respondError(w, http.StatusForbidden, "SELF_EXCLUDED", "Player is self-excluded")
	case errors.Is(err, limits.ErrCoolingOff):
		respondError(w, http.StatusForbidden, "COOLING_OFF", "Player is on a gaming break")
	case errors.Is(err, control.ErrGamingDisabled):
		respondError(w, http.StatusServiceUnavailable, "GAMING_DISABLED", "Gaming is currently disabled")
	case errors.Is(err, control.ErrGameDisabled), errors.Is(err, game.ErrGameDisabled):
		respondError(w, http.StatusBadRequest, "GAME_DISABLED", "Game is currently disabled")
	case errors.Is(err, control.ErrPlayerDisabled):
		respondError(w, http.StatusForbidden, "PLAYER_DISABLED", "Player account is disabled")
	default:
		respondError(w, http.StatusInternalServerError, "GAME_ERROR", err.Error())
	}
}

// getClientIP extracts client IP from request
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}
	if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
		return xrip
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

func queryLimit(r *http.Request, def, max int) int {
	limit := def
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= max {
			limit = n
		}
	}
	return limit
}

// === Health & Info ===

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	rngHealth, _ := h.rng.HealthCheck()

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"gaming_enabled": h.control.IsGamingEnabled(),
		"rng_status":     rngHealth,
	})
}

// ServerInfo handles GET /
func (h *Handler) ServerInfo(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"name":        "Casino",
		"version":     "1.0.0",
		"description": "Game outcome engine with slots, roulette and blackjack",
	})
}

// === Authentication ===

// Register handles POST /api/v1/auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	player, err := h.auth.Register(r.Context(), &req, getClientIP(r))
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserExists):
			respondError(w, http.StatusConflict, "USER_EXISTS", "Username or email already exists")
		default:
			respondError(w, http.StatusBadRequest, "REGISTRATION_FAILED", err.Error())
		}
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"player_id": player.ID,
		"username":  player.Username,
	})
}

// Login handles POST /api/v1/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	result, err := h.auth.Login(r.Context(), &req, getClientIP(r), r.UserAgent())
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			respondError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password")
		case errors.Is(err, auth.ErrAccountLocked):
			respondError(w, http.StatusForbidden, "ACCOUNT_LOCKED", "Account is temporarily locked")
		case errors.Is(err, auth.ErrAccountNotActive):
			respondError(w, http.StatusForbidden, "ACCOUNT_INACTIVE", "Account is not active")
		default:
			respondError(w, http.StatusInternalServerError, "LOGIN_FAILED", "Login failed")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"token":      result.Token,
		"session_id": result.Session.ID,
		"player": map[string]interface{}{
			"id":       result.Player.ID,
			"username": result.Player.Username,
			"email":    result.Player.Email,
		},
		"expires_at": result.Session.ExpiresAt,
	})
}

// Logout handles POST /api/v1/auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r)

	if err := h.auth.Logout(r.Context(), session.ID); err != nil {
		respondError(w, http.StatusInternalServerError, "LOGOUT_FAILED", "Logout failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Logged out successfully",
	})
}

// GetSession handles GET /api/v1/auth/session
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r)
	player := playerFrom(r)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": session.ID,
		"player": map[string]interface{}{
			"id":       player.ID,
			"username": player.Username,
			"email":    player.Email,
			"status":   player.Status,
		},
		"created_at":       session.CreatedAt,
		"last_activity_at": session.LastActivityAt,
		"expires_at":       session.ExpiresAt,
	})
}

// === Wallet ===

// GetBalance handles GET /api/v1/wallet/balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	player := playerFrom(r)

	balance, err := h.wallet.GetBalance(r.Context(), player.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "BALANCE_ERROR", "Failed to get balance")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"credits":    balance.Credits,
		"updated_at": balance.UpdatedAt,
	})
}

// Deposit handles POST /api/v1/wallet/deposit
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	player := playerFrom(r)

	var req struct {
		Amount    domain.Credits `json:"amount"`
		Reference string         `json:"reference"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	tx, err := h.wallet.Deposit(r.Context(), player.ID, req.Amount, req.Reference)
	if err != nil {
		switch {
		case errors.Is(err, wallet.ErrInvalidAmount):
			respondError(w, http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be positive")
		default:
			respondError(w, http.StatusInternalServerError, "DEPOSIT_FAILED", err.Error())
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"transaction_id": tx.ID,
		"amount":         tx.Amount,
		"balance_after":  tx.BalanceAfter,
		"status":         tx.Status,
	})
}

// Withdraw handles POST /api/v1/wallet/withdraw
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	player := playerFrom(r)

	var req struct {
		Amount    domain.Credits `json:"amount"`
		Reference string         `json:"reference"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	tx, err := h.wallet.Withdraw(r.Context(), player.ID, req.Amount, req.Reference)
	if err != nil {
		switch {
		case errors.Is(err, wallet.ErrInsufficientFunds):
			respondError(w, http.StatusBadRequest, "INSUFFICIENT_FUNDS", "Insufficient funds")
		case errors.Is(err, wallet.ErrInvalidAmount):
			respondError(w, http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be positive")
		default:
			respondError(w, http.StatusInternalServerError, "WITHDRAWAL_FAILED", err.Error())
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"transaction_id": tx.ID,
		"amount":         tx.Amount,
		"balance_after":  tx.BalanceAfter,
		"status":         tx.Status,
	})
}

// GetTransactions handles GET /api/v1/wallet/transactions
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	player := playerFrom(r)

	transactions, err := h.wallet.GetTransactions(r.Context(), player.ID, queryLimit(r, 50, 100))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "TRANSACTIONS_ERROR", "Failed to get transactions")
		return
	}

	respondJSON(w, http.StatusOK, transactions)
}

// === Games ===

// GetGames handles GET /api/v1/games
func (h *Handler) GetGames(w http.ResponseWriter, r *http.Request) {
	games := h.game.GetGames()
	list := make([]domain.Game, 0, len(games))
	for _, g := range games {
		entry := *g
		entry.Enabled = g.Enabled && h.control.IsGameEnabled(g.ID)
		list = append(list, entry)
	}
	respondJSON(w, http.StatusOK, list)
}

// GetGame handles GET /api/v1/games/{id}
func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	g, err := h.game.GetGame(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusNotFound, "GAME_NOT_FOUND", "Game not found")
		return
	}
	respondJSON(w, http.StatusOK, g)
}

// StartGameSession handles POST /api/v1/games/{id}/session
func (h *Handler) StartGameSession(w http.ResponseWriter, r *http.Request) {
	player := playerFrom(r)
	gameID := mux.Vars(r)["id"]

	session, err := h.game.StartSession(r.Context(), player.ID, gameID)
	if err != nil {
		if errors.Is(err, game.ErrGameNotFound) {
			respondError(w, http.StatusNotFound, "GAME_NOT_FOUND", "Game not found")
			return
		}
		respondPlayError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, session)
}

// EndGameSession handles DELETE /api/v1/games/{id}/session
func (h *Handler) EndGameSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	player := playerFrom(r)
	session, err := h.game.GetSession(r.Context(), req.SessionID)
	if err != nil || session.PlayerID != player.ID {
		respondError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "Game session not found")
		return
	}

	session, err = h.game.EndSession(r.Context(), req.SessionID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "SESSION_ERROR", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, session)
}

// GetGameHistory handles GET /api/v1/games/history
func (h *Handler) GetGameHistory(w http.ResponseWriter, r *http.Request) {
	player := playerFrom(r)

	history, err := h.game.GetHistory(r.Context(), player.ID, queryLimit(r, 10, 50))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "HISTORY_ERROR", "Failed to get game history")
		return
	}

	respondJSON(w, http.StatusOK, history)
}

// ownSession loads the game session named in the request and checks it
// belongs to the authenticated player.
func (h *Handler) ownSession(w http.ResponseWriter, r *http.Request, sessionID string) bool {
	player := playerFrom(r)
	session, err := h.game.GetSession(r.Context(), sessionID)
	if err != nil {
		respondError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "Game session not found")
		return false
	}
	if session.PlayerID != player.ID {
		respondError(w, http.StatusForbidden, "NOT_YOUR_SESSION", "Game session belongs to another player")
		return false
	}
	return true
}

// SpinSlots handles POST /api/v1/games/slots/spin
func (h *Handler) SpinSlots(w http.ResponseWriter, r *http.Request) {
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

	result, err := h.game.SpinSlots(r.Context(), req.SessionID, req.Bet)
	if err != nil {
		respondPlayError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// SpinRoulette handles POST /api/v1/games/roulette/spin
func (h *Handler) SpinRoulette(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string         `json:"session_id"`
		Bets      []roulette.Bet `json:"bets"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if !h.ownSession(w, r, req.SessionID) {
		return
	}

	result, err := h.game.SpinRoulette(r.Context(), req.SessionID, req.Bets)
	if err != nil {
		switch {
		case errors.Is(err, roulette.ErrNoBets):
			respondError(w, http.StatusBadRequest, "NO_BETS", "The bet slip is empty")
		case errors.Is(err, roulette.ErrInvalidBet):
			respondError(w, http.StatusBadRequest, "INVALID_BET", err.Error())
		default:
			respondPlayError(w, err)
		}
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// === Limits ===

// GetLimits handles GET /api/v1/limits
func (h *Handler) GetLimits(w http.ResponseWriter, r *http.Request) {
	player := playerFrom(r)

	playerLimits, err := h.limits.GetLimits(r.Context(), player.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "LIMITS_ERROR", "Failed to get limits")
		return
	}

	respondJSON(w, http.StatusOK, playerLimits)
}

// SetLimit handles POST /api/v1/limits
func (h *Handler) SetLimit(w http.ResponseWriter, r *http.Request) {
	player := playerFrom(r)

	var req limits.SetLimitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	req.PlayerID = player.ID
	req.Source = domain.LimitSourcePlayer

	playerLimits, err := h.limits.SetLimit(r.Context(), &req)
	if err != nil {
		if errors.Is(err, limits.ErrInvalidLimit) {
			respondError(w, http.StatusBadRequest, "INVALID_LIMIT", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "LIMITS_ERROR", "Failed to set limit")
		return
	}

	respondJSON(w, http.StatusOK, playerLimits)
}

// StartCoolingOff handles POST /api/v1/limits/cooling-off
func (h *Handler) StartCoolingOff(w http.ResponseWriter, r *http.Request) {
	player := playerFrom(r)

	var req struct {
		Hours int `json:"hours"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	playerLimits, err := h.limits.StartCoolingOff(r.Context(), player.ID, time.Duration(req.Hours)*time.Hour)
	if err != nil {
		if errors.Is(err, limits.ErrInvalidLimit) {
			respondError(w, http.StatusBadRequest, "INVALID_DURATION", "Duration must be positive")
			return
		}
		respondError(w, http.StatusInternalServerError, "LIMITS_ERROR", "Failed to start cooling off")
		return
	}

	respondJSON(w, http.StatusOK, playerLimits)
}

// SelfExclude handles POST /api/v1/limits/self-exclude
func (h *Handler) SelfExclude(w http.ResponseWriter, r *http.Request) {
	player := playerFrom(r)

	var req struct {
		Reason string `json:"reason"`
		Days   int    `json:"days"` // 0 = permanent
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	var duration *time.Duration
	if req.Days > 0 {
		d := time.Duration(req.Days) * 24 * time.Hour
		duration = &d
	}

	exclusion, err := h.limits.SelfExclude(r.Context(), player.ID, req.Reason, duration)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "LIMITS_ERROR", "Failed to self-exclude")
		return
	}

	respondJSON(w, http.StatusOK, exclusion)
}
