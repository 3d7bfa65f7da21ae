package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// SetupRouter creates and configures the HTTP router
func (h *Handler) SetupRouter() *mux.Router {
	r := mux.NewRouter()

	r.Use(RecoveryMiddleware)
	r.Use(CORSMiddleware)
	r.Use(LoggingMiddleware)

	// Public routes
	r.HandleFunc("/", h.ServerInfo).Methods("GET")
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	// Auth routes (public)
	authRoutes := api.PathPrefix("/auth").Subrouter()
	authRoutes.HandleFunc("/register", h.Register).Methods("POST")
	authRoutes.HandleFunc("/login", h.Login).Methods("POST")

	// Protected routes
	protected := api.PathPrefix("").Subrouter()
	protected.Use(h.AuthMiddleware)

	// Auth (protected)
	protected.HandleFunc("/auth/logout", h.Logout).Methods("POST")
	protected.HandleFunc("/auth/session", h.GetSession).Methods("GET")

	// Wallet
	protected.HandleFunc("/wallet/balance", h.GetBalance).Methods("GET")
	protected.HandleFunc("/wallet/deposit", h.Deposit).Methods("POST")
	protected.HandleFunc("/wallet/withdraw", h.Withdraw).Methods("POST")
	protected.HandleFunc("/wallet/transactions", h.GetTransactions).Methods("GET")

	// Games
	protected.HandleFunc("/games", h.GetGames).Methods("GET")
	protected.HandleFunc("/games/history", h.GetGameHistory).Methods("GET")
	protected.HandleFunc("/games/slots/spin", h.SpinSlots).Methods("POST")
	protected.HandleFunc("/games/roulette/spin", h.SpinRoulette).Methods("POST")
	protected.HandleFunc("/games/blackjack/deal", h.DealBlackjack).Methods("POST")
	protected.HandleFunc("/games/blackjack/hit", h.HitBlackjack).Methods("POST")
	protected.HandleFunc("/games/blackjack/stand", h.StandBlackjack).Methods("POST")
	protected.HandleFunc("/games/blackjack/double", h.DoubleBlackjack).Methods("POST")
	protected.HandleFunc("/games/blackjack/round", h.GetBlackjackRound).Methods("GET")
	protected.HandleFunc("/games/{id}", h.GetGame).Methods("GET")
	protected.HandleFunc("/games/{id}/session", h.StartGameSession).Methods("POST")
	protected.HandleFunc("/games/{id}/session", h.EndGameSession).Methods("DELETE")

	// Responsible gaming
	protected.HandleFunc("/limits", h.GetLimits).Methods("GET")
	protected.HandleFunc("/limits", h.SetLimit).Methods("POST")
	protected.HandleFunc("/limits/cooling-off", h.StartCoolingOff).Methods("POST")
	protected.HandleFunc("/limits/self-exclude", h.SelfExclude).Methods("POST")

	// WebSocket for realtime blackjack tables
	protected.HandleFunc("/ws/blackjack/{session_id}", h.HandleWebSocket).Methods("GET")

	// Operator routes
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(h.OperatorMiddleware)
	admin.HandleFunc("/status", h.GetControlStatus).Methods("GET")
	admin.HandleFunc("/gaming/disable", h.DisableGaming).Methods("POST")
	admin.HandleFunc("/gaming/enable", h.EnableGaming).Methods("POST")
	admin.HandleFunc("/games/{id}/disable", h.DisableGame).Methods("POST")
	admin.HandleFunc("/games/{id}/enable", h.EnableGame).Methods("POST")
	admin.HandleFunc("/players/{id}/disable", h.DisablePlayer).Methods("POST")
	admin.HandleFunc("/players/{id}/enable", h.EnablePlayer).Methods("POST")
	admin.HandleFunc("/rounds/interrupted", h.GetInterruptedRounds).Methods("GET")
	admin.HandleFunc("/rounds/{id}/resume", h.ResumeRound).Methods("POST")
	admin.HandleFunc("/rounds/{id}/void", h.VoidRound).Methods("POST")

	return r
}

// NotFoundHandler handles 404 errors
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
}
