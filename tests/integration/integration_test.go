// Package integration provides end-to-end integration tests for the casino
// These tests verify the complete flow from registration through gameplay
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/YousefHassab/Progettino-Natale/internal/api"
	"github.com/YousefHassab/Progettino-Natale/internal/audit"
	"github.com/YousefHassab/Progettino-Natale/internal/auth"
	"github.com/YousefHassab/Progettino-Natale/internal/config"
	"github.com/YousefHassab/Progettino-Natale/internal/control"
	"github.com/YousefHassab/Progettino-Natale/internal/database"
	"github.com/YousefHassab/Progettino-Natale/internal/domain"
	"github.com/YousefHassab/Progettino-Natale/internal/game"
	"github.com/YousefHassab/Progettino-Natale/internal/limits"
	"github.com/YousefHassab/Progettino-Natale/internal/rng"
	"github.com/YousefHassab/Progettino-Natale/internal/wallet"
)

// TestServer wraps all services needed for integration testing
type TestServer struct {
	Server   *httptest.Server
	DB       *database.DB
	Auth     *auth.Service
	Wallet   *wallet.Service
	Game     *game.Engine
	Limits   *limits.Service
	Control  *control.Service
	RNG      *rng.Service
	Audit    *audit.Service
	Handler  *api.Handler
	Config   *config.Config
	teardown func()
}

// NewTestServer creates a new test server with all services initialized
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:         "0",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: config.DatabaseConfig{
			Driver: "postgres",
			DSN:    "host=localhost dbname=casino sslmode=disable",
		},
		Auth: config.AuthConfig{
			JWTSecret:         "test-secret-key-for-integration-tests",
			TokenExpiry:       24 * time.Hour,
			SessionTimeout:    30 * time.Minute,
			MaxFailedAttempts: 3,
			LockoutDuration:   30 * time.Minute,
			OperatorKey:       "test-operator-key",
		},
		Game: config.GameConfig{
			MinBet:            1,
			MaxBet:            1000,
			StartingCredits:   1000,
			LargeWinThreshold: 5000,
		},
	}

	db, err := database.New(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}

	// Reset and migrate for clean state
	if err := db.Reset(); err != nil {
		t.Fatalf("Failed to reset database: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("Failed to migrate database: %v", err)
	}

	auditSvc := audit.New(db.DB)
	rngSvc := rng.New()
	authSvc := auth.New(db.DB, &cfg.Auth, auditSvc, domain.Credits(cfg.Game.StartingCredits))
	walletSvc := wallet.New(db.DB, auditSvc)
	limitsSvc := limits.New(db.DB, auditSvc)
	controlSvc := control.New(db.DB, auditSvc)
	if err := controlSvc.LoadState(context.Background()); err != nil {
		t.Fatalf("Failed to load control state: %v", err)
	}
	gameEngine := game.New(db.DB, rngSvc, walletSvc, auditSvc, limitsSvc, controlSvc, nil, &cfg.Game)

	handler := api.New(authSvc, walletSvc, gameEngine, limitsSvc, controlSvc, rngSvc, cfg.Auth.OperatorKey)
	router := handler.SetupRouter()

	server := httptest.NewServer(router)

	return &TestServer{
		Server:  server,
		DB:      db,
		Auth:    authSvc,
		Wallet:  walletSvc,
		Game:    gameEngine,
		Limits:  limitsSvc,
		Control: controlSvc,
		RNG:     rngSvc,
		Audit:   auditSvc,
		Handler: handler,
		Config:  cfg,
		teardown: func() {
			server.Close()
			db.Reset() // Clean up after tests
			db.Close()
		},
	}
}

// Close cleans up test resources
func (ts *TestServer) Close() {
	ts.teardown()
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// doRequest performs an HTTP request and returns the response
func (ts *TestServer) doRequest(t *testing.T, method, path string, body interface{}, token string) *http.Response {
	t.Helper()
	return ts.doRequestHeaders(t, method, path, body, token, nil)
}

// doOperatorRequest performs a request against the operator surface
func (ts *TestServer) doOperatorRequest(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()
	return ts.doRequestHeaders(t, method, path, body, "", map[string]string{
		"X-Operator-Key": ts.Config.Auth.OperatorKey,
		"X-Operator-Id":  "integration-operator",
	})
}

func (ts *TestServer) doRequestHeaders(t *testing.T, method, path string, body interface{}, token string, headers map[string]string) *http.Response {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, ts.Server.URL+path, reqBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Failed to perform request: %v", err)
	}

	return resp
}

// parseResponse parses the API response
func parseResponse(t *testing.T, resp *http.Response) *APIResponse {
	t.Helper()

	var apiResp APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	defer resp.Body.Close()

	return &apiResp
}

// extractField extracts a field from the response data
func extractField(t *testing.T, data json.RawMessage, field string) string {
	t.Helper()

	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Failed to unmarshal data: %v", err)
	}

	if val, ok := m[field]; ok {
		switch v := val.(type) {
		case string:
			return v
		case float64:
			return fmt.Sprintf("%v", v)
		default:
			return fmt.Sprintf("%v", v)
		}
	}

	return ""
}

// registerAndLogin registers a fresh player and returns the auth token
func (ts *TestServer) registerAndLogin(t *testing.T, username string) string {
	t.Helper()

	resp := ts.doRequest(t, "POST", "/api/v1/auth/register", map[string]interface{}{
		"username": username,
		"email":    username + "@example.com",
		"password": "password123",
	}, "")
	regData := parseResponse(t, resp)
	if !regData.Success {
		t.Fatalf("Registration failed for %s: %v", username, regData.Error)
	}

	loginResp := ts.doRequest(t, "POST", "/api/v1/auth/login", map[string]interface{}{
		"username": username,
		"password": "password123",
	}, "")
	loginData := parseResponse(t, loginResp)
	if !loginData.Success {
		t.Fatalf("Login failed for %s: %v", username, loginData.Error)
	}

	token := extractField(t, loginData.Data, "token")
	if token == "" {
		t.Fatal("Expected token in login response")
	}
	return token
}

// startGameSession opens a game session and returns its ID
func (ts *TestServer) startGameSession(t *testing.T, token, gameID string) string {
	t.Helper()

	resp := ts.doRequest(t, "POST", "/api/v1/games/"+gameID+"/session", nil, token)
	data := parseResponse(t, resp)
	if !data.Success {
		t.Fatalf("Failed to start %s session: %v", gameID, data.Error)
	}
	sessionID := extractField(t, data.Data, "id")
	if sessionID == "" {
		t.Fatal("Expected session id in response")
	}
	return sessionID
}

// ============================================================================
// Health Check Tests
// ============================================================================

func TestHealthEndpoint(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	resp := ts.doRequest(t, "GET", "/health", nil, "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	apiResp := parseResponse(t, resp)
	if !apiResp.Success {
		t.Error("Expected success response")
	}

	var data map[string]interface{}
	json.Unmarshal(apiResp.Data, &data)

	if status, ok := data["status"]; !ok || status != "healthy" {
		t.Error("Expected healthy status")
	}
	if enabled, ok := data["gaming_enabled"]; !ok || enabled != true {
		t.Error("Expected gaming_enabled true on a fresh server")
	}
	if _, ok := data["rng_status"]; !ok {
		t.Error("Expected rng_status in health response")
	}
}

// ============================================================================
// Authentication Tests
// ============================================================================

func TestPlayerRegistration(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	t.Run("SuccessfulRegistration", func(t *testing.T) {
		resp := ts.doRequest(t, "POST", "/api/v1/auth/register", map[string]interface{}{
			"username": "testuser",
			"email":    "test@example.com",
			"password": "password123",
		}, "")
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusCreated {
			t.Errorf("Expected status 201, got %d", resp.StatusCode)
		}

		apiResp := parseResponse(t, resp)
		if !apiResp.Success {
			t.Errorf("Expected success, got error: %v", apiResp.Error)
		}

		playerID := extractField(t, apiResp.Data, "player_id")
		if playerID == "" {
			t.Error("Expected player_id in response")
		}
	})

	t.Run("DuplicateRegistration", func(t *testing.T) {
		resp := ts.doRequest(t, "POST", "/api/v1/auth/register", map[string]interface{}{
			"username": "testuser",
			"email":    "test2@example.com",
			"password": "password123",
		}, "")
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusConflict {
			t.Errorf("Expected status 409, got %d", resp.StatusCode)
		}
	})

	t.Run("StartingCredits", func(t *testing.T) {
		token := ts.registerAndLogin(t, "creditstest")

		resp := ts.doRequest(t, "GET", "/api/v1/wallet/balance", nil, token)
		defer resp.Body.Close()

		apiResp := parseResponse(t, resp)
		credits := extractField(t, apiResp.Data, "credits")
		if credits != "1000" {
			t.Errorf("Expected starting balance 1000, got %s", credits)
		}
	})
}

func TestSessionManagement(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	token := ts.registerAndLogin(t, "sessiontest")

	t.Run("GetSession", func(t *testing.T) {
		resp := ts.doRequest(t, "GET", "/api/v1/auth/session", nil, token)
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("Expected status 200, got %d", resp.StatusCode)
		}
	})

	t.Run("UnauthorizedAccess", func(t *testing.T) {
		resp := ts.doRequest(t, "GET", "/api/v1/auth/session", nil, "")
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("Expected status 401, got %d", resp.StatusCode)
		}
	})

	t.Run("Logout", func(t *testing.T) {
		resp := ts.doRequest(t, "POST", "/api/v1/auth/logout", nil, token)
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("Expected status 200, got %d", resp.StatusCode)
		}
	})

	t.Run("TokenDeadAfterLogout", func(t *testing.T) {
		resp := ts.doRequest(t, "GET", "/api/v1/auth/session", nil, token)
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("Expected status 401 after logout, got %d", resp.StatusCode)
		}
	})
}

// ============================================================================
// Wallet Tests
// ============================================================================

func TestWalletOperations(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	token := ts.registerAndLogin(t, "wallettest")

	t.Run("Deposit", func(t *testing.T) {
		resp := ts.doRequest(t, "POST", "/api/v1/wallet/deposit", map[string]interface{}{
			"amount":    500,
			"reference": "test-deposit",
		}, token)
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("Expected status 200, got %d", resp.StatusCode)
		}

		apiResp := parseResponse(t, resp)
		balanceAfter := extractField(t, apiResp.Data, "balance_after")
		if balanceAfter != "1500" {
			t.Errorf("Expected balance 1500, got %s", balanceAfter)
		}
	})

	t.Run("Withdrawal", func(t *testing.T) {
		resp := ts.doRequest(t, "POST", "/api/v1/wallet/withdraw", map[string]interface{}{
			"amount":    250,
			"reference": "test-withdrawal",
		}, token)
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("Expected status 200, got %d", resp.StatusCode)
		}

		apiResp := parseResponse(t, resp)
		balanceAfter := extractField(t, apiResp.Data, "balance_after")
		if balanceAfter != "1250" {
			t.Errorf("Expected balance 1250, got %s", balanceAfter)
		}
	})

	t.Run("InsufficientFunds", func(t *testing.T) {
		resp := ts.doRequest(t, "POST", "/api/v1/wallet/withdraw", map[string]interface{}{
			"amount":    1000000,
			"reference": "too-much",
		}, token)
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", resp.StatusCode)
		}
	})

	t.Run("TransactionHistory", func(t *testing.T) {
		resp := ts.doRequest(t, "GET", "/api/v1/wallet/transactions", nil, token)
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("Expected status 200, got %d", resp.StatusCode)
		}

		apiResp := parseResponse(t, resp)
		var transactions []interface{}
		json.Unmarshal(apiResp.Data, &transactions)

		if len(transactions) < 3 {
			t.Errorf("Expected at least 3 transactions, got %d", len(transactions))
		}
	})
}

// ============================================================================
// Game Catalog Tests
// ============================================================================

func TestGameCatalog(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	token := ts.registerAndLogin(t, "catalogtest")

	t.Run("ListGames", func(t *testing.T) {
		resp := ts.doRequest(t, "GET", "/api/v1/games", nil, token)
		defer resp.Body.Close()

		apiResp := parseResponse(t, resp)
		var games []map[string]interface{}
		json.Unmarshal(apiResp.Data, &games)

		if len(games) != 3 {
			t.Errorf("Expected 3 games, got %d", len(games))
		}
	})

	t.Run("GetGameDetails", func(t *testing.T) {
		resp := ts.doRequest(t, "GET", "/api/v1/games/classic-blackjack", nil, token)
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("Expected status 200, got %d", resp.StatusCode)
		}

		apiResp := parseResponse(t, resp)
		gameType := extractField(t, apiResp.Data, "type")
		if gameType != "blackjack" {
			t.Errorf("Expected type 'blackjack', got %s", gameType)
		}
	})

	t.Run("UnknownGame", func(t *testing.T) {
		resp := ts.doRequest(t, "GET", "/api/v1/games/poker", nil, token)
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", resp.StatusCode)
		}
	})
}

// ============================================================================
// Slots Tests
// ============================================================================

func TestSlotsFlow(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	token := ts.registerAndLogin(t, "slotstest")
	sessionID := ts.startGameSession(t, token, "grand-slots")

	t.Run("Spin", func(t *testing.T) {
		resp := ts.doRequest(t, "POST", "/api/v1/games/slots/spin", map[string]interface{}{
			"session_id": sessionID,
			"bet":        20,
		}, token)
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", resp.StatusCode)
		}

		apiResp := parseResponse(t, resp)
		var result map[string]interface{}
		json.Unmarshal(apiResp.Data, &result)

		if result["round_id"] == "" {
			t.Error("Expected round_id in spin result")
		}
		spin, ok := result["result"].(map[string]interface{})
		if !ok {
			t.Fatal("Expected result payload in spin response")
		}
		grid, ok := spin["grid"].([]interface{})
		if !ok || len(grid) != 20 {
			t.Errorf("Expected a 4x5 grid of 20 cells, got %v", spin["grid"])
		}
	})

	t.Run("WagerAboveMaximum", func(t *testing.T) {
		resp := ts.doRequest(t, "POST", "/api/v1/games/slots/spin", map[string]interface{}{
			"session_id": sessionID,
			"bet":        100000,
		}, token)
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", resp.StatusCode)
		}
	})

	t.Run("WrongSessionType", func(t *testing.T) {
		resp := ts.doRequest(t, "POST", "/api/v1/games/roulette/spin", map[string]interface{}{
			"session_id": sessionID,
			"bets":       []map[string]interface{}{{"kind": "color", "amount": 10, "color": "red"}},
		}, token)
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", resp.StatusCode)
		}
	})
}

// ============================================================================
// Roulette Tests
// ============================================================================

func TestRouletteFlow(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	token := ts.registerAndLogin(t, "roulettetest")
	sessionID := ts.startGameSession(t, token, "euro-roulette")

	t.Run("MultiBetSpin", func(t *testing.T) {
		resp := ts.doRequest(t, "POST", "/api/v1/games/roulette/spin", map[string]interface{}{
			"session_id": sessionID,
			"bets": []map[string]interface{}{
				{"kind": "color", "amount": 10, "color": "red"},
				{"kind": "straight", "amount": 5, "number": 7},
			},
		}, token)
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", resp.StatusCode)
		}

		apiResp := parseResponse(t, resp)
		var result map[string]interface{}
		json.Unmarshal(apiResp.Data, &result)

		spin, ok := result["result"].(map[string]interface{})
		if !ok {
			t.Fatal("Expected result payload in spin response")
		}
		if spin["total_wager"].(float64) != 15 {
			t.Errorf("Expected total wager 15, got %v", spin["total_wager"])
		}
		bets, _ := spin["bets"].([]interface{})
		if len(bets) != 2 {
			t.Errorf("Expected 2 bet results, got %d", len(bets))
		}
	})

	t.Run("EmptySlip", func(t *testing.T) {
		resp := ts.doRequest(t, "POST", "/api/v1/games/roulette/spin", map[string]interface{}{
			"session_id": sessionID,
			"bets":       []map[string]interface{}{},
		}, token)
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", resp.StatusCode)
		}
	})

	t.Run("InvalidBetKind", func(t *testing.T) {
		resp := ts.doRequest(t, "POST", "/api/v1/games/roulette/spin", map[string]interface{}{
			"session_id": sessionID,
			"bets":       []map[string]interface{}{{"kind": "corner", "amount": 10}},
		}, token)
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", resp.StatusCode)
		}
	})
}

// ============================================================================
// Blackjack Tests
// ============================================================================

func TestBlackjackFlow(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	token := ts.registerAndLogin(t, "blackjacktest")
	sessionID := ts.startGameSession(t, token, "classic-blackjack")

	dealResp := ts.doRequest(t, "POST", "/api/v1/games/blackjack/deal", map[string]interface{}{
		"session_id": sessionID,
		"bet":        50,
	}, token)
	dealData := parseResponse(t, dealResp)
	if !dealData.Success {
		t.Fatalf("Deal failed: %v", dealData.Error)
	}

	var deal map[string]interface{}
	json.Unmarshal(dealData.Data, &deal)

	if _, resolved := deal["resolution"]; !resolved {
		// A live round: a second deal must be rejected, then stand it out.
		t.Run("SecondDealRejected", func(t *testing.T) {
			resp := ts.doRequest(t, "POST", "/api/v1/games/blackjack/deal", map[string]interface{}{
				"session_id": sessionID,
				"bet":        50,
			}, token)
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusConflict {
				t.Errorf("Expected status 409, got %d", resp.StatusCode)
			}
		})

		t.Run("ViewLiveRound", func(t *testing.T) {
			resp := ts.doRequest(t, "GET", "/api/v1/games/blackjack/round?session_id="+sessionID, nil, token)
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				t.Errorf("Expected status 200, got %d", resp.StatusCode)
			}
		})

		t.Run("StandResolves", func(t *testing.T) {
			resp := ts.doRequest(t, "POST", "/api/v1/games/blackjack/stand", map[string]interface{}{
				"session_id": sessionID,
			}, token)
			standData := parseResponse(t, resp)
			if !standData.Success {
				t.Fatalf("Stand failed: %v", standData.Error)
			}

			var result map[string]interface{}
			json.Unmarshal(standData.Data, &result)
			if _, ok := result["resolution"]; !ok {
				t.Error("Expected resolution after stand")
			}
		})
	}

	t.Run("NoActionAfterResolution", func(t *testing.T) {
		resp := ts.doRequest(t, "POST", "/api/v1/games/blackjack/hit", map[string]interface{}{
			"session_id": sessionID,
		}, token)
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", resp.StatusCode)
		}
	})
}

// ============================================================================
// Responsible Gaming Tests
// ============================================================================

func TestWagerLimitOverHTTP(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	token := ts.registerAndLogin(t, "limitstest")
	sessionID := ts.startGameSession(t, token, "grand-slots")

	setResp := ts.doRequest(t, "POST", "/api/v1/limits", map[string]interface{}{
		"kind":   "daily_wager",
		"amount": 50,
	}, token)
	setData := parseResponse(t, setResp)
	if !setData.Success {
		t.Fatalf("Failed to set limit: %v", setData.Error)
	}

	t.Run("SpinOverLimitBlocked", func(t *testing.T) {
		resp := ts.doRequest(t, "POST", "/api/v1/games/slots/spin", map[string]interface{}{
			"session_id": sessionID,
			"bet":        60,
		}, token)
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("Expected status 403, got %d", resp.StatusCode)
		}
	})

	t.Run("SpinWithinLimitAllowed", func(t *testing.T) {
		resp := ts.doRequest(t, "POST", "/api/v1/games/slots/spin", map[string]interface{}{
			"session_id": sessionID,
			"bet":        40,
		}, token)
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("Expected status 200, got %d", resp.StatusCode)
		}
	})
}

func TestSelfExclusionBlocksPlay(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	token := ts.registerAndLogin(t, "exclusiontest")
	sessionID := ts.startGameSession(t, token, "grand-slots")

	excludeResp := ts.doRequest(t, "POST", "/api/v1/limits/self-exclude", map[string]interface{}{
		"reason": "taking a break",
		"days":   30,
	}, token)
	excludeData := parseResponse(t, excludeResp)
	if !excludeData.Success {
		t.Fatalf("Self-exclusion failed: %v", excludeData.Error)
	}

	resp := ts.doRequest(t, "POST", "/api/v1/games/slots/spin", map[string]interface{}{
		"session_id": sessionID,
		"bet":        10,
	}, token)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected status 403 after self-exclusion, got %d", resp.StatusCode)
	}
}

// ============================================================================
// Operator Surface Tests
// ============================================================================

func TestOperatorControls(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	token := ts.registerAndLogin(t, "operatortest")
	sessionID := ts.startGameSession(t, token, "grand-slots")

	t.Run("RejectsMissingKey", func(t *testing.T) {
		resp := ts.doRequest(t, "GET", "/api/v1/admin/status", nil, "")
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("Expected status 403, got %d", resp.StatusCode)
		}
	})

	t.Run("Status", func(t *testing.T) {
		resp := ts.doOperatorRequest(t, "GET", "/api/v1/admin/status", nil)
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("Expected status 200, got %d", resp.StatusCode)
		}
	})

	t.Run("DisableGameBlocksSpin", func(t *testing.T) {
		resp := ts.doOperatorRequest(t, "POST", "/api/v1/admin/games/grand-slots/disable", nil)
		resp.Body.Close()

		spinResp := ts.doRequest(t, "POST", "/api/v1/games/slots/spin", map[string]interface{}{
			"session_id": sessionID,
			"bet":        10,
		}, token)
		defer spinResp.Body.Close()

		if spinResp.StatusCode != http.StatusBadRequest {
			t.Errorf("Expected status 400 while game disabled, got %d", spinResp.StatusCode)
		}

		enableResp := ts.doOperatorRequest(t, "POST", "/api/v1/admin/games/grand-slots/enable", nil)
		enableResp.Body.Close()
	})

	t.Run("DisableGamingBlocksEverything", func(t *testing.T) {
		resp := ts.doOperatorRequest(t, "POST", "/api/v1/admin/gaming/disable", map[string]interface{}{
			"reason": "maintenance window",
		})
		resp.Body.Close()

		spinResp := ts.doRequest(t, "POST", "/api/v1/games/slots/spin", map[string]interface{}{
			"session_id": sessionID,
			"bet":        10,
		}, token)
		defer spinResp.Body.Close()

		if spinResp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("Expected status 503 while gaming disabled, got %d", spinResp.StatusCode)
		}

		enableResp := ts.doOperatorRequest(t, "POST", "/api/v1/admin/gaming/enable", nil)
		enableResp.Body.Close()
	})
}

func TestInterruptedRoundRecovery(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	token := ts.registerAndLogin(t, "recoverytest")
	sessionID := ts.startGameSession(t, token, "classic-blackjack")

	// Deal until a round survives the opening hand
	var live bool
	for i := 0; i < 50 && !live; i++ {
		resp := ts.doRequest(t, "POST", "/api/v1/games/blackjack/deal", map[string]interface{}{
			"session_id": sessionID,
			"bet":        25,
		}, token)
		data := parseResponse(t, resp)
		if !data.Success {
			t.Fatalf("Deal failed: %v", data.Error)
		}
		var deal map[string]interface{}
		json.Unmarshal(data.Data, &deal)
		_, resolved := deal["resolution"]
		live = !resolved
	}
	if !live {
		t.Fatal("Could not deal a live round")
	}

	// Interrupt by ending the game session with the round open
	endResp := ts.doRequest(t, "DELETE", "/api/v1/games/classic-blackjack/session", map[string]interface{}{
		"session_id": sessionID,
	}, token)
	endData := parseResponse(t, endResp)
	if !endData.Success {
		t.Fatalf("Failed to end session: %v", endData.Error)
	}

	listResp := ts.doOperatorRequest(t, "GET", "/api/v1/admin/rounds/interrupted", nil)
	listData := parseResponse(t, listResp)
	var interrupted []map[string]interface{}
	json.Unmarshal(listData.Data, &interrupted)
	if len(interrupted) != 1 {
		t.Fatalf("Expected 1 interrupted round, got %d", len(interrupted))
	}
	roundID := interrupted[0]["round_id"].(string)

	resumeResp := ts.doOperatorRequest(t, "POST", "/api/v1/admin/rounds/"+roundID+"/resume", nil)
	resumeData := parseResponse(t, resumeResp)
	if !resumeData.Success {
		t.Fatalf("Resume failed: %v", resumeData.Error)
	}

	var result map[string]interface{}
	json.Unmarshal(resumeData.Data, &result)
	if _, ok := result["resolution"]; !ok {
		t.Error("Expected resolution in resumed round")
	}

	// The queue drains after resume
	emptyResp := ts.doOperatorRequest(t, "GET", "/api/v1/admin/rounds/interrupted", nil)
	emptyData := parseResponse(t, emptyResp)
	var remaining []map[string]interface{}
	json.Unmarshal(emptyData.Data, &remaining)
	if len(remaining) != 0 {
		t.Errorf("Expected empty interrupted queue, got %d", len(remaining))
	}
}

// ============================================================================
// End-to-End Flow Test
// ============================================================================

func TestCompletePlayerJourney(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	t.Log("Step 1: Registering and logging in...")
	token := ts.registerAndLogin(t, "journey_player")

	t.Log("Step 2: Checking opening balance...")
	balResp := ts.doRequest(t, "GET", "/api/v1/wallet/balance", nil, token)
	balData := parseResponse(t, balResp)
	t.Logf("  Opening balance: %s credits", extractField(t, balData.Data, "credits"))

	t.Log("Step 3: Depositing 500 credits...")
	depResp := ts.doRequest(t, "POST", "/api/v1/wallet/deposit", map[string]interface{}{
		"amount":    500,
		"reference": "initial-deposit",
	}, token)
	depData := parseResponse(t, depResp)
	if !depData.Success {
		t.Fatalf("Deposit failed: %v", depData.Error)
	}

	t.Log("Step 4: Browsing games...")
	gamesResp := ts.doRequest(t, "GET", "/api/v1/games", nil, token)
	gamesData := parseResponse(t, gamesResp)
	var games []map[string]interface{}
	json.Unmarshal(gamesData.Data, &games)
	for _, g := range games {
		t.Logf("  - %s (RTP: %.1f%%)", g["name"], g["theoretical_rtp"].(float64)*100)
	}

	t.Log("Step 5: Playing 10 slot rounds at 5 credits each...")
	slotsSession := ts.startGameSession(t, token, "grand-slots")
	for i := 1; i <= 10; i++ {
		resp := ts.doRequest(t, "POST", "/api/v1/games/slots/spin", map[string]interface{}{
			"session_id": slotsSession,
			"bet":        5,
		}, token)
		data := parseResponse(t, resp)
		if !data.Success {
			t.Fatalf("Spin %d failed: %v", i, data.Error)
		}
	}

	t.Log("Step 6: One roulette spin...")
	rouletteSession := ts.startGameSession(t, token, "euro-roulette")
	rouResp := ts.doRequest(t, "POST", "/api/v1/games/roulette/spin", map[string]interface{}{
		"session_id": rouletteSession,
		"bets": []map[string]interface{}{
			{"kind": "parity", "amount": 10, "parity": "even"},
		},
	}, token)
	rouData := parseResponse(t, rouResp)
	if !rouData.Success {
		t.Fatalf("Roulette spin failed: %v", rouData.Error)
	}

	t.Log("Step 7: Checking history...")
	histResp := ts.doRequest(t, "GET", "/api/v1/games/history?limit=20", nil, token)
	histData := parseResponse(t, histResp)
	var history []map[string]interface{}
	json.Unmarshal(histData.Data, &history)
	if len(history) != 11 {
		t.Errorf("Expected 11 rounds in history, got %d", len(history))
	}

	t.Log("Step 8: Closing sessions and logging out...")
	ts.doRequest(t, "DELETE", "/api/v1/games/grand-slots/session", map[string]interface{}{
		"session_id": slotsSession,
	}, token)
	ts.doRequest(t, "DELETE", "/api/v1/games/euro-roulette/session", map[string]interface{}{
		"session_id": rouletteSession,
	}, token)

	logoutResp := ts.doRequest(t, "POST", "/api/v1/auth/logout", nil, token)
	logoutData := parseResponse(t, logoutResp)
	if !logoutData.Success {
		t.Fatalf("Logout failed: %v", logoutData.Error)
	}
	t.Log("Journey complete")
}

// ============================================================================
// Audit Logging Test
// ============================================================================

func TestAuditTrailCapturesPlay(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	token := ts.registerAndLogin(t, "audittest")
	sessionID := ts.startGameSession(t, token, "grand-slots")

	resp := ts.doRequest(t, "POST", "/api/v1/games/slots/spin", map[string]interface{}{
		"session_id": sessionID,
		"bet":        10,
	}, token)
	resp.Body.Close()

	events, err := ts.Audit.GetEvents(context.Background(), &audit.EventFilter{
		Type:  "round_resolved",
		Limit: 10,
	})
	if err != nil {
		t.Fatalf("Failed to get events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Expected 1 round_resolved event, got %d", len(events))
	}
}
