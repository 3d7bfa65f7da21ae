package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/YousefHassab/Progettino-Natale/internal/domain"
	"github.com/YousefHassab/Progettino-Natale/internal/game"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// revealDelay paces the dealer card reveal on the stream. Presentation
// only: the round is fully resolved and settled before the first reveal
// message is queued.
const revealDelay = 400 * time.Millisecond

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// WSClient represents a WebSocket client connection
type WSClient struct {
	conn      *websocket.Conn
	send      chan []byte
	sessionID string
	playerID  string
	mu        sync.Mutex
}

// HandleWebSocket handles WebSocket connections for blackjack tables
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	player := playerFrom(r)
	gameSessionID := mux.Vars(r)["session_id"]

	gameSession, err := h.game.GetSession(r.Context(), gameSessionID)
	if err != nil {
		http.Error(w, "Game session not found", http.StatusNotFound)
		return
	}
	if gameSession.PlayerID != player.ID {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if gameSession.Status != domain.GameSessionActive {
		http.Error(w, "Game session is not active", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &WSClient{
		conn:      conn,
		send:      make(chan []byte, 256),
		sessionID: gameSessionID,
		playerID:  player.ID,
	}

	go client.writePump()
	go h.readPump(client)
}

// writePump pumps messages from the send channel to the WebSocket connection
func (c *WSClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			w.Close()

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump pumps messages from the WebSocket connection to the handler
func (h *Handler) readPump(c *WSClient) {
	defer func() {
		close(c.send)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	h.sendMessage(c, "connected", map[string]interface{}{
		"session_id": c.sessionID,
		"message":    "Connected to blackjack table",
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			h.sendError(c, "INVALID_MESSAGE", "Invalid message format")
			continue
		}

		h.handleWSMessage(c, &msg)
	}
}

// handleWSMessage processes incoming WebSocket messages
func (h *Handler) handleWSMessage(c *WSClient, msg *WSMessage) {
	ctx := context.Background()

	switch msg.Type {
	case "deal":
		var payload struct {
			Bet domain.Credits `json:"bet"`
		}
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			h.sendError(c, "INVALID_PAYLOAD", "Invalid deal payload")
			return
		}
		result, err := h.game.DealBlackjack(ctx, c.sessionID, payload.Bet)
		h.sendActionResult(c, result, err)

	case "hit":
		result, err := h.game.HitBlackjack(ctx, c.sessionID)
		h.sendActionResult(c, result, err)

	case "stand":
		result, err := h.game.StandBlackjack(ctx, c.sessionID)
		h.sendActionResult(c, result, err)

	case "double":
		result, err := h.game.DoubleBlackjack(ctx, c.sessionID)
		h.sendActionResult(c, result, err)

	case "balance":
		balance, err := h.wallet.GetBalance(ctx, c.playerID)
		if err != nil {
			h.sendError(c, "BALANCE_ERROR", "Failed to get balance")
			return
		}
		h.sendMessage(c, "balance", map[string]interface{}{
			"credits": balance.Credits,
		})

	case "history":
		history, err := h.game.GetHistory(ctx, c.playerID, 10)
		if err != nil {
			h.sendError(c, "HISTORY_ERROR", "Failed to get history")
			return
		}
		h.sendMessage(c, "history", history)

	case "session_info":
		session, err := h.game.GetSession(ctx, c.sessionID)
		if err != nil {
			h.sendError(c, "SESSION_ERROR", "Failed to get session")
			return
		}
		h.sendMessage(c, "session_info", session)

	case "ping":
		h.sendMessage(c, "pong", map[string]interface{}{
			"timestamp": time.Now().Unix(),
		})

	default:
		h.sendError(c, "UNKNOWN_MESSAGE", "Unknown message type: "+msg.Type)
	}
}

// sendActionResult streams the result of a blackjack action. Live rounds
// get a single view message; resolutions are revealed card by card
// before the final outcome message.
func (h *Handler) sendActionResult(c *WSClient, result *game.BlackjackResult, err error) {
	if err != nil {
		h.sendError(c, "GAME_ERROR", err.Error())
		return
	}

	if result.Resolution == nil {
		h.sendMessage(c, "view", result)
		return
	}

	res := result.Resolution
	for i, card := range res.DealerCards {
		h.sendMessage(c, "dealer_card", map[string]interface{}{
			"round_id": result.RoundID,
			"index":    i,
			"card":     card,
		})
		time.Sleep(revealDelay)
	}

	h.sendMessage(c, "outcome", result)
}

// sendMessage sends a message to the client
func (h *Handler) sendMessage(c *WSClient, msgType string, payload interface{}) {
	payloadBytes, _ := json.Marshal(payload)
	msg := WSMessage{
		Type:    msgType,
		Payload: payloadBytes,
	}
	msgBytes, _ := json.Marshal(msg)

	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case c.send <- msgBytes:
	default:
		// Channel full, drop message
	}
}

// sendError sends an error message to the client
func (h *Handler) sendError(c *WSClient, code, message string) {
	h.sendMessage(c, "error", map[string]string{
		"code":    code,
		"message": message,
	})
}
