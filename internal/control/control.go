// Package control provides operator controls over the gaming system: a
// global kill switch, per-game enablement and player account suspension.
// State is held in memory for the hot path and persisted to system_state
// so it survives restarts.
package control

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/YousefHassab/Progettino-Natale/internal/audit"
	"github.com/YousefHassab/Progettino-Natale/internal/domain"
)

var (
	ErrGamingDisabled = errors.New("gaming is currently disabled")
	ErrGameDisabled   = errors.New("game is currently disabled")
	ErrPlayerDisabled = errors.New("player account is disabled")
)

const (
	stateKeyGaming        = "gaming_enabled"
	stateKeyDisabledGames = "disabled_games"
)

// Service provides gaming system control functionality
type Service struct {
	db    *sql.DB
	audit *audit.Service

	mu             sync.RWMutex
	gamingEnabled  bool
	disabledGames  map[string]bool
	disabledAt     *time.Time
	disabledBy     string
	disabledReason string
}

// New creates a new control service
func New(db *sql.DB, auditSvc *audit.Service) *Service {
	return &Service{
		db:            db,
		audit:         auditSvc,
		gamingEnabled: true,
		disabledGames: make(map[string]bool),
	}
}

// Status is the current operator-facing system state.
type Status struct {
	GamingEnabled  bool       `json:"gaming_enabled"`
	DisabledAt     *time.Time `json:"disabled_at,omitempty"`
	DisabledBy     string     `json:"disabled_by,omitempty"`
	DisabledReason string     `json:"disabled_reason,omitempty"`
	DisabledGames  []string   `json:"disabled_games"`
	ActiveSessions int64      `json:"active_sessions"`
}

// DisableAllGaming stops all gaming activity on demand.
func (s *Service) DisableAllGaming(ctx context.Context, reason, authorizedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	s.gamingEnabled = false
	s.disabledAt = &now
	s.disabledBy = authorizedBy
	s.disabledReason = reason

	if err := s.persistState(ctx, stateKeyGaming, false); err != nil {
		return err
	}

	s.audit.Log(ctx, audit.EventGamingDisabled, domain.SeverityCritical,
		fmt.Sprintf("All gaming disabled: %s", reason),
		map[string]interface{}{
			"authorized_by": authorizedBy,
			"reason":        reason,
		},
		audit.WithComponent("control"))

	return nil
}

// EnableAllGaming resumes gaming operations
func (s *Service) EnableAllGaming(ctx context.Context, authorizedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gamingEnabled = true
	s.disabledAt = nil
	s.disabledBy = ""
	s.disabledReason = ""

	if err := s.persistState(ctx, stateKeyGaming, true); err != nil {
		return err
	}

	s.audit.Log(ctx, audit.EventGamingEnabled, domain.SeverityInfo,
		"All gaming enabled",
		map[string]interface{}{"authorized_by": authorizedBy},
		audit.WithComponent("control"))

	return nil
}

// DisableGame disables a specific game
func (s *Service) DisableGame(ctx context.Context, gameID, reason, authorizedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.disabledGames[gameID] = true
	if err := s.persistState(ctx, stateKeyDisabledGames, s.disabledGameList()); err != nil {
		return err
	}

	s.audit.Log(ctx, "game_disabled", domain.SeverityWarning,
		fmt.Sprintf("Game disabled: %s - %s", gameID, reason),
		map[string]interface{}{
			"game_id":       gameID,
			"reason":        reason,
			"authorized_by": authorizedBy,
		},
		audit.WithComponent("control"))

	return nil
}

// EnableGame enables a specific game
func (s *Service) EnableGame(ctx context.Context, gameID, authorizedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.disabledGames, gameID)
	if err := s.persistState(ctx, stateKeyDisabledGames, s.disabledGameList()); err != nil {
		return err
	}

	s.audit.Log(ctx, "game_enabled", domain.SeverityInfo,
		fmt.Sprintf("Game enabled: %s", gameID),
		map[string]interface{}{
			"game_id":       gameID,
			"authorized_by": authorizedBy,
		},
		audit.WithComponent("control"))

	return nil
}

// DisablePlayer suspends a player's account and terminates their sessions.
func (s *Service) DisablePlayer(ctx context.Context, playerID, reason, authorizedBy string) error {
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		UPDATE players SET status = $1, updated_at = $2 WHERE id = $3
	`, domain.PlayerStatusSuspended, now, playerID)
	if err != nil {
		return fmt.Errorf("failed to disable player: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE sessions SET status = $1 WHERE player_id = $2 AND status = $3
	`, domain.SessionStatusExpired, playerID, domain.SessionStatusActive)
	if err != nil {
		return fmt.Errorf("failed to terminate sessions: %w", err)
	}

	s.audit.Log(ctx, audit.EventAccountStatusChange, domain.SeverityWarning,
		fmt.Sprintf("Player account disabled: %s", reason),
		map[string]interface{}{
			"player_id":     playerID,
			"reason":        reason,
			"authorized_by": authorizedBy,
		},
		audit.WithPlayer(playerID), audit.WithComponent("control"))

	return nil
}

// EnablePlayer reactivates a player's account. Refused while an active
// self-exclusion stands.
func (s *Service) EnablePlayer(ctx context.Context, playerID, authorizedBy string) error {
	now := time.Now().UTC()

	var exclusionCount int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM self_exclusions
		WHERE player_id = $1 AND is_active = true
		AND (expires_at IS NULL OR expires_at > $2)
	`, playerID, now).Scan(&exclusionCount)
	if err != nil {
		return err
	}
	if exclusionCount > 0 {
		return errors.New("cannot enable player with active self-exclusion")
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE players SET status = $1, updated_at = $2 WHERE id = $3
	`, domain.PlayerStatusActive, now, playerID)
	if err != nil {
		return fmt.Errorf("failed to enable player: %w", err)
	}

	s.audit.Log(ctx, audit.EventAccountStatusChange, domain.SeverityInfo,
		"Player account enabled",
		map[string]interface{}{
			"player_id":     playerID,
			"authorized_by": authorizedBy,
		},
		audit.WithPlayer(playerID), audit.WithComponent("control"))

	return nil
}

// IsGamingEnabled checks if gaming is currently enabled
func (s *Service) IsGamingEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gamingEnabled
}

// IsGameEnabled checks if a specific game is enabled
func (s *Service) IsGameEnabled(gameID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.disabledGames[gameID]
}

// GetStatus returns the current system status.
func (s *Service) GetStatus(ctx context.Context) (*Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var activeSessions int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sessions WHERE status = $1
	`, domain.SessionStatusActive).Scan(&activeSessions)
	if err != nil {
		return nil, err
	}

	return &Status{
		GamingEnabled:  s.gamingEnabled,
		DisabledAt:     s.disabledAt,
		DisabledBy:     s.disabledBy,
		DisabledReason: s.disabledReason,
		DisabledGames:  s.disabledGameList(),
		ActiveSessions: activeSessions,
	}, nil
}

// CheckAccess verifies a player can play a game right now: system switch,
// game switch, then account status.
func (s *Service) CheckAccess(ctx context.Context, playerID, gameID string) error {
	if !s.IsGamingEnabled() {
		return ErrGamingDisabled
	}
	if !s.IsGameEnabled(gameID) {
		return ErrGameDisabled
	}

	var status domain.PlayerStatus
	err := s.db.QueryRowContext(ctx, `SELECT status FROM players WHERE id = $1`, playerID).Scan(&status)
	if err != nil {
		return err
	}
	if status != domain.PlayerStatusActive {
		return ErrPlayerDisabled
	}

	return nil
}

// LoadState loads persisted state from database on startup
func (s *Service) LoadState(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM system_state WHERE key = $1`, stateKeyGaming).Scan(&raw)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if len(raw) > 0 {
		var enabled bool
		if err := json.Unmarshal(raw, &enabled); err != nil {
			return fmt.Errorf("corrupt %s state: %w", stateKeyGaming, err)
		}
		s.gamingEnabled = enabled
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT value FROM system_state WHERE key = $1`, stateKeyDisabledGames).Scan(&raw)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if len(raw) > 0 && !errors.Is(err, sql.ErrNoRows) {
		var games []string
		if err := json.Unmarshal(raw, &games); err != nil {
			return fmt.Errorf("corrupt %s state: %w", stateKeyDisabledGames, err)
		}
		s.disabledGames = make(map[string]bool, len(games))
		for _, id := range games {
			s.disabledGames[id] = true
		}
	}

	return nil
}

// persistState upserts one JSON value into system_state. Caller holds the
// lock.
func (s *Service) persistState(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO system_state (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = $3
	`, key, raw, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to persist %s: %w", key, err)
	}
	return nil
}

// disabledGameList snapshots the disabled set. Caller holds the lock.
func (s *Service) disabledGameList() []string {
	games := make([]string, 0, len(s.disabledGames))
	for id := range s.disabledGames {
		games = append(games, id)
	}
	return games
}
