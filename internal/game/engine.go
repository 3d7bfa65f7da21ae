// Package game provides the game engine: registry, sessions and the
// play paths for slots, roulette and blackjack. Every play path runs
// debit, resolve, credit, persist, audit in that order; the wager is
// taken before any outcome exists and the payout is credited only after
// the outcome is final.
package game

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/YousefHassab/Progettino-Natale/internal/audit"
	"github.com/YousefHassab/Progettino-Natale/internal/config"
	"github.com/YousefHassab/Progettino-Natale/internal/control"
	"github.com/YousefHassab/Progettino-Natale/internal/domain"
	"github.com/YousefHassab/Progettino-Natale/internal/limits"
	"github.com/YousefHassab/Progettino-Natale/internal/rng"
	"github.com/YousefHassab/Progettino-Natale/internal/wallet"
	"github.com/YousefHassab/Progettino-Natale/pkg/profilestore"
	"github.com/google/uuid"
)

var (
	ErrGameNotFound     = errors.New("game not found")
	ErrGameDisabled     = errors.New("game is disabled")
	ErrWrongGame        = errors.New("session belongs to a different game")
	ErrSessionNotFound  = errors.New("game session not found")
	ErrSessionNotActive = errors.New("game session is not active")
	ErrInvalidWager     = errors.New("invalid wager amount")
	ErrRoundInProgress  = errors.New("session already has an active round")
	ErrNoActiveRound    = errors.New("session has no active round")
	ErrRoundNotFound    = errors.New("round not found")
)

// Engine executes game rounds against the wallet and records every
// resolved round locally. When a profile store client is configured,
// resolved rounds are also mirrored to it best-effort.
type Engine struct {
	db       *sql.DB
	rng      *rng.Service
	wallet   *wallet.Service
	audit    *audit.Service
	limits   *limits.Service
	control  *control.Service
	profiles *profilestore.Client
	cfg      *config.GameConfig
	games    map[string]*domain.Game

	mu     sync.Mutex
	tables map[string]*table // session ID -> live blackjack round
}

// New creates a game engine. The profile store client may be nil, which
// disables round mirroring.
func New(db *sql.DB, rngSvc *rng.Service, walletSvc *wallet.Service, auditSvc *audit.Service,
	limitsSvc *limits.Service, controlSvc *control.Service, profiles *profilestore.Client,
	cfg *config.GameConfig) *Engine {

	engine := &Engine{
		db:       db,
		rng:      rngSvc,
		wallet:   walletSvc,
		audit:    auditSvc,
		limits:   limitsSvc,
		control:  controlSvc,
		profiles: profiles,
		cfg:      cfg,
		games:    make(map[string]*domain.Game),
		tables:   make(map[string]*table),
	}

	engine.registerGames()

	return engine
}

// registerGames registers the available games
func (e *Engine) registerGames() {
	minBet := domain.Credits(e.cfg.MinBet)
	maxBet := domain.Credits(e.cfg.MaxBet)

	e.games["grand-slots"] = &domain.Game{
		ID:             "grand-slots",
		Name:           "Grand Slots",
		Type:           domain.GameSlots,
		TheoreticalRTP: 0.95,
		MinBet:         minBet,
		MaxBet:         maxBet,
		Enabled:        true,
	}

	e.games["classic-blackjack"] = &domain.Game{
		ID:             "classic-blackjack",
		Name:           "Classic Blackjack",
		Type:           domain.GameBlackjack,
		TheoreticalRTP: 0.99,
		MinBet:         minBet,
		MaxBet:         maxBet,
		Enabled:        true,
	}

	e.games["euro-roulette"] = &domain.Game{
		ID:             "euro-roulette",
		Name:           "European Roulette",
		Type:           domain.GameRoulette,
		TheoreticalRTP: 0.973,
		MinBet:         minBet,
		MaxBet:         maxBet,
		Enabled:        true,
	}
}

// GetGames returns all registered games
func (e *Engine) GetGames() []*domain.Game {
	games := make([]*domain.Game, 0, len(e.games))
	for _, g := range e.games {
		games = append(games, g)
	}
	return games
}

// GetGame returns a game by ID
func (e *Engine) GetGame(gameID string) (*domain.Game, error) {
	game, ok := e.games[gameID]
	if !ok {
		return nil, ErrGameNotFound
	}
	return game, nil
}

// StartSession opens a game session for a player
func (e *Engine) StartSession(ctx context.Context, playerID, gameID string) (*domain.GameSession, error) {
	game, err := e.GetGame(gameID)
	if err != nil {
		return nil, err
	}
	if !game.Enabled {
		return nil, ErrGameDisabled
	}
	if err := e.control.CheckAccess(ctx, playerID, gameID); err != nil {
		return nil, err
	}

	balance, err := e.wallet.GetBalance(ctx, playerID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	session := &domain.GameSession{
		ID:             uuid.New().String(),
		PlayerID:       playerID,
		GameID:         gameID,
		StartedAt:      now,
		LastActivityAt: now,
		Status:         domain.GameSessionActive,
		OpeningBalance: balance.Credits,
	}

	_, err = e.db.ExecContext(ctx, `
		INSERT INTO game_sessions (id, player_id, game_id, started_at, last_activity_at, status, opening_balance, total_wagered, total_won, rounds_played)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, 0, 0)
	`, session.ID, session.PlayerID, session.GameID, session.StartedAt,
		session.LastActivityAt, session.Status, session.OpeningBalance)
	if err != nil {
		return nil, fmt.Errorf("failed to create game session: %w", err)
	}

	e.audit.Log(ctx, audit.EventGameSessionStart, domain.SeverityInfo,
		fmt.Sprintf("Game session started: %s", game.Name),
		map[string]string{"session_id": session.ID, "game_id": gameID},
		audit.WithPlayer(playerID), audit.WithSession(session.ID))

	return session, nil
}

// GetSession retrieves a game session
func (e *Engine) GetSession(ctx context.Context, sessionID string) (*domain.GameSession, error) {
	var session domain.GameSession
	var endedAt sql.NullTime

	err := e.db.QueryRowContext(ctx, `
		SELECT id, player_id, game_id, started_at, ended_at, last_activity_at, status,
		       opening_balance, total_wagered, total_won, rounds_played
		FROM game_sessions WHERE id = $1
	`, sessionID).Scan(
		&session.ID, &session.PlayerID, &session.GameID, &session.StartedAt, &endedAt,
		&session.LastActivityAt, &session.Status, &session.OpeningBalance,
		&session.TotalWagered, &session.TotalWon, &session.RoundsPlayed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if endedAt.Valid {
		session.EndedAt = &endedAt.Time
	}

	return &session, nil
}

// EndSession closes a game session. A live blackjack round is marked
// interrupted so it can be voided or resumed later.
func (e *Engine) EndSession(ctx context.Context, sessionID string) (*domain.GameSession, error) {
	session, err := e.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if t := e.takeTable(sessionID); t != nil {
		err := e.interruptTable(ctx, t, "session ended with an open round")
		if err != nil && !errors.Is(err, ErrNoActiveRound) {
			return nil, err
		}
	}

	now := time.Now().UTC()
	session.EndedAt = &now
	session.Status = domain.GameSessionCompleted

	_, err = e.db.ExecContext(ctx, `
		UPDATE game_sessions SET ended_at = $1, status = $2 WHERE id = $3
	`, now, session.Status, sessionID)
	if err != nil {
		return nil, err
	}

	e.audit.Log(ctx, audit.EventGameSessionEnd, domain.SeverityInfo,
		fmt.Sprintf("Game session ended: %d rounds played", session.RoundsPlayed),
		map[string]interface{}{
			"session_id":    session.ID,
			"rounds_played": session.RoundsPlayed,
			"total_wagered": session.TotalWagered,
			"total_won":     session.TotalWon,
		},
		audit.WithPlayer(session.PlayerID), audit.WithSession(sessionID))

	return session, nil
}

// beginRound runs the pre-wager gate shared by every play path: session
// active, game registered and of the expected type, operator switches,
// bet bounds and responsible-gaming limits.
func (e *Engine) beginRound(ctx context.Context, sessionID string, wager domain.Credits, gameType domain.GameType) (*domain.GameSession, *domain.Game, error) {
	session, err := e.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if session.Status != domain.GameSessionActive {
		return nil, nil, ErrSessionNotActive
	}

	game, err := e.GetGame(session.GameID)
	if err != nil {
		return nil, nil, err
	}
	if game.Type != gameType {
		return nil, nil, ErrWrongGame
	}
	if !game.Enabled {
		return nil, nil, ErrGameDisabled
	}

	if err := e.control.CheckAccess(ctx, session.PlayerID, session.GameID); err != nil {
		return nil, nil, err
	}
	if wager < game.MinBet || wager > game.MaxBet {
		return nil, nil, ErrInvalidWager
	}
	if err := e.limits.CheckWager(ctx, session.PlayerID, wager); err != nil {
		return nil, nil, err
	}

	return session, game, nil
}

// startRound records the round while it is still unresolved. The wager
// must already be debited.
func (e *Engine) startRound(ctx context.Context, session *domain.GameSession, roundID string, gameType domain.GameType, wager, balanceBefore domain.Credits, startedAt time.Time) error {
	_, err := e.db.ExecContext(ctx, `
		INSERT INTO rounds (id, session_id, player_id, game_id, game_type, started_at, wager, balance_before, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, roundID, session.ID, session.PlayerID, session.GameID, gameType,
		startedAt, wager, balanceBefore, domain.RoundInProgress)
	if err != nil {
		return fmt.Errorf("failed to record round: %w", err)
	}
	return nil
}

// finishRound completes a recorded round after the payout has been
// credited: final balance, outcome tag, details, session totals, audit
// trail and the best-effort profile store mirror.
func (e *Engine) finishRound(ctx context.Context, session *domain.GameSession, roundID string, gameType domain.GameType, wagered, win domain.Credits, outcome domain.Outcome, details interface{}) (*domain.Round, error) {
	balance, err := e.wallet.GetBalance(ctx, session.PlayerID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("failed to encode round details: %w", err)
	}

	_, err = e.db.ExecContext(ctx, `
		UPDATE rounds
		SET completed_at = $1, wager = $2, win = $3, outcome = $4, balance_after = $5, details = $6, status = $7
		WHERE id = $8
	`, now, wagered, win, outcome, balance.Credits, detailsJSON, domain.RoundCompleted, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to complete round: %w", err)
	}

	_, err = e.db.ExecContext(ctx, `
		UPDATE game_sessions
		SET last_activity_at = $1,
		    total_wagered = total_wagered + $2,
		    total_won = total_won + $3,
		    rounds_played = rounds_played + 1
		WHERE id = $4
	`, now, wagered, win, session.ID)
	if err != nil {
		return nil, err
	}

	round, err := e.GetRound(ctx, roundID)
	if err != nil {
		return nil, err
	}

	e.audit.Log(ctx, audit.EventRoundResolved, domain.SeverityInfo,
		fmt.Sprintf("Round resolved: %s %s", gameType, outcome),
		map[string]interface{}{
			"round_id": roundID,
			"game_id":  session.GameID,
			"wager":    wagered,
			"win":      win,
			"outcome":  outcome,
		},
		audit.WithPlayer(session.PlayerID), audit.WithSession(session.ID))

	if e.cfg.LargeWinThreshold > 0 && win >= domain.Credits(e.cfg.LargeWinThreshold) {
		e.audit.Log(ctx, audit.EventLargeWin, domain.SeverityInfo,
			fmt.Sprintf("Large win: %d credits on %s", win, session.GameID),
			map[string]interface{}{
				"round_id": roundID,
				"game_id":  session.GameID,
				"wager":    wagered,
				"win":      win,
			},
			audit.WithPlayer(session.PlayerID), audit.WithSession(session.ID))
	}

	e.mirrorRound(ctx, round)

	return round, nil
}

// refundWager compensates a debit after a failed round setup. A refund
// that itself fails leaves the player debited with no round record, so
// the failure is audited for manual repair.
func (e *Engine) refundWager(ctx context.Context, playerID, gameID, reference string, amount domain.Credits) {
	if _, err := e.wallet.Refund(ctx, playerID, amount, gameID, reference); err != nil {
		e.audit.Log(ctx, audit.EventRefundFailed, domain.SeverityError,
			fmt.Sprintf("Compensating refund of %d credits failed: %v", amount, err),
			map[string]interface{}{
				"reference": reference,
				"game_id":   gameID,
				"amount":    amount,
			},
			audit.WithPlayer(playerID), audit.WithComponent("wallet"))
	}
}

// mirrorRound pushes a resolved round to the profile store. Failures are
// audited and swallowed: the local record is authoritative.
func (e *Engine) mirrorRound(ctx context.Context, round *domain.Round) {
	if e.profiles == nil {
		return
	}

	record := &profilestore.RoundRecord{
		RoundID:  round.ID,
		PlayerID: round.PlayerID,
		GameID:   round.GameID,
		GameType: string(round.GameType),
		Wager:    int64(round.Wager),
		Win:      int64(round.Win),
		Outcome:  string(round.Outcome),
		Details:  string(round.Details),
		PlayedAt: time.Now().UTC(),
	}
	if round.CompletedAt != nil {
		record.PlayedAt = *round.CompletedAt
	}

	if _, err := e.profiles.RecordRound(ctx, record); err != nil {
		e.audit.Log(ctx, audit.EventProfileSyncFailed, domain.SeverityWarning,
			fmt.Sprintf("Failed to mirror round %s: %v", round.ID, err),
			map[string]string{"round_id": round.ID},
			audit.WithPlayer(round.PlayerID), audit.WithComponent("profilestore"))
	}
}

// GetHistory retrieves a player's resolved rounds, newest first
func (e *Engine) GetHistory(ctx context.Context, playerID string, limit int) ([]*domain.Round, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := e.db.QueryContext(ctx, `
		SELECT id, session_id, player_id, game_id, game_type, started_at, completed_at,
		       wager, win, outcome, balance_before, balance_after, details, status
		FROM rounds
		WHERE player_id = $1 AND status = $2
		ORDER BY started_at DESC LIMIT $3
	`, playerID, domain.RoundCompleted, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []*domain.Round
	for rows.Next() {
		round, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		history = append(history, round)
	}

	return history, rows.Err()
}

// GetRound retrieves a single round by ID
func (e *Engine) GetRound(ctx context.Context, roundID string) (*domain.Round, error) {
	row := e.db.QueryRowContext(ctx, `
		SELECT id, session_id, player_id, game_id, game_type, started_at, completed_at,
		       wager, win, outcome, balance_before, balance_after, details, status
		FROM rounds WHERE id = $1
	`, roundID)

	round, err := scanRound(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoundNotFound
		}
		return nil, err
	}

	return round, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRound(row rowScanner) (*domain.Round, error) {
	var round domain.Round
	var completedAt sql.NullTime
	var outcome sql.NullString
	var details []byte

	err := row.Scan(&round.ID, &round.SessionID, &round.PlayerID, &round.GameID,
		&round.GameType, &round.StartedAt, &completedAt, &round.Wager, &round.Win,
		&outcome, &round.BalanceBefore, &round.BalanceAfter, &details, &round.Status)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		round.CompletedAt = &completedAt.Time
	}
	if outcome.Valid {
		round.Outcome = domain.Outcome(outcome.String)
	}
	round.Details = details

	return &round, nil
}
