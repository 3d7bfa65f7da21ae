package game

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/YousefHassab/Progettino-Natale/internal/audit"
	"github.com/YousefHassab/Progettino-Natale/internal/blackjack"
	"github.com/YousefHassab/Progettino-Natale/internal/domain"
)

// ErrRoundNotInterrupted is returned when resuming or voiding a round
// that is not in the interrupted queue.
var ErrRoundNotInterrupted = errors.New("round is not interrupted")

// MarkInterrupted takes the session's live round out of play. The round
// is resolved immediately (standing the player hand if it was still
// live) and the resolution is held unapplied together with the wager:
// ResumeRound later applies it in full, VoidRound refunds instead.
// Nothing is ever applied partially.
func (e *Engine) MarkInterrupted(ctx context.Context, sessionID, reason string) (*domain.InterruptedRound, error) {
	t := e.takeTable(sessionID)
	if t == nil {
		return nil, ErrNoActiveRound
	}
	if err := e.interruptTable(ctx, t, reason); err != nil {
		return nil, err
	}
	return e.getInterrupted(ctx, t.roundID)
}

func (e *Engine) interruptTable(ctx context.Context, t *table, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.round == nil {
		// An action settled the round between takeTable and here.
		return ErrNoActiveRound
	}
	t.closed = true

	if t.round.State() != blackjack.StateResolved {
		if _, err := t.round.Stand(); err != nil {
			return fmt.Errorf("failed to resolve interrupted round: %w", err)
		}
	}
	res := t.round.Resolution()

	detailsJSON, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to encode interrupted round: %w", err)
	}

	now := time.Now().UTC()
	_, err = e.db.ExecContext(ctx, `
		UPDATE rounds SET status = $1, details = $2 WHERE id = $3
	`, domain.RoundInterrupted, detailsJSON, t.roundID)
	if err != nil {
		return fmt.Errorf("failed to mark round interrupted: %w", err)
	}

	_, err = e.db.ExecContext(ctx, `
		INSERT INTO interrupted_rounds (round_id, session_id, player_id, game_id, interrupted_at, reason, wager_held, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, t.roundID, t.sessionID, t.playerID, t.gameID, now, reason, t.wagered, detailsJSON)
	if err != nil {
		return fmt.Errorf("failed to queue interrupted round: %w", err)
	}

	e.audit.Log(ctx, audit.EventRoundInterrupted, domain.SeverityWarning,
		fmt.Sprintf("Round interrupted: %s", reason),
		map[string]interface{}{
			"round_id":   t.roundID,
			"game_id":    t.gameID,
			"wager_held": t.wagered,
		},
		audit.WithPlayer(t.playerID), audit.WithSession(t.sessionID))

	return nil
}

// ResumeRound applies the outcome held for an interrupted round in full:
// the payout is credited and the round completes exactly as it would
// have without the interruption.
func (e *Engine) ResumeRound(ctx context.Context, roundID string) (*BlackjackResult, error) {
	ir, err := e.getInterrupted(ctx, roundID)
	if err != nil {
		return nil, err
	}

	var res blackjack.Resolution
	if err := json.Unmarshal(ir.Details, &res); err != nil {
		return nil, fmt.Errorf("failed to decode held resolution: %w", err)
	}

	session, err := e.GetSession(ctx, ir.SessionID)
	if err != nil {
		return nil, err
	}

	if res.Payout > 0 {
		if _, err := e.wallet.CreditWin(ctx, ir.PlayerID, res.Payout, ir.GameID, roundID); err != nil {
			return nil, err
		}
	}

	round, err := e.finishRound(ctx, session, roundID, domain.GameBlackjack, ir.WagerHeld, res.Payout, res.Outcome, &res)
	if err != nil {
		return nil, err
	}

	if err := e.removeInterrupted(ctx, roundID); err != nil {
		return nil, err
	}

	e.audit.Log(ctx, audit.EventRoundResumed, domain.SeverityInfo,
		fmt.Sprintf("Interrupted round resumed: %s", res.Outcome),
		map[string]interface{}{"round_id": roundID, "win": res.Payout},
		audit.WithPlayer(ir.PlayerID), audit.WithSession(ir.SessionID))

	return &BlackjackResult{
		RoundID:    roundID,
		Resolution: &res,
		Round:      round,
		Balance:    round.BalanceAfter,
	}, nil
}

// VoidRound cancels an interrupted round and refunds the held wager. The
// held outcome is discarded without being applied.
func (e *Engine) VoidRound(ctx context.Context, roundID string) error {
	ir, err := e.getInterrupted(ctx, roundID)
	if err != nil {
		return err
	}

	if _, err := e.wallet.Refund(ctx, ir.PlayerID, ir.WagerHeld, ir.GameID, roundID); err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = e.db.ExecContext(ctx, `
		UPDATE rounds SET status = $1, completed_at = $2 WHERE id = $3
	`, domain.RoundVoided, now, roundID)
	if err != nil {
		return fmt.Errorf("failed to void round: %w", err)
	}

	if err := e.removeInterrupted(ctx, roundID); err != nil {
		return err
	}

	e.audit.Log(ctx, audit.EventRoundVoided, domain.SeverityWarning,
		fmt.Sprintf("Interrupted round voided, %d credits refunded", ir.WagerHeld),
		map[string]interface{}{"round_id": roundID, "refund": ir.WagerHeld},
		audit.WithPlayer(ir.PlayerID), audit.WithSession(ir.SessionID))

	return nil
}

// GetInterruptedRounds lists rounds awaiting resume or void.
func (e *Engine) GetInterruptedRounds(ctx context.Context) ([]*domain.InterruptedRound, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT round_id, session_id, player_id, game_id, interrupted_at, reason, wager_held, details
		FROM interrupted_rounds ORDER BY interrupted_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var queue []*domain.InterruptedRound
	for rows.Next() {
		var ir domain.InterruptedRound
		var details []byte
		if err := rows.Scan(&ir.RoundID, &ir.SessionID, &ir.PlayerID, &ir.GameID,
			&ir.InterruptedAt, &ir.Reason, &ir.WagerHeld, &details); err != nil {
			return nil, err
		}
		ir.Details = details
		queue = append(queue, &ir)
	}

	return queue, rows.Err()
}

func (e *Engine) getInterrupted(ctx context.Context, roundID string) (*domain.InterruptedRound, error) {
	var ir domain.InterruptedRound
	var details []byte

	err := e.db.QueryRowContext(ctx, `
		SELECT round_id, session_id, player_id, game_id, interrupted_at, reason, wager_held, details
		FROM interrupted_rounds WHERE round_id = $1
	`, roundID).Scan(&ir.RoundID, &ir.SessionID, &ir.PlayerID, &ir.GameID,
		&ir.InterruptedAt, &ir.Reason, &ir.WagerHeld, &details)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoundNotInterrupted
		}
		return nil, err
	}
	ir.Details = details

	return &ir, nil
}

func (e *Engine) removeInterrupted(ctx context.Context, roundID string) error {
	_, err := e.db.ExecContext(ctx, `DELETE FROM interrupted_rounds WHERE round_id = $1`, roundID)
	return err
}
