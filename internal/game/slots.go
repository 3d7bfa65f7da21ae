package game

import (
	"context"
	"fmt"
	"time"

	"github.com/YousefHassab/Progettino-Natale/internal/domain"
	"github.com/YousefHassab/Progettino-Natale/internal/slots"
	"github.com/google/uuid"
)

// SlotsResult is the outcome of one slot spin.
type SlotsResult struct {
	RoundID string         `json:"round_id"`
	Result  *slots.Result  `json:"result"`
	Round   *domain.Round  `json:"round"`
	Balance domain.Credits `json:"balance"`
}

// SpinSlots runs one complete slot round: debit the bet, draw the grid,
// credit any payout, persist and audit. The grid and payout are final
// before the call returns.
func (e *Engine) SpinSlots(ctx context.Context, sessionID string, bet domain.Credits) (*SlotsResult, error) {
	session, game, err := e.beginRound(ctx, sessionID, bet, domain.GameSlots)
	if err != nil {
		return nil, err
	}

	balance, err := e.wallet.GetBalance(ctx, session.PlayerID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	roundID := uuid.New().String()

	if _, err := e.wallet.PlaceWager(ctx, session.PlayerID, bet, game.ID, roundID); err != nil {
		return nil, err
	}

	result, err := slots.Spin(e.rng, bet)
	if err != nil {
		e.refundWager(ctx, session.PlayerID, game.ID, roundID, bet)
		return nil, fmt.Errorf("failed to spin: %w", err)
	}

	if err := e.startRound(ctx, session, roundID, domain.GameSlots, bet, balance.Credits, now); err != nil {
		e.refundWager(ctx, session.PlayerID, game.ID, roundID, bet)
		return nil, err
	}

	if result.TotalPayout > 0 {
		if _, err := e.wallet.CreditWin(ctx, session.PlayerID, result.TotalPayout, game.ID, roundID); err != nil {
			return nil, err
		}
	}

	round, err := e.finishRound(ctx, session, roundID, domain.GameSlots, bet, result.TotalPayout, result.Outcome(), result)
	if err != nil {
		return nil, err
	}

	return &SlotsResult{
		RoundID: roundID,
		Result:  result,
		Round:   round,
		Balance: round.BalanceAfter,
	}, nil
}
