package game

import (
	"context"
	"fmt"
	"time"

	"github.com/YousefHassab/Progettino-Natale/internal/domain"
	"github.com/YousefHassab/Progettino-Natale/internal/roulette"
	"github.com/google/uuid"
)

// RouletteResult is the outcome of one roulette spin.
type RouletteResult struct {
	RoundID string           `json:"round_id"`
	Result  *roulette.Result `json:"result"`
	Round   *domain.Round    `json:"round"`
	Balance domain.Credits   `json:"balance"`
}

// SpinRoulette runs one roulette round over a slip of simultaneous bets.
// The slip total is debited as a single wager before the wheel spins;
// every bet on the slip resolves against the same pocket and the slip is
// cleared once the round record is written.
func (e *Engine) SpinRoulette(ctx context.Context, sessionID string, bets []roulette.Bet) (*RouletteResult, error) {
	if len(bets) == 0 {
		return nil, roulette.ErrNoBets
	}
	for _, b := range bets {
		if err := b.Validate(); err != nil {
			return nil, err
		}
	}

	total := roulette.TotalWager(bets)
	session, game, err := e.beginRound(ctx, sessionID, total, domain.GameRoulette)
	if err != nil {
		return nil, err
	}

	balance, err := e.wallet.GetBalance(ctx, session.PlayerID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	roundID := uuid.New().String()

	if _, err := e.wallet.PlaceWager(ctx, session.PlayerID, total, game.ID, roundID); err != nil {
		return nil, err
	}

	result, err := roulette.Spin(e.rng, bets)
	if err != nil {
		e.refundWager(ctx, session.PlayerID, game.ID, roundID, total)
		return nil, fmt.Errorf("failed to spin: %w", err)
	}

	if err := e.startRound(ctx, session, roundID, domain.GameRoulette, total, balance.Credits, now); err != nil {
		e.refundWager(ctx, session.PlayerID, game.ID, roundID, total)
		return nil, err
	}

	if result.TotalPayout > 0 {
		if _, err := e.wallet.CreditWin(ctx, session.PlayerID, result.TotalPayout, game.ID, roundID); err != nil {
			return nil, err
		}
	}

	round, err := e.finishRound(ctx, session, roundID, domain.GameRoulette, total, result.TotalPayout, result.Outcome(), result)
	if err != nil {
		return nil, err
	}

	return &RouletteResult{
		RoundID: roundID,
		Result:  result,
		Round:   round,
		Balance: round.BalanceAfter,
	}, nil
}
