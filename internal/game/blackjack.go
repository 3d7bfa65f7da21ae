package game

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/YousefHassab/Progettino-Natale/internal/blackjack"
	"github.com/YousefHassab/Progettino-Natale/internal/cards"
	"github.com/YousefHassab/Progettino-Natale/internal/domain"
	"github.com/google/uuid"
)

// table is a live blackjack round bound to a game session. The table's
// own mutex serializes every action on the round, whether it arrives
// over REST or the websocket stream. round is nil while the opening
// deal is still settling up; closed means the table has been taken out
// of the registry and accepts no further actions.
type table struct {
	mu        sync.Mutex
	roundID   string
	sessionID string
	playerID  string
	gameID    string
	round     *blackjack.Round
	wagered   domain.Credits
	startedAt time.Time
	closed    bool
}

func (e *Engine) getTable(sessionID string) *table {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tables[sessionID]
}

// reserveTable claims the session's table slot before any money moves.
// Exactly one concurrent deal wins the slot; the rest see
// ErrRoundInProgress.
func (e *Engine) reserveTable(sessionID string) (*table, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.tables[sessionID]; exists {
		return nil, ErrRoundInProgress
	}
	t := &table{sessionID: sessionID}
	e.tables[sessionID] = t
	return t, nil
}

// releaseTable drops a reservation whose deal failed.
func (e *Engine) releaseTable(t *table) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tables[t.sessionID] == t {
		delete(e.tables, t.sessionID)
	}
}

// takeTable removes and returns the session's live round, if any.
func (e *Engine) takeTable(sessionID string) *table {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.tables[sessionID]
	delete(e.tables, sessionID)
	return t
}

// lockTable returns the session's live round with its lock held; the
// caller must unlock. A reservation still dealing and a table already
// taken out of play both read as no active round.
func (e *Engine) lockTable(sessionID string) (*table, error) {
	t := e.getTable(sessionID)
	if t == nil {
		return nil, ErrNoActiveRound
	}
	t.mu.Lock()
	if t.closed || t.round == nil {
		t.mu.Unlock()
		return nil, ErrNoActiveRound
	}
	return t, nil
}

// BlackjackResult is the caller-visible state after a blackjack action.
// Resolution and Round are set once the round is over; until then View
// shows the live hands with the dealer hole card hidden.
type BlackjackResult struct {
	RoundID    string                `json:"round_id"`
	View       *blackjack.View       `json:"view,omitempty"`
	Resolution *blackjack.Resolution `json:"resolution,omitempty"`
	Round      *domain.Round         `json:"round,omitempty"`
	Balance    domain.Credits        `json:"balance"`
}

// DealBlackjack debits the bet and opens a blackjack round on the
// session. A player natural resolves immediately.
func (e *Engine) DealBlackjack(ctx context.Context, sessionID string, bet domain.Credits) (*BlackjackResult, error) {
	session, game, err := e.beginRound(ctx, sessionID, bet, domain.GameBlackjack)
	if err != nil {
		return nil, err
	}

	t, err := e.reserveTable(sessionID)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	fail := func(err error) (*BlackjackResult, error) {
		t.closed = true
		e.releaseTable(t)
		return nil, err
	}

	balance, err := e.wallet.GetBalance(ctx, session.PlayerID)
	if err != nil {
		return fail(err)
	}

	now := time.Now().UTC()
	roundID := uuid.New().String()

	if _, err := e.wallet.PlaceWager(ctx, session.PlayerID, bet, game.ID, roundID); err != nil {
		return fail(err)
	}

	shoe, err := cards.NewShoe(e.rng)
	if err != nil {
		e.refundWager(ctx, session.PlayerID, game.ID, roundID, bet)
		return fail(fmt.Errorf("failed to shuffle shoe: %w", err))
	}

	round := blackjack.NewRound(shoe, bet)
	view, err := round.Deal()
	if err != nil {
		e.refundWager(ctx, session.PlayerID, game.ID, roundID, bet)
		return fail(err)
	}

	if err := e.startRound(ctx, session, roundID, domain.GameBlackjack, bet, balance.Credits, now); err != nil {
		e.refundWager(ctx, session.PlayerID, game.ID, roundID, bet)
		return fail(err)
	}

	t.roundID = roundID
	t.playerID = session.PlayerID
	t.gameID = game.ID
	t.round = round
	t.wagered = bet
	t.startedAt = now

	if round.State() == blackjack.StateResolved {
		return e.resolveTable(ctx, t)
	}

	return &BlackjackResult{RoundID: roundID, View: view, Balance: balance.Credits - bet}, nil
}

// HitBlackjack draws one card for the player. A bust resolves the round.
func (e *Engine) HitBlackjack(ctx context.Context, sessionID string) (*BlackjackResult, error) {
	t, err := e.lockTable(sessionID)
	if err != nil {
		return nil, err
	}
	defer t.mu.Unlock()

	view, err := t.round.Hit()
	if err != nil {
		return nil, err
	}

	if t.round.State() == blackjack.StateResolved {
		return e.resolveTable(ctx, t)
	}

	balance, err := e.wallet.GetBalance(ctx, t.playerID)
	if err != nil {
		return nil, err
	}
	return &BlackjackResult{RoundID: t.roundID, View: view, Balance: balance.Credits}, nil
}

// StandBlackjack ends the player's turn, plays the dealer hand and
// resolves the round.
func (e *Engine) StandBlackjack(ctx context.Context, sessionID string) (*BlackjackResult, error) {
	t, err := e.lockTable(sessionID)
	if err != nil {
		return nil, err
	}
	defer t.mu.Unlock()

	if _, err := t.round.Stand(); err != nil {
		return nil, err
	}

	return e.resolveTable(ctx, t)
}

// DoubleBlackjack debits a second stake equal to the original bet, draws
// exactly one card and resolves the round. Only available before the
// first hit.
func (e *Engine) DoubleBlackjack(ctx context.Context, sessionID string) (*BlackjackResult, error) {
	t, err := e.lockTable(sessionID)
	if err != nil {
		return nil, err
	}
	defer t.mu.Unlock()

	if !t.round.CanDouble() {
		return nil, blackjack.ErrDoubleAfterHit
	}

	extra := t.round.Bet()
	if err := e.limits.CheckWager(ctx, t.playerID, extra); err != nil {
		return nil, err
	}

	doubleRef := t.roundID + ":double"
	if _, err := e.wallet.PlaceWager(ctx, t.playerID, extra, t.gameID, doubleRef); err != nil {
		return nil, err
	}
	t.wagered += extra

	if _, err := t.round.Double(); err != nil {
		t.wagered -= extra
		e.refundWager(ctx, t.playerID, t.gameID, doubleRef, extra)
		return nil, err
	}

	return e.resolveTable(ctx, t)
}

// GetBlackjackView returns the live view of the session's open round.
func (e *Engine) GetBlackjackView(ctx context.Context, sessionID string) (*BlackjackResult, error) {
	t, err := e.lockTable(sessionID)
	if err != nil {
		return nil, err
	}
	defer t.mu.Unlock()

	view, err := t.round.CurrentView()
	if err != nil {
		return nil, err
	}

	balance, err := e.wallet.GetBalance(ctx, t.playerID)
	if err != nil {
		return nil, err
	}
	return &BlackjackResult{RoundID: t.roundID, View: view, Balance: balance.Credits}, nil
}

// resolveTable settles a round that just reached its resolution, looking
// the session back up for totals bookkeeping. Called with t.mu held.
func (e *Engine) resolveTable(ctx context.Context, t *table) (*BlackjackResult, error) {
	session, err := e.GetSession(ctx, t.sessionID)
	if err != nil {
		return nil, err
	}
	t.closed = true
	e.takeTable(t.sessionID)
	return e.settleTable(ctx, session, t)
}

// settleTable credits the payout and completes the round record. The
// resolution is already final; nothing here changes the outcome.
func (e *Engine) settleTable(ctx context.Context, session *domain.GameSession, t *table) (*BlackjackResult, error) {
	res := t.round.Resolution()

	if res.Payout > 0 {
		if _, err := e.wallet.CreditWin(ctx, t.playerID, res.Payout, t.gameID, t.roundID); err != nil {
			return nil, err
		}
	}

	round, err := e.finishRound(ctx, session, t.roundID, domain.GameBlackjack, t.wagered, res.Payout, res.Outcome, res)
	if err != nil {
		return nil, err
	}

	return &BlackjackResult{
		RoundID:    t.roundID,
		Resolution: res,
		Round:      round,
		Balance:    round.BalanceAfter,
	}, nil
}
