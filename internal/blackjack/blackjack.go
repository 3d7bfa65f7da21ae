// Package blackjack implements a single-player blackjack round against the
// house as an explicit state machine.
//
// The round owns its shoe and hands but never touches balances: the caller
// debits the bet before Deal, debits again before Double, and credits the
// resolution payout afterwards. Outcomes are computed synchronously; any
// card-reveal pacing is presentation the caller layers on top.
package blackjack

import (
	"errors"

	"github.com/YousefHassab/Progettino-Natale/internal/cards"
	"github.com/YousefHassab/Progettino-Natale/internal/domain"
)

// State is the round lifecycle state.
type State string

const (
	StateNotStarted State = "not_started"
	StatePlayerTurn State = "player_turn"
	StateDealerTurn State = "dealer_turn"
	StateResolved   State = "resolved"
)

// DealerStandsAt is the raw total at which the dealer stops drawing. The
// comparison uses the computed hand value directly: a soft 17 stands like a
// hard 17, there is no soft-total special case.
const DealerStandsAt = 17

var (
	// ErrInvalidAction is returned when an action is invoked outside its
	// valid state. The hand is left untouched.
	ErrInvalidAction = errors.New("action not valid in current round state")
	// ErrDoubleAfterHit is returned when Double is attempted after a hit.
	ErrDoubleAfterHit = errors.New("double is only available before the first hit")
	// ErrInvalidBet is returned by Deal for a non-positive bet.
	ErrInvalidBet = errors.New("bet must be positive")
)

// Round is one blackjack round. Not safe for concurrent use; a session has
// exactly one active round at a time.
type Round struct {
	shoe   *cards.Shoe
	bet    domain.Credits
	state  State
	player []cards.Card
	dealer []cards.Card
	hasHit bool

	resolution *Resolution
}

// View is the caller-visible snapshot of an unresolved round. The dealer's
// hole card stays hidden until resolution: DealerCards and DealerTotal cover
// only the up card while the round is live.
type View struct {
	State       State        `json:"state"`
	PlayerCards []cards.Card `json:"player_cards"`
	DealerCards []cards.Card `json:"dealer_cards"`
	PlayerTotal int          `json:"player_total"`
	DealerTotal int          `json:"dealer_total"`
	CanDouble   bool         `json:"can_double"`
}

// Resolution is the immutable outcome of a resolved round. Payout is the
// total returned to the player including the stake: 0 on loss, the bet on a
// draw, 2x on a win, 2.5x on a natural.
type Resolution struct {
	Outcome     domain.Outcome `json:"outcome"`
	Bet         domain.Credits `json:"bet"`
	Payout      domain.Credits `json:"payout"`
	PlayerCards []cards.Card   `json:"player_cards"`
	DealerCards []cards.Card   `json:"dealer_cards"`
	PlayerTotal int            `json:"player_total"`
	DealerTotal int            `json:"dealer_total"`
}

// NewRound creates a round over the given shoe. The bet must already be
// debited by the caller.
func NewRound(shoe *cards.Shoe, bet domain.Credits) *Round {
	return &Round{
		shoe:  shoe,
		bet:   bet,
		state: StateNotStarted,
	}
}

// Bet returns the current bet, doubled after a successful Double.
func (r *Round) Bet() domain.Credits {
	return r.bet
}

// State returns the round state.
func (r *Round) State() State {
	return r.state
}

// Resolution returns the outcome of a resolved round, or nil while the
// round is live.
func (r *Round) Resolution() *Resolution {
	return r.resolution
}

// CanDouble reports whether Double is currently allowed.
func (r *Round) CanDouble() bool {
	return r.state == StatePlayerTurn && !r.hasHit
}

// Deal starts the round: two cards to the player, two to the dealer (the
// second stays hidden). A player natural resolves immediately: 2.5x unless
// the dealer also holds a natural, which pushes at 1x.
func (r *Round) Deal() (*View, error) {
	if r.state != StateNotStarted {
		return nil, ErrInvalidAction
	}
	if r.bet <= 0 {
		return nil, ErrInvalidBet
	}

	for i := 0; i < 2; i++ {
		if err := r.drawTo(&r.player); err != nil {
			return nil, err
		}
		if err := r.drawTo(&r.dealer); err != nil {
			return nil, err
		}
	}

	r.state = StatePlayerTurn

	if cards.IsNatural(r.player) {
		if cards.IsNatural(r.dealer) {
			r.resolve(domain.OutcomeDraw, r.bet)
		} else {
			// Credits are integral, so an odd bet's half-credit of the 3:2
			// bonus truncates in the house's favor.
			r.resolve(domain.OutcomeBlackjack, r.bet*5/2)
		}
	}

	return r.view(), nil
}

// Hit draws one card to the player. Busting resolves the round as a loss.
func (r *Round) Hit() (*View, error) {
	if r.state != StatePlayerTurn {
		return nil, ErrInvalidAction
	}

	r.hasHit = true
	if err := r.drawTo(&r.player); err != nil {
		return nil, err
	}

	if cards.IsBust(r.player) {
		r.resolve(domain.OutcomeLoss, 0)
	}

	return r.view(), nil
}

// Stand ends the player's turn and plays out the dealer: draw while the raw
// total is below DealerStandsAt, then compare totals.
func (r *Round) Stand() (*Resolution, error) {
	if r.state != StatePlayerTurn {
		return nil, ErrInvalidAction
	}

	r.state = StateDealerTurn
	if err := r.playDealer(); err != nil {
		return nil, err
	}
	return r.resolution, nil
}

// Double doubles the bet, draws exactly one card and auto-stands. Only
// available before the first hit; the caller must have debited the second
// stake already.
func (r *Round) Double() (*Resolution, error) {
	if r.state != StatePlayerTurn {
		return nil, ErrInvalidAction
	}
	if r.hasHit {
		return nil, ErrDoubleAfterHit
	}

	r.bet *= 2
	if err := r.drawTo(&r.player); err != nil {
		return nil, err
	}

	if cards.IsBust(r.player) {
		r.resolve(domain.OutcomeLoss, 0)
		return r.resolution, nil
	}

	r.state = StateDealerTurn
	if err := r.playDealer(); err != nil {
		return nil, err
	}
	return r.resolution, nil
}

// playDealer draws dealer cards until the stand threshold, then resolves.
func (r *Round) playDealer() error {
	for cards.Score(r.dealer) < DealerStandsAt {
		if err := r.drawTo(&r.dealer); err != nil {
			return err
		}
	}

	playerTotal := cards.Score(r.player)
	dealerTotal := cards.Score(r.dealer)

	switch {
	case dealerTotal > 21:
		r.resolve(domain.OutcomeWin, r.bet*2)
	case playerTotal > dealerTotal:
		r.resolve(domain.OutcomeWin, r.bet*2)
	case playerTotal < dealerTotal:
		r.resolve(domain.OutcomeLoss, 0)
	default:
		r.resolve(domain.OutcomeDraw, r.bet)
	}
	return nil
}

// CurrentView returns the live snapshot of a started round.
func (r *Round) CurrentView() (*View, error) {
	if r.state == StateNotStarted {
		return nil, ErrInvalidAction
	}
	return r.view(), nil
}

// drawTo draws one card into the given hand. The hand total is always
// recomputed from scratch afterwards, never patched incrementally.
func (r *Round) drawTo(hand *[]cards.Card) error {
	c, err := r.shoe.Draw()
	if err != nil {
		return err
	}
	*hand = append(*hand, c)
	return nil
}

// resolve freezes the round outcome. Called exactly once per round.
func (r *Round) resolve(outcome domain.Outcome, payout domain.Credits) {
	r.state = StateResolved
	r.resolution = &Resolution{
		Outcome:     outcome,
		Bet:         r.bet,
		Payout:      payout,
		PlayerCards: append([]cards.Card(nil), r.player...),
		DealerCards: append([]cards.Card(nil), r.dealer...),
		PlayerTotal: cards.Score(r.player),
		DealerTotal: cards.Score(r.dealer),
	}
}

// view builds the live snapshot, hiding the dealer hole card until the
// round resolves.
func (r *Round) view() *View {
	v := &View{
		State:       r.state,
		PlayerCards: append([]cards.Card(nil), r.player...),
		PlayerTotal: cards.Score(r.player),
		CanDouble:   r.CanDouble(),
	}

	if r.state == StateResolved {
		v.DealerCards = append([]cards.Card(nil), r.dealer...)
	} else if len(r.dealer) > 0 {
		v.DealerCards = []cards.Card{r.dealer[0]}
	}
	v.DealerTotal = cards.Score(v.DealerCards)

	return v
}
