// Package roulette implements a single-zero European roulette wheel.
//
// Bets form a closed set built through constructors, so an invalid bet kind
// or target cannot be represented. Evaluation is a pure function of the
// landed pocket and the bet slip, which lets a stored round be replayed and
// re-verified from its persisted details.
package roulette

import (
	"errors"
	"fmt"

	"github.com/YousefHassab/Progettino-Natale/internal/domain"
)

// Pockets is the number of pockets on the wheel, 0 through 36.
const Pockets = 37

// Color of a pocket. Zero is the only green pocket.
type Color string

const (
	Red   Color = "red"
	Black Color = "black"
	Green Color = "green"
)

// redPockets is the standard European layout. Color does not follow parity.
var redPockets = map[int]bool{
	1: true, 3: true, 5: true, 7: true, 9: true, 12: true,
	14: true, 16: true, 18: true, 19: true, 21: true, 23: true,
	25: true, 27: true, 30: true, 32: true, 34: true, 36: true,
}

// PocketColor returns the color of a pocket.
func PocketColor(n int) Color {
	switch {
	case n == 0:
		return Green
	case redPockets[n]:
		return Red
	default:
		return Black
	}
}

// BetKind identifies the wager type.
type BetKind string

const (
	KindStraight BetKind = "straight"
	KindColor    BetKind = "color"
	KindParity   BetKind = "parity"
	KindHalf     BetKind = "half"
	KindDozen    BetKind = "dozen"
)

// Parity for even/odd bets. Zero is neither even nor odd.
type Parity string

const (
	Even Parity = "even"
	Odd  Parity = "odd"
)

// Half of the board for low/high bets. Zero belongs to neither half.
type Half string

const (
	Low  Half = "low"  // 1-18
	High Half = "high" // 19-36
)

// Payout multipliers applied to the bet amount on a win, stake included.
const (
	multiplierStraight = 36
	multiplierEvenOdds = 2 // color, parity, half
	multiplierDozen    = 3
)

var (
	// ErrInvalidBet is returned by the constructors for out-of-range
	// targets or non-positive amounts.
	ErrInvalidBet = errors.New("invalid roulette bet")
	// ErrNoBets is returned when evaluating an empty slip.
	ErrNoBets = errors.New("no bets placed")
)

// Bet is a single wager. Construct with the kind-specific constructors;
// the zero value is not a valid bet.
type Bet struct {
	Kind   BetKind        `json:"kind"`
	Amount domain.Credits `json:"amount"`

	// Exactly one of the following is meaningful, per Kind.
	Number int    `json:"number,omitempty"`
	Color  Color  `json:"color,omitempty"`
	Parity Parity `json:"parity,omitempty"`
	Half   Half   `json:"half,omitempty"`
	Dozen  int    `json:"dozen,omitempty"` // 1, 2 or 3
}

// Straight bets on a single pocket, zero included. Pays 36x.
func Straight(number int, amount domain.Credits) (Bet, error) {
	if number < 0 || number >= Pockets {
		return Bet{}, fmt.Errorf("%w: pocket %d out of range", ErrInvalidBet, number)
	}
	if amount <= 0 {
		return Bet{}, fmt.Errorf("%w: non-positive amount", ErrInvalidBet)
	}
	return Bet{Kind: KindStraight, Number: number, Amount: amount}, nil
}

// OnColor bets on red or black. Pays 2x; zero loses.
func OnColor(color Color, amount domain.Credits) (Bet, error) {
	if color != Red && color != Black {
		return Bet{}, fmt.Errorf("%w: color %q not playable", ErrInvalidBet, color)
	}
	if amount <= 0 {
		return Bet{}, fmt.Errorf("%w: non-positive amount", ErrInvalidBet)
	}
	return Bet{Kind: KindColor, Color: color, Amount: amount}, nil
}

// OnParity bets on even or odd. Pays 2x; zero loses.
func OnParity(parity Parity, amount domain.Credits) (Bet, error) {
	if parity != Even && parity != Odd {
		return Bet{}, fmt.Errorf("%w: parity %q", ErrInvalidBet, parity)
	}
	if amount <= 0 {
		return Bet{}, fmt.Errorf("%w: non-positive amount", ErrInvalidBet)
	}
	return Bet{Kind: KindParity, Parity: parity, Amount: amount}, nil
}

// OnHalf bets on low (1-18) or high (19-36). Pays 2x; zero loses.
func OnHalf(half Half, amount domain.Credits) (Bet, error) {
	if half != Low && half != High {
		return Bet{}, fmt.Errorf("%w: half %q", ErrInvalidBet, half)
	}
	if amount <= 0 {
		return Bet{}, fmt.Errorf("%w: non-positive amount", ErrInvalidBet)
	}
	return Bet{Kind: KindHalf, Half: half, Amount: amount}, nil
}

// OnDozen bets on dozen 1 (1-12), 2 (13-24) or 3 (25-36). Pays 3x; zero
// loses.
func OnDozen(dozen int, amount domain.Credits) (Bet, error) {
	if dozen < 1 || dozen > 3 {
		return Bet{}, fmt.Errorf("%w: dozen %d", ErrInvalidBet, dozen)
	}
	if amount <= 0 {
		return Bet{}, fmt.Errorf("%w: non-positive amount", ErrInvalidBet)
	}
	return Bet{Kind: KindDozen, Dozen: dozen, Amount: amount}, nil
}

// Validate checks a bet that did not come through a constructor, such as
// one decoded from a request body.
func (b Bet) Validate() error {
	var err error
	switch b.Kind {
	case KindStraight:
		_, err = Straight(b.Number, b.Amount)
	case KindColor:
		_, err = OnColor(b.Color, b.Amount)
	case KindParity:
		_, err = OnParity(b.Parity, b.Amount)
	case KindHalf:
		_, err = OnHalf(b.Half, b.Amount)
	case KindDozen:
		_, err = OnDozen(b.Dozen, b.Amount)
	default:
		err = fmt.Errorf("%w: unknown kind %q", ErrInvalidBet, b.Kind)
	}
	return err
}

// wins reports whether the bet covers the landed pocket.
func (b Bet) wins(n int) bool {
	switch b.Kind {
	case KindStraight:
		return n == b.Number
	case KindColor:
		return PocketColor(n) == b.Color
	case KindParity:
		if n == 0 {
			return false
		}
		if b.Parity == Even {
			return n%2 == 0
		}
		return n%2 == 1
	case KindHalf:
		switch b.Half {
		case Low:
			return n >= 1 && n <= 18
		case High:
			return n >= 19 && n <= 36
		}
	case KindDozen:
		return n >= (b.Dozen-1)*12+1 && n <= b.Dozen*12
	}
	return false
}

// payout returns the amount returned for this bet given the landed pocket,
// zero when the bet loses.
func (b Bet) payout(n int) domain.Credits {
	if !b.wins(n) {
		return 0
	}
	switch b.Kind {
	case KindStraight:
		return b.Amount * multiplierStraight
	case KindDozen:
		return b.Amount * multiplierDozen
	default:
		return b.Amount * multiplierEvenOdds
	}
}

// BetResult pairs a bet with its individual payout.
type BetResult struct {
	Bet    Bet            `json:"bet"`
	Payout domain.Credits `json:"payout"`
}

// Result is the full outcome of a spin over a bet slip.
type Result struct {
	Number      int            `json:"number"`
	Color       Color          `json:"color"`
	TotalWager  domain.Credits `json:"total_wager"`
	TotalPayout domain.Credits `json:"total_payout"`
	Bets        []BetResult    `json:"bets"`
}

// Outcome classifies the spin for ledger and history purposes.
func (r *Result) Outcome() domain.Outcome {
	switch {
	case r.TotalPayout > r.TotalWager:
		return domain.OutcomeWin
	case r.TotalPayout < r.TotalWager:
		return domain.OutcomeLoss
	default:
		return domain.OutcomeDraw
	}
}

// IntSource yields uniform random integers in [min, max].
type IntSource interface {
	GenerateIntRange(min, max int64) (int64, error)
}

// TotalWager sums the bet amounts on a slip.
func TotalWager(bets []Bet) domain.Credits {
	var total domain.Credits
	for _, b := range bets {
		total += b.Amount
	}
	return total
}

// Spin lands a pocket from the random source and evaluates the slip. The
// slip must already be debited in full by the caller.
func Spin(src IntSource, bets []Bet) (*Result, error) {
	if len(bets) == 0 {
		return nil, ErrNoBets
	}
	n, err := src.GenerateIntRange(0, Pockets-1)
	if err != nil {
		return nil, fmt.Errorf("landing pocket: %w", err)
	}
	return Evaluate(int(n), bets)
}

// Evaluate settles a slip against a known pocket. Deterministic, so stored
// rounds can be replayed for verification.
func Evaluate(number int, bets []Bet) (*Result, error) {
	if number < 0 || number >= Pockets {
		return nil, fmt.Errorf("%w: pocket %d out of range", ErrInvalidBet, number)
	}
	if len(bets) == 0 {
		return nil, ErrNoBets
	}

	result := &Result{
		Number: number,
		Color:  PocketColor(number),
		Bets:   make([]BetResult, 0, len(bets)),
	}
	for _, b := range bets {
		p := b.payout(number)
		result.TotalWager += b.Amount
		result.TotalPayout += p
		result.Bets = append(result.Bets, BetResult{Bet: b, Payout: p})
	}
	return result, nil
}
