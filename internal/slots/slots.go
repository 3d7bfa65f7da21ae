// Package slots implements a grid slot machine with line and scatter wins.
//
// A spin draws a 4x5 grid of symbols, each cell uniform and independent.
// Payouts are computed in abstract units and scaled by the bet relative to
// the base unit, so the same grid pays proportionally at every stake. The
// evaluation is a pure function of the grid, which keeps stored rounds
// replayable.
package slots

import (
	"errors"
	"fmt"

	"github.com/YousefHassab/Progettino-Natale/internal/domain"
)

// Grid dimensions. Cells are stored row-major in a flat slice.
const (
	Rows  = 4
	Cols  = 5
	Cells = Rows * Cols
)

// BaseBet is the stake at which unit payouts apply verbatim. Payout scales
// linearly: units * bet / BaseBet, multiplied before dividing so fractional
// unit sums do not round to zero.
const BaseBet domain.Credits = 20

// Symbol is one reel face.
type Symbol string

const (
	Cherry Symbol = "cherry"
	Lemon  Symbol = "lemon"
	Orange Symbol = "orange"
	Star   Symbol = "star"
	Bell   Symbol = "bell"
	Seven  Symbol = "seven"
)

// Symbols is the full reel strip, each equally likely per cell.
var Symbols = []Symbol{Cherry, Lemon, Orange, Star, Bell, Seven}

// lineUnits is the three-of-a-kind unit payout per symbol.
var lineUnits = map[Symbol]int64{
	Seven:  50,
	Star:   25,
	Bell:   5,
	Cherry: 5,
	Lemon:  5,
	Orange: 5,
}

// pairUnits is the consolation payout when exactly two of the three
// payline cells match.
const pairUnits int64 = 1

// scatterValues is the per-symbol base value for scatter wins.
var scatterValues = map[Symbol]int64{
	Seven:  10,
	Star:   5,
	Bell:   3,
	Cherry: 2,
	Lemon:  2,
	Orange: 2,
}

// scatterTiers maps a minimum appearance count to a value multiplier.
// Checked highest first.
var scatterTiers = []struct {
	count      int
	multiplier int64
}{
	{12, 5},
	{10, 2},
	{8, 1},
}

var (
	// ErrInvalidBet is returned for a non-positive bet.
	ErrInvalidBet = errors.New("bet must be positive")
	// ErrInvalidGrid is returned by Evaluate for a grid of the wrong
	// shape or with unknown symbols.
	ErrInvalidGrid = errors.New("invalid slot grid")
)

// Grid is a full spin outcome, row-major.
type Grid []Symbol

// Row returns row r as a slice view into the grid.
func (g Grid) Row(r int) []Symbol {
	return g[r*Cols : (r+1)*Cols]
}

// Win is one evaluated win, either a payline or a scatter.
type Win struct {
	Kind   string         `json:"kind"` // "line" or "scatter"
	Row    int            `json:"row,omitempty"`
	Symbol Symbol         `json:"symbol"`
	Count  int            `json:"count,omitempty"` // scatter appearance count
	Units  int64          `json:"units"`
	Payout domain.Credits `json:"payout"`
}

// Result is the evaluated outcome of a spin.
type Result struct {
	Grid        Grid           `json:"grid"`
	Bet         domain.Credits `json:"bet"`
	TotalUnits  int64          `json:"total_units"`
	TotalPayout domain.Credits `json:"total_payout"`
	Wins        []Win          `json:"wins,omitempty"`
	Description string         `json:"description"`
}

// Outcome classifies the spin for ledger and history purposes.
func (r *Result) Outcome() domain.Outcome {
	switch {
	case r.TotalPayout > r.Bet:
		return domain.OutcomeWin
	case r.TotalPayout == 0:
		return domain.OutcomeLoss
	case r.TotalPayout < r.Bet:
		return domain.OutcomeLoss
	default:
		return domain.OutcomeDraw
	}
}

// IntSource yields uniform random integers in [0, max).
type IntSource interface {
	GenerateInt(max int64) (int64, error)
}

// Spin draws a fresh grid and evaluates it against the bet. The bet must
// already be debited by the caller.
func Spin(src IntSource, bet domain.Credits) (*Result, error) {
	if bet <= 0 {
		return nil, ErrInvalidBet
	}

	grid := make(Grid, Cells)
	for i := range grid {
		n, err := src.GenerateInt(int64(len(Symbols)))
		if err != nil {
			return nil, fmt.Errorf("drawing cell %d: %w", i, err)
		}
		grid[i] = Symbols[n]
	}
	return Evaluate(grid, bet)
}

// Evaluate settles a known grid against a bet. Deterministic, so stored
// rounds can be replayed for verification.
func Evaluate(grid Grid, bet domain.Credits) (*Result, error) {
	if bet <= 0 {
		return nil, ErrInvalidBet
	}
	if len(grid) != Cells {
		return nil, fmt.Errorf("%w: %d cells, want %d", ErrInvalidGrid, len(grid), Cells)
	}
	for i, s := range grid {
		if _, ok := lineUnits[s]; !ok {
			return nil, fmt.Errorf("%w: unknown symbol %q at cell %d", ErrInvalidGrid, s, i)
		}
	}

	result := &Result{
		Grid: append(Grid(nil), grid...),
		Bet:  bet,
	}

	// TotalPayout is the sum of the per-win payouts, each scaled and
	// truncated on its own, so the stored wins always add up to the
	// amount credited.
	for r := 0; r < Rows; r++ {
		if win, ok := lineWin(r, grid.Row(r)); ok {
			win.Payout = scale(win.Units, bet)
			result.Wins = append(result.Wins, win)
			result.TotalUnits += win.Units
			result.TotalPayout += win.Payout
		}
	}
	for _, win := range scatterWins(grid) {
		win.Payout = scale(win.Units, bet)
		result.Wins = append(result.Wins, win)
		result.TotalUnits += win.Units
		result.TotalPayout += win.Payout
	}
	result.Description = describe(result)
	return result, nil
}

// scale converts units to credits at the given stake, multiplying before
// dividing.
func scale(units int64, bet domain.Credits) domain.Credits {
	return domain.Credits(units) * bet / BaseBet
}

// lineWin evaluates the payline of one row: the first three cells.
func lineWin(row int, cells []Symbol) (Win, bool) {
	a, b, c := cells[0], cells[1], cells[2]

	if a == b && b == c {
		return Win{Kind: "line", Row: row, Symbol: a, Units: lineUnits[a]}, true
	}

	// Exactly two of the three match, in any positions.
	switch {
	case a == b:
		return Win{Kind: "line", Row: row, Symbol: a, Units: pairUnits}, true
	case a == c:
		return Win{Kind: "line", Row: row, Symbol: a, Units: pairUnits}, true
	case b == c:
		return Win{Kind: "line", Row: row, Symbol: b, Units: pairUnits}, true
	}
	return Win{}, false
}

// scatterWins counts every symbol across the whole grid and pays the ones
// clearing a tier threshold. Iterated over the canonical symbol order so
// results are stable.
func scatterWins(grid Grid) []Win {
	counts := make(map[Symbol]int, len(Symbols))
	for _, s := range grid {
		counts[s]++
	}

	var wins []Win
	for _, s := range Symbols {
		count := counts[s]
		for _, tier := range scatterTiers {
			if count >= tier.count {
				wins = append(wins, Win{
					Kind:   "scatter",
					Symbol: s,
					Count:  count,
					Units:  scatterValues[s] * tier.multiplier,
				})
				break
			}
		}
	}
	return wins
}

func describe(r *Result) string {
	if r.TotalPayout == 0 {
		return "no win"
	}
	return fmt.Sprintf("%d win(s) for %d credits", len(r.Wins), r.TotalPayout)
}
