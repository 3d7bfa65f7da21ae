package slots

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/YousefHassab/Progettino-Natale/internal/domain"
	"github.com/YousefHassab/Progettino-Natale/internal/rng"
)

// noWinRows is a grid with every payline distinct and every symbol count
// below the scatter threshold.
func noWinGrid() Grid {
	return Grid{
		Cherry, Lemon, Orange, Star, Bell,
		Lemon, Orange, Star, Bell, Cherry,
		Orange, Star, Bell, Cherry, Lemon,
		Star, Bell, Cherry, Lemon, Orange,
	}
}

func TestEvaluateNoWin(t *testing.T) {
	result, err := Evaluate(noWinGrid(), 20)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if result.TotalPayout != 0 {
		t.Errorf("Expected zero payout, got %d", result.TotalPayout)
	}
	if len(result.Wins) != 0 {
		t.Errorf("Expected no wins, got %d", len(result.Wins))
	}
	if result.Description != "no win" {
		t.Errorf("Expected description %q, got %q", "no win", result.Description)
	}
	if result.Outcome() != domain.OutcomeLoss {
		t.Errorf("Expected loss outcome, got %s", result.Outcome())
	}
}

func TestEvaluateLineWins(t *testing.T) {
	tests := []struct {
		name   string
		line   [5]Symbol
		units  int64
		payout domain.Credits // at BaseBet
	}{
		{"ThreeSevens", [5]Symbol{Seven, Seven, Seven, Cherry, Lemon}, 50, 50},
		{"ThreeStars", [5]Symbol{Star, Star, Star, Cherry, Lemon}, 25, 25},
		{"ThreeBells", [5]Symbol{Bell, Bell, Bell, Cherry, Lemon}, 5, 5},
		{"ThreeCherries", [5]Symbol{Cherry, Cherry, Cherry, Star, Lemon}, 5, 5},
		{"PairFirstTwo", [5]Symbol{Seven, Seven, Lemon, Cherry, Star}, 1, 1},
		{"PairOuter", [5]Symbol{Seven, Lemon, Seven, Cherry, Star}, 1, 1},
		{"PairLastTwo", [5]Symbol{Lemon, Seven, Seven, Cherry, Star}, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grid := noWinGrid()
			copy(grid[0:5], tt.line[:])

			result, err := Evaluate(grid, BaseBet)
			if err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}
			if len(result.Wins) != 1 {
				t.Fatalf("Expected one win, got %d: %+v", len(result.Wins), result.Wins)
			}
			win := result.Wins[0]
			if win.Kind != "line" || win.Row != 0 {
				t.Errorf("Expected line win on row 0, got %+v", win)
			}
			if win.Units != tt.units {
				t.Errorf("Units = %d, want %d", win.Units, tt.units)
			}
			if result.TotalPayout != tt.payout {
				t.Errorf("Payout = %d, want %d", result.TotalPayout, tt.payout)
			}
		})
	}
}

func TestEvaluateTrailingCellsIgnored(t *testing.T) {
	// Only the first three cells of a row form the payline.
	grid := noWinGrid()
	copy(grid[0:5], []Symbol{Cherry, Lemon, Orange, Seven, Seven})

	result, err := Evaluate(grid, 20)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if result.TotalPayout != 0 {
		t.Errorf("Expected trailing pair to pay nothing, got %d", result.TotalPayout)
	}
}

func TestEvaluateScatter(t *testing.T) {
	t.Run("EightStars", func(t *testing.T) {
		grid := Grid{
			Star, Cherry, Lemon, Star, Star,
			Star, Lemon, Orange, Star, Star,
			Star, Orange, Bell, Star, Cherry,
			Cherry, Bell, Orange, Lemon, Bell,
		}

		result, err := Evaluate(grid, 20)
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if len(result.Wins) != 1 {
			t.Fatalf("Expected one scatter win, got %+v", result.Wins)
		}
		win := result.Wins[0]
		if win.Kind != "scatter" || win.Symbol != Star || win.Count != 8 {
			t.Errorf("Expected 8-star scatter, got %+v", win)
		}
		if win.Units != 5 {
			t.Errorf("Expected 5 units at the base tier, got %d", win.Units)
		}
		if result.TotalPayout != 5 {
			t.Errorf("Payout = %d, want 5", result.TotalPayout)
		}
	})

	t.Run("TenBellsMidTier", func(t *testing.T) {
		grid := Grid{
			Bell, Cherry, Lemon, Bell, Bell,
			Bell, Lemon, Orange, Bell, Bell,
			Bell, Orange, Cherry, Bell, Bell,
			Cherry, Lemon, Orange, Bell, Cherry,
		}

		result, err := Evaluate(grid, 20)
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if len(result.Wins) != 1 {
			t.Fatalf("Expected one scatter win, got %+v", result.Wins)
		}
		win := result.Wins[0]
		if win.Count != 10 || win.Units != 6 {
			t.Errorf("Expected 10 bells at 2x value for 6 units, got %+v", win)
		}
	})

	t.Run("FullGridOfSevens", func(t *testing.T) {
		grid := make(Grid, Cells)
		for i := range grid {
			grid[i] = Seven
		}

		result, err := Evaluate(grid, BaseBet)
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		// Four seven lines at 50 units plus a top-tier scatter at 50.
		if result.TotalUnits != 250 {
			t.Errorf("TotalUnits = %d, want 250", result.TotalUnits)
		}
		if result.TotalPayout != 250 {
			t.Errorf("Payout = %d, want 250", result.TotalPayout)
		}
		if len(result.Wins) != 5 {
			t.Errorf("Expected 4 line wins and 1 scatter, got %d", len(result.Wins))
		}
	})
}

func TestEvaluateScalesWithBet(t *testing.T) {
	grid := noWinGrid()
	copy(grid[0:5], []Symbol{Seven, Seven, Seven, Cherry, Lemon})

	t.Run("DoubleBaseBet", func(t *testing.T) {
		result, err := Evaluate(grid, 40)
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if result.TotalPayout != 100 {
			t.Errorf("Payout at bet 40 = %d, want 100", result.TotalPayout)
		}
	})

	t.Run("FractionalUnitsTruncate", func(t *testing.T) {
		pairGrid := noWinGrid()
		copy(pairGrid[0:5], []Symbol{Seven, Seven, Lemon, Cherry, Star})

		result, err := Evaluate(pairGrid, 10)
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		// 1 unit at half the base bet truncates to zero credits.
		if result.TotalPayout != 0 {
			t.Errorf("Payout = %d, want 0", result.TotalPayout)
		}
	})
}

func TestEvaluatePayoutMatchesWins(t *testing.T) {
	// Two pair wins of one unit each. Below the base bet every pair
	// truncates to zero on its own, so the total must be zero as well
	// rather than the truncation of the combined units.
	grid := Grid{
		Seven, Seven, Lemon, Cherry, Star,
		Bell, Bell, Orange, Cherry, Lemon,
		Orange, Star, Bell, Cherry, Lemon,
		Star, Bell, Cherry, Lemon, Orange,
	}

	for _, bet := range []domain.Credits{10, 20, 30, 50} {
		result, err := Evaluate(grid, bet)
		if err != nil {
			t.Fatalf("Evaluate at bet %d failed: %v", bet, err)
		}
		if len(result.Wins) != 2 {
			t.Fatalf("Expected 2 pair wins at bet %d, got %d", bet, len(result.Wins))
		}
		var sum domain.Credits
		for _, win := range result.Wins {
			sum += win.Payout
		}
		if sum != result.TotalPayout {
			t.Errorf("At bet %d wins sum to %d but TotalPayout = %d", bet, sum, result.TotalPayout)
		}
	}
}

func TestEvaluateRejectsBadInput(t *testing.T) {
	if _, err := Evaluate(noWinGrid(), 0); !errors.Is(err, ErrInvalidBet) {
		t.Errorf("Expected ErrInvalidBet, got %v", err)
	}
	if _, err := Evaluate(Grid{Cherry, Lemon}, 20); !errors.Is(err, ErrInvalidGrid) {
		t.Errorf("Expected ErrInvalidGrid for short grid, got %v", err)
	}

	bad := noWinGrid()
	bad[7] = Symbol("diamond")
	if _, err := Evaluate(bad, 20); !errors.Is(err, ErrInvalidGrid) {
		t.Errorf("Expected ErrInvalidGrid for unknown symbol, got %v", err)
	}
}

func TestSpinProducesValidGrids(t *testing.T) {
	src := rng.New()
	for i := 0; i < 100; i++ {
		result, err := Spin(src, 20)
		if err != nil {
			t.Fatalf("Spin failed: %v", err)
		}
		if len(result.Grid) != Cells {
			t.Fatalf("Grid has %d cells, want %d", len(result.Grid), Cells)
		}
		for _, s := range result.Grid {
			if _, ok := lineUnits[s]; !ok {
				t.Fatalf("Spin produced unknown symbol %q", s)
			}
		}
	}
}

func TestSpinDeterministicWithSeededEntropy(t *testing.T) {
	seed := bytes.Repeat([]byte{0xd4, 0x31, 0x88, 0x0b}, 128)

	first, err := Spin(rng.NewWithEntropy(bytes.NewReader(seed)), 20)
	if err != nil {
		t.Fatalf("First spin failed: %v", err)
	}
	second, err := Spin(rng.NewWithEntropy(bytes.NewReader(seed)), 20)
	if err != nil {
		t.Fatalf("Second spin failed: %v", err)
	}

	if !reflect.DeepEqual(first.Grid, second.Grid) {
		t.Errorf("Identical entropy produced different grids")
	}
	if first.TotalPayout != second.TotalPayout {
		t.Errorf("Identical grids paid differently: %d vs %d", first.TotalPayout, second.TotalPayout)
	}
}

func TestSpinRejectsNonPositiveBet(t *testing.T) {
	if _, err := Spin(rng.New(), 0); !errors.Is(err, ErrInvalidBet) {
		t.Errorf("Expected ErrInvalidBet, got %v", err)
	}
}
