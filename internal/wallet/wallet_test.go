package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/YousefHassab/Progettino-Natale/internal/audit"
	"github.com/YousefHassab/Progettino-Natale/internal/database"
	"github.com/google/uuid"
)

func setupTestWallet(t *testing.T) (*Service, string, func()) {
	t.Helper()

	db, err := database.New("postgres", "host=localhost dbname=casino sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}

	// Ensure schema exists (idempotent)
	if err := db.Migrate(); err != nil {
		t.Logf("Migration note: %v", err)
	}

	if err := db.CleanData(); err != nil {
		t.Fatalf("Failed to clean data: %v", err)
	}

	auditSvc := audit.New(db.DB)
	svc := New(db.DB, auditSvc)

	playerID := uuid.New().String()
	_, err = db.DB.Exec(`
		INSERT INTO players (id, username, email, password_hash, status, registered_at, created_at, updated_at)
		VALUES ($1, 'testplayer', 'test@example.com', 'hash', 'active', NOW(), NOW(), NOW())
	`, playerID)
	if err != nil {
		t.Fatalf("Failed to create test player: %v", err)
	}

	_, err = db.DB.Exec(`
		INSERT INTO balances (player_id, credits, updated_at) VALUES ($1, 0, NOW())
	`, playerID)
	if err != nil {
		t.Fatalf("Failed to create balance: %v", err)
	}

	return svc, playerID, func() {
		db.CleanData()
		db.Close()
	}
}

func TestGetBalance(t *testing.T) {
	svc, playerID, cleanup := setupTestWallet(t)
	defer cleanup()

	ctx := context.Background()

	t.Run("InitialBalance", func(t *testing.T) {
		balance, err := svc.GetBalance(ctx, playerID)
		if err != nil {
			t.Fatalf("Failed to get balance: %v", err)
		}
		if balance.Credits != 0 {
			t.Errorf("Expected initial balance 0, got %d", balance.Credits)
		}
	})

	t.Run("UnknownPlayer", func(t *testing.T) {
		_, err := svc.GetBalance(ctx, uuid.New().String())
		if !errors.Is(err, ErrPlayerNotFound) {
			t.Errorf("Expected ErrPlayerNotFound, got %v", err)
		}
	})
}

func TestDeposit(t *testing.T) {
	svc, playerID, cleanup := setupTestWallet(t)
	defer cleanup()

	ctx := context.Background()

	t.Run("SuccessfulDeposit", func(t *testing.T) {
		result, err := svc.Deposit(ctx, playerID, 1000, "test-deposit")
		if err != nil {
			t.Fatalf("Deposit failed: %v", err)
		}
		if result.BalanceAfter != 1000 {
			t.Errorf("Expected balance 1000, got %d", result.BalanceAfter)
		}
		if result.ID == "" {
			t.Error("Expected transaction ID")
		}
	})

	t.Run("MultipleDeposits", func(t *testing.T) {
		svc.Deposit(ctx, playerID, 500, "deposit-2")
		result, _ := svc.Deposit(ctx, playerID, 250, "deposit-3")

		if result.BalanceAfter != 1750 {
			t.Errorf("Expected balance 1750, got %d", result.BalanceAfter)
		}
	})

	t.Run("ZeroAmount", func(t *testing.T) {
		_, err := svc.Deposit(ctx, playerID, 0, "zero")
		if !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("Expected ErrInvalidAmount, got %v", err)
		}
	})

	t.Run("NegativeAmount", func(t *testing.T) {
		_, err := svc.Deposit(ctx, playerID, -500, "negative")
		if !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("Expected ErrInvalidAmount, got %v", err)
		}
	})

	t.Run("InvalidPlayer", func(t *testing.T) {
		_, err := svc.Deposit(ctx, uuid.New().String(), 1000, "invalid")
		if err == nil {
			t.Error("Expected error for invalid player")
		}
	})
}

func TestWithdraw(t *testing.T) {
	svc, playerID, cleanup := setupTestWallet(t)
	defer cleanup()

	ctx := context.Background()

	svc.Deposit(ctx, playerID, 1000, "initial")

	t.Run("SuccessfulWithdrawal", func(t *testing.T) {
		result, err := svc.Withdraw(ctx, playerID, 300, "withdraw-1")
		if err != nil {
			t.Fatalf("Withdrawal failed: %v", err)
		}
		if result.BalanceAfter != 700 {
			t.Errorf("Expected balance 700, got %d", result.BalanceAfter)
		}
	})

	t.Run("InsufficientFunds", func(t *testing.T) {
		_, err := svc.Withdraw(ctx, playerID, 10000, "too-much")
		if !errors.Is(err, ErrInsufficientFunds) {
			t.Errorf("Expected ErrInsufficientFunds, got %v", err)
		}
	})

	t.Run("ExactBalance", func(t *testing.T) {
		balance, _ := svc.GetBalance(ctx, playerID)
		result, err := svc.Withdraw(ctx, playerID, balance.Credits, "exact")
		if err != nil {
			t.Fatalf("Should allow withdrawing exact balance: %v", err)
		}
		if result.BalanceAfter != 0 {
			t.Errorf("Expected 0 balance after exact withdrawal, got %d", result.BalanceAfter)
		}
	})
}

func TestPlaceWager(t *testing.T) {
	svc, playerID, cleanup := setupTestWallet(t)
	defer cleanup()

	ctx := context.Background()

	svc.Deposit(ctx, playerID, 1000, "initial")

	t.Run("SuccessfulWager", func(t *testing.T) {
		result, err := svc.PlaceWager(ctx, playerID, 100, "grand-slots", uuid.New().String())
		if err != nil {
			t.Fatalf("Wager failed: %v", err)
		}
		if result.BalanceAfter != 900 {
			t.Errorf("Expected balance 900, got %d", result.BalanceAfter)
		}
	})

	t.Run("InsufficientFunds", func(t *testing.T) {
		_, err := svc.PlaceWager(ctx, playerID, 10000, "grand-slots", uuid.New().String())
		if !errors.Is(err, ErrInsufficientFunds) {
			t.Errorf("Expected ErrInsufficientFunds, got %v", err)
		}
	})

	t.Run("DuplicateRoundIsNoOp", func(t *testing.T) {
		roundID := uuid.New().String()

		first, err := svc.PlaceWager(ctx, playerID, 100, "grand-slots", roundID)
		if err != nil {
			t.Fatalf("Wager failed: %v", err)
		}
		second, err := svc.PlaceWager(ctx, playerID, 100, "grand-slots", roundID)
		if err != nil {
			t.Fatalf("Replayed wager failed: %v", err)
		}

		if second.ID != first.ID {
			t.Errorf("Expected replay to return the original transaction")
		}

		balance, _ := svc.GetBalance(ctx, playerID)
		if balance.Credits != first.BalanceAfter {
			t.Errorf("Replayed wager moved the balance: %d vs %d", balance.Credits, first.BalanceAfter)
		}
	})
}

func TestCreditWin(t *testing.T) {
	svc, playerID, cleanup := setupTestWallet(t)
	defer cleanup()

	ctx := context.Background()

	roundID := uuid.New().String()
	svc.Deposit(ctx, playerID, 1000, "initial")
	svc.PlaceWager(ctx, playerID, 100, "euro-roulette", roundID)

	t.Run("SuccessfulWin", func(t *testing.T) {
		result, err := svc.CreditWin(ctx, playerID, 500, "euro-roulette", roundID)
		if err != nil {
			t.Fatalf("Win credit failed: %v", err)
		}
		// 1000 - 100 + 500 = 1400
		if result.BalanceAfter != 1400 {
			t.Errorf("Expected balance 1400, got %d", result.BalanceAfter)
		}
	})

	t.Run("DuplicateWinIsNoOp", func(t *testing.T) {
		result, err := svc.CreditWin(ctx, playerID, 500, "euro-roulette", roundID)
		if err != nil {
			t.Fatalf("Replayed win failed: %v", err)
		}
		if result.BalanceAfter != 1400 {
			t.Errorf("Replayed win moved the balance, got %d", result.BalanceAfter)
		}

		balance, _ := svc.GetBalance(ctx, playerID)
		if balance.Credits != 1400 {
			t.Errorf("Expected balance 1400 after replay, got %d", balance.Credits)
		}
	})

	t.Run("ZeroWinRecordsNothing", func(t *testing.T) {
		result, err := svc.CreditWin(ctx, playerID, 0, "euro-roulette", uuid.New().String())
		if err != nil {
			t.Fatalf("Zero win should not error: %v", err)
		}
		if result != nil {
			t.Error("Expected no transaction for zero win")
		}
	})

	t.Run("NegativeWinRejected", func(t *testing.T) {
		_, err := svc.CreditWin(ctx, playerID, -50, "euro-roulette", uuid.New().String())
		if !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("Expected ErrInvalidAmount, got %v", err)
		}
	})
}

func TestRefund(t *testing.T) {
	svc, playerID, cleanup := setupTestWallet(t)
	defer cleanup()

	ctx := context.Background()

	roundID := uuid.New().String()
	svc.Deposit(ctx, playerID, 1000, "initial")
	svc.PlaceWager(ctx, playerID, 200, "classic-blackjack", roundID)

	t.Run("RefundRestoresWager", func(t *testing.T) {
		result, err := svc.Refund(ctx, playerID, 200, "classic-blackjack", roundID)
		if err != nil {
			t.Fatalf("Refund failed: %v", err)
		}
		if result.BalanceAfter != 1000 {
			t.Errorf("Expected balance restored to 1000, got %d", result.BalanceAfter)
		}
	})

	t.Run("DuplicateRefundIsNoOp", func(t *testing.T) {
		_, err := svc.Refund(ctx, playerID, 200, "classic-blackjack", roundID)
		if err != nil {
			t.Fatalf("Replayed refund failed: %v", err)
		}

		balance, _ := svc.GetBalance(ctx, playerID)
		if balance.Credits != 1000 {
			t.Errorf("Replayed refund moved the balance, got %d", balance.Credits)
		}
	})
}

func TestGetTransactions(t *testing.T) {
	svc, playerID, cleanup := setupTestWallet(t)
	defer cleanup()

	ctx := context.Background()

	svc.Deposit(ctx, playerID, 1000, "deposit-1")
	svc.Deposit(ctx, playerID, 500, "deposit-2")
	svc.Withdraw(ctx, playerID, 250, "withdraw-1")

	t.Run("GetAllTransactions", func(t *testing.T) {
		txs, err := svc.GetTransactions(ctx, playerID, 100)
		if err != nil {
			t.Fatalf("Failed to get transactions: %v", err)
		}
		if len(txs) != 3 {
			t.Errorf("Expected 3 transactions, got %d", len(txs))
		}
	})

	t.Run("LimitedTransactions", func(t *testing.T) {
		txs, err := svc.GetTransactions(ctx, playerID, 2)
		if err != nil {
			t.Fatalf("Failed to get transactions: %v", err)
		}
		if len(txs) != 2 {
			t.Errorf("Expected 2 transactions, got %d", len(txs))
		}
	})
}

func TestSequentialWithdrawals(t *testing.T) {
	svc, playerID, cleanup := setupTestWallet(t)
	defer cleanup()

	ctx := context.Background()

	svc.Deposit(ctx, playerID, 5000, "initial")

	t.Run("MultipleWithdrawals", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			_, err := svc.Withdraw(ctx, playerID, 1000, "withdraw")
			if err != nil {
				t.Fatalf("Withdrawal %d failed: %v", i+1, err)
			}
		}

		balance, err := svc.GetBalance(ctx, playerID)
		if err != nil {
			t.Fatalf("Failed to get balance: %v", err)
		}
		if balance.Credits != 0 {
			t.Errorf("Expected final balance 0, got %d", balance.Credits)
		}

		_, err = svc.Withdraw(ctx, playerID, 1, "overdraft")
		if !errors.Is(err, ErrInsufficientFunds) {
			t.Errorf("Expected ErrInsufficientFunds, got %v", err)
		}
	})
}
