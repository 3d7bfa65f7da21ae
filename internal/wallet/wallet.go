// Package wallet manages player credit balances through an append-only
// transaction ledger.
//
// Game code never touches balances directly: wagers are debited before an
// outcome is generated and wins are credited only after. Wager, win and
// refund transactions carry the round ID as their reference, and a duplicate
// (reference, type) pair is absorbed as a no-op, so a recorded round can be
// replayed without moving the balance twice.
package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/YousefHassab/Progettino-Natale/internal/audit"
	"github.com/YousefHassab/Progettino-Natale/internal/domain"
	"github.com/google/uuid"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrPlayerNotFound    = errors.New("player not found")
)

// Service provides wallet functionality
type Service struct {
	db    *sql.DB
	audit *audit.Service
}

// New creates a new wallet service
func New(db *sql.DB, auditSvc *audit.Service) *Service {
	return &Service{
		db:    db,
		audit: auditSvc,
	}
}

// GetBalance retrieves the current credit balance for a player.
func (s *Service) GetBalance(ctx context.Context, playerID string) (*domain.Balance, error) {
	var credits int64
	var updatedAt time.Time

	err := s.db.QueryRowContext(ctx, `
		SELECT credits, updated_at FROM balances WHERE player_id = $1
	`, playerID).Scan(&credits, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}

	return &domain.Balance{
		PlayerID:  playerID,
		Credits:   domain.Credits(credits),
		UpdatedAt: updatedAt,
	}, nil
}

// Deposit adds credits to a player's balance.
func (s *Service) Deposit(ctx context.Context, playerID string, amount domain.Credits, reference string) (*domain.Transaction, error) {
	tx, err := s.apply(ctx, playerID, domain.TxTypeDeposit, amount, reference, "Deposit")
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, audit.EventDeposit, domain.SeverityInfo,
		fmt.Sprintf("Deposit of %d credits", amount),
		map[string]interface{}{
			"transaction_id": tx.ID,
			"amount":         amount,
		},
		audit.WithPlayer(playerID))

	return tx, nil
}

// Withdraw removes credits from a player's balance. The balance can never
// go negative.
func (s *Service) Withdraw(ctx context.Context, playerID string, amount domain.Credits, reference string) (*domain.Transaction, error) {
	tx, err := s.apply(ctx, playerID, domain.TxTypeWithdrawal, amount, reference, "Withdrawal")
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, audit.EventWithdrawal, domain.SeverityInfo,
		fmt.Sprintf("Withdrawal of %d credits", amount),
		map[string]interface{}{
			"transaction_id": tx.ID,
			"amount":         amount,
		},
		audit.WithPlayer(playerID))

	return tx, nil
}

// PlaceWager debits the wager for a round. Must be called before the
// outcome is generated; roundID becomes the transaction reference.
func (s *Service) PlaceWager(ctx context.Context, playerID string, amount domain.Credits, gameID, roundID string) (*domain.Transaction, error) {
	return s.apply(ctx, playerID, domain.TxTypeWager, amount, roundID,
		fmt.Sprintf("Wager on %s", gameID))
}

// CreditWin credits the payout of a resolved round. A zero payout records
// nothing and returns (nil, nil).
func (s *Service) CreditWin(ctx context.Context, playerID string, amount domain.Credits, gameID, roundID string) (*domain.Transaction, error) {
	if amount < 0 {
		return nil, ErrInvalidAmount
	}
	if amount == 0 {
		return nil, nil // No win to credit
	}
	return s.apply(ctx, playerID, domain.TxTypeWin, amount, roundID,
		fmt.Sprintf("Win on %s", gameID))
}

// Refund returns a held wager, used when a round is voided. Idempotent per
// round like wagers and wins.
func (s *Service) Refund(ctx context.Context, playerID string, amount domain.Credits, gameID, roundID string) (*domain.Transaction, error) {
	return s.apply(ctx, playerID, domain.TxTypeRefund, amount, roundID,
		fmt.Sprintf("Refund for voided round on %s", gameID))
}

// debits lists the types that subtract from the balance.
func isDebit(txType domain.TransactionType) bool {
	return txType == domain.TxTypeWithdrawal || txType == domain.TxTypeWager
}

// roundScoped lists the types whose reference is a round ID and which must
// therefore apply at most once per round.
func roundScoped(txType domain.TransactionType) bool {
	return txType == domain.TxTypeWager || txType == domain.TxTypeWin || txType == domain.TxTypeRefund
}

// apply records one ledger entry and moves the balance inside a single
// database transaction. Returns the existing entry unchanged when the same
// (reference, type) pair was already applied.
func (s *Service) apply(ctx context.Context, playerID string, txType domain.TransactionType, amount domain.Credits, reference, description string) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer dbTx.Rollback()

	if reference != "" && roundScoped(txType) {
		if prior, err := s.findApplied(ctx, dbTx, playerID, txType, reference); err != nil {
			return nil, err
		} else if prior != nil {
			return prior, nil
		}
	}

	var credits int64
	var updatedAt time.Time
	err = dbTx.QueryRowContext(ctx, `
		SELECT credits, updated_at FROM balances WHERE player_id = $1 FOR UPDATE
	`, playerID).Scan(&credits, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}

	before := domain.Credits(credits)
	var after domain.Credits
	if isDebit(txType) {
		if before < amount {
			return nil, ErrInsufficientFunds
		}
		after = before - amount
	} else {
		after = before + amount
	}

	now := time.Now().UTC()
	tx := &domain.Transaction{
		ID:            uuid.New().String(),
		PlayerID:      playerID,
		Type:          txType,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		Status:        domain.TxStatusCompleted,
		Reference:     reference,
		Description:   description,
		CreatedAt:     now,
	}

	_, err = dbTx.ExecContext(ctx, `
		UPDATE balances SET credits = $1, updated_at = $2 WHERE player_id = $3
	`, int64(after), now, playerID)
	if err != nil {
		return nil, err
	}

	_, err = dbTx.ExecContext(ctx, `
		INSERT INTO transactions (id, player_id, type, amount, balance_before, balance_after, status, reference, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, tx.ID, tx.PlayerID, tx.Type, int64(tx.Amount),
		int64(tx.BalanceBefore), int64(tx.BalanceAfter), tx.Status, tx.Reference, tx.Description, tx.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(); err != nil {
		return nil, err
	}

	return tx, nil
}

// findApplied looks up a completed transaction with the same reference and
// type for the player.
func (s *Service) findApplied(ctx context.Context, dbTx *sql.Tx, playerID string, txType domain.TransactionType, reference string) (*domain.Transaction, error) {
	var tx domain.Transaction
	var amount, before, after int64

	err := dbTx.QueryRowContext(ctx, `
		SELECT id, player_id, type, amount, balance_before, balance_after, status, reference, description, created_at
		FROM transactions
		WHERE player_id = $1 AND type = $2 AND reference = $3 AND status = $4
	`, playerID, txType, reference, domain.TxStatusCompleted).Scan(
		&tx.ID, &tx.PlayerID, &tx.Type, &amount, &before, &after,
		&tx.Status, &tx.Reference, &tx.Description, &tx.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	tx.Amount = domain.Credits(amount)
	tx.BalanceBefore = domain.Credits(before)
	tx.BalanceAfter = domain.Credits(after)
	return &tx, nil
}

// GetTransactions retrieves transaction history for a player, newest first.
func (s *Service) GetTransactions(ctx context.Context, playerID string, limit int) ([]*domain.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, player_id, type, amount, balance_before, balance_after, status, reference, description, created_at
		FROM transactions WHERE player_id = $1 ORDER BY created_at DESC LIMIT $2
	`, playerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []*domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		var amount, before, after int64

		err := rows.Scan(&tx.ID, &tx.PlayerID, &tx.Type, &amount,
			&before, &after, &tx.Status, &tx.Reference, &tx.Description, &tx.CreatedAt)
		if err != nil {
			return nil, err
		}

		tx.Amount = domain.Credits(amount)
		tx.BalanceBefore = domain.Credits(before)
		tx.BalanceAfter = domain.Credits(after)

		transactions = append(transactions, &tx)
	}

	return transactions, nil
}
