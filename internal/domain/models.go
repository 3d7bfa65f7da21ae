// Package domain contains the core domain models for the casino service:
// players, sessions, balances, transactions and per-round game records.
//
// Balances are integer credit counts. A credit is the smallest wagerable
// unit; all wager and win amounts are expressed in credits and the balance
// can never go negative (debit-before-resolve is enforced by the wallet).
package domain

import (
	"encoding/json"
	"time"
)

// Credits represents an amount of casino credits.
type Credits int64

// GameType identifies one of the three supported games.
type GameType string

const (
	GameSlots     GameType = "slots"
	GameBlackjack GameType = "blackjack"
	GameRoulette  GameType = "roulette"
)

// Outcome classifies a resolved round from the player's point of view.
// Exactly one outcome tag is set per resolved round.
type Outcome string

const (
	OutcomeWin       Outcome = "win"
	OutcomeLoss      Outcome = "loss"
	OutcomeDraw      Outcome = "draw"
	OutcomeBlackjack Outcome = "blackjack" // natural: two-card 21, pays 2.5x
)

// PlayerStatus represents the status of a player account.
type PlayerStatus string

const (
	PlayerStatusActive    PlayerStatus = "active"
	PlayerStatusSuspended PlayerStatus = "suspended"
	PlayerStatusExcluded  PlayerStatus = "excluded"
	PlayerStatusClosed    PlayerStatus = "closed"
)

// Player represents a registered player.
type Player struct {
	ID           string       `json:"id" db:"id"`
	Username     string       `json:"username" db:"username"`
	Email        string       `json:"email" db:"email"`
	PasswordHash string       `json:"-" db:"password_hash"`
	Status       PlayerStatus `json:"status" db:"status"`
	RegisteredAt time.Time    `json:"registered_at" db:"registered_at"`
	LastLoginAt  *time.Time   `json:"last_login_at" db:"last_login_at"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
}

// SessionStatus represents login-session state.
type SessionStatus string

const (
	SessionStatusActive       SessionStatus = "active"
	SessionStatusExpired      SessionStatus = "expired"
	SessionStatusLoggedOut    SessionStatus = "logged_out"
	SessionStatusRequiresAuth SessionStatus = "requires_auth"
)

// Session represents an authenticated player session.
type Session struct {
	ID             string        `json:"id" db:"id"`
	PlayerID       string        `json:"player_id" db:"player_id"`
	Token          string        `json:"-" db:"token"`
	IPAddress      string        `json:"ip_address" db:"ip_address"`
	UserAgent      string        `json:"user_agent" db:"user_agent"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	LastActivityAt time.Time     `json:"last_activity_at" db:"last_activity_at"`
	ExpiresAt      time.Time     `json:"expires_at" db:"expires_at"`
	Status         SessionStatus `json:"status" db:"status"`
}

// TransactionType represents the kinds of balance movement.
type TransactionType string

const (
	TxTypeDeposit    TransactionType = "deposit"
	TxTypeWithdrawal TransactionType = "withdrawal"
	TxTypeWager      TransactionType = "wager"
	TxTypeWin        TransactionType = "win"
	TxTypeRefund     TransactionType = "refund"
)

// TransactionStatus represents transaction state.
type TransactionStatus string

const (
	TxStatusCompleted TransactionStatus = "completed"
	TxStatusFailed    TransactionStatus = "failed"
)

// Transaction is one entry in the append-only credit ledger. Wager and win
// transactions carry the round ID in Reference, which makes replaying a
// recorded round outcome idempotent: a duplicate (reference, type) pair is
// a no-op in the wallet instead of moving the balance twice.
type Transaction struct {
	ID            string            `json:"id" db:"id"`
	PlayerID      string            `json:"player_id" db:"player_id"`
	Type          TransactionType   `json:"type" db:"type"`
	Amount        Credits           `json:"amount" db:"amount"`
	BalanceBefore Credits           `json:"balance_before" db:"balance_before"`
	BalanceAfter  Credits           `json:"balance_after" db:"balance_after"`
	Status        TransactionStatus `json:"status" db:"status"`
	Reference     string            `json:"reference" db:"reference"`
	Description   string            `json:"description" db:"description"`
	CreatedAt     time.Time         `json:"created_at" db:"created_at"`
}

// Balance represents a player's credit balance.
type Balance struct {
	PlayerID  string    `json:"player_id"`
	Credits   Credits   `json:"credits"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GameSessionStatus represents game-session state.
type GameSessionStatus string

const (
	GameSessionActive    GameSessionStatus = "active"
	GameSessionCompleted GameSessionStatus = "completed"
)

// GameSession represents one player's seat at one game: a sequence of rounds
// with running totals. A session has at most one unresolved round at a time.
type GameSession struct {
	ID             string            `json:"id" db:"id"`
	PlayerID       string            `json:"player_id" db:"player_id"`
	GameID         string            `json:"game_id" db:"game_id"`
	StartedAt      time.Time         `json:"started_at" db:"started_at"`
	EndedAt        *time.Time        `json:"ended_at" db:"ended_at"`
	LastActivityAt time.Time         `json:"last_activity_at" db:"last_activity_at"`
	Status         GameSessionStatus `json:"status" db:"status"`
	OpeningBalance Credits           `json:"opening_balance" db:"opening_balance"`
	TotalWagered   Credits           `json:"total_wagered" db:"total_wagered"`
	TotalWon       Credits           `json:"total_won" db:"total_won"`
	RoundsPlayed   int               `json:"rounds_played" db:"rounds_played"`
}

// RoundStatus represents the lifecycle of a single game round.
type RoundStatus string

const (
	RoundInProgress  RoundStatus = "in_progress"
	RoundCompleted   RoundStatus = "completed"
	RoundVoided      RoundStatus = "voided"
	RoundInterrupted RoundStatus = "interrupted"
)

// Round is the immutable record of a single resolved game round: what was
// wagered, what was drawn, how it was classified and what it paid. Details
// holds the game-specific outcome (cards, grid, winning number).
type Round struct {
	ID            string          `json:"id" db:"id"`
	SessionID     string          `json:"session_id" db:"session_id"`
	PlayerID      string          `json:"player_id" db:"player_id"`
	GameID        string          `json:"game_id" db:"game_id"`
	GameType      GameType        `json:"game_type" db:"game_type"`
	StartedAt     time.Time       `json:"started_at" db:"started_at"`
	CompletedAt   *time.Time      `json:"completed_at" db:"completed_at"`
	Wager         Credits         `json:"wager" db:"wager"`
	Win           Credits         `json:"win" db:"win"`
	Outcome       Outcome         `json:"outcome" db:"outcome"`
	BalanceBefore Credits         `json:"balance_before" db:"balance_before"`
	BalanceAfter  Credits         `json:"balance_after" db:"balance_after"`
	Details       json.RawMessage `json:"details" db:"details"`
	Status        RoundStatus     `json:"status" db:"status"`
}

// Net returns the balance delta this round produced once applied through the
// ledger: payout minus wager. A draw nets zero.
func (r *Round) Net() Credits {
	return r.Win - r.Wager
}

// Game represents a playable game definition.
type Game struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Type           GameType `json:"type"`
	TheoreticalRTP float64  `json:"theoretical_rtp"`
	MinBet         Credits  `json:"min_bet"`
	MaxBet         Credits  `json:"max_bet"`
	Enabled        bool     `json:"enabled"`
}

// EventSeverity represents audit event severity.
type EventSeverity string

const (
	SeverityInfo     EventSeverity = "info"
	SeverityWarning  EventSeverity = "warning"
	SeverityError    EventSeverity = "error"
	SeverityCritical EventSeverity = "critical"
)

// AuditEvent represents a significant event: logins, round resolutions,
// large wins, configuration changes.
type AuditEvent struct {
	ID          string          `json:"id" db:"id"`
	Type        string          `json:"type" db:"type"`
	Severity    EventSeverity   `json:"severity" db:"severity"`
	Timestamp   time.Time       `json:"timestamp" db:"timestamp"`
	PlayerID    *string         `json:"player_id,omitempty" db:"player_id"`
	SessionID   *string         `json:"session_id,omitempty" db:"session_id"`
	Description string          `json:"description" db:"description"`
	Data        json.RawMessage `json:"data,omitempty" db:"data"`
	IPAddress   string          `json:"ip_address" db:"ip_address"`
	Component   string          `json:"component" db:"component"`
}

// LimitSource indicates who imposed a limit.
type LimitSource string

const (
	LimitSourcePlayer   LimitSource = "player"
	LimitSourceOperator LimitSource = "operator"
)

// PlayerLimits represents responsible-gaming limits. Decreases apply
// immediately; increases wait out a cooling-off period, during which the
// prior values stay in force and the change is held in the pending fields.
type PlayerLimits struct {
	ID              string      `json:"id" db:"id"`
	PlayerID        string      `json:"player_id" db:"player_id"`
	DailyWager      *Credits    `json:"daily_wager,omitempty" db:"daily_wager"`
	WeeklyWager     *Credits    `json:"weekly_wager,omitempty" db:"weekly_wager"`
	DailyLoss       *Credits    `json:"daily_loss,omitempty" db:"daily_loss"`
	CoolingOffUntil *time.Time  `json:"cooling_off_until,omitempty" db:"cooling_off_until"`
	PendingKind     string      `json:"pending_kind,omitempty" db:"pending_kind"`
	PendingAmount   *Credits    `json:"pending_amount,omitempty" db:"pending_amount"`
	Source          LimitSource `json:"source" db:"source"`
	EffectiveAt     time.Time   `json:"effective_at" db:"effective_at"`
	UpdatedAt       time.Time   `json:"updated_at" db:"updated_at"`
}

// SelfExclusion represents a player's self-exclusion record.
type SelfExclusion struct {
	ID        string     `json:"id" db:"id"`
	PlayerID  string     `json:"player_id" db:"player_id"`
	Reason    string     `json:"reason" db:"reason"`
	StartedAt time.Time  `json:"started_at" db:"started_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" db:"expires_at"` // nil = permanent
	IsActive  bool       `json:"is_active" db:"is_active"`
}

// InterruptedRound represents a round that did not complete, holding the
// wager until it is resumed (outcome applied in full) or voided (refunded).
// Partial application is never allowed.
type InterruptedRound struct {
	RoundID       string          `json:"round_id" db:"round_id"`
	SessionID     string          `json:"session_id" db:"session_id"`
	PlayerID      string          `json:"player_id" db:"player_id"`
	GameID        string          `json:"game_id" db:"game_id"`
	InterruptedAt time.Time       `json:"interrupted_at" db:"interrupted_at"`
	Reason        string          `json:"reason" db:"reason"`
	WagerHeld     Credits         `json:"wager_held" db:"wager_held"`
	Details       json.RawMessage `json:"details" db:"details"`
}
