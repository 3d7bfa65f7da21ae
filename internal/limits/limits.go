// Package limits provides responsible-gaming controls: wager and loss
// limits, cooling-off breaks and self-exclusion.
//
// Limit decreases take effect immediately. Increases and removals wait out
// a 24-hour cooling-off period before they apply, so a player cannot lift
// their own protection in the moment. The prior values stay enforced until
// the pending change matures.
package limits

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
	ErrPlayerExcluded     = errors.New("player is self-excluded")
	ErrCoolingOff         = errors.New("player is in a cooling-off break")
	ErrWagerLimitExceeded = errors.New("wager limit exceeded")
	ErrLossLimitExceeded  = errors.New("loss limit exceeded")
	ErrInvalidLimit       = errors.New("invalid limit value")
)

// IncreaseDelay is the waiting period before a limit increase or removal
// becomes effective.
const IncreaseDelay = 24 * time.Hour

// Service provides player limit management
type Service struct {
	db    *sql.DB
	audit *audit.Service
}

// New creates a new limits service
func New(db *sql.DB, auditSvc *audit.Service) *Service {
	return &Service{
		db:    db,
		audit: auditSvc,
	}
}

// GetLimits retrieves a player's current limits. Players without a record
// get an empty set.
func (s *Service) GetLimits(ctx context.Context, playerID string) (*domain.PlayerLimits, error) {
	var limits domain.PlayerLimits
	var dailyWager, weeklyWager, dailyLoss, pendingAmount sql.NullInt64
	var pendingKind sql.NullString
	var coolingOff sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT id, player_id, daily_wager, weekly_wager, daily_loss,
		       cooling_off_until, pending_kind, pending_amount,
		       source, effective_at, updated_at
		FROM player_limits WHERE player_id = $1
	`, playerID).Scan(
		&limits.ID, &limits.PlayerID,
		&dailyWager, &weeklyWager, &dailyLoss,
		&coolingOff, &pendingKind, &pendingAmount,
		&limits.Source, &limits.EffectiveAt, &limits.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			now := time.Now().UTC()
			return &domain.PlayerLimits{
				PlayerID:    playerID,
				Source:      domain.LimitSourcePlayer,
				EffectiveAt: now,
				UpdatedAt:   now,
			}, nil
		}
		return nil, fmt.Errorf("failed to get limits: %w", err)
	}

	if dailyWager.Valid {
		c := domain.Credits(dailyWager.Int64)
		limits.DailyWager = &c
	}
	if weeklyWager.Valid {
		c := domain.Credits(weeklyWager.Int64)
		limits.WeeklyWager = &c
	}
	if dailyLoss.Valid {
		c := domain.Credits(dailyLoss.Int64)
		limits.DailyLoss = &c
	}
	if coolingOff.Valid {
		limits.CoolingOffUntil = &coolingOff.Time
	}

	if pendingKind.Valid {
		if limits.EffectiveAt.After(time.Now().UTC()) {
			limits.PendingKind = pendingKind.String
			c := domain.Credits(pendingAmount.Int64)
			limits.PendingAmount = &c
		} else if err := s.applyPending(ctx, &limits, pendingKind.String, domain.Credits(pendingAmount.Int64)); err != nil {
			return nil, err
		}
	}

	return &limits, nil
}

// applyPending promotes a matured pending change into its live column and
// clears the pending slot.
func (s *Service) applyPending(ctx context.Context, lim *domain.PlayerLimits, kind string, amount domain.Credits) error {
	var column string
	switch kind {
	case "daily_wager", "weekly_wager", "daily_loss":
		column = kind
	default:
		return fmt.Errorf("%w: unknown pending kind %q", ErrInvalidLimit, kind)
	}

	var nullableAmount interface{}
	if amount > 0 {
		nullableAmount = int64(amount)
	}
	query := fmt.Sprintf(
		"UPDATE player_limits SET %s = $1, pending_kind = NULL, pending_amount = NULL, updated_at = $2 WHERE player_id = $3",
		column)
	if _, err := s.db.ExecContext(ctx, query, nullableAmount, time.Now().UTC(), lim.PlayerID); err != nil {
		return err
	}

	var value *domain.Credits
	if amount > 0 {
		c := amount
		value = &c
	}
	switch kind {
	case "daily_wager":
		lim.DailyWager = value
	case "weekly_wager":
		lim.WeeklyWager = value
	case "daily_loss":
		lim.DailyLoss = value
	}
	return nil
}

// SetLimitRequest contains a limit update. Amount 0 removes the limit,
// which counts as an increase and waits out the delay.
type SetLimitRequest struct {
	PlayerID string         `json:"player_id"`
	Kind     string         `json:"kind"`   // daily_wager, weekly_wager, daily_loss
	Amount   domain.Credits `json:"amount"` // credits, 0 to remove
	Source   domain.LimitSource
}

// SetLimit updates one limit value, delaying increases.
func (s *Service) SetLimit(ctx context.Context, req *SetLimitRequest) (*domain.PlayerLimits, error) {
	if req.Amount < 0 {
		return nil, ErrInvalidLimit
	}

	current, err := s.GetLimits(ctx, req.PlayerID)
	if err != nil {
		return nil, err
	}

	var currentAmount domain.Credits
	var column string
	switch req.Kind {
	case "daily_wager":
		column = "daily_wager"
		if current.DailyWager != nil {
			currentAmount = *current.DailyWager
		}
	case "weekly_wager":
		column = "weekly_wager"
		if current.WeeklyWager != nil {
			currentAmount = *current.WeeklyWager
		}
	case "daily_loss":
		column = "daily_loss"
		if current.DailyLoss != nil {
			currentAmount = *current.DailyLoss
		}
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidLimit, req.Kind)
	}

	now := time.Now().UTC()
	effectiveAt := now
	// Operator-imposed changes apply immediately in both directions.
	if req.Source != domain.LimitSourceOperator {
		if req.Amount > currentAmount && currentAmount > 0 || req.Amount == 0 && currentAmount > 0 {
			effectiveAt = now.Add(IncreaseDelay)
		}
	}

	source := req.Source
	if source == "" {
		source = domain.LimitSourcePlayer
	}

	if effectiveAt.After(now) {
		// Hold the change in the pending slot so the current value keeps
		// being enforced until the delay lapses. A new change replaces any
		// pending one.
		if err := s.upsertPending(ctx, req.PlayerID, req.Kind, req.Amount, source, effectiveAt); err != nil {
			return nil, err
		}
	} else if err := s.upsertLimit(ctx, req.PlayerID, column, req.Amount, source, effectiveAt); err != nil {
		return nil, err
	}

	s.audit.Log(ctx, audit.EventLimitChanged, domain.SeverityInfo,
		fmt.Sprintf("Limit changed: %s = %d credits (effective %s)", req.Kind, req.Amount, effectiveAt.Format(time.RFC3339)),
		map[string]interface{}{
			"kind":         req.Kind,
			"amount":       req.Amount,
			"effective_at": effectiveAt,
			"immediate":    effectiveAt.Equal(now),
		},
		audit.WithPlayer(req.PlayerID))

	return s.GetLimits(ctx, req.PlayerID)
}

// StartCoolingOff begins a break from play: wagers are rejected until it
// lapses. Takes effect immediately.
func (s *Service) StartCoolingOff(ctx context.Context, playerID string, duration time.Duration) (*domain.PlayerLimits, error) {
	if duration <= 0 {
		return nil, ErrInvalidLimit
	}

	now := time.Now().UTC()
	until := now.Add(duration)

	if err := s.ensureRecord(ctx, playerID, domain.LimitSourcePlayer, now); err != nil {
		return nil, err
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE player_limits SET cooling_off_until = $1, updated_at = $2 WHERE player_id = $3
	`, until, now, playerID)
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, audit.EventLimitChanged, domain.SeverityWarning,
		fmt.Sprintf("Cooling-off break until %s", until.Format(time.RFC3339)),
		map[string]interface{}{"until": until},
		audit.WithPlayer(playerID))

	return s.GetLimits(ctx, playerID)
}

// SelfExclude excludes a player from gaming. A nil duration is permanent.
func (s *Service) SelfExclude(ctx context.Context, playerID, reason string, duration *time.Duration) (*domain.SelfExclusion, error) {
	now := time.Now().UTC()

	exclusion := &domain.SelfExclusion{
		ID:        uuid.New().String(),
		PlayerID:  playerID,
		Reason:    reason,
		StartedAt: now,
		IsActive:  true,
	}
	if duration != nil {
		expiresAt := now.Add(*duration)
		exclusion.ExpiresAt = &expiresAt
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO self_exclusions (id, player_id, reason, started_at, expires_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, exclusion.ID, exclusion.PlayerID, exclusion.Reason, exclusion.StartedAt,
		exclusion.ExpiresAt, exclusion.IsActive)
	if err != nil {
		return nil, fmt.Errorf("failed to create self-exclusion: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE players SET status = $1, updated_at = $2 WHERE id = $3
	`, domain.PlayerStatusExcluded, now, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to update player status: %w", err)
	}

	s.audit.Log(ctx, audit.EventSelfExclusion, domain.SeverityCritical,
		fmt.Sprintf("Player self-excluded: %s", reason),
		map[string]interface{}{
			"exclusion_id": exclusion.ID,
			"expires_at":   exclusion.ExpiresAt,
			"permanent":    exclusion.ExpiresAt == nil,
		},
		audit.WithPlayer(playerID))

	return exclusion, nil
}

// IsExcluded checks if a player is currently self-excluded.
func (s *Service) IsExcluded(ctx context.Context, playerID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM self_exclusions
		WHERE player_id = $1 AND is_active = true
		AND (expires_at IS NULL OR expires_at > $2)
	`, playerID, time.Now().UTC()).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CheckWager verifies a prospective wager against exclusion, cooling-off
// and effective wager limits. Called before every debit.
func (s *Service) CheckWager(ctx context.Context, playerID string, amount domain.Credits) error {
	excluded, err := s.IsExcluded(ctx, playerID)
	if err != nil {
		return err
	}
	if excluded {
		return ErrPlayerExcluded
	}

	lim, err := s.GetLimits(ctx, playerID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if lim.CoolingOffUntil != nil && lim.CoolingOffUntil.After(now) {
		return ErrCoolingOff
	}
	if lim.DailyWager != nil {
		total, err := s.wagerTotal(ctx, playerID, now.Add(-24*time.Hour), now)
		if err != nil {
			return err
		}
		if total+amount > *lim.DailyWager {
			return fmt.Errorf("%w: daily", ErrWagerLimitExceeded)
		}
	}
	if lim.WeeklyWager != nil {
		total, err := s.wagerTotal(ctx, playerID, now.Add(-7*24*time.Hour), now)
		if err != nil {
			return err
		}
		if total+amount > *lim.WeeklyWager {
			return fmt.Errorf("%w: weekly", ErrWagerLimitExceeded)
		}
	}

	if lim.DailyLoss != nil {
		loss, err := s.lossTotal(ctx, playerID, now.Add(-24*time.Hour), now)
		if err != nil {
			return err
		}
		// The wager being checked counts as a prospective loss.
		if loss+amount > *lim.DailyLoss {
			return fmt.Errorf("%w: daily", ErrLossLimitExceeded)
		}
	}

	return nil
}

// ensureRecord creates the singleton player_limits row if absent.
func (s *Service) ensureRecord(ctx context.Context, playerID string, source domain.LimitSource, effectiveAt time.Time) error {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM player_limits WHERE player_id = $1)", playerID).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO player_limits (id, player_id, source, effective_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.New().String(), playerID, source, effectiveAt, time.Now().UTC())
	return err
}

// upsertLimit writes one limit column immediately. The column name comes
// from the closed switch in SetLimit, never from user input. Any pending
// change is superseded.
func (s *Service) upsertLimit(ctx context.Context, playerID, column string, amount domain.Credits, source domain.LimitSource, effectiveAt time.Time) error {
	now := time.Now().UTC()

	if err := s.ensureRecord(ctx, playerID, source, effectiveAt); err != nil {
		return err
	}

	var nullableAmount interface{}
	if amount > 0 {
		nullableAmount = int64(amount)
	}

	query := fmt.Sprintf(
		"UPDATE player_limits SET %s = $1, pending_kind = NULL, pending_amount = NULL, source = $2, effective_at = $3, updated_at = $4 WHERE player_id = $5",
		column)
	_, err := s.db.ExecContext(ctx, query, nullableAmount, source, effectiveAt, now, playerID)
	return err
}

// upsertPending records a delayed change without touching the live columns.
func (s *Service) upsertPending(ctx context.Context, playerID, kind string, amount domain.Credits, source domain.LimitSource, effectiveAt time.Time) error {
	now := time.Now().UTC()

	if err := s.ensureRecord(ctx, playerID, source, effectiveAt); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE player_limits
		SET pending_kind = $1, pending_amount = $2, source = $3, effective_at = $4, updated_at = $5
		WHERE player_id = $6
	`, kind, int64(amount), source, effectiveAt, now, playerID)
	return err
}

// wagerTotal sums completed wagers in a window.
func (s *Service) wagerTotal(ctx context.Context, playerID string, from, to time.Time) (domain.Credits, error) {
	var total sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM transactions
		WHERE player_id = $1 AND type = 'wager' AND status = 'completed'
		AND created_at >= $2 AND created_at <= $3
	`, playerID, from, to).Scan(&total)
	if err != nil {
		return 0, err
	}
	return domain.Credits(total.Int64), nil
}

// lossTotal computes net loss (wagers minus wins minus refunds) in a
// window, floored at zero.
func (s *Service) lossTotal(ctx context.Context, playerID string, from, to time.Time) (domain.Credits, error) {
	var net sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN type = 'wager' THEN amount ELSE -amount END), 0)
		FROM transactions
		WHERE player_id = $1 AND type IN ('wager', 'win', 'refund') AND status = 'completed'
		AND created_at >= $2 AND created_at <= $3
	`, playerID, from, to).Scan(&net)
	if err != nil {
		return 0, err
	}
	if net.Int64 < 0 {
		return 0, nil
	}
	return domain.Credits(net.Int64), nil
}
