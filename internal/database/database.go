// Package database provides PostgreSQL access and schema management for
// the casino service.
package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// DB wraps the SQL database connection
type DB struct {
	*sql.DB
}

// New creates a new database connection
func New(driver, dsn string) (*DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// Migrate creates all required tables. Idempotent.
func (db *DB) Migrate() error {
	schema := `
	-- Players
	CREATE TABLE IF NOT EXISTS players (
		id UUID PRIMARY KEY,
		username VARCHAR(255) UNIQUE NOT NULL,
		email VARCHAR(255) UNIQUE NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		status VARCHAR(50) NOT NULL DEFAULT 'active',
		registered_at TIMESTAMP NOT NULL,
		last_login_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	-- Login sessions
	CREATE TABLE IF NOT EXISTS sessions (
		id UUID PRIMARY KEY,
		player_id UUID NOT NULL REFERENCES players(id),
		token TEXT NOT NULL,
		ip_address VARCHAR(45) NOT NULL,
		user_agent TEXT,
		created_at TIMESTAMP NOT NULL,
		last_activity_at TIMESTAMP NOT NULL,
		expires_at TIMESTAMP NOT NULL,
		status VARCHAR(50) NOT NULL DEFAULT 'active'
	);

	-- Credit balances, one row per player
	CREATE TABLE IF NOT EXISTS balances (
		player_id UUID PRIMARY KEY REFERENCES players(id),
		credits BIGINT NOT NULL DEFAULT 0,
		updated_at TIMESTAMP NOT NULL
	);

	-- Credit ledger. Wager, win and refund rows reference the round they
	-- settle; at most one completed row per (player, type, reference).
	CREATE TABLE IF NOT EXISTS transactions (
		id UUID PRIMARY KEY,
		player_id UUID NOT NULL REFERENCES players(id),
		type VARCHAR(50) NOT NULL,
		amount BIGINT NOT NULL,
		balance_before BIGINT NOT NULL,
		balance_after BIGINT NOT NULL,
		status VARCHAR(50) NOT NULL,
		reference VARCHAR(255),
		description TEXT,
		created_at TIMESTAMP NOT NULL
	);

	-- Game sessions
	CREATE TABLE IF NOT EXISTS game_sessions (
		id UUID PRIMARY KEY,
		player_id UUID NOT NULL REFERENCES players(id),
		game_id VARCHAR(255) NOT NULL,
		started_at TIMESTAMP NOT NULL,
		ended_at TIMESTAMP,
		last_activity_at TIMESTAMP NOT NULL,
		status VARCHAR(50) NOT NULL DEFAULT 'active',
		opening_balance BIGINT NOT NULL,
		total_wagered BIGINT NOT NULL DEFAULT 0,
		total_won BIGINT NOT NULL DEFAULT 0,
		rounds_played INTEGER NOT NULL DEFAULT 0
	);

	-- Per-round outcome records
	CREATE TABLE IF NOT EXISTS rounds (
		id UUID PRIMARY KEY,
		session_id UUID NOT NULL REFERENCES game_sessions(id),
		player_id UUID NOT NULL REFERENCES players(id),
		game_id VARCHAR(255) NOT NULL,
		game_type VARCHAR(50) NOT NULL,
		started_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP,
		wager BIGINT NOT NULL,
		win BIGINT NOT NULL DEFAULT 0,
		outcome VARCHAR(50),
		balance_before BIGINT NOT NULL,
		balance_after BIGINT NOT NULL DEFAULT 0,
		details JSONB,
		status VARCHAR(50) NOT NULL DEFAULT 'in_progress'
	);

	-- Interrupted rounds awaiting resume or void
	CREATE TABLE IF NOT EXISTS interrupted_rounds (
		round_id UUID PRIMARY KEY REFERENCES rounds(id),
		session_id UUID NOT NULL REFERENCES game_sessions(id),
		player_id UUID NOT NULL REFERENCES players(id),
		game_id VARCHAR(255) NOT NULL,
		interrupted_at TIMESTAMP NOT NULL,
		reason TEXT,
		wager_held BIGINT NOT NULL,
		details JSONB
	);

	-- Responsible-gaming limits
	CREATE TABLE IF NOT EXISTS player_limits (
		id UUID PRIMARY KEY,
		player_id UUID UNIQUE NOT NULL REFERENCES players(id),
		daily_wager BIGINT,
		weekly_wager BIGINT,
		daily_loss BIGINT,
		cooling_off_until TIMESTAMP,
		pending_kind VARCHAR(50),
		pending_amount BIGINT,
		source VARCHAR(50) NOT NULL,
		effective_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	-- Self-exclusions
	CREATE TABLE IF NOT EXISTS self_exclusions (
		id UUID PRIMARY KEY,
		player_id UUID NOT NULL REFERENCES players(id),
		reason TEXT,
		started_at TIMESTAMP NOT NULL,
		expires_at TIMESTAMP,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	);

	-- Audit events
	CREATE TABLE IF NOT EXISTS audit_events (
		id UUID PRIMARY KEY,
		type VARCHAR(100) NOT NULL,
		severity VARCHAR(20) NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		player_id UUID,
		session_id UUID,
		description TEXT NOT NULL,
		data JSONB,
		ip_address VARCHAR(45),
		component VARCHAR(100) NOT NULL
	);

	-- Failed login attempts
	CREATE TABLE IF NOT EXISTS failed_logins (
		id UUID PRIMARY KEY,
		username VARCHAR(255) NOT NULL,
		ip_address VARCHAR(45) NOT NULL,
		attempted_at TIMESTAMP NOT NULL
	);

	-- Operator control state: gaming kill switch and per-game enablement
	CREATE TABLE IF NOT EXISTS system_state (
		key VARCHAR(100) PRIMARY KEY,
		value JSONB NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	-- Indexes for performance
	CREATE INDEX IF NOT EXISTS idx_sessions_player ON sessions(player_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_token ON sessions(token);
	CREATE INDEX IF NOT EXISTS idx_transactions_player ON transactions(player_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_created ON transactions(created_at);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_round
		ON transactions(player_id, type, reference)
		WHERE reference IS NOT NULL AND type IN ('wager', 'win', 'refund');
	CREATE INDEX IF NOT EXISTS idx_game_sessions_player ON game_sessions(player_id);
	CREATE INDEX IF NOT EXISTS idx_rounds_session ON rounds(session_id);
	CREATE INDEX IF NOT EXISTS idx_rounds_player ON rounds(player_id);
	CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_audit_events_player ON audit_events(player_id);
	`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Reset drops all tables (for testing)
func (db *DB) Reset() error {
	_, err := db.Exec(`
		DROP TABLE IF EXISTS system_state CASCADE;
		DROP TABLE IF EXISTS failed_logins CASCADE;
		DROP TABLE IF EXISTS audit_events CASCADE;
		DROP TABLE IF EXISTS self_exclusions CASCADE;
		DROP TABLE IF EXISTS player_limits CASCADE;
		DROP TABLE IF EXISTS interrupted_rounds CASCADE;
		DROP TABLE IF EXISTS rounds CASCADE;
		DROP TABLE IF EXISTS game_sessions CASCADE;
		DROP TABLE IF EXISTS transactions CASCADE;
		DROP TABLE IF EXISTS balances CASCADE;
		DROP TABLE IF EXISTS sessions CASCADE;
		DROP TABLE IF EXISTS players CASCADE;
	`)
	return err
}

// CleanData truncates all tables without dropping them (for testing)
func (db *DB) CleanData() error {
	_, err := db.Exec(`
		TRUNCATE TABLE system_state, failed_logins, audit_events, self_exclusions,
		               player_limits, interrupted_rounds, rounds, game_sessions,
		               transactions, balances, sessions, players CASCADE;
	`)
	return err
}
