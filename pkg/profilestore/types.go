// Package profilestore provides a client for the external profile and
// round-history store used to mirror player stats off the main database.
package profilestore

import "time"

// Error codes returned by the store
const (
	ErrUnexpectedError    = "UNEXPECTED_ERROR"
	ErrNotAuthorized      = "NOT_AUTHORIZED"
	ErrProfileNotFound    = "PROFILE_NOT_FOUND"
	ErrRoundAlreadyExists = "ROUND_ALREADY_EXISTS"
	ErrStoreUnavailable   = "STORE_UNAVAILABLE"
)

// APIError represents an error response from the store
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// Response wraps the store response with either result or error
type Response[T any] struct {
	Result *T        `json:"result,omitempty"`
	Error  *APIError `json:"error,omitempty"`
}

// Profile is the remotely stored player profile and running stats.
type Profile struct {
	PlayerID     string    `json:"playerId"`
	Username     string    `json:"username"`
	Credits      int64     `json:"credits"`
	RoundsPlayed int64     `json:"roundsPlayed"`
	TotalWagered int64     `json:"totalWagered"`
	TotalWon     int64     `json:"totalWon"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UpsertProfileRequest is the request body for /profiles/upsert
type UpsertProfileRequest struct {
	SiteCode string   `json:"siteCode"`
	Profile  *Profile `json:"profile"`
}

// UpsertProfileResult acknowledges a profile write
type UpsertProfileResult struct {
	PlayerID  string    `json:"playerId"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// GetProfileRequest is the request body for /profiles/get
type GetProfileRequest struct {
	SiteCode string `json:"siteCode"`
	PlayerID string `json:"playerId"`
}

// RoundRecord is a mirrored round outcome.
type RoundRecord struct {
	RoundID   string    `json:"roundId"`
	PlayerID  string    `json:"playerId"`
	GameID    string    `json:"gameId"`
	GameType  string    `json:"gameType"`
	Wager     int64     `json:"wager"`
	Win       int64     `json:"win"`
	Outcome   string    `json:"outcome"`
	Details  string    `json:"details,omitempty"`
	PlayedAt  time.Time `json:"playedAt"`
}

// RecordRoundRequest is the request body for /rounds/record
type RecordRoundRequest struct {
	SiteCode string       `json:"siteCode"`
	Round    *RoundRecord `json:"round"`
}

// RecordRoundResult acknowledges a round write
type RecordRoundResult struct {
	RoundID    string `json:"roundId"`
	Duplicated bool   `json:"duplicated"`
}

// HistoryRequest is the request body for /rounds/history
type HistoryRequest struct {
	SiteCode string `json:"siteCode"`
	PlayerID string `json:"playerId"`
	Limit    int    `json:"limit,omitempty"`
}

// HistoryResult is a page of mirrored rounds, newest first
type HistoryResult struct {
	Rounds []RoundRecord `json:"rounds"`
}

// ClientConfig holds the configuration for the profile store client
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	APISecret  string
	SiteCode   string
	Timeout    time.Duration
	RetryCount int
}

// DefaultConfig returns a default client configuration
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		Timeout:    30 * time.Second,
		RetryCount: 3,
	}
}
