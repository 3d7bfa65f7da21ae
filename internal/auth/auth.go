// Package auth provides player registration, password authentication and
// JWT-backed session management.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/YousefHassab/Progettino-Natale/internal/audit"
	"github.com/YousefHassab/Progettino-Natale/internal/config"
	"github.com/YousefHassab/Progettino-Natale/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account temporarily locked")
	ErrAccountNotActive   = errors.New("account is not active")
	ErrSessionExpired     = errors.New("session expired")
	ErrSessionNotFound    = errors.New("session not found")
	ErrUserExists         = errors.New("username or email already exists")
	ErrPlayerNotFound     = errors.New("player not found")
)

// Service provides authentication functionality
type Service struct {
	db              *sql.DB
	config          *config.AuthConfig
	audit           *audit.Service
	startingCredits domain.Credits
}

// New creates a new auth service. New accounts open with startingCredits
// on their balance.
func New(db *sql.DB, cfg *config.AuthConfig, auditSvc *audit.Service, startingCredits domain.Credits) *Service {
	return &Service{
		db:              db,
		config:          cfg,
		audit:           auditSvc,
		startingCredits: startingCredits,
	}
}

// RegisterRequest contains registration data
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates a new player account with the starting balance.
func (s *Service) Register(ctx context.Context, req *RegisterRequest, ip string) (*domain.Player, error) {
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return nil, errors.New("username, email, and password are required")
	}
	if len(req.Password) < 8 {
		return nil, errors.New("password must be at least 8 characters")
	}

	var exists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM players WHERE username = $1 OR email = $2",
		req.Username, req.Email).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	if exists > 0 {
		return nil, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	player := &domain.Player{
		ID:           uuid.New().String(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		Status:       domain.PlayerStatusActive,
		RegisteredAt: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO players (id, username, email, password_hash, status, registered_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, player.ID, player.Username, player.Email, player.PasswordHash, player.Status,
		player.RegisteredAt, player.CreatedAt, player.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create player: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO balances (player_id, credits, updated_at) VALUES ($1, $2, $3)
	`, player.ID, int64(s.startingCredits), now)
	if err != nil {
		return nil, fmt.Errorf("failed to create balance: %w", err)
	}

	s.audit.Log(ctx, audit.EventPlayerRegistered, domain.SeverityInfo,
		fmt.Sprintf("Player registered: %s", player.Username),
		map[string]string{"player_id": player.ID},
		audit.WithPlayer(player.ID), audit.WithIP(ip))

	return player, nil
}

// LoginRequest contains login credentials
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse contains login result
type LoginResponse struct {
	Player  *domain.Player  `json:"player"`
	Session *domain.Session `json:"session"`
	Token   string          `json:"token"`
}

// Login authenticates a player by username and password. Repeated failures
// lock the account for the configured duration.
func (s *Service) Login(ctx context.Context, req *LoginRequest, ip, userAgent string) (*LoginResponse, error) {
	if s.isLockedOut(ctx, req.Username) {
		s.audit.Log(ctx, audit.EventLoginFailed, domain.SeverityWarning,
			fmt.Sprintf("Login attempt on locked account: %s", req.Username),
			nil, audit.WithIP(ip))
		return nil, ErrAccountLocked
	}

	var player domain.Player
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, status, registered_at, last_login_at, created_at, updated_at
		FROM players WHERE username = $1
	`, req.Username).Scan(
		&player.ID, &player.Username, &player.Email, &player.PasswordHash,
		&player.Status, &player.RegisteredAt, &player.LastLoginAt,
		&player.CreatedAt, &player.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.recordFailedLogin(ctx, req.Username, ip)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(player.PasswordHash), []byte(req.Password)); err != nil {
		s.recordFailedLogin(ctx, req.Username, ip)
		s.audit.Log(ctx, audit.EventLoginFailed, domain.SeverityWarning,
			fmt.Sprintf("Failed login for %s", req.Username),
			nil, audit.WithPlayer(player.ID), audit.WithIP(ip))
		return nil, ErrInvalidCredentials
	}

	if player.Status != domain.PlayerStatusActive {
		return nil, ErrAccountNotActive
	}

	session, token, err := s.createSession(ctx, &player, ip, userAgent)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	s.db.ExecContext(ctx, "UPDATE players SET last_login_at = $1, updated_at = $2 WHERE id = $3",
		now, now, player.ID)
	player.LastLoginAt = &now

	// Clear failed login attempts
	s.db.ExecContext(ctx, "DELETE FROM failed_logins WHERE username = $1", req.Username)

	s.audit.Log(ctx, audit.EventPlayerLogin, domain.SeverityInfo,
		fmt.Sprintf("Player logged in: %s", player.Username),
		map[string]string{"session_id": session.ID},
		audit.WithPlayer(player.ID), audit.WithSession(session.ID), audit.WithIP(ip))

	return &LoginResponse{
		Player:  &player,
		Session: session,
		Token:   token,
	}, nil
}

// createSession creates a new session with JWT token
func (s *Service) createSession(ctx context.Context, player *domain.Player, ip, userAgent string) (*domain.Session, string, error) {
	now := time.Now().UTC()
	session := &domain.Session{
		ID:             uuid.New().String(),
		PlayerID:       player.ID,
		IPAddress:      ip,
		UserAgent:      userAgent,
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(s.config.TokenExpiry),
		Status:         domain.SessionStatusActive,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"session_id": session.ID,
		"player_id":  player.ID,
		"username":   player.Username,
		"exp":        session.ExpiresAt.Unix(),
		"iat":        now.Unix(),
	})

	tokenString, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return nil, "", fmt.Errorf("failed to sign token: %w", err)
	}

	session.Token = tokenString

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, player_id, token, ip_address, user_agent, created_at, last_activity_at, expires_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, session.ID, session.PlayerID, session.Token, session.IPAddress, session.UserAgent,
		session.CreatedAt, session.LastActivityAt, session.ExpiresAt, session.Status)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create session: %w", err)
	}

	return session, tokenString, nil
}

// ValidateToken validates a JWT token and returns the session and player.
func (s *Service) ValidateToken(ctx context.Context, tokenString string) (*domain.Session, *domain.Player, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	})
	if err != nil {
		return nil, nil, ErrSessionExpired
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, nil, ErrSessionExpired
	}

	sessionID, ok := claims["session_id"].(string)
	if !ok {
		return nil, nil, ErrSessionExpired
	}

	var session domain.Session
	err = s.db.QueryRowContext(ctx, `
		SELECT id, player_id, token, ip_address, user_agent, created_at, last_activity_at, expires_at, status
		FROM sessions WHERE id = $1
	`, sessionID).Scan(
		&session.ID, &session.PlayerID, &session.Token, &session.IPAddress, &session.UserAgent,
		&session.CreatedAt, &session.LastActivityAt, &session.ExpiresAt, &session.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrSessionNotFound
		}
		return nil, nil, err
	}

	if session.Status != domain.SessionStatusActive {
		return nil, nil, ErrSessionExpired
	}

	if time.Now().After(session.ExpiresAt) {
		s.db.ExecContext(ctx, "UPDATE sessions SET status = $1 WHERE id = $2",
			domain.SessionStatusExpired, session.ID)
		return nil, nil, ErrSessionExpired
	}

	// Inactivity timeout
	if time.Since(session.LastActivityAt) > s.config.SessionTimeout {
		s.db.ExecContext(ctx, "UPDATE sessions SET status = $1 WHERE id = $2",
			domain.SessionStatusRequiresAuth, session.ID)
		return nil, nil, ErrSessionExpired
	}

	player, err := s.GetPlayer(ctx, session.PlayerID)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	s.db.ExecContext(ctx, "UPDATE sessions SET last_activity_at = $1 WHERE id = $2", now, session.ID)
	session.LastActivityAt = now

	return &session, player, nil
}

// Logout terminates a session
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE sessions SET status = $1 WHERE id = $2",
		domain.SessionStatusLoggedOut, sessionID)
	if err != nil {
		return err
	}

	s.audit.Log(ctx, audit.EventPlayerLogout, domain.SeverityInfo,
		"Player logged out",
		map[string]string{"session_id": sessionID},
		audit.WithSession(sessionID))

	return nil
}

// GetPlayer retrieves a player by ID
func (s *Service) GetPlayer(ctx context.Context, playerID string) (*domain.Player, error) {
	var player domain.Player
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, email, status, registered_at, last_login_at, created_at, updated_at
		FROM players WHERE id = $1
	`, playerID).Scan(
		&player.ID, &player.Username, &player.Email, &player.Status,
		&player.RegisteredAt, &player.LastLoginAt,
		&player.CreatedAt, &player.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, err
	}
	return &player, nil
}

// isLockedOut reports whether the username has hit the failed-attempt
// threshold inside the lockout window.
func (s *Service) isLockedOut(ctx context.Context, username string) bool {
	cutoff := time.Now().UTC().Add(-s.config.LockoutDuration)
	var count int
	s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM failed_logins WHERE username = $1 AND attempted_at > $2",
		username, cutoff).Scan(&count)
	return count >= s.config.MaxFailedAttempts
}

// recordFailedLogin records a failed login attempt
func (s *Service) recordFailedLogin(ctx context.Context, username, ip string) {
	s.db.ExecContext(ctx, `
		INSERT INTO failed_logins (id, username, ip_address, attempted_at)
		VALUES ($1, $2, $3, $4)
	`, uuid.New().String(), username, ip, time.Now().UTC())
}
