package services

import (
	"context"
	cryptorand "crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bartermarket/backend/internal/config"
	"github.com/bartermarket/backend/internal/models"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/spf13/viper"
	"golang.org/x/crypto/argon2"
	"go.uber.org/zap"
)

const profileColumns = "id, email, username, display_name, avatar_url, bio, location, coin_balance, version, created_at, updated_at"

const (
	insertProfileSQL = `
		INSERT INTO profiles (id, email, username, display_name, password_hash, coin_balance, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, 1, $6, $6)`

	selectProfileSQL = `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`

	selectLoginSQL = `SELECT ` + profileColumns + `, password_hash FROM profiles WHERE email = $1`
)

// uniqueViolation is the Postgres SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

// RegisterInput carries a new member's credentials and identity.
type RegisterInput struct {
	Email       string
	Password    string
	Username    string
	DisplayName string
}

// AuthResult is returned by Register and Login
// @Description Authentication response structure
type AuthResult struct {
	Token string          `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."` // JWT token
	User  *models.Profile `json:"user"`
}

type AuthService struct {
	db     *sql.DB
	redis  *redis.Client
	ledger *LedgerService
	config *config.MarketConfig
	log    *zap.Logger
}

func NewAuthService(db *sql.DB, redisClient *redis.Client, ledger *LedgerService, cfg *config.MarketConfig, log *zap.Logger) *AuthService {
	return &AuthService{
		db:     db,
		redis:  redisClient,
		ledger: ledger,
		config: cfg,
		log:    log,
	}
}

// Register creates a profile and credits the signup bonus through the ledger
// in the same transaction, so the new balance always has a matching entry.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	in.DisplayName = strings.TrimSpace(in.DisplayName)

	if _, err := mail.ParseAddress(in.Email); err != nil {
		return nil, validationf("email is invalid")
	}
	if utf8.RuneCountInString(in.Password) < 8 {
		return nil, validationf("password must be at least 8 characters")
	}
	if n := utf8.RuneCountInString(in.Username); n < 3 || n > 30 {
		return nil, validationf("username must be between 3 and 30 characters")
	}
	if in.DisplayName == "" {
		in.DisplayName = in.Username
	}

	hashedPassword, err := hashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	profile := &models.Profile{
		ID:          uuid.NewString(),
		Email:       in.Email,
		Username:    in.Username,
		DisplayName: in.DisplayName,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin registration: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, insertProfileSQL, profile.ID, profile.Email, profile.Username, profile.DisplayName, hashedPassword, now)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, fmt.Errorf("%w: email or username already taken", ErrConflict)
		}
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	var bonus *models.LedgerTransaction
	if s.config.SignupBonus > 0 {
		bonus, err = s.ledger.CreditTx(ctx, tx, profile.ID, s.config.SignupBonus, models.ReasonSignupBonus, profile.ID)
		if err != nil {
			return nil, err
		}
		profile.CoinBalance = bonus.BalanceAfter
		profile.Version++
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit registration: %w", err)
	}
	if bonus != nil {
		s.ledger.AuditEntries(*bonus)
	}

	token, err := generateJWT(profile.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	s.log.Info("[AUTH] registered", zap.String("user_id", profile.ID))
	return &AuthResult{Token: token, User: profile}, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var hashedPassword string
	profile, err := scanProfile(s.db.QueryRowContext(ctx, selectLoginSQL, email), &hashedPassword)
	if errors.Is(err, ErrNotFound) {
		s.log.Info("[AUTH] login for unknown email")
		return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}

	if !verifyPassword(password, hashedPassword) {
		s.log.Info("[AUTH] invalid password", zap.String("user_id", profile.ID))
		return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}

	token, err := generateJWT(profile.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &AuthResult{Token: token, User: profile}, nil
}

// Logout blacklists the token until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" || s.redis == nil {
		return nil
	}

	expiry := time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour
	if err := s.redis.Set(ctx, "blacklist:"+token, "1", expiry).Err(); err != nil {
		return fmt.Errorf("failed to blacklist token: %w", err)
	}
	return nil
}

// GetProfile returns the caller's own profile, balance included.
func (s *AuthService) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	return scanProfile(s.db.QueryRowContext(ctx, selectProfileSQL, userID))
}

func (s *AuthService) GetPublicProfile(ctx context.Context, userID string) (*models.PublicProfile, error) {
	profile, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	public := profile.Public()
	return &public, nil
}

func scanProfile(row rowScanner, extra ...any) (*models.Profile, error) {
	var p models.Profile
	dest := append([]any{&p.ID, &p.Email, &p.Username, &p.DisplayName, &p.AvatarURL, &p.Bio, &p.Location,
		&p.CoinBalance, &p.Version, &p.CreatedAt, &p.UpdatedAt}, extra...)
	err := row.Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: profile", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	return &p, nil
}

func generateJWT(userID string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"iat":     now.Unix(),
		"exp":     now.Add(time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour).Unix(),
	})

	return token.SignedString([]byte(viper.GetString("jwt.secret_key")))
}

func hashPassword(password string) (string, error) {
	salt := make([]byte, viper.GetInt("argon2.salt_length"))
	if _, err := cryptorand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
	return fmt.Sprintf("%s$%s", base64.StdEncoding.EncodeToString(salt), base64.StdEncoding.EncodeToString(hash)), nil
}

func verifyPassword(password, hashedPassword string) bool {
	parts := strings.Split(hashedPassword, "$")
	if len(parts) != 2 {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}

	hash, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}

	computedHash := argon2.IDKey([]byte(password), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(len(hash)))
	return subtle.ConstantTimeCompare(hash, computedHash) == 1
}
