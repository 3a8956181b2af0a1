/**
 * @description
 * Credential-backed identity store over PostgreSQL.
 * Implements the auth.IdentityStore primitives (find, create, password
 * update, password sign-in) plus refresh-token rotation and sign-out.
 *
 * @dependencies
 * - gorm.io/gorm: persistence
 * - github.com/jackc/pgconn: unique-violation detection
 * - golang.org/x/crypto/bcrypt: password hashing
 * - github.com/redis/go-redis/v9: refresh-token tracking
 *
 * @notes
 * - Uniqueness of wallet addresses is enforced by the DB index on
 *   profiles.wallet_address; CreateUser surfaces races as
 *   auth.ErrDuplicateUser and lets the resolver re-read.
 * - Refresh tokens are opaque UUIDs tracked in Redis so sign-out can
 *   revoke them; access tokens are short-lived JWTs and are not tracked.
 */

package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/snapnbuy/backend/internal/auth"
	"github.com/snapnbuy/backend/internal/config"
	"github.com/snapnbuy/backend/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const refreshKeyPrefix = "auth:refresh:"

// ErrInvalidCredentials is returned by SignInWithPassword on a bad password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrInvalidRefreshToken is returned when a refresh token is unknown,
// expired, or already rotated away.
var ErrInvalidRefreshToken = errors.New("invalid refresh token")

// Store is the production identity store.
type Store struct {
	DB    *gorm.DB
	Redis *redis.Client

	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewStore wires the store to its backing Postgres and Redis connections.
func NewStore(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Store {
	return &Store{
		DB:         db,
		Redis:      rdb,
		jwtSecret:  []byte(cfg.Auth.JWTSecret),
		accessTTL:  cfg.Auth.AccessTokenTTL,
		refreshTTL: cfg.Auth.RefreshTokenTTL,
	}
}

// FindUserByWalletAddress looks up an identity by its profile row.
func (s *Store) FindUserByWalletAddress(ctx context.Context, address string) (*auth.User, error) {
	var profile models.Profile
	if err := s.DB.WithContext(ctx).Where("wallet_address = ?", address).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, auth.ErrUserNotFound
		}
		return nil, fmt.Errorf("profile lookup failed: %w", err)
	}

	var user models.AuthUser
	if err := s.DB.WithContext(ctx).First(&user, "id = ?", profile.ID).Error; err != nil {
		return nil, fmt.Errorf("auth user lookup failed: %w", err)
	}

	return &auth.User{ID: user.ID, Email: user.Email, WalletAddress: profile.WalletAddress}, nil
}

// CreateUser creates the credential record and its profile row atomically.
func (s *Store) CreateUser(ctx context.Context, email, password, walletAddress string) (*auth.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("password hash failed: %w", err)
	}

	user := models.AuthUser{
		ID:            uuid.New(),
		Email:         email,
		PasswordHash:  string(hash),
		WalletAddress: walletAddress,
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		profile := models.Profile{ID: user.ID, WalletAddress: walletAddress}
		return tx.Create(&profile).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, auth.ErrDuplicateUser
		}
		return nil, fmt.Errorf("user creation failed: %w", err)
	}

	return &auth.User{ID: user.ID, Email: user.Email, WalletAddress: walletAddress}, nil
}

// UpdateUserPassword replaces the stored credential for a user.
func (s *Store) UpdateUserPassword(ctx context.Context, userID uuid.UUID, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("password hash failed: %w", err)
	}

	result := s.DB.WithContext(ctx).Model(&models.AuthUser{}).
		Where("id = ?", userID).
		Update("password_hash", string(hash))
	if result.Error != nil {
		return fmt.Errorf("password update failed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}

// SignInWithPassword verifies the credential and mints a session pair.
func (s *Store) SignInWithPassword(ctx context.Context, email, password string) (*auth.Session, error) {
	var user models.AuthUser
	if err := s.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, auth.ErrUserNotFound
		}
		return nil, fmt.Errorf("user lookup failed: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.mintSession(ctx, user.ID)
}

// RefreshSession rotates a refresh token: the old token is revoked and a
// fresh pair is issued for the same user.
func (s *Store) RefreshSession(ctx context.Context, refreshToken string) (*auth.Session, error) {
	key := refreshKeyPrefix + refreshToken
	val, err := s.Redis.GetDel(ctx, key).Result()
	if err == redis.Nil {
		return nil, ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, fmt.Errorf("refresh lookup failed: %w", err)
	}

	userID, err := uuid.Parse(val)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	return s.mintSession(ctx, userID)
}

// SignOut revokes a refresh token. Revoking an unknown token is a no-op.
func (s *Store) SignOut(ctx context.Context, refreshToken string) error {
	return s.Redis.Del(ctx, refreshKeyPrefix+refreshToken).Err()
}

func (s *Store) mintSession(ctx context.Context, userID uuid.UUID) (*auth.Session, error) {
	accessToken, err := s.issueAccessToken(userID)
	if err != nil {
		return nil, fmt.Errorf("access token issuance failed: %w", err)
	}

	refreshToken := uuid.NewString()
	key := refreshKeyPrefix + refreshToken
	if err := s.Redis.Set(ctx, key, userID.String(), s.refreshTTL).Err(); err != nil {
		return nil, fmt.Errorf("refresh token store failed: %w", err)
	}

	return &auth.Session{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// failure (SQLSTATE 23505), in any of the shapes the driver stack produces.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
