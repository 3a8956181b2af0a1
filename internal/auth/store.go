/**
 * @description
 * Backing identity-store contract consumed by the wallet auth bridge.
 * The bridge never touches credential storage directly; it drives these
 * four primitives and lets the store own atomicity and token issuance.
 */

package auth

import (
	"context"

	"github.com/google/uuid"
)

// User is the bridge's view of an identity record.
type User struct {
	ID            uuid.UUID
	Email         string
	WalletAddress string
}

// Session is a fresh access/refresh token pair scoped to one user.
type Session struct {
	AccessToken  string
	RefreshToken string
}

// IdentityStore is the credential store the bridge signs users into.
// Implementations must enforce uniqueness on the wallet address so that
// racing CreateUser calls for the same address surface ErrDuplicateUser
// rather than creating two identities.
type IdentityStore interface {
	// FindUserByWalletAddress looks up an identity by normalized (lowercase)
	// wallet address. Returns ErrUserNotFound on a miss.
	FindUserByWalletAddress(ctx context.Context, address string) (*User, error)

	// CreateUser creates a credential record plus its profile row. Returns
	// ErrDuplicateUser if the address or email is already taken.
	CreateUser(ctx context.Context, email, password, walletAddress string) (*User, error)

	// UpdateUserPassword replaces the stored credential for a user.
	UpdateUserPassword(ctx context.Context, userID uuid.UUID, password string) error

	// SignInWithPassword verifies the credential and mints a session.
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
}
