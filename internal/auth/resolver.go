/**
 * @description
 * Identity resolution: maps a verified wallet address to a stable user ID,
 * creating the identity record on first sight.
 *
 * @notes
 * - Resolution is idempotent under concurrency. The store's unique index on
 *   wallet_address is the arbiter: a duplicate-key failure means another
 *   request just created the identity, so we re-read instead of erroring.
 */

package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/snapnbuy/backend/internal/logger"
)

// Resolver maps verified wallet addresses to user identities.
type Resolver struct {
	store  IdentityStore
	secret string
}

// NewResolver creates a Resolver backed by the given identity store. The
// secret feeds the synthetic credential a new record is created with.
func NewResolver(store IdentityStore, serviceRoleSecret string) *Resolver {
	return &Resolver{store: store, secret: serviceRoleSecret}
}

// Resolve returns the user ID for a normalized wallet address, creating the
// backing identity on first sight.
func (r *Resolver) Resolve(ctx context.Context, address string) (uuid.UUID, error) {
	addr := normalizeAddress(address)

	user, err := r.store.FindUserByWalletAddress(ctx, addr)
	if err == nil {
		return user.ID, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return uuid.Nil, fmt.Errorf("lookup for %s failed: %w", addr, ErrIdentityStore)
	}

	created, err := r.store.CreateUser(ctx, emailForAddress(addr), syntheticCredential(addr, r.secret), addr)
	if err == nil {
		logger.Info("created identity %s for wallet %s", created.ID, addr)
		return created.ID, nil
	}

	if errors.Is(err, ErrDuplicateUser) {
		// A concurrent request won the race. Their record is ours too.
		user, err = r.store.FindUserByWalletAddress(ctx, addr)
		if err != nil {
			return uuid.Nil, fmt.Errorf("re-read after duplicate create for %s failed: %w", addr, ErrIdentityStore)
		}
		return user.ID, nil
	}

	logger.Error("identity creation for wallet %s failed: %v", addr, err)
	return uuid.Nil, fmt.Errorf("create user failed: %w", ErrIdentityStore)
}
