/**
 * @description
 * Session issuance: turns a resolved identity into a fresh access/refresh
 * token pair via the backing store's password sign-in.
 *
 * @notes
 * - The per-user credential is deterministic, derived from the wallet
 *   address and a server-side secret. It is re-synced on every call so
 *   sign-in never depends on a stored secret surviving between calls or
 *   across secret rotations.
 * - The credential value must never appear in responses or logs.
 */

package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/snapnbuy/backend/internal/logger"
)

// Issuer produces sessions for resolved identities.
type Issuer struct {
	store  IdentityStore
	secret string
}

// NewIssuer creates an Issuer. serviceRoleSecret is the key the synthetic
// per-user credential is derived from.
func NewIssuer(store IdentityStore, serviceRoleSecret string) *Issuer {
	return &Issuer{store: store, secret: serviceRoleSecret}
}

// Issue re-syncs the user's synthetic credential and signs in to mint a
// fresh session. Repeated calls for the same address yield distinct token
// pairs bound to the same user.
func (i *Issuer) Issue(ctx context.Context, userID uuid.UUID, address string) (*Session, error) {
	addr := normalizeAddress(address)
	password := syntheticCredential(addr, i.secret)

	if err := i.store.UpdateUserPassword(ctx, userID, password); err != nil {
		logger.Error("credential sync for user %s failed: %v", userID, err)
		return nil, fmt.Errorf("credential sync failed: %w", ErrIdentityStore)
	}

	session, err := i.store.SignInWithPassword(ctx, emailForAddress(addr), password)
	if err != nil {
		logger.Error("sign-in for user %s failed: %v", userID, err)
		return nil, fmt.Errorf("sign-in failed: %w", ErrIdentityStore)
	}

	return session, nil
}

// syntheticCredential derives the deterministic per-wallet password:
// HMAC-SHA256 keyed by the server secret. Infeasible to derive without the
// secret, stable across calls, and never persisted in plaintext.
func syntheticCredential(address, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("wallet-credential:" + normalizeAddress(address)))
	return hex.EncodeToString(mac.Sum(nil))
}

// emailForAddress builds the synthetic email alias a wallet identity is
// registered under in the credential store.
func emailForAddress(address string) string {
	return normalizeAddress(address) + "@wallet.snapnbuy"
}

// normalizeAddress lowercases and trims a wallet address. Every lookup and
// write in the bridge goes through this.
func normalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
