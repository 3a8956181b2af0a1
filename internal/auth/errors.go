package auth

import "errors"

var (
	// ErrMissingField means the request lacked required proof fields.
	ErrMissingField = errors.New("missing required field")
	// ErrInvalidSignature covers both malformed signature bytes and a
	// recovered address that doesn't match the claimed one. The two cases
	// are deliberately indistinguishable to callers.
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrInvalidToken covers every Privy token failure: bad signature,
	// wrong issuer or audience, expiry, or an unreachable key set.
	ErrInvalidToken = errors.New("invalid token")
	// ErrIdentityStore means the backing store failed for reasons
	// unrelated to the caller's input.
	ErrIdentityStore = errors.New("identity store failure")

	// ErrUserNotFound is returned by IdentityStore lookups on a miss.
	ErrUserNotFound = errors.New("user not found")
	// ErrDuplicateUser is returned by IdentityStore.CreateUser when the
	// wallet address (or email) already exists.
	ErrDuplicateUser = errors.New("user already exists")
)
