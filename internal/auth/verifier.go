/**
 * @description
 * Proof-of-ownership verification for the wallet auth bridge.
 * Two proof mechanisms are accepted:
 *  1. Raw signature: EIP-191 personal_sign over a self-describing login
 *     message, verified by recovering the signer address.
 *  2. Privy identity token: a JWT issued by Privy, verified against
 *     Privy's published key set (JWKS) with issuer/audience checks.
 *
 * @dependencies
 * - github.com/ethereum/go-ethereum/crypto: keccak hashing and ecrecover
 * - github.com/golang-jwt/jwt/v5: JWT parsing
 * - github.com/MicahParks/keyfunc/v2: JWKS fetching
 *
 * @notes
 * - Verification is stateless; the only shared state is the TTL-cached
 *   key set, which is safe for concurrent lazy refresh.
 * - Malformed signatures and recovered-address mismatches both return
 *   ErrInvalidSignature so callers can't use the verifier as an oracle.
 */

package auth

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/golang-jwt/jwt/v5"
	"github.com/snapnbuy/backend/internal/logger"
)

const (
	// PrivyIssuer is the expected `iss` claim of Privy identity tokens.
	PrivyIssuer = "privy.io"

	// jwksTTL bounds how long a fetched key set is reused before a lazy refresh.
	jwksTTL = time.Hour

	// staleMessageWindow is a freshness hint only: older timestamps are
	// logged, not rejected, since each verification is independent.
	staleMessageWindow = 10 * time.Minute
)

// jwksCache lazily fetches an issuer's key set and reuses it until the TTL
// elapses. A race that fetches twice is harmless; the mutex just keeps the
// cached pointer consistent.
type jwksCache struct {
	url   string
	ttl   time.Duration
	now   func() time.Time
	fetch func(url string) (*keyfunc.JWKS, error)

	mu        sync.Mutex
	jwks      *keyfunc.JWKS
	fetchedAt time.Time
}

func newJWKSCache(url string) *jwksCache {
	return &jwksCache{
		url: url,
		ttl: jwksTTL,
		now: time.Now,
		fetch: func(url string) (*keyfunc.JWKS, error) {
			return keyfunc.Get(url, keyfunc.Options{})
		},
	}
}

// Keyfunc satisfies jwt.Keyfunc, refreshing the cached key set on expiry or miss.
func (c *jwksCache) Keyfunc(token *jwt.Token) (interface{}, error) {
	c.mu.Lock()
	if c.jwks == nil || c.now().Sub(c.fetchedAt) > c.ttl {
		jwks, err := c.fetch(c.url)
		if err != nil {
			// Keep any previous key set: a failed refresh shouldn't take
			// down verification while the old keys are still valid.
			if c.jwks == nil {
				c.mu.Unlock()
				return nil, fmt.Errorf("jwks fetch failed: %w", err)
			}
		} else {
			c.jwks = jwks
			c.fetchedAt = c.now()
		}
	}
	jwks := c.jwks
	c.mu.Unlock()

	return jwks.Keyfunc(token)
}

// Verifier validates proof of wallet ownership.
type Verifier struct {
	privyAppID string
	keyfunc    jwt.Keyfunc
	now        func() time.Time
}

// NewVerifier builds a Verifier whose token mode validates against the
// given JWKS URL and Privy app ID.
func NewVerifier(privyAppID, privyJWKSURL string) *Verifier {
	v := &Verifier{
		privyAppID: privyAppID,
		now:        time.Now,
	}
	if privyJWKSURL != "" {
		v.keyfunc = newJWKSCache(privyJWKSURL).Keyfunc
	}
	return v
}

// NewVerifierWithKeyfunc builds a Verifier with an explicit key source.
// Used by tests and by deployments that pin keys locally.
func NewVerifierWithKeyfunc(privyAppID string, kf jwt.Keyfunc) *Verifier {
	return &Verifier{
		privyAppID: privyAppID,
		keyfunc:    kf,
		now:        time.Now,
	}
}

// VerifySignature recovers the signer of an EIP-191 personal_sign message
// and compares it (case-insensitively) to the claimed address. It returns
// the normalized (lowercase) address on success.
func (v *Verifier) VerifySignature(address, message, signature string) (string, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil || len(sig) != 65 {
		return "", ErrInvalidSignature
	}

	// Ethereum convention puts V at 27/28; ecrecover wants 0/1.
	if sig[64] >= 27 {
		sig = append([]byte(nil), sig...)
		sig[64] -= 27
	}

	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	hash := crypto.Keccak256([]byte(prefixed))

	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return "", ErrInvalidSignature
	}

	recovered := strings.ToLower(crypto.PubkeyToAddress(*pub).Hex())
	claimed := strings.ToLower(strings.TrimSpace(address))
	if recovered != claimed {
		return "", ErrInvalidSignature
	}

	v.logStaleMessage(message)
	return recovered, nil
}

// privyClaims is the subset of Privy identity-token claims we read.
// linked_accounts is a JSON-encoded string, not a nested object.
type privyClaims struct {
	jwt.RegisteredClaims
	LinkedAccounts string `json:"linked_accounts"`
}

type privyLinkedAccount struct {
	Type    string `json:"type"`
	Address string `json:"address"`
}

// VerifyPrivyToken validates a Privy identity token and returns the
// normalized wallet address the session should be bound to.
//
// If the token's linked-accounts claim contains the claimed address, that
// address is trusted. If it does not, we fall back to the caller-supplied
// address as long as the token itself verified: the token proves *a* Privy
// user is authenticated, not which of several linked wallets is in use.
// This is a known trust boundary carried over from the original system.
func (v *Verifier) VerifyPrivyToken(tokenStr, address string) (string, error) {
	if v.keyfunc == nil {
		return "", fmt.Errorf("privy key set not configured: %w", ErrInvalidToken)
	}

	token, err := jwt.ParseWithClaims(tokenStr, &privyClaims{}, v.keyfunc,
		jwt.WithIssuer(PrivyIssuer),
		jwt.WithAudience(v.privyAppID),
		jwt.WithValidMethods([]string{"ES256", "RS256"}),
	)
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*privyClaims)
	if !ok {
		return "", ErrInvalidToken
	}

	claimed := strings.ToLower(strings.TrimSpace(address))

	if claims.LinkedAccounts != "" {
		var accounts []privyLinkedAccount
		if err := json.Unmarshal([]byte(claims.LinkedAccounts), &accounts); err == nil {
			for _, acct := range accounts {
				if acct.Type == "wallet" && strings.ToLower(acct.Address) == claimed {
					return claimed, nil
				}
			}
		}
	}

	logger.Info("privy token for user %s verified but %s is not a linked wallet; trusting caller-supplied address", claims.Subject, claimed)
	return claimed, nil
}

// logStaleMessage parses the "Timestamp: <unix ms>" line the client embeds
// in the login message and flags suspiciously old ones.
func (v *Verifier) logStaleMessage(message string) {
	idx := strings.LastIndex(message, "Timestamp: ")
	if idx < 0 {
		return
	}
	ms, err := strconv.ParseInt(strings.TrimSpace(message[idx+len("Timestamp: "):]), 10, 64)
	if err != nil {
		return
	}
	issued := time.UnixMilli(ms)
	if age := v.now().Sub(issued); age > staleMessageWindow {
		logger.Info("login message is %s old; signature accepted but may be replayed from logs", age.Round(time.Second))
	}
}
