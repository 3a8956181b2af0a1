/**
 * @description
 * Access-token issuance and validation for the identity store.
 * Tokens are HS256 JWTs: `sub` carries the user ID, `aud` marks them as
 * session credentials for authenticated API access.
 *
 * @dependencies
 * - github.com/golang-jwt/jwt/v5
 */

package identity

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AudienceAuthenticated is the audience claim stamped on access tokens.
const AudienceAuthenticated = "authenticated"

// ErrInvalidAccessToken is returned for expired, malformed, or
// foreign-audience access tokens.
var ErrInvalidAccessToken = errors.New("invalid access token")

func (s *Store) issueAccessToken(userID uuid.UUID) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		Audience:  jwt.ClaimStrings{AudienceAuthenticated},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		ID:        uuid.NewString(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ParseAccessToken validates an access token and returns the user ID it is
// scoped to. Expired, malformed, or foreign-audience tokens fail.
func (s *Store) ParseAccessToken(tokenStr string) (uuid.UUID, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.jwtSecret, nil
	}, jwt.WithAudience(AudienceAuthenticated))
	if err != nil || !token.Valid {
		return uuid.Nil, ErrInvalidAccessToken
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return uuid.Nil, ErrInvalidAccessToken
	}

	return uuid.Parse(claims.Subject)
}
