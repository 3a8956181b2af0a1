/**
 * @description
 * Wallet authentication endpoint.
 * Accepts either proof shape — a personal_sign signature over the login
 * message, or a Privy identity token — then resolves the identity and
 * issues a session. Stateless per request: Verify → Resolve → Issue.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - backend/internal/auth
 *
 * @notes
 * - Failures never produce partial sessions; each stage short-circuits
 *   to its own status code. Store errors are logged with details but only
 *   safe summaries cross the boundary.
 */

package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/snapnbuy/backend/internal/auth"
	"github.com/snapnbuy/backend/internal/identity"
	"github.com/snapnbuy/backend/internal/logger"
)

type AuthHandler struct {
	Verifier *auth.Verifier
	Resolver *auth.Resolver
	Issuer   *auth.Issuer
	Store    *identity.Store
}

func NewAuthHandler(verifier *auth.Verifier, resolver *auth.Resolver, issuer *auth.Issuer, store *identity.Store) *AuthHandler {
	return &AuthHandler{Verifier: verifier, Resolver: resolver, Issuer: issuer, Store: store}
}

// WalletAuthRequest covers both accepted payload shapes. Presence of
// signature+message selects raw mode; presence of privyToken selects
// token mode.
type WalletAuthRequest struct {
	Address    string `json:"address"`
	Signature  string `json:"signature"`
	Message    string `json:"message"`
	PrivyToken string `json:"privyToken"`
}

// WalletAuthResponse is the success body.
type WalletAuthResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	User         WalletAuthUser `json:"user"`
}

type WalletAuthUser struct {
	ID            string `json:"id"`
	WalletAddress string `json:"wallet_address"`
}

// Authenticate handles wallet sign-in.
// POST /api/v1/auth/wallet
func (h *AuthHandler) Authenticate(c *fiber.Ctx) error {
	var req WalletAuthRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	var (
		address string
		err     error
	)

	switch {
	case req.PrivyToken != "":
		if req.Address == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing address"})
		}
		address, err = h.Verifier.VerifyPrivyToken(req.PrivyToken, req.Address)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid Privy token"})
		}
	default:
		if req.Address == "" || req.Signature == "" || req.Message == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing address, signature or message"})
		}
		address, err = h.Verifier.VerifySignature(req.Address, req.Message, req.Signature)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid signature"})
		}
	}

	userID, err := h.Resolver.Resolve(c.Context(), address)
	if err != nil {
		logger.Error("Authenticate: identity resolution for %s failed: %v", address, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to create user",
			"details": safeDetails(err),
		})
	}

	session, err := h.Issuer.Issue(c.Context(), userID, address)
	if err != nil {
		logger.Error("Authenticate: session issuance for %s failed: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to create session",
			"details": safeDetails(err),
		})
	}

	return c.Status(fiber.StatusOK).JSON(WalletAuthResponse{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		User: WalletAuthUser{
			ID:            userID.String(),
			WalletAddress: address,
		},
	})
}

// RefreshRequest carries the refresh token to rotate.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh rotates a refresh token into a fresh session pair.
// POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := c.BodyParser(&req); err != nil || req.RefreshToken == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing refresh_token"})
	}

	session, err := h.Store.RefreshSession(c.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidRefreshToken) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid refresh token"})
		}
		logger.Error("Refresh: rotation failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to refresh session"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"access_token":  session.AccessToken,
		"refresh_token": session.RefreshToken,
	})
}

// SignOut revokes a refresh token. Idempotent.
// POST /api/v1/auth/signout
func (h *AuthHandler) SignOut(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := c.BodyParser(&req); err != nil || req.RefreshToken == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing refresh_token"})
	}

	if err := h.Store.SignOut(c.Context(), req.RefreshToken); err != nil {
		logger.Error("SignOut: revocation failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to sign out"})
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// safeDetails maps internal failures to the stable summaries that may
// cross the API boundary. Raw store errors and credential material stay
// in the server logs.
func safeDetails(err error) string {
	if errors.Is(err, auth.ErrIdentityStore) {
		return "identity store unavailable"
	}
	return "internal error"
}
