package handlers

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/snapnbuy/backend/internal/auth"
	"github.com/snapnbuy/backend/internal/config"
	"github.com/snapnbuy/backend/internal/identity"
)

const testAppID = "snapnbuy-test-app"

// memoryIdentityStore is an in-memory auth.IdentityStore for handler tests.
type memoryIdentityStore struct {
	mu        sync.Mutex
	byWallet  map[string]*auth.User
	passwords map[uuid.UUID]string
	sessionN  int

	createErr error
	signInErr error
}

func newMemoryIdentityStore() *memoryIdentityStore {
	return &memoryIdentityStore{
		byWallet:  make(map[string]*auth.User),
		passwords: make(map[uuid.UUID]string),
	}
}

func (m *memoryIdentityStore) FindUserByWalletAddress(ctx context.Context, address string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.byWallet[address]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (m *memoryIdentityStore) CreateUser(ctx context.Context, email, password, walletAddress string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	if _, exists := m.byWallet[walletAddress]; exists {
		return nil, auth.ErrDuplicateUser
	}
	user := &auth.User{ID: uuid.New(), Email: email, WalletAddress: walletAddress}
	m.byWallet[walletAddress] = user
	m.passwords[user.ID] = password
	copied := *user
	return &copied, nil
}

func (m *memoryIdentityStore) UpdateUserPassword(ctx context.Context, userID uuid.UUID, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.passwords[userID] = password
	return nil
}

func (m *memoryIdentityStore) SignInWithPassword(ctx context.Context, email, password string) (*auth.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.signInErr != nil {
		return nil, m.signInErr
	}
	for _, user := range m.byWallet {
		if user.Email == email && m.passwords[user.ID] == password {
			m.sessionN++
			return &auth.Session{
				AccessToken:  fmt.Sprintf("access-%d", m.sessionN),
				RefreshToken: fmt.Sprintf("refresh-%d", m.sessionN),
			}, nil
		}
	}
	return nil, auth.ErrUserNotFound
}

func newWalletAuthApp(store *memoryIdentityStore, verifier *auth.Verifier) *fiber.App {
	app := fiber.New()
	handler := NewAuthHandler(
		verifier,
		auth.NewResolver(store, "service-role-secret"),
		auth.NewIssuer(store, "service-role-secret"),
		nil,
	)
	app.Post("/api/v1/auth/wallet", handler.Authenticate)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, payload interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil && resp.StatusCode != http.StatusNoContent {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return resp, decoded
}

func signWalletMessage(t *testing.T, key *ecdsa.PrivateKey, message string) string {
	t.Helper()

	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	sig, err := ethcrypto.Sign(ethcrypto.Keccak256([]byte(prefixed)), key)
	if err != nil {
		t.Fatalf("failed to sign message: %v", err)
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return hexutil.Encode(sig)
}

func TestAuthenticateIssuesSessionForValidSignature(t *testing.T) {
	store := newMemoryIdentityStore()
	app := newWalletAuthApp(store, auth.NewVerifier(testAppID, ""))

	key, _ := ethcrypto.GenerateKey()
	address := ethcrypto.PubkeyToAddress(key.PublicKey).Hex() // checksummed, mixed case
	message := fmt.Sprintf("Sign in to Snap'n'Buy\n\nWallet: %s\nTimestamp: %d", address, time.Now().UnixMilli())

	resp, body := postJSON(t, app, "/api/v1/auth/wallet", WalletAuthRequest{
		Address:   address,
		Signature: signWalletMessage(t, key, message),
		Message:   message,
	})

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %v)", resp.StatusCode, body)
	}
	if access, _ := body["access_token"].(string); access == "" {
		t.Error("response is missing the access token")
	}
	if refresh, _ := body["refresh_token"].(string); refresh == "" {
		t.Error("response is missing the refresh token")
	}

	user, ok := body["user"].(map[string]interface{})
	if !ok {
		t.Fatalf("response has no user object: %v", body)
	}
	if got := user["wallet_address"]; got != strings.ToLower(address) {
		t.Errorf("wallet_address = %v, want lowercase %s", got, strings.ToLower(address))
	}
	if _, err := uuid.Parse(user["id"].(string)); err != nil {
		t.Errorf("user.id %v is not a UUID: %v", user["id"], err)
	}
}

func TestAuthenticateReturnsStableIdentityAcrossSignIns(t *testing.T) {
	store := newMemoryIdentityStore()
	app := newWalletAuthApp(store, auth.NewVerifier(testAppID, ""))

	key, _ := ethcrypto.GenerateKey()
	address := ethcrypto.PubkeyToAddress(key.PublicKey).Hex()

	signIn := func(claimed string) (string, string) {
		message := fmt.Sprintf("Sign in to Snap'n'Buy\n\nWallet: %s\nTimestamp: %d", claimed, time.Now().UnixMilli())
		resp, body := postJSON(t, app, "/api/v1/auth/wallet", WalletAuthRequest{
			Address:   claimed,
			Signature: signWalletMessage(t, key, message),
			Message:   message,
		})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200 (body: %v)", resp.StatusCode, body)
		}
		user := body["user"].(map[string]interface{})
		return user["id"].(string), body["access_token"].(string)
	}

	firstID, firstToken := signIn(address)
	secondID, secondToken := signIn(strings.ToLower(address))

	if firstID != secondID {
		t.Errorf("user id changed across sign-ins: %s vs %s", firstID, secondID)
	}
	if firstToken == secondToken {
		t.Error("access token was reused across sign-ins")
	}
	if n := len(store.byWallet); n != 1 {
		t.Errorf("store holds %d identities, want 1", n)
	}
}

func TestAuthenticateRejectsInvalidSignature(t *testing.T) {
	app := newWalletAuthApp(newMemoryIdentityStore(), auth.NewVerifier(testAppID, ""))

	key, _ := ethcrypto.GenerateKey()
	otherKey, _ := ethcrypto.GenerateKey()
	address := ethcrypto.PubkeyToAddress(key.PublicKey).Hex()
	message := "Sign in to Snap'n'Buy\n\nWallet: " + address + "\nTimestamp: 1700000000000"

	resp, body := postJSON(t, app, "/api/v1/auth/wallet", WalletAuthRequest{
		Address:   address,
		Signature: signWalletMessage(t, otherKey, message),
		Message:   message,
	})

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if body["error"] != "Invalid signature" {
		t.Errorf("error = %v, want %q", body["error"], "Invalid signature")
	}
	if _, leaked := body["access_token"]; leaked {
		t.Error("rejection response carries an access token")
	}
}

func TestAuthenticateRejectsMissingFields(t *testing.T) {
	app := newWalletAuthApp(newMemoryIdentityStore(), auth.NewVerifier(testAppID, ""))

	cases := []WalletAuthRequest{
		{},
		{Address: "0xabc", Signature: "0xsig"}, // no message
		{Address: "0xabc", Message: "msg"},     // no signature
		{Signature: "0xsig", Message: "msg"},   // no address
		{PrivyToken: "header.payload.sig"},     // token mode, no address
	}
	for i, req := range cases {
		resp, _ := postJSON(t, app, "/api/v1/auth/wallet", req)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("case %d: status = %d, want 400", i, resp.StatusCode)
		}
	}
}

func TestAuthenticateAcceptsPrivyToken(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate EC key: %v", err)
	}
	verifier := auth.NewVerifierWithKeyfunc(testAppID, func(token *jwt.Token) (interface{}, error) {
		return &key.PublicKey, nil
	})

	store := newMemoryIdentityStore()
	app := newWalletAuthApp(store, verifier)

	const wallet = "0xAbCd000000000000000000000000000000000001"
	linked, _ := json.Marshal([]map[string]string{{"type": "wallet", "address": wallet}})
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"iss":             auth.PrivyIssuer,
		"aud":             testAppID,
		"sub":             "did:privy:user-1",
		"iat":             now.Unix(),
		"exp":             now.Add(time.Hour).Unix(),
		"linked_accounts": string(linked),
	})
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	resp, body := postJSON(t, app, "/api/v1/auth/wallet", WalletAuthRequest{
		Address:    wallet,
		PrivyToken: signed,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %v)", resp.StatusCode, body)
	}
	user := body["user"].(map[string]interface{})
	if got := user["wallet_address"]; got != strings.ToLower(wallet) {
		t.Errorf("wallet_address = %v, want %s", got, strings.ToLower(wallet))
	}
}

func TestAuthenticateRejectsExpiredPrivyToken(t *testing.T) {
	key, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	verifier := auth.NewVerifierWithKeyfunc(testAppID, func(token *jwt.Token) (interface{}, error) {
		return &key.PublicKey, nil
	})
	app := newWalletAuthApp(newMemoryIdentityStore(), verifier)

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"iss": auth.PrivyIssuer,
		"aud": testAppID,
		"sub": "did:privy:user-1",
		"iat": now.Add(-2 * time.Hour).Unix(),
		"exp": now.Add(-time.Hour).Unix(),
	})
	signed, _ := token.SignedString(key)

	resp, body := postJSON(t, app, "/api/v1/auth/wallet", WalletAuthRequest{
		Address:    "0xabc",
		PrivyToken: signed,
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if body["error"] != "Invalid Privy token" {
		t.Errorf("error = %v, want %q", body["error"], "Invalid Privy token")
	}
}

func TestAuthenticateReportsStoreFailuresSafely(t *testing.T) {
	key, _ := ethcrypto.GenerateKey()
	address := ethcrypto.PubkeyToAddress(key.PublicKey).Hex()
	message := "Sign in to Snap'n'Buy\n\nWallet: " + address + "\nTimestamp: 1700000000000"
	signature := signWalletMessage(t, key, message)

	req := WalletAuthRequest{Address: address, Signature: signature, Message: message}

	createBroken := newMemoryIdentityStore()
	createBroken.createErr = errors.New("pq: connection refused to db-internal.example:5432")
	resp, body := postJSON(t, newWalletAuthApp(createBroken, auth.NewVerifier(testAppID, "")), "/api/v1/auth/wallet", req)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("create failure: status = %d, want 500", resp.StatusCode)
	}
	if body["error"] != "Failed to create user" {
		t.Errorf("create failure: error = %v, want %q", body["error"], "Failed to create user")
	}
	if details, _ := body["details"].(string); strings.Contains(details, "db-internal") {
		t.Errorf("create failure leaked internals: %q", details)
	}

	signInBroken := newMemoryIdentityStore()
	signInBroken.signInErr = errors.New("pq: connection refused")
	resp, body = postJSON(t, newWalletAuthApp(signInBroken, auth.NewVerifier(testAppID, "")), "/api/v1/auth/wallet", req)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("sign-in failure: status = %d, want 500", resp.StatusCode)
	}
	if body["error"] != "Failed to create session" {
		t.Errorf("sign-in failure: error = %v, want %q", body["error"], "Failed to create session")
	}
	if _, leaked := body["access_token"]; leaked {
		t.Error("failure response carries an access token")
	}
}

// --- refresh / signout against the Redis-backed store ---

func newRefreshTestApp(t *testing.T) (*fiber.App, *identity.Store, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cfg := &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:       "test-jwt-secret",
			AccessTokenTTL:  time.Hour,
			RefreshTokenTTL: 30 * 24 * time.Hour,
		},
	}
	store := identity.NewStore(nil, rdb, cfg)

	handler := &AuthHandler{Store: store}
	app := fiber.New()
	app.Post("/api/v1/auth/refresh", handler.Refresh)
	app.Post("/api/v1/auth/signout", handler.SignOut)
	return app, store, mr
}

func TestRefreshRotatesToken(t *testing.T) {
	app, store, _ := newRefreshTestApp(t)

	userID := uuid.New()
	seeded := uuid.NewString()
	if err := store.Redis.Set(context.Background(), "auth:refresh:"+seeded, userID.String(), time.Hour).Err(); err != nil {
		t.Fatalf("failed to seed refresh token: %v", err)
	}

	resp, body := postJSON(t, app, "/api/v1/auth/refresh", RefreshRequest{RefreshToken: seeded})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %v)", resp.StatusCode, body)
	}
	rotated, _ := body["refresh_token"].(string)
	if rotated == "" || rotated == seeded {
		t.Fatalf("refresh_token = %q, want a fresh token", rotated)
	}
	if access, _ := body["access_token"].(string); access == "" {
		t.Error("rotation returned no access token")
	}

	// The consumed token must be dead.
	resp, _ = postJSON(t, app, "/api/v1/auth/refresh", RefreshRequest{RefreshToken: seeded})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("replayed token: status = %d, want 401", resp.StatusCode)
	}

	// The rotated token must work.
	resp, _ = postJSON(t, app, "/api/v1/auth/refresh", RefreshRequest{RefreshToken: rotated})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("rotated token: status = %d, want 200", resp.StatusCode)
	}
}

func TestRefreshRejectsUnknownToken(t *testing.T) {
	app, _, _ := newRefreshTestApp(t)

	resp, body := postJSON(t, app, "/api/v1/auth/refresh", RefreshRequest{RefreshToken: uuid.NewString()})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if body["error"] != "Invalid refresh token" {
		t.Errorf("error = %v, want %q", body["error"], "Invalid refresh token")
	}
}

func TestSignOutRevokesToken(t *testing.T) {
	app, store, mr := newRefreshTestApp(t)

	token := uuid.NewString()
	if err := store.Redis.Set(context.Background(), "auth:refresh:"+token, uuid.NewString(), time.Hour).Err(); err != nil {
		t.Fatalf("failed to seed refresh token: %v", err)
	}

	resp, _ := postJSON(t, app, "/api/v1/auth/signout", RefreshRequest{RefreshToken: token})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}
	if mr.Exists("auth:refresh:" + token) {
		t.Error("refresh token still present after signout")
	}

	// Revoking again is a no-op, not an error.
	resp, _ = postJSON(t, app, "/api/v1/auth/signout", RefreshRequest{RefreshToken: token})
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("repeat signout: status = %d, want 204", resp.StatusCode)
	}
}
