/**
 * @description
 * Client session bridge.
 * Orchestrates wallet connection, login-message signing, the wallet-auth
 * HTTP call, and installation of the returned session. Tracks connection
 * and authentication state for the UI.
 *
 * State machine: Disconnected → Connecting → Authenticating → Authenticated,
 * with Disconnected reachable from any state on explicit disconnect or
 * unrecoverable failure. Only one connect attempt runs at a time.
 *
 * @dependencies
 * - net/http, encoding/json
 */

package walletbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// State is the bridge's connection/auth state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "disconnected"
	}
}

var (
	// ErrNoProvider means no wallet is installed; recoverable — direct the
	// user to install one.
	ErrNoProvider = errors.New("no wallet provider available")
	// ErrConnectionRejected means the user declined the account request.
	ErrConnectionRejected = errors.New("wallet connection rejected")
	// ErrWrongNetwork means the wallet could not be switched to the
	// expected chain.
	ErrWrongNetwork = errors.New("wallet is on the wrong network")
	// ErrSignatureRejected means the user declined to sign the login message.
	ErrSignatureRejected = errors.New("signature request rejected")
	// ErrAuthenticationFailed wraps a server-side auth failure.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrConnectInFlight means another connect attempt is already running.
	ErrConnectInFlight = errors.New("connect already in progress")
)

const defaultRequestTimeout = 30 * time.Second

// Snapshot is the UI-facing view of the bridge state.
type Snapshot struct {
	State           State
	Address         string
	UserID          string
	IsAuthenticated bool
	IsConnecting    bool
}

// Bridge drives wallet authentication against the backend.
type Bridge struct {
	provider   WalletProvider
	store      SessionStore
	endpoint   string // base URL of the backend, e.g. https://api.snapnbuy.app
	chain      *ChainParams
	httpClient *http.Client
	now        func() time.Time

	mu      sync.Mutex
	state   State
	address string
	userID  string
	session *Session

	onChange func(Snapshot)
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithExpectedChain makes Connect enforce (and attempt to switch to) the
// given network before signing.
func WithExpectedChain(params ChainParams) Option {
	return func(b *Bridge) { b.chain = &params }
}

// WithHTTPClient overrides the HTTP client used for backend calls.
func WithHTTPClient(client *http.Client) Option {
	return func(b *Bridge) { b.httpClient = client }
}

// WithStateListener registers a callback invoked after every state change.
func WithStateListener(fn func(Snapshot)) Option {
	return func(b *Bridge) { b.onChange = fn }
}

// New creates a Bridge. provider may be nil when no wallet is installed;
// Connect will then fail with ErrNoProvider.
func New(provider WalletProvider, store SessionStore, endpoint string, opts ...Option) *Bridge {
	b := &Bridge{
		provider:   provider,
		store:      store,
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		now:        time.Now,
		state:      StateDisconnected,
	}
	for _, opt := range opts {
		opt(b)
	}

	if provider != nil {
		provider.OnAccountsChanged(func(accounts []string) {
			if len(accounts) == 0 {
				_ = b.Disconnect(context.Background())
			}
		})
	}

	return b
}

// Snapshot returns the current state for the UI.
func (b *Bridge) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

func (b *Bridge) snapshotLocked() Snapshot {
	return Snapshot{
		State:           b.state,
		Address:         b.address,
		UserID:          b.userID,
		IsAuthenticated: b.state == StateAuthenticated,
		IsConnecting:    b.state == StateConnecting || b.state == StateAuthenticating,
	}
}

func (b *Bridge) setState(state State) {
	b.mu.Lock()
	b.state = state
	snap := b.snapshotLocked()
	onChange := b.onChange
	b.mu.Unlock()

	if onChange != nil {
		onChange(snap)
	}
}

// Restore checks the session store for an existing session and, if one is
// present, returns to Authenticated without re-prompting the wallet.
// Call it once on startup.
func (b *Bridge) Restore(ctx context.Context) error {
	if b.store == nil {
		return nil
	}
	session, err := b.store.Load()
	if err != nil || session == nil {
		return err
	}
	if session.AccessToken == "" {
		return nil
	}

	b.mu.Lock()
	b.session = session
	b.address = strings.ToLower(session.WalletAddress)
	b.userID = session.UserID
	b.mu.Unlock()
	b.setState(StateAuthenticated)
	return nil
}

// Connect runs the full authentication flow. Every failure path leaves the
// bridge cleanly Disconnected so the user can retry from scratch.
func (b *Bridge) Connect(ctx context.Context) error {
	b.mu.Lock()
	if b.state == StateConnecting || b.state == StateAuthenticating {
		b.mu.Unlock()
		return ErrConnectInFlight
	}
	b.state = StateConnecting
	b.mu.Unlock()

	if b.provider == nil {
		b.reset()
		return ErrNoProvider
	}

	accounts, err := b.provider.RequestAccounts(ctx)
	if err != nil || len(accounts) == 0 {
		b.reset()
		return ErrConnectionRejected
	}
	address := accounts[0]

	if b.chain != nil {
		if err := b.ensureChain(ctx); err != nil {
			b.reset()
			return err
		}
	}

	message := LoginMessage(address, b.now())
	signature, err := b.provider.SignMessage(ctx, address, message)
	if err != nil {
		b.reset()
		return ErrSignatureRejected
	}

	b.setState(StateAuthenticating)

	session, err := b.authenticate(ctx, address, message, signature)
	if err != nil {
		b.reset()
		return err
	}

	if b.store != nil {
		if err := b.store.Save(*session); err != nil {
			b.reset()
			return fmt.Errorf("session install failed: %w", err)
		}
	}

	b.mu.Lock()
	b.session = session
	b.address = strings.ToLower(session.WalletAddress)
	b.userID = session.UserID
	b.mu.Unlock()
	b.setState(StateAuthenticated)
	return nil
}

// Disconnect revokes the session (best effort), clears the store, and
// returns to Disconnected.
func (b *Bridge) Disconnect(ctx context.Context) error {
	b.mu.Lock()
	session := b.session
	b.mu.Unlock()

	if session != nil && session.RefreshToken != "" {
		// Best effort: a failed revocation still clears local state.
		_ = b.signOut(ctx, session.RefreshToken)
	}
	if b.store != nil {
		_ = b.store.Clear()
	}

	b.reset()
	return nil
}

func (b *Bridge) reset() {
	b.mu.Lock()
	b.session = nil
	b.address = ""
	b.userID = ""
	b.mu.Unlock()
	b.setState(StateDisconnected)
}

func (b *Bridge) ensureChain(ctx context.Context) error {
	current, err := b.provider.ChainID(ctx)
	if err == nil && strings.EqualFold(current, b.chain.ChainID) {
		return nil
	}

	if err := b.provider.SwitchChain(ctx, b.chain.ChainID); err == nil {
		return nil
	}

	// The wallet may not know the network yet; try adding it, then switch.
	if err := b.provider.AddChain(ctx, *b.chain); err != nil {
		return ErrWrongNetwork
	}
	if err := b.provider.SwitchChain(ctx, b.chain.ChainID); err != nil {
		return ErrWrongNetwork
	}
	return nil
}

// LoginMessage builds the self-describing message the wallet signs. It
// embeds the address and a millisecond timestamp as a freshness hint.
func LoginMessage(address string, at time.Time) string {
	return fmt.Sprintf("Sign in to Snap'n'Buy\n\nWallet: %s\nTimestamp: %d", address, at.UnixMilli())
}

type walletAuthRequest struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
	Message   string `json:"message"`
}

type walletAuthResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         struct {
		ID            string `json:"id"`
		WalletAddress string `json:"wallet_address"`
	} `json:"user"`
	Error string `json:"error"`
}

func (b *Bridge) authenticate(ctx context.Context, address, message, signature string) (*Session, error) {
	payload, err := json.Marshal(walletAuthRequest{
		Address:   address,
		Signature: signature,
		Message:   message,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint+"/api/v1/auth/wallet", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}

	var decoded walletAuthResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("%w: malformed response", ErrAuthenticationFailed)
	}

	if resp.StatusCode != http.StatusOK || decoded.AccessToken == "" {
		reason := decoded.Error
		if reason == "" {
			reason = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %s", ErrAuthenticationFailed, reason)
	}

	return &Session{
		AccessToken:   decoded.AccessToken,
		RefreshToken:  decoded.RefreshToken,
		UserID:        decoded.User.ID,
		WalletAddress: decoded.User.WalletAddress,
	}, nil
}

func (b *Bridge) signOut(ctx context.Context, refreshToken string) error {
	payload, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint+"/api/v1/auth/signout", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}
