/**
 * @description
 * Wallet capability interfaces consumed by the session bridge.
 * The injected-provider surface (MetaMask-style) is modeled as an explicit
 * interface so test doubles and embedded-wallet SDKs can substitute it.
 */

package walletbridge

import "context"

// ChainParams describes the network the wallet is expected to be on.
type ChainParams struct {
	ChainID           string   `json:"chainId"` // hex, e.g. "0xB636"
	ChainName         string   `json:"chainName"`
	RPCURLs           []string `json:"rpcUrls"`
	BlockExplorerURLs []string `json:"blockExplorerUrls"`
}

// WalletProvider is the capability surface the bridge needs from a wallet.
// Calls may suspend while the wallet UI awaits user approval; rejection is
// reported as an error.
type WalletProvider interface {
	// RequestAccounts asks the wallet for account access.
	RequestAccounts(ctx context.Context) ([]string, error)

	// SignMessage requests an EIP-191 personal_sign signature over message
	// from the given account.
	SignMessage(ctx context.Context, address, message string) (string, error)

	// ChainID reports the wallet's current chain (hex string).
	ChainID(ctx context.Context) (string, error)

	// SwitchChain asks the wallet to move to the given chain.
	SwitchChain(ctx context.Context, chainID string) error

	// AddChain registers a network the wallet doesn't know yet.
	AddChain(ctx context.Context, params ChainParams) error

	// OnAccountsChanged registers a handler for external account switches.
	// An empty account list means the user disconnected the site.
	OnAccountsChanged(handler func(accounts []string))
}

// Session is the credential pair the bridge installs after authentication.
type Session struct {
	AccessToken   string `json:"access_token"`
	RefreshToken  string `json:"refresh_token"`
	UserID        string `json:"user_id"`
	WalletAddress string `json:"wallet_address"`
}

// SessionStore persists the session across reloads (localStorage-style).
type SessionStore interface {
	Save(session Session) error
	Load() (*Session, error) // (nil, nil) when no session is stored
	Clear() error
}
