// Smoke-checks the wallet-auth endpoint end to end: generates a throwaway
// key, runs the full bridge flow against a live backend, and prints the
// resulting session. Usage:
//
//	BACKEND_URL=http://localhost:8080 go run ./scripts/wallet_auth_check
package main

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/snapnbuy/backend/walletbridge"
)

// localKeyProvider satisfies walletbridge.WalletProvider with an in-memory
// key, standing in for a browser wallet.
type localKeyProvider struct {
	key     *ecdsa.PrivateKey
	address string
}

func newLocalKeyProvider() (*localKeyProvider, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return &localKeyProvider{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey).Hex(),
	}, nil
}

func (p *localKeyProvider) RequestAccounts(ctx context.Context) ([]string, error) {
	return []string{p.address}, nil
}

func (p *localKeyProvider) SignMessage(ctx context.Context, address, message string) (string, error) {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	hash := crypto.Keccak256([]byte(prefixed))

	sig, err := crypto.Sign(hash, p.key)
	if err != nil {
		return "", err
	}
	// Ethereum convention puts V at 27/28
	if sig[64] < 27 {
		sig[64] += 27
	}
	return hexutil.Encode(sig), nil
}

func (p *localKeyProvider) ChainID(ctx context.Context) (string, error) { return "0x1", nil }

func (p *localKeyProvider) SwitchChain(ctx context.Context, chainID string) error { return nil }

func (p *localKeyProvider) AddChain(ctx context.Context, params walletbridge.ChainParams) error {
	return nil
}

func (p *localKeyProvider) OnAccountsChanged(handler func(accounts []string)) {}

func main() {
	backendURL := os.Getenv("BACKEND_URL")
	if backendURL == "" {
		backendURL = "http://localhost:8080"
	}

	provider, err := newLocalKeyProvider()
	if err != nil {
		log.Fatalf("Failed to generate key: %v", err)
	}

	fmt.Println("=== Wallet Auth Check ===")
	fmt.Printf("Backend: %s\n", backendURL)
	fmt.Printf("Throwaway wallet: %s\n\n", provider.address)

	bridge := walletbridge.New(provider, nil, backendURL)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := bridge.Connect(ctx); err != nil {
		log.Fatalf("❌ Authentication failed: %v", err)
	}

	snap := bridge.Snapshot()
	fmt.Println("✅ Authenticated!")
	fmt.Printf("   user_id: %s\n", snap.UserID)
	fmt.Printf("   address: %s\n", snap.Address)

	// Second run must resolve to the same identity.
	if err := bridge.Disconnect(ctx); err != nil {
		log.Fatalf("Disconnect failed: %v", err)
	}
	if err := bridge.Connect(ctx); err != nil {
		log.Fatalf("❌ Re-authentication failed: %v", err)
	}
	if again := bridge.Snapshot(); again.UserID != snap.UserID {
		log.Fatalf("❌ Identity not stable across sign-ins: %s vs %s", snap.UserID, again.UserID)
	}
	fmt.Println("✅ Re-authentication returned the same user id")
}
