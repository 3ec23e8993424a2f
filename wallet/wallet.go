// Package wallet holds the agent's shared on-chain wallet: its identity,
// the network it is bound to and the blob it is persisted as.
package wallet

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	errorskg "github.com/sweetpotato0/agentgate/errors"
	"golang.org/x/crypto/sha3"
)

const seedBytes = 32

// Config carries the platform credentials and the previously exported
// wallet, if any.
type Config struct {
	APIKeyName       string
	APIKeyPrivateKey string
	NetworkID        string
	// Data is the blob returned by a previous Export. Empty creates a new
	// wallet.
	Data []byte
}

// Wallet is a configured wallet. It is safe for concurrent reads.
type Wallet struct {
	id        string
	seed      []byte
	networkID string
	address   string
	createdAt time.Time
}

// exported is the persisted form of a wallet.
type exported struct {
	WalletID         string    `json:"walletId"`
	Seed             string    `json:"seed"`
	NetworkID        string    `json:"networkId"`
	DefaultAddressID string    `json:"defaultAddressId,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Configure restores the wallet in cfg.Data, or creates a fresh one on
// cfg.NetworkID when there is none. A restored wallet keeps the network it
// was created on.
func Configure(cfg Config) (*Wallet, error) {
	if strings.TrimSpace(cfg.APIKeyName) == "" || strings.TrimSpace(cfg.APIKeyPrivateKey) == "" {
		return nil, fmt.Errorf("wallet API key name and private key are required: %w", errorskg.ErrInvalidInput)
	}
	if len(strings.TrimSpace(string(cfg.Data))) > 0 {
		return restore(cfg)
	}

	network, ok := LookupNetwork(cfg.NetworkID)
	if !ok {
		return nil, fmt.Errorf("network %q is not supported: %w", cfg.NetworkID, errorskg.ErrInvalidInput)
	}

	seed := make([]byte, seedBytes)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("generate wallet seed: %w", err)
	}
	return newWallet(uuid.NewString(), seed, network.Name, time.Now().UTC()), nil
}

func restore(cfg Config) (*Wallet, error) {
	var data exported
	if err := json.Unmarshal(cfg.Data, &data); err != nil {
		return nil, fmt.Errorf("decode wallet data: %w", err)
	}
	if data.WalletID == "" {
		return nil, fmt.Errorf("wallet data has no walletId: %w", errorskg.ErrInvalidInput)
	}
	seed, err := hex.DecodeString(strings.TrimPrefix(data.Seed, "0x"))
	if err != nil || len(seed) != seedBytes {
		return nil, fmt.Errorf("wallet %s has an invalid seed: %w", data.WalletID, errorskg.ErrInvalidInput)
	}

	networkID := data.NetworkID
	if networkID == "" {
		networkID = cfg.NetworkID
	}
	w := newWallet(data.WalletID, seed, networkID, data.CreatedAt)
	if data.DefaultAddressID != "" && !strings.EqualFold(data.DefaultAddressID, w.address) {
		return nil, fmt.Errorf("wallet %s address does not match its seed: %w", data.WalletID, errorskg.ErrInvalidInput)
	}
	return w, nil
}

func newWallet(id string, seed []byte, networkID string, createdAt time.Time) *Wallet {
	return &Wallet{
		id:        id,
		seed:      seed,
		networkID: networkID,
		address:   deriveAddress(seed),
		createdAt: createdAt,
	}
}

// deriveAddress returns the lower-case hex of the last 20 bytes of
// keccak256(seed).
func deriveAddress(seed []byte) string {
	h := sha3.NewLegacyKeccak256()
	h.Write(seed)
	sum := h.Sum(nil)
	return "0x" + hex.EncodeToString(sum[len(sum)-20:])
}

func (w *Wallet) ID() string        { return w.id }
func (w *Wallet) Address() string   { return w.address }
func (w *Wallet) NetworkID() string { return w.networkID }

// Network returns the registry entry of the wallet's network.
func (w *Wallet) Network() (Network, bool) {
	return LookupNetwork(w.networkID)
}

// Export serialises the wallet so that Configure can restore it.
func (w *Wallet) Export() ([]byte, error) {
	return json.Marshal(exported{
		WalletID:         w.id,
		Seed:             hex.EncodeToString(w.seed),
		NetworkID:        w.networkID,
		DefaultAddressID: w.address,
		CreatedAt:        w.createdAt,
	})
}
