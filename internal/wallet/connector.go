package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/AlexZinkM/spl-deploy/internal/crypto"
	"github.com/AlexZinkM/spl-deploy/internal/workflow"

	"github.com/gagliardetto/solana-go"
)

// Sender submits signed transactions to the ledger
type Sender interface {
	Send(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

// Connector holds the decrypted wallet key while connected.
// It is safe for concurrent use.
type Connector struct {
	filePath string
	sender   Sender

	mu  sync.RWMutex
	key solana.PrivateKey // nil when disconnected
}

var _ workflow.Wallet = (*Connector)(nil)

// NewConnector creates a disconnected connector for the keyfile at filePath
func NewConnector(filePath string, sender Sender) *Connector {
	return &Connector{filePath: filePath, sender: sender}
}

// Connect decrypts the keyfile and keeps the key in memory.
// password must be []byte for security (caller should zero it after use)
func (c *Connector) Connect(password []byte) (solana.PublicKey, error) {
	keyFile, walletData, err := crypto.DecryptWallet(c.filePath, password)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to decrypt wallet: %w", err)
	}
	defer clear(walletData.PrivateKey)

	// Verify private key length (we store full 64-byte key)
	if len(walletData.PrivateKey) != 64 {
		return solana.PublicKey{}, errors.New("invalid private key length")
	}

	key := make(solana.PrivateKey, len(walletData.PrivateKey))
	copy(key, walletData.PrivateKey)

	// Verify wallet matches address stored next to the ciphertext
	if key.PublicKey().String() != keyFile.Address {
		clear(key)
		return solana.PublicKey{}, errors.New("private key does not match keyfile address")
	}

	c.connect(key)
	return key.PublicKey(), nil
}

func (c *Connector) connect(key solana.PrivateKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.key)
	c.key = key
}

// Disconnect wipes the key from memory
func (c *Connector) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.key)
	c.key = nil
}

// PublicKey returns the connected wallet address
func (c *Connector) PublicKey() (solana.PublicKey, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.key == nil {
		return solana.PublicKey{}, false
	}
	return c.key.PublicKey(), true
}

// SignAndSubmit signs tx with the wallet key and extraSigners, then sends it
func (c *Connector) SignAndSubmit(ctx context.Context, tx *solana.Transaction, extraSigners ...solana.PrivateKey) (solana.Signature, error) {
	if err := c.sign(tx, extraSigners); err != nil {
		return solana.Signature{}, err
	}
	return c.sender.Send(ctx, tx)
}

func (c *Connector) sign(tx *solana.Transaction, extraSigners []solana.PrivateKey) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.key == nil {
		return workflow.ErrWalletNotConnected
	}

	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if c.key.PublicKey().Equals(key) {
			return &c.key
		}
		for i := range extraSigners {
			if extraSigners[i].PublicKey().Equals(key) {
				return &extraSigners[i]
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}
	return nil
}
