package wallet

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/AlexZinkM/spl-deploy/internal/crypto"
	"github.com/AlexZinkM/spl-deploy/internal/model"

	"github.com/gagliardetto/solana-go"
	"github.com/skip2/go-qrcode"
)

const networkSolana = "solana"

// IsFileExistsError checks if err means the keyfile already has content
func IsFileExistsError(err error) bool {
	return errors.Is(err, crypto.ErrKeyFileExists)
}

// Generate creates a new Solana keypair and saves it to an encrypted keyfile.
// Returns the generated public address on success.
// password must be []byte for security (caller should zero it after use)
func Generate(filePath string, password []byte) (address string, err error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return "", fmt.Errorf("failed to generate keypair: %w", err)
	}
	defer clear(key)

	return save(filePath, key, password)
}

// ImportKeypair encrypts an existing solana-keygen JSON keypair into a keyfile.
func ImportKeypair(filePath, keygenPath string, password []byte) (address string, err error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(keygenPath)
	if err != nil {
		return "", fmt.Errorf("failed to read keypair: %w", err)
	}
	defer clear(key)

	return save(filePath, key, password)
}

func save(filePath string, key solana.PrivateKey, password []byte) (string, error) {
	address := key.PublicKey().String()

	qrCode, err := generateQRCode(address)
	if err != nil {
		return "", fmt.Errorf("failed to generate QR code: %w", err)
	}

	// PrivateKey stored as []byte (will be base64 encoded in JSON)
	walletData := &model.WalletData{
		PrivateKey: key,
		CreatedAt:  time.Now().Format(time.RFC3339),
	}

	if err := crypto.EncryptWallet(filePath, networkSolana, address, qrCode, walletData, password); err != nil {
		return "", fmt.Errorf("failed to encrypt wallet: %w", err)
	}
	return address, nil
}

// generateQRCode generates QR code of address in base64
func generateQRCode(address string) (string, error) {
	qr, err := qrcode.New(address, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("failed to create QR code: %w", err)
	}

	png, err := qr.PNG(256)
	if err != nil {
		return "", fmt.Errorf("failed to generate PNG: %w", err)
	}

	return base64.StdEncoding.EncodeToString(png), nil
}
