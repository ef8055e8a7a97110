package crypto

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/AlexZinkM/spl-deploy/internal/model"
)

var (
	ErrKeyFileMissing  = errors.New("keyfile does not exist")
	ErrInvalidPassword = errors.New("invalid password")
)

// DecryptWallet reads and decrypts a keyfile
// password must be []byte for security (caller should zero it after use)
func DecryptWallet(filePath string, password []byte) (*model.KeyFile, *model.WalletData, error) {
	keyFile, err := readKeyFile(filePath)
	if err != nil {
		return nil, nil, err
	}

	salt, err := base64.StdEncoding.DecodeString(keyFile.Salt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode salt: %w", err)
	}

	nonce, err := base64.StdEncoding.DecodeString(keyFile.Nonce)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode nonce: %w", err)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(keyFile.CipherText)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	aesGCM, err := newGCM(password, salt)
	if err != nil {
		return nil, nil, err
	}

	plaintext, err := aesGCM.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, nil, ErrInvalidPassword
	}
	defer clear(plaintext) // wipe decrypted bytes from memory

	var walletData model.WalletData
	if err := json.Unmarshal(plaintext, &walletData); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal wallet data: %w", err)
	}

	return keyFile, &walletData, nil
}

// ReadWalletAddress reads only the address from a keyfile (without decryption)
func ReadWalletAddress(filePath string) (string, error) {
	keyFile, err := readKeyFile(filePath)
	if err != nil {
		return "", err
	}
	return keyFile.Address, nil
}

func readKeyFile(filePath string) (*model.KeyFile, error) {
	fileData, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrKeyFileMissing
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(fileData) == 0 {
		return nil, fmt.Errorf("keyfile is empty: %w", ErrKeyFileMissing)
	}

	// Skip UTF-8 BOM if present
	fileData = bytes.TrimPrefix(fileData, []byte{0xEF, 0xBB, 0xBF})

	var keyFile model.KeyFile
	if err := json.Unmarshal(fileData, &keyFile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal keyfile: %w", err)
	}
	return &keyFile, nil
}
