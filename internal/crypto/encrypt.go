package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/AlexZinkM/spl-deploy/internal/model"

	"golang.org/x/crypto/scrypt"
)

// KeyFileExt is the required extension of encrypted keyfiles
const KeyFileExt = ".wallet"

const (
	saltLen  = 32
	nonceLen = 12
)

// scrypt parameters. N=2^18 costs ~256MB RAM and 0.5-2s per derivation.
// Vars, not consts, so tests can run with a cheaper N.
var (
	scryptN      = 1 << 18
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
)

// ErrKeyFileExists is returned when the target keyfile already has content
var ErrKeyFileExists = errors.New("keyfile is not empty")

// EncryptWallet encrypts wallet data and writes it to a keyfile.
// password must be []byte for security (caller should zero it after use)
func EncryptWallet(filePath, network, address, qrCode string, walletData *model.WalletData, password []byte) error {
	if filepath.Ext(filePath) != KeyFileExt {
		return fmt.Errorf("file must have %s extension", KeyFileExt)
	}

	if fileInfo, err := os.Stat(filePath); err == nil && fileInfo.Size() > 0 {
		return ErrKeyFileExists
	}

	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}

	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	aesGCM, err := newGCM(password, salt)
	if err != nil {
		return err
	}

	plaintext, err := json.Marshal(walletData)
	if err != nil {
		return fmt.Errorf("failed to marshal wallet data: %w", err)
	}
	defer clear(plaintext) // wipe plaintext bytes from memory

	keyFile := model.KeyFile{
		Network:    network,
		Address:    address,
		QR:         qrCode,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		CipherText: base64.StdEncoding.EncodeToString(aesGCM.Seal(nil, nonce, plaintext, nil)),
	}

	fileData, err := json.MarshalIndent(keyFile, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal keyfile: %w", err)
	}

	// Add UTF-8 BOM for proper display in Windows
	fileData = append([]byte{0xEF, 0xBB, 0xBF}, fileData...)

	if err := os.WriteFile(filePath, fileData, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// newGCM derives the AES-256 key from password and salt and wraps it in GCM
func newGCM(password, salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key(password, salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	defer clear(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aesGCM, nil
}
