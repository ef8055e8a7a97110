package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/AlexZinkM/spl-deploy/internal/common"

	"github.com/kelseyhightower/envconfig"
	"golang.org/x/term"
)

const (
	CommitmentConfirmed = "confirmed"
	CommitmentFinalized = "finalized"
)

// Config contains all configuration parameters for the application.
// Note: Password is prompted at runtime and stored in memory - use GetWalletPasswordBytes()
type Config struct {
	Port           string `envconfig:"PORT" default:"8080"`
	WalletFilePath string `envconfig:"WALLET_FILE_PATH" required:"true"`
	SolanaRPCURL   string `envconfig:"SOLANA_RPC_URL" default:"https://api.mainnet-beta.solana.com"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`

	// Token creation service fee
	FeeRecipient string `envconfig:"FEE_RECIPIENT" default:"DmgYp2piRKfpKC1edWWCCqYGMhiSmiPy7nTVjZurre4y"`
	FeeSOL       string `envconfig:"FEE_SOL" default:"0.20"`
	FeeLamports  uint64 `ignored:"true"` // FeeSOL in lamports, set by Init

	Commitment          string        `envconfig:"COMMITMENT" default:"confirmed"`
	FreezeAuthority     bool          `envconfig:"FREEZE_AUTHORITY" default:"false"`
	ConfirmTimeout      time.Duration `envconfig:"CONFIRM_TIMEOUT" default:"90s"`
	ConfirmPollInterval time.Duration `envconfig:"CONFIRM_POLL_INTERVAL" default:"2s"`
}

// cfg is the global configuration instance
var cfg *Config

// Init loads configuration from environment variables.
func Init() error {
	c := &Config{}
	if err := envconfig.Process("", c); err != nil {
		return fmt.Errorf("failed to process config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return err
	}
	fee, err := common.SOLToLamports(c.FeeSOL)
	if err != nil {
		return fmt.Errorf("invalid FEE_SOL %q: %w", c.FeeSOL, err)
	}
	c.FeeLamports = fee
	cfg = c
	return nil
}

// Validate checks values envconfig cannot express as tags.
func (c *Config) Validate() error {
	if c.Commitment != CommitmentConfirmed && c.Commitment != CommitmentFinalized {
		return fmt.Errorf("COMMITMENT must be %q or %q, got %q", CommitmentConfirmed, CommitmentFinalized, c.Commitment)
	}
	if c.FeeRecipient == "" {
		return errors.New("FEE_RECIPIENT must not be empty")
	}
	if c.ConfirmTimeout <= 0 {
		return errors.New("CONFIRM_TIMEOUT must be positive")
	}
	if c.ConfirmPollInterval <= 0 {
		return errors.New("CONFIRM_POLL_INTERVAL must be positive")
	}
	return nil
}

// Get returns the global configuration instance.
// Panics if Init() was not called.
func Get() *Config {
	if cfg == nil {
		panic("config not initialized, call Init() first")
	}
	return cfg
}

// GetPort returns port from configuration
func GetPort() string {
	return Get().Port
}

// GetWalletFilePath returns path to the encrypted keyfile
func GetWalletFilePath() string {
	return Get().WalletFilePath
}

// GetSolanaRPCURL returns Solana RPC URL from configuration
func GetSolanaRPCURL() string {
	return Get().SolanaRPCURL
}

var passwordBytes []byte

// PromptForPassword prompts the user for the wallet password in the terminal.
// The password is read without echoing (hidden input) and stored in memory.
// Call this at startup before the server begins handling requests.
func PromptForPassword() error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return errors.New("stdin is not a terminal: run the app interactively to enter password")
	}
	fmt.Fprint(os.Stderr, "Enter wallet password: ")
	defer fmt.Fprintln(os.Stderr)

	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if len(raw) == 0 {
		return errors.New("password cannot be empty")
	}

	SetPassword(raw)
	clear(raw)
	return nil
}

// SetPassword stores a copy of password in memory.
func SetPassword(password []byte) {
	clear(passwordBytes)
	passwordBytes = make([]byte, len(password))
	copy(passwordBytes, password)
}

// GetWalletPasswordBytes returns the password stored in memory (from PromptForPassword).
// Returns an error if the password was not set.
// Caller must zero the returned slice after use for security.
func GetWalletPasswordBytes() ([]byte, error) {
	if len(passwordBytes) == 0 {
		return nil, errors.New("password not set: call PromptForPassword at startup")
	}
	out := make([]byte, len(passwordBytes))
	copy(out, passwordBytes)
	return out, nil
}
