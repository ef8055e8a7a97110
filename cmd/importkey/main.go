// Import a solana-keygen JSON keypair into the encrypted keyfile format.
// Usage: WALLET_FILE_PATH=./token.wallet go run ./cmd/importkey ~/.config/solana/id.json
package main

import (
	"os"

	"github.com/AlexZinkM/spl-deploy/internal/config"
	"github.com/AlexZinkM/spl-deploy/internal/observability"
	"github.com/AlexZinkM/spl-deploy/internal/wallet"
)

func main() {
	if err := config.Init(); err != nil {
		bootLogger := observability.InitLogger("importkey", "info")
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}
	cfg := config.Get()
	logger := observability.InitLogger("importkey", cfg.LogLevel)

	if len(os.Args) != 2 {
		logger.Fatal().Msg("usage: importkey <keygen-file>")
	}

	if err := config.PromptForPassword(); err != nil {
		logger.Fatal().Err(err).Msg("failed to read wallet password")
	}
	password, err := config.GetWalletPasswordBytes()
	if err != nil {
		logger.Fatal().Err(err).Msg("password not set")
	}
	defer clear(password)

	address, err := wallet.ImportKeypair(cfg.WalletFilePath, os.Args[1], password)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to import keypair")
	}
	logger.Info().Str("address", address).Str("path", cfg.WalletFilePath).Msg("keypair imported")
}
