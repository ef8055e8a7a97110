// Command spldeploy serves the SPL token creation API backed by a local encrypted wallet.
//
// @title        SPL Deploy API
// @version      1.0
// @description  Creates SPL tokens on Solana: fee payment, mint, token account and initial supply.
// @BasePath     /
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AlexZinkM/spl-deploy/internal/api"
	"github.com/AlexZinkM/spl-deploy/internal/client"
	"github.com/AlexZinkM/spl-deploy/internal/config"
	"github.com/AlexZinkM/spl-deploy/internal/crypto"
	"github.com/AlexZinkM/spl-deploy/internal/handler"
	"github.com/AlexZinkM/spl-deploy/internal/observability"
	"github.com/AlexZinkM/spl-deploy/internal/wallet"
	"github.com/AlexZinkM/spl-deploy/internal/workflow"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := config.Init(); err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	cfg := config.Get()
	logger := observability.InitLogger("spldeploy", cfg.LogLevel)

	feeRecipient, err := solana.PublicKeyFromBase58(cfg.FeeRecipient)
	if err != nil {
		logger.Fatal().Err(err).Str("fee_recipient", cfg.FeeRecipient).Msg("invalid fee recipient")
	}

	if err := config.PromptForPassword(); err != nil {
		logger.Fatal().Err(err).Msg("failed to read wallet password")
	}

	solanaClient := client.NewSolanaClient()
	connector := wallet.NewConnector(cfg.WalletFilePath, solanaClient)
	connectAtStartup(connector)

	wf := workflow.New(solanaClient, connector, workflow.NewStore(), workflow.Options{
		FeeRecipient:    feeRecipient,
		FeeLamports:     cfg.FeeLamports,
		FreezeAuthority: cfg.FreezeAuthority,
	}, logger)

	router := api.SetupRouter(
		handler.NewTokenHandler(wf),
		handler.NewWalletHandler(cfg.WalletFilePath, connector, solanaClient),
		logger,
	)

	srv := &http.Server{
		Addr:              ":" + config.GetPort(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().
			Str("port", config.GetPort()).
			Str("rpc", config.GetSolanaRPCURL()).
			Str("fee", cfg.FeeSOL).
			Str("commitment", cfg.Commitment).
			Msg("server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	connector.Disconnect()
}

// connectAtStartup connects the wallet when a keyfile already exists.
// A missing keyfile is not fatal: POST /wallet/generate creates one.
func connectAtStartup(connector *wallet.Connector) {
	password, err := config.GetWalletPasswordBytes()
	if err != nil {
		log.Fatal().Err(err).Msg("password not set")
	}
	defer clear(password)

	pubkey, err := connector.Connect(password)
	switch {
	case errors.Is(err, crypto.ErrKeyFileMissing):
		log.Warn().Str("path", config.GetWalletFilePath()).Msg("no keyfile yet, wallet not connected")
	case err != nil:
		log.Fatal().Err(err).Msg("failed to connect wallet")
	default:
		log.Info().Str("address", pubkey.String()).Msg("wallet connected")
	}
}
