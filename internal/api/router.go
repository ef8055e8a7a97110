package api

import (
	"net/http"

	"github.com/AlexZinkM/spl-deploy/internal/handler"
	"github.com/AlexZinkM/spl-deploy/internal/observability"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
)

// SetupRouter sets up router with handlers
func SetupRouter(tokenHandler *handler.TokenHandler, walletHandler *handler.WalletHandler, logger zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Swagger UI
	mux.HandleFunc("/swagger/", httpSwagger.WrapHandler)

	observability.RegisterMetrics()
	mux.Handle("/metrics", promhttp.Handler())

	// Wallet endpoints
	mux.HandleFunc("/wallet", walletHandler.Status)
	mux.HandleFunc("/wallet/generate", walletHandler.Generate)
	mux.HandleFunc("/wallet/connect", walletHandler.Connect)
	mux.HandleFunc("/wallet/disconnect", walletHandler.Disconnect)

	// Token endpoints
	mux.HandleFunc("/token/create", tokenHandler.Create)
	mux.HandleFunc("/token/resume", tokenHandler.Resume)
	mux.HandleFunc("/token/runs", tokenHandler.Runs)
	mux.HandleFunc("/token/estimate", tokenHandler.Estimate)

	return observability.RequestLogger(logger, observability.RequestMetrics(mux))
}
