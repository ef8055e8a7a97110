package handler

import (
	"context"
	"net/http"

	"github.com/AlexZinkM/spl-deploy/internal/common"
	"github.com/AlexZinkM/spl-deploy/internal/config"
	"github.com/AlexZinkM/spl-deploy/internal/crypto"
	"github.com/AlexZinkM/spl-deploy/internal/model"
	"github.com/AlexZinkM/spl-deploy/internal/wallet"
	"github.com/AlexZinkM/spl-deploy/internal/workflow"

	"github.com/gagliardetto/solana-go"
)

// BalanceReader reads SOL balances
type BalanceReader interface {
	Balance(ctx context.Context, account solana.PublicKey) (uint64, error)
}

// WalletHandler manages the local keyfile and the wallet connection
type WalletHandler struct {
	filePath  string
	connector *wallet.Connector
	balances  BalanceReader
}

// NewWalletHandler creates a new WalletHandler
func NewWalletHandler(filePath string, connector *wallet.Connector, balances BalanceReader) *WalletHandler {
	return &WalletHandler{
		filePath:  filePath,
		connector: connector,
		balances:  balances,
	}
}

// Generate handles POST /wallet/generate
// @Summary      Generate new wallet
// @Description  Generates a new Solana keypair, saves it to the encrypted keyfile and connects it
// @Tags         wallet
// @Produce      json
// @Success      200  {object}  model.GenerateResponse
// @Failure      409  {object}  model.ErrorResponse
// @Router       /wallet/generate [post]
func (h *WalletHandler) Generate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	// Get password as []byte, use it, then zero it immediately
	passwordBytes, err := config.GetWalletPasswordBytes()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: err.Error()})
		return
	}
	defer clear(passwordBytes) // Always clear password from memory

	address, err := wallet.Generate(h.filePath, passwordBytes)
	if err != nil {
		status := http.StatusInternalServerError
		if wallet.IsFileExistsError(err) {
			status = http.StatusConflict
		}
		writeJSON(w, status, model.ErrorResponse{Error: err.Error()})
		return
	}

	// New wallet becomes the connected one
	if _, err := h.connector.Connect(passwordBytes); err != nil {
		writeJSON(w, http.StatusInternalServerError, model.ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, model.GenerateResponse{
		Success: true,
		Message: "Wallet generated successfully",
		Address: address,
	})
}

// Connect handles POST /wallet/connect
// @Summary      Connect wallet
// @Description  Decrypts the keyfile with the startup password and keeps the key in memory
// @Tags         wallet
// @Produce      json
// @Success      200  {object}  model.WalletStatusResponse
// @Router       /wallet/connect [post]
func (h *WalletHandler) Connect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	passwordBytes, err := config.GetWalletPasswordBytes()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: err.Error()})
		return
	}
	defer clear(passwordBytes)

	if _, err := h.connector.Connect(passwordBytes); err != nil {
		writeJSON(w, http.StatusUnauthorized, model.ErrorResponse{Error: err.Error()})
		return
	}
	h.writeStatus(r.Context(), w)
}

// Disconnect handles POST /wallet/disconnect
// @Summary      Disconnect wallet
// @Tags         wallet
// @Produce      json
// @Success      200  {object}  model.WalletStatusResponse
// @Router       /wallet/disconnect [post]
func (h *WalletHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	h.connector.Disconnect()
	writeJSON(w, http.StatusOK, model.WalletStatusResponse{Connected: false})
}

// Status handles GET /wallet
// @Summary      Wallet status
// @Description  Returns whether a wallet is connected, its address and SOL balance. A disconnected wallet still shows the keyfile address.
// @Tags         wallet
// @Produce      json
// @Success      200  {object}  model.WalletStatusResponse
// @Router       /wallet [get]
func (h *WalletHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. Should be GET", http.StatusMethodNotAllowed)
		return
	}
	h.writeStatus(r.Context(), w)
}

func (h *WalletHandler) writeStatus(ctx context.Context, w http.ResponseWriter) {
	pubkey, ok := h.connector.PublicKey()
	if !ok {
		// Address is stored in plain text next to the ciphertext
		address, _ := crypto.ReadWalletAddress(h.filePath)
		writeJSON(w, http.StatusOK, model.WalletStatusResponse{Connected: false, Address: address})
		return
	}

	lamports, err := h.balances.Balance(ctx, pubkey)
	if err != nil {
		writeError(w, &workflow.Error{Kind: workflow.KindLedgerSubmission, Err: err})
		return
	}

	writeJSON(w, http.StatusOK, model.WalletStatusResponse{
		Connected: true,
		Address:   pubkey.String(),
		SOL:       common.LamportsToSOL(lamports),
	})
}
