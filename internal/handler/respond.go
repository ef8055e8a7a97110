package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/AlexZinkM/spl-deploy/internal/common"
	"github.com/AlexZinkM/spl-deploy/internal/model"
	"github.com/AlexZinkM/spl-deploy/internal/workflow"

	"github.com/rs/zerolog/log"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}

// writeError writes err with a status derived from its workflow kind
func writeError(w http.ResponseWriter, err error) {
	resp := model.ErrorResponse{Error: err.Error()}

	var werr *workflow.Error
	if errors.As(err, &werr) {
		resp.Code = string(werr.Kind)
		resp.Step = string(werr.Step)
		resp.RunID = werr.RunID
	}
	writeJSON(w, statusFor(workflow.KindOf(err)), resp)
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: msg, Code: string(workflow.KindValidation)})
}

func statusFor(kind workflow.Kind) int {
	switch kind {
	case workflow.KindValidation:
		return http.StatusBadRequest
	case workflow.KindWalletNotConnected:
		return http.StatusPreconditionFailed
	case workflow.KindInsufficientFunds:
		return http.StatusPaymentRequired
	case workflow.KindRunInProgress, workflow.KindNotResumable:
		return http.StatusConflict
	case workflow.KindRunNotFound:
		return http.StatusNotFound
	case workflow.KindLedgerSubmission:
		return http.StatusBadGateway
	case workflow.KindConfirmationTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func runResponse(run workflow.Run) model.RunResponse {
	resp := model.RunResponse{
		ID:            run.ID,
		Name:          run.Request.Name,
		Symbol:        run.Request.Symbol,
		Decimals:      run.Request.Decimals,
		InitialSupply: run.Request.InitialSupply,
		State:         string(run.State),
		Status:        string(run.Status),
		FailedAt:      string(run.FailedAt),
		Error:         run.Err,
		CreatedAt:     run.CreatedAt,
		UpdatedAt:     run.UpdatedAt,
	}
	if !run.Mint.IsZero() {
		resp.MintAddress = run.Mint.String()
	}
	if !run.TokenAccount.IsZero() {
		resp.TokenAccountAddress = run.TokenAccount.String()
	}
	if run.MintedAmount > 0 {
		resp.MintedAmount = strconv.FormatUint(run.MintedAmount, 10)
		resp.MintedUIAmount = common.FormatTokenAmount(run.MintedAmount, run.Request.Decimals)
	}

	sigs := map[workflow.Step]*string{
		workflow.StepFee:     &resp.Signatures.Fee,
		workflow.StepMint:    &resp.Signatures.Mint,
		workflow.StepAccount: &resp.Signatures.Account,
		workflow.StepMintTo:  &resp.Signatures.MintTo,
	}
	for step, sig := range run.Signatures {
		if dst, ok := sigs[step]; ok {
			*dst = sig.String()
		}
	}
	return resp
}
