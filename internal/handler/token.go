package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/AlexZinkM/spl-deploy/internal/common"
	"github.com/AlexZinkM/spl-deploy/internal/model"
	"github.com/AlexZinkM/spl-deploy/internal/workflow"
)

// TokenHandler exposes the token creation workflow
type TokenHandler struct {
	workflow *workflow.Workflow
}

// NewTokenHandler creates a new TokenHandler
func NewTokenHandler(wf *workflow.Workflow) *TokenHandler {
	return &TokenHandler{workflow: wf}
}

// Create handles POST /token/create
// @Summary      Create SPL token
// @Description  Pays the service fee, creates the mint and the owner's token account and mints the initial supply
// @Tags         token
// @Accept       json
// @Produce      json
// @Param        request  body      model.CreateTokenRequest  true  "Token parameters"
// @Success      200      {object}  model.RunResponse
// @Success      202      {object}  model.RunResponse
// @Failure      400      {object}  model.ErrorResponse
// @Failure      502      {object}  model.ErrorResponse
// @Router       /token/create [post]
func (h *TokenHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	var req model.CreateTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	tokenReq, err := workflow.ParseRequest(req.Name, req.Symbol, req.Decimals, req.InitialSupply)
	if err != nil {
		writeError(w, err)
		return
	}

	// Submitted steps cannot be aborted, so the run outlives the request
	ctx := context.WithoutCancel(r.Context())

	if req.Async {
		run, err := h.workflow.Start(ctx, tokenReq)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, runResponse(run))
		return
	}

	run, err := h.workflow.Create(ctx, tokenReq)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runResponse(run))
}

// Resume handles POST /token/resume
// @Summary      Resume failed run
// @Description  Continues a failed run from the step it failed at without repeating confirmed steps
// @Tags         token
// @Accept       json
// @Produce      json
// @Param        request  body      model.ResumeRequest  true  "Run to resume"
// @Success      200      {object}  model.RunResponse
// @Failure      404      {object}  model.ErrorResponse
// @Failure      409      {object}  model.ErrorResponse
// @Router       /token/resume [post]
func (h *TokenHandler) Resume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	var req model.ResumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if req.ID == "" {
		writeBadRequest(w, "id is required")
		return
	}

	ctx := context.WithoutCancel(r.Context())

	if req.Async {
		run, err := h.workflow.ResumeAsync(ctx, req.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, runResponse(run))
		return
	}

	run, err := h.workflow.Resume(ctx, req.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runResponse(run))
}

// Runs handles GET /token/runs
// @Summary      Get runs
// @Description  Returns one run by id, or all runs of this process newest first
// @Tags         token
// @Produce      json
// @Param        id   query     string  false  "Run ID"
// @Success      200  {object}  model.RunListResponse
// @Failure      404  {object}  model.ErrorResponse
// @Router       /token/runs [get]
func (h *TokenHandler) Runs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. Should be GET", http.StatusMethodNotAllowed)
		return
	}

	if id := r.URL.Query().Get("id"); id != "" {
		run, ok := h.workflow.Store().Get(id)
		if !ok {
			writeJSON(w, http.StatusNotFound, model.ErrorResponse{
				Error: "run " + id + " not found",
				Code:  string(workflow.KindRunNotFound),
				RunID: id,
			})
			return
		}
		writeJSON(w, http.StatusOK, runResponse(run))
		return
	}

	runs := h.workflow.Store().List()
	resp := model.RunListResponse{Runs: make([]model.RunResponse, 0, len(runs))}
	for _, run := range runs {
		resp.Runs = append(resp.Runs, runResponse(run))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Estimate handles GET /token/estimate
// @Summary      Estimate cost
// @Description  Returns the SOL cost of a full token creation run
// @Tags         token
// @Produce      json
// @Success      200  {object}  model.EstimateResponse
// @Failure      502  {object}  model.ErrorResponse
// @Router       /token/estimate [get]
func (h *TokenHandler) Estimate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. Should be GET", http.StatusMethodNotAllowed)
		return
	}

	est, err := h.workflow.Estimate(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.EstimateResponse{
		Fee:           common.LamportsToSOL(est.FeeLamports),
		FeeRecipient:  est.FeeRecipient.String(),
		MintRent:      common.LamportsToSOL(est.MintRent),
		AccountRent:   common.LamportsToSOL(est.AccountRent),
		SignatureFees: common.LamportsToSOL(est.SignatureFees),
		Total:         common.LamportsToSOL(est.Total),
	})
}
