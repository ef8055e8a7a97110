package model

import "time"

// CreateTokenRequest represents request for POST /token/create.
// Numeric fields are strings because they come straight from form input.
type CreateTokenRequest struct {
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	Decimals      string `json:"decimals"`
	InitialSupply string `json:"initialSupply"` // empty means no initial mint
	Async         bool   `json:"async,omitempty"`
}

// ResumeRequest represents request for POST /token/resume
type ResumeRequest struct {
	ID    string `json:"id"`
	Async bool   `json:"async,omitempty"`
}

// StepSignatures lists confirmed transaction signatures per workflow step
type StepSignatures struct {
	Fee     string `json:"fee,omitempty"`
	Mint    string `json:"mint,omitempty"`
	Account string `json:"account,omitempty"`
	MintTo  string `json:"mintTo,omitempty"`
}

// RunResponse represents a token creation run snapshot
type RunResponse struct {
	ID                  string         `json:"id"`
	Name                string         `json:"name"`
	Symbol              string         `json:"symbol"`
	Decimals            uint8          `json:"decimals"`
	InitialSupply       uint64         `json:"initialSupply,omitempty"`
	State               string         `json:"state"`
	Status              string         `json:"status"`
	FailedAt            string         `json:"failedAt,omitempty"`
	Error               string         `json:"error,omitempty"`
	MintAddress         string         `json:"mintAddress,omitempty"`
	TokenAccountAddress string         `json:"tokenAccountAddress,omitempty"`
	MintedAmount        string         `json:"mintedAmount,omitempty"`   // base units
	MintedUIAmount      string         `json:"mintedUiAmount,omitempty"` // whole tokens with decimals applied
	Signatures          StepSignatures `json:"signatures"`
	CreatedAt           time.Time      `json:"createdAt"`
	UpdatedAt           time.Time      `json:"updatedAt"`
}

// RunListResponse represents response for GET /token/runs without id
type RunListResponse struct {
	Runs []RunResponse `json:"runs"`
}

// EstimateResponse represents response for GET /token/estimate (all values in SOL)
type EstimateResponse struct {
	Fee           string `json:"fee"`
	FeeRecipient  string `json:"feeRecipient"`
	MintRent      string `json:"mintRent"`
	AccountRent   string `json:"accountRent"`
	SignatureFees string `json:"signatureFees"`
	Total         string `json:"total"`
}
