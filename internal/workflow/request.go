package workflow

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/AlexZinkM/spl-deploy/internal/common"
)

const (
	maxNameLen   = 32
	maxSymbolLen = 10
)

// TokenRequest holds the parameters of one token creation run.
// InitialSupply is in whole tokens; zero skips the mint-to step.
type TokenRequest struct {
	Name          string
	Symbol        string
	Decimals      uint8
	InitialSupply uint64
}

// ParseRequest builds a TokenRequest from raw form values and validates it.
// An empty initialSupply means no initial mint.
func ParseRequest(name, symbol, decimals, initialSupply string) (TokenRequest, error) {
	req := TokenRequest{
		Name:   strings.TrimSpace(name),
		Symbol: strings.TrimSpace(symbol),
	}

	decimals = strings.TrimSpace(decimals)
	if decimals == "" {
		return TokenRequest{}, validationError(errors.New("decimals is required"))
	}
	d, err := strconv.ParseUint(decimals, 10, 8)
	if err != nil {
		return TokenRequest{}, validationError(fmt.Errorf("decimals must be an integer between 0 and %d", common.MaxTokenDecimals))
	}
	req.Decimals = uint8(d)

	if s := strings.TrimSpace(initialSupply); s != "" {
		supply, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return TokenRequest{}, validationError(fmt.Errorf("initialSupply must be a positive integer"))
		}
		if supply == 0 {
			return TokenRequest{}, validationError(errors.New("initialSupply must be a positive integer"))
		}
		req.InitialSupply = supply
	}

	if err := req.Validate(); err != nil {
		return TokenRequest{}, err
	}
	return req, nil
}

// Validate checks every field. It never touches the ledger.
func (r TokenRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.Name) == "":
		return validationError(errors.New("name is required"))
	case len(r.Name) > maxNameLen:
		return validationError(fmt.Errorf("name must be at most %d bytes", maxNameLen))
	case strings.TrimSpace(r.Symbol) == "":
		return validationError(errors.New("symbol is required"))
	case len(r.Symbol) > maxSymbolLen:
		return validationError(fmt.Errorf("symbol must be at most %d bytes", maxSymbolLen))
	case r.Decimals > common.MaxTokenDecimals:
		return validationError(fmt.Errorf("decimals must be an integer between 0 and %d", common.MaxTokenDecimals))
	}
	if _, err := r.BaseUnits(); err != nil {
		return validationError(fmt.Errorf("initialSupply too large for %d decimals: %w", r.Decimals, err))
	}
	return nil
}

// BaseUnits is the amount minted in step 4: InitialSupply × 10^Decimals
func (r TokenRequest) BaseUnits() (uint64, error) {
	return common.ToBaseUnits(r.InitialSupply, r.Decimals)
}

// WithMintTo reports whether the run ends with an initial mint
func (r TokenRequest) WithMintTo() bool {
	return r.InitialSupply > 0
}
