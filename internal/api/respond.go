package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"loyaltyDex/internal/dex"
)

// Response is the envelope of every api reply.
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// ErrorBody describes a failed call. Code is the stable taxonomy code, zero
// for errors outside the pool engine.
type ErrorBody struct {
	Codespace string `json:"codespace,omitempty"`
	Code      uint32 `json:"code,omitempty"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
}

var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeSuccess(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Response{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, kind string, code uint32, message string) {
	body := &ErrorBody{Kind: kind, Code: code, Message: message}
	if code != 0 {
		body.Codespace = dex.ModuleName
	}
	writeJSON(w, status, Response{Success: false, Error: body})
}

// statusFor maps an error to its HTTP status and taxonomy kind.
func statusFor(err error) (int, string, uint32) {
	if errors.Is(err, errBadRequest) {
		return http.StatusBadRequest, "bad_request", 0
	}
	kind, ok := dex.Kind(err)
	if !ok {
		return http.StatusInternalServerError, "internal", 0
	}

	status := http.StatusInternalServerError
	switch kind {
	case dex.ErrPoolNotFound:
		status = http.StatusNotFound
	case dex.ErrPoolAlreadyExists:
		status = http.StatusConflict
	case dex.ErrInvalidAmount, dex.ErrInvalidTokenPair:
		status = http.StatusBadRequest
	case dex.ErrInsufficientLiquidity, dex.ErrSlippageExceeded:
		status = http.StatusUnprocessableEntity
	case dex.ErrUnauthorized:
		status = http.StatusForbidden
	}
	return status, kindName(kind), kind.ABCICode()
}

func kindName(kind error) string {
	switch kind {
	case dex.ErrPoolAlreadyExists:
		return "pool_already_exists"
	case dex.ErrPoolNotFound:
		return "pool_not_found"
	case dex.ErrInvalidAmount:
		return "invalid_amount"
	case dex.ErrInsufficientLiquidity:
		return "insufficient_liquidity"
	case dex.ErrSlippageExceeded:
		return "slippage_exceeded"
	case dex.ErrInvalidTokenPair:
		return "invalid_token_pair"
	case dex.ErrUnauthorized:
		return "unauthorized"
	}
	return "internal"
}

func parseAddress(field, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%w: %s is not an address", errBadRequest, field)
	}
	return common.HexToAddress(value), nil
}

// parseAmount accepts any decimal integer; range and sign are the engine's call.
func parseAmount(field, value string) (math.Int, error) {
	amount, ok := math.NewIntFromString(value)
	if !ok {
		return math.Int{}, fmt.Errorf("%w: %s is not a decimal integer", errBadRequest, field)
	}
	return amount, nil
}
