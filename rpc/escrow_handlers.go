package rpc

import (
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"escrowd/crypto"
	"escrowd/native/common"
	"escrowd/native/escrow"
	"escrowd/native/reputation"
)

const (
	codeEscrowInvalidParams = -32021
	codeEscrowNotFound      = -32022
	codeEscrowForbidden     = -32023
	codeEscrowConflict      = -32024
	codeEscrowInternal      = -32025
	codeEscrowPaused        = -32026
)

type escrowCreateParams struct {
	Buyer       string `json:"buyer"`
	Seller      string `json:"seller"`
	Arbitrator  string `json:"arbitrator"`
	Amount      string `json:"amount"`
	TotalAmount string `json:"totalAmount,omitempty"`
}

type escrowIDParams struct {
	ID uint64 `json:"id"`
}

type escrowActorParams struct {
	ID     uint64 `json:"id"`
	Caller string `json:"caller"`
}

type escrowResolveParams struct {
	ID          uint64 `json:"id"`
	Caller      string `json:"caller"`
	RefundBuyer bool   `json:"refundBuyer"`
}

type escrowResolvePartialParams struct {
	ID           uint64 `json:"id"`
	Caller       string `json:"caller"`
	BuyerAmount  string `json:"buyerAmount"`
	SellerAmount string `json:"sellerAmount"`
}

type escrowSetFeeParams struct {
	ID     uint64 `json:"id"`
	Caller string `json:"caller"`
	FeePct uint8  `json:"feePct"`
}

type escrowCreateResult struct {
	ID uint64 `json:"id"`
}

type escrowResolveResult struct {
	Outcome string `json:"outcome"`
}

type milestoneJSON struct {
	ID          uint64 `json:"id"`
	Amount      string `json:"amount"`
	Description string `json:"description,omitempty"`
	IsComplete  bool   `json:"isComplete"`
	Released    bool   `json:"released"`
}

type escrowJSON struct {
	ID                 uint64          `json:"id"`
	Buyer              string          `json:"buyer"`
	Seller             string          `json:"seller"`
	Arbitrator         string          `json:"arbitrator"`
	Amount             string          `json:"amount"`
	TotalAmount        string          `json:"totalAmount"`
	Status             string          `json:"status"`
	RequireMultiSig    bool            `json:"requireMultiSig"`
	ArbitratorApproved bool            `json:"arbitratorApproved"`
	ArbitratorFeePct   uint8           `json:"arbitratorFeePct"`
	CreatedAt          int64           `json:"createdAt"`
	ExpiresAt          int64           `json:"expiresAt"`
	Milestones         []milestoneJSON `json:"milestones,omitempty"`
}

type historyEntryJSON struct {
	EscrowID  uint64 `json:"escrowId"`
	Sequence  uint64 `json:"sequence"`
	Buyer     string `json:"buyer"`
	Seller    string `json:"seller"`
	Amount    string `json:"amount"`
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

func (s *Server) handleEscrowCreate(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params escrowCreateParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	buyer, err := crypto.ParseAddress(params.Buyer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	seller, err := crypto.ParseAddress(params.Seller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	arbitrator, err := crypto.ParseAddress(params.Arbitrator)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parsePositiveBigInt(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	totalAmount := big.NewInt(0)
	if strings.TrimSpace(params.TotalAmount) != "" {
		totalAmount, err = parsePositiveBigInt(params.TotalAmount)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
			return
		}
	}
	id, err := s.node.EscrowCreate(buyer, seller, arbitrator, amount, totalAmount)
	if err != nil {
		writeEscrowError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, escrowCreateResult{ID: id})
}

func (s *Server) handleEscrowGet(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params escrowIDParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	rec, err := s.node.EscrowGet(params.ID)
	if err != nil {
		writeEscrowError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatEscrowJSON(rec))
}

func (s *Server) handleEscrowConfirmDelivery(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handleEscrowTransition(w, req, s.node.EscrowConfirmDelivery)
}

func (s *Server) handleEscrowRaiseDispute(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handleEscrowTransition(w, req, s.node.EscrowDispute)
}

func (s *Server) handleEscrowClaimTimeout(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handleEscrowTransition(w, req, s.node.EscrowClaimTimeout)
}

func (s *Server) handleEscrowApproveRelease(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handleEscrowTransition(w, req, s.node.EscrowApproveRelease)
}

func (s *Server) handleEscrowTransition(w http.ResponseWriter, req *RPCRequest, fn func(uint64, [20]byte) error) {
	var params escrowActorParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := crypto.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := fn(params.ID, caller); err != nil {
		writeEscrowError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleEscrowResolveDispute(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params escrowResolveParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := crypto.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	outcome, err := s.node.EscrowResolve(params.ID, caller, params.RefundBuyer)
	if err != nil {
		writeEscrowError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, escrowResolveResult{Outcome: outcome})
}

func (s *Server) handleEscrowResolvePartial(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params escrowResolvePartialParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := crypto.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	buyerAmount, err := parseNonNegativeBigInt(params.BuyerAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	sellerAmount, err := parseNonNegativeBigInt(params.SellerAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.EscrowResolvePartial(params.ID, caller, buyerAmount, sellerAmount); err != nil {
		writeEscrowError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleEscrowSetArbitratorFee(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params escrowSetFeeParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := crypto.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.EscrowSetFee(params.ID, caller, params.FeePct); err != nil {
		writeEscrowError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleEscrowHistory(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params escrowIDParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	if _, err := s.node.EscrowGet(params.ID); err != nil {
		writeEscrowError(w, req.ID, err)
		return
	}
	entries := s.node.EscrowHistory(params.ID)
	out := make([]historyEntryJSON, len(entries))
	for i, entry := range entries {
		out[i] = historyEntryJSON{
			EscrowID:  entry.EscrowID,
			Sequence:  entry.Sequence,
			Buyer:     crypto.MustEncodeAddress(entry.Buyer),
			Seller:    crypto.MustEncodeAddress(entry.Seller),
			Amount:    entry.Amount.String(),
			Status:    entry.Status.String(),
			Timestamp: entry.Timestamp,
		}
	}
	writeResult(w, req.ID, out)
}

func parsePositiveBigInt(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount")
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}

func parseNonNegativeBigInt(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount")
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must be non-negative")
	}
	return amount, nil
}

func formatEscrowJSON(rec *escrow.Record) escrowJSON {
	out := escrowJSON{
		ID:                 rec.ID,
		Buyer:              crypto.MustEncodeAddress(rec.Buyer),
		Seller:             crypto.MustEncodeAddress(rec.Seller),
		Arbitrator:         crypto.MustEncodeAddress(rec.Arbitrator),
		Amount:             rec.Amount.String(),
		TotalAmount:        rec.TotalAmount.String(),
		Status:             rec.Status.String(),
		RequireMultiSig:    rec.RequireMultiSig,
		ArbitratorApproved: rec.ArbitratorApproved,
		ArbitratorFeePct:   rec.ArbitratorFeePct,
		CreatedAt:          rec.CreatedAt,
		ExpiresAt:          rec.ExpiresAt,
	}
	for _, m := range rec.Milestones {
		if m == nil {
			continue
		}
		out.Milestones = append(out.Milestones, milestoneJSON{
			ID:          m.ID,
			Amount:      m.Amount.String(),
			Description: m.Description,
			IsComplete:  m.IsComplete,
			Released:    m.Released,
		})
	}
	return out
}

// writeEscrowError maps native module failures onto HTTP statuses and JSON-RPC
// codes, carrying the engine's stable error code in the data payload.
func writeEscrowError(w http.ResponseWriter, id interface{}, err error) {
	if err == nil {
		return
	}
	status := http.StatusInternalServerError
	code := codeEscrowInternal
	message := "internal_error"
	data := map[string]interface{}{"detail": err.Error()}

	var typed *escrow.Error
	switch {
	case errors.Is(err, common.ErrModulePaused):
		status = http.StatusServiceUnavailable
		code = codeEscrowPaused
		message = "module_paused"
	case errors.Is(err, reputation.ErrNotEligible):
		status = http.StatusConflict
		code = codeEscrowConflict
		message = "not_eligible"
		data["escrowCode"] = 108
	case errors.As(err, &typed):
		data["escrowCode"] = typed.Code
		switch typed.Code {
		case escrow.ErrUnauthorized.Code:
			status = http.StatusForbidden
			code = codeEscrowForbidden
			message = "forbidden"
		case escrow.ErrNotFound.Code, escrow.ErrMilestoneNotFound.Code:
			status = http.StatusNotFound
			code = codeEscrowNotFound
			message = "not_found"
		case escrow.ErrInvalidAmount.Code:
			status = http.StatusBadRequest
			code = codeEscrowInvalidParams
			message = "invalid_params"
		default:
			status = http.StatusConflict
			code = codeEscrowConflict
			message = "conflict"
		}
	}
	writeError(w, status, id, code, message, data)
}
