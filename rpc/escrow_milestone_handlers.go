package rpc

import (
	"net/http"

	"escrowd/crypto"
)

type milestoneAddParams struct {
	ID          uint64 `json:"id"`
	Caller      string `json:"caller"`
	Amount      string `json:"amount"`
	Description string `json:"description,omitempty"`
}

type milestoneCompleteParams struct {
	ID          uint64 `json:"id"`
	Caller      string `json:"caller"`
	MilestoneID uint64 `json:"milestoneId"`
}

type milestoneAddResult struct {
	MilestoneID uint64 `json:"milestoneId"`
}

func (s *Server) handleEscrowAddMilestone(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params milestoneAddParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := crypto.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parsePositiveBigInt(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	milestoneID, err := s.node.EscrowAddMilestone(params.ID, caller, amount, params.Description)
	if err != nil {
		writeEscrowError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, milestoneAddResult{MilestoneID: milestoneID})
}

func (s *Server) handleEscrowCompleteMilestone(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params milestoneCompleteParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := crypto.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.EscrowCompleteMilestone(params.ID, caller, params.MilestoneID); err != nil {
		writeEscrowError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}
