package rpc

import (
	"net/http"

	"escrowd/crypto"
	"escrowd/native/reputation"
)

type reputationRateParams struct {
	EscrowID uint64 `json:"escrowId"`
	Rater    string `json:"rater"`
	Target   string `json:"target"`
	Positive bool   `json:"positive"`
}

type reputationGetParams struct {
	Target string `json:"target"`
}

type reputationEntryJSON struct {
	Target            string `json:"target"`
	PositiveRatings   uint64 `json:"positiveRatings"`
	NegativeRatings   uint64 `json:"negativeRatings"`
	TotalTransactions uint64 `json:"totalTransactions"`
}

func formatReputationJSON(target string, entry *reputation.Entry) reputationEntryJSON {
	out := reputationEntryJSON{Target: target}
	if entry != nil {
		out.PositiveRatings = entry.PositiveRatings
		out.NegativeRatings = entry.NegativeRatings
		out.TotalTransactions = entry.TotalTransactions
	}
	return out
}

func (s *Server) handleReputationRate(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params reputationRateParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	rater, err := crypto.ParseAddress(params.Rater)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	target, err := crypto.ParseAddress(params.Target)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	entry, err := s.node.ReputationRate(params.EscrowID, rater, target, params.Positive)
	if err != nil {
		writeEscrowError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatReputationJSON(params.Target, entry))
}

func (s *Server) handleReputationGet(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params reputationGetParams
	if err := singleParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	target, err := crypto.ParseAddress(params.Target)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	entry, ok, err := s.node.ReputationGet(target)
	if err != nil {
		writeEscrowError(w, req.ID, err)
		return
	}
	if !ok {
		writeResult(w, req.ID, formatReputationJSON(params.Target, nil))
		return
	}
	writeResult(w, req.ID, formatReputationJSON(params.Target, entry))
}
