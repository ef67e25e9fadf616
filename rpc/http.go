package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"escrowd/core"
	"escrowd/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	rateLimitWindow = time.Minute
	maxMutPerWindow = 120
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020
)

type rateLimiter struct {
	count       int
	windowStart time.Time
}

// Server exposes the node's escrow and reputation modules over JSON-RPC 2.0.
type Server struct {
	node *core.Node
	log  *slog.Logger

	mu           sync.Mutex
	rateLimiters map[string]*rateLimiter
	authToken    string
}

// NewServer constructs a server for the node. An empty authToken disables
// bearer authentication on mutating methods.
func NewServer(node *core.Node, authToken string) *Server {
	return &Server{
		node:         node,
		log:          slog.Default(),
		rateLimiters: make(map[string]*rateLimiter),
		authToken:    strings.TrimSpace(authToken),
	}
}

// Handler returns the HTTP handler serving the JSON-RPC endpoint at "/" and
// prometheus metrics at "/metrics".
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// RPCRequest is a JSON-RPC 2.0 request envelope.
type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

// RPCResponse is a JSON-RPC 2.0 response envelope.
type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError carries the JSON-RPC error object. Data holds the engine's stable
// error code when the failure originated in a native module.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj})
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

type handlerFunc func(w http.ResponseWriter, r *http.Request, req *RPCRequest)

func (s *Server) route(method string) (handlerFunc, bool, bool) {
	switch method {
	case "escrow_create":
		return s.handleEscrowCreate, true, true
	case "escrow_get":
		return s.handleEscrowGet, false, true
	case "escrow_confirmDelivery":
		return s.handleEscrowConfirmDelivery, true, true
	case "escrow_raiseDispute":
		return s.handleEscrowRaiseDispute, true, true
	case "escrow_resolveDispute":
		return s.handleEscrowResolveDispute, true, true
	case "escrow_resolvePartial":
		return s.handleEscrowResolvePartial, true, true
	case "escrow_claimTimeout":
		return s.handleEscrowClaimTimeout, true, true
	case "escrow_approveRelease":
		return s.handleEscrowApproveRelease, true, true
	case "escrow_setArbitratorFee":
		return s.handleEscrowSetArbitratorFee, true, true
	case "escrow_history":
		return s.handleEscrowHistory, false, true
	case "escrow_addMilestone":
		return s.handleEscrowAddMilestone, true, true
	case "escrow_completeMilestone":
		return s.handleEscrowCompleteMilestone, true, true
	case "reputation_rate":
		return s.handleReputationRate, true, true
	case "reputation_get":
		return s.handleReputationGet, false, true
	default:
		return nil, false, false
	}
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := uuid.NewString()
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, nil, codeInvalidRequest, "invalid_request", "POST required")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "parse_error", err.Error())
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "parse_error", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "invalid_request", "jsonrpc must be 2.0")
		return
	}
	handler, mutating, ok := s.route(req.Method)
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method_not_found", req.Method)
		return
	}
	if mutating {
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		if !s.allowMutation(r) {
			writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "rate_limited", "too many mutating requests")
			return
		}
	}

	recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	handler(recorder, r, &req)

	duration := time.Since(start)
	outcome := "ok"
	if recorder.status >= http.StatusBadRequest {
		outcome = "error"
		observability.ModuleMetrics().ObserveError(req.Method, http.StatusText(recorder.status))
	}
	observability.ModuleMetrics().ObserveRequest(req.Method, outcome, duration)
	s.log.Info("rpc request handled",
		"requestId", requestID,
		"method", req.Method,
		"status", recorder.status,
		"durationMs", duration.Milliseconds(),
	)
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return nil
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return &RPCError{Code: codeUnauthorized, Message: "unauthorized", Data: "missing bearer token"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "unauthorized", Data: "invalid token"}
	}
	return nil
}

func (s *Server) allowMutation(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	limiter, ok := s.rateLimiters[host]
	if !ok || now.Sub(limiter.windowStart) > rateLimitWindow {
		s.rateLimiters[host] = &rateLimiter{count: 1, windowStart: now}
		return true
	}
	if limiter.count >= maxMutPerWindow {
		return false
	}
	limiter.count++
	return true
}

func singleParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return errors.New("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}
