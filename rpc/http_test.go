package rpc

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"escrowd/core"
	"escrowd/crypto"
)

type testEnv struct {
	server     *Server
	node       *core.Node
	buyer      [20]byte
	seller     [20]byte
	arbitrator [20]byte
}

func rpcAddress(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func newTestEnv(t *testing.T, authToken string) *testEnv {
	t.Helper()
	node := core.NewNode()
	node.EscrowEngine().SetNowFunc(func() int64 { return 1000 })
	node.EscrowEngine().SetTTL(100)
	env := &testEnv{
		server:     NewServer(node, authToken),
		node:       node,
		buyer:      rpcAddress(0x21),
		seller:     rpcAddress(0x22),
		arbitrator: rpcAddress(0x23),
	}
	require.NoError(t, node.Ledger().Credit(env.buyer, big.NewInt(100_000)))
	return env
}

// rpcErrorData decodes error.data when it is a JSON object; the server also
// sends plain strings for transport-level errors, which tests never index.
type rpcErrorData map[string]interface{}

func (d *rpcErrorData) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '{' {
		return json.Unmarshal(b, (*map[string]interface{})(d))
	}
	return nil
}

type rpcTestResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *struct {
		Code    int          `json:"code"`
		Message string       `json:"message"`
		Data    rpcErrorData `json:"data"`
	} `json:"error"`
}

func (e *testEnv) call(t *testing.T, method string, params interface{}, headers map[string]string) (int, *rpcTestResponse) {
	t.Helper()
	payload := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		payload["params"] = []interface{}{params}
	} else {
		payload["params"] = []interface{}{}
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	var resp rpcTestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, &resp
}

func (e *testEnv) mustCreate(t *testing.T, amount string) uint64 {
	t.Helper()
	status, resp := e.call(t, "escrow_create", map[string]interface{}{
		"buyer":      crypto.MustEncodeAddress(e.buyer),
		"seller":     crypto.MustEncodeAddress(e.seller),
		"arbitrator": crypto.MustEncodeAddress(e.arbitrator),
		"amount":     amount,
	}, nil)
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, resp.Error)
	var result struct {
		ID uint64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	return result.ID
}

func TestHandleRejectsNonPost(t *testing.T) {
	env := newTestEnv(t, "")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleRejectsMalformedJSON(t *testing.T) {
	env := newTestEnv(t, "")
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp rpcTestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	require.Equal(t, codeParseError, resp.Error.Code)
}

func TestHandleMethodNotFound(t *testing.T) {
	env := newTestEnv(t, "")
	status, resp := env.call(t, "escrow_unknown", map[string]interface{}{}, nil)
	require.Equal(t, http.StatusNotFound, status)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestMutatingMethodsRequireBearerToken(t *testing.T) {
	env := newTestEnv(t, "secret-token")
	params := map[string]interface{}{
		"id":     uint64(1),
		"caller": crypto.MustEncodeAddress(env.seller),
	}

	status, resp := env.call(t, "escrow_confirmDelivery", params, nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	status, resp = env.call(t, "escrow_confirmDelivery", params, map[string]string{
		"Authorization": "Bearer wrong-token",
	})
	require.Equal(t, http.StatusUnauthorized, status)
	require.NotNil(t, resp.Error)

	// A correct token passes auth; the failure below is the engine's, not the
	// transport's.
	status, resp = env.call(t, "escrow_confirmDelivery", params, map[string]string{
		"Authorization": "Bearer secret-token",
	})
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, codeEscrowNotFound, resp.Error.Code)
}

func TestReadMethodsSkipAuth(t *testing.T) {
	env := newTestEnv(t, "secret-token")
	status, resp := env.call(t, "escrow_get", map[string]interface{}{"id": uint64(1)}, nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, codeEscrowNotFound, resp.Error.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, "")
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
