package rpc

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"escrowd/core"
	"escrowd/crypto"
)

func TestEscrowCreateAndGet(t *testing.T) {
	env := newTestEnv(t, "")
	id := env.mustCreate(t, "1000")
	require.Equal(t, uint64(1), id)

	status, resp := env.call(t, "escrow_get", map[string]interface{}{"id": id}, nil)
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, resp.Error)

	var rec escrowJSON
	require.NoError(t, json.Unmarshal(resp.Result, &rec))
	require.Equal(t, id, rec.ID)
	require.Equal(t, crypto.MustEncodeAddress(env.buyer), rec.Buyer)
	require.Equal(t, crypto.MustEncodeAddress(env.seller), rec.Seller)
	require.Equal(t, "1000", rec.Amount)
	require.Equal(t, "1000", rec.TotalAmount)
	require.Equal(t, "ACTIVE", rec.Status)
	require.Equal(t, uint8(2), rec.ArbitratorFeePct)
	require.Equal(t, int64(1000), rec.CreatedAt)
	require.Equal(t, int64(1100), rec.ExpiresAt)
}

func TestEscrowCreateRejectsBadParams(t *testing.T) {
	env := newTestEnv(t, "")

	status, resp := env.call(t, "escrow_create", map[string]interface{}{
		"buyer":      "not-an-address",
		"seller":     crypto.MustEncodeAddress(env.seller),
		"arbitrator": crypto.MustEncodeAddress(env.arbitrator),
		"amount":     "1000",
	}, nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, codeEscrowInvalidParams, resp.Error.Code)

	for _, amount := range []string{"", "0", "-5", "abc"} {
		status, resp = env.call(t, "escrow_create", map[string]interface{}{
			"buyer":      crypto.MustEncodeAddress(env.buyer),
			"seller":     crypto.MustEncodeAddress(env.seller),
			"arbitrator": crypto.MustEncodeAddress(env.arbitrator),
			"amount":     amount,
		}, nil)
		require.Equal(t, http.StatusBadRequest, status, "amount %q", amount)
		require.Equal(t, codeEscrowInvalidParams, resp.Error.Code, "amount %q", amount)
	}
}

func TestEscrowCreateTotalBelowPrincipal(t *testing.T) {
	env := newTestEnv(t, "")
	status, resp := env.call(t, "escrow_create", map[string]interface{}{
		"buyer":       crypto.MustEncodeAddress(env.buyer),
		"seller":      crypto.MustEncodeAddress(env.seller),
		"arbitrator":  crypto.MustEncodeAddress(env.arbitrator),
		"amount":      "1000",
		"totalAmount": "500",
	}, nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, codeEscrowInvalidParams, resp.Error.Code)
	require.EqualValues(t, 106, resp.Error.Data["escrowCode"])
}

func TestEscrowConfirmDeliveryForbidden(t *testing.T) {
	env := newTestEnv(t, "")
	id := env.mustCreate(t, "1000")
	status, resp := env.call(t, "escrow_confirmDelivery", map[string]interface{}{
		"id":     id,
		"caller": crypto.MustEncodeAddress(env.arbitrator),
	}, nil)
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, codeEscrowForbidden, resp.Error.Code)
	require.Equal(t, "forbidden", resp.Error.Message)
	require.EqualValues(t, 100, resp.Error.Data["escrowCode"])
}

func TestEscrowDisputeResolveFlow(t *testing.T) {
	env := newTestEnv(t, "")
	id := env.mustCreate(t, "1000")

	status, resp := env.call(t, "escrow_raiseDispute", map[string]interface{}{
		"id":     id,
		"caller": crypto.MustEncodeAddress(env.buyer),
	}, nil)
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, resp.Error)

	status, resp = env.call(t, "escrow_resolveDispute", map[string]interface{}{
		"id":          id,
		"caller":      crypto.MustEncodeAddress(env.arbitrator),
		"refundBuyer": true,
	}, nil)
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, resp.Error)
	var result escrowResolveResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.Equal(t, "Refunded Buyer", result.Outcome)

	status, resp = env.call(t, "escrow_history", map[string]interface{}{"id": id}, nil)
	require.Equal(t, http.StatusOK, status)
	var history []historyEntryJSON
	require.NoError(t, json.Unmarshal(resp.Result, &history))
	require.Len(t, history, 3)
	require.Equal(t, "ACTIVE", history[0].Status)
	require.Equal(t, "DISPUTED", history[1].Status)
	require.Equal(t, "COMPLETE", history[2].Status)
	for i, entry := range history {
		require.Equal(t, uint64(i+1), entry.Sequence)
	}
}

func TestEscrowResolvePartialAmountMismatch(t *testing.T) {
	env := newTestEnv(t, "")
	id := env.mustCreate(t, "1000")
	status, resp := env.call(t, "escrow_resolvePartial", map[string]interface{}{
		"id":           id,
		"caller":       crypto.MustEncodeAddress(env.arbitrator),
		"buyerAmount":  "600",
		"sellerAmount": "300",
	}, nil)
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, codeEscrowConflict, resp.Error.Code)
	require.EqualValues(t, 103, resp.Error.Data["escrowCode"])
}

func TestEscrowClaimTimeoutNotExpired(t *testing.T) {
	env := newTestEnv(t, "")
	id := env.mustCreate(t, "1000")
	status, resp := env.call(t, "escrow_claimTimeout", map[string]interface{}{
		"id":     id,
		"caller": crypto.MustEncodeAddress(env.buyer),
	}, nil)
	require.Equal(t, http.StatusConflict, status)
	require.EqualValues(t, 150, resp.Error.Data["escrowCode"])
}

func TestEscrowSetFeeTooHigh(t *testing.T) {
	env := newTestEnv(t, "")
	id := env.mustCreate(t, "1000")
	status, resp := env.call(t, "escrow_setArbitratorFee", map[string]interface{}{
		"id":     id,
		"caller": crypto.MustEncodeAddress(env.arbitrator),
		"feePct": 11,
	}, nil)
	require.Equal(t, http.StatusConflict, status)
	require.EqualValues(t, 107, resp.Error.Data["escrowCode"])
}

func TestEscrowPausedModule(t *testing.T) {
	env := newTestEnv(t, "")
	env.node.SetPaused(core.ModuleEscrow, true)
	status, resp := env.call(t, "escrow_create", map[string]interface{}{
		"buyer":      crypto.MustEncodeAddress(env.buyer),
		"seller":     crypto.MustEncodeAddress(env.seller),
		"arbitrator": crypto.MustEncodeAddress(env.arbitrator),
		"amount":     "1000",
	}, nil)
	require.Equal(t, http.StatusServiceUnavailable, status)
	require.Equal(t, codeEscrowPaused, resp.Error.Code)
	require.Equal(t, "module_paused", resp.Error.Message)
}

func TestEscrowMilestoneLifecycle(t *testing.T) {
	env := newTestEnv(t, "")
	status, resp := env.call(t, "escrow_create", map[string]interface{}{
		"buyer":       crypto.MustEncodeAddress(env.buyer),
		"seller":      crypto.MustEncodeAddress(env.seller),
		"arbitrator":  crypto.MustEncodeAddress(env.arbitrator),
		"amount":      "1000",
		"totalAmount": "1500",
	}, nil)
	require.Equal(t, http.StatusOK, status)
	var created escrowCreateResult
	require.NoError(t, json.Unmarshal(resp.Result, &created))

	status, resp = env.call(t, "escrow_addMilestone", map[string]interface{}{
		"id":          created.ID,
		"caller":      crypto.MustEncodeAddress(env.seller),
		"amount":      "400",
		"description": "ship hardware",
	}, nil)
	require.Equal(t, http.StatusOK, status)
	var added milestoneAddResult
	require.NoError(t, json.Unmarshal(resp.Result, &added))
	require.Equal(t, uint64(0), added.MilestoneID)

	status, resp = env.call(t, "escrow_completeMilestone", map[string]interface{}{
		"id":          created.ID,
		"caller":      crypto.MustEncodeAddress(env.buyer),
		"milestoneId": added.MilestoneID,
	}, nil)
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, resp.Error)

	status, resp = env.call(t, "escrow_get", map[string]interface{}{"id": created.ID}, nil)
	require.Equal(t, http.StatusOK, status)
	var rec escrowJSON
	require.NoError(t, json.Unmarshal(resp.Result, &rec))
	require.Len(t, rec.Milestones, 1)
	require.True(t, rec.Milestones[0].IsComplete)
	require.Equal(t, "400", rec.Milestones[0].Amount)

	// Over-committing the remaining budget is rejected.
	status, resp = env.call(t, "escrow_addMilestone", map[string]interface{}{
		"id":     created.ID,
		"caller": crypto.MustEncodeAddress(env.seller),
		"amount": "200",
	}, nil)
	require.Equal(t, http.StatusConflict, status)
	require.EqualValues(t, 104, resp.Error.Data["escrowCode"])
}
