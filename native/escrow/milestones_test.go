package escrow

import (
	"errors"
	"math/big"
	"testing"
)

func mustCreateWithTotal(t *testing.T, engine *Engine, amount, total int64) uint64 {
	t.Helper()
	id, err := engine.Create(buyerAddr, sellerAddr, arbitratorAddr, big.NewInt(amount), big.NewInt(total))
	if err != nil {
		t.Fatalf("create escrow: %v", err)
	}
	return id
}

func TestAddMilestoneBudget(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	id := mustCreateWithTotal(t, engine, 1000, 1500)

	first, err := engine.AddMilestone(id, sellerAddr, big.NewInt(300), "design")
	if err != nil {
		t.Fatalf("add first milestone: %v", err)
	}
	if first != 0 {
		t.Fatalf("expected first milestone id 0, got %d", first)
	}
	if _, err := engine.AddMilestone(id, sellerAddr, big.NewInt(300), "build"); !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("expected ErrBudgetExceeded at 600/500, got %v", err)
	}
	second, err := engine.AddMilestone(id, sellerAddr, big.NewInt(200), "build")
	if err != nil {
		t.Fatalf("add second milestone: %v", err)
	}
	if second != 1 {
		t.Fatalf("expected second milestone id 1, got %d", second)
	}
	rec := mustRecord(t, engine, id)
	if got := rec.MilestoneCommitted(); got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("expected committed total 500, got %s", got)
	}
}

func TestAddMilestoneAuthorization(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	id := mustCreateWithTotal(t, engine, 1000, 1500)

	if _, err := engine.AddMilestone(id, buyerAddr, big.NewInt(100), ""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for buyer, got %v", err)
	}
	if _, err := engine.AddMilestone(id, sellerAddr, big.NewInt(0), ""); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero milestone, got %v", err)
	}
	if err := engine.ConfirmDelivery(id, sellerAddr); err != nil {
		t.Fatalf("confirm delivery: %v", err)
	}
	if _, err := engine.AddMilestone(id, sellerAddr, big.NewInt(100), ""); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState after completion, got %v", err)
	}
}

func TestCreateRejectsTotalBelowPrincipal(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	if _, err := engine.Create(buyerAddr, sellerAddr, arbitratorAddr, big.NewInt(1000), big.NewInt(500)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for total below principal, got %v", err)
	}
}

func TestCompleteMilestone(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	id := mustCreateWithTotal(t, engine, 1000, 1500)
	milestoneID, err := engine.AddMilestone(id, sellerAddr, big.NewInt(400), "ship")
	if err != nil {
		t.Fatalf("add milestone: %v", err)
	}

	if err := engine.CompleteMilestone(id, sellerAddr, milestoneID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for seller completion, got %v", err)
	}
	if err := engine.CompleteMilestone(id, buyerAddr, 7); !errors.Is(err, ErrMilestoneNotFound) {
		t.Fatalf("expected ErrMilestoneNotFound, got %v", err)
	}
	if err := engine.CompleteMilestone(id, buyerAddr, milestoneID); err != nil {
		t.Fatalf("complete milestone: %v", err)
	}
	rec := mustRecord(t, engine, id)
	milestone := rec.FindMilestone(milestoneID)
	if milestone == nil || !milestone.IsComplete {
		t.Fatalf("expected milestone to be complete")
	}
	historyBefore := len(engine.History(id))
	// Completion is monotonic: repeating it is a no-op.
	if err := engine.CompleteMilestone(id, buyerAddr, milestoneID); err != nil {
		t.Fatalf("re-complete milestone: %v", err)
	}
	if got := len(engine.History(id)); got != historyBefore {
		t.Fatalf("no-op completion appended history: %d -> %d", historyBefore, got)
	}
}

func TestCompleteMilestoneAutoRelease(t *testing.T) {
	engine, _, ledger, _ := newTestEngine(t)
	engine.SetMilestoneAutoRelease(true)
	id := mustCreateWithTotal(t, engine, 1000, 1500)
	milestoneID, err := engine.AddMilestone(id, sellerAddr, big.NewInt(400), "ship")
	if err != nil {
		t.Fatalf("add milestone: %v", err)
	}

	buyerBefore := ledger.balanceOf(buyerAddr)
	if err := engine.CompleteMilestone(id, buyerAddr, milestoneID); err != nil {
		t.Fatalf("complete milestone: %v", err)
	}
	wantBuyer := new(big.Int).Sub(buyerBefore, big.NewInt(400))
	if got := ledger.balanceOf(buyerAddr); got.Cmp(wantBuyer) != 0 {
		t.Fatalf("expected buyer balance %s, got %s", wantBuyer, got)
	}
	if got := ledger.balanceOf(sellerAddr); got.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("expected seller balance 400, got %s", got)
	}
	rec := mustRecord(t, engine, id)
	milestone := rec.FindMilestone(milestoneID)
	if milestone == nil || !milestone.Released {
		t.Fatalf("expected milestone to be marked released")
	}
}

func TestCompleteMilestoneAutoReleaseTransferFailure(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	engine.SetMilestoneAutoRelease(true)
	id := mustCreateWithTotal(t, engine, 1000, 100_000)
	// Commitment exceeds what the buyer has left after custody.
	milestoneID, err := engine.AddMilestone(id, sellerAddr, big.NewInt(50_000), "oversized")
	if err != nil {
		t.Fatalf("add milestone: %v", err)
	}
	if err := engine.CompleteMilestone(id, buyerAddr, milestoneID); !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	rec := mustRecord(t, engine, id)
	milestone := rec.FindMilestone(milestoneID)
	if milestone == nil || milestone.IsComplete || milestone.Released {
		t.Fatalf("expected milestone untouched after failed release")
	}
}
