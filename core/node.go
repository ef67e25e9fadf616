package core

import (
	"math/big"
	"sync"

	"escrowd/core/events"
	"escrowd/native/common"
	"escrowd/native/escrow"
	"escrowd/native/reputation"
)

// Module names recognised by the pause guard.
const (
	ModuleEscrow     = "escrow"
	ModuleReputation = "reputation"
)

// Node wires the settlement engine, the reputation engine, the account ledger
// and the event buffer into the single entry point consumed by the RPC layer.
// Every public operation receives the invoking principal explicitly; the node
// performs no authentication.
type Node struct {
	ledger     *AccountLedger
	escrow     *escrow.Engine
	reputation *reputation.Engine
	emitter    *events.MemoryEmitter

	pauseMu sync.RWMutex
	paused  map[string]bool
}

// NewNode constructs a node with an empty ledger, an empty record store and a
// buffering event emitter shared by both engines.
func NewNode() *Node {
	ledger := NewAccountLedger()
	emitter := events.NewMemoryEmitter(4096)
	eng := escrow.NewEngine(escrow.NewStore(), ledger)
	eng.SetEmitter(emitter)
	rep := reputation.NewEngine(newMemoryKV())
	rep.SetEmitter(emitter)
	return &Node{
		ledger:     ledger,
		escrow:     eng,
		reputation: rep,
		emitter:    emitter,
		paused:     make(map[string]bool),
	}
}

// Ledger exposes the account ledger for genesis seeding and balance reads.
func (n *Node) Ledger() *AccountLedger { return n.ledger }

// EscrowEngine exposes the settlement engine for policy configuration.
func (n *Node) EscrowEngine() *escrow.Engine { return n.escrow }

// Emitter exposes the buffered event feed.
func (n *Node) Emitter() *events.MemoryEmitter { return n.emitter }

// SetPaused toggles the administrative pause switch for a module.
func (n *Node) SetPaused(module string, paused bool) {
	n.pauseMu.Lock()
	defer n.pauseMu.Unlock()
	n.paused[module] = paused
}

// IsPaused implements common.PauseView.
func (n *Node) IsPaused(module string) bool {
	n.pauseMu.RLock()
	defer n.pauseMu.RUnlock()
	return n.paused[module]
}

// EscrowCreate opens a new escrow, debiting the buyer into module custody.
func (n *Node) EscrowCreate(buyer, seller, arbitrator [20]byte, amount, totalAmount *big.Int) (uint64, error) {
	if err := common.Guard(n, ModuleEscrow); err != nil {
		return 0, err
	}
	return n.escrow.Create(buyer, seller, arbitrator, amount, totalAmount)
}

// EscrowConfirmDelivery settles in favour of the seller.
func (n *Node) EscrowConfirmDelivery(id uint64, caller [20]byte) error {
	if err := common.Guard(n, ModuleEscrow); err != nil {
		return err
	}
	return n.escrow.ConfirmDelivery(id, caller)
}

// EscrowDispute flags the escrow as disputed.
func (n *Node) EscrowDispute(id uint64, caller [20]byte) error {
	if err := common.Guard(n, ModuleEscrow); err != nil {
		return err
	}
	return n.escrow.RaiseDispute(id, caller)
}

// EscrowResolve arbitrates a disputed escrow and returns the outcome string.
func (n *Node) EscrowResolve(id uint64, caller [20]byte, refundBuyer bool) (string, error) {
	if err := common.Guard(n, ModuleEscrow); err != nil {
		return "", err
	}
	return n.escrow.ResolveDispute(id, caller, refundBuyer)
}

// EscrowResolvePartial splits custody between the parties.
func (n *Node) EscrowResolvePartial(id uint64, caller [20]byte, buyerAmount, sellerAmount *big.Int) error {
	if err := common.Guard(n, ModuleEscrow); err != nil {
		return err
	}
	return n.escrow.ResolvePartial(id, caller, buyerAmount, sellerAmount)
}

// EscrowClaimTimeout reclaims an expired escrow for the buyer.
func (n *Node) EscrowClaimTimeout(id uint64, caller [20]byte) error {
	if err := common.Guard(n, ModuleEscrow); err != nil {
		return err
	}
	return n.escrow.ClaimTimeout(id, caller)
}

// EscrowApproveRelease records the arbitrator's high-value co-signature.
func (n *Node) EscrowApproveRelease(id uint64, caller [20]byte) error {
	if err := common.Guard(n, ModuleEscrow); err != nil {
		return err
	}
	return n.escrow.ApproveHighValueRelease(id, caller)
}

// EscrowSetFee adjusts the arbitrator fee percentage.
func (n *Node) EscrowSetFee(id uint64, caller [20]byte, pct uint8) error {
	if err := common.Guard(n, ModuleEscrow); err != nil {
		return err
	}
	return n.escrow.SetArbitratorFee(id, caller, pct)
}

// EscrowAddMilestone attaches a partial-release condition.
func (n *Node) EscrowAddMilestone(id uint64, caller [20]byte, amount *big.Int, description string) (uint64, error) {
	if err := common.Guard(n, ModuleEscrow); err != nil {
		return 0, err
	}
	return n.escrow.AddMilestone(id, caller, amount, description)
}

// EscrowCompleteMilestone marks a milestone as delivered.
func (n *Node) EscrowCompleteMilestone(id uint64, caller [20]byte, milestoneID uint64) error {
	if err := common.Guard(n, ModuleEscrow); err != nil {
		return err
	}
	return n.escrow.CompleteMilestone(id, caller, milestoneID)
}

// EscrowGet returns a clone of the escrow record.
func (n *Node) EscrowGet(id uint64) (*escrow.Record, error) {
	return n.escrow.Record(id)
}

// EscrowHistory returns the ordered audit trail for the escrow.
func (n *Node) EscrowHistory(id uint64) []escrow.HistoryEntry {
	return n.escrow.History(id)
}

// ReputationRate records one counterparty rating against a completed escrow.
func (n *Node) ReputationRate(escrowID uint64, rater, target [20]byte, positive bool) (*reputation.Entry, error) {
	if err := common.Guard(n, ModuleReputation); err != nil {
		return nil, err
	}
	rec, err := n.escrow.Record(escrowID)
	if err != nil {
		return nil, err
	}
	view := reputation.CompletionView{
		Buyer:    rec.Buyer,
		Seller:   rec.Seller,
		Complete: rec.Status == escrow.StatusComplete,
	}
	return n.reputation.RateCounterparty(view, rater, target, positive)
}

// ReputationGet returns the rating counters for a principal.
func (n *Node) ReputationGet(target [20]byte) (*reputation.Entry, bool, error) {
	return n.reputation.Get(target)
}
