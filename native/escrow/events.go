package escrow

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"escrowd/core/types"
)

const (
	EventTypeInitiated          = "escrow-initiated"
	EventTypeDisputed           = "escrow-disputed"
	EventTypeCompleted          = "escrow-completed"
	EventTypeResolved           = "escrow-resolved"
	EventTypeExpired            = "escrow-expired"
	EventTypeApproved           = "escrow-approval-granted"
	EventTypeFeeUpdated         = "escrow-fee-updated"
	EventTypeMilestoneAdded     = "escrow-milestone-added"
	EventTypeMilestoneCompleted = "escrow-milestone-completed"
)

// NewInitiatedEvent returns the canonical event payload for a newly created
// escrow: {buyer, seller, amount} plus the assigned identifier.
func NewInitiatedEvent(r *Record) *types.Event { return newEscrowEvent(EventTypeInitiated, r) }

// NewDisputedEvent returns the payload emitted when the buyer raises a
// dispute.
func NewDisputedEvent(r *Record) *types.Event { return newEscrowEvent(EventTypeDisputed, r) }

// NewCompletedEvent returns the payload emitted when delivery is confirmed and
// the escrow settles in the seller's favour.
func NewCompletedEvent(r *Record) *types.Event { return newEscrowEvent(EventTypeCompleted, r) }

// NewExpiredEvent returns the payload emitted when an expired escrow is
// reclaimed for the buyer.
func NewExpiredEvent(r *Record) *types.Event { return newEscrowEvent(EventTypeExpired, r) }

// NewApprovalEvent returns the payload emitted when the arbitrator co-signs a
// high-value release.
func NewApprovalEvent(r *Record) *types.Event { return newEscrowEvent(EventTypeApproved, r) }

// NewResolvedEvent returns the payload emitted when a dispute is resolved,
// tagged with the arbitration outcome.
func NewResolvedEvent(r *Record, outcome string) *types.Event {
	evt := newEscrowEvent(EventTypeResolved, r)
	evt.Attributes["outcome"] = outcome
	return evt
}

// NewPartialResolvedEvent returns the payload emitted when custody is split
// between the parties.
func NewPartialResolvedEvent(r *Record, buyerAmount, sellerAmount *big.Int) *types.Event {
	evt := newEscrowEvent(EventTypeResolved, r)
	evt.Attributes["buyerAmount"] = formatAmount(buyerAmount)
	evt.Attributes["sellerAmount"] = formatAmount(sellerAmount)
	return evt
}

// NewFeeUpdatedEvent returns the payload emitted when the arbitrator adjusts
// the fee percentage.
func NewFeeUpdatedEvent(r *Record) *types.Event {
	evt := newEscrowEvent(EventTypeFeeUpdated, r)
	if r != nil {
		evt.Attributes["feePct"] = strconv.FormatUint(uint64(r.ArbitratorFeePct), 10)
	}
	return evt
}

// NewMilestoneAddedEvent returns the payload emitted when the seller attaches
// a milestone.
func NewMilestoneAddedEvent(r *Record, m *Milestone) *types.Event {
	evt := newEscrowEvent(EventTypeMilestoneAdded, r)
	applyMilestoneAttrs(evt, m)
	return evt
}

// NewMilestoneCompletedEvent returns the payload emitted when the buyer marks
// a milestone complete.
func NewMilestoneCompletedEvent(r *Record, m *Milestone) *types.Event {
	evt := newEscrowEvent(EventTypeMilestoneCompleted, r)
	applyMilestoneAttrs(evt, m)
	return evt
}

func newEscrowEvent(eventType string, r *Record) *types.Event {
	attrs := make(map[string]string)
	evt := &types.Event{Type: eventType, Attributes: attrs}
	if r == nil {
		return evt
	}
	sanitized, err := SanitizeRecord(r)
	if err != nil {
		return evt
	}
	attrs["id"] = strconv.FormatUint(sanitized.ID, 10)
	attrs["buyer"] = hex.EncodeToString(sanitized.Buyer[:])
	attrs["seller"] = hex.EncodeToString(sanitized.Seller[:])
	attrs["arbitrator"] = hex.EncodeToString(sanitized.Arbitrator[:])
	attrs["amount"] = sanitized.Amount.String()
	attrs["status"] = sanitized.Status.String()
	return evt
}

func applyMilestoneAttrs(evt *types.Event, m *Milestone) {
	if evt == nil || m == nil {
		return
	}
	evt.Attributes["milestoneId"] = strconv.FormatUint(m.ID, 10)
	evt.Attributes["milestoneAmount"] = formatAmount(m.Amount)
	if m.Description != "" {
		evt.Attributes["description"] = m.Description
	}
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
