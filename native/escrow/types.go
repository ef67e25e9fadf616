package escrow

import (
	"fmt"
	"math/big"
)

// Status represents the lifecycle states supported by the settlement engine.
type Status uint8

const (
	StatusActive Status = iota + 1
	StatusDisputed
	StatusExpired
	StatusComplete
)

// MaxArbitratorFeePct is the ceiling for the arbitrator fee percentage.
const MaxArbitratorFeePct uint8 = 10

// Valid reports whether the status value is within the supported range.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusDisputed, StatusExpired, StatusComplete:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status absorbs further transitions. DISPUTED is
// not terminal: it still resolves to COMPLETE via arbitration.
func (s Status) Terminal() bool {
	return s == StatusExpired || s == StatusComplete
}

// String returns the canonical wire representation of the status.
func (s Status) String() string {
	switch s {
	case StatusActive:
		return "ACTIVE"
	case StatusDisputed:
		return "DISPUTED"
	case StatusExpired:
		return "EXPIRED"
	case StatusComplete:
		return "COMPLETE"
	default:
		return "UNKNOWN"
	}
}

// Milestone is a partial, pre-agreed release condition within a larger escrow.
// Milestone ids are sequential within their record.
type Milestone struct {
	ID          uint64
	Amount      *big.Int
	Description string
	IsComplete  bool
	Released    bool
}

// Clone returns a deep copy of the milestone.
func (m *Milestone) Clone() *Milestone {
	if m == nil {
		return nil
	}
	clone := *m
	clone.Amount = cloneBigInt(m.Amount)
	return &clone
}

// Record captures the immutable terms and runtime status of a single escrow
// agreement. Buyer, seller, arbitrator and amount never change after creation;
// escrow ids are monotonic and never reused.
type Record struct {
	ID                 uint64
	Buyer              [20]byte
	Seller             [20]byte
	Arbitrator         [20]byte
	Amount             *big.Int
	TotalAmount        *big.Int
	Status             Status
	RequireMultiSig    bool
	ArbitratorApproved bool
	ArbitratorFeePct   uint8
	CreatedAt          int64
	ExpiresAt          int64
	Milestones         []*Milestone
}

// Clone returns a deep copy of the record so callers can safely mutate the
// copy without affecting the stored instance.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Amount = cloneBigInt(r.Amount)
	clone.TotalAmount = cloneBigInt(r.TotalAmount)
	if len(r.Milestones) > 0 {
		clone.Milestones = make([]*Milestone, len(r.Milestones))
		for i, m := range r.Milestones {
			clone.Milestones[i] = m.Clone()
		}
	}
	return &clone
}

// IsParty reports whether addr is the record's buyer or seller.
func (r *Record) IsParty(addr [20]byte) bool {
	if r == nil {
		return false
	}
	return addr == r.Buyer || addr == r.Seller
}

// FindMilestone returns the milestone with the given id, or nil.
func (r *Record) FindMilestone(id uint64) *Milestone {
	if r == nil {
		return nil
	}
	for _, m := range r.Milestones {
		if m != nil && m.ID == id {
			return m
		}
	}
	return nil
}

// MilestoneBudget returns the ceiling for cumulative milestone commitments:
// totalAmount minus the custodied principal.
func (r *Record) MilestoneBudget() *big.Int {
	if r == nil {
		return big.NewInt(0)
	}
	budget := new(big.Int).Sub(cloneBigInt(r.TotalAmount), cloneBigInt(r.Amount))
	if budget.Sign() < 0 {
		return big.NewInt(0)
	}
	return budget
}

// MilestoneCommitted returns the sum of all milestone amounts on the record.
func (r *Record) MilestoneCommitted() *big.Int {
	total := big.NewInt(0)
	if r == nil {
		return total
	}
	for _, m := range r.Milestones {
		if m != nil && m.Amount != nil {
			total.Add(total, m.Amount)
		}
	}
	return total
}

// SanitizeRecord validates and normalises the supplied record, returning a
// cloned instance with non-nil amount fields. The original is not mutated.
func SanitizeRecord(r *Record) (*Record, error) {
	if r == nil {
		return nil, fmt.Errorf("escrow: nil record")
	}
	clone := r.Clone()
	if clone.Amount.Sign() < 0 {
		return nil, fmt.Errorf("escrow: amount must be non-negative")
	}
	if clone.TotalAmount.Sign() == 0 {
		clone.TotalAmount = cloneBigInt(clone.Amount)
	}
	if clone.TotalAmount.Cmp(clone.Amount) < 0 {
		return nil, fmt.Errorf("escrow: total amount below principal")
	}
	if clone.ArbitratorFeePct > MaxArbitratorFeePct {
		return nil, fmt.Errorf("escrow: arbitrator fee out of range: %d", clone.ArbitratorFeePct)
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("escrow: invalid status: %d", clone.Status)
	}
	return clone, nil
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
