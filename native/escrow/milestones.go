package escrow

import (
	"math/big"
)

// AddMilestone attaches a new partial-release condition to an ACTIVE escrow.
// Only the seller may add milestones, and cumulative commitments may not
// exceed totalAmount minus the custodied principal. Milestone ids are
// sequential within the record, starting at 0.
func (e *Engine) AddMilestone(id uint64, caller [20]byte, amount *big.Int, description string) (uint64, error) {
	if e == nil || e.store == nil {
		return 0, errNilStore
	}
	unlock := e.store.LockRecord(id)
	defer unlock()
	rec, ok := e.store.Get(id)
	if !ok {
		return 0, ErrNotFound
	}
	if rec.Seller != caller {
		return 0, ErrUnauthorized
	}
	if rec.Status != StatusActive {
		return 0, ErrInvalidState
	}
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}
	committed := rec.MilestoneCommitted()
	if new(big.Int).Add(committed, amt).Cmp(rec.MilestoneBudget()) > 0 {
		return 0, ErrBudgetExceeded
	}
	milestone := &Milestone{
		ID:          uint64(len(rec.Milestones)),
		Amount:      amt,
		Description: description,
	}
	rec.Milestones = append(rec.Milestones, milestone)
	if err := e.commit(rec, NewMilestoneAddedEvent(rec, milestone)); err != nil {
		return 0, err
	}
	return milestone.ID, nil
}

// CompleteMilestone flips the milestone's completion flag. Only the buyer may
// complete milestones; the flag is monotonic, so re-completing is a no-op.
// When the auto-release policy is enabled the milestone amount moves from the
// buyer to the seller before the flag is committed.
func (e *Engine) CompleteMilestone(id uint64, caller [20]byte, milestoneID uint64) error {
	if e == nil || e.store == nil {
		return errNilStore
	}
	unlock := e.store.LockRecord(id)
	defer unlock()
	rec, ok := e.store.Get(id)
	if !ok {
		return ErrNotFound
	}
	if rec.Buyer != caller {
		return ErrUnauthorized
	}
	milestone := rec.FindMilestone(milestoneID)
	if milestone == nil {
		return ErrMilestoneNotFound
	}
	if milestone.IsComplete {
		return nil
	}
	if e.milestoneAutoRelease && !milestone.Released {
		// Milestone commitments sit above the custodied principal, so the
		// release draws on the buyer's account rather than the vault.
		if err := e.transfer(rec.Buyer, rec.Seller, milestone.Amount); err != nil {
			return err
		}
		milestone.Released = true
	}
	milestone.IsComplete = true
	return e.commit(rec, NewMilestoneCompletedEvent(rec, milestone))
}
