package escrow

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"escrowd/core/events"
	"escrowd/core/types"
)

var (
	errNilStore  = errors.New("escrow engine: store not configured")
	errNilLedger = errors.New("escrow engine: ledger adapter not configured")
)

// LedgerAdapter abstracts "move value from party A to party B". The engine
// treats the call as synchronous and atomic: either the value moves or it does
// not. Failures abort the surrounding transition without committing state.
type LedgerAdapter interface {
	Transfer(from, to [20]byte, amount *big.Int) error
}

// Outcome strings reported by ResolveDispute.
const (
	OutcomeRefundedBuyer = "Refunded Buyer"
	OutcomePaidSeller    = "Paid Seller"
)

// DefaultMultiSigThreshold is the principal amount at or above which an escrow
// requires an additional arbitrator approval before release.
var DefaultMultiSigThreshold = big.NewInt(1_000_000)

const (
	// DefaultArbitratorFeePct applies to new escrows until the arbitrator
	// adjusts it.
	DefaultArbitratorFeePct uint8 = 2
	// DefaultEscrowTTL fixes expiresAt relative to creation when the engine is
	// not configured otherwise (seconds).
	DefaultEscrowTTL int64 = 7 * 24 * 60 * 60
)

type escrowEvent struct {
	evt *types.Event
}

func (e escrowEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e escrowEvent) Event() *types.Event { return e.evt }

// Engine is the escrow settlement state machine. Every public operation
// validates preconditions against the stored record, invokes the ledger
// adapter for value movement, then commits the mutation together with one
// history snapshot and one emitted event. Validation happens before any
// mutation; a ledger failure is the only mid-transition error and leaves the
// record untouched.
type Engine struct {
	store                *Store
	ledger               LedgerAdapter
	emitter              events.Emitter
	vault                [20]byte
	multiSigThreshold    *big.Int
	defaultFeePct        uint8
	ttl                  int64
	milestoneAutoRelease bool
	nowFn                func() int64
}

// NewEngine creates a settlement engine bound to the record store and ledger
// adapter, with a no-op emitter and default policy values.
func NewEngine(store *Store, ledger LedgerAdapter) *Engine {
	var vault [20]byte
	copy(vault[:], []byte("escrow/module/vault!"))
	return &Engine{
		store:             store,
		ledger:            ledger,
		emitter:           events.NoopEmitter{},
		vault:             vault,
		multiSigThreshold: new(big.Int).Set(DefaultMultiSigThreshold),
		defaultFeePct:     DefaultArbitratorFeePct,
		ttl:               DefaultEscrowTTL,
		nowFn:             func() int64 { return time.Now().Unix() },
	}
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetVaultAddress overrides the module custody address.
func (e *Engine) SetVaultAddress(addr [20]byte) { e.vault = addr }

// VaultAddress returns the module custody address.
func (e *Engine) VaultAddress() [20]byte { return e.vault }

// SetMultiSigThreshold configures the high-value gating threshold. Nil or
// non-positive values reset the default.
func (e *Engine) SetMultiSigThreshold(threshold *big.Int) {
	if threshold == nil || threshold.Sign() <= 0 {
		e.multiSigThreshold = new(big.Int).Set(DefaultMultiSigThreshold)
		return
	}
	e.multiSigThreshold = new(big.Int).Set(threshold)
}

// SetDefaultFeePct configures the arbitrator fee applied to new escrows.
// Values above the ceiling are clamped.
func (e *Engine) SetDefaultFeePct(pct uint8) {
	if pct > MaxArbitratorFeePct {
		pct = MaxArbitratorFeePct
	}
	e.defaultFeePct = pct
}

// SetTTL configures the expiration window, in the engine's time unit, applied
// to new escrows. Non-positive values reset the default.
func (e *Engine) SetTTL(ttl int64) {
	if ttl <= 0 {
		e.ttl = DefaultEscrowTTL
		return
	}
	e.ttl = ttl
}

// SetMilestoneAutoRelease toggles whether completing a milestone releases its
// amount to the seller. Off by default.
func (e *Engine) SetMilestoneAutoRelease(enabled bool) { e.milestoneAutoRelease = enabled }

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(escrowEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// transfer invokes the ledger adapter and maps any failure to
// ErrTransferFailed so callers surface a stable code.
func (e *Engine) transfer(from, to [20]byte, amount *big.Int) error {
	if e.ledger == nil {
		return errNilLedger
	}
	if err := e.ledger.Transfer(from, to, cloneBigInt(amount)); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	return nil
}

// commit persists the mutated record, appends the history snapshot and emits
// the transition event. Must be called with the record lock held and only
// after every ledger leg succeeded.
func (e *Engine) commit(rec *Record, event *types.Event) error {
	if err := e.store.Put(rec); err != nil {
		return err
	}
	e.store.AppendHistory(rec, e.now())
	e.emit(event)
	return nil
}

func feeAmount(amount *big.Int, pct uint8) *big.Int {
	fee := new(big.Int).Mul(cloneBigInt(amount), big.NewInt(int64(pct)))
	return fee.Div(fee, big.NewInt(100))
}

// Create initialises a new escrow, taking the principal from the buyer into
// module custody. A zero totalAmount defaults to the principal. The custody
// debit happens before the record is committed so a ledger failure creates
// nothing.
func (e *Engine) Create(buyer, seller, arbitrator [20]byte, amount, totalAmount *big.Int) (uint64, error) {
	if e == nil || e.store == nil {
		return 0, errNilStore
	}
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}
	total := cloneBigInt(totalAmount)
	if total.Sign() == 0 {
		total = cloneBigInt(amt)
	}
	if total.Cmp(amt) < 0 {
		return 0, ErrInvalidAmount
	}
	now := e.now()
	rec := &Record{
		Buyer:            buyer,
		Seller:           seller,
		Arbitrator:       arbitrator,
		Amount:           amt,
		TotalAmount:      total,
		Status:           StatusActive,
		RequireMultiSig:  amt.Cmp(e.multiSigThreshold) >= 0,
		ArbitratorFeePct: e.defaultFeePct,
		CreatedAt:        now,
		ExpiresAt:        now + e.ttl,
	}
	if err := e.transfer(buyer, e.vault, amt); err != nil {
		return 0, err
	}
	id, err := e.store.Create(rec)
	if err != nil {
		return 0, err
	}
	rec.ID = id
	e.store.AppendHistory(rec, now)
	e.emit(NewInitiatedEvent(rec))
	return id, nil
}

// ConfirmDelivery settles the escrow in favour of the seller, minus the
// arbitrator fee. The caller check precedes the status check so a non-seller
// is rejected with Unauthorized irrespective of the record's state.
func (e *Engine) ConfirmDelivery(id uint64, caller [20]byte) error {
	if e == nil || e.store == nil {
		return errNilStore
	}
	unlock := e.store.LockRecord(id)
	defer unlock()
	rec, ok := e.store.Get(id)
	if !ok {
		return ErrNotFound
	}
	if rec.Seller != caller {
		return ErrUnauthorized
	}
	if rec.Status == StatusDisputed {
		return ErrAlreadyDisputed
	}
	if rec.Status != StatusActive {
		return ErrInvalidState
	}
	if rec.RequireMultiSig && !rec.ArbitratorApproved {
		return ErrApprovalRequired
	}
	if err := e.paySellerWithFee(rec); err != nil {
		return err
	}
	rec.Status = StatusComplete
	return e.commit(rec, NewCompletedEvent(rec))
}

// RaiseDispute transitions the escrow from ACTIVE to DISPUTED. Only the buyer
// may invoke it.
func (e *Engine) RaiseDispute(id uint64, caller [20]byte) error {
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
	if rec.Status == StatusDisputed {
		return ErrAlreadyDisputed
	}
	if rec.Status != StatusActive {
		return ErrInvalidState
	}
	rec.Status = StatusDisputed
	return e.commit(rec, NewDisputedEvent(rec))
}

// ResolveDispute settles a disputed escrow according to the arbitrator's
// verdict: a full buyer refund, or seller payment minus the fee. Returns the
// outcome string reported to integrators.
func (e *Engine) ResolveDispute(id uint64, caller [20]byte, refundBuyer bool) (string, error) {
	if e == nil || e.store == nil {
		return "", errNilStore
	}
	unlock := e.store.LockRecord(id)
	defer unlock()
	rec, ok := e.store.Get(id)
	if !ok {
		return "", ErrNotFound
	}
	if rec.Arbitrator != caller {
		return "", ErrUnauthorized
	}
	if rec.Status != StatusDisputed {
		return "", ErrInvalidState
	}
	if rec.RequireMultiSig && !rec.ArbitratorApproved {
		return "", ErrApprovalRequired
	}
	outcome := OutcomePaidSeller
	if refundBuyer {
		outcome = OutcomeRefundedBuyer
		if err := e.transfer(e.vault, rec.Buyer, rec.Amount); err != nil {
			return "", err
		}
	} else if err := e.paySellerWithFee(rec); err != nil {
		return "", err
	}
	rec.Status = StatusComplete
	if err := e.commit(rec, NewResolvedEvent(rec, outcome)); err != nil {
		return "", err
	}
	return outcome, nil
}

// ResolvePartial splits the custodied principal between buyer and seller. The
// legs must sum exactly to the principal; no arbitrator fee applies to splits.
// Valid from ACTIVE or DISPUTED.
func (e *Engine) ResolvePartial(id uint64, caller [20]byte, buyerAmount, sellerAmount *big.Int) error {
	if e == nil || e.store == nil {
		return errNilStore
	}
	unlock := e.store.LockRecord(id)
	defer unlock()
	rec, ok := e.store.Get(id)
	if !ok {
		return ErrNotFound
	}
	if rec.Arbitrator != caller {
		return ErrUnauthorized
	}
	if rec.Status.Terminal() {
		return ErrInvalidState
	}
	buyerAmt := cloneBigInt(buyerAmount)
	sellerAmt := cloneBigInt(sellerAmount)
	if buyerAmt.Sign() < 0 || sellerAmt.Sign() < 0 {
		return ErrAmountMismatch
	}
	if new(big.Int).Add(buyerAmt, sellerAmt).Cmp(rec.Amount) != 0 {
		return ErrAmountMismatch
	}
	if buyerAmt.Sign() > 0 {
		if err := e.transfer(e.vault, rec.Buyer, buyerAmt); err != nil {
			return err
		}
	}
	if sellerAmt.Sign() > 0 {
		if err := e.transfer(e.vault, rec.Seller, sellerAmt); err != nil {
			return err
		}
	}
	rec.Status = StatusComplete
	return e.commit(rec, NewPartialResolvedEvent(rec, buyerAmt, sellerAmt))
}

// ClaimTimeout reclaims an expired escrow for the buyer. Anyone may trigger
// the transition once the expiration marker has passed; a ledger failure
// leaves the record ACTIVE so the claim is safe to retry.
func (e *Engine) ClaimTimeout(id uint64, caller [20]byte) error {
	if e == nil || e.store == nil {
		return errNilStore
	}
	unlock := e.store.LockRecord(id)
	defer unlock()
	rec, ok := e.store.Get(id)
	if !ok {
		return ErrNotFound
	}
	if rec.Status != StatusActive {
		return ErrInvalidState
	}
	if e.now() <= rec.ExpiresAt {
		return ErrClaimNotExpired
	}
	if err := e.transfer(e.vault, rec.Buyer, rec.Amount); err != nil {
		return err
	}
	rec.Status = StatusExpired
	return e.commit(rec, NewExpiredEvent(rec))
}

// ApproveHighValueRelease records the arbitrator's co-signature on a
// high-value escrow. The flag does not itself transition the status;
// ConfirmDelivery and ResolveDispute require it when multi-sig gating is on.
func (e *Engine) ApproveHighValueRelease(id uint64, caller [20]byte) error {
	if e == nil || e.store == nil {
		return errNilStore
	}
	unlock := e.store.LockRecord(id)
	defer unlock()
	rec, ok := e.store.Get(id)
	if !ok {
		return ErrNotFound
	}
	if rec.Arbitrator != caller {
		return ErrUnauthorized
	}
	if !rec.RequireMultiSig || rec.Status.Terminal() {
		return ErrInvalidState
	}
	if rec.ArbitratorApproved {
		return nil
	}
	rec.ArbitratorApproved = true
	return e.commit(rec, NewApprovalEvent(rec))
}

// SetArbitratorFee adjusts the arbitrator fee percentage. Only the arbitrator
// may change it, only before completion, and only up to the ceiling.
func (e *Engine) SetArbitratorFee(id uint64, caller [20]byte, pct uint8) error {
	if e == nil || e.store == nil {
		return errNilStore
	}
	unlock := e.store.LockRecord(id)
	defer unlock()
	rec, ok := e.store.Get(id)
	if !ok {
		return ErrNotFound
	}
	if rec.Arbitrator != caller {
		return ErrUnauthorized
	}
	if pct > MaxArbitratorFeePct {
		return ErrFeeTooHigh
	}
	if rec.Status == StatusComplete {
		return ErrInvalidState
	}
	rec.ArbitratorFeePct = pct
	return e.commit(rec, NewFeeUpdatedEvent(rec))
}

// Record returns a clone of the escrow record.
func (e *Engine) Record(id uint64) (*Record, error) {
	if e == nil || e.store == nil {
		return nil, errNilStore
	}
	rec, ok := e.store.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

// History returns the ordered audit trail for the escrow.
func (e *Engine) History(id uint64) []HistoryEntry {
	if e == nil || e.store == nil {
		return nil
	}
	return e.store.History(id)
}

// paySellerWithFee moves the principal out of custody: the seller receives the
// principal minus the arbitrator fee, the arbitrator receives the fee. The
// legs always sum to the custodied amount.
func (e *Engine) paySellerWithFee(rec *Record) error {
	fee := feeAmount(rec.Amount, rec.ArbitratorFeePct)
	payout := new(big.Int).Sub(cloneBigInt(rec.Amount), fee)
	if payout.Sign() > 0 {
		if err := e.transfer(e.vault, rec.Seller, payout); err != nil {
			return err
		}
	}
	if fee.Sign() > 0 {
		if err := e.transfer(e.vault, rec.Arbitrator, fee); err != nil {
			return err
		}
	}
	return nil
}
