package reputation

import (
	"errors"

	"escrowd/core/events"
	"escrowd/core/types"
)

// ErrNotEligible is returned when the escrow is not complete or the rater is
// not one of its parties. Surfaced with stable code 108 at the RPC boundary.
var ErrNotEligible = errors.New("reputation: rater not eligible")

// CompletionView is the slice of an escrow record the reputation module needs
// to judge eligibility: the parties and whether the settlement is terminal.
type CompletionView struct {
	Buyer    [20]byte
	Seller   [20]byte
	Complete bool
}

type reputationEvent struct {
	evt *types.Event
}

func (e reputationEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e reputationEvent) Event() *types.Event { return e.evt }

// Engine wires rating operations against the ledger abstraction. It wraps the
// persistence layer so callers can rate counterparties without
// re-implementing storage concerns.
type Engine struct {
	ledger  *Ledger
	emitter events.Emitter
}

// NewEngine constructs an engine backed by the provided storage backend.
func NewEngine(store storage) *Engine {
	if store == nil {
		return &Engine{emitter: events.NoopEmitter{}}
	}
	return &Engine{ledger: NewLedger(store), emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// RateCounterparty records one rating for target. Only a party to a COMPLETE
// escrow may rate; ineligible callers receive ErrNotEligible before any
// counter moves.
func (e *Engine) RateCounterparty(view CompletionView, rater, target [20]byte, positive bool) (*Entry, error) {
	if e == nil || e.ledger == nil {
		return nil, errNilLedger
	}
	if !view.Complete {
		return nil, ErrNotEligible
	}
	if rater != view.Buyer && rater != view.Seller {
		return nil, ErrNotEligible
	}
	entry, err := e.ledger.Rate(target, positive)
	if err != nil {
		return nil, err
	}
	if e.emitter != nil {
		e.emitter.Emit(reputationEvent{evt: NewRatedEvent(target, entry, positive)})
	}
	return entry, nil
}

// Get fetches the rating counters for target; ok reports whether the
// principal has ever been rated.
func (e *Engine) Get(target [20]byte) (*Entry, bool, error) {
	if e == nil || e.ledger == nil {
		return nil, false, errNilLedger
	}
	return e.ledger.Get(target)
}
