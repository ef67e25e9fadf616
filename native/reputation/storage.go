package reputation

import (
	"errors"
	"fmt"
)

// storage abstracts the subset of state manager functionality required by the
// reputation ledger.
type storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var ratingPrefix = []byte("reputation/rating/")

func ratingKey(target [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%x", ratingPrefix, target))
}

var (
	errNilLedger  = errors.New("reputation: ledger not initialised")
	errNilStorage = errors.New("reputation: storage unavailable")
)

// Ledger persists cross-escrow rating counters keyed by principal. Entries
// are created lazily on first rating and never removed.
type Ledger struct {
	store storage
}

// NewLedger constructs a ledger bound to the provided storage backend.
func NewLedger(store storage) *Ledger {
	return &Ledger{store: store}
}

// Rate increments the positive or negative counter for target, always
// bumping the total, and returns the updated entry.
func (l *Ledger) Rate(target [20]byte, positive bool) (*Entry, error) {
	if l == nil {
		return nil, errNilLedger
	}
	if l.store == nil {
		return nil, errNilStorage
	}
	key := ratingKey(target)
	var entry Entry
	if _, err := l.store.KVGet(key, &entry); err != nil {
		return nil, err
	}
	if positive {
		entry.PositiveRatings++
	} else {
		entry.NegativeRatings++
	}
	entry.TotalTransactions++
	if err := l.store.KVPut(key, &entry); err != nil {
		return nil, err
	}
	return entry.Clone(), nil
}

// Get retrieves the counters for target. ok is false when the principal has
// never been rated.
func (l *Ledger) Get(target [20]byte) (*Entry, bool, error) {
	if l == nil {
		return nil, false, errNilLedger
	}
	if l.store == nil {
		return nil, false, errNilStorage
	}
	var entry Entry
	ok, err := l.store.KVGet(ratingKey(target), &entry)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return entry.Clone(), true, nil
}
