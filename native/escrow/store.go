package escrow

import (
	"math/big"
	"sync"
)

// HistoryEntry is an append-only snapshot of a record taken at the moment of a
// successful transition, identified by (EscrowID, Sequence).
type HistoryEntry struct {
	EscrowID  uint64
	Sequence  uint64
	Buyer     [20]byte
	Seller    [20]byte
	Amount    *big.Int
	Status    Status
	Timestamp int64
}

// Store holds one record per escrow identifier. Records are created once,
// mutated in place and never deleted. Each record carries its own mutex so
// transitions against different escrows proceed in parallel while calls
// against the same id serialize.
type Store struct {
	mu      sync.RWMutex
	nextID  uint64
	records map[uint64]*Record
	locks   map[uint64]*sync.Mutex
	history map[uint64][]HistoryEntry
}

// NewStore constructs an empty record store. Identifiers start at 1.
func NewStore() *Store {
	return &Store{
		nextID:  1,
		records: make(map[uint64]*Record),
		locks:   make(map[uint64]*sync.Mutex),
		history: make(map[uint64][]HistoryEntry),
	}
}

// Create assigns the next monotonic identifier to the record and persists a
// sanitized clone. Identifiers are never reused.
func (s *Store) Create(r *Record) (uint64, error) {
	sanitized, err := SanitizeRecord(r)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	sanitized.ID = id
	s.records[id] = sanitized
	s.locks[id] = &sync.Mutex{}
	return id, nil
}

// Get returns a clone of the record with the given id.
func (s *Store) Get(id uint64) (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// Put overwrites an existing record with a sanitized clone of r. The record
// must already exist; identifiers are assigned only via Create.
func (s *Store) Put(r *Record) error {
	sanitized, err := SanitizeRecord(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[sanitized.ID]; !ok {
		return ErrNotFound
	}
	s.records[sanitized.ID] = sanitized
	return nil
}

// LockRecord acquires the per-record mutex for id and returns the unlock
// function. Unknown ids receive a transient lock so the caller can still
// observe ErrNotFound under mutual exclusion.
func (s *Store) LockRecord(id uint64) func() {
	s.mu.Lock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	s.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}

// AppendHistory snapshots the record into the append-only audit trail and
// returns the assigned sequence number (ascending from 1 per escrow).
func (s *Store) AppendHistory(rec *Record, timestamp int64) uint64 {
	if rec == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := uint64(len(s.history[rec.ID])) + 1
	s.history[rec.ID] = append(s.history[rec.ID], HistoryEntry{
		EscrowID:  rec.ID,
		Sequence:  seq,
		Buyer:     rec.Buyer,
		Seller:    rec.Seller,
		Amount:    cloneBigInt(rec.Amount),
		Status:    rec.Status,
		Timestamp: timestamp,
	})
	return seq
}

// History returns a copy of the audit trail for the escrow, ordered by
// sequence ascending. The read is stateless and restartable.
func (s *Store) History(id uint64) []HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.history[id]
	out := make([]HistoryEntry, len(entries))
	for i, entry := range entries {
		out[i] = entry
		out[i].Amount = cloneBigInt(entry.Amount)
	}
	return out
}

// Len reports the number of records held by the store.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
