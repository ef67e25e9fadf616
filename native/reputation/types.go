package reputation

// Entry aggregates the rating counters for a single principal. All counters
// are monotonically non-decreasing and only move through RateCounterparty.
type Entry struct {
	PositiveRatings   uint64 `json:"positiveRatings"`
	NegativeRatings   uint64 `json:"negativeRatings"`
	TotalTransactions uint64 `json:"totalTransactions"`
}

// Clone returns a copy of the entry.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	clone := *e
	return &clone
}
