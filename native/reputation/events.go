package reputation

import (
	"encoding/hex"
	"strconv"

	"escrowd/core/types"
)

const (
	// EventTypeRated is emitted when a party rates a counterparty.
	EventTypeRated = "reputation-rated"
)

// NewRatedEvent returns the canonical event payload for a recorded rating.
func NewRatedEvent(target [20]byte, entry *Entry, positive bool) *types.Event {
	attrs := map[string]string{
		"target":   hex.EncodeToString(target[:]),
		"positive": strconv.FormatBool(positive),
	}
	if entry != nil {
		attrs["positiveRatings"] = strconv.FormatUint(entry.PositiveRatings, 10)
		attrs["negativeRatings"] = strconv.FormatUint(entry.NegativeRatings, 10)
		attrs["totalTransactions"] = strconv.FormatUint(entry.TotalTransactions, 10)
	}
	return &types.Event{Type: EventTypeRated, Attributes: attrs}
}
