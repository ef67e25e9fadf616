package escrow

// Error is a typed engine failure carrying the stable wire code shared with
// calling layers. Codes 106 and 150 are fixed for compatibility with existing
// integrations; the remainder occupy the same small-integer space.
type Error struct {
	Code uint32
	msg  string
}

// Error implements the error interface.
func (e *Error) Error() string { return e.msg }

// ErrorCode returns the stable numeric code for cross-boundary mapping.
func (e *Error) ErrorCode() uint32 {
	if e == nil {
		return 0
	}
	return e.Code
}

var (
	// ErrUnauthorized marks a caller that is not the principal the operation
	// requires.
	ErrUnauthorized = &Error{Code: 100, msg: "escrow: unauthorized caller"}
	// ErrInvalidState marks a transition requested from a status that does not
	// permit it. Terminal states are absorbing.
	ErrInvalidState = &Error{Code: 101, msg: "escrow: invalid status for transition"}
	// ErrAlreadyDisputed is returned when delivery confirmation races a dispute.
	ErrAlreadyDisputed = &Error{Code: 102, msg: "escrow: already disputed"}
	// ErrAmountMismatch marks partial resolutions whose legs do not sum to the
	// custodied principal.
	ErrAmountMismatch = &Error{Code: 103, msg: "escrow: split does not equal principal"}
	// ErrBudgetExceeded marks milestone commitments beyond the agreed ceiling.
	ErrBudgetExceeded = &Error{Code: 104, msg: "escrow: milestone budget exceeded"}
	// ErrApprovalRequired gates high-value releases pending arbitrator approval.
	ErrApprovalRequired = &Error{Code: 105, msg: "escrow: arbitrator approval required"}
	// ErrInvalidAmount rejects non-positive principal amounts.
	ErrInvalidAmount = &Error{Code: 106, msg: "escrow: amount must be positive"}
	// ErrFeeTooHigh rejects arbitrator fees above the ceiling.
	ErrFeeTooHigh = &Error{Code: 107, msg: "escrow: arbitrator fee above ceiling"}
	// ErrTransferFailed surfaces a ledger adapter failure. The transition is
	// aborted and the record left untouched.
	ErrTransferFailed = &Error{Code: 109, msg: "escrow: value transfer failed"}
	// ErrNotFound marks missing escrow records.
	ErrNotFound = &Error{Code: 110, msg: "escrow: escrow not found"}
	// ErrMilestoneNotFound marks missing milestone entries on a record.
	ErrMilestoneNotFound = &Error{Code: 111, msg: "escrow: milestone not found"}
	// ErrClaimNotExpired rejects timeout claims before the expiration marker.
	ErrClaimNotExpired = &Error{Code: 150, msg: "escrow: claim before expiration"}
)
