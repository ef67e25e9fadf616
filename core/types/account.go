package types

import "math/big"

// Account tracks the spendable balance held by a principal on the value
// ledger. Balances are never negative; the ledger rejects overdrafts.
type Account struct {
	Balance *big.Int `json:"balance"`
	Nonce   uint64   `json:"nonce"`
}
