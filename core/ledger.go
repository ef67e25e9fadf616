package core

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"escrowd/core/types"
)

var (
	// ErrInsufficientBalance rejects transfers exceeding the sender's balance.
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
	// ErrNonPositiveAmount rejects zero and negative transfer amounts. The
	// ledger never partially applies: either the value moves or it does not.
	ErrNonPositiveAmount = errors.New("ledger: transfer amount must be positive")
)

// AccountLedger is the in-process implementation of the engine's ledger
// adapter: a mutable balance table guarded by a single mutex so each transfer
// is atomic relative to concurrent transfers.
type AccountLedger struct {
	mu       sync.Mutex
	accounts map[[20]byte]*types.Account
}

// NewAccountLedger constructs an empty ledger.
func NewAccountLedger() *AccountLedger {
	return &AccountLedger{accounts: make(map[[20]byte]*types.Account)}
}

func (l *AccountLedger) account(addr [20]byte) *types.Account {
	acc, ok := l.accounts[addr]
	if !ok {
		acc = &types.Account{Balance: big.NewInt(0)}
		l.accounts[addr] = acc
	}
	if acc.Balance == nil {
		acc.Balance = big.NewInt(0)
	}
	return acc
}

// Credit adds amount to the account, creating it if needed. Used to seed
// genesis balances from configuration.
func (l *AccountLedger) Credit(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrNonPositiveAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	acc := l.account(addr)
	acc.Balance = new(big.Int).Add(acc.Balance, amount)
	return nil
}

// BalanceOf returns a copy of the account balance.
func (l *AccountLedger) BalanceOf(addr [20]byte) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.account(addr).Balance)
}

// Transfer moves amount from one account to another. The move either applies
// fully or not at all.
func (l *AccountLedger) Transfer(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrNonPositiveAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fromAcc := l.account(from)
	if fromAcc.Balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, fromAcc.Balance, amount)
	}
	toAcc := l.account(to)
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amount)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amount)
	fromAcc.Nonce++
	return nil
}
