// Copyright (C) 2025, Parami Foundation Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

// Package token provides the in-process asset ledgers the economic engines
// settle against: an ERC20-shaped fungible ledger, a native-coin bank, a
// minimal NFT slot registry, and the governance-token directory.
package token

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrBalance   = errors.New("balance not enough")
	ErrAllowance = errors.New("allowance not enough")
)

// Ledger is a fungible-token ledger with ERC20 transfer and allowance
// semantics. All amounts are 256-bit; returned values are copies.
type Ledger struct {
	mu sync.RWMutex

	name   string
	symbol string
	addr   common.Address

	total      *uint256.Int
	balances   map[common.Address]*uint256.Int
	allowances map[common.Address]map[common.Address]*uint256.Int
}

func NewLedger(name, symbol string) *Ledger {
	return &Ledger{
		name:       name,
		symbol:     symbol,
		total:      uint256.NewInt(0),
		balances:   make(map[common.Address]*uint256.Int),
		allowances: make(map[common.Address]map[common.Address]*uint256.Int),
	}
}

// NewLedgerAt is NewLedger with a stable address identity, for ledgers that
// appear inside signed messages.
func NewLedgerAt(name, symbol string, addr common.Address) *Ledger {
	l := NewLedger(name, symbol)
	l.addr = addr
	return l
}

func (l *Ledger) Name() string            { return l.name }
func (l *Ledger) Symbol() string          { return l.symbol }
func (l *Ledger) Address() common.Address { return l.addr }

func (l *Ledger) TotalSupply() *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(uint256.Int).Set(l.total)
}

func (l *Ledger) BalanceOf(addr common.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if b, ok := l.balances[addr]; ok {
		return new(uint256.Int).Set(b)
	}
	return uint256.NewInt(0)
}

func (l *Ledger) Allowance(owner, spender common.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if m, ok := l.allowances[owner]; ok {
		if a, ok := m[spender]; ok {
			return new(uint256.Int).Set(a)
		}
	}
	return uint256.NewInt(0)
}

func (l *Ledger) Mint(to common.Address, amount *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(to, amount)
	l.total.Add(l.total, amount)
}

func (l *Ledger) Burn(from common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.debit(from, amount); err != nil {
		return err
	}
	l.total.Sub(l.total, amount)
	return nil
}

// Transfer moves amount from one holder to another, failing the whole
// operation when the source balance is short.
func (l *Ledger) Transfer(from, to common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.debit(from, amount); err != nil {
		return err
	}
	l.credit(to, amount)
	return nil
}

// Approve sets spender's allowance over owner's balance, replacing any
// previous value.
func (l *Ledger) Approve(owner, spender common.Address, amount *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.allowances[owner]
	if !ok {
		m = make(map[common.Address]*uint256.Int)
		l.allowances[owner] = m
	}
	m[spender] = new(uint256.Int).Set(amount)
}

// TransferFrom spends spender's allowance on from's balance. The allowance
// is checked before the balance and decremented on success; a saturated
// allowance is treated as unlimited and left untouched.
func (l *Ledger) TransferFrom(spender, from, to common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	allowed := l.allowances[from][spender]
	if allowed == nil || allowed.Lt(amount) {
		return ErrAllowance
	}
	if err := l.debit(from, amount); err != nil {
		return err
	}
	l.credit(to, amount)
	if !allowed.Eq(maxUint256) {
		allowed.Sub(allowed, amount)
	}
	return nil
}

var maxUint256 = new(uint256.Int).Not(uint256.NewInt(0))

func (l *Ledger) credit(to common.Address, amount *uint256.Int) {
	b, ok := l.balances[to]
	if !ok {
		b = uint256.NewInt(0)
		l.balances[to] = b
	}
	b.Add(b, amount)
}

func (l *Ledger) debit(from common.Address, amount *uint256.Int) error {
	b, ok := l.balances[from]
	if !ok || b.Lt(amount) {
		return ErrBalance
	}
	b.Sub(b, amount)
	return nil
}

// Bank is the native-coin ledger. It has no allowance layer; engines move
// funds they already custody.
type Bank struct {
	mu       sync.RWMutex
	balances map[common.Address]*uint256.Int
}

func NewBank() *Bank {
	return &Bank{balances: make(map[common.Address]*uint256.Int)}
}

func (b *Bank) BalanceOf(addr common.Address) *uint256.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if v, ok := b.balances[addr]; ok {
		return new(uint256.Int).Set(v)
	}
	return uint256.NewInt(0)
}

// Mint credits addr out of thin air. Used to fund accounts in tests and to
// model external deposits.
func (b *Bank) Mint(addr common.Address, amount *uint256.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.balances[addr]
	if !ok {
		v = uint256.NewInt(0)
		b.balances[addr] = v
	}
	v.Add(v, amount)
}

func (b *Bank) Transfer(from, to common.Address, amount *uint256.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.balances[from]
	if !ok || v.Lt(amount) {
		return ErrBalance
	}
	v.Sub(v, amount)
	w, ok := b.balances[to]
	if !ok {
		w = uint256.NewInt(0)
		b.balances[to] = w
	}
	w.Add(w, amount)
	return nil
}
