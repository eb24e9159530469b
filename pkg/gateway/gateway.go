// Copyright (C) 2025, Parami Foundation Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

// Package gateway implements signature-gated custody withdrawal: funds leave
// the custody account only with the attester's signature over the packed
// destination, chain id, amount and a one-shot nonce.
package gateway

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/parami-foundation/parami-core/pkg/crypto"
	"github.com/parami-foundation/parami-core/pkg/log"
	"github.com/parami-foundation/parami-core/pkg/market"
	"github.com/parami-foundation/parami-core/pkg/metric"
	"github.com/parami-foundation/parami-core/pkg/storage"
	"github.com/parami-foundation/parami-core/pkg/token"
)

var (
	ErrPaused           = errors.New("Pausable: paused")
	ErrNotPaused        = errors.New("Pausable: not paused")
	ErrChainID          = errors.New("chainId in params should match the contract's chainId")
	ErrNonceUsed        = errors.New("nounce must not used")
	ErrInvalidSignature = errors.New("signature not valid")
)

// Config wires a Gateway. Custody is the account whose balance the gateway
// guards; Attester is the only key whose signatures release funds.
type Config struct {
	Owner    common.Address
	Custody  common.Address
	Attester common.Address
	ChainID  *uint256.Int

	Token    *token.Ledger
	Nonces   storage.NonceStore
	Verifier crypto.Verifier

	Metrics *metric.Metrics
	Log     log.Logger
}

type Gateway struct {
	mu sync.Mutex

	owner    common.Address
	custody  common.Address
	attester common.Address
	chainID  *uint256.Int
	paused   bool

	token    *token.Ledger
	nonces   storage.NonceStore
	verifier crypto.Verifier

	metrics *metric.Metrics
	log     log.Logger
}

func New(cfg Config) *Gateway {
	if cfg.Log == nil {
		cfg.Log = log.NoLog
	}
	if cfg.Nonces == nil {
		cfg.Nonces = storage.NewMemNonceStore()
	}
	return &Gateway{
		owner:    cfg.Owner,
		custody:  cfg.Custody,
		attester: cfg.Attester,
		chainID:  new(uint256.Int).Set(cfg.ChainID),
		token:    cfg.Token,
		nonces:   cfg.Nonces,
		verifier: cfg.Verifier,
		metrics:  cfg.Metrics,
		log:      cfg.Log,
	}
}

// WithdrawDigest is the inner hash an attester signs to release amount to
// to on chainID under nonce. Field order is fixed.
func WithdrawDigest(to common.Address, chainID, amount, nonce *uint256.Int) [32]byte {
	return crypto.NewPacker().
		Address(to).
		Uint256(chainID).
		Uint256(amount).
		Uint256(nonce).
		Keccak()
}

func (g *Gateway) nonceScope() string {
	return "gateway/" + g.custody.Hex()
}

// Withdraw releases amount from custody to to. The nonce is marked used
// before the transfer so a replay can never race the payout.
func (g *Gateway) Withdraw(to common.Address, chainID, amount, nonce *uint256.Int, sig []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.paused {
		return ErrPaused
	}
	if !chainID.Eq(g.chainID) {
		return ErrChainID
	}
	used, err := g.nonces.Used(g.nonceScope(), nonce)
	if err != nil {
		return err
	}
	if used {
		return ErrNonceUsed
	}

	digest := crypto.PersonalDigest(WithdrawDigest(to, chainID, amount, nonce))
	recovered, err := g.verifier.Recover(digest, sig)
	if err != nil {
		g.observe("rejected")
		return err
	}
	if recovered != g.attester {
		g.observe("rejected")
		return ErrInvalidSignature
	}

	if err := g.nonces.MarkUsed(g.nonceScope(), nonce); err != nil {
		return err
	}
	if err := g.token.Transfer(g.custody, to, amount); err != nil {
		return err
	}

	g.log.Info("withdrawal released",
		"to", to,
		"amount", amount,
		"nonce", nonce,
	)
	g.observe("released")
	if g.metrics != nil {
		g.metrics.NoncesConsumed.Inc()
	}
	return nil
}

func (g *Gateway) observe(status string) {
	if g.metrics != nil {
		g.metrics.Withdrawals.WithLabelValues(status).Inc()
	}
}

func (g *Gateway) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

func (g *Gateway) Pause(caller common.Address) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if caller != g.owner {
		return market.ErrNotOwner
	}
	if g.paused {
		return ErrPaused
	}
	g.paused = true
	g.log.Warn("gateway paused", "custody", g.custody)
	return nil
}

func (g *Gateway) Unpause(caller common.Address) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if caller != g.owner {
		return market.ErrNotOwner
	}
	if !g.paused {
		return ErrNotPaused
	}
	g.paused = false
	g.log.Warn("gateway unpaused", "custody", g.custody)
	return nil
}

// WithdrawAllOfERC20 sweeps the custody's entire balance of an arbitrary
// ledger to to. Owner-only escape hatch for stranded funds.
func (g *Gateway) WithdrawAllOfERC20(caller common.Address, l *token.Ledger, to common.Address) (*uint256.Int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if caller != g.owner {
		return nil, market.ErrNotOwner
	}
	out := l.BalanceOf(g.custody)
	if out.IsZero() {
		return out, nil
	}
	if err := l.Transfer(g.custody, to, out); err != nil {
		return nil, err
	}
	g.log.Info("custody swept", "token", l.Symbol(), "to", to, "amount", out)
	return out, nil
}
