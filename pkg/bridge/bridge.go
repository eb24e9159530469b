// Copyright (C) 2025, Parami Foundation Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

// Package bridge implements the cross-domain transfer gateway: deposits
// lock a registered asset under the bridge's custody and announce the
// transfer for the destination domain; withdrawals release funds against
// an attester signature, with replay nonces partitioned per source domain.
package bridge

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/parami-foundation/parami-core/pkg/crypto"
	"github.com/parami-foundation/parami-core/pkg/events"
	"github.com/parami-foundation/parami-core/pkg/gateway"
	"github.com/parami-foundation/parami-core/pkg/log"
	"github.com/parami-foundation/parami-core/pkg/market"
	"github.com/parami-foundation/parami-core/pkg/metric"
	"github.com/parami-foundation/parami-core/pkg/storage"
	"github.com/parami-foundation/parami-core/pkg/token"
)

var (
	ErrUnknownAsset = errors.New("unknown asset")
	ErrWrongDomain  = errors.New("message not for this domain")
)

// Config wires a Bridge. Domain is this side's CCTP-style domain id.
type Config struct {
	Owner    common.Address
	Custody  common.Address
	Attester common.Address
	Domain   uint32

	Verifier crypto.Verifier
	Nonces   storage.NonceStore

	Bus     *events.Bus
	Metrics *metric.Metrics
	Log     log.Logger
}

type Bridge struct {
	mu sync.Mutex

	owner    common.Address
	custody  common.Address
	attester common.Address
	domain   uint32
	paused   bool

	assets       map[uint32]*token.Ledger
	depositNonce uint64

	verifier crypto.Verifier
	nonces   storage.NonceStore

	bus     *events.Bus
	metrics *metric.Metrics
	log     log.Logger
}

func New(cfg Config) *Bridge {
	if cfg.Log == nil {
		cfg.Log = log.NoLog
	}
	if cfg.Nonces == nil {
		cfg.Nonces = storage.NewMemNonceStore()
	}
	return &Bridge{
		owner:    cfg.Owner,
		custody:  cfg.Custody,
		attester: cfg.Attester,
		domain:   cfg.Domain,
		assets:   make(map[uint32]*token.Ledger),
		verifier: cfg.Verifier,
		nonces:   cfg.Nonces,
		bus:      cfg.Bus,
		metrics:  cfg.Metrics,
		log:      cfg.Log,
	}
}

// RegisterAsset binds an asset id to its local ledger. Owner-only.
func (b *Bridge) RegisterAsset(caller common.Address, assetID uint32, l *token.Ledger) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if caller != b.owner {
		return market.ErrNotOwner
	}
	b.assets[assetID] = l
	return nil
}

// Deposit locks amount of the asset under custody and announces the
// transfer towards destDomain. The sender must have approved the custody
// to pull the funds. Returns the deposit's nonce.
func (b *Bridge) Deposit(sender common.Address, assetID uint32, amount *uint256.Int, destDomain uint32, recipient []byte) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.paused {
		return 0, gateway.ErrPaused
	}
	l, ok := b.assets[assetID]
	if !ok {
		return 0, ErrUnknownAsset
	}
	if err := l.TransferFrom(b.custody, sender, b.custody, amount); err != nil {
		return 0, err
	}

	nonce := b.depositNonce
	b.depositNonce++

	b.log.Info("deposit locked",
		"nonce", nonce,
		"asset", assetID,
		"amount", amount,
		"sender", sender,
		"destDomain", destDomain,
	)
	if b.metrics != nil {
		b.metrics.Deposits.Inc()
	}
	if b.bus != nil {
		b.bus.Publish(events.TypeDeposited, events.Deposited{
			Nonce:      nonce,
			AssetID:    assetID,
			Amount:     new(uint256.Int).Set(amount),
			Domain:     b.domain,
			Sender:     sender.Bytes(),
			DestDomain: destDomain,
			Recipient:  recipient,
		})
	}
	return nonce, nil
}

// WithdrawDigest is the inner hash the attester signs to release one
// cross-domain transfer on this side. Field order is fixed.
func WithdrawDigest(nonce uint64, assetID uint32, amount *uint256.Int, sourceDomain uint32, sourceAddr []byte, destDomain uint32, to common.Address) [32]byte {
	return crypto.NewPacker().
		Uint64(nonce).
		Uint64(uint64(assetID)).
		Uint256(amount).
		Uint64(uint64(sourceDomain)).
		Bytes(sourceAddr).
		Uint64(uint64(destDomain)).
		Address(to).
		Keccak()
}

// Withdraw releases amount of the asset to to, against the attester's
// signature over the original deposit tuple. Each (sourceDomain, nonce)
// pair releases at most once; the nonce is burned before the payout.
func (b *Bridge) Withdraw(nonce uint64, assetID uint32, amount *uint256.Int, sourceDomain uint32, sourceAddr []byte, destDomain uint32, to common.Address, sig []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.paused {
		return gateway.ErrPaused
	}
	if destDomain != b.domain {
		return ErrWrongDomain
	}
	l, ok := b.assets[assetID]
	if !ok {
		return ErrUnknownAsset
	}

	scope := nonceScope(b.custody, sourceDomain)
	used, err := b.nonces.Used(scope, uint256.NewInt(nonce))
	if err != nil {
		return err
	}
	if used {
		return gateway.ErrNonceUsed
	}

	digest := crypto.PersonalDigest(WithdrawDigest(nonce, assetID, amount, sourceDomain, sourceAddr, destDomain, to))
	recovered, err := b.verifier.Recover(digest, sig)
	if err != nil {
		return err
	}
	if recovered != b.attester {
		return gateway.ErrInvalidSignature
	}

	if err := b.nonces.MarkUsed(scope, uint256.NewInt(nonce)); err != nil {
		return err
	}
	if err := l.Transfer(b.custody, to, amount); err != nil {
		return err
	}

	b.log.Info("withdrawal released",
		"nonce", nonce,
		"asset", assetID,
		"amount", amount,
		"sourceDomain", sourceDomain,
		"to", to,
	)
	if b.metrics != nil {
		b.metrics.NoncesConsumed.Inc()
	}
	if b.bus != nil {
		b.bus.Publish(events.TypeWithdrawed, events.Withdrawed{
			Nonce:        nonce,
			AssetID:      assetID,
			Amount:       new(uint256.Int).Set(amount),
			SourceDomain: sourceDomain,
			To:           to,
		})
	}
	return nil
}

func nonceScope(custody common.Address, sourceDomain uint32) string {
	return "bridge/" + custody.Hex() + "/" + uint256.NewInt(uint64(sourceDomain)).Dec()
}

func (b *Bridge) Paused() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.paused
}

func (b *Bridge) Pause(caller common.Address) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if caller != b.owner {
		return market.ErrNotOwner
	}
	if b.paused {
		return gateway.ErrPaused
	}
	b.paused = true
	b.log.Warn("bridge paused", "custody", b.custody)
	return nil
}

func (b *Bridge) Unpause(caller common.Address) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if caller != b.owner {
		return market.ErrNotOwner
	}
	if !b.paused {
		return gateway.ErrNotPaused
	}
	b.paused = false
	b.log.Warn("bridge unpaused", "custody", b.custody)
	return nil
}
