// Copyright (C) 2025, Parami Foundation Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

// Package auction implements the perpetual two-phase ad-slot auction over
// hyperlink NFTs. A bidder first escrows a small AD3 deposit (pre-bid),
// then commits the real bid in the slot's governance token with a relayer
// signature binding the bid to the slot state the relayer saw.
package auction

import (
	"errors"
	"sync"
	"time"

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
	ErrAD3Balance    = errors.New("AD3 balance not enough")
	ErrPreBidActive  = errors.New("Last preBid still within the valid time")
	ErrStillValid    = errors.New("Still within valid time")
	ErrNoPreBid      = errors.New("no pre-bid to withdraw")
	ErrInvalidCurBid = errors.New("Invalid curBidId")
	ErrInvalidPreBid = errors.New("Invalid preBidId")
	ErrInvalidSigner = errors.New("Invalid Signer!")
	ErrInvalidRemain = errors.New("Invalid curBidRemain")
	ErrUnknownHNFT   = errors.New("unknown hNFT contract")
)

const (
	defaultMinDeposit = 10
	defaultTimeout    = 10 * time.Minute
)

// Slot identifies one auctionable hyperlink: an hNFT contract and a token.
type Slot struct {
	NFT     common.Address
	TokenID uint64
}

// PreBidRecord is the escrowed first phase of a bid.
type PreBidRecord struct {
	BidID  uint64
	Bidder common.Address
	Amount *uint256.Int
	At     time.Time
}

// CurrentBid is the slot's standing winner.
type CurrentBid struct {
	BidID  uint64
	Bidder common.Address
	Amount *uint256.Int
}

// Config wires an Engine. Custody is the account escrowing deposits and
// standing bids; Relayer is the off-chain signer that blesses commits.
type Config struct {
	Owner   common.Address
	Custody common.Address
	Relayer common.Address
	ChainID *uint256.Int

	AD3        *token.Ledger
	Governance *token.HNFTGovernance
	Verifier   crypto.Verifier
	Nonces     storage.NonceStore

	MinDeposit *uint256.Int
	Timeout    time.Duration
	Now        func() time.Time

	Bus     *events.Bus
	Metrics *metric.Metrics
	Log     log.Logger
}

type Engine struct {
	mu sync.Mutex

	owner   common.Address
	custody common.Address
	relayer common.Address
	chainID *uint256.Int

	ad3        *token.Ledger
	governance *token.HNFTGovernance
	verifier   crypto.Verifier
	nonces     storage.NonceStore

	minDeposit *uint256.Int
	timeout    time.Duration
	now        func() time.Time

	hnfts     map[common.Address]*token.NFTRegistry
	nextBidID uint64
	preBids   map[Slot]*PreBidRecord
	current   map[Slot]*CurrentBid
	// governance token each standing bid was actually paid in; a later
	// directory change must not strand the old leader's refund
	paidIn map[Slot]*token.Ledger

	bus     *events.Bus
	metrics *metric.Metrics
	log     log.Logger
}

func New(cfg Config) *Engine {
	if cfg.Log == nil {
		cfg.Log = log.NoLog
	}
	if cfg.Nonces == nil {
		cfg.Nonces = storage.NewMemNonceStore()
	}
	if cfg.MinDeposit == nil {
		cfg.MinDeposit = uint256.NewInt(defaultMinDeposit)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{
		owner:      cfg.Owner,
		custody:    cfg.Custody,
		relayer:    cfg.Relayer,
		chainID:    new(uint256.Int).Set(cfg.ChainID),
		ad3:        cfg.AD3,
		governance: cfg.Governance,
		verifier:   cfg.Verifier,
		nonces:     cfg.Nonces,
		minDeposit: new(uint256.Int).Set(cfg.MinDeposit),
		timeout:    cfg.Timeout,
		now:        cfg.Now,
		hnfts:      make(map[common.Address]*token.NFTRegistry),
		nextBidID:  1,
		preBids:    make(map[Slot]*PreBidRecord),
		current:    make(map[Slot]*CurrentBid),
		paidIn:     make(map[Slot]*token.Ledger),
		bus:        cfg.Bus,
		metrics:    cfg.Metrics,
		log:        cfg.Log,
	}
}

// RegisterHNFT makes the registry's tokens auctionable slots.
func (e *Engine) RegisterHNFT(addr common.Address, reg *token.NFTRegistry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hnfts[addr] = reg
}

func (e *Engine) slotExists(s Slot) error {
	reg, ok := e.hnfts[s.NFT]
	if !ok {
		return ErrUnknownHNFT
	}
	if !reg.Exists(s.TokenID) {
		return token.ErrInvalidTokenID
	}
	return nil
}

func (e *Engine) CurrentBidOf(s Slot) (CurrentBid, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cur, ok := e.current[s]
	if !ok {
		return CurrentBid{}, false
	}
	out := *cur
	out.Amount = new(uint256.Int).Set(cur.Amount)
	return out, true
}

func (e *Engine) PreBidOf(s Slot) (PreBidRecord, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pre, ok := e.preBids[s]
	if !ok {
		return PreBidRecord{}, false
	}
	out := *pre
	out.Amount = new(uint256.Int).Set(pre.Amount)
	return out, true
}

// PreBid escrows the minimum deposit and reserves the slot for bidder
// until the pre-bid times out or is committed. A stale pre-bid left by a
// previous bidder is refunded on overwrite.
func (e *Engine) PreBid(bidder common.Address, s Slot) (curBidID, preBidID uint64, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.slotExists(s); err != nil {
		return 0, 0, err
	}
	if pre, ok := e.preBids[s]; ok {
		if !e.now().After(pre.At.Add(e.timeout)) {
			return 0, 0, ErrPreBidActive
		}
		// Stale pre-bid: hand the deposit back before taking the slot.
		if err := e.ad3.Transfer(e.custody, pre.Bidder, pre.Amount); err != nil {
			return 0, 0, err
		}
		e.publishRefund(pre)
		delete(e.preBids, s)
	}

	if e.ad3.BalanceOf(bidder).Lt(e.minDeposit) {
		return 0, 0, ErrAD3Balance
	}
	if e.ad3.Allowance(bidder, e.custody).Lt(e.minDeposit) {
		return 0, 0, token.ErrAllowance
	}
	if err := e.ad3.TransferFrom(e.custody, bidder, e.custody, e.minDeposit); err != nil {
		return 0, 0, err
	}

	preBidID = e.nextBidID
	e.nextBidID++
	if cur, ok := e.current[s]; ok {
		curBidID = cur.BidID
	}
	e.preBids[s] = &PreBidRecord{
		BidID:  preBidID,
		Bidder: bidder,
		Amount: new(uint256.Int).Set(e.minDeposit),
		At:     e.now(),
	}

	e.log.Info("pre-bid escrowed",
		"nft", s.NFT,
		"token", s.TokenID,
		"bidder", bidder,
		"preBidId", preBidID,
		"curBidId", curBidID,
	)
	if e.metrics != nil {
		e.metrics.PreBids.Inc()
	}
	if e.bus != nil {
		e.bus.Publish(events.TypeBidPrepared, events.BidPrepared{
			CurBidID: curBidID,
			PreBidID: preBidID,
			Bidder:   bidder,
		})
	}
	return curBidID, preBidID, nil
}

// WithdrawPreBidAmount refunds bidder's escrow once the pre-bid has timed
// out without a commit.
func (e *Engine) WithdrawPreBidAmount(bidder common.Address, s Slot) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	pre, ok := e.preBids[s]
	if !ok || pre.Bidder != bidder {
		return ErrNoPreBid
	}
	if !e.now().After(pre.At.Add(e.timeout)) {
		return ErrStillValid
	}
	delete(e.preBids, s)
	if err := e.ad3.Transfer(e.custody, bidder, pre.Amount); err != nil {
		return err
	}
	e.publishRefund(pre)
	return nil
}

func (e *Engine) publishRefund(pre *PreBidRecord) {
	e.log.Info("pre-bid refunded", "bidder", pre.Bidder, "preBidId", pre.BidID)
	if e.metrics != nil {
		e.metrics.BidsRefunded.Inc()
	}
	if e.bus != nil {
		e.bus.Publish(events.TypeBidRefunded, events.BidRefunded{
			BidID:  pre.BidID,
			Bidder: pre.Bidder,
			Amount: new(uint256.Int).Set(pre.Amount),
		})
	}
}

// CommitDigest is the inner hash the relayer signs to bless one commit.
// Field order is fixed.
func CommitDigest(tokenID uint64, nft, govToken common.Address, bidAmount *uint256.Int, curBidID, preBidID uint64) [32]byte {
	return crypto.NewPacker().
		Uint64(tokenID).
		Address(nft).
		Address(govToken).
		Uint256(bidAmount).
		Uint64(curBidID).
		Uint64(preBidID).
		Keccak()
}

// CommitBid finishes the two-phase bid: it verifies the relayer signature
// over the slot state, pulls the bid amount in the slot's governance token,
// refunds the bidder's own deposit and the outgoing leader's remainder, and
// installs the new standing bid. curBidRemain is the portion of the old bid
// the relayer reports as already spent on delivery; it must not exceed the
// standing amount, and only the rest is refunded. The relayer is granted a pull allowance over the new bid for
// settlement.
func (e *Engine) CommitBid(bidder common.Address, s Slot, bidAmount *uint256.Int, slotURI string, sig []byte, curBidID, preBidID uint64, curBidRemain *uint256.Int) error {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.slotExists(s); err != nil {
		return err
	}

	cur := e.current[s]
	var curID uint64
	if cur != nil {
		curID = cur.BidID
	}
	if curBidID != curID {
		return ErrInvalidCurBid
	}

	pre, ok := e.preBids[s]
	if !ok || pre.Bidder != bidder || pre.BidID != preBidID {
		return ErrInvalidPreBid
	}

	gov := e.governance.GetGovernanceToken(s.NFT, s.TokenID)
	digest := crypto.PersonalDigest(CommitDigest(s.TokenID, s.NFT, gov.Address(), bidAmount, curBidID, preBidID))
	recovered, err := e.verifier.Recover(digest, sig)
	if err != nil {
		return err
	}
	if recovered != e.relayer {
		return ErrInvalidSigner
	}

	if gov.BalanceOf(bidder).Lt(bidAmount) {
		return token.ErrBalance
	}
	if gov.Allowance(bidder, e.custody).Lt(bidAmount) {
		return token.ErrAllowance
	}

	// Outgoing leader's refund, in the token the old bid was paid in. The
	// reported spend can never exceed the standing amount.
	var refund *uint256.Int
	var prevGov *token.Ledger
	if cur != nil {
		if curBidRemain.Gt(cur.Amount) {
			return ErrInvalidRemain
		}
		prevGov = e.paidIn[s]
		if curBidRemain.Lt(cur.Amount) {
			refund = new(uint256.Int).Sub(cur.Amount, curBidRemain)
		}
	}

	delete(e.preBids, s)
	e.current[s] = &CurrentBid{
		BidID:  preBidID,
		Bidder: bidder,
		Amount: new(uint256.Int).Set(bidAmount),
	}
	e.paidIn[s] = gov

	if err := gov.TransferFrom(e.custody, bidder, e.custody, bidAmount); err != nil {
		return err
	}
	if err := e.ad3.Transfer(e.custody, bidder, pre.Amount); err != nil {
		return err
	}
	if refund != nil && prevGov != nil {
		if err := prevGov.Transfer(e.custody, cur.Bidder, refund); err != nil {
			return err
		}
	}
	// Settlement pull for the relayer over the standing bid.
	gov.Approve(e.custody, e.relayer, bidAmount)

	if reg := e.hnfts[s.NFT]; reg != nil {
		if err := reg.SetTokenURI(s.TokenID, slotURI); err != nil {
			return err
		}
	}

	e.log.Info("bid committed",
		"nft", s.NFT,
		"token", s.TokenID,
		"bidder", bidder,
		"bidId", preBidID,
		"amount", bidAmount,
	)
	if e.metrics != nil {
		e.metrics.BidsCommitted.Inc()
		e.metrics.CommitDuration.Observe(time.Since(start).Seconds())
	}
	if e.bus != nil {
		e.bus.Publish(events.TypeBidCommitted, events.BidCommitted{
			BidID:    preBidID,
			NFT:      s.NFT,
			TokenID:  s.TokenID,
			Bidder:   bidder,
			Amount:   new(uint256.Int).Set(bidAmount),
			SlotURI:  slotURI,
			GovToken: gov.Address(),
		})
	}
	return nil
}

func (e *Engine) SetRelayer(caller, relayer common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.owner {
		return market.ErrNotOwner
	}
	e.relayer = relayer
	return nil
}

func (e *Engine) SetMinDeposit(caller common.Address, min *uint256.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.owner {
		return market.ErrNotOwner
	}
	e.minDeposit = new(uint256.Int).Set(min)
	return nil
}

func (e *Engine) SetGovernance(caller common.Address, gov *token.HNFTGovernance) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.owner {
		return market.ErrNotOwner
	}
	e.governance = gov
	return nil
}

// WithdrawGovernanceToken releases amount of l from the auction's custody
// with a relayer signature, under the same digest and replay rules as the
// signed-transfer gateway.
func (e *Engine) WithdrawGovernanceToken(l *token.Ledger, to common.Address, amount, nonce *uint256.Int, sig []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	scope := "auction/" + e.custody.Hex()
	used, err := e.nonces.Used(scope, nonce)
	if err != nil {
		return err
	}
	if used {
		return gateway.ErrNonceUsed
	}

	digest := crypto.PersonalDigest(gateway.WithdrawDigest(to, e.chainID, amount, nonce))
	recovered, err := e.verifier.Recover(digest, sig)
	if err != nil {
		return err
	}
	if recovered != e.relayer {
		return gateway.ErrInvalidSignature
	}

	if err := e.nonces.MarkUsed(scope, nonce); err != nil {
		return err
	}
	return l.Transfer(e.custody, to, amount)
}
