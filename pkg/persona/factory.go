// Copyright (C) 2025, Parami Foundation Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

// Package persona implements the creator-persona factory: fee-gated persona
// provisioning (power ledger, market, NFT collection) and signature-gated
// NFT issuance against the persona's reserved power.
package persona

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/parami-foundation/parami-core/pkg/crypto"
	"github.com/parami-foundation/parami-core/pkg/curve"
	"github.com/parami-foundation/parami-core/pkg/events"
	"github.com/parami-foundation/parami-core/pkg/log"
	"github.com/parami-foundation/parami-core/pkg/market"
	"github.com/parami-foundation/parami-core/pkg/metric"
	"github.com/parami-foundation/parami-core/pkg/token"
)

var (
	ErrInvalidSigner = errors.New("Invalid Signer!")
	ErrNonceUsed     = errors.New("nounce must not used")
	ErrPersonaExists = errors.New("AIME already exists")
	ErrUnknownAIMe   = errors.New("unknown AIME address")
)

// FactoryConfig wires a Factory. Custody is the address accumulating native
// creation fees until the owner sweeps them.
type FactoryConfig struct {
	Owner   common.Address
	Signer  common.Address
	Custody common.Address

	// FeeDestination receives each market's accrued trading fees on
	// withdrawal. Defaults to Owner.
	FeeDestination common.Address

	ProtocolFee *uint256.Int // native units per CreateAIME, default 0.001 ether
	NFTReserve  *uint256.Int // power base units reserved per persona for NFT mints

	Params   curve.Params
	Bank     *token.Bank
	Verifier crypto.Verifier

	Bus     *events.Bus
	Metrics *metric.Metrics
	Log     log.Logger
}

// Factory provisions personas and gates NFT issuance on the platform
// signer's signature. Per-creator nonces are sequential: each signed mint
// consumes exactly the current nonce.
type Factory struct {
	mu sync.Mutex

	owner          common.Address
	signer         common.Address
	custody        common.Address
	feeDestination common.Address
	protocolFee    *uint256.Int
	nftReserve     *uint256.Int

	params   curve.Params
	bank     *token.Bank
	verifier crypto.Verifier

	nonces   map[common.Address]*uint256.Int
	personas map[common.Address]*Persona

	bus     *events.Bus
	metrics *metric.Metrics
	log     log.Logger
}

func NewFactory(cfg FactoryConfig) *Factory {
	if cfg.Log == nil {
		cfg.Log = log.NoLog
	}
	if cfg.ProtocolFee == nil {
		cfg.ProtocolFee = uint256.NewInt(1_000_000_000_000_000) // 0.001 ether
	}
	if cfg.NFTReserve == nil {
		cfg.NFTReserve = uint256.NewInt(1_000_000_000) // 100,000 powers
	}
	if cfg.FeeDestination == (common.Address{}) {
		cfg.FeeDestination = cfg.Owner
	}
	return &Factory{
		owner:          cfg.Owner,
		signer:         cfg.Signer,
		custody:        cfg.Custody,
		feeDestination: cfg.FeeDestination,
		protocolFee:    cfg.ProtocolFee,
		nftReserve:     cfg.NFTReserve,
		params:         cfg.Params,
		bank:           cfg.Bank,
		verifier:       cfg.Verifier,
		nonces:         make(map[common.Address]*uint256.Int),
		personas:       make(map[common.Address]*Persona),
		bus:            cfg.Bus,
		metrics:        cfg.Metrics,
		log:            cfg.Log,
	}
}

// Nonce returns the creator's next expected signature nonce.
func (f *Factory) Nonce(creator common.Address) *uint256.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n, ok := f.nonces[creator]; ok {
		return new(uint256.Int).Set(n)
	}
	return uint256.NewInt(0)
}

// Persona returns the persona registered at addr.
func (f *Factory) Persona(addr common.Address) (*Persona, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.personas[addr]
	if !ok {
		return nil, ErrUnknownAIMe
	}
	return p, nil
}

// PersonaAddress derives the deterministic address a persona of this
// creator and name will live at.
func PersonaAddress(creator common.Address, name string) common.Address {
	h := crypto.NewPacker().Address(creator).String(name).Keccak()
	return common.BytesToAddress(h[12:])
}

// CreateAIME provisions a persona for creator: the power ledger with its
// full mint, the bonding-curve market, and the NFT collection seeded with
// the avatar token. The creation fee is taken from payment; any excess is
// kept with the fee.
func (f *Factory) CreateAIME(creator common.Address, name, avatar string, payment *uint256.Int) (*Persona, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if payment.Lt(f.protocolFee) {
		return nil, market.ErrInsufficientPayment
	}
	addr := PersonaAddress(creator, name)
	if _, ok := f.personas[addr]; ok {
		return nil, ErrPersonaExists
	}
	if err := f.bank.Transfer(creator, f.custody, payment); err != nil {
		return nil, err
	}

	power := token.NewLedger(name+" Power", "POWER")
	mkt := market.New(market.Config{
		Owner:          f.owner,
		Creator:        creator,
		Persona:        addr,
		Params:         f.params,
		Power:          power,
		Bank:           f.bank,
		FeeDestination: f.feeDestination,
		InitialReserve: f.nftReserve,
		Bus:            f.bus,
		Metrics:        f.metrics,
		Log:            f.log.With("persona", addr),
	})

	p := &Persona{
		addr:    addr,
		creator: creator,
		name:    name,
		power:   power,
		market:  mkt,
		nfts:    token.NewNFTRegistry(name, "AIME"),
		meta:    make(map[uint64]*NFTMeta),
		bus:     f.bus,
	}
	// Token zero is the persona's own avatar, never tradable.
	id := p.nfts.Mint(creator, avatar)
	p.meta[id] = &NFTMeta{Key: "avatar", Type: "image", Image: avatar, Amount: uint256.NewInt(0)}

	f.personas[addr] = p
	f.log.Info("aime created", "creator", creator, "persona", addr, "name", name)
	if f.bus != nil {
		f.bus.Publish(events.TypeAIMeCreated, events.AIMeCreated{
			Creator: creator,
			Persona: addr,
			Name:    name,
		})
	}
	return p, nil
}

// MintDigest is the inner hash a platform signature covers for one NFT
// mint. Field order is fixed.
func MintDigest(creator, aime common.Address, key, nftType, data, image string, amount, nonce *uint256.Int) [32]byte {
	return crypto.NewPacker().
		Address(creator).
		Address(aime).
		String(key).
		String(nftType).
		String(data).
		String(image).
		Uint256(amount).
		Uint256(nonce).
		Keccak()
}

// MintAIMeNFT mints an NFT in the persona's collection for creator, backed
// by amount of the persona's reserved power. The platform signer must have
// signed the packed mint fields with the creator's current nonce; the nonce
// is consumed before any state moves.
func (f *Factory) MintAIMeNFT(creator, aime common.Address, key, nftType, data, image string, amount, nonce *uint256.Int, sig []byte) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.personas[aime]
	if !ok {
		return 0, ErrUnknownAIMe
	}

	current, ok := f.nonces[creator]
	if !ok {
		current = uint256.NewInt(0)
		f.nonces[creator] = current
	}
	if !nonce.Eq(current) {
		return 0, ErrNonceUsed
	}

	digest := crypto.PersonalDigest(MintDigest(creator, aime, key, nftType, data, image, amount, nonce))
	recovered, err := f.verifier.Recover(digest, sig)
	if err != nil {
		return 0, err
	}
	if recovered != f.signer {
		return 0, ErrInvalidSigner
	}
	current.AddUint64(current, 1)

	if err := p.market.DebitReserved(amount); err != nil {
		return 0, err
	}

	p.mu.Lock()
	id := p.nfts.Mint(creator, image)
	p.meta[id] = &NFTMeta{
		Key:    key,
		Type:   nftType,
		Data:   data,
		Image:  image,
		Amount: new(uint256.Int).Set(amount),
	}
	p.mu.Unlock()

	f.log.Info("aime nft minted", "persona", aime, "creator", creator, "token", id, "amount", amount)
	if f.bus != nil {
		f.bus.Publish(events.TypeAIMeNFTMinted, events.AIMeNFTMinted{
			Creator: creator,
			Persona: aime,
			TokenID: id,
			Amount:  new(uint256.Int).Set(amount),
		})
	}
	return id, nil
}

// UpdateAIMeNFT rewrites an NFT's data field, owner-gated by the persona.
func (f *Factory) UpdateAIMeNFT(caller, aime common.Address, tokenID uint64, data string) error {
	p, err := f.Persona(aime)
	if err != nil {
		return err
	}
	return p.UpdateData(caller, tokenID, data)
}

// WithdrawFee sweeps accumulated native creation fees to the owner.
func (f *Factory) WithdrawFee(caller common.Address) (*uint256.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if caller != f.owner {
		return nil, market.ErrNotOwner
	}
	out := f.bank.BalanceOf(f.custody)
	if out.IsZero() {
		return out, nil
	}
	if err := f.bank.Transfer(f.custody, f.owner, out); err != nil {
		return nil, err
	}
	return out, nil
}
