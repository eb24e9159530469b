// Copyright (C) 2025, Parami Foundation Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package persona

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/parami-foundation/parami-core/pkg/events"
	"github.com/parami-foundation/parami-core/pkg/market"
	"github.com/parami-foundation/parami-core/pkg/token"
)

var (
	ErrInvalidTokenOwner = errors.New("Invalid token owner")
	ErrFirstNFT          = errors.New("Cannot buy the first NFT")
)

// NFTMeta is the on-persona record behind each collection token. Amount is
// the face value in power base units the token was minted against.
type NFTMeta struct {
	Key    string
	Type   string
	Data   string
	Image  string
	Amount *uint256.Int
}

// Persona bundles one creator persona: its address, power ledger, market
// and NFT collection. Tokens trade in powers, not in the native coin.
type Persona struct {
	mu sync.Mutex

	addr    common.Address
	creator common.Address
	name    string

	power  *token.Ledger
	market *market.Market
	nfts   *token.NFTRegistry
	meta   map[uint64]*NFTMeta

	bus *events.Bus
}

func (p *Persona) Address() common.Address  { return p.addr }
func (p *Persona) Creator() common.Address  { return p.creator }
func (p *Persona) Name() string             { return p.name }
func (p *Persona) Power() *token.Ledger     { return p.power }
func (p *Persona) Market() *market.Market   { return p.market }
func (p *Persona) NFTs() *token.NFTRegistry { return p.nfts }

// Meta returns a copy of the token's record.
func (p *Persona) Meta(tokenID uint64) (NFTMeta, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.meta[tokenID]
	if !ok {
		return NFTMeta{}, token.ErrInvalidTokenID
	}
	out := *m
	out.Amount = new(uint256.Int).Set(m.Amount)
	return out, nil
}

// UpdateData rewrites the free-form data field. Only the current token
// owner may do so.
func (p *Persona) UpdateData(caller common.Address, tokenID uint64, data string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	owner, err := p.nfts.OwnerOf(tokenID)
	if err != nil {
		return err
	}
	if owner != caller {
		return ErrInvalidTokenOwner
	}
	p.meta[tokenID].Data = data

	if p.bus != nil {
		p.bus.Publish(events.TypeAIMeNFTUpdated, events.AIMeNFTUpdated{
			Persona: p.addr,
			TokenID: tokenID,
			Data:    data,
		})
	}
	return nil
}

// SellNFT hands the token back to the persona for its face amount in
// powers, paid out of the persona pool.
func (p *Persona) SellNFT(holder common.Address, tokenID uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, ok := p.meta[tokenID]
	if !ok {
		return token.ErrInvalidTokenID
	}
	if err := p.nfts.Transfer(holder, p.addr, tokenID); err != nil {
		return err
	}
	return p.power.Transfer(p.addr, holder, m.Amount)
}

// BuyNFT buys the token in powers. From the persona it costs the face
// amount; from another holder it costs currentAmount*12/10 paid to the
// holder, and the face amount steps up to the price paid. The buyer must
// have approved the persona address to pull the powers. Token zero, the
// persona's own avatar token, is never for sale.
func (p *Persona) BuyNFT(buyer common.Address, tokenID uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if tokenID == 0 {
		return ErrFirstNFT
	}
	m, ok := p.meta[tokenID]
	if !ok {
		return token.ErrInvalidTokenID
	}
	owner, err := p.nfts.OwnerOf(tokenID)
	if err != nil {
		return err
	}

	if owner == p.addr {
		if p.power.BalanceOf(buyer).Lt(m.Amount) {
			return token.ErrBalance
		}
		if err := p.power.TransferFrom(p.addr, buyer, p.addr, m.Amount); err != nil {
			return err
		}
	} else {
		price := new(uint256.Int).Mul(m.Amount, uint256.NewInt(12))
		price.Div(price, uint256.NewInt(10))
		if p.power.BalanceOf(buyer).Lt(price) {
			return token.ErrBalance
		}
		if err := p.power.TransferFrom(p.addr, buyer, owner, price); err != nil {
			return err
		}
		m.Amount = price
	}
	return p.nfts.Transfer(owner, buyer, tokenID)
}
