// Copyright (C) 2025, Parami Foundation Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package token

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var ErrInvalidTokenID = errors.New("ERC721: invalid token ID")

// NFTRegistry is a minimal ERC721-shaped registry: sequential ids, one owner
// and one URI per token. Trading policy lives in the engines that use it.
type NFTRegistry struct {
	mu sync.RWMutex

	name   string
	symbol string
	nextID uint64

	owners map[uint64]common.Address
	uris   map[uint64]string
}

func NewNFTRegistry(name, symbol string) *NFTRegistry {
	return &NFTRegistry{
		name:   name,
		symbol: symbol,
		owners: make(map[uint64]common.Address),
		uris:   make(map[uint64]string),
	}
}

func (r *NFTRegistry) Name() string   { return r.name }
func (r *NFTRegistry) Symbol() string { return r.symbol }

// Mint creates the next token for to and returns its id. Ids start at zero.
func (r *NFTRegistry) Mint(to common.Address, uri string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.owners[id] = to
	r.uris[id] = uri
	return id
}

func (r *NFTRegistry) Exists(id uint64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.owners[id]
	return ok
}

func (r *NFTRegistry) OwnerOf(id uint64) (common.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	owner, ok := r.owners[id]
	if !ok {
		return common.Address{}, ErrInvalidTokenID
	}
	return owner, nil
}

func (r *NFTRegistry) TokenURI(id uint64) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.owners[id]; !ok {
		return "", ErrInvalidTokenID
	}
	return r.uris[id], nil
}

func (r *NFTRegistry) SetTokenURI(id uint64, uri string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.owners[id]; !ok {
		return ErrInvalidTokenID
	}
	r.uris[id] = uri
	return nil
}

// Transfer reassigns ownership. Callers enforce who may move a token; the
// registry only guards existence and the stated current owner.
func (r *NFTRegistry) Transfer(from, to common.Address, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	owner, ok := r.owners[id]
	if !ok || owner != from {
		return ErrInvalidTokenID
	}
	r.owners[id] = to
	return nil
}

type slotKey struct {
	nft common.Address
	id  uint64
}

// HNFTGovernance maps hyperlink-NFT slots to the fungible token their
// auction settles in. Slots without an explicit entry fall back to AD3.
type HNFTGovernance struct {
	mu      sync.RWMutex
	ad3     *Ledger
	byToken map[slotKey]*Ledger
}

func NewHNFTGovernance(ad3 *Ledger) *HNFTGovernance {
	return &HNFTGovernance{
		ad3:     ad3,
		byToken: make(map[slotKey]*Ledger),
	}
}

func (g *HNFTGovernance) GovernWith(nft common.Address, tokenID uint64, t *Ledger) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.byToken[slotKey{nft, tokenID}] = t
}

func (g *HNFTGovernance) GetGovernanceToken(nft common.Address, tokenID uint64) *Ledger {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if t, ok := g.byToken[slotKey{nft, tokenID}]; ok && t != nil {
		return t
	}
	return g.ad3
}
