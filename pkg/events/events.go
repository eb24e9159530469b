// Copyright (C) 2025, Parami Foundation Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

// Package events is the in-process notification bus. Engines publish typed
// payloads after each state transition; subscribers (the websocket feed,
// indexers, tests) receive them asynchronously and may never block a
// publisher.
package events

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

type Type string

const (
	TypeBidPrepared    Type = "bid_prepared"
	TypeBidCommitted   Type = "bid_committed"
	TypeBidRefunded    Type = "bid_refunded"
	TypePowersBought   Type = "powers_bought"
	TypePowersSold     Type = "powers_sold"
	TypeAIMeCreated    Type = "aime_created"
	TypeAIMeNFTMinted  Type = "aime_nft_minted"
	TypeAIMeNFTUpdated Type = "aime_nft_updated"
	TypeDeposited      Type = "deposited"
	TypeWithdrawed     Type = "withdrawed"
)

// Event wraps a payload with its identity and publish time.
type Event struct {
	ID      uuid.UUID `json:"id"`
	Type    Type      `json:"type"`
	Time    time.Time `json:"time"`
	Payload any       `json:"payload"`
}

type BidPrepared struct {
	CurBidID uint64         `json:"curBidId"`
	PreBidID uint64         `json:"preBidId"`
	Bidder   common.Address `json:"bidder"`
}

type BidCommitted struct {
	BidID    uint64         `json:"bidId"`
	NFT      common.Address `json:"nft"`
	TokenID  uint64         `json:"tokenId"`
	Bidder   common.Address `json:"bidder"`
	Amount   *uint256.Int   `json:"amount"`
	SlotURI  string         `json:"slotUri"`
	GovToken common.Address `json:"governanceToken"`
}

type BidRefunded struct {
	BidID  uint64         `json:"bidId"`
	Bidder common.Address `json:"bidder"`
	Amount *uint256.Int   `json:"amount"`
}

type PowersBought struct {
	Persona  common.Address `json:"persona"`
	Trader   common.Address `json:"trader"`
	Amount   *uint256.Int   `json:"amount"`
	Price    *uint256.Int   `json:"price"`
	Fee      *uint256.Int   `json:"fee"`
	Referrer common.Address `json:"referrer"`
}

type PowersSold struct {
	Persona common.Address `json:"persona"`
	Trader  common.Address `json:"trader"`
	Amount  *uint256.Int   `json:"amount"`
	Price   *uint256.Int   `json:"price"`
	Fee     *uint256.Int   `json:"fee"`
}

type AIMeCreated struct {
	Creator common.Address `json:"creator"`
	Persona common.Address `json:"persona"`
	Name    string         `json:"name"`
}

type AIMeNFTMinted struct {
	Creator common.Address `json:"creator"`
	Persona common.Address `json:"persona"`
	TokenID uint64         `json:"tokenId"`
	Amount  *uint256.Int   `json:"amount"`
}

type AIMeNFTUpdated struct {
	Persona common.Address `json:"persona"`
	TokenID uint64         `json:"tokenId"`
	Data    string         `json:"data"`
}

type Deposited struct {
	Nonce      uint64       `json:"nonce"`
	AssetID    uint32       `json:"assetId"`
	Amount     *uint256.Int `json:"amount"`
	Domain     uint32       `json:"domain"`
	Sender     []byte       `json:"sender"`
	DestDomain uint32       `json:"destDomain"`
	Recipient  []byte       `json:"recipient"`
}

type Withdrawed struct {
	Nonce        uint64         `json:"nonce"`
	AssetID      uint32         `json:"assetId"`
	Amount       *uint256.Int   `json:"amount"`
	SourceDomain uint32         `json:"sourceDomain"`
	To           common.Address `json:"to"`
}

// Bus fans events out to subscribers. Delivery is best-effort: a subscriber
// whose buffer is full loses the event rather than stalling the engines.
type Bus struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]chan Event
	now  func() time.Time
}

func NewBus() *Bus {
	return &Bus{
		subs: make(map[uuid.UUID]chan Event),
		now:  time.Now,
	}
}

// Subscribe registers a buffered receiver. The returned cancel func
// unregisters it and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)
	id := uuid.New()

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
}

func (b *Bus) Publish(typ Type, payload any) {
	ev := Event{
		ID:      uuid.New(),
		Type:    typ,
		Time:    b.now(),
		Payload: payload,
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
