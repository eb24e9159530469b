// Copyright (C) 2025, Parami Foundation Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

// Package market implements the per-persona power market: a bonding-curve
// primary market where traders buy power from and sell power back to the
// persona's pool against the native coin.
package market

import (
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/parami-foundation/parami-core/pkg/curve"
	"github.com/parami-foundation/parami-core/pkg/events"
	"github.com/parami-foundation/parami-core/pkg/log"
	"github.com/parami-foundation/parami-core/pkg/metric"
	"github.com/parami-foundation/parami-core/pkg/token"
)

var (
	ErrAmountTooSmall      = errors.New("Amount too small")
	ErrInsufficientPayment = errors.New("Insufficient payment")
	ErrPoolRunOut          = errors.New("Pool run out")
	ErrSelfReferral        = errors.New("Cannot refer yourself")
	ErrReferrerSet         = errors.New("Cannot change referrer")
	ErrNotOwner            = errors.New("Ownable: caller is not the owner")
)

// Config wires a Market. Persona is the custody address that holds the
// unsold power pool and the native reserve.
type Config struct {
	Owner   common.Address
	Creator common.Address
	Persona common.Address

	Params         curve.Params
	Power          *token.Ledger
	Bank           *token.Bank
	FeeDestination common.Address
	InitialReserve *uint256.Int

	Bus     *events.Bus
	Metrics *metric.Metrics
	Log     log.Logger
}

// Market serializes all trades on one persona's curve. The priced supply
// starts at the creator's initial allocation; the rest of the mint sits in
// the persona pool, part of it reserved for NFT issuance.
type Market struct {
	mu sync.Mutex

	owner   common.Address
	persona common.Address
	params  curve.Params

	power *token.Ledger
	bank  *token.Bank

	supply         *uint256.Int
	reserved       *uint256.Int
	feeDestination common.Address
	feesAccrued    *uint256.Int
	referrers      map[common.Address]common.Address

	bus     *events.Bus
	metrics *metric.Metrics
	log     log.Logger
}

// New mints the persona's full power supply: the creator's initial amount to
// the creator, the remainder to the pool. The priced supply starts at the
// creator allocation so the first pool purchase is the curve's first step.
func New(cfg Config) *Market {
	if cfg.Log == nil {
		cfg.Log = log.NoLog
	}
	if cfg.InitialReserve == nil {
		cfg.InitialReserve = uint256.NewInt(0)
	}

	creatorInit := uint256.NewInt(cfg.Params.CreatorInitAmount)
	pool := new(uint256.Int).Sub(uint256.NewInt(cfg.Params.TotalPowerAmount), creatorInit)
	cfg.Power.Mint(cfg.Creator, creatorInit)
	cfg.Power.Mint(cfg.Persona, pool)

	return &Market{
		owner:          cfg.Owner,
		persona:        cfg.Persona,
		params:         cfg.Params,
		power:          cfg.Power,
		bank:           cfg.Bank,
		supply:         new(uint256.Int).Set(creatorInit),
		reserved:       new(uint256.Int).Set(cfg.InitialReserve),
		feeDestination: cfg.FeeDestination,
		feesAccrued:    uint256.NewInt(0),
		referrers:      make(map[common.Address]common.Address),
		bus:            cfg.Bus,
		metrics:        cfg.Metrics,
		log:            cfg.Log,
	}
}

func (m *Market) Persona() common.Address { return m.persona }

func (m *Market) Supply() *uint256.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(uint256.Int).Set(m.supply)
}

func (m *Market) Reserved() *uint256.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(uint256.Int).Set(m.reserved)
}

func (m *Market) FeesAccrued() *uint256.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(uint256.Int).Set(m.feesAccrued)
}

func (m *Market) ReferrerOf(trader common.Address) common.Address {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.referrers[trader]
}

// BuyQuote prices a purchase of amount base units for trader, fee included.
func (m *Market) BuyQuote(trader common.Address, amount *uint256.Int) *uint256.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, hasRef := m.referrers[trader]
	return m.params.BuyPriceAfterFee(m.supply, amount, hasRef)
}

// SellQuote prices a sale of amount base units for trader, fee deducted.
func (m *Market) SellQuote(trader common.Address, amount *uint256.Int) *uint256.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, hasRef := m.referrers[trader]
	return m.params.SellPriceAfterFee(m.supply, amount, hasRef)
}

// BuyPowers sells amount base units from the pool to trader for payment
// native units. Overpayment is retained by the pool as revenue; the fee
// share accrues to the treasury for a later pull.
func (m *Market) BuyPowers(trader common.Address, amount, payment *uint256.Int) error {
	start := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	if amount.LtUint64(m.params.TradeMinAmount) {
		return ErrAmountTooSmall
	}
	available := m.power.BalanceOf(m.persona)
	available.Sub(available, m.reserved)
	if amount.Gt(available) {
		return ErrPoolRunOut
	}

	referrer, hasRef := m.referrers[trader]
	price := m.params.BuyPrice(m.supply, amount)
	fee := m.params.ApplyFee(price, m.params.FeePercent(hasRef))
	total := new(uint256.Int).Add(price, fee)
	if payment.Lt(total) {
		return ErrInsufficientPayment
	}
	if m.bank.BalanceOf(trader).Lt(payment) {
		return token.ErrBalance
	}

	m.supply.Add(m.supply, amount)
	m.feesAccrued.Add(m.feesAccrued, fee)
	if err := m.bank.Transfer(trader, m.persona, payment); err != nil {
		return err
	}
	if err := m.power.Transfer(m.persona, trader, amount); err != nil {
		return err
	}

	m.log.Info("powers bought",
		"persona", m.persona,
		"trader", trader,
		"amount", amount,
		"price", price,
		"fee", fee,
	)
	if m.metrics != nil {
		m.metrics.PowersBought.WithLabelValues(m.persona.Hex()).Inc()
		m.metrics.FeesAccrued.Inc()
		m.metrics.TradeDuration.Observe(time.Since(start).Seconds())
	}
	if m.bus != nil {
		m.bus.Publish(events.TypePowersBought, events.PowersBought{
			Persona:  m.persona,
			Trader:   trader,
			Amount:   new(uint256.Int).Set(amount),
			Price:    price,
			Fee:      fee,
			Referrer: referrer,
		})
	}
	return nil
}

// SellPowers buys amount base units back from trader at the curve price one
// step down, net of fee.
func (m *Market) SellPowers(trader common.Address, amount *uint256.Int) error {
	start := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	if amount.LtUint64(m.params.TradeMinAmount) {
		return ErrAmountTooSmall
	}
	if m.power.BalanceOf(trader).Lt(amount) {
		return token.ErrBalance
	}
	floor := uint256.NewInt(m.params.CreatorInitAmount)
	sellable := new(uint256.Int).Sub(m.supply, floor)
	if amount.Gt(sellable) {
		return ErrPoolRunOut
	}

	_, hasRef := m.referrers[trader]
	price := m.params.SellPrice(m.supply, amount)
	fee := m.params.ApplyFee(price, m.params.FeePercent(hasRef))
	net := new(uint256.Int).Sub(price, fee)
	if m.bank.BalanceOf(m.persona).Lt(net) {
		return token.ErrBalance
	}

	m.supply.Sub(m.supply, amount)
	m.feesAccrued.Add(m.feesAccrued, fee)
	if err := m.power.Transfer(trader, m.persona, amount); err != nil {
		return err
	}
	if err := m.bank.Transfer(m.persona, trader, net); err != nil {
		return err
	}

	m.log.Info("powers sold",
		"persona", m.persona,
		"trader", trader,
		"amount", amount,
		"price", price,
		"fee", fee,
	)
	if m.metrics != nil {
		m.metrics.PowersSold.WithLabelValues(m.persona.Hex()).Inc()
		m.metrics.FeesAccrued.Inc()
		m.metrics.TradeDuration.Observe(time.Since(start).Seconds())
	}
	if m.bus != nil {
		m.bus.Publish(events.TypePowersSold, events.PowersSold{
			Persona: m.persona,
			Trader:  trader,
			Amount:  new(uint256.Int).Set(amount),
			Price:   price,
			Fee:     fee,
		})
	}
	return nil
}

// SetReferrer registers trader's referrer. One shot: it can never be changed
// and never point back at the trader.
func (m *Market) SetReferrer(trader, referrer common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if trader == referrer {
		return ErrSelfReferral
	}
	if _, ok := m.referrers[trader]; ok {
		return ErrReferrerSet
	}
	m.referrers[trader] = referrer
	return nil
}

func (m *Market) SetFeeDestination(caller, dest common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if caller != m.owner {
		return ErrNotOwner
	}
	m.feeDestination = dest
	return nil
}

// WithdrawFee moves the accrued fee balance from the pool to the fee
// destination. Pull-based and owner-only.
func (m *Market) WithdrawFee(caller common.Address) (*uint256.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if caller != m.owner {
		return nil, ErrNotOwner
	}
	out := new(uint256.Int).Set(m.feesAccrued)
	if out.IsZero() {
		return out, nil
	}
	m.feesAccrued.Clear()
	if err := m.bank.Transfer(m.persona, m.feeDestination, out); err != nil {
		return nil, err
	}
	m.log.Info("fees withdrawn", "persona", m.persona, "amount", out, "to", m.feeDestination)
	return out, nil
}

// DebitReserved releases amount from the NFT reserve. The persona factory
// calls this when an NFT mint consumes reserved power.
func (m *Market) DebitReserved(amount *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reserved.Lt(amount) {
		return ErrPoolRunOut
	}
	m.reserved.Sub(m.reserved, amount)
	return nil
}
