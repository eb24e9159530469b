// Copyright (C) 2025, Parami Foundation Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

// Package curve is the pure pricing engine for persona power markets: a
// quadratic bonding curve integrated in closed form over 256-bit integers.
// It holds no state beyond its parameters and never mutates its inputs.
package curve

import "github.com/holiman/uint256"

// Params are the immutable per-market curve constants. Fee percentages are
// integers over 10^Decimals.
type Params struct {
	Decimals           uint8
	ProtocolFeePercent uint64
	ReferrerFeePercent uint64
	CreatorInitAmount  uint64 // supply floor in base units, never sellable
	TradeMinAmount     uint64 // minimum tradable granularity in base units
	TotalPowerAmount   uint64 // total minted per persona, in base units
}

// DefaultParams mirrors the reference deployment: four decimal places
// (10000 base units per whole power), 5/3 fee percents, a one-power creator
// floor and a 0.01-power trade minimum.
func DefaultParams() Params {
	return Params{
		Decimals:           4,
		ProtocolFeePercent: 5,
		ReferrerFeePercent: 3,
		CreatorInitAmount:  10_000,
		TradeMinAmount:     100,
		TotalPowerAmount:   10_000_000_000, // 1,000,000 powers
	}
}

// Unit returns 10^Decimals, the number of base units in one whole power.
func (p Params) Unit() uint64 {
	u := uint64(1)
	for i := uint8(0); i < p.Decimals; i++ {
		u *= 10
	}
	return u
}

var (
	six    = uint256.NewInt(6)
	ether  = uint256.NewInt(1_000_000_000_000_000_000)
	curveK = uint256.NewInt(16_000)
)

// segment computes x*(x+off)*2x/6 with the same floor placement the
// reference integer code uses. x is the distance of a supply point above
// the creator floor, off the floor itself added back for the middle factor.
func segment(x, off *uint256.Int) *uint256.Int {
	mid := new(uint256.Int).Add(x, off)
	n := new(uint256.Int).Mul(x, mid)
	n.Mul(n, new(uint256.Int).Lsh(x, 1))
	return n.Div(n, six)
}

// Price returns the cost in wei of moving the curve from supply to
// supply+amount, both in base units. Supply at or below the creator floor
// prices as zero (bootstrap), as does a zero amount.
func (p Params) Price(supply, amount *uint256.Int) *uint256.Int {
	unit := uint256.NewInt(p.Unit())
	if supply.IsZero() || amount.IsZero() || supply.Lt(unit) {
		return uint256.NewInt(0)
	}

	upper := new(uint256.Int).Add(supply, amount)
	upperX := new(uint256.Int).Sub(upper, unit)
	lowerX := new(uint256.Int).Sub(supply, unit)

	sum := new(uint256.Int).Sub(segment(upperX, unit), segment(lowerX, unit))
	sum.Mul(sum, ether)

	div := new(uint256.Int).Mul(unit, unit)
	div.Mul(div, unit)
	div.Mul(div, curveK)
	return sum.Div(sum, div)
}

// BuyPrice prices acquiring amount base units at the current supply.
func (p Params) BuyPrice(supply, amount *uint256.Int) *uint256.Int {
	return p.Price(supply, amount)
}

// SellPrice prices returning amount base units at the current supply.
// Amounts exceeding the supply price as zero; callers gate on the pool
// floor before quoting.
func (p Params) SellPrice(supply, amount *uint256.Int) *uint256.Int {
	if amount.Gt(supply) {
		return uint256.NewInt(0)
	}
	return p.Price(new(uint256.Int).Sub(supply, amount), amount)
}

// ApplyFee returns price * feePercent / 10^Decimals, floor division.
func (p Params) ApplyFee(price *uint256.Int, feePercent uint64) *uint256.Int {
	f := new(uint256.Int).Mul(price, uint256.NewInt(feePercent))
	return f.Div(f, uint256.NewInt(p.Unit()))
}

// FeePercent selects the total fee rate for a trader: the reduced referrer
// rate when the trader has a referrer registered, the full protocol rate
// otherwise.
func (p Params) FeePercent(hasReferrer bool) uint64 {
	if hasReferrer {
		return p.ReferrerFeePercent
	}
	return p.ProtocolFeePercent
}

// BuyPriceAfterFee is the total a buyer pays: base price plus fee.
func (p Params) BuyPriceAfterFee(supply, amount *uint256.Int, hasReferrer bool) *uint256.Int {
	base := p.BuyPrice(supply, amount)
	return new(uint256.Int).Add(base, p.ApplyFee(base, p.FeePercent(hasReferrer)))
}

// SellPriceAfterFee is the net a seller receives: base price minus fee.
func (p Params) SellPriceAfterFee(supply, amount *uint256.Int, hasReferrer bool) *uint256.Int {
	base := p.SellPrice(supply, amount)
	return new(uint256.Int).Sub(base, p.ApplyFee(base, p.FeePercent(hasReferrer)))
}
