// Copyright (C) 2025, Parami Foundation Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package curve

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func TestPricePinnedPoints(t *testing.T) {
	require := require.New(t)
	p := DefaultParams()

	// Values cross-checked against the reference deployment.
	require.Equal(u(208312), p.BuyPrice(u(10_000), u(1)))
	require.Equal(u(41_666_666_666_625), p.BuyPrice(u(10_000), u(10_000)))
	require.Equal(u(208_333_333_333_375), p.BuyPrice(u(20_000), u(10_000)))
}

func TestPriceDegenerateInputs(t *testing.T) {
	require := require.New(t)
	p := DefaultParams()

	require.True(p.BuyPrice(u(0), u(10_000)).IsZero())
	require.True(p.BuyPrice(u(10_000), u(0)).IsZero())
	// Below the creator floor the curve has not started.
	require.True(p.BuyPrice(u(9_999), u(5)).IsZero())
}

func TestSellMirrorsBuy(t *testing.T) {
	require := require.New(t)
	p := DefaultParams()

	// Selling A at supply S+A must quote the same base as buying A at S.
	buy := p.BuyPrice(u(20_000), u(10_000))
	sell := p.SellPrice(u(30_000), u(10_000))
	require.Equal(buy, sell)

	require.True(p.SellPrice(u(5_000), u(10_000)).IsZero())
}

func TestFees(t *testing.T) {
	require := require.New(t)
	p := DefaultParams()

	base := p.BuyPrice(u(10_000), u(10_000)) // 41666666666625
	require.Equal(u(20_833_333_333), p.ApplyFee(base, p.ProtocolFeePercent))
	require.Equal(u(12_499_999_999), p.ApplyFee(base, p.ReferrerFeePercent))

	require.Equal(uint64(5), p.FeePercent(false))
	require.Equal(uint64(3), p.FeePercent(true))

	total := p.BuyPriceAfterFee(u(10_000), u(10_000), false)
	require.Equal(new(uint256.Int).Add(base, u(20_833_333_333)), total)

	net := p.SellPriceAfterFee(u(20_000), u(10_000), true)
	require.Equal(new(uint256.Int).Sub(base, u(12_499_999_999)), net)
}

func TestUnit(t *testing.T) {
	require := require.New(t)
	require.Equal(uint64(10_000), DefaultParams().Unit())
}
