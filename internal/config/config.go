// Copyright (C) 2025, Parami Foundation Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config defines the top-level configuration for the parami daemon
// and provides validation helpers.
package config

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/parami-foundation/parami-core/pkg/curve"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by PARAMI_* environment
// variables.
type Config struct {
	Chain   ChainConfig   `toml:"chain"`
	Market  MarketConfig  `toml:"market"`
	Auction AuctionConfig `toml:"auction"`
	Factory FactoryConfig `toml:"factory"`
	Bridge  BridgeConfig  `toml:"bridge"`
	Storage StorageConfig `toml:"storage"`
	Server  ServerConfig  `toml:"server"`

	LogLevel string `toml:"log_level"`
}

// ChainConfig holds the identity of this deployment and its trusted keys.
type ChainConfig struct {
	ChainID  uint64 `toml:"chain_id"`
	Owner    string `toml:"owner"`
	Treasury string `toml:"treasury"`
	Attester string `toml:"attester"`
	Relayer  string `toml:"relayer"`
	Signer   string `toml:"signer"`
}

// MarketConfig holds the bonding-curve parameters shared by all personas.
type MarketConfig struct {
	Decimals           uint8  `toml:"decimals"`
	ProtocolFeePercent uint64 `toml:"protocol_fee_percent"`
	ReferrerFeePercent uint64 `toml:"referrer_fee_percent"`
	CreatorInitAmount  uint64 `toml:"creator_init_amount"`
	TradeMinAmount     uint64 `toml:"trade_min_amount"`
	TotalPowerAmount   uint64 `toml:"total_power_amount"`
}

// AuctionConfig holds the ad-slot auction parameters.
type AuctionConfig struct {
	MinDeposit    uint64   `toml:"min_deposit"`
	PreBidTimeout duration `toml:"pre_bid_timeout"`
}

// FactoryConfig holds persona-factory parameters.
type FactoryConfig struct {
	ProtocolFeeWei string `toml:"protocol_fee_wei"`
	NFTReserve     uint64 `toml:"nft_reserve"`
}

// BridgeConfig holds the cross-domain bridge parameters.
type BridgeConfig struct {
	Domain uint32 `toml:"domain"`
}

// StorageConfig selects the durable key-value store.
type StorageConfig struct {
	Type string `toml:"type"` // "memory" or "badger"
	Path string `toml:"path"`
}

// ServerConfig holds the HTTP API parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// duration wraps time.Duration so TOML can parse "10m" style values.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Defaults returns the built-in configuration, matching the reference
// deployment's constants.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			ChainID: 1,
		},
		Market: MarketConfig{
			Decimals:           4,
			ProtocolFeePercent: 5,
			ReferrerFeePercent: 3,
			CreatorInitAmount:  10_000,
			TradeMinAmount:     100,
			TotalPowerAmount:   10_000_000_000,
		},
		Auction: AuctionConfig{
			MinDeposit:    10,
			PreBidTimeout: duration{10 * time.Minute},
		},
		Factory: FactoryConfig{
			ProtocolFeeWei: "1000000000000000",
			NFTReserve:     1_000_000_000,
		},
		Bridge: BridgeConfig{
			Domain: 0,
		},
		Storage: StorageConfig{
			Type: "memory",
			Path: "/var/lib/paramid",
		},
		Server: ServerConfig{
			Port: 8080,
		},
		LogLevel: "info",
	}
}

// CurveParams converts the market section into engine parameters.
func (c *Config) CurveParams() curve.Params {
	return curve.Params{
		Decimals:           c.Market.Decimals,
		ProtocolFeePercent: c.Market.ProtocolFeePercent,
		ReferrerFeePercent: c.Market.ReferrerFeePercent,
		CreatorInitAmount:  c.Market.CreatorInitAmount,
		TradeMinAmount:     c.Market.TradeMinAmount,
		TotalPowerAmount:   c.Market.TotalPowerAmount,
	}
}

// Validate checks invariants the engines rely on.
func (c *Config) Validate() error {
	if c.Market.Decimals == 0 || c.Market.Decimals > 18 {
		return fmt.Errorf("market.decimals out of range: %d", c.Market.Decimals)
	}
	unit := uint64(1)
	for i := uint8(0); i < c.Market.Decimals; i++ {
		unit *= 10
	}
	if c.Market.ProtocolFeePercent >= unit || c.Market.ReferrerFeePercent >= unit {
		return fmt.Errorf("fee percents must be below 10^decimals")
	}
	if c.Market.ReferrerFeePercent > c.Market.ProtocolFeePercent {
		return fmt.Errorf("referrer fee percent above protocol fee percent")
	}
	if c.Market.TotalPowerAmount <= c.Market.CreatorInitAmount {
		return fmt.Errorf("total power amount must exceed the creator allocation")
	}
	for name, addr := range map[string]string{
		"chain.owner":    c.Chain.Owner,
		"chain.treasury": c.Chain.Treasury,
		"chain.attester": c.Chain.Attester,
		"chain.relayer":  c.Chain.Relayer,
		"chain.signer":   c.Chain.Signer,
	} {
		if addr == "" {
			return fmt.Errorf("%s is required", name)
		}
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("%s is not a hex address: %q", name, addr)
		}
	}
	if c.Storage.Type != "memory" && c.Storage.Type != "badger" {
		return fmt.Errorf("storage.type must be memory or badger, got %q", c.Storage.Type)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}
