// Copyright (C) 2025, Parami Foundation Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies PARAMI_* environment variable overrides, and
// returns the final Config. The caller should invoke Config.Validate()
// after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known PARAMI_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject addresses and paths at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	setUint64(&cfg.Chain.ChainID, "PARAMI_CHAIN_ID")
	setStr(&cfg.Chain.Owner, "PARAMI_CHAIN_OWNER")
	setStr(&cfg.Chain.Treasury, "PARAMI_CHAIN_TREASURY")
	setStr(&cfg.Chain.Attester, "PARAMI_CHAIN_ATTESTER")
	setStr(&cfg.Chain.Relayer, "PARAMI_CHAIN_RELAYER")
	setStr(&cfg.Chain.Signer, "PARAMI_CHAIN_SIGNER")

	setUint64(&cfg.Market.ProtocolFeePercent, "PARAMI_MARKET_PROTOCOL_FEE_PERCENT")
	setUint64(&cfg.Market.ReferrerFeePercent, "PARAMI_MARKET_REFERRER_FEE_PERCENT")
	setUint64(&cfg.Market.TradeMinAmount, "PARAMI_MARKET_TRADE_MIN_AMOUNT")

	setUint64(&cfg.Auction.MinDeposit, "PARAMI_AUCTION_MIN_DEPOSIT")
	setDuration(&cfg.Auction.PreBidTimeout, "PARAMI_AUCTION_PRE_BID_TIMEOUT")

	setStr(&cfg.Factory.ProtocolFeeWei, "PARAMI_FACTORY_PROTOCOL_FEE_WEI")
	setUint64(&cfg.Factory.NFTReserve, "PARAMI_FACTORY_NFT_RESERVE")

	setUint32(&cfg.Bridge.Domain, "PARAMI_BRIDGE_DOMAIN")

	setStr(&cfg.Storage.Type, "PARAMI_STORAGE_TYPE")
	setStr(&cfg.Storage.Path, "PARAMI_STORAGE_PATH")

	setInt(&cfg.Server.Port, "PARAMI_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "PARAMI_SERVER_CORS_ORIGINS")

	setStr(&cfg.LogLevel, "PARAMI_LOG_LEVEL")
}

// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setUint32(dst *uint32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			*dst = uint32(n)
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
