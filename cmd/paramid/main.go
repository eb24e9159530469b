// Copyright (C) 2025, Parami Foundation Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

// paramid is the parami-core daemon: it wires the token ledgers, persona
// factory, ad-slot auction, signed-transfer gateway and bridge together and
// serves them over the HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"golang.org/x/sync/errgroup"

	"github.com/parami-foundation/parami-core/internal/api"
	"github.com/parami-foundation/parami-core/internal/config"
	"github.com/parami-foundation/parami-core/pkg/auction"
	"github.com/parami-foundation/parami-core/pkg/bridge"
	"github.com/parami-foundation/parami-core/pkg/crypto"
	"github.com/parami-foundation/parami-core/pkg/events"
	"github.com/parami-foundation/parami-core/pkg/gateway"
	"github.com/parami-foundation/parami-core/pkg/log"
	"github.com/parami-foundation/parami-core/pkg/metric"
	"github.com/parami-foundation/parami-core/pkg/persona"
	"github.com/parami-foundation/parami-core/pkg/storage"
	"github.com/parami-foundation/parami-core/pkg/token"
)

var (
	configPath = flag.String("config", "", "Path to TOML config file")

	Version   = "dev"
	GitCommit = "unknown"
)

// module custody accounts, derived deterministically from their role names
var (
	ad3Address     = roleAddress("parami/ad3")
	auctionCustody = roleAddress("parami/auction")
	gatewayCustody = roleAddress("parami/gateway")
	bridgeCustody  = roleAddress("parami/bridge")
	factoryCustody = roleAddress("parami/factory")
)

func roleAddress(role string) common.Address {
	h := crypto.NewPacker().String(role).Keccak()
	return common.BytesToAddress(h[12:])
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "paramid:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	logger := log.NewWithLevel(cfg.LogLevel)
	defer logger.Sync()
	logger.Info("paramid starting", "version", Version, "commit", GitCommit)

	metrics, err := metric.NewMetrics()
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	store, err := storage.NewStorage(cfg.Storage.Type, cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()
	nonces := storage.NewDBNonceStore(store)

	bus := events.NewBus()
	bank := token.NewBank()
	ad3 := token.NewLedgerAt("Parami AD3", "AD3", ad3Address)
	hnft := token.NewNFTRegistry("Hyperlink NFT", "HNFT")
	governance := token.NewHNFTGovernance(ad3)
	verifier := crypto.EthVerifier{}

	owner := common.HexToAddress(cfg.Chain.Owner)
	treasury := common.HexToAddress(cfg.Chain.Treasury)

	protocolFee, err := uint256.FromDecimal(cfg.Factory.ProtocolFeeWei)
	if err != nil {
		return fmt.Errorf("factory.protocol_fee_wei: %w", err)
	}
	factory := persona.NewFactory(persona.FactoryConfig{
		Owner:          owner,
		Signer:         common.HexToAddress(cfg.Chain.Signer),
		Custody:        factoryCustody,
		FeeDestination: treasury,
		ProtocolFee:    protocolFee,
		NFTReserve:     uint256.NewInt(cfg.Factory.NFTReserve),
		Params:         cfg.CurveParams(),
		Bank:           bank,
		Verifier:       verifier,
		Bus:            bus,
		Metrics:        metrics,
		Log:            logger.With("module", "factory"),
	})

	eng := auction.New(auction.Config{
		Owner:      owner,
		Custody:    auctionCustody,
		Relayer:    common.HexToAddress(cfg.Chain.Relayer),
		ChainID:    uint256.NewInt(cfg.Chain.ChainID),
		AD3:        ad3,
		Governance: governance,
		Verifier:   verifier,
		Nonces:     nonces,
		MinDeposit: uint256.NewInt(cfg.Auction.MinDeposit),
		Timeout:    cfg.Auction.PreBidTimeout.Duration,
		Bus:        bus,
		Metrics:    metrics,
		Log:        logger.With("module", "auction"),
	})
	eng.RegisterHNFT(roleAddress("parami/hnft"), hnft)

	gw := gateway.New(gateway.Config{
		Owner:    owner,
		Custody:  gatewayCustody,
		Attester: common.HexToAddress(cfg.Chain.Attester),
		ChainID:  uint256.NewInt(cfg.Chain.ChainID),
		Token:    ad3,
		Nonces:   nonces,
		Verifier: verifier,
		Metrics:  metrics,
		Log:      logger.With("module", "gateway"),
	})

	br := bridge.New(bridge.Config{
		Owner:    owner,
		Custody:  bridgeCustody,
		Attester: common.HexToAddress(cfg.Chain.Attester),
		Domain:   cfg.Bridge.Domain,
		Verifier: verifier,
		Nonces:   nonces,
		Bus:      bus,
		Metrics:  metrics,
		Log:      logger.With("module", "bridge"),
	})
	if err := br.RegisterAsset(owner, 0, ad3); err != nil {
		return fmt.Errorf("register bridge asset: %w", err)
	}

	logger.Info("engines wired",
		"owner", owner,
		"treasury", treasury,
		"chainId", cfg.Chain.ChainID,
		"domain", cfg.Bridge.Domain,
	)

	srv := api.New(api.Config{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Factory: factory,
		Auction: eng,
		Gateway: gw,
		Bridge:  br,
		Bus:     bus,
		Metrics: metrics,
		Log:     logger.With("module", "api"),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })

	err = g.Wait()
	logger.Info("paramid stopped")
	return err
}
