// Copyright (C) 2025, Parami Foundation Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/parami-foundation/parami-core/pkg/auction"
	"github.com/parami-foundation/parami-core/pkg/crypto"
	"github.com/parami-foundation/parami-core/pkg/curve"
	"github.com/parami-foundation/parami-core/pkg/events"
	"github.com/parami-foundation/parami-core/pkg/persona"
	"github.com/parami-foundation/parami-core/pkg/token"
)

var (
	owner   = common.HexToAddress("0x0000000000000000000000000000000000000051")
	creator = common.HexToAddress("0x0000000000000000000000000000000000000052")
	trader  = common.HexToAddress("0x0000000000000000000000000000000000000053")
)

func newServer(t *testing.T) (*Server, *token.Bank) {
	t.Helper()
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)

	bank := token.NewBank()
	bus := events.NewBus()
	ad3 := token.NewLedgerAt("Parami AD3", "AD3", common.HexToAddress("0x5a"))

	factory := persona.NewFactory(persona.FactoryConfig{
		Owner:    owner,
		Signer:   ethcrypto.PubkeyToAddress(key.PublicKey),
		Custody:  common.HexToAddress("0x5b"),
		Params:   curve.DefaultParams(),
		Bank:     bank,
		Verifier: crypto.EthVerifier{},
		Bus:      bus,
	})
	eng := auction.New(auction.Config{
		Owner:      owner,
		Custody:    common.HexToAddress("0x5c"),
		Relayer:    ethcrypto.PubkeyToAddress(key.PublicKey),
		ChainID:    uint256.NewInt(1),
		AD3:        ad3,
		Governance: token.NewHNFTGovernance(ad3),
		Verifier:   crypto.EthVerifier{},
		Bus:        bus,
	})

	return New(Config{
		Addr:    ":0",
		Factory: factory,
		Auction: eng,
		Bus:     bus,
	}), bank
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	require := require.New(t)
	s, _ := newServer(t)
	rec := do(t, s, http.MethodGet, "/health", nil)
	require.Equal(http.StatusOK, rec.Code)
}

func TestCreateAndTrade(t *testing.T) {
	require := require.New(t)
	s, bank := newServer(t)

	bank.Mint(creator, uint256.NewInt(1_000_000_000_000_000))
	rec := do(t, s, http.MethodPost, "/api/v1/aimes", map[string]any{
		"creator": creator.Hex(),
		"name":    "alice",
		"avatar":  "ipfs://avatar",
		"payment": "1000000000000000",
	})
	require.Equal(http.StatusCreated, rec.Code)

	var created struct {
		Address common.Address `json:"address"`
	}
	require.NoError(json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(persona.PersonaAddress(creator, "alice"), created.Address)

	base := "/api/v1/aimes/" + created.Address.Hex()
	rec = do(t, s, http.MethodGet, base, nil)
	require.Equal(http.StatusOK, rec.Code)
	var info map[string]any
	require.NoError(json.Unmarshal(rec.Body.Bytes(), &info))
	require.Equal("10000", info["powersSupply"])

	rec = do(t, s, http.MethodGet, base+"/quote?side=buy&trader="+trader.Hex()+"&amount=10000", nil)
	require.Equal(http.StatusOK, rec.Code)
	var quote struct {
		Wei string `json:"wei"`
	}
	require.NoError(json.Unmarshal(rec.Body.Bytes(), &quote))
	require.Equal("41687499999958", quote.Wei)

	// Unfunded trade is a state conflict, not a bad request.
	rec = do(t, s, http.MethodPost, base+"/buy", map[string]any{
		"trader":  trader.Hex(),
		"amount":  "10000",
		"payment": quote.Wei,
	})
	require.Equal(http.StatusConflict, rec.Code)

	bank.Mint(trader, uint256.NewInt(41_687_499_999_958))
	rec = do(t, s, http.MethodPost, base+"/buy", map[string]any{
		"trader":  trader.Hex(),
		"amount":  "10000",
		"payment": quote.Wei,
	})
	require.Equal(http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, base, nil)
	require.NoError(json.Unmarshal(rec.Body.Bytes(), &info))
	require.Equal("20000", info["powersSupply"])

	rec = do(t, s, http.MethodPost, base+"/sell", map[string]any{
		"trader": trader.Hex(),
		"amount": "10000",
	})
	require.Equal(http.StatusOK, rec.Code)
}

func TestBadRequests(t *testing.T) {
	require := require.New(t)
	s, _ := newServer(t)

	rec := do(t, s, http.MethodPost, "/api/v1/aimes", map[string]any{
		"creator": "nope",
		"name":    "x",
		"payment": "0",
	})
	require.Equal(http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/v1/aimes/"+owner.Hex(), nil)
	require.Equal(http.StatusConflict, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/v1/auction/prebid", map[string]any{
		"bidder":  trader.Hex(),
		"nft":     owner.Hex(),
		"tokenId": 1,
	})
	require.Equal(http.StatusConflict, rec.Code)
}

func TestWeiToEther(t *testing.T) {
	require := require.New(t)
	require.Equal("1", weiToEther(uint256.NewInt(1_000_000_000_000_000_000)))
	require.Equal("0.001", weiToEther(uint256.NewInt(1_000_000_000_000_000)))
	require.Equal("0.000041687499999958", weiToEther(uint256.NewInt(41_687_499_999_958)))
}
