// Copyright (C) 2025, Parami Foundation Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

// Package api exposes the engines over HTTP: JSON operations for markets,
// the auction, the gateway and the bridge, plus the Prometheus scrape
// endpoint and a websocket event feed for off-chain indexers.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/parami-foundation/parami-core/pkg/auction"
	"github.com/parami-foundation/parami-core/pkg/bridge"
	"github.com/parami-foundation/parami-core/pkg/events"
	"github.com/parami-foundation/parami-core/pkg/gateway"
	"github.com/parami-foundation/parami-core/pkg/log"
	"github.com/parami-foundation/parami-core/pkg/metric"
	"github.com/parami-foundation/parami-core/pkg/persona"
)

// Config wires a Server with the engines it fronts.
type Config struct {
	Addr string

	Factory *persona.Factory
	Auction *auction.Engine
	Gateway *gateway.Gateway
	Bridge  *bridge.Bridge

	Bus     *events.Bus
	Metrics *metric.Metrics
	Log     log.Logger
}

type Server struct {
	addr     string
	router   *mux.Router
	upgrader websocket.Upgrader

	factory *persona.Factory
	auction *auction.Engine
	gateway *gateway.Gateway
	bridge  *bridge.Bridge

	bus     *events.Bus
	metrics *metric.Metrics
	log     log.Logger

	http *http.Server
}

func New(cfg Config) *Server {
	if cfg.Log == nil {
		cfg.Log = log.NoLog
	}
	s := &Server{
		addr:    cfg.Addr,
		factory: cfg.Factory,
		auction: cfg.Auction,
		gateway: cfg.Gateway,
		bridge:  cfg.Bridge,
		bus:     cfg.Bus,
		metrics: cfg.Metrics,
		log:     cfg.Log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.observe)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.metrics.GetGatherer(), promhttp.HandlerOpts{}))
	}
	r.HandleFunc("/ws/events", s.handleEvents)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/aimes", s.handleCreateAIME).Methods(http.MethodPost)
	api.HandleFunc("/aimes/{addr}", s.handleGetAIME).Methods(http.MethodGet)
	api.HandleFunc("/aimes/{addr}/quote", s.handleQuote).Methods(http.MethodGet)
	api.HandleFunc("/aimes/{addr}/buy", s.handleBuy).Methods(http.MethodPost)
	api.HandleFunc("/aimes/{addr}/sell", s.handleSell).Methods(http.MethodPost)
	api.HandleFunc("/aimes/{addr}/referrer", s.handleSetReferrer).Methods(http.MethodPost)
	api.HandleFunc("/auction/prebid", s.handlePreBid).Methods(http.MethodPost)
	api.HandleFunc("/auction/commit", s.handleCommitBid).Methods(http.MethodPost)
	api.HandleFunc("/gateway/withdraw", s.handleGatewayWithdraw).Methods(http.MethodPost)
	api.HandleFunc("/bridge/deposit", s.handleBridgeDeposit).Methods(http.MethodPost)
	api.HandleFunc("/bridge/withdraw", s.handleBridgeWithdraw).Methods(http.MethodPost)
	return r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves until ctx is cancelled, then drains with a short grace period.
func (s *Server) Run(ctx context.Context) error {
	s.http = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("api listening", "addr", s.addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		if s.metrics != nil {
			s.metrics.RequestsProcessed.
				WithLabelValues(r.Method, strconv.Itoa(sw.status)).
				Inc()
		}
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// handleEvents upgrades to a websocket and streams bus events until the
// client goes away.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ch, cancel := s.bus.Subscribe(256)
	defer cancel()

	// Drain reads so close frames are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for ev := range ch {
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
}

type createAIMERequest struct {
	Creator string `json:"creator"`
	Name    string `json:"name"`
	Avatar  string `json:"avatar"`
	Payment string `json:"payment"`
}

func (s *Server) handleCreateAIME(w http.ResponseWriter, r *http.Request) {
	var req createAIMERequest
	if !decodeBody(w, r, &req) {
		return
	}
	creator, ok := parseAddress(w, req.Creator, "creator")
	if !ok {
		return
	}
	payment, ok := parseAmount(w, req.Payment, "payment")
	if !ok {
		return
	}

	p, err := s.factory.CreateAIME(creator, req.Name, req.Avatar, payment)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"address": p.Address(),
		"name":    p.Name(),
	})
}

func (s *Server) personaFromPath(w http.ResponseWriter, r *http.Request) (*persona.Persona, bool) {
	addr, ok := parseAddress(w, mux.Vars(r)["addr"], "addr")
	if !ok {
		return nil, false
	}
	p, err := s.factory.Persona(addr)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return p, true
}

func (s *Server) handleGetAIME(w http.ResponseWriter, r *http.Request) {
	p, ok := s.personaFromPath(w, r)
	if !ok {
		return
	}
	m := p.Market()
	fees := m.FeesAccrued()
	writeJSON(w, http.StatusOK, map[string]any{
		"address":       p.Address(),
		"creator":       p.Creator(),
		"name":          p.Name(),
		"powersSupply":  m.Supply().Dec(),
		"powerReserved": m.Reserved().Dec(),
		"feesAccrued":   fees.Dec(),
		"feesEther":     weiToEther(fees),
	})
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	p, ok := s.personaFromPath(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	trader, ok := parseAddress(w, q.Get("trader"), "trader")
	if !ok {
		return
	}
	amount, ok := parseAmount(w, q.Get("amount"), "amount")
	if !ok {
		return
	}

	m := p.Market()
	var price *uint256.Int
	switch side := q.Get("side"); side {
	case "buy", "":
		price = m.BuyQuote(trader, amount)
	case "sell":
		price = m.SellQuote(trader, amount)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": fmt.Sprintf("unknown side %q", side)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"wei":   price.Dec(),
		"ether": weiToEther(price),
	})
}

type tradeRequest struct {
	Trader  string `json:"trader"`
	Amount  string `json:"amount"`
	Payment string `json:"payment"`
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	p, ok := s.personaFromPath(w, r)
	if !ok {
		return
	}
	var req tradeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	trader, ok := parseAddress(w, req.Trader, "trader")
	if !ok {
		return
	}
	amount, ok := parseAmount(w, req.Amount, "amount")
	if !ok {
		return
	}
	payment, ok := parseAmount(w, req.Payment, "payment")
	if !ok {
		return
	}
	if err := p.Market().BuyPowers(trader, amount, payment); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	p, ok := s.personaFromPath(w, r)
	if !ok {
		return
	}
	var req tradeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	trader, ok := parseAddress(w, req.Trader, "trader")
	if !ok {
		return
	}
	amount, ok := parseAmount(w, req.Amount, "amount")
	if !ok {
		return
	}
	if err := p.Market().SellPowers(trader, amount); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type referrerRequest struct {
	Trader   string `json:"trader"`
	Referrer string `json:"referrer"`
}

func (s *Server) handleSetReferrer(w http.ResponseWriter, r *http.Request) {
	p, ok := s.personaFromPath(w, r)
	if !ok {
		return
	}
	var req referrerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	trader, ok := parseAddress(w, req.Trader, "trader")
	if !ok {
		return
	}
	ref, ok := parseAddress(w, req.Referrer, "referrer")
	if !ok {
		return
	}
	if err := p.Market().SetReferrer(trader, ref); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type preBidRequest struct {
	Bidder  string `json:"bidder"`
	NFT     string `json:"nft"`
	TokenID uint64 `json:"tokenId"`
}

func (s *Server) handlePreBid(w http.ResponseWriter, r *http.Request) {
	var req preBidRequest
	if !decodeBody(w, r, &req) {
		return
	}
	bidder, ok := parseAddress(w, req.Bidder, "bidder")
	if !ok {
		return
	}
	nft, ok := parseAddress(w, req.NFT, "nft")
	if !ok {
		return
	}
	curID, preID, err := s.auction.PreBid(bidder, auction.Slot{NFT: nft, TokenID: req.TokenID})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"curBidId": curID,
		"preBidId": preID,
	})
}

type commitBidRequest struct {
	Bidder       string `json:"bidder"`
	NFT          string `json:"nft"`
	TokenID      uint64 `json:"tokenId"`
	BidAmount    string `json:"bidAmount"`
	SlotURI      string `json:"slotUri"`
	Signature    string `json:"signature"`
	CurBidID     uint64 `json:"curBidId"`
	PreBidID     uint64 `json:"preBidId"`
	CurBidRemain string `json:"curBidRemain"`
}

func (s *Server) handleCommitBid(w http.ResponseWriter, r *http.Request) {
	var req commitBidRequest
	if !decodeBody(w, r, &req) {
		return
	}
	bidder, ok := parseAddress(w, req.Bidder, "bidder")
	if !ok {
		return
	}
	nft, ok := parseAddress(w, req.NFT, "nft")
	if !ok {
		return
	}
	amount, ok := parseAmount(w, req.BidAmount, "bidAmount")
	if !ok {
		return
	}
	remain, ok := parseAmount(w, req.CurBidRemain, "curBidRemain")
	if !ok {
		return
	}
	sig := common.FromHex(req.Signature)

	err := s.auction.CommitBid(bidder, auction.Slot{NFT: nft, TokenID: req.TokenID},
		amount, req.SlotURI, sig, req.CurBidID, req.PreBidID, remain)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type gatewayWithdrawRequest struct {
	To        string `json:"to"`
	ChainID   string `json:"chainId"`
	Amount    string `json:"amount"`
	Nonce     string `json:"nonce"`
	Signature string `json:"signature"`
}

func (s *Server) handleGatewayWithdraw(w http.ResponseWriter, r *http.Request) {
	var req gatewayWithdrawRequest
	if !decodeBody(w, r, &req) {
		return
	}
	to, ok := parseAddress(w, req.To, "to")
	if !ok {
		return
	}
	chainID, ok := parseAmount(w, req.ChainID, "chainId")
	if !ok {
		return
	}
	amount, ok := parseAmount(w, req.Amount, "amount")
	if !ok {
		return
	}
	nonce, ok := parseAmount(w, req.Nonce, "nonce")
	if !ok {
		return
	}
	if err := s.gateway.Withdraw(to, chainID, amount, nonce, common.FromHex(req.Signature)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type bridgeDepositRequest struct {
	Sender     string `json:"sender"`
	AssetID    uint32 `json:"assetId"`
	Amount     string `json:"amount"`
	DestDomain uint32 `json:"destDomain"`
	Recipient  string `json:"recipient"`
}

func (s *Server) handleBridgeDeposit(w http.ResponseWriter, r *http.Request) {
	var req bridgeDepositRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sender, ok := parseAddress(w, req.Sender, "sender")
	if !ok {
		return
	}
	amount, ok := parseAmount(w, req.Amount, "amount")
	if !ok {
		return
	}
	nonce, err := s.bridge.Deposit(sender, req.AssetID, amount, req.DestDomain, common.FromHex(req.Recipient))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"nonce": nonce})
}

type bridgeWithdrawRequest struct {
	Nonce        uint64 `json:"nonce"`
	AssetID      uint32 `json:"assetId"`
	Amount       string `json:"amount"`
	SourceDomain uint32 `json:"sourceDomain"`
	SourceAddr   string `json:"sourceAddr"`
	DestDomain   uint32 `json:"destDomain"`
	To           string `json:"to"`
	Signature    string `json:"signature"`
}

func (s *Server) handleBridgeWithdraw(w http.ResponseWriter, r *http.Request) {
	var req bridgeWithdrawRequest
	if !decodeBody(w, r, &req) {
		return
	}
	to, ok := parseAddress(w, req.To, "to")
	if !ok {
		return
	}
	amount, ok := parseAmount(w, req.Amount, "amount")
	if !ok {
		return
	}
	err := s.bridge.Withdraw(req.Nonce, req.AssetID, amount, req.SourceDomain,
		common.FromHex(req.SourceAddr), req.DestDomain, to, common.FromHex(req.Signature))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "malformed JSON body"})
		return false
	}
	return true
}

func parseAddress(w http.ResponseWriter, s, field string) (common.Address, bool) {
	if !common.IsHexAddress(s) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": fmt.Sprintf("%s is not a hex address", field),
		})
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}

func parseAmount(w http.ResponseWriter, s, field string) (*uint256.Int, bool) {
	if s == "" {
		s = "0"
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": fmt.Sprintf("%s is not a decimal amount", field),
		})
		return nil, false
	}
	return v, true
}

// weiToEther renders a wei amount as a decimal ether string.
func weiToEther(wei *uint256.Int) string {
	return decimal.NewFromBigInt(wei.ToBig(), -18).String()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps engine failures onto HTTP statuses. Validation failures
// are the caller's fault; everything else is a conflict with current state.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error()})
}
