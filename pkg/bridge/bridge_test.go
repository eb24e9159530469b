// Copyright (C) 2025, Parami Foundation Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"crypto/ecdsa"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/parami-foundation/parami-core/pkg/crypto"
	"github.com/parami-foundation/parami-core/pkg/events"
	"github.com/parami-foundation/parami-core/pkg/gateway"
	"github.com/parami-foundation/parami-core/pkg/token"
)

var (
	owner   = common.HexToAddress("0x0000000000000000000000000000000000000041")
	custody = common.HexToAddress("0x0000000000000000000000000000000000000042")
	sender  = common.HexToAddress("0x0000000000000000000000000000000000000043")
	payee   = common.HexToAddress("0x0000000000000000000000000000000000000044")
)

const (
	localDomain  uint32 = 2
	remoteDomain uint32 = 7
	usdAsset     uint32 = 1
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func newBridge(t *testing.T) (*Bridge, *token.Ledger, *ecdsa.PrivateKey, *events.Bus) {
	t.Helper()
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)

	usd := token.NewLedger("USD Coin", "USDC")
	bus := events.NewBus()
	b := New(Config{
		Owner:    owner,
		Custody:  custody,
		Attester: ethcrypto.PubkeyToAddress(key.PublicKey),
		Domain:   localDomain,
		Verifier: crypto.EthVerifier{},
		Bus:      bus,
	})
	require.NoError(t, b.RegisterAsset(owner, usdAsset, usd))
	return b, usd, key, bus
}

func TestDeposit(t *testing.T) {
	require := require.New(t)
	b, usd, _, bus := newBridge(t)
	ch, cancel := bus.Subscribe(4)
	defer cancel()

	usd.Mint(sender, u(1000))
	usd.Approve(sender, custody, u(1000))

	recipient := payee.Bytes()
	nonce, err := b.Deposit(sender, usdAsset, u(600), remoteDomain, recipient)
	require.NoError(err)
	require.Equal(uint64(0), nonce)
	require.Equal(u(600), usd.BalanceOf(custody))

	ev := <-ch
	require.Equal(events.TypeDeposited, ev.Type)
	dep := ev.Payload.(events.Deposited)
	require.Equal(uint64(0), dep.Nonce)
	require.Equal(usdAsset, dep.AssetID)
	require.Equal(localDomain, dep.Domain)
	require.Equal(remoteDomain, dep.DestDomain)
	require.Equal(recipient, dep.Recipient)

	// Nonces are monotone per bridge.
	nonce, err = b.Deposit(sender, usdAsset, u(400), remoteDomain, recipient)
	require.NoError(err)
	require.Equal(uint64(1), nonce)

	_, err = b.Deposit(sender, 99, u(1), remoteDomain, recipient)
	require.ErrorIs(err, ErrUnknownAsset)
	_, err = b.Deposit(sender, usdAsset, u(1), remoteDomain, recipient)
	require.ErrorIs(err, token.ErrAllowance)
}

func signWithdraw(t *testing.T, key *ecdsa.PrivateKey, nonce uint64, assetID uint32, amount *uint256.Int, srcDomain uint32, srcAddr []byte, destDomain uint32, to common.Address) []byte {
	t.Helper()
	digest := crypto.PersonalDigest(WithdrawDigest(nonce, assetID, amount, srcDomain, srcAddr, destDomain, to))
	sig, err := ethcrypto.Sign(digest[:], key)
	require.NoError(t, err)
	return sig
}

func TestWithdraw(t *testing.T) {
	require := require.New(t)
	b, usd, key, _ := newBridge(t)
	usd.Mint(custody, u(1000))

	srcAddr := sender.Bytes()
	sig := signWithdraw(t, key, 5, usdAsset, u(300), remoteDomain, srcAddr, localDomain, payee)

	require.NoError(b.Withdraw(5, usdAsset, u(300), remoteDomain, srcAddr, localDomain, payee, sig))
	require.Equal(u(300), usd.BalanceOf(payee))

	// Same (sourceDomain, nonce) never releases twice.
	require.ErrorIs(
		b.Withdraw(5, usdAsset, u(300), remoteDomain, srcAddr, localDomain, payee, sig),
		gateway.ErrNonceUsed,
	)

	// The same nonce from another source domain is independent.
	otherSrc := remoteDomain + 1
	sig = signWithdraw(t, key, 5, usdAsset, u(100), otherSrc, srcAddr, localDomain, payee)
	require.NoError(b.Withdraw(5, usdAsset, u(100), otherSrc, srcAddr, localDomain, payee, sig))
}

func TestWithdrawGuards(t *testing.T) {
	require := require.New(t)
	b, usd, key, _ := newBridge(t)
	usd.Mint(custody, u(1000))
	srcAddr := sender.Bytes()

	sig := signWithdraw(t, key, 1, usdAsset, u(300), remoteDomain, srcAddr, localDomain+1, payee)
	require.ErrorIs(
		b.Withdraw(1, usdAsset, u(300), remoteDomain, srcAddr, localDomain+1, payee, sig),
		ErrWrongDomain,
	)

	sig = signWithdraw(t, key, 1, usdAsset, u(300), remoteDomain, srcAddr, localDomain, payee)
	require.ErrorIs(
		b.Withdraw(1, 99, u(300), remoteDomain, srcAddr, localDomain, payee, sig),
		ErrUnknownAsset,
	)

	// Tampered amount does not recover the attester.
	require.ErrorIs(
		b.Withdraw(1, usdAsset, u(301), remoteDomain, srcAddr, localDomain, payee, sig),
		gateway.ErrInvalidSignature,
	)

	// Rejection leaves the nonce unburned.
	require.NoError(b.Withdraw(1, usdAsset, u(300), remoteDomain, srcAddr, localDomain, payee, sig))
}

func TestBridgePause(t *testing.T) {
	require := require.New(t)
	b, usd, key, _ := newBridge(t)
	usd.Mint(custody, u(1000))
	usd.Mint(sender, u(100))
	usd.Approve(sender, custody, u(100))

	require.NoError(b.Pause(owner))
	require.ErrorIs(b.Pause(owner), gateway.ErrPaused)

	_, err := b.Deposit(sender, usdAsset, u(100), remoteDomain, payee.Bytes())
	require.ErrorIs(err, gateway.ErrPaused)

	srcAddr := sender.Bytes()
	sig := signWithdraw(t, key, 1, usdAsset, u(300), remoteDomain, srcAddr, localDomain, payee)
	require.ErrorIs(
		b.Withdraw(1, usdAsset, u(300), remoteDomain, srcAddr, localDomain, payee, sig),
		gateway.ErrPaused,
	)

	require.NoError(b.Unpause(owner))
	require.NoError(b.Withdraw(1, usdAsset, u(300), remoteDomain, srcAddr, localDomain, payee, sig))
}
