// Copyright (C) 2025, Parami Foundation Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package persona

import (
	"crypto/ecdsa"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/parami-foundation/parami-core/pkg/crypto"
	"github.com/parami-foundation/parami-core/pkg/curve"
	"github.com/parami-foundation/parami-core/pkg/market"
	"github.com/parami-foundation/parami-core/pkg/token"
)

var (
	owner   = common.HexToAddress("0x0000000000000000000000000000000000000011")
	custody = common.HexToAddress("0x0000000000000000000000000000000000000012")
	creator = common.HexToAddress("0x0000000000000000000000000000000000000013")
	buyer   = common.HexToAddress("0x0000000000000000000000000000000000000014")
	other   = common.HexToAddress("0x0000000000000000000000000000000000000015")
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func newFactory(t *testing.T) (*Factory, *token.Bank, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)

	bank := token.NewBank()
	f := NewFactory(FactoryConfig{
		Owner:    owner,
		Signer:   ethcrypto.PubkeyToAddress(key.PublicKey),
		Custody:  custody,
		Params:   curve.DefaultParams(),
		Bank:     bank,
		Verifier: crypto.EthVerifier{},
	})
	return f, bank, key
}

func signMint(t *testing.T, key *ecdsa.PrivateKey, creator, aime common.Address, k, typ, data, image string, amount, nonce *uint256.Int) []byte {
	t.Helper()
	digest := crypto.PersonalDigest(MintDigest(creator, aime, k, typ, data, image, amount, nonce))
	sig, err := ethcrypto.Sign(digest[:], key)
	require.NoError(t, err)
	return sig
}

func createPersona(t *testing.T, f *Factory, bank *token.Bank) *Persona {
	t.Helper()
	bank.Mint(creator, u(1_000_000_000_000_000))
	p, err := f.CreateAIME(creator, "alice", "ipfs://avatar", u(1_000_000_000_000_000))
	require.NoError(t, err)
	return p
}

func TestCreateAIME(t *testing.T) {
	require := require.New(t)
	f, bank, _ := newFactory(t)

	bank.Mint(creator, u(2_000_000_000_000_000))
	_, err := f.CreateAIME(creator, "alice", "ipfs://avatar", u(999_999_999_999_999))
	require.ErrorIs(err, market.ErrInsufficientPayment)

	p, err := f.CreateAIME(creator, "alice", "ipfs://avatar", u(1_000_000_000_000_000))
	require.NoError(err)
	require.Equal(PersonaAddress(creator, "alice"), p.Address())
	require.Equal(u(1_000_000_000_000_000), bank.BalanceOf(custody))

	// Full mint: creator floor plus pool.
	require.Equal(u(10_000), p.Power().BalanceOf(creator))
	require.Equal(u(9_999_990_000), p.Power().BalanceOf(p.Address()))
	require.Equal(u(1_000_000_000), p.Market().Reserved())

	// The avatar token exists and is not for sale.
	ownerOf, err := p.NFTs().OwnerOf(0)
	require.NoError(err)
	require.Equal(creator, ownerOf)
	require.ErrorIs(p.BuyNFT(buyer, 0), ErrFirstNFT)

	_, err = f.CreateAIME(creator, "alice", "ipfs://avatar", u(1_000_000_000_000_000))
	require.ErrorIs(err, ErrPersonaExists)

	got, err := f.Persona(p.Address())
	require.NoError(err)
	require.Same(p, got)
}

func TestWithdrawFee(t *testing.T) {
	require := require.New(t)
	f, bank, _ := newFactory(t)
	createPersona(t, f, bank)

	_, err := f.WithdrawFee(creator)
	require.ErrorIs(err, market.ErrNotOwner)

	out, err := f.WithdrawFee(owner)
	require.NoError(err)
	require.Equal(u(1_000_000_000_000_000), out)
	require.Equal(u(1_000_000_000_000_000), bank.BalanceOf(owner))
	require.Equal(u(0), bank.BalanceOf(custody))
}

func TestMintAIMeNFT(t *testing.T) {
	require := require.New(t)
	f, bank, key := newFactory(t)
	p := createPersona(t, f, bank)

	amount := u(5_000)
	sig := signMint(t, key, creator, p.Address(), "voice", "audio", "d0", "ipfs://img", amount, u(0))

	_, err := f.MintAIMeNFT(creator, other, "voice", "audio", "d0", "ipfs://img", amount, u(0), sig)
	require.ErrorIs(err, ErrUnknownAIMe)

	_, err = f.MintAIMeNFT(creator, p.Address(), "voice", "audio", "d0", "ipfs://img", amount, u(1), sig)
	require.ErrorIs(err, ErrNonceUsed)

	_, err = f.MintAIMeNFT(creator, p.Address(), "voice", "audio", "d0", "ipfs://img", amount, u(0), sig[:64])
	require.ErrorIs(err, crypto.ErrInvalidSignatureLength)

	// Signature over different fields recovers a different address.
	bad := signMint(t, key, creator, p.Address(), "voice", "audio", "TAMPERED", "ipfs://img", amount, u(0))
	_, err = f.MintAIMeNFT(creator, p.Address(), "voice", "audio", "d0", "ipfs://img", amount, u(0), bad)
	require.ErrorIs(err, ErrInvalidSigner)

	id, err := f.MintAIMeNFT(creator, p.Address(), "voice", "audio", "d0", "ipfs://img", amount, u(0), sig)
	require.NoError(err)
	require.Equal(uint64(1), id)
	require.Equal(u(999_995_000), p.Market().Reserved())
	require.Equal(u(1), f.Nonce(creator))

	meta, err := p.Meta(id)
	require.NoError(err)
	require.Equal("voice", meta.Key)
	require.Equal(amount, meta.Amount)

	// Replaying the consumed nonce fails.
	_, err = f.MintAIMeNFT(creator, p.Address(), "voice", "audio", "d0", "ipfs://img", amount, u(0), sig)
	require.ErrorIs(err, ErrNonceUsed)
}

func TestUpdateAIMeNFT(t *testing.T) {
	require := require.New(t)
	f, bank, key := newFactory(t)
	p := createPersona(t, f, bank)

	sig := signMint(t, key, creator, p.Address(), "k", "t", "d0", "i", u(5_000), u(0))
	id, err := f.MintAIMeNFT(creator, p.Address(), "k", "t", "d0", "i", u(5_000), u(0), sig)
	require.NoError(err)

	require.ErrorIs(f.UpdateAIMeNFT(other, p.Address(), id, "d1"), ErrInvalidTokenOwner)
	require.NoError(f.UpdateAIMeNFT(creator, p.Address(), id, "d1"))

	meta, err := p.Meta(id)
	require.NoError(err)
	require.Equal("d1", meta.Data)
}

func TestBuyNFTErrorOrder(t *testing.T) {
	require := require.New(t)
	f, bank, key := newFactory(t)
	p := createPersona(t, f, bank)
	power := p.Power()

	face := u(5_000)
	sig := signMint(t, key, creator, p.Address(), "k", "t", "d", "i", face, u(0))
	id, err := f.MintAIMeNFT(creator, p.Address(), "k", "t", "d", "i", face, u(0), sig)
	require.NoError(err)

	// A buyer holding neither powers nor an approval fails on the balance,
	// not the allowance.
	require.ErrorIs(p.BuyNFT(buyer, id), token.ErrBalance)

	// Same order when the persona pool owns the token.
	require.NoError(p.SellNFT(creator, id))
	require.ErrorIs(p.BuyNFT(buyer, id), token.ErrBalance)

	// With powers but no approval the allowance shortfall reports.
	bank.Mint(buyer, u(100_000_000_000_000))
	require.NoError(p.Market().BuyPowers(buyer, u(10_000), p.Market().BuyQuote(buyer, u(10_000))))
	require.ErrorIs(p.BuyNFT(buyer, id), token.ErrAllowance)

	power.Approve(buyer, p.Address(), face)
	require.NoError(p.BuyNFT(buyer, id))
}

func TestMarketFeesRouteToFeeDestination(t *testing.T) {
	require := require.New(t)
	key, err := ethcrypto.GenerateKey()
	require.NoError(err)

	treasury := common.HexToAddress("0x0000000000000000000000000000000000000016")
	bank := token.NewBank()
	f := NewFactory(FactoryConfig{
		Owner:          owner,
		Signer:         ethcrypto.PubkeyToAddress(key.PublicKey),
		Custody:        custody,
		FeeDestination: treasury,
		Params:         curve.DefaultParams(),
		Bank:           bank,
		Verifier:       crypto.EthVerifier{},
	})
	p := createPersona(t, f, bank)

	bank.Mint(buyer, u(100_000_000_000_000))
	require.NoError(p.Market().BuyPowers(buyer, u(10_000), p.Market().BuyQuote(buyer, u(10_000))))

	out, err := p.Market().WithdrawFee(owner)
	require.NoError(err)
	require.Equal(u(20_833_333_333), out)
	require.Equal(out, bank.BalanceOf(treasury))
}

func TestNFTTradingInPowers(t *testing.T) {
	require := require.New(t)
	f, bank, key := newFactory(t)
	p := createPersona(t, f, bank)
	power := p.Power()

	face := u(5_000)
	sig := signMint(t, key, creator, p.Address(), "k", "t", "d", "i", face, u(0))
	id, err := f.MintAIMeNFT(creator, p.Address(), "k", "t", "d", "i", face, u(0), sig)
	require.NoError(err)

	// Creator returns the token for its face value in powers.
	require.NoError(p.SellNFT(creator, id))
	ownerOf, err := p.NFTs().OwnerOf(id)
	require.NoError(err)
	require.Equal(p.Address(), ownerOf)
	require.Equal(u(15_000), power.BalanceOf(creator))

	// Buyer acquires powers on the curve, then the token at face value.
	bank.Mint(buyer, u(100_000_000_000_000))
	require.NoError(p.Market().BuyPowers(buyer, u(10_000), p.Market().BuyQuote(buyer, u(10_000))))

	require.ErrorIs(p.BuyNFT(buyer, id), token.ErrAllowance)
	power.Approve(buyer, p.Address(), face)
	require.NoError(p.BuyNFT(buyer, id))
	require.Equal(u(5_000), power.BalanceOf(buyer))

	// Resale from a holder costs 12/10 of face, paid to the holder.
	bank.Mint(other, u(100_000_000_000_000))
	require.NoError(p.Market().BuyPowers(other, u(10_000), p.Market().BuyQuote(other, u(10_000))))
	power.Approve(other, p.Address(), u(6_000))

	require.NoError(p.BuyNFT(other, id))
	ownerOf, err = p.NFTs().OwnerOf(id)
	require.NoError(err)
	require.Equal(other, ownerOf)
	require.Equal(u(11_000), power.BalanceOf(buyer)) // 5000 kept + 6000 sale proceeds

	meta, err := p.Meta(id)
	require.NoError(err)
	require.Equal(u(6_000), meta.Amount)
}
