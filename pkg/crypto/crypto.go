// Copyright (C) 2025, Parami Foundation Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

// Package crypto implements the byte-packed hashing and ECDSA recovery used
// by every signature-gated operation in parami-core. Field order and types
// of each packed message are part of the wire contract; changing either
// invalidates all previously issued signatures.
package crypto

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

var ErrInvalidSignatureLength = errors.New("ECDSA: invalid signature length")

// Verifier recovers the signer address from a 32-byte digest and a 65-byte
// [R || S || V] signature. It is injected into the auction, gateway and
// bridge so tests can swap in deterministic implementations.
type Verifier interface {
	Recover(digest [32]byte, sig []byte) (common.Address, error)
}

// EthVerifier is the production Verifier backed by go-ethereum's secp256k1.
type EthVerifier struct{}

// Recover returns the address whose key produced sig over digest. V may be
// 0/1 or 27/28; both encodings are accepted.
func (EthVerifier) Recover(digest [32]byte, sig []byte) (common.Address, error) {
	if len(sig) != 65 {
		return common.Address{}, ErrInvalidSignatureLength
	}
	s := make([]byte, 65)
	copy(s, sig)
	if s[64] >= 27 {
		s[64] -= 27
	}
	pub, err := ethcrypto.SigToPub(digest[:], s)
	if err != nil {
		return common.Address{}, fmt.Errorf("ECDSA: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// Packer accumulates tightly packed message fields, mirroring Solidity's
// abi.encodePacked.
type Packer struct {
	buf []byte
}

func NewPacker() *Packer {
	return &Packer{buf: make([]byte, 0, 128)}
}

// Address appends the raw 20 bytes of an address.
func (p *Packer) Address(a common.Address) *Packer {
	p.buf = append(p.buf, a.Bytes()...)
	return p
}

// Uint256 appends a 32-byte big-endian word.
func (p *Packer) Uint256(v *uint256.Int) *Packer {
	b := v.Bytes32()
	p.buf = append(p.buf, b[:]...)
	return p
}

// Uint64 appends a uint64 widened to a 32-byte word.
func (p *Packer) Uint64(v uint64) *Packer {
	return p.Uint256(uint256.NewInt(v))
}

// String appends the raw UTF-8 bytes of s, with no length prefix.
func (p *Packer) String(s string) *Packer {
	p.buf = append(p.buf, s...)
	return p
}

// Bytes appends raw bytes.
func (p *Packer) Bytes(b []byte) *Packer {
	p.buf = append(p.buf, b...)
	return p
}

// Keccak returns keccak256 over the packed buffer.
func (p *Packer) Keccak() [32]byte {
	var out [32]byte
	copy(out[:], ethcrypto.Keccak256(p.buf))
	return out
}

// PersonalDigest wraps an inner hash with the EIP-191 prefix
// ("\x19Ethereum Signed Message:\n32") the way eth_sign does, and returns
// the digest signatures are actually made over.
func PersonalDigest(inner [32]byte) [32]byte {
	var out [32]byte
	copy(out[:], ethcrypto.Keccak256(
		[]byte("\x19Ethereum Signed Message:\n32"),
		inner[:],
	))
	return out
}
