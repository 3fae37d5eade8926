package auth

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// IAuthorizer decides whether a caller holds the administrative capability
// (set root, pause, withdraw).
type IAuthorizer interface {
	IsAuthorized(caller common.Address) bool
}

// StaticAuthorizer grants the capability to exactly one admin address.
type StaticAuthorizer struct {
	admin common.Address
}

// NewStaticAuthorizer creates an authorizer for a single admin address.
func NewStaticAuthorizer(admin common.Address) (*StaticAuthorizer, error) {
	if admin == (common.Address{}) {
		return nil, fmt.Errorf("admin cannot be the zero address")
	}
	return &StaticAuthorizer{admin: admin}, nil
}

// IsAuthorized reports whether the caller is the admin.
func (a *StaticAuthorizer) IsAuthorized(caller common.Address) bool {
	return caller == a.admin
}

// Admin returns the admin address, used as the withdrawal destination.
func (a *StaticAuthorizer) Admin() common.Address {
	return a.admin
}

// RecoverSigner recovers the address that produced an EIP-191 personal
// signature over message. The signature is the 65-byte [R || S || V] form
// with V as 27/28 (as wallets emit) or 0/1.
func RecoverSigner(message []byte, signature []byte) (common.Address, error) {
	if len(signature) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(signature))
	}

	sig := make([]byte, crypto.SignatureLength)
	copy(sig, signature)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	digest := personalMessageHash(message)
	pubKey, err := crypto.SigToPub(digest[:], sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}

	return crypto.PubkeyToAddress(*pubKey), nil
}

// SignMessage produces an EIP-191 personal signature over message with the
// given hex private key. Counterpart of RecoverSigner, used by the admin CLI
// and tests.
func SignMessage(message []byte, privateKeyHex string) ([]byte, error) {
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	digest := personalMessageHash(message)
	sig, err := crypto.Sign(digest[:], key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}
	return sig, nil
}

// personalMessageHash applies the EIP-191 prefix and hashes.
func personalMessageHash(message []byte) common.Hash {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	return crypto.Keccak256Hash([]byte(prefixed))
}
