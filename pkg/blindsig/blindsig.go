// Package blindsig adapts the RSA blind signatures of RFC 9474 to the
// bordereau exchange of a mixing round.
//
// The requester blinds a message, the signer signs it without learning it,
// and the requester finalizes the answer into a signature anybody holding
// the public key can check with Verify. Bordereaux are random already, so
// the deterministic SHA-384 PSS variant is used.
package blindsig

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/cloudflare/circl/blindsign/blindrsa"
)

const DefaultKeyBits = 2048

const variant = blindrsa.SHA384PSSDeterministic

var (
	ErrMessageTooLarge   = errors.New("blinded message is not smaller than the modulus")
	ErrInvalidSignature  = errors.New("invalid blind signature")
	ErrInvalidPublicKey  = errors.New("invalid public key")
	ErrInvalidBlindState = errors.New("invalid blinding state")
)

// Signer holds an ephemeral RSA key and signs blinded messages with it.
type Signer struct {
	key    *rsa.PrivateKey
	signer blindrsa.Signer
}

func NewSigner(bits int) (*Signer, error) {
	if bits <= 0 {
		bits = DefaultKeyBits
	}
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate blinding key: %w", err)
	}
	return NewSignerFromKey(key), nil
}

func NewSignerFromKey(key *rsa.PrivateKey) *Signer {
	return &Signer{key, blindrsa.NewSigner(key)}
}

func (s *Signer) PublicKey() *rsa.PublicKey {
	return &s.key.PublicKey
}

func (s *Signer) BlindSign(blinded []byte) ([]byte, error) {
	m := new(big.Int).SetBytes(blinded)
	if len(blinded) != s.key.Size() || m.Sign() <= 0 || m.Cmp(s.key.N) >= 0 {
		return nil, ErrMessageTooLarge
	}
	return s.signer.BlindSign(blinded)
}

// Verify checks a finalized signature over msg.
func Verify(pub *rsa.PublicKey, msg, sig []byte) error {
	if pub == nil || pub.N == nil {
		return ErrInvalidPublicKey
	}
	verifier, err := blindrsa.NewVerifier(variant, pub)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidPublicKey, err)
	}
	if err := verifier.Verify(msg, sig); err != nil {
		return ErrInvalidSignature
	}
	return nil
}

// BlindingState is kept by the requester between Blind and Unblind.
type BlindingState struct {
	client blindrsa.Client
	state  blindrsa.State
}

// Blind returns the blinded message, the only thing the signer gets to see.
func Blind(random io.Reader, pub *rsa.PublicKey, msg []byte) ([]byte, *BlindingState, error) {
	if pub == nil || pub.N == nil {
		return nil, nil, ErrInvalidPublicKey
	}
	if random == nil {
		random = rand.Reader
	}

	client, err := blindrsa.NewClient(variant, pub)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrInvalidPublicKey, err)
	}
	blinded, state, err := client.Blind(random, msg)
	if err != nil {
		return nil, nil, err
	}
	return blinded, &BlindingState{client, state}, nil
}

// Unblind turns the signer's answer into a signature over the original
// message and verifies it.
func (s *BlindingState) Unblind(blindSig []byte) ([]byte, error) {
	if s == nil {
		return nil, ErrInvalidBlindState
	}
	sig, err := s.client.Finalize(s.state, blindSig)
	if err != nil {
		return nil, ErrInvalidSignature
	}
	return sig, nil
}
