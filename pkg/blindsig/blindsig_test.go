package blindsig_test

import (
	"crypto/rand"
	"testing"

	"github.com/ark-network/coinjoin/pkg/blindsig"
	"github.com/stretchr/testify/require"
)

func TestBlindSignature(t *testing.T) {
	signer, err := blindsig.NewSigner(1024)
	require.NoError(t, err)
	require.NotNil(t, signer.PublicKey())

	t.Run("valid", func(t *testing.T) {
		bordereau := []byte("bordereau-0001")

		blinded, state, err := blindsig.Blind(rand.Reader, signer.PublicKey(), bordereau)
		require.NoError(t, err)
		require.Len(t, blinded, signer.PublicKey().Size())

		blindSig, err := signer.BlindSign(blinded)
		require.NoError(t, err)

		sig, err := state.Unblind(blindSig)
		require.NoError(t, err)

		err = blindsig.Verify(signer.PublicKey(), bordereau, sig)
		require.NoError(t, err)

		// the signer never saw the unblinded signature
		require.NotEqual(t, blindSig, sig)
	})

	t.Run("invalid", func(t *testing.T) {
		bordereau := []byte("bordereau-0002")
		blinded, state, err := blindsig.Blind(rand.Reader, signer.PublicKey(), bordereau)
		require.NoError(t, err)
		blindSig, err := signer.BlindSign(blinded)
		require.NoError(t, err)
		sig, err := state.Unblind(blindSig)
		require.NoError(t, err)

		other, err := blindsig.NewSigner(1024)
		require.NoError(t, err)

		fixtures := []struct {
			name string
			fn   func() error
		}{
			{
				name: "other message",
				fn: func() error {
					return blindsig.Verify(signer.PublicKey(), []byte("bordereau-0003"), sig)
				},
			},
			{
				name: "other key",
				fn: func() error {
					return blindsig.Verify(other.PublicKey(), bordereau, sig)
				},
			},
			{
				name: "tampered signature",
				fn: func() error {
					tampered := append([]byte{}, sig...)
					tampered[len(tampered)-1] ^= 0x01
					return blindsig.Verify(signer.PublicKey(), bordereau, tampered)
				},
			},
		}

		for _, f := range fixtures {
			t.Run(f.name, func(t *testing.T) {
				require.ErrorIs(t, f.fn(), blindsig.ErrInvalidSignature)
			})
		}
	})

	t.Run("answer to another message", func(t *testing.T) {
		_, state, err := blindsig.Blind(rand.Reader, signer.PublicKey(), []byte("bordereau-0004"))
		require.NoError(t, err)
		otherBlinded, _, err := blindsig.Blind(rand.Reader, signer.PublicKey(), []byte("bordereau-0005"))
		require.NoError(t, err)
		blindSig, err := signer.BlindSign(otherBlinded)
		require.NoError(t, err)

		_, err = state.Unblind(blindSig)
		require.ErrorIs(t, err, blindsig.ErrInvalidSignature)
	})

	t.Run("message too large", func(t *testing.T) {
		tooLarge := make([]byte, signer.PublicKey().Size())
		for i := range tooLarge {
			tooLarge[i] = 0xff
		}
		_, err := signer.BlindSign(tooLarge)
		require.ErrorIs(t, err, blindsig.ErrMessageTooLarge)
	})
}
