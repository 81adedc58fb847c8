package crypto

import (
	"encoding/hex"
	"strings"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOrder() OrderPayload {
	return OrderPayload{
		Salt:          "479249096354",
		Maker:         "0x5c2f6f7e7d2c8a9a1b3c4d5e6f708192a3b4c5d6",
		Signer:        "0x5c2f6f7e7d2c8a9a1b3c4d5e6f708192a3b4c5d6",
		Taker:         "0x0000000000000000000000000000000000000000",
		TokenID:       "71321045679252212594626385532706912750332728571942532289631379312455583992563",
		MakerAmount:   "47000000",
		TakerAmount:   "50000000",
		Expiration:    "0",
		Nonce:         "0",
		FeeRateBps:    "0",
		Side:          0,
		SignatureType: 0,
	}
}

func TestNewSignerDerivesAddress(t *testing.T) {
	s, err := NewSigner("0x"+testKeyHex, 137)
	require.NoError(t, err)

	pk, err := ethcrypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)
	assert.Equal(t, ethcrypto.PubkeyToAddress(pk.PublicKey), s.Address())

	_, err = NewSigner("zz", 137)
	require.Error(t, err)
}

func TestSignOrderProducesRecoverableSignature(t *testing.T) {
	s, err := NewSigner(testKeyHex, 137)
	require.NoError(t, err)

	sig, err := s.SignOrder(testOrder())
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(sig, "0x"))

	raw, err := hex.DecodeString(sig[2:])
	require.NoError(t, err)
	require.Len(t, raw, 65)
	assert.Contains(t, []byte{27, 28}, raw[64])

	// Recover the signing key from the digest the signer hashed.
	structHash, err := orderStructHash(testOrder())
	require.NoError(t, err)
	digest := eip712Digest(s.domainSep, structHash)

	raw[64] -= 27
	pub, err := ethcrypto.SigToPub(digest, raw)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), ethcrypto.PubkeyToAddress(*pub))
}

func TestSignOrderDeterministic(t *testing.T) {
	s, err := NewSigner(testKeyHex, 137)
	require.NoError(t, err)

	a, err := s.SignOrder(testOrder())
	require.NoError(t, err)
	b, err := s.SignOrder(testOrder())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSignOrderRejectsBadNumerics(t *testing.T) {
	s, err := NewSigner(testKeyHex, 137)
	require.NoError(t, err)

	order := testOrder()
	order.TokenID = "not-a-number"
	_, err = s.SignOrder(order)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tokenId")
}

func TestSignAuthMessageRecoverable(t *testing.T) {
	s, err := NewSigner(testKeyHex, 80002)
	require.NoError(t, err)

	sig, err := s.SignAuthMessage(s.Address().Hex(), 1700000000, 0)
	require.NoError(t, err)

	raw, err := hex.DecodeString(strings.TrimPrefix(sig, "0x"))
	require.NoError(t, err)
	require.Len(t, raw, 65)
}
