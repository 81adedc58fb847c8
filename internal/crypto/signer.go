package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Pre-computed keccak256 of the canonical EIP-712 type strings the CLOB
// expects.
var (
	eip712DomainTypeHash = ethcrypto.Keccak256(
		[]byte("EIP712Domain(string name,string version,uint256 chainId)"),
	)
	clobAuthTypeHash = ethcrypto.Keccak256(
		[]byte("ClobAuth(address address,uint256 timestamp,uint256 nonce)"),
	)
	orderTypeHash = ethcrypto.Keccak256(
		[]byte("Order(uint256 salt,address maker,address signer,address taker,uint256 tokenId,uint256 makerAmount,uint256 takerAmount,uint256 expiration,uint256 nonce,uint256 feeRateBps,uint8 side,uint8 signatureType)"),
	)
)

// OrderPayload carries the signed fields of a CLOB limit order. Addresses
// and large numbers stay strings so JSON round trips lose no precision.
type OrderPayload struct {
	Salt          string `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	Side          int    `json:"side"`          // 0 = BUY, 1 = SELL
	SignatureType int    `json:"signatureType"` // 0 = EOA, 1 = POLY_PROXY, 2 = POLY_GNOSIS_SAFE
}

// Signer signs CLOB auth messages and orders with the trading wallet key.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    int
	domainSep  []byte
}

// NewSigner creates a Signer from a hex secp256k1 key and the target chain
// ID (137 for Polygon mainnet, 80002 for Amoy).
func NewSigner(privateKeyHex string, chainID int) (*Signer, error) {
	pk, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}

	s := &Signer{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
		chainID:    chainID,
	}
	s.domainSep = domainSeparator("ClobAuthDomain", "1", chainID)
	return s, nil
}

// Address returns the wallet address derived from the signing key.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignAuthMessage signs the ClobAuth struct used to derive an API key.
// The result is a hex 65-byte signature (r || s || v).
func (s *Signer) SignAuthMessage(address string, timestamp, nonce int64) (string, error) {
	var enc structEncoder
	enc.word(clobAuthTypeHash)
	enc.address(common.HexToAddress(address))
	enc.uint(big.NewInt(timestamp))
	enc.uint(big.NewInt(nonce))

	return s.signDigest(eip712Digest(s.domainSep, enc.hash()))
}

// SignOrder signs an Order struct for order placement. The result is a hex
// 65-byte signature.
func (s *Signer) SignOrder(order OrderPayload) (string, error) {
	structHash, err := orderStructHash(order)
	if err != nil {
		return "", err
	}
	return s.signDigest(eip712Digest(s.domainSep, structHash))
}

// signDigest signs a 32-byte digest with secp256k1. go-ethereum yields v in
// {0,1} while EIP-712 verifiers expect {27,28}.
func (s *Signer) signDigest(digest []byte) (string, error) {
	sig, err := ethcrypto.Sign(digest, s.privateKey)
	if err != nil {
		return "", fmt.Errorf("crypto/signer: signing: %w", err)
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return "0x" + hex.EncodeToString(sig), nil
}

// structEncoder accumulates 32-byte ABI words for an EIP-712 struct hash.
type structEncoder struct {
	buf []byte
}

func (e *structEncoder) word(b []byte) {
	e.buf = append(e.buf, common.LeftPadBytes(b, 32)...)
}

func (e *structEncoder) address(a common.Address) {
	e.word(a.Bytes())
}

func (e *structEncoder) uint(n *big.Int) {
	b := n.Bytes()
	if len(b) > 32 {
		b = b[:32]
	}
	e.word(b)
}

func (e *structEncoder) hash() []byte {
	return ethcrypto.Keccak256(e.buf)
}

// domainSeparator hashes the EIP712Domain struct for the given name,
// version, and chain.
func domainSeparator(name, version string, chainID int) []byte {
	var enc structEncoder
	enc.word(eip712DomainTypeHash)
	enc.word(ethcrypto.Keccak256([]byte(name)))
	enc.word(ethcrypto.Keccak256([]byte(version)))
	enc.uint(big.NewInt(int64(chainID)))
	return enc.hash()
}

// eip712Digest is keccak256("\x19\x01" || domainSeparator || structHash).
func eip712Digest(domainSep, structHash []byte) []byte {
	buf := make([]byte, 0, 2+len(domainSep)+len(structHash))
	buf = append(buf, 0x19, 0x01)
	buf = append(buf, domainSep...)
	buf = append(buf, structHash...)
	return ethcrypto.Keccak256(buf)
}

// orderStructHash ABI-encodes and hashes an OrderPayload.
func orderStructHash(o OrderPayload) ([]byte, error) {
	numerics := []struct {
		field string
		value string
	}{
		{"salt", o.Salt},
		{"tokenId", o.TokenID},
		{"makerAmount", o.MakerAmount},
		{"takerAmount", o.TakerAmount},
		{"expiration", o.Expiration},
		{"nonce", o.Nonce},
		{"feeRateBps", o.FeeRateBps},
	}
	parsed := make(map[string]*big.Int, len(numerics))
	for _, n := range numerics {
		v, ok := new(big.Int).SetString(n.value, 10)
		if !ok {
			return nil, fmt.Errorf("crypto/signer: invalid %s %q", n.field, n.value)
		}
		parsed[n.field] = v
	}

	var enc structEncoder
	enc.word(orderTypeHash)
	enc.uint(parsed["salt"])
	enc.address(common.HexToAddress(o.Maker))
	enc.address(common.HexToAddress(o.Signer))
	enc.address(common.HexToAddress(o.Taker))
	enc.uint(parsed["tokenId"])
	enc.uint(parsed["makerAmount"])
	enc.uint(parsed["takerAmount"])
	enc.uint(parsed["expiration"])
	enc.uint(parsed["nonce"])
	enc.uint(parsed["feeRateBps"])
	enc.uint(big.NewInt(int64(o.Side)))
	enc.uint(big.NewInt(int64(o.SignatureType)))
	return enc.hash(), nil
}
