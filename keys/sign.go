package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"io"
	"strings"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"golang.org/x/crypto/sha3"
)

// Signer is the opaque private-key handle passed to code that signs.
type Signer interface {
	Algorithm() string
	PublicKey() []byte
	Sign(message []byte) ([]byte, error)
}

func digestFor(hashAlg string, message []byte) ([]byte, error) {
	switch hashAlg {
	case "sha256":
		s := sha256.Sum256(message)
		return s[:], nil
	case "sha512":
		s := sha512.Sum512(message)
		return s[:], nil
	case "sha3-256":
		s := sha3.Sum256(message)
		return s[:], nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %q", hashAlg)
	}
}

// Ed25519Signer signs sha256(message) with an Ed25519 key.
type Ed25519Signer struct {
	key ed25519.PrivateKey
}

func NewEd25519Signer(seed []byte) (*Ed25519Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("ed25519 seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return &Ed25519Signer{key: ed25519.NewKeyFromSeed(seed)}, nil
}

func (s *Ed25519Signer) Algorithm() string { return AlgEd25519 }

func (s *Ed25519Signer) PublicKey() []byte {
	return append([]byte(nil), s.key.Public().(ed25519.PublicKey)...)
}

func (s *Ed25519Signer) Sign(message []byte) ([]byte, error) {
	digest := sha256.Sum256(message)
	return ed25519.Sign(s.key, digest[:]), nil
}

// VerifyEd25519 checks a signature produced by Ed25519Signer.
func VerifyEd25519(pub, message, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	digest := sha256.Sum256(message)
	return ed25519.Verify(ed25519.PublicKey(pub), digest[:], sig)
}

// Dilithium3Signer signs hash(message) with a post-quantum Dilithium3 key.
type Dilithium3Signer struct {
	pub     *mode3.PublicKey
	priv    *mode3.PrivateKey
	hashAlg string
}

// NewDilithium3Signer derives a key pair from a 32-byte seed. hashAlg must
// be one of sha256, sha512, sha3-256.
func NewDilithium3Signer(seed []byte, hashAlg string) (*Dilithium3Signer, error) {
	if _, err := digestFor(hashAlg, nil); err != nil {
		return nil, err
	}
	if len(seed) != mode3.SeedSize {
		return nil, fmt.Errorf("dilithium3 seed must be %d bytes, got %d", mode3.SeedSize, len(seed))
	}
	var s [mode3.SeedSize]byte
	copy(s[:], seed)
	pub, priv := mode3.NewKeyFromSeed(&s)
	return &Dilithium3Signer{pub: pub, priv: priv, hashAlg: hashAlg}, nil
}

// GenerateDilithium3 returns a signer for a fresh seed read from rand.
func GenerateDilithium3(rand io.Reader, hashAlg string) (*Dilithium3Signer, error) {
	seed := make([]byte, mode3.SeedSize)
	if _, err := io.ReadFull(rand, seed); err != nil {
		return nil, err
	}
	return NewDilithium3Signer(seed, hashAlg)
}

func (s *Dilithium3Signer) Algorithm() string { return dilithiumPrefix + s.hashAlg }

func (s *Dilithium3Signer) PublicKey() []byte { return s.pub.Bytes() }

func (s *Dilithium3Signer) Sign(message []byte) ([]byte, error) {
	digest, err := digestFor(s.hashAlg, message)
	if err != nil {
		return nil, err
	}
	sig := make([]byte, mode3.SignatureSize)
	mode3.SignTo(s.priv, digest, sig)
	return sig, nil
}

// VerifyDilithium3 checks a signature produced by Dilithium3Signer.
func VerifyDilithium3(pub []byte, hashAlg string, message, sig []byte) (bool, error) {
	var pk mode3.PublicKey
	if err := pk.UnmarshalBinary(pub); err != nil {
		return false, err
	}
	digest, err := digestFor(hashAlg, message)
	if err != nil {
		return false, err
	}
	return mode3.Verify(&pk, digest, sig), nil
}

const (
	AlgEd25519      = "ed25519"
	dilithiumPrefix = "dilithium3+"
)

// Algorithms lists the names accepted by NewSigner and Verify.
var Algorithms = []string{
	AlgEd25519,
	dilithiumPrefix + "sha256",
	dilithiumPrefix + "sha512",
	dilithiumPrefix + "sha3-256",
}

// SeedSize is the seed length for every algorithm in Algorithms.
const SeedSize = 32

// NewSigner builds the signer named by alg from a seed. An empty alg means
// ed25519.
func NewSigner(alg string, seed []byte) (Signer, error) {
	switch {
	case alg == "" || alg == AlgEd25519:
		return NewEd25519Signer(seed)
	case strings.HasPrefix(alg, dilithiumPrefix):
		return NewDilithium3Signer(seed, strings.TrimPrefix(alg, dilithiumPrefix))
	default:
		return nil, fmt.Errorf("unsupported key algorithm %q", alg)
	}
}

// Verify checks sig over message for a public key of the given algorithm.
func Verify(alg string, pub, message, sig []byte) (bool, error) {
	switch {
	case alg == AlgEd25519:
		return VerifyEd25519(pub, message, sig), nil
	case strings.HasPrefix(alg, dilithiumPrefix):
		return VerifyDilithium3(pub, strings.TrimPrefix(alg, dilithiumPrefix), message, sig)
	default:
		return false, fmt.Errorf("unsupported key algorithm %q", alg)
	}
}
