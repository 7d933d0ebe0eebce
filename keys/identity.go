package keys

import (
	"encoding/base64"
	"fmt"
	"strings"

	"xdao.co/overlay/address"
)

// NodeAddress is the overlay address of the node holding pub.
func NodeAddress(pub []byte) address.Address { return address.FromHash(pub) }

// SignerAddress is NodeAddress of s's public key.
func SignerAddress(s Signer) address.Address { return NodeAddress(s.PublicKey()) }

// PublicKeyString renders s's public key as "<algorithm>:" + base64.
func PublicKeyString(s Signer) string {
	return s.Algorithm() + ":" + base64.StdEncoding.EncodeToString(s.PublicKey())
}

// ParsePublicKeyString is the inverse of PublicKeyString.
func ParsePublicKeyString(s string) (alg string, pub []byte, err error) {
	alg, enc, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || alg == "" {
		return "", nil, fmt.Errorf("public key %q: want <algorithm>:<base64>", s)
	}
	pub, err = base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return "", nil, fmt.Errorf("public key %q: %w", s, err)
	}
	return alg, pub, nil
}
