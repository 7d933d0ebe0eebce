package address

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	"xdao.co/overlay/model"
)

// DefaultAddressSize is the length in bytes of every Address (a SHA2-256 digest).
const DefaultAddressSize = 32

// Size is an alias kept short for array declarations.
const Size = DefaultAddressSize

// Address is an overlay address. The zero value is the all-zero address.
type Address [Size]byte

var full = func() Address {
	var a Address
	for i := range a {
		a[i] = 0xff
	}
	return a
}()

// FromHash returns the address of data: its SHA2-256 digest.
func FromHash(data []byte) Address {
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		// Sum only fails for unknown codes or bad lengths; SHA2_256 with -1 is neither.
		panic("address: sha2-256 multihash: " + err.Error())
	}
	a, err := fromMultihash(mh)
	if err != nil {
		panic("address: " + err.Error())
	}
	return a
}

// FromReader hashes everything read from r.
func FromReader(r io.Reader) (Address, error) {
	mh, err := multihash.SumStream(r, multihash.SHA2_256, -1)
	if err != nil {
		return Address{}, err
	}
	return fromMultihash(mh)
}

// NewHasher returns a streaming hash whose Sum can be passed to FromDigest.
func NewHasher() hash.Hash { return sha256.New() }

// FromDigest wraps a precomputed digest; the length must be DefaultAddressSize.
func FromDigest(digest []byte) (Address, error) { return FromBytes(digest) }

// FullAddress returns the sentinel address whose bytes are all 0xff.
func FullAddress() Address { return full }

// FromBytes copies b into an Address.
func FromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != Size {
		return a, model.Errorf(model.ErrInvalidAddress, "address must be %d bytes, got %d", Size, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// ParseHex is the inverse of Hex. Every occurrence of sep is removed before
// decoding; an empty sep accepts plain hex.
func ParseHex(s, sep string) (Address, error) {
	if sep != "" {
		s = strings.ReplaceAll(s, sep, "")
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Address{}, model.WrapError(model.ErrInvalidAddress, "address is not hex", err)
	}
	return FromBytes(b)
}

// Bytes returns a copy of the raw address bytes.
func (a Address) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, a[:])
	return out
}

// Hex renders the address as lowercase hex pairs joined by sep.
func (a Address) Hex(sep string) string {
	if sep == "" {
		return hex.EncodeToString(a[:])
	}
	var sb strings.Builder
	sb.Grow(Size*(2+len(sep)) - len(sep))
	for i, c := range a {
		if i > 0 {
			sb.WriteString(sep)
		}
		sb.WriteString(hex.EncodeToString([]byte{c}))
	}
	return sb.String()
}

func (a Address) String() string { return a.Hex(":") }

func (a Address) IsZero() bool { return a == Address{} }

// Compare orders addresses byte-wise, returning -1, 0 or +1.
func Compare(a, b Address) int { return bytes.Compare(a[:], b[:]) }

// CID returns the CIDv1 (raw codec, sha2-256 multihash) naming the same content.
func (a Address) CID() cid.Cid {
	mh, err := multihash.Encode(a[:], multihash.SHA2_256)
	if err != nil {
		return cid.Undef
	}
	return cid.NewCidV1(cid.Raw, mh)
}

// FromCID extracts the address from a CID carrying a sha2-256 multihash.
func FromCID(c cid.Cid) (Address, error) {
	if !c.Defined() {
		return Address{}, model.NewError(model.ErrInvalidAddress, "undefined cid")
	}
	return fromMultihash(c.Hash())
}

func fromMultihash(mh []byte) (Address, error) {
	dec, err := multihash.Decode(mh)
	if err != nil {
		return Address{}, model.WrapError(model.ErrInvalidAddress, "invalid multihash", err)
	}
	if dec.Code != multihash.SHA2_256 {
		return Address{}, model.Errorf(model.ErrInvalidAddress, "unsupported multihash code 0x%x", dec.Code)
	}
	return FromBytes(dec.Digest)
}
