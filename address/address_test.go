package address

import (
	"bytes"
	"crypto/sha256"
	"strings"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	"xdao.co/overlay/model"
)

func TestFromHashDeterministic(t *testing.T) {
	in := []byte("hello overlay")
	a := FromHash(in)
	b := FromHash(in)
	if a != b {
		t.Fatalf("expected deterministic hash: %s vs %s", a, b)
	}
	want := sha256.Sum256(in)
	if !bytes.Equal(a[:], want[:]) {
		t.Fatalf("FromHash is not sha2-256: got %x want %x", a[:], want[:])
	}
	if FromHash([]byte("other")) == a {
		t.Fatalf("expected different inputs to hash differently")
	}
}

func TestFromReaderMatchesFromHash(t *testing.T) {
	data := bytes.Repeat([]byte("abc"), 10000)
	got, err := FromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("FromReader: %v", err)
	}
	if got != FromHash(data) {
		t.Fatalf("FromReader mismatch")
	}

	h := NewHasher()
	_, _ = h.Write(data)
	fromDigest, err := FromDigest(h.Sum(nil))
	if err != nil {
		t.Fatalf("FromDigest: %v", err)
	}
	if fromDigest != got {
		t.Fatalf("NewHasher mismatch")
	}
}

func TestFullAddress(t *testing.T) {
	f := FullAddress()
	for i, c := range f {
		if c != 0xff {
			t.Fatalf("byte %d = %#x, want 0xff", i, c)
		}
	}
	if f != FullAddress() {
		t.Fatalf("FullAddress must be stable")
	}
	if Compare(Address{}, f) != -1 || Compare(f, Address{}) != 1 || Compare(f, f) != 0 {
		t.Fatalf("unexpected ordering")
	}
}

func TestHexRoundTrip(t *testing.T) {
	a := FromHash([]byte{1, 2, 3})
	for _, sep := range []string{"", "_", ":", "--"} {
		s := a.Hex(sep)
		if sep != "" {
			if n := strings.Count(s, sep); n != Size-1 {
				t.Fatalf("sep %q: got %d separators want %d", sep, n, Size-1)
			}
		}
		if want := Size*2 + (Size-1)*len(sep); len(s) != want {
			t.Fatalf("sep %q: length %d want %d", sep, len(s), want)
		}
		back, err := ParseHex(s, sep)
		if err != nil {
			t.Fatalf("ParseHex(%q): %v", sep, err)
		}
		if back != a {
			t.Fatalf("sep %q: round trip mismatch", sep)
		}
	}
	if got := FullAddress().Hex("_")[:8]; got != "ff_ff_ff" {
		t.Fatalf("unexpected hex prefix %q", got)
	}
}

func TestParseHexRejects(t *testing.T) {
	cases := map[string]string{
		"not hex":   "zz",
		"too short": "abcd",
		"too long":  strings.Repeat("00", Size+1),
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseHex(in, "")
			if !model.HasCode(err, model.ErrInvalidAddress) {
				t.Fatalf("got %v, want INVALID_ADDRESS", err)
			}
		})
	}
}

func TestFromBytesCopies(t *testing.T) {
	b := bytes.Repeat([]byte{7}, Size)
	a, err := FromBytes(b)
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	b[0] = 0
	if a[0] != 7 {
		t.Fatalf("Address aliases its input")
	}
	out := a.Bytes()
	out[1] = 0
	if a[1] != 7 {
		t.Fatalf("Bytes aliases the address")
	}
	if _, err := FromBytes(b[:Size-1]); !model.HasCode(err, model.ErrInvalidAddress) {
		t.Fatalf("expected INVALID_ADDRESS for short input, got %v", err)
	}
}

func TestCIDBridge(t *testing.T) {
	data := []byte("cid bridge")
	a := FromHash(data)
	c := a.CID()
	if !c.Defined() || c.Prefix().Codec != cid.Raw || c.Version() != 1 {
		t.Fatalf("unexpected cid %s", c)
	}

	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		t.Fatalf("multihash.Sum: %v", err)
	}
	if want := cid.NewCidV1(cid.Raw, mh); !c.Equals(want) {
		t.Fatalf("CID mismatch: got %s want %s", c, want)
	}

	back, err := FromCID(c)
	if err != nil {
		t.Fatalf("FromCID: %v", err)
	}
	if back != a {
		t.Fatalf("FromCID round trip mismatch")
	}

	if _, err := FromCID(cid.Undef); !model.HasCode(err, model.ErrInvalidAddress) {
		t.Fatalf("expected INVALID_ADDRESS for undefined cid, got %v", err)
	}
	other, err := multihash.Sum(data, multihash.SHA2_512, -1)
	if err != nil {
		t.Fatalf("multihash.Sum: %v", err)
	}
	if _, err := FromCID(cid.NewCidV1(cid.Raw, other)); !model.HasCode(err, model.ErrInvalidAddress) {
		t.Fatalf("expected INVALID_ADDRESS for sha2-512 cid, got %v", err)
	}
}
