package rpc

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"xdao.co/overlay/address"
)

// WireSeparator groups the hex pairs of the destination on the wire.
const WireSeparator = ":"

// Wire is the JSON shape of a message:
//
//	{"type":"put","source":{"ip":"127.0.0.1","port":1234},"destination":"ff:ff:...","value":"AAAA"}
//
// Value is standard base64 and is present only for put.
type Wire struct {
	Type        Kind        `json:"type"`
	Source      WireLocator `json:"source"`
	Destination string      `json:"destination"`
	Value       *string     `json:"value,omitempty"`
}

type WireLocator struct {
	IP   string `json:"ip"`
	Port int    `json:"port"`
}

// ToWire converts m into its wire struct.
func ToWire(m Message) (Wire, error) {
	if m == nil {
		return Wire{}, malformed("nil message")
	}
	h := m.Head()
	if !h.Source.IsValid() {
		return Wire{}, incomplete(m.Kind(), "source")
	}
	w := Wire{
		Type: m.Kind(),
		Source: WireLocator{
			IP:   h.Source.IP.String(),
			Port: int(h.Source.Port),
		},
		Destination: h.Destination.Hex(WireSeparator),
	}
	switch x := m.(type) {
	case Ping, Lookup:
	case Put:
		v := base64.StdEncoding.EncodeToString(x.Value)
		w.Value = &v
	default:
		return Wire{}, malformed("unsupported message type %T", m)
	}
	return w, nil
}

// Marshal renders m as compact JSON.
func Marshal(m Message) ([]byte, error) {
	w, err := ToWire(m)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

func MarshalString(m Message) (string, error) {
	b, err := Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// incoming holds the top-level members of a wire message. Keys match
// exactly; encoding/json alone would also accept "TYPE" or "Source".
type incoming map[string]json.RawMessage

// field decodes obj[name] into dst and reports whether the key was present.
// An explicit null counts as present and invalid.
func field(obj map[string]json.RawMessage, name string, dst any) (bool, error) {
	raw, ok := obj[name]
	if !ok {
		return false, nil
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return true, malformed("%s must not be null", name)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, malformedCause(name, err)
	}
	return true, nil
}

// Unmarshal parses a wire message into the variant named by its "type".
// Any failure is reported as MALFORMED_RPC and no message is returned.
func Unmarshal(data []byte) (Message, error) {
	var in incoming
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&in); err != nil {
		return nil, malformedCause("invalid json", err)
	}
	if in == nil {
		return nil, malformed("message is not an object")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, malformed("trailing data after message")
	}
	var typ string
	ok, err := field(in, "type", &typ)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, malformed("missing type")
	}
	kind := Kind(typ)
	var value *string
	if _, err := field(in, "value", &value); err != nil {
		return nil, err
	}

	switch kind {
	case KindPing:
		h, err := in.header(kind)
		if err != nil {
			return nil, err
		}
		if value != nil {
			return nil, malformed("%s must not carry a value", kind)
		}
		return Ping{Header: h}, nil
	case KindLookup:
		h, err := in.header(kind)
		if err != nil {
			return nil, err
		}
		if value != nil {
			return nil, malformed("%s must not carry a value", kind)
		}
		return Lookup{Header: h}, nil
	case KindPut:
		h, err := in.header(kind)
		if err != nil {
			return nil, err
		}
		if value == nil {
			return nil, malformed("put requires value")
		}
		v, err := base64.StdEncoding.DecodeString(*value)
		if err != nil {
			return nil, malformedCause("put value is not base64", err)
		}
		return Put{Header: h, Value: v}, nil
	default:
		return nil, malformed("unknown type %q", typ)
	}
}

func UnmarshalString(s string) (Message, error) { return Unmarshal([]byte(s)) }

func (in incoming) header(kind Kind) (Header, error) {
	var source map[string]json.RawMessage
	if ok, err := field(in, "source", &source); err != nil {
		return Header{}, err
	} else if !ok {
		return Header{}, malformed("%s requires source", kind)
	}
	var ip string
	if ok, err := field(source, "ip", &ip); err != nil {
		return Header{}, err
	} else if !ok {
		return Header{}, malformed("%s requires source.ip", kind)
	}
	var port int
	if ok, err := field(source, "port", &port); err != nil {
		return Header{}, err
	} else if !ok {
		return Header{}, malformed("%s requires source.port", kind)
	}
	var dstHex string
	if ok, err := field(in, "destination", &dstHex); err != nil {
		return Header{}, err
	} else if !ok {
		return Header{}, malformed("%s requires destination", kind)
	}
	src, err := address.NewLocator(ip, port)
	if err != nil {
		return Header{}, malformedCause(fmt.Sprintf("%s source", kind), err)
	}
	dst, err := address.ParseHex(dstHex, WireSeparator)
	if err != nil {
		return Header{}, malformedCause(fmt.Sprintf("%s destination", kind), err)
	}
	// Pairs must be grouped as written by Marshal; hex case is free.
	if !strings.EqualFold(dstHex, dst.Hex(WireSeparator)) {
		return Header{}, malformed("%s destination must be %q-separated hex pairs", kind, WireSeparator)
	}
	return Header{Source: src, Destination: dst}, nil
}
