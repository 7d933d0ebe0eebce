package address

import (
	"testing"

	"xdao.co/overlay/model"
)

func TestNewLocator(t *testing.T) {
	a, err := NewLocator("127.0.0.1", 1234)
	if err != nil {
		t.Fatalf("NewLocator: %v", err)
	}
	b, err := Loopback(1234)
	if err != nil {
		t.Fatalf("Loopback: %v", err)
	}
	if a != b {
		t.Fatalf("expected structural equality: %v vs %v", a, b)
	}
	if a.String() != "127.0.0.1:1234" {
		t.Fatalf("unexpected String %q", a.String())
	}

	mapped, err := NewLocator("::ffff:127.0.0.1", 1234)
	if err != nil {
		t.Fatalf("NewLocator mapped: %v", err)
	}
	if mapped != a {
		t.Fatalf("expected v4-mapped address to equal plain v4")
	}

	v6, err := NewLocator("::1", 0)
	if err != nil {
		t.Fatalf("NewLocator v6: %v", err)
	}
	if v6.String() != "[::1]:0" {
		t.Fatalf("unexpected v6 String %q", v6.String())
	}
}

func TestNewLocatorRejects(t *testing.T) {
	tests := []struct {
		name string
		ip   string
		port int
	}{
		{"negative port", "127.0.0.1", -1},
		{"port too large", "127.0.0.1", 65536},
		{"bad ip", "127.0.0", 80},
		{"hostname", "localhost", 80},
		{"empty ip", "", 80},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLocator(tt.ip, tt.port)
			if !model.HasCode(err, model.ErrInvalidAddress) {
				t.Fatalf("got %v, want INVALID_ADDRESS", err)
			}
		})
	}
}

func TestParseLocator(t *testing.T) {
	l, err := ParseLocator("[2001:db8::1]:65535")
	if err != nil {
		t.Fatalf("ParseLocator: %v", err)
	}
	if l.Port != 65535 || l.IP.String() != "2001:db8::1" {
		t.Fatalf("unexpected locator %v", l)
	}
	if _, err := ParseLocator("127.0.0.1"); !model.HasCode(err, model.ErrInvalidAddress) {
		t.Fatalf("expected INVALID_ADDRESS without port, got %v", err)
	}
}
