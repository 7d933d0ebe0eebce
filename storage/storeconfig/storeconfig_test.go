package storeconfig

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"xdao.co/overlay/address"
	"xdao.co/overlay/storage"
	"xdao.co/overlay/storage/registry"

	_ "xdao.co/overlay/storage/localfs"
)

func localBackend(id, dir string) BackendConfig {
	return BackendConfig{Name: "localfs", ID: id, Config: map[string]string{"localfs-dir": dir}}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"empty", Config{}, false},
		{"missing name", Config{Backends: []BackendConfig{{}}}, false},
		{"duplicate id", Config{Backends: []BackendConfig{localBackend("a", "x"), localBackend("a", "y")}}, false},
		{"bad policy", Config{WritePolicy: "some", Backends: []BackendConfig{localBackend("", "x")}}, false},
		{"ok", Config{WritePolicy: "all", Backends: []BackendConfig{localBackend("a", "x"), localBackend("b", "y")}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err == nil) != tt.ok {
				t.Fatalf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestLoadFileAndOpenSingle(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Backends: []BackendConfig{localBackend("", filepath.Join(dir, "store"))}}
	b, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	path := filepath.Join(dir, "store.json")
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	s, closeFn, err := loaded.Open(registry.UsageDaemon, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer closeFn()

	a, err := s.Put([]byte("configured"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if a != address.FromHash([]byte("configured")) {
		t.Fatalf("unexpected address")
	}
}

func TestOpenPolicies(t *testing.T) {
	dir := t.TempDir()
	backends := []BackendConfig{
		localBackend("one", filepath.Join(dir, "one")),
		localBackend("two", filepath.Join(dir, "two")),
	}

	s, closeFn, err := Config{Backends: backends}.Open(registry.UsageDaemon, "two")
	if err != nil {
		t.Fatalf("Open first: %v", err)
	}
	defer closeFn()
	multi, ok := s.(storage.MultiStore)
	if !ok || len(multi.Stores) != 2 {
		t.Fatalf("expected MultiStore with 2 stores, got %T", s)
	}
	a, err := multi.Put([]byte("preferred"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if multi.Stores[1].Has(a) {
		t.Fatalf("write reached the non-preferred backend")
	}

	s, closeAll, err := Config{WritePolicy: "all", Backends: backends}.Open(registry.UsageDaemon, "")
	if err != nil {
		t.Fatalf("Open all: %v", err)
	}
	defer closeAll()
	rep, ok := s.(storage.ReplicatingStore)
	if !ok {
		t.Fatalf("expected ReplicatingStore, got %T", s)
	}
	if rep.Backends[0].Name != "one" || rep.Backends[1].Name != "two" {
		t.Fatalf("unexpected backend order %+v", rep.Backends)
	}
}

func TestOpenErrors(t *testing.T) {
	if _, _, err := (Config{Backends: []BackendConfig{{Name: "nope"}}}).Open(registry.UsageDaemon, ""); err == nil {
		t.Fatalf("expected unknown backend error")
	}
	bad := Config{Backends: []BackendConfig{{Name: "localfs", Config: map[string]string{"no-such-flag": "x"}}}}
	if _, _, err := bad.Open(registry.UsageDaemon, ""); err == nil {
		t.Fatalf("expected unknown config key error")
	}
	cfg := Config{Backends: []BackendConfig{localBackend("", t.TempDir())}}
	if _, _, err := cfg.Open(registry.UsageDaemon, "missing"); err == nil {
		t.Fatalf("expected preferred backend error")
	}
	if _, err := Parse([]byte(`{"backends":`)); err == nil {
		t.Fatalf("expected parse error")
	}
}
