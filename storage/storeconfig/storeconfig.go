// Package storeconfig opens one or more registered store backends from a
// JSON description.
package storeconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"

	"xdao.co/overlay/storage"
	"xdao.co/overlay/storage/registry"
)

// Config describes how to open stores via the backend registry. Binaries
// still need to link the backends they accept via blank imports.
//
// WritePolicy values:
//   - "first" (default): write only to the first backend; reads fall back in order
//   - "all": write to all backends and require address equality (storage.ReplicatingStore)
//
// Example:
//
//	{
//	  "write_policy": "all",
//	  "backends": [
//	    {"name":"localfs", "id":"hot",  "config":{"localfs-dir":"/var/lib/overlay/hot"}},
//	    {"name":"grpc",    "id":"peer", "config":{"grpc-target":"10.0.0.2:7777"}}
//	  ]
//	}
//
// Config values are backend-specific and mirror the backend's flag names.
type Config struct {
	WritePolicy string          `json:"write_policy,omitempty"`
	Backends    []BackendConfig `json:"backends"`
}

type BackendConfig struct {
	// Name is the registry backend name to open (e.g. "localfs", "grpc").
	Name string `json:"name"`
	// ID is an optional stable alias used in per-backend address maps.
	// If empty, Name is used.
	ID     string            `json:"id,omitempty"`
	Config map[string]string `json:"config,omitempty"`
}

func (b BackendConfig) id() string {
	if b.ID != "" {
		return b.ID
	}
	return b.Name
}

func LoadFile(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, errors.New("storeconfig: empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	return Parse(b)
}

func Parse(b []byte) (Config, error) {
	var cfg Config
	if err := json.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("storeconfig: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if len(c.Backends) == 0 {
		return errors.New("storeconfig: at least one backend is required")
	}
	seen := make(map[string]struct{}, len(c.Backends))
	for _, b := range c.Backends {
		if b.Name == "" {
			return errors.New("storeconfig: backend name is required")
		}
		id := b.id()
		if _, ok := seen[id]; ok {
			return fmt.Errorf("storeconfig: duplicate backend id %q", id)
		}
		seen[id] = struct{}{}
	}
	switch c.WritePolicy {
	case "", "first", "all":
		return nil
	default:
		return fmt.Errorf("storeconfig: invalid write_policy %q", c.WritePolicy)
	}
}

// Open opens every configured backend and combines them per WritePolicy.
// A single backend is returned as is. The close function closes the
// backends in reverse order and reports the first failure.
//
// A non-empty preferred (backend name or id) is moved to the front, which
// makes it the write target under "first".
func (c Config) Open(usage registry.Usage, preferred string) (storage.Store, func() error, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}
	ordered, err := c.ordered(preferred)
	if err != nil {
		return nil, nil, err
	}

	var closers closeStack
	named := make([]storage.NamedStore, 0, len(ordered))
	for _, b := range ordered {
		s, closeFn, err := registry.OpenWithConfig(b.Name, usage, b.Config)
		if err != nil {
			_ = closers.close()
			return nil, nil, fmt.Errorf("storeconfig: open %q: %w", b.id(), err)
		}
		closers.push(closeFn)
		named = append(named, storage.NamedStore{Name: b.id(), Store: s})
	}

	switch {
	case len(named) == 1:
		return named[0].Store, closers.close, nil
	case c.WritePolicy == "all":
		return storage.ReplicatingStore{Backends: named}, closers.close, nil
	default:
		stores := make([]storage.Store, len(named))
		for i, n := range named {
			stores[i] = n.Store
		}
		return storage.MultiStore{Stores: stores}, closers.close, nil
	}
}

func (c Config) ordered(preferred string) ([]BackendConfig, error) {
	out := slices.Clone(c.Backends)
	if preferred == "" {
		return out, nil
	}
	idx := slices.IndexFunc(out, func(b BackendConfig) bool {
		return b.Name == preferred || b.ID == preferred
	})
	if idx < 0 {
		return nil, fmt.Errorf("storeconfig: preferred backend %q not found in config", preferred)
	}
	first := out[idx]
	out = slices.Delete(out, idx, idx+1)
	return slices.Insert(out, 0, first), nil
}

type closeStack []func() error

func (s *closeStack) push(f func() error) {
	if f != nil {
		*s = append(*s, f)
	}
}

func (s *closeStack) close() error {
	var first error
	for i := len(*s) - 1; i >= 0; i-- {
		if err := (*s)[i](); err != nil && first == nil {
			first = err
		}
	}
	*s = nil
	return first
}
