package keys

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const keySuffix = ".key"

// KeyStore keeps key seeds as text files, one per node name.
//
// Layout: <Directory>/<name>.key, mode 0600, holding "<algorithm> <hex seed>".
// A file holding only hex is an ed25519 seed. Nothing here is encrypted;
// protect the directory.
type KeyStore struct {
	Directory string
}

func DefaultDirectory() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".overlay", "keys"), nil
}

func OpenKeyStore(directory string) (*KeyStore, error) {
	if directory == "" {
		var err error
		directory, err = DefaultDirectory()
		if err != nil {
			return nil, err
		}
	}
	return &KeyStore{Directory: directory}, nil
}

func CheckKeyName(name string) error {
	if name == "" {
		return errors.New("key name cannot be empty")
	}
	for _, char := range name {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '_' {
			continue
		}
		return fmt.Errorf("invalid character %q in key name", char)
	}
	return nil
}

func ParseSeedHex(seedHex string) ([]byte, error) {
	seedHex = strings.TrimSpace(seedHex)
	seedHex = strings.TrimPrefix(seedHex, "0x")
	data, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, err
	}
	if len(data) != SeedSize {
		return nil, fmt.Errorf("expected seed length of %d bytes, got %d", SeedSize, len(data))
	}
	return data, nil
}

func (ks *KeyStore) path(name string) string {
	return filepath.Join(ks.Directory, name+keySuffix)
}

// Create writes seed under name for alg (empty means ed25519). Without
// overwrite an existing key is an error wrapping fs.ErrExist. The file is
// written under a temporary name first, so readers never see it partial.
func (ks *KeyStore) Create(name, alg string, seed []byte, overwrite bool) (Signer, error) {
	if err := CheckKeyName(name); err != nil {
		return nil, err
	}
	signer, err := NewSigner(alg, seed)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(ks.Directory, 0o700); err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(ks.Directory, ".tmp-"+name+"-*")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())
	_, err = fmt.Fprintf(tmp, "%s %s\n", signer.Algorithm(), hex.EncodeToString(seed))
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, err
	}

	if overwrite {
		err = os.Rename(tmp.Name(), ks.path(name))
	} else {
		err = os.Link(tmp.Name(), ks.path(name))
	}
	if err != nil {
		return nil, err
	}
	return signer, nil
}

// Load reads the key stored under name.
func (ks *KeyStore) Load(name string) (Signer, error) {
	if err := CheckKeyName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(ks.path(name))
	if err != nil {
		return nil, err
	}
	alg, seedHex, ok := strings.Cut(strings.TrimSpace(string(data)), " ")
	if !ok {
		alg, seedHex = AlgEd25519, alg
	}
	seed, err := ParseSeedHex(seedHex)
	if err != nil {
		return nil, fmt.Errorf("key %q: %w", name, err)
	}
	return NewSigner(alg, seed)
}

// LoadOrCreate loads name, generating a fresh alg key from rand if it is
// absent. A non-empty alg must match the algorithm of an existing key.
func (ks *KeyStore) LoadOrCreate(name, alg string, rand io.Reader) (signer Signer, created bool, err error) {
	signer, err = ks.Load(name)
	if err == nil {
		if alg != "" && signer.Algorithm() != alg {
			return nil, false, fmt.Errorf("key %q is %s, not %s", name, signer.Algorithm(), alg)
		}
		return signer, false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, err
	}
	seed := make([]byte, SeedSize)
	if _, err := io.ReadFull(rand, seed); err != nil {
		return nil, false, err
	}
	signer, err = ks.Create(name, alg, seed, false)
	if errors.Is(err, fs.ErrExist) {
		// Another process created it first.
		signer, err = ks.Load(name)
		return signer, false, err
	}
	return signer, err == nil, err
}

// Remove deletes the key stored under name.
func (ks *KeyStore) Remove(name string) error {
	if err := CheckKeyName(name); err != nil {
		return err
	}
	return os.Remove(ks.path(name))
}

// List returns stored key names, sorted.
func (ks *KeyStore) List() ([]string, error) {
	entries, err := os.ReadDir(ks.Directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), keySuffix) {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), keySuffix))
	}
	sort.Strings(names)
	return names, nil
}
