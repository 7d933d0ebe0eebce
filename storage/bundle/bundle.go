// Package bundle moves stored objects between stores as a tar archive.
//
// Layout:
//
//	objects/<hex address>   object bytes
//	index.json              optional, informational only
//
// Export output is byte-for-byte reproducible for the same set of addresses.
package bundle

import (
	"archive/tar"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"xdao.co/overlay/address"
	"xdao.co/overlay/model"
	"xdao.co/overlay/storage"
)

// FormatVersion is written to index.json.
const FormatVersion = 1

const (
	objectsDir = "objects/"
	indexName  = "index.json"
)

var epoch = time.Unix(0, 0).UTC()

type ExportOptions struct {
	// Labels are free-form names for addresses, recorded in the index.
	Labels map[string]address.Address
	// IncludeIndex writes index.json after the objects.
	IncludeIndex bool
}

// Export writes the objects named by addrs to w. Duplicates are written
// once. Every object is re-hashed before it is written.
func Export(w io.Writer, st storage.Store, addrs []address.Address, opts ExportOptions) (err error) {
	if st == nil {
		return errors.New("bundle: nil store")
	}
	sorted := uniqueSorted(addrs)

	tw := tar.NewWriter(w)
	defer func() {
		if cerr := tw.Close(); err == nil {
			err = cerr
		}
	}()

	idx := index{Version: FormatVersion, Hash: "sha2-256", Objects: make([]indexObject, 0, len(sorted))}
	for _, a := range sorted {
		b, err := st.Get(a)
		if err != nil {
			return err
		}
		if address.FromHash(b) != a {
			return model.Errorf(model.ErrContentMismatch, "bundle: store returned wrong content for %s", a)
		}
		if err := writeEntry(tw, objectsDir+a.Hex(""), b); err != nil {
			return err
		}
		idx.Objects = append(idx.Objects, indexObject{Address: a.Hex(""), CID: a.CID().String(), Size: len(b)})
	}
	if !opts.IncludeIndex {
		return nil
	}

	names := make([]string, 0, len(opts.Labels))
	for k := range opts.Labels {
		if k == "" {
			return errors.New("bundle: empty label name")
		}
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		idx.Labels = append(idx.Labels, indexLabel{Name: k, Address: opts.Labels[k].Hex("")})
	}
	b, err := json.Marshal(idx)
	if err != nil {
		return err
	}
	return writeEntry(tw, indexName, append(b, '\n'))
}

type ImportOptions struct {
	// IgnoreUnknown skips entries outside objects/ instead of failing.
	IgnoreUnknown bool
}

// Import stores every object in the bundle read from r and returns their
// addresses in archive order. Each entry name must match the hash of its
// bytes.
func Import(r io.Reader, st storage.Store, opts ImportOptions) ([]address.Address, error) {
	if st == nil {
		return nil, errors.New("bundle: nil store")
	}
	tr := tar.NewReader(r)
	seen := map[address.Address]bool{}
	var out []address.Address

	for {
		h, err := tr.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("bundle: %w", err)
		}
		name, ok := cleanPath(h.Name)
		if !ok {
			return out, fmt.Errorf("bundle: invalid entry path %q", h.Name)
		}

		switch {
		case h.Typeflag == tar.TypeReg && name == indexName:
			continue
		case h.Typeflag == tar.TypeReg && strings.HasPrefix(name, objectsDir):
		default:
			if opts.IgnoreUnknown {
				continue
			}
			return out, fmt.Errorf("bundle: unexpected entry %s", name)
		}

		want, err := address.ParseHex(strings.TrimPrefix(name, objectsDir), "")
		if err != nil {
			return out, err
		}
		if seen[want] {
			return out, fmt.Errorf("bundle: duplicate object %s", want)
		}
		seen[want] = true

		got, err := importObject(tr, h.Size, name, want, st)
		if err != nil {
			return out, err
		}
		if got != want {
			return out, model.Errorf(model.ErrContentMismatch, "bundle: store put %s returned %s", want, got)
		}
		out = append(out, got)
	}
}

// importObject copies one tar entry into st. Streamers receive the entry
// through a reader that fails at EOF on a hash mismatch, so a bad entry is
// never published and nothing is buffered.
func importObject(r io.Reader, size int64, name string, want address.Address, st storage.Store) (address.Address, error) {
	if ss, ok := st.(storage.Streamer); ok {
		vr := &checkReader{r: io.LimitReader(r, size), h: address.NewHasher(), want: want, name: name}
		got, err := ss.PutReader(vr)
		if vr.mismatch != nil {
			return address.Address{}, vr.mismatch
		}
		if err != nil {
			return address.Address{}, err
		}
		return got, nil
	}

	payload, err := io.ReadAll(r)
	if err != nil {
		return address.Address{}, fmt.Errorf("bundle: read %s: %w", name, err)
	}
	if address.FromHash(payload) != want {
		return address.Address{}, mismatch(name)
	}
	return st.Put(payload)
}

func mismatch(name string) error {
	return model.Errorf(model.ErrContentMismatch, "bundle: %s does not match its content", name)
}

type checkReader struct {
	r        io.Reader
	h        hash.Hash
	want     address.Address
	name     string
	mismatch error
}

func (c *checkReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	_, _ = c.h.Write(p[:n])
	if err == io.EOF {
		if got, derr := address.FromDigest(c.h.Sum(nil)); derr != nil || got != c.want {
			c.mismatch = mismatch(c.name)
			return n, c.mismatch
		}
	}
	return n, err
}

type index struct {
	Version int           `json:"version"`
	Hash    string        `json:"hash"`
	Objects []indexObject `json:"objects"`
	Labels  []indexLabel  `json:"labels,omitempty"`
}

// indexObject names each object twice: by address and by its CIDv1 (raw,
// sha2-256) so IPFS tooling can locate the same bytes.
type indexObject struct {
	Address string `json:"address"`
	CID     string `json:"cid"`
	Size    int    `json:"size"`
}

type indexLabel struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

func uniqueSorted(addrs []address.Address) []address.Address {
	out := make([]address.Address, 0, len(addrs))
	seen := make(map[address.Address]bool, len(addrs))
	for _, a := range addrs {
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return address.Compare(out[i], out[j]) < 0 })
	return out
}

// writeEntry writes a regular file with fixed ownership, mode and mtime.
func writeEntry(tw *tar.Writer, name string, content []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o444,
		Size:     int64(len(content)),
		ModTime:  epoch,
		Typeflag: tar.TypeReg,
		Format:   tar.FormatUSTAR,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := tw.Write(content)
	return err
}

// cleanPath normalizes an entry name and rejects absolute or escaping paths.
func cleanPath(name string) (string, bool) {
	name = strings.TrimPrefix(strings.ReplaceAll(name, "\\", "/"), "./")
	if name == "" || strings.HasPrefix(name, "/") {
		return "", false
	}
	clean := path.Clean(name)
	if clean != name || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", false
	}
	return clean, true
}
