package localfs

import (
	"bytes"
	"errors"
	"hash"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"xdao.co/overlay/address"
	"xdao.co/overlay/model"
	"xdao.co/overlay/storage"
)

// NameSeparator joins the hex pairs of an address in a file name.
const NameSeparator = "_"

// FileNameLen caps file names. Hex with a one-byte separator costs three
// characters per address byte; 89 keeps names well inside common path
// component limits.
const FileNameLen = min(89, 3*address.DefaultAddressSize-1)

const (
	filePerm   = 0o444
	dirPerm    = 0o755
	tempPrefix = ".tmp-"
)

// Store is a flat-directory content-addressable store.
//
// Each object is one file named FileName(address) holding exactly the
// original bytes. Files are written to a temporary name and hard-linked
// into place; the link fails if the name is taken, so concurrent writers
// never overwrite each other and readers never see a partial file.
type Store struct {
	root string
}

var (
	_ storage.Store    = (*Store)(nil)
	_ storage.Streamer = (*Store)(nil)
)

// New constructs a Store rooted at root. The directory is created if needed.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("localfs: root directory is required")
	}
	if err := os.MkdirAll(root, dirPerm); err != nil {
		return nil, storage.IOError("create root", err)
	}
	return &Store{root: root}, nil
}

func (s *Store) Root() string { return s.root }

// FileName returns the on-disk name of a: its hex form grouped with
// NameSeparator, truncated to FileNameLen.
func FileName(a address.Address) string {
	name := a.Hex(NameSeparator)
	if len(name) > FileNameLen {
		name = name[:FileNameLen]
	}
	return name
}

func (s *Store) PathFor(a address.Address) string {
	return filepath.Join(s.root, FileName(a))
}

// Store writes data under its derived name. If the name is already taken by
// the same content, Store succeeds without touching the file.
func (s *Store) Store(data []byte) (storage.Record, error) {
	a := address.FromHash(data)
	tmp, err := writeTemp(s.root, bytes.NewReader(data))
	if err != nil {
		return storage.Record{}, err
	}
	defer os.Remove(tmp)
	return s.publish(tmp, a)
}

// StoreReader is Store for content too large to buffer. The address is
// computed while the bytes are copied to disk.
func (s *Store) StoreReader(r io.Reader) (storage.Record, error) {
	h := address.NewHasher()
	tmp, err := writeTemp(s.root, io.TeeReader(r, h))
	if err != nil {
		return storage.Record{}, err
	}
	defer os.Remove(tmp)
	a, err := address.FromDigest(h.Sum(nil))
	if err != nil {
		return storage.Record{}, err
	}
	return s.publish(tmp, a)
}

func (s *Store) Put(data []byte) (address.Address, error) {
	rec, err := s.Store(data)
	return rec.Address, err
}

func (s *Store) PutReader(r io.Reader) (address.Address, error) {
	rec, err := s.StoreReader(r)
	return rec.Address, err
}

func (s *Store) publish(tmp string, a address.Address) (storage.Record, error) {
	path := s.PathFor(a)
	err := os.Link(tmp, path)
	switch {
	case err == nil:
		return storage.Record{Address: a, Path: path}, nil
	case errors.Is(err, fs.ErrExist):
		// Lost the race or stored earlier. Only identical content may occupy the name.
		if verr := (storage.Record{Address: a, Path: path}).Verify(); verr != nil {
			return storage.Record{}, verr
		}
		return storage.Record{Address: a, Path: path}, nil
	default:
		return storage.Record{}, storage.IOError("link "+path, err)
	}
}

// Get reads the whole object. Use Open for large content.
func (s *Store) Get(a address.Address) ([]byte, error) {
	path := s.PathFor(a)
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.Errorf(model.ErrNotFound, "localfs: %s not found", a)
		}
		return nil, storage.IOError("read "+path, err)
	}
	if address.FromHash(b) != a {
		return nil, storage.ErrContentMismatch
	}
	return b, nil
}

// Open streams the object. The hash is checked when the reader hits EOF.
func (s *Store) Open(a address.Address) (io.ReadCloser, error) {
	path := s.PathFor(a)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.Errorf(model.ErrNotFound, "localfs: %s not found", a)
		}
		return nil, storage.IOError("open "+path, err)
	}
	return &verifyingReader{f: f, h: address.NewHasher(), want: a}, nil
}

func (s *Store) Has(a address.Address) bool {
	_, err := os.Stat(s.PathFor(a))
	return err == nil
}

// Record returns the record for a stored address.
func (s *Store) Record(a address.Address) (storage.Record, error) {
	path := s.PathFor(a)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return storage.Record{}, model.Errorf(model.ErrNotFound, "localfs: %s not found", a)
		}
		return storage.Record{}, storage.IOError("stat "+path, err)
	}
	return storage.Record{Address: a, Path: path}, nil
}

// CreateNew writes data at path only if nothing exists there. An occupied
// path yields ErrAlreadyExists and the existing file is left unchanged.
//
// When path is derived from the hash of data, ErrAlreadyExists means the
// content is already stored.
func CreateNew(path string, data []byte) (storage.Record, error) {
	a := address.FromHash(data)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return storage.Record{}, storage.IOError("create dir", err)
	}
	tmp, err := writeTemp(dir, bytes.NewReader(data))
	if err != nil {
		return storage.Record{}, err
	}
	defer os.Remove(tmp)

	if err := os.Link(tmp, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return storage.Record{}, model.WrapError(model.ErrAlreadyExists, "localfs: "+path+" already exists", err)
		}
		return storage.Record{}, storage.IOError("link "+path, err)
	}
	return storage.Record{Address: a, Path: path}, nil
}

// writeTemp copies src into a fresh read-only temp file in dir and returns its path.
func writeTemp(dir string, src io.Reader) (string, error) {
	f, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return "", storage.IOError("create temp", err)
	}
	path := f.Name()
	fail := func(op string, err error) (string, error) {
		_ = f.Close()
		_ = os.Remove(path)
		return "", storage.IOError(op, err)
	}

	if _, err := io.Copy(f, src); err != nil {
		return fail("write temp", err)
	}
	if err := f.Sync(); err != nil {
		return fail("sync temp", err)
	}
	if err := f.Chmod(filePerm); err != nil {
		return fail("chmod temp", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", storage.IOError("close temp", err)
	}
	return path, nil
}

type verifyingReader struct {
	f    *os.File
	h    hash.Hash
	want address.Address
}

func (r *verifyingReader) Read(p []byte) (int, error) {
	n, err := r.f.Read(p)
	_, _ = r.h.Write(p[:n])
	if err == io.EOF {
		got, derr := address.FromDigest(r.h.Sum(nil))
		if derr != nil || got != r.want {
			return n, storage.ErrContentMismatch
		}
	}
	return n, err
}

func (r *verifyingReader) Close() error { return r.f.Close() }
