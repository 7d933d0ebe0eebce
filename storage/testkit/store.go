// Package testkit holds a conformance suite every storage.Store backend runs.
package testkit

import (
	"bytes"
	"io"
	"sync"
	"testing"

	"xdao.co/overlay/address"
	"xdao.co/overlay/storage"
)

// NewStore constructs a fresh, empty store for a test.
// The returned store must be isolated from other tests.
type NewStore func(t *testing.T) storage.Store

func RunStoreConformance(t *testing.T, newStore NewStore) {
	t.Helper()

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		s := newStore(t)
		want := []byte("hello, overlay storage")

		a, err := s.Put(want)
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if a != address.FromHash(want) {
			t.Fatalf("Put address mismatch: got %s want %s", a, address.FromHash(want))
		}

		got, err := s.Get(a)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("Get bytes mismatch")
		}
	})

	t.Run("PutIdempotent", func(t *testing.T) {
		s := newStore(t)
		b := []byte("same bytes")

		a1, err := s.Put(b)
		if err != nil {
			t.Fatalf("Put(1) failed: %v", err)
		}
		a2, err := s.Put(b)
		if err != nil {
			t.Fatalf("Put(2) failed: %v", err)
		}
		if a1 != a2 {
			t.Fatalf("Put not idempotent: %s vs %s", a1, a2)
		}
	})

	t.Run("EmptyValue", func(t *testing.T) {
		s := newStore(t)
		a, err := s.Put(nil)
		if err != nil {
			t.Fatalf("Put(empty) failed: %v", err)
		}
		got, err := s.Get(a)
		if err != nil {
			t.Fatalf("Get(empty) failed: %v", err)
		}
		if len(got) != 0 {
			t.Fatalf("expected empty content, got %d bytes", len(got))
		}
	})

	t.Run("HasAndNotFound", func(t *testing.T) {
		s := newStore(t)
		b := []byte("missing")
		a := address.FromHash(b)

		if s.Has(a) {
			t.Fatalf("Has returned true for missing address")
		}
		_, err := s.Get(a)
		if !storage.IsNotFound(err) {
			t.Fatalf("Get missing: got err=%v want ErrNotFound", err)
		}

		if _, err := s.Put(b); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if !s.Has(a) {
			t.Fatalf("Has returned false after Put")
		}
	})

	t.Run("ConcurrentPutSameContent", func(t *testing.T) {
		s := newStore(t)
		b := bytes.Repeat([]byte("race"), 4096)

		const writers = 8
		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.Put(b); err != nil {
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatalf("concurrent Put failed: %v", err)
		}
		got, err := s.Get(address.FromHash(b))
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !bytes.Equal(got, b) {
			t.Fatalf("content mismatch after concurrent Put")
		}
	})

	t.Run("Streaming", func(t *testing.T) {
		s := newStore(t)
		st, ok := s.(storage.Streamer)
		if !ok {
			t.Skip("store does not stream")
		}
		want := bytes.Repeat([]byte{0xab, 0xcd}, 1<<16)
		a, err := st.PutReader(bytes.NewReader(want))
		if err != nil {
			t.Fatalf("PutReader failed: %v", err)
		}
		if a != address.FromHash(want) {
			t.Fatalf("PutReader address mismatch")
		}
		rc, err := st.Open(a)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		defer rc.Close()
		got, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("ReadAll failed: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("streamed bytes mismatch")
		}
		if _, err := st.Open(address.FromHash([]byte("absent"))); !storage.IsNotFound(err) {
			t.Fatalf("Open missing: got err=%v want ErrNotFound", err)
		}
	})
}
