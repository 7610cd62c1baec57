// Copyright (C) 2025 efchat.net <tj@efchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package keystore

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/efchatnet/secretconv/backend/crypto"
)

func TestPutIfAbsentRetainsFirstPair(t *testing.T) {
	stores := map[string]func(t *testing.T) KeyStore{
		"memory": func(t *testing.T) KeyStore { return NewMemoryStore() },
		"file": func(t *testing.T) KeyStore {
			s, err := OpenFileStore(filepath.Join(t.TempDir(), "keys.enc"), "passphrase")
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			return s
		},
	}

	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			first := mustGenerate(t)
			second := mustGenerate(t)

			got, created, err := store.PutIfAbsent("conv_1", first)
			if err != nil {
				t.Fatalf("first put: %v", err)
			}
			if !created {
				t.Fatal("first put: created = false")
			}
			if !bytes.Equal(got.Public, first.Public) {
				t.Fatal("first put returned a different pair")
			}

			got, created, err = store.PutIfAbsent("conv_1", second)
			if err != nil {
				t.Fatalf("second put: %v", err)
			}
			if created {
				t.Fatal("second put: created = true, want idempotent no-op")
			}
			if !bytes.Equal(got.Public, first.Public) {
				t.Fatal("second put did not observe the first pair")
			}

			stored, ok, err := store.Get("conv_1")
			if err != nil || !ok {
				t.Fatalf("get: ok=%v err=%v", ok, err)
			}
			if !bytes.Equal(stored.Private, first.Private) {
				t.Fatal("stored private key was replaced")
			}
		})
	}
}

func TestPutIfAbsentConcurrent(t *testing.T) {
	store := NewMemoryStore()

	// Re-triggered "accept" clicks race on the same conversation; exactly
	// one key pair may win.
	const callers = 64
	pairs := make([]crypto.KeyPair, callers)
	for i := range pairs {
		pairs[i] = mustGenerate(t)
	}

	var wg sync.WaitGroup
	createdCount := make(chan bool, callers)
	publics := make(chan []byte, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(pair crypto.KeyPair) {
			defer wg.Done()
			got, created, err := store.PutIfAbsent("conv_1", pair)
			if err != nil {
				t.Errorf("put: %v", err)
				return
			}
			createdCount <- created
			publics <- got.Public
		}(pairs[i])
	}
	wg.Wait()
	close(createdCount)
	close(publics)

	wins := 0
	for created := range createdCount {
		if created {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("created %d pairs for one conversation, want 1", wins)
	}

	var canonical []byte
	for pub := range publics {
		if canonical == nil {
			canonical = pub
			continue
		}
		if !bytes.Equal(canonical, pub) {
			t.Fatal("concurrent callers observed different key pairs")
		}
	}
}

func TestKeysAreDistinctPerConversation(t *testing.T) {
	store := NewMemoryStore()
	a := mustGenerate(t)
	b := mustGenerate(t)
	if _, _, err := store.PutIfAbsent("conv_a", a); err != nil {
		t.Fatalf("put a: %v", err)
	}
	if _, _, err := store.PutIfAbsent("conv_b", b); err != nil {
		t.Fatalf("put b: %v", err)
	}
	gotA, _, _ := store.Get("conv_a")
	gotB, _, _ := store.Get("conv_b")
	if bytes.Equal(gotA.Private, gotB.Private) {
		t.Fatal("two conversations share a private key")
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.enc")
	pair := mustGenerate(t)

	store, err := OpenFileStore(path, "correct horse")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, _, err := store.PutIfAbsent("conv_1", pair); err != nil {
		t.Fatalf("put: %v", err)
	}

	reopened, err := OpenFileStore(path, "correct horse")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, ok, err := reopened.Get("conv_1")
	if err != nil || !ok {
		t.Fatalf("get after reopen: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(got.Private, pair.Private) || !bytes.Equal(got.Public, pair.Public) {
		t.Fatal("key pair corrupted across reopen")
	}
}

func TestFileStoreWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.enc")
	store, err := OpenFileStore(path, "right")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, _, err := store.PutIfAbsent("conv_1", mustGenerate(t)); err != nil {
		t.Fatalf("put: %v", err)
	}

	if _, err := OpenFileStore(path, "wrong"); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("wrong passphrase: err = %v, want ErrStorageUnavailable", err)
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.enc")
	store, err := OpenFileStore(path, "pw")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, _, err := store.PutIfAbsent("conv_1", mustGenerate(t)); err != nil {
		t.Fatalf("put: %v", err)
	}

	corruptions := map[string][]byte{
		"garbage":    []byte("not a key file"),
		"bad prefix": []byte("OTHERFORMAT\n{}"),
		"bad json":   []byte(filePrefix + "{truncated"),
	}
	for name, content := range corruptions {
		t.Run(name, func(t *testing.T) {
			if err := os.WriteFile(path, content, 0o600); err != nil {
				t.Fatalf("write: %v", err)
			}
			if _, err := OpenFileStore(path, "pw"); !errors.Is(err, ErrStorageUnavailable) {
				t.Fatalf("err = %v, want ErrStorageUnavailable", err)
			}
		})
	}
}

func TestFileStoreWipe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.enc")
	store, err := OpenFileStore(path, "pw")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, _, err := store.PutIfAbsent("conv_1", mustGenerate(t)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Wipe(); err != nil {
		t.Fatalf("wipe: %v", err)
	}

	reopened, err := OpenFileStore(path, "pw")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, ok, _ := reopened.Get("conv_1"); ok {
		t.Fatal("key pair survived wipe")
	}
}

func mustGenerate(t testing.TB) crypto.KeyPair {
	t.Helper()
	pair, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return pair
}
