package kv_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shelajev/slowly-unhinged/pkg/kv"
)

// newTestStore creates a Store for testing. Tests run against both the
// memory implementation and an in-memory badger engine.
func stores(t *testing.T) map[string]kv.Store {
	t.Helper()
	b, err := kv.NewBadger(kv.BadgerOptions{InMemory: true})
	if err != nil {
		t.Fatalf("NewBadger: %v", err)
	}
	out := map[string]kv.Store{
		"memory": kv.NewMemory(),
		"badger": b,
	}
	for _, s := range out {
		s := s
		t.Cleanup(func() { s.Close() })
	}
	return out
}

func TestGetSetDelete(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			const key = "settings:wheels"
			val := []byte("hello")

			// Get non-existent key.
			_, err := s.Get(ctx, key)
			if !errors.Is(err, kv.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}

			// Set and Get.
			if err := s.Set(ctx, key, val); err != nil {
				t.Fatalf("Set: %v", err)
			}
			got, err := s.Get(ctx, key)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if string(got) != string(val) {
				t.Fatalf("Get = %q, want %q", got, val)
			}

			// Overwrite.
			val2 := []byte("world")
			if err := s.Set(ctx, key, val2); err != nil {
				t.Fatalf("Set overwrite: %v", err)
			}
			got, err = s.Get(ctx, key)
			if err != nil {
				t.Fatalf("Get after overwrite: %v", err)
			}
			if string(got) != string(val2) {
				t.Fatalf("Get = %q, want %q", got, val2)
			}

			// Delete.
			if err := s.Delete(ctx, key); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			_, err = s.Get(ctx, key)
			if !errors.Is(err, kv.ErrNotFound) {
				t.Fatalf("expected ErrNotFound after delete, got %v", err)
			}

			// Delete non-existent key should not error.
			if err := s.Delete(ctx, "no:such:key"); err != nil {
				t.Fatalf("Delete non-existent: %v", err)
			}
		})
	}
}

func TestValueIsolation(t *testing.T) {
	ctx := context.Background()
	s := kv.NewMemory()
	t.Cleanup(func() { s.Close() })

	const key = "iso:test"
	original := []byte("original")

	if err := s.Set(ctx, key, original); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// Mutating the caller slice must not reach the store.
	original[0] = 'X'

	got, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got[0] != 'o' {
		t.Fatal("store value was mutated via original slice")
	}

	// Mutating the returned slice must not reach the store.
	got[0] = 'Y'
	got2, _ := s.Get(ctx, key)
	if got2[0] != 'o' {
		t.Fatal("store value was mutated via returned slice")
	}
}
