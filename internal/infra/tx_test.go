package infra

import (
	"context"
	"errors"
	"testing"
)

type counterStore struct{ n int }

func (c *counterStore) Snapshot() func() {
	saved := c.n
	return func() { c.n = saved }
}

func TestMemoryTx_RestoresOnError(t *testing.T) {
	store := &counterStore{n: 1}
	tx := NewMemoryTx(store)

	err := tx.Do(context.Background(), func(ctx context.Context) error {
		store.n = 5
		return errors.New("side effect failed")
	})
	if err == nil {
		t.Fatal("expected error to propagate")
	}
	if store.n != 1 {
		t.Fatalf("expected write rolled back to 1, got %d", store.n)
	}

	if err := tx.Do(context.Background(), func(ctx context.Context) error {
		store.n = 7
		return nil
	}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if store.n != 7 {
		t.Fatalf("expected committed write 7, got %d", store.n)
	}
}

func TestMemoryTx_NestedCallReusesOuter(t *testing.T) {
	store := &counterStore{}
	tx := NewMemoryTx(store)

	err := tx.Do(context.Background(), func(ctx context.Context) error {
		store.n = 2
		return tx.Do(ctx, func(ctx context.Context) error {
			store.n = 3
			return errors.New("inner failed")
		})
	})
	if err == nil {
		t.Fatal("expected inner error")
	}
	if store.n != 0 {
		t.Fatalf("expected both writes rolled back, got %d", store.n)
	}
}

func TestMemoryTx_RestoresOnPanic(t *testing.T) {
	store := &counterStore{n: 4}
	tx := NewMemoryTx(store)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic to propagate")
		}
		if store.n != 4 {
			t.Fatalf("expected rollback after panic, got %d", store.n)
		}
	}()
	_ = tx.Do(context.Background(), func(ctx context.Context) error {
		store.n = 9
		panic("boom")
	})
}
