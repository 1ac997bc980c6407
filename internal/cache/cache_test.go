package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(time.Minute)

	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("got %v, want ErrMiss", err)
	}

	if err := s.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := s.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Fatalf("got %q, %v", got, err)
	}

	_ = s.Delete(ctx, "k")

	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("after delete got %v, want ErrMiss", err)
	}
}

func TestMemoryStore_Expires(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(20 * time.Millisecond)

	_ = s.Set(ctx, "k", []byte("v"))
	time.Sleep(50 * time.Millisecond)

	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("got %v, want ErrMiss after ttl", err)
	}
}
