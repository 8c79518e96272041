package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newGuard(t *testing.T) (*Guard, *miniredis.Miniredis) {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(s.Close)

	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() {
		if err := rdb.Close(); err != nil {
			t.Fatalf("close redis: %v", err)
		}
	})
	return NewGuard(rdb, time.Minute), s
}

func TestGuard_Claim(t *testing.T) {
	g, _ := newGuard(t)
	ctx := context.Background()

	ok, err := g.Claim(ctx, 1, "req-abc")
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if !ok {
		t.Fatalf("expected first claim to succeed")
	}

	ok, err = g.Claim(ctx, 1, "req-abc")
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if ok {
		t.Fatalf("expected second claim to be rejected")
	}

	ok, err = g.Claim(ctx, 2, "req-abc")
	if err != nil || !ok {
		t.Fatalf("keys must be scoped per user: ok=%v err=%v", ok, err)
	}
}

func TestGuard_ReleaseAndExpiry(t *testing.T) {
	g, s := newGuard(t)
	ctx := context.Background()

	if ok, _ := g.Claim(ctx, 1, "k"); !ok {
		t.Fatalf("expected claim")
	}
	if err := g.Release(ctx, 1, "k"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := g.Claim(ctx, 1, "k"); !ok {
		t.Fatalf("expected claim after release")
	}

	s.FastForward(2 * time.Minute)
	if ok, _ := g.Claim(ctx, 1, "k"); !ok {
		t.Fatalf("expected claim after ttl")
	}
}

func TestGuard_NilOrEmptyKeyAllows(t *testing.T) {
	var g *Guard
	if ok, err := g.Claim(context.Background(), 1, "x"); err != nil || !ok {
		t.Fatalf("nil guard should allow")
	}
	g2, _ := newGuard(t)
	if ok, _ := g2.Claim(context.Background(), 1, ""); !ok {
		t.Fatalf("empty key should allow")
	}
	if ok, _ := g2.Claim(context.Background(), 1, ""); !ok {
		t.Fatalf("empty key should never be recorded")
	}
}
