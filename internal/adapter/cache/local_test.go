package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/plugwatch/pkg/config"
)

func TestLocalCache_SetGet(t *testing.T) {
	ctx := context.Background()
	c := NewLocalCache(time.Hour, zap.NewNop())
	defer c.Close()

	if err := c.Set(ctx, "device:plug:power", []byte(`{"power":1}`), 0); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	got, err := c.Get(ctx, "device:plug:power")
	if err != nil || got != `{"power":1}` {
		t.Fatalf("expected cached bytes, got %q (%v)", got, err)
	}

	if err := c.Set(ctx, "struct", struct{ A int }{A: 2}, 0); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got, _ := c.Get(ctx, "struct"); got != `{"A":2}` {
		t.Errorf("expected JSON encoding, got %q", got)
	}
}

func TestLocalCache_MissAndExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewLocalCache(time.Hour, zap.NewNop())
	defer c.Close()

	if _, err := c.Get(ctx, "absent"); !errors.Is(err, ErrMiss) {
		t.Errorf("expected ErrMiss, got %v", err)
	}

	_ = c.Set(ctx, "short", "v", 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	if _, err := c.Get(ctx, "short"); !errors.Is(err, ErrMiss) {
		t.Errorf("expected ErrMiss after expiry, got %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("expected no live entries, got %d", c.Len())
	}
}

func TestLocalCache_Cleanup(t *testing.T) {
	ctx := context.Background()
	c := NewLocalCache(5*time.Millisecond, zap.NewNop())
	defer c.Close()

	_ = c.Set(ctx, "a", "1", time.Millisecond)
	_ = c.Set(ctx, "b", "2", 0)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		c.mu.RLock()
		n := len(c.data)
		c.mu.RUnlock()
		if n == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("expired entry was not cleaned up")
}

func TestLocalCache_Delete(t *testing.T) {
	ctx := context.Background()
	c := NewLocalCache(time.Hour, zap.NewNop())
	defer c.Close()

	_ = c.Set(ctx, "k", "v", 0)
	_ = c.Delete(ctx, "k")
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Errorf("expected ErrMiss after delete, got %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}
}

func TestNew_FallsBackToLocal(t *testing.T) {
	c := New(config.RedisConfig{Enabled: true, URL: "redis://127.0.0.1:1"}, config.CacheConfig{}, zap.NewNop())
	defer c.Close()

	if _, ok := c.(*LocalCache); !ok {
		t.Fatalf("expected local cache fallback, got %T", c)
	}
}

func TestNew_Disabled(t *testing.T) {
	c := New(config.RedisConfig{}, config.CacheConfig{}, zap.NewNop())
	defer c.Close()

	if _, ok := c.(*LocalCache); !ok {
		t.Fatalf("expected local cache, got %T", c)
	}
}
