package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/verilabel-ai/verilabel/internal/config"
)

func TestMemoryClient_SetGet(t *testing.T) {
	c := NewMemoryClient(8)
	ctx := context.Background()

	if err := c.Set(ctx, "doc-1", []byte("result"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	val, err := c.Get(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(val) != "result" {
		t.Errorf("Expected 'result', got %q", val)
	}
}

func TestMemoryClient_Miss(t *testing.T) {
	c := NewMemoryClient(8)

	_, err := c.Get(context.Background(), "absent")
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}
}

func TestMemoryClient_Expiry(t *testing.T) {
	c := NewMemoryClient(8)
	ctx := context.Background()

	if err := c.Set(ctx, "short", []byte("v"), 10*time.Millisecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	if _, err := c.Get(ctx, "short"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected expired entry to miss, got %v", err)
	}
}

func TestMemoryClient_Delete(t *testing.T) {
	c := NewMemoryClient(8)
	ctx := context.Background()

	_ = c.Set(ctx, "doc", []byte("v"), time.Minute)
	if err := c.Delete(ctx, "doc"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := c.Get(ctx, "doc"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected miss after delete, got %v", err)
	}
}

func TestMemoryClient_EvictsWhenFull(t *testing.T) {
	c := NewMemoryClient(4)
	ctx := context.Background()

	// Earlier entries expire sooner, so they are the eviction victims.
	for i := 0; i < 4; i++ {
		_ = c.Set(ctx, fmt.Sprintf("key-%d", i), []byte("v"), time.Minute+time.Duration(i)*time.Second)
	}
	_ = c.Set(ctx, "key-4", []byte("v"), 10*time.Minute)

	if _, err := c.Get(ctx, "key-0"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected oldest entry evicted, got %v", err)
	}
	if _, err := c.Get(ctx, "key-4"); err != nil {
		t.Errorf("Expected newest entry present, got %v", err)
	}
}

func TestNewClient_UnknownDriver(t *testing.T) {
	_, err := NewClient(config.CacheConfig{Driver: "memcached"})
	if err == nil {
		t.Fatal("Expected error for unknown driver")
	}
}

func TestNewClient_Memory(t *testing.T) {
	c, err := NewClient(config.CacheConfig{Driver: "memory", MaxEntries: 16})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	defer c.Close()

	if _, ok := c.(*MemoryClient); !ok {
		t.Errorf("Expected *MemoryClient, got %T", c)
	}
}
