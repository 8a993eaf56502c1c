package cache_test

import (
	"testing"
	"time"

	"github.com/concilia-app/concilia-api/internal/infra/cache"
)

func TestCache_SetAndGet(t *testing.T) {
	c := cache.New[string](5 * time.Minute)

	c.Set("key1", "value1")
	val, ok := c.Get("key1")
	if !ok {
		t.Fatal("expected key to exist")
	}
	if val != "value1" {
		t.Errorf("expected 'value1', got '%s'", val)
	}
}

func TestCache_GetMiss(t *testing.T) {
	c := cache.New[string](5 * time.Minute)

	_, ok := c.Get("nonexistent")
	if ok {
		t.Fatal("expected cache miss for nonexistent key")
	}
}

func TestCache_Expiration(t *testing.T) {
	c := cache.New[string](50 * time.Millisecond)

	c.Set("key1", "value1")
	time.Sleep(100 * time.Millisecond)

	_, ok := c.Get("key1")
	if ok {
		t.Fatal("expected cache entry to be expired")
	}
}

func TestCache_SetTTLOverride(t *testing.T) {
	c := cache.New[string](5 * time.Minute)

	c.SetTTL("short", "v", 50*time.Millisecond)
	c.Set("long", "v")
	time.Sleep(100 * time.Millisecond)

	if _, ok := c.Get("short"); ok {
		t.Fatal("expected short-TTL entry to be expired")
	}
	if _, ok := c.Get("long"); !ok {
		t.Fatal("expected default-TTL entry to survive")
	}
}

func TestCache_Delete(t *testing.T) {
	c := cache.New[string](5 * time.Minute)

	c.Set("key1", "value1")
	c.Delete("key1")

	_, ok := c.Get("key1")
	if ok {
		t.Fatal("expected key to be deleted")
	}
}

func TestCache_DeletePrefix(t *testing.T) {
	c := cache.New[int](5 * time.Minute)

	c.Set("recon:t1:a", 1)
	c.Set("recon:t1:b", 2)
	c.Set("recon:t2:a", 3)

	if n := c.DeletePrefix("recon:t1:"); n != 2 {
		t.Errorf("expected 2 entries dropped, got %d", n)
	}
	if _, ok := c.Get("recon:t1:a"); ok {
		t.Fatal("expected recon:t1:a to be gone")
	}
	if _, ok := c.Get("recon:t2:a"); !ok {
		t.Fatal("expected recon:t2:a to survive")
	}
}
