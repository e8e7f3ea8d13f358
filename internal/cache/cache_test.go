package cache

import (
	"testing"
	"time"
)

func TestGetSet(t *testing.T) {
	c := New[int](8, time.Minute)
	if _, ok := c.Get("index", "a"); ok {
		t.Fatal("unexpected hit on empty cache")
	}
	c.Set("index", "a", 42)
	v, ok := c.Get("index", "a")
	if !ok || v != 42 {
		t.Fatalf("got (%v, %v), want (42, true)", v, ok)
	}
}

func TestFingerprintMiss(t *testing.T) {
	c := New[int](8, time.Minute)
	c.Set("index", "2026-08-01..2026-08-02/10", 1)
	if _, ok := c.Get("index", "2026-08-01..2026-08-03/12"); ok {
		t.Fatal("stale fingerprint must miss")
	}
}

func TestExpiry(t *testing.T) {
	c := New[int](8, 20*time.Millisecond)
	c.Set("rates", "usd", 1)
	time.Sleep(60 * time.Millisecond)
	if _, ok := c.Get("rates", "usd"); ok {
		t.Fatal("entry should have expired")
	}
}

func TestInvalidateOneOperation(t *testing.T) {
	c := New[int](8, time.Minute)
	c.Set("index", "a", 1)
	c.Set("index", "b", 2)
	c.Set("rates", "a", 3)

	c.Invalidate("index")

	if _, ok := c.Get("index", "a"); ok {
		t.Fatal("index/a should be gone")
	}
	if _, ok := c.Get("index", "b"); ok {
		t.Fatal("index/b should be gone")
	}
	if v, ok := c.Get("rates", "a"); !ok || v != 3 {
		t.Fatal("rates entries must survive an index invalidation")
	}
}

func TestOperationsDoNotCollide(t *testing.T) {
	c := New[int](8, time.Minute)
	c.Set("index", "x", 1)
	c.Set("forecast", "x", 2)
	if v, _ := c.Get("index", "x"); v != 1 {
		t.Errorf("index/x = %v, want 1", v)
	}
	if v, _ := c.Get("forecast", "x"); v != 2 {
		t.Errorf("forecast/x = %v, want 2", v)
	}
}
