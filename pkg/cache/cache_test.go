package cache

import (
	"testing"
	"time"
)

func TestSetGetAndExpiry(t *testing.T) {
	c := NewInMemoryCache[string, int](50 * time.Millisecond)
	defer c.Stop()

	if _, ok := c.Get("missing"); ok {
		t.Error("未写入的键不应命中")
	}

	c.Set("a", 1)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("TTL 内应命中，实际 ok=%v v=%d", ok, v)
	}

	time.Sleep(80 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Error("过期条目不应命中")
	}
}

func TestDelete(t *testing.T) {
	c := NewInMemoryCache[string, string](time.Minute)
	defer c.Stop()

	c.Set("k", "v")
	c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Error("删除后不应命中")
	}
	if c.Len() != 0 {
		t.Errorf("删除后条目数应为 0，实际 %d", c.Len())
	}
}

func TestStopIsIdempotent(t *testing.T) {
	c := NewInMemoryCache[string, int](time.Minute)
	c.Stop()
	c.Stop()
}
