package source

import (
	"bytes"
	"errors"
	"testing"

	"github.com/lvillar/pdfmcp"
)

func TestCachePutGet(t *testing.T) {
	c := NewCache(10, 1024)

	data := []byte("%PDF-1.7 test payload")
	key, err := c.Put(data, "test.pdf")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if key == "" {
		t.Fatal("Put returned an empty key")
	}

	got, err := c.Get(key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Get returned %q, want %q", got, data)
	}
}

func TestCacheMiss(t *testing.T) {
	c := NewCache(10, 1024)

	_, err := c.Get("no-such-key")
	if !errors.Is(err, pdfmcp.ErrCacheMiss) {
		t.Errorf("got %v, want ErrCacheMiss", err)
	}
}

func TestCacheEvictsByEntryCount(t *testing.T) {
	c := NewCache(2, 1<<20)

	k1, _ := c.Put([]byte("one"), "1")
	k2, _ := c.Put([]byte("two"), "2")
	k3, _ := c.Put([]byte("three"), "3")

	if _, err := c.Get(k1); !errors.Is(err, pdfmcp.ErrCacheMiss) {
		t.Error("oldest entry should have been evicted")
	}
	for _, k := range []string{k2, k3} {
		if _, err := c.Get(k); err != nil {
			t.Errorf("entry %s unexpectedly evicted: %v", k, err)
		}
	}
}

func TestCacheEvictsByBytes(t *testing.T) {
	c := NewCache(10, 10)

	k1, _ := c.Put(make([]byte, 6), "a")
	k2, _ := c.Put(make([]byte, 6), "b")

	if _, err := c.Get(k1); !errors.Is(err, pdfmcp.ErrCacheMiss) {
		t.Error("first entry should have been evicted to fit the second")
	}
	if _, err := c.Get(k2); err != nil {
		t.Errorf("second entry unexpectedly evicted: %v", err)
	}
}

func TestCacheGetRefreshesRecency(t *testing.T) {
	c := NewCache(2, 1<<20)

	k1, _ := c.Put([]byte("one"), "1")
	k2, _ := c.Put([]byte("two"), "2")

	// Touch k1 so k2 becomes the eviction candidate.
	if _, err := c.Get(k1); err != nil {
		t.Fatalf("Get: %v", err)
	}
	c.Put([]byte("three"), "3")

	if _, err := c.Get(k1); err != nil {
		t.Error("recently used entry was evicted")
	}
	if _, err := c.Get(k2); !errors.Is(err, pdfmcp.ErrCacheMiss) {
		t.Error("least recently used entry survived eviction")
	}
}

func TestCachePutOversized(t *testing.T) {
	c := NewCache(10, 8)

	if _, err := c.Put(make([]byte, 9), "big"); err == nil {
		t.Fatal("expected an error for data larger than the byte cap")
	}
	if c.Len() != 0 {
		t.Errorf("cache holds %d entries, want 0", c.Len())
	}
}

func TestCacheRemoveAndClear(t *testing.T) {
	c := NewCache(10, 1024)

	key, _ := c.Put([]byte("data"), "doc")
	if !c.Remove(key) {
		t.Error("Remove returned false for a present key")
	}
	if c.Remove(key) {
		t.Error("Remove returned true for an absent key")
	}

	c.Put([]byte("a"), "a")
	c.Put([]byte("b"), "b")
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("cache holds %d entries after Clear, want 0", c.Len())
	}
}

func TestCacheEntries(t *testing.T) {
	c := NewCache(10, 1024)

	c.Put([]byte("older"), "first.pdf")
	c.Put([]byte("newest"), "second.pdf")

	infos := c.Entries()
	if len(infos) != 2 {
		t.Fatalf("got %d entries, want 2", len(infos))
	}
	if infos[0].Name != "second.pdf" {
		t.Errorf("most recent entry is %q, want second.pdf", infos[0].Name)
	}
	if infos[0].Size != 6 {
		t.Errorf("entry size = %d, want 6", infos[0].Size)
	}
	if infos[0].StoredAt.IsZero() {
		t.Error("StoredAt not set")
	}
}
