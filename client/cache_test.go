package client

import (
	"bytes"
	"testing"
)

func TestCacheReadMissOnEmpty(t *testing.T) {
	c := newDataCache(4)
	_, ok := c.Read("f", 0, 10)
	if ok {
		t.Fatal("expected a miss on an empty cache")
	}
}

func TestCacheReadFullHit(t *testing.T) {
	c := newDataCache(4)
	c.Update("f", 0, 9, []byte("0123456789"))
	data, ok := c.Read("f", 2, 5)
	if !ok {
		t.Fatal("expected a hit")
	}
	if string(data) != "2345" {
		t.Errorf("expected 2345, got %q", data)
	}
}

func TestCacheReadPartialIsMiss(t *testing.T) {
	c := newDataCache(4)
	c.Update("f", 0, 4, []byte("01234"))
	_, ok := c.Read("f", 0, 9)
	if ok {
		t.Error("expected a miss when the tail of the range isn't cached")
	}
}

// TestCacheUpdateSplitsOverlappingBlock reproduces Read(0..511) then
// Read(0..1023): the second read misses at 512, refetches the whole
// [0,1023] range, and Update must not leave the original [0,511] block
// sitting alongside the new one, which would leave two blocks covering
// byte 0 at once.
func TestCacheUpdateSplitsOverlappingBlock(t *testing.T) {
	c := newDataCache(16)
	c.Update("f", 0, 511, bytes.Repeat([]byte{0xAA}, 512))

	full := make([]byte, 1024)
	for i := range full {
		full[i] = byte(i % 256)
	}
	c.Update("f", 0, 1023, full)

	if got := len(c.sortedKeys("f")); got != 1 {
		t.Fatalf("expected exactly one block covering [0,1023], got %d blocks", got)
	}
	got, ok := c.Read("f", 0, 1023)
	if !ok {
		t.Fatal("expected a full hit across the re-fetched range")
	}
	if !bytes.Equal(got, full) {
		t.Errorf("expected the fresh fetch's bytes, got stale data from the surviving old block")
	}
}

// TestCacheUpdateTrimsBlockExtendingPastNewRange covers the other half
// of the split: an existing block that extends beyond the newly
// fetched range keeps the still-valid remainder instead of being
// dropped outright.
func TestCacheUpdateTrimsBlockExtendingPastNewRange(t *testing.T) {
	c := newDataCache(16)
	full := make([]byte, 2001)
	for i := range full {
		full[i] = byte(i % 256)
	}
	c.Update("f", 500, 2000, full[500:2001])

	c.Update("f", 0, 1023, full[0:1024])

	got, ok := c.Read("f", 0, 2000)
	if !ok {
		t.Fatal("expected [0,2000] to be fully covered by the new block plus the trimmed remainder")
	}
	if !bytes.Equal(got, full[0:2001]) {
		t.Errorf("expected contiguous bytes across the split, got mismatched data")
	}
}

// TestCacheInvalidationScenario mirrors scenario 2: A reads 0..1023 of
// "f" (cache filled); B writes 0xFF to 512..767; invalidating that range
// must leave 0..511 and 768..1023 intact but drop 512..767 entirely.
func TestCacheInvalidationScenario(t *testing.T) {
	c := newDataCache(16)
	data := make([]byte, 1024)
	for i := range data {
		data[i] = byte(i % 256)
	}
	c.Update("f", 0, 1023, data)

	c.Invalidate("f", cacheRange{512, 767})

	if _, ok := c.Read("f", 0, 1023); ok {
		t.Error("expected a miss across the invalidated gap")
	}
	if got, ok := c.Read("f", 0, 511); !ok || !bytes.Equal(got, data[0:512]) {
		t.Errorf("expected bytes 0..511 to survive invalidation intact, ok=%v got=%v", ok, got)
	}
	if got, ok := c.Read("f", 768, 1023); !ok || !bytes.Equal(got, data[768:1024]) {
		t.Errorf("expected bytes 768..1023 to survive invalidation intact, ok=%v got=%v", ok, got)
	}
	if _, ok := c.Read("f", 512, 767); ok {
		t.Error("expected the revoked range to miss entirely")
	}
}

// TestCacheLRUEviction mirrors scenario 6: cap=4, four disjoint blocks
// are read, then a fifth; the least-recently-touched of the first four
// must be gone.
func TestCacheLRUEviction(t *testing.T) {
	c := newDataCache(4)
	c.Update("f", 0, 9, []byte("aaaaaaaaaa"))
	c.Update("f", 20, 29, []byte("bbbbbbbbbb"))
	c.Update("f", 40, 49, []byte("cccccccccc"))
	c.Update("f", 60, 69, []byte("dddddddddd"))

	// Touch everything but the first block, so it becomes the LRU victim.
	c.Read("f", 20, 29)
	c.Read("f", 40, 49)
	c.Read("f", 60, 69)

	c.Update("f", 80, 89, []byte("eeeeeeeeee"))

	if c.Len() != 4 {
		t.Fatalf("expected cache to stay at cap 4, got %d", c.Len())
	}
	if _, ok := c.Read("f", 0, 9); ok {
		t.Error("expected the least-recently-touched block to have been evicted")
	}
	if _, ok := c.Read("f", 80, 89); !ok {
		t.Error("expected the newly inserted block to be present")
	}
}

func TestCacheClose(t *testing.T) {
	c := newDataCache(4)
	c.Update("f", 0, 9, []byte("0123456789"))
	c.Update("g", 0, 9, []byte("0123456789"))

	evicted := c.Close("f")
	if evicted != 1 {
		t.Errorf("expected 1 block evicted by close, got %d", evicted)
	}
	if _, ok := c.Read("f", 0, 9); ok {
		t.Error("expected f's blocks to be gone after close")
	}
	if _, ok := c.Read("g", 0, 9); !ok {
		t.Error("expected g's blocks to survive closing f")
	}
}
