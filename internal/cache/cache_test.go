package cache

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache(cfg Config) (*Cache[string], *fakeClock) {
	clk := &fakeClock{t: time.Unix(1700000000, 0)}
	c := New[string](cfg)
	c.now = clk.now
	return c, clk
}

func TestCache_GetPut(t *testing.T) {
	cache, _ := newTestCache(Config{})

	cache.Put("entities:ada", "snapshot")
	got, found := cache.Get("entities:ada")
	if !found {
		t.Fatal("Data not found in cache")
	}
	if got != "snapshot" {
		t.Errorf("Retrieved %q, want %q", got, "snapshot")
	}

	if _, found := cache.Get("non-existent"); found {
		t.Error("Found non-existent key")
	}

	stats := cache.GetStats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("Expected 1 hit and 1 miss, got %+v", stats)
	}
	if stats.EntryCount != 1 {
		t.Errorf("Expected 1 entry, got %d", stats.EntryCount)
	}
}

func TestCache_Expiration(t *testing.T) {
	cache, clk := newTestCache(Config{MaxAge: time.Minute})

	cache.Put("k", "v")
	clk.advance(30 * time.Second)
	if _, ok := cache.Get("k"); !ok {
		t.Fatal("entry expired too early")
	}
	clk.advance(31 * time.Second)
	if _, ok := cache.Get("k"); ok {
		t.Fatal("entry should have expired")
	}
	if cache.Len() != 0 {
		t.Error("expired entry not removed")
	}
	if cache.GetStats().Expired != 1 {
		t.Errorf("Expected 1 expiry, got %d", cache.GetStats().Expired)
	}
}

func TestCache_NeverExpires(t *testing.T) {
	cache, clk := newTestCache(Config{MaxAge: -1})
	cache.Put("k", "v")
	clk.advance(24 * 365 * time.Hour)
	if _, ok := cache.Get("k"); !ok {
		t.Error("entry should never expire")
	}
}

func TestCache_Eviction(t *testing.T) {
	tests := []struct {
		name     string
		strategy EvictionStrategy
		evicted  string
	}{
		{"LRU", LRU, "c"},
		{"LFU", LFU, "b"},
		{"FIFO", FIFO, "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache, clk := newTestCache(Config{MaxEntries: 3, Strategy: tt.strategy})

			cache.Put("a", "1")
			clk.advance(time.Second)
			cache.Put("b", "2")
			clk.advance(time.Second)
			cache.Put("c", "3")
			clk.advance(time.Second)

			// a: 2 reads, most recent; b: 1 read; c: 2 reads, oldest access
			cache.Get("c")
			cache.Get("c")
			clk.advance(time.Second)
			cache.Get("b")
			clk.advance(time.Second)
			cache.Get("a")
			cache.Get("a")
			clk.advance(time.Second)

			cache.Put("d", "4")

			if _, ok := cache.Get(tt.evicted); ok {
				t.Errorf("%s should have been evicted", tt.evicted)
			}
			if cache.Len() != 3 {
				t.Errorf("Expected 3 entries, got %d", cache.Len())
			}
			if cache.GetStats().Evictions != 1 {
				t.Errorf("Expected 1 eviction, got %d", cache.GetStats().Evictions)
			}
		})
	}
}

func TestCache_ExpiredEvictedFirst(t *testing.T) {
	cache, clk := newTestCache(Config{MaxEntries: 2, MaxAge: time.Minute})
	cache.Put("old", "1")
	clk.advance(2 * time.Minute)
	cache.Put("fresh", "2")
	cache.Get("old") // miss, removes it

	cache.Put("a", "3")
	cache.Put("b", "4")
	if cache.Len() != 2 {
		t.Errorf("Expected 2 entries, got %d", cache.Len())
	}
}

func TestCache_InvalidatePrefix(t *testing.T) {
	cache, _ := newTestCache(Config{})
	cache.Put(Key("neighborhood", "/a"), "1")
	cache.Put(Key("neighborhood", "/b"), "2")
	cache.Put(Key("entities", "/x"), "3")

	if n := cache.InvalidatePrefix("neighborhood:"); n != 2 {
		t.Errorf("Expected 2 invalidated, got %d", n)
	}
	if _, ok := cache.Get(Key("entities", "/x")); !ok {
		t.Error("unrelated entry removed")
	}

	if n := cache.InvalidatePrefix(""); n != 1 {
		t.Errorf("Expected empty prefix to remove the remaining entry, got %d", n)
	}
	if cache.Len() != 0 || cache.GetStats().EntryCount != 0 {
		t.Error("entries left behind")
	}
}

func TestCache_Overwrite(t *testing.T) {
	cache, _ := newTestCache(Config{MaxEntries: 1})
	cache.Put("k", "v1")
	cache.Put("k", "v2")
	if v, _ := cache.Get("k"); v != "v2" {
		t.Errorf("got %q, want v2", v)
	}
	if cache.GetStats().Evictions != 0 {
		t.Error("overwrite should not evict")
	}
}

func TestKey(t *testing.T) {
	if Key("s", "ab", "c") == Key("s", "a", "bc") {
		t.Error("length prefixes should keep split inputs distinct")
	}
	if Key("s", "x", "y") != Key("s", "x", "y") {
		t.Error("Key should be deterministic")
	}
	if Key("entities", "x") == Key("neighborhood", "x") {
		t.Error("scope should be part of the key")
	}
	if k := Key("entities", "x"); !strings.HasPrefix(k, "entities:") {
		t.Errorf("Key %q lacks its scope prefix", k)
	}
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in   string
		want EvictionStrategy
		err  bool
	}{
		{"", LRU, false},
		{"lru", LRU, false},
		{"LFU", LFU, false},
		{"Fifo", FIFO, false},
		{"random", LRU, true},
	}
	for _, tt := range tests {
		got, err := ParseStrategy(tt.in)
		if (err != nil) != tt.err {
			t.Errorf("ParseStrategy(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseStrategy(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if FIFO.String() != "fifo" {
		t.Errorf("FIFO.String() = %q", FIFO.String())
	}
}

func TestCache_Concurrent(t *testing.T) {
	cache := New[int](Config{MaxEntries: 50})
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", (g*31+i)%80)
				cache.Put(key, i)
				cache.Get(key)
			}
		}(g)
	}
	wg.Wait()
	if cache.Len() > 50 {
		t.Errorf("cache grew past its bound: %d", cache.Len())
	}
}
