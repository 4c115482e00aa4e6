package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestTTLGetSet(t *testing.T) {
	c := NewTTL[int](64, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Fatal("expected miss for absent key")
	}

	c.Set("a", 1)
	v, ok := c.Get("a")
	if !ok || v != 1 {
		t.Fatalf("expected hit with value 1, got %v %v", v, ok)
	}
}

func TestTTLExpiry(t *testing.T) {
	c := NewTTL[string](64, 50*time.Millisecond)

	now := time.Now()
	c.nowFunc = func() time.Time { return now }
	c.Set("k", "v")

	if _, ok := c.Get("k"); !ok {
		t.Fatal("expected hit before expiry")
	}

	c.nowFunc = func() time.Time { return now.Add(100 * time.Millisecond) }
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected miss after expiry")
	}
}

func TestTTLOnceCoalesces(t *testing.T) {
	c := NewTTL[struct{}](1024, time.Minute)

	var wg sync.WaitGroup
	wins := make(chan bool, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wins <- c.Once("same-key", struct{}{})
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for w := range wins {
		if w {
			won++
		}
	}
	if won != 1 {
		t.Fatalf("expected exactly one winner, got %d", won)
	}
}

func TestTTLOnceAgainAfterExpiry(t *testing.T) {
	c := NewTTL[struct{}](64, time.Minute)

	now := time.Now()
	c.nowFunc = func() time.Time { return now }

	if !c.Once("k", struct{}{}) {
		t.Fatal("first Once should win")
	}
	if c.Once("k", struct{}{}) {
		t.Fatal("second Once inside the window should lose")
	}

	c.nowFunc = func() time.Time { return now.Add(2 * time.Minute) }
	if !c.Once("k", struct{}{}) {
		t.Fatal("Once after expiry should win again")
	}
}

func TestTTLGetOrCreate(t *testing.T) {
	c := NewTTL[*int](64, time.Minute)

	builds := 0
	build := func() *int {
		builds++
		n := builds
		return &n
	}

	first := c.GetOrCreate("k", build)
	second := c.GetOrCreate("k", build)

	if first != second {
		t.Fatal("expected the same instance for repeated keys")
	}
	if builds != 1 {
		t.Fatalf("expected a single build, got %d", builds)
	}
}

func TestTTLCapacityBound(t *testing.T) {
	c := NewTTL[int](shardCount, time.Minute) // one entry per shard

	for i := 0; i < 10*shardCount; i++ {
		c.Set(fmt.Sprintf("key-%d", i), i)
	}

	if got := c.Len(); got > shardCount {
		t.Fatalf("cache exceeded capacity: %d entries", got)
	}
}
