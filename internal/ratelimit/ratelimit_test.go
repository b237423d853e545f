package ratelimit

import (
	"strconv"
	"sync"
	"testing"
	"time"
)

func TestAllow_BurstThenDeny(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	k := New(1, 3, WithClock(func() time.Time { return now }))

	for i := 0; i < 3; i++ {
		if !k.Allow("user:1") {
			t.Fatalf("call %d should pass within burst", i)
		}
	}
	if k.Allow("user:1") {
		t.Fatalf("4th call should be limited")
	}
	if !k.Allow("user:2") {
		t.Fatalf("other keys must have their own bucket")
	}

	now = now.Add(time.Second)
	if !k.Allow("user:1") {
		t.Fatalf("bucket should refill after 1s at 1 rps")
	}
}

func TestNew_CoercesBurst(t *testing.T) {
	k := New(0, 0)
	if !k.Allow("a") {
		t.Fatalf("burst 0 should be coerced to 1")
	}
	if k.Allow("a") {
		t.Fatalf("rps 0 should never refill")
	}
}

func TestGC_EvictsIdleBuckets(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	k := New(10, 10, WithTTL(time.Minute), WithClock(func() time.Time { return now }))

	k.Allow("stale")
	now = now.Add(2 * time.Minute)
	for i := 0; i < gcEvery; i++ {
		k.Allow("hot")
	}
	k.mu.Lock()
	_, stale := k.visitors["stale"]
	k.mu.Unlock()
	if stale {
		t.Fatalf("idle bucket should have been evicted")
	}
	if k.Len() != 1 {
		t.Fatalf("expected only the hot bucket, got %d", k.Len())
	}
}

func TestAllow_Concurrent(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	k := New(0, 5, WithClock(func() time.Time { return now }))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if k.Allow("shared") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
			k.Allow("k" + strconv.Itoa(i))
		}(i)
	}
	wg.Wait()
	if allowed != 5 {
		t.Fatalf("expected exactly 5 allowed, got %d", allowed)
	}
}
