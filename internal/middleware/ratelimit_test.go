package middleware

import (
	"testing"
	"time"
)

func TestRateLimiter_AllowsBurstThenBlocks(t *testing.T) {
	rl := NewRateLimiter(1, 3)

	key := "1.2.3.4"
	for i := 0; i < 3; i++ {
		if !rl.getLimiter(key).Allow() {
			t.Errorf("attempt %d should have succeeded within burst", i+1)
		}
	}
	if rl.getLimiter(key).Allow() {
		t.Error("4th immediate attempt should have been rate limited")
	}
}

func TestRateLimiter_RefillsOverTime(t *testing.T) {
	rl := NewRateLimiter(50, 1)

	key := "5.6.7.8"
	if !rl.getLimiter(key).Allow() {
		t.Fatal("first attempt should succeed")
	}
	if rl.getLimiter(key).Allow() {
		t.Fatal("second immediate attempt should be rate limited")
	}

	time.Sleep(30 * time.Millisecond)
	if !rl.getLimiter(key).Allow() {
		t.Error("attempt after refill window should succeed")
	}
}

func TestRateLimiter_PerKeyIsolation(t *testing.T) {
	rl := NewRateLimiter(1, 1)

	if !rl.getLimiter("a").Allow() {
		t.Fatal("first key's first attempt should succeed")
	}
	if !rl.getLimiter("b").Allow() {
		t.Error("a different key should have its own independent bucket")
	}
}
