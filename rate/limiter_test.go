package rate

import (
	"testing"
	"time"
)

func TestLimiter(t *testing.T) {
	interval := 20 * time.Millisecond
	lim := NewLimiter(1, interval, time.Hour)

	tooshort := 1 * time.Millisecond

	client := "test@test.com"
	expected := []bool{true, false, true, false}
	waits := []time.Duration{tooshort, 2 * interval, tooshort, tooshort}
	for i, exp := range expected {
		if got := lim.Allow(client); got != exp {
			t.Fatalf("iteration %d: expected %v, but got %v", i, exp, got)
		}
		time.Sleep(waits[i])
	}
}

func TestLimiterWithBurst(t *testing.T) {
	client := "test@test.com"
	burst := 10

	lim := NewLimiter(burst, time.Hour, time.Hour)
	for i := 0; i < burst; i++ {
		if !lim.Allow(client) {
			t.Fatalf("iteration %d: expected burst to be allowed", i)
		}
	}
	if lim.Allow(client) {
		t.Fatal("expected the request after the burst to be rejected")
	}
	if !lim.Allow("other@test.com") {
		t.Fatal("expected a different client to have its own bucket")
	}
}

func TestLimiterEvict(t *testing.T) {
	lim := NewLimiter(1, time.Second, time.Minute)
	lim.Allow("a")
	lim.Allow("b")

	lim.evict(time.Now().Add(2 * time.Minute))
	if n := lim.size(); n != 0 {
		t.Fatalf("expected idle clients to be evicted, %d left", n)
	}
}
