package provider

import (
	"testing"
	"time"
)

func TestMeter_MinuteWindowExhaustsAndRolls(t *testing.T) {
	now := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	m := newMeter(3, 0)
	m.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !m.allow() {
			t.Fatalf("call %d should be allowed", i+1)
		}
		m.record()
	}
	if m.allow() {
		t.Fatal("4th call within the minute should be refused")
	}

	// 61 seconds later the window has rolled.
	now = now.Add(61 * time.Second)
	if !m.allow() {
		t.Fatal("call after window roll should be allowed")
	}
}

func TestMeter_ExactlyAtWindowEdgeStillRefused(t *testing.T) {
	now := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	m := newMeter(1, 0)
	m.now = func() time.Time { return now }

	m.record()
	now = now.Add(60 * time.Second)
	if m.allow() {
		t.Fatal("window rolls only after more than 60s have elapsed")
	}
}

func TestMeter_DailyWindow(t *testing.T) {
	now := time.Date(2025, 6, 2, 23, 0, 0, 0, time.UTC)
	m := newMeter(0, 2)
	m.now = func() time.Time { return now }

	m.record()
	m.record()
	if m.allow() {
		t.Fatal("daily cap should refuse the 3rd call")
	}

	// The daily window is rolling, not midnight-aligned.
	now = now.Add(2 * time.Hour)
	if m.allow() {
		t.Fatal("2 hours later the rolling day window is still open")
	}
	now = now.Add(23 * time.Hour)
	if !m.allow() {
		t.Fatal("after more than 24h the daily window has rolled")
	}
}

func TestMeter_UnlimitedNeverRefuses(t *testing.T) {
	m := newMeter(0, 0)
	for i := 0; i < 1000; i++ {
		if !m.allow() {
			t.Fatal("uncapped meter must always allow")
		}
		m.record()
	}
	left, reset := m.remaining()
	if left != nil || reset != nil {
		t.Fatalf("uncapped meter reports remaining=%v reset=%v", left, reset)
	}
}

func TestMeter_RemainingTracksTighterWindow(t *testing.T) {
	now := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	m := newMeter(5, 25)
	m.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		m.record()
	}
	left, reset := m.remaining()
	if left == nil || *left != 0 {
		t.Fatalf("want 0 remaining, got %v", left)
	}
	if reset == nil || !reset.Equal(now.Add(time.Minute)) {
		t.Fatalf("want reset at +1m, got %v", reset)
	}

	// After the minute rolls, the fresh minute window is still the
	// tighter of the two (5 left vs 20 against the daily cap).
	now = now.Add(2 * time.Minute)
	left, _ = m.remaining()
	if left == nil || *left != 5 {
		t.Fatalf("want 5 remaining, got %v", left)
	}
}
