package provider

import (
	"sync"
	"time"
)

// meter tracks a vendor's request quota over two rolling windows: one
// minute and one day. A cap of 0 means unlimited. Both windows roll the
// same way, from the instant the first counted request opened them;
// there is no midnight-aligned special case for the daily cap.
type meter struct {
	perMinute int
	perDay    int

	mu          sync.Mutex
	minuteUsed  int
	dayUsed     int
	minuteStart time.Time
	dayStart    time.Time
	lastErr     string

	now func() time.Time
}

func newMeter(perMinute, perDay int) *meter {
	return &meter{perMinute: perMinute, perDay: perDay, now: time.Now}
}

// allow reports whether a request may be issued right now. It rolls
// expired windows but does not consume quota; record does that once a
// real vendor response has been received.
func (m *meter) allow() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roll()
	if m.perMinute > 0 && m.minuteUsed >= m.perMinute {
		return false
	}
	if m.perDay > 0 && m.dayUsed >= m.perDay {
		return false
	}
	return true
}

// record counts one completed vendor call against both windows.
func (m *meter) record() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roll()
	if m.minuteUsed == 0 {
		m.minuteStart = m.now()
	}
	if m.dayUsed == 0 {
		m.dayStart = m.now()
	}
	m.minuteUsed++
	m.dayUsed++
}

func (m *meter) roll() {
	now := m.now()
	if m.minuteUsed > 0 && now.Sub(m.minuteStart) > time.Minute {
		m.minuteUsed = 0
	}
	if m.dayUsed > 0 && now.Sub(m.dayStart) > 24*time.Hour {
		m.dayUsed = 0
	}
}

// fail records the most recent vendor error for status reporting.
func (m *meter) fail(err error) {
	if err == nil {
		return
	}
	m.mu.Lock()
	m.lastErr = err.Error()
	m.mu.Unlock()
}

func (m *meter) lastError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// remaining returns the requests left in the tighter window, or nil when
// the vendor is uncapped. resetAt is when that window rolls over.
func (m *meter) remaining() (left *int, resetAt *time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roll()

	if m.perMinute > 0 {
		n := m.perMinute - m.minuteUsed
		if n < 0 {
			n = 0
		}
		left = &n
		if m.minuteUsed > 0 {
			t := m.minuteStart.Add(time.Minute)
			resetAt = &t
		}
	}
	if m.perDay > 0 {
		n := m.perDay - m.dayUsed
		if n < 0 {
			n = 0
		}
		if left == nil || n < *left {
			left = &n
			if m.dayUsed > 0 {
				t := m.dayStart.Add(24 * time.Hour)
				resetAt = &t
			}
		}
	}
	return left, resetAt
}
