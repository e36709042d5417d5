package saga

import (
	"sync"
	"time"
)

// AlertEvent reports a burst of failures in one intent family.
type AlertEvent struct {
	Family    Family    `json:"family"`
	Message   string    `json:"message"`
	Count     int       `json:"count"`
	Threshold int       `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// AlertFunc is invoked when a family's failure count reaches the threshold
// within the window.
type AlertFunc func(AlertEvent)

const (
	defaultFailureWindow    = 1 * time.Minute
	defaultFailureThreshold = 5
)

// failureCollector keeps a sliding window of failure times per family.
type failureCollector struct {
	mu        sync.Mutex
	failures  map[Family][]time.Time
	window    time.Duration
	threshold int
	alertFn   AlertFunc
	now       func() time.Time
}

func newFailureCollector(threshold int, window time.Duration, fn AlertFunc) *failureCollector {
	if threshold <= 0 {
		threshold = defaultFailureThreshold
	}
	if window <= 0 {
		window = defaultFailureWindow
	}
	return &failureCollector{
		failures:  make(map[Family][]time.Time),
		window:    window,
		threshold: threshold,
		alertFn:   fn,
		now:       time.Now,
	}
}

func (m *failureCollector) record(f Family, lastMessage string) {
	if m == nil || m.alertFn == nil {
		return
	}
	m.mu.Lock()
	now := m.now()
	times := trimWindow(append(m.failures[f], now), now, m.window)
	var ev *AlertEvent
	if len(times) >= m.threshold {
		ev = &AlertEvent{
			Family:    f,
			Message:   lastMessage,
			Count:     len(times),
			Threshold: m.threshold,
			Timestamp: now,
		}
		// Reset to avoid repeated alerts within the same burst.
		times = times[:0]
	}
	m.failures[f] = times
	m.mu.Unlock()

	if ev != nil {
		m.alertFn(*ev)
	}
}

// trimWindow removes entries older than (now - window) from the sorted slice.
func trimWindow(times []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	start := 0
	for start < len(times) && times[start].Before(cutoff) {
		start++
	}
	return times[start:]
}
