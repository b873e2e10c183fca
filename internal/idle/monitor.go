// Package idle speaks the accumulated sentence once after a period without
// processed observations.
package idle

import (
	"strings"
	"time"
)

const DefaultThreshold = 3 * time.Second

// Monitor tracks the last activity time. After it fires it stays disarmed
// until the next Touch, so one idle period yields at most one utterance.
type Monitor struct {
	lastActivity time.Time
	armed        bool
	clock        func() time.Time
}

func NewMonitor(clock func() time.Time) *Monitor {
	if clock == nil {
		clock = time.Now
	}
	return &Monitor{lastActivity: clock(), armed: true, clock: clock}
}

// Touch records activity now and re-arms the monitor.
func (m *Monitor) Touch() {
	m.lastActivity = m.clock()
	m.armed = true
}

// MaybeSpeak returns the text to speak, if any. sentence is the current
// buffer contents; the whole untrimmed sentence is returned when firing.
func (m *Monitor) MaybeSpeak(enabled bool, threshold time.Duration, sentence string) (string, bool) {
	if !enabled || !m.armed {
		return "", false
	}
	if m.clock().Sub(m.lastActivity) < threshold {
		return "", false
	}
	if strings.TrimSpace(sentence) == "" {
		return "", false
	}
	m.armed = false
	return sentence, true
}

// Idle returns the time since the last activity.
func (m *Monitor) Idle() time.Duration {
	return m.clock().Sub(m.lastActivity)
}

func (m *Monitor) LastActivity() time.Time {
	return m.lastActivity
}
