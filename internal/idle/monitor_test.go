package idle

import (
	"testing"
	"time"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func TestFiresOncePerIdlePeriod(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewMonitor(clock.Now)
	m.Touch()

	clock.now = clock.now.Add(2999 * time.Millisecond)
	if _, ok := m.MaybeSpeak(true, DefaultThreshold, "hello world"); ok {
		t.Fatal("should not fire before the threshold")
	}

	clock.now = clock.now.Add(time.Millisecond)
	text, ok := m.MaybeSpeak(true, DefaultThreshold, "hello world")
	if !ok || text != "hello world" {
		t.Fatalf("expected to speak the sentence, got %q %v", text, ok)
	}

	clock.now = clock.now.Add(500 * time.Millisecond)
	if _, ok := m.MaybeSpeak(true, DefaultThreshold, "hello world"); ok {
		t.Fatal("must not re-fire without new activity")
	}
	clock.now = clock.now.Add(time.Hour)
	if _, ok := m.MaybeSpeak(true, DefaultThreshold, "hello world"); ok {
		t.Fatal("must not re-fire without new activity, however long")
	}

	m.Touch()
	clock.now = clock.now.Add(DefaultThreshold)
	if _, ok := m.MaybeSpeak(true, DefaultThreshold, "hello world"); !ok {
		t.Fatal("expected to fire again after new activity")
	}
}

func TestDisabledOrBlankSentence(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewMonitor(clock.Now)
	clock.now = clock.now.Add(10 * time.Second)

	if _, ok := m.MaybeSpeak(false, DefaultThreshold, "hello"); ok {
		t.Fatal("disabled monitor must not fire")
	}
	if _, ok := m.MaybeSpeak(true, DefaultThreshold, "   "); ok {
		t.Fatal("blank sentence must not be spoken")
	}
	if _, ok := m.MaybeSpeak(true, DefaultThreshold, "hello"); !ok {
		t.Fatal("blank check must not disarm the monitor")
	}
}

func TestIdleDuration(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewMonitor(clock.Now)
	clock.now = clock.now.Add(1500 * time.Millisecond)
	if got := m.Idle(); got != 1500*time.Millisecond {
		t.Fatalf("expected 1.5s idle, got %v", got)
	}
}
