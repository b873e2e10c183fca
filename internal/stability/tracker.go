// Package stability decides when a stream of noisy classifier observations
// has settled on one label for long enough to be committed.
package stability

import (
	"time"

	"github.com/loqalabs/signspeak/internal/protocol"
)

// DefaultDwell is the minimum continuous time a label must stay above the
// confidence threshold before it counts as stable.
const DefaultDwell = 800 * time.Millisecond

// Decision is the outcome of evaluating one observation.
type Decision struct {
	Stable      bool   `json:"stable"`
	StableLabel string `json:"stable_label,omitempty"`
	SpeakNow    bool   `json:"speak_now"`
	SpokenLabel string `json:"spoken_label,omitempty"`
}

// State is a read-only snapshot of the tracker.
type State struct {
	LastLabel   string    `json:"last_label"`
	StableStart time.Time `json:"stable_start"`
	LastSpoken  string    `json:"last_spoken"`
}

// Tracker holds the stability and spoken state. It is not safe for
// concurrent use; the owning session serializes access.
type Tracker struct {
	lastLabel   string
	stableStart time.Time
	lastSpoken  string
	clock       func() time.Time
}

func NewTracker(clock func() time.Time) *Tracker {
	if clock == nil {
		clock = time.Now
	}
	return &Tracker{clock: clock}
}

// Evaluate folds obs into the tracker state. threshold is re-read on every
// call; dwell is normally DefaultDwell.
func (t *Tracker) Evaluate(obs protocol.Observation, threshold float64, dwell time.Duration) Decision {
	now := t.clock()
	confident := obs.Confident(threshold)

	if confident {
		if obs.Label != t.lastLabel {
			t.lastLabel = obs.Label
			t.stableStart = now
		}
	} else {
		t.lastLabel = ""
		t.stableStart = time.Time{}
	}

	var d Decision
	if t.lastLabel != "" && !t.stableStart.IsZero() && now.Sub(t.stableStart) >= dwell {
		d.Stable = true
		d.StableLabel = t.lastLabel
	}

	if confident && obs.Label != t.lastSpoken {
		t.lastSpoken = obs.Label
		d.SpeakNow = true
		d.SpokenLabel = obs.Label
	}
	return d
}

// EndEpisode closes the current stable episode so the same label is not
// committed again until it drops out and re-stabilizes.
func (t *Tracker) EndEpisode() {
	t.stableStart = time.Time{}
}

// Reset clears stability and spoken state.
func (t *Tracker) Reset() {
	t.lastLabel = ""
	t.stableStart = time.Time{}
	t.lastSpoken = ""
}

func (t *Tracker) Snapshot() State {
	return State{LastLabel: t.lastLabel, StableStart: t.stableStart, LastSpoken: t.lastSpoken}
}
