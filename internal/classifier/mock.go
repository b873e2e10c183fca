package classifier

import (
	"context"
	"sync"

	"github.com/loqalabs/signspeak/internal/capture"
	"github.com/loqalabs/signspeak/internal/protocol"
)

// Mock replays a scripted sequence of observations, repeating the last one
// once the script is exhausted.
type Mock struct {
	mu     sync.Mutex
	script []protocol.Observation
	next   int
	calls  int
	err    error
}

// NewMockClassifier returns a mock that reports "HELLO" with high confidence.
func NewMockClassifier(script ...protocol.Observation) *Mock {
	if len(script) == 0 {
		conf := 0.95
		script = []protocol.Observation{{Label: "HELLO", Confidence: &conf, Message: "mock"}}
	}
	return &Mock{script: script}
}

func (m *Mock) Classify(ctx context.Context, _ capture.Frame) (protocol.Observation, error) {
	if err := ctx.Err(); err != nil {
		return protocol.Observation{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return protocol.Observation{}, m.err
	}
	obs := m.script[m.next]
	if m.next < len(m.script)-1 {
		m.next++
	}
	return obs, nil
}

// Calls returns how many times Classify was invoked.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// SetError makes subsequent calls fail with err (nil restores the script).
func (m *Mock) SetError(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}
