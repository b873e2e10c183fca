package speech

import (
	"context"
	"time"
)

type mockSynth struct {
	sampleRate int
	channels   int
	delay      time.Duration
}

// NewMockSynth returns a synthesizer that emits one silent chunk after delay.
func NewMockSynth(sampleRate, channels int, delay time.Duration) Synthesizer {
	return &mockSynth{sampleRate: sampleRate, channels: channels, delay: delay}
}

func (m *mockSynth) Synthesize(ctx context.Context, req SynthRequest) (<-chan SynthChunk, <-chan error) {
	chunks := make(chan SynthChunk, 1)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)
		select {
		case <-ctx.Done():
			errs <- ctx.Err()
			return
		case <-time.After(m.delay):
		}
		chunks <- SynthChunk{
			RequestID:  req.RequestID,
			Sequence:   0,
			SampleRate: m.sampleRate,
			Channels:   m.channels,
			PCM:        make([]byte, 2*m.channels*len(req.Text)),
			Final:      true,
		}
	}()
	return chunks, errs
}
