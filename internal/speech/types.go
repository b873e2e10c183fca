// Package speech voices text: a Gateway publishes speech requests and the
// Service synthesizes them one utterance at a time, newest first.
package speech

import "context"

// SynthRequest contains parameters to synthesize speech.
type SynthRequest struct {
	RequestID string
	SessionID string
	Text      string
	Voice     string
	Rate      float64
	Pitch     float64
}

// SynthChunk contains PCM16LE data.
type SynthChunk struct {
	RequestID  string
	Sequence   int
	SampleRate int
	Channels   int
	PCM        []byte
	Final      bool
}

// Synthesizer is the contract for producing audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthRequest) (<-chan SynthChunk, <-chan error)
}
