package session

import (
	"context"
	"strings"

	"github.com/loqalabs/signspeak/internal/protocol"
)

// AddToken appends token to the sentence and returns the new sentence.
// A blank token is ignored.
func (s *Session) AddToken(ctx context.Context, token string) string {
	token = strings.TrimSpace(token)
	s.mu.Lock()
	if token != "" {
		s.buffer.Append(token)
	}
	out := s.buffer.String()
	s.mu.Unlock()
	if token != "" {
		s.sentenceChanged(ctx, "add", out)
	}
	return out
}

// AddCurrent appends the label of the latest observation.
func (s *Session) AddCurrent(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.prediction == nil || s.prediction.Label == "" {
		s.mu.Unlock()
		return "", ErrNoPrediction
	}
	s.buffer.Append(s.prediction.Label)
	out := s.buffer.String()
	s.mu.Unlock()
	s.sentenceChanged(ctx, "add", out)
	return out, nil
}

func (s *Session) Space(ctx context.Context) string {
	return s.edit(ctx, "space", func() { s.buffer.AppendSpace() })
}

func (s *Session) Backspace(ctx context.Context) string {
	return s.edit(ctx, "backspace", func() { s.buffer.Backspace() })
}

func (s *Session) Clear(ctx context.Context) string {
	return s.edit(ctx, "clear", func() { s.buffer.Clear() })
}

func (s *Session) edit(ctx context.Context, op string, fn func()) string {
	s.mu.Lock()
	fn()
	out := s.buffer.String()
	s.mu.Unlock()
	s.sentenceChanged(ctx, op, out)
	return out
}

func (s *Session) sentenceChanged(ctx context.Context, op, text string) {
	s.record(ctx, protocol.EventSentence, map[string]any{"op": op, "sentence": text})
}

// SpeakSentence voices the whole sentence. It reports false when the
// sentence is blank.
func (s *Session) SpeakSentence(ctx context.Context) bool {
	text := s.Sentence()
	if strings.TrimSpace(text) == "" {
		return false
	}
	s.speakAll(ctx, []utterance{{text: text, source: sourceManual}})
	return true
}

// Reset stops polling, clears every piece of session state, silences speech
// and releases the capture source.
func (s *Session) Reset(ctx context.Context) error {
	s.StopPolling()

	s.mu.Lock()
	s.tracker.Reset()
	s.buffer.Clear()
	s.prediction = nil
	s.idle.Touch()
	s.mu.Unlock()

	err := s.speech.Cancel(ctx)
	if relErr := s.releaseSource(); relErr != nil && err == nil {
		err = relErr
	}
	s.record(ctx, protocol.EventReset, nil)
	s.logger.Info("session reset")
	return err
}
