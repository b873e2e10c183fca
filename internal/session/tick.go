package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/loqalabs/signspeak/internal/capture"
	"github.com/loqalabs/signspeak/internal/protocol"
	"github.com/loqalabs/signspeak/internal/stability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	sourceDetect = "detect"
	sourceIdle   = "idle"
	sourceManual = "manual"
)

type utterance struct {
	text   string
	source string
}

// StartPolling starts the tick loop and acquires the capture source right
// away. An acquisition error is returned but the loop keeps running; the
// next tick retries. started is false when polling was already running.
func (s *Session) StartPolling() (started bool, err error) {
	if !s.loop.Start(s.base) {
		return false, nil
	}
	s.record(s.base, protocol.EventPolling, map[string]any{"running": true})
	if _, err := s.ensureSource(s.base); err != nil {
		s.captureFailed(s.base, err)
		return true, err
	}
	return true, nil
}

// StopPolling stops future ticks. Results of a tick still in flight are
// discarded. It reports whether polling was running.
func (s *Session) StopPolling() bool {
	if !s.loop.Stop() {
		return false
	}
	s.record(s.base, protocol.EventPolling, map[string]any{"running": false})
	return true
}

func (s *Session) Running() bool { return s.loop.Running() }

func (s *Session) pollTask(ctx context.Context) error {
	err := s.Tick(ctx)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Tick runs one polling step: ensure source, capture, classify, process the
// observation, then check for idle auto-speech. Capture failures abort the
// tick with no state change. Once ctx is cancelled nothing is applied.
func (s *Session) Tick(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "session.tick")
	defer span.End()
	s.metrics.tick(ctx)
	if s.classifier == nil {
		return errors.New("no classifier configured")
	}

	src, err := s.ensureSource(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.captureFailed(ctx, err)
		}
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	frame, err := src.Frame(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, capture.ErrUnavailable) {
			_ = s.releaseSource()
		}
		err = fmt.Errorf("capture frame: %w", err)
		s.captureFailed(ctx, err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	obs, err := s.classifier.Classify(ctx, frame)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err = fmt.Errorf("classify frame: %w", err)
		s.metrics.failure(ctx, "classify")
		s.logger.Warn("classification failed", slogError(err))
		s.record(ctx, protocol.EventClassifyFail, map[string]any{"error": err.Error()})
		span.SetStatus(codes.Error, err.Error())

		s.mu.Lock()
		if ctx.Err() != nil {
			s.mu.Unlock()
			return ctx.Err()
		}
		pending := s.checkIdle(ctx)
		s.mu.Unlock()
		s.speakAll(ctx, pending)
		return err
	}

	s.mu.Lock()
	if ctx.Err() != nil {
		s.mu.Unlock()
		return ctx.Err()
	}
	decision, pending := s.apply(ctx, obs)
	pending = append(pending, s.checkIdle(ctx)...)
	s.mu.Unlock()

	span.SetAttributes(
		attribute.String("label", obs.Label),
		attribute.Float64("confidence", obs.ConfidenceValue()),
		attribute.Bool("stable", decision.Stable),
	)
	s.speakAll(ctx, pending)
	return nil
}

// Observe feeds one observation through stabilization, sentence assembly and
// the idle check, exactly as a tick does after classification.
func (s *Session) Observe(ctx context.Context, obs protocol.Observation) stability.Decision {
	s.mu.Lock()
	decision, pending := s.apply(ctx, obs)
	pending = append(pending, s.checkIdle(ctx)...)
	s.mu.Unlock()
	s.speakAll(ctx, pending)
	return decision
}

// ClassifyFrame classifies an uploaded frame and observes the result.
func (s *Session) ClassifyFrame(ctx context.Context, frame capture.Frame) (protocol.Observation, stability.Decision, error) {
	if s.classifier == nil {
		return protocol.Observation{}, stability.Decision{}, errors.New("no classifier configured")
	}
	obs, err := s.classifier.Classify(ctx, frame)
	if err != nil {
		err = fmt.Errorf("classify upload: %w", err)
		s.record(ctx, protocol.EventClassifyFail, map[string]any{"error": err.Error(), "upload": true})
		return protocol.Observation{}, stability.Decision{}, err
	}
	return obs, s.Observe(ctx, obs), nil
}

// apply runs the stability tracker and the detect/append orchestration.
// Caller holds s.mu.
func (s *Session) apply(ctx context.Context, obs protocol.Observation) (stability.Decision, []utterance) {
	settings := s.settings
	decision := s.tracker.Evaluate(obs, settings.ConfidenceThreshold, settings.dwell())
	s.idle.Touch()
	p := obs
	s.prediction = &p

	var pending []utterance
	if settings.SpeakOnDetect && decision.SpeakNow {
		pending = append(pending, utterance{text: decision.SpokenLabel, source: sourceDetect})
	}
	if settings.AutoAddToSentence && decision.Stable {
		s.buffer.Append(decision.StableLabel)
		s.tracker.EndEpisode()
		s.metrics.commit(ctx)
		s.logger.Debug("label committed", slog.String("label", decision.StableLabel))
		s.record(ctx, protocol.EventCommit, map[string]any{
			"label":    decision.StableLabel,
			"sentence": s.buffer.String(),
		})
	}

	data := map[string]any{
		"label":  obs.Label,
		"stable": decision.Stable,
	}
	if obs.Confidence != nil {
		data["confidence"] = *obs.Confidence
	}
	if obs.Message != "" {
		data["message"] = obs.Message
	}
	s.record(ctx, protocol.EventObservation, data)
	return decision, pending
}

// checkIdle consults the idle monitor. Caller holds s.mu.
func (s *Session) checkIdle(ctx context.Context) []utterance {
	text, ok := s.idle.MaybeSpeak(s.settings.AutoSpeakSentence, s.settings.idleThreshold(), s.buffer.String())
	if !ok {
		return nil
	}
	s.logger.Info("idle window elapsed, speaking sentence")
	return []utterance{{text: text, source: sourceIdle}}
}

func (s *Session) speakAll(ctx context.Context, pending []utterance) {
	ctx = context.WithoutCancel(ctx)
	for _, u := range pending {
		s.speak(ctx, u)
	}
}

func (s *Session) speak(ctx context.Context, u utterance) {
	if err := s.speech.Speak(ctx, u.text); err != nil {
		s.logger.Warn("speech failed", slogError(err), slog.String("source", u.source))
		return
	}
	s.metrics.utterance(ctx, u.source)
	s.record(ctx, protocol.EventUtterance, map[string]any{"text": u.text, "source": u.source})
}

func (s *Session) captureFailed(ctx context.Context, err error) {
	s.metrics.failure(ctx, "capture")
	s.logger.Warn("capture failed", slogError(err))
	s.record(ctx, protocol.EventCaptureError, map[string]any{"error": err.Error()})
}

func (s *Session) ensureSource(ctx context.Context) (capture.Source, error) {
	s.sourceMu.Lock()
	defer s.sourceMu.Unlock()
	if s.source != nil {
		return s.source, nil
	}
	if s.opener == nil {
		return nil, fmt.Errorf("%w: no capture source configured", capture.ErrUnavailable)
	}
	src, err := s.opener(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire capture source: %w", err)
	}
	s.source = src
	return src, nil
}

func (s *Session) releaseSource() error {
	s.sourceMu.Lock()
	src := s.source
	s.source = nil
	s.sourceMu.Unlock()
	if src == nil {
		return nil
	}
	return src.Close()
}
