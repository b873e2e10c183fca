package speech

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/loqalabs/signspeak/internal/bus"
	"github.com/loqalabs/signspeak/internal/config"
	"github.com/loqalabs/signspeak/internal/protocol"
	"github.com/nats-io/nats.go"
)

// Service synthesizes speech requests from the bus. A new request cancels
// the utterance in progress before it starts.
type Service struct {
	cfg    config.SpeechConfig
	bus    *bus.Client
	synth  Synthesizer
	subs   []*nats.Subscription
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *slog.Logger

	mu      sync.Mutex
	current *utterance
}

type utterance struct {
	id     string
	cancel context.CancelFunc
}

func NewService(parent context.Context, cfg config.SpeechConfig, busClient *bus.Client, synth Synthesizer, log *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		cfg:    cfg,
		bus:    busClient,
		synth:  synth,
		ctx:    ctx,
		cancel: cancel,
		logger: log.With(slog.String("component", "speech-service")),
	}
}

func (s *Service) Start() error {
	if !s.cfg.Enabled {
		return nil
	}
	sub, err := s.bus.Conn().Subscribe(protocol.SubjectSpeechRequest, s.handleRequest)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	cancelSub, err := s.bus.Conn().Subscribe(protocol.SubjectSpeechCancel, func(*nats.Msg) { s.preempt() })
	if err != nil {
		_ = sub.Drain()
		return err
	}
	s.subs = append(s.subs, cancelSub)
	return nil
}

func (s *Service) Close() {
	s.cancel()
	for _, sub := range s.subs {
		_ = sub.Drain()
	}
	s.wg.Wait()
}

func (s *Service) Healthy() bool { return !s.cfg.Enabled || len(s.subs) > 0 }

// Speaking returns the id of the utterance in progress, if any.
func (s *Service) Speaking() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return "", false
	}
	return s.current.id, true
}

func (s *Service) preempt() {
	s.mu.Lock()
	cur := s.current
	s.current = nil
	s.mu.Unlock()
	if cur != nil {
		cur.cancel()
	}
}

func (s *Service) handleRequest(msg *nats.Msg) {
	var req protocol.SpeechRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode speech request", slogError(err))
		return
	}
	if req.Text == "" {
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, 45*time.Second)
	u := &utterance{id: req.ID, cancel: cancel}

	s.mu.Lock()
	prev := s.current
	s.current = u
	s.mu.Unlock()
	if prev != nil {
		prev.cancel()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		completed := s.speak(ctx, req)

		s.mu.Lock()
		if s.current == u {
			s.current = nil
		}
		s.mu.Unlock()

		status := protocol.SpeechStatus{
			RequestID: req.ID,
			SessionID: req.SessionID,
			Completed: completed,
			Cancelled: !completed && ctx.Err() != nil,
			Timestamp: time.Now().UTC(),
		}
		if err := s.bus.PublishJSON(protocol.SubjectSpeechDone, status); err != nil {
			s.logger.Warn("failed to publish speech status", slogError(err))
		}
	}()
}

func (s *Service) speak(ctx context.Context, req protocol.SpeechRequest) bool {
	chunks, errs := s.synth.Synthesize(ctx, SynthRequest{
		RequestID: req.ID,
		SessionID: req.SessionID,
		Text:      req.Text,
		Voice:     req.Voice,
		Rate:      req.Rate,
		Pitch:     req.Pitch,
	})
	sawFinal := false
	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				chunks = nil
				break
			}
			sawFinal = sawFinal || chunk.Final
			s.publishChunk(req, chunk)
		case err, ok := <-errs:
			if ok && err != nil {
				if ctx.Err() == nil {
					s.logger.Warn("speech synthesis error", slogError(err))
				}
				return false
			}
			errs = nil
		case <-ctx.Done():
			s.logger.Debug("utterance preempted", slog.String("request_id", req.ID))
			return false
		}
		if chunks == nil && errs == nil {
			return sawFinal
		}
	}
}

func (s *Service) publishChunk(req protocol.SpeechRequest, chunk SynthChunk) {
	packet := protocol.AudioChunk{
		RequestID:  req.ID,
		SessionID:  req.SessionID,
		Sequence:   chunk.Sequence,
		SampleRate: chunk.SampleRate,
		Channels:   chunk.Channels,
		PCM:        chunk.PCM,
		Final:      chunk.Final,
	}
	if err := s.bus.PublishJSON(protocol.SubjectSpeechAudio, packet); err != nil {
		s.logger.Warn("failed to publish speech chunk", slogError(err))
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
