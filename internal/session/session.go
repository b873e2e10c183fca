// Package session owns the state of one signing session and orchestrates
// capture, classification, stabilization, sentence assembly and speech.
package session

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/loqalabs/signspeak/internal/capture"
	"github.com/loqalabs/signspeak/internal/classifier"
	"github.com/loqalabs/signspeak/internal/config"
	"github.com/loqalabs/signspeak/internal/idle"
	"github.com/loqalabs/signspeak/internal/poller"
	"github.com/loqalabs/signspeak/internal/protocol"
	"github.com/loqalabs/signspeak/internal/sentence"
	"github.com/loqalabs/signspeak/internal/speech"
	"github.com/loqalabs/signspeak/internal/stability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// DefaultThreshold is used when a threshold value cannot be parsed.
const DefaultThreshold = 0.8

// ErrNoPrediction is returned by AddCurrent when nothing has been detected.
var ErrNoPrediction = errors.New("session: no current prediction")

// Journal receives timeline events. Implementations must not block for long.
type Journal interface {
	Record(ctx context.Context, evt protocol.Event)
}

// Settings are the operator controls of a session.
type Settings struct {
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	SpeakOnDetect       bool    `json:"speak_on_detect"`
	AutoAddToSentence   bool    `json:"auto_add_to_sentence"`
	AutoSpeakSentence   bool    `json:"auto_speak_sentence"`
	DwellMS             int     `json:"dwell_ms"`
	PollIntervalMS      int     `json:"poll_interval_ms"`
	IdleSpeakMS         int     `json:"idle_speak_ms"`
}

// SettingsFromConfig maps the session config section onto Settings.
func SettingsFromConfig(cfg config.SessionConfig) Settings {
	return Settings{
		ConfidenceThreshold: clampThreshold(cfg.ConfidenceThreshold),
		SpeakOnDetect:       cfg.SpeakOnDetect,
		AutoAddToSentence:   cfg.AutoAddToSentence,
		AutoSpeakSentence:   cfg.AutoSpeakSentence,
		DwellMS:             cfg.DwellMS,
		PollIntervalMS:      cfg.PollIntervalMS,
		IdleSpeakMS:         cfg.IdleSpeakMS,
	}
}

func (s Settings) dwell() time.Duration {
	if s.DwellMS <= 0 {
		return stability.DefaultDwell
	}
	return time.Duration(s.DwellMS) * time.Millisecond
}

func (s Settings) idleThreshold() time.Duration {
	if s.IdleSpeakMS <= 0 {
		return idle.DefaultThreshold
	}
	return time.Duration(s.IdleSpeakMS) * time.Millisecond
}

func (s Settings) interval() time.Duration {
	if s.PollIntervalMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(s.PollIntervalMS) * time.Millisecond
}

// ParseThreshold reads a user supplied threshold. Unparsable input yields
// DefaultThreshold; the result is clamped to [0, 1].
func ParseThreshold(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) {
		return DefaultThreshold
	}
	return clampThreshold(v)
}

func clampThreshold(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return DefaultThreshold
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// SettingsUpdate carries the controls to change; nil fields are left alone.
type SettingsUpdate struct {
	ConfidenceThreshold *string
	SpeakOnDetect       *bool
	AutoAddToSentence   *bool
	AutoSpeakSentence   *bool
}

// Deps are the collaborators of a session.
type Deps struct {
	Opener     capture.Opener
	Classifier classifier.Classifier
	Speech     speech.Gateway
	Journal    Journal
	Clock      func() time.Time
	ID         string
}

// Session serializes every state mutation behind mu. Capture,
// classification and speech run outside the lock.
type Session struct {
	id         string
	base       context.Context
	opener     capture.Opener
	classifier classifier.Classifier
	speech     speech.Gateway
	journal    Journal
	clock      func() time.Time
	logger     *slog.Logger
	tracer     trace.Tracer
	metrics    *metrics
	loop       *poller.Loop

	sourceMu sync.Mutex
	source   capture.Source

	mu         sync.Mutex
	settings   Settings
	tracker    *stability.Tracker
	buffer     sentence.Buffer
	idle       *idle.Monitor
	prediction *protocol.Observation
}

func New(parent context.Context, cfg config.SessionConfig, deps Deps, logger *slog.Logger) *Session {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	id := deps.ID
	if id == "" {
		id = uuid.NewString()
	}
	gw := deps.Speech
	if gw == nil {
		gw = speech.Nop{}
	}
	s := &Session{
		id:         id,
		base:       parent,
		opener:     deps.Opener,
		classifier: deps.Classifier,
		speech:     gw,
		journal:    deps.Journal,
		clock:      clock,
		logger:     logger.With(slog.String("component", "session"), slog.String("session_id", id)),
		tracer:     otel.Tracer("github.com/loqalabs/signspeak/session"),
		settings:   SettingsFromConfig(cfg),
		tracker:    stability.NewTracker(clock),
		idle:       idle.NewMonitor(clock),
	}
	m, err := newMetrics(otel.Meter("github.com/loqalabs/signspeak/session"))
	if err != nil {
		s.logger.Warn("session metrics unavailable", slogError(err))
	}
	s.metrics = m
	s.loop = poller.New(s.settings.interval(), s.pollTask, logger)
	return s
}

func (s *Session) ID() string { return s.id }

// Settings returns the current controls.
func (s *Session) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// UpdateSettings applies the non-nil fields of u and returns the result.
func (s *Session) UpdateSettings(u SettingsUpdate) Settings {
	s.mu.Lock()
	if u.ConfidenceThreshold != nil {
		s.settings.ConfidenceThreshold = ParseThreshold(*u.ConfidenceThreshold)
	}
	if u.SpeakOnDetect != nil {
		s.settings.SpeakOnDetect = *u.SpeakOnDetect
	}
	if u.AutoAddToSentence != nil {
		s.settings.AutoAddToSentence = *u.AutoAddToSentence
	}
	if u.AutoSpeakSentence != nil {
		s.settings.AutoSpeakSentence = *u.AutoSpeakSentence
	}
	out := s.settings
	s.mu.Unlock()
	s.logger.Info("settings updated",
		slog.Float64("confidence_threshold", out.ConfidenceThreshold),
		slog.Bool("speak_on_detect", out.SpeakOnDetect),
		slog.Bool("auto_add_to_sentence", out.AutoAddToSentence),
		slog.Bool("auto_speak_sentence", out.AutoSpeakSentence))
	return out
}

// State is a point-in-time view of the session.
type State struct {
	SessionID    string                `json:"session_id"`
	Running      bool                  `json:"running"`
	SourceReady  bool                  `json:"source_ready"`
	Sentence     string                `json:"sentence"`
	Prediction   *protocol.Observation `json:"prediction,omitempty"`
	Stability    stability.State       `json:"stability"`
	LastActivity time.Time             `json:"last_activity"`
	Settings     Settings              `json:"settings"`
	Ticks        int64                 `json:"ticks"`
	Skipped      int64                 `json:"skipped_ticks"`
}

func (s *Session) State() State {
	s.sourceMu.Lock()
	ready := s.source != nil
	s.sourceMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{
		SessionID:    s.id,
		Running:      s.loop.Running(),
		SourceReady:  ready,
		Sentence:     s.buffer.String(),
		Stability:    s.tracker.Snapshot(),
		LastActivity: s.idle.LastActivity(),
		Settings:     s.settings,
		Ticks:        s.loop.Runs(),
		Skipped:      s.loop.Skipped(),
	}
	if s.prediction != nil {
		p := *s.prediction
		st.Prediction = &p
	}
	return st
}

// Sentence returns the current sentence text.
func (s *Session) Sentence() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffer.String()
}

// Close stops polling, waits for an outstanding tick and releases the
// capture source.
func (s *Session) Close() error {
	s.loop.Stop()
	s.loop.Wait()
	return s.releaseSource()
}

func (s *Session) record(ctx context.Context, kind string, data map[string]any) {
	if s.journal == nil {
		return
	}
	s.journal.Record(context.WithoutCancel(ctx), protocol.Event{
		SessionID: s.id,
		Kind:      kind,
		Data:      data,
		Timestamp: s.clock().UTC(),
	})
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
