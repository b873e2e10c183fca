package speech

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/loqalabs/signspeak/internal/bus"
	"github.com/loqalabs/signspeak/internal/config"
	"github.com/loqalabs/signspeak/internal/protocol"
)

// Gateway voices text. Speak replaces whatever is currently being spoken.
type Gateway interface {
	Speak(ctx context.Context, text string) error
	Cancel(ctx context.Context) error
}

// BusGateway publishes speech requests for the speech Service.
type BusGateway struct {
	bus       *bus.Client
	sessionID string
	voice     string
	rate      float64
	pitch     float64
}

func NewBusGateway(busClient *bus.Client, cfg config.SpeechConfig, sessionID string) *BusGateway {
	return &BusGateway{
		bus:       busClient,
		sessionID: sessionID,
		voice:     cfg.Voice,
		rate:      cfg.Rate,
		pitch:     cfg.Pitch,
	}
}

func (g *BusGateway) Speak(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	req := protocol.SpeechRequest{
		ID:        uuid.NewString(),
		SessionID: g.sessionID,
		Text:      text,
		Voice:     g.voice,
		Rate:      g.rate,
		Pitch:     g.pitch,
	}
	if err := g.bus.PublishJSON(protocol.SubjectSpeechRequest, req); err != nil {
		return fmt.Errorf("publish speech request: %w", err)
	}
	return nil
}

func (g *BusGateway) Cancel(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return g.bus.PublishJSON(protocol.SubjectSpeechCancel, protocol.SpeechStatus{SessionID: g.sessionID, Cancelled: true})
}

// Nop discards everything; used when speech output is disabled.
type Nop struct{}

func (Nop) Speak(context.Context, string) error { return nil }
func (Nop) Cancel(context.Context) error        { return nil }

// NewGateway returns a BusGateway, or Nop when speech is disabled.
func NewGateway(busClient *bus.Client, cfg config.SpeechConfig, sessionID string) Gateway {
	if !cfg.Enabled || busClient == nil {
		return Nop{}
	}
	return NewBusGateway(busClient, cfg, sessionID)
}

// NewSynthesizer builds the synthesizer named by cfg.Mode.
func NewSynthesizer(cfg config.SpeechConfig) (Synthesizer, error) {
	switch strings.ToLower(cfg.Mode) {
	case "", "mock":
		return NewMockSynth(cfg.SampleRate, cfg.Channels, 0), nil
	case "exec":
		return NewExecSynth(cfg.Command, cfg.ChunkDurationMS)
	default:
		return nil, fmt.Errorf("unsupported speech mode %q", cfg.Mode)
	}
}
