// Package capture acquires camera or file sources and produces encoded
// image frames for classification.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"time"

	"github.com/loqalabs/signspeak/internal/config"
)

var (
	// ErrUnavailable is returned when a capture source cannot be acquired.
	ErrUnavailable = errors.New("capture: source unavailable")
	// ErrEmptyFrame is returned when a source produced no image data.
	ErrEmptyFrame = errors.New("capture: empty frame")
)

// Frame is one encoded image.
type Frame struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
	CapturedAt  time.Time
}

// Source produces frames until closed.
type Source interface {
	Frame(ctx context.Context) (Frame, error)
	Close() error
}

// Opener acquires a Source. Acquisition failures wrap ErrUnavailable.
type Opener func(ctx context.Context) (Source, error)

// NewOpener builds the opener for the configured capture mode.
func NewOpener(cfg config.CaptureConfig) (Opener, error) {
	switch cfg.Mode {
	case "", "mock":
		return func(context.Context) (Source, error) { return NewMockSource(), nil }, nil
	case "exec":
		timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
		return func(ctx context.Context) (Source, error) {
			return OpenExec(ctx, cfg.Command, cfg.Device, timeout)
		}, nil
	case "file":
		return func(ctx context.Context) (Source, error) {
			return OpenFile(cfg.Path)
		}, nil
	default:
		return nil, fmt.Errorf("unknown capture mode %q", cfg.Mode)
	}
}

// DecodeFrame validates data as a JPEG or PNG image and fills in its metadata.
func DecodeFrame(data []byte) (Frame, error) {
	if len(data) == 0 {
		return Frame{}, ErrEmptyFrame
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	contentType := http.DetectContentType(data)
	if format == "png" {
		contentType = "image/png"
	} else if format == "jpeg" {
		contentType = "image/jpeg"
	}
	return Frame{
		Data:        data,
		ContentType: contentType,
		Width:       cfg.Width,
		Height:      cfg.Height,
		CapturedAt:  time.Now().UTC(),
	}, nil
}
