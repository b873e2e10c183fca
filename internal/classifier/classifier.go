// Package classifier submits captured frames to a gesture classifier and
// normalizes its replies into observations.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/loqalabs/signspeak/internal/capture"
	"github.com/loqalabs/signspeak/internal/config"
	"github.com/loqalabs/signspeak/internal/protocol"
)

// ErrEmptyFrame is returned when asked to classify a frame without data.
var ErrEmptyFrame = errors.New("classifier: empty frame")

// Classifier turns one image into one observation.
type Classifier interface {
	Classify(ctx context.Context, frame capture.Frame) (protocol.Observation, error)
}

// APIError is a non-2xx reply from a remote classifier.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("classifier: API error %d: %s", e.StatusCode, e.Message)
}

// New builds the classifier for the configured mode.
func New(cfg config.ClassifierConfig, labels []string) (Classifier, error) {
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	switch cfg.Mode {
	case "", "mock":
		return NewMockClassifier(), nil
	case "http":
		return NewHTTPClassifier(cfg.Endpoint, cfg.Encoding, timeout, labels), nil
	case "exec":
		return NewExecClassifier(cfg.Command, timeout, labels)
	default:
		return nil, fmt.Errorf("unknown classifier mode %q", cfg.Mode)
	}
}
