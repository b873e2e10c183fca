package protocol

import "time"

// Observation is one classification result for one captured frame.
// An empty Label or a nil Confidence means "no detection".
type Observation struct {
	Label      string   `json:"label,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Message    string   `json:"message,omitempty"`
}

// Confident reports whether the observation carries a label whose confidence
// meets threshold.
func (o Observation) Confident(threshold float64) bool {
	return o.Label != "" && o.Confidence != nil && *o.Confidence >= threshold
}

// ConfidenceValue returns the confidence or 0 when absent.
func (o Observation) ConfidenceValue() float64 {
	if o.Confidence == nil {
		return 0
	}
	return *o.Confidence
}

// Event is a session timeline entry broadcast on the bus and persisted.
type Event struct {
	SessionID string         `json:"session_id"`
	Kind      string         `json:"kind"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// SpeechRequest asks the speech service to voice Text, preempting any
// utterance still in progress.
type SpeechRequest struct {
	ID        string  `json:"id"`
	SessionID string  `json:"session_id"`
	Text      string  `json:"text"`
	Voice     string  `json:"voice"`
	Rate      float64 `json:"rate"`
	Pitch     float64 `json:"pitch"`
}

// AudioChunk carries synthesized PCM for a speech request.
type AudioChunk struct {
	RequestID  string `json:"request_id"`
	SessionID  string `json:"session_id"`
	Sequence   int    `json:"sequence"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	PCM        []byte `json:"pcm"`
	Final      bool   `json:"final"`
}

// SpeechStatus reports the end of an utterance.
type SpeechStatus struct {
	RequestID string    `json:"request_id"`
	SessionID string    `json:"session_id"`
	Completed bool      `json:"completed"`
	Cancelled bool      `json:"cancelled"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectEventPrefix   = "signspeak.event"
	SubjectSpeechRequest = "speech.request"
	SubjectSpeechCancel  = "speech.cancel"
	SubjectSpeechAudio   = "speech.audio"
	SubjectSpeechDone    = "speech.done"
)

// Event kinds.
const (
	EventObservation  = "observation"
	EventCommit       = "sentence.commit"
	EventSentence     = "sentence.update"
	EventUtterance    = "speech.utterance"
	EventCaptureError = "capture.error"
	EventClassifyFail = "classify.error"
	EventPolling      = "polling"
	EventReset        = "reset"
)

// EventSubject returns the bus subject for an event kind.
func EventSubject(kind string) string {
	return SubjectEventPrefix + "." + kind
}
