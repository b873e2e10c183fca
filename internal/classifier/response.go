package classifier

import (
	"encoding/json"
	"fmt"

	"github.com/loqalabs/signspeak/internal/protocol"
)

// response is the classifier reply. Every field is optional.
type response struct {
	Label         *string   `json:"label"`
	Confidence    *float64  `json:"confidence"`
	Message       *string   `json:"message"`
	ClassIndex    *int      `json:"class_index"`
	Probabilities []float64 `json:"probabilities"`
}

func decodeResponse(data []byte, labels []string) (protocol.Observation, error) {
	var resp response
	if err := json.Unmarshal(data, &resp); err != nil {
		return protocol.Observation{}, fmt.Errorf("decode classifier response: %w", err)
	}
	return resp.observation(labels), nil
}

func (r response) observation(labels []string) protocol.Observation {
	var obs protocol.Observation
	if r.Message != nil {
		obs.Message = *r.Message
	}
	if r.Label != nil {
		obs.Label = *r.Label
	}
	if r.Confidence != nil {
		c := *r.Confidence
		obs.Confidence = &c
	}

	idx := -1
	if r.ClassIndex != nil {
		idx = *r.ClassIndex
	}
	if len(r.Probabilities) > 0 {
		best := 0
		for i, p := range r.Probabilities {
			if p > r.Probabilities[best] {
				best = i
			}
		}
		if idx < 0 {
			idx = best
		}
		if obs.Confidence == nil && idx < len(r.Probabilities) {
			c := r.Probabilities[idx]
			obs.Confidence = &c
		}
	}
	if obs.Label == "" && idx >= 0 {
		obs.Label = labelFor(labels, idx)
	}
	return obs
}
