package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
)

type labelsFile struct {
	Classes []string `json:"classes"`
}

// DefaultLabels is the digit-then-letter class order used when no labels
// file is available: 1..9 followed by A..Z.
func DefaultLabels() []string {
	labels := make([]string, 0, 35)
	for i := 1; i <= 9; i++ {
		labels = append(labels, strconv.Itoa(i))
	}
	for c := 'A'; c <= 'Z'; c++ {
		labels = append(labels, string(c))
	}
	return labels
}

// LoadLabels reads {"classes": [...]} from path. A missing file or an empty
// class list falls back to DefaultLabels.
func LoadLabels(path string) ([]string, error) {
	if path == "" {
		return DefaultLabels(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultLabels(), nil
		}
		return nil, fmt.Errorf("read labels: %w", err)
	}
	var lf labelsFile
	if err := json.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("parse labels: %w", err)
	}
	if len(lf.Classes) == 0 {
		return DefaultLabels(), nil
	}
	return lf.Classes, nil
}

func labelFor(labels []string, idx int) string {
	if idx >= 0 && idx < len(labels) {
		return labels[idx]
	}
	return strconv.Itoa(idx)
}
