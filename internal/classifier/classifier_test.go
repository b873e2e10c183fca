package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/loqalabs/signspeak/internal/capture"
	"github.com/loqalabs/signspeak/internal/config"
	"github.com/loqalabs/signspeak/internal/protocol"
)

var testFrame = capture.Frame{Data: []byte{0xff, 0xd8, 0xff, 0xe0}, ContentType: "image/jpeg"}

func TestHTTPClassifierMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("image")
		if err != nil {
			t.Errorf("expected image form file: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if len(data) != len(testFrame.Data) || header.Filename != "frame.jpg" {
			t.Errorf("unexpected upload %q (%d bytes)", header.Filename, len(data))
		}
		_, _ = w.Write([]byte(`{"label":"A","confidence":0.93,"message":"ok"}`))
	}))
	defer srv.Close()

	c := NewHTTPClassifier(srv.URL, "multipart", time.Second, DefaultLabels())
	obs, err := c.Classify(context.Background(), testFrame)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if obs.Label != "A" || obs.ConfidenceValue() != 0.93 || obs.Message != "ok" {
		t.Fatalf("unexpected observation %+v", obs)
	}
}

func TestHTTPClassifierJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if !strings.HasPrefix(payload["image"], "data:image/jpeg;base64,") {
			t.Errorf("unexpected image payload %q", payload["image"])
		}
		_, _ = w.Write([]byte(`{"message":"no hand detected"}`))
	}))
	defer srv.Close()

	c := NewHTTPClassifier(srv.URL, "json", time.Second, nil)
	obs, err := c.Classify(context.Background(), testFrame)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if obs.Label != "" || obs.Confidence != nil || obs.Message != "no hand detected" {
		t.Fatalf("missing fields must mean no detection, got %+v", obs)
	}
}

func TestHTTPClassifierErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewHTTPClassifier(srv.URL, "multipart", time.Second, nil)
	_, err := c.Classify(context.Background(), testFrame)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected APIError 503, got %v", err)
	}
	if _, err := c.Classify(context.Background(), capture.Frame{}); !errors.Is(err, ErrEmptyFrame) {
		t.Fatalf("expected ErrEmptyFrame, got %v", err)
	}
}

func TestResponseIndexAndProbabilities(t *testing.T) {
	labels := DefaultLabels()
	cases := []struct {
		name  string
		body  string
		label string
		conf  float64
	}{
		{"class index", `{"class_index": 9, "confidence": 0.8}`, "A", 0.8},
		{"probabilities argmax", `{"probabilities": [0.1, 0.7, 0.2]}`, "2", 0.7},
		{"label wins", `{"label": "Z", "class_index": 0, "confidence": 0.5}`, "Z", 0.5},
		{"index out of range", `{"class_index": 99, "confidence": 0.9}`, "99", 0.9},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			obs, err := decodeResponse([]byte(tc.body), labels)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if obs.Label != tc.label || obs.ConfidenceValue() != tc.conf {
				t.Fatalf("expected %s/%v, got %+v", tc.label, tc.conf, obs)
			}
		})
	}
	if _, err := decodeResponse([]byte("<html>"), labels); err == nil {
		t.Fatal("expected decode error for non-JSON")
	}
}

func TestLoadLabels(t *testing.T) {
	labels, err := LoadLabels(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("missing file should fall back: %v", err)
	}
	if len(labels) != 35 || labels[0] != "1" || labels[9] != "A" || labels[34] != "Z" {
		t.Fatalf("unexpected fallback labels %v", labels)
	}

	path := filepath.Join(t.TempDir(), "labels.json")
	if err := os.WriteFile(path, []byte(`{"classes":["hello","thanks"]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	labels, err = LoadLabels(path)
	if err != nil || len(labels) != 2 || labels[1] != "thanks" {
		t.Fatalf("unexpected labels %v %v", labels, err)
	}

	if err := os.WriteFile(path, []byte(`{"classes":`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadLabels(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestExecClassifier(t *testing.T) {
	script := filepath.Join(t.TempDir(), "classify.sh")
	body := "#!/bin/sh\n[ \"$1\" = \"--image\" ] && [ -f \"$2\" ] || exit 3\necho '{\"label\":\"B\",\"confidence\":0.91}'\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	c, err := NewExecClassifier(script, time.Second, nil)
	if err != nil {
		t.Fatalf("new exec: %v", err)
	}
	obs, err := c.Classify(context.Background(), testFrame)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if obs.Label != "B" || obs.ConfidenceValue() != 0.91 {
		t.Fatalf("unexpected observation %+v", obs)
	}
	if _, err := NewExecClassifier("", time.Second, nil); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestMockScript(t *testing.T) {
	a, b := 0.9, 0.4
	m := NewMockClassifier(protocol.Observation{Label: "A", Confidence: &a}, protocol.Observation{Label: "B", Confidence: &b})
	ctx := context.Background()
	got := []string{}
	for i := 0; i < 3; i++ {
		obs, _ := m.Classify(ctx, testFrame)
		got = append(got, obs.Label)
	}
	if strings.Join(got, ",") != "A,B,B" {
		t.Fatalf("unexpected sequence %v", got)
	}
	m.SetError(errors.New("down"))
	if _, err := m.Classify(ctx, testFrame); err == nil {
		t.Fatal("expected scripted error")
	}
	if m.Calls() != 4 {
		t.Fatalf("expected 4 calls, got %d", m.Calls())
	}
}

func TestNew(t *testing.T) {
	if _, err := New(config.ClassifierConfig{Mode: "mock"}, nil); err != nil {
		t.Fatalf("mock: %v", err)
	}
	if _, err := New(config.ClassifierConfig{Mode: "http", Endpoint: "http://x"}, nil); err != nil {
		t.Fatalf("http: %v", err)
	}
	if _, err := New(config.ClassifierConfig{Mode: "grpc"}, nil); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
