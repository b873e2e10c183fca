package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Bus.Servers[0] != "nats://localhost:4222" {
		t.Fatalf("expected default server, got %v", cfg.Bus.Servers)
	}
	if cfg.Session.ConfidenceThreshold != 0.8 {
		t.Fatalf("expected default threshold 0.8, got %v", cfg.Session.ConfidenceThreshold)
	}
	if cfg.Session.DwellMS != 800 || cfg.Session.PollIntervalMS != 500 || cfg.Session.IdleSpeakMS != 3000 {
		t.Fatalf("unexpected session timings: %+v", cfg.Session)
	}
	if cfg.Speech.Voice != "en-US" || cfg.Speech.Rate != 1.0 || cfg.Speech.Pitch != 1.0 {
		t.Fatalf("unexpected speech defaults: %+v", cfg.Speech)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signspeak.yaml")
	data := []byte(`runtime_name: booth-1
classifier:
  mode: http
  endpoint: http://classifier:5000/predict
  encoding: json
session:
  confidence_threshold: 0.65
  auto_speak_sentence: true
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RuntimeName != "booth-1" {
		t.Fatalf("expected runtime name override, got %q", cfg.RuntimeName)
	}
	if cfg.Classifier.Mode != "http" || cfg.Classifier.Encoding != "json" {
		t.Fatalf("unexpected classifier config: %+v", cfg.Classifier)
	}
	if cfg.Session.ConfidenceThreshold != 0.65 || !cfg.Session.AutoSpeakSentence {
		t.Fatalf("unexpected session config: %+v", cfg.Session)
	}
	if cfg.Session.DwellMS != 800 {
		t.Fatalf("expected untouched default dwell, got %d", cfg.Session.DwellMS)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SIGNSPEAK_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("SIGNSPEAK_BUS_USERNAME", "alice")
	t.Setenv("SIGNSPEAK_BUS_PASSWORD", "secret")
	t.Setenv("SIGNSPEAK_BUS_TLS_INSECURE", "true")
	t.Setenv("SIGNSPEAK_BUS_CONNECT_TIMEOUT_MS", "5000")
	t.Setenv("SIGNSPEAK_EVENT_STORE_PATH", "./tmp.db")
	t.Setenv("SIGNSPEAK_EVENT_STORE_RETENTION_MODE", "persistent")
	t.Setenv("SIGNSPEAK_EVENT_STORE_RETENTION_DAYS", "7")
	t.Setenv("SIGNSPEAK_CAPTURE_MODE", "exec")
	t.Setenv("SIGNSPEAK_CAPTURE_COMMAND", "ffmpeg -i /dev/video{device} -frames:v 1 -f image2pipe -")
	t.Setenv("SIGNSPEAK_CAPTURE_DEVICE", "2")
	t.Setenv("SIGNSPEAK_SESSION_CONFIDENCE_THRESHOLD", "0.9")
	t.Setenv("SIGNSPEAK_SESSION_DWELL_MS", "1200")
	t.Setenv("SIGNSPEAK_SESSION_SPEAK_ON_DETECT", "false")
	t.Setenv("SIGNSPEAK_SPEECH_ENABLED", "false")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
	if cfg.Bus.Username != "alice" || cfg.Bus.Password != "secret" {
		t.Fatalf("expected credentials override")
	}
	if !cfg.Bus.TLSInsecure {
		t.Fatal("expected tls insecure override true")
	}
	if cfg.Bus.ConnectTimeout != 5000 {
		t.Fatalf("expected timeout 5000, got %d", cfg.Bus.ConnectTimeout)
	}
	if cfg.EventStore.Path != "./tmp.db" || cfg.EventStore.RetentionMode != "persistent" || cfg.EventStore.RetentionDays != 7 {
		t.Fatalf("expected event store overrides, got %+v", cfg.EventStore)
	}
	if cfg.Capture.Mode != "exec" || cfg.Capture.Device != 2 {
		t.Fatalf("expected capture overrides, got %+v", cfg.Capture)
	}
	if cfg.Session.ConfidenceThreshold != 0.9 || cfg.Session.DwellMS != 1200 {
		t.Fatalf("expected session overrides, got %+v", cfg.Session)
	}
	if cfg.Session.SpeakOnDetect {
		t.Fatal("expected speak_on_detect override false")
	}
	if cfg.Speech.Enabled {
		t.Fatal("expected speech disabled")
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"threshold above one": func(c *Config) { c.Session.ConfidenceThreshold = 1.5 },
		"zero dwell":          func(c *Config) { c.Session.DwellMS = 0 },
		"exec capture":        func(c *Config) { c.Capture.Mode = "exec" },
		"file capture":        func(c *Config) { c.Capture.Mode = "file" },
		"unknown classifier":  func(c *Config) { c.Classifier.Mode = "grpc" },
		"bad encoding": func(c *Config) {
			c.Classifier.Mode = "http"
			c.Classifier.Encoding = "xml"
		},
		"exec speech": func(c *Config) { c.Speech.Mode = "exec" },
		"retention":   func(c *Config) { c.EventStore.RetentionMode = "forever" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			if err := validate(cfg); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	data := []byte("SIGNSPEAK_RUNTIME_NAME=from-dotenv\nSIGNSPEAK_SESSION_IDLE_SPEAK_MS=4500\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("SIGNSPEAK_SESSION_IDLE_SPEAK_MS", "2000")
	t.Setenv("SIGNSPEAK_RUNTIME_NAME", "")
	os.Unsetenv("SIGNSPEAK_RUNTIME_NAME")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("load dotenv: %v", err)
	}
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RuntimeName != "from-dotenv" {
		t.Fatalf("expected runtime name from env file, got %q", cfg.RuntimeName)
	}
	if cfg.Session.IdleSpeakMS != 2000 {
		t.Fatalf("existing environment must win, got %d", cfg.Session.IdleSpeakMS)
	}
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("missing env file should be ignored: %v", err)
	}
}
