package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	RuntimeName string           `yaml:"runtime_name"`
	Environment string           `yaml:"environment"`
	HTTP        HTTPConfig       `yaml:"http"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Bus         BusConfig        `yaml:"bus"`
	EventStore  EventStoreConfig `yaml:"event_store"`
	Capture     CaptureConfig    `yaml:"capture"`
	Classifier  ClassifierConfig `yaml:"classifier"`
	Speech      SpeechConfig     `yaml:"speech"`
	Session     SessionConfig    `yaml:"session"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	StoreDir       string   `yaml:"store_dir"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type EventStoreConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type CaptureConfig struct {
	Mode      string `yaml:"mode"` // mock, exec, file
	Command   string `yaml:"command"`
	Device    int    `yaml:"device"`
	Path      string `yaml:"path"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

type ClassifierConfig struct {
	Mode       string `yaml:"mode"` // mock, http, exec
	Endpoint   string `yaml:"endpoint"`
	Encoding   string `yaml:"encoding"` // multipart, json
	Command    string `yaml:"command"`
	LabelsPath string `yaml:"labels_path"`
	TimeoutMS  int    `yaml:"timeout_ms"`
}

type SpeechConfig struct {
	Enabled         bool    `yaml:"enabled"`
	Mode            string  `yaml:"mode"` // mock, exec
	Command         string  `yaml:"command"`
	Voice           string  `yaml:"voice"`
	Rate            float64 `yaml:"rate"`
	Pitch           float64 `yaml:"pitch"`
	SampleRate      int     `yaml:"sample_rate"`
	Channels        int     `yaml:"channels"`
	ChunkDurationMS int     `yaml:"chunk_duration_ms"`
}

type SessionConfig struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	DwellMS             int     `yaml:"dwell_ms"`
	PollIntervalMS      int     `yaml:"poll_interval_ms"`
	IdleSpeakMS         int     `yaml:"idle_speak_ms"`
	SpeakOnDetect       bool    `yaml:"speak_on_detect"`
	AutoAddToSentence   bool    `yaml:"auto_add_to_sentence"`
	AutoSpeakSentence   bool    `yaml:"auto_speak_sentence"`
	AutoStart           bool    `yaml:"auto_start"`
	ActorID             string  `yaml:"actor_id"`
	PrivacyScope        string  `yaml:"privacy_scope"`
}

func Default() Config {
	return Config{
		RuntimeName: "signspeak",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			StoreDir:       "./data/nats",
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		EventStore: EventStoreConfig{
			Path:          "./data/signspeak-events.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxSessions:   1000,
		},
		Capture: CaptureConfig{
			Mode:      "mock",
			Device:    0,
			TimeoutMS: 2000,
		},
		Classifier: ClassifierConfig{
			Mode:       "mock",
			Endpoint:   "http://localhost:5000/predict",
			Encoding:   "multipart",
			LabelsPath: "labels.json",
			TimeoutMS:  5000,
		},
		Speech: SpeechConfig{
			Enabled:         true,
			Mode:            "mock",
			Voice:           "en-US",
			Rate:            1.0,
			Pitch:           1.0,
			SampleRate:      22050,
			Channels:        1,
			ChunkDurationMS: 400,
		},
		Session: SessionConfig{
			ConfidenceThreshold: 0.8,
			DwellMS:             800,
			PollIntervalMS:      500,
			IdleSpeakMS:         3000,
			SpeakOnDetect:       true,
			AutoAddToSentence:   true,
			AutoSpeakSentence:   false,
			ActorID:             "operator",
			PrivacyScope:        "session",
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "SIGNSPEAK_RUNTIME_NAME")
	overrideString(&cfg.Environment, "SIGNSPEAK_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "SIGNSPEAK_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "SIGNSPEAK_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "SIGNSPEAK_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "SIGNSPEAK_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "SIGNSPEAK_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "SIGNSPEAK_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Embedded, "SIGNSPEAK_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "SIGNSPEAK_BUS_PORT")
	overrideString(&cfg.Bus.StoreDir, "SIGNSPEAK_BUS_STORE_DIR")
	overrideStringSlice(&cfg.Bus.Servers, "SIGNSPEAK_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "SIGNSPEAK_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "SIGNSPEAK_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "SIGNSPEAK_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "SIGNSPEAK_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "SIGNSPEAK_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.EventStore.Path, "SIGNSPEAK_EVENT_STORE_PATH")
	overrideString(&cfg.EventStore.RetentionMode, "SIGNSPEAK_EVENT_STORE_RETENTION_MODE")
	overrideInt(&cfg.EventStore.RetentionDays, "SIGNSPEAK_EVENT_STORE_RETENTION_DAYS")
	overrideInt(&cfg.EventStore.MaxSessions, "SIGNSPEAK_EVENT_STORE_MAX_SESSIONS")
	overrideBool(&cfg.EventStore.VacuumOnStart, "SIGNSPEAK_EVENT_STORE_VACUUM_ON_START")
	overrideString(&cfg.Capture.Mode, "SIGNSPEAK_CAPTURE_MODE")
	overrideString(&cfg.Capture.Command, "SIGNSPEAK_CAPTURE_COMMAND")
	overrideInt(&cfg.Capture.Device, "SIGNSPEAK_CAPTURE_DEVICE")
	overrideString(&cfg.Capture.Path, "SIGNSPEAK_CAPTURE_PATH")
	overrideInt(&cfg.Capture.TimeoutMS, "SIGNSPEAK_CAPTURE_TIMEOUT_MS")
	overrideString(&cfg.Classifier.Mode, "SIGNSPEAK_CLASSIFIER_MODE")
	overrideString(&cfg.Classifier.Endpoint, "SIGNSPEAK_CLASSIFIER_ENDPOINT")
	overrideString(&cfg.Classifier.Encoding, "SIGNSPEAK_CLASSIFIER_ENCODING")
	overrideString(&cfg.Classifier.Command, "SIGNSPEAK_CLASSIFIER_COMMAND")
	overrideString(&cfg.Classifier.LabelsPath, "SIGNSPEAK_CLASSIFIER_LABELS_PATH")
	overrideInt(&cfg.Classifier.TimeoutMS, "SIGNSPEAK_CLASSIFIER_TIMEOUT_MS")
	overrideBool(&cfg.Speech.Enabled, "SIGNSPEAK_SPEECH_ENABLED")
	overrideString(&cfg.Speech.Mode, "SIGNSPEAK_SPEECH_MODE")
	overrideString(&cfg.Speech.Command, "SIGNSPEAK_SPEECH_COMMAND")
	overrideString(&cfg.Speech.Voice, "SIGNSPEAK_SPEECH_VOICE")
	overrideFloat(&cfg.Speech.Rate, "SIGNSPEAK_SPEECH_RATE")
	overrideFloat(&cfg.Speech.Pitch, "SIGNSPEAK_SPEECH_PITCH")
	overrideInt(&cfg.Speech.SampleRate, "SIGNSPEAK_SPEECH_SAMPLE_RATE")
	overrideInt(&cfg.Speech.Channels, "SIGNSPEAK_SPEECH_CHANNELS")
	overrideInt(&cfg.Speech.ChunkDurationMS, "SIGNSPEAK_SPEECH_CHUNK_DURATION_MS")
	overrideFloat(&cfg.Session.ConfidenceThreshold, "SIGNSPEAK_SESSION_CONFIDENCE_THRESHOLD")
	overrideInt(&cfg.Session.DwellMS, "SIGNSPEAK_SESSION_DWELL_MS")
	overrideInt(&cfg.Session.PollIntervalMS, "SIGNSPEAK_SESSION_POLL_INTERVAL_MS")
	overrideInt(&cfg.Session.IdleSpeakMS, "SIGNSPEAK_SESSION_IDLE_SPEAK_MS")
	overrideBool(&cfg.Session.SpeakOnDetect, "SIGNSPEAK_SESSION_SPEAK_ON_DETECT")
	overrideBool(&cfg.Session.AutoAddToSentence, "SIGNSPEAK_SESSION_AUTO_ADD_TO_SENTENCE")
	overrideBool(&cfg.Session.AutoSpeakSentence, "SIGNSPEAK_SESSION_AUTO_SPEAK_SENTENCE")
	overrideBool(&cfg.Session.AutoStart, "SIGNSPEAK_SESSION_AUTO_START")
	overrideString(&cfg.Session.ActorID, "SIGNSPEAK_SESSION_ACTOR_ID")
	overrideString(&cfg.Session.PrivacyScope, "SIGNSPEAK_SESSION_PRIVACY_SCOPE")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.EventStore.Path == "" {
		return errors.New("event_store.path must not be empty")
	}
	switch cfg.EventStore.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("event_store.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.EventStore.RetentionDays < 0 {
		return errors.New("event_store.retention_days must be >= 0")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	switch cfg.Capture.Mode {
	case "mock":
	case "exec":
		if cfg.Capture.Command == "" {
			return errors.New("capture.command must be set when mode=exec")
		}
	case "file":
		if cfg.Capture.Path == "" {
			return errors.New("capture.path must be set when mode=file")
		}
	default:
		return errors.New("capture.mode must be one of mock|exec|file")
	}
	switch cfg.Classifier.Mode {
	case "mock":
	case "http":
		if cfg.Classifier.Endpoint == "" {
			return errors.New("classifier.endpoint must be set when mode=http")
		}
		switch cfg.Classifier.Encoding {
		case "multipart", "json":
		default:
			return errors.New("classifier.encoding must be one of multipart|json")
		}
	case "exec":
		if cfg.Classifier.Command == "" {
			return errors.New("classifier.command must be set when mode=exec")
		}
	default:
		return errors.New("classifier.mode must be one of mock|http|exec")
	}
	if cfg.Speech.Enabled {
		switch cfg.Speech.Mode {
		case "mock", "exec":
		default:
			return errors.New("speech.mode must be one of mock|exec")
		}
		if cfg.Speech.Mode == "exec" && cfg.Speech.Command == "" {
			return errors.New("speech.command must be set when mode=exec")
		}
		if cfg.Speech.SampleRate <= 0 {
			return errors.New("speech.sample_rate must be positive")
		}
		if cfg.Speech.Channels <= 0 {
			return errors.New("speech.channels must be positive")
		}
	}
	if cfg.Session.ConfidenceThreshold < 0 || cfg.Session.ConfidenceThreshold > 1 {
		return errors.New("session.confidence_threshold must be within [0,1]")
	}
	if cfg.Session.DwellMS <= 0 {
		return errors.New("session.dwell_ms must be positive")
	}
	if cfg.Session.PollIntervalMS <= 0 {
		return errors.New("session.poll_interval_ms must be positive")
	}
	if cfg.Session.IdleSpeakMS <= 0 {
		return errors.New("session.idle_speak_ms must be positive")
	}
	return nil
}
