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
	LogLevel     string `yaml:"log_level"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type SocketConfig struct {
	Path           string `yaml:"path"`
	ReadLimitBytes int64  `yaml:"read_limit_bytes"`
}

type Config struct {
	ServiceName string           `yaml:"service_name"`
	Environment string           `yaml:"environment"`
	HTTP        HTTPConfig       `yaml:"http"`
	Socket      SocketConfig     `yaml:"socket"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Bus         BusConfig        `yaml:"bus"`
	EventStore  EventStoreConfig `yaml:"event_store"`
	ASR         ASRConfig        `yaml:"asr"`
	TTS         TTSConfig        `yaml:"tts"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type EventStoreConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type ASRConfig struct {
	Mode            string  `yaml:"mode"` // mock, exec
	Command         string  `yaml:"command"`
	Language        string  `yaml:"language"`
	SampleRate      int     `yaml:"sample_rate"`
	Channels        int     `yaml:"channels"`
	MinBufferBytes  int     `yaml:"min_buffer_bytes"`
	ChunkBytes      int     `yaml:"chunk_bytes"`
	OverlapBytes    int     `yaml:"overlap_bytes"`
	MinChunkSeconds float64 `yaml:"min_chunk_seconds"`
}

type TTSConfig struct {
	Mode       string        `yaml:"mode"` // mock, exec
	Command    string        `yaml:"command"`
	VoicesDir  string        `yaml:"voices_dir"`
	CacheSize  int           `yaml:"cache_size"`
	SampleRate int           `yaml:"sample_rate"`
	Prewarm    PrewarmConfig `yaml:"prewarm"`
}

type PrewarmConfig struct {
	Enabled bool     `yaml:"enabled"`
	Phrases []string `yaml:"phrases"`
}

func Default() Config {
	return Config{
		ServiceName: "aura-speech",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Socket: SocketConfig{
			Path:           "/ws",
			ReadLimitBytes: 10 * 1024 * 1024,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPEndpoint: "",
			OTLPInsecure: true,
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		EventStore: EventStoreConfig{
			Enabled:       true,
			Path:          "./data/aura-events.db",
			RetentionDays: 30,
		},
		ASR: ASRConfig{
			Mode:            "mock",
			SampleRate:      16000,
			Channels:        1,
			MinBufferBytes:  8000,
			ChunkBytes:      320000,
			OverlapBytes:    16000,
			MinChunkSeconds: 0.3,
		},
		TTS: TTSConfig{
			Mode:       "mock",
			VoicesDir:  "./data/voices",
			CacheSize:  50,
			SampleRate: 22050,
			Prewarm: PrewarmConfig{
				Enabled: true,
				Phrases: []string{
					"你好，我是你的数字人助手",
					"今天天气不错，24度晴朗。出门记得戴帽子防晒哦~",
					"好的，我来帮您导航。",
					"好的，我来帮您看看药。",
					"好的，让我们一起看看老照片吧~",
					"不客气，能帮到您是我的荣幸！",
					"抱歉，我没太听清楚，您能再说一遍吗？",
				},
			},
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
	overrideString(&cfg.ServiceName, "AURA_SERVICE_NAME")
	overrideString(&cfg.Environment, "AURA_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "AURA_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "AURA_HTTP_PORT")
	overrideString(&cfg.Socket.Path, "AURA_SOCKET_PATH")
	overrideInt64(&cfg.Socket.ReadLimitBytes, "AURA_SOCKET_READ_LIMIT_BYTES")
	overrideString(&cfg.Telemetry.LogLevel, "AURA_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "AURA_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "AURA_TELEMETRY_OTLP_INSECURE")
	overrideBool(&cfg.Bus.Embedded, "AURA_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "AURA_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "AURA_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "AURA_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "AURA_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "AURA_BUS_TOKEN")
	overrideInt(&cfg.Bus.ConnectTimeout, "AURA_BUS_CONNECT_TIMEOUT_MS")
	overrideBool(&cfg.EventStore.Enabled, "AURA_EVENT_STORE_ENABLED")
	overrideString(&cfg.EventStore.Path, "AURA_EVENT_STORE_PATH")
	overrideInt(&cfg.EventStore.RetentionDays, "AURA_EVENT_STORE_RETENTION_DAYS")
	overrideBool(&cfg.EventStore.VacuumOnStart, "AURA_EVENT_STORE_VACUUM_ON_START")
	overrideString(&cfg.ASR.Mode, "AURA_ASR_MODE")
	overrideString(&cfg.ASR.Command, "AURA_ASR_COMMAND")
	overrideString(&cfg.ASR.Language, "AURA_ASR_LANGUAGE")
	overrideInt(&cfg.ASR.SampleRate, "AURA_ASR_SAMPLE_RATE")
	overrideInt(&cfg.ASR.Channels, "AURA_ASR_CHANNELS")
	overrideInt(&cfg.ASR.MinBufferBytes, "AURA_ASR_MIN_BUFFER_BYTES")
	overrideInt(&cfg.ASR.ChunkBytes, "AURA_ASR_CHUNK_BYTES")
	overrideInt(&cfg.ASR.OverlapBytes, "AURA_ASR_OVERLAP_BYTES")
	overrideFloat(&cfg.ASR.MinChunkSeconds, "AURA_ASR_MIN_CHUNK_SECONDS")
	overrideString(&cfg.TTS.Mode, "AURA_TTS_MODE")
	overrideString(&cfg.TTS.Command, "AURA_TTS_COMMAND")
	overrideString(&cfg.TTS.VoicesDir, "AURA_TTS_VOICES_DIR")
	overrideInt(&cfg.TTS.CacheSize, "AURA_TTS_CACHE_SIZE")
	overrideInt(&cfg.TTS.SampleRate, "AURA_TTS_SAMPLE_RATE")
	overrideBool(&cfg.TTS.Prewarm.Enabled, "AURA_TTS_PREWARM_ENABLED")
	overrideStringSlice(&cfg.TTS.Prewarm.Phrases, "AURA_TTS_PREWARM_PHRASES")
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

func overrideInt64(target *int64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
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
	if cfg.ServiceName == "" {
		return errors.New("service_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if !strings.HasPrefix(cfg.Socket.Path, "/") {
		return errors.New("socket.path must start with /")
	}
	if cfg.Socket.ReadLimitBytes <= 0 {
		return errors.New("socket.read_limit_bytes must be positive")
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
	if cfg.EventStore.Enabled {
		if cfg.EventStore.Path == "" {
			return errors.New("event_store.path must not be empty when the store is enabled")
		}
		if cfg.EventStore.RetentionDays < 0 {
			return errors.New("event_store.retention_days must be >= 0")
		}
	}
	switch cfg.ASR.Mode {
	case "mock", "exec":
	default:
		return errors.New("asr.mode must be one of mock|exec")
	}
	if cfg.ASR.Mode == "exec" && cfg.ASR.Command == "" {
		return errors.New("asr.command must be set when mode=exec")
	}
	if cfg.ASR.SampleRate <= 0 {
		return errors.New("asr.sample_rate must be positive")
	}
	if cfg.ASR.Channels <= 0 {
		return errors.New("asr.channels must be positive")
	}
	if cfg.ASR.MinBufferBytes < 0 {
		return errors.New("asr.min_buffer_bytes must be >= 0")
	}
	if cfg.ASR.ChunkBytes <= 0 {
		return errors.New("asr.chunk_bytes must be positive")
	}
	if cfg.ASR.OverlapBytes < 0 || cfg.ASR.OverlapBytes >= cfg.ASR.ChunkBytes {
		return errors.New("asr.overlap_bytes must be >= 0 and smaller than asr.chunk_bytes")
	}
	if cfg.ASR.MinChunkSeconds < 0 {
		return errors.New("asr.min_chunk_seconds must be >= 0")
	}
	switch cfg.TTS.Mode {
	case "mock", "exec":
	default:
		return errors.New("tts.mode must be one of mock|exec")
	}
	if cfg.TTS.Mode == "exec" && cfg.TTS.Command == "" {
		return errors.New("tts.command must be set when mode=exec")
	}
	if cfg.TTS.VoicesDir == "" {
		return errors.New("tts.voices_dir must not be empty")
	}
	if cfg.TTS.CacheSize < 0 {
		return errors.New("tts.cache_size must be >= 0")
	}
	if cfg.TTS.SampleRate <= 0 {
		return errors.New("tts.sample_rate must be positive")
	}
	return nil
}
