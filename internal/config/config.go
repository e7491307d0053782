package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config aggregates every setting the service needs. It is constructed once
// in main and handed to each component; nothing reads the environment later.
type Config struct {
	Server  ServerConfig
	Gemini  GeminiConfig
	Storage StorageConfig
	Log     LogConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	gemini, err := loadGeminiConfig()
	if err != nil {
		return nil, err
	}

	storage, err := loadStorageConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:  server,
		Gemini:  gemini,
		Storage: storage,
		Log:     loadLogConfig(),
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	addr := port
	if !strings.Contains(port, ":") {
		if strings.Contains(port, " ") {
			return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
		}
		addr = ":" + port
	}

	origins := splitAndTrim(getEnvOrDefault("ALLOWED_ORIGINS", "http://localhost:8501"))

	return ServerConfig{Addr: addr, AllowedOrigins: origins}, nil
}

// GeminiConfig describes the external model provider.
type GeminiConfig struct {
	APIKey    string
	TextModel string
	STTModel  string
	TTSModel  string
	TTSVoice  string
}

// Enabled reports whether provider credentials were supplied.
func (c GeminiConfig) Enabled() bool {
	return c.APIKey != ""
}

func loadGeminiConfig() (GeminiConfig, error) {
	return GeminiConfig{
		APIKey:    strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		TextModel: getEnvOrDefault("GEMINI_TEXT_MODEL", "gemini-2.0-flash"),
		STTModel:  getEnvOrDefault("GEMINI_STT_MODEL", "gemini-2.5-flash"),
		TTSModel:  getEnvOrDefault("GEMINI_TTS_MODEL", "gemini-2.5-flash-preview-tts"),
		TTSVoice:  getEnvOrDefault("GEMINI_TTS_VOICE", "Kore"),
	}, nil
}

// StorageConfig describes where audio files and the sqlite database live.
type StorageConfig struct {
	DataDir      string
	HistoryLimit int
}

func loadStorageConfig() (StorageConfig, error) {
	historyLimit := 50
	if override, err := parseOptionalIntEnv("HISTORY_LIMIT"); err != nil {
		return StorageConfig{}, err
	} else if override != nil {
		if *override < 1 {
			historyLimit = 1
		} else {
			historyLimit = *override
		}
	}

	return StorageConfig{
		DataDir:      getEnvOrDefault("DATA_DIR", "data"),
		HistoryLimit: historyLimit,
	}, nil
}

// LogConfig controls zap verbosity.
type LogConfig struct {
	Level string
}

func loadLogConfig() LogConfig {
	return LogConfig{Level: getEnvOrDefault("LOG_LEVEL", "info")}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
