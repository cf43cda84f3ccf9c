package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default location of the YAML config file.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	DatabaseURL string `yaml:"databaseURL"`

	RedisAddr          string `yaml:"redisAddr"`
	RedisPassword      string `yaml:"redisPassword"`
	RecordingStream    string `yaml:"recordingStream"`
	JobStream          string `yaml:"jobStream"`
	TriggerGroup       string `yaml:"triggerGroup"`
	TriggerConcurrency int    `yaml:"triggerConcurrency"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`

	AIBaseURL       string `yaml:"aiBaseURL"`
	AIAPIKey        string `yaml:"aiAPIKey"`
	TranscribeModel string `yaml:"transcribeModel"`
	GenerateModel   string `yaml:"generateModel"`

	SegmentSeconds int    `yaml:"segmentSeconds"`
	FFmpegPath     string `yaml:"ffmpegPath"`

	AuthTokenSecret string `yaml:"authTokenSecret"`
}

// Load reads config from path (defaults to config.yaml) and applies
// environment overrides.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	if v := os.Getenv("AI_BASE_URL"); v != "" {
		cfg.AIBaseURL = v
	}
	if v := os.Getenv("AI_API_KEY"); v != "" {
		cfg.AIAPIKey = v
	}
	if v := os.Getenv("TRANSCRIBE_MODEL"); v != "" {
		cfg.TranscribeModel = v
	}
	if v := os.Getenv("GENERATE_MODEL"); v != "" {
		cfg.GenerateModel = v
	}
	if v := os.Getenv("SEGMENT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SegmentSeconds = n
		}
	}
	if v := os.Getenv("TRIGGER_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.TriggerConcurrency = n
		}
	}
	if v := os.Getenv("FFMPEG_PATH"); v != "" {
		cfg.FFmpegPath = v
	}
	if v := os.Getenv("AUTH_TOKEN_SECRET"); v != "" {
		cfg.AuthTokenSecret = v
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if cfg.RedisAddr == "" {
		return errors.New("config: redisAddr is required (set in config.yaml or REDIS_ADDR)")
	}
	if cfg.MinioEndpoint == "" || cfg.MinioBucket == "" {
		return errors.New("config: minioEndpoint and minioBucket are required")
	}
	if cfg.AIBaseURL == "" {
		return errors.New("config: aiBaseURL is required (set in config.yaml or AI_BASE_URL)")
	}
	if cfg.AIAPIKey == "" {
		return errors.New("config: aiAPIKey is required (set in config.yaml or AI_API_KEY)")
	}
	if cfg.TranscribeModel == "" || cfg.GenerateModel == "" {
		return errors.New("config: transcribeModel and generateModel are required")
	}
	if cfg.SegmentSeconds < 0 {
		return errors.New("config: segmentSeconds must be >= 0")
	}
	if cfg.AuthTokenSecret == "" {
		return errors.New("config: authTokenSecret is required (set in config.yaml or AUTH_TOKEN_SECRET)")
	}
	return nil
}
