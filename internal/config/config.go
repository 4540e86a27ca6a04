// Package config loads service settings from defaults, an optional YAML
// file, a .env file and NEWSCHECK_* environment variables, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/zombar/newscheck/internal/classifier"
	"github.com/zombar/newscheck/internal/llm"
)

// EnvPrefix namespaces environment variables
const EnvPrefix = "NEWSCHECK"

// Config is the complete service configuration
type Config struct {
	Port      string
	DBPath    string
	RedisAddr string
	LogLevel  string
	LogFormat string

	CORSOrigins []string

	LLM llm.Config

	PredictCommand classifier.Command
	RetrainCommand classifier.Command
	TrainCommand   classifier.Command
	FeedbackPath   string
	DatasetPath    string

	FeedbackThreshold      int
	RetrainSchedule        string
	CalibrationSchedule    string
	CalibrationRecentLimit int
	WorkerConcurrency      int
	TracingEndpoint        string
	TracingSampleRatio     float64
	MaxUploadBytes         int64
}

// SetDefaults registers every key with its default value
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("db_path", "newscheck.db")
	v.SetDefault("redis_addr", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("cors.allowed_origins", []string{"*"})

	v.SetDefault("llm.provider", "groq")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.timeout", llm.DefaultTimeout)
	v.SetDefault("llm.max_tokens", 800)
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.cache_ttl", 30*time.Minute)
	v.SetDefault("llm.requests_per_second", 0.5)

	v.SetDefault("ml.dir", "")
	v.SetDefault("ml.timeout", time.Duration(0))
	v.SetDefault("ml.predict_command", "python ml/predict.py")
	v.SetDefault("ml.retrain_command", "python ml/retrain_with_feedback.py")
	v.SetDefault("ml.train_command", "python ml/train_model.py")
	v.SetDefault("ml.feedback_path", "data/feedback_logs.json")
	v.SetDefault("ml.dataset_path", "ml/dataset.json")

	v.SetDefault("feedback.threshold", 3)
	v.SetDefault("schedule.retrain", "@every 1h")
	v.SetDefault("schedule.calibration", "")
	v.SetDefault("calibration.recent_limit", 50)

	v.SetDefault("worker.concurrency", 2)
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.sample_ratio", 1.0)
	v.SetDefault("upload.max_bytes", int64(32<<20))
}

// NewViper returns a viper instance wired to defaults and the environment.
// A non-empty configFile is read as YAML.
func NewViper(configFile string) (*viper.Viper, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}

	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
		slog.Info("config file loaded", "path", v.ConfigFileUsed())
	}
	return v, nil
}

// Load resolves a Config from v
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:        v.GetString("port"),
		DBPath:      v.GetString("db_path"),
		RedisAddr:   v.GetString("redis_addr"),
		LogLevel:    v.GetString("log.level"),
		LogFormat:   v.GetString("log.format"),
		CORSOrigins: v.GetStringSlice("cors.allowed_origins"),
		LLM: llm.Config{
			Provider:          v.GetString("llm.provider"),
			Model:             v.GetString("llm.model"),
			APIKey:            v.GetString("llm.api_key"),
			BaseURL:           v.GetString("llm.base_url"),
			Timeout:           v.GetDuration("llm.timeout"),
			MaxTokens:         v.GetInt("llm.max_tokens"),
			Temperature:       v.GetFloat64("llm.temperature"),
			CacheTTL:          v.GetDuration("llm.cache_ttl"),
			RequestsPerSecond: v.GetFloat64("llm.requests_per_second"),
		},
		FeedbackPath:           v.GetString("ml.feedback_path"),
		DatasetPath:            v.GetString("ml.dataset_path"),
		FeedbackThreshold:      v.GetInt("feedback.threshold"),
		RetrainSchedule:        v.GetString("schedule.retrain"),
		CalibrationSchedule:    v.GetString("schedule.calibration"),
		CalibrationRecentLimit: v.GetInt("calibration.recent_limit"),
		WorkerConcurrency:      v.GetInt("worker.concurrency"),
		TracingEndpoint:        v.GetString("tracing.endpoint"),
		TracingSampleRatio:     v.GetFloat64("tracing.sample_ratio"),
		MaxUploadBytes:         v.GetInt64("upload.max_bytes"),
	}

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = providerAPIKey(cfg.LLM.Provider)
	}

	dir := v.GetString("ml.dir")
	timeout := v.GetDuration("ml.timeout")
	commands := []struct {
		key string
		dst *classifier.Command
	}{
		{"ml.predict_command", &cfg.PredictCommand},
		{"ml.retrain_command", &cfg.RetrainCommand},
		{"ml.train_command", &cfg.TrainCommand},
	}
	for _, c := range commands {
		cmd, err := classifier.ParseCommand(strings.Fields(v.GetString(c.key)))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", c.key, err)
		}
		cmd.Dir = dir
		cmd.Timeout = timeout
		*c.dst = cmd
	}

	if cfg.FeedbackThreshold < 1 {
		return nil, fmt.Errorf("feedback.threshold must be at least 1, got %d", cfg.FeedbackThreshold)
	}
	return cfg, nil
}

// providerAPIKey falls back to the vendor's conventional variable
func providerAPIKey(provider string) string {
	switch strings.ToLower(provider) {
	case "groq":
		return os.Getenv("GROQ_API_KEY")
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "anthropic", "claude":
		return os.Getenv("ANTHROPIC_API_KEY")
	}
	return ""
}

// Dump renders the effective settings of v as YAML with secrets masked
func Dump(v *viper.Viper) ([]byte, error) {
	settings := v.AllSettings()
	if section, ok := settings["llm"].(map[string]any); ok {
		if key, _ := section["api_key"].(string); key != "" {
			section["api_key"] = "****"
		}
	}
	out, err := yaml.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to render config: %w", err)
	}
	return out, nil
}
