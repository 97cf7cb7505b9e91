package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/audio2srt/internal/domain"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for namespaced environment variables,
// e.g. AUDIO2SRT_SERVER_LOG_LEVEL.
const EnvPrefix = "AUDIO2SRT"

// ConfigFileEnv names the environment variable that points at an explicit config file.
const ConfigFileEnv = "AUDIO2SRT_CONFIG_FILE"

// legacyEnv maps config keys to the bare environment variables set by hosting
// platforms and by existing deployments of the service.
var legacyEnv = map[string]string{
	"server.port":         "PORT",
	"whisper.model":       "WHISPER_MODEL",
	"whisper.language":    "WHISPER_LANG",
	"whisper.concurrency": "WHISPER_CONCURRENCY",
	"gemini.api_key":      "GEMINI_API_KEY",
	"database.url":        "DATABASE_URL",
	"redis.addr":          "REDIS_ADDR",
}

// setDefaults registers a default for every key. Viper only consults the
// environment for keys it knows about, so every key must appear here.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.max_upload_mb", 100)
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("server.cors_allowed_origins", []string{"*"})

	v.SetDefault("whisper.backend", BackendWhisperCpp)
	v.SetDefault("whisper.model", "base")
	v.SetDefault("whisper.language", "")
	v.SetDefault("whisper.concurrency", 1)
	v.SetDefault("whisper.binary_path", "whisper-cli")
	v.SetDefault("whisper.model_dir", "/models")
	v.SetDefault("whisper.threads", 0)

	v.SetDefault("ffmpeg.binary_path", "ffmpeg")
	v.SetDefault("ffmpeg.enabled", true)

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", "gemini-2.0-flash")
	v.SetDefault("gemini.max_retries", 3)
	v.SetDefault("gemini.retry_delay_seconds", 2)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.api_key_hashes", []string{})
	v.SetDefault("auth.token_lifetime_minutes", 60)

	v.SetDefault("database.url", "")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl_minutes", 1440)

	v.SetDefault("jobs.worker_count", 1)
	v.SetDefault("jobs.queue_size", 100)
	v.SetDefault("jobs.spool_dir", filepath.Join(os.TempDir(), "audio2srt-jobs"))
	v.SetDefault("jobs.stuck_job_age_minutes", 30)
}

// Load configuration from environment variables and optionally a config file.
// Environment variables take precedence over values from the config file, and
// the config file takes precedence over defaults.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path := os.Getenv(ConfigFileEnv); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, bare := range legacyEnv {
		namespaced := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, namespaced, bare); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", bare, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Whisper.Language = domain.NormalizeLanguage(cfg.Whisper.Language)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if err := domain.ValidateLanguage(cfg.Whisper.Language); err != nil {
		return fmt.Errorf("config validation failed: whisper.language: %w", err)
	}

	if cfg.Whisper.Backend == BackendGemini && cfg.Gemini.APIKey == "" {
		return errors.New("config validation failed: gemini.api_key is required when whisper.backend is gemini")
	}

	if cfg.Whisper.Backend == BackendWhisperCpp && cfg.Whisper.BinaryPath == "" {
		return errors.New("config validation failed: whisper.binary_path is required for the whispercpp backend")
	}

	return nil
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
