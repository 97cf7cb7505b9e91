package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Whisper  WhisperConfig  `mapstructure:"whisper"  validate:"required"`
	FFmpeg   FFmpegConfig   `mapstructure:"ffmpeg"`
	Gemini   GeminiConfig   `mapstructure:"gemini"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Jobs     JobsConfig     `mapstructure:"jobs"     validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Host                   string   `mapstructure:"host"`
	Port                   int      `mapstructure:"port"                     validate:"required,gt=0,lt=65536"`
	LogLevel               string   `mapstructure:"log_level"                validate:"required,oneof=debug info warn error"`
	MaxUploadMB            int      `mapstructure:"max_upload_mb"            validate:"gt=0"`
	ShutdownTimeoutSeconds int      `mapstructure:"shutdown_timeout_seconds" validate:"gt=0"`
	CORSAllowedOrigins     []string `mapstructure:"cors_allowed_origins"`
}

// Addr returns the listen address for the HTTP server.
func (c ServerConfig) Addr() string {
	return joinHostPort(c.Host, c.Port)
}

// MaxUploadBytes returns the upload limit in bytes.
func (c ServerConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// Engine backends.
const (
	BackendWhisperCpp = "whispercpp"
	BackendGemini     = "gemini"
)

// WhisperConfig contains transcription engine settings. The field names follow
// the WHISPER_* environment variables the service has always honored.
type WhisperConfig struct {
	Backend     string `mapstructure:"backend"     validate:"required,oneof=whispercpp gemini"`
	Model       string `mapstructure:"model"       validate:"required,oneof=tiny tiny.en base base.en small small.en medium medium.en large-v1 large-v2 large-v3 large-v3-turbo"`
	Language    string `mapstructure:"language"`
	Concurrency int    `mapstructure:"concurrency" validate:"gte=1"`
	BinaryPath  string `mapstructure:"binary_path"`
	ModelDir    string `mapstructure:"model_dir"`
	Threads     int    `mapstructure:"threads"     validate:"gte=0"`
}

// FFmpegConfig controls the audio normalization step.
type FFmpegConfig struct {
	BinaryPath string `mapstructure:"binary_path"`
	Enabled    bool   `mapstructure:"enabled"`
}

// GeminiConfig contains settings for the Gemini transcription backend.
type GeminiConfig struct {
	APIKey            string `mapstructure:"api_key"`
	ModelName         string `mapstructure:"model_name"`
	MaxRetries        int    `mapstructure:"max_retries"         validate:"gte=0,lte=10"`
	RetryDelaySeconds int    `mapstructure:"retry_delay_seconds" validate:"gte=0"`
}

// AuthConfig contains API authentication settings. Authentication is
// disabled when neither a JWT secret nor API key hashes are configured.
type AuthConfig struct {
	JWTSecret            string   `mapstructure:"jwt_secret"             validate:"omitempty,min=32"`
	APIKeyHashes         []string `mapstructure:"api_key_hashes"`
	TokenLifetimeMinutes int      `mapstructure:"token_lifetime_minutes" validate:"gt=0"`
}

// Enabled reports whether requests must be authenticated.
func (c AuthConfig) Enabled() bool {
	return c.JWTSecret != "" || len(c.APIKeyHashes) > 0
}

// DatabaseConfig contains the job store connection. An empty URL selects the
// in-memory store.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// RedisConfig contains transcript cache settings. An empty Addr disables caching.
type RedisConfig struct {
	Addr       string `mapstructure:"addr"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"          validate:"gte=0"`
	TTLMinutes int    `mapstructure:"ttl_minutes" validate:"gte=0"`
}

// JobsConfig contains settings for asynchronous transcription jobs.
type JobsConfig struct {
	WorkerCount        int    `mapstructure:"worker_count"          validate:"gte=1"`
	QueueSize          int    `mapstructure:"queue_size"            validate:"gte=1"`
	SpoolDir           string `mapstructure:"spool_dir"             validate:"required"`
	StuckJobAgeMinutes int    `mapstructure:"stuck_job_age_minutes" validate:"gte=1"`
}
