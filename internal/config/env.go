package config

import (
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvConfig holds all environment-based configuration.
// Nested structs use underscore delimiter (e.g., EMBEDDING_ENDPOINT_BASE_URL).
type EnvConfig struct {
	// Host is the server host to bind to.
	// Env: HOST (default: 0.0.0.0)
	Host string `envconfig:"HOST" default:"0.0.0.0"`

	// Port is the server port to listen on.
	// Env: PORT (default: 8080)
	Port int `envconfig:"PORT" default:"8080"`

	// DataDir is the data directory path.
	// Env: DATA_DIR
	// Default: ~/.jembed
	DataDir string `envconfig:"DATA_DIR"`

	// LogLevel is the log verbosity level.
	// Env: LOG_LEVEL (default: INFO)
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`

	// LogFormat is the log output format (pretty or json).
	// Env: LOG_FORMAT (default: pretty)
	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// APIToken guards POST /embed. Requests must send "Authorization: Bearer <token>".
	// Env: EMBED_API_TOKEN
	APIToken string `envconfig:"EMBED_API_TOKEN"`

	// Backend selects the embedding backend (hugot or openai).
	// Env: BACKEND (default: hugot)
	Backend string `envconfig:"BACKEND" default:"hugot"`

	// ModelID is the Hugging Face model identifier.
	// Env: MODEL_ID (default: sonoisa/sentence-bert-base-ja-mean-tokens-v2)
	ModelID string `envconfig:"MODEL_ID" default:"sonoisa/sentence-bert-base-ja-mean-tokens-v2"`

	// ModelDir is where model files are looked up and downloaded to.
	// Env: MODEL_DIR
	// Default: {data_dir}/models
	ModelDir string `envconfig:"MODEL_DIR"`

	// ModelDownload allows fetching a missing model from the hub at startup.
	// Env: MODEL_DOWNLOAD (default: true)
	ModelDownload bool `envconfig:"MODEL_DOWNLOAD" default:"true"`

	// ModelConvert allows converting a hub model that has no ONNX export with
	// uv and PyTorch.
	// Env: MODEL_CONVERT (default: true)
	ModelConvert bool `envconfig:"MODEL_CONVERT" default:"true"`

	// PreTokenizer splits text before the model's tokenizer: auto follows the
	// model's tokenizer_config.json, mecab forces IPADIC morphemes, none disables.
	// Env: PRE_TOKENIZER (default: auto)
	PreTokenizer string `envconfig:"PRE_TOKENIZER" default:"auto"`

	// HFToken authenticates hub downloads for gated models.
	// Env: HF_TOKEN
	HFToken string `envconfig:"HF_TOKEN"`

	// Device is the device policy: cuda, auto or cpu.
	// Env: DEVICE (default: cuda)
	Device string `envconfig:"DEVICE" default:"cuda"`

	// DeviceID is the CUDA device ordinal.
	// Env: DEVICE_ID (default: 0)
	DeviceID int `envconfig:"DEVICE_ID" default:"0"`

	// EmbeddingEndpoint configures the remote embedding service used by BACKEND=openai.
	EmbeddingEndpoint EndpointEnv `envconfig:"EMBEDDING_ENDPOINT"`

	// ScaledownWindow is the idle time in seconds after which the server exits.
	// Env: SCALEDOWN_WINDOW (default: 0, disabled)
	ScaledownWindow float64 `envconfig:"SCALEDOWN_WINDOW" default:"0"`

	// CORSAllowedOrigins is a comma-separated list of allowed origins.
	// Env: CORS_ALLOWED_ORIGINS
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS"`

	// MCPEnabled mounts the MCP endpoint at /mcp.
	// Env: MCP_ENABLED (default: false)
	MCPEnabled bool `envconfig:"MCP_ENABLED" default:"false"`

	// MetricsEnabled exposes Prometheus metrics at /metrics.
	// Env: METRICS_ENABLED (default: false)
	MetricsEnabled bool `envconfig:"METRICS_ENABLED" default:"false"`
}

// EndpointEnv holds environment configuration for a remote embedding endpoint.
type EndpointEnv struct {
	// BaseURL is the base URL for the endpoint.
	// Env: *_BASE_URL
	BaseURL string `envconfig:"BASE_URL"`

	// Model is the model identifier.
	// Env: *_MODEL
	Model string `envconfig:"MODEL"`

	// APIKey is the API key for authentication.
	// Env: *_API_KEY
	APIKey string `envconfig:"API_KEY"`

	// Timeout is the request timeout in seconds.
	// Env: *_TIMEOUT (default: 60)
	Timeout float64 `envconfig:"TIMEOUT" default:"60"`

	// MaxRetries is the maximum number of retries.
	// Env: *_MAX_RETRIES (default: 0, no retries)
	MaxRetries int `envconfig:"MAX_RETRIES" default:"0"`

	// InitialDelay is the initial retry delay in seconds.
	// Env: *_INITIAL_DELAY (default: 2.0)
	InitialDelay float64 `envconfig:"INITIAL_DELAY" default:"2.0"`

	// BackoffFactor is the retry backoff multiplier.
	// Env: *_BACKOFF_FACTOR (default: 2.0)
	BackoffFactor float64 `envconfig:"BACKOFF_FACTOR" default:"2.0"`
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (EnvConfig, error) {
	return LoadFromEnvWithPrefix("")
}

// LoadFromEnvWithPrefix loads configuration with a custom prefix.
// For example, prefix "JEMBED" would require JEMBED_PORT instead of PORT.
func LoadFromEnvWithPrefix(prefix string) (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// ToAppConfig converts EnvConfig to AppConfig.
func (e EnvConfig) ToAppConfig() AppConfig {
	cfg := NewAppConfig()

	if e.Host != "" {
		cfg = applyOption(cfg, WithHost(e.Host))
	}
	if e.Port != 0 {
		cfg = applyOption(cfg, WithPort(e.Port))
	}
	if e.DataDir != "" {
		cfg = applyOption(cfg, WithDataDir(e.DataDir))
	}
	if e.LogLevel != "" {
		cfg = applyOption(cfg, WithLogLevel(e.LogLevel))
	}
	if e.LogFormat != "" {
		cfg = applyOption(cfg, WithLogFormat(parseLogFormat(e.LogFormat)))
	}

	// Kept verbatim: surrounding whitespace is part of the secret.
	cfg = applyOption(cfg, WithAPIToken(e.APIToken))

	if e.Backend != "" {
		cfg = applyOption(cfg, WithBackend(Backend(strings.ToLower(e.Backend))))
	}

	cfg = applyOption(cfg, WithModelConfig(e.toModelConfig()))

	if e.EmbeddingEndpoint.IsConfigured() {
		cfg = applyOption(cfg, WithEmbeddingEndpoint(e.EmbeddingEndpoint.ToEndpoint()))
	}

	cfg = applyOption(cfg, WithScaledownWindow(seconds(e.ScaledownWindow)))

	if e.CORSAllowedOrigins != "" {
		cfg = applyOption(cfg, WithCORSOrigins(ParseList(e.CORSAllowedOrigins)))
	}

	cfg = applyOption(cfg, WithMCPEnabled(e.MCPEnabled))
	cfg = applyOption(cfg, WithMetricsEnabled(e.MetricsEnabled))

	return cfg
}

func (e EnvConfig) toModelConfig() ModelConfig {
	m := NewModelConfig().
		WithDownload(e.ModelDownload).
		WithConvert(e.ModelConvert).
		WithHubToken(e.HFToken).
		WithDeviceID(e.DeviceID)
	if e.ModelID != "" {
		m = m.WithID(e.ModelID)
	}
	if e.ModelDir != "" {
		m = m.WithDir(e.ModelDir)
	}
	if e.Device != "" {
		m = m.WithDevice(Device(strings.ToLower(e.Device)))
	}
	if e.PreTokenizer != "" {
		m = m.WithPreTokenizer(strings.ToLower(e.PreTokenizer))
	}
	return m
}

// applyOption applies an option to the config.
func applyOption(cfg AppConfig, opt AppConfigOption) AppConfig {
	opt(&cfg)
	return cfg
}

// IsConfigured returns true if the endpoint has a model configured.
func (e EndpointEnv) IsConfigured() bool {
	return e.Model != ""
}

// ToEndpoint converts EndpointEnv to Endpoint.
func (e EndpointEnv) ToEndpoint() Endpoint {
	opts := []EndpointOption{
		WithModel(e.Model),
		WithTimeout(seconds(e.Timeout)),
		WithMaxRetries(e.MaxRetries),
		WithInitialDelay(seconds(e.InitialDelay)),
		WithBackoffFactor(e.BackoffFactor),
	}

	if e.BaseURL != "" {
		opts = append(opts, WithBaseURL(e.BaseURL))
	}
	if e.APIKey != "" {
		opts = append(opts, WithAPIKey(e.APIKey))
	}

	return NewEndpointWithOptions(opts...)
}

// parseLogFormat parses a log format string.
func parseLogFormat(s string) LogFormat {
	switch strings.ToLower(s) {
	case "json":
		return LogFormatJSON
	default:
		return LogFormatPretty
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
