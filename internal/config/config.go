// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultHost                  = "0.0.0.0"
	DefaultPort                  = 8080
	DefaultLogLevel              = "INFO"
	DefaultModelID               = "sonoisa/sentence-bert-base-ja-mean-tokens-v2"
	DefaultModelSubdir           = "models"
	DefaultDeviceID              = 0
	DefaultPreTokenizer          = "auto"
	DefaultEndpointTimeout       = 60 * time.Second
	DefaultEndpointMaxRetries    = 0
	DefaultEndpointInitialDelay  = 2 * time.Second
	DefaultEndpointBackoffFactor = 2.0
	DefaultScaledownWindow       = time.Duration(0)
)

// LogFormat represents the log output format.
type LogFormat string

// LogFormat values.
const (
	LogFormatPretty LogFormat = "pretty"
	LogFormatJSON   LogFormat = "json"
)

// Backend selects where embeddings are computed.
type Backend string

// Backend values.
const (
	// BackendHugot runs the model in-process through hugot.
	BackendHugot Backend = "hugot"
	// BackendOpenAI forwards to an OpenAI-compatible embeddings endpoint.
	BackendOpenAI Backend = "openai"
)

// Device is the compute device policy for the resident model.
type Device string

// Device values.
const (
	// DeviceCUDA requires a CUDA accelerator and fails startup without one.
	DeviceCUDA Device = "cuda"
	// DeviceAuto prefers CUDA and falls back to the CPU.
	DeviceAuto Device = "auto"
	// DeviceCPU never uses an accelerator.
	DeviceCPU Device = "cpu"
)

// ModelConfig configures the resident embedding model.
type ModelConfig struct {
	id       string
	dir      string
	device   Device
	deviceID int
	download bool
	convert  bool
	preTok   string
	hubToken string
}

// NewModelConfig creates a new ModelConfig with defaults.
func NewModelConfig() ModelConfig {
	return ModelConfig{
		id:       DefaultModelID,
		device:   DeviceCUDA,
		deviceID: DefaultDeviceID,
		download: true,
		convert:  true,
		preTok:   DefaultPreTokenizer,
	}
}

// ID returns the Hugging Face model identifier.
func (m ModelConfig) ID() string { return m.id }

// Dir returns the model cache directory. Empty means derived from the data dir.
func (m ModelConfig) Dir() string { return m.dir }

// Device returns the device policy.
func (m ModelConfig) Device() Device { return m.device }

// DeviceID returns the accelerator ordinal.
func (m ModelConfig) DeviceID() int { return m.deviceID }

// Download reports whether a missing model may be fetched from the hub.
func (m ModelConfig) Download() bool { return m.download }

// Convert reports whether a hub model without an ONNX export may be
// converted locally with uv.
func (m ModelConfig) Convert() bool { return m.convert }

// PreTokenizer returns the text splitting mode: auto, mecab or none.
func (m ModelConfig) PreTokenizer() string { return m.preTok }

// HubToken returns the Hugging Face access token.
func (m ModelConfig) HubToken() string { return m.hubToken }

// WithID returns a new config with the specified model identifier.
func (m ModelConfig) WithID(id string) ModelConfig {
	m.id = id
	return m
}

// WithDir returns a new config with the specified model directory.
func (m ModelConfig) WithDir(dir string) ModelConfig {
	m.dir = dir
	return m
}

// WithDevice returns a new config with the specified device policy.
func (m ModelConfig) WithDevice(d Device) ModelConfig {
	m.device = d
	return m
}

// WithDeviceID returns a new config with the specified accelerator ordinal.
func (m ModelConfig) WithDeviceID(id int) ModelConfig {
	m.deviceID = id
	return m
}

// WithDownload returns a new config with downloads enabled or disabled.
func (m ModelConfig) WithDownload(enabled bool) ModelConfig {
	m.download = enabled
	return m
}

// WithConvert returns a new config with local conversion enabled or disabled.
func (m ModelConfig) WithConvert(enabled bool) ModelConfig {
	m.convert = enabled
	return m
}

// WithPreTokenizer returns a new config with the specified pre-tokenizer mode.
func (m ModelConfig) WithPreTokenizer(mode string) ModelConfig {
	m.preTok = mode
	return m
}

// WithHubToken returns a new config with the specified hub token.
func (m ModelConfig) WithHubToken(token string) ModelConfig {
	m.hubToken = token
	return m
}

// Endpoint configures a remote OpenAI-compatible embeddings service.
type Endpoint struct {
	baseURL       string
	model         string
	apiKey        string
	timeout       time.Duration
	maxRetries    int
	initialDelay  time.Duration
	backoffFactor float64
}

// NewEndpoint creates a new Endpoint with defaults.
func NewEndpoint() Endpoint {
	return Endpoint{
		timeout:       DefaultEndpointTimeout,
		maxRetries:    DefaultEndpointMaxRetries,
		initialDelay:  DefaultEndpointInitialDelay,
		backoffFactor: DefaultEndpointBackoffFactor,
	}
}

// BaseURL returns the base URL for the endpoint.
func (e Endpoint) BaseURL() string { return e.baseURL }

// Model returns the model identifier.
func (e Endpoint) Model() string { return e.model }

// APIKey returns the API key.
func (e Endpoint) APIKey() string { return e.apiKey }

// Timeout returns the request timeout.
func (e Endpoint) Timeout() time.Duration { return e.timeout }

// MaxRetries returns the maximum retry count.
func (e Endpoint) MaxRetries() int { return e.maxRetries }

// InitialDelay returns the initial retry delay.
func (e Endpoint) InitialDelay() time.Duration { return e.initialDelay }

// BackoffFactor returns the retry backoff multiplier.
func (e Endpoint) BackoffFactor() float64 { return e.backoffFactor }

// IsConfigured returns true if the endpoint has required configuration.
func (e Endpoint) IsConfigured() bool {
	return e.model != ""
}

// EndpointOption is a functional option for Endpoint.
type EndpointOption func(*Endpoint)

// WithBaseURL sets the base URL.
func WithBaseURL(url string) EndpointOption {
	return func(e *Endpoint) { e.baseURL = url }
}

// WithModel sets the model.
func WithModel(model string) EndpointOption {
	return func(e *Endpoint) { e.model = model }
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) EndpointOption {
	return func(e *Endpoint) { e.apiKey = key }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) EndpointOption {
	return func(e *Endpoint) { e.timeout = d }
}

// WithMaxRetries sets the maximum retry count.
func WithMaxRetries(n int) EndpointOption {
	return func(e *Endpoint) { e.maxRetries = n }
}

// WithInitialDelay sets the initial retry delay.
func WithInitialDelay(d time.Duration) EndpointOption {
	return func(e *Endpoint) { e.initialDelay = d }
}

// WithBackoffFactor sets the retry backoff multiplier.
func WithBackoffFactor(f float64) EndpointOption {
	return func(e *Endpoint) { e.backoffFactor = f }
}

// NewEndpointWithOptions creates an Endpoint with functional options.
func NewEndpointWithOptions(opts ...EndpointOption) Endpoint {
	e := NewEndpoint()
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// AppConfig holds the main application configuration.
type AppConfig struct {
	host              string
	port              int
	dataDir           string
	logLevel          string
	logFormat         LogFormat
	apiToken          string
	backend           Backend
	model             ModelConfig
	embeddingEndpoint *Endpoint
	scaledownWindow   time.Duration
	corsOrigins       []string
	mcpEnabled        bool
	metricsEnabled    bool
}

// DefaultDataDir returns the default data directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".jembed"
	}
	return filepath.Join(home, ".jembed")
}

// NewAppConfig creates a new AppConfig with defaults.
func NewAppConfig() AppConfig {
	return AppConfig{
		host:            DefaultHost,
		port:            DefaultPort,
		dataDir:         DefaultDataDir(),
		logLevel:        DefaultLogLevel,
		logFormat:       LogFormatPretty,
		backend:         BackendHugot,
		model:           NewModelConfig(),
		scaledownWindow: DefaultScaledownWindow,
		corsOrigins:     []string{},
	}
}

// Host returns the server host to bind to.
func (c AppConfig) Host() string { return c.host }

// Port returns the server port to listen on.
func (c AppConfig) Port() int { return c.port }

// Addr returns the combined host:port address.
func (c AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.host, c.port)
}

// DataDir returns the data directory path.
func (c AppConfig) DataDir() string { return c.dataDir }

// LogLevel returns the log level.
func (c AppConfig) LogLevel() string { return c.logLevel }

// LogFormat returns the log format.
func (c AppConfig) LogFormat() LogFormat { return c.logFormat }

// APIToken returns the bearer token guarding the embed endpoint.
// An empty token disables authentication.
func (c AppConfig) APIToken() string { return c.apiToken }

// Backend returns the embedding backend.
func (c AppConfig) Backend() Backend { return c.backend }

// Model returns the resident model config.
func (c AppConfig) Model() ModelConfig { return c.model }

// ModelDir returns the model cache directory, defaulting under the data dir.
func (c AppConfig) ModelDir() string {
	if c.model.Dir() != "" {
		return c.model.Dir()
	}
	return filepath.Join(c.dataDir, DefaultModelSubdir)
}

// EmbeddingEndpoint returns the remote embedding endpoint config.
func (c AppConfig) EmbeddingEndpoint() *Endpoint { return c.embeddingEndpoint }

// ScaledownWindow returns how long the server may sit idle before exiting.
// Zero disables idle shutdown.
func (c AppConfig) ScaledownWindow() time.Duration { return c.scaledownWindow }

// CORSOrigins returns the allowed CORS origins.
func (c AppConfig) CORSOrigins() []string {
	origins := make([]string, len(c.corsOrigins))
	copy(origins, c.corsOrigins)
	return origins
}

// MCPEnabled returns whether the MCP endpoint is mounted.
func (c AppConfig) MCPEnabled() bool { return c.mcpEnabled }

// MetricsEnabled returns whether /metrics is served.
func (c AppConfig) MetricsEnabled() bool { return c.metricsEnabled }

// EnsureDataDir creates the data directory if it doesn't exist.
func (c AppConfig) EnsureDataDir() error {
	return os.MkdirAll(c.dataDir, 0o755)
}

// EnsureModelDir creates the model directory if it doesn't exist.
func (c AppConfig) EnsureModelDir() error {
	return os.MkdirAll(c.ModelDir(), 0o755)
}

// Validate checks combinations that cannot be expressed by defaults alone.
func (c AppConfig) Validate() error {
	switch c.backend {
	case BackendHugot:
	case BackendOpenAI:
		if c.embeddingEndpoint == nil || !c.embeddingEndpoint.IsConfigured() {
			return fmt.Errorf("backend %q requires EMBEDDING_ENDPOINT_MODEL", c.backend)
		}
	default:
		return fmt.Errorf("unknown backend %q", c.backend)
	}
	switch c.model.Device() {
	case DeviceCUDA, DeviceAuto, DeviceCPU:
	default:
		return fmt.Errorf("unknown device %q", c.model.Device())
	}
	switch c.model.PreTokenizer() {
	case "auto", "mecab", "none":
	default:
		return fmt.Errorf("unknown pre-tokenizer %q", c.model.PreTokenizer())
	}
	if c.scaledownWindow < 0 {
		return fmt.Errorf("scaledown window must not be negative")
	}
	return nil
}

// AppConfigOption is a functional option for AppConfig.
type AppConfigOption func(*AppConfig)

// WithHost sets the server host.
func WithHost(host string) AppConfigOption {
	return func(c *AppConfig) { c.host = host }
}

// WithPort sets the server port.
func WithPort(port int) AppConfigOption {
	return func(c *AppConfig) { c.port = port }
}

// WithDataDir sets the data directory.
func WithDataDir(dir string) AppConfigOption {
	return func(c *AppConfig) { c.dataDir = dir }
}

// WithLogLevel sets the log level.
func WithLogLevel(level string) AppConfigOption {
	return func(c *AppConfig) { c.logLevel = level }
}

// WithLogFormat sets the log format.
func WithLogFormat(format LogFormat) AppConfigOption {
	return func(c *AppConfig) { c.logFormat = format }
}

// WithAPIToken sets the bearer token.
func WithAPIToken(token string) AppConfigOption {
	return func(c *AppConfig) { c.apiToken = token }
}

// WithBackend sets the embedding backend.
func WithBackend(b Backend) AppConfigOption {
	return func(c *AppConfig) { c.backend = b }
}

// WithModelConfig sets the resident model config.
func WithModelConfig(m ModelConfig) AppConfigOption {
	return func(c *AppConfig) { c.model = m }
}

// WithEmbeddingEndpoint sets the remote embedding endpoint.
func WithEmbeddingEndpoint(e Endpoint) AppConfigOption {
	return func(c *AppConfig) { c.embeddingEndpoint = &e }
}

// WithScaledownWindow sets the idle shutdown window.
func WithScaledownWindow(d time.Duration) AppConfigOption {
	return func(c *AppConfig) { c.scaledownWindow = d }
}

// WithCORSOrigins sets the allowed CORS origins.
func WithCORSOrigins(origins []string) AppConfigOption {
	return func(c *AppConfig) {
		c.corsOrigins = make([]string, len(origins))
		copy(c.corsOrigins, origins)
	}
}

// WithMCPEnabled toggles the MCP endpoint.
func WithMCPEnabled(enabled bool) AppConfigOption {
	return func(c *AppConfig) { c.mcpEnabled = enabled }
}

// WithMetricsEnabled toggles the Prometheus endpoint.
func WithMetricsEnabled(enabled bool) AppConfigOption {
	return func(c *AppConfig) { c.metricsEnabled = enabled }
}

// NewAppConfigWithOptions creates an AppConfig with functional options.
func NewAppConfigWithOptions(opts ...AppConfigOption) AppConfig {
	c := NewAppConfig()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Apply returns a new AppConfig with the given options applied.
func (c AppConfig) Apply(opts ...AppConfigOption) AppConfig {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// LogAttrs returns slog attributes for logging the configuration.
// The API token is never logged, only whether one is set.
func (c AppConfig) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("addr", c.Addr()),
		slog.String("data_dir", c.dataDir),
		slog.String("log_level", c.logLevel),
		slog.String("backend", string(c.backend)),
		slog.String("model", c.modelName()),
		slog.String("model_dir", c.ModelDir()),
		slog.String("device", string(c.model.Device())),
		slog.String("pre_tokenizer", c.model.PreTokenizer()),
		slog.Bool("auth_enabled", c.apiToken != ""),
		slog.Duration("scaledown_window", c.scaledownWindow),
		slog.Int("cors_origins_count", len(c.corsOrigins)),
		slog.Bool("mcp_enabled", c.mcpEnabled),
		slog.Bool("metrics_enabled", c.metricsEnabled),
	}
}

func (c AppConfig) modelName() string {
	if c.backend == BackendOpenAI && c.embeddingEndpoint != nil {
		return c.embeddingEndpoint.Model()
	}
	return c.model.ID()
}

// ParseList parses a comma-separated string, dropping blanks.
func ParseList(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
