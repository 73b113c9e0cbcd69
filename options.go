package jembed

import (
	"log/slog"

	"github.com/helixml/jembed/infrastructure/provider"
	"github.com/helixml/jembed/internal/config"
)

type embedderKind int

const (
	embedderUnset embedderKind = iota
	embedderHugot
	embedderOpenAI
	embedderCustom
)

type clientConfig struct {
	kind         embedderKind
	modelDir     string
	hugotOptions []provider.HugotOption
	openAIConfig provider.OpenAIConfig
	embedder     provider.Embedder
	modelID      string
	logger       *slog.Logger
}

func newClientConfig() *clientConfig {
	return &clientConfig{}
}

// Option configures the Client.
type Option func(*clientConfig)

// WithHugot runs a local model with hugot, looking for model files in modelDir.
func WithHugot(modelDir string, opts ...provider.HugotOption) Option {
	return func(c *clientConfig) {
		c.kind = embedderHugot
		c.modelDir = modelDir
		c.hugotOptions = opts
	}
}

// WithOpenAIConfig forwards encodes to an OpenAI-compatible embeddings endpoint.
func WithOpenAIConfig(cfg provider.OpenAIConfig) Option {
	return func(c *clientConfig) {
		c.kind = embedderOpenAI
		c.openAIConfig = cfg
	}
}

// WithEmbedder uses a caller-provided embedder. If it implements
// provider.Loader it is loaded by New.
func WithEmbedder(e provider.Embedder, modelID string) Option {
	return func(c *clientConfig) {
		c.kind = embedderCustom
		c.embedder = e
		c.modelID = modelID
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}

// WithAppConfig selects and configures the backend named by cfg.
func WithAppConfig(cfg config.AppConfig) Option {
	if cfg.Backend() == config.BackendOpenAI {
		endpoint := cfg.EmbeddingEndpoint()
		if endpoint == nil {
			return func(*clientConfig) {}
		}
		return WithOpenAIConfig(provider.OpenAIConfig{
			APIKey:        endpoint.APIKey(),
			BaseURL:       endpoint.BaseURL(),
			Model:         endpoint.Model(),
			Timeout:       endpoint.Timeout(),
			MaxRetries:    endpoint.MaxRetries(),
			InitialDelay:  endpoint.InitialDelay(),
			BackoffFactor: endpoint.BackoffFactor(),
		})
	}

	model := cfg.Model()
	return WithHugot(cfg.ModelDir(),
		provider.WithModelID(model.ID()),
		provider.WithDevice(provider.Device(model.Device())),
		provider.WithDeviceID(model.DeviceID()),
		provider.WithDownload(model.Download()),
		provider.WithConvert(model.Convert()),
		provider.WithPreTokenizer(provider.PreTokenizerMode(model.PreTokenizer())),
		provider.WithHubToken(model.HubToken()),
	)
}
