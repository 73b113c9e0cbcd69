package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnvVars(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "", cfg.DataDir)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "pretty", cfg.LogFormat)
	assert.Equal(t, "", cfg.APIToken)
	assert.Equal(t, "hugot", cfg.Backend)
	assert.Equal(t, "sonoisa/sentence-bert-base-ja-mean-tokens-v2", cfg.ModelID)
	assert.True(t, cfg.ModelDownload)
	assert.True(t, cfg.ModelConvert)
	assert.Equal(t, "auto", cfg.PreTokenizer)
	assert.Equal(t, "cuda", cfg.Device)
	assert.Equal(t, 0, cfg.DeviceID)
	assert.Equal(t, 0.0, cfg.ScaledownWindow)
	assert.False(t, cfg.MCPEnabled)
	assert.False(t, cfg.MetricsEnabled)

	assert.Equal(t, 60.0, cfg.EmbeddingEndpoint.Timeout)
	assert.Equal(t, 0, cfg.EmbeddingEndpoint.MaxRetries)
}

func TestEnvDefaults_MatchConfigDefaults(t *testing.T) {
	// Struct tag defaults must be literals, so keep them in sync with the constants.
	clearEnvVars(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultModelID, cfg.ModelID)
	assert.Equal(t, string(BackendHugot), cfg.Backend)
	assert.Equal(t, string(DeviceCUDA), cfg.Device)
	assert.Equal(t, DefaultDeviceID, cfg.DeviceID)
	assert.Equal(t, DefaultPreTokenizer, cfg.PreTokenizer)
	assert.Equal(t, DefaultScaledownWindow.Seconds(), cfg.ScaledownWindow)
	assert.Equal(t, DefaultEndpointTimeout.Seconds(), cfg.EmbeddingEndpoint.Timeout)
	assert.Equal(t, DefaultEndpointMaxRetries, cfg.EmbeddingEndpoint.MaxRetries)
	assert.Equal(t, DefaultEndpointInitialDelay.Seconds(), cfg.EmbeddingEndpoint.InitialDelay)
	assert.Equal(t, DefaultEndpointBackoffFactor, cfg.EmbeddingEndpoint.BackoffFactor)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("PORT", "9000")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("EMBED_API_TOKEN", "secret")
	t.Setenv("MODEL_ID", "intfloat/multilingual-e5-small")
	t.Setenv("MODEL_DIR", "/models")
	t.Setenv("MODEL_DOWNLOAD", "false")
	t.Setenv("MODEL_CONVERT", "false")
	t.Setenv("PRE_TOKENIZER", "MeCab")
	t.Setenv("DEVICE", "AUTO")
	t.Setenv("DEVICE_ID", "1")
	t.Setenv("SCALEDOWN_WINDOW", "300")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("MCP_ENABLED", "true")
	t.Setenv("METRICS_ENABLED", "true")

	env, err := LoadFromEnv()
	require.NoError(t, err)

	cfg := env.ToAppConfig()
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr())
	assert.Equal(t, LogFormatJSON, cfg.LogFormat())
	assert.Equal(t, "secret", cfg.APIToken())
	assert.Equal(t, "intfloat/multilingual-e5-small", cfg.Model().ID())
	assert.Equal(t, "/models", cfg.ModelDir())
	assert.False(t, cfg.Model().Download())
	assert.False(t, cfg.Model().Convert())
	assert.Equal(t, "mecab", cfg.Model().PreTokenizer())
	assert.Equal(t, DeviceAuto, cfg.Model().Device())
	assert.Equal(t, 1, cfg.Model().DeviceID())
	assert.Equal(t, 300*time.Second, cfg.ScaledownWindow())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins())
	assert.True(t, cfg.MCPEnabled())
	assert.True(t, cfg.MetricsEnabled())
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv_TokenKeptVerbatim(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("EMBED_API_TOKEN", " spaced ")

	env, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, " spaced ", env.ToAppConfig().APIToken())
}

func TestLoadFromEnv_InvalidPort(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("PORT", "not-a-number")

	_, err := LoadFromEnv()
	require.Error(t, err)
}

func TestEndpointEnv_ToEndpoint(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("BACKEND", "openai")
	t.Setenv("EMBEDDING_ENDPOINT_BASE_URL", "http://localhost:8000/v1")
	t.Setenv("EMBEDDING_ENDPOINT_MODEL", "cl-nagoya/ruri-base")
	t.Setenv("EMBEDDING_ENDPOINT_API_KEY", "sk-test")
	t.Setenv("EMBEDDING_ENDPOINT_TIMEOUT", "1.5")
	t.Setenv("EMBEDDING_ENDPOINT_MAX_RETRIES", "2")

	env, err := LoadFromEnv()
	require.NoError(t, err)

	cfg := env.ToAppConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, BackendOpenAI, cfg.Backend())

	endpoint := cfg.EmbeddingEndpoint()
	require.NotNil(t, endpoint)
	assert.Equal(t, "http://localhost:8000/v1", endpoint.BaseURL())
	assert.Equal(t, "cl-nagoya/ruri-base", endpoint.Model())
	assert.Equal(t, "sk-test", endpoint.APIKey())
	assert.Equal(t, 1500*time.Millisecond, endpoint.Timeout())
	assert.Equal(t, 2, endpoint.MaxRetries())
	assert.Equal(t, 2*time.Second, endpoint.InitialDelay())
}

func TestLoadConfig_DotEnv(t *testing.T) {
	clearEnvVars(t)

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("EMBED_API_TOKEN=from-file\nPORT=9999\nDEVICE=cpu\n"), 0o644))

	cfg, err := LoadConfig(envFile)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.APIToken())
	assert.Equal(t, 9999, cfg.Port())
	assert.Equal(t, DeviceCPU, cfg.Model().Device())
}

func TestLoadConfig_EnvironmentWinsOverDotEnv(t *testing.T) {
	clearEnvVars(t)

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("EMBED_API_TOKEN=from-file\n"), 0o644))
	t.Setenv("EMBED_API_TOKEN", "from-env")

	cfg, err := LoadConfig(envFile)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.APIToken())
}

func TestLoadConfig_MissingDotEnvIsIgnored(t *testing.T) {
	clearEnvVars(t)

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
}

func TestLoadConfig_RejectsInvalidCombination(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("BACKEND", "openai")

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EMBEDDING_ENDPOINT_MODEL")
}

func clearEnvVars(t *testing.T) {
	t.Helper()

	vars := []string{
		"HOST",
		"PORT",
		"DATA_DIR",
		"LOG_LEVEL",
		"LOG_FORMAT",
		"EMBED_API_TOKEN",
		"BACKEND",
		"MODEL_ID",
		"MODEL_DIR",
		"MODEL_DOWNLOAD",
		"MODEL_CONVERT",
		"PRE_TOKENIZER",
		"HF_TOKEN",
		"DEVICE",
		"DEVICE_ID",
		"EMBEDDING_ENDPOINT_BASE_URL",
		"EMBEDDING_ENDPOINT_MODEL",
		"EMBEDDING_ENDPOINT_API_KEY",
		"EMBEDDING_ENDPOINT_TIMEOUT",
		"EMBEDDING_ENDPOINT_MAX_RETRIES",
		"EMBEDDING_ENDPOINT_INITIAL_DELAY",
		"EMBEDDING_ENDPOINT_BACKOFF_FACTOR",
		"SCALEDOWN_WINDOW",
		"CORS_ALLOWED_ORIGINS",
		"MCP_ENABLED",
		"METRICS_ENABLED",
	}

	for _, v := range vars {
		t.Setenv(v, "")
		_ = os.Unsetenv(v)
	}
}
