package jembed

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/helixml/jembed/internal/config"
	"github.com/helixml/jembed/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_NoEmbedder(t *testing.T) {
	_, err := New()
	require.ErrorIs(t, err, ErrNoEmbedder)
}

func TestNew_LoadsEmbedderOnce(t *testing.T) {
	fake := testutil.NewFakeEmbedder(8)

	client, err := New(WithEmbedder(fake, "fake-model"))
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	assert.Equal(t, 1, fake.Loads())
	assert.Equal(t, "fake-model", client.Model())
	assert.Same(t, fake, client.Embedder())

	for range 3 {
		_, err := client.EmbedText(context.Background(), "テスト")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, fake.Loads(), "model must not reload per request")
	assert.Equal(t, 3, fake.Calls())
}

func TestNew_LoadFailure(t *testing.T) {
	fake := testutil.NewFakeEmbedder(8).WithLoadError(errors.New("no gpu"))

	_, err := New(WithEmbedder(fake, "fake-model"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no gpu")
	assert.True(t, fake.Closed(), "failed load must release the embedder")
}

func TestClient_EmbedText(t *testing.T) {
	client, err := New(WithEmbedder(testutil.NewFakeEmbedder(16), "fake-model"))
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	vec, err := client.EmbedText(context.Background(), "こんにちは")
	require.NoError(t, err)
	require.Len(t, vec, 16)

	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-9)

	again, err := client.EmbedText(context.Background(), "こんにちは")
	require.NoError(t, err)
	assert.Equal(t, vec, again)
}

func TestClient_EmbedTextError(t *testing.T) {
	fake := testutil.NewFakeEmbedder(4).WithError(errors.New("inference failed"))
	client, err := New(WithEmbedder(fake, "fake-model"))
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	_, err = client.EmbedText(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inference failed")
}

func TestClient_Close(t *testing.T) {
	fake := testutil.NewFakeEmbedder(4)
	client, err := New(WithEmbedder(fake, "fake-model"))
	require.NoError(t, err)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
	assert.True(t, fake.Closed())

	_, err = client.EmbedText(context.Background(), "x")
	require.ErrorIs(t, err, ErrClientClosed)
}

func TestWithAppConfig_OpenAI(t *testing.T) {
	cfg := config.NewAppConfigWithOptions(
		config.WithBackend(config.BackendOpenAI),
		config.WithEmbeddingEndpoint(config.NewEndpointWithOptions(
			config.WithBaseURL("http://localhost:1/v1"),
			config.WithModel("cl-nagoya/ruri-base"),
		)),
	)

	c := newClientConfig()
	WithAppConfig(cfg)(c)

	assert.Equal(t, embedderOpenAI, c.kind)
	assert.Equal(t, "cl-nagoya/ruri-base", c.openAIConfig.Model)
	assert.Equal(t, "http://localhost:1/v1", c.openAIConfig.BaseURL)
}

func TestWithAppConfig_Hugot(t *testing.T) {
	cfg := config.NewAppConfigWithOptions(
		config.WithDataDir(t.TempDir()),
	)

	c := newClientConfig()
	WithAppConfig(cfg)(c)

	assert.Equal(t, embedderHugot, c.kind)
	assert.Equal(t, cfg.ModelDir(), c.modelDir)
	assert.NotEmpty(t, c.hugotOptions)
}
