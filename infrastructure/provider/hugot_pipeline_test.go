//go:build !ORT

package provider

import (
	"context"
	"math"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// pipelineModelID is a small sentence-transformers model with a published
// ONNX export, loadable by the pure Go backend.
const pipelineModelID = "KnightsAnalytics/all-MiniLM-L6-v2"

func requireHub(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping: downloads a model from the hub")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, "https://huggingface.co", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Skipf("skipping: hub unreachable: %v", err)
	}
	_ = resp.Body.Close()
}

func norm2(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

func TestHugotEmbedding_Pipeline(t *testing.T) {
	requireHub(t)

	modelDir := t.TempDir()
	// Fetched ahead of Load so an embedded model cannot take precedence.
	_, err := DownloadModel(pipelineModelID, modelDir, "", "")
	require.NoError(t, err)

	emb := NewHugotEmbedding(modelDir,
		WithModelID(pipelineModelID),
		WithDevice(DeviceCPU),
		WithPreTokenizer(PreTokenizerNone),
	)
	defer func() {
		require.NoError(t, emb.Close())
	}()
	require.NoError(t, emb.Load(context.Background()))
	require.Equal(t, 384, emb.Dimension())

	texts := []string{"The cat sits on the mat.", "Quarterly revenue grew by ten percent."}
	first, err := emb.Embed(context.Background(), NewEmbeddingRequest(texts))
	require.NoError(t, err)
	second, err := emb.Embed(context.Background(), NewEmbeddingRequest(texts))
	require.NoError(t, err)

	vectors := first.Embeddings()
	require.Len(t, vectors, len(texts))
	for i, v := range vectors {
		require.Len(t, v, emb.Dimension())
		for _, x := range v {
			require.False(t, math.IsNaN(x) || math.IsInf(x, 0))
		}
		require.InDelta(t, 1.0, norm2(v), 1e-4)
		require.Equal(t, v, second.Embeddings()[i], "same text must encode identically")
	}
	require.NotEqual(t, vectors[0], vectors[1])

	// A batch of one gives the same vector as inside a larger batch.
	single, err := emb.Embed(context.Background(), NewEmbeddingRequest(texts[:1]))
	require.NoError(t, err)
	for j := range vectors[0] {
		require.InDelta(t, vectors[0][j], single.Embeddings()[0][j], 1e-4)
	}
}

func TestHugotEmbedding_PipelineWithMecab(t *testing.T) {
	requireHub(t)

	modelDir := t.TempDir()
	_, err := DownloadModel(pipelineModelID, modelDir, "", "")
	require.NoError(t, err)

	emb := NewHugotEmbedding(modelDir,
		WithModelID(pipelineModelID),
		WithDevice(DeviceCPU),
		WithPreTokenizer(PreTokenizerMecab),
	)
	defer func() {
		require.NoError(t, emb.Close())
	}()
	require.NoError(t, emb.Load(context.Background()))

	resp, err := emb.Embed(context.Background(), NewEmbeddingRequest([]string{"今日はいい天気です"}))
	require.NoError(t, err)
	require.Len(t, resp.Embeddings()[0], emb.Dimension())
	require.InDelta(t, 1.0, norm2(resp.Embeddings()[0]), 1e-4)
}
