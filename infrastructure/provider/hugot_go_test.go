//go:build !ORT

package provider

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewHugotSession_CUDAUnavailableWithoutORT(t *testing.T) {
	_, err := newHugotSession(DeviceCUDA, 0)
	require.ErrorIs(t, err, ErrAcceleratorUnavailable)
}

func TestHugotEmbedding_LoadCUDAFailsFast(t *testing.T) {
	modelDir := t.TempDir()
	writeModel(t, filepath.Join(modelDir, "fake-model"))

	emb := NewHugotEmbedding(modelDir, WithDevice(DeviceCUDA))
	defer func() {
		require.NoError(t, emb.Close())
	}()

	err := emb.Load(context.Background())
	require.ErrorIs(t, err, ErrAcceleratorUnavailable)
	require.Equal(t, Device(""), emb.Device())
}
