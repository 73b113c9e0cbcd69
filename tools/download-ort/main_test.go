package main

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tarball(t *testing.T, files map[string]string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0o644,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return &buf
}

func TestORTPlatform(t *testing.T) {
	archive, lib, err := ortPlatform("linux/amd64", "1.23.2", false)
	require.NoError(t, err)
	assert.Equal(t, "onnxruntime-linux-x64-1.23.2.tgz", archive)
	assert.Equal(t, "libonnxruntime.so", lib)

	archive, _, err = ortPlatform("linux/amd64", "1.23.2", true)
	require.NoError(t, err)
	assert.Equal(t, "onnxruntime-linux-x64-gpu-1.23.2.tgz", archive)

	_, _, err = ortPlatform("darwin/arm64", "1.23.2", true)
	assert.Error(t, err)

	_, _, err = ortPlatform("plan9/386", "1.23.2", false)
	assert.Error(t, err)
}

func TestExtractTgz_VersionedAndProviders(t *testing.T) {
	dir := t.TempDir()
	body := tarball(t, map[string]string{
		"onnxruntime-linux-x64-gpu-1.23.2/lib/libonnxruntime.so.1.23.2":             "core",
		"onnxruntime-linux-x64-gpu-1.23.2/lib/libonnxruntime_providers_cuda.so":     "cuda",
		"onnxruntime-linux-x64-gpu-1.23.2/lib/libonnxruntime_providers_shared.so":   "shared",
		"onnxruntime-linux-x64-gpu-1.23.2/lib/libonnxruntime_providers_tensorrt.so": "trt",
		"onnxruntime-linux-x64-gpu-1.23.2/include/onnxruntime_c_api.h":              "header",
	})

	err := extractTgz(body, dir, append([]string{"libonnxruntime.so"}, cudaProviderLibraries...)...)
	require.NoError(t, err)

	for name, want := range map[string]string{
		"libonnxruntime.so":                  "core",
		"libonnxruntime_providers_cuda.so":   "cuda",
		"libonnxruntime_providers_shared.so": "shared",
	} {
		got, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}
	_, err = os.Stat(filepath.Join(dir, "libonnxruntime_providers_tensorrt.so"))
	assert.True(t, os.IsNotExist(err))
}

func TestExtractTgz_Missing(t *testing.T) {
	body := tarball(t, map[string]string{"lib/libonnxruntime.so": "core"})

	err := extractTgz(body, t.TempDir(), "libonnxruntime.so", "libonnxruntime_providers_cuda.so")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "libonnxruntime_providers_cuda.so not found")
}
