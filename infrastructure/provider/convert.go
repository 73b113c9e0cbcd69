package provider

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// convertScript exports a PyTorch sentence-transformers repository to ONNX.
// It is embedded so the conversion works from an installed binary.
//
//go:embed convert_model.py
var convertScript []byte

const convertAttempts = 4

// ErrConverterUnavailable indicates uv is not installed, so a hub repository
// without an ONNX export cannot be converted.
var ErrConverterUnavailable = errors.New("model converter unavailable")

// Swapped out in tests.
var (
	lookPath          = exec.LookPath
	convertRetryDelay = 2 * time.Second
	runCommand        = func(ctx context.Context, env []string, name string, args ...string) error {
		cmd := exec.CommandContext(ctx, name, args...)
		cmd.Env = env
		// stdout may carry MCP stdio traffic.
		cmd.Stdout = os.Stderr
		cmd.Stderr = os.Stderr
		return cmd.Run()
	}
)

// ModelReady reports whether dir holds a tokenizer.json and an ONNX graph,
// either at the top level or under onnx/.
func ModelReady(dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, "tokenizer.json")); err != nil {
		return false
	}
	for _, pattern := range []string{"*.onnx", filepath.Join("onnx", "*.onnx")} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err == nil && len(matches) > 0 {
			return true
		}
	}
	return false
}

// ConvertModel exports modelID from the hub into dest with the embedded
// Python script, run through uv. dest ends up with onnx/model.onnx and
// tokenizer.json. Failed runs are retried with exponential backoff.
func ConvertModel(ctx context.Context, modelID, dest, token string) error {
	uv, err := lookPath("uv")
	if err != nil {
		return fmt.Errorf("%w: uv not found on PATH (https://docs.astral.sh/uv/): %w", ErrConverterUnavailable, err)
	}

	tmp, err := os.CreateTemp("", "convert-model-*.py")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(convertScript); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create model directory: %w", err)
	}

	env := os.Environ()
	if token != "" {
		env = append(env, "HF_TOKEN="+token)
	}

	delay := convertRetryDelay
	for i := range convertAttempts {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		err = runCommand(ctx, env, uv, "run", tmp.Name(), modelID, dest)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	if err != nil {
		return fmt.Errorf("convert model %s: %w", modelID, err)
	}

	if !ModelReady(dest) {
		return fmt.Errorf("convert model %s: %s has no tokenizer.json and ONNX graph", modelID, dest)
	}
	return nil
}

// FetchOptions configures FetchModel.
type FetchOptions struct {
	// Token authenticates hub requests.
	Token string
	// OnnxFile selects the ONNX file when a repository ships several.
	OnnxFile string
	// Convert exports the model locally when the hub has no usable ONNX export.
	Convert bool
	Logger  *slog.Logger
}

// FetchModel places modelID under dir/ModelDirName(modelID) and returns that
// directory. A published ONNX export is downloaded as is; otherwise, when
// opts.Convert is set, the PyTorch weights are converted with ConvertModel.
func FetchModel(ctx context.Context, modelID, dir string, opts FetchOptions) (string, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	path, downloadErr := DownloadModel(modelID, dir, opts.Token, opts.OnnxFile)
	if downloadErr == nil && ModelReady(path) {
		return path, nil
	}
	if downloadErr == nil {
		downloadErr = fmt.Errorf("download model %s: %s has no tokenizer.json and ONNX graph", modelID, path)
	}
	if !opts.Convert {
		return "", downloadErr
	}

	target := filepath.Join(dir, ModelDirName(modelID))
	logger.Info("no ONNX export on the hub, converting",
		slog.String("model", modelID),
		slog.String("dir", target),
		slog.Any("download_error", downloadErr),
	)
	if err := ConvertModel(ctx, modelID, target, opts.Token); err != nil {
		return "", errors.Join(downloadErr, err)
	}
	return target, nil
}
