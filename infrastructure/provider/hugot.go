package provider

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
)

// warmupText is encoded once at load so the first request does not pay for
// lazy graph initialization.
const warmupText = "こんにちは"

// HugotEmbedding provides local embedding generation for a sentence-transformers
// model exported to ONNX, run through hugot's feature extraction pipeline
// (mean pooling followed by L2 normalization).
//
// The model comes from the first of these that succeeds:
//  1. modelDir/<model id with "/" replaced by "_">, the layout FetchModel produces.
//  2. modelDir itself, or any subdirectory of it, holding tokenizer.json and
//     an ONNX graph.
//  3. The model compiled into the binary (build tag embed_model), extracted
//     to modelDir on first use.
//  4. A fetch from the Hugging Face hub, when enabled: the published ONNX
//     export, or a local conversion of the PyTorch weights when allowed.
//
// Texts pass through the PreTokenizer the model needs (MeCab splitting for
// BertJapaneseTokenizer models) before tokenization. The model is loaded once
// by Load and stays resident until Close.
type HugotEmbedding struct {
	modelID     string
	modelDir    string
	device      Device
	deviceID    int
	download    bool
	convert     bool
	hubToken    string
	onnxFile    string
	preMode     PreTokenizerMode
	preTok      PreTokenizer
	logger      *slog.Logger
	loadedPath  string
	activeDev   Device
	dimension   int
	mu          sync.Mutex
	session     *hugot.Session
	pipeline    *pipelines.FeatureExtractionPipeline
	closed      bool
	initialized bool
}

// HugotOption is a functional option for HugotEmbedding.
type HugotOption func(*HugotEmbedding)

// WithModelID sets the Hugging Face model identifier.
func WithModelID(id string) HugotOption {
	return func(h *HugotEmbedding) { h.modelID = id }
}

// WithDevice sets the device policy.
func WithDevice(d Device) HugotOption {
	return func(h *HugotEmbedding) { h.device = d }
}

// WithDeviceID sets the CUDA device ordinal.
func WithDeviceID(id int) HugotOption {
	return func(h *HugotEmbedding) { h.deviceID = id }
}

// WithDownload allows fetching the model from the hub when it is not on disk.
func WithDownload(enabled bool) HugotOption {
	return func(h *HugotEmbedding) { h.download = enabled }
}

// WithConvert allows converting a hub repository that has no ONNX export.
// Conversion needs uv on PATH.
func WithConvert(enabled bool) HugotOption {
	return func(h *HugotEmbedding) { h.convert = enabled }
}

// WithPreTokenizer sets how texts are split before tokenization.
func WithPreTokenizer(mode PreTokenizerMode) HugotOption {
	return func(h *HugotEmbedding) { h.preMode = mode }
}

// WithHubToken sets the Hugging Face token used for downloads.
func WithHubToken(token string) HugotOption {
	return func(h *HugotEmbedding) { h.hubToken = token }
}

// WithOnnxFile selects the ONNX file inside the hub repository, for
// repositories that ship more than one export.
func WithOnnxFile(path string) HugotOption {
	return func(h *HugotEmbedding) { h.onnxFile = path }
}

// WithHugotLogger sets the logger.
func WithHugotLogger(l *slog.Logger) HugotOption {
	return func(h *HugotEmbedding) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHugotEmbedding creates a HugotEmbedding that looks for model files in modelDir.
// Nothing is loaded until Load is called.
func NewHugotEmbedding(modelDir string, opts ...HugotOption) *HugotEmbedding {
	h := &HugotEmbedding{
		modelID:  "sonoisa/sentence-bert-base-ja-mean-tokens-v2",
		modelDir: modelDir,
		device:   DeviceCUDA,
		preMode:  PreTokenizerAuto,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Available reports whether a usable model exists without a download:
// either compiled into the binary or present on disk in modelDir.
func (h *HugotEmbedding) Available() bool {
	if hasEmbeddedModel {
		return true
	}
	_, err := h.diskModelPath()
	return err == nil
}

// Load resolves the model, creates a session on the first device the policy
// allows and runs a warm-up encode. Calling Load again after success is a no-op.
func (h *HugotEmbedding) Load(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}
	if h.initialized {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	modelPath, err := h.resolveModelPath(ctx)
	if err != nil {
		return err
	}

	preTok, err := preTokenizerFor(h.preMode, modelPath)
	if err != nil {
		return err
	}
	h.preTok = preTok

	candidates := h.device.candidates()
	var errs []error
	for i, device := range candidates {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := h.loadOn(device, modelPath)
		if err == nil {
			h.loadedPath = modelPath
			h.activeDev = device
			h.initialized = true
			h.logger.Info("model loaded",
				slog.String("model", h.modelID),
				slog.String("path", modelPath),
				slog.String("device", string(device)),
				slog.Int("dim", h.dimension),
				slog.Bool("mecab", h.preTok != nil),
			)
			return nil
		}

		errs = append(errs, fmt.Errorf("%s: %w", device, err))
		if i < len(candidates)-1 {
			h.logger.Warn("device unavailable, falling back",
				slog.String("device", string(device)),
				slog.String("next", string(candidates[i+1])),
				slog.Any("error", err),
			)
		}
	}

	return fmt.Errorf("load model %s: %w", h.modelID, errors.Join(errs...))
}

func (h *HugotEmbedding) loadOn(device Device, modelPath string) error {
	session, err := newHugotSession(device, h.deviceID)
	if err != nil {
		return fmt.Errorf("create hugot session: %w", err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "jembed-embeddings",
		Options: []hugot.FeatureExtractionOption{
			pipelines.WithNormalization(),
		},
	}
	pipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		_ = session.Destroy()
		return fmt.Errorf("create feature extraction pipeline: %w", err)
	}

	result, err := pipeline.RunPipeline(h.preTokenize([]string{warmupText}))
	if err != nil {
		_ = session.Destroy()
		return fmt.Errorf("warm-up encode: %w", err)
	}
	if len(result.Embeddings) != 1 {
		_ = session.Destroy()
		return fmt.Errorf("warm-up encode: got %d vectors for 1 text", len(result.Embeddings))
	}

	h.session = session
	h.pipeline = pipeline
	h.dimension = len(result.Embeddings[0])
	return nil
}

func (h *HugotEmbedding) preTokenize(texts []string) []string {
	if h.preTok == nil {
		return texts
	}
	out := make([]string, len(texts))
	for i, text := range texts {
		out[i] = h.preTok.PreTokenize(text)
	}
	return out
}

// resolveModelPath returns the path to a usable model directory.
func (h *HugotEmbedding) resolveModelPath(ctx context.Context) (string, error) {
	if diskPath, err := h.diskModelPath(); err == nil {
		return diskPath, nil
	}

	if hasEmbeddedModel {
		if err := os.MkdirAll(h.modelDir, 0o755); err != nil {
			return "", fmt.Errorf("create model directory: %w", err)
		}
		return extractEmbeddedModel(embeddedModelFS, h.modelDir)
	}

	if h.download {
		return h.fetch(ctx)
	}

	return "", fmt.Errorf("%w: %s not in %s and downloads are disabled (set MODEL_DOWNLOAD=true or build with -tags embed_model)",
		ErrModelNotFound, h.modelID, h.modelDir)
}

// diskModelPath looks for model files already on disk, preferring the
// directory named after the configured model.
func (h *HugotEmbedding) diskModelPath() (string, error) {
	named := filepath.Join(h.modelDir, ModelDirName(h.modelID))
	if ModelReady(named) {
		return named, nil
	}
	if ModelReady(h.modelDir) {
		return h.modelDir, nil
	}

	entries, err := os.ReadDir(h.modelDir)
	if err != nil {
		return "", fmt.Errorf("read model directory %s: %w", h.modelDir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		candidate := filepath.Join(h.modelDir, entry.Name())
		if ModelReady(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no model subdirectory with tokenizer.json and an ONNX graph found in %s", h.modelDir)
}

func (h *HugotEmbedding) fetch(ctx context.Context) (string, error) {
	if err := os.MkdirAll(h.modelDir, 0o755); err != nil {
		return "", fmt.Errorf("create model directory: %w", err)
	}

	h.logger.Info("downloading model",
		slog.String("model", h.modelID),
		slog.String("dir", h.modelDir),
	)

	path, err := FetchModel(ctx, h.modelID, h.modelDir, FetchOptions{
		Token:    h.hubToken,
		OnnxFile: h.onnxFile,
		Convert:  h.convert,
		Logger:   h.logger,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrModelNotFound, err)
	}
	return path, nil
}

// downloadModel is swapped out in tests.
var downloadModel = hugot.DownloadModel

// DownloadModel fetches a model from the Hugging Face hub into dir and returns
// the directory holding it. onnxFile may be empty when the repository ships a
// single ONNX export.
func DownloadModel(modelID, dir, token, onnxFile string) (string, error) {
	opts := hugot.NewDownloadOptions()
	if token != "" {
		opts.AuthToken = token
	}
	if onnxFile != "" {
		opts.OnnxFilePath = onnxFile
	}
	path, err := downloadModel(modelID, dir, opts)
	if err != nil {
		return "", fmt.Errorf("download model %s: %w", modelID, err)
	}
	return path, nil
}

// ModelDirName returns the directory name a hub model is stored under.
func ModelDirName(modelID string) string {
	return strings.ReplaceAll(modelID, "/", "_")
}

// extractEmbeddedModel writes the statically embedded model files to targetDir
// and returns the path to the model subdirectory.
func extractEmbeddedModel(embedded fs.FS, targetDir string) (string, error) {
	modelsFS, err := fs.Sub(embedded, "models")
	if err != nil {
		return "", fmt.Errorf("access embedded models: %w", err)
	}

	entries, err := fs.ReadDir(modelsFS, ".")
	if err != nil {
		return "", fmt.Errorf("read embedded models: %w", err)
	}

	var modelSubdir string
	for _, entry := range entries {
		if entry.IsDir() {
			modelSubdir = entry.Name()
			break
		}
	}
	if modelSubdir == "" {
		return "", fmt.Errorf("no model directory found in embedded models")
	}

	modelPath := filepath.Join(targetDir, modelSubdir)

	// Skip extraction if already present
	if ModelReady(modelPath) {
		return modelPath, nil
	}

	modelFS, err := fs.Sub(modelsFS, modelSubdir)
	if err != nil {
		return "", fmt.Errorf("access model subdirectory: %w", err)
	}

	err = fs.WalkDir(modelFS, ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		target := filepath.Join(modelPath, path)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, readErr := fs.ReadFile(modelFS, path)
		if readErr != nil {
			return fmt.Errorf("read embedded file %s: %w", path, readErr)
		}
		if mkdirErr := os.MkdirAll(filepath.Dir(target), 0o755); mkdirErr != nil {
			return fmt.Errorf("create directory for %s: %w", path, mkdirErr)
		}
		return os.WriteFile(target, data, 0o644)
	})
	if err != nil {
		return "", fmt.Errorf("extract embedded model: %w", err)
	}

	return modelPath, nil
}

// ModelPath returns the directory the model was loaded from, or "" before Load.
func (h *HugotEmbedding) ModelPath() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loadedPath
}

// ModelID returns the configured model identifier.
func (h *HugotEmbedding) ModelID() string { return h.modelID }

// Device returns the device the model was loaded on, or "" before Load.
func (h *HugotEmbedding) Device() Device {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.activeDev
}

// Dimension returns the embedding length, or 0 before Load.
func (h *HugotEmbedding) Dimension() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dimension
}

// Embed encodes the given texts with the resident model.
// Inference is serialized: ONNX Runtime sessions do not support concurrent runs.
func (h *HugotEmbedding) Embed(ctx context.Context, req EmbeddingRequest) (EmbeddingResponse, error) {
	texts := req.Texts()
	if len(texts) == 0 {
		return NewEmbeddingResponse([][]float64{}), nil
	}

	if err := ctx.Err(); err != nil {
		return EmbeddingResponse{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return EmbeddingResponse{}, ErrClosed
	}
	if !h.initialized {
		return EmbeddingResponse{}, ErrNotLoaded
	}

	result, err := h.pipeline.RunPipeline(h.preTokenize(texts))
	if err != nil {
		return EmbeddingResponse{}, fmt.Errorf("run embedding pipeline: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return EmbeddingResponse{}, fmt.Errorf("run embedding pipeline: got %d vectors for %d texts", len(result.Embeddings), len(texts))
	}

	embeddings := make([][]float64, len(result.Embeddings))
	for i, vec32 := range result.Embeddings {
		embeddings[i] = toFloat64(vec32)
	}

	return NewEmbeddingResponse(embeddings), nil
}

// Close destroys the session. It is safe to call more than once.
func (h *HugotEmbedding) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	h.pipeline = nil

	if h.session == nil {
		return nil
	}
	err := h.session.Destroy()
	h.session = nil
	if err != nil {
		return fmt.Errorf("destroy hugot session: %w", err)
	}
	return nil
}

var (
	_ Embedder = (*HugotEmbedding)(nil)
	_ Loader   = (*HugotEmbedding)(nil)
)
