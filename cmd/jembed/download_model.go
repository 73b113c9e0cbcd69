package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/helixml/jembed/infrastructure/provider"
	"github.com/spf13/cobra"
)

func downloadModelCmd() *cobra.Command {
	var (
		envFile  string
		modelID  string
		dir      string
		onnxFile string
		convert  bool
	)

	cmd := &cobra.Command{
		Use:   "download-model",
		Short: "Download the embedding model ahead of time",
		Long: `Download the ONNX export of the embedding model from the Hugging Face hub
into the model directory, so the server can start without network access.

Repositories that publish only PyTorch weights (the default Japanese model
among them) are converted locally: uv runs an embedded Python script that
exports onnx/model.onnx and tokenizer.json. Install uv first, or pass
--convert=false to fail instead.

The model and directory default to MODEL_ID and MODEL_DIR; HF_TOKEN is used
for gated repositories.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(envFile)
			if err != nil {
				return err
			}
			if modelID == "" {
				modelID = cfg.Model().ID()
			}
			if dir == "" {
				dir = cfg.ModelDir()
			}

			out := cmd.OutOrStdout()
			target := filepath.Join(dir, provider.ModelDirName(modelID))
			if provider.ModelReady(target) {
				_, _ = fmt.Fprintf(out, "Model already present at %s\n", target)
				return nil
			}

			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create model directory: %w", err)
			}

			_, _ = fmt.Fprintf(out, "Downloading %s to %s...\n", modelID, dir)
			path, err := provider.FetchModel(cmd.Context(), modelID, dir, provider.FetchOptions{
				Token:    cfg.Model().HubToken(),
				OnnxFile: onnxFile,
				Convert:  convert,
			})
			if err != nil {
				return fmt.Errorf("download model: %w", err)
			}

			_, _ = fmt.Fprintf(out, "Model ready at %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")
	cmd.Flags().StringVar(&modelID, "model", "", "Model name on the hub (default: $MODEL_ID)")
	cmd.Flags().StringVar(&dir, "dir", "", "Destination directory (default: $MODEL_DIR)")
	cmd.Flags().StringVar(&onnxFile, "onnx-file", "", "ONNX file to fetch when the repository has several")
	cmd.Flags().BoolVar(&convert, "convert", true, "Convert PyTorch weights with uv when the hub has no ONNX export")

	return cmd
}
