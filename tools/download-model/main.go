// Build-time tool that downloads the default Japanese sentence-embedding
// model to infrastructure/provider/models/ so it can be compiled into the
// binary with the embed_model build tag. Models without a published ONNX
// export are converted with uv.
//
// Optional env: MODEL_ID (default sonoisa/sentence-bert-base-ja-mean-tokens-v2)
// and HF_TOKEN.
//
// Usage: go run ./tools/download-model [dest]
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/helixml/jembed/infrastructure/provider"
	"github.com/helixml/jembed/internal/config"
)

func main() {
	dest := "infrastructure/provider/models"
	if len(os.Args) > 1 {
		dest = os.Args[1]
	}

	modelID := os.Getenv("MODEL_ID")
	if modelID == "" {
		modelID = config.DefaultModelID
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create directory: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Downloading %s to %s...\n", modelID, dest)

	modelPath, err := provider.FetchModel(context.Background(), modelID, dest, provider.FetchOptions{
		Token:   os.Getenv("HF_TOKEN"),
		Convert: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Model downloaded to %s\n", modelPath)
}
