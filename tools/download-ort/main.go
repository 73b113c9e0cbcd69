// Build-time tool that downloads the ONNX Runtime shared library and the
// HuggingFace tokenizers static library for the current platform. Both are
// needed by binaries built with the ORT tag, which is required for DEVICE=cuda.
//
// Required env: ORT_VERSION (e.g. "1.23.2").
// Optional env: ORT_LIB_DIR (default "./lib"), TOKENIZERS_VERSION (default
// "1.24.0") and ORT_GPU ("true" fetches the CUDA build, linux/amd64 only).
//
// Usage: ORT_VERSION=1.23.2 ORT_GPU=true go run ./tools/download-ort
package main

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
)

func main() {
	ortVersion := os.Getenv("ORT_VERSION")
	if ortVersion == "" {
		fmt.Fprintln(os.Stderr, "ORT_VERSION env var is required")
		os.Exit(1)
	}

	tokVersion := os.Getenv("TOKENIZERS_VERSION")
	if tokVersion == "" {
		tokVersion = "1.24.0"
	}

	destDir := os.Getenv("ORT_LIB_DIR")
	if destDir == "" {
		destDir = "./lib"
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create directory: %v\n", err)
		os.Exit(1)
	}

	gpu := strings.EqualFold(os.Getenv("ORT_GPU"), "true")

	if err := downloadORT(ortVersion, destDir, gpu); err != nil {
		fmt.Fprintf(os.Stderr, "ORT download failed: %v\n", err)
		os.Exit(1)
	}

	if err := downloadTokenizers(tokVersion, destDir); err != nil {
		fmt.Fprintf(os.Stderr, "tokenizers download failed: %v\n", err)
		os.Exit(1)
	}
}

// cudaProviderLibraries ship next to libonnxruntime.so in the GPU archive and
// are loaded by ORT when the CUDA execution provider is enabled.
var cudaProviderLibraries = []string{
	"libonnxruntime_providers_shared.so",
	"libonnxruntime_providers_cuda.so",
}

func downloadORT(version, destDir string, gpu bool) error {
	archiveName, libraryName, err := ortPlatform(runtime.GOOS+"/"+runtime.GOARCH, version, gpu)
	if err != nil {
		return err
	}

	destPath := filepath.Join(destDir, libraryName)
	if _, statErr := os.Stat(destPath); statErr == nil {
		fmt.Printf("ORT library already exists at %s, skipping\n", destPath)
		return nil
	}

	url := fmt.Sprintf(
		"https://github.com/microsoft/onnxruntime/releases/download/v%s/%s",
		version, archiveName,
	)

	libraries := []string{libraryName}
	if gpu {
		libraries = append(libraries, cudaProviderLibraries...)
	}

	fmt.Printf("Downloading ORT %s (gpu=%t) from %s\n", version, gpu, url)
	if err := fetchAndExtract(url, destDir, libraries...); err != nil {
		return err
	}

	fmt.Printf("ORT library installed to %s\n", destPath)
	return nil
}

func downloadTokenizers(version, destDir string) error {
	destPath := filepath.Join(destDir, "libtokenizers.a")
	if _, statErr := os.Stat(destPath); statErr == nil {
		fmt.Printf("tokenizers library already exists at %s, skipping\n", destPath)
		return nil
	}

	archiveName, err := tokenizersPlatform(runtime.GOOS + "/" + runtime.GOARCH)
	if err != nil {
		return err
	}

	url := fmt.Sprintf(
		"https://github.com/daulet/tokenizers/releases/download/v%s/%s",
		version, archiveName,
	)

	fmt.Printf("Downloading tokenizers %s from %s\n", version, url)
	if err := fetchAndExtract(url, destDir, "libtokenizers.a"); err != nil {
		return err
	}

	fmt.Printf("tokenizers library installed to %s\n", destPath)
	return nil
}

// ortPlatform names the release archive and library for a GOOS/GOARCH key.
// CUDA builds are only published for linux/amd64.
func ortPlatform(key, version string, gpu bool) (archive string, library string, err error) {
	if gpu {
		if key != "linux/amd64" {
			return "", "", fmt.Errorf("no CUDA ORT archive for %s", key)
		}
		return fmt.Sprintf("onnxruntime-linux-x64-gpu-%s.tgz", version), "libonnxruntime.so", nil
	}
	switch key {
	case "linux/amd64":
		return fmt.Sprintf("onnxruntime-linux-x64-%s.tgz", version), "libonnxruntime.so", nil
	case "linux/arm64":
		return fmt.Sprintf("onnxruntime-linux-aarch64-%s.tgz", version), "libonnxruntime.so", nil
	case "darwin/arm64":
		return fmt.Sprintf("onnxruntime-osx-arm64-%s.tgz", version), "libonnxruntime.dylib", nil
	case "darwin/amd64":
		return fmt.Sprintf("onnxruntime-osx-x86_64-%s.tgz", version), "libonnxruntime.dylib", nil
	default:
		return "", "", fmt.Errorf("no ORT archive for %s", key)
	}
}

func tokenizersPlatform(key string) (string, error) {
	switch key {
	case "linux/amd64":
		return "libtokenizers.linux-amd64.tar.gz", nil
	case "linux/arm64":
		return "libtokenizers.linux-arm64.tar.gz", nil
	case "darwin/arm64":
		return "libtokenizers.darwin-arm64.tar.gz", nil
	case "darwin/amd64":
		return "libtokenizers.darwin-x86_64.tar.gz", nil
	default:
		return "", fmt.Errorf("no tokenizers archive for %s", key)
	}
}

func fetchAndExtract(url, destDir string, filenames ...string) error {
	delay := 2 * time.Second
	var err error
	for i := 0; i < 4; i++ {
		if i > 0 {
			fmt.Fprintf(os.Stderr, "retry in %s: %v\n", delay, err)
			time.Sleep(delay)
			delay *= 2
		}
		if err = tryFetchAndExtract(url, destDir, filenames); err == nil {
			return nil
		}
	}
	return err
}

func tryFetchAndExtract(url, destDir string, filenames []string) error {
	resp, err := http.Get(url) //nolint:gosec
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
	}

	return extractTgz(resp.Body, destDir, filenames...)
}

// extractTgz writes every wanted library found in the archive to destDir.
// Versioned variants such as libonnxruntime.1.23.2.dylib are saved under the
// unversioned name.
func extractTgz(body io.Reader, destDir string, filenames ...string) error {
	gz, err := gzip.NewReader(body)
	if err != nil {
		return fmt.Errorf("gzip reader: %w", err)
	}
	defer gz.Close() //nolint:errcheck

	pending := make(map[string]bool, len(filenames))
	for _, name := range filenames {
		pending[name] = true
	}

	tr := tar.NewReader(gz)
	for len(pending) > 0 {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("tar read: %w", err)
		}

		// Only regular files; symlinks point at the versioned library
		if header.Typeflag != tar.TypeReg {
			continue
		}

		base := filepath.Base(header.Name)
		for name := range pending {
			if !matchesLibrary(base, name) {
				continue
			}
			if err := writeFile(filepath.Join(destDir, name), tr); err != nil {
				return err
			}
			delete(pending, name)
			break
		}
	}

	if len(pending) > 0 {
		missing := make([]string, 0, len(pending))
		for name := range pending {
			missing = append(missing, name)
		}
		sort.Strings(missing)
		return fmt.Errorf("%s not found in archive", strings.Join(missing, ", "))
	}
	return nil
}

func matchesLibrary(base, filename string) bool {
	if base == filename {
		return true
	}
	nameWithoutExt := strings.TrimSuffix(filename, filepath.Ext(filename))
	return strings.HasPrefix(base, nameWithoutExt+".")
}

func writeFile(path string, src io.Reader) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}

	return out.Close()
}
