//go:build ORT

package provider

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/options"
)

func newHugotSession(device Device, deviceID int) (*hugot.Session, error) {
	opts := []options.WithOption{}
	if ortLibDir := resolveORTLibDir(); ortLibDir != "" {
		opts = append(opts, options.WithOnnxLibraryPath(ortLibDir))
	}
	if device == DeviceCUDA {
		opts = append(opts, options.WithCuda(map[string]string{
			"device_id": strconv.Itoa(deviceID),
		}))
	}

	session, err := hugot.NewORTSession(opts...)
	if err != nil {
		if device == DeviceCUDA {
			return nil, fmt.Errorf("%w: %w", ErrAcceleratorUnavailable, err)
		}
		return nil, err
	}
	return session, nil
}

// resolveORTLibDir finds the ONNX Runtime shared library directory.
// It checks ORT_LIB_DIR env var, then lib/ alongside the executable,
// then lib/ relative to the working directory.
// Returns empty string to let hugot use platform defaults.
func resolveORTLibDir() string {
	if dir := os.Getenv("ORT_LIB_DIR"); dir != "" {
		return dir
	}

	candidates := []string{}

	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), "lib"))
	}
	if wd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(wd, "lib"))
	}

	for _, candidate := range candidates {
		if info, statErr := os.Stat(candidate); statErr == nil && info.IsDir() {
			return candidate
		}
	}

	return ""
}
