//go:build !ORT

package provider

import (
	"fmt"

	"github.com/knights-analytics/hugot"
)

// newHugotSession creates a pure Go session. The Go backend has no GPU
// support, so CUDA is reported as unavailable.
func newHugotSession(device Device, _ int) (*hugot.Session, error) {
	if device == DeviceCUDA {
		return nil, fmt.Errorf("%w: cuda requires a build with -tags ORT", ErrAcceleratorUnavailable)
	}
	return hugot.NewGoSession()
}
