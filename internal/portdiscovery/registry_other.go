//go:build !windows

package portdiscovery

import (
	"context"
	"fmt"
)

const DefaultRegistryPath = `Software\Microsoft\Microsoft Games\Flight Simulator`

// Registry has no backing store outside windows and always reports
// ErrPortNotFound so a Chain falls through to the next resolver.
type Registry struct {
	Path string
	Key  string
}

func (r Registry) Resolve(context.Context) (int, error) {
	return 0, fmt.Errorf("%w: registry unavailable on this platform", ErrPortNotFound)
}
