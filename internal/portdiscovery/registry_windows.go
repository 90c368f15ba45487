//go:build windows

package portdiscovery

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sys/windows/registry"
)

// DefaultRegistryPath is the per-user key the host writes its ports under.
const DefaultRegistryPath = `Software\Microsoft\Microsoft Games\Flight Simulator`

// Registry reads the port from HKEY_CURRENT_USER.
type Registry struct {
	Path string
	Key  string
}

func (r Registry) Resolve(context.Context) (int, error) {
	path, name := r.Path, r.Key
	if path == "" {
		path = DefaultRegistryPath
	}
	if name == "" {
		name = DefaultKey
	}
	k, err := registry.OpenKey(registry.CURRENT_USER, path, registry.QUERY_VALUE)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return 0, fmt.Errorf("%w: registry key %s", ErrPortNotFound, path)
		}
		return 0, fmt.Errorf("portdiscovery: open registry %s: %w", path, err)
	}
	defer k.Close()
	raw, _, err := k.GetStringValue(name)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return 0, fmt.Errorf("%w: registry value %s", ErrPortNotFound, name)
		}
		return 0, fmt.Errorf("portdiscovery: read registry %s: %w", name, err)
	}
	return ParsePort(raw)
}
