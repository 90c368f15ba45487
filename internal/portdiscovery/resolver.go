package portdiscovery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultKey names the port value the host publishes for IPv4 clients.
const DefaultKey = "SimConnect_Port_IPv4"

var ErrPortNotFound = errors.New("portdiscovery: port not found")

// Resolver looks up the TCP port the host listens on.
type Resolver interface {
	Resolve(ctx context.Context) (int, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context) (int, error)

func (f ResolverFunc) Resolve(ctx context.Context) (int, error) { return f(ctx) }

// ParsePort accepts a decimal port in 1..65535, surrounding space allowed.
func ParsePort(raw string) (int, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return 0, ErrPortNotFound
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("portdiscovery: parse port %q: %w", v, err)
	}
	if n <= 0 || n > 65535 {
		return 0, fmt.Errorf("portdiscovery: port %d out of range", n)
	}
	return n, nil
}

// Static always returns Port; zero means not configured.
type Static struct {
	Port int
}

func (s Static) Resolve(context.Context) (int, error) {
	if s.Port == 0 {
		return 0, ErrPortNotFound
	}
	return ParsePort(strconv.Itoa(s.Port))
}

// Env reads the port from an environment variable.
type Env struct {
	Name string
}

func (e Env) Resolve(context.Context) (int, error) {
	raw, ok := os.LookupEnv(e.Name)
	if !ok {
		return 0, fmt.Errorf("%w: env %s unset", ErrPortNotFound, e.Name)
	}
	return ParsePort(raw)
}

// File reads Key from a flat TOML file. Values may be integers or decimal
// strings, matching how the host writes the registry value.
type File struct {
	Path string
	Key  string
}

func (f File) Resolve(context.Context) (int, error) {
	key := f.Key
	if key == "" {
		key = DefaultKey
	}
	var raw map[string]any
	if _, err := toml.DecodeFile(f.Path, &raw); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", ErrPortNotFound, f.Path)
		}
		return 0, fmt.Errorf("portdiscovery: read %s: %w", f.Path, err)
	}
	v, ok := raw[key]
	if !ok {
		return 0, fmt.Errorf("%w: key %s not in %s", ErrPortNotFound, key, f.Path)
	}
	switch t := v.(type) {
	case int64:
		return ParsePort(strconv.FormatInt(t, 10))
	case string:
		return ParsePort(t)
	default:
		return 0, fmt.Errorf("portdiscovery: key %s has type %T", key, v)
	}
}

// Chain tries each resolver in order and returns the first port found.
// Errors other than ErrPortNotFound stop the search.
type Chain []Resolver

func (c Chain) Resolve(ctx context.Context) (int, error) {
	for _, r := range c {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		port, err := r.Resolve(ctx)
		if err == nil {
			return port, nil
		}
		if !errors.Is(err, ErrPortNotFound) {
			return 0, err
		}
	}
	return 0, ErrPortNotFound
}
