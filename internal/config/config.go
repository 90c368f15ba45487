package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/simlink/internal/client"
	"github.com/danmuck/simlink/internal/logging"
	"github.com/danmuck/simlink/internal/portdiscovery"
	"github.com/danmuck/simlink/internal/protocol/datadef"
	"github.com/danmuck/simlink/internal/protocol/session"
	"github.com/danmuck/simlink/internal/transport"
	"github.com/rs/zerolog"
)

var ErrInvalidConfig = errors.New("config: invalid")

// Config is the client configuration after defaults and file overrides.
type Config struct {
	ApplicationName string
	ProtocolVersion uint32
	Host            string
	Port            int
	PortKey         string
	PortFile        string
	PortEnv         string
	ConnectTimeout  time.Duration
	WriteTimeout    time.Duration
	ConnectAttempts int
	StatusAddr      string
	StatusToken     string
	LogLevel        zerolog.Level
	LogJSON         bool
	Events          []string
	Definitions     []Definition
}

// Definition is one data definition to register and poll.
type Definition struct {
	ID     uint32        `toml:"id"`
	Object string        `toml:"object"`
	Radius uint32        `toml:"radius"`
	Fields []FieldConfig `toml:"fields"`
}

type FieldConfig struct {
	Name    string  `toml:"name"`
	Units   string  `toml:"units"`
	Type    string  `toml:"type"`
	Epsilon float32 `toml:"epsilon"`
}

// fileConfig maps config.toml keys.
type fileConfig struct {
	ApplicationName string       `toml:"application_name"`
	ProtocolVersion uint32       `toml:"protocol_version"`
	Host            string       `toml:"host"`
	Port            int          `toml:"port"`
	PortKey         string       `toml:"port_key"`
	PortFile        string       `toml:"port_file"`
	PortEnv         string       `toml:"port_env"`
	ConnectTimeout  string       `toml:"connect_timeout"`
	WriteTimeout    string       `toml:"write_timeout"`
	ConnectAttempts int          `toml:"connect_attempts"`
	StatusAddr      string       `toml:"status_addr"`
	StatusToken     string       `toml:"status_token"`
	Log             logConfig    `toml:"log"`
	Events          []string     `toml:"events"`
	Definitions     []Definition `toml:"definitions"`
}

type logConfig struct {
	Level string `toml:"level"`
	JSON  bool   `toml:"json"`
}

func Default() Config {
	return Config{
		ApplicationName: "simlink",
		ProtocolVersion: 4,
		Host:            "127.0.0.1",
		PortKey:         portdiscovery.DefaultKey,
		PortEnv:         "SIMLINK_PORT",
		ConnectTimeout:  5 * time.Second,
		WriteTimeout:    5 * time.Second,
		ConnectAttempts: 5,
		LogLevel:        zerolog.InfoLevel,
	}
}

// Load overlays the keys present in path onto Default and validates the
// result.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%w: unknown key %q in %s", ErrInvalidConfig, undecoded[0].String(), path)
	}

	if meta.IsDefined("application_name") {
		cfg.ApplicationName = strings.TrimSpace(raw.ApplicationName)
	}
	if meta.IsDefined("protocol_version") {
		cfg.ProtocolVersion = raw.ProtocolVersion
	}
	if meta.IsDefined("host") {
		cfg.Host = strings.TrimSpace(raw.Host)
	}
	if meta.IsDefined("port") {
		cfg.Port = raw.Port
	}
	if meta.IsDefined("port_key") {
		cfg.PortKey = strings.TrimSpace(raw.PortKey)
	}
	if meta.IsDefined("port_file") {
		cfg.PortFile = strings.TrimSpace(raw.PortFile)
	}
	if meta.IsDefined("port_env") {
		cfg.PortEnv = strings.TrimSpace(raw.PortEnv)
	}
	if meta.IsDefined("connect_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ConnectTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse connect_timeout: %w", err)
		}
		cfg.ConnectTimeout = d
	}
	if meta.IsDefined("write_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.WriteTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse write_timeout: %w", err)
		}
		cfg.WriteTimeout = d
	}
	if meta.IsDefined("connect_attempts") {
		cfg.ConnectAttempts = raw.ConnectAttempts
	}
	if meta.IsDefined("status_addr") {
		cfg.StatusAddr = strings.TrimSpace(raw.StatusAddr)
	}
	if meta.IsDefined("status_token") {
		cfg.StatusToken = strings.TrimSpace(raw.StatusToken)
	}
	if meta.IsDefined("log", "level") {
		lvl, ok := logging.ParseLevel(raw.Log.Level)
		if !ok {
			return Config{}, fmt.Errorf("%w: log.level %q", ErrInvalidConfig, raw.Log.Level)
		}
		cfg.LogLevel = lvl
	}
	if meta.IsDefined("log", "json") {
		cfg.LogJSON = raw.Log.JSON
	}
	if meta.IsDefined("events") {
		cfg.Events = normalizeEvents(raw.Events)
	}
	if meta.IsDefined("definitions") {
		cfg.Definitions = raw.Definitions
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func Validate(cfg Config) error {
	sc := session.Config{ProtocolVersion: cfg.ProtocolVersion, ApplicationName: cfg.ApplicationName}
	if err := sc.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.Host) == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidConfig)
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, cfg.Port)
	}
	if cfg.ConnectTimeout <= 0 || cfg.WriteTimeout <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalidConfig)
	}
	if cfg.ConnectAttempts < 0 {
		return fmt.Errorf("%w: connect_attempts must not be negative", ErrInvalidConfig)
	}
	seen := make(map[uint32]struct{}, len(cfg.Definitions))
	for i, def := range cfg.Definitions {
		if _, dup := seen[def.ID]; dup {
			return fmt.Errorf("%w: definitions[%d] duplicate id %d", ErrInvalidConfig, i, def.ID)
		}
		seen[def.ID] = struct{}{}
		if _, err := def.ObjectType(); err != nil {
			return fmt.Errorf("%w: definitions[%d]: %w", ErrInvalidConfig, i, err)
		}
		if _, err := def.DataFields(); err != nil {
			return fmt.Errorf("%w: definitions[%d]: %w", ErrInvalidConfig, i, err)
		}
	}
	return nil
}

// ObjectType parses Object; empty means the user aircraft.
func (d Definition) ObjectType() (datadef.ObjectType, error) {
	name := strings.ToLower(strings.TrimSpace(d.Object))
	if name == "" {
		return datadef.ObjectUser, nil
	}
	for t := datadef.ObjectUser; t <= datadef.ObjectGround; t++ {
		if t.String() == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown object type %q", d.Object)
}

// DataFields converts the configured fields into registration order.
func (d Definition) DataFields() ([]datadef.Field, error) {
	if len(d.Fields) == 0 {
		return nil, fmt.Errorf("definition %d has no fields", d.ID)
	}
	out := make([]datadef.Field, 0, len(d.Fields))
	for i, f := range d.Fields {
		dt := datadef.TypeFloat64
		if strings.TrimSpace(f.Type) != "" {
			parsed, err := datadef.ParseDataType(strings.ToLower(strings.TrimSpace(f.Type)))
			if err != nil {
				return nil, err
			}
			// the CLI decodes replies positionally, so only fixed-size types work
			if _, ok := parsed.Size(); !ok {
				return nil, fmt.Errorf("field %q: %w", f.Name, datadef.ErrUnsupportedType)
			}
			dt = parsed
		}
		field := datadef.Field{
			DatumName: strings.TrimSpace(f.Name),
			UnitsName: strings.TrimSpace(f.Units),
			DataType:  dt,
			Epsilon:   f.Epsilon,
			DatumID:   uint32(i),
		}
		if err := field.Validate(); err != nil {
			return nil, err
		}
		out = append(out, field)
	}
	return out, nil
}

// ClientConfig derives the connection settings.
func (c Config) ClientConfig() client.Config {
	out := client.DefaultConfig()
	out.Session = session.Config{ProtocolVersion: c.ProtocolVersion, ApplicationName: c.ApplicationName}
	out.Host = c.Host
	out.Transport = transport.Config{
		ConnectTimeout: c.ConnectTimeout,
		WriteTimeout:   c.WriteTimeout,
	}.WithDefaults()
	out.MaxConnectAttempts = c.ConnectAttempts
	return out
}

// Resolver orders port sources from most to least explicit: the configured
// port, the environment, a port file, then the registry.
func (c Config) Resolver() portdiscovery.Resolver {
	chain := portdiscovery.Chain{portdiscovery.Static{Port: c.Port}}
	if c.PortEnv != "" {
		chain = append(chain, portdiscovery.Env{Name: c.PortEnv})
	}
	if c.PortFile != "" {
		chain = append(chain, portdiscovery.File{Path: c.PortFile, Key: c.PortKey})
	}
	return append(chain, portdiscovery.Registry{Key: c.PortKey})
}

func normalizeEvents(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, raw := range in {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
