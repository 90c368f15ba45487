package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Template renders a starter config.toml with every key at its default and
// one example definition.
func Template() ([]byte, error) {
	d := Default()
	raw := fileConfig{
		ApplicationName: d.ApplicationName,
		ProtocolVersion: d.ProtocolVersion,
		Host:            d.Host,
		Port:            d.Port,
		PortKey:         d.PortKey,
		PortFile:        d.PortFile,
		PortEnv:         d.PortEnv,
		ConnectTimeout:  d.ConnectTimeout.String(),
		WriteTimeout:    d.WriteTimeout.String(),
		ConnectAttempts: d.ConnectAttempts,
		StatusAddr:      "127.0.0.1:9480",
		Log:             logConfig{Level: d.LogLevel.String()},
		Events:          []string{"SimStart", "SimStop", "Pause"},
		Definitions: []Definition{{
			ID:     1,
			Object: "user",
			Fields: []FieldConfig{
				{Name: "Plane Altitude", Units: "feet", Type: "float64"},
				{Name: "Plane Latitude", Units: "degrees", Type: "float64"},
				{Name: "Plane Longitude", Units: "degrees", Type: "float64"},
				{Name: "Title", Units: "", Type: "string256"},
			},
		}},
	}
	out, err := toml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("render config template: %w", err)
	}
	return out, nil
}

func WriteTemplate(path string, overwrite bool) error {
	body, err := Template()
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, body, 0o600)
}
