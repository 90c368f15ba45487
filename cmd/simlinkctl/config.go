package main

import (
	"fmt"
	"strings"

	"github.com/danmuck/simlink/internal/config"
)

// loadRuntimeConfig loads path and layers command-line overrides on top.
func loadRuntimeConfig(path, statusAddr, subscribe string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("load simlinkctl config: %w", err)
	}
	if addr := strings.TrimSpace(statusAddr); addr != "" {
		cfg.StatusAddr = addr
	}
	if name := strings.TrimSpace(subscribe); name != "" && !hasEvent(cfg.Events, name) {
		cfg.Events = append(cfg.Events, name)
	}
	return cfg, nil
}

func hasEvent(events []string, name string) bool {
	for _, e := range events {
		if e == name {
			return true
		}
	}
	return false
}
