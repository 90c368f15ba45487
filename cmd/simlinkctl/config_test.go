package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/danmuck/simlink/internal/testutil/testlog"
)

func TestExampleConfigLoads(t *testing.T) {
	testlog.Start(t)
	cfg, err := loadRuntimeConfig("ex.config.toml", "", "")
	if err != nil {
		t.Fatalf("load example config: %v", err)
	}
	if cfg.ApplicationName != "simlinkctl" || len(cfg.Definitions) != 2 || len(cfg.Events) != 4 {
		t.Fatalf("unexpected example config: %+v", cfg)
	}
	for _, def := range cfg.Definitions {
		if _, err := def.DataFields(); err != nil {
			t.Fatalf("definition %d: %v", def.ID, err)
		}
	}
}

func TestFlagOverrides(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	body := "application_name = \"ctl\"\nstatus_addr = \"127.0.0.1:1\"\nevents = [\"Pause\"]\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadRuntimeConfig(path, " :9999 ", "SimStart")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StatusAddr != ":9999" {
		t.Fatalf("status override ignored: %q", cfg.StatusAddr)
	}
	if len(cfg.Events) != 2 || cfg.Events[1] != "SimStart" {
		t.Fatalf("subscribe override ignored: %v", cfg.Events)
	}

	cfg, err = loadRuntimeConfig(path, "", "Pause")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Events) != 1 {
		t.Fatalf("duplicate subscription added: %v", cfg.Events)
	}
}

func TestMissingConfigFails(t *testing.T) {
	testlog.Start(t)
	if _, err := loadRuntimeConfig(filepath.Join(t.TempDir(), "absent.toml"), "", ""); err == nil {
		t.Fatalf("expected error for missing config")
	}
}
