package main

import (
	"flag"
	"os"

	"github.com/danmuck/simlink/internal/config"
	"github.com/danmuck/simlink/internal/logging"
)

const defaultPath = "cmd/simlinkctl/config.toml"

func main() {
	output := flag.String("output", defaultPath, "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", defaultPath, "config path for validation")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	logging.ConfigureRuntime()
	logger := logging.For("configgen")

	if *validate {
		cfg, err := config.Load(*input)
		if err != nil {
			logger.Error().Err(err).Str("path", *input).Msg("configgen.invalid")
			os.Exit(1)
		}
		logger.Info().
			Str("path", *input).
			Uint32("protocol", cfg.ProtocolVersion).
			Int("definitions", len(cfg.Definitions)).
			Int("events", len(cfg.Events)).
			Msg("configgen.valid")
		return
	}

	if err := config.WriteTemplate(*output, *force); err != nil {
		logger.Error().Err(err).Str("path", *output).Msg("configgen.write_failed")
		os.Exit(1)
	}
	logger.Info().Str("path", *output).Msg("configgen.wrote_template")
}
