package main

import (
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"

	"autotrade-worker/app"
	"autotrade-worker/config"
)

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	dryRun := flag.Bool("dry-run", false, "evaluate triggers without claiming or sending")
	pretty := flag.Bool("pretty", false, "human-readable log output")
	events := flag.Int("events", 0, "print the N newest dispatch events and exit")
	flag.Parse()

	var logger zerolog.Logger
	if *pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	// Load config from environment (.env supported)
	cfg := config.LoadFromEnv()
	if *dryRun {
		cfg.Autotrade.SendEnabled = false
	}

	application := app.New(cfg, *once, logger)
	if *events > 0 {
		if err := application.ShowRecentEvents(*events); err != nil {
			logger.Fatal().Err(err).Msg("event listing failed")
		}
		return
	}
	if err := application.Start(); err != nil {
		logger.Fatal().Err(err).Msg("worker exited with error")
	}
}
