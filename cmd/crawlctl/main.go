// Command crawlctl is the operational CLI for the flight-fare aggregator:
// run one-off crawls, check source health, apply the Postgres schema, and
// run the long-lived consumer+scheduler+ops-HTTP server. Grounded on
// original_source/apps/crawler/src/sky_scanner_crawler/cli.py's
// click.group of per-concern subcommands, translated to
// github.com/urfave/cli/v2 (ground: thetreep-duffel's examples/offers
// main.go, the one urfave/cli user in the retrieved pack) since no
// example repo's CLI framework is shared by the teacher.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/gilby125/flightcrawler/config"
	"github.com/gilby125/flightcrawler/pkg/buildinfo"
	"github.com/gilby125/flightcrawler/pkg/logger"
)

func main() {
	app := &cli.App{
		Name:    "crawlctl",
		Usage:   "operate the flight-fare crawl/merge/score/store pipeline",
		Version: buildinfo.Info()["version"],
		Commands: []*cli.Command{
			searchCommand(),
			healthCommand(),
			serveCommand(),
			migrateCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
		os.Exit(1)
	}
}

// loadConfig loads env config and initializes the package-level logger
// every subcommand uses, ground: teacher main.go's Load-then-logger.Init
// sequencing.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger.Init(logger.Config{Level: cfg.LoggingConfig.Level, Format: cfg.LoggingConfig.Format})
	return cfg, nil
}
