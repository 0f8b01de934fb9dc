package config

import (
	"flag"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/certhub/internal/flagx"
)

// cliFlags are the short flags this package owns. Anything else on the
// command line (for example -c) belongs to someone else and is skipped.
var cliFlags = []string{"-a", "-d", "-t", "-m", "-l"}

// parseFlags overlays command-line flags onto cfg and panics on bad input.
func parseFlags(cfg *Config) {
	if err := applyFlags(cfg, os.Args[1:]); err != nil {
		panic(err)
	}
}

// applyFlags understands:
//
//	-a string     API base URL
//	-d string     session database path
//	-t int        request timeout, whole seconds
//	-m duration   refresh margin, e.g. 2m30s
//	-l string     log level
func applyFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("certhub", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.APIBaseURL, "a", cfg.APIBaseURL, "API base URL")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "session database path")
	fs.DurationVar(&cfg.RefreshMargin, "m", cfg.RefreshMargin, "renew the access token this long before it expires")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level (debug, info, warn, error)")
	seconds := fs.Int("t", int(cfg.RequestTimeout/time.Second), "request timeout (in seconds)")

	if err := fs.Parse(flagx.FilterArgs(args, cliFlags)); err != nil {
		return err
	}
	cfg.RequestTimeout = time.Duration(*seconds) * time.Second
	return nil
}
