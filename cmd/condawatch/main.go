// Package main is the entry point for the condawatch CLI.
//
// condawatch is invoked by a shell hook with the full command line that is
// about to run. Watched conda commands are recorded; "condawatch cw-<view>"
// lines are answered with a query view; everything else is ignored.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/LISSConsulting/LISSTech.CondaWatch/internal/config"
	"github.com/LISSConsulting/LISSTech.CondaWatch/internal/watch"
)

// version is set at build time via -ldflags.
var version = "dev"

// queryPrefix marks the sub-commands answered outside of watch mode.
const queryPrefix = "cw-"

func main() {
	a := newApp(os.Stdout, os.Stderr, os.Getenv, logrus.StandardLogger())
	if err := rootCmd(a).Execute(); err != nil {
		if msg := err.Error(); msg != "" {
			fmt.Fprintf(os.Stderr, "condawatch: %s\n", msg)
		}
		os.Exit(GetExitCode(err))
	}
}

// app carries the process environment so commands can be exercised in tests.
type app struct {
	stdout io.Writer
	stderr io.Writer
	getenv func(string) string
	now    func() time.Time
	log    *logrus.Logger
}

func newApp(stdout, stderr io.Writer, getenv func(string) string, log *logrus.Logger) *app {
	log.SetOutput(stderr)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	log.SetLevel(logrus.WarnLevel)
	return &app{stdout: stdout, stderr: stderr, getenv: getenv, now: time.Now, log: log}
}

func rootCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "condawatch <command line...>",
		Short: "Record conda environment changes as semantic triples",
		Long: `condawatch is called by a shell hook with each command line before it runs.
Watched conda commands record a package snapshot; "condawatch cw-<view>"
prints a view of the recorded history. Run "condawatch cw-init" to install
a config file and print the hook.`,
		Version:            version,
		Args:               cobra.ArbitraryArgs,
		DisableFlagParsing: true,
		SilenceUsage:       true,
		SilenceErrors:      true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.dispatch(args)
		},
	}
}

// dispatch routes a hook invocation. args is the command line about to run,
// so a direct "condawatch cw-history" arrives as ["condawatch", "cw-history"]
// from the hook and as ["cw-history"] from the real invocation; only the
// first of the two is answered.
func (a *app) dispatch(args []string) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	line := strings.Join(args, " ")
	if watch.NewMatcher(cfg.Watch.Commands).Match(line) {
		return a.record(cfg, line)
	}
	if len(args) >= 2 && strings.HasPrefix(args[1], queryPrefix) {
		return a.query(cfg, args[1:])
	}
	a.log.WithField("command", line).Trace("ignored")
	return nil
}

// loadConfig reads condawatch.toml, applies environment overrides and
// configures logging.
func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.Path(a.getenv))
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(a.getenv)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	lvl, _ := logrus.ParseLevel(cfg.Log.Level)
	a.log.SetLevel(lvl)
	return cfg, nil
}
