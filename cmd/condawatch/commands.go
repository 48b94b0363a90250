package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/LISSConsulting/LISSTech.CondaWatch/internal/conda"
	"github.com/LISSConsulting/LISSTech.CondaWatch/internal/config"
	"github.com/LISSConsulting/LISSTech.CondaWatch/internal/query"
	"github.com/LISSConsulting/LISSTech.CondaWatch/internal/store"
	"github.com/LISSConsulting/LISSTech.CondaWatch/internal/triple"
)

// hookScript is printed by cw-init. The DEBUG trap hands every conda or
// condawatch command line to condawatch before it runs.
const hookScript = `# condawatch: add to ~/.bashrc
trap 'case "$BASH_COMMAND" in conda\ *|condawatch\ *) condawatch $BASH_COMMAND ;; esac' DEBUG
`

// query runs a cw-* sub-command. Unknown sub-commands and stray arguments
// print the usage and exit with ExitUsage.
func (a *app) query(cfg *config.Config, args []string) error {
	cmd := queryCmd(a, cfg)
	cmd.SetArgs(args)
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)
	if err := cmd.Execute(); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return err
		}
		fmt.Fprint(a.stderr, cmd.UsageString())
		return &ExitError{Code: ExitUsage, Message: err.Error()}
	}
	return nil
}

func queryCmd(a *app, cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "condawatch",
		Short:         "Query the recorded conda history",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(
		graphCmd(a, cfg, "cw-subjects", "List every subject in the store", query.Subjects),
		graphCmd(a, cfg, "cw-dates", "List observation identifiers", query.Dates),
		graphCmd(a, cfg, "cw-predicates", "List every predicate in the store", query.Predicates),
		graphCmd(a, cfg, "cw-triples", "Dump every triple as quoted CSV", query.Triples),
		graphCmd(a, cfg, "cw-history", "Show the command history", query.History),
		envsCmd(a, cfg),
		initCmd(a),
	)
	return root
}

// graphCmd builds a sub-command that renders view over the loaded store.
func graphCmd(a *app, cfg *config.Config, name, short string, view func(io.Writer, *triple.Graph) error) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.loadGraph(cfg)
			if err != nil {
				return &ExitError{Code: ExitFailure, Message: "load store", Err: err}
			}
			return view(cmd.OutOrStdout(), g)
		},
	}
}

func envsCmd(a *app, cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "cw-envs",
		Short: "List conda environments, marking the active one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner := conda.NewRunner(cfg.Conda.Executable)
			envs, err := runner.ListEnvironments()
			if errors.Is(err, conda.ErrMissingDependency) {
				fmt.Fprintf(a.stderr, "condawatch: %s not found\n", cfg.Conda.Executable)
				return nil
			}
			if err != nil {
				return &ExitError{Code: ExitFailure, Message: "list environments", Err: err}
			}
			return query.Environments(cmd.OutOrStdout(), envs, a.getenv(config.EnvCondaPrefix))
		},
	}
}

func initCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cw-init",
		Short: "Create condawatch.toml and print the shell hook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(a.getenv)
			if err := config.InitFile(path); err != nil {
				a.log.WithError(err).Warn("config not written")
			} else {
				fmt.Fprintf(a.stderr, "Created %s\n", path)
			}
			_, err := io.WriteString(cmd.OutOrStdout(), hookScript)
			return err
		},
	}
}

// loadGraph reads the store under a shared lock.
func (a *app) loadGraph(cfg *config.Config) (*triple.Graph, error) {
	mode := store.LockNone
	if cfg.Store.Lock {
		mode = store.LockShared
	}
	f, err := store.Open(cfg.StorePath(a.getenv), mode)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.Load()
}
