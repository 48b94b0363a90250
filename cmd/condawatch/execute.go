package main

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/LISSConsulting/LISSTech.CondaWatch/internal/conda"
	"github.com/LISSConsulting/LISSTech.CondaWatch/internal/config"
	"github.com/LISSConsulting/LISSTech.CondaWatch/internal/history"
	"github.com/LISSConsulting/LISSTech.CondaWatch/internal/notify"
	"github.com/LISSConsulting/LISSTech.CondaWatch/internal/store"
)

// record takes a package snapshot of the active environment and adds it to
// the store. A missing environment or conda executable is not an error.
func (a *app) record(cfg *config.Config, line string) error {
	env, ok := config.ActiveEnv(a.getenv)
	if !ok {
		a.log.Debug("no active conda environment")
		return nil
	}
	log := a.log.WithFields(logrus.Fields{"env": env.Name, "prefix": env.Path})

	runner := conda.NewRunner(cfg.Conda.Executable)
	runner.HeaderLines = cfg.Conda.HeaderLines
	pkgs, err := runner.ListPackages(env.Path)
	if errors.Is(err, conda.ErrMissingDependency) {
		fmt.Fprintf(a.stderr, "condawatch: %s not found, nothing recorded\n", cfg.Conda.Executable)
		return nil
	}
	if err != nil {
		return fmt.Errorf("list packages: %w", err)
	}
	log.WithField("packages", len(pkgs)).Debug("snapshot taken")

	mode := store.LockNone
	if cfg.Store.Lock {
		mode = store.LockExclusive
	}
	f, err := store.Open(cfg.StorePath(a.getenv), mode)
	if err != nil {
		return err
	}
	defer f.Close()

	g, err := f.Load()
	if err != nil {
		return err
	}

	acc := history.NewAccumulator(g, f)
	acc.Now = a.now
	acc.Log = a.log
	res, err := acc.Record(history.Observation{
		Env:      env.Name,
		EnvPath:  env.Path,
		Command:  line,
		Packages: pkgs,
	})
	if errors.Is(err, history.ErrNoActiveEnvironment) {
		return nil
	}
	if err != nil {
		return err
	}

	n := notify.New(cfg.Notifications.URL, cfg.Notifications.Title, cfg.Notifications.OnUnchanged)
	n.WithLogger(a.log).Recorded(env.Name, line, res)
	return nil
}
