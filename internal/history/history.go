// Package history records package snapshots of a conda environment into the
// triple graph. Each recorded command becomes an observation; unchanged
// snapshots link back to the previous observation instead of repeating the
// package list.
package history

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/LISSConsulting/LISSTech.CondaWatch/internal/fingerprint"
	"github.com/LISSConsulting/LISSTech.CondaWatch/internal/triple"
)

// ErrNoActiveEnvironment is returned by Record when no environment is active.
// Callers treat it as "nothing to do".
var ErrNoActiveEnvironment = errors.New("history: no active environment")

// Persister writes the whole graph to durable storage.
// *store.File satisfies this interface.
type Persister interface {
	Save(g *triple.Graph) error
}

// Observation is the input to Record: the active environment, the command
// that triggered recording and the packages installed after it.
type Observation struct {
	Env      string
	EnvPath  string
	Command  string
	Packages map[string]string // name -> version
}

// Result describes what Record did.
type Result struct {
	ID          ObservationID
	Previous    ObservationID // zero unless HasPrevious
	HasPrevious bool
	Fingerprint string
	Changed     bool // first observation, or fingerprint differs from Previous
	Added       int  // triples that were not already in the graph
	Persisted   bool
}

// Accumulator appends observations to a graph and persists it when it
// changed. It is not safe for concurrent use; the store lock serializes
// processes.
type Accumulator struct {
	Graph *triple.Graph
	Store Persister          // nil keeps the graph in memory only
	Now   func() time.Time   // defaults to time.Now
	Log   logrus.FieldLogger // defaults to the standard logger
}

// NewAccumulator returns an Accumulator over g that persists through p.
func NewAccumulator(g *triple.Graph, p Persister) *Accumulator {
	return &Accumulator{Graph: g, Store: p, Now: time.Now, Log: logrus.StandardLogger()}
}

// Record adds obs to the graph.
//
// The environment and the observation's command, environment membership and
// fingerprint are always recorded. If the fingerprint equals that of the
// latest earlier observation, a single cw:same_as_previous link is added;
// otherwise every package is linked with cw:has_package and its version
// recorded with cw:versioned. The graph is persisted only when at least one
// triple was added.
func (a *Accumulator) Record(obs Observation) (Result, error) {
	if obs.Env == "" {
		return Result{}, ErrNoActiveEnvironment
	}
	if _, ok := a.Graph.Namespaces()[NamespacePrefix]; !ok {
		a.Graph.Bind(NamespacePrefix, Namespace)
	}

	var res Result
	add := func(s, p, o triple.Term) {
		if a.Graph.AddSPO(s, p, o) {
			res.Added++
		}
	}

	env := triple.URN(obs.Env)
	add(env, PredIs, triple.Lit(EnvironmentKind))
	add(env, PredLocation, triple.Lit(obs.EnvPath))

	res.ID = a.nextID()
	subject := res.ID.Term()
	add(subject, PredCommand, triple.Lit(obs.Command))
	add(subject, PredInEnv, triple.Lit(obs.Env))

	prev, prevHash, hasPrev := a.previous(res.ID)
	res.Previous, res.HasPrevious = prev, hasPrev

	res.Fingerprint = fingerprint.Of(obs.Packages)
	add(subject, PredHasHash, triple.Lit(res.Fingerprint))

	res.Changed = !hasPrev || prevHash != res.Fingerprint
	if !res.Changed {
		add(subject, PredSameAsPrevious, prev.Term())
	} else {
		names := make([]string, 0, len(obs.Packages))
		for name := range obs.Packages {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			pkg := triple.URN(name)
			add(subject, PredHasPackage, pkg)
			add(pkg, PredVersioned, triple.Lit(obs.Packages[name]))
		}
	}

	log := a.logger().WithFields(logrus.Fields{
		"id":       res.ID.String(),
		"env":      obs.Env,
		"changed":  res.Changed,
		"added":    res.Added,
		"packages": len(obs.Packages),
	})

	if res.Added > 0 && a.Store != nil {
		if err := a.Store.Save(a.Graph); err != nil {
			return res, fmt.Errorf("history: persist: %w", err)
		}
		res.Persisted = true
	}
	log.WithField("persisted", res.Persisted).Info("recorded observation")
	return res, nil
}

// nextID returns an identifier for the current second that no existing
// subject uses yet.
func (a *Accumulator) nextID() ObservationID {
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	id := NewObservationID(now())
	for len(a.Graph.Match(id.Term(), triple.Term{}, triple.Term{})) > 0 {
		id.Seq++
	}
	return id
}

// previous finds the latest observation that sorts before id and carries a
// fingerprint. Subjects whose identifiers do not parse are skipped.
func (a *Accumulator) previous(id ObservationID) (ObservationID, string, bool) {
	var (
		best  ObservationID
		hash  string
		found bool
	)
	for _, t := range a.Graph.Match(triple.Term{}, PredHasHash, triple.Term{}) {
		cand, err := ParseObservationID(t.Subject.Value())
		if err != nil {
			a.logger().WithField("subject", t.Subject.Value()).Debug("skipping unparseable observation id")
			continue
		}
		if !cand.Before(id) {
			continue
		}
		if !found || best.Before(cand) {
			best, hash, found = cand, t.Object.Value(), true
		}
	}
	return best, hash, found
}

func (a *Accumulator) logger() logrus.FieldLogger {
	if a.Log == nil {
		return logrus.StandardLogger()
	}
	return a.Log
}
