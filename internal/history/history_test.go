package history

import (
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LISSConsulting/LISSTech.CondaWatch/internal/triple"
)

// fakeStore counts saves and can be told to fail.
type fakeStore struct {
	saves int
	err   error
}

func (f *fakeStore) Save(*triple.Graph) error {
	f.saves++
	return f.err
}

// stepClock returns start, start+step, start+2*step, ...
func stepClock(start time.Time, step time.Duration) func() time.Time {
	next := start
	return func() time.Time {
		t := next
		next = next.Add(step)
		return t
	}
}

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestAccumulator(clock func() time.Time) (*Accumulator, *fakeStore, *logtest.Hook) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	st := &fakeStore{}
	a := NewAccumulator(triple.NewGraph(), st)
	a.Now = clock
	a.Log = logger
	return a, st, hook
}

func obs(pkgs map[string]string) Observation {
	return Observation{Env: "base", EnvPath: "/opt/conda", Command: "conda install numpy", Packages: pkgs}
}

func subjectTriples(g *triple.Graph, id ObservationID) []triple.Triple {
	return g.Match(id.Term(), triple.Term{}, triple.Term{})
}

func TestRecordFirstRun(t *testing.T) {
	a, st, hook := newTestAccumulator(stepClock(t0, time.Minute))

	res, err := a.Record(obs(map[string]string{"numpy": "1.0", "python": "3.12.1"}))
	require.NoError(t, err)

	assert.Equal(t, "2024-03-01_10:00:00", res.ID.String())
	assert.False(t, res.HasPrevious)
	assert.True(t, res.Changed)
	assert.True(t, res.Persisted)
	assert.Equal(t, 1, st.saves)

	g := a.Graph
	assert.True(t, g.Has(triple.Triple{Subject: triple.URN("base"), Predicate: PredIs, Object: triple.Lit(EnvironmentKind)}))
	assert.True(t, g.Has(triple.Triple{Subject: triple.URN("base"), Predicate: PredLocation, Object: triple.Lit("/opt/conda")}))
	assert.Len(t, g.Match(res.ID.Term(), PredHasPackage, triple.Term{}), 2)
	assert.True(t, g.Has(triple.Triple{Subject: triple.URN("numpy"), Predicate: PredVersioned, Object: triple.Lit("1.0")}))
	assert.Empty(t, g.Match(triple.Term{}, PredSameAsPrevious, triple.Term{}))
	assert.Equal(t, 2+2+1+2+2, res.Added, "env(2) + command/in_env(2) + hash(1) + has_package(2) + versioned(2)")
	assert.Equal(t, "http://conda-watch/#", g.Namespaces()["cw"])

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "recorded observation", hook.LastEntry().Message)
	assert.Equal(t, true, hook.LastEntry().Data["changed"])
}

func TestRecordNoChange(t *testing.T) {
	a, _, _ := newTestAccumulator(stepClock(t0, time.Minute))

	first, err := a.Record(obs(map[string]string{"numpy": "1.0"}))
	require.NoError(t, err)
	before := a.Graph.Len()

	second, err := a.Record(obs(map[string]string{"numpy": "1.0"}))
	require.NoError(t, err)

	assert.False(t, second.Changed)
	require.True(t, second.HasPrevious)
	assert.Equal(t, first.ID, second.Previous)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)

	got := subjectTriples(a.Graph, second.ID)
	require.Len(t, got, 4, "command, in_env, has_hash, same_as_previous")
	preds := map[triple.Term]triple.Term{}
	for _, tr := range got {
		preds[tr.Predicate] = tr.Object
	}
	assert.Contains(t, preds, PredCommand)
	assert.Contains(t, preds, PredInEnv)
	assert.Contains(t, preds, PredHasHash)
	assert.Equal(t, first.ID.Term(), preds[PredSameAsPrevious], "same_as_previous is a reference to the prior observation")
	assert.False(t, preds[PredSameAsPrevious].IsLiteral())

	assert.Empty(t, a.Graph.Match(second.ID.Term(), PredHasPackage, triple.Term{}))
	assert.Equal(t, before+4, a.Graph.Len())
}

func TestRecordChangeDetected(t *testing.T) {
	a, _, _ := newTestAccumulator(stepClock(t0, time.Minute))

	_, err := a.Record(obs(map[string]string{"numpy": "1.0"}))
	require.NoError(t, err)

	res, err := a.Record(obs(map[string]string{"numpy": "1.0", "scipy": "1.2"}))
	require.NoError(t, err)

	assert.True(t, res.Changed)
	assert.True(t, res.HasPrevious)
	pkgs := a.Graph.Match(res.ID.Term(), PredHasPackage, triple.Term{})
	require.Len(t, pkgs, 2)
	assert.Equal(t, triple.URN("numpy"), pkgs[0].Object)
	assert.Equal(t, triple.URN("scipy"), pkgs[1].Object)
	assert.True(t, a.Graph.Has(triple.Triple{Subject: triple.URN("scipy"), Predicate: PredVersioned, Object: triple.Lit("1.2")}))
	assert.Len(t, a.Graph.Match(triple.URN("numpy"), PredVersioned, triple.Term{}), 1, "unchanged version is not duplicated")
	assert.Empty(t, a.Graph.Match(res.ID.Term(), PredSameAsPrevious, triple.Term{}))
}

func TestRecordVersionBumpAppends(t *testing.T) {
	a, _, _ := newTestAccumulator(stepClock(t0, time.Minute))

	_, err := a.Record(obs(map[string]string{"numpy": "1.0"}))
	require.NoError(t, err)
	_, err = a.Record(obs(map[string]string{"numpy": "2.0"}))
	require.NoError(t, err)

	versions := a.Graph.Match(triple.URN("numpy"), PredVersioned, triple.Term{})
	require.Len(t, versions, 2)
	assert.Equal(t, "1.0", versions[0].Object.Value())
	assert.Equal(t, "2.0", versions[1].Object.Value())
}

func TestRecordLinksToLatestEarlierObservation(t *testing.T) {
	a, _, _ := newTestAccumulator(stepClock(t0, time.Minute))

	_, err := a.Record(obs(map[string]string{"a": "1"}))
	require.NoError(t, err)
	second, err := a.Record(obs(map[string]string{"b": "1"}))
	require.NoError(t, err)
	third, err := a.Record(obs(map[string]string{"b": "1"}))
	require.NoError(t, err)
	fourth, err := a.Record(obs(map[string]string{"b": "1"}))
	require.NoError(t, err)

	assert.Equal(t, second.ID, third.Previous)
	assert.Equal(t, third.ID, fourth.Previous)
	assert.False(t, fourth.Changed)
}

func TestRecordSameSecondCollision(t *testing.T) {
	a, _, _ := newTestAccumulator(func() time.Time { return t0.Add(400 * time.Millisecond) })

	first, err := a.Record(obs(map[string]string{"numpy": "1.0"}))
	require.NoError(t, err)
	second, err := a.Record(obs(map[string]string{"numpy": "1.0"}))
	require.NoError(t, err)

	assert.Equal(t, "2024-03-01_10:00:00", first.ID.String())
	assert.Equal(t, "2024-03-01_10:00:00.1", second.ID.String())
	assert.Equal(t, first.ID, second.Previous)
	assert.False(t, second.Changed)
	assert.Len(t, a.Graph.Match(triple.Term{}, PredHasHash, triple.Term{}), 2, "each observation keeps exactly one fingerprint")
	assert.Len(t, a.Graph.Match(triple.Term{}, PredCommand, triple.Term{}), 2)
}

func TestRecordOrdersIdentifiersNumerically(t *testing.T) {
	a, _, _ := newTestAccumulator(func() time.Time { return t0.Add(time.Hour) })
	g := a.Graph
	// .10 is newer than .2 even though it sorts before it as a string.
	g.AddSPO(triple.Ref("urn:2024-03-01_10:00:05.2"), PredHasHash, triple.Lit("older"))
	g.AddSPO(triple.Ref("urn:2024-03-01_10:00:05.10"), PredHasHash, triple.Lit("newer"))

	res, err := a.Record(obs(nil))
	require.NoError(t, err)

	require.True(t, res.HasPrevious)
	assert.Equal(t, "2024-03-01_10:00:05.10", res.Previous.String())
}

func TestRecordSkipsUnparseableSubjects(t *testing.T) {
	a, _, hook := newTestAccumulator(stepClock(t0, time.Minute))
	a.Graph.AddSPO(triple.Ref("urn:not-a-timestamp"), PredHasHash, triple.Lit("x"))

	res, err := a.Record(obs(map[string]string{"numpy": "1.0"}))
	require.NoError(t, err)

	assert.False(t, res.HasPrevious)
	assert.True(t, res.Changed)

	var skipped bool
	for _, e := range hook.AllEntries() {
		if e.Message == "skipping unparseable observation id" {
			skipped = true
		}
	}
	assert.True(t, skipped)
}

func TestRecordIgnoresLaterObservations(t *testing.T) {
	a, _, _ := newTestAccumulator(func() time.Time { return t0 })
	a.Graph.AddSPO(triple.Ref("urn:2030-01-01_00:00:00"), PredHasHash, triple.Lit("future"))

	res, err := a.Record(obs(nil))
	require.NoError(t, err)
	assert.False(t, res.HasPrevious)
}

func TestRecordNoActiveEnvironment(t *testing.T) {
	a, st, _ := newTestAccumulator(stepClock(t0, time.Minute))

	_, err := a.Record(Observation{Command: "conda install numpy"})
	assert.ErrorIs(t, err, ErrNoActiveEnvironment)
	assert.Equal(t, 0, a.Graph.Len())
	assert.Equal(t, 0, st.saves)
}

func TestRecordEnvironmentDeduplicated(t *testing.T) {
	a, _, _ := newTestAccumulator(stepClock(t0, time.Minute))

	_, err := a.Record(obs(nil))
	require.NoError(t, err)
	_, err = a.Record(obs(nil))
	require.NoError(t, err)

	assert.Len(t, a.Graph.Match(triple.URN("base"), triple.Term{}, triple.Term{}), 2)
}

func TestRecordEnvironmentNameWithSpaces(t *testing.T) {
	a, _, _ := newTestAccumulator(stepClock(t0, time.Minute))

	_, err := a.Record(Observation{Env: "my env", EnvPath: "/envs/my env", Command: "conda update --all"})
	require.NoError(t, err)

	loc, ok := a.Graph.Object(triple.Ref("urn:my_env"), PredLocation)
	require.True(t, ok)
	assert.Equal(t, "/envs/my env", loc.Value())
}

func TestRecordPersistError(t *testing.T) {
	a, st, _ := newTestAccumulator(stepClock(t0, time.Minute))
	st.err = errors.New("disk full")

	res, err := a.Record(obs(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "history: persist")
	assert.False(t, res.Persisted)
}

func TestRecordWithoutStore(t *testing.T) {
	a, _, _ := newTestAccumulator(stepClock(t0, time.Minute))
	a.Store = nil

	res, err := a.Record(obs(nil))
	require.NoError(t, err)
	assert.False(t, res.Persisted)
	assert.Positive(t, res.Added)
}
