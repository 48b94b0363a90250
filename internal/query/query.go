// Package query renders read-only views of the observation graph. None of
// the views mutate the graph.
package query

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/LISSConsulting/LISSTech.CondaWatch/internal/history"
	"github.com/LISSConsulting/LISSTech.CondaWatch/internal/triple"
)

// Subjects prints every distinct subject, sorted by textual form.
func Subjects(w io.Writer, g *triple.Graph) error {
	return printTerms(w, g.Subjects(triple.Term{}))
}

// Dates prints the identifiers of all observations, i.e. the subjects that
// carry a fingerprint, sorted by textual form.
func Dates(w io.Writer, g *triple.Graph) error {
	return printTerms(w, g.Subjects(history.PredHasHash))
}

// Predicates prints every distinct predicate, sorted by textual form.
func Predicates(w io.Writer, g *triple.Graph) error {
	return printTerms(w, g.Predicates())
}

// Triples prints every triple as "subject","predicate","object", sorted.
func Triples(w io.Writer, g *triple.Graph) error {
	bw := bufio.NewWriter(w)
	for _, t := range g.Triples() {
		fmt.Fprintf(bw, "\"%s\",\"%s\",\"%s\"\n", t.Subject, t.Predicate, t.Object)
	}
	return bw.Flush()
}

// History prints the command history as a two-column table ordered by
// observation identifier, oldest first.
func History(w io.Writer, g *triple.Graph) error {
	rows := g.Match(triple.Term{}, history.PredCommand, triple.Term{})
	sort.SliceStable(rows, func(i, j int) bool {
		return lessObservation(rows[i].Subject.String(), rows[j].Subject.String())
	})

	var b strings.Builder
	fmt.Fprintf(&b, "| %s | %s\n", pad("Timestamp", 23), pad("Command", 20))
	fmt.Fprintf(&b, "| %s | %s\n", strings.Repeat("-", 23), strings.Repeat("-", 22))
	for _, r := range rows {
		fmt.Fprintf(&b, "| %s | %s\n", pad(r.Subject.String(), 22), pad(r.Object.String(), 20))
	}
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// lessObservation orders observation subjects by parsed identifier. Subjects
// that do not parse sort after those that do, by text.
func lessObservation(a, b string) bool {
	ida, errA := history.ParseObservationID(a)
	idb, errB := history.ParseObservationID(b)
	switch {
	case errA == nil && errB == nil:
		if c := ida.Compare(idb); c != 0 {
			return c < 0
		}
		return a < b
	case errA == nil:
		return true
	case errB == nil:
		return false
	}
	return a < b
}

// pad left-aligns s in a column of the given display width.
func pad(s string, width int) string {
	return runewidth.FillRight(s, width)
}

func printTerms(w io.Writer, terms []triple.Term) error {
	bw := bufio.NewWriter(w)
	for _, t := range terms {
		fmt.Fprintln(bw, t.String())
	}
	return bw.Flush()
}
