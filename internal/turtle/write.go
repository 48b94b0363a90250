package turtle

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/LISSConsulting/LISSTech.CondaWatch/internal/triple"
)

// Write serializes g as Turtle. Output is deterministic: prefixes, subjects,
// predicates and objects are all emitted in sorted order, so writing an
// unchanged graph twice produces identical bytes.
func Write(w io.Writer, g *triple.Graph) error {
	bw := bufio.NewWriter(w)

	ns := g.Namespaces()
	prefixes := make([]string, 0, len(ns))
	for p := range ns {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)
	for _, p := range prefixes {
		fmt.Fprintf(bw, "@prefix %s: <%s> .\n", p, escapeIRI(ns[p]))
	}
	if len(prefixes) > 0 {
		bw.WriteString("\n")
	}

	ts := g.Triples()
	for i := 0; i < len(ts); {
		subject := ts[i].Subject
		bw.WriteString(formatTerm(subject))

		var lastPred triple.Term
		for ; i < len(ts) && ts[i].Subject == subject; i++ {
			t := ts[i]
			switch {
			case lastPred.IsZero():
				bw.WriteString(" " + formatTerm(t.Predicate) + " ")
			case t.Predicate != lastPred:
				bw.WriteString(" ;\n    " + formatTerm(t.Predicate) + " ")
			default:
				bw.WriteString(" ,\n        ")
			}
			bw.WriteString(formatTerm(t.Object))
			lastPred = t.Predicate
		}
		bw.WriteString(" .\n\n")
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("turtle: write: %w", err)
	}
	return nil
}

func formatTerm(t triple.Term) string {
	if t.IsLiteral() {
		return `"` + escapeString(t.Value()) + `"`
	}
	return "<" + escapeIRI(t.Value()) + ">"
}

func escapeIRI(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r <= 0x20 || strings.ContainsRune("<>\"{}|^`\\", r) {
			fmt.Fprintf(&b, `\u%04X`, r)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func escapeString(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&b, `\u%04X`, r)
				continue
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}
