package triple

import "sort"

// Graph is a set of triples. Insertion is idempotent: adding a triple that is
// already present leaves the graph unchanged.
type Graph struct {
	triples    map[Triple]struct{}
	namespaces map[string]string // prefix -> base IRI
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		triples:    make(map[Triple]struct{}),
		namespaces: make(map[string]string),
	}
}

// Add inserts t and reports whether the graph changed.
func (g *Graph) Add(t Triple) bool {
	if _, ok := g.triples[t]; ok {
		return false
	}
	g.triples[t] = struct{}{}
	return true
}

// AddSPO is shorthand for Add(Triple{s, p, o}).
func (g *Graph) AddSPO(s, p, o Term) bool {
	return g.Add(Triple{Subject: s, Predicate: p, Object: o})
}

// Has reports whether t is in the graph.
func (g *Graph) Has(t Triple) bool {
	_, ok := g.triples[t]
	return ok
}

// Len returns the number of triples.
func (g *Graph) Len() int { return len(g.triples) }

// Bind associates prefix with a base IRI for serialization.
func (g *Graph) Bind(prefix, iri string) { g.namespaces[prefix] = iri }

// Namespaces returns a copy of the prefix bindings.
func (g *Graph) Namespaces() map[string]string {
	out := make(map[string]string, len(g.namespaces))
	for k, v := range g.namespaces {
		out[k] = v
	}
	return out
}

// Match returns every triple matching the pattern, sorted. A zero Term is a
// wildcard.
func (g *Graph) Match(s, p, o Term) []Triple {
	var out []Triple
	for t := range g.triples {
		if !s.IsZero() && t.Subject != s {
			continue
		}
		if !p.IsZero() && t.Predicate != p {
			continue
		}
		if !o.IsZero() && t.Object != o {
			continue
		}
		out = append(out, t)
	}
	sortTriples(out)
	return out
}

// Triples returns all triples sorted by (subject, predicate, object).
func (g *Graph) Triples() []Triple {
	return g.Match(Term{}, Term{}, Term{})
}

// Subjects returns the distinct subjects of triples matching predicate p
// (any predicate when p is zero), sorted by textual form.
func (g *Graph) Subjects(p Term) []Term {
	seen := make(map[Term]struct{})
	for t := range g.triples {
		if !p.IsZero() && t.Predicate != p {
			continue
		}
		seen[t.Subject] = struct{}{}
	}
	return sortedTerms(seen)
}

// Predicates returns the distinct predicates, sorted by textual form.
func (g *Graph) Predicates() []Term {
	seen := make(map[Term]struct{})
	for t := range g.triples {
		seen[t.Predicate] = struct{}{}
	}
	return sortedTerms(seen)
}

// Object returns the first object (in sorted order) of triples with subject s
// and predicate p.
func (g *Graph) Object(s, p Term) (Term, bool) {
	m := g.Match(s, p, Term{})
	if len(m) == 0 {
		return Term{}, false
	}
	return m[0].Object, true
}

func sortTriples(ts []Triple) {
	sort.Slice(ts, func(i, j int) bool { return ts[i].Less(ts[j]) })
}

func sortedTerms(set map[Term]struct{}) []Term {
	out := make([]Term, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].value != out[j].value {
			return out[i].value < out[j].value
		}
		return out[i].kind < out[j].kind
	})
	return out
}
