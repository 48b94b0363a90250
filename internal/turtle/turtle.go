// Package turtle reads and writes the subset of the Turtle RDF syntax that
// condawatch stores its history in: prefix and base directives, IRIs,
// prefixed names, string and numeric literals, and predicate/object lists.
// Blank nodes and collections are rejected.
//
// Literal language tags and datatypes are accepted on input but only the
// lexical form is kept.
package turtle

import (
	"fmt"
	"io"
	"strings"

	"github.com/LISSConsulting/LISSTech.CondaWatch/internal/triple"
)

// rdfType is what the "a" keyword expands to.
const rdfType = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"

// ParseError reports malformed input with its 1-based position.
type ParseError struct {
	Line int
	Col  int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("turtle: line %d col %d: %s", e.Line, e.Col, e.Msg)
}

// Parse reads a Turtle document into a new graph. Prefix bindings are kept on
// the graph so that Write reproduces them.
func Parse(r io.Reader) (*triple.Graph, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("turtle: read: %w", err)
	}
	p := &parser{
		lx:       newLexer(string(data)),
		g:        triple.NewGraph(),
		prefixes: make(map[string]string),
	}
	if err := p.document(); err != nil {
		return nil, err
	}
	return p.g, nil
}

type parser struct {
	lx       *lexer
	g        *triple.Graph
	prefixes map[string]string
	base     string

	la    token
	hasLA bool
}

func (p *parser) next() (token, error) {
	if p.hasLA {
		p.hasLA = false
		return p.la, nil
	}
	return p.lx.next()
}

func (p *parser) peek() (token, error) {
	if !p.hasLA {
		t, err := p.lx.next()
		if err != nil {
			return token{}, err
		}
		p.la, p.hasLA = t, true
	}
	return p.la, nil
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return &ParseError{Line: t.line, Col: t.col, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(kind tokenKind) (token, error) {
	t, err := p.next()
	if err != nil {
		return token{}, err
	}
	if t.kind != kind {
		return token{}, p.errorf(t, "expected %s, found %s", kind, t.kind)
	}
	return t, nil
}

func (p *parser) document() error {
	for {
		t, err := p.peek()
		if err != nil {
			return err
		}
		switch {
		case t.kind == tokEOF:
			return nil
		case t.kind == tokAtKeyword:
			err = p.directive(true)
		case t.kind == tokKeyword && (strings.EqualFold(t.value, "prefix") || strings.EqualFold(t.value, "base")):
			err = p.directive(false)
		default:
			err = p.statement()
		}
		if err != nil {
			return err
		}
	}
}

// directive handles @prefix/@base (terminated by '.') and the SPARQL-style
// PREFIX/BASE forms (not terminated).
func (p *parser) directive(at bool) error {
	kw, err := p.next()
	if err != nil {
		return err
	}
	if strings.EqualFold(kw.value, "prefix") {
		name, err := p.expect(tokPName)
		if err != nil {
			return err
		}
		if !strings.HasSuffix(name.value, ":") || strings.Count(name.value, ":") != 1 {
			return p.errorf(name, "malformed prefix name %q", name.value)
		}
		iri, err := p.expect(tokIRI)
		if err != nil {
			return err
		}
		prefix := strings.TrimSuffix(name.value, ":")
		resolved := p.resolveIRI(iri.value)
		p.prefixes[prefix] = resolved
		p.g.Bind(prefix, resolved)
	} else {
		iri, err := p.expect(tokIRI)
		if err != nil {
			return err
		}
		p.base = iri.value
	}
	if at {
		if _, err := p.expect(tokDot); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) statement() error {
	t, err := p.next()
	if err != nil {
		return err
	}
	subject, err := p.reference(t)
	if err != nil {
		return err
	}
	if err := p.predicateObjectList(subject); err != nil {
		return err
	}
	_, err = p.expect(tokDot)
	return err
}

func (p *parser) predicateObjectList(subject triple.Term) error {
	for {
		verb, err := p.verb()
		if err != nil {
			return err
		}
		if err := p.objectList(subject, verb); err != nil {
			return err
		}

		t, err := p.peek()
		if err != nil {
			return err
		}
		if t.kind != tokSemicolon {
			return nil
		}
		for t.kind == tokSemicolon {
			p.hasLA = false
			if t, err = p.peek(); err != nil {
				return err
			}
		}
		if t.kind == tokDot {
			return nil
		}
	}
}

func (p *parser) objectList(subject, verb triple.Term) error {
	for {
		obj, err := p.object()
		if err != nil {
			return err
		}
		p.g.AddSPO(subject, verb, obj)

		t, err := p.peek()
		if err != nil {
			return err
		}
		if t.kind != tokComma {
			return nil
		}
		p.hasLA = false
	}
}

func (p *parser) verb() (triple.Term, error) {
	t, err := p.next()
	if err != nil {
		return triple.Term{}, err
	}
	if t.kind == tokKeyword && t.value == "a" {
		return triple.Ref(rdfType), nil
	}
	return p.reference(t)
}

func (p *parser) object() (triple.Term, error) {
	t, err := p.next()
	if err != nil {
		return triple.Term{}, err
	}
	switch t.kind {
	case tokIRI, tokPName:
		return p.reference(t)
	case tokNumber:
		return triple.Lit(t.value), nil
	case tokKeyword:
		if t.value == "true" || t.value == "false" {
			return triple.Lit(t.value), nil
		}
		return triple.Term{}, p.errorf(t, "unexpected keyword %q", t.value)
	case tokString:
		if err := p.literalSuffix(); err != nil {
			return triple.Term{}, err
		}
		return triple.Lit(t.value), nil
	}
	return triple.Term{}, p.errorf(t, "expected object, found %s", t.kind)
}

// literalSuffix consumes an optional @lang or ^^datatype after a string.
func (p *parser) literalSuffix() error {
	t, err := p.peek()
	if err != nil {
		return err
	}
	switch t.kind {
	case tokLangTag:
		p.hasLA = false
	case tokDatatype:
		p.hasLA = false
		dt, err := p.next()
		if err != nil {
			return err
		}
		if _, err := p.reference(dt); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) reference(t token) (triple.Term, error) {
	switch t.kind {
	case tokIRI:
		return triple.Ref(p.resolveIRI(t.value)), nil
	case tokPName:
		i := strings.Index(t.value, ":")
		prefix, local := t.value[:i], t.value[i+1:]
		base, ok := p.prefixes[prefix]
		if !ok {
			return triple.Term{}, p.errorf(t, "undefined prefix %q", prefix)
		}
		return triple.Ref(base + strings.ReplaceAll(local, `\`, "")), nil
	}
	return triple.Term{}, p.errorf(t, "expected IRI, found %s", t.kind)
}

func (p *parser) resolveIRI(iri string) string {
	if p.base == "" || hasScheme(iri) {
		return iri
	}
	return p.base + iri
}

func hasScheme(iri string) bool {
	i := strings.Index(iri, ":")
	if i <= 0 {
		return false
	}
	for j, r := range iri[:i] {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		if j == 0 && !isAlpha {
			return false
		}
		if !isAlpha && !(r >= '0' && r <= '9') && r != '+' && r != '-' && r != '.' {
			return false
		}
	}
	return true
}
