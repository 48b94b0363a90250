// Package watch decides whether a shell command line is one that may change
// a conda environment and should therefore be recorded.
package watch

import "strings"

// DefaultCommands are the command prefixes watched when none are configured.
var DefaultCommands = []string{"conda install", "conda remove", "conda update"}

// Matcher matches command lines against a list of watched commands.
type Matcher struct {
	Commands []string
}

// NewMatcher returns a Matcher for commands, falling back to DefaultCommands
// when commands is empty.
func NewMatcher(commands []string) Matcher {
	if len(commands) == 0 {
		commands = DefaultCommands
	}
	return Matcher{Commands: commands}
}

// Match reports whether line contains any watched command. Runs of
// whitespace are collapsed first, so "conda   install" matches.
func (m Matcher) Match(line string) bool {
	normalized := collapse(line)
	for _, c := range m.Commands {
		c = collapse(c)
		if c != "" && strings.Contains(normalized, c) {
			return true
		}
	}
	return false
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
