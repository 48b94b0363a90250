package query

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/LISSConsulting/LISSTech.CondaWatch/internal/conda"
)

// DefaultAccentColor highlights the active environment (indigo).
const DefaultAccentColor = "#7D56F4"

// Environments prints one line per conda environment: a "*" marker for the
// active one, the name and the path. activePrefix (usually $CONDA_PREFIX)
// marks an environment active in addition to conda's own marker. Styling is
// dropped automatically when w is not a terminal.
func Environments(w io.Writer, envs []conda.Environment, activePrefix string) error {
	if len(envs) == 0 {
		_, err := fmt.Fprintln(w, "No conda environments found.")
		return err
	}

	r := lipgloss.NewRenderer(w)
	active := r.NewStyle().Bold(true).Foreground(lipgloss.Color(DefaultAccentColor))

	width := 0
	for _, e := range envs {
		if n := runewidth.StringWidth(e.Name); n > width {
			width = n
		}
	}

	for _, e := range envs {
		marker, name := " ", e.Name
		if e.Active || (activePrefix != "" && e.Path == activePrefix) {
			marker, name = "*", active.Render(name)
		}
		gap := strings.Repeat(" ", width-runewidth.StringWidth(e.Name)+2)
		if _, err := fmt.Fprintf(w, "%s %s%s%s\n", marker, name, gap, e.Path); err != nil {
			return err
		}
	}
	return nil
}
