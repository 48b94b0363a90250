// Package conda queries the conda package manager for installed packages and
// known environments.
package conda

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrMissingDependency is returned when the conda executable cannot be found.
// It is a benign condition: condawatch reports it and exits successfully.
var ErrMissingDependency = errors.New("conda: executable not found")

// DefaultHeaderLines is the number of lines `conda list` prints before the
// first package.
const DefaultHeaderLines = 3

// Runner executes conda commands.
type Runner struct {
	Executable  string // path or name of the conda binary
	HeaderLines int    // lines to skip at the top of `conda list` output
}

// NewRunner creates a Runner for the given executable.
func NewRunner(executable string) *Runner {
	return &Runner{Executable: executable, HeaderLines: DefaultHeaderLines}
}

// Environment is one entry of `conda env list`.
type Environment struct {
	Name   string
	Path   string
	Active bool
}

// ListPackages returns the packages installed in the environment at prefix
// as name -> version.
func (r *Runner) ListPackages(prefix string) (map[string]string, error) {
	out, err := r.run("list", "-p", prefix)
	if err != nil {
		return nil, fmt.Errorf("conda list %s: %w", prefix, err)
	}
	return parsePackages(out, r.HeaderLines), nil
}

// ListEnvironments returns the environments conda knows about.
func (r *Runner) ListEnvironments() ([]Environment, error) {
	out, err := r.run("env", "list")
	if err != nil {
		return nil, fmt.Errorf("conda env list: %w", err)
	}
	return parseEnvironments(out), nil
}

// parsePackages skips the header, then takes the first two whitespace
// separated fields of each line as name and version. Comment lines and lines
// with fewer than two fields are ignored.
func parsePackages(out string, headerLines int) map[string]string {
	pkgs := make(map[string]string)
	lines := strings.Split(out, "\n")
	if headerLines > len(lines) {
		headerLines = len(lines)
	}
	for _, line := range lines[headerLines:] {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		pkgs[fields[0]] = fields[1]
	}
	return pkgs
}

// parseEnvironments reads lines of the form "name [*] path". Unnamed
// environments (path only) are named after the last path element.
func parseEnvironments(out string) []Environment {
	var envs []Environment
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		env := Environment{Path: fields[len(fields)-1]}
		for _, f := range fields[:len(fields)-1] {
			if f == "*" {
				env.Active = true
			}
		}
		if len(fields) > 1 && fields[0] != "*" {
			env.Name = fields[0]
		} else {
			env.Name = filepath.Base(env.Path)
		}
		envs = append(envs, env)
	}
	return envs
}

// run executes a conda command and returns its stdout.
func (r *Runner) run(args ...string) (string, error) {
	exe := r.Executable
	if exe == "" {
		exe = "conda"
	}
	if _, err := exec.LookPath(exe); err != nil {
		return "", fmt.Errorf("%w: %s", ErrMissingDependency, exe)
	}

	cmd := exec.Command(exe, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrMissingDependency, exe)
		}
		errMsg := strings.TrimSpace(stderr.String())
		if errMsg == "" {
			errMsg = strings.TrimSpace(stdout.String())
		}
		return "", fmt.Errorf("%s: %w", errMsg, err)
	}
	return stdout.String(), nil
}
