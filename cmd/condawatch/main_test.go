package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const condaList = `# packages in environment at /opt/conda:
#
# Name                    Version                   Build  Channel
numpy                     1.26.4          py312h2809609_0
python                    3.12.1               h996f2a0_0    conda-forge
`

const condaEnvs = `# conda environments:
#
base                  *  /opt/conda
science                  /opt/conda/envs/science
`

// harness runs the CLI against a temp directory holding a fake conda, a
// config file and the store.
type harness struct {
	t         *testing.T
	dir       string
	env       map[string]string
	configDoc string
	storePath string
	clock     time.Time
	stdout    bytes.Buffer
	stderr    bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake requires a unix shell")
	}
	dir := t.TempDir()
	h := &harness{
		t:         t,
		dir:       dir,
		storePath: filepath.Join(dir, "data", "history.ttl"),
		clock:     time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	h.writeFile("pkgs.txt", condaList)
	h.writeFile("envs.txt", condaEnvs)
	script := "#!/bin/sh\n" +
		"case \"$1\" in\n" +
		"  list) cat '" + filepath.Join(dir, "pkgs.txt") + "' ;;\n" +
		"  env) cat '" + filepath.Join(dir, "envs.txt") + "' ;;\n" +
		"  *) exit 2 ;;\n" +
		"esac\n"
	conda := filepath.Join(dir, "bin", "conda")
	require.NoError(t, os.MkdirAll(filepath.Dir(conda), 0755))
	require.NoError(t, os.WriteFile(conda, []byte(script), 0755))

	h.configDoc = fmt.Sprintf("[store]\npath = %q\n\n[conda]\nexecutable = %q\n", h.storePath, conda)
	h.writeFile("condawatch.toml", h.configDoc)

	h.env = map[string]string{
		"HOME":              dir,
		"CONDAWATCH_CONFIG": filepath.Join(dir, "condawatch.toml"),
		"CONDA_DEFAULT_ENV": "base",
		"CONDA_PREFIX":      "/opt/conda",
	}
	return h
}

func (h *harness) writeFile(name, content string) {
	h.t.Helper()
	require.NoError(h.t, os.WriteFile(filepath.Join(h.dir, name), []byte(content), 0644))
}

// run executes one CLI invocation. Each invocation is one minute after the
// previous one.
func (h *harness) run(args ...string) error {
	h.stdout.Reset()
	h.stderr.Reset()
	a := newApp(&h.stdout, &h.stderr, func(k string) string { return h.env[k] }, logrus.New())
	now := h.clock
	a.now = func() time.Time { return now }
	h.clock = h.clock.Add(time.Minute)

	if args == nil {
		args = []string{} // nil makes cobra fall back to os.Args
	}
	cmd := rootCmd(a)
	cmd.SetArgs(args)
	return cmd.Execute()
}

func (h *harness) store() string {
	h.t.Helper()
	data, err := os.ReadFile(h.storePath)
	require.NoError(h.t, err)
	return string(data)
}

func TestRecordAndHistory(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run("conda", "install", "numpy"))
	assert.Empty(t, h.stdout.String(), "recording prints nothing")
	doc := h.store()
	assert.Contains(t, doc, "@prefix cw: <http://conda-watch/#> .")
	assert.Contains(t, doc, "<urn:2024-03-01_10:00:00> <cw:command> \"conda install numpy\"")
	assert.Contains(t, doc, "<urn:numpy> <cw:versioned> \"1.26.4\"")

	require.NoError(t, h.run("condawatch", "cw-history"))
	want := "| Timestamp               | Command             \n" +
		"| ----------------------- | ----------------------\n" +
		"| urn:2024-03-01_10:00:00 | conda install numpy \n" +
		"\n"
	assert.Equal(t, want, h.stdout.String())
}

func TestRecordUnchangedLinksPrevious(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run("conda", "install", "numpy"))
	require.NoError(t, h.run("conda", "update", "numpy"))

	require.NoError(t, h.run("condawatch", "cw-triples"))
	assert.Contains(t, h.stdout.String(),
		`"urn:2024-03-01_10:01:00","cw:same_as_previous","urn:2024-03-01_10:00:00"`)
	assert.NotContains(t, h.stdout.String(), `"urn:2024-03-01_10:01:00","cw:has_package"`)
}

func TestRecordChangedListsPackages(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run("conda", "install", "numpy"))
	h.writeFile("pkgs.txt", condaList+"scipy                     1.12.0          py312heda63a1_0\n")
	require.NoError(t, h.run("conda", "install", "scipy"))

	require.NoError(t, h.run("condawatch", "cw-triples"))
	out := h.stdout.String()
	assert.Contains(t, out, `"urn:2024-03-01_10:01:00","cw:has_package","urn:scipy"`)
	assert.Contains(t, out, `"urn:scipy","cw:versioned","1.12.0"`)
	assert.NotContains(t, out, `"urn:2024-03-01_10:01:00","cw:same_as_previous"`)

	require.NoError(t, h.run("condawatch", "cw-dates"))
	assert.Equal(t, "urn:2024-03-01_10:00:00\nurn:2024-03-01_10:01:00\n", h.stdout.String())
}

func TestIgnoredInvocations(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no arguments", nil},
		{"single argument", []string{"cw-history"}},
		{"unrelated command", []string{"ls", "-la"}},
		{"conda without watched verb", []string{"conda", "info", "--envs"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			require.NoError(t, h.run(tt.args...))
			assert.Empty(t, h.stdout.String())
			assert.NoFileExists(t, h.storePath)
		})
	}
}

func TestFlagsPassThrough(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run("conda", "install", "-c", "conda-forge", "--yes", "numpy"))
	assert.Contains(t, h.store(), `"conda install -c conda-forge --yes numpy"`)
}

func TestUnknownQuery(t *testing.T) {
	h := newHarness(t)

	err := h.run("condawatch", "cw-bogus")
	require.Error(t, err)
	assert.Equal(t, ExitUsage, GetExitCode(err))
	assert.Contains(t, err.Error(), `unknown command "cw-bogus"`)
	assert.Contains(t, h.stderr.String(), "cw-history")
}

func TestQueryRejectsArguments(t *testing.T) {
	h := newHarness(t)

	err := h.run("condawatch", "cw-history", "extra")
	require.Error(t, err)
	assert.Equal(t, ExitUsage, GetExitCode(err))
}

func TestNoActiveEnvironment(t *testing.T) {
	h := newHarness(t)
	delete(h.env, "CONDA_DEFAULT_ENV")
	delete(h.env, "CONDA_PREFIX")

	require.NoError(t, h.run("conda", "install", "numpy"))
	assert.NoFileExists(t, h.storePath)
}

func TestMissingConda(t *testing.T) {
	h := newHarness(t)
	h.writeFile("condawatch.toml", fmt.Sprintf("[store]\npath = %q\n\n[conda]\nexecutable = %q\n",
		h.storePath, filepath.Join(h.dir, "no-such-conda")))

	require.NoError(t, h.run("conda", "install", "numpy"))
	assert.Contains(t, h.stderr.String(), "not found")
	assert.NoFileExists(t, h.storePath)
}

func TestCorruptStoreAborts(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(h.storePath), 0755))
	corrupt := "<urn:a> <cw:command> \"unterminated\n"
	require.NoError(t, os.WriteFile(h.storePath, []byte(corrupt), 0644))

	err := h.run("conda", "install", "numpy")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, corrupt, h.store(), "store must be left untouched")

	err = h.run("condawatch", "cw-subjects")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestInvalidConfig(t *testing.T) {
	h := newHarness(t)
	h.writeFile("condawatch.toml", "[log]\nlevel = \"loud\"\n")

	err := h.run("conda", "install", "numpy")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.level")
}

func TestLogLevelFromEnvironment(t *testing.T) {
	h := newHarness(t)
	h.env["CONDAWATCH_LOG_LEVEL"] = "info"

	require.NoError(t, h.run("conda", "install", "numpy"))
	assert.Contains(t, h.stderr.String(), "recorded observation")
	assert.NotContains(t, h.stderr.String(), "time=", "timestamps are disabled")
}

func TestEnvs(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run("condawatch", "cw-envs"))
	assert.Equal(t, "* base     /opt/conda\n  science  /opt/conda/envs/science\n", h.stdout.String())
}

func TestInit(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(h.dir, "fresh", "condawatch.toml")
	h.env["CONDAWATCH_CONFIG"] = path

	require.NoError(t, h.run("condawatch", "cw-init"))
	assert.FileExists(t, path)
	assert.Contains(t, h.stdout.String(), "trap ")
	assert.Contains(t, h.stderr.String(), "Created "+path)

	// A second run keeps the existing file and still prints the hook.
	require.NoError(t, h.run("condawatch", "cw-init"))
	assert.Contains(t, h.stdout.String(), "trap ")
}

func TestNotification(t *testing.T) {
	bodies := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bodies <- string(body)
	}))
	t.Cleanup(srv.Close)

	h := newHarness(t)
	h.writeFile("condawatch.toml", h.configDoc+fmt.Sprintf("\n[notifications]\nurl = %q\n", srv.URL))

	require.NoError(t, h.run("conda", "install", "numpy"))
	require.NoError(t, h.run("conda", "update", "numpy"))

	require.Len(t, bodies, 1, "unchanged snapshot is not reported by default")
	got := <-bodies
	assert.True(t, strings.HasPrefix(got, "base: first snapshot recorded"), got)
}
