package config

import "path/filepath"

// Conda environment variables describing the active environment.
const (
	EnvCondaName   = "CONDA_DEFAULT_ENV"
	EnvCondaPrefix = "CONDA_PREFIX"
)

// ActiveEnvironment is the conda environment of the calling shell.
type ActiveEnvironment struct {
	Name string
	Path string
}

// ActiveEnv reads the active environment from CONDA_DEFAULT_ENV and
// CONDA_PREFIX. When only the prefix is set, the name is the prefix's last
// path element. The boolean is false when no environment is active, or when
// its prefix is unknown and the packages therefore cannot be listed.
func ActiveEnv(getenv func(string) string) (ActiveEnvironment, bool) {
	env := ActiveEnvironment{
		Name: getenv(EnvCondaName),
		Path: getenv(EnvCondaPrefix),
	}
	if env.Name == "" && env.Path != "" {
		env.Name = filepath.Base(env.Path)
	}
	return env, env.Name != "" && env.Path != ""
}
