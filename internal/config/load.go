package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// DirEnv names a directory searched for <env>.yaml before ./config.
const DirEnv = "RAGSTORE_CONFIG_DIR"

// GetEnv returns $ENV, or "local" when it is unset.
func GetEnv() string {
	if env := strings.TrimSpace(os.Getenv("ENV")); env != "" {
		return env
	}
	return "local"
}

// Load reads the configuration of environment env (local, dev, prod...).
func Load(env string) (Config, error) {
	return LoadFile(locate(env + ".yaml"))
}

// LoadFile reads, expands, defaults and validates the file at path.
func LoadFile(path string) (Config, error) {
	raw, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := parse(raw)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func parse(raw []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(expandEnvVars(raw), &cfg); err != nil {
		return Config{}, fmt.Errorf("parse: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid: %w", err)
	}
	return cfg, nil
}

// locate returns the first existing candidate, or the ./config one so the
// read error names the conventional place.
func locate(name string) string {
	fallback := filepath.Join("config", name)
	var dirs []string
	if dir := os.Getenv(DirEnv); dir != "" {
		dirs = append(dirs, dir)
	}
	dirs = append(dirs, "config")
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Join(filepath.Dir(exe), "config"))
	}
	for _, dir := range dirs {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return fallback
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// expandEnvVars substitutes ${VAR} and ${VAR:-default}. An unset VAR with
// no default becomes the empty string.
func expandEnvVars(raw []byte) []byte {
	return envRef.ReplaceAllFunc(raw, func(ref []byte) []byte {
		m := envRef.FindSubmatch(ref)
		if v := os.Getenv(string(m[1])); v != "" {
			return []byte(v)
		}
		return m[2]
	})
}
