package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// envRef matches "$$" or ${NAME} with an optional ":-default".
var envRef = regexp.MustCompile(`\$\$|\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// searchDirs are tried, in order, for a relative config path that does not
// exist in the working directory.
var searchDirs = []string{"configs", filepath.Join(string(filepath.Separator), "etc", "imagegw")}

// LoadConfig reads the file at path, substitutes environment references,
// decodes it strictly and applies defaults. It does not validate.
func LoadConfig(path string) (*Config, error) {
	data, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}
	return parseConfig(data)
}

// LoadConfigFromReader is LoadConfig for an already open source.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return parseConfig(data)
}

func readConfigFile(path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return data, nil
}

func parseConfig(data []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(substituteEnvVars(data)))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// substituteEnvVars expands ${NAME} and ${NAME:-default}. An unset name
// without a default expands to nothing, and "$$" is a literal "$".
func substituteEnvVars(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(ref []byte) []byte {
		if len(ref) == 2 {
			return []byte("$")
		}
		m := envRef.FindSubmatch(ref)
		if v, ok := os.LookupEnv(string(m[1])); ok {
			return []byte(v)
		}
		return m[2]
	})
}

// ResolveConfigPath returns the absolute path of the config file. A
// relative path missing from the working directory is looked up in
// ./configs and then /etc/imagegw.
func ResolveConfigPath(path string) (string, error) {
	candidates := []string{path}
	if !filepath.IsAbs(path) {
		for _, dir := range searchDirs {
			candidates = append(candidates, filepath.Join(dir, path))
		}
	}

	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return filepath.Abs(c)
		}
	}
	return "", fmt.Errorf("config file not found: %s", path)
}
