package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfigYAML = `
server:
  address: ":8080"
fetch:
  workers: 2
  userAgent: test-agent
  circuitBreaker:
    enabled: true
    threshold: 3
    timeout: 10s
routes:
  - name: thumbs
    pattern: /thumb/:size/:name
    source: https://images.example.com/:name
    cacheExpiration: 86400
    socketTimeout: 5s
    maxPixels: 4000000
    maxDimension: 2000
    steps:
      - op: resize
        width: ":size"
      - op: quality
        value: 80
        when: 'params.q == "low"'
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "imagegw.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(writeConfig(t, validConfigYAML))
	require.NoError(t, err)
	require.NoError(t, ValidateConfig(cfg))

	assert.Equal(t, 2, cfg.Fetch.Workers)
	assert.Equal(t, "test-agent", cfg.Fetch.UserAgent)
	require.NotNil(t, cfg.Fetch.CircuitBreaker)
	assert.Equal(t, 10*time.Second, cfg.Fetch.CircuitBreaker.Timeout.Duration())

	require.Len(t, cfg.Routes, 1)
	r := cfg.Routes[0]
	assert.Equal(t, "/thumb/:size/:name", r.Pattern)
	require.NotNil(t, r.CacheExpiration)
	assert.Equal(t, 86400, *r.CacheExpiration)
	assert.Equal(t, 5*time.Second, r.SocketTimeout.Duration())
	assert.Equal(t, int64(4000000), r.MaxPixels)
	assert.Equal(t, 2000, r.MaxDimension)
	require.Len(t, r.Steps, 2)
	assert.Equal(t, Step{Op: OpResize, Width: ":size"}, r.Steps[0])
	assert.Equal(t, "80", r.Steps[1].Value)
	assert.Equal(t, `params.q == "low"`, r.Steps[1].When)

	// defaults still applied around explicit values
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig("/nonexistent/path/imagegw.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfigFromReader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{name: "empty document", input: ""},
		{name: "malformed", input: "routes: [", wantErr: "failed to parse YAML"},
		{name: "unknown field", input: "serverz: {}", wantErr: "failed to parse YAML"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := LoadConfigFromReader(strings.NewReader(tt.input))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, DefaultServerAddress, cfg.Server.Address)
		})
	}
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("IMAGEGW_TEST_HOST", "cdn.example.com")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "set variable", input: "${IMAGEGW_TEST_HOST}", want: "cdn.example.com"},
		{name: "set variable ignores default", input: "${IMAGEGW_TEST_HOST:-other}", want: "cdn.example.com"},
		{name: "unset with default", input: "${IMAGEGW_TEST_UNSET:-fallback}", want: "fallback"},
		{name: "unset without default", input: "x${IMAGEGW_TEST_UNSET}y", want: "xy"},
		{name: "escaped dollar", input: "$${IMAGEGW_TEST_HOST}", want: "${IMAGEGW_TEST_HOST}"},
		{name: "plain text", input: "no variables", want: "no variables"},
		{name: "lone dollar kept", input: "price: $5", want: "price: $5"},
		{name: "escaped then expanded", input: "$$$${IMAGEGW_TEST_HOST}", want: "$${IMAGEGW_TEST_HOST}"},
		{name: "adjacent references", input: "${IMAGEGW_TEST_HOST}${IMAGEGW_TEST_UNSET:-:8080}", want: "cdn.example.com:8080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(substituteEnvVars([]byte(tt.input))))
		})
	}
}

func TestLoadConfig_EnvSubstitution(t *testing.T) {
	t.Setenv("IMAGEGW_TEST_ORIGIN", "https://origin.example.com")

	cfg, err := LoadConfig(writeConfig(t, `
routes:
  - pattern: /img/:name
    source: ${IMAGEGW_TEST_ORIGIN}/:name
`))
	require.NoError(t, err)
	require.Len(t, cfg.Routes, 1)
	assert.Equal(t, "https://origin.example.com/:name", cfg.Routes[0].Source)
}

func TestResolveConfigPath(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, validConfigYAML)
	got, err := ResolveConfigPath(path)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	_, err = ResolveConfigPath(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = ResolveConfigPath("definitely-missing-imagegw.yaml")
	assert.Error(t, err)

	_, err = ResolveConfigPath(t.TempDir())
	assert.Error(t, err, "directories are not config files")
}
