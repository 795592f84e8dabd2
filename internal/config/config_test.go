package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	c := Default()
	n, err := c.MaxInputBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(512<<20), n)
	assert.Equal(t, ":8080", c.HTTP.Addr)
	assert.False(t, c.AllowEmpty)
	assert.NoError(t, c.Validate())
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"yaml", "pagesweep.yaml", "maxInputSize: 64 MiB\nallowEmpty: true\noutput:\n  prefix: clean-\nhttp:\n  addr: \":9000\"\n"},
		{"json", "pagesweep.json", `{"maxInputSize": "64 MiB", "allowEmpty": true, "output": {"prefix": "clean-"}, "http": {"addr": ":9000"}}`},
		{"no extension", "pagesweep.conf", `{"maxInputSize": "64 MiB", "allowEmpty": true, "output": {"prefix": "clean-"}, "http": {"addr": ":9000"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Load(writeFile(t, tt.file, tt.content))
			require.NoError(t, err)

			n, err := c.MaxInputBytes()
			require.NoError(t, err)
			assert.Equal(t, int64(64<<20), n)
			assert.True(t, c.AllowEmpty)
			assert.Equal(t, "clean-", c.Output.Prefix)
			assert.Equal(t, ":9000", c.HTTP.Addr)
			// Unset fields keep their defaults.
			assert.Equal(t, DefaultRateLimit, c.HTTP.RateLimit)
		})
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeFile(t, "bad.json", "{"))
	assert.ErrorContains(t, err, "parse json")

	_, err = Load(writeFile(t, "bad.yaml", "maxInputSize: lots\n"))
	assert.ErrorContains(t, err, "maxInputSize")
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PAGESWEEP_MAX_INPUT_SIZE": "10MB",
		"PAGESWEEP_ALLOW_EMPTY":    "true",
		"PAGESWEEP_PRODUCER":       "scanner",
		"PORT":                     "7000",
		"PAGESWEEP_RATE_LIMIT":     "5",
		"PAGESWEEP_CORS_ORIGINS":   "https://a.example, https://b.example",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	c := Default()
	require.NoError(t, c.ApplyEnv(lookup))

	n, err := c.MaxInputBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(10_000_000), n)
	assert.True(t, c.AllowEmpty)
	assert.Equal(t, "scanner", c.Producer)
	assert.Equal(t, ":7000", c.HTTP.Addr)
	assert.Equal(t, 5, c.HTTP.RateLimit)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.HTTP.AllowedOrigins)

	env = map[string]string{"PAGESWEEP_ALLOW_EMPTY": "maybe"}
	c = Default()
	assert.Error(t, c.ApplyEnv(lookup))
}

func TestOptions(t *testing.T) {
	c := Default()
	assert.Len(t, c.Options(), 3)

	c.AllowEmpty = true
	c.MaxFormDepth = 4
	assert.Len(t, c.Options(), 3)
}

func TestOutputName(t *testing.T) {
	c := Default()
	assert.Equal(t, "cleaned_scan.pdf", c.OutputName("/tmp/in/scan.pdf"))
	assert.Equal(t, "cleaned_document.pdf", c.OutputName(""))

	c.Output.Prefix = "x-"
	assert.Equal(t, "x-scan.pdf", c.OutputName("scan.pdf"))
}
