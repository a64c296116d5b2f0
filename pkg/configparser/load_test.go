package configparser

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Database struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"database"`
	Timeout time.Duration `yaml:"timeout"`
	Weights []float64     `yaml:"weights"`
}

func TestParseYamlSubstitutesEnv(t *testing.T) {
	t.Setenv("ENGINE_TEST_DB_HOST", "db.internal")

	data := []byte(`
database:
  host: ${ENGINE_TEST_DB_HOST:-localhost}
  port: ${ENGINE_TEST_DB_PORT:-5432}
timeout: 750ms
weights: [0.5, 0.35, 0.15]
`)

	var cfg sample
	require.NoError(t, ParseYaml(data, &cfg))
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 750*time.Millisecond, cfg.Timeout)
	assert.Equal(t, []float64{0.5, 0.35, 0.15}, cfg.Weights)
}

func TestLoadAndParseYaml(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  host: example\n"), 0o600))

	var cfg sample
	require.NoError(t, LoadAndParseYaml(path, &cfg))
	assert.Equal(t, "example", cfg.Database.Host)

	assert.ErrorIs(t, LoadAndParseYaml("", &cfg), ErrNoFilePath)
	assert.Error(t, LoadAndParseYaml(filepath.Join(dir, "missing.yaml"), &cfg))
}

func TestLoadEnvFileMissingIsIgnored(t *testing.T) {
	assert.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), ".env")))
}
