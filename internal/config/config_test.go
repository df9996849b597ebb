package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "warren.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const validConfig = `version: "1.0"
instance: test
redis:
  url: redis://localhost:6379
worker:
  poll_interval: 250ms
  batch_size: 50
logging:
  level: debug
  format: console
subjects:
  beneficiary:
    table: beneficiaries
    parents:
      - field: household_id
        kind: household
  household:
    table: households
`

func TestLoad(t *testing.T) {
	t.Run("loads valid config", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, validConfig))
		require.NoError(t, err)

		assert.Equal(t, "test", cfg.Instance)
		assert.Equal(t, "redis://localhost:6379", cfg.Redis.URL)
		assert.Equal(t, 250*time.Millisecond, cfg.Worker.Interval())
		assert.EqualValues(t, 50, cfg.Worker.BatchSize)
		assert.Equal(t, "debug", cfg.Logging.Level)

		binding, ok := cfg.Subjects["beneficiary"]
		require.True(t, ok)
		assert.Equal(t, "beneficiaries", binding.Table)
		require.Len(t, binding.Parents, 1)
		assert.Equal(t, "household_id", binding.Parents[0].Field)
		assert.Equal(t, "household", binding.Parents[0].Kind)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
		assert.Error(t, err)
	})

	t.Run("rejects unknown version", func(t *testing.T) {
		_, err := Load(writeConfig(t, `version: "2.0"
instance: test
redis:
  url: redis://localhost:6379
`))
		assert.Error(t, err)
	})

	t.Run("rejects missing instance", func(t *testing.T) {
		_, err := Load(writeConfig(t, `version: "1.0"
redis:
  url: redis://localhost:6379
`))
		assert.Error(t, err)
	})

	t.Run("rejects missing redis url", func(t *testing.T) {
		_, err := Load(writeConfig(t, `version: "1.0"
instance: test
`))
		assert.Error(t, err)
	})

	t.Run("rejects parent edge to unbound kind", func(t *testing.T) {
		_, err := Load(writeConfig(t, `version: "1.0"
instance: test
redis:
  url: redis://localhost:6379
subjects:
  beneficiary:
    table: beneficiaries
    parents:
      - field: household_id
        kind: household
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not bound")
	})

	t.Run("rejects malformed poll interval", func(t *testing.T) {
		_, err := Load(writeConfig(t, `version: "1.0"
instance: test
redis:
  url: redis://localhost:6379
worker:
  poll_interval: soonish
`))
		assert.Error(t, err)
	})

	t.Run("rejects binding without table", func(t *testing.T) {
		_, err := Load(writeConfig(t, `version: "1.0"
instance: test
redis:
  url: redis://localhost:6379
subjects:
  beneficiary:
    parents: []
`))
		assert.Error(t, err)
	})
}

func TestDefaults(t *testing.T) {
	t.Run("poll interval defaults to one second", func(t *testing.T) {
		w := WorkerConfig{}
		assert.Equal(t, time.Second, w.Interval())
	})

	t.Run("health addr defaults to 8080", func(t *testing.T) {
		e := EngineConfig{}
		assert.Equal(t, ":8080", e.Addr())
	})

	t.Run("health addr override", func(t *testing.T) {
		e := EngineConfig{HealthAddr: ":9999"}
		assert.Equal(t, ":9999", e.Addr())
	})
}
