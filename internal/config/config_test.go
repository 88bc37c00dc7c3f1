package config

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), DefaultFileName))
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 30*time.Second, cfg.ScriptTimeout())
	assert.Equal(t, time.Duration(0), cfg.RedisTTL())
	assert.Equal(t, []string{"Session", "gpupad"}, cfg.Script.Globals)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	yaml := `
store:
  backend: redis
redis:
  addr: redis:6380
  ttl: 1h
  lock: true
script:
  globals: [Session]
  timeout: 5s
  values:
    scale: [0.5, 2]
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFileName), []byte(yaml), 0644))

	cfg, err := LoadDir(dir)
	require.NoError(t, err)

	assert.Equal(t, BackendRedis, cfg.Store.Backend)
	assert.Equal(t, filepath.Join(".docbridge", "documents"), cfg.Store.Path, "unset keys keep their default")
	assert.Equal(t, "redis:6380", cfg.Redis.Addr)
	assert.Equal(t, "docbridge:document:", cfg.Redis.Prefix)
	assert.True(t, cfg.Redis.Lock)
	assert.Equal(t, time.Hour, cfg.RedisTTL())
	assert.Equal(t, 30*time.Second, cfg.LockTTL())
	assert.Equal(t, []string{"Session"}, cfg.Script.Globals)
	assert.Equal(t, 5*time.Second, cfg.ScriptTimeout())
	assert.Equal(t, []float64{0.5, 2}, cfg.Script.Values["scale"])
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docbridge.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"store":{"backend":"sqlite","path":"docs.db"}}`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, "docs.db", cfg.Store.Path)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DOCBRIDGE_STORE", "memory")
	t.Setenv("DOCBRIDGE_LOG_LEVEL", "warn")

	cfg, err := Load(filepath.Join(t.TempDir(), DefaultFileName))
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"unknown backend": "store:\n  backend: etcd\n",
		"bad duration":    "script:\n  timeout: soon\n",
		"bad yaml":        "store: [",
		"bad schema":      "schemas:\n  Buffer:\n    stride: integer\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), DefaultFileName)
			require.NoError(t, os.WriteFile(path, []byte(content), 0644))

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", DefaultFileName)
	cfg := Default()
	cfg.Store.Backend = BackendLoam
	cfg.Script.Values = map[string][]float64{"size": {256, 256}}

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestEncryptionKeys(t *testing.T) {
	key := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))

	cfg := Default()
	active, fallback, err := cfg.EncryptionKeys()
	require.NoError(t, err)
	assert.Nil(t, active, "encryption is off by default")
	assert.Empty(t, fallback)

	cfg.Store.EncryptionKey = key
	cfg.Store.FallbackKeys = []string{key}
	active, fallback, err = cfg.EncryptionKeys()
	require.NoError(t, err)
	assert.Len(t, active, 32)
	assert.Len(t, fallback, 1)

	cfg.Store.EncryptionKey = base64.StdEncoding.EncodeToString([]byte("short"))
	assert.ErrorContains(t, cfg.Validate(), "store.encryption_key")

	cfg.Store.EncryptionKey = ""
	assert.ErrorContains(t, cfg.Validate(), "requires store.encryption_key")

	t.Setenv("DOCBRIDGE_ENCRYPTION_KEY", key)
	loaded, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, key, loaded.Store.EncryptionKey)
}
