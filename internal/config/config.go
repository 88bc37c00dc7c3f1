// Package config loads docbridge.yaml, the project-level configuration of the CLI.
package config

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/docbridge/pkg/schema"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is looked up in the project directory.
const DefaultFileName = "docbridge.yaml"

// Store backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
	BackendLoam   = "loam"
)

// Backends lists every supported store backend.
var Backends = []string{BackendMemory, BackendFile, BackendRedis, BackendSQLite, BackendLoam}

// Config holds all docbridge configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" json:"store"`
	Redis  RedisConfig  `yaml:"redis" json:"redis"`
	Script ScriptConfig `yaml:"script" json:"script"`
	Log    LogConfig    `yaml:"log" json:"log"`
	Server ServerConfig `yaml:"server" json:"server"`
	// Schemas maps a node type to its attribute contract, e.g. {"Buffer": {"stride": "int"}}.
	Schemas map[string]map[string]string `yaml:"schemas,omitempty" json:"schemas,omitempty"`
}

// StoreConfig selects where documents live.
type StoreConfig struct {
	Backend string `yaml:"backend" json:"backend"`
	// Path is a directory for file and loam, a database file for sqlite.
	Path string `yaml:"path" json:"path"`
	// EncryptionKey enables encryption at rest: base64 of 32 bytes.
	EncryptionKey string `yaml:"encryption_key,omitempty" json:"encryption_key,omitempty"`
	// FallbackKeys still decrypt documents written before a key rotation.
	FallbackKeys []string `yaml:"fallback_keys,omitempty" json:"fallback_keys,omitempty"`
	// Redact lists patterns of attribute keys whose values are masked on save.
	Redact []string `yaml:"redact,omitempty" json:"redact,omitempty"`
}

// RedisConfig configures the redis store and the distributed locker.
type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
	Prefix   string `yaml:"prefix" json:"prefix"`
	TTL      string `yaml:"ttl" json:"ttl"`
	Lock     bool   `yaml:"lock" json:"lock"`
	LockTTL  string `yaml:"lock_ttl" json:"lock_ttl"`
}

// ScriptConfig configures the Lua engine.
type ScriptConfig struct {
	Globals []string             `yaml:"globals" json:"globals"`
	Timeout string               `yaml:"timeout" json:"timeout"`
	Values  map[string][]float64 `yaml:"values" json:"values"`
	// Tools is the allow-list of local commands scripts may call, relative to the
	// project directory.
	Tools string `yaml:"tools" json:"tools"`
}

// LogConfig configures the application logger.
type LogConfig struct {
	Level string `yaml:"level" json:"level"`
}

// ServerConfig configures the serve and mcp commands.
type ServerConfig struct {
	Port    int `yaml:"port" json:"port"`
	MCPPort int `yaml:"mcp_port" json:"mcp_port"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend: BackendFile,
			Path:    filepath.Join(".docbridge", "documents"),
		},
		Redis: RedisConfig{
			Addr:    "localhost:6379",
			Prefix:  "docbridge:document:",
			LockTTL: "30s",
		},
		Script: ScriptConfig{
			Globals: []string{"Session", "gpupad"},
			Timeout: "30s",
			Tools:   "tools.yaml",
		},
		Log: LogConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Port:    8080,
			MCPPort: 8081,
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults; a .json
// extension is parsed as JSON, anything else as YAML. Environment overrides apply
// last.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if strings.EqualFold(filepath.Ext(path), ".json") {
			err = json.Unmarshal(data, cfg)
		} else {
			err = yaml.Unmarshal(data, cfg)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDir loads DefaultFileName from dir.
func LoadDir(dir string) (*Config, error) {
	return Load(filepath.Join(dir, DefaultFileName))
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DOCBRIDGE_STORE"); v != "" {
		c.Store.Backend = v
	}
	if v := os.Getenv("DOCBRIDGE_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("DOCBRIDGE_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("DOCBRIDGE_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("DOCBRIDGE_ENCRYPTION_KEY"); v != "" {
		c.Store.EncryptionKey = v
	}
	if v := os.Getenv("DOCBRIDGE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate checks the backend name and every duration.
func (c *Config) Validate() error {
	known := false
	for _, b := range Backends {
		if c.Store.Backend == b {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown store backend %q (want one of %s)", c.Store.Backend, strings.Join(Backends, ", "))
	}

	for name, value := range map[string]string{
		"redis.ttl":      c.Redis.TTL,
		"redis.lock_ttl": c.Redis.LockTTL,
		"script.timeout": c.Script.Timeout,
	} {
		if _, err := parseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}

	if _, _, err := c.EncryptionKeys(); err != nil {
		return err
	}
	if _, err := c.SchemaRegistry(); err != nil {
		return err
	}
	return nil
}

// SchemaRegistry parses the configured item schemas. It is empty when none are set.
func (c *Config) SchemaRegistry() (schema.Registry, error) {
	r, err := schema.ParseRegistry(c.Schemas)
	if err != nil {
		return nil, fmt.Errorf("invalid schemas: %w", err)
	}
	return r, nil
}

// EncryptionKeys decodes the active and fallback keys. A nil active key means
// encryption is off.
func (c *Config) EncryptionKeys() ([]byte, [][]byte, error) {
	if c.Store.EncryptionKey == "" {
		if len(c.Store.FallbackKeys) > 0 {
			return nil, nil, fmt.Errorf("store.fallback_keys requires store.encryption_key")
		}
		return nil, nil, nil
	}
	active, err := decodeKey(c.Store.EncryptionKey)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid store.encryption_key: %w", err)
	}
	fallback := make([][]byte, 0, len(c.Store.FallbackKeys))
	for i, k := range c.Store.FallbackKeys {
		key, err := decodeKey(k)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid store.fallback_keys[%d]: %w", i, err)
		}
		fallback = append(fallback, key)
	}
	return active, fallback, nil
}

func decodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("want 32 bytes, got %d", len(key))
	}
	return key, nil
}

// ScriptTimeout returns the per-script time limit. Zero means none.
func (c *Config) ScriptTimeout() time.Duration {
	d, _ := parseDuration(c.Script.Timeout)
	return d
}

// RedisTTL returns the document expiration. Zero means none.
func (c *Config) RedisTTL() time.Duration {
	d, _ := parseDuration(c.Redis.TTL)
	return d
}

// LockTTL returns the distributed lock lease.
func (c *Config) LockTTL() time.Duration {
	d, _ := parseDuration(c.Redis.LockTTL)
	return d
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
