package textfetch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/always-cache/textfetch/cache"
	"github.com/always-cache/textfetch/pkg/locator"
	responsetransformer "github.com/always-cache/textfetch/pkg/response-transformer"
)

// Cache providers selectable in a config file.
const (
	ProviderMemory  = "memory"
	ProviderSQLite  = "sqlite"
	ProviderLevelDB = "leveldb"
)

// FileConfig is the content of a YAML or TOML config file.
type FileConfig struct {
	UserAgent    string         `yaml:"userAgent" toml:"userAgent"`
	MaxRedirects int            `yaml:"maxRedirects" toml:"maxRedirects"`
	DialTimeout  string         `yaml:"dialTimeout" toml:"dialTimeout"`
	Cache        CacheConfig    `yaml:"cache" toml:"cache"`
	Origins      []ConfigOrigin `yaml:"origins" toml:"origins"`

	// compiled
	dialTimeout time.Duration
}

type CacheConfig struct {
	// One of memory, sqlite or leveldb.
	Provider string `yaml:"provider" toml:"provider"`
	// Database file (sqlite) or directory (leveldb).
	// An empty sqlite path gives a private in-memory database.
	Path string `yaml:"path" toml:"path"`
}

type ConfigOrigin struct {
	Origin string                    `yaml:"origin" toml:"origin"`
	Rules  responsetransformer.Rules `yaml:"rules" toml:"rules"`
}

// DefaultFileConfig returns the configuration used without a config file.
func DefaultFileConfig() FileConfig {
	return FileConfig{
		UserAgent:    DefaultUserAgent(),
		MaxRedirects: DefaultMaxRedirects,
		Cache:        CacheConfig{Provider: ProviderMemory},
	}
}

// LoadConfig reads a config file. Files ending in .toml are read as TOML,
// anything else as YAML. Missing values get their defaults.
func LoadConfig(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return FileConfig{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		b, err := os.ReadFile(path)
		if err != nil {
			return FileConfig{}, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return FileConfig{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return FileConfig{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate applies defaults and checks all values.
func (c *FileConfig) Validate() error {
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent()
	}
	if c.MaxRedirects < 0 {
		return fmt.Errorf("maxRedirects must not be negative")
	}
	if c.MaxRedirects == 0 {
		c.MaxRedirects = DefaultMaxRedirects
	}
	c.dialTimeout = 0
	if c.DialTimeout != "" {
		d, err := time.ParseDuration(c.DialTimeout)
		if err != nil {
			return fmt.Errorf("dialTimeout: %w", err)
		}
		c.dialTimeout = d
	}

	c.Cache.Provider = strings.ToLower(c.Cache.Provider)
	switch c.Cache.Provider {
	case "":
		c.Cache.Provider = ProviderMemory
	case ProviderMemory, ProviderSQLite:
	case ProviderLevelDB:
		if c.Cache.Path == "" {
			return fmt.Errorf("cache.path is required for leveldb")
		}
	default:
		return fmt.Errorf("unknown cache provider %q", c.Cache.Provider)
	}

	for i := range c.Origins {
		o := &c.Origins[i]
		u, err := locator.Parse(o.Origin)
		if err != nil {
			return fmt.Errorf("origins[%d].origin: %w", i, err)
		}
		if !u.IsNetwork() {
			return fmt.Errorf("origins[%d].origin: not an http(s) origin: %s", i, o.Origin)
		}
		// normalize to scheme://host:port
		o.Origin = u.Origin()
	}
	return nil
}

// OpenStore opens the configured cache store.
func (c FileConfig) OpenStore() (*cache.Store, error) {
	switch c.Cache.Provider {
	case ProviderSQLite:
		return cache.OpenSQLiteStore(c.Cache.Path)
	case ProviderLevelDB:
		return cache.OpenLevelDBStore(c.Cache.Path)
	}
	return cache.NewMemoryStore(), nil
}

// SessionConfig turns the file config into a session config using the given store.
func (c FileConfig) SessionConfig(store *cache.Store) Config {
	rules := make(map[string]responsetransformer.Rules, len(c.Origins))
	for _, o := range c.Origins {
		rules[o.Origin] = append(rules[o.Origin], o.Rules...)
	}
	return Config{
		Store:        store,
		UserAgent:    c.UserAgent,
		MaxRedirects: c.MaxRedirects,
		DialTimeout:  c.dialTimeout,
		Rules:        rules,
	}
}
