package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

var (
	cfg  *Config
	once sync.Once
	mu   sync.RWMutex
)

// Config represents the gateway configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type FetchConfig struct {
	// Schedule is a cron expression (with seconds) for the periodic scan.
	Schedule        string        `mapstructure:"schedule"`
	DialTimeout     time.Duration `mapstructure:"dial_timeout"`
	TaskTimeout     time.Duration `mapstructure:"task_timeout"`
	BodyLimit       int64         `mapstructure:"body_limit"`
	AttachmentLimit int64         `mapstructure:"attachment_limit"`
}

type LoggingConfig struct {
	Verbose bool `mapstructure:"verbose"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "mailgate")
	v.SetDefault("app.env", "production")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("fetch.schedule", "0 */5 * * * *")
	v.SetDefault("fetch.dial_timeout", 5*time.Second)
	v.SetDefault("fetch.task_timeout", 10*time.Minute)
	v.SetDefault("fetch.body_limit", int64(128*1024))
	v.SetDefault("fetch.attachment_limit", int64(25*1024*1024))
	v.SetDefault("logging.verbose", false)
}

// Load reads the configuration from an optional file and the environment.
// Environment variables use the MAILGATE_ prefix, e.g. MAILGATE_DATABASE_DSN.
func Load(path string) (*Config, error) {
	var loadErr error
	once.Do(func() {
		v := viper.New()
		setDefaults(v)
		v.SetEnvPrefix("MAILGATE")
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()

		if path != "" {
			v.SetConfigFile(path)
		} else {
			v.SetConfigName("mailgate")
			v.SetConfigType("yaml")
			v.AddConfigPath(".")
			v.AddConfigPath("/etc/mailgate")
		}
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && path != "" {
				loadErr = fmt.Errorf("read config: %w", err)
				return
			}
		}

		c := &Config{}
		if err := v.Unmarshal(c); err != nil {
			loadErr = fmt.Errorf("unmarshal config: %w", err)
			return
		}
		mu.Lock()
		cfg = c
		mu.Unlock()

		// Hot-reload limits and logging on file edits; connection settings
		// require a restart.
		v.OnConfigChange(func(fsnotify.Event) {
			updated := &Config{}
			if err := v.Unmarshal(updated); err != nil {
				return
			}
			mu.Lock()
			cfg.Fetch.BodyLimit = updated.Fetch.BodyLimit
			cfg.Fetch.AttachmentLimit = updated.Fetch.AttachmentLimit
			cfg.Logging = updated.Logging
			mu.Unlock()
		})
		if v.ConfigFileUsed() != "" {
			v.WatchConfig()
		}
	})
	if loadErr != nil {
		return nil, loadErr
	}
	return Get(), nil
}

// Get returns the loaded configuration. Load must have been called.
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}
