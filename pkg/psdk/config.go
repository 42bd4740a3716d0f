package psdk

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/quatton/paydesk/pkg/kv"
	"github.com/spf13/viper"
)

type ArchiveConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"accessKey"`
	SecretKey string `mapstructure:"secretKey"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"useSSL"`
}

type Config struct {
	BaseURL         string         `mapstructure:"baseUrl"`
	SessionStore    string         `mapstructure:"sessionStore"`
	SessionFile     string         `mapstructure:"sessionFile"`
	Redis           kv.RedisConfig `mapstructure:"redis"`
	RefreshRotation bool           `mapstructure:"refreshRotation"`
	RefreshTimeout  time.Duration  `mapstructure:"refreshTimeout"`
	RequestTimeout  time.Duration  `mapstructure:"requestTimeout"`
	LogLevel        string         `mapstructure:"logLevel"`
	Archive         ArchiveConfig  `mapstructure:"archive"`

	v *viper.Viper // instance-specific viper
}

const (
	EnvPrefix  = "PAYDESK"
	ConfigName = "paydesk"
	ConfigRoot = ".paydesk"

	BaseUrlKey         = "baseUrl"
	SessionStoreKey    = "sessionStore"
	SessionFileKey     = "sessionFile"
	RefreshRotationKey = "refreshRotation"
	RefreshTimeoutKey  = "refreshTimeout"
	RequestTimeoutKey  = "requestTimeout"
	LogLevelKey        = "logLevel"
)

// Session store backends selectable with sessionStore.
const (
	StoreKeyring = "keyring"
	StoreFile    = "file"
	StoreMemory  = "memory"
	StoreRedis   = "redis"
)

// LoadConfig creates a new Config instance with its own viper
// This is the only way to load config (no global state)
func LoadConfig(cfgFile string) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only applies to keys viper already knows about.
	for _, k := range []string{"redis.addr", "redis.password", "redis.db",
		"archive.endpoint", "archive.bucket", "archive.accessKey", "archive.secretKey", "archive.region", "archive.useSSL"} {
		_ = v.BindEnv(k)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", cfgFile, err)
		}
	} else {
		// Project config (tracked)
		for _, name := range []string{ConfigName + ".yaml", ConfigName + ".yml", "." + ConfigName + ".yaml"} {
			if _, err := os.Stat(name); err == nil {
				v.SetConfigFile(name)
				if err := v.ReadInConfig(); err == nil {
					break
				}
			}
		}

		// Local overrides (untracked)
		localConfigPath := filepath.Join(ConfigRoot, "config.yaml")
		if _, err := os.Stat(localConfigPath); err == nil {
			v.SetConfigFile(localConfigPath)
			if err := v.MergeInConfig(); err != nil {
				return nil, fmt.Errorf("merging local config: %w", err)
			}
		}
	}

	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.v = v
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.SessionStore {
	case StoreKeyring, StoreFile, StoreMemory:
	case StoreRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("sessionStore %q requires redis.addr", StoreRedis)
		}
	default:
		return fmt.Errorf("unknown sessionStore %q (want keyring, file, memory or redis)", c.SessionStore)
	}
	return nil
}

// Get returns a value from the underlying viper instance
func (c *Config) Get(key string) interface{} {
	if c.v == nil {
		return nil
	}
	return c.v.Get(key)
}

// GetString returns a string value from the underlying viper instance
func (c *Config) GetString(key string) string {
	if c.v == nil {
		return ""
	}
	return c.v.GetString(key)
}

// Viper returns the underlying viper instance
func (c *Config) Viper() *viper.Viper {
	return c.v
}

func setDefaults(v *viper.Viper) {
	if !v.IsSet(BaseUrlKey) {
		v.SetDefault(BaseUrlKey, "http://localhost:8000")
	} else {
		normalized := strings.TrimRight(v.GetString(BaseUrlKey), "/")
		v.Set(BaseUrlKey, normalized)
	}

	v.SetDefault(SessionStoreKey, StoreKeyring)
	v.SetDefault(RefreshRotationKey, false)
	v.SetDefault(RefreshTimeoutKey, DefaultRefreshTimeout)
	v.SetDefault(RequestTimeoutKey, 60*time.Second)
	v.SetDefault(LogLevelKey, "info")
	v.SetDefault("archive.bucket", "paydesk-runs")
	v.SetDefault("archive.region", "us-east-1")
}

// ConfigFileUsed returns the config file that was used (if any)
func (c *Config) ConfigFileUsed() string {
	if c.v == nil {
		return ""
	}
	return c.v.ConfigFileUsed()
}
