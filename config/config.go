// jmcomic-crawler/config/config.go
package config

import (
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	BaseURL     string `mapstructure:"BASE"`
	AuthEnable  bool   `mapstructure:"AUTH_ENABLE"`
	AuthKey     string `mapstructure:"AUTH_KEY"`
	DataDir     string `mapstructure:"DATA_DIR"`
	StaticRoute string `mapstructure:"STATIC_ROUTE"`

	// Content source.
	SourceBase   string        `mapstructure:"SOURCE_BASE"`
	DefaultProxy string        `mapstructure:"DEFAULT_PROXY"`
	FetchTimeout time.Duration `mapstructure:"FETCH_TIMEOUT"`
	FetchWorkers int           `mapstructure:"FETCH_WORKERS"`
	MaxImageSize int64         `mapstructure:"MAX_IMAGE_SIZE"`

	// Scheduling.
	MaxConcurrency int           `mapstructure:"MAX_CONCURRENCY"`
	FollowerWait   time.Duration `mapstructure:"FOLLOWER_WAIT"`

	// Resource throttling, checked before a task starts heavy work.
	ThrottleCPU      float64 `mapstructure:"THROTTLE_CPU"`
	ThrottleFreeMem  int64   `mapstructure:"THROTTLE_FREEMEM"`
	ThrottleFreeDisk int64   `mapstructure:"THROTTLE_FREEDISK"`

	// Artifact filename rule: album_id | short_hash | random | date.
	NameRule          string `mapstructure:"NAME_RULE"`
	NameHashLength    int    `mapstructure:"NAME_HASH_LENGTH"`
	NameRandomLength  int    `mapstructure:"NAME_RANDOM_LENGTH"`
	NameRandomCharset string `mapstructure:"NAME_RANDOM_CHARSET"`
	NameDateFormat    string `mapstructure:"NAME_DATE_FORMAT"`

	// Generated password policy for encrypted artifacts.
	PasswordLength  int    `mapstructure:"PASSWORD_LENGTH"`
	PasswordCharset string `mapstructure:"PASSWORD_CHARSET"`

	// Derived from DATA_DIR.
	WorkDir      string
	ArtifactsDir string
}

const randomCharset = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789"

// stringToDurationHookFunc is a custom Viper hook for parsing Go's duration strings.
func stringToDurationHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		return time.ParseDuration(data.(string))
	}
}

// stringToByteSizeHookFunc is a custom Viper hook for parsing human-readable size strings.
func stringToByteSizeHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String || t.Kind() != reflect.Int64 {
			return data, nil
		}

		var size datasize.ByteSize
		err := size.UnmarshalText([]byte(data.(string)))
		if err != nil {
			// Not a valid size string, let other parsers handle it.
			return data, nil
		}

		return int64(size.Bytes()), nil
	}
}

func Load() (*Config, error) {
	vp := viper.New()

	// Set default values as strings, the hooks will handle them.
	vp.SetDefault("PORT", "8080")
	vp.SetDefault("BASE", "")
	vp.SetDefault("AUTH_ENABLE", false)
	vp.SetDefault("AUTH_KEY", "123456")
	vp.SetDefault("DATA_DIR", "./data")
	vp.SetDefault("STATIC_ROUTE", "/artifacts")
	vp.SetDefault("SOURCE_BASE", "https://comic.example.com/api")
	vp.SetDefault("DEFAULT_PROXY", "")
	vp.SetDefault("FETCH_TIMEOUT", "20m")
	vp.SetDefault("FETCH_WORKERS", 8)
	vp.SetDefault("MAX_IMAGE_SIZE", "20MB")
	vp.SetDefault("MAX_CONCURRENCY", 4)
	vp.SetDefault("FOLLOWER_WAIT", "15m")
	vp.SetDefault("THROTTLE_CPU", 90.0)
	vp.SetDefault("THROTTLE_FREEMEM", "100MB")
	vp.SetDefault("THROTTLE_FREEDISK", "200MB")
	vp.SetDefault("NAME_RULE", "short_hash")
	vp.SetDefault("NAME_HASH_LENGTH", 8)
	vp.SetDefault("NAME_RANDOM_LENGTH", 8)
	vp.SetDefault("NAME_RANDOM_CHARSET", randomCharset)
	vp.SetDefault("NAME_DATE_FORMAT", "20060102")
	vp.SetDefault("PASSWORD_LENGTH", 12)
	vp.SetDefault("PASSWORD_CHARSET", randomCharset+"@#-_")

	// Load from config file
	vp.SetConfigName("jmcrawler_config")
	vp.SetConfigType("yaml")
	vp.AddConfigPath(".")
	vp.AddConfigPath("/etc/jmcrawler/")

	if err := vp.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	// Load from environment variables
	vp.SetEnvPrefix("JMCRAWLER")
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	var cfg Config
	err := vp.Unmarshal(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			stringToDurationHookFunc(),
			stringToByteSizeHookFunc(),
		),
	))
	if err != nil {
		return nil, err
	}

	cfg.WorkDir = filepath.Join(cfg.DataDir, "work")
	cfg.ArtifactsDir = filepath.Join(cfg.DataDir, "artifacts")

	return &cfg, nil
}
