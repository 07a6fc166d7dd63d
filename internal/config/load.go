package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by Load,
// e.g. YAHA_LOG_LEVEL for log.level.
const EnvPrefix = "YAHA"

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"sources":    "paths.sources",
	"whitelist":  "paths.whitelist",
	"psl":        "paths.psl",
	"output-dir": "paths.output_dir",
	"readme":     "paths.readme",
	"workers":    "run.workers",
	"temp-dir":   "run.temp_dir",
	"state-dsn":  "state.dsn",
	"log-level":  "log.level",
	"addr":       "serve.addr",

	"compile-interval": "serve.compile_interval",
}

// RegisterFlags adds the flags understood by Load to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a config file (default ./yaha.yaml if present)")
	fs.String("sources", "", "source list JSON file")
	fs.String("whitelist", "", "whitelist file")
	fs.String("psl", "", "public suffix list file")
	fs.String("output-dir", "", "directory for compiled hosts files")
	fs.String("readme", "", "README to update with statistics")
	fs.Int("workers", 0, "parse and normalize workers")
	fs.String("temp-dir", "", "directory for sort spill files")
	fs.String("state-dsn", "", "state database DSN")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.String("addr", "", "listen address for serve")
	fs.Duration("compile-interval", 0, "recompile on this interval while serving (0 disables)")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("paths.sources", "blocklists.json")
	v.SetDefault("paths.whitelist", "whitelist.txt")
	v.SetDefault("paths.psl", "public_suffix_list.dat")
	v.SetDefault("paths.psl_url", "https://publicsuffix.org/list/public_suffix_list.dat")
	v.SetDefault("paths.psl_max_age", 30*24*time.Hour)
	v.SetDefault("paths.output_dir", ".")
	v.SetDefault("paths.readme", "")
	v.SetDefault("paths.general_file", "hosts")
	v.SetDefault("paths.restricted_file", "hosts_restricted")
	v.SetDefault("paths.stats_file", "stats.json")

	v.SetDefault("run.workers", 4)
	v.SetDefault("run.spill_threshold", 1_000_000)
	v.SetDefault("run.temp_dir", "")
	v.SetDefault("run.sample_lines", 200)

	v.SetDefault("fetch.workers", 5)
	v.SetDefault("fetch.timeout", 60*time.Second)
	v.SetDefault("fetch.retries", 3)
	v.SetDefault("fetch.initial_backoff", 2*time.Second)
	v.SetDefault("fetch.max_backoff", 30*time.Second)
	v.SetDefault("fetch.requests_per_second", 5.0)
	v.SetDefault("fetch.burst", 5)
	v.SetDefault("fetch.user_agent", "yaha/1.0 (+https://github.com/phrazzld/yaha)")
	v.SetDefault("fetch.max_bytes", int64(256<<20))

	v.SetDefault("state.driver", "sqlite")
	v.SetDefault("state.dsn", "file:.yaha/state.db")
	v.SetDefault("state.stale_days", 180)
	v.SetDefault("state.force_interval", 168*time.Hour)

	v.SetDefault("cache.path", ".yaha/cache.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("metrics.textfile", "")

	v.SetDefault("serve.addr", "localhost:8080")
	v.SetDefault("serve.shutdown_timeout", 10*time.Second)
	v.SetDefault("serve.compile_interval", time.Duration(0))
}

// Load configuration from defaults, an optional config file, environment
// variables and flags, in increasing order of precedence. flags may be nil.
// Returns a populated Config struct or an error if loading/validation fails.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	var explicitFile string
	if flags != nil {
		if f := flags.Lookup("config"); f != nil {
			explicitFile = f.Value.String()
		}
	}
	if explicitFile != "" {
		v.SetConfigFile(explicitFile)
	} else {
		v.SetConfigName("yaha")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicitFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("binding flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
