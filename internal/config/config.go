package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Paths   PathsConfig   `mapstructure:"paths" validate:"required"`
	Run     RunConfig     `mapstructure:"run" validate:"required"`
	Fetch   FetchConfig   `mapstructure:"fetch" validate:"required"`
	State   StateConfig   `mapstructure:"state" validate:"required"`
	Cache   CacheConfig   `mapstructure:"cache" validate:"required"`
	Log     LogConfig     `mapstructure:"log" validate:"required"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Serve   ServeConfig   `mapstructure:"serve" validate:"required"`
}

// PathsConfig locates the run's input and output files.
type PathsConfig struct {
	Sources   string `mapstructure:"sources" validate:"required"`
	Whitelist string `mapstructure:"whitelist"`
	PSL       string `mapstructure:"psl" validate:"required"`
	// PSLURL is where a missing or outdated PSL snapshot is downloaded
	// from. Empty disables the download.
	PSLURL    string        `mapstructure:"psl_url" validate:"omitempty,url"`
	PSLMaxAge time.Duration `mapstructure:"psl_max_age" validate:"gte=0"`
	OutputDir string        `mapstructure:"output_dir" validate:"required"`
	// Readme is the file whose statistics blocks are rewritten after a
	// compilation. Empty disables the update.
	Readme         string `mapstructure:"readme"`
	GeneralFile    string `mapstructure:"general_file" validate:"required"`
	RestrictedFile string `mapstructure:"restricted_file" validate:"required"`
	StatsFile      string `mapstructure:"stats_file" validate:"required"`
}

// RunConfig tunes the aggregation pipeline.
type RunConfig struct {
	Workers        int    `mapstructure:"workers" validate:"gt=0,lte=256"`
	SpillThreshold int    `mapstructure:"spill_threshold" validate:"gt=0"`
	TempDir        string `mapstructure:"temp_dir"`
	SampleLines    int    `mapstructure:"sample_lines" validate:"gt=0"`
}

// FetchConfig controls how sources are downloaded.
type FetchConfig struct {
	Workers           int           `mapstructure:"workers" validate:"gt=0,lte=64"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"gt=0"`
	Retries           int           `mapstructure:"retries" validate:"gte=0,lte=10"`
	InitialBackoff    time.Duration `mapstructure:"initial_backoff" validate:"gt=0"`
	MaxBackoff        time.Duration `mapstructure:"max_backoff" validate:"gtefield=InitialBackoff"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gte=0"`
	Burst             int           `mapstructure:"burst" validate:"gte=1"`
	UserAgent         string        `mapstructure:"user_agent" validate:"required"`
	MaxBytes          int64         `mapstructure:"max_bytes" validate:"gt=0"`
}

// StateConfig selects the compilation state database.
type StateConfig struct {
	Driver        string        `mapstructure:"driver" validate:"required,oneof=sqlite pgx"`
	DSN           string        `mapstructure:"dsn" validate:"required"`
	StaleDays     int           `mapstructure:"stale_days" validate:"gt=0"`
	ForceInterval time.Duration `mapstructure:"force_interval" validate:"gt=0"`
}

// CacheConfig locates the fetched-content cache.
type CacheConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// MetricsConfig controls the Prometheus textfile export. Empty Textfile
// disables the export.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// ServeConfig contains the HTTP server settings for the serve command.
type ServeConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required,hostname_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	// CompileInterval reruns the compile flow while serving. Zero
	// disables it.
	CompileInterval time.Duration `mapstructure:"compile_interval" validate:"gte=0"`
}
