package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// ErrConfigValidation wraps every validation failure.
var ErrConfigValidation = errors.New("config validation failed")

const envPrefix = "UWFMON_"

// Duration is a time.Duration read from strings such as "90s" or "2m".
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

type Config struct {
	// Host is the default target; empty means the local machine.
	Host string `toml:"host"`

	Log      LogConfig      `toml:"log"`
	Query    QueryConfig    `toml:"query"`
	Exporter ExporterConfig `toml:"exporter"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type QueryConfig struct {
	SessionTimeout   Duration `toml:"session_timeout"`
	OperationTimeout Duration `toml:"operation_timeout"`
	Workers          int      `toml:"workers"`
}

type ExporterConfig struct {
	Listen   string   `toml:"listen"`
	Interval Duration `toml:"interval"`
	// Hosts are polled by the exporter; empty polls Host.
	Hosts []string `toml:"hosts"`
}

func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Query: QueryConfig{
			SessionTimeout:   Duration(2 * time.Minute),
			OperationTimeout: Duration(time.Minute),
			Workers:          8,
		},
		Exporter: ExporterConfig{
			Listen:   ":9817",
			Interval: Duration(60 * time.Second),
		},
	}
}

// Load reads path over the defaults, applies UWFMON_* overrides and validates
// the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = v
		}
	}
	dur := func(name string, dst *Duration) error {
		v, ok := lookup(envPrefix + name)
		if !ok {
			return nil
		}
		if err := dst.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, name, err)
		}
		return nil
	}

	str("HOST", &c.Host)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("LISTEN", &c.Exporter.Listen)

	if err := dur("SESSION_TIMEOUT", &c.Query.SessionTimeout); err != nil {
		return err
	}
	if err := dur("OPERATION_TIMEOUT", &c.Query.OperationTimeout); err != nil {
		return err
	}
	if err := dur("INTERVAL", &c.Exporter.Interval); err != nil {
		return err
	}

	if v, ok := lookup(envPrefix + "WORKERS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sWORKERS: %w", envPrefix, err)
		}
		c.Query.Workers = n
	}
	if v, ok := lookup(envPrefix + "HOSTS"); ok {
		c.Exporter.Hosts = splitList(v)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, f := range strings.Split(v, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func (c *Config) Validate() error {
	var errs []error
	if c.Query.SessionTimeout <= 0 {
		errs = append(errs, fmt.Errorf("query.session_timeout must be positive, got %s", c.Query.SessionTimeout.Std()))
	}
	if c.Query.OperationTimeout <= 0 {
		errs = append(errs, fmt.Errorf("query.operation_timeout must be positive, got %s", c.Query.OperationTimeout.Std()))
	}
	if c.Query.Workers <= 0 {
		errs = append(errs, fmt.Errorf("query.workers must be positive, got %d", c.Query.Workers))
	}
	if c.Exporter.Interval <= 0 {
		errs = append(errs, fmt.Errorf("exporter.interval must be positive, got %s", c.Exporter.Interval.Std()))
	}
	if c.Exporter.Listen == "" {
		errs = append(errs, errors.New("exporter.listen must not be empty"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrConfigValidation, errors.Join(errs...))
	}
	return nil
}

// ExporterHosts returns the hosts the exporter polls.
func (c *Config) ExporterHosts() []string {
	if len(c.Exporter.Hosts) > 0 {
		return c.Exporter.Hosts
	}
	return []string{c.Host}
}
