// Package config loads the pgqd INI configuration file (§3, §4.10)
// with gopkg.in/ini.v1. A failed initial load is fatal to the caller;
// Reload on a broken file returns the error together with the previous
// Config unchanged, and the caller logs the warning (§7.4).
package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/ini.v1"
)

// Config holds every recognized option (§3) plus the ambient-stack
// additions of §6 (metrics_listen, log_format).
type Config struct {
	PidFile            string
	BaseConnStr        string
	InitialDatabase    string
	DatabaseList       []string
	CheckPeriod        time.Duration
	MaintPeriod        time.Duration
	RetryPeriod        time.Duration
	TickerPeriod       time.Duration
	StatsPeriod        time.Duration
	ConnectionLifetime time.Duration

	Syslog      bool
	SyslogIdent string
	LogFile     string

	// MetricsListen, when non-empty, serves /metrics and /healthz.
	MetricsListen string
	// LogFormat selects the zap encoder: "console" or "json".
	LogFormat string
}

// defaults mirrors the durations spec.md §3 documents.
func defaults() Config {
	return Config{
		InitialDatabase:    "template1",
		CheckPeriod:        60 * time.Second,
		MaintPeriod:        120 * time.Second,
		RetryPeriod:        30 * time.Second,
		TickerPeriod:       1 * time.Second,
		StatsPeriod:        30 * time.Second,
		ConnectionLifetime: 3600 * time.Second,
		SyslogIdent:        "pgqd",
		LogFormat:          "console",
	}
}

// section is the INI section pgqd reads its keys from, matching the
// skytools family's convention of a program-named section rather than
// DEFAULT.
const section = "pgqd"

// Load reads path and returns a validated Config. A missing or
// unreadable file, or an invalid period, is returned as an error —
// the caller (cmd/pgqd) treats a failed initial Load as fatal.
func Load(path string) (*Config, error) {
	cfg := defaults()

	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	sec := f.Section(section)
	apply(sec, &cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &cfg, nil
}

// Reload re-reads path. On any error it returns the error and prev
// unchanged, so the caller can log a warning and keep running on the
// previous configuration (§4.10, §7.4) instead of propagating it.
func Reload(path string, prev *Config) (*Config, error) {
	next, err := Load(path)
	if err != nil {
		return prev, err
	}
	return next, nil
}

func apply(sec *ini.Section, cfg *Config) {
	getStr(sec, "pidfile", &cfg.PidFile)
	getStr(sec, "base_connstr", &cfg.BaseConnStr)
	getStr(sec, "initial_database", &cfg.InitialDatabase)
	getStr(sec, "syslog_ident", &cfg.SyslogIdent)
	getStr(sec, "logfile", &cfg.LogFile)
	getStr(sec, "metrics_listen", &cfg.MetricsListen)
	getStr(sec, "log_format", &cfg.LogFormat)

	if k := sec.Key("database_list"); k.Value() != "" {
		cfg.DatabaseList = splitList(k.Value())
	}

	if k := sec.Key("syslog"); k.Value() != "" {
		cfg.Syslog = k.MustBool(false)
	}

	getSeconds(sec, "check_period", &cfg.CheckPeriod)
	getSeconds(sec, "maint_period", &cfg.MaintPeriod)
	getSeconds(sec, "retry_period", &cfg.RetryPeriod)
	getSeconds(sec, "ticker_period", &cfg.TickerPeriod)
	getSeconds(sec, "stats_period", &cfg.StatsPeriod)
	getSeconds(sec, "connection_lifetime", &cfg.ConnectionLifetime)
}

func getStr(sec *ini.Section, key string, dst *string) {
	if k := sec.Key(key); k.Value() != "" {
		*dst = k.Value()
	}
}

func getSeconds(sec *ini.Section, key string, dst *time.Duration) {
	k := sec.Key(key)
	if k.Value() == "" {
		return
	}
	n, err := k.Int()
	if err != nil {
		return
	}
	*dst = time.Duration(n) * time.Second
}

func splitList(v string) []string {
	fields := strings.FieldsFunc(v, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func validate(cfg *Config) error {
	if cfg.BaseConnStr == "" {
		return fmt.Errorf("base_connstr is required")
	}
	for name, d := range map[string]time.Duration{
		"check_period":        cfg.CheckPeriod,
		"maint_period":        cfg.MaintPeriod,
		"retry_period":        cfg.RetryPeriod,
		"ticker_period":       cfg.TickerPeriod,
		"stats_period":        cfg.StatsPeriod,
		"connection_lifetime": cfg.ConnectionLifetime,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	switch cfg.LogFormat {
	case "", "console", "json":
	default:
		return fmt.Errorf("log_format must be console or json, got %q", cfg.LogFormat)
	}
	return nil
}

// ConnStr composes the per-database connect string (§6): the base
// string with "dbname=<name> " appended, trailing space intentional.
func (c *Config) ConnStr(dbname string) string {
	return c.BaseConnStr + " dbname=" + dbname + " "
}

// Sample renders the INI file `--ini` prints, listing every recognized
// key: keys with a default show that default, pidfile and base_connstr
// (which have none) show example values.
func Sample() string {
	d := defaults()
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]\n", section)
	fmt.Fprintf(&b, "pidfile = /var/run/pgqd.pid\n")
	fmt.Fprintf(&b, "base_connstr = host=127.0.0.1\n")
	fmt.Fprintf(&b, "initial_database = %s\n", d.InitialDatabase)
	fmt.Fprintf(&b, "; database_list = db1, db2\n")
	fmt.Fprintf(&b, "check_period = %d\n", int(d.CheckPeriod.Seconds()))
	fmt.Fprintf(&b, "maint_period = %d\n", int(d.MaintPeriod.Seconds()))
	fmt.Fprintf(&b, "retry_period = %d\n", int(d.RetryPeriod.Seconds()))
	fmt.Fprintf(&b, "ticker_period = %d\n", int(d.TickerPeriod.Seconds()))
	fmt.Fprintf(&b, "stats_period = %d\n", int(d.StatsPeriod.Seconds()))
	fmt.Fprintf(&b, "connection_lifetime = %d\n", int(d.ConnectionLifetime.Seconds()))
	fmt.Fprintf(&b, "; syslog = 0\n")
	fmt.Fprintf(&b, "syslog_ident = %s\n", d.SyslogIdent)
	fmt.Fprintf(&b, "; logfile = /var/log/pgqd.log\n")
	fmt.Fprintf(&b, "; metrics_listen = 127.0.0.1:9187\n")
	fmt.Fprintf(&b, "log_format = %s\n", d.LogFormat)
	return b.String()
}
