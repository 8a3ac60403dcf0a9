// Package telemetry builds the process-wide *zap.Logger (§4.11):
// verbosity from the CLI's -v/-q flags, destination from the
// syslog/syslog_ident/logfile config keys, and encoding from
// log_format.
package telemetry

import (
	"fmt"
	"log/syslog"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls logger construction.
type Options struct {
	// Verbosity is the -v count, or -1 when -q is given: >0 lowers the
	// floor to debug, <0 raises it to error, 0 is info.
	Verbosity int
	Syslog    bool
	SyslogIdent string
	LogFile   string
	// Format selects the encoder: "console" or "json"; empty means
	// console.
	Format string
}

func (o Options) level() zapcore.Level {
	switch {
	case o.Verbosity > 0:
		return zapcore.DebugLevel
	case o.Verbosity < 0:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (o Options) encoder() zapcore.Encoder {
	cfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if o.Format == "json" {
		return zapcore.NewJSONEncoder(cfg)
	}
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

// New builds a logger per Options. syslog takes priority over logfile
// when both are set; neither set writes to stderr (matching the
// predecessor's default destination before daemonizing).
func New(o Options) (*zap.Logger, error) {
	level := o.level()
	var core zapcore.Core

	switch {
	case o.Syslog:
		ident := o.SyslogIdent
		if ident == "" {
			ident = "pgqd"
		}
		w, err := syslog.New(syslog.LOG_DAEMON|syslog.LOG_INFO, ident)
		if err != nil {
			return nil, fmt.Errorf("telemetry: opening syslog: %w", err)
		}
		core = zapcore.NewCore(o.encoder(), zapcore.AddSync(w), level)

	case o.LogFile != "":
		f, err := os.OpenFile(o.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("telemetry: opening logfile %s: %w", o.LogFile, err)
		}
		core = zapcore.NewCore(o.encoder(), zapcore.AddSync(f), level)

	default:
		core = zapcore.NewCore(o.encoder(), zapcore.Lock(os.Stderr), level)
	}

	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}
