// Command pgqd is the queue-maintenance ticker daemon: per managed
// database it drives a ticker, a maintenance worker, and a retry
// worker against the pgq extension, discovering databases dynamically
// (§1, §6).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/pgqd/pgqd/internal/config"
	"github.com/pgqd/pgqd/internal/discovery"
	"github.com/pgqd/pgqd/internal/fleet"
	"github.com/pgqd/pgqd/internal/httpserver"
	"github.com/pgqd/pgqd/internal/maint"
	"github.com/pgqd/pgqd/internal/metrics"
	"github.com/pgqd/pgqd/internal/pidfile"
	"github.com/pgqd/pgqd/internal/reactor"
	"github.com/pgqd/pgqd/internal/retry"
	"github.com/pgqd/pgqd/internal/stats"
	"github.com/pgqd/pgqd/internal/supervisor"
	"github.com/pgqd/pgqd/internal/telemetry"
	"github.com/pgqd/pgqd/internal/ticker"
)

// version is the daemon's reported build version, set via
// -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("pgqd", flag.ContinueOnError)
	daemonize := fs.Bool("d", false, "daemonize (accepted and ignored; pgqd stays in the foreground)")
	verbose := countFlag(fs, "v", "increase verbosity (repeatable)")
	quiet := fs.Bool("q", false, "quiet: only log errors")
	showVersion := fs.Bool("V", false, "print version and exit")
	printIni := fs.Bool("ini", false, "print a sample config file and exit")
	doStop := fs.Bool("s", false, "send SIGINT to the running daemon")
	doKill := fs.Bool("k", false, "send SIGTERM to the running daemon")
	doReload := fs.Bool("r", false, "send SIGHUP to the running daemon")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *showVersion {
		fmt.Println("pgqd", version)
		return 0
	}
	if *printIni {
		fmt.Print(config.Sample())
		return 0
	}

	rest := fs.Args()
	if len(rest) != 1 {
		fmt.Fprintln(os.Stderr, "usage: pgqd [switches] <config-file>")
		return 1
	}
	path := rest[0]

	if *doStop || *doKill || *doReload {
		return sendOneShot(path, *doStop, *doKill, *doReload)
	}

	_ = daemonize // daemonization is the process supervisor's concern (§1 out of scope)

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "pgqd: fatal:", err)
		return 1
	}

	logger, err := telemetry.New(telemetry.Options{
		Verbosity:   verbosity(*verbose, *quiet),
		Syslog:      cfg.Syslog,
		SyslogIdent: cfg.SyslogIdent,
		LogFile:     cfg.LogFile,
		Format:      cfg.LogFormat,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "pgqd: fatal:", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	if err := pidfile.Write(cfg.PidFile); err != nil {
		logger.Error("fatal", zap.Error(err))
		return 1
	}
	defer pidfile.Remove(cfg.PidFile)

	return serve(path, cfg, logger)
}

func serve(path string, cfg *config.Config, logger *zap.Logger) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	m := metrics.NewRegistry(reg)
	sink := stats.NewSink(m)

	if cfg.MetricsListen != "" {
		srv := httpserver.New(cfg.MetricsListen, reg, logger)
		srv.Start()
		logger.Info("metrics server listening", zap.String("addr", cfg.MetricsListen))
	}

	clock := reactor.NewClock()
	clockStop := make(chan struct{})
	reactor.Supervise(logger, "clock", func() { clock.Run(clockStop, cfg.TickerPeriod) })
	defer close(clockStop)

	emitter := stats.NewEmitter(sink, logger, cfg.StatsPeriod)
	emitStop := make(chan struct{})
	reactor.Supervise(logger, "stats", func() { emitter.Run(emitStop) })
	defer close(emitStop)

	f := fleet.New(fleet.Config{
		Ticker: ticker.Config{
			CheckPeriod:        cfg.CheckPeriod,
			TickerPeriod:       cfg.TickerPeriod,
			ConnectionLifetime: cfg.ConnectionLifetime,
		},
		Maint: maint.Config{MaintPeriod: cfg.MaintPeriod},
		Retry: retry.Config{RetryPeriod: cfg.RetryPeriod},
	}, cfg.ConnStr, logger, sink, clock)

	// startDiscovery (re)starts the discovery goroutine, cancelling
	// whatever one it previously started. It is called once at
	// startup and again as the supervisor's reload hook (§4.6
	// scenario 5), so switching database_list from empty to an
	// explicit list — or back — always tears down the prior template
	// connection instead of leaking it alongside a second poller.
	// The reconcile callback closes over the root ctx, not discCtx:
	// cancelling a stale discovery goroutine must never cancel the
	// per-database worker goroutines Reconcile has already launched.
	var discCancel context.CancelFunc
	startDiscovery := func(c *config.Config) {
		if discCancel != nil {
			discCancel()
		}
		discCtx, dCancel := context.WithCancel(ctx)
		discCancel = dCancel

		d := discovery.New(discovery.Config{
			CheckPeriod:     c.CheckPeriod,
			InitialDatabase: c.InitialDatabase,
			DatabaseList:    c.DatabaseList,
		}, c.ConnStr, logger, func(names []string) {
			f.Reconcile(ctx, names)
		})
		reactor.Supervise(logger, "discovery", func() { d.Run(discCtx) })
	}
	startDiscovery(cfg)

	sup := supervisor.New(path, cfg, logger, f, cancel, startDiscovery)
	logger.Info("pgqd started", zap.String("config", path))
	sup.Run(ctx)

	logger.Info("pgqd exiting")
	return 0
}

func sendOneShot(path string, stop, kill, reload bool) int {
	pidPath, err := loadPidPath(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "pgqd:", err)
		return 1
	}
	var sig syscall.Signal
	switch {
	case stop:
		sig = syscall.SIGINT
	case kill:
		sig = syscall.SIGTERM
	case reload:
		sig = syscall.SIGHUP
	}
	if err := pidfile.Signal(pidPath, sig); err != nil {
		fmt.Fprintln(os.Stderr, "pgqd:", err)
		return 1
	}
	return 0
}

func loadPidPath(configPath string) (string, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return "", err
	}
	if cfg.PidFile == "" {
		return "", fmt.Errorf("no pidfile configured in %s", configPath)
	}
	return cfg.PidFile, nil
}

func verbosity(v int, quiet bool) int {
	if quiet {
		return -1
	}
	return v
}

// countFlag implements -v as a repeatable counter the way the spec's
// "-v verbose (repeatable)" switch requires, which flag.Bool cannot
// express directly.
func countFlag(fs *flag.FlagSet, name, usage string) *int {
	n := new(int)
	fs.BoolFunc(name, usage, func(string) error {
		*n++
		return nil
	})
	return n
}
