// Package supervisor implements C8: SIGHUP reloads configuration and
// re-runs reconciliation, SIGTERM exits immediately, SIGINT drains and
// exits, SIGPIPE is ignored (§4.7).
package supervisor

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/pgqd/pgqd/internal/config"
	"github.com/pgqd/pgqd/internal/fleet"
	"github.com/pgqd/pgqd/internal/pidfile"
)

// Supervisor wires the signal handler to the fleet, discovery, and
// config reload path, and owns pidfile cleanup.
type Supervisor struct {
	path    string
	cfg     *config.Config
	logger  *zap.Logger
	fleet   *fleet.Fleet
	cancel  context.CancelFunc
	restart func(cfg *config.Config)
}

// New builds a Supervisor. restart is invoked after every successful
// SIGHUP reload, with the fresh Config, so the caller can replace its
// Discovery goroutine — cancelling the previous one — before the next
// reconciliation pass (§4.6 scenario 5: switching from auto-discovery
// to an explicit database_list must tear down the template
// connection, not merely stop adding to it).
func New(path string, cfg *config.Config, logger *zap.Logger, f *fleet.Fleet, cancel context.CancelFunc, restart func(*config.Config)) *Supervisor {
	return &Supervisor{path: path, cfg: cfg, logger: logger, fleet: f, cancel: cancel, restart: restart}
}

// Run installs signal handlers and blocks until SIGTERM or SIGINT
// requests shutdown.
func (s *Supervisor) Run(ctx context.Context) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGINT, syscall.SIGPIPE)
	defer signal.Stop(sig)

	for {
		select {
		case <-ctx.Done():
			return

		case recv := <-sig:
			switch recv {
			case syscall.SIGPIPE:
				// ignored per §4.7

			case syscall.SIGHUP:
				s.reload()

			case syscall.SIGTERM:
				s.logger.Info("sigterm received, exiting immediately")
				pidfile.Remove(s.cfg.PidFile)
				os.Exit(0)

			case syscall.SIGINT:
				s.logger.Info("sigint received, draining")
				s.fleet.Shutdown()
				pidfile.Remove(s.cfg.PidFile)
				s.cancel()
				return
			}
		}
	}
}

func (s *Supervisor) reload() {
	next, err := config.Reload(s.path, s.cfg)
	if err != nil {
		s.logger.Warn("config reload failed, keeping previous configuration", zap.Error(err))
		return
	}
	s.logger.Info("configuration reloaded")
	s.cfg = next
	if s.restart != nil {
		s.restart(next)
	}
}
