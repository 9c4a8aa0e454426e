package clicommand

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli"
	"golang.org/x/crypto/ssh"

	"github.com/rchlabs/rch/classifier"
	"github.com/rchlabs/rch/internal/config"
	"github.com/rchlabs/rch/internal/osutil"
	"github.com/rchlabs/rch/internal/socket"
	"github.com/rchlabs/rch/lockfile"
	"github.com/rchlabs/rch/logger"
	"github.com/rchlabs/rch/metrics"
	"github.com/rchlabs/rch/proctitle"
	"github.com/rchlabs/rch/scheduler"
	"github.com/rchlabs/rch/signalwatcher"
	"github.com/rchlabs/rch/transfer"
	"github.com/rchlabs/rch/transfer/transport"
	"github.com/rchlabs/rch/worker"
)

const daemonStartDescription = `Usage:

    rchd start [options...]

Description:

Starts the rch daemon: loads the configured worker set, brings up the
classifier and scheduler, and serves the local IPC API over a Unix domain
socket for "rch" clients to connect to.`

var DaemonStartCommand = cli.Command{
	Name:        "start",
	Usage:       "Starts the rch daemon",
	Description: daemonStartDescription,
	Flags:       config.Flags(config.Default()),
	Action: func(c *cli.Context) error {
		cfg := config.Default()
		warnings, _, err := config.Load(c, &cfg)
		if err != nil {
			return NewExitError(78, err)
		}

		l := newLoggerFromConfig(cfg)
		for _, w := range warnings {
			l.Warn("%s", w)
		}

		lockPath, err := osutil.NormalizeFilePath(cfg.LockFilePath)
		if err != nil {
			return NewExitError(78, fmt.Errorf("normalizing lock file path: %w", err))
		}
		lock, err := lockfile.New(lockPath)
		if err != nil {
			return NewExitError(104, fmt.Errorf("creating daemon lock: %w", err))
		}
		if err := lock.TryLock(); err != nil {
			return NewExitError(104, fmt.Errorf("another rchd is already running: %w", err))
		}
		defer func() { _ = lock.Unlock() }()

		workers, err := config.LoadWorkers(cfg.WorkersPath)
		if err != nil {
			return NewExitError(78, err)
		}
		if len(workers) == 0 {
			l.Warn("no workers configured at %s; every build will be admission-denied", cfg.WorkersPath)
		}

		mreg := metrics.New(prometheus.DefaultRegisterer)

		cl, err := classifier.New(cfg.ClassifierConfig())
		if err != nil {
			return NewExitError(1, fmt.Errorf("building classifier: %w", err))
		}

		registry := worker.NewRegistry(workers, cfg.BreakerConfig(), mreg)

		var tport transport.Transport
		if cfg.MockSSH {
			tport = transport.NewMock(1)
			l.Warn("mock_ssh is enabled; no real worker connections will be made")
		} else {
			signer, err := loadSigner(cfg.SSHKeyPath)
			if err != nil {
				return NewExitError(78, fmt.Errorf("loading SSH signing key: %w", err))
			}
			tport = &transport.SSH{Signer: signer, Timeout: time.Duration(cfg.WorkerTimeoutSec) * time.Second}
		}

		session := transfer.NewSession(tport, registry, cfg.TransferConfig())
		prober := &transfer.Prober{Transport: tport}
		healthLoop := worker.NewHealthLoop(registry, prober, cfg.HealthLoopConfig())

		sched := scheduler.New(cfg.SchedulerConfig(), cl, registry, session, mreg)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		healthLoop.Run(ctx)

		token, err := resolveToken(cfg)
		if err != nil {
			return NewExitError(78, err)
		}

		api := scheduler.NewAPI(sched, token, func(f string, v ...any) { l.Info(f, v...) })

		if !socket.Available() {
			return NewExitError(1, fmt.Errorf("this host cannot serve a Unix domain socket; rchd requires Windows build 17063 or later, or any other supported OS"))
		}

		socketPath, err := osutil.NormalizeFilePath(cfg.SocketPath)
		if err != nil {
			return NewExitError(78, fmt.Errorf("normalizing socket path: %w", err))
		}
		_ = os.Remove(socketPath)
		srv, err := socket.NewServer(socketPath, api.Router())
		if err != nil {
			return NewExitError(1, fmt.Errorf("creating IPC server: %w", err))
		}
		if err := srv.Start(); err != nil {
			return NewExitError(1, fmt.Errorf("starting IPC server: %w", err))
		}
		proctitle.Replace(fmt.Sprintf("rchd: listening on %s", socketPath))
		l.Notice("rchd listening on %s", socketPath)

		shutdown := make(chan signalwatcher.Signal, 1)
		signalwatcher.Watch(func(sig signalwatcher.Signal) {
			if sig == signalwatcher.HUP {
				l.Notice("received SIGHUP; worker set and config are only re-read on restart")
				return
			}
			shutdown <- sig
		})
		sig := <-shutdown

		l.Notice("shutting down on signal %s", sig)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func loadSigner(path string) (ssh.Signer, error) {
	normalized, err := osutil.NormalizeFilePath(path)
	if err != nil {
		return nil, fmt.Errorf("normalizing ssh key path: %w", err)
	}
	keyBytes, err := os.ReadFile(normalized)
	if err != nil {
		return nil, fmt.Errorf("reading ssh key %q: %w", normalized, err)
	}
	signer, err := ssh.ParsePrivateKey(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("parsing ssh key %q: %w", normalized, err)
	}
	return signer, nil
}

func resolveToken(cfg config.Config) (string, error) {
	if cfg.Token != "" {
		return cfg.Token, nil
	}
	if cfg.TokenPath == "" {
		return "", nil
	}
	path, err := osutil.NormalizeFilePath(cfg.TokenPath)
	if err != nil {
		return "", fmt.Errorf("normalizing token path: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("reading token file %q: %w", path, err)
	}
	return trimNewline(string(data)), nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func newLoggerFromConfig(cfg config.Config) logger.Logger {
	var l logger.Logger
	switch cfg.LogFormat {
	case "json":
		l = logger.NewConsoleLogger(logger.NewJSONPrinter(os.Stdout), os.Exit)
	default:
		printer := logger.NewTextPrinter(os.Stderr)
		printer.Colors = !cfg.NoColor
		l = logger.NewConsoleLogger(printer, os.Exit)
	}
	l.SetLevel(logger.NOTICE)
	if cfg.Debug {
		l.SetLevel(logger.DEBUG)
	}
	return l
}
