// Copyright 2026 The Matrixbot Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"golang.org/x/time/rate"

	"github.com/archlinuxcn/matrixbot/bot"
	"github.com/archlinuxcn/matrixbot/control"
	"github.com/archlinuxcn/matrixbot/lib/config"
	"github.com/archlinuxcn/matrixbot/lib/logging"
	"github.com/archlinuxcn/matrixbot/lib/process"
	"github.com/archlinuxcn/matrixbot/lib/version"
	"github.com/archlinuxcn/matrixbot/messaging"
)

// logLevelEnvironmentVariable overrides log_level; --log-level wins
// over both.
const logLevelEnvironmentVariable = "MATRIXBOT_LOG_LEVEL"

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

// options are the command-line flags.
type options struct {
	configPath    string
	envFile       string
	login         bool
	loginFile     string
	socket        string
	logLevel      string
	metricsListen string
	showVersion   bool
}

func parseFlags(args []string) (*options, *pflag.FlagSet, error) {
	var opts options
	flagSet := pflag.NewFlagSet("matrixbot", pflag.ContinueOnError)
	flagSet.StringVar(&opts.configPath, "config", "", "path to YAML config file (default: $"+config.EnvironmentVariable+")")
	flagSet.StringVar(&opts.envFile, "env-file", ".env", "environment file loaded before the config, if it exists")
	flagSet.BoolVar(&opts.login, "login", false, "log in interactively and write the login file before starting")
	flagSet.StringVar(&opts.loginFile, "logininfo", "", "login info file (overrides login_file)")
	flagSet.StringVar(&opts.socket, "ipc-socket", "", "control socket path, '@name' for the abstract namespace (overrides control.socket)")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (overrides log_level)")
	flagSet.StringVar(&opts.metricsListen, "metrics-listen", "", "address for the Prometheus /metrics endpoint (overrides metrics.listen)")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(args); err != nil {
		return nil, nil, err
	}
	return &opts, flagSet, nil
}

// loadConfig reads the configuration and applies flag overrides.
func loadConfig(opts *options, flagSet *pflag.FlagSet) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if opts.configPath != "" {
		cfg, err = config.LoadFile(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if level := os.Getenv(logLevelEnvironmentVariable); level != "" {
		cfg.LogLevel = level
	}
	if flagSet.Changed("logininfo") {
		cfg.LoginFile = opts.loginFile
	}
	if flagSet.Changed("ipc-socket") {
		cfg.Control.Socket = opts.socket
	}
	if flagSet.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if flagSet.Changed("metrics-listen") {
		cfg.Metrics.Listen = opts.metricsListen
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run() error {
	opts, flagSet, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if opts.showVersion {
		fmt.Printf("matrixbot %s\n", version.Full())
		return nil
	}

	if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", opts.envFile, err)
	}

	cfg, err := loadConfig(opts, flagSet)
	if err != nil {
		return err
	}

	logger, err := logging.NewStderr(cfg.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	logger.Info("starting matrixbot", "version", version.Info())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session, err := openSession(ctx, opts.login, cfg.LoginFile, logger)
	if err != nil {
		return err
	}
	defer session.Close()

	matrixBot, err := bot.New(bot.Config{
		Session:     session,
		SyncTimeout: cfg.Sync.Timeout,
		MaxBackoff:  cfg.Sync.MaxBackoff,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	if err := matrixBot.Start(ctx); err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := control.NewMetrics(registry)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	// Each component reports its exit here. The first error cancels the
	// rest; a clean exit of one does not.
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	var wg sync.WaitGroup
	start := func(name string, component func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := component(ctx); err != nil {
				cancel(fmt.Errorf("%s: %w", name, err))
			}
		}()
	}

	server, metricsListener, err := openListeners(cfg, matrixBot, metrics, logger)
	if err != nil {
		return err
	}
	if server != nil {
		start("control server", server.Serve)
	} else {
		logger.Info("no control socket configured")
	}
	if metricsListener != nil {
		start("metrics", func(ctx context.Context) error {
			return serveMetrics(ctx, metricsListener, registry, logger)
		})
	}

	start("sync", matrixBot.Run)

	wg.Wait()
	if err := context.Cause(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutting down")
	return nil
}

// openSession restores the stored session or, with login set, runs an
// interactive login that replaces the login file.
func openSession(ctx context.Context, login bool, loginFile string, logger *slog.Logger) (*messaging.DirectSession, error) {
	if login {
		return bot.InteractiveLogin(ctx, bot.LoginPrompt{Input: os.Stdin, Output: os.Stderr}, loginFile, bot.LoginOptions{Logger: logger})
	}
	info, err := bot.LoadLoginInfo(loginFile)
	if err != nil {
		return nil, fmt.Errorf("%w (run with --login to create it)", err)
	}
	logger.Info("restoring session", "user_id", info.UserID, "device_id", info.DeviceID, "homeserver", info.Homeserver)
	return info.Open(nil, logger)
}

// openListeners binds every configured socket before any component
// starts, so a bind failure leaves nothing running or bound. Either
// result is nil when its address is not configured.
func openListeners(cfg *config.Config, session control.Session, metrics *control.Metrics, logger *slog.Logger) (*control.Server, net.Listener, error) {
	var metricsListener net.Listener
	if cfg.Metrics.Listen != "" {
		listener, err := net.Listen("tcp", cfg.Metrics.Listen)
		if err != nil {
			return nil, nil, fmt.Errorf("metrics listener: %w", err)
		}
		metricsListener = listener
	}

	if cfg.Control.Socket == "" {
		return nil, metricsListener, nil
	}
	server, err := newControlServer(cfg, session, metrics, logger)
	if err != nil {
		if metricsListener != nil {
			metricsListener.Close()
		}
		return nil, nil, err
	}
	return server, metricsListener, nil
}

func newControlServer(cfg *config.Config, session control.Session, metrics *control.Metrics, logger *slog.Logger) (*control.Server, error) {
	purge := control.PurgeConfig{
		PageSize: cfg.Control.HistoryPageSize,
		Reason:   cfg.Control.RedactionReason,
	}
	if cfg.Control.RedactionsPerSecond > 0 {
		purge.Limiter = rate.NewLimiter(rate.Limit(cfg.Control.RedactionsPerSecond), cfg.Control.RedactionBurst)
	}

	dispatcher, err := control.NewDispatcher(control.DispatcherConfig{
		Session: session,
		Purge:   purge,
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		return nil, err
	}

	listener, err := control.Listen(cfg.Control.Socket)
	if err != nil {
		return nil, err
	}
	server, err := control.NewServer(control.ServerConfig{
		Listener:     listener,
		Dispatcher:   dispatcher,
		MaxFrameSize: cfg.Control.MaxFrameSize,
		Logger:       logger,
		Metrics:      metrics,
	})
	if err != nil {
		listener.Close()
		return nil, err
	}
	return server, nil
}

func serveMetrics(ctx context.Context, listener net.Listener, registry *prometheus.Registry, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics endpoint listening", "address", listener.Addr().String())
	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
