package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/BryanFRD/admin-api/internal/bus"
	"github.com/BryanFRD/admin-api/internal/config"
	"github.com/BryanFRD/admin-api/internal/dispatch"
	"github.com/BryanFRD/admin-api/internal/logging"
	"github.com/BryanFRD/admin-api/internal/mock"
	"github.com/BryanFRD/admin-api/internal/runtime"
	"github.com/BryanFRD/admin-api/internal/runtime/docker"
	"github.com/BryanFRD/admin-api/internal/runtime/libvirt"
	"github.com/BryanFRD/admin-api/internal/session"
	"github.com/BryanFRD/admin-api/internal/sysinfo"
	"github.com/BryanFRD/admin-api/internal/upstream"
	"github.com/BryanFRD/admin-api/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file (.yaml or .toml)")
	host := flag.String("host", "", "Override listen host")
	port := flag.Int("port", 0, "Override server port")
	driver := flag.String("driver", "", "Runtime driver: docker, libvirt or mock")
	mockMode := flag.Bool("mock", false, "Use the in-memory demo runtime (same as --driver=mock)")
	logLevel := flag.String("log-level", "", "Override log level")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if *driver != "" {
		cfg.Runtime.Driver = *driver
	}
	if *mockMode {
		cfg.Runtime.Driver = config.DriverMock
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New("admin-api", cfg.Log, os.Stderr)
	for _, change := range config.Diff(config.Default(), cfg) {
		logger.Debug().Str("setting", change).Msg("config override")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
	logger.Info().Msg("shut down")
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	rt, err := openRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	b := bus.New(cfg.Bus.Capacity)
	defer b.Close()

	src := upstream.New(rt, b, upstream.Options{
		RetryInterval: cfg.Upstream.RetryInterval,
		MaxInterval:   cfg.Upstream.RetryMaxInterval,
		Multiplier:    cfg.Upstream.RetryMultiplier,
		Jitter:        cfg.Upstream.RetryJitter,
	}, logger)

	dispatcher := dispatch.New(rt, sysinfo.Host{}, dispatch.Options{
		ErrorReplies:   cfg.Protocol.ErrorReplies,
		CommandTimeout: cfg.Runtime.CommandTimeout,
	}, logger)

	deps := ws.Deps{
		Bus:        b,
		Dispatcher: dispatcher,
		Runtime:    rt,
		Store:      session.NewStore(cfg.Server.MaxConnections),
		Upstream:   src,
	}
	// Collectors always record; the config only decides whether they are served.
	if cfg.Metrics.Enabled {
		deps.MetricsPath = cfg.Metrics.Path
	}
	server := ws.NewServer(cfg.Server, deps, logger)

	logger.Info().
		Str("driver", cfg.Runtime.Driver).
		Str("addr", cfg.Addr()).
		Int("bus_capacity", b.Capacity()).
		Bool("error_replies", cfg.Protocol.ErrorReplies).
		Msg("starting relay")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return src.Run(gctx) })
	g.Go(func() error {
		err := server.ListenAndServe(gctx, cfg.Addr())
		// Wake every session still waiting on the bus.
		b.Close()
		return err
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func openRuntime(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (runtime.Client, error) {
	switch cfg.Runtime.Driver {
	case config.DriverLibvirt:
		return libvirt.New(cfg.Runtime.LibvirtURI, logger)
	case config.DriverMock:
		logger.Info().Dur("interval", cfg.Runtime.MockInterval).Msg("using demo runtime")
		rt := mock.New(mock.DemoContainers(time.Now())...)
		mock.NewGenerator(rt, cfg.Runtime.MockInterval).Start(ctx)
		return rt, nil
	default:
		return docker.New(docker.Options{Host: cfg.Runtime.DockerHost}, logger)
	}
}
