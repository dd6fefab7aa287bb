// Command axbroker runs the MQTT 3.1.1 broker: it parses configuration
// from flags (with a handful of environment fallbacks for secrets),
// builds the broker core, and serves TCP clients until interrupted.
//
// Exit codes: 0 on normal shutdown, 1 on bind/listen failure, 2 on a
// configuration error.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/axmq/axbroker/broker"
	"github.com/axmq/axbroker/config"
	"github.com/axmq/axbroker/hook"
	"github.com/axmq/axbroker/network"
	"github.com/axmq/axbroker/pkg/logger"
	"github.com/axmq/axbroker/qos"
	"github.com/axmq/axbroker/session"
)

const (
	exitOK     = 0
	exitListen = 1
	exitConfig = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := loadConfig(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "axbroker:", err)
		return exitConfig
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	log := logger.NewSlogLogger(level, os.Stderr)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:     cfg.SentryDSN,
			Release: "axbroker@" + broker.Version,
		}); err != nil {
			log.Warn("sentry disabled", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	if err := serve(cfg, log); err != nil {
		sentry.CaptureException(err)
		log.Error("broker exited", "error", err)
		return exitListen
	}
	return exitOK
}

// loadConfig builds a validated Config from flags. The sentry DSN
// arrives via AXBROKER_SENTRY_DSN so it stays out of process listings.
func loadConfig(args []string) (*config.Config, error) {
	cfg := config.Default()

	fs := flag.NewFlagSet("axbroker", flag.ContinueOnError)
	fs.StringVar(&cfg.Host, "host", cfg.Host, "bind address")
	port := fs.Uint("port", uint(cfg.Port), "bind port")
	maxPacket := fs.Uint("max-packet-bytes", uint(cfg.MaxPacketBytes), "reject packets whose remaining length exceeds this")
	retransmitMs := fs.Int("retransmit-interval-ms", int(cfg.RetransmitInterval/time.Millisecond), "inflight retransmit period")
	fs.Float64Var(&cfg.KeepAliveGrace, "keep-alive-grace", cfg.KeepAliveGrace, "multiplier on client-reported keep-alive")
	statsS := fs.Int("stats-interval-s", int(cfg.StatsInterval/time.Second), "publication cadence on $SYS/broker topics, 0 disables")
	fs.BoolVar(&cfg.AllowAnonymous, "allow-anonymous", cfg.AllowAnonymous, "accept CONNECTs with no username/password")
	maxInflight := fs.Uint("max-inflight", uint(cfg.MaxInflight), "per-client cap on unacknowledged QoS>0 deliveries, 0 for default")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "prometheus /metrics listen address, empty disables")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "debug logging")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.Port = uint16(*port)
	cfg.MaxPacketBytes = uint32(*maxPacket)
	cfg.RetransmitInterval = time.Duration(*retransmitMs) * time.Millisecond
	cfg.StatsInterval = time.Duration(*statsS) * time.Second
	cfg.MaxInflight = uint16(*maxInflight)
	cfg.SentryDSN = os.Getenv("AXBROKER_SENTRY_DSN")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func serve(cfg *config.Config, log *logger.SlogLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hooks := hook.NewManager()
	if err := hooks.Add(hook.NewAnonymousAuthHook(cfg.AllowAnonymous)); err != nil {
		return errors.Wrap(err, "hooks")
	}

	qosCfg := qos.DefaultConfig()
	qosCfg.RetryInterval = cfg.RetransmitInterval

	b := broker.NewBroker(broker.Config{
		SessionStore:   session.NewMemoryStore(),
		QoSConfig:      qosCfg,
		Hooks:          hooks,
		AllowAnonymous: cfg.AllowAnonymous,
		MaxInflight:    cfg.MaxInflight,
	})
	defer b.Close()

	pool, err := network.NewPool(network.DefaultPoolConfig())
	if err != nil {
		return errors.Wrap(err, "connection pool")
	}
	defer pool.Close()

	listener, err := network.NewListener(network.DefaultListenerConfig(cfg.Addr()), pool)
	if err != nil {
		return errors.Wrap(err, "listener")
	}

	serveOpts := &network.ServeOptions{
		MaxPacketBytes: cfg.MaxPacketBytes,
		KeepAliveGrace: cfg.KeepAliveGrace,
	}

	listener.OnConnection(func(conn *network.Connection) error {
		defer func() {
			if r := recover(); r != nil {
				sentry.CurrentHub().Recover(r)
				log.Error("handler panic", "conn_id", conn.ID(), "panic", r)
			}
			pool.Remove(conn.ID())
			_ = conn.Close()
		}()

		if err := network.Serve(ctx, conn, b, serveOpts); err != nil {
			log.Debug("connection closed", "conn_id", conn.ID(), "error", err)
		}
		return nil
	})

	if err := listener.Start(); err != nil {
		return errors.Wrapf(err, "listen on %s", cfg.Addr())
	}
	defer listener.Close()

	hooks.OnStarted()
	log.Info("broker listening", "addr", cfg.Addr())

	g, gctx := errgroup.WithContext(ctx)

	if cfg.StatsInterval > 0 {
		g.Go(func() error {
			err := b.RunSysPublisher(gctx, cfg.StatsInterval)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		if err := b.RegisterMetrics(reg); err != nil {
			return errors.Wrap(err, "metrics")
		}

		srv := &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		}
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "metrics endpoint")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		gs := network.NewGracefulShutdown(pool, network.NewDisconnectManager(0), 10*time.Second)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return gs.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	hooks.OnStopped(err)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
