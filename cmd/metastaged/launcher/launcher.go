package launcher

import (
	"context"
	"fmt"
	"io"
	"net"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/metastage/metastage"
	"github.com/metastage/metastage/application"
	"github.com/metastage/metastage/changelog"
	"github.com/metastage/metastage/environment"
	"github.com/metastage/metastage/kit/cli"
	"github.com/metastage/metastage/kit/tracing"
	kithttp "github.com/metastage/metastage/kit/transport/http"
	metalogger "github.com/metastage/metastage/logger"
	"github.com/metastage/metastage/messaging"
	"github.com/metastage/metastage/metastore"
	"github.com/metastage/metastage/staging"
	"github.com/metastage/metastage/subscription"
	"github.com/metastage/metastage/topic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// KafkaBroker keeps the metadata in the Kafka cluster of each environment.
	KafkaBroker = "kafka"
	// MemoryBroker keeps the metadata in process memory (useful for testing).
	MemoryBroker = "memory"

	environmentsKey = "environments"
)

// NewCommand returns the metastaged root command. It runs the server until
// SIGINT or SIGTERM and carries the print-config subcommand.
func NewCommand(v *viper.Viper) (*cobra.Command, error) {
	l := NewLauncher()
	opts := l.options()
	prog := &cli.Program{
		Name: "metastaged",
		Opts: opts,
		Run: func() error {
			if err := l.loadEnvironments(v); err != nil {
				return err
			}

			// exit with SIGINT and SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := l.Run(ctx); err != nil {
				return err
			}
			<-ctx.Done()

			// Attempt clean shutdown.
			ctx, cancel := context.WithTimeout(context.Background(), l.shutdownTimeout)
			defer cancel()
			return l.Shutdown(ctx)
		},
	}

	cmd, err := cli.NewCommand(v, prog)
	if err != nil {
		return nil, err
	}
	cmd.Short = "Stage topic and subscription metadata between environments"
	cmd.SilenceUsage = true
	cmd.AddCommand(newPrintConfigCommand(v, l, opts))
	return cmd, nil
}

// Launcher represents the main program execution.
type Launcher struct {
	running bool

	logLevel    zapcore.Level
	logFormat   string
	tracingType string

	httpBindAddress string
	brokerType      string
	topicPrefix     string
	appsEnvID       string

	storeInitMaxWait      time.Duration
	storeInitIdle         time.Duration
	storeReconnectTimeout time.Duration
	shutdownTimeout       time.Duration

	environments []environment.Config

	registry  *environment.Registry
	topics    *topic.Service
	subs      *subscription.Service
	apps      *application.Service
	changeLog *changelog.Service
	staging   staging.Service

	httpPort     int
	httpServer   *nethttp.Server
	errc         chan error
	tracerCloser io.Closer

	log *zap.Logger
	reg *prometheus.Registry

	Stdout io.Writer
}

// NewLauncher returns a new instance of Launcher logging to standard out.
func NewLauncher() *Launcher {
	return &Launcher{
		Stdout:          os.Stdout,
		logLevel:        zapcore.InfoLevel,
		logFormat:       metalogger.FormatAuto,
		brokerType:      KafkaBroker,
		topicPrefix:     metastore.DefaultTopicPrefix,
		shutdownTimeout: 10 * time.Second,
	}
}

func (m *Launcher) options() []cli.Opt {
	return []cli.Opt{
		{
			DestP:   &m.logLevel,
			Flag:    "log-level",
			Default: zapcore.InfoLevel,
			Desc:    "supported log levels are debug, info, warn and error",
		},
		{
			DestP:   &m.logFormat,
			Flag:    "log-format",
			Default: metalogger.FormatAuto,
			Desc:    "log output format: auto, console, logfmt or json",
		},
		{
			DestP: &m.tracingType,
			Flag:  "tracing-type",
			Desc:  fmt.Sprintf("supported tracing types are %s, %s", LogTracing, JaegerTracing),
		},
		{
			DestP:   &m.httpBindAddress,
			Flag:    "http-bind-address",
			Default: ":8080",
			Desc:    "bind address for the REST HTTP API",
		},
		{
			DestP:   &m.brokerType,
			Flag:    "broker",
			Default: KafkaBroker,
			Desc:    fmt.Sprintf("message broker holding the metadata (%s or %s)", KafkaBroker, MemoryBroker),
		},
		{
			DestP:   &m.topicPrefix,
			Flag:    "metadata-topic-prefix",
			Default: metastore.DefaultTopicPrefix,
			Desc:    "prefix of the compacted topics holding the metadata stores",
		},
		{
			DestP: &m.appsEnvID,
			Flag:  "applications-environment",
			Desc:  "environment holding the known applications (defaults to the last environment)",
		},
		{
			DestP:   &m.storeInitMaxWait,
			Flag:    "store-init-max-wait",
			Default: 30 * time.Second,
			Desc:    "maximum time to wait for the metadata stores to catch up on startup",
		},
		{
			DestP:   &m.storeInitIdle,
			Flag:    "store-init-idle-window",
			Default: 2 * time.Second,
			Desc:    "a store without new records for this long counts as initialized",
		},
		{
			DestP:   &m.storeReconnectTimeout,
			Flag:    "store-reconnect-timeout",
			Default: messaging.DefaultReconnectTimeout,
			Desc:    "delay before a store reconnects after a consumption error",
		},
		{
			DestP:   &m.shutdownTimeout,
			Flag:    "shutdown-timeout",
			Default: 10 * time.Second,
			Desc:    "time allowed for a clean shutdown",
		},
	}
}

// loadEnvironments reads the ordered environment list of the config file.
func (m *Launcher) loadEnvironments(v *viper.Viper) error {
	var configs []environment.Config
	if err := v.UnmarshalKey(environmentsKey, &configs); err != nil {
		return fmt.Errorf("reading %s: %w", environmentsKey, err)
	}
	m.environments = configs
	return nil
}

// Running returns true if the Launcher has started running.
func (m *Launcher) Running() bool {
	return m.running
}

// Registry returns the prometheus metrics registry.
func (m *Launcher) Registry() *prometheus.Registry {
	return m.reg
}

// Logger returns the launchers logger.
func (m *Launcher) Logger() *zap.Logger {
	return m.log
}

// URL returns the URL to connect to the HTTP server.
func (m *Launcher) URL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", m.httpPort)
}

// Err reports a failure of the HTTP server after Run returned.
func (m *Launcher) Err() <-chan error {
	return m.errc
}

// Environments returns the registry of all configured environments.
func (m *Launcher) Environments() *environment.Registry { return m.registry }

// TopicService returns the topic service.
func (m *Launcher) TopicService() metastage.TopicService { return m.topics }

// SubscriptionService returns the subscription service.
func (m *Launcher) SubscriptionService() metastage.SubscriptionService { return m.subs }

// ApplicationService returns the known applications service.
func (m *Launcher) ApplicationService() *application.Service { return m.apps }

// ChangeLog returns the change log service.
func (m *Launcher) ChangeLog() *changelog.Service { return m.changeLog }

// StagingService returns the instrumented staging service.
func (m *Launcher) StagingService() staging.Service { return m.staging }

// Run wires all services, waits for the metadata stores to initialize and
// starts serving HTTP. It returns once the server is listening.
func (m *Launcher) Run(ctx context.Context) (err error) {
	lc := metalogger.Config{Format: m.logFormat, Level: m.logLevel}
	m.log, err = lc.New(m.Stdout)
	if err != nil {
		return err
	}

	if err := m.setupTracing(); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = m.stopTracing()
		}
	}()
	span, ctx := tracing.StartSpanFromContext(ctx)
	defer span.Finish()

	m.reg = prometheus.NewRegistry()
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	envs, err := environment.Environments(m.environments)
	if err != nil {
		return err
	}

	clients, err := m.newClients()
	if err != nil {
		return err
	}

	storeMetrics := metastore.NewMetrics()
	m.reg.MustRegister(storeMetrics.PrometheusCollectors()...)

	m.registry, err = environment.NewRegistry(
		m.log.With(zap.String("service", "environment")),
		envs,
		clients,
		metastore.WithMetrics(storeMetrics),
		metastore.WithTopicPrefix(m.topicPrefix),
		metastore.WithReconnectTimeout(m.storeReconnectTimeout),
	)
	if err != nil {
		for _, c := range clients {
			_ = c.Close()
		}
		return err
	}
	defer func() {
		if err != nil {
			_ = m.registry.Close()
		}
	}()

	if err = m.openServices(ctx, envs); err != nil {
		return err
	}

	m.log.Info("Waiting for metadata stores",
		zap.Duration("max_wait", m.storeInitMaxWait),
		zap.Duration("idle_window", m.storeInitIdle))
	if err = m.registry.WaitForInitialization(ctx, m.storeInitMaxWait, m.storeInitIdle); err != nil {
		return err
	}

	return m.serve()
}

func (m *Launcher) newClients() (map[string]messaging.Client, error) {
	clients := make(map[string]messaging.Client, len(m.environments))
	switch m.brokerType {
	case MemoryBroker:
		for _, c := range m.environments {
			clients[c.ID] = messaging.NewBroker()
		}
	case KafkaBroker:
		for _, c := range m.environments {
			client, err := messaging.NewKafkaClient(c.Kafka, m.log.With(zap.String("environment", c.ID)))
			if err != nil {
				var cerr error
				for _, opened := range clients {
					cerr = multierr.Append(cerr, opened.Close())
				}
				return nil, multierr.Append(fmt.Errorf("environment %q: %w", c.ID, err), cerr)
			}
			clients[c.ID] = client
		}
	default:
		return nil, fmt.Errorf("unknown broker %q", m.brokerType)
	}
	return clients, nil
}

func (m *Launcher) openServices(ctx context.Context, envs []*metastage.Environment) (err error) {
	m.changeLog, err = changelog.NewService(ctx, m.registry,
		changelog.WithLogger(m.log.With(zap.String("service", "changelog"))))
	if err != nil {
		return err
	}

	m.topics, err = topic.NewService(ctx, m.registry,
		topic.WithLogger(m.log.With(zap.String("service", "topic"))),
		topic.WithListener(m.changeLog))
	if err != nil {
		return err
	}

	m.subs, err = subscription.NewService(ctx, m.registry, m.topics,
		subscription.WithLogger(m.log.With(zap.String("service", "subscription"))),
		subscription.WithListener(m.changeLog))
	if err != nil {
		return err
	}

	appsEnvID := m.appsEnvID
	if appsEnvID == "" {
		appsEnvID = envs[len(envs)-1].ID
	}
	m.apps, err = application.NewService(ctx, m.registry, appsEnvID,
		m.log.With(zap.String("service", "application")))
	if err != nil {
		return err
	}

	stagingLog := m.log.With(zap.String("service", "staging"))
	differ := staging.NewDiffer(stagingLog, m.registry, m.apps, m.topics, m.subs)
	executor := staging.NewExecutor(stagingLog, m.registry, m.topics, m.subs)

	var svc staging.Service = staging.NewService(m.registry, differ, executor)
	svc = staging.NewLoggingService(stagingLog, svc)
	svc = staging.NewMetricsService(m.reg, svc)
	m.staging = svc
	return nil
}

func (m *Launcher) serve() error {
	ln, err := net.Listen("tcp", m.httpBindAddress)
	if err != nil {
		m.log.Error("Failed to set up TCP listener", zap.String("addr", m.httpBindAddress), zap.Error(err))
		return err
	}
	if addr, ok := ln.Addr().(*net.TCPAddr); ok {
		m.httpPort = addr.Port
	}

	m.httpServer = &nethttp.Server{
		Handler:           m.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	m.errc = make(chan error, 1)
	m.running = true

	go func() {
		m.log.Info("Listening", zap.String("transport", "http"), zap.String("addr", ln.Addr().String()))
		if err := m.httpServer.Serve(ln); err != nil && err != nethttp.ErrServerClosed {
			m.log.Error("Failed to serve HTTP", zap.Error(err))
			m.errc <- err
		}
		close(m.errc)
	}()
	return nil
}

func (m *Launcher) handler() nethttp.Handler {
	reqs, dur := kithttp.NewRequestMetrics("metastage")
	m.reg.MustRegister(reqs, dur)

	httpLog := m.log.With(zap.String("service", "http"))

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		kithttp.Trace("metastaged"),
		kithttp.Metrics("metastaged", reqs, dur),
		kithttp.Logging(httpLog),
		kithttp.SetCORS,
	)

	stagingHandler := staging.NewHandler(httpLog, m.staging)
	r.Mount(stagingHandler.Prefix(), stagingHandler)

	changeLogHandler := changelog.NewHandler(httpLog, m.changeLog)
	r.Mount(changeLogHandler.Prefix(), changeLogHandler)

	r.Handle("/metrics", promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{}))
	r.Mount("/debug", middleware.Profiler())
	r.Get("/health", func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		w.WriteHeader(nethttp.StatusOK)
	})
	return r
}

// Shutdown shuts down the HTTP server and closes every store and broker client.
func (m *Launcher) Shutdown(ctx context.Context) error {
	if !m.running {
		return nil
	}
	m.running = false

	var err error
	m.log.Info("Stopping", zap.String("service", "http"))
	if serr := m.httpServer.Shutdown(ctx); serr != nil {
		err = multierr.Append(err, serr)
	}

	m.log.Info("Stopping", zap.String("service", "environment"))
	err = multierr.Append(err, m.registry.Close())

	m.log.Info("Stopping", zap.String("service", "tracing"))
	err = multierr.Append(err, m.stopTracing())

	_ = m.log.Sync()
	return err
}
