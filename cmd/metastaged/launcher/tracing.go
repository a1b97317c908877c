package launcher

import (
	"fmt"

	"github.com/opentracing/opentracing-go"
	jaeger "github.com/uber/jaeger-client-go"
	jaegerconfig "github.com/uber/jaeger-client-go/config"
	jaegerzap "github.com/uber/jaeger-client-go/log/zap"
	"go.uber.org/zap"
)

const (
	// LogTracing reports every finished span through the logger.
	LogTracing = "log"
	// JaegerTracing sends spans to the Jaeger agent named by the JAEGER_*
	// environment variables.
	JaegerTracing = "jaeger"

	tracingServiceName = "metastaged"
)

// setupTracing installs the global tracer selected by tracing-type. Without
// a tracing type spans go to the no-op tracer.
func (m *Launcher) setupTracing() error {
	log := jaegerzap.NewLogger(m.log.With(zap.String("service", "tracing")))

	switch m.tracingType {
	case "":
		return nil
	case LogTracing:
		m.log.Info("Tracing via zap logging")
		tracer, closer := jaeger.NewTracer(tracingServiceName,
			jaeger.NewConstSampler(true),
			jaeger.NewLoggingReporter(log))
		opentracing.SetGlobalTracer(tracer)
		m.tracerCloser = closer
	case JaegerTracing:
		m.log.Info("Tracing via Jaeger")
		cfg, err := jaegerconfig.FromEnv()
		if err != nil {
			return fmt.Errorf("reading Jaeger client config from environment: %w", err)
		}
		if cfg.ServiceName == "" {
			cfg.ServiceName = tracingServiceName
		}
		tracer, closer, err := cfg.NewTracer(jaegerconfig.Logger(log))
		if err != nil {
			return fmt.Errorf("creating Jaeger tracer: %w", err)
		}
		opentracing.SetGlobalTracer(tracer)
		m.tracerCloser = closer
	default:
		return fmt.Errorf("unknown tracing type %q", m.tracingType)
	}
	return nil
}

// stopTracing flushes pending spans and restores the no-op tracer.
func (m *Launcher) stopTracing() error {
	if m.tracerCloser == nil {
		return nil
	}
	err := m.tracerCloser.Close()
	m.tracerCloser = nil
	opentracing.SetGlobalTracer(opentracing.NoopTracer{})
	return err
}
