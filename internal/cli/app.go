package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/sirupsen/logrus"

	"crmcore/internal/blob"
	"crmcore/internal/config"
	"crmcore/internal/core"
	"crmcore/internal/events"
	"crmcore/internal/export"
	amqpevents "crmcore/internal/infra/events/amqp"
	redisevents "crmcore/internal/infra/events/redis"
	"crmcore/internal/infra/notify/mail"
	pgreport "crmcore/internal/infra/reporting/postgres"
	"crmcore/internal/seed"
)

// App holds the components one CLI invocation works with. State lives for
// the lifetime of the process only.
type App struct {
	Config  config.Config
	Log     *logrus.Logger
	Service *core.Service
	Blobs   blob.Store
	Exports *export.Worker

	errOut   io.Writer
	expvar   *core.ExpvarMetricsRecorder
	registry *prometheus.Registry
	closers  []func() error
}

// AppOptions carries process-level switches that are not part of Config.
type AppOptions struct {
	// ErrOut receives logs, traces and metric dumps. Defaults to os.Stderr.
	ErrOut io.Writer
	// Trace writes a JSON span per service operation to ErrOut.
	Trace bool
}

// NewApp wires logging, metrics, audit, events, blob storage and the export
// worker from cfg. The caller must Close the app.
func NewApp(ctx context.Context, cfg config.Config, opts AppOptions) (_ *App, err error) {
	if opts.ErrOut == nil {
		opts.ErrOut = os.Stderr
	}
	app := &App{Config: cfg, errOut: opts.ErrOut}
	defer func() {
		if err != nil {
			_ = app.Close(ctx)
		}
	}()

	app.Log, err = newLogger(cfg, opts.ErrOut)
	if err != nil {
		return nil, err
	}
	logger := core.NewLogrusLogger(app.Log)

	svcOpts := []core.Option{core.WithLogger(logger)}
	if cfg.Seed != 0 {
		svcOpts = append(svcOpts, core.WithSeeder(seed.New(seed.WithSeed(cfg.Seed))))
	}
	switch cfg.Metrics {
	case "expvar":
		app.expvar = core.NewExpvarMetricsRecorder("")
		svcOpts = append(svcOpts, core.WithMetricsRecorder(app.expvar))
	case "prometheus":
		app.registry = prometheus.NewRegistry()
		svcOpts = append(svcOpts, core.WithMetricsRecorder(core.NewPrometheusMetricsRecorder(app.registry)))
	}
	if opts.Trace {
		svcOpts = append(svcOpts, core.WithTracer(core.NewJSONTracer(opts.ErrOut)))
	}

	audit, err := app.auditRecorders(ctx, logger)
	if err != nil {
		return nil, err
	}
	if len(audit) > 0 {
		svcOpts = append(svcOpts, core.WithAuditRecorder(audit))
	}
	app.Service = core.NewInMemoryService(nil, svcOpts...)

	app.Blobs, err = blob.Open(ctx, cfg.Blob)
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	workerOpts := []export.Option{
		export.WithLogger(logger),
		export.WithPrefix(cfg.Export.Prefix),
		export.WithQueueSize(cfg.Export.QueueSize),
		export.WithURLExpiry(cfg.Export.URLExpiry),
	}
	formats := make([]export.Format, 0, len(cfg.Export.Formats))
	for _, raw := range cfg.Export.Formats {
		f, err := export.ParseFormat(raw)
		if err != nil {
			return nil, err
		}
		formats = append(formats, f)
	}
	workerOpts = append(workerOpts, export.WithDefaultFormats(formats...))
	if cfg.ReportDSN != "" {
		sink, err := pgreport.Open(ctx, cfg.ReportDSN)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, sink.Close)
		workerOpts = append(workerOpts, export.WithSink(sink))
	}
	if cfg.Mail.Enabled() {
		m := cfg.Mail
		workerOpts = append(workerOpts, export.WithNotifier(mail.New(m.Host, m.Port, m.User, m.Password, m.From, m.To)))
	}
	app.Exports = export.NewWorker(app.Service, app.Blobs, workerOpts...)
	app.Exports.Start()
	stopExports := app.Exports
	app.closers = append(app.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return stopExports.Stop(ctx)
	})
	return app, nil
}

func newLogger(cfg config.Config, out io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(level)
	if cfg.LogFormat == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	}
	return l, nil
}

func (a *App) auditRecorders(ctx context.Context, logger core.Logger) (core.MultiAuditRecorder, error) {
	var recorders core.MultiAuditRecorder
	if a.Config.AuditFile != "" {
		f, err := os.OpenFile(a.Config.AuditFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open audit file: %w", err)
		}
		a.closers = append(a.closers, f.Close)
		recorders = append(recorders, core.NewJSONAuditRecorder(f))
	}
	var (
		publisher events.Publisher
		err       error
	)
	switch a.Config.Events.Driver {
	case "amqp":
		publisher, err = amqpevents.Dial(a.Config.Events.URL, a.Config.Events.Topic)
	case "redis":
		publisher, err = redisevents.Dial(ctx, a.Config.Events.URL, a.Config.Events.Topic)
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s events: %w", a.Config.Events.Driver, err)
	}
	if publisher != nil {
		a.closers = append(a.closers, publisher.Close)
		recorders = append(recorders, core.NewEventAuditRecorder(publisher, logger))
	}
	return recorders, nil
}

// Close stops the export worker, releases connections and dumps metrics.
func (a *App) Close(context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := a.dumpMetrics(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) dumpMetrics() error {
	switch {
	case a.expvar != nil:
		enc := json.NewEncoder(a.errOut)
		enc.SetIndent("", "  ")
		return enc.Encode(a.expvar.Snapshot())
	case a.registry != nil:
		families, err := a.registry.Gather()
		if err != nil {
			return fmt.Errorf("gather metrics: %w", err)
		}
		var b strings.Builder
		for _, mf := range families {
			if _, err := expfmt.MetricFamilyToText(&b, mf); err != nil {
				return err
			}
		}
		_, err = io.WriteString(a.errOut, b.String())
		return err
	}
	return nil
}
