// Package cli implements the dlpxdbprofiler command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/delphix/dlpxdbprofiler/pkg/adapters/datasource"
	"github.com/delphix/dlpxdbprofiler/pkg/apperrors"
	"github.com/delphix/dlpxdbprofiler/pkg/audit"
	"github.com/delphix/dlpxdbprofiler/pkg/compliance"
	"github.com/delphix/dlpxdbprofiler/pkg/config"
	"github.com/delphix/dlpxdbprofiler/pkg/logging"
	"github.com/delphix/dlpxdbprofiler/pkg/metrics"
	"github.com/delphix/dlpxdbprofiler/pkg/services/orchestrator"
)

// ServiceFactory builds the orchestrator for a loaded configuration.
type ServiceFactory func(cfg *config.Config, logger *zap.Logger, reporter audit.Reporter) (orchestrator.Service, error)

// app carries the state shared by every command of one invocation.
type app struct {
	version string
	stdout  io.Writer
	stderr  io.Writer

	// flags
	configPath string
	output     string
	logLevel   string

	cfg       *config.Config
	logger    *zap.Logger
	closeLog  func()
	collector *metrics.Collector
	reporter  audit.Reporter

	newService ServiceFactory
	service    orchestrator.Service
}

func newApp(version string, stdout, stderr io.Writer) *app {
	return &app{
		version:    version,
		stdout:     stdout,
		stderr:     stderr,
		logger:     zap.NewNop(),
		closeLog:   func() {},
		newService: defaultService,
	}
}

// defaultService wires the HTTP compliance client and the registered inspectors.
func defaultService(cfg *config.Config, logger *zap.Logger, reporter audit.Reporter) (orchestrator.Service, error) {
	var remote compliance.Remote
	if cfg.Compliance.BaseURL != "" {
		client, err := compliance.NewClient(cfg.Compliance, logger)
		if err != nil {
			return nil, err
		}
		remote = client
	}
	return orchestrator.New(remote, datasource.NewInspectorFactory(logger), logger,
		orchestrator.WithReporter(reporter)), nil
}

// setup loads configuration and builds the logger and reporters.
func (a *app) setup() error {
	cfg, err := config.Load(a.version, a.configPath)
	if err != nil {
		return apperrors.Wrap(apperrors.KindConfiguration, "cli.setup", err, "load configuration")
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	a.cfg = cfg

	logger, closeLog, err := logging.New(logging.Options{
		Level:   cfg.Log.Level,
		File:    cfg.Log.File,
		Console: a.stderr,
	})
	if err != nil {
		return apperrors.Wrap(apperrors.KindConfiguration, "cli.setup", err, "build logger")
	}
	a.logger = logger
	a.closeLog = closeLog
	a.collector = metrics.NewCollector()
	a.reporter = audit.Multi{audit.NewLogReporter(logger), a.collector}

	logger.Debug("Configuration loaded",
		zap.String("version", a.version),
		zap.String("engine", cfg.Database.Engine),
		zap.String("compliance_url", cfg.Compliance.BaseURL))
	return nil
}

// svc returns the orchestrator, building it on first use.
func (a *app) svc() (orchestrator.Service, error) {
	if a.service != nil {
		return a.service, nil
	}
	svc, err := a.newService(a.cfg, a.logger, a.reporter)
	if err != nil {
		return nil, err
	}
	a.service = svc
	return svc, nil
}

// finish exports metrics and flushes logs. Safe to call when setup never ran.
func (a *app) finish() {
	if a.cfg != nil && a.collector != nil && a.cfg.Metrics.Textfile != "" {
		if err := a.collector.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
			a.logger.Warn("Failed to write metrics textfile",
				zap.String("path", a.cfg.Metrics.Textfile),
				zap.Error(err))
		}
	}
	a.closeLog()
}

// signalContext is cancelled on SIGINT or SIGTERM so running jobs stop being tracked.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.stdout, format, args...)
}
