package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/flexmocap/rigcore/internal/config"
	"github.com/flexmocap/rigcore/internal/influx"
	"github.com/flexmocap/rigcore/internal/logging"
	"github.com/flexmocap/rigcore/internal/marker"
	rigotel "github.com/flexmocap/rigcore/internal/otel"
	"github.com/flexmocap/rigcore/internal/session"
	"github.com/flexmocap/rigcore/internal/storage"
)

// runtime is the ambient stack shared by every command.
type runtime struct {
	slog    *logging.SlogManager
	logger  *slog.Logger
	zlog    zerolog.Logger
	session *session.Context
	otel    *rigotel.Provider
	metrics *rigotel.Metrics

	closers []io.Closer
}

func newRuntime(ctx context.Context, console io.Writer) (*runtime, error) {
	r := &runtime{slog: logging.NewSlogManager(), session: session.New()}
	level := config.GetString("logLevel")

	var file io.Writer
	if dir := config.GetString("logsDir"); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create logs directory: %w", err)
		}
		f, err := os.Create(logging.LogFilePath(dir, "mocaprig", r.session.Started))
		if err != nil {
			return nil, fmt.Errorf("failed to create log file: %w", err)
		}
		r.closers = append(r.closers, f)
		file = f
	}

	otelCfg := config.GetOTelConfig()
	pcfg := rigotel.Config{
		Enabled:      otelCfg.Enabled,
		ServiceName:  otelCfg.ServiceName,
		BatchTimeout: otelCfg.BatchTimeout,
		Endpoint:     otelCfg.Endpoint,
		Insecure:     otelCfg.Insecure,
	}
	if otelCfg.Enabled && file != nil {
		otelFile, err := os.Create(logging.LogFilePath(config.GetString("logsDir"), "mocaprig_otel", r.session.Started))
		if err != nil {
			return nil, fmt.Errorf("failed to create otel log file: %w", err)
		}
		r.closers = append(r.closers, otelFile)
		pcfg.LogWriter = otelFile
	}
	provider, err := rigotel.New(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	r.otel = provider

	r.logger = r.slog.Setup(logging.Options{
		Level:       level,
		Console:     console,
		Quiet:       quiet,
		File:        file,
		Provider:    provider.LoggerProvider(),
		ServiceName: otelCfg.ServiceName,
		Context:     r.session.LogAttrs,
	})

	if r.metrics, err = rigotel.NewMetrics(provider.Meter("mocaprig")); err != nil {
		return nil, err
	}

	graylog := config.GetGraylogConfig()
	addr := ""
	if graylog.Enabled {
		addr = graylog.Address
	}
	zlog, closer, err := logging.NewZerolog(console, level, addr)
	if err != nil {
		r.logger.Warn("Graylog unavailable, continuing without it", "address", addr, "error", err)
		zlog, closer, _ = logging.NewZerolog(console, level, "")
	}
	if quiet {
		zlog = zlog.Level(zerolog.Disabled)
	}
	r.zlog = zlog
	r.closers = append(r.closers, closer)
	return r, nil
}

func (r *runtime) convention() marker.Convention {
	mk := config.GetMarkerConfig()
	conv := marker.DefaultConvention()
	if mk.NumericPrefix != "" {
		conv.NumericPrefix = mk.NumericPrefix
	}
	if mk.LabelPrefix != "" {
		conv.LabelPrefix = mk.LabelPrefix
	}
	return conv
}

// storage builds and initializes the configured backend.
func (r *runtime) storage() (storage.Backend, error) {
	b, err := storage.NewBackend(config.GetStorageConfig(), storage.Dependencies{
		Logger:  r.logger,
		Zerolog: r.zlog,
		DB:      config.GetDBConfig(),
	})
	if err != nil {
		return nil, err
	}
	if err := b.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return b, nil
}

// influx connects when enabled; nil otherwise.
func (r *runtime) influx(ctx context.Context) *influx.Manager {
	m := influx.NewManager(config.GetInfluxConfig(), r.zlog)
	if err := m.Connect(ctx); err != nil {
		if !errors.Is(err, influx.ErrDisabled) {
			r.logger.Warn("InfluxDB unavailable", "error", err)
		}
		return nil
	}
	r.closers = append(r.closers, m)
	return m
}

func (r *runtime) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var errs []error
	errs = append(errs, r.slog.Flush(ctx), r.otel.Shutdown(ctx))
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i].Close())
	}
	return errors.Join(errs...)
}
