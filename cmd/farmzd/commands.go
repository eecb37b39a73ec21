package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/zoobzio/farmz"
	"github.com/zoobzio/farmz/internal/config"
	"github.com/zoobzio/farmz/internal/logging"
	"github.com/zoobzio/farmz/internal/workload"
)

const shutdownTimeout = 10 * time.Second

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the workload and serve metrics over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: "HTTP listen address (overrides the config file)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			d, cleanup, err := newDaemon(cfg, cmd.Root().ErrWriter)
			if err != nil {
				return err
			}
			defer func() { _ = cleanup() }()
			return d.serve(ctx)
		},
	}
}

func dumpCommand() *cli.Command {
	return &cli.Command{
		Name:  "dump",
		Usage: "run the workload for a while and print the farm as JSON",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "duration",
				Usage: "how long to run the workload before dumping",
				Value: time.Second,
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "indent the JSON output",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Duration("duration") < 0 {
				return usagef("duration must not be negative, got %s", cmd.Duration("duration"))
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			d, cleanup, err := newDaemon(cfg, cmd.Root().ErrWriter)
			if err != nil {
				return err
			}
			defer func() { _ = cleanup() }()
			return d.dump(ctx, cmd.Root().Writer, cmd.Duration("duration"), cmd.Bool("pretty"))
		},
	}
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig(cmd *cli.Command) (config.Config, error) {
	cfg := config.Default()
	if path := cmd.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cfg, &usageError{err: err}
		}
		cfg = loaded
	}
	if cmd.IsSet("log-level") {
		cfg.Log.Level = cmd.String("log-level")
	}
	if cmd.IsSet("listen") {
		cfg.Listen = cmd.String("listen")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, &usageError{err: err}
	}
	return cfg, nil
}

type daemon struct {
	cfg    config.Config
	logger *slog.Logger
	farm   *farmz.Farm
	pool   *workload.Pool
}

func newDaemon(cfg config.Config, stderr io.Writer) (*daemon, func() error, error) {
	logger, cleanup, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	}, stderr)
	if err != nil {
		return nil, nil, &usageError{err: err}
	}

	d := &daemon{
		cfg:    cfg,
		logger: logger,
		farm:   farmz.NewFarm(farmz.WithFarmLogger(logger)),
	}

	if w := cfg.Workload; w.Workers > 0 {
		g := farmz.NewGroup(w.Group, farmz.WithGroupLogger(logger))
		d.pool = workload.New(g, workload.Config{
			Workers:   w.Workers,
			QueueSize: w.QueueSize,
			Interval:  w.Interval,
			Recycle:   w.Recycle,
			FailEvery: w.FailEvery,
		}, workload.WithLogger(logger))
		if err := d.farm.Register(g); err != nil {
			_ = cleanup()
			return nil, nil, err
		}
	}
	return d, cleanup, nil
}

func (d *daemon) serve(ctx context.Context) error {
	srv, err := newServer(d.farm, d.cfg.Namespace, d.logger)
	if err != nil {
		return err
	}
	httpSrv := &http.Server{
		Addr:              d.cfg.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		d.logger.Info("farmzd listening", slog.String("addr", d.cfg.Listen))
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(sctx)
	})
	eg.Go(func() error {
		return d.farm.Run(ctx, d.cfg.RefreshInterval)
	})
	if d.pool != nil {
		eg.Go(func() error {
			return d.pool.Run(ctx)
		})
	}

	err = eg.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	d.logger.Info("farmzd stopped", slog.Any("error", err))
	return err
}

func (d *daemon) dump(ctx context.Context, out io.Writer, runFor time.Duration, pretty bool) error {
	if d.pool != nil && runFor > 0 {
		rctx, cancel := context.WithTimeout(ctx, runFor)
		err := d.pool.Run(rctx)
		cancel()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			return err
		}
	}

	b, err := d.farm.JSON(true)
	if err != nil {
		return fmt.Errorf("render farm: %w", err)
	}
	if pretty {
		var buf bytes.Buffer
		if err := json.Indent(&buf, b, "", "  "); err != nil {
			return fmt.Errorf("indent farm: %w", err)
		}
		b = buf.Bytes()
	}
	_, err = fmt.Fprintln(out, string(b))
	return err
}
