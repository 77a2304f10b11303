package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/TrueNine/jimmer"
	"github.com/TrueNine/jimmer/dialect"
	"github.com/TrueNine/jimmer/dialect/sql"
	"github.com/TrueNine/jimmer/internal/loader"
	"github.com/TrueNine/jimmer/save"
)

type options struct {
	config  string
	model   string
	mode    string
	jobs    int
	verbose bool
	graphs  []string
}

// run saves every graph document and returns the failures of all commands.
func run(ctx context.Context, opts options, logger *slog.Logger) error {
	cfg, err := save.LoadConfig(opts.config)
	if err != nil {
		return err
	}
	model, err := loader.LoadModel(opts.model)
	if err != nil {
		return err
	}
	flavor, err := cfg.Flavor()
	if err != nil {
		return err
	}
	copts, err := cfg.Options()
	if err != nil {
		return err
	}
	client, err := save.NewClient(model, flavor, append(copts, save.WithLogger(logger))...)
	if err != nil {
		return err
	}
	defaultMode := save.Upsert
	if opts.mode != "" {
		if defaultMode, err = save.ParseMode(opts.mode); err != nil {
			return err
		}
	}

	var (
		graphs []*loader.Graph
		modes  []save.Mode
	)
	for _, path := range opts.graphs {
		gs, err := loader.LoadGraphs(path, model)
		if err != nil {
			return err
		}
		for _, g := range gs {
			mode := defaultMode
			if g.Mode != "" {
				if mode, err = save.ParseMode(g.Mode); err != nil {
					return fmt.Errorf("%s: %w", g.Source, err)
				}
			}
			graphs = append(graphs, g)
			modes = append(modes, mode)
		}
	}

	drv, err := sql.Open(cfg.DriverName(), cfg.DSN)
	if err != nil {
		return fmt.Errorf("open %s: %w", cfg.DriverName(), err)
	}
	defer drv.Close()
	var d dialect.Driver = drv
	if cfg.SlowQuery > 0 {
		stats := sql.NewStatsDriver(drv, sql.WithSlowThreshold(cfg.SlowQuery), sql.WithStatsLogger(logger))
		defer func() {
			logger.Info("statement statistics", "stats", stats.QueryStats().Stats().String())
		}()
		d = stats
	}

	r := &runner{driver: d, client: client, logger: logger}
	var (
		mu   sync.Mutex
		errs []error
		eg   errgroup.Group
	)
	eg.SetLimit(max(opts.jobs, 1))
	for i, g := range graphs {
		eg.Go(func() error {
			if err := r.save(ctx, g, modes[i]); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", g.Source, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = eg.Wait()
	return jimmer.NewAggregateError(errs...)
}

type runner struct {
	driver dialect.Driver
	client *save.Client
	logger *slog.Logger
}

// save runs one command in its own transaction.
func (r *runner) save(ctx context.Context, g *loader.Graph, mode save.Mode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx, err := r.driver.Tx(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	exec := save.NewSQLExecutor(tx, r.client.Flavor(), save.ExecutorLogger(r.logger))
	res, err := r.client.Save(ctx, exec, g.Roots, save.WithMode(mode))
	if err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return &jimmer.RollbackError{Err: fmt.Errorf("%w: %v", err, rerr)}
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	r.logger.Info("graph saved", "graph", g.Source, "mode", mode, "affected", res.AffectedAll())
	return nil
}
