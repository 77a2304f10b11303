/*
Jimmer-save saves the entity graphs of YAML documents into a database.

Usage:

	jimmer-save [flags] GRAPH...

Every document of every GRAPH file is one save command, run in its own
transaction. Commands run concurrently; a failed command is rolled back
without affecting the others.

The flags are:

	-c, --config PATH
		Read the database and save configuration from PATH instead of
		'./jimmer.yml'.

	-m, --model PATH
		Read the entity model from PATH instead of './model.yml'.

	--mode MODE
		Save with MODE, one of upsert, insert-only or update-only. A mode set
		by a document takes precedence.

	-j, --jobs N
		Run at most N commands at once. Defaults to 4.

	-v, --verbose
		Log every statement.
*/
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/spf13/pflag"
	_ "modernc.org/sqlite"
)

const (
	exitSuccess = iota
	exitError
	exitUsage
	exitInterrupt
)

func main() {
	flags := pflag.NewFlagSet("jimmer-save", pflag.ContinueOnError)
	var opts options
	flags.StringVarP(&opts.config, "config", "c", "jimmer.yml", "Path to the configuration file")
	flags.StringVarP(&opts.model, "model", "m", "model.yml", "Path to the entity model")
	flags.StringVar(&opts.mode, "mode", "", "Save mode: upsert, insert-only or update-only")
	flags.IntVarP(&opts.jobs, "jobs", "j", 4, "Number of commands run at once")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log every statement")
	if err := flags.Parse(os.Args[1:]); err != nil {
		os.Exit(exitUsage)
	}
	opts.graphs = flags.Args()
	if len(opts.graphs) == 0 {
		fmt.Fprintln(os.Stderr, "ERROR: no graph file given")
		flags.Usage()
		os.Exit(exitUsage)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	err := run(ctx, opts, logger)
	switch {
	case err == nil:
		os.Exit(exitSuccess)
	case ctx.Err() != nil:
		fmt.Fprintf(os.Stderr, "ERROR: interrupted: %v\n", err)
		os.Exit(exitInterrupt)
	default:
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(exitError)
	}
}
