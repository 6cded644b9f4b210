package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/target/simqueue/internal/bootstrap"
	"github.com/target/simqueue/internal/core"
	"github.com/target/simqueue/internal/data"
	"github.com/target/simqueue/internal/domain/model"
)

const (
	defaultMigrationTimeout = 5 * time.Minute
	defaultCommandTimeout   = 2 * time.Minute
	defaultFailingLimit     = 20
	defaultStuckLimit       = 50
)

// outboxAdmin is the slice of the outbox repository the admin commands use.
type outboxAdmin interface {
	PendingStats(ctx context.Context, failingLimit int) (*model.OutboxStats, error)
	Requeue(ctx context.Context, simulationID int64) (*model.OutboxEntry, error)
}

// staleLister is the slice of the simulation repository the stuck command uses.
type staleLister interface {
	CountStale(ctx context.Context, q core.StaleQuery) (int64, error)
	ListStale(ctx context.Context, q core.StaleQuery) ([]model.StuckSimulation, error)
}

func connectDB(cmdCtx *commandContext) (*sql.DB, func(), error) {
	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect db: %w", err)
	}
	return db, func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}, nil
}

type migrateOptions struct {
	Timeout time.Duration
}

func parseMigrateFlags(args []string) (migrateOptions, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := migrateOptions{}
	fs.DurationVar(&opts.Timeout, "timeout", defaultMigrationTimeout, "Maximum duration to wait for migrations to complete")

	if err := fs.Parse(args); err != nil {
		return migrateOptions{}, err
	}
	if opts.Timeout <= 0 {
		return migrateOptions{}, errors.New("--timeout must be greater than zero")
	}
	return opts, nil
}

func runMigrations(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	db, closeDB, err := connectDB(cmdCtx)
	if err != nil {
		return err
	}
	defer closeDB()

	cmdCtx.Logger.Info("running database migrations")
	if migrateErr := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); migrateErr != nil {
		return fmt.Errorf("run migrations: %w", migrateErr)
	}
	cmdCtx.Logger.Info("migrations completed successfully")
	return nil
}

type outboxStatusOptions struct {
	Failing int
}

func parseOutboxStatusFlags(args []string) (outboxStatusOptions, error) {
	fs := flag.NewFlagSet("outbox-status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := outboxStatusOptions{}
	fs.IntVar(&opts.Failing, "failing", defaultFailingLimit, "Maximum number of failing entries to list")

	if err := fs.Parse(args); err != nil {
		return outboxStatusOptions{}, err
	}
	if opts.Failing < 1 {
		return outboxStatusOptions{}, errors.New("--failing must be at least 1")
	}
	return opts, nil
}

func runOutboxStatus(cmdCtx *commandContext, args []string) error {
	opts, err := parseOutboxStatusFlags(args)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	db, closeDB, err := connectDB(cmdCtx)
	if err != nil {
		return err
	}
	defer closeDB()

	repo := data.NewOutboxRepo(db, data.OutboxRepoConfig{Logger: cmdCtx.Logger})
	return outboxStatus(ctx, cmdCtx.Out, repo, opts, time.Now())
}

func outboxStatus(ctx context.Context, out io.Writer, repo outboxAdmin, opts outboxStatusOptions, now time.Time) error {
	stats, err := repo.PendingStats(ctx, opts.Failing)
	if err != nil {
		return fmt.Errorf("outbox stats: %w", err)
	}

	if err := writef(out, "Pending: %d\n", stats.Pending); err != nil {
		return err
	}
	if stats.OldestPending != nil {
		age := now.Sub(*stats.OldestPending).Truncate(time.Second)
		if err := writef(out, "Oldest pending: %s (%s ago)\n", stats.OldestPending.UTC().Format(time.RFC3339), age); err != nil {
			return err
		}
	}
	if len(stats.Failing) == 0 {
		return writef(out, "No failing entries.\n")
	}

	if err := writef(out, "\nFailing entries:\n"); err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	if err := writef(w, "ID\tSIMULATION\tQUEUE\tATTEMPTS\tLAST ERROR\n"); err != nil {
		return err
	}
	for _, e := range stats.Failing {
		lastErr := "-"
		if e.LastError != nil {
			lastErr = oneLine(*e.LastError)
		}
		if err := writef(w, "%d\t%d\t%s\t%d\t%s\n", e.ID, e.SimulationID, e.Queue, e.Attempts, lastErr); err != nil {
			return err
		}
	}
	return w.Flush()
}

type requeueOptions struct {
	SimulationID int64
}

func parseRequeueFlags(args []string) (requeueOptions, error) {
	fs := flag.NewFlagSet("outbox-requeue", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := requeueOptions{}
	fs.Int64Var(&opts.SimulationID, "id", 0, "Simulation id to requeue (required)")

	if err := fs.Parse(args); err != nil {
		return requeueOptions{}, err
	}
	if opts.SimulationID <= 0 {
		return requeueOptions{}, errors.New("--id is required and must be positive")
	}
	return opts, nil
}

func runOutboxRequeue(cmdCtx *commandContext, args []string) error {
	opts, err := parseRequeueFlags(args)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	db, closeDB, err := connectDB(cmdCtx)
	if err != nil {
		return err
	}
	defer closeDB()

	repo := data.NewOutboxRepo(db, data.OutboxRepoConfig{Logger: cmdCtx.Logger})
	return requeue(ctx, cmdCtx.Out, repo, opts)
}

func requeue(ctx context.Context, out io.Writer, repo outboxAdmin, opts requeueOptions) error {
	entry, err := repo.Requeue(ctx, opts.SimulationID)
	switch {
	case errors.Is(err, data.ErrSimulationNotSubmitted):
		return fmt.Errorf("simulation %d has already been claimed; requeue only applies to Submitted", opts.SimulationID)
	case errors.Is(err, data.ErrSimulationNotFound):
		return fmt.Errorf("simulation %d not found", opts.SimulationID)
	case err != nil:
		return fmt.Errorf("requeue simulation %d: %w", opts.SimulationID, err)
	}
	return writef(out, "Requeued simulation %d as outbox entry %d (message %s, queue %s)\n",
		entry.SimulationID, entry.ID, entry.MessageID, entry.Queue)
}

type stuckOptions struct {
	Status    model.SimulationStatus
	OlderThan time.Duration
	Limit     int
}

func parseStuckFlags(args []string) (stuckOptions, error) {
	fs := flag.NewFlagSet("stuck", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var status string
	opts := stuckOptions{}
	fs.StringVar(&status, "status", string(model.SimulationStatusRunning), "Status to inspect: Submitted or Running")
	fs.DurationVar(&opts.OlderThan, "older-than", time.Hour, "Minimum time since the last status change")
	fs.IntVar(&opts.Limit, "limit", defaultStuckLimit, "Maximum number of simulations to list")

	if err := fs.Parse(args); err != nil {
		return stuckOptions{}, err
	}

	switch strings.ToLower(strings.TrimSpace(status)) {
	case "submitted":
		opts.Status = model.SimulationStatusSubmitted
	case "running":
		opts.Status = model.SimulationStatusRunning
	default:
		return stuckOptions{}, fmt.Errorf("--status must be Submitted or Running, got %q", status)
	}
	if opts.OlderThan <= 0 {
		return stuckOptions{}, errors.New("--older-than must be greater than zero")
	}
	if opts.Limit < 1 {
		return stuckOptions{}, errors.New("--limit must be at least 1")
	}
	return opts, nil
}

func runStuck(cmdCtx *commandContext, args []string) error {
	opts, err := parseStuckFlags(args)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	db, closeDB, err := connectDB(cmdCtx)
	if err != nil {
		return err
	}
	defer closeDB()

	repo := data.NewSimulationRepo(db, data.SimulationRepoConfig{Logger: cmdCtx.Logger})
	return listStuck(ctx, cmdCtx.Out, repo, opts, time.Now())
}

func listStuck(ctx context.Context, out io.Writer, repo staleLister, opts stuckOptions, now time.Time) error {
	q := core.StaleQuery{Status: opts.Status, MaxAge: opts.OlderThan, Limit: opts.Limit}

	total, err := repo.CountStale(ctx, q)
	if err != nil {
		return fmt.Errorf("count stuck simulations: %w", err)
	}
	if total == 0 {
		return writef(out, "No %s simulations older than %s.\n", opts.Status, opts.OlderThan)
	}

	sims, err := repo.ListStale(ctx, q)
	if err != nil {
		return fmt.Errorf("list stuck simulations: %w", err)
	}

	if err := writef(out, "%d %s simulation(s) older than %s", total, opts.Status, opts.OlderThan); err != nil {
		return err
	}
	if int64(len(sims)) < total {
		if err := writef(out, " (showing %d)", len(sims)); err != nil {
			return err
		}
	}
	if err := writef(out, "\n\n"); err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	if err := writef(w, "ID\tUSER\tTITLE\tSTATUS\tUPDATED\tAGE\n"); err != nil {
		return err
	}
	for _, s := range sims {
		age := now.Sub(s.UpdatedAt).Truncate(time.Second)
		if err := writef(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.UserID, oneLine(s.Title), s.Status, s.UpdatedAt.UTC().Format(time.RFC3339), age); err != nil {
			return err
		}
	}
	return w.Flush()
}

func oneLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 80 {
		return s[:77] + "..."
	}
	return s
}
