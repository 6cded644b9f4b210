package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/target/simqueue/config"
	"github.com/target/simqueue/internal/core"
	"github.com/target/simqueue/internal/data/pgxutil"
	"github.com/target/simqueue/internal/domain/model"
)

// Advisory lock namespace for maintenance operations.
// Major key 2100 is reserved for simqueue reaper operations.
const (
	advisoryLockReaperMajor       = 2100
	advisoryLockReaperPruneOutbox = 1 // minor key for DeletePublishedBefore
)

const (
	maxRecordedPublishErrorLength  = 1024
	defaultOutboxFailingListLength = 10
)

// OutboxRepoConfig holds configuration options for the outbox repository.
type OutboxRepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// OutboxRepo provides database operations for the simulation outbox.
type OutboxRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewOutboxRepo creates a new OutboxRepo.
func NewOutboxRepo(db *sql.DB, cfg OutboxRepoConfig) *OutboxRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &OutboxRepo{
		DB:           db,
		timeProvider: tp,
		logger:       logger.With("component", "outbox_repo"),
	}
}

const outboxColumns = `
  id,
  simulation_id,
  queue,
  message_id::text AS message_id,
  payload,
  attempts,
  last_error,
  created_at,
  published_at
`

type outboxRow struct {
	ID           int64      `db:"id"`
	SimulationID int64      `db:"simulation_id"`
	Queue        string     `db:"queue"`
	MessageID    string     `db:"message_id"`
	Payload      []byte     `db:"payload"`
	Attempts     int        `db:"attempts"`
	LastError    *string    `db:"last_error"`
	CreatedAt    time.Time  `db:"created_at"`
	PublishedAt  *time.Time `db:"published_at"`
}

func (row outboxRow) toModel() model.OutboxEntry {
	return model.OutboxEntry{
		ID:           row.ID,
		SimulationID: row.SimulationID,
		Queue:        row.Queue,
		MessageID:    row.MessageID,
		Payload:      json.RawMessage(row.Payload),
		Attempts:     row.Attempts,
		LastError:    row.LastError,
		CreatedAt:    row.CreatedAt,
		PublishedAt:  row.PublishedAt,
	}
}

func collectOutbox(rows pgx.Rows) ([]model.OutboxEntry, error) {
	list, err := pgx.CollectRows(rows, pgx.RowToStructByName[outboxRow])
	if err != nil {
		return nil, err
	}
	out := make([]model.OutboxEntry, len(list))
	for i := range list {
		out[i] = list[i].toModel()
	}
	return out, nil
}

// DrainBatch locks up to limit unpublished entries with SKIP LOCKED so concurrent relays never share
// an entry, then publishes them in id order. A confirmed entry is marked published. The first failure
// records attempts and last_error and ends the pass; the remaining entries stay pending.
func (r *OutboxRepo) DrainBatch(ctx context.Context, limit int, publish core.PublishFunc) (model.DrainResult, error) {
	var result model.DrainResult
	if publish == nil {
		return result, errors.New("publish function is required")
	}
	if limit <= 0 {
		return result, errors.New("limit must be greater than zero")
	}

	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Fn: func(tx pgx.Tx) error {
			rows, err := tx.Query(ctx, `
				SELECT `+outboxColumns+`
				FROM simulation_outbox
				WHERE published_at IS NULL
				ORDER BY id
				LIMIT $1
				FOR UPDATE SKIP LOCKED
			`, limit)
			if err != nil {
				return fmt.Errorf("claim outbox entries: %w", err)
			}
			entries, err := collectOutbox(rows)
			if err != nil {
				return fmt.Errorf("collect outbox entries: %w", err)
			}
			result.Claimed = len(entries)

			for _, entry := range entries {
				pubErr := publish(ctx, entry)
				if pubErr == nil {
					if _, markErr := tx.Exec(ctx, `
						UPDATE simulation_outbox
						SET published_at = $2, last_error = NULL
						WHERE id = $1
					`, entry.ID, r.timeProvider.Now().UTC()); markErr != nil {
						return fmt.Errorf("mark outbox entry %d published: %w", entry.ID, markErr)
					}
					result.Published++
					continue
				}

				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				result.Failed++
				if _, recErr := tx.Exec(ctx, `
					UPDATE simulation_outbox
					SET attempts = attempts + 1, last_error = $2
					WHERE id = $1
				`, entry.ID, truncateError(pubErr)); recErr != nil {
					return errors.Join(pubErr, fmt.Errorf("record publish failure for entry %d: %w", entry.ID, recErr))
				}
				r.logger.WarnContext(ctx, "outbox publish failed",
					"outbox_id", entry.ID,
					"simulation_id", entry.SimulationID,
					"attempts", entry.Attempts+1,
					"error", pubErr,
				)
				break
			}
			return nil
		},
	})
	if err != nil {
		return model.DrainResult{}, err
	}
	return result, nil
}

func truncateError(err error) string {
	msg := err.Error()
	if len(msg) > maxRecordedPublishErrorLength {
		return msg[:maxRecordedPublishErrorLength]
	}
	return msg
}

// WaitForNotification waits for a PostgreSQL notification indicating new outbox entries are available.
func (r *OutboxRepo) WaitForNotification(ctx context.Context) error {
	conn, err := r.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get conn from pool: %w", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil && !errors.Is(cerr, sql.ErrConnDone) {
			r.logger.WarnContext(ctx, "release listen connection", "error", cerr)
		}
	}()

	quoted := pgx.Identifier{OutboxChannel}.Sanitize()
	if _, execErr := conn.ExecContext(ctx, "LISTEN "+quoted); execErr != nil {
		return fmt.Errorf("listen %s: %w", OutboxChannel, execErr)
	}
	defer func() {
		if _, execErr := conn.ExecContext(context.WithoutCancel(ctx), "UNLISTEN "+quoted); execErr != nil {
			r.logger.WarnContext(ctx, "unlisten outbox channel", "channel", OutboxChannel, "error", execErr)
		}
	}()

	return conn.Raw(func(dc any) error {
		sc, ok := dc.(*stdlib.Conn)
		if !ok {
			return errors.New("unexpected driver connection type; expected *stdlib.Conn")
		}
		_, notifyErr := sc.Conn().WaitForNotification(ctx)
		return notifyErr
	})
}

// PendingStats reports the unpublished backlog and up to failingLimit entries that have failed to publish.
func (r *OutboxRepo) PendingStats(ctx context.Context, failingLimit int) (*model.OutboxStats, error) {
	if failingLimit <= 0 {
		failingLimit = defaultOutboxFailingListLength
	}

	stats := &model.OutboxStats{}
	var oldest sql.NullTime
	if err := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*), MIN(created_at)
		FROM simulation_outbox
		WHERE published_at IS NULL
	`).Scan(&stats.Pending, &oldest); err != nil {
		return nil, fmt.Errorf("outbox backlog: %w", err)
	}
	if oldest.Valid {
		t := oldest.Time
		stats.OldestPending = &t
	}

	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT `+outboxColumns+`
			FROM simulation_outbox
			WHERE published_at IS NULL AND attempts > 0
			ORDER BY attempts DESC, id
			LIMIT $1
		`, failingLimit)
		if err != nil {
			return err
		}
		stats.Failing, err = collectOutbox(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list failing outbox entries: %w", err)
	}
	return stats, nil
}

// Requeue writes a fresh outbox entry for a simulation that is still Submitted. The message is rebuilt
// from the stored parameters. The row lock keeps a concurrent claim from racing the check.
func (r *OutboxRepo) Requeue(ctx context.Context, simulationID int64) (*model.OutboxEntry, error) {
	var entry *model.OutboxEntry
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Fn: func(tx pgx.Tx) error {
			rows, err := tx.Query(ctx, `
				SELECT `+simulationColumns+`
				FROM simulations
				WHERE id = $1
				FOR UPDATE
			`, simulationID)
			if err != nil {
				return err
			}
			row, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[simulationRow])
			if err != nil {
				return err
			}
			if model.SimulationStatus(row.Status) != model.SimulationStatusSubmitted {
				return ErrSimulationNotSubmitted
			}

			sim, err := row.toModel()
			if err != nil {
				return err
			}
			queue, err := r.lastQueueFor(ctx, tx, simulationID)
			if err != nil {
				return err
			}

			now := r.timeProvider.Now().UTC()
			msg := model.NewSimulationMessage(sim.ID, sim.UserID, sim.Title, sim.Parameters.Resolve())
			id, err := insertOutboxInTx(ctx, tx, outboxInsert{
				SimulationID: sim.ID,
				Queue:        queue,
				Message:      msg,
				Now:          now,
			})
			if err != nil {
				return err
			}

			out, err := tx.Query(ctx, `SELECT `+outboxColumns+` FROM simulation_outbox WHERE id = $1`, id)
			if err != nil {
				return err
			}
			created, err := pgx.CollectOneRow(out, pgx.RowToStructByName[outboxRow])
			if err != nil {
				return err
			}
			e := created.toModel()
			entry = &e

			if _, notifyErr := tx.Exec(ctx, `SELECT pg_notify($1::text, $2::text)`, OutboxChannel, sim.BatchID); notifyErr != nil {
				return fmt.Errorf("send outbox notification: %w", notifyErr)
			}
			return nil
		},
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSimulationNotFound
		}
		if errors.Is(err, ErrSimulationNotSubmitted) {
			return nil, err
		}
		return nil, fmt.Errorf("requeue simulation %d: %w", simulationID, err)
	}

	r.logger.InfoContext(ctx, "simulation requeued",
		"simulation_id", simulationID,
		"outbox_id", entry.ID,
		"message_id", entry.MessageID,
	)
	return entry, nil
}

// lastQueueFor returns the queue of the most recent outbox entry for a simulation.
// Entries may have been pruned, so the default queue is used when none remain.
func (r *OutboxRepo) lastQueueFor(ctx context.Context, tx pgx.Tx, simulationID int64) (string, error) {
	var queue string
	err := tx.QueryRow(ctx, `
		SELECT queue FROM simulation_outbox WHERE simulation_id = $1 ORDER BY id DESC LIMIT 1
	`, simulationID).Scan(&queue)
	if errors.Is(err, pgx.ErrNoRows) {
		return config.DefaultQueue, nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup outbox queue: %w", err)
	}
	return queue, nil
}

// DeletePublishedBefore deletes published outbox entries older than maxAge.
// Processes up to batchSize rows per call to prevent long locks and I/O spikes.
// Uses advisory locks to prevent concurrent reaper instances from conflicting.
func (r *OutboxRepo) DeletePublishedBefore(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	if batchSize <= 0 {
		return 0, errors.New("batch size must be greater than zero")
	}
	if maxAge <= 0 {
		return 0, errors.New("max age must be greater than zero")
	}

	var rowsAffected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			locked, err := pgxutil.TryAdvisoryXactLock(ctx, tx, pgxutil.AdvisoryLockKey{
				Major: advisoryLockReaperMajor,
				Minor: advisoryLockReaperPruneOutbox,
			})
			if err != nil {
				return err
			}
			if !locked {
				return nil
			}

			cutoff := r.timeProvider.Now().Add(-maxAge).UTC()
			res, err := tx.ExecContext(ctx, `
				DELETE FROM simulation_outbox
				WHERE id IN (
					SELECT id FROM simulation_outbox
					WHERE published_at IS NOT NULL
					  AND published_at < $1
					ORDER BY published_at
					LIMIT $2
				)
			`, cutoff, batchSize)
			if err != nil {
				return fmt.Errorf("delete published outbox entries: %w", err)
			}
			rowsAffected, err = res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return rowsAffected, nil
}

var _ core.OutboxRepository = (*OutboxRepo)(nil)
