package data

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/target/simqueue/internal/core"
	"github.com/target/simqueue/internal/data/pgxutil"
	"github.com/target/simqueue/internal/domain/model"
)

func validateStaleQuery(q core.StaleQuery) error {
	if q.Status != model.SimulationStatusSubmitted && q.Status != model.SimulationStatusRunning {
		return fmt.Errorf("invalid stale status: %q", q.Status)
	}
	if q.MaxAge <= 0 {
		return errors.New("max age must be greater than zero")
	}
	return nil
}

// CountStale counts simulations whose status has not changed for longer than q.MaxAge.
func (r *SimulationRepo) CountStale(ctx context.Context, q core.StaleQuery) (int64, error) {
	if err := validateStaleQuery(q); err != nil {
		return 0, err
	}
	cutoff := r.timeProvider.Now().Add(-q.MaxAge).UTC()

	var n int64
	if err := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM simulations
		WHERE status = $1 AND updated_at < $2
	`, string(q.Status), cutoff).Scan(&n); err != nil {
		return 0, fmt.Errorf("count stale simulations: %w", err)
	}
	return n, nil
}

// ListStale lists up to q.Limit simulations stuck in q.Status, oldest first.
func (r *SimulationRepo) ListStale(ctx context.Context, q core.StaleQuery) ([]model.StuckSimulation, error) {
	if err := validateStaleQuery(q); err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)
	cutoff := r.timeProvider.Now().Add(-q.MaxAge).UTC()

	var out []model.StuckSimulation
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT id, user_id, title, status, updated_at
			FROM simulations
			WHERE status = $1 AND updated_at < $2
			ORDER BY updated_at, id
			LIMIT $3
		`, string(q.Status), cutoff, limit)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.StuckSimulation, error) {
			var s model.StuckSimulation
			var status string
			scanErr := row.Scan(&s.ID, &s.UserID, &s.Title, &status, &s.UpdatedAt)
			s.Status = model.SimulationStatus(status)
			return s, scanErr
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list stale simulations: %w", err)
	}
	return out, nil
}
