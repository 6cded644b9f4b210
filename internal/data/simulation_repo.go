package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/target/simqueue/internal/core"
	"github.com/target/simqueue/internal/data/pgxutil"
	"github.com/target/simqueue/internal/domain/model"
)

// OutboxChannel is the LISTEN/NOTIFY channel signalled when outbox entries are written.
const OutboxChannel = "simulation_outbox"

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// SimulationRepoConfig holds configuration options for the simulation repository.
type SimulationRepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// SimulationRepo provides database operations for simulations.
type SimulationRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewSimulationRepo creates a new SimulationRepo.
func NewSimulationRepo(db *sql.DB, cfg SimulationRepoConfig) *SimulationRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SimulationRepo{
		DB:           db,
		timeProvider: tp,
		logger:       logger.With("component", "simulation_repo"),
	}
}

const simulationColumns = `
  id,
  user_id,
  batch_id::text AS batch_id,
  title,
  status,
  mode,
  substrate,
  duration,
  decay_rate,
  division_rate,
  x,
  y,
  z,
  tumor_count,
  tumor_movement,
  immune_count,
  immune_movement,
  stem_count,
  stem_movement,
  fibroblast_count,
  fibroblast_movement,
  drug_carrier_count,
  drug_carrier_movement,
  result,
  created_at,
  updated_at
`

const insertSimulationSQL = `
  INSERT INTO simulations (
    user_id, batch_id, title, mode, substrate, duration, decay_rate, division_rate,
    x, y, z, tumor_count, tumor_movement, immune_count, immune_movement,
    stem_count, stem_movement, fibroblast_count, fibroblast_movement,
    drug_carrier_count, drug_carrier_movement, status, created_at, updated_at
  ) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8,
    $9, $10, $11, $12, $13, $14, $15,
    $16, $17, $18, $19,
    $20, $21, 'Submitted', $22, $22
  )
  RETURNING id`

const insertOutboxSQL = `
  INSERT INTO simulation_outbox (simulation_id, queue, message_id, payload, created_at)
  VALUES ($1, $2, $3, $4, $5)
  RETURNING id`

// simulationRow mirrors one row of the simulations table.
type simulationRow struct {
	ID                  int64     `db:"id"`
	UserID              string    `db:"user_id"`
	BatchID             string    `db:"batch_id"`
	Title               string    `db:"title"`
	Status              string    `db:"status"`
	Mode                *string   `db:"mode"`
	Substrate           *string   `db:"substrate"`
	Duration            *float64  `db:"duration"`
	DecayRate           *float64  `db:"decay_rate"`
	DivisionRate        *float64  `db:"division_rate"`
	X                   *int      `db:"x"`
	Y                   *int      `db:"y"`
	Z                   *int      `db:"z"`
	TumorCount          *int      `db:"tumor_count"`
	TumorMovement       *string   `db:"tumor_movement"`
	ImmuneCount         *int      `db:"immune_count"`
	ImmuneMovement      *string   `db:"immune_movement"`
	StemCount           *int      `db:"stem_count"`
	StemMovement        *string   `db:"stem_movement"`
	FibroblastCount     *int      `db:"fibroblast_count"`
	FibroblastMovement  *string   `db:"fibroblast_movement"`
	DrugCarrierCount    *int      `db:"drug_carrier_count"`
	DrugCarrierMovement *string   `db:"drug_carrier_movement"`
	Result              []byte    `db:"result"`
	CreatedAt           time.Time `db:"created_at"`
	UpdatedAt           time.Time `db:"updated_at"`
}

func (row *simulationRow) toModel() (*model.Simulation, error) {
	sim := &model.Simulation{
		ID:        row.ID,
		UserID:    row.UserID,
		BatchID:   row.BatchID,
		Title:     row.Title,
		Status:    model.SimulationStatus(row.Status),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
		Parameters: model.SimulationInput{
			Substrate:           row.Substrate,
			Duration:            row.Duration,
			DecayRate:           row.DecayRate,
			DivisionRate:        row.DivisionRate,
			X:                   row.X,
			Y:                   row.Y,
			Z:                   row.Z,
			TumorCount:          row.TumorCount,
			TumorMovement:       row.TumorMovement,
			ImmuneCount:         row.ImmuneCount,
			ImmuneMovement:      row.ImmuneMovement,
			StemCount:           row.StemCount,
			StemMovement:        row.StemMovement,
			FibroblastCount:     row.FibroblastCount,
			FibroblastMovement:  row.FibroblastMovement,
			DrugCarrierCount:    row.DrugCarrierCount,
			DrugCarrierMovement: row.DrugCarrierMovement,
		},
	}
	if row.Mode != nil {
		mode := model.Mode(*row.Mode)
		sim.Parameters.Mode = &mode
	}
	if len(row.Result) > 0 {
		var res model.SimulationResult
		if err := json.Unmarshal(row.Result, &res); err != nil {
			return nil, fmt.Errorf("decode result for simulation %d: %w", row.ID, err)
		}
		sim.Result = &res
	}
	return sim, nil
}

func modeArg(m *model.Mode) *string {
	if m == nil {
		return nil
	}
	s := string(*m)
	return &s
}

func trimmedArg(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

// CreateBatch inserts every item with status Submitted and one outbox entry per row in a single
// transaction, then signals the relay. Any failure rolls back the whole batch.
func (r *SimulationRepo) CreateBatch(
	ctx context.Context,
	params core.CreateBatchParams,
) ([]model.CreatedSimulation, error) {
	if len(params.Items) == 0 {
		return nil, errors.New("batch has no items")
	}
	if strings.TrimSpace(params.UserID) == "" {
		return nil, errors.New("user id is required")
	}
	if strings.TrimSpace(params.Queue) == "" {
		return nil, errors.New("queue is required")
	}
	batchID := params.BatchID
	if batchID == "" {
		batchID = uuid.NewString()
	}

	now := r.timeProvider.Now().UTC()
	var created []model.CreatedSimulation
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Fn: func(tx pgx.Tx) error {
			created = make([]model.CreatedSimulation, 0, len(params.Items))
			for i := range params.Items {
				item := &params.Items[i]
				id, insertErr := r.insertSimulationInTx(ctx, tx, insertSimulationParams{
					UserID:  params.UserID,
					BatchID: batchID,
					Item:    item,
					Now:     now,
				})
				if insertErr != nil {
					return fmt.Errorf("insert simulation %d of %d: %w", i+1, len(params.Items), insertErr)
				}

				msg := model.NewSimulationMessage(id, params.UserID, item.Title, item.Params)
				if _, outboxErr := insertOutboxInTx(ctx, tx, outboxInsert{
					SimulationID: id,
					Queue:        params.Queue,
					Message:      msg,
					Now:          now,
				}); outboxErr != nil {
					return outboxErr
				}
				created = append(created, model.CreatedSimulation{ID: id, Title: item.Title})
			}

			if _, notifyErr := tx.Exec(ctx, `SELECT pg_notify($1::text, $2::text)`, OutboxChannel, batchID); notifyErr != nil {
				return fmt.Errorf("send outbox notification: %w", notifyErr)
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	r.logger.DebugContext(ctx, "simulation batch committed",
		"batch_id", batchID,
		"user_id", params.UserID,
		"count", len(created),
	)
	return created, nil
}

type insertSimulationParams struct {
	UserID  string
	BatchID string
	Item    *core.NewSimulation
	Now     time.Time
}

func (r *SimulationRepo) insertSimulationInTx(ctx context.Context, tx pgx.Tx, p insertSimulationParams) (int64, error) {
	in := p.Item.Input
	var id int64
	err := tx.QueryRow(ctx, insertSimulationSQL,
		p.UserID,
		p.BatchID,
		p.Item.Title,
		modeArg(in.Mode),
		trimmedArg(in.Substrate),
		in.Duration,
		in.DecayRate,
		in.DivisionRate,
		in.X,
		in.Y,
		in.Z,
		in.TumorCount,
		trimmedArg(in.TumorMovement),
		in.ImmuneCount,
		trimmedArg(in.ImmuneMovement),
		in.StemCount,
		trimmedArg(in.StemMovement),
		in.FibroblastCount,
		trimmedArg(in.FibroblastMovement),
		in.DrugCarrierCount,
		trimmedArg(in.DrugCarrierMovement),
		p.Now,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

type outboxInsert struct {
	SimulationID int64
	Queue        string
	Message      model.SimulationMessage
	Now          time.Time
}

func insertOutboxInTx(ctx context.Context, tx pgx.Tx, in outboxInsert) (int64, error) {
	payload, err := in.Message.Encode()
	if err != nil {
		return 0, fmt.Errorf("encode message for simulation %d: %w", in.SimulationID, err)
	}
	var id int64
	if err := tx.QueryRow(ctx, insertOutboxSQL,
		in.SimulationID, in.Queue, uuid.NewString(), payload, in.Now,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert outbox entry for simulation %d: %w", in.SimulationID, err)
	}
	return id, nil
}

// Claim moves a simulation from Submitted to Running. It returns false when no Submitted row matched.
func (r *SimulationRepo) Claim(ctx context.Context, id int64) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE simulations
		SET status = 'Running', updated_at = $2
		WHERE id = $1 AND status = 'Submitted'
	`, id, r.timeProvider.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("claim simulation %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Complete marks a simulation Done with its result. The write is unconditional on the current status.
// It returns false when the row no longer exists.
func (r *SimulationRepo) Complete(ctx context.Context, id int64, result *model.SimulationResult) (bool, error) {
	if result == nil {
		return false, errors.New("result is required")
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return false, fmt.Errorf("encode result: %w", err)
	}
	res, err := r.DB.ExecContext(ctx, `
		UPDATE simulations
		SET status = 'Done', result = $2::jsonb, updated_at = $3
		WHERE id = $1
	`, id, payload, r.timeProvider.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("complete simulation %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// GetByID retrieves a simulation by id regardless of owner.
func (r *SimulationRepo) GetByID(ctx context.Context, id int64) (*model.Simulation, error) {
	return r.getOne(ctx, `SELECT `+simulationColumns+` FROM simulations WHERE id = $1`, id)
}

// GetForOwner retrieves a simulation owned by owner. Another owner's row is reported as not found.
func (r *SimulationRepo) GetForOwner(ctx context.Context, id int64, owner string) (*model.Simulation, error) {
	return r.getOne(ctx, `SELECT `+simulationColumns+` FROM simulations WHERE id = $1 AND user_id = $2`, id, owner)
}

func (r *SimulationRepo) getOne(ctx context.Context, q string, args ...any) (*model.Simulation, error) {
	var row simulationRow
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		row, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[simulationRow])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSimulationNotFound
		}
		return nil, fmt.Errorf("get simulation: %w", err)
	}
	return row.toModel()
}

// ListByOwner returns the owner's simulations, newest first.
func (r *SimulationRepo) ListByOwner(ctx context.Context, opts model.SimulationListOptions) ([]*model.Simulation, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)
	offset := max(opts.Offset, 0)

	var rows []simulationRow
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		res, err := conn.Query(ctx, `
			SELECT `+simulationColumns+`
			FROM simulations
			WHERE user_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2 OFFSET $3
		`, opts.UserID, limit, offset)
		if err != nil {
			return err
		}
		defer res.Close()
		rows, err = pgx.CollectRows(res, pgx.RowToStructByName[simulationRow])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list simulations: %w", err)
	}

	out := make([]*model.Simulation, 0, len(rows))
	for i := range rows {
		sim, convErr := rows[i].toModel()
		if convErr != nil {
			return nil, convErr
		}
		out = append(out, sim)
	}
	return out, nil
}

// DeleteForOwner removes the owner's simulation and, by cascade, its outbox entries.
func (r *SimulationRepo) DeleteForOwner(ctx context.Context, id int64, owner string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM simulations WHERE id = $1 AND user_id = $2`, id, owner)
	if err != nil {
		return fmt.Errorf("delete simulation %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrSimulationNotFound
	}
	return nil
}

// Stats counts simulations per status. An empty owner counts every row.
func (r *SimulationRepo) Stats(ctx context.Context, owner string) (*model.SimulationStats, error) {
	var stats model.SimulationStats
	err := r.DB.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'Submitted'),
			COUNT(*) FILTER (WHERE status = 'Running'),
			COUNT(*) FILTER (WHERE status = 'Done')
		FROM simulations
		WHERE $1::text = '' OR user_id = $1
	`, owner).Scan(&stats.Submitted, &stats.Running, &stats.Done)
	if err != nil {
		return nil, fmt.Errorf("simulation stats: %w", err)
	}
	return &stats, nil
}

var _ core.SimulationRepository = (*SimulationRepo)(nil)
