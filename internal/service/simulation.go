package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/target/simqueue/config"
	"github.com/target/simqueue/internal/core"
	"github.com/target/simqueue/internal/data"
	"github.com/target/simqueue/internal/domain/model"
	apperrors "github.com/target/simqueue/internal/errors"
	"github.com/target/simqueue/internal/observability/metrics"
	"github.com/target/simqueue/internal/observability/statsd"
	"golang.org/x/sync/singleflight"
)

const (
	resultCachePrefix      = "simulation:result:"
	idempotencyCachePrefix = "simulation:idempotency:"
	maxIdempotencyKeyLen   = 255
)

// ErrDuplicateRequest is wrapped by CreateBatch when an idempotency key has already been used.
var ErrDuplicateRequest = errors.New("duplicate request")

// SimulationServiceOptions groups dependencies for SimulationService.
type SimulationServiceOptions struct {
	Repo           core.SimulationRepository // Required: simulation repository
	Cache          core.CacheRepository      // Optional: result cache and idempotency keys
	Queue          string                    // Optional: defaults to config.DefaultQueue
	ResultTTL      time.Duration             // Optional: TTL of cached Done results (default 10m)
	IdempotencyTTL time.Duration             // Optional: lifetime of idempotency keys (default 24h)
	Logger         *slog.Logger              // Optional: structured logger
	Metrics        statsd.Sink               // Optional: metrics sink
	NewBatchID     func() string             // Optional: defaults to uuid.NewString
}

// SimulationService implements the producer and the result reader on top of the simulation store.
type SimulationService struct {
	repo           core.SimulationRepository
	cache          core.CacheRepository
	queue          string
	resultTTL      time.Duration
	idempotencyTTL time.Duration
	logger         *slog.Logger
	metrics        statsd.Sink
	newBatchID     func() string
	results        singleflight.Group
}

// NewSimulationService constructs a new SimulationService.
func NewSimulationService(opts SimulationServiceOptions) (*SimulationService, error) {
	if opts.Repo == nil {
		return nil, errors.New("SimulationRepository is required")
	}

	queue := strings.TrimSpace(opts.Queue)
	if queue == "" {
		queue = config.DefaultQueue
	}
	resultTTL := opts.ResultTTL
	if resultTTL <= 0 {
		resultTTL = 10 * time.Minute
	}
	idemTTL := opts.IdempotencyTTL
	if idemTTL <= 0 {
		idemTTL = 24 * time.Hour
	}
	newBatchID := opts.NewBatchID
	if newBatchID == nil {
		newBatchID = uuid.NewString
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &SimulationService{
		repo:           opts.Repo,
		cache:          opts.Cache,
		queue:          queue,
		resultTTL:      resultTTL,
		idempotencyTTL: idemTTL,
		logger:         logger.With("component", "simulation_service"),
		metrics:        opts.Metrics,
		newBatchID:     newBatchID,
	}, nil
}

// CreateBatch validates req and stores count simulations together with their queue messages in one
// transaction. The returned ids are only handed out after commit. A non-empty idempotencyKey is
// reserved per owner; reusing it within the TTL fails with a conflict wrapping ErrDuplicateRequest.
func (s *SimulationService) CreateBatch(
	ctx context.Context,
	owner string,
	req *model.CreateBatchRequest,
	idempotencyKey string,
) (*model.BatchResult, error) {
	if owner == "" {
		return nil, apperrors.Unauthorized("authentication required")
	}
	if req == nil {
		return nil, apperrors.Validation("request body is required")
	}
	if err := req.Validate(); err != nil {
		return nil, fieldErrorToApp(err)
	}

	release, err := s.reserveIdempotencyKey(ctx, owner, idempotencyKey)
	if err != nil {
		return nil, err
	}

	params := s.buildBatch(owner, req)
	created, err := s.repo.CreateBatch(ctx, params)
	if err != nil {
		release(ctx)
		return nil, apperrors.MapDBError(fmt.Errorf("create batch: %w", err))
	}

	metrics.EmitBatchCreated(s.metrics, len(created))
	s.logger.InfoContext(ctx, "simulation batch created",
		"batch_id", params.BatchID,
		"user_id", owner,
		"count", len(created),
	)

	return &model.BatchResult{BatchID: params.BatchID, Simulations: created}, nil
}

func (s *SimulationService) buildBatch(owner string, req *model.CreateBatchRequest) core.CreateBatchParams {
	in := req.SimulationData
	msgParams := in.Resolve()

	base := ""
	if in.Title != nil {
		base = *in.Title
	}

	items := make([]core.NewSimulation, req.Count)
	for i := range items {
		items[i] = core.NewSimulation{
			Title:  model.BatchTitle(base, i, req.Count),
			Input:  in,
			Params: msgParams,
		}
	}

	return core.CreateBatchParams{
		BatchID: s.newBatchID(),
		UserID:  owner,
		Queue:   s.queue,
		Items:   items,
	}
}

// reserveIdempotencyKey claims key for owner and returns a func that releases it again.
// Without a cache or key the request is not deduplicated.
func (s *SimulationService) reserveIdempotencyKey(
	ctx context.Context,
	owner, key string,
) (func(context.Context), error) {
	noop := func(context.Context) {}
	key = strings.TrimSpace(key)
	if key == "" || s.cache == nil {
		return noop, nil
	}
	if len(key) > maxIdempotencyKeyLen {
		return nil, apperrors.ValidationField("Idempotency-Key",
			fmt.Sprintf("idempotency key cannot exceed %d characters", maxIdempotencyKeyLen))
	}

	cacheKey := idempotencyCachePrefix + owner + ":" + key
	ok, err := s.cache.SetIfNotExists(ctx, cacheKey, []byte(time.Now().UTC().Format(time.RFC3339)), s.idempotencyTTL)
	if err != nil {
		// A cache outage must not block producers.
		s.logger.WarnContext(ctx, "idempotency reservation failed", "error", err)
		return noop, nil
	}
	if !ok {
		return nil, apperrors.Wrap(ErrDuplicateRequest, apperrors.ErrCodeConflict,
			"a request with this idempotency key was already accepted")
	}

	return func(ctx context.Context) {
		if _, delErr := s.cache.Delete(context.WithoutCancel(ctx), cacheKey); delErr != nil {
			s.logger.WarnContext(ctx, "idempotency release failed", "error", delErr)
		}
	}, nil
}

// cachedResult is the cache representation of a Done simulation.
type cachedResult struct {
	UserID string                  `json:"userId"`
	Result *model.SimulationResult `json:"result"`
}

// GetResult returns the result of a Done simulation owned by owner. Unknown ids and other owners'
// simulations are not found; simulations that are not Done yet are not ready.
func (s *SimulationService) GetResult(ctx context.Context, id int64, owner string) (*model.SimulationResult, error) {
	if owner == "" {
		return nil, apperrors.Unauthorized("authentication required")
	}

	if cached := s.cachedResult(ctx, id); cached != nil {
		if cached.UserID != owner {
			return nil, notFound(id)
		}
		return cached.Result, nil
	}

	// The shared lookup outlives any single caller; each caller still stops waiting on its own ctx.
	flightCtx := context.WithoutCancel(ctx)
	ch := s.results.DoChan(strconv.FormatInt(id, 10), func() (any, error) {
		return s.repo.GetByID(flightCtx, id)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("get simulation %d result: %w", id, ctx.Err())
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, mapSimulationError(res.Err, id)
	}
	sim, _ := res.Val.(*model.Simulation)
	if sim == nil || sim.UserID != owner {
		return nil, notFound(id)
	}
	if sim.Status != model.SimulationStatusDone || sim.Result == nil {
		return nil, apperrors.NotReady("simulation is not ready")
	}

	s.storeResult(ctx, sim)
	return sim.Result, nil
}

func (s *SimulationService) cachedResult(ctx context.Context, id int64) *cachedResult {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, resultCacheKey(id))
	if err != nil {
		s.logger.WarnContext(ctx, "result cache read failed", "simulation_id", id, "error", err)
		return nil
	}
	if raw == nil {
		return nil
	}
	var out cachedResult
	if err := json.Unmarshal(raw, &out); err != nil || out.Result == nil {
		return nil
	}
	return &out
}

func (s *SimulationService) storeResult(ctx context.Context, sim *model.Simulation) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(cachedResult{UserID: sim.UserID, Result: sim.Result})
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, resultCacheKey(sim.ID), raw, s.resultTTL); err != nil {
		s.logger.WarnContext(ctx, "result cache write failed", "simulation_id", sim.ID, "error", err)
	}
}

// Get returns one simulation owned by owner.
func (s *SimulationService) Get(ctx context.Context, id int64, owner string) (*model.Simulation, error) {
	if owner == "" {
		return nil, apperrors.Unauthorized("authentication required")
	}
	sim, err := s.repo.GetForOwner(ctx, id, owner)
	if err != nil {
		return nil, mapSimulationError(err, id)
	}
	return sim, nil
}

// List returns owner's simulations, newest first.
func (s *SimulationService) List(ctx context.Context, opts model.SimulationListOptions) ([]*model.Simulation, error) {
	if opts.UserID == "" {
		return nil, apperrors.Unauthorized("authentication required")
	}
	sims, err := s.repo.ListByOwner(ctx, opts)
	if err != nil {
		return nil, apperrors.MapDBError(fmt.Errorf("list simulations: %w", err))
	}
	return sims, nil
}

// Delete removes a simulation owned by owner and drops its cached result.
func (s *SimulationService) Delete(ctx context.Context, id int64, owner string) error {
	if owner == "" {
		return apperrors.Unauthorized("authentication required")
	}
	if err := s.repo.DeleteForOwner(ctx, id, owner); err != nil {
		return mapSimulationError(err, id)
	}
	if s.cache != nil {
		if _, err := s.cache.Delete(ctx, resultCacheKey(id)); err != nil {
			s.logger.WarnContext(ctx, "result cache invalidation failed", "simulation_id", id, "error", err)
		}
	}
	return nil
}

// Stats counts owner's simulations per status. An empty owner counts every simulation.
func (s *SimulationService) Stats(ctx context.Context, owner string) (*model.SimulationStats, error) {
	stats, err := s.repo.Stats(ctx, owner)
	if err != nil {
		return nil, apperrors.MapDBError(fmt.Errorf("simulation stats: %w", err))
	}
	return stats, nil
}

func resultCacheKey(id int64) string {
	return resultCachePrefix + strconv.FormatInt(id, 10)
}

func notFound(id int64) error {
	return apperrors.NotFoundf("simulation %d not found", id)
}

func mapSimulationError(err error, id int64) error {
	if errors.Is(err, data.ErrSimulationNotFound) {
		return notFound(id)
	}
	return apperrors.MapDBError(err)
}

// fieldErrorToApp converts model validation failures into validation AppErrors.
func fieldErrorToApp(err error) error {
	var fe *model.FieldError
	if errors.As(err, &fe) {
		return apperrors.ValidationField(fe.Field, fe.Message)
	}
	return apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid simulation parameters")
}
