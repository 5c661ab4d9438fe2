package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bilgisen/newswire/internal/models"
	"github.com/bilgisen/newswire/internal/storage"
	"github.com/rs/zerolog"
)

const lockName = "ingest"

// Preparer produces the batch of one category, ready for storage.
type Preparer interface {
	Prepare(ctx context.Context, category models.Category) (*models.ArticleBatch, error)
}

// Locker is a lock shared between service instances.
type Locker interface {
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (token string, ok bool, err error)
	ReleaseLock(ctx context.Context, name, token string) error
}

// State of the orchestrator.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// CategoryResult is the outcome of one category in a run.
type CategoryResult struct {
	Category models.Category `json:"category"`
	BatchResult
	Error string `json:"error,omitempty"`
}

// Result summarizes a run.
type Result struct {
	Skipped    bool             `json:"skipped"`
	StartedAt  time.Time        `json:"started_at,omitempty"`
	FinishedAt time.Time        `json:"finished_at,omitempty"`
	Categories []CategoryResult `json:"categories,omitempty"`
	Created    int              `json:"created"`
	Existing   int              `json:"existing"`
	Links      int              `json:"links"`
}

// Status is a snapshot of the orchestrator.
type Status struct {
	State      State      `json:"state"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	LastResult *Result    `json:"last_result,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
}

// Options tune an Orchestrator.
type Options struct {
	// Cooldown is the minimum time between successful runs. Zero disables it.
	Cooldown time.Duration
	// LockTTL bounds how long the distributed lock may be held.
	LockTTL time.Duration
	// Categories defaults to models.Categories().
	Categories []models.Category
}

// Orchestrator runs ingestion over every category. Only one run is active at
// a time; overlapping triggers return a skipped result.
type Orchestrator struct {
	store      storage.Store
	preparer   Preparer
	engine     *Engine
	pacer      Pacer
	locker     Locker
	cooldown   time.Duration
	lockTTL    time.Duration
	categories []models.Category
	log        zerolog.Logger
	now        func() time.Time

	running atomic.Bool

	mu     sync.RWMutex
	status Status
}

func NewOrchestrator(store storage.Store, preparer Preparer, opts Options, log zerolog.Logger) *Orchestrator {
	log = log.With().Str("component", "orchestrator").Logger()

	categories := opts.Categories
	if len(categories) == 0 {
		categories = models.Categories()
	}
	lockTTL := opts.LockTTL
	if lockTTL <= 0 {
		lockTTL = 30 * time.Minute
	}

	return &Orchestrator{
		store:      store,
		preparer:   preparer,
		engine:     NewEngine(log),
		pacer:      NoopPacer{},
		cooldown:   opts.Cooldown,
		lockTTL:    lockTTL,
		categories: categories,
		log:        log,
		now:        time.Now,
		status:     Status{State: StateIdle},
	}
}

// WithPacer sets the pacer waited on before every provider call.
func (o *Orchestrator) WithPacer(p Pacer) *Orchestrator {
	o.pacer = p
	return o
}

// WithLocker extends run coalescing across instances.
func (o *Orchestrator) WithLocker(l Locker) *Orchestrator {
	o.locker = l
	return o
}

// Status returns a snapshot of the current state.
func (o *Orchestrator) Status() Status {
	o.mu.RLock()
	defer o.mu.RUnlock()

	s := o.status
	if s.LastResult != nil {
		r := *s.LastResult
		r.Categories = append([]CategoryResult(nil), r.Categories...)
		s.LastResult = &r
	}
	return s
}

// Run performs one ingestion run. A call made while another run is active
// returns a skipped Result and no error.
func (o *Orchestrator) Run(ctx context.Context) (Result, error) {
	if !o.running.CompareAndSwap(false, true) {
		o.log.Info().Msg("Ingestion already running, skipping trigger")
		return Result{Skipped: true}, nil
	}
	defer o.running.Store(false)

	if o.locker != nil {
		token, ok, err := o.locker.AcquireLock(ctx, lockName, o.lockTTL)
		if err != nil {
			err = fmt.Errorf("failed to acquire ingest lock: %w", err)
			o.finish(Result{}, err)
			return Result{}, err
		}
		if !ok {
			o.log.Info().Msg("Ingestion running on another instance, skipping trigger")
			return Result{Skipped: true}, nil
		}
		defer func() {
			if err := o.locker.ReleaseLock(context.Background(), lockName, token); err != nil {
				o.log.Warn().Err(err).Msg("Failed to release ingest lock")
			}
		}()
	}

	started := o.now().UTC()
	o.mu.Lock()
	o.status.State = StateRunning
	o.status.StartedAt = &started
	o.status.FinishedAt = nil
	o.mu.Unlock()

	result, err := o.run(ctx, started)
	o.finish(result, err)
	return result, err
}

func (o *Orchestrator) run(ctx context.Context, started time.Time) (Result, error) {
	result := Result{StartedAt: started}

	last, found, err := o.store.LastCheckpoint(ctx)
	if err != nil {
		return result, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	if o.cooldown > 0 && found && started.Sub(last) < o.cooldown {
		cooldownErr := newCooldownError(last, started, o.cooldown)
		o.log.Info().
			Time("last_run", last).
			Int("days_remaining", cooldownErr.DaysRemaining).
			Msg("Ingestion rejected by cooldown")
		return result, cooldownErr
	}

	o.log.Info().
		Int("categories", len(o.categories)).
		Msg("Starting ingestion run")

	var errs []error
	for _, category := range o.categories {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := o.pacer.Wait(ctx); err != nil {
			errs = append(errs, err)
			break
		}

		cr, err := o.ingestCategory(ctx, category)
		if err != nil {
			cr.Error = err.Error()
			errs = append(errs, err)
			o.log.Error().
				Err(err).
				Str("category", category.String()).
				Msg("Category ingestion failed")
		} else {
			result.Created += cr.Created
			result.Existing += cr.Existing
			result.Links += cr.Links
		}
		result.Categories = append(result.Categories, cr)
	}

	result.FinishedAt = o.now().UTC()

	if len(errs) > 0 {
		return result, errors.Join(errs...)
	}

	if err := o.store.SaveCheckpoint(ctx, result.FinishedAt); err != nil {
		return result, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	o.log.Info().
		Int("created", result.Created).
		Int("existing", result.Existing).
		Int("links", result.Links).
		Dur("duration", result.FinishedAt.Sub(started)).
		Msg("Ingestion run completed")

	return result, nil
}

// ingestCategory prepares one category and stores it in a single transaction.
func (o *Orchestrator) ingestCategory(ctx context.Context, category models.Category) (CategoryResult, error) {
	cr := CategoryResult{Category: category}

	batch, err := o.preparer.Prepare(ctx, category)
	if err != nil {
		return cr, &CategoryError{Category: category, Kind: classify(err), Err: err}
	}

	var br BatchResult
	err = o.store.WithTx(ctx, func(w storage.ArticleWriter) error {
		var err error
		br, err = o.engine.IngestBatch(ctx, w, category, batch)
		return err
	})
	if err != nil {
		return cr, &CategoryError{Category: category, Kind: KindStorageFailure, Err: err}
	}

	cr.BatchResult = br
	return cr, nil
}

func (o *Orchestrator) finish(result Result, err error) {
	finished := o.now().UTC()

	o.mu.Lock()
	defer o.mu.Unlock()

	o.status.FinishedAt = &finished
	o.status.LastResult = &result
	if err != nil {
		o.status.State = StateFailed
		o.status.LastError = err.Error()
		return
	}
	o.status.State = StateCompleted
	o.status.LastError = ""
}
