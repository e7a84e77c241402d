package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/riverqueue/river/rivertype"
)

// ClientConfig configures the River client.
type ClientConfig struct {
	MaxWorkers  int
	MaxAttempts int
	Logger      *slog.Logger
}

// NewRiverClient creates a River client with worker registered on QueueEmbeddings.
// The client can insert right away; call Start to process jobs.
func NewRiverClient(pool *pgxpool.Pool, worker *EmbeddingWorker, cfg ClientConfig) (*river.Client[pgx.Tx], error) {
	workers := river.NewWorkers()
	river.AddWorker(workers, worker)

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			QueueEmbeddings: {MaxWorkers: max(cfg.MaxWorkers, 1)},
		},
		Workers:      workers,
		MaxAttempts:  cfg.MaxAttempts,
		ErrorHandler: NewErrorHandler(cfg.Logger),
		Logger:       cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create River client: %w", err)
	}

	return client, nil
}

// Migrate applies River's schema migrations and returns the versions it applied.
func Migrate(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) ([]int, error) {
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), &rivermigrate.Config{Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("create River migrator: %w", err)
	}

	res, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil)
	if err != nil {
		return nil, fmt.Errorf("migrate River schema: %w", err)
	}

	versions := make([]int, 0, len(res.Versions))
	for _, v := range res.Versions {
		versions = append(versions, v.Version)
	}

	return versions, nil
}

// WaitStats counts how the awaited jobs finished.
type WaitStats struct {
	Completed int `json:"completed" yaml:"completed"`
	Discarded int `json:"discarded" yaml:"discarded"`
	Cancelled int `json:"cancelled" yaml:"cancelled"`
	// Missing counts jobs that were gone when polled, e.g. removed by River's job cleaner.
	Missing int `json:"missing,omitempty" yaml:"missing,omitempty"`
}

// SubscribeKinds are the events WaitForJobs needs from Client.Subscribe.
var SubscribeKinds = []river.EventKind{
	river.EventKindJobCompleted,
	river.EventKindJobCancelled,
	river.EventKindJobFailed,
}

// minSubscribeChanSize matches River's default subscription buffer.
const minSubscribeChanSize = 1000

// DefaultWaitPollInterval is how often WaitForJobs asks the database about jobs it has no final event for.
const DefaultWaitPollInterval = 5 * time.Second

// Subscribe subscribes to SubscribeKinds with a buffer of at least expected events.
// River drops events for a full subscriber, so size it to the backlog when known.
func Subscribe(client *river.Client[pgx.Tx], expected int) (<-chan *river.Event, func()) {
	return client.SubscribeConfig(&river.SubscribeConfig{
		ChanSize: max(expected, minSubscribeChanSize),
		Kinds:    SubscribeKinds,
	})
}

// JobGetter looks up a job row. *river.Client satisfies it.
type JobGetter interface {
	JobGet(ctx context.Context, id int64) (*rivertype.JobRow, error)
}

// WaitForJobs reads events until every job in ids has reached a final state.
// A failed attempt that River will retry does not count as final.
// When jobs is non-nil, jobs still pending are looked up every pollInterval
// (DefaultWaitPollInterval when <= 0), so events dropped by a full subscription cannot stall the wait.
func WaitForJobs(ctx context.Context, events <-chan *river.Event, ids []int64, jobs JobGetter, pollInterval time.Duration) (*WaitStats, error) {
	pending := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		pending[id] = struct{}{}
	}

	stats := &WaitStats{}

	var tick <-chan time.Time

	if jobs != nil && len(pending) > 0 {
		if pollInterval <= 0 {
			pollInterval = DefaultWaitPollInterval
		}

		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		tick = ticker.C
	}

	for len(pending) > 0 {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case <-tick:
			if err := pollPending(ctx, jobs, pending, stats); err != nil {
				return stats, err
			}
		case ev, ok := <-events:
			if !ok {
				return stats, fmt.Errorf("event stream closed with %d job(s) outstanding", len(pending))
			}

			if ev == nil || ev.Job == nil {
				continue
			}

			if _, ok := pending[ev.Job.ID]; !ok {
				continue
			}

			if ev.Kind == river.EventKindJobFailed && ev.Job.State != rivertype.JobStateDiscarded {
				continue
			}

			if countFinal(stats, ev.Job.State) {
				delete(pending, ev.Job.ID)
			}
		}
	}

	return stats, nil
}

func pollPending(ctx context.Context, jobs JobGetter, pending map[int64]struct{}, stats *WaitStats) error {
	for id := range pending {
		row, err := jobs.JobGet(ctx, id)
		if errors.Is(err, river.ErrNotFound) {
			stats.Missing++
			delete(pending, id)

			continue
		}

		if err != nil {
			return fmt.Errorf("get job %d: %w", id, err)
		}

		if countFinal(stats, row.State) {
			delete(pending, id)
		}
	}

	return nil
}

// countFinal adds a job in state to stats and reports whether the state is final.
func countFinal(stats *WaitStats, state rivertype.JobState) bool {
	switch state {
	case rivertype.JobStateCompleted:
		stats.Completed++
	case rivertype.JobStateCancelled:
		stats.Cancelled++
	case rivertype.JobStateDiscarded:
		stats.Discarded++
	default:
		return false
	}

	return true
}
