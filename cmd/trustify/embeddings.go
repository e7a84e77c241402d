package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/trustify/backend/internal/config"
	"github.com/trustify/backend/internal/jobs"
	"github.com/trustify/backend/internal/observability"
	"github.com/trustify/backend/internal/repository"
	"github.com/trustify/backend/pkg/database"
)

// backfillReport is what "embeddings backfill" prints.
type backfillReport struct {
	jobs.BackfillStats `yaml:",inline"`

	Wait *jobs.WaitStats `json:"wait,omitempty" yaml:"wait,omitempty"`
}

func newEmbeddingsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "embeddings",
		Short: "Backfill item embeddings through the River job queue",
		Long: `Queues an embedding job for every item whose embedding is null and runs the workers that
embed the text with EMBEDDING_PROVIDER and store it with update_item_embedding_normalized.
Needs DATABASE_URL. Run "embeddings migrate" once to create River's tables.`,
	}

	cmd.AddCommand(
		newEmbeddingsMigrateCmd(c),
		newEmbeddingsBackfillCmd(c),
		newEmbeddingsWorkCmd(c),
	)

	return cmd
}

func newEmbeddingsMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the River job tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.cfg.RequireDatabase(); err != nil {
				return err
			}

			pool, err := database.NewPostgresPool(cmd.Context(), c.cfg.DatabaseURL, database.WithMaxConns(c.cfg.DatabaseMaxConns))
			if err != nil {
				return err
			}
			defer pool.Close()

			versions, err := jobs.Migrate(cmd.Context(), pool, c.logger)
			if err != nil {
				return err
			}

			if len(versions) == 0 {
				fmt.Fprintln(c.out, "River schema is up to date.")

				return nil
			}

			fmt.Fprintf(c.out, "Applied River migration(s): %v\n", versions)

			return nil
		},
	}
}

func newEmbeddingsBackfillCmd(c *cli) *cobra.Command {
	var (
		sessionID string
		limit     int
		wait      bool
		output    string
	)

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Queue embedding jobs for items without an embedding",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}

			ctx := cmd.Context()

			q, err := c.openQueue(ctx)
			if err != nil {
				return err
			}
			defer q.close()

			params := jobs.BackfillParams{Limit: limit}
			if sessionID != "" {
				params.SessionID = &sessionID
			}

			inserter := jobs.NewRiverJobInserter(q.client, c.cfg.EmbeddingMaxAttempts)
			report := backfillReport{}

			if !wait {
				stats, err := jobs.Backfill(ctx, q.repo, inserter, params, c.logger)
				if err != nil {
					return err
				}

				report.BackfillStats = *stats

				return renderBackfill(c, output, report)
			}

			events, cancelEvents := jobs.Subscribe(q.client, limit)
			defer cancelEvents()

			if err := q.client.Start(ctx); err != nil {
				return fmt.Errorf("start River client: %w", err)
			}
			defer c.stopQueue(q.client)

			stats, err := jobs.Backfill(ctx, q.repo, inserter, params, c.logger)
			if err != nil {
				return err
			}

			report.BackfillStats = *stats

			report.Wait, err = jobs.WaitForJobs(ctx, events, report.JobIDs, q.client, jobs.DefaultWaitPollInterval)
			if err != nil {
				return err
			}

			return renderBackfill(c, output, report)
		},
	}

	f := cmd.Flags()
	f.StringVar(&sessionID, "session", "", "Only backfill items of this session")
	f.IntVar(&limit, "limit", 0, "Queue at most this many items (0 = all)")
	f.BoolVar(&wait, "wait", false, "Run the workers in this process and wait for the queued jobs to finish")
	f.StringVarP(&output, "output", "o", outputTable, "Output format: table, json or yaml")

	return cmd
}

func newEmbeddingsWorkCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "work",
		Short: "Process embedding jobs until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			q, err := c.openQueue(ctx)
			if err != nil {
				return err
			}
			defer q.close()

			if err := q.client.Start(ctx); err != nil {
				return fmt.Errorf("start River client: %w", err)
			}

			c.logger.InfoContext(ctx, "Embedding workers started",
				"queue", jobs.QueueEmbeddings, "max_workers", c.cfg.EmbeddingMaxWorkers)

			<-ctx.Done()
			c.stopQueue(q.client)

			return nil
		},
	}
}

// queue bundles what the embeddings commands share. Call close when done.
type queue struct {
	pool   *pgxpool.Pool
	repo   *repository.PostgresItemsRepository
	client *river.Client[pgx.Tx]

	// flushMetrics pushes buffered job metrics; nil when metrics are off.
	flushMetrics func()
}

func (q *queue) close() {
	q.pool.Close()

	if q.flushMetrics != nil {
		q.flushMetrics()
	}
}

// jobMetrics starts the OTLP meter provider when OTEL_METRICS_EXPORTER=otlp. The CLI has no
// scrape endpoint, so "prometheus" is reported and ignored. The returned flush may be nil.
func (c *cli) jobMetrics(ctx context.Context) (observability.JobMetrics, func(), error) {
	switch c.cfg.MetricsExporter {
	case "":
		return nil, nil, nil
	case observability.MetricsExporterOTLP:
	default:
		c.logger.WarnContext(ctx, "job metrics not exported: the CLI only pushes over OTLP",
			"exporter", c.cfg.MetricsExporter)

		return nil, nil, nil
	}

	mp, meter, err := observability.NewOTLPMeterProvider(ctx, observability.MeterProviderConfig{ServiceName: c.cfg.ServiceName})
	if err != nil {
		return nil, nil, fmt.Errorf("create OTLP meter provider: %w", err)
	}

	flush := func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ShutdownTimeout)
		defer cancel()

		if err := mp.Shutdown(ctx); err != nil {
			c.logger.Error("shutdown meter provider", "error", err)
		}
	}

	metrics, err := observability.NewJobMetrics(meter)
	if err != nil {
		flush()

		return nil, nil, fmt.Errorf("create job metrics: %w", err)
	}

	return metrics, flush, nil
}

// openQueue connects to the database and builds the River client with the embedding worker registered.
func (c *cli) openQueue(ctx context.Context) (*queue, error) {
	if err := errors.Join(c.cfg.RequireDatabase(), c.cfg.RequireEmbeddings()); err != nil {
		return nil, err
	}

	embeddingClient, err := c.embeddingClient(ctx)
	if err != nil {
		return nil, err
	}

	if embeddingClient == nil {
		return nil, fmt.Errorf("%w (got %q)", config.ErrEmbeddingsNotConfigured, c.cfg.EmbeddingProvider)
	}

	metrics, flushMetrics, err := c.jobMetrics(ctx)
	if err != nil {
		return nil, err
	}

	pool, err := database.NewPostgresPool(ctx, c.cfg.DatabaseURL, database.WithMaxConns(c.cfg.DatabaseMaxConns))
	if err != nil {
		if flushMetrics != nil {
			flushMetrics()
		}

		return nil, err
	}

	q := &queue{pool: pool, repo: repository.NewPostgresItemsRepository(pool), flushMetrics: flushMetrics}

	var limiter *rate.Limiter
	if c.cfg.EmbeddingRateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(c.cfg.EmbeddingRateLimit), 1)
	}

	worker := jobs.NewEmbeddingWorker(jobs.EmbeddingWorkerDeps{
		EmbeddingClient: embeddingClient,
		Updater:         q.repo,
		RateLimiter:     limiter,
		Metrics:         metrics,
		Logger:          c.logger,
	})

	q.client, err = jobs.NewRiverClient(pool, worker, jobs.ClientConfig{
		MaxWorkers:  c.cfg.EmbeddingMaxWorkers,
		MaxAttempts: c.cfg.EmbeddingMaxAttempts,
		Logger:      c.logger,
	})
	if err != nil {
		q.close()

		return nil, err
	}

	return q, nil
}

// stopQueue waits up to ShutdownTimeout for running jobs to finish.
func (c *cli) stopQueue(client *river.Client[pgx.Tx]) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ShutdownTimeout)
	defer cancel()

	if err := client.Stop(ctx); err != nil {
		c.logger.Error("River stop", "error", err)
	}
}

func renderBackfill(c *cli, output string, report backfillReport) error {
	return render(c.out, output, report, func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "found:\t%d\nenqueued:\t%d\nduplicates:\t%d\nerrors:\t%d\n",
			report.Found, report.Enqueued, report.Duplicates, report.Errors)

		if report.Wait != nil {
			fmt.Fprintf(tw, "completed:\t%d\ndiscarded:\t%d\ncancelled:\t%d\nmissing:\t%d\n",
				report.Wait.Completed, report.Wait.Discarded, report.Wait.Cancelled, report.Wait.Missing)
		}
	})
}
