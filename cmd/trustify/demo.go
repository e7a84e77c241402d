package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/trustify/backend/internal/embeddings"
	"github.com/trustify/backend/internal/models"
	"github.com/trustify/backend/internal/repository"
	"github.com/trustify/backend/internal/service"
	"github.com/trustify/backend/pkg/database"
)

// Item store backends accepted by --backend.
const (
	backendRPC      = "rpc"
	backendPostgres = "postgres"
)

var errInvalidBackend = errors.New("--backend must be one of: rpc, postgres")

func newDemoCmd(c *cli) *cobra.Command {
	params := service.DefaultDemoParams()

	var (
		backend string
		output  string
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Insert a text item, label it, embed it and search its neighbours",
		Long: `Runs upsert_text_item, update_ai_result, update_embedding and search_topk in order and stops
at the first failure. Each step is a single attempt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}

			ctx := cmd.Context()

			store, closeStore, err := c.itemStore(ctx, backend)
			if err != nil {
				return err
			}
			defer closeStore()

			embeddingClient, err := c.embeddingClient(ctx)
			if err != nil {
				return err
			}

			demo := service.NewDemoService(service.DemoServiceParams{
				Store:           store,
				EmbeddingClient: embeddingClient,
				Logger:          c.logger,
			})

			result, err := demo.Run(ctx, params)
			if err != nil {
				return err
			}

			return render(c.out, output, result, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "item_id:\t%s\n", result.ItemID)
				fmt.Fprintf(tw, "ai_saved:\t%t\n", result.AISaved)
				fmt.Fprintf(tw, "embedding_saved:\t%t\n\n", result.EmbeddingSaved)
				fmt.Fprintln(tw, "ID\tSESSION\tKIND\tPREVIEW\tDISTANCE")

				for _, hit := range result.Hits {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.6f\n", hit.ID, hit.SessionID, hit.Kind, hit.Preview, hit.Distance)
				}
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&params.SessionID, "session", params.SessionID, "Session id of the item")
	f.StringVar(&params.Text, "text", params.Text, "Item text")
	f.StringVar(&params.Preview, "preview", params.Preview, "Item preview")
	f.StringVar(&params.Source, "source", params.Source, "Item source")
	f.StringVar(&params.Provider, "provider", params.Provider, "AI result provider")
	f.StringVar(&params.Label, "label", params.Label, "AI result label")
	f.Float64Var(&params.Score, "score", params.Score, "AI result score")
	f.IntVar(&params.K, "k", params.K, "Number of neighbours to return")
	f.BoolVar(&params.AllSessions, "all-sessions", false, "Search every session instead of --session")
	f.BoolVar(&params.OnlyNonZero, "only-nonzero", params.OnlyNonZero, "Skip items whose embedding has zero norm")
	f.BoolVar(&params.SkipAI, "skip-ai", false, "Skip update_ai_result")
	f.BoolVar(&params.SkipEmbedding, "skip-embedding", false, "Skip update_embedding")
	f.StringVar(&backend, "backend", backendRPC, "Item store: rpc (PostgREST) or postgres (DATABASE_URL)")
	f.StringVarP(&output, "output", "o", outputTable, "Output format: table, json or yaml")

	return cmd
}

// itemStore opens the selected backend. The returned func releases it.
func (c *cli) itemStore(ctx context.Context, backend string) (service.ItemStore, func(), error) {
	switch backend {
	case backendRPC:
		client, err := c.supabaseClient(false)
		if err != nil {
			return nil, nil, err
		}

		return repository.NewRPCItemsRepository(client), func() {}, nil
	case backendPostgres:
		if err := c.cfg.RequireDatabase(); err != nil {
			return nil, nil, err
		}

		pool, err := database.NewPostgresPool(ctx, c.cfg.DatabaseURL, database.WithMaxConns(c.cfg.DatabaseMaxConns))
		if err != nil {
			return nil, nil, err
		}

		return repository.NewPostgresItemsRepository(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w (got %q)", errInvalidBackend, backend)
	}
}

// embeddingClient builds the configured provider. It returns nil when EMBEDDING_PROVIDER is unset.
func (c *cli) embeddingClient(ctx context.Context) (embeddings.Client, error) {
	client, err := embeddings.NewClient(ctx, embeddings.Config{
		Provider:   c.cfg.EmbeddingProvider,
		APIKey:     c.cfg.EmbeddingAPIKey,
		Model:      c.cfg.EmbeddingModel,
		BaseURL:    c.cfg.EmbeddingBaseURL,
		Dimensions: models.EmbeddingDimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding client: %w", err)
	}

	return client, nil
}
