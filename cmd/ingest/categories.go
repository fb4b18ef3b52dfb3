package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/echo-ingest/internal/domain/categorization"
	"github.com/FACorreiaa/echo-ingest/internal/domain/import/repository"
	"github.com/FACorreiaa/echo-ingest/pkg/config"
	"github.com/FACorreiaa/echo-ingest/pkg/db"
)

var errNoCategorySource = errors.New("no categories: pass --categories FILE or --db")

type categoriesOptions struct {
	fromDB bool
}

func categoriesCmd(root *rootOptions) *cobra.Command {
	opts := &categoriesOptions{}
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Inspect the categories used for matching",
		Long: `Read categories from the --categories seed file, or from the Postgres
database of the environment configuration with --db, and list them, export
them as a seed file or try them against descriptions.`,
	}
	cmd.PersistentFlags().BoolVar(&opts.fromDB, "db", false, "read categories from the database")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List categories and their keywords",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCategories(cmd, root, opts, func(svc *categorization.Service) error {
				categories, err := svc.ListCategories(cmd.Context())
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tTYPE\tKEYWORDS")
				for _, c := range categories {
					fmt.Fprintf(w, "%s\t%s\t%s\n", c.Name, c.Type, strings.Join(c.Keywords, ", "))
				}
				return w.Flush()
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "export",
		Short: "Write categories as a seed CSV to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCategories(cmd, root, opts, func(svc *categorization.Service) error {
				categories, err := svc.ListCategories(cmd.Context())
				if err != nil {
					return err
				}
				return categorization.WriteCategoriesCSV(cmd.OutOrStdout(), categories)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "match DESCRIPTION...",
		Short: "Show the category each description would get",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCategories(cmd, root, opts, func(svc *categorization.Service) error {
				m, err := svc.Matcher(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "%d keywords loaded\n", m.Len())

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				for i, category := range m.MatchBatch(args) {
					if category == "" {
						category = "-"
					}
					fmt.Fprintf(w, "%s\t%s\n", args[i], category)
				}
				return w.Flush()
			})
		},
	})

	return cmd
}

// withCategories runs fn against the selected category source.
func withCategories(cmd *cobra.Command, root *rootOptions, opts *categoriesOptions, fn func(*categorization.Service) error) error {
	ctx := cmd.Context()
	logger := root.logger(cmd)

	if opts.fromDB {
		store, closeDB, err := openCategoryStore(ctx, logger)
		if err != nil {
			return err
		}
		defer closeDB()
		return fn(categorization.NewService(store, logger))
	}

	if root.categories == "" {
		return errNoCategorySource
	}
	svc := categorization.NewService(repository.NewMemoryStore(""), logger)
	if err := seedFromFile(ctx, svc, root.categories); err != nil {
		return err
	}
	return fn(svc)
}

func openCategoryStore(ctx context.Context, logger *slog.Logger) (categorization.Store, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.Connect(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return categorization.NewRepository(pool), pool.Close, nil
}
