package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dvloznov/expense-tracker/internal/extraction"
	"github.com/spf13/cobra"
)

func newExtractCommand(a *app) *cobra.Command {
	var file string
	var withCatalog bool

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Run statement extraction on a local PDF and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.context(cmd.Context())
			if a.cfg.Extraction.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, a.cfg.Extraction.Timeout)
				defer cancel()
			}

			pdf, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading %s: %w", file, err)
			}

			var catalog extraction.CatalogSource
			if withCatalog {
				repo, err := a.repository(ctx)
				if err != nil {
					return err
				}
				defer repo.Close()
				catalog = repo
			}

			gateway, err := extraction.NewGeminiGateway(ctx, a.cfg.Extraction.Model, catalog)
			if err != nil {
				return err
			}

			a.log.Info().Str("file", file).Str("model", gateway.Model()).Msg("extracting statement")
			res, err := gateway.Extract(ctx, pdf)
			if err != nil {
				return err
			}
			if !res.Structured() {
				a.log.Warn().Msg("model reply is not a structured statement")
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "statement PDF (required)")
	cmd.Flags().BoolVar(&withCatalog, "catalog", true, "prompt with the BigQuery category catalog")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
