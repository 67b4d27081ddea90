package main

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/expense-tracker/internal/notionsync"
	"github.com/spf13/cobra"
)

// parseRange parses YYYY-MM-DD bounds and rejects an end before the start.
func parseRange(startStr, endStr string) (civil.Date, civil.Date, error) {
	start, err := civil.ParseDate(startStr)
	if err != nil {
		return civil.Date{}, civil.Date{}, fmt.Errorf("invalid start date %q, expected YYYY-MM-DD", startStr)
	}
	end, err := civil.ParseDate(endStr)
	if err != nil {
		return civil.Date{}, civil.Date{}, fmt.Errorf("invalid end date %q, expected YYYY-MM-DD", endStr)
	}
	if end.Before(start) {
		return civil.Date{}, civil.Date{}, errors.New("end date must not be before start date")
	}
	return start, end, nil
}

func formatAmount(r *big.Rat) string {
	if r == nil {
		return "0.00"
	}
	return r.FloatString(2)
}

func newDocumentsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "documents",
		Short: "Inspect uploaded statements",
	}

	var owner string
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List an owner's documents, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.context(cmd.Context())
			repo, err := a.repository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			docs, err := repo.ListDocuments(ctx, owner, limit)
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tFILE\tSTATUS\tUPLOADED\tSIZE")
			for _, d := range docs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n",
					d.DocumentID, d.OriginalFilename, d.ParsingStatus, d.UploadTS.Format(time.DateTime), d.SizeBytes)
			}
			return tw.Flush()
		},
	}
	list.Flags().StringVar(&owner, "owner", "", "owner email (required)")
	list.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	_ = list.MarkFlagRequired("owner")

	cmd.AddCommand(list)
	return cmd
}

func newReportCommand(a *app) *cobra.Command {
	var owner, startStr, endStr string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Total an owner's reconciled transactions per category",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := parseRange(startStr, endStr)
			if err != nil {
				return err
			}
			ctx := a.context(cmd.Context())
			repo, err := a.repository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			totals, err := repo.SumByCategory(ctx, owner, start, end)
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "CATEGORY\tCOUNT\tTOTAL")
			for _, t := range totals {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", t.Category, t.Count, formatAmount(t.Total))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner email (required)")
	cmd.Flags().StringVar(&startStr, "start-date", "", "first day, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&endStr, "end-date", "", "last day, YYYY-MM-DD (required)")
	for _, f := range []string{"owner", "start-date", "end-date"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func newNotionCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notion",
		Short: "Mirror reconciled transactions into Notion",
	}

	var owner, startStr, endStr string
	var dryRun bool
	sync := &cobra.Command{
		Use:   "sync",
		Short: "Export reconciled transactions in a date range that Notion lacks",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.cfg.NotionEnabled() {
				return errors.New("notion.token and notion.database_id must be configured")
			}
			start, end, err := parseRange(startStr, endStr)
			if err != nil {
				return err
			}

			ctx := a.context(cmd.Context())
			a.log.Info().
				Str("start_date", startStr).
				Str("end_date", endStr).
				Bool("dry_run", dryRun).
				Msg("Starting Notion sync")

			repo, err := a.repository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			rows, err := repo.ListReconciled(ctx, owner, start, end)
			if err != nil {
				return err
			}
			exporter := notionsync.NewExporter(notionsync.NewNotionClient(a.cfg.Notion.Token), a.cfg.Notion.DatabaseID).
				WithDryRun(dryRun)
			stats, err := exporter.Export(ctx, rows)
			if perr := printJSON(cmd.OutOrStdout(), stats); perr != nil && err == nil {
				err = perr
			}
			return err
		},
	}
	sync.Flags().StringVar(&owner, "owner", "", "only this owner's transactions")
	sync.Flags().StringVar(&startStr, "start-date", "", "first day, YYYY-MM-DD (required)")
	sync.Flags().StringVar(&endStr, "end-date", "", "last day, YYYY-MM-DD (required)")
	sync.Flags().BoolVar(&dryRun, "dry-run", false, "preview without creating pages")
	_ = sync.MarkFlagRequired("start-date")
	_ = sync.MarkFlagRequired("end-date")

	cmd.AddCommand(sync)
	return cmd
}
