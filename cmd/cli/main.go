package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/expense-tracker/internal/auth"
	"github.com/dvloznov/expense-tracker/internal/config"
	infraBQ "github.com/dvloznov/expense-tracker/internal/infra/bigquery"
	"github.com/dvloznov/expense-tracker/internal/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configPath string
	cfg        *config.Config
	log        zerolog.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:   "cli",
		Short: "Expense tracker administration",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = logger.NewWithOptions(os.Stderr, logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", os.Getenv("EXPENSE_TRACKER_CONFIG"), "path to the YAML config file")

	rootCmd.AddCommand(
		newExtractCommand(a),
		newTokenCommand(a),
		newWhitelistCommand(a),
		newCategoriesCommand(a),
		newDocumentsCommand(a),
		newReportCommand(a),
		newNotionCommand(a),
	)
	return rootCmd
}

func (a *app) context(ctx context.Context) context.Context {
	return logger.WithContext(ctx, a.log)
}

func (a *app) repository(ctx context.Context) (*infraBQ.Repository, error) {
	project := a.cfg.GCP.Project
	if project == "" {
		project = bigquery.DetectProjectID
	}
	return infraBQ.NewRepository(ctx, project, a.cfg.GCP.Dataset)
}

func (a *app) directory() (*auth.Directory, error) {
	roles, err := auth.LoadRoleBook(a.cfg.Auth.RolesFile)
	if err != nil {
		return nil, err
	}
	return auth.NewDirectory(auth.NewFileWhitelist(a.cfg.Auth.WhitelistFile), roles), nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func newTokenCommand(a *app) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a session token for a whitelisted email",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := a.directory()
			if err != nil {
				return err
			}
			issuer, err := auth.NewIssuer([]byte(a.cfg.Auth.Secret), a.cfg.Auth.Issuer, a.cfg.Auth.TokenTTL, dir)
			if err != nil {
				return err
			}
			token, claims, err := issuer.Issue(email)
			if err != nil {
				return fmt.Errorf("issuing token for %s: %w", email, err)
			}
			a.log.Info().Str("email", claims.Email).Str("role", claims.Role).Time("expires", claims.Expiry.Time()).Msg("token issued")
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email to mint the token for (required)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newWhitelistCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whitelist",
		Short: "Inspect and edit the sign-in whitelist",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List whitelisted emails",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := a.directory()
			if err != nil {
				return err
			}
			members, err := dir.Members()
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "EMAIL\tROLE\tLISTED\tADDED\tCHANGED")
			for _, m := range members {
				fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\n", m.Email, m.Role, m.IsListed, m.Added, m.Changed)
			}
			return tw.Flush()
		},
	}

	var email string
	var listed bool
	set := &cobra.Command{
		Use:   "set",
		Short: "List or delist an email, adding it when new",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := a.directory()
			if err != nil {
				return err
			}
			entry, err := dir.SetListed(email, listed)
			if err != nil && listed && isUnknown(err) {
				entry, err = dir.Add(email)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entry)
		},
	}
	set.Flags().StringVar(&email, "email", "", "email to update (required)")
	set.Flags().BoolVar(&listed, "listed", true, "whether the email may sign in")
	_ = set.MarkFlagRequired("email")

	cmd.AddCommand(list, set)
	return cmd
}

func newCategoriesCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Inspect and extend the category catalog",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.context(cmd.Context())
			repo, err := a.repository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			cats, err := repo.ListCategories(ctx)
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tTITLE")
			for _, c := range cats {
				fmt.Fprintf(tw, "%d\t%s\n", c.ID, c.Title)
			}
			return tw.Flush()
		},
	}

	var title string
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a category",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.context(cmd.Context())
			repo, err := a.repository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			c, err := repo.CreateCategory(ctx, title)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), c)
		},
	}
	add.Flags().StringVar(&title, "title", "", "category title (required)")
	_ = add.MarkFlagRequired("title")

	cmd.AddCommand(list, add)
	return cmd
}

func isUnknown(err error) bool {
	return errors.Is(err, auth.ErrUnknownEmail)
}
