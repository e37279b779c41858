package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/spf13/cobra"

	"github.com/aigoflow/catdog-classifier/internal/auth"
	"github.com/aigoflow/catdog-classifier/internal/config"
	"github.com/aigoflow/catdog-classifier/internal/repository"
	"github.com/aigoflow/catdog-classifier/internal/store"
)

type loader func() (*config.Config, error)

// withRepo opens the configured database for a single admin command.
func withRepo(load loader, fn func(cmd *cobra.Command, repo repository.Repository, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := load()
		if err != nil {
			return err
		}
		db, err := store.Open(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		return fn(cmd, repository.NewSQLRepository(db), args)
	}
}

func newMigrateCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema and exit",
		RunE: withRepo(load, func(cmd *cobra.Command, repo repository.Repository, args []string) error {
			// store.Open already migrated.
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		}),
	}
}

func newMetricsCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Inspect recorded inference metrics",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List the most recent metrics",
		Args:  cobra.NoArgs,
		RunE: withRepo(load, func(cmd *cobra.Command, repo repository.Repository, args []string) error {
			metrics, err := repo.Metric().ListMetrics(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), metrics)
		}),
	}
	list.Flags().IntVar(&limit, "limit", 20, "Maximum number of rows")

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one metric and the feedback attached to it",
		Args:  cobra.ExactArgs(1),
		RunE: withRepo(load, func(cmd *cobra.Command, repo repository.Repository, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			metric, err := repo.Metric().GetMetric(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("metric %d: %w", id, err)
			}
			feedback, err := repo.Feedback().FindByMetric(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"metric":   metric,
				"feedback": feedback,
			})
		}),
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a metric; linked feedback keeps its row with no link",
		Args:  cobra.ExactArgs(1),
		RunE: withRepo(load, func(cmd *cobra.Command, repo repository.Repository, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := repo.Metric().DeleteMetric(cmd.Context(), id); err != nil {
				return fmt.Errorf("metric %d: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted metric %d\n", id)
			return nil
		}),
	}

	cmd.AddCommand(list, get, del)
	return cmd
}

func newFeedbackCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Inspect collected feedback",
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show feedback totals",
		Args:  cobra.NoArgs,
		RunE: withRepo(load, func(cmd *cobra.Command, repo repository.Repository, args []string) error {
			s, err := repo.Feedback().Stats(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), s)
		}),
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a feedback row (the stored image is kept)",
		Args:  cobra.ExactArgs(1),
		RunE: withRepo(load, func(cmd *cobra.Command, repo repository.Repository, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := repo.Feedback().DeleteFeedback(cmd.Context(), id); err != nil {
				return fmt.Errorf("feedback %d: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted feedback %d\n", id)
			return nil
		}),
	}

	cmd.AddCommand(stats, del)
	return cmd
}

func newTokenCmd(load loader) *cobra.Command {
	var (
		subject string
		scopes  []string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed bearer token (requires AUTH_JWT_SECRET)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			claims := jwt.RegisteredClaims{IssuedAt: jwt.NewNumericDate(time.Now())}
			if ttl > 0 {
				claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(ttl))
			}
			token, err := auth.Sign(cfg.JWTSecret, subject, scopes, claims)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Client the token is issued to")
	cmd.Flags().StringSliceVar(&scopes, "scope", []string{auth.ScopeFeedback}, "Granted scopes (predict, feedback)")
	cmd.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "Token lifetime; 0 for no expiry")
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
