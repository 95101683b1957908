package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/larry311012/ai-news-hub-sub002/infrastructure/configuration"
	"github.com/larry311012/ai-news-hub-sub002/infrastructure/logger"
	"github.com/larry311012/ai-news-hub-sub002/infrastructure/persistence"
	"github.com/larry311012/ai-news-hub-sub002/infrastructure/security"
	"github.com/larry311012/ai-news-hub-sub002/infrastructure/utils"
	"github.com/larry311012/ai-news-hub-sub002/usecase"
)

func recoverPanic() {
	if err := recover(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Application panic recovered")
		os.Exit(2)
	}
}

func main() {
	defer recoverPanic()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serve := newServeCmd()
	root := &cobra.Command{
		Use:           "ai-news-hub",
		Short:         "Social account connections and publishing for AI News Hub",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          serve.RunE,
	}
	root.AddCommand(serve, newKeygenCmd(), newTokenCmd(), newConnectionsCmd(), newSweepCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), configuration.C)
		},
	}
}

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Print a new base64 vault key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := security.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}

func newTokenCmd() *cobra.Command {
	var (
		userID string
		name   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret := configuration.C.App.SecretKey
			if secret == "" {
				return fmt.Errorf("SECRET_KEY is not set; the server accepts every request as %q", configuration.C.App.LocalUserID)
			}
			token, err := utils.GenerateToken(userID, name, ttl, secret)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id carried in the token")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime, 0 for none")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newConnectionsCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "connections",
		Short: "Show a user's platform connections",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := configuration.C
			if userID == "" {
				userID = cfg.App.LocalUserID
			}
			repos, closeDB, err := openRepositories(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeDB()

			views, err := usecase.NewConnectionUsecase(repos.Connections).List(ctx, userID)
			if err != nil {
				return err
			}
			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Platform", "Status", "Username", "Expires", "Last error"})
			for _, v := range views {
				expires := ""
				if v.TokenExpiresAt != nil {
					expires = v.TokenExpiresAt.Local().Format(time.RFC3339)
					if v.ExpiresSoon {
						expires += " (soon)"
					}
				}
				t.AppendRow(table.Row{v.Platform, v.Status, v.Username, expires, v.LastError})
			}
			t.SetStyle(table.StyleLight)
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id, defaults to the local user")
	return cmd
}

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire lapsed tokens and abandon stale pending connections once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := configuration.C
			repos, closeDB, err := openRepositories(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeDB()

			report, err := usecase.NewConnectionUsecase(repos.Connections).SweepExpired(ctx, time.Now(), cfg.OAuth.TransactionTTL())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired=%d abandoned=%d\n", report.Expired, report.Abandoned)
			return nil
		},
	}
}

func openRepositories(ctx context.Context, cfg configuration.Config) (*persistence.Repositories, func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	db, dialect, err := persistence.OpenDatabase(ctx, cfg.Database, cfg.App.DataDir)
	if err != nil {
		return nil, nil, err
	}
	return persistence.NewRepositories(db, dialect), func() { _ = db.Close() }, nil
}
