package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sakif/homepage/internal/auth"
	"github.com/sakif/homepage/internal/config"
	"github.com/sakif/homepage/internal/repository/sqldb"
	"github.com/sakif/homepage/internal/service"
)

const commandTimeout = time.Minute

// env is what the database commands share once config is loaded.
type env struct {
	cfg    *config.Config
	db     *sqldb.DB
	logger *slog.Logger
}

func newRootCmd(out io.Writer) *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "sitectl",
		Short:         "Administer the homepage database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "optional config file (yaml, toml or json)")

	open := func() (*env, error) {
		cfg, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		level, _ := cfg.SlogLevel()
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

		if cfg.IsSQLiteFile() {
			if err := os.MkdirAll(filepath.Dir(cfg.DatabaseURL), 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		db, err := sqldb.New(cfg.DBDriver, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		return &env{cfg: cfg, db: db, logger: logger}, nil
	}

	root.AddCommand(newHashPasswordCmd(), newCreateAdminCmd(open), newPruneCmd(open))
	return root
}

// newHashPasswordCmd prints a bcrypt hash and the SQL that installs it, for
// fixing an account by hand. It needs no database.
func newHashPasswordCmd() *cobra.Command {
	var (
		username string
		cost     int
	)

	cmd := &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print a bcrypt hash and the SQL to set it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.NewPasswordService(cost).Hash(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Password hash:")
			fmt.Fprintln(out, hash)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "SQL to update the password:")
			fmt.Fprintf(out, "UPDATE users SET password_hash = %s WHERE username = %s;\n", sqlQuote(hash), sqlQuote(username))
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "admin", "username for the generated SQL")
	cmd.Flags().IntVar(&cost, "cost", auth.DefaultCost, "bcrypt cost")
	return cmd
}

// sqlQuote renders s as a SQL string literal, doubling embedded quotes.
func sqlQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// newCreateAdminCmd creates the admin account, or promotes and re-passwords
// an existing one.
func newCreateAdminCmd(open func() (*env, error)) *cobra.Command {
	var username, password, displayName string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create or promote an admin account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := open()
			if err != nil {
				return err
			}
			defer e.db.Close()

			resolver := auth.NewResolver(e.db, e.db, e.logger)
			svc := service.NewAuthService(e.db, e.db, auth.NewPasswordService(e.cfg.BcryptCost), resolver, e.cfg.SessionTTL, e.logger)

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			user, err := svc.EnsureAdmin(ctx, username, password, displayName)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %q ready (id %s)\n", user.Username, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	cmd.Flags().StringVar(&displayName, "display-name", "", "name shown in the chat (defaults to the username)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

// newPruneCmd runs one janitor pass immediately.
func newPruneCmd(open func() (*env, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete expired sessions, mutes and stale presence rows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := open()
			if err != nil {
				return err
			}
			defer e.db.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			res, err := service.NewJanitor(e.db, e.db, e.db, e.logger).RunOnce(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pruned %d sessions, %d mutes, %d presence rows\n", res.Sessions, res.Mutes, res.Presence)
			return nil
		},
	}
}
