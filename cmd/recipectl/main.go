// recipectl 是运维命令行：迁移数据库、创建用户、查看用户概况、手动清理过期 token。
package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"recipedia/internal/config"
	"recipedia/internal/db"
	"recipedia/internal/jobs"
	clog "recipedia/internal/log"
	"recipedia/internal/service"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg config.Config
	root := &cobra.Command{
		Use:          "recipectl",
		Short:        "Recipedia operations tool",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg = config.Load()
			clog.InitWriter(cfg.Env, cmd.ErrOrStderr())
			return config.Validate(cfg)
		},
	}
	connect := func() (*gorm.DB, error) {
		gdb, err := db.Connect(cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db connect: %w", err)
		}
		return gdb, nil
	}

	root.AddCommand(
		migrateCmd(connect),
		createUserCmd(connect, &cfg),
		usersCmd(connect, &cfg),
		pruneCmd(connect),
	)
	return root
}

type connectFunc func() (*gorm.DB, error)

func migrateCmd(connect connectFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			gdb, err := connect()
			if err != nil {
				return err
			}
			if err := db.Migrate(gdb); err != nil {
				return fmt.Errorf("db migrate: %w", err)
			}
			log.Info().Msg("migration complete")
			return nil
		},
	}
}

func createUserCmd(connect connectFunc, cfg *config.Config) *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a user account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			gdb, err := connect()
			if err != nil {
				return err
			}
			u, err := service.NewUserService(gdb, *cfg).CreateUser(cmd.Context(), name, email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %d (%s)\n", u.ID, u.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func usersCmd(connect connectFunc, cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List users with room, recipe and like counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			gdb, err := connect()
			if err != nil {
				return err
			}
			stats, err := service.NewUserService(gdb, *cfg).Stats(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tEMAIL\tROOMS\tRECIPES\tLIKES")
			for _, s := range stats {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%d\n", s.ID, s.Name, s.Email, s.Rooms, s.Recipes, s.Likes)
			}
			return w.Flush()
		},
	}
}

func pruneCmd(connect connectFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete used or expired reset tokens and dead refresh tokens",
		RunE: func(cmd *cobra.Command, _ []string) error {
			gdb, err := connect()
			if err != nil {
				return err
			}
			res, err := jobs.Prune(cmd.Context(), gdb, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pruned %d password resets, %d refresh tokens\n", res.PasswordResets, res.RefreshTokens)
			return nil
		},
	}
}
