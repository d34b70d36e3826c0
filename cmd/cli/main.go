package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/threadline/backend/internal/database"
	"github.com/threadline/backend/internal/logger"
	"github.com/threadline/backend/internal/models"
	"github.com/threadline/backend/internal/seed"
	"gorm.io/gorm"
)

var rootCmd = &cobra.Command{
	Use:   "threadline",
	Short: "Threadline CLI - Operational tooling for the Threadline backend",
	Long: `Threadline CLI runs database migrations, seeds development data,
and repairs cached vote scores against the vote ledger.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil {
			fmt.Fprintln(os.Stderr, "Warning: .env file not found, using system environment variables")
		}
		if err := logger.Initialize(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FILE")); err != nil {
			return err
		}
		return database.Initialize()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = database.Close()
		_ = logger.Close()
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return database.Migrate()
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the development database with fake users, communities, posts and votes",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := database.Migrate(); err != nil {
			return err
		}
		return seed.NewSeeder(database.DB).SeedDev()
	},
}

var recountCmd = &cobra.Command{
	Use:   "recount-scores",
	Short: "Recompute cached scores and comment counts from their source tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		db := database.DB

		err := db.Model(&models.Post{}).
			Where("1 = 1").
			UpdateColumn("score", gorm.Expr(
				"(SELECT COALESCE(SUM(value), 0) FROM post_votes WHERE post_votes.post_id = posts.id)",
			)).Error
		if err != nil {
			return fmt.Errorf("post score recount failed: %w", err)
		}

		err = db.Model(&models.Comment{}).
			Where("1 = 1").
			UpdateColumn("score", gorm.Expr(
				"(SELECT COALESCE(SUM(value), 0) FROM comment_votes WHERE comment_votes.comment_id = comments.id)",
			)).Error
		if err != nil {
			return fmt.Errorf("comment score recount failed: %w", err)
		}

		err = db.Model(&models.Post{}).
			Where("1 = 1").
			UpdateColumn("comment_count", gorm.Expr(
				"(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id)",
			)).Error
		if err != nil {
			return fmt.Errorf("comment count recount failed: %w", err)
		}

		logger.Log.Info("recount complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(recountCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
