package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ward-admin-server/internal/app"
	"ward-admin-server/internal/config"
	"ward-admin-server/internal/emrsync"
	"ward-admin-server/internal/logger"
	"ward-admin-server/internal/models"
	"ward-admin-server/internal/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	rootCmd := &cobra.Command{
		Use:           "emr-batch",
		Short:         "Scheduled EMR import for the ward admin server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(runCmd(), statusCmd(), tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	zapLogger, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "emr-batch")
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, zapLogger, nil
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Import the last --days-back days, retrying with exponential backoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, zapLogger, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = zapLogger.Sync() }()

			batch := emrsync.BatchConfig{
				DaysBack:   cfg.Batch.DaysBack,
				MaxRetries: cfg.Batch.MaxRetries,
				Location:   cfg.Batch.Location,
			}
			if cmd.Flags().Changed("days-back") {
				batch.DaysBack, _ = cmd.Flags().GetInt("days-back")
			}
			if cmd.Flags().Changed("max-retries") {
				batch.MaxRetries, _ = cmd.Flags().GetInt("max-retries")
			}
			if err := batch.Validate(); err != nil {
				return err
			}

			db, err := app.OpenDB(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			orchestrator := app.NewOrchestrator(cfg, db, zapLogger, nil)
			driver := emrsync.NewBatchDriver(orchestrator, emrsync.SystemClock{}, nil, zapLogger.Named("batch"))
			result, err := driver.RunBatch(ctx, batch)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
	cmd.Flags().Int("days-back", 1, "Days before today to import (1-7); defaults to BATCH_DAYS_BACK")
	cmd.Flags().Int("max-retries", 3, "Retries after the first attempt (0-10); defaults to BATCH_MAX_RETRIES")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the active import lock, if any",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, zapLogger, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = zapLogger.Sync() }()

			db, err := app.OpenDB(cfg)
			if err != nil {
				return err
			}
			handle, err := app.NewOrchestrator(cfg, db, zapLogger, nil).Status(cmd.Context())
			if err != nil {
				return err
			}
			if handle == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "no import running")
				return nil
			}
			return printJSON(cmd, handle)
		},
	}
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign an access token for calling the import API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			userID, _ := cmd.Flags().GetString("user")
			role, _ := cmd.Flags().GetString("role")
			switch models.Role(role) {
			case models.RoleAdmin, models.RoleDoctor, models.RoleNurse:
			default:
				return fmt.Errorf("unknown role %q", role)
			}

			ttl := time.Duration(cfg.JWTExpirationMinutes) * time.Minute
			token, err := utils.GenerateAccessToken(userID, models.Role(role), cfg.JWTSecret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().String("user", "", "User id placed in the token")
	cmd.Flags().String("role", string(models.RoleAdmin), "Role: admin, doctor or nurse")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
