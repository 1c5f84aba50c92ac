package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deskhub/deskhub/internal/app"
	"github.com/deskhub/deskhub/internal/config"
	"github.com/deskhub/deskhub/pkg/logger"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "deskhub",
	Short: "Multi-tenant business management API",
	Long: `deskhub serves the contacts, accounting, calendar, ritual, file, mail and
assistant API. Without a subcommand it starts the HTTP server.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// LOG_LEVEL: debug|info|warn|error|fatal
		logger.Init(os.Getenv("LOG_LEVEL"))
	},
	RunE: runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server and the ritual scheduler",
	RunE:  runServe,
}

var ritualsCmd = &cobra.Command{
	Use:   "rituals",
	Short: "Ritual task maintenance",
}

var ritualsRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Regenerate ritual tasks for every owner with saved settings",
	RunE:  runRituals,
}

var indexesCmd = &cobra.Command{
	Use:   "indexes",
	Short: "Create the MongoDB indexes",
	RunE:  runIndexes,
}

func init() {
	ritualsCmd.AddCommand(ritualsRunCmd)
	rootCmd.AddCommand(serveCmd, ritualsCmd, indexesCmd)
}

func main() {
	defer logger.Sync()
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func open(ctx context.Context) (*app.App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger.Infof("config loaded: keycloak=%v mongo=%v redis=%v minio=%v genai=%v",
		cfg.Keycloak.URL != "", cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.MinIO.Endpoint != "", cfg.GenAI.APIKey != "")
	return app.New(ctx, cfg)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	a, err := open(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())
	return a.Serve(ctx)
}

func runRituals(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
	defer cancel()
	a, err := open(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())
	applied, failed, err := a.Rituals().RunAll(ctx)
	if err != nil {
		return err
	}
	logger.Infof("rituals: applied=%d failed=%d", applied, failed)
	return nil
}

func runIndexes(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()
	a, err := open(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())
	if err := a.EnsureIndexes(ctx); err != nil {
		return err
	}
	logger.Infof("indexes created")
	return nil
}
