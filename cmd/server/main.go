package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/theiauto/feedsync/internal/config"
	"github.com/theiauto/feedsync/internal/server"
	"github.com/theiauto/feedsync/internal/service"
	"github.com/theiauto/feedsync/pkg/logger"
)

var (
	configPath string
	envFile    string
	version    = "0.1.0"
	gitCommit  = "unknown"
	buildTime  = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "feedsync",
	Short: "feedsync - Daum content feed syndication service",
	Long:  `feedsync pushes published articles to the Daum content feed gateway, sweeps scheduled articles and keeps their syndication status in sync.`,
	RunE:  runServer,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server, scheduler and deletion worker",
	RunE:  runServer,
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Publish and push due scheduled articles once",
	RunE:  runSweep,
}

var checkAuthCmd = &cobra.Command{
	Use:   "check-auth",
	Short: "Verify the Daum gateway credentials of an environment",
	RunE:  runCheckAuth,
}

var gateSecretCmd = &cobra.Command{
	Use:   "gate-secret",
	Short: "Generate a TOTP secret for the admin gate",
	RunE:  runGateSecret,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("feedsync %s\n", version)
		fmt.Printf("Git commit: %s\n", gitCommit)
		fmt.Printf("Build time: %s\n", buildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/server.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")

	checkAuthCmd.Flags().String("env", "", "gateway environment (test or prod, default from config)")
	checkAuthCmd.Flags().String("method", http.MethodGet, "HTTP method used for the check (GET or POST)")
	gateSecretCmd.Flags().String("account", "admin", "account name shown in the authenticator app")

	rootCmd.AddCommand(serveCmd, sweepCmd, checkAuthCmd, gateSecretCmd, versionCmd)
}

// loadConfig reads the dotenv file, when present, then the YAML config.
func loadConfig() (*config.Config, error) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	appLogger, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, appLogger, nil
}

func runServer(*cobra.Command, []string) error {
	cfg, appLogger, err := bootstrap()
	if err != nil {
		return err
	}
	defer appLogger.Sync()

	appLogger.Info("Starting feedsync server", zap.String("version", version))

	// Create server
	srv, err := server.NewServer(cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	// Start server
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := srv.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("Server failed to start", zap.Error(err))
			cancel()
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		appLogger.Info("Shutting down server...")
	case <-ctx.Done():
		appLogger.Info("Server context cancelled")
	}

	// Graceful shutdown
	if err := srv.Shutdown(context.Background()); err != nil {
		appLogger.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	appLogger.Info("Server exited")
	return nil
}

func runSweep(cmd *cobra.Command, _ []string) error {
	cfg, appLogger, err := bootstrap()
	if err != nil {
		return err
	}
	defer appLogger.Sync()

	srv, err := server.NewServer(cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	report, err := srv.Scheduler.Sweep(cmd.Context())
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}
	return printJSON(report)
}

func runCheckAuth(cmd *cobra.Command, _ []string) error {
	cfg, appLogger, err := bootstrap()
	if err != nil {
		return err
	}
	defer appLogger.Sync()

	srv, err := server.NewServer(cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	env, _ := cmd.Flags().GetString("env")
	method, _ := cmd.Flags().GetString("method")

	result, err := srv.Publisher.CheckAuth(cmd.Context(), env, method)
	if err != nil {
		return err
	}
	if err := printJSON(result); err != nil {
		return err
	}
	if !result.OK {
		return fmt.Errorf("auth check failed with status %d", result.Status)
	}
	return nil
}

func runGateSecret(cmd *cobra.Command, _ []string) error {
	cfg, appLogger, err := bootstrap()
	if err != nil {
		return err
	}
	defer appLogger.Sync()

	account, _ := cmd.Flags().GetString("account")
	gate := service.NewAdminGate(appLogger, cfg.Auth.TOTPSecret, cfg.Auth.Issuer)
	secret, url, err := gate.GenerateSecret(account)
	if err != nil {
		return err
	}

	fmt.Printf("Secret: %s\n", secret)
	fmt.Printf("URL:    %s\n", url)
	fmt.Println("Set auth.totp_secret (or ADMIN_GATE_TOTP_SECRET) to enable the admin gate.")
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
