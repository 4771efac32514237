// Command starcms serves a starcms site with the stock theme.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/eringen/starcms"
	"github.com/eringen/starcms/views"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	configPath string
	verbose    bool
	addr       string
	staticDir  string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "starcms",
	Short:         "starcms - celebrity, movie and news CMS built with Go, Echo, and templ",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the public site and the admin API",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema and exit",
	RunE:  runMigrate,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the starcms version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("starcms %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	serveCmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	serveCmd.Flags().StringVar(&staticDir, "static", "public", "directory served under /public")

	rootCmd.AddCommand(serveCmd, migrateCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, then lets environment variables
// override it.
func loadConfig() (starcms.SiteConfig, error) {
	var cfg starcms.SiteConfig
	if configPath != "" {
		if err := starcms.LoadConfigFile(configPath, &cfg); err != nil {
			return cfg, err
		}
	}
	envString(&cfg.Name, "SITE_NAME")
	envString(&cfg.URL, "SITE_URL")
	envString(&cfg.Description, "SITE_DESCRIPTION")
	envString(&cfg.Author, "SITE_AUTHOR")
	envString(&cfg.DatabasePath, "DATABASE_PATH")
	envString(&cfg.AdminPassword, "ADMIN_PASSWORD")
	envString(&cfg.SessionSecret, "ADMIN_SESSION_SECRET")
	envString(&cfg.Storage.Backend, "STORAGE_BACKEND")
	envString(&cfg.Storage.S3.Bucket, "S3_BUCKET")
	envString(&cfg.Storage.S3.Region, "S3_REGION")
	envString(&cfg.Storage.S3.Endpoint, "S3_ENDPOINT")
	envString(&cfg.Storage.S3.AccessKey, "S3_ACCESS_KEY")
	envString(&cfg.Storage.S3.SecretKey, "S3_SECRET_KEY")
	envString(&cfg.Storage.S3.PublicBaseURL, "S3_PUBLIC_BASE_URL")
	if v := os.Getenv("COOKIE_SECURE"); v != "" {
		cfg.CookieSecure = strings.EqualFold(v, "true")
	}
	cfg.URL = strings.TrimSuffix(cfg.URL, "/")
	if addr != "" {
		cfg.Addr = addr
	}
	return cfg, nil
}

func envString(dst *string, key string) {
	*dst = starcms.EnvOr(key, *dst)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	app := starcms.New(cfg, views.Default(),
		starcms.WithLogger(logger),
		starcms.WithStaticDir(staticDir),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(app.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	return g.Wait()
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = "data/starcms.db"
	}
	store, err := starcms.NewStore(cmd.Context(), cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Info("database ready", zap.String("path", cfg.DatabasePath))
	return nil
}
