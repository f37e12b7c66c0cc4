package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/franz/photo-janitor/internal/photo"
	"github.com/franz/photo-janitor/internal/report"
	"github.com/franz/photo-janitor/internal/session"
	"github.com/franz/photo-janitor/internal/store"
	"github.com/franz/photo-janitor/internal/util"
	"github.com/franz/photo-janitor/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analysis engine over a REST API",
	Long: `Start an HTTP server exposing cached sessions and analysis runs.

Endpoints:
  GET    /api/health                          liveness and session count
  POST   /api/analyze                         start a background analysis run
  GET    /api/sessions                        list cached fingerprints
  GET    /api/sessions/{fingerprint}          full session document
  DELETE /api/sessions/{fingerprint}          drop a cached session
  POST   /api/sessions/{fingerprint}/filtered derive a filtered sub-session
  GET    /api/stats/{fingerprint}             summary statistics`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("library", "s", "", "photo library root directory")
	serveCmd.Flags().String("host", "127.0.0.1", "listen host")
	serveCmd.Flags().Int("port", 8080, "listen port")
	serveCmd.Flags().String("events", "artifacts", "directory for JSONL event logs")
}

func runServe(cmd *cobra.Command, args []string) error {
	library := viper.GetString("library")
	if flagVal, _ := cmd.Flags().GetString("library"); flagVal != "" {
		library = flagVal
	}
	if library == "" {
		return fmt.Errorf("library directory is required (use --library/-s or set in config)")
	}
	if _, err := os.Stat(library); os.IsNotExist(err) {
		return fmt.Errorf("library directory does not exist: %s", library)
	}

	host, _ := cmd.Flags().GetString("host")
	port, _ := cmd.Flags().GetInt("port")
	eventsDir, _ := cmd.Flags().GetString("events")

	dbPath := viper.GetString("db")
	verbose := viper.GetBool("verbose")
	quiet := viper.GetBool("quiet")

	util.SetVerbose(verbose)
	util.SetQuiet(quiet)

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	cfg, err := analyzeConfig(db)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cache, err := session.NewCache(db)
	if err != nil {
		return fmt.Errorf("failed to load session cache: %w", err)
	}

	logger, err := report.NewEventLogger(eventsDir, report.LevelInfo)
	if err != nil {
		util.WarnLog("Failed to create event logger: %v", err)
		logger = report.NullLogger()
	}
	defer logger.Close()

	srv := web.NewServer(&web.Config{
		Host:    host,
		Port:    port,
		Cache:   cache,
		Library: photo.NewFSLibrary(&photo.FSConfig{Root: library}),
		Logger:  logger,
		Analyze: cfg,
	})

	// Graceful shutdown on Ctrl-C
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-stop:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
