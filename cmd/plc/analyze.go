package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/franz/photo-janitor/internal/analyze"
	"github.com/franz/photo-janitor/internal/photo"
	"github.com/franz/photo-janitor/internal/report"
	"github.com/franz/photo-janitor/internal/session"
	"github.com/franz/photo-janitor/internal/store"
	"github.com/franz/photo-janitor/internal/util"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a photo library for blur, exposure, noise and duplicates",
	Long: `Scan the photo library, score every photo for quality and group
near-duplicate shots into clusters.

This command performs three operations:
1. Discovery: Walks the library and reads capture metadata
2. Analysis: Scores blur/exposure/noise and computes perceptual hashes
3. Clustering: Groups burst shots and near-duplicates, picks a keeper

The completed session is cached per library state. Re-running over an
unchanged library with the same thresholds reuses the cached session.`,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringP("library", "s", "", "photo library root directory")
	analyzeCmd.Flags().Int("limit", 0, "analyze only the first N photos (0 = all)")
	analyzeCmd.Flags().Bool("force", false, "re-analyze even when a cached session matches")
	analyzeCmd.Flags().String("events", "artifacts", "directory for JSONL event logs")

	viper.BindPFlag("library", analyzeCmd.Flags().Lookup("library"))
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	library := viper.GetString("library")
	if library == "" {
		return fmt.Errorf("library directory is required (use --library/-s or set in config)")
	}

	limit, _ := cmd.Flags().GetInt("limit")
	force, _ := cmd.Flags().GetBool("force")
	eventsDir, _ := cmd.Flags().GetString("events")

	dbPath := viper.GetString("db")
	verbose := viper.GetBool("verbose")
	quiet := viper.GetBool("quiet")

	util.SetVerbose(verbose)
	util.SetQuiet(quiet)

	if _, err := os.Stat(library); os.IsNotExist(err) {
		return fmt.Errorf("library directory does not exist: %s", library)
	}

	util.InfoLog("Opening database: %s", dbPath)

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	cfg, err := analyzeConfig(db)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := persistSettings(db, cfg); err != nil {
		util.WarnLog("Failed to persist settings: %v", err)
	}

	cache, err := session.NewCache(db)
	if err != nil {
		return fmt.Errorf("failed to load session cache: %w", err)
	}

	logLevel := report.LevelInfo
	if quiet {
		logLevel = report.LevelWarning
	} else if verbose {
		logLevel = report.LevelDebug
	}

	logger, err := report.NewEventLogger(eventsDir, logLevel)
	if err != nil {
		util.WarnLog("Failed to create event logger: %v", err)
		logger = report.NullLogger()
	}
	defer logger.Close()

	if logger.Path() != "" {
		util.InfoLog("Event log: %s", logger.Path())
	}

	// Cancel the run cleanly on Ctrl-C. In-flight photos finish, partial
	// results are discarded and the cached session stays untouched.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	util.InfoLog("=== Phase 1: Photo Discovery ===")
	util.InfoLog("Library: %s", library)

	lib := photo.NewFSLibrary(&photo.FSConfig{Root: library})
	records, err := lib.ListPhotos(ctx)
	if err != nil {
		return fmt.Errorf("failed to list photos: %w", err)
	}
	util.InfoLog("  Photos discovered: %d", len(records))

	if limit > 0 && limit < len(records) {
		records = records[:limit]
		util.InfoLog("  Sample scan: limited to first %d photos", limit)
	}

	fp := cfg.LibraryFingerprint(records)

	if !force {
		if cached, err := cache.Get(fp); err == nil {
			util.SuccessLog("Library unchanged, reusing cached session %s", cached.ID)
			report.BuildSummary(cached, cfg.NoiseThreshold, 0).Render(os.Stdout)
			return nil
		}
	}

	util.InfoLog("")
	util.InfoLog("=== Phase 2: Quality Analysis & Clustering ===")
	util.InfoLog("Concurrency: %d", cfg.Concurrency)

	scheduler, err := analyze.New(&analyze.SchedulerConfig{
		Library: lib,
		Logger:  logger,
		Config:  cfg,
	})
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	var sink analyze.ProgressSink
	var bar *progressbar.ProgressBar
	if util.IsTerminal(os.Stdout.Fd()) && !util.IsQuiet() {
		bar = progressbar.NewOptions(len(records),
			progressbar.OptionSetDescription("Analyzing"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("photos"),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetRenderBlankState(true),
		)
		sink = func(p analyze.Progress) {
			bar.Set(p.Processed)
		}
	}

	startTime := time.Now()

	sess, err := scheduler.Run(ctx, records, sink)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	duration := time.Since(startTime)

	if err := cache.Publish(sess); err != nil {
		return fmt.Errorf("failed to publish session: %w", err)
	}
	logger.LogPublish(sess.ID, sess.LibraryFingerprint, sess.TotalPhotos, len(sess.Clusters))

	util.SuccessLog("Analysis complete in %v", duration.Round(time.Millisecond))
	util.InfoLog("")

	report.BuildSummary(sess, cfg.NoiseThreshold, duration).Render(os.Stdout)
	return nil
}
