package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/franz/photo-janitor/internal/session"
	"github.com/franz/photo-janitor/internal/store"
	"github.com/franz/photo-janitor/internal/util"
)

var filterCmd = &cobra.Command{
	Use:   "filter <fingerprint>",
	Short: "Derive a filtered sub-session from selected clusters",
	Long: `Select clusters from a cached session and produce a filtered
sub-session carrying the resolved member photos per cluster.

The filtered session is written as JSON to stdout (or --out). It fails
when no clusters are selected or the selection resolves to zero photos;
cluster ids not present in the session are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runFilter,
}

func init() {
	rootCmd.AddCommand(filterCmd)

	filterCmd.Flags().StringSlice("clusters", nil, "cluster ids to keep (comma-separated or repeated)")
	filterCmd.Flags().String("out", "", "write the filtered session to a file instead of stdout")
}

func runFilter(cmd *cobra.Command, args []string) error {
	fingerprint := args[0]
	clusterIDs, _ := cmd.Flags().GetStringSlice("clusters")
	outPath, _ := cmd.Flags().GetString("out")

	dbPath := viper.GetString("db")
	util.SetVerbose(viper.GetBool("verbose"))
	util.SetQuiet(viper.GetBool("quiet"))

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	cache, err := session.NewCache(db)
	if err != nil {
		return fmt.Errorf("failed to load session cache: %w", err)
	}

	filtered, err := cache.DeriveFiltered(fingerprint, clusterIDs)
	if err != nil {
		var verr *session.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("cannot filter session: %s", verr.Reason)
		}
		if errors.Is(err, util.ErrNotFound) {
			return fmt.Errorf("no cached session for fingerprint %s, run 'plc analyze' first", fingerprint)
		}
		return err
	}

	doc, err := json.MarshalIndent(filtered, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode filtered session: %w", err)
	}
	doc = append(doc, '\n')

	if outPath != "" {
		if err := os.WriteFile(outPath, doc, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", outPath, err)
		}
		util.SuccessLog("Filtered session written to %s (%d clusters, %d photos)",
			outPath, len(filtered.Clusters), filtered.PhotoCount())
		return nil
	}

	if _, err := os.Stdout.Write(doc); err != nil {
		return err
	}
	return nil
}
