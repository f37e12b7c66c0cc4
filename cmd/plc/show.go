package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/franz/photo-janitor/internal/quality"
	"github.com/franz/photo-janitor/internal/session"
	"github.com/franz/photo-janitor/internal/store"
	"github.com/franz/photo-janitor/internal/util"
)

var showCmd = &cobra.Command{
	Use:   "show [fingerprint]",
	Short: "Show cached analysis sessions and their clusters",
	Long: `Display a cached session in a human-readable format.

Without arguments, lists all cached sessions by library fingerprint.
With a fingerprint, shows the duplicate clusters:
- Members ordered by capture time
- The representative (keeper) photo
- Match score and grouping reason
- Quality verdicts per member

Use this to review a session before filtering clusters.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)

	showCmd.Flags().Bool("clusters-only", false, "Show only duplicate clusters, skip verdict breakdown")
	showCmd.Flags().Bool("verbose", false, "Show per-member quality scores")
}

func runShow(cmd *cobra.Command, args []string) error {
	dbPath := viper.GetString("db")
	clustersOnly, _ := cmd.Flags().GetBool("clusters-only")
	verbose, _ := cmd.Flags().GetBool("verbose")

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	cache, err := session.NewCache(db)
	if err != nil {
		return fmt.Errorf("failed to load session cache: %w", err)
	}

	if len(args) == 0 {
		return listSessions(cache)
	}
	return showSession(cache, args[0], clustersOnly, verbose)
}

func listSessions(cache *session.Cache) error {
	fps := cache.Fingerprints()
	if len(fps) == 0 {
		util.WarnLog("No cached sessions. Run 'plc analyze' first.")
		return nil
	}

	util.InfoLog("=== Cached Sessions ===")
	for _, fp := range fps {
		s, err := cache.Get(fp)
		if err != nil {
			continue
		}
		util.InfoLog("  %s", fp)
		util.InfoLog("    session: %s  created: %s  photos: %d  clusters: %d",
			s.ID, s.CreatedAt.Format("2006-01-02 15:04:05"), s.TotalPhotos, len(s.Clusters))
	}
	return nil
}

func showSession(cache *session.Cache, fingerprint string, clustersOnly, verbose bool) error {
	s, err := cache.Get(fingerprint)
	if err != nil {
		return fmt.Errorf("no cached session for fingerprint %s, run 'plc analyze' first", fingerprint)
	}

	resultsByID := make(map[string]*quality.Result, len(s.QualityResults))
	for _, r := range s.QualityResults {
		resultsByID[r.PhotoID] = r
	}

	util.InfoLog("=== Session %s ===", s.ID)
	util.InfoLog("Created: %s", s.CreatedAt.Format("2006-01-02 15:04:05"))
	util.InfoLog("Photos: %s analyzed, %s unanalyzable",
		humanize.Comma(int64(len(s.QualityResults))), humanize.Comma(int64(len(s.Unanalyzable))))
	util.InfoLog("")

	if !clustersOnly {
		byVerdict := make(map[quality.Verdict]int)
		for _, r := range s.QualityResults {
			byVerdict[r.Verdict]++
		}
		util.InfoLog("Verdicts:")
		for _, v := range []quality.Verdict{
			quality.VerdictSharp, quality.VerdictSlightlyBlurry,
			quality.VerdictBlurry, quality.VerdictVeryBlurry,
		} {
			if byVerdict[v] > 0 {
				util.InfoLog("  %-16s %d", v, byVerdict[v])
			}
		}
		util.InfoLog("")
	}

	if len(s.Clusters) == 0 {
		util.InfoLog("No duplicate clusters found.")
		return nil
	}

	util.InfoLog("Clusters: %d (%d duplicate photos)", len(s.Clusters), s.DuplicateCount())
	for _, c := range s.Clusters {
		util.InfoLog("")
		util.InfoLog("%s  match=%.2f  span=%.1fs", c.ID, c.MatchScore, c.Reason.TimeSpanSeconds)
		for _, id := range c.Members {
			marker := " "
			if id == c.Representative {
				marker = "*"
			}
			if verbose {
				if r, ok := resultsByID[id]; ok {
					util.InfoLog("  %s %s  blur=%.1f exposure=%+.2f noise=%.2f (%s)",
						marker, id, r.BlurScore, r.ExposureScore, r.NoiseScore, r.Verdict)
					continue
				}
			}
			util.InfoLog("  %s %s", marker, id)
		}
	}

	return nil
}
