package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pasis-project/pasis/internal/collect"
	"github.com/pasis-project/pasis/internal/config"
	"github.com/pasis-project/pasis/internal/database"
	"github.com/pasis-project/pasis/internal/pipeline"
	"github.com/pasis-project/pasis/internal/signal"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "pasis",
	Short:   "Physical AI strategic intelligence signals",
	Long:    "pasis collects physical-AI market signals from arXiv, SEC EDGAR and trade press, scores and enriches them, and archives the results for analysis.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(queryCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("pasis", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/pasis/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure sources, keywords, and the LLM provider.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Database: %s\n\n", db.Path())
		fmt.Println("Signals:")
		fmt.Printf("  Total archived: %d\n", stats.TotalSignals)
		fmt.Printf("  Collected this week: %d\n", stats.ThisWeek)
		fmt.Printf("  Average confidence: %.2f\n", stats.AvgConfidence)

		if len(stats.ByScope) > 0 {
			fmt.Println("\nBy scope:")
			for _, scope := range signal.Scopes {
				if n, ok := stats.ByScope[string(scope)]; ok {
					fmt.Printf("  %-8s %d\n", scope, n)
				}
			}
		}

		publishers, err := db.TopPublishers(5)
		if err != nil {
			return fmt.Errorf("getting publishers: %w", err)
		}
		if len(publishers) > 0 {
			fmt.Println("\nTop publishers:")
			for _, p := range publishers {
				fmt.Printf("  %-24s %d (confidence %.2f)\n", p.Publisher, p.Count, p.AvgConfidence)
			}
		}
		return nil
	},
}

// --- collect command ---

var collectDaysBack int

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect raw signals from configured sources (no enrichment or archiving)",
	RunE: func(cmd *cobra.Command, args []string) error {
		daysBack := collectDaysBack
		if daysBack <= 0 {
			daysBack = cfg.Quality.LookbackDays
		}

		fmt.Printf("Collecting signals from the last %d day(s)...\n", daysBack)

		collector := collect.NewCollector(cfg)
		records, result := collector.RunAll(context.Background(), daysBack)

		fmt.Println("\nCollection complete:")
		fmt.Printf("  Total found: %d\n", len(records))

		if len(result.BySource) > 0 {
			fmt.Println("\nSignals by source:")
			type kv struct {
				key string
				val int
			}
			var sorted []kv
			for k, v := range result.BySource {
				sorted = append(sorted, kv{k, v})
			}
			sort.Slice(sorted, func(i, j int) bool { return sorted[i].val > sorted[j].val })
			for _, s := range sorted {
				fmt.Printf("  %s: %d\n", s.key, s.val)
			}
		}

		for _, f := range result.Failures {
			fmt.Printf("\nSource failed: %s\n", f)
		}
		return nil
	},
}

func init() {
	collectCmd.Flags().IntVar(&collectDaysBack, "days-back", 0, "Override lookback window (days)")
}

// --- run command ---

var (
	runDaysBack int
	skipEnrich  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: collect -> fetch -> enrich -> archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		pipe := pipeline.New(cfg, db)
		result := pipe.Run(context.Background(), pipeline.Options{
			DaysBack:   runDaysBack,
			SkipEnrich: skipEnrich,
		})

		for i, step := range result.Steps {
			fmt.Printf("\nStep %d/%d: %s\n", i+1, len(result.Steps), step.Name)
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
			} else {
				fmt.Printf("  %s\n", step.Summary)
			}
		}

		if len(result.Batch.Errors) > 0 {
			fmt.Println("\nRecord errors:")
			for _, e := range result.Batch.Errors {
				fmt.Printf("  %s\n", e)
			}
		}

		fmt.Println("\nPipeline complete. Run 'pasis status' for the archive overview.")
		return nil
	},
}

func init() {
	runCmd.Flags().IntVar(&runDaysBack, "days-back", 0, "Override lookback window (days)")
	runCmd.Flags().BoolVar(&skipEnrich, "skip-enrich", false, "Archive signals without LLM enrichment")
}

// --- query command ---

var (
	queryScope    string
	queryDaysBack int
	queryLimit    int
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "List archived signals by scope and time window",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if queryScope != "" && !signal.Scope(queryScope).Valid() {
			return fmt.Errorf("unknown scope %q (valid: Market, Tech, Case, Policy)", queryScope)
		}

		daysBack := queryDaysBack
		if daysBack <= 0 {
			daysBack = cfg.Quality.LookbackDays
		}

		signals, err := db.SignalsByScope(queryScope, daysBack, queryLimit)
		if err != nil {
			return fmt.Errorf("querying signals: %w", err)
		}

		if len(signals) == 0 {
			fmt.Println("No signals in the selected window.")
			return nil
		}

		for _, s := range signals {
			date := ""
			if s.PublishedAt != nil && len(*s.PublishedAt) >= 10 {
				date = (*s.PublishedAt)[:10]
			}
			category := ""
			if s.Category != nil {
				category = *s.Category
			}
			fmt.Printf("[%s] %-6s %-16s %s\n", date, s.Scope, category, s.Title)
			if s.Summary != nil && *s.Summary != "" {
				fmt.Printf("    %s\n", clipLine(*s.Summary, 120))
			}
		}
		fmt.Printf("\n%d signal(s)\n", len(signals))
		return nil
	},
}

func init() {
	queryCmd.Flags().StringVar(&queryScope, "scope", "", "Filter by scope (Market, Tech, Case, Policy)")
	queryCmd.Flags().IntVar(&queryDaysBack, "days-back", 0, "Trailing window in days")
	queryCmd.Flags().IntVar(&queryLimit, "limit", 50, "Maximum signals to list")
}

func clipLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return database.Open(filepath.Join(dataDir, "pasis.db"))
}
