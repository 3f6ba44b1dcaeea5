// Package main provides the repair advisor CLI entrypoint.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fixfirst/repair-advisor/internal/cache"
	"github.com/fixfirst/repair-advisor/internal/config"
	"github.com/fixfirst/repair-advisor/internal/device"
	"github.com/fixfirst/repair-advisor/internal/observability"
	"github.com/fixfirst/repair-advisor/internal/pipeline"
	"github.com/fixfirst/repair-advisor/internal/recommend"
	"github.com/fixfirst/repair-advisor/internal/retrieval"
	"github.com/fixfirst/repair-advisor/internal/storage"
)

var (
	// Global flags
	cfgFile    string
	outputJSON bool
	verbose    bool

	// Configuration and logger
	cfg    *config.Config
	logger *observability.Logger
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "repair-advisor",
	Short: "Repair advisor CLI for analyzing device repair requests",
	Long: `Repair advisor CLI analyzes free-text support messages.

Use this tool to:
- Identify the device and problem a message describes
- Retrieve and rank matching repair procedures
- Get personalized recommendations for a skill level

All commands support --json for automation.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logLevel := "error"
		if verbose {
			logLevel = "debug"
		}

		logger = observability.NewLogger(observability.LogConfig{
			Level:       logLevel,
			Format:      "console",
			ServiceName: "repair-advisor-cli",
		})

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: uses env vars)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildPipeline wires the full analysis pipeline against the configured
// knowledge store. The caller owns the returned close function.
func buildPipeline() (*pipeline.Pipeline, func(), error) {
	db, err := storage.Open(cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to knowledge store: %w", err)
	}

	procedures := storage.NewProcedureRepository(db)
	interactions := storage.NewInteractionRepository(db)

	matcher := device.NewMatcher(device.MatcherOptions{
		Cache:              cache.NewMemoryClient(cfg.Cache.MaxEntries),
		CacheTTL:           cfg.Cache.TTL,
		FuzzyThreshold:     cfg.Matcher.FuzzyThreshold,
		AgreementThreshold: cfg.Matcher.AgreementThreshold,
		Logger:             logger,
	})

	p := pipeline.New(pipeline.Options{
		Matcher: matcher,
		Searcher: retrieval.NewSearcher(procedures, retrieval.Limits{
			Exact:   cfg.Retrieval.ExactLimit,
			Fuzzy:   cfg.Retrieval.FuzzyLimit,
			Generic: cfg.Retrieval.GenericLimit,
		}, logger),
		Ranker: retrieval.NewRanker(retrieval.Weights{
			Device:  cfg.Ranking.DeviceWeight,
			Problem: cfg.Ranking.ProblemWeight,
			Quality: cfg.Ranking.QualityWeight,
			Search:  cfg.Ranking.SearchWeight,
		}),
		Enricher:      retrieval.NewEnricher(procedures, cfg.Retrieval.EnrichTopN, logger),
		Diagnostician: retrieval.NewDiagnostician(procedures, retrieval.DefaultDiagnosticLimit, logger),
		Composer: recommend.NewComposer(recommend.ComposerOptions{
			MaxRecommendations: cfg.Recommend.MaxRecommendations,
			DisableJitter:      cfg.Recommend.DisableJitter,
			Logger:             logger,
		}),
		Analytics: interactions,
		Logger:    logger,
	})

	return p, func() { db.Close() }, nil
}

// newVersionCmd creates the version subcommand.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("repair-advisor-cli v0.3.0")
		},
	}
}
