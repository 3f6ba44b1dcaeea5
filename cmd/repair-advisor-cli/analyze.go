package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/fixfirst/repair-advisor/internal/pipeline"
	"github.com/fixfirst/repair-advisor/internal/recommend"
)

// newAnalyzeCmd creates the analyze subcommand.
func newAnalyzeCmd() *cobra.Command {
	var (
		userAgent   string
		sessionID   string
		skill       string
		preferences []string
		timeout     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "analyze \"<message>\"",
		Short: "Analyze a support message and suggest repair procedures",
		Example: `  repair-advisor analyze "My iPhone 14 screen is cracked"
  repair-advisor analyze "battery drains fast" --skill beginner --preference quick_repair
  repair-advisor analyze "laptop won't charge" --user-agent "Mozilla/5.0 ..." --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, closeFn, err := buildPipeline()
			if err != nil {
				return err
			}
			defer closeFn()

			req := pipeline.Request{
				Message:   args[0],
				Header:    userAgent,
				SessionID: sessionID,
			}
			if skill != "" || len(preferences) > 0 {
				req.Profile = &recommend.Profile{
					SkillLevel:  recommend.SkillLevel(skill),
					Preferences: preferences,
				}
			}

			var spin *spinner.Spinner
			if !outputJSON {
				spin = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
				spin.Suffix = " Analyzing message..."
				spin.Start()
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			result := p.IdentifyAndRecommend(ctx, req)

			if spin != nil {
				spin.Stop()
			}

			if outputJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			printResult(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&userAgent, "user-agent", "", "device-identifying header string to fuse with the text match")
	cmd.Flags().StringVar(&sessionID, "session", "", "session identifier for analytics")
	cmd.Flags().StringVar(&skill, "skill", "", "skill level for personalized recommendations (beginner, intermediate, expert, professional)")
	cmd.Flags().StringSliceVar(&preferences, "preference", nil, "personalization preferences (quick_repair, detailed_guide)")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "analysis timeout")

	return cmd
}

func printResult(result pipeline.Result) {
	header := color.New(color.FgCyan, color.Bold)
	label := color.New(color.FgWhite, color.Bold)
	good := color.New(color.FgGreen)
	warn := color.New(color.FgYellow)

	fmt.Println()
	header.Println("Analysis")
	label.Print("  Device:     ")
	if result.Device.IsKnown() {
		fmt.Printf("%s (%.0f%% confident, %s)\n", result.Device.String(), result.Device.Confidence*100, result.Device.Source)
	} else {
		warn.Println("not identified")
	}
	label.Print("  Problem:    ")
	fmt.Printf("%s, severity %s (%.0f%% confident)\n", result.Problem.Category, result.Problem.Severity, result.Problem.Confidence*100)
	label.Print("  Intent:     ")
	fmt.Printf("%s\n", result.Intent.Intent)
	label.Print("  Confidence: ")
	switch result.Confidence.Level {
	case "high":
		good.Printf("%.2f (%s)\n", result.Confidence.Overall, result.Confidence.Level)
	default:
		warn.Printf("%.2f (%s)\n", result.Confidence.Overall, result.Confidence.Level)
	}
	if result.CostEstimate != nil {
		label.Print("  Cost:       ")
		fmt.Println(result.CostEstimate.Range)
	}

	fmt.Println()
	header.Println("Answer")
	fmt.Printf("  %s\n", result.Response.Answer)

	if len(result.Response.RecommendedActions) > 0 {
		fmt.Println()
		header.Println("Recommended actions")
		for _, action := range result.Response.RecommendedActions {
			fmt.Printf("  - %s\n", action)
		}
	}

	if len(result.Recommendations) > 0 {
		fmt.Println()
		header.Println("Personalized recommendations")
		for _, rec := range result.Recommendations {
			label.Printf("  %d. %s", rec.Rank, rec.Procedure.Title)
			fmt.Printf(" (score %.2f, difficulty %d/5)\n", rec.MLScore, rec.Procedure.DifficultyLevel)
			fmt.Printf("     %s\n", rec.Explanation)
		}
	} else if len(result.Procedures) > 0 {
		fmt.Println()
		header.Println("Matching procedures")
		for i, sp := range result.Procedures {
			if i >= 5 {
				break
			}
			label.Printf("  %d. %s", i+1, sp.Procedure.Title)
			fmt.Printf(" (relevance %.2f, difficulty %d/5)\n", sp.RelevanceScore, sp.Procedure.DifficultyLevel)
			if sp.RecommendationReason != "" {
				fmt.Printf("     %s\n", sp.RecommendationReason)
			}
		}
	} else {
		fmt.Println()
		warn.Println("No matching procedures found.")
	}

	for _, step := range result.Response.NextSteps {
		if step.BookingRecommended {
			fmt.Println()
			warn.Printf("→ %s: %s\n", step.Title, step.Description)
		}
	}
	fmt.Println()
}
