package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"crypto-analyst/internal/models"
	"crypto-analyst/internal/resilience"
)

func newAnalyzeCmd(app *App) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "analyze SYMBOL [SYMBOL...]",
		Short: "Run or fetch today's analysis",
		Long: `Return today's analysis for each symbol, computing it on a cache miss.

Examples:
  analyst analyze BTCUSDT
  analyst analyze BTCUSDT ETHUSDT SOLUSDT --json
  analyst analyze BTCUSDT --force`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := app.init(ctx); err != nil {
				return err
			}
			output := NewOutput(cmd)

			if force {
				for _, sym := range args {
					if err := app.Service.Invalidate(ctx, sym); err != nil {
						return err
					}
				}
			}

			if len(args) == 1 {
				res, err := app.Service.PerformCurrencyAnalysis(ctx, args[0])
				if err != nil {
					return err
				}
				if output.IsJSON() {
					return output.JSON(res)
				}
				printAnalysis(output, res)
				return nil
			}

			items := app.Service.AnalyzeBatch(ctx, args)
			var failed int
			results := make([]*models.AnalysisResult, 0, len(items))
			for _, item := range items {
				if item.Err != nil {
					failed++
					output.Error("%s: %v", item.Symbol, item.Err)
					continue
				}
				results = append(results, item.Result)
			}
			if output.IsJSON() {
				if err := output.JSON(results); err != nil {
					return err
				}
			} else {
				printSummaryTable(output, results)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d analyses failed", failed, len(items))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "discard today's cached analysis first")
	return cmd
}

func newStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status [SYMBOL]",
		Short: "Show today's cache state",
		Long:  "With a symbol, report whether it still needs analysis today. Without one, list today's stored analyses.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := app.init(ctx); err != nil {
				return err
			}
			output := NewOutput(cmd)

			if len(args) == 1 {
				st, err := app.Service.Status(ctx, args[0])
				if err != nil {
					return err
				}
				if output.IsJSON() {
					return output.JSON(st)
				}
				state := output.Green("cached")
				if st.NeedsAnalysis {
					state = output.Yellow("needs analysis")
				}
				output.Printf("%s %s (%s): %s\n", st.Symbol, st.Date, st.AnalysisType, state)
				output.Dim("Next refresh in %s", FormatDuration(time.Until(st.NextRefresh)))
				return nil
			}

			keys, err := app.Service.Today(ctx)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				out := make([]string, len(keys))
				for i, k := range keys {
					out[i] = k.String()
				}
				return output.JSON(out)
			}
			if len(keys) == 0 {
				output.Dim("No analyses stored for today")
				return nil
			}
			t := NewTable(output, "SYMBOL", "DATE", "TYPE")
			for _, k := range keys {
				t.AddRow(k.Symbol, k.Date, k.Type)
			}
			t.Render()
			return nil
		},
	}
}

func newInvalidateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate SYMBOL",
		Short: "Drop today's cached analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := app.init(ctx); err != nil {
				return err
			}
			if err := app.Service.Invalidate(ctx, args[0]); err != nil {
				return err
			}
			NewOutput(cmd).Success("Invalidated %s", strings.ToUpper(args[0]))
			return nil
		},
	}
}

func newProvidersCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "Show the AI provider chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.init(cmd.Context()); err != nil {
				return err
			}
			output := NewOutput(cmd)
			stats := app.Service.Breakers()
			if output.IsJSON() {
				return output.JSON(stats)
			}
			if app.Chain.Len() == 0 {
				output.Warning("No providers configured with credentials")
				return nil
			}
			output.Info("%d chain entries", app.Chain.Len())
			t := NewTable(output, "PROVIDER", "CIRCUIT", "OK", "FAILED", "REJECTED")
			for _, s := range stats {
				state := output.Green(string(s.State))
				if s.State != resilience.CircuitClosed {
					state = output.Red(string(s.State))
				}
				t.AddRow(s.Name, state,
					fmt.Sprint(s.TotalSuccesses), fmt.Sprint(s.TotalFailures), fmt.Sprint(s.TotalRejected))
			}
			t.Render()
			return nil
		},
	}
}

func printAnalysis(output *Output, res *models.AnalysisResult) {
	header := fmt.Sprintf("%s  %s  %s", res.Symbol, FormatUSD(res.CurrentPrice), output.FormatPercent(res.PriceChangePercent24h))
	output.Box(header, []string{
		fmt.Sprintf("Trend:      %s (%s)", output.Direction(string(res.Trend.Direction)), FormatConfidence(res.Trend.Confidence)),
		fmt.Sprintf("Sentiment:  %s (%.0f)", res.MarketSentiment.Label, res.MarketSentiment.Score),
		fmt.Sprintf("Date:       %s", res.AnalysisDate),
	})
	output.Println()

	t := NewTable(output, "INDICATOR", "VALUE", "SIGNAL", "", "INTERPRETATION")
	for _, name := range models.IndicatorNames {
		e, ok := res.TechnicalAnalysis[name]
		if !ok {
			continue
		}
		t.AddRow(name, FormatValue(e.Value), output.Direction(string(e.Signal)), output.SourceTag(e.Source), TruncateString(e.Interpretation, 60))
	}
	t.Render()
	output.Println()

	if res.Trend.Summary != "" {
		output.Println(res.Trend.Summary)
	}
	if res.Summary != "" && res.Summary != res.Trend.Summary {
		output.Println(res.Summary)
	}
	if len(res.RiskFactors) > 0 {
		output.Println()
		output.Warning("Risk factors")
		for _, r := range res.RiskFactors {
			output.Printf("  - %s\n", r)
		}
	}
	output.Println()

	source := fmt.Sprintf("%s/%s", res.DataSources.Provider, res.DataSources.AnalysisModel)
	if res.IsFallback() {
		source = output.Yellow(source)
	}
	output.Dim("Source %s, %d attempts, completeness %.0f%%, quality %s, %s",
		source, res.QualityMetrics.AIAttempts, res.QualityMetrics.DataCompleteness*100,
		FormatConfidence(res.QualityMetrics.Confidence),
		FormatDuration(time.Duration(res.QualityMetrics.ProcessingTimeMs)*time.Millisecond))
}

func printSummaryTable(output *Output, results []*models.AnalysisResult) {
	t := NewTable(output, "SYMBOL", "PRICE", "24H", "TREND", "CONF", "SENTIMENT", "SOURCE")
	for _, r := range results {
		t.AddRow(r.Symbol, FormatUSD(r.CurrentPrice), output.FormatPercent(r.PriceChangePercent24h),
			output.Direction(string(r.Trend.Direction)), FormatConfidence(r.Trend.Confidence),
			r.MarketSentiment.Label, r.DataSources.Provider)
	}
	t.Render()
}
