package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kingabzpro/ECom-Intel/internal/orchestrator"
	"github.com/kingabzpro/ECom-Intel/internal/review"
	"github.com/kingabzpro/ECom-Intel/internal/runs"
)

func newAnalyzeCmd() *cobra.Command {
	var (
		maxPages     int
		forceRefresh bool
	)

	cmd := &cobra.Command{
		Use:   "analyze <product-url>",
		Short: "Analyze product reviews and print a summary",
		Long: `Runs the full pipeline for one product URL: search for review pages,
scrape them, analyze the reviews, and print a human-readable summary.
Cached results are served instantly unless --force-refresh is set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args[0], maxPages, forceRefresh)
		},
	}

	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "maximum review pages to scrape (0 uses the configured default)")
	cmd.Flags().BoolVar(&forceRefresh, "force-refresh", false, "ignore the cached analysis and scrape again")
	return cmd
}

func runAnalyze(cmd *cobra.Command, productURL string, maxPages int, forceRefresh bool) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := a.Config()
	if maxPages <= 0 {
		maxPages = cfg.Scraper.MaxPagesDefault
	}
	if maxPages > cfg.Scraper.MaxPagesLimit {
		maxPages = cfg.Scraper.MaxPagesLimit
	}

	run, err := a.Orchestrator().Execute(cmd.Context(), orchestrator.Request{
		ProductURL:   productURL,
		MaxPages:     maxPages,
		ForceRefresh: forceRefresh,
	})
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), review.UserMessage(err))
		return err
	}

	name := run.ProductURL
	if product, perr := a.Store().GetProduct(cmd.Context(), run.ProductURL); perr == nil && product.Name != "" {
		name = product.Name
	}

	renderSummary(cmd.OutOrStdout(), name, run)
	return nil
}

// renderSummary prints the analysis report the way the dashboard shows it,
// as plain text.
func renderSummary(w io.Writer, name string, run runs.Run) {
	result := run.Result
	if result == nil {
		fmt.Fprintln(w, "No analysis available.")
		return
	}

	fmt.Fprintf(w, "Review summary for %s\n", name)
	fmt.Fprintf(w, "%s\n\n", strings.Repeat("=", len("Review summary for ")+len(name)))

	if run.FromCache {
		fmt.Fprintln(w, "(served from cache; use --force-refresh to rescrape)")
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Reviews analyzed: %d\n", result.TotalReviews)
	fmt.Fprintf(w, "Sentiment: %d positive / %d negative / %d neutral\n",
		result.Sentiment.Positive, result.Sentiment.Negative, result.Sentiment.Neutral)
	if result.AverageRating > 0 {
		fmt.Fprintf(w, "Average rating: %.1f / 5\n", result.AverageRating)
	}

	rated := 0
	for _, n := range result.Stars {
		rated += n
	}
	if rated > 0 {
		fmt.Fprintln(w)
		for i := 4; i >= 0; i-- {
			fmt.Fprintf(w, "%d star%s %s %d\n",
				i+1, plural(i+1), bar(result.Stars[i], rated), result.Stars[i])
		}
	}

	printList(w, "Key insights", result.KeyInsights)
	printList(w, "Pros", result.Pros)
	printList(w, "Cons", result.Cons)
	printList(w, "Themes", result.Themes)
	printList(w, "Recommendations", result.Recommendations)
}

func printList(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(w, "  - %s\n", item)
	}
}

// bar renders a 20-slot histogram bar proportional to count/total.
func bar(count, total int) string {
	const width = 20
	filled := 0
	if total > 0 {
		filled = count * width / total
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

func plural(n int) string {
	if n == 1 {
		return " "
	}
	return "s"
}
