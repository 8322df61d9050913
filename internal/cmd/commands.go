package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/okhmil/pricetrack/internal/crawler"
	"github.com/okhmil/pricetrack/internal/export"
	"github.com/okhmil/pricetrack/internal/storage"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored listings as JSON or CSV",
	RunE:  runExport,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize stored listings",
	RunE:  runStats,
}

var historyCmd = &cobra.Command{
	Use:   "history <url>",
	Short: "Show the price history of one listing",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

var sessionCmd = &cobra.Command{
	Use:   "session <id>",
	Short: "Show the accounting of one scrape session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSession,
}

func init() {
	exportCmd.Flags().StringP("format", "f", "json", "Output format: json or csv")
	exportCmd.Flags().StringP("output", "o", "", "Output file (stdout when empty)")
	exportCmd.Flags().String("site", "", "Only listings from this site")
	exportCmd.Flags().String("category", "", "Only listings from this category")
	exportCmd.Flags().Int("limit", 0, "Maximum number of listings (0=all)")
	exportCmd.Flags().Bool("include-inactive", false, "Include listings a full re-crawl no longer found")

	statsCmd.Flags().String("site", "", "Only listings from this site")

	historyCmd.Flags().Int("limit", 20, "Maximum number of history entries")

	rootCmd.AddCommand(exportCmd, statsCmd, historyCmd, sessionCmd)
}

// openStore opens the database named by the persistent --database flag.
func openStore(cmd *cobra.Command) (*storage.SQLiteStore, error) {
	dbPath, _ := cmd.Flags().GetString("database")
	if dbPath == "" {
		dbPath = "./listings.db"
	}
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("database %s does not exist, run a crawl first", dbPath)
	}
	return storage.NewSQLiteStore(dbPath)
}

func runExport(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	site, _ := cmd.Flags().GetString("site")
	category, _ := cmd.Flags().GetString("category")
	limit, _ := cmd.Flags().GetInt("limit")
	includeInactive, _ := cmd.Flags().GetBool("include-inactive")

	listings, err := store.CurrentState(crawler.ListingFilter{
		Site:            site,
		Category:        category,
		Limit:           limit,
		IncludeInactive: includeInactive,
	})
	if err != nil {
		return fmt.Errorf("failed to load listings: %w", err)
	}

	var out io.Writer = os.Stdout
	if path, _ := cmd.Flags().GetString("output"); path != "" {
		file, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() { _ = file.Close() }()
		out = file
	}

	format, _ := cmd.Flags().GetString("format")
	return export.Write(out, export.Format(format), listings)
}

func runStats(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	site, _ := cmd.Flags().GetString("site")
	stats, err := store.Stats(site)
	if err != nil {
		return fmt.Errorf("failed to load stats: %w", err)
	}

	scope := "all sites"
	if site != "" {
		scope = site
	}
	fmt.Printf("Listings (%s): %d active, %d unique URLs\n",
		scope, stats.TotalListings, stats.UniqueURLs)
	if stats.AveragePrice != nil {
		fmt.Printf("Average price: %.2f\n", *stats.AveragePrice)
	}

	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	limit, _ := cmd.Flags().GetInt("limit")
	entries, err := store.PriceHistory(args[0], limit)
	if err != nil {
		return fmt.Errorf("failed to load price history: %w", err)
	}
	if len(entries) == 0 {
		fmt.Printf("No price history for %s\n", args[0])
		return nil
	}

	for _, e := range entries {
		price := "unknown"
		if e.Price != nil {
			price = fmt.Sprintf("%.2f %s", *e.Price, e.Currency)
		}
		fmt.Printf("%s  %s\n", e.RecordedAt.Format("2006-01-02 15:04:05"), price)
	}

	return nil
}

func runSession(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	sess, err := store.GetSession(args[0])
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	fmt.Printf("Session:  %s\n", sess.ID)
	fmt.Printf("Site:     %s\n", sess.Site)
	fmt.Printf("Status:   %s\n", sess.Status)
	fmt.Printf("Started:  %s\n", sess.StartTime.Format("2006-01-02 15:04:05"))
	if sess.EndTime != nil {
		fmt.Printf("Ended:    %s\n", sess.EndTime.Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("Pages:    %d\n", sess.PagesScraped)
	fmt.Printf("Products: %d\n", sess.ProductsFound)
	fmt.Printf("Errors:   %d\n", sess.ErrorsCount)

	q, err := store.Quality(args[0])
	if err != nil {
		return fmt.Errorf("failed to load session quality: %w", err)
	}
	if q.Records > 0 {
		fmt.Printf("Quality:  %d records, %d priced, %d titled, %d with image\n",
			q.Records, q.WithPrice, q.WithTitle, q.WithImage)
	}

	return nil
}
