// Package cmd provides the command-line interface for PriceTrack. It handles
// command parsing, configuration loading, and wiring the harvest pipeline.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/okhmil/pricetrack/internal/config"
	"github.com/okhmil/pricetrack/internal/crawler"
	"github.com/okhmil/pricetrack/internal/logging"
	"github.com/okhmil/pricetrack/internal/storage"
)

var (
	cfgFile   string
	version   string
	buildTime string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pricetrack [start-url]",
	Short: "Periodic price harvester for e-commerce listing pages",
	Long: `PriceTrack walks paginated listing pages of grocery and e-commerce
sites, extracts product records, and stores them with full price history.

Each run is tracked as a scrape session; unchanged records are deduplicated
by content fingerprint, so repeated runs only add what actually changed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCrawl,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets version information for the CLI.
func SetVersionInfo(v, bt string) {
	version = v
	buildTime = bt
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildTime)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./pricetrack.yml)")
	rootCmd.PersistentFlags().StringP("database", "d", "./listings.db", "Path to SQLite database file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "json", "Log format: json or text")
	rootCmd.PersistentFlags().String("log-file", "", "Log file path (console only when empty)")

	rootCmd.Flags().Bool("show-config", false, "Display current configuration in YAML format and exit")

	rootCmd.Flags().StringP("site", "s", "", "Source identifier stored with each listing")
	rootCmd.Flags().String("category", "", "Category identifier stored with each listing")
	rootCmd.Flags().IntP("max-pages", "l", 0, "Stop after N listing pages (0=until pagination ends)")
	rootCmd.Flags().Bool("follow-items", false, "Fetch item detail pages instead of extracting from cards")
	rootCmd.Flags().IntP("concurrency", "c", 4, "Concurrent item-page workers")
	rootCmd.Flags().DurationP("delay", "r", 1*time.Second, "Minimum delay between requests to one host")
	rootCmd.Flags().DurationP("timeout", "t", 20*time.Second, "HTTP request timeout")
	rootCmd.Flags().Int("retry-max", 5, "Retry attempts for transient fetch failures")
	rootCmd.Flags().Duration("retry-budget", 60*time.Second, "Wall-clock cap across retries of one fetch")
	rootCmd.Flags().StringP("user-agent", "u", "PriceTrack/1.0", "HTTP User-Agent header")
	rootCmd.Flags().Bool("ignore-robots", false, "Ignore robots.txt rules")
	rootCmd.Flags().String("currency", "UAH", "Nominal currency for unmarked prices")
	rootCmd.Flags().String("session-id", "", "Session identifier (generated when empty)")

	bindFlags := []struct {
		viperKey string
		flagName string
	}{
		{"site", "site"},
		{"category", "category"},
		{"max_pages", "max-pages"},
		{"follow_items", "follow-items"},
		{"concurrency", "concurrency"},
		{"request_delay", "delay"},
		{"request_timeout", "timeout"},
		{"retry_max", "retry-max"},
		{"retry_budget", "retry-budget"},
		{"user_agent", "user-agent"},
		{"ignore_robots", "ignore-robots"},
		{"currency", "currency"},
		{"session_id", "session-id"},
		{"database_path", "database"},
	}

	for _, bind := range bindFlags {
		flag := rootCmd.Flags().Lookup(bind.flagName)
		if flag == nil {
			flag = rootCmd.PersistentFlags().Lookup(bind.flagName)
		}
		if err := viper.BindPFlag(bind.viperKey, flag); err != nil {
			// Non-critical: the flag still works, only env/file override is lost.
			fmt.Fprintf(os.Stderr, "Warning: failed to bind flag %s: %v\n", bind.flagName, err)
		}
	}
}

// initConfig reads in the config file and matching environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("pricetrack")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("PT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig merges defaults, config file, environment, and flags.
func loadConfig(args []string) (*config.SourceConfig, error) {
	cfg := config.DefaultConfig()

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(args) > 0 {
		cfg.StartURL = args[0]
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}

	return cfg, nil
}

func showCurrentConfig(cfg *config.SourceConfig) error {
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: configuration validation failed: %v\n\n", err)
	}

	yamlData, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration to YAML: %w", err)
	}

	fmt.Printf("# Current PriceTrack configuration\n")
	fmt.Printf("# Generated at: %s\n", time.Now().Format(time.RFC3339))
	fmt.Printf("# Config file search path: ./pricetrack.yml\n")
	fmt.Printf("# Environment variable prefix: PT_\n\n")
	fmt.Print(string(yamlData))

	return nil
}

func runCrawl(cmd *cobra.Command, args []string) error {
	showConfig, _ := cmd.Flags().GetBool("show-config")

	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	if showConfig {
		return showCurrentConfig(cfg)
	}

	if cfg.StartURL == "" {
		return fmt.Errorf("no start URL provided\nUsage: %s [start-url] --site <name>", os.Args[0])
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logOpts := logging.DefaultOptions()
	logOpts.Level, _ = cmd.Flags().GetString("log-level")
	logOpts.Format, _ = cmd.Flags().GetString("log-format")
	logOpts.FilePath, _ = cmd.Flags().GetString("log-file")

	logger, logCloser, err := logging.New(logOpts)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer func() { _ = logCloser.Close() }()

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o750); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	store, err := storage.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	limiter := crawler.NewRateLimiter(cfg.RequestDelay)
	var robots *crawler.Robots
	if !cfg.IgnoreRobots {
		robots = crawler.NewRobots(cfg.UserAgent, cfg.RequestTimeout, limiter)
	}
	fetcher := crawler.NewFetcher(cfg, limiter, robots)

	c, err := crawler.New(cfg, fetcher, store, store, crawler.NewLogProgress(logger))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Crawl starting",
		"session_id", cfg.SessionID,
		"site", cfg.Site,
		"start_url", cfg.StartURL)

	stats, runErr := c.Run(ctx)

	logger.Info("Crawl finished",
		"session_id", stats.SessionID,
		"pages", stats.Pages,
		"items", stats.Items,
		"new_listings", stats.NewListings,
		"errors", stats.Errors,
		"duration", stats.Duration.Round(time.Millisecond).String())

	if runErr != nil {
		return fmt.Errorf("crawl failed: %w", runErr)
	}

	fmt.Printf("Session %s: %d pages, %d items (%d new), %d errors in %s\n",
		stats.SessionID, stats.Pages, stats.Items, stats.NewListings,
		stats.Errors, stats.Duration.Round(time.Millisecond))

	return nil
}
