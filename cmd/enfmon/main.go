package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/enfmon/enfmon/internal/archive"
	"github.com/enfmon/enfmon/internal/basket"
	"github.com/enfmon/enfmon/internal/config"
	"github.com/enfmon/enfmon/internal/database"
	"github.com/enfmon/enfmon/internal/pipeline"
	"github.com/enfmon/enfmon/internal/rates"
	"github.com/enfmon/enfmon/internal/server"
	"github.com/enfmon/enfmon/internal/shopping"
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
	Use:     "enfmon",
	Short:   "Independent consumer price monitor",
	Long:    "enfmon tracks a basket of product pages, builds a daily price index, and narrates the day's inflation into a dashboard.",
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
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(basketCmd)
	rootCmd.AddCommand(ratesCmd)
	rootCmd.AddCommand(compareCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("enfmon", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/enfmon/",
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
		fmt.Println("Edit it, then import your basket with 'enfmon basket import <csv>'.")
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

		fmt.Printf("Today: %s\n\n", database.GetToday())
		fmt.Println("Basket:")
		fmt.Printf("  Items: %d\n", stats.BasketItems)
		fmt.Printf("  Manual overrides: %d\n", stats.ManualOverrides)
		fmt.Println("\nPrice log:")
		fmt.Printf("  Observations: %d\n", stats.Observations)
		fmt.Printf("  Days with data: %d\n", stats.DaysWithData)
		if stats.FirstDate != "" {
			fmt.Printf("  Range: %s to %s\n", stats.FirstDate, stats.LastDate)
		}
		fmt.Println("\nReports:")
		fmt.Printf("  Stored: %d\n", stats.Reports)
		return nil
	},
}

// --- ingest command ---

var ingestCmd = &cobra.Command{
	Use:   "ingest [bundle.zip ...]",
	Short: "Ingest page bundles into the price log",
	Long:  "Extracts prices from saved product pages and appends today's observations. With no arguments the configured bundle directory is scanned.",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		bundles := args
		if len(bundles) == 0 {
			bundles, _ = filepath.Glob(filepath.Join(cfg.GetBundlesDir(), "*.zip"))
			sort.Strings(bundles)
		}
		if len(bundles) == 0 {
			return fmt.Errorf("no bundles given and none found in %s", cfg.GetBundlesDir())
		}

		u := &archive.Updater{DB: db, Logger: log.Default(), Metrics: archive.NewMetrics()}
		n, err := u.Run(bundles)
		if err != nil {
			return err
		}
		fmt.Printf("Wrote %d observations from %d bundle(s) for %s.\n", n, len(bundles), database.GetToday())
		return nil
	},
}

// --- run command ---

var dryRun bool

var runCmd = &cobra.Command{
	Use:   "run [bundle.zip ...]",
	Short: "Run the full pipeline: ingest -> index -> forecast -> news -> report",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		pipe := pipeline.New(cfg, db, archive.NewMetrics())

		var result *pipeline.Result
		if dryRun {
			result = pipe.DryRun()
		} else {
			result = pipe.Run(context.Background(), args)
		}

		for i, step := range result.Steps {
			fmt.Printf("\nStep %d: %s\n", i+1, step.Name)
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
			} else {
				fmt.Printf("  %s\n", step.Summary)
			}
		}

		if !dryRun {
			fmt.Println("\nRun complete! Start 'enfmon serve' to view the dashboard.")
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without executing")
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, cfg, archive.NewMetrics(), port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default from config)")
}

// --- basket commands ---

var basketCmd = &cobra.Command{
	Use:   "basket",
	Short: "Manage the tracked item basket",
}

var basketImportCmd = &cobra.Command{
	Use:   "import [csv]",
	Short: "Import the basket from a CSV file",
	Long:  "Replaces the stored basket with the CSV contents. With no argument the configured basket.csv_path is used.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.Basket.CSVPath
		if len(args) > 0 {
			path = args[0]
		}
		if path == "" {
			return fmt.Errorf("no CSV given and basket.csv_path is not configured")
		}

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening basket CSV: %w", err)
		}
		defer f.Close()

		items, err := basket.Load(f)
		if err != nil {
			return fmt.Errorf("reading basket CSV: %w", err)
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		rows := make([]database.BasketRow, 0, len(items))
		for _, it := range items {
			row := database.BasketRow{
				Code:     basket.NormalizeCode(it.Code),
				Name:     it.Name,
				Category: it.Category,
				Weight:   it.Weight,
				URL:      it.URL,
			}
			if it.ManualPrice > 0 {
				p := it.ManualPrice
				row.ManualPrice = &p
			}
			rows = append(rows, row)
		}
		if err := db.ReplaceBasket(rows); err != nil {
			return err
		}
		fmt.Printf("Imported %d items from %s.\n", len(rows), path)
		return nil
	},
}

var basketExportCmd = &cobra.Command{
	Use:   "export [csv]",
	Short: "Export the basket to a CSV file (stdout when omitted)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		rows, err := db.GetBasket()
		if err != nil {
			return err
		}
		items := make([]basket.Item, 0, len(rows))
		for _, r := range rows {
			it := basket.Item{Code: r.Code, Name: r.Name, Category: r.Category, Weight: r.Weight, URL: r.URL}
			if r.ManualPrice != nil {
				it.ManualPrice = *r.ManualPrice
			}
			items = append(items, it)
		}

		out := os.Stdout
		if len(args) > 0 {
			f, err := os.Create(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}
		return basket.Write(out, items)
	},
}

var basketListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the tracked items",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		rows, err := db.GetBasket()
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Println("Basket is empty. Import one with: enfmon basket import <csv>")
			return nil
		}

		for _, r := range rows {
			manual := ""
			if r.ManualPrice != nil {
				manual = fmt.Sprintf("  [manuel %.2f TL]", *r.ManualPrice)
			}
			fmt.Printf("  %s  %-30s %-12s w=%.1f%s\n", r.Code, r.Name, r.Category, r.Weight, manual)
		}
		return nil
	},
}

var basketSetPriceCmd = &cobra.Command{
	Use:   "set-price [code] [price]",
	Short: "Set or clear a manual price override (price 0 clears)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		code := basket.NormalizeCode(args[0])
		price, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid price: %s", args[1])
		}

		var p *float64
		if price > 0 {
			p = &price
		}
		if err := db.SetManualPrice(code, p); err != nil {
			return err
		}
		if p == nil {
			fmt.Printf("Cleared manual price for %s.\n", code)
		} else {
			fmt.Printf("Set manual price for %s: %.2f TL.\n", code, price)
		}
		return nil
	},
}

func init() {
	basketCmd.AddCommand(basketImportCmd)
	basketCmd.AddCommand(basketExportCmd)
	basketCmd.AddCommand(basketListCmd)
	basketCmd.AddCommand(basketSetPriceCmd)
}

// --- rates command ---

var ratesCmd = &cobra.Command{
	Use:   "rates",
	Short: "Show the current exchange and gold rates",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := rates.NewClient(nil, log.Default())
		if cfg.Rates.TCMBURL != "" {
			client.TCMBURL = cfg.Rates.TCMBURL
		}
		if cfg.Rates.GoldURL != "" {
			client.GoldURL = cfg.Rates.GoldURL
		}

		r := client.Fetch()
		fmt.Printf("Dolar:      %.4f TL\n", r.USD)
		fmt.Printf("Euro:       %.4f TL\n", r.EUR)
		fmt.Printf("Gram altın: %.2f TL\n", r.GoldGram)
		return nil
	},
}

// --- compare command ---

var compareCmd = &cobra.Command{
	Use:   "compare [query]",
	Short: "Search comparison offers for a product",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := ""
		for i, a := range args {
			if i > 0 {
				query += " "
			}
			query += a
		}

		s := shopping.NewSearcher(nil, cfg.Shopping.BaseURL)
		offers, err := s.Search(query)
		if err != nil {
			return err
		}
		if len(offers) == 0 {
			fmt.Printf("No offers found for %q.\n", query)
			return nil
		}
		for _, o := range offers {
			fmt.Printf("  %8.2f TL  %-20s %s\n", o.Price, o.Vendor, o.Title)
		}
		return nil
	},
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "enfmon.db")
	return database.Open(dbPath)
}
