package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/vhqtran/coingains/internal/config"
	"github.com/vhqtran/coingains/internal/db"
	"github.com/vhqtran/coingains/internal/handlers"
	"github.com/vhqtran/coingains/internal/importers"
	"github.com/vhqtran/coingains/internal/logger"
	"github.com/vhqtran/coingains/internal/models"
	"github.com/vhqtran/coingains/internal/report"
	"github.com/vhqtran/coingains/internal/repositories"
	"github.com/vhqtran/coingains/internal/services"
)

func main() {
	if err := run(); err != nil {
		if errors.Is(err, services.ErrResolverAborted) {
			fmt.Fprintln(os.Stderr, "aborted; classified decisions so far are saved")
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath     = flag.String("config", "", "path to a YAML config file")
		policy         = flag.String("policy", "", "lot selection policy: fifo, lifo, highest_cost, lowest_cost, specific_id")
		acceptDefaults = flag.Bool("y", false, "answer every classification prompt with its default")
		windowHours    = flag.Int("window", 0, "transfer matching window in hours")
		cachePath      = flag.String("cache", "", "sqlite cache file for decisions and prices")
		priceCSV       = flag.String("prices", "", "local date,price CSV consulted before the remote source")
		serve          = flag.Bool("serve", false, "serve the results over HTTP after the run")
		detail         = flag.Bool("detail", false, "print every disposal and transfer")
		listDecisions  = flag.Bool("decisions", false, "list cached classification decisions and exit")
		forget         = flag.String("forget", "", "delete the cached decision with this fingerprint and exit")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] export1.csv [export2.csv ...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cacheOnly := *listDecisions || *forget != ""
	if flag.NArg() == 0 && !cacheOnly {
		flag.Usage()
		return fmt.Errorf("no input files")
	}

	// .env is optional; flags and the config file win over it.
	_ = godotenv.Load()

	log, err := logger.New()
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	cfg := config.Default()
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
		if err != nil {
			return err
		}
	}
	if *policy != "" {
		cfg.Policy = *policy
	}
	if *windowHours > 0 {
		cfg.TransferWindowHours = *windowHours
	}
	if *cachePath != "" {
		cfg.CachePath = *cachePath
	}
	if *priceCSV != "" {
		cfg.PriceCSV = *priceCSV
	}
	if *acceptDefaults {
		cfg.NonInteractive = true
		cfg.AcceptDefaults = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	database, err := db.Open(cfg.CachePath,
		&models.ClassificationDecision{}, &models.CachedPrice{})
	if err != nil {
		return err
	}
	defer database.Close()
	if err := database.Health(); err != nil {
		return fmt.Errorf("cache database health check failed: %w", err)
	}

	decisions := repositories.NewDecisionRepository(database)
	if cacheOnly {
		return manageCache(decisions, *listDecisions, *forget)
	}
	prices, err := buildPriceProvider(cfg, database, log)
	if err != nil {
		return err
	}

	var resolver services.Resolver
	if !cfg.NonInteractive {
		resolver = &services.TerminalResolver{In: os.Stdin, Out: os.Stdout}
	}

	registry := importers.NewRegistry(cfg.Asset, log)
	records, err := registry.ParseAll(flag.Args())
	if err != nil {
		return err
	}
	log.Info("imported records",
		zap.Int("count", len(records)),
		zap.Int("files", flag.NArg()))

	engine, err := services.NewEngine(cfg, decisions, resolver, prices, log)
	if err != nil {
		return err
	}
	result, err := engine.Run(context.Background(), records)
	if err != nil {
		return err
	}

	if err := report.NewRenderer(os.Stdout, *detail).Render(result); err != nil {
		return err
	}

	if *serve {
		handler := handlers.NewReportHandler(result)
		log.Info("serving results", zap.String("addr", cfg.ListenAddr))
		return http.ListenAndServe(cfg.ListenAddr, handler.Router())
	}
	return nil
}

// manageCache handles the -decisions and -forget maintenance flags.
// Deleting a fingerprint is the supported way to re-classify a
// transaction on the next run.
func manageCache(decisions repositories.DecisionRepository, list bool, forget string) error {
	ctx := context.Background()
	if forget != "" {
		if err := decisions.Delete(ctx, forget); err != nil {
			return err
		}
		fmt.Printf("forgot decision %s\n", forget)
	}
	if list {
		cached, err := decisions.List(ctx)
		if err != nil {
			return err
		}
		for _, d := range cached {
			note := ""
			if d.Note != "" {
				note = "  # " + d.Note
			}
			fmt.Printf("%s\t%s\t%s%s\n", d.Fingerprint, d.Outcome, d.FiatAmount.StringFixed(2), note)
		}
	}
	return nil
}

// buildPriceProvider chains the local CSV series (when configured) in
// front of the remote source, with every remote quote cached in sqlite.
func buildPriceProvider(cfg *config.Config, database *db.DB, log *zap.Logger) (services.PriceProvider, error) {
	remote := services.NewCachingPriceProvider(
		services.NewCoinGeckoPriceProvider("usd"),
		repositories.NewPriceRepository(database),
		log)
	if cfg.PriceCSV == "" {
		return remote, nil
	}
	local, err := services.NewCSVPriceProvider(cfg.PriceCSV)
	if err != nil {
		return nil, err
	}
	return services.NewFallbackPriceProvider(local, remote), nil
}
