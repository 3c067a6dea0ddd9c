// Shopper is an operator tool for the SmartShop pricing pipeline.
//
// Usage:
//
//	shopper normalize --input records.json [--ean 7038010009457] [--group KIWI]
//	shopper rank --list list.json --offers offers.json [--min-coverage 0.6]
//	shopper lookup --ean 7038010009457 [--scope online] [--group KIWI,ODA]
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/smartshop/backend/config"
	"github.com/smartshop/backend/internal/domain"
	"github.com/smartshop/backend/internal/infrastructure/cache"
	"github.com/smartshop/backend/internal/infrastructure/kassalapp"
	"github.com/smartshop/backend/internal/usecase"
)

var version = "dev"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "shopper",
		Usage:   "Normalize grocery prices and rank stores for a shopping list",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"SMARTSHOP_LOG_LEVEL"},
			},
		},
		Before: func(cCtx *cli.Context) error {
			level, err := zerolog.ParseLevel(cCtx.String("log-level"))
			if err != nil {
				return fmt.Errorf("invalid log level: %w", err)
			}
			zerolog.SetGlobalLevel(level)
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: cCtx.App.ErrWriter})
			return nil
		},
		Commands: []*cli.Command{
			normalizeCommand(),
			rankCommand(),
			lookupCommand(),
		},
	}
}

// =============================================================================
// NORMALIZE COMMAND
// =============================================================================

func normalizeCommand() *cli.Command {
	return &cli.Command{
		Name:  "normalize",
		Usage: "Normalize raw catalog records read from a JSON array",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "input",
				Aliases:  []string{"i"},
				Usage:    "Path to a JSON array of catalog records, or - for stdin",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "ean",
				Usage: "Barcode to assign when records carry none",
			},
			&cli.StringSliceFlag{
				Name:    "group",
				Aliases: []string{"g"},
				Usage:   "Keep only these chain codes",
			},
		},
		Action: runNormalize,
	}
}

func runNormalize(cCtx *cli.Context) error {
	var raws []domain.RawProduct
	if err := readJSON(cCtx, cCtx.String("input"), &raws); err != nil {
		return err
	}
	products := usecase.NormalizeProducts(raws, usecase.NormalizeContext{
		EAN:    cCtx.String("ean"),
		Groups: splitGroups(cCtx.StringSlice("group")),
	})
	return writeJSON(cCtx.App.Writer, products)
}

// =============================================================================
// RANK COMMAND
// =============================================================================

func rankCommand() *cli.Command {
	defaults := domain.DefaultRankingWeights()
	return &cli.Command{
		Name:  "rank",
		Usage: "Rank stores for a list against an offline barcode-to-offers map",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "list",
				Aliases:  []string{"l"},
				Usage:    "Path to the list: a JSON array of items or an object with items",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "offers",
				Aliases:  []string{"o"},
				Usage:    "Path to a JSON object mapping barcodes to store offers",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "scope",
				Value: string(domain.ScopeAll),
				Usage: "Store scope (all, physical, online)",
			},
			&cli.Float64Flag{
				Name:  "min-coverage",
				Value: defaults.MinCoverage,
				Usage: "Minimum share of the list a store must price",
			},
			&cli.Float64Flag{
				Name:  "coverage-weight",
				Value: defaults.CoverageWeight,
				Usage: "Score penalty for a store missing the whole list",
			},
			&cli.IntFlag{
				Name:  "max-results",
				Value: defaults.MaxResults,
				Usage: "Maximum number of stores to return",
			},
			&cli.BoolFlag{
				Name:  "ignore-quantity",
				Usage: "Price each line once regardless of quantity",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "table",
				Usage:   "Output format (table, json)",
			},
		},
		Action: runRank,
	}
}

type listFile struct {
	Items []domain.ShoppingListItem `json:"items"`
}

func runRank(cCtx *cli.Context) error {
	items, err := readListItems(cCtx, cCtx.String("list"))
	if err != nil {
		return err
	}
	offers := map[string][]domain.StoreOffer{}
	if err := readJSON(cCtx, cCtx.String("offers"), &offers); err != nil {
		return err
	}

	weights := domain.RankingWeights{
		MinCoverage:    cCtx.Float64("min-coverage"),
		CoverageWeight: cCtx.Float64("coverage-weight"),
		MaxResults:     cCtx.Int("max-results"),
		ApplyQuantity:  !cCtx.Bool("ignore-quantity"),
	}
	outcome := rankOffline(items, offers, domain.ParseScope(cCtx.String("scope")), weights)

	if cCtx.String("format") == "json" {
		return writeJSON(cCtx.App.Writer, outcome)
	}
	return writeRankingTable(cCtx.App.Writer, outcome)
}

// rankOffline ranks stores using only the supplied offers.
func rankOffline(items []domain.ShoppingListItem, offers map[string][]domain.StoreOffer, scope domain.Scope, w domain.RankingWeights) domain.RankingOutcome {
	byEAN := make(map[string][]domain.StoreOffer, len(offers))
	for ean, list := range offers {
		byEAN[domain.CleanEAN(ean)] = list
	}
	lookup := func(ean string) []domain.StoreOffer { return byEAN[ean] }

	var eans []string
	for i := range items {
		items[i].EAN = domain.CleanEAN(items[i].EAN)
		if items[i].EAN != "" {
			eans = append(eans, items[i].EAN)
		}
	}
	candidates := usecase.DeriveCandidates(eans, lookup, usecase.CandidateOptions{Scope: scope})
	return usecase.AggregateAndRank(items, lookup, candidates, w)
}

func readListItems(cCtx *cli.Context, path string) ([]domain.ShoppingListItem, error) {
	var raw json.RawMessage
	if err := readJSON(cCtx, path, &raw); err != nil {
		return nil, err
	}
	if trimmed := strings.TrimSpace(string(raw)); strings.HasPrefix(trimmed, "[") {
		var items []domain.ShoppingListItem
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("failed to decode list %s: %w", path, err)
		}
		return items, nil
	}
	var file listFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to decode list %s: %w", path, err)
	}
	return file.Items, nil
}

func writeRankingTable(w io.Writer, outcome domain.RankingOutcome) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tSTORE\tGROUP\tTOTAL\tFOUND\tCOVERAGE\tSCORE")
	for i, r := range outcome.Results {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.2f\t%d/%d\t%.0f%%\t%.2f\n",
			i+1, r.Store.Name, r.Store.Group, r.ItemsTotal, r.Found, len(r.Lines), r.Coverage*100, r.Score)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if outcome.Reason != "" {
		fmt.Fprintf(w, "\nNote: %s (candidates: %d)\n", outcome.Reason, outcome.Candidates)
	}
	if len(outcome.Missing) > 0 {
		fmt.Fprintf(w, "Missing everywhere: %s\n", strings.Join(outcome.Missing, ", "))
	}
	return nil
}

// =============================================================================
// LOOKUP COMMAND
// =============================================================================

func lookupCommand() *cli.Command {
	return &cli.Command{
		Name:  "lookup",
		Usage: "Look up a barcode in the live catalog",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "ean",
				Usage:    "Barcode to look up",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "scope",
				Value: string(domain.ScopeAll),
				Usage: "Store scope (all, physical, online)",
			},
			&cli.StringSliceFlag{
				Name:    "group",
				Aliases: []string{"g"},
				Usage:   "Keep only these chain codes",
			},
		},
		Action: runLookup,
	}
}

func runLookup(cCtx *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	memoryCache := cache.NewMemoryCache(0)
	defer memoryCache.Close()

	catalog := kassalapp.NewClient(
		cfg.Kassalapp.APIKey,
		cfg.Kassalapp.BaseURL,
		kassalapp.WithTimeout(cfg.Kassalapp.Timeout),
		kassalapp.WithRateLimit(cfg.Kassalapp.RequestsPerSecond, cfg.Kassalapp.Burst),
	)
	prices := usecase.NewPriceService(memoryCache, cache.NewOfferCache(), catalog, catalog, priceServiceConfig(cfg))

	ctx := cCtx.Context
	if ctx == nil {
		ctx = context.Background()
	}
	result, err := prices.Search(ctx, usecase.SearchRequest{
		EAN:    cCtx.String("ean"),
		Scope:  domain.ParseScope(cCtx.String("scope")),
		Groups: splitGroups(cCtx.StringSlice("group")),
	})
	if err != nil {
		return err
	}
	return writeJSON(cCtx.App.Writer, result)
}

// =============================================================================
// HELPERS
// =============================================================================

func priceServiceConfig(cfg *config.Config) usecase.PriceServiceConfig {
	return usecase.PriceServiceConfig{
		CacheTTL:    cfg.Cache.TTL,
		MaxAttempts: cfg.Lookup.MaxAttempts,
		Backoff:     cfg.Lookup.Backoff,
		Concurrency: cfg.Lookup.Concurrency,
		RadiusKm:    cfg.Lookup.RadiusKm,
		StoreLimit:  cfg.Lookup.StoreLimit,
		Weights: domain.RankingWeights{
			MinCoverage:    cfg.Ranking.MinCoverage,
			CoverageWeight: cfg.Ranking.CoverageWeight,
			MaxResults:     cfg.Ranking.MaxResults,
			ApplyQuantity:  cfg.Ranking.ApplyQuantity,
		},
	}
}

func readJSON(cCtx *cli.Context, path string, v any) error {
	var r io.Reader
	if path == "-" {
		r = cCtx.App.Reader
	} else {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// splitGroups accepts repeated flags as well as comma separated values.
func splitGroups(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
