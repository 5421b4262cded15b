// Command pricecompare searches the configured shops from the terminal.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"price-hunter/pkg/app"
	"price-hunter/pkg/config"
	"price-hunter/pkg/manager"
	"price-hunter/pkg/models"
	"price-hunter/pkg/price"
)

const bestDealsCount = 5

type options struct {
	query      string
	maxResults int
	sites      []string
	bestDeals  bool
	compare    bool
	output     string
	configPath string
	verbose    bool
}

func main() {
	opts, err := parseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseArgs(args []string, stderr io.Writer) (options, error) {
	var opts options
	var sites string

	fs := flag.NewFlagSet("pricecompare", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.IntVar(&opts.maxResults, "max-results", manager.DefaultMaxPerSource, "Maximum results per site")
	fs.StringVar(&sites, "sites", "", "Comma separated sites to search (e.g. ebay,walmart)")
	fs.BoolVar(&opts.bestDeals, "best-deals", false, "Show only the best deals")
	fs.BoolVar(&opts.compare, "compare", false, "Show price comparison analysis")
	fs.StringVar(&opts.output, "output", "", "Write the results to this file as JSON")
	fs.StringVar(&opts.output, "o", "", "Write the results to this file as JSON (shorthand)")
	fs.StringVar(&opts.configPath, "config", "", "Path to the YAML configuration file")
	fs.StringVar(&opts.configPath, "c", "", "Path to the YAML configuration file (shorthand)")
	fs.BoolVar(&opts.verbose, "verbose", false, "Log progress to stderr")
	fs.BoolVar(&opts.verbose, "v", false, "Log progress to stderr (shorthand)")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: pricecompare [flags] <query>")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts.query = strings.TrimSpace(strings.Join(fs.Args(), " "))
	if opts.query == "" {
		fs.Usage()
		return options{}, fmt.Errorf("a search query is required")
	}
	if opts.maxResults < 1 {
		return options{}, fmt.Errorf("-max-results must be at least 1")
	}
	if opts.bestDeals && opts.compare {
		return options{}, fmt.Errorf("-best-deals and -compare are mutually exclusive")
	}
	for _, s := range strings.Split(sites, ",") {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			opts.sites = append(opts.sites, s)
		}
	}
	return opts, nil
}

func run(ctx context.Context, opts options, out io.Writer) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if !opts.verbose {
		cfg.Log.Level = "error"
	}
	// Requested sites are searched even when the config leaves them off.
	for _, id := range opts.sites {
		if site, ok := cfg.Sites[id]; ok {
			on := true
			site.Enabled = &on
			cfg.Sites[id] = site
		}
	}

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Fprintf(out, "Available sites: %s\n\n", strings.Join(a.Manager.Sources(), ", "))

	result, err := execute(ctx, a.Manager, opts, out)
	if err != nil {
		return err
	}

	if opts.output != "" {
		if err := writeJSON(opts.output, result); err != nil {
			return err
		}
		a.Log.Debug("results saved", zap.String("path", opts.output))
		fmt.Fprintf(out, "\nResults saved to %s\n", opts.output)
	}
	return nil
}

// execute runs the requested query, prints it and returns what -output saves.
func execute(ctx context.Context, m *manager.Manager, opts options, out io.Writer) (any, error) {
	switch {
	case opts.bestDeals:
		fmt.Fprintf(out, "Searching for best deals on: %s\n", opts.query)
		deals, report, err := m.BestDeals(ctx, opts.query, bestDealsCount)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(out, "\n=== Top %d Best Deals ===\n\n", bestDealsCount)
		printProducts(out, deals, true)
		printFailures(out, report)
		return deals, nil

	case opts.compare:
		fmt.Fprintf(out, "Comparing prices for: %s\n", opts.query)
		c, report, err := m.ComparePrices(ctx, opts.query)
		if err != nil {
			return nil, err
		}
		printComparison(out, c)
		printFailures(out, report)
		return c, nil

	case len(opts.sites) > 0:
		fmt.Fprintf(out, "Searching %s for: %s\n", strings.Join(opts.sites, ", "), opts.query)
		bySite, report, err := m.SearchSpecific(ctx, opts.query, opts.sites, opts.maxResults)
		if err != nil {
			return nil, err
		}
		for _, id := range opts.sites {
			products, ok := bySite[id]
			if !ok {
				continue
			}
			fmt.Fprintf(out, "\n=== %s (%d results) ===\n\n", strings.ToUpper(id), len(products))
			printProducts(out, products, false)
		}
		printFailures(out, report)
		return bySite, nil

	default:
		fmt.Fprintf(out, "Searching all sites for: %s\n", opts.query)
		products, report, err := m.SearchAll(ctx, opts.query, opts.maxResults)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(out, "\n=== Combined Results (%d products, sorted by price) ===\n\n", len(products))
		printProducts(out, products, true)
		printFailures(out, report)
		return products, nil
	}
}

func printProducts(w io.Writer, products []models.Product, withSite bool) {
	for i, p := range products {
		fmt.Fprintf(w, "%d. %s\n", i+1, p.Title)
		if p.HasPrice() {
			fmt.Fprintf(w, "   Price: %s\n", price.Format(*p.Price, p.Currency))
		} else {
			fmt.Fprintln(w, "   Price: n/a")
		}
		if withSite {
			fmt.Fprintf(w, "   Site: %s\n", p.Source)
		}
		fmt.Fprintf(w, "   URL: %s\n\n", shorten(p.URL, 80))
	}
}

func printComparison(w io.Writer, c *models.Comparison) {
	fmt.Fprintln(w, "\n=== Price Comparison Analysis ===")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Total Results: %d\n", c.TotalResults)
	if c.Stats == nil || c.Best == nil {
		fmt.Fprintln(w, "No prices found.")
		return
	}

	currency := c.Best.Currency
	fmt.Fprintf(w, "Lowest Price: %s\n", price.Format(c.Stats.Lowest, currency))
	fmt.Fprintf(w, "Highest Price: %s\n", price.Format(c.Stats.Highest, currency))
	fmt.Fprintf(w, "Average Price: %s\n", price.Format(c.Stats.Average, currency))
	if len(c.Currencies) > 1 {
		fmt.Fprintf(w, "Note: prices span several currencies (%s) and are not converted.\n", strings.Join(c.Currencies, ", "))
	}
	fmt.Fprintln(w, "\nBest Deal:")
	fmt.Fprintf(w, "  %s\n", c.Best.Title)
	fmt.Fprintf(w, "  %s on %s\n", price.Format(*c.Best.Price, c.Best.Currency), c.Best.Source)
	fmt.Fprintf(w, "  %s\n", c.Best.URL)
}

func printFailures(w io.Writer, report *manager.Report) {
	if report == nil {
		return
	}
	for _, id := range report.Failed() {
		sr := report.Sources[id]
		if sr.Err != nil {
			fmt.Fprintf(w, "! %s: %s (%v)\n", id, sr.State, sr.Err)
		} else {
			fmt.Fprintf(w, "! %s: %s\n", id, sr.State)
		}
	}
}

func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	return f.Close()
}
