// Command dyntrans pre-translates dynamic content into the shared
// translation store.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ZaguanLabs/dyntrans"
	"github.com/ZaguanLabs/dyntrans/provider"
	"github.com/ZaguanLabs/dyntrans/store"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"
)

// Build-time variables (can be overridden with ldflags)
var (
	version   = dyntrans.Version
	commit    = dyntrans.GitCommit
	buildDate = dyntrans.BuildDate
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorBlue+"[INFO]"+colorReset+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorGreen+"[OK]"+colorReset+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorYellow+"[WARN]"+colorReset+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorRed+"[ERROR]"+colorReset+" "+format+"\n", args...)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "dyntrans",
		Short: "Dynamic content translation cache tooling",
		Long: `dyntrans: batch pre-translation for the dynamic content translation cache.

Discovers translatable content from configured sources, diffs it against the
shared translation store per locale, and fills the gaps through the
configured provider. The on-demand view path uses the same store, so
anything translated here is served instantly at render time.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newTranslateCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dyntrans version %s\n", version)
			fmt.Printf("  commit:  %s\n", commit)
			fmt.Printf("  built:   %s\n", buildDate)
		},
	}
}

func newTranslateCmd() *cobra.Command {
	var (
		cfgPath   string
		locale    string
		typesCSV  string
		dryRun    bool
		force     bool
		batchSize int
	)

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Fill translation gaps for configured content sources",
		Long: `Discover translatable content, find the (item, locale) pairs that lack a
valid cached translation, and translate them in batches.

An item needs translation when no record exists for it at a locale, or when
its source text changed since the record was written (detected by content
hash). Use --dry-run to see the outstanding work without calling the
provider or writing to the store.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(cmd.Context(), cmd.OutOrStdout(), cfgPath, locale, typesCSV, dryRun, force, batchSize)
		},
	}

	cmd.Flags().StringVar(&cfgPath, "config", "dyntrans.yaml", "Path to the configuration file")
	cmd.Flags().StringVar(&locale, "locale", "", "Translate only this locale (default: all supported)")
	cmd.Flags().StringVar(&typesCSV, "types", "", "Comma-separated content types to include (default: all)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report gap counts without translating or writing")
	cmd.Flags().BoolVar(&force, "force", false, "Re-translate everything, ignoring cached records")
	cmd.Flags().IntVar(&batchSize, "batch-size", dyntrans.DefaultBatchSize, "Items per provider call")

	return cmd
}

func runTranslate(ctx context.Context, stdout io.Writer, cfgPath, localeFilter, typesCSV string, dryRun, force bool, batchSize int) error {
	cfg, err := LoadConfig(cfgPath)
	if err != nil {
		return err
	}

	st, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	var prov dyntrans.Provider
	if !dryRun {
		prov, err = buildProvider(cfg)
		if err != nil {
			return err
		}
	}

	filler := dyntrans.NewGapFiller(st, prov,
		dyntrans.WithForce(force),
		dyntrans.WithProgress(func(ev dyntrans.ProgressEvent) {
			logInfo("%s: batch %d/%d done (%d translated)", ev.Locale, ev.Batch, ev.BatchCount, ev.Translated)
		}),
	)

	content, err := filler.Discover(ctx, cfg.Sources, nil)
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}
	content = filterTypes(content, typesCSV)
	logInfo("discovered %d translatable items", len(content))

	gaps, err := filler.FindGaps(ctx, content, cfg.Locales.Supported, localeFilter)
	if err != nil {
		return fmt.Errorf("gap detection failed: %w", err)
	}

	candidates := cfg.Locales.Supported
	if localeFilter != "" {
		candidates = []string{localeFilter}
	}

	if dryRun {
		fmt.Fprintf(stdout, "Dry run: %d items across %d locale(s)\n\n", len(content), len(candidates))
		for _, locale := range candidates {
			missing := countGaps(gaps, locale)
			fmt.Fprintf(stdout, "  %-8s missing %d, cached %d\n", dyntrans.NormalizeLocale(locale), missing, len(content)-missing)
		}
		return nil
	}

	for _, locale := range candidates {
		missing := countGaps(gaps, locale)
		if missing == 0 {
			logSuccess("%s: nothing to translate (%d cached)", locale, len(content))
			continue
		}

		start := time.Now()
		translated, err := filler.Run(ctx, gaps, locale, cfg.Locales.Default, batchSize)
		elapsed := time.Since(start).Round(time.Millisecond)
		if err != nil {
			// Batches saved before the failure stay saved.
			logWarning("%s: aborted after %d of %d items", locale, translated, missing)
			return fmt.Errorf("translating %s: %w", locale, err)
		}

		fmt.Fprintf(stdout, "%s: translated %d, cached %d, took %v\n",
			dyntrans.NormalizeLocale(locale), translated, len(content)-missing, elapsed)
	}

	logSuccess("all locales up to date")
	return nil
}

func openStore(ctx context.Context, cfg *Config) (dyntrans.Store, func(), error) {
	noop := func() {}
	switch cfg.Store.Backend {
	case "memory":
		logWarning("memory store holds no content sources; discovery will be empty")
		return store.NewMemoryStore(), noop, nil
	case "redis":
		rs, err := store.NewRedisStore(store.RedisConfig{
			URL:       cfg.Store.DSN,
			TTL:       cfg.Store.TTL,
			KeyPrefix: cfg.Store.KeyPrefix,
		})
		if err != nil {
			return nil, noop, err
		}
		return rs, func() { _ = rs.Close() }, nil
	case "sqlite":
		db, err := sql.Open("sqlite3", cfg.Store.DSN)
		if err != nil {
			return nil, noop, fmt.Errorf("opening sqlite database: %w", err)
		}
		ss := store.NewSQLStore(db)
		if err := ss.Init(ctx); err != nil {
			_ = db.Close()
			return nil, noop, err
		}
		return ss, func() { _ = db.Close() }, nil
	default:
		return nil, noop, &dyntrans.ConfigError{Message: fmt.Sprintf("unknown store backend %q", cfg.Store.Backend)}
	}
}

func buildProvider(cfg *Config) (dyntrans.Provider, error) {
	key := cfg.Provider.APIKey
	if key == "" {
		key = os.Getenv("OPENAI_API_KEY")
	}
	if key == "" {
		return nil, &dyntrans.ConfigError{Message: "OpenAI API key required (provider.api_key or OPENAI_API_KEY env)"}
	}

	var prov dyntrans.Provider = provider.NewOpenAIProvider(provider.OpenAIConfig{
		APIKey:      key,
		Model:       cfg.Provider.Model,
		BaseURL:     cfg.Provider.BaseURL,
		Temperature: cfg.Provider.Temperature,
	})

	if cfg.Provider.RequestsPerMinute > 0 {
		prov = dyntrans.NewRateLimitedProvider(prov, dyntrans.RateLimitConfig{
			RequestsPerMinute: cfg.Provider.RequestsPerMinute,
		})
	}
	if cfg.Provider.MaxRetries > 0 {
		retryCfg := dyntrans.DefaultRetryConfig()
		retryCfg.MaxRetries = cfg.Provider.MaxRetries
		prov = dyntrans.NewRetryableProvider(prov, retryCfg)
	}
	return prov, nil
}

func filterTypes(content []dyntrans.DiscoveredContent, typesCSV string) []dyntrans.DiscoveredContent {
	if typesCSV == "" {
		return content
	}
	include := make(map[string]bool)
	for _, t := range strings.Split(typesCSV, ",") {
		include[strings.TrimSpace(t)] = true
	}
	out := content[:0]
	for _, item := range content {
		if include[item.ContentType] {
			out = append(out, item)
		}
	}
	return out
}

func countGaps(gaps []dyntrans.TranslationGap, locale string) int {
	locale = dyntrans.NormalizeLocale(locale)
	n := 0
	for _, gap := range gaps {
		for _, missing := range gap.MissingLocales {
			if dyntrans.NormalizeLocale(missing) == locale {
				n++
				break
			}
		}
	}
	return n
}
