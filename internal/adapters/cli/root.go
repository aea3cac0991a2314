// Package cli implements cachectl, the operator CLI for the answer cache.
// It can also ask the assistant a question from the terminal.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/achinchen/articles-assistant/internal/core/domain"
	"github.com/achinchen/articles-assistant/internal/core/ports"
	"github.com/achinchen/articles-assistant/internal/core/usecase"
)

const (
	commandTimeout = 30 * time.Second
	askTimeout     = 2 * time.Minute
)

// CacheOpener connects to the cache on demand so that --help works offline.
type CacheOpener func(ctx context.Context) (ports.CacheAdmin, func(), error)

// QueryOpener wires the full query pipeline on demand.
type QueryOpener func(ctx context.Context) (ports.QueryService, func(), error)

// EventsOpener connects to the content event bus on demand.
type EventsOpener func() (ContentPublisher, func(), error)

type ContentPublisher interface {
	PublishContentUpdated(ctx context.Context, articleID string) error
}

type Services struct {
	OpenCache  CacheOpener
	OpenEvents EventsOpener
	OpenQuery  QueryOpener
}

type runner struct {
	services Services
	asJSON   bool

	askLocale string
	askHybrid bool
	askTopK   int
}

func NewRootCommand(services Services) *cobra.Command {
	r := &runner{services: services}

	root := &cobra.Command{
		Use:           "cachectl",
		Short:         "Inspect and invalidate the answer cache",
		Long:          `cachectl talks to the Redis answer cache and the content event bus used by the articles assistant. Its ask command runs a question through the full query pipeline.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&r.asJSON, "json", false, "print results as JSON")

	root.AddCommand(
		&cobra.Command{
			Use:   "metrics",
			Short: "Show cache hit and miss counters",
			Args:  cobra.NoArgs,
			RunE:  r.withCache(r.runMetrics),
		},
		&cobra.Command{
			Use:   "reset-metrics",
			Short: "Zero the cache counters",
			Args:  cobra.NoArgs,
			RunE:  r.withCache(r.runResetMetrics),
		},
		&cobra.Command{
			Use:   "info",
			Short: "Show Redis memory usage and cache key count",
			Args:  cobra.NoArgs,
			RunE:  r.withCache(r.runInfo),
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Delete every cached answer",
			Args:  cobra.NoArgs,
			RunE:  r.withCache(r.runClear),
		},
		&cobra.Command{
			Use:   "invalidate [pattern]",
			Short: "Delete cached answers whose key matches a glob pattern",
			Long: `Deletes cached answers matching a Redis glob pattern relative to the cache prefix.

Examples:
  cachectl invalidate 'query:zh:*'
  cachectl invalidate '*'`,
			Args: cobra.ExactArgs(1),
			RunE: r.withCache(r.runInvalidate),
		},
		&cobra.Command{
			Use:   "maintain",
			Short: "Run the low hit rate and memory size checks once",
			Args:  cobra.NoArgs,
			RunE:  r.withCache(r.runMaintain),
		},
		&cobra.Command{
			Use:   "content-updated [article-id]",
			Short: "Publish a content-updated event so workers invalidate the cache",
			Args:  cobra.ExactArgs(1),
			RunE:  r.runContentUpdated,
		},
		r.askCommand(),
	)
	return root
}

func (r *runner) askCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question from the indexed articles and list the sources",
		Long: `Runs the full query pipeline and prints the answer followed by its numbered sources.

Examples:
  cachectl ask "How do I scale a read-heavy service?"
  cachectl ask --locale zh --hybrid "如何設計快取"`,
		Args: cobra.MinimumNArgs(1),
		RunE: r.runAsk,
	}
	cmd.Flags().StringVar(&r.askLocale, "locale", "", "only search articles in this locale (en or zh)")
	cmd.Flags().BoolVar(&r.askHybrid, "hybrid", false, "blend keyword rank with vector similarity")
	cmd.Flags().IntVar(&r.askTopK, "top-k", 0, "number of chunks to retrieve (default from server config)")
	return cmd
}

type cacheCommand func(cmd *cobra.Command, cache ports.CacheAdmin, args []string) error

func (r *runner) withCache(run cacheCommand) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if r.services.OpenCache == nil {
			return errors.New("cache not configured")
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
		defer cancel()
		cmd.SetContext(ctx)

		cache, closeFn, err := r.services.OpenCache(ctx)
		if err != nil {
			return fmt.Errorf("connect cache: %w", err)
		}
		if closeFn != nil {
			defer closeFn()
		}
		return run(cmd, cache, args)
	}
}

func (r *runner) runMetrics(cmd *cobra.Command, cache ports.CacheAdmin, _ []string) error {
	m, err := cache.Metrics(cmd.Context())
	if err != nil {
		return err
	}
	if r.asJSON {
		return printJSON(cmd, m)
	}
	cmd.Printf("hits:     %d\n", m.Hits)
	cmd.Printf("misses:   %d\n", m.Misses)
	cmd.Printf("errors:   %d\n", m.Errors)
	cmd.Printf("hit rate: %.1f%%\n", m.HitRate*100)
	return nil
}

func (r *runner) runResetMetrics(cmd *cobra.Command, cache ports.CacheAdmin, _ []string) error {
	if err := cache.ResetMetrics(cmd.Context()); err != nil {
		return err
	}
	cmd.Println("Cache metrics reset.")
	return nil
}

func (r *runner) runInfo(cmd *cobra.Command, cache ports.CacheAdmin, _ []string) error {
	info, err := cache.Info(cmd.Context())
	if err != nil {
		return err
	}
	if r.asJSON {
		return printJSON(cmd, info)
	}
	keys := make([]string, 0, len(info))
	for k := range info {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cmd.Printf("%s: %s\n", k, info[k])
	}
	return nil
}

func (r *runner) runClear(cmd *cobra.Command, cache ports.CacheAdmin, _ []string) error {
	n, err := cache.Clear(cmd.Context())
	if err != nil {
		return err
	}
	return r.printDeleted(cmd, "*", n)
}

func (r *runner) runInvalidate(cmd *cobra.Command, cache ports.CacheAdmin, args []string) error {
	n, err := cache.InvalidatePattern(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return r.printDeleted(cmd, args[0], n)
}

func (r *runner) runMaintain(cmd *cobra.Command, cache ports.CacheAdmin, _ []string) error {
	report, err := cache.RunMaintenance(cmd.Context())
	if err != nil {
		return err
	}
	if r.asJSON {
		return printJSON(cmd, report)
	}
	cmd.Printf("hit rate:             %.1f%%\n", report.HitRate*100)
	cmd.Printf("cleared (low hits):   %t\n", report.ClearedForLowHitRate)
	cmd.Printf("used memory:          %.2f MB\n", report.UsedMemoryMB)
	cmd.Printf("evicted (size limit): %d\n", report.EvictedForSize)
	return nil
}

func (r *runner) runContentUpdated(cmd *cobra.Command, args []string) error {
	if r.services.OpenEvents == nil {
		return errors.New("content events not configured")
	}
	publisher, closeFn, err := r.services.OpenEvents()
	if err != nil {
		return fmt.Errorf("connect event bus: %w", err)
	}
	if closeFn != nil {
		defer closeFn()
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()
	if err := publisher.PublishContentUpdated(ctx, args[0]); err != nil {
		return fmt.Errorf("publish content update: %w", err)
	}
	cmd.Printf("Published content update for %s.\n", args[0])
	return nil
}

func (r *runner) runAsk(cmd *cobra.Command, args []string) error {
	if r.services.OpenQuery == nil {
		return errors.New("query pipeline not configured")
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), askTimeout)
	defer cancel()

	queries, closeFn, err := r.services.OpenQuery(ctx)
	if err != nil {
		return fmt.Errorf("open query pipeline: %w", err)
	}
	if closeFn != nil {
		defer closeFn()
	}

	input := domain.QueryInput{
		Query:           strings.Join(args, " "),
		Locale:          domain.Locale(r.askLocale),
		UseHybridSearch: r.askHybrid,
	}
	if r.askTopK > 0 {
		topK := r.askTopK
		input.Config = &domain.QueryConfigOverrides{TopK: &topK}
	}

	resp, err := queries.Query(ctx, input)
	if err != nil {
		return err
	}
	if r.asJSON {
		return printJSON(cmd, resp)
	}
	cmd.Println(resp.Answer)
	if footer := usecase.FormatSourcesForDisplay(resp.Sources, resp.Metadata.QueryLocale); footer != "" {
		cmd.Println(footer)
	}
	return nil
}

func (r *runner) printDeleted(cmd *cobra.Command, pattern string, n int) error {
	if r.asJSON {
		return printJSON(cmd, map[string]any{"pattern": pattern, "deleted": n})
	}
	cmd.Printf("Deleted %d cached answer(s).\n", n)
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
