// mcp-vecstore is a vector similarity store over a Redis-style hash backend,
// served over MCP and a command line.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/spetr/mcp-vecstore/internal/config"
	"github.com/spetr/mcp-vecstore/internal/ingest"
	"github.com/spetr/mcp-vecstore/internal/mcp"
	"github.com/spetr/mcp-vecstore/internal/notify"
	"github.com/spetr/mcp-vecstore/pkg/plugin/host"
	"github.com/spetr/mcp-vecstore/pkg/plugin/shared"
	"github.com/spetr/mcp-vecstore/pkg/types"
)

var (
	version   = "0.1.0"
	logLevel  string
	logFormat string

	// levelVar lets serve change the level when the config file is edited.
	levelVar = new(slog.LevelVar)
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mcp-vecstore",
	Short: "Vector similarity store served over MCP",
	Long: `mcp-vecstore stores embedding vectors with JSON metadata in a namespaced
key-value backend and answers top-k cosine similarity queries.

It supports:
- Redis, SQLite and bbolt backends sharing one key layout
- OpenAI-compatible and plugin embedding providers
- Change events over Redis pub/sub
- Dashboard counters and Prometheus metrics`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("mcp-vecstore %s\n", version)
		fmt.Printf("Go version: %s\n", runtime.Version())
		fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

var addCmd = &cobra.Command{
	Use:   "add <id> <vector-json>",
	Short: "Insert or overwrite a vector record",
	Long: `Insert or overwrite a vector record.

Examples:
  mcp-vecstore add truck-1 '[0.12, 0.5, -0.3]'
  mcp-vecstore add truck-1 '[0.12, 0.5, -0.3]' --metadata '{"brand": "KAMAZ"}'`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		metadata, _ := cmd.Flags().GetString("metadata")
		runAdd(args[0], args[1], metadata)
	},
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Get a vector record",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runGet(args[0])
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a vector record",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runDelete(args[0])
	},
}

var searchCmd = &cobra.Command{
	Use:   "search [vector-json]",
	Short: "Find the most similar records",
	Long: `Find the most similar records by cosine similarity.

Pass a query vector as JSON, or --text to embed the query first.

Examples:
  mcp-vecstore search '[0.12, 0.5, -0.3]' --limit 3
  mcp-vecstore search --text "tipper truck with crane" --threshold 0.4`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		req := &types.SearchRequest{}
		req.Text, _ = cmd.Flags().GetString("text")
		req.Limit, _ = cmd.Flags().GetInt("limit")
		req.Threshold, _ = cmd.Flags().GetFloat64("threshold")

		vectorJSON := ""
		if len(args) > 0 {
			vectorJSON = args[0]
		}
		runSearch(req, vectorJSON)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored records",
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")
		runList(limit)
	},
}

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Count stored records",
	Run: func(cmd *cobra.Command, args []string) {
		runCount()
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every record in the namespace",
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")
		runClear(force)
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Load records from JSON or JSON Lines files",
	Long: `Load records from .json (object or array) or .jsonl files.

Each entry is {"id": ..., "vector": [...], "text": ..., "metadata": {...}}.
Entries without a vector are embedded from their text.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runIngest(args)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Watch a directory and ingest record files as they change",
	Long:  `Watch a directory and ingest record files as they change. If no directory is provided, uses ingest.watch_dir from the config.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dir := ""
		if len(args) > 0 {
			dir = args[0]
		}
		debounce, _ := cmd.Flags().GetInt("debounce")
		deleteOnRemove, _ := cmd.Flags().GetBool("delete-on-remove")
		noInitial, _ := cmd.Flags().GetBool("no-initial")
		runWatch(dir, debounce, deleteOnRemove, !noInitial)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start MCP server",
	Run: func(cmd *cobra.Command, args []string) {
		stdio, _ := cmd.Flags().GetBool("stdio")
		runServe(stdio)
	},
}

var publishCmd = &cobra.Command{
	Use:   "publish <channel> <message>",
	Short: "Publish a message on a notification channel",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		runPublish(args[0], args[1])
	},
}

var subscribeCmd = &cobra.Command{
	Use:   "subscribe [channel]",
	Short: "Print messages from a notification channel",
	Long:  `Print messages from a notification channel until interrupted. Defaults to the change events channel.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		channel := ""
		if len(args) > 0 {
			channel = args[0]
		}
		runSubscribe(channel)
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show dashboard counters and recent searches",
	Run: func(cmd *cobra.Command, args []string) {
		history, _ := cmd.Flags().GetInt("history")
		runMetrics(history)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration",
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")
		runConfigInit(force)
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and test connectivity",
	Run: func(cmd *cobra.Command, args []string) {
		runConfigValidate()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Run: func(cmd *cobra.Command, args []string) {
		runConfigShow()
	},
}

var pluginCmd = &cobra.Command{
	Use:   "plugin",
	Short: "Plugin management",
}

var pluginListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available plugins",
	Run: func(cmd *cobra.Command, args []string) {
		runPluginList()
	},
}

var pluginLoadCmd = &cobra.Command{
	Use:   "load <name> <type>",
	Short: "Load and test a plugin (type: embedding, generator)",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		runPluginLoad(args[0], args[1])
	},
}

// Call command - generic MCP tool invocation
var callCmd = &cobra.Command{
	Use:   "call <tool> [json-args]",
	Short: "Call any MCP tool directly (for debugging)",
	Long: `Call any MCP tool by name with JSON arguments.

Examples:
  mcp-vecstore call count_vectors
  mcp-vecstore call search_vectors '{"text": "dump truck", "limit": 3}'
  mcp-vecstore call ask '{"question": "Which trucks do you have?"}'`,
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		jsonArgs := "{}"
		if len(args) > 1 {
			jsonArgs = args[1]
		}
		runCall(args[0], jsonArgs)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	addCmd.Flags().StringP("metadata", "m", "", "metadata as a JSON object")

	searchCmd.Flags().StringP("text", "t", "", "query text to embed")
	searchCmd.Flags().IntP("limit", "l", mcp.DefaultSearchLimit, "maximum results")
	searchCmd.Flags().Float64("threshold", 0, "minimum similarity (-1..1)")

	listCmd.Flags().IntP("limit", "l", mcp.DefaultListLimit, "maximum records (0 = all)")

	clearCmd.Flags().BoolP("force", "f", false, "force clear without confirmation")

	watchCmd.Flags().Int("debounce", 0, "debounce time in milliseconds (0 = config)")
	watchCmd.Flags().Bool("delete-on-remove", false, "delete records when their file is removed")
	watchCmd.Flags().Bool("no-initial", false, "skip ingesting existing files")

	serveCmd.Flags().Bool("stdio", false, "use stdio transport (for MCP)")

	metricsCmd.Flags().Int("history", 10, "recent searches to show")

	configInitCmd.Flags().BoolP("force", "f", false, "overwrite an existing config file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)

	pluginCmd.AddCommand(pluginListCmd)
	pluginCmd.AddCommand(pluginLoadCmd)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(countCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(subscribeCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(pluginCmd)
	rootCmd.AddCommand(callCmd)
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setupLogging() {
	levelVar.Set(parseLevel(logLevel))

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: levelVar}

	if logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		slog.Error("failed to encode output", "error", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}

func parseVectorArg(s string) ([]float32, error) {
	var vector []float32
	if err := json.Unmarshal([]byte(s), &vector); err != nil {
		return nil, fmt.Errorf("%w: expected a JSON array of numbers: %w", types.ErrInvalidVector, err)
	}
	return vector, nil
}

func runAdd(id, vectorJSON, metadataJSON string) {
	vector, err := parseVectorArg(vectorJSON)
	if err != nil {
		slog.Error("invalid vector", "error", err)
		os.Exit(1)
	}

	var metadata map[string]any
	if metadataJSON != "" {
		if err := json.Unmarshal([]byte(metadataJSON), &metadata); err != nil {
			slog.Error("invalid metadata, expected a JSON object", "error", err)
			os.Exit(1)
		}
	}

	a := mustApp(appOptions{})
	defer a.Close()

	ctx := context.Background()
	if err := a.store.Add(ctx, id, vector, metadata); err != nil {
		slog.Error("failed to add vector", "id", id, "error", err)
		a.Close()
		os.Exit(1)
	}
	a.publish(ctx, types.EventVectorAdded, []string{id}, 1)

	fmt.Printf("Stored %s (%d dimensions)\n", id, len(vector))
}

func runGet(id string) {
	a := mustApp(appOptions{})
	defer a.Close()

	rec, err := a.store.Get(context.Background(), id)
	if errors.Is(err, types.ErrNotFound) {
		fmt.Printf("Vector %s not found\n", id)
		a.Close()
		os.Exit(1)
	}
	if err != nil {
		slog.Error("failed to get vector", "id", id, "error", err)
		a.Close()
		os.Exit(1)
	}

	printJSON(rec)
}

func runDelete(id string) {
	a := mustApp(appOptions{})
	defer a.Close()

	ctx := context.Background()
	if err := a.store.Delete(ctx, id); err != nil {
		slog.Error("failed to delete vector", "id", id, "error", err)
		a.Close()
		os.Exit(1)
	}
	a.publish(ctx, types.EventVectorDeleted, []string{id}, 1)

	fmt.Printf("Deleted %s\n", id)
}

func runSearch(req *types.SearchRequest, vectorJSON string) {
	if (req.Text == "") == (vectorJSON == "") {
		slog.Error("provide either a query vector or --text")
		os.Exit(1)
	}
	if vectorJSON != "" {
		vector, err := parseVectorArg(vectorJSON)
		if err != nil {
			slog.Error("invalid vector", "error", err)
			os.Exit(1)
		}
		req.Vector = vector
	}
	slog.Debug("searching", "text", req.Text, "limit", req.Limit, "threshold", req.Threshold)

	a := mustApp(appOptions{embedding: req.Text != ""})
	defer a.Close()

	ctx := context.Background()
	if req.Text != "" {
		if a.embedding == nil {
			slog.Error("text search requires an embedding provider")
			a.Close()
			os.Exit(1)
		}
		vectors, err := a.embedding.Embed(ctx, []string{req.Text})
		if err != nil {
			slog.Error("failed to embed query", "error", err)
			a.Close()
			os.Exit(1)
		}
		req.Vector = vectors[0]
		if err := a.realtime.RecordSearch(ctx, req.Text); err != nil {
			slog.Debug("failed to record search", "error", err)
		}
	}

	results, err := a.store.Search(ctx, req.Vector, req.Limit, req.Threshold)
	if err != nil {
		slog.Error("search failed", "error", err)
		a.Close()
		os.Exit(1)
	}

	if len(results) == 0 {
		fmt.Println("No results found")
		return
	}

	for i, r := range results {
		fmt.Printf("\n=== Result %d (similarity: %.4f) ===\n", i+1, r.Similarity)
		fmt.Printf("ID: %s\n", r.ID)
		if len(r.Metadata) > 0 {
			meta, _ := json.Marshal(r.Metadata)
			fmt.Printf("Metadata: %s\n", meta)
		}
	}
}

func runList(limit int) {
	a := mustApp(appOptions{})
	defer a.Close()

	records, err := a.store.List(context.Background(), limit)
	if err != nil {
		slog.Error("failed to list vectors", "error", err)
		a.Close()
		os.Exit(1)
	}

	if len(records) == 0 {
		fmt.Println("No records stored")
		return
	}

	for _, r := range records {
		meta, _ := json.Marshal(r.Metadata)
		fmt.Printf("%s\t%d\t%s\t%s\n", r.ID, len(r.Vector), r.CreatedAt.Format(time.RFC3339), meta)
	}
}

func runCount() {
	a := mustApp(appOptions{})
	defer a.Close()

	stats, err := a.store.Stats(context.Background())
	if err != nil {
		slog.Error("failed to count vectors", "error", err)
		a.Close()
		os.Exit(1)
	}

	fmt.Printf("Backend: %s\n", stats.Backend)
	fmt.Printf("Prefix:  %s\n", stats.Prefix)
	fmt.Printf("Vectors: %d\n", stats.Vectors)
}

func runClear(force bool) {
	a := mustApp(appOptions{})
	defer a.Close()

	if !force {
		fmt.Printf("This will delete all records under %q. Continue? [y/N] ", a.store.Prefix())
		var response string
		_, _ = fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted.")
			return
		}
	}

	ctx := context.Background()
	deleted, err := a.store.Clear(ctx)
	if err != nil {
		slog.Error("failed to clear vectors", "deleted", deleted, "error", err)
		a.Close()
		os.Exit(1)
	}
	a.publish(ctx, types.EventVectorsCleared, nil, deleted)

	fmt.Printf("Deleted %d records.\n", deleted)
}

func runIngest(paths []string) {
	a := mustApp(appOptions{embedding: true})
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := ingest.NewLoader(ingest.Config{
		Store:       a.store,
		Embedding:   a.embedding,
		Concurrency: a.cfg.Ingest.Concurrency,
	})

	failed := false
	for i, path := range paths {
		if err := a.realtime.UpdateScraperStatus(ctx, "running", float64(i)/float64(len(paths))); err != nil {
			slog.Debug("failed to update status", "error", err)
		}

		stats, err := loader.LoadFile(ctx, path)
		if err != nil {
			slog.Error("failed to ingest file", "file", path, "error", err)
			failed = true
			if ctx.Err() != nil {
				break
			}
			continue
		}
		a.publish(ctx, types.EventVectorAdded, stats.IDs, stats.Added)
		fmt.Printf("%s: %d added, %d failed (%s)\n", stats.File, stats.Added, stats.Failed, stats.Elapsed)
		if stats.Failed > 0 {
			failed = true
		}
	}

	if err := a.realtime.UpdateScraperStatus(context.Background(), "idle", 1); err != nil {
		slog.Debug("failed to update status", "error", err)
	}
	if failed {
		a.Close()
		os.Exit(1)
	}
}

// newWatcher wires a directory watcher to the app's store and notifications.
func newWatcher(a *app, dir string, debounce time.Duration, deleteOnRemove, initialLoad bool) (*ingest.Watcher, error) {
	loader := ingest.NewLoader(ingest.Config{
		Store:       a.store,
		Embedding:   a.embedding,
		Concurrency: a.cfg.Ingest.Concurrency,
	})

	return ingest.NewWatcher(ingest.WatcherConfig{
		Dir:            dir,
		Loader:         loader,
		DeleteOnRemove: deleteOnRemove,
		InitialLoad:    initialLoad,
		DebounceTime:   debounce,
		OnIngest: func(stats *types.IngestStats) {
			ctx := context.Background()
			a.publish(ctx, types.EventVectorAdded, stats.IDs, stats.Added)
			if err := a.realtime.UpdateScraperStatus(ctx, "idle", 1); err != nil {
				slog.Debug("failed to update status", "error", err)
			}
		},
		OnRemove: func(path string, ids []string) {
			a.publish(context.Background(), types.EventVectorDeleted, ids, len(ids))
		},
	})
}

func runWatch(dir string, debounceMs int, deleteOnRemove, initialLoad bool) {
	a := mustApp(appOptions{embedding: true})
	defer a.Close()

	if dir == "" {
		dir = a.cfg.Ingest.WatchDir
	}
	if dir == "" {
		slog.Error("no directory given and ingest.watch_dir is not set")
		a.Close()
		os.Exit(1)
	}
	absPath, _ := filepath.Abs(dir)

	debounce := a.cfg.Ingest.Debounce
	if debounceMs > 0 {
		debounce = time.Duration(debounceMs) * time.Millisecond
	}
	deleteOnRemove = deleteOnRemove || a.cfg.Ingest.DeleteOnRemove
	slog.Info("watching for changes", "path", absPath, "debounce", debounce, "delete_on_remove", deleteOnRemove)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	watcher, err := newWatcher(a, absPath, debounce, deleteOnRemove, initialLoad)
	if err != nil {
		slog.Error("failed to create watcher", "error", err)
		a.Close()
		os.Exit(1)
	}

	fmt.Printf("Watching %s for changes (press Ctrl+C to stop)\n", absPath)

	// Blocks until the context is cancelled
	if err := watcher.Watch(ctx); err != nil {
		if ctx.Err() != nil {
			slog.Info("watcher stopped")
		} else {
			slog.Error("watcher error", "error", err)
			a.Close()
			os.Exit(1)
		}
	}
}

func runServe(stdio bool) {
	if !stdio {
		fmt.Println("HTTP transport not implemented yet. Use --stdio for MCP.")
		os.Exit(1)
	}

	a := mustApp(appOptions{embedding: true, generator: true})
	defer a.Close()

	if lvl := a.cfg.Logging.Level; lvl != "" && !rootCmd.PersistentFlags().Changed("log-level") {
		levelVar.Set(parseLevel(lvl))
	}
	slog.Info("starting MCP server", "backend", a.backend.Name(), "prefix", a.store.Prefix())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.backend.Ping(ctx); err != nil {
		slog.Warn("backend not reachable", "backend", a.backend.Name(), "error", err)
	}
	if a.embedding != nil {
		if err := a.embedding.Warmup(ctx); err != nil {
			slog.Warn("embedding warmup failed", "error", err)
		}
	}

	server, err := mcp.New(mcp.Config{
		Store:          a.store,
		Embedding:      a.embedding,
		Generator:      a.generator,
		Notifier:       a.notifier,
		Realtime:       a.realtime,
		EventsChannel:  a.cfg.EventsChannel(),
		Version:        version,
		DisableCatalog: !a.cfg.MCP.Catalog,
	})
	if err != nil {
		slog.Error("failed to create server", "error", err)
		a.Close()
		os.Exit(1)
	}

	if err := config.Watch(a.cwd, func(cfg *config.Config, err error) {
		if err != nil {
			slog.Warn("config reload failed", "error", err)
			return
		}
		if !rootCmd.PersistentFlags().Changed("log-level") {
			levelVar.Set(parseLevel(cfg.Logging.Level))
		}
		slog.Info("config file changed; restart to apply backend or provider changes", "log_level", levelVar.Level())
	}); err != nil {
		slog.Debug("config reload disabled", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// stdin closing ends the whole server
		defer stop()
		slog.Info("MCP server running (press Ctrl+C to stop)")
		err := server.ServeStdio(gctx)
		if gctx.Err() != nil {
			return nil
		}
		return err
	})

	if addr := a.cfg.Metrics.Addr; addr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, addr)
		})
	}

	if a.notifier != nil {
		g.Go(func() error {
			return listenEvents(gctx, a.notifier, a.cfg.EventsChannel())
		})
	}

	if dir := a.cfg.Ingest.WatchDir; dir != "" {
		watcher, err := newWatcher(a, dir, a.cfg.Ingest.Debounce, a.cfg.Ingest.DeleteOnRemove, true)
		if err != nil {
			slog.Error("failed to create watcher", "error", err)
			a.Close()
			os.Exit(1)
		}
		g.Go(func() error {
			return watcher.Watch(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		slog.Error("server error", "error", err)
		a.Close()
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// serveMetrics exposes Prometheus metrics until ctx is cancelled.
func serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("metrics endpoint listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics endpoint: %w", err)
	}
}

// listenEvents logs change events from every writer sharing the namespace.
func listenEvents(ctx context.Context, n notify.Notifier, channel string) error {
	err := n.Subscribe(ctx, channel, func(ch string, payload any) {
		slog.Debug("record change", "channel", ch, "event", payload)
	})
	if err != nil {
		slog.Warn("event listener disabled", "channel", channel, "error", err)
		return nil
	}

	<-ctx.Done()
	return n.Unsubscribe(context.Background(), channel)
}

func runPublish(channel, message string) {
	a := mustApp(appOptions{})
	defer a.Close()

	if a.redis == nil {
		slog.Warn("backend is not redis; message is delivered in-process only", "backend", a.backend.Name())
	}

	n := notify.New(a.redis)
	defer n.Close()

	if err := n.Publish(context.Background(), channel, message); err != nil {
		slog.Error("failed to publish", "channel", channel, "error", err)
		a.Close()
		os.Exit(1)
	}
	fmt.Printf("Published to %s\n", channel)
}

func runSubscribe(channel string) {
	a := mustApp(appOptions{})
	defer a.Close()

	if a.redis == nil {
		slog.Error("subscribe requires the redis backend", "backend", a.backend.Name())
		a.Close()
		os.Exit(1)
	}
	if channel == "" {
		channel = a.cfg.EventsChannel()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	n := notify.New(a.redis)
	defer n.Close()

	out := bufio.NewWriter(os.Stdout)
	messages := make(chan string, 16)
	err := n.Subscribe(ctx, channel, func(ch string, payload any) {
		data, err := json.Marshal(payload)
		if err != nil {
			data = []byte(fmt.Sprint(payload))
		}
		select {
		case messages <- fmt.Sprintf("[%s] %s", ch, data):
		case <-ctx.Done():
		}
	})
	if err != nil {
		slog.Error("failed to subscribe", "channel", channel, "error", err)
		a.Close()
		os.Exit(1)
	}

	fmt.Printf("Listening on %s (press Ctrl+C to stop)\n", channel)
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-messages:
			fmt.Fprintln(out, msg)
			out.Flush()
		}
	}
}

func runMetrics(history int) {
	a := mustApp(appOptions{})
	defer a.Close()

	ctx := context.Background()
	searches, err := a.realtime.History(ctx, history)
	if err != nil {
		slog.Warn("failed to read search history", "error", err)
	}

	out := map[string]any{
		"metrics":         a.realtime.Snapshot(ctx),
		"recent_searches": searches,
	}
	if stats, err := a.store.Stats(ctx); err == nil {
		out["store"] = stats
	} else {
		slog.Warn("failed to read store stats", "error", err)
	}

	printJSON(out)
}

func runConfigInit(force bool) {
	cwd, _ := os.Getwd()

	if _, err := os.Stat(config.ConfigPath(cwd)); err == nil && !force {
		fmt.Printf("Config already exists at %s (use --force to overwrite)\n", config.ConfigPath(cwd))
		os.Exit(1)
	}

	cfg := config.DefaultConfig()
	if err := config.Save(cwd, cfg); err != nil {
		slog.Error("failed to save config", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Created config at %s\n", config.ConfigPath(cwd))
}

func runConfigValidate() {
	_, cfg := loadConfig()

	errs := config.Validate(cfg)
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Printf("Error: %v\n", e)
		}
		os.Exit(1)
	}

	a, err := newApp(appOptions{embedding: true, generator: true})
	if err != nil {
		fmt.Printf("[error] providers: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	valid := true
	check := func(name string, err error) {
		if err != nil {
			valid = false
			fmt.Printf("[error] %s: %v\n", name, err)
			return
		}
		fmt.Printf("[ok] %s\n", name)
	}

	check("backend "+a.backend.Name(), a.backend.Ping(ctx))
	if a.embedding != nil {
		check("embedding "+a.embedding.Name(), a.embedding.Warmup(ctx))
	}
	if a.generator != nil {
		fmt.Printf("[ok] generator %s\n", a.generator.Name())
	}

	if valid {
		fmt.Println("\nConfiguration is valid")
	} else {
		fmt.Println("\nConfiguration has errors")
		a.Close()
		os.Exit(1)
	}
}

func runConfigShow() {
	_, cfg := loadConfig()

	// Never print credentials
	if cfg.Embedding.APIKey != "" {
		cfg.Embedding.APIKey = "***"
	}
	if cfg.Generation.APIKey != "" {
		cfg.Generation.APIKey = "***"
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		slog.Error("failed to encode config", "error", err)
		os.Exit(1)
	}
	fmt.Print(string(data))
}

func runPluginList() {
	cwd, cfg := loadConfig()
	pluginsDir := cfg.PluginsDir(cwd)

	manager := host.NewManager(pluginsDir)

	// Discover available plugins
	available, err := manager.DiscoverPlugins()
	if err != nil {
		slog.Error("failed to discover plugins", "error", err)
		os.Exit(1)
	}

	fmt.Println("=== Available Plugins ===")
	fmt.Printf("Plugins directory: %s\n\n", pluginsDir)

	if len(available) == 0 {
		fmt.Println("No plugins found.")
		fmt.Println("\nTo install a plugin:")
		fmt.Println("  1. Build or download a plugin binary")
		fmt.Printf("  2. Copy it to %s\n", pluginsDir)
		fmt.Println("  3. Make it executable (chmod +x)")
		return
	}

	for _, name := range available {
		fmt.Printf("  - %s\n", name)
	}

	fmt.Println("\nTo load a plugin, use:")
	fmt.Println("  mcp-vecstore plugin load <name> <type>")
	fmt.Println("  where type is: embedding, generator")
	fmt.Println("\nTo use it, set embedding.provider or generation.provider to the plugin name.")
}

func runPluginLoad(name string, pluginType string) {
	cwd, cfg := loadConfig()

	manager := host.NewManager(cfg.PluginsDir(cwd))
	defer manager.UnloadAll()

	// Parse plugin type
	var pType shared.PluginType
	switch pluginType {
	case "embedding":
		pType = shared.PluginTypeEmbedding
	case "generator":
		pType = shared.PluginTypeGenerator
	default:
		slog.Error("invalid plugin type", "type", pluginType, "valid", "embedding, generator")
		os.Exit(1)
	}

	loaded, err := manager.LoadPlugin(name, pType)
	if err != nil {
		slog.Error("failed to load plugin", "name", name, "error", err)
		os.Exit(1)
	}

	fmt.Printf("Plugin loaded: %s (type: %s)\n", name, pluginType)

	// Test the plugin
	switch pType {
	case shared.PluginTypeEmbedding:
		if loaded.Embedding != nil {
			fmt.Printf("  Name: %s\n", loaded.Embedding.Name())
			fmt.Printf("  Dimensions: %d\n", loaded.Embedding.Dimensions())
			fmt.Printf("  Max Batch Size: %d\n", loaded.Embedding.MaxBatchSize())

			fmt.Println("\nTesting embedding...")
			embeddings, err := loaded.Embedding.Embed([]string{"Hello, world!"})
			if err != nil {
				fmt.Printf("  Error: %v\n", err)
			} else {
				fmt.Printf("  Generated %d embedding(s) of dimension %d\n", len(embeddings), len(embeddings[0]))
			}
		}

	case shared.PluginTypeGenerator:
		if loaded.Generator != nil {
			fmt.Printf("  Name: %s\n", loaded.Generator.Name())

			fmt.Println("\nTesting generator...")
			answer, err := loaded.Generator.Generate("Hello")
			if err != nil {
				fmt.Printf("  Error: %v\n", err)
			} else {
				fmt.Printf("  Answer: %s\n", answer)
			}
		}
	}

	fmt.Println("\nPlugin test complete.")
}

func runCall(tool string, jsonArgs string) {
	var args map[string]any
	if err := json.Unmarshal([]byte(jsonArgs), &args); err != nil {
		slog.Error("invalid JSON arguments", "error", err)
		os.Exit(1)
	}

	a := mustApp(appOptions{embedding: true, generator: true})
	defer a.Close()

	server, err := mcp.New(mcp.Config{
		Store:         a.store,
		Embedding:     a.embedding,
		Generator:     a.generator,
		Notifier:      a.notifier,
		Realtime:      a.realtime,
		EventsChannel: a.cfg.EventsChannel(),
		Version:       version,
	})
	if err != nil {
		slog.Error("failed to create MCP server", "error", err)
		a.Close()
		os.Exit(1)
	}

	request, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  map[string]any{"name": tool, "arguments": args},
	})

	response := server.MCPServer().HandleMessage(context.Background(), request)
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("failed to encode response", "error", err)
		a.Close()
		os.Exit(1)
	}

	var decoded struct {
		Result *struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
			IsError bool `json:"isError"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil || decoded.Result == nil {
		msg := string(data)
		if decoded.Error != nil {
			msg = decoded.Error.Message
		}
		fmt.Printf("Error: %s\n", msg)
		a.Close()
		os.Exit(1)
	}

	for _, c := range decoded.Result.Content {
		fmt.Println(strings.TrimSpace(c.Text))
	}
	if decoded.Result.IsError {
		a.Close()
		os.Exit(1)
	}
}
