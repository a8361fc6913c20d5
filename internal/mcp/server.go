// Package mcp implements the MCP server exposing the vector store as tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/spetr/mcp-vecstore/internal/metrics"
	"github.com/spetr/mcp-vecstore/internal/notify"
	"github.com/spetr/mcp-vecstore/internal/vectorstore"
	"github.com/spetr/mcp-vecstore/pkg/provider"
	"github.com/spetr/mcp-vecstore/pkg/types"
)

// Defaults for tool arguments.
const (
	DefaultSearchLimit = 5
	DefaultListLimit   = 100
	DefaultAskSources  = 3
)

// Server implements the MCP server.
type Server struct {
	mcpServer     *server.MCPServer
	store         *vectorstore.Store
	embedding     provider.EmbeddingProvider
	generator     provider.Generator
	notifier      notify.Notifier
	realtime      metrics.Realtime
	eventsChannel string
}

// Config contains server configuration. Only Store is required.
type Config struct {
	Store     *vectorstore.Store
	Embedding provider.EmbeddingProvider // add_text, text search and ask
	Generator provider.Generator         // ask
	Notifier  notify.Notifier            // change events
	Realtime  metrics.Realtime           // get_metrics and search counters

	// EventsChannel receives change events. Default: <prefix>events.
	EventsChannel string
	Version       string

	// DisableCatalog skips the list_tools and suggest_tool helpers.
	DisableCatalog bool
}

// New creates a new MCP server.
func New(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("mcp: store is required")
	}
	if cfg.Realtime == nil {
		cfg.Realtime = metrics.NewStaticRealtime()
	}
	if cfg.EventsChannel == "" {
		cfg.EventsChannel = cfg.Store.Prefix() + "events"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	s := &Server{
		store:         cfg.Store,
		embedding:     cfg.Embedding,
		generator:     cfg.Generator,
		notifier:      cfg.Notifier,
		realtime:      cfg.Realtime,
		eventsChannel: cfg.EventsChannel,
	}

	mcpServer := server.NewMCPServer(
		"mcp-vecstore",
		cfg.Version,
		server.WithToolCapabilities(false),
		server.WithLogging(),
	)

	s.registerTools(mcpServer)
	if !cfg.DisableCatalog {
		s.registerCatalogTools(mcpServer)
	}

	s.mcpServer = mcpServer
	return s, nil
}

// registerTools registers the vector store tools.
func (s *Server) registerTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(mcp.NewTool("add_vector",
		mcp.WithDescription("Insert or overwrite a vector record"),
		mcp.WithString("id", mcp.Required(), mcp.Description("Record ID")),
		mcp.WithArray("vector", mcp.Required(), mcp.Description("Embedding components"), mcp.Items(map[string]any{"type": "number"})),
		mcp.WithObject("metadata", mcp.Description("Arbitrary JSON metadata")),
	), s.handleAddVector)

	mcpServer.AddTool(mcp.NewTool("add_text",
		mcp.WithDescription("Embed text and store it as a vector record; the text is kept in metadata"),
		mcp.WithString("id", mcp.Required(), mcp.Description("Record ID")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text to embed")),
		mcp.WithObject("metadata", mcp.Description("Arbitrary JSON metadata")),
	), s.handleAddText)

	mcpServer.AddTool(mcp.NewTool("get_vector",
		mcp.WithDescription("Get a vector record by ID"),
		mcp.WithString("id", mcp.Required(), mcp.Description("Record ID")),
	), s.handleGetVector)

	mcpServer.AddTool(mcp.NewTool("delete_vector",
		mcp.WithDescription("Delete a vector record by ID (no error if absent)"),
		mcp.WithString("id", mcp.Required(), mcp.Description("Record ID")),
	), s.handleDeleteVector)

	mcpServer.AddTool(mcp.NewTool("search_vectors",
		mcp.WithDescription("Find the most similar records by cosine similarity. Pass either vector or text."),
		mcp.WithArray("vector", mcp.Description("Query embedding"), mcp.Items(map[string]any{"type": "number"})),
		mcp.WithString("text", mcp.Description("Query text, embedded with the configured provider")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default 5)")),
		mcp.WithNumber("threshold", mcp.Description("Minimum similarity, -1..1 (default 0)")),
	), s.handleSearchVectors)

	mcpServer.AddTool(mcp.NewTool("list_vectors",
		mcp.WithDescription("List stored records"),
		mcp.WithNumber("limit", mcp.Description("Maximum records (default 100, 0 = all)")),
	), s.handleListVectors)

	mcpServer.AddTool(mcp.NewTool("count_vectors",
		mcp.WithDescription("Count stored records"),
	), s.handleCountVectors)

	mcpServer.AddTool(mcp.NewTool("clear_vectors",
		mcp.WithDescription("Delete every record in the namespace"),
		mcp.WithBoolean("confirm", mcp.Required(), mcp.Description("Must be true")),
	), s.handleClearVectors)

	mcpServer.AddTool(mcp.NewTool("get_metrics",
		mcp.WithDescription("Dashboard counters, recent searches and store statistics"),
		mcp.WithNumber("history", mcp.Description("Recent searches to include (default 10)")),
	), s.handleGetMetrics)

	mcpServer.AddTool(mcp.NewTool("ask",
		mcp.WithDescription("Answer a question from the most similar stored records"),
		mcp.WithString("question", mcp.Required(), mcp.Description("Question text")),
		mcp.WithNumber("sources", mcp.Description("Records to use as context (default 3)")),
		mcp.WithNumber("threshold", mcp.Description("Minimum similarity for sources (default 0)")),
	), s.handleAsk)
}

func (s *Server) handleAddVector(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	args := arguments(req)

	vector, err := parseVector(args["vector"])
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	metadata, err := parseMetadata(args["metadata"])
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.store.Add(ctx, id, vector, metadata); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("add failed: %v", err)), nil
	}
	s.publish(ctx, types.EventVectorAdded, []string{id}, 1)

	return jsonResult(map[string]any{"id": id, "dimensions": len(vector), "stored": true})
}

func (s *Server) handleAddText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	text := req.GetString("text", "")
	if text == "" {
		return mcp.NewToolResultError("text is required"), nil
	}

	metadata, err := parseMetadata(arguments(req)["metadata"])
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if metadata == nil {
		metadata = make(map[string]any)
	}
	if _, ok := metadata["text"]; !ok {
		metadata["text"] = text
	}

	vector, err := s.embed(ctx, text)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.store.Add(ctx, id, vector, metadata); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("add failed: %v", err)), nil
	}
	s.publish(ctx, types.EventVectorAdded, []string{id}, 1)

	return jsonResult(map[string]any{"id": id, "dimensions": len(vector), "stored": true})
}

func (s *Server) handleGetVector(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	rec, err := s.store.Get(ctx, id)
	if errors.Is(err, types.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("vector not found: %s", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get failed: %v", err)), nil
	}
	return jsonResult(rec)
}

func (s *Server) handleDeleteVector(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if err := s.store.Delete(ctx, id); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("delete failed: %v", err)), nil
	}
	s.publish(ctx, types.EventVectorDeleted, []string{id}, 1)
	return jsonResult(map[string]any{"id": id, "deleted": true})
}

func (s *Server) handleSearchVectors(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", DefaultSearchLimit)
	threshold := req.GetFloat("threshold", 0)
	text := req.GetString("text", "")

	query, err := s.queryVector(ctx, arguments(req)["vector"], text)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	results, err := s.store.Search(ctx, query, limit, threshold)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if text != "" {
		s.realtime.RecordSearch(ctx, text)
	}

	return jsonResult(map[string]any{"count": len(results), "results": results})
}

func (s *Server) handleListVectors(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", DefaultListLimit)
	records, err := s.store.List(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}
	return jsonResult(map[string]any{"count": len(records), "records": records})
}

func (s *Server) handleCountVectors(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("count failed: %v", err)), nil
	}
	return jsonResult(map[string]any{"count": n})
}

func (s *Server) handleClearVectors(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !req.GetBool("confirm", false) {
		return mcp.NewToolResultError("refusing to clear without confirm=true"), nil
	}
	deleted, err := s.store.Clear(ctx)
	if deleted > 0 {
		s.publish(ctx, types.EventVectorsCleared, nil, deleted)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("clear failed after deleting %d records: %v", deleted, err)), nil
	}
	return jsonResult(map[string]any{"deleted": deleted})
}

func (s *Server) handleGetMetrics(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	historyLimit := req.GetInt("history", 10)

	result := map[string]any{
		"realtime": s.realtime.Snapshot(ctx),
	}

	history, err := s.realtime.History(ctx, historyLimit)
	if err != nil {
		slog.Warn("failed to read search history", "error", err)
	} else {
		result["recent_searches"] = history
	}

	stats, err := s.store.Stats(ctx)
	if err != nil {
		result["store_error"] = err.Error()
	} else {
		result["store"] = stats
	}

	return jsonResult(result)
}

func (s *Server) handleAsk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question := strings.TrimSpace(req.GetString("question", ""))
	if question == "" {
		return mcp.NewToolResultError("question is required"), nil
	}
	if s.generator == nil {
		return mcp.NewToolResultError("no generator configured"), nil
	}
	sources := req.GetInt("sources", DefaultAskSources)
	threshold := req.GetFloat("threshold", 0)

	var matches []types.SearchResult
	if s.embedding != nil {
		query, err := s.embed(ctx, question)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		matches, err = s.store.Search(ctx, query, sources, threshold)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}
	}

	answer, err := s.generator.Generate(ctx, buildPrompt(question, matches))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("generation failed: %v", err)), nil
	}

	s.realtime.RecordSearch(ctx, question)
	s.realtime.RecordAgentTurn(ctx)

	return jsonResult(map[string]any{
		"answer":    answer,
		"sources":   matches,
		"generator": s.generator.Name(),
	})
}

// queryVector returns the explicit vector argument, or embeds text.
func (s *Server) queryVector(ctx context.Context, rawVector any, text string) ([]float32, error) {
	if rawVector != nil {
		return parseVector(rawVector)
	}
	if text == "" {
		return nil, errors.New("either vector or text is required")
	}
	return s.embed(ctx, text)
}

func (s *Server) embed(ctx context.Context, text string) ([]float32, error) {
	if s.embedding == nil {
		return nil, fmt.Errorf("%w: no embedding provider configured", types.ErrProviderNotAvailable)
	}
	vecs, err := s.embedding.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: expected 1 embedding, got %d", types.ErrEmbeddingFailed, len(vecs))
	}
	return vecs[0], nil
}

// publish sends a change event. Failures are logged only.
func (s *Server) publish(ctx context.Context, eventType string, ids []string, count int) {
	if s.notifier == nil {
		return
	}
	event := types.Event{
		Type:      eventType,
		IDs:       ids,
		Count:     count,
		Timestamp: time.Now().UTC(),
	}
	if err := s.notifier.Publish(ctx, s.eventsChannel, event); err != nil {
		slog.Warn("failed to publish event", "type", eventType, "error", err)
	}
}

// buildPrompt frames the question with the text of matching records.
func buildPrompt(question string, matches []types.SearchResult) string {
	var b strings.Builder
	if len(matches) > 0 {
		b.WriteString("Context:\n")
		for i, m := range matches {
			fmt.Fprintf(&b, "[%d] %s (similarity %.3f)", i+1, m.ID, m.Similarity)
			if text, ok := m.Metadata["text"].(string); ok && text != "" {
				b.WriteString(": ")
				b.WriteString(text)
			} else if len(m.Metadata) > 0 {
				meta, _ := json.Marshal(m.Metadata)
				b.WriteString(": ")
				b.Write(meta)
			}
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}

func arguments(req mcp.CallToolRequest) map[string]any {
	if args, ok := req.Params.Arguments.(map[string]any); ok {
		return args
	}
	return map[string]any{}
}

// parseVector accepts a JSON array of numbers or a string holding one.
func parseVector(raw any) ([]float32, error) {
	switch v := raw.(type) {
	case nil:
		return nil, errors.New("vector is required")
	case string:
		var out []float32
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return nil, fmt.Errorf("invalid vector: %w", err)
		}
		return out, nil
	case []float32:
		return v, nil
	case []float64:
		out := make([]float32, len(v))
		for i, x := range v {
			out[i] = float32(x)
		}
		return out, nil
	case []any:
		out := make([]float32, len(v))
		for i, x := range v {
			switch n := x.(type) {
			case float64:
				out[i] = float32(n)
			case int:
				out[i] = float32(n)
			case json.Number:
				f, err := n.Float64()
				if err != nil {
					return nil, fmt.Errorf("invalid vector component %d: %w", i, err)
				}
				out[i] = float32(f)
			default:
				return nil, fmt.Errorf("invalid vector component %d: %v", i, x)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("invalid vector: unexpected type %T", raw)
}

// parseMetadata accepts an object or a string holding one.
func parseMetadata(raw any) (map[string]any, error) {
	switch m := raw.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return m, nil
	case string:
		if strings.TrimSpace(m) == "" {
			return nil, nil
		}
		var out map[string]any
		if err := json.Unmarshal([]byte(m), &out); err != nil {
			return nil, fmt.Errorf("invalid metadata: %w", err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("invalid metadata: unexpected type %T", raw)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves MCP over stdin/stdout until ctx is cancelled or stdin closes.
func (s *Server) ServeStdio(ctx context.Context) error {
	return server.NewStdioServer(s.mcpServer).Listen(ctx, os.Stdin, os.Stdout)
}
