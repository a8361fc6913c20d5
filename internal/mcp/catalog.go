package mcp

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ToolCategory groups related tools.
type ToolCategory struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Tools       []ToolInfo `json:"tools"`
}

// ToolInfo contains metadata about a tool.
type ToolInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Required    []string `json:"required,omitempty"`
	Optional    []string `json:"optional,omitempty"`
}

// toolCategories describes every tool the server registers.
var toolCategories = []ToolCategory{
	{
		Name:        "records",
		Description: "Create, read and delete vector records",
		Tools: []ToolInfo{
			{Name: "add_vector", Description: "Store a precomputed embedding under an ID", Required: []string{"id", "vector"}, Optional: []string{"metadata"}},
			{Name: "add_text", Description: "Embed text and store it under an ID", Required: []string{"id", "text"}, Optional: []string{"metadata"}},
			{Name: "get_vector", Description: "Fetch a record by ID", Required: []string{"id"}},
			{Name: "delete_vector", Description: "Delete a record by ID", Required: []string{"id"}},
			{Name: "list_vectors", Description: "List stored records", Optional: []string{"limit"}},
			{Name: "count_vectors", Description: "How many records are stored?"},
			{Name: "clear_vectors", Description: "Delete every record in the namespace", Required: []string{"confirm"}},
		},
	},
	{
		Name:        "search",
		Description: "Similarity search and question answering",
		Tools: []ToolInfo{
			{Name: "search_vectors", Description: "Top-k cosine similarity search by vector or text", Optional: []string{"vector", "text", "limit", "threshold"}},
			{Name: "ask", Description: "Answer a question from the most similar records", Required: []string{"question"}, Optional: []string{"sources", "threshold"}},
		},
	},
	{
		Name:        "monitoring",
		Description: "Dashboard counters and store statistics",
		Tools: []ToolInfo{
			{Name: "get_metrics", Description: "Vehicle counts, search counts, scraper status, recent searches", Optional: []string{"history"}},
		},
	},
}

// toolKeywords maps tools to intent keywords for suggest_tool.
var toolKeywords = map[string][]string{
	"add_vector":     {"add", "insert", "store", "save", "embedding", "vector"},
	"add_text":       {"add text", "embed", "document", "index text"},
	"get_vector":     {"get", "fetch", "show", "lookup", "read"},
	"delete_vector":  {"delete", "remove", "drop"},
	"list_vectors":   {"list", "all records", "browse", "enumerate"},
	"count_vectors":  {"count", "how many", "size", "total"},
	"clear_vectors":  {"clear", "wipe", "reset", "delete all", "purge"},
	"search_vectors": {"search", "find", "similar", "nearest", "match", "query"},
	"ask":            {"ask", "question", "answer", "explain", "recommend"},
	"get_metrics":    {"metric", "stats", "dashboard", "scraper", "status", "history"},
}

// registerCatalogTools registers tool discovery helpers.
func (s *Server) registerCatalogTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(mcp.NewTool("list_tools",
		mcp.WithDescription("List available tools by category. Call with verbose=true to see parameters."),
		mcp.WithString("category", mcp.Description("Filter by: records|search|monitoring")),
		mcp.WithBoolean("verbose", mcp.Description("Include required/optional parameters")),
	), s.handleListTools)

	mcpServer.AddTool(mcp.NewTool("suggest_tool",
		mcp.WithDescription(`Describe your goal in natural language to get the best matching tool.

Examples:
• "find trucks similar to this one" → search_vectors
• "how many records are stored" → count_vectors
• "what financing do you offer" → ask`),
		mcp.WithString("intent", mcp.Required(), mcp.Description("What you want to do")),
	), s.handleSuggestTool)
}

// handleListTools returns available tools, optionally filtered by category.
func (s *Server) handleListTools(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category := req.GetString("category", "")
	verbose := req.GetBool("verbose", false)

	var result any

	if category != "" {
		for _, cat := range toolCategories {
			if cat.Name == category {
				result = cat
				break
			}
		}
		if result == nil {
			cats := make([]string, len(toolCategories))
			for i, cat := range toolCategories {
				cats[i] = cat.Name
			}
			return mcp.NewToolResultError(fmt.Sprintf("unknown category: %s. Available: %s", category, strings.Join(cats, ", "))), nil
		}
	} else if verbose {
		result = toolCategories
	} else {
		summary := make([]map[string]any, len(toolCategories))
		for i, cat := range toolCategories {
			toolNames := make([]string, len(cat.Tools))
			for j, t := range cat.Tools {
				toolNames[j] = t.Name
			}
			summary[i] = map[string]any{
				"category":    cat.Name,
				"description": cat.Description,
				"tools":       toolNames,
			}
		}
		result = summary
	}

	return jsonResult(result)
}

// handleSuggestTool suggests the best tools for a given intent.
func (s *Server) handleSuggestTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	intent := strings.ToLower(strings.TrimSpace(req.GetString("intent", "")))
	if intent == "" {
		return mcp.NewToolResultError("required parameter 'intent' is missing"), nil
	}

	type toolScore struct {
		name  string
		score int
	}

	var scores []toolScore
	for tool, keywords := range toolKeywords {
		score := 0
		for _, kw := range keywords {
			if strings.Contains(intent, kw) {
				score += len(kw) // Weight by keyword length
			}
		}
		if score > 0 {
			scores = append(scores, toolScore{tool, score})
		}
	}

	// A misspelled tool name is also an intent.
	if len(scores) == 0 {
		for _, name := range findSimilarTools(intent) {
			scores = append(scores, toolScore{name, 1})
		}
	}

	if len(scores) == 0 {
		return jsonResult(map[string]any{
			"suggestions": []any{},
			"hint":        "No matching tools found. Use list_tools to see all available tools.",
		})
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		return scores[i].name < scores[j].name
	})
	scores = scores[:min(3, len(scores))]

	suggestions := make([]map[string]any, len(scores))
	for i, sc := range scores {
		entry := map[string]any{
			"tool":       sc.name,
			"confidence": min(float64(sc.score)/20.0, 1),
		}
		if info, ok := lookupTool(sc.name); ok {
			entry["description"] = info.Description
			if len(info.Required) > 0 {
				entry["required_params"] = info.Required
			}
			if len(info.Optional) > 0 {
				entry["optional_params"] = info.Optional
			}
		}
		suggestions[i] = entry
	}

	return jsonResult(map[string]any{"suggestions": suggestions})
}

func lookupTool(name string) (ToolInfo, bool) {
	for _, cat := range toolCategories {
		for _, t := range cat.Tools {
			if t.Name == name {
				return t, true
			}
		}
	}
	return ToolInfo{}, false
}

// findSimilarTools finds tools with similar names.
func findSimilarTools(name string) []string {
	var similar []string
	name = strings.ToLower(name)

	for _, cat := range toolCategories {
		for _, tool := range cat.Tools {
			toolLower := strings.ToLower(tool.Name)
			if strings.Contains(toolLower, name) || strings.Contains(name, toolLower) {
				similar = append(similar, tool.Name)
			} else if levenshteinDistance(name, toolLower) <= 3 {
				similar = append(similar, tool.Name)
			}
		}
	}

	if len(similar) > 3 {
		similar = similar[:3]
	}
	return similar
}

// levenshteinDistance calculates edit distance between two strings.
func levenshteinDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	matrix := make([][]int, len(a)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(b)+1)
		matrix[i][0] = i
	}
	for j := range matrix[0] {
		matrix[0][j] = j
	}

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			matrix[i][j] = min(matrix[i-1][j]+1, matrix[i][j-1]+1, matrix[i-1][j-1]+cost)
		}
	}

	return matrix[len(a)][len(b)]
}
