package mcp

import (
	"encoding/json"
	"testing"
)

func TestToolCategories(t *testing.T) {
	for _, cat := range toolCategories {
		if len(cat.Tools) == 0 {
			t.Errorf("category %s has no tools", cat.Name)
		}
		if cat.Description == "" {
			t.Errorf("category %s has no description", cat.Name)
		}
	}
}

func TestToolCategoriesUniqueness(t *testing.T) {
	seen := make(map[string]string)
	for _, cat := range toolCategories {
		for _, tool := range cat.Tools {
			if prevCat, exists := seen[tool.Name]; exists {
				t.Errorf("tool %s appears in both %s and %s", tool.Name, prevCat, cat.Name)
			}
			seen[tool.Name] = cat.Name
		}
	}
}

func TestCatalogMatchesRegisteredTools(t *testing.T) {
	f := newFixture(t, false)

	msg := f.srv.MCPServer().HandleMessage(t.Context(), []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	var resp struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatal(err)
	}
	registered := make(map[string]bool)
	for _, tool := range resp.Result.Tools {
		registered[tool.Name] = true
	}
	if !registered["list_tools"] || !registered["suggest_tool"] {
		t.Errorf("catalog tools missing from %v", registered)
	}

	for _, cat := range toolCategories {
		for _, tool := range cat.Tools {
			if !registered[tool.Name] {
				t.Errorf("catalog lists %s but it is not registered", tool.Name)
			}
			if _, ok := toolKeywords[tool.Name]; !ok {
				t.Errorf("tool %s has no suggest keywords", tool.Name)
			}
		}
	}
}

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		a, b     string
		expected int
	}{
		{"", "", 0},
		{"a", "", 1},
		{"", "a", 1},
		{"abc", "abc", 0},
		{"abc", "abd", 1},
		{"search", "serach", 2},
		{"get_vector", "getvector", 1},
	}

	for _, tt := range tests {
		result := levenshteinDistance(tt.a, tt.b)
		if result != tt.expected {
			t.Errorf("levenshteinDistance(%q, %q) = %d, expected %d", tt.a, tt.b, result, tt.expected)
		}
	}
}

func TestFindSimilarTools(t *testing.T) {
	similar := findSimilarTools("count_vector")
	if len(similar) == 0 || similar[0] != "count_vectors" {
		t.Errorf("findSimilarTools(count_vector) = %v", similar)
	}
	if got := findSimilarTools("zzzzzzzzzzzzzzzz"); len(got) != 0 {
		t.Errorf("expected no suggestions, got %v", got)
	}
}

func TestSuggestTool(t *testing.T) {
	f := newFixture(t, false)

	tests := []struct {
		intent string
		want   string
	}{
		{"find similar trucks", "search_vectors"},
		{"how many records are there", "count_vectors"},
		{"wipe everything", "clear_vectors"},
		{"lst_vectrs", "list_vectors"},
	}
	for _, tt := range tests {
		out, isErr := call(t, f.srv.handleSuggestTool, map[string]any{"intent": tt.intent})
		if isErr {
			t.Fatalf("suggest_tool(%q) failed: %s", tt.intent, out)
		}
		var res struct {
			Suggestions []struct {
				Tool string `json:"tool"`
			} `json:"suggestions"`
		}
		if err := json.Unmarshal([]byte(out), &res); err != nil {
			t.Fatal(err)
		}
		if len(res.Suggestions) == 0 || res.Suggestions[0].Tool != tt.want {
			t.Errorf("suggest_tool(%q) = %+v, want %s first", tt.intent, res.Suggestions, tt.want)
		}
	}

	if _, isErr := call(t, f.srv.handleSuggestTool, map[string]any{}); !isErr {
		t.Error("expected error without intent")
	}
}

func TestListTools(t *testing.T) {
	f := newFixture(t, false)

	out, isErr := call(t, f.srv.handleListTools, map[string]any{"category": "search"})
	if isErr {
		t.Fatalf("list_tools failed: %s", out)
	}
	var cat ToolCategory
	if err := json.Unmarshal([]byte(out), &cat); err != nil {
		t.Fatal(err)
	}
	if cat.Name != "search" || len(cat.Tools) != 2 {
		t.Errorf("unexpected category: %+v", cat)
	}

	if _, isErr := call(t, f.srv.handleListTools, map[string]any{"category": "git"}); !isErr {
		t.Error("expected error for unknown category")
	}
}
