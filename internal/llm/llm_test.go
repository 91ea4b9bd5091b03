package llm

import "testing"

func TestParseJSONResponsePlain(t *testing.T) {
	result := ParseJSONResponse(`{"summary": "test", "score": 3}`)
	if result == nil {
		t.Fatal("expected parsed result")
	}
	if result["summary"] != "test" {
		t.Errorf("expected summary 'test', got %v", result["summary"])
	}
}

func TestParseJSONResponseCodeFence(t *testing.T) {
	text := "```json\n{\"summary\": \"fenced\"}\n```"
	result := ParseJSONResponse(text)
	if result == nil {
		t.Fatal("expected parsed result from fenced block")
	}
	if result["summary"] != "fenced" {
		t.Errorf("expected 'fenced', got %v", result["summary"])
	}
}

func TestParseJSONResponseInvalid(t *testing.T) {
	if result := ParseJSONResponse("not json at all"); result != nil {
		t.Errorf("expected nil for invalid JSON, got %v", result)
	}
	if result := ParseJSONResponse(""); result != nil {
		t.Errorf("expected nil for empty string, got %v", result)
	}
}

func TestGetString(t *testing.T) {
	m := map[string]any{"a": "x", "b": 3}
	if got := GetString(m, "a", "d"); got != "x" {
		t.Errorf("expected 'x', got %q", got)
	}
	if got := GetString(m, "b", "d"); got != "d" {
		t.Errorf("expected fallback for non-string, got %q", got)
	}
	if got := GetString(m, "missing", "d"); got != "d" {
		t.Errorf("expected fallback for missing key, got %q", got)
	}
}

func TestGetStringList(t *testing.T) {
	m := map[string]any{"insights": []any{"one", 2, "three"}}
	got := GetStringList(m, "insights")
	if len(got) != 2 || got[0] != "one" || got[1] != "three" {
		t.Errorf("expected [one three], got %v", got)
	}
	if got := GetStringList(m, "missing"); got != nil {
		t.Errorf("expected nil for missing key, got %v", got)
	}
}
