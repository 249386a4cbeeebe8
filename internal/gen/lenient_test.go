package gen

import "testing"

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fence", `{"a": 1}`, `{"a": 1}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"bare fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"fence no newline", "```json{\"a\": 1}```", `{"a": 1}`},
		{"surrounding whitespace", "  \n{\"a\": 1}\n  ", `{"a": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripCodeFence(tt.in); got != tt.want {
				t.Errorf("stripCodeFence(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseSolveFallbackIsDeterministic(t *testing.T) {
	a := parseSolve("free text")
	b := parseSolve("free text")
	if len(a) != 1 || len(b) != 1 || a[0] != b[0] {
		t.Errorf("fallback must be deterministic: %+v vs %+v", a, b)
	}
	if a[0].Solution != "free text" {
		t.Errorf("solution should carry the raw content, got %q", a[0].Solution)
	}
}

func TestParseSolveEmptyProblemsFallsBack(t *testing.T) {
	got := parseSolve(`{"problems": []}`)
	if len(got) != 1 {
		t.Fatalf("empty problems list should fall back, got %d items", len(got))
	}
}

func TestParseWeaknessesCapsExamples(t *testing.T) {
	wrong := []WrongAnswerInput{
		{Question: "a"}, {Question: "b"}, {Question: "c"}, {Question: "d"},
	}
	got := parseWeaknesses("garbage", wrong)
	if len(got) != 1 {
		t.Fatalf("got %d weaknesses", len(got))
	}
	if got[0].ErrorCount != 4 {
		t.Errorf("errorCount = %d, want 4", got[0].ErrorCount)
	}
	if len(got[0].Examples) != 3 {
		t.Errorf("examples capped at 3, got %d", len(got[0].Examples))
	}
}

func TestParseRecommendationsUsesFirstWeaknessCategory(t *testing.T) {
	got := parseRecommendations("plain text", []Weakness{{Category: "grammar"}})
	if len(got) != 1 {
		t.Fatalf("got %d problems", len(got))
	}
	if got[0].Category != "grammar" {
		t.Errorf("category = %q, want grammar", got[0].Category)
	}
	if len(parseRecommendations("plain text", nil)) != 1 {
		t.Error("fallback must work with no weaknesses")
	}
}
