package gen

import (
	"encoding/json"
	"strings"
)

// The free-form capabilities (solve, weaknessAnalysis, recommendation)
// get plain text back from the model despite being asked for pure JSON.
// stripCodeFence removes any markdown code-fence wrapping before the
// parse attempt; a failed parse falls back to a deterministic
// single-item result so callers always get a well-shaped value.

func stripCodeFence(s string) string {
	s = strings.ReplaceAll(s, "```json\n", "")
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```\n", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

func parseSolve(content string) []SolvedProblem {
	var parsed struct {
		Problems []SolvedProblem `json:"problems"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &parsed); err == nil && len(parsed.Problems) > 0 {
		return parsed.Problems
	}
	return []SolvedProblem{{
		Problem:   "Analyzed content",
		Solution:  content,
		KeyPoints: "See the solution above for details.",
	}}
}

func parseWeaknesses(content string, wrongAnswers []WrongAnswerInput) []Weakness {
	var parsed struct {
		Weaknesses []Weakness `json:"weaknesses"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &parsed); err == nil && len(parsed.Weaknesses) > 0 {
		return parsed.Weaknesses
	}
	examples := make([]string, 0, 3)
	for i := 0; i < len(wrongAnswers) && i < 3; i++ {
		examples = append(examples, wrongAnswers[i].Question)
	}
	return []Weakness{{
		Category:   "General",
		ErrorCount: len(wrongAnswers),
		ErrorRate:  100,
		Examples:   examples,
	}}
}

func parseRecommendations(content string, weaknesses []Weakness) []RecommendedProblem {
	var parsed struct {
		Problems []RecommendedProblem `json:"problems"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &parsed); err == nil && len(parsed.Problems) > 0 {
		return parsed.Problems
	}
	category := "General"
	if len(weaknesses) > 0 {
		category = weaknesses[0].Category
	}
	return []RecommendedProblem{{
		Problem:     content,
		Category:    category,
		Difficulty:  "medium",
		Hint:        "Review the weak areas identified in your analysis.",
		Answer:      "See the problem statement.",
		Explanation: "The model returned free-form text; shown as a single problem.",
	}}
}
