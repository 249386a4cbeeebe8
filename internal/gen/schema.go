package gen

import (
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Tool schemas for the structured capabilities. Parameters are built as
// raw maps because the gateway honors minItems/maxItems on the question
// array, which pins the response to exactly the requested count.

func str(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func questionArray(count int, item map[string]any, required []string) map[string]any {
	return map[string]any{
		"type": "array",
		"items": map[string]any{
			"type":                 "object",
			"properties":           item,
			"required":             required,
			"additionalProperties": false,
		},
		"minItems": count,
		"maxItems": count,
	}
}

func toolFor(name, desc string, props map[string]any, required []string) openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        name,
			Description: desc,
			Parameters: map[string]any{
				"type":                 "object",
				"properties":           props,
				"required":             required,
				"additionalProperties": false,
			},
		},
	}
}

func forceTool(name string) openai.ToolChoice {
	return openai.ToolChoice{
		Type:     openai.ToolTypeFunction,
		Function: openai.ToolFunction{Name: name},
	}
}

func quizTool(count int) openai.Tool {
	return toolFor("generate_quiz_and_summary", "Generate true/false questions and a summary",
		map[string]any{
			"questions": questionArray(count, map[string]any{
				"question":    str("true/false statement"),
				"answer":      map[string]any{"type": "boolean", "description": "correct answer"},
				"explanation": str("why the answer is correct"),
			}, []string{"question", "answer", "explanation"}),
			"summary": str("3-5 sentence summary of the key content"),
		},
		[]string{"questions", "summary"})
}

func fillBlankTool(count int) openai.Tool {
	return toolFor("generate_fill_blanks", "Generate fill-in-the-blank questions",
		map[string]any{
			"questions": questionArray(count, map[string]any{
				"question": str("sentence with the blank marked as _____"),
				"answer":   str("the word or phrase that fills the blank"),
				"hint":     str("a hint toward the answer"),
			}, []string{"question", "answer", "hint"}),
		},
		[]string{"questions"})
}

func multipleChoiceTool(count int) openai.Tool {
	return toolFor("generate_multiple_choice", "Generate multiple-choice questions",
		map[string]any{
			"questions": questionArray(count, map[string]any{
				"question": str("question body (Markdown, LaTeX supported)"),
				"options": map[string]any{
					"type":        "array",
					"description": "exactly four answer options",
					"items":       map[string]any{"type": "string"},
					"minItems":    4,
					"maxItems":    4,
				},
				"correctAnswer": map[string]any{"type": "number", "description": "index of the correct option (0-3)"},
				"explanation":   str("detailed explanation of the correct answer"),
			}, []string{"question", "options", "correctAnswer", "explanation"}),
		},
		[]string{"questions"})
}

func shortAnswerTool(count int) openai.Tool {
	return toolFor("generate_short_answer", fmt.Sprintf("Generate %d short-answer questions", count),
		map[string]any{
			"questions": questionArray(count, map[string]any{
				"question":    str("question body (Markdown)"),
				"answer":      str("model answer (Markdown)"),
				"keywords":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "3-5 key terms"},
				"explanation": str("answer explanation (Markdown)"),
			}, []string{"question", "answer", "keywords", "explanation"}),
		},
		[]string{"questions"})
}
