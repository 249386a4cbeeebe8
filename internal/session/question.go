package session

import "strings"

// QuestionType tags the variant held in a session slot. The values
// double as the question_type stored with wrong-answer records.
type QuestionType string

const (
	TypeTrueFalse      QuestionType = "ox"
	TypeFillBlank      QuestionType = "fill_blank"
	TypeMultipleChoice QuestionType = "multiple_choice"
	TypeShortAnswer    QuestionType = "short_answer"
)

// fillBlankMatches applies the grading rule for fill-in-the-blank:
// case-insensitive equality after trimming surrounding whitespace.
func fillBlankMatches(user, answer string) bool {
	return strings.EqualFold(strings.TrimSpace(user), strings.TrimSpace(answer))
}
