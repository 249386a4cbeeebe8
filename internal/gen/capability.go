package gen

// Capability names one remote generation operation.
type Capability string

const (
	CapQuiz             Capability = "quiz"
	CapFillBlank        Capability = "fillBlank"
	CapMultipleChoice   Capability = "multipleChoice"
	CapShortAnswer      Capability = "shortAnswer"
	CapSolve            Capability = "solve"
	CapWeaknessAnalysis Capability = "weaknessAnalysis"
	CapRecommendation   Capability = "recommendation"
)

var allowedCounts = map[int]bool{5: true, 10: true, 15: true}

// countedCapabilities take a questionCount and enforce an exact-count
// response contract.
var countedCapabilities = map[Capability]bool{
	CapQuiz:           true,
	CapFillBlank:      true,
	CapMultipleChoice: true,
	CapShortAnswer:    true,
}

// Request carries the capability-specific inputs. Text is the source
// document text (doubles as the pdfText input for recommendation).
type Request struct {
	Text         string             `json:"text,omitempty"`
	Count        int                `json:"questionCount,omitempty"`
	WrongAnswers []WrongAnswerInput `json:"wrongAnswers,omitempty"`
	Weaknesses   []Weakness         `json:"weaknesses,omitempty"`
}

// WrongAnswerInput is one historical wrong answer fed to weakness analysis.
type WrongAnswerInput struct {
	Question     string `json:"question"`
	QuestionType string `json:"question_type"`
}

type TrueFalseQuestion struct {
	Question    string `json:"question"`
	Answer      bool   `json:"answer"`
	Explanation string `json:"explanation"`
}

type FillBlankQuestion struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Hint     string `json:"hint"`
}

type MultipleChoiceQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Explanation   string   `json:"explanation"`
}

type ShortAnswerQuestion struct {
	Question    string   `json:"question"`
	Answer      string   `json:"answer"`
	Keywords    []string `json:"keywords"`
	Explanation string   `json:"explanation"`
}

type SolvedProblem struct {
	Problem   string `json:"problem"`
	Solution  string `json:"solution"`
	KeyPoints string `json:"keyPoints"`
}

type Weakness struct {
	Category   string   `json:"category"`
	ErrorCount int      `json:"errorCount"`
	ErrorRate  float64  `json:"errorRate"`
	Examples   []string `json:"examples"`
}

type RecommendedProblem struct {
	Problem     string `json:"problem"`
	Category    string `json:"category"`
	Difficulty  string `json:"difficulty"`
	Hint        string `json:"hint"`
	Answer      string `json:"answer"`
	Explanation string `json:"explanation"`
}

// Result is a tagged union keyed by Capability; exactly one of the
// variant fields is populated.
type Result struct {
	Capability Capability `json:"capability"`

	Quiz           []TrueFalseQuestion      `json:"quiz,omitempty"`
	Summary        string                   `json:"summary,omitempty"`
	FillBlank      []FillBlankQuestion      `json:"fillBlank,omitempty"`
	MultipleChoice []MultipleChoiceQuestion `json:"multipleChoice,omitempty"`
	ShortAnswer    []ShortAnswerQuestion    `json:"shortAnswer,omitempty"`
	Problems       []SolvedProblem          `json:"problems,omitempty"`
	Weaknesses     []Weakness               `json:"weaknesses,omitempty"`
	Recommended    []RecommendedProblem     `json:"recommended,omitempty"`
}

// validate enforces the per-capability preconditions. Failures never
// reach the remote gateway.
func validate(cap Capability, req *Request) error {
	switch cap {
	case CapQuiz, CapFillBlank, CapMultipleChoice, CapShortAnswer:
		if req.Text == "" {
			return &ValidationError{Field: "text", Reason: "source text is required"}
		}
		if req.Count == 0 {
			req.Count = 5
		}
		if !allowedCounts[req.Count] {
			return &ValidationError{Field: "questionCount", Reason: "must be 5, 10 or 15"}
		}
	case CapSolve:
		if req.Text == "" {
			return &ValidationError{Field: "text", Reason: "source text is required"}
		}
	case CapWeaknessAnalysis:
		if len(req.WrongAnswers) == 0 {
			return &ValidationError{Field: "wrongAnswers", Reason: "at least one wrong answer is required"}
		}
	case CapRecommendation:
		if len(req.Weaknesses) == 0 {
			return &ValidationError{Field: "weaknesses", Reason: "weakness data is required"}
		}
		if req.Text == "" {
			return &ValidationError{Field: "text", Reason: "source text is required"}
		}
	default:
		return &ValidationError{Field: "capability", Reason: "unknown capability " + string(cap)}
	}
	return nil
}
