package gen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/local/examprep/internal/config"
	"github.com/local/examprep/internal/metrics"
)

// Client invokes the LLM gateway, one named capability per call.
// Structured capabilities (quiz, fillBlank, multipleChoice, shortAnswer)
// use forced tool-calling so the response shape is enforced server-side;
// the free-form ones are parsed leniently. The client never retries:
// each call against the metered gateway is paid, so retry stays a caller
// decision.
type Client struct {
	api *openai.Client
	cfg config.GatewayConfig
	log zerolog.Logger
}

func NewClient(cfg config.GatewayConfig, log zerolog.Logger) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = cfg.BaseURL
	return &Client{api: openai.NewClientWithConfig(oc), cfg: cfg, log: log}
}

// Generate runs one capability. It returns the typed result or one of
// the errors in this package; *ValidationError means no remote call was
// made.
func (c *Client) Generate(ctx context.Context, cap Capability, req Request) (*Result, error) {
	if err := validate(cap, &req); err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := c.dispatch(ctx, cap, req)
	outcome := "ok"
	if err != nil {
		outcome = errorLabel(err)
	}
	metrics.ObserveGateway(string(cap), outcome, time.Since(start))

	if err != nil {
		c.log.Error().Err(err).Str("capability", string(cap)).Msg("generation failed")
		return nil, err
	}
	c.log.Info().Str("capability", string(cap)).
		Dur("took", time.Since(start)).Msg("generation complete")
	return res, nil
}

func (c *Client) dispatch(ctx context.Context, cap Capability, req Request) (*Result, error) {
	switch cap {
	case CapQuiz:
		return c.structured(ctx, cap, req, quizTool(req.Count),
			"You are an education content expert. Analyze the given text and produce true/false quiz questions and a summary.",
			fmt.Sprintf("From the following text:\n1. create %d true/false quiz questions\n2. summarize the key content in 3-5 sentences\n\nText:\n%s", req.Count, req.Text))
	case CapFillBlank:
		return c.structured(ctx, cap, req, fillBlankTool(req.Count),
			"You are an education content expert. Create fill-in-the-blank questions from the given text.",
			fmt.Sprintf("Create %d fill-in-the-blank questions from the following text. Mark each blank as _____.\n\nText:\n%s", req.Count, req.Text))
	case CapMultipleChoice:
		return c.structured(ctx, cap, req, multipleChoiceTool(req.Count),
			"You are an education content expert. Create multiple-choice questions with exactly four options each.",
			fmt.Sprintf("Create %d multiple-choice questions from the following text.\n\nText:\n%s", req.Count, req.Text))
	case CapShortAnswer:
		return c.structured(ctx, cap, req, shortAnswerTool(req.Count),
			"You are an education content expert. Create short-answer questions with model answers and key terms.",
			fmt.Sprintf("Create %d short-answer questions from the following text.\n\nText:\n%s", req.Count, req.Text))
	case CapSolve:
		return c.solve(ctx, req)
	case CapWeaknessAnalysis:
		return c.analyzeWeaknesses(ctx, req)
	case CapRecommendation:
		return c.recommend(ctx, req)
	}
	return nil, &ValidationError{Field: "capability", Reason: "unknown capability " + string(cap)}
}

func (c *Client) structured(ctx context.Context, cap Capability, req Request, tool openai.Tool, system, user string) (*Result, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Tools:      []openai.Tool{tool},
		ToolChoice: forceTool(tool.Function.Name),
	})
	if err != nil {
		return nil, c.mapError(cap, err)
	}
	args, err := toolArguments(cap, &resp)
	if err != nil {
		return nil, err
	}

	res := &Result{Capability: cap}
	switch cap {
	case CapQuiz:
		var out struct {
			Questions []TrueFalseQuestion `json:"questions"`
			Summary   string              `json:"summary"`
		}
		if err := json.Unmarshal(args, &out); err != nil {
			return nil, &ContractError{Capability: cap, Detail: "malformed tool arguments: " + err.Error()}
		}
		if len(out.Questions) != req.Count {
			return nil, countMismatch(cap, req.Count, len(out.Questions))
		}
		res.Quiz, res.Summary = out.Questions, out.Summary
	case CapFillBlank:
		var out struct {
			Questions []FillBlankQuestion `json:"questions"`
		}
		if err := json.Unmarshal(args, &out); err != nil {
			return nil, &ContractError{Capability: cap, Detail: "malformed tool arguments: " + err.Error()}
		}
		if len(out.Questions) != req.Count {
			return nil, countMismatch(cap, req.Count, len(out.Questions))
		}
		res.FillBlank = out.Questions
	case CapMultipleChoice:
		var out struct {
			Questions []MultipleChoiceQuestion `json:"questions"`
		}
		if err := json.Unmarshal(args, &out); err != nil {
			return nil, &ContractError{Capability: cap, Detail: "malformed tool arguments: " + err.Error()}
		}
		if len(out.Questions) != req.Count {
			return nil, countMismatch(cap, req.Count, len(out.Questions))
		}
		for i, q := range out.Questions {
			if len(q.Options) != 4 {
				return nil, &ContractError{Capability: cap, Detail: fmt.Sprintf("question %d has %d options, want 4", i, len(q.Options))}
			}
			if q.CorrectAnswer < 0 || q.CorrectAnswer > 3 {
				return nil, &ContractError{Capability: cap, Detail: fmt.Sprintf("question %d correctAnswer %d out of range", i, q.CorrectAnswer)}
			}
		}
		res.MultipleChoice = out.Questions
	case CapShortAnswer:
		var out struct {
			Questions []ShortAnswerQuestion `json:"questions"`
		}
		if err := json.Unmarshal(args, &out); err != nil {
			return nil, &ContractError{Capability: cap, Detail: "malformed tool arguments: " + err.Error()}
		}
		if len(out.Questions) != req.Count {
			return nil, countMismatch(cap, req.Count, len(out.Questions))
		}
		res.ShortAnswer = out.Questions
	}
	return res, nil
}

func (c *Client) solve(ctx context.Context, req Request) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.SolveTimeout)
	defer cancel()

	content, err := c.freeform(ctx, CapSolve, c.cfg.FastModel,
		"You are an AI tutor solving study problems. Find the problems in the provided text and give a detailed solution for each.\n\nCRITICAL: respond with pure JSON only, never wrapped in a markdown code block.\n\nThe response must follow this structure:\n{\"problems\": [{\"problem\": \"...\", \"solution\": \"...\", \"keyPoints\": \"...\"}]}\n\nUse Markdown inside the fields and LaTeX for math.",
		"Find and solve the problems in the following text:\n\n"+req.Text)
	if err != nil {
		return nil, err
	}
	return &Result{Capability: CapSolve, Problems: parseSolve(content)}, nil
}

func (c *Client) analyzeWeaknesses(ctx context.Context, req Request) (*Result, error) {
	var b strings.Builder
	for i, wa := range req.WrongAnswers {
		fmt.Fprintf(&b, "Question %d: %s (type: %s)\n", i+1, wa.Question, wa.QuestionType)
	}
	content, err := c.freeform(ctx, CapWeaknessAnalysis, c.cfg.Model,
		"You are an AI analyst of study data. Analyze the questions a student got wrong and identify weak areas.\n\nCRITICAL: respond with pure JSON only, never wrapped in a markdown code block.\n\nResponse format:\n{\"weaknesses\": [{\"category\": \"...\", \"errorCount\": n, \"errorRate\": n, \"examples\": [\"...\"]}]}\n\nSort by most-missed category and include 2-3 representative examples per category.",
		"Analyze the following wrong answers and identify the weaknesses:\n\n"+b.String())
	if err != nil {
		return nil, err
	}
	return &Result{Capability: CapWeaknessAnalysis, Weaknesses: parseWeaknesses(content, req.WrongAnswers)}, nil
}

func (c *Client) recommend(ctx context.Context, req Request) (*Result, error) {
	var b strings.Builder
	for _, w := range req.Weaknesses {
		fmt.Fprintf(&b, "- %s (error rate: %.1f%%)\n", w.Category, w.ErrorRate)
	}
	source := req.Text
	if len(source) > 3000 {
		source = source[:3000]
	}
	content, err := c.freeform(ctx, CapRecommendation, c.cfg.Model,
		"You are an AI tutor generating practice problems. Based on the student's weakness analysis, create targeted problems drawn from the provided source text.\n\nCRITICAL: respond with pure JSON only, never wrapped in a markdown code block.\n\nResponse format:\n{\"problems\": [{\"problem\": \"...\", \"category\": \"...\", \"difficulty\": \"...\", \"hint\": \"...\", \"answer\": \"...\", \"explanation\": \"...\"}]}\n\nGenerate 2-3 problems per weak category, 5-8 in total, with hints and full solutions.",
		fmt.Sprintf("Student weaknesses:\n%s\nSource text:\n%s\n\nGenerate problems that address these weaknesses.", b.String(), source))
	if err != nil {
		return nil, err
	}
	return &Result{Capability: CapRecommendation, Recommended: parseRecommendations(content, req.Weaknesses)}, nil
}

func (c *Client) freeform(ctx context.Context, cap Capability, model, system, user string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", c.mapError(cap, err)
	}
	if len(resp.Choices) == 0 {
		return "", &ContractError{Capability: cap, Detail: "response has no choices"}
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) mapError(cap Capability, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		if cap == CapSolve {
			return &TimeoutError{Capability: cap}
		}
		return &UpstreamError{Capability: cap, Status: 0, Message: "request deadline exceeded"}
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 429:
			return &RateLimitError{Capability: cap}
		case 402:
			return &QuotaError{Capability: cap}
		}
		return &UpstreamError{Capability: cap, Status: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		switch reqErr.HTTPStatusCode {
		case 429:
			return &RateLimitError{Capability: cap}
		case 402:
			return &QuotaError{Capability: cap}
		}
		return &UpstreamError{Capability: cap, Status: reqErr.HTTPStatusCode, Message: reqErr.Error()}
	}
	return &UpstreamError{Capability: cap, Status: 0, Message: err.Error()}
}

func toolArguments(cap Capability, resp *openai.ChatCompletionResponse) (json.RawMessage, error) {
	if len(resp.Choices) == 0 || len(resp.Choices[0].Message.ToolCalls) == 0 {
		return nil, &ContractError{Capability: cap, Detail: "response carries no tool call"}
	}
	return json.RawMessage(resp.Choices[0].Message.ToolCalls[0].Function.Arguments), nil
}

func countMismatch(cap Capability, want, got int) error {
	return &ContractError{Capability: cap, Detail: fmt.Sprintf("expected %d items, got %d", want, got)}
}

func errorLabel(err error) string {
	switch err.(type) {
	case *RateLimitError:
		return "rate_limited"
	case *QuotaError:
		return "quota"
	case *ContractError:
		return "contract"
	case *TimeoutError:
		return "timeout"
	default:
		return "error"
	}
}
