package triage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"

	"github.com/JoshiAarya/ai-ticket-app/internal/config"
	"github.com/JoshiAarya/ai-ticket-app/pkg/metrics"
)

const systemPrompt = `You are an expert AI assistant that processes technical support tickets.

Your job is to:
1. Summarize the issue.
2. Estimate its priority.
3. Provide helpful notes and resource links for human moderators.
4. List relevant technical skills required.

IMPORTANT:
- Respond with *only* valid raw JSON.
- Do NOT include markdown, code fences, comments, or any extra formatting.
- The format must be a raw JSON object with the following structure:
{
  "summary": "Short summary of the ticket",
  "priority": "low|medium|high",
  "helpfulNotes": "Detailed technical explanation",
  "relatedSkills": ["skill1", "skill2"]
}`

// ErrNotConfigured is returned by Disabled.
var ErrNotConfigured = errors.New("ai provider is not configured")

// Classifier turns a ticket into a structured classification.
type Classifier interface {
	Classify(ctx context.Context, title, description string) (Result, error)
}

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

func NewOpenAIClient(cfg config.AIConfig, opts ...option.RequestOption) *OpenAIClient {
	base := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(1),
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		base = append(base, option.WithBaseURL(cfg.BaseURL))
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIClient{
		client:  openai.NewClient(append(base, opts...)...),
		model:   cfg.Model,
		timeout: timeout,
	}
}

func (c *OpenAIClient) Classify(ctx context.Context, title, description string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	prompt := fmt.Sprintf(`Analyze this support ticket and return ONLY a JSON object with no extra text:

Title: %s
Description: %s

Remember: Return ONLY the raw JSON object with no markdown, no code fences, no extra text.`, title, description)

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(0.2),
	})
	if err != nil {
		return Result{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, fmt.Errorf("%w: no choices in reply", ErrInvalidResponse)
	}
	return Parse(resp.Choices[0].Message.Content)
}

// Disabled is the classifier used when no provider key is configured.
type Disabled struct{}

func (Disabled) Classify(context.Context, string, string) (Result, error) {
	return Result{}, ErrNotConfigured
}

type Policy string

const (
	// PolicyFallback replaces any classification error with Fallback.
	PolicyFallback Policy = "fallback"
	// PolicyFail returns the error to the caller.
	PolicyFail Policy = "fail"
)

// Analyzer applies the failure policy on top of a Classifier.
type Analyzer struct {
	classifier Classifier
	policy     Policy
	log        zerolog.Logger
}

func NewAnalyzer(c Classifier, policy Policy, log zerolog.Logger) *Analyzer {
	if policy != PolicyFail {
		policy = PolicyFallback
	}
	return &Analyzer{classifier: c, policy: policy, log: log.With().Str("component", "triage").Logger()}
}

func (a *Analyzer) Analyze(ctx context.Context, title, description string) (Result, error) {
	res, err := a.classifier.Classify(ctx, title, description)
	if err == nil {
		return res, nil
	}
	if a.policy == PolicyFail {
		return Result{}, err
	}
	a.log.Warn().Err(err).Str("title", title).Msg("ai analysis failed, using fallback classification")
	metrics.TriageFallbacks.Inc()
	return Fallback(title), nil
}
