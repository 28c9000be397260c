package arbiter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

var ErrUnavailable = errors.New("arbitration unavailable")

type Decision int

const (
	NoDecision Decision = iota
	FavorA
	FavorB
)

func (d Decision) String() string {
	switch d {
	case FavorA:
		return "A"
	case FavorB:
		return "B"
	default:
		return "none"
	}
}

// Judge compares two ability descriptions. Implementations must return
// NoDecision together with a non-nil error whenever they cannot decide.
type Judge interface {
	Judge(ctx context.Context, a, b string) (Decision, error)
}

// Disabled is used when no credentials are configured.
type Disabled struct{}

func (Disabled) Judge(context.Context, string, string) (Decision, error) {
	return NoDecision, ErrUnavailable
}

type Config struct {
	// URL is the API base, e.g. https://api.openai.com/v1. Empty means OpenAI.
	URL     string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client asks an OpenAI-compatible chat completions endpoint for a verdict.
type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
}

func New(cfg Config) Judge {
	if cfg.APIKey == "" {
		return Disabled{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.URL != "" {
		oc.BaseURL = strings.TrimSuffix(cfg.URL, "/")
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Client{api: openai.NewClientWithConfig(oc), model: cfg.Model, timeout: cfg.Timeout}
}

const systemPrompt = "You judge battles between two elemental abilities. " +
	"Reply with exactly one letter: A or B."

func prompt(a, b string) string {
	return fmt.Sprintf("Ability A: %s\nAbility B: %s\nWhich ability wins, A or B?", a, b)
}

func (c *Client) Judge(ctx context.Context, a, b string) (Decision, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt(a, b)},
		},
		MaxTokens:   1,
		Temperature: 0,
	})
	if err != nil {
		return NoDecision, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return NoDecision, fmt.Errorf("%w: empty response", ErrUnavailable)
	}
	return parseChoice(resp.Choices[0].Message.Content)
}

// parseChoice accepts only the bare tokens "A" and "B".
func parseChoice(s string) (Decision, error) {
	switch strings.TrimSpace(s) {
	case "A":
		return FavorA, nil
	case "B":
		return FavorB, nil
	default:
		return NoDecision, fmt.Errorf("%w: unexpected answer %q", ErrUnavailable, s)
	}
}
