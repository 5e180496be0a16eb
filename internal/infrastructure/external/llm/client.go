// Package llm wraps an OpenAI-compatible chat endpoint such as a local
// llama.cpp or vLLM server.
package llm

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/turtacn/ChemSight/internal/config"
	"github.com/turtacn/ChemSight/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemSight/pkg/errors"
)

const (
	DefaultModel     = "local"
	DefaultMaxTokens = 256
	DefaultTimeout   = 30 * time.Second
)

// DefaultStop ends generation at the turn markers local chat templates emit.
var DefaultStop = []string{"</s>", "User:"}

// ErrDisabled is returned by a client built from a disabled config.
var ErrDisabled = errors.New(errors.ErrCodeAIModelNotAvailable, "llm endpoint is not configured")

// Client sends single-turn prompts to the model.
type Client struct {
	api         *openai.Client
	model       string
	maxTokens   int
	temperature float32
	stop        []string
	timeout     time.Duration
	logger      logging.Logger
}

// NewClient builds a client from cfg. A disabled config yields a client
// whose Complete returns ErrDisabled.
func NewClient(cfg config.LLMConfig, log logging.Logger) *Client {
	if log == nil {
		log = logging.NewNopLogger()
	}
	c := &Client{
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		stop:        cfg.Stop,
		timeout:     cfg.Timeout,
		logger:      log.Named("llm"),
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.maxTokens <= 0 {
		c.maxTokens = DefaultMaxTokens
	}
	if len(c.stop) == 0 {
		c.stop = DefaultStop
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if !cfg.Enabled || cfg.BaseURL == "" {
		return c
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	oc.HTTPClient = &http.Client{Timeout: c.timeout}
	c.api = openai.NewClientWithConfig(oc)
	return c
}

// Enabled reports whether an endpoint is configured.
func (c *Client) Enabled() bool { return c != nil && c.api != nil }

// Complete sends prompt as a single user message and returns the trimmed
// reply.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New(errors.ErrCodeAIInputInvalid, "prompt cannot be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		Stop:        c.stop,
	})
	if err != nil {
		return "", c.translate(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New(errors.ErrCodeAIInferenceFailed, "model returned no choices")
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	c.logger.Debug("completion finished",
		logging.Duration("duration", time.Since(start)),
		logging.Int("completion_tokens", resp.Usage.CompletionTokens))
	return out, nil
}

func (c *Client) translate(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return errors.Wrap(err, errors.ErrCodeTimeout, "llm request timed out")
	}
	var apiErr *openai.APIError
	if stderrors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests:
			return errors.Wrap(err, errors.ErrCodeTooManyRequests, "llm endpoint is throttling")
		case http.StatusBadRequest:
			return errors.Wrap(err, errors.ErrCodeAIInputInvalid, "llm rejected the prompt")
		}
	}
	c.logger.Warn("llm request failed", logging.Err(err))
	return errors.Wrap(err, errors.ErrCodeAIInferenceFailed, "llm request failed")
}
