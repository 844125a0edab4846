// Package openai implements oracle.Estimator with OpenAI chat completions.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"vidasync"
	"vidasync/oracle"

	goopenai "github.com/sashabaranov/go-openai"
)

const (
	defaultModel       = goopenai.GPT4oMini
	defaultTemperature = 0.2
	defaultMaxTokens   = 1024
)

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error)
}

type Options struct {
	ModelID     string
	MaxTokens   int
	Temperature float32
}

type Client struct {
	cc   chatClient
	opts Options
}

// NewClient builds a client for the OpenAI API, or any compatible endpoint when baseURL is set.
func NewClient(apiKey, baseURL string, opts Options) *Client {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return newClient(goopenai.NewClientWithConfig(cfg), opts)
}

func newClient(cc chatClient, opts Options) *Client {
	if opts.ModelID == "" {
		opts.ModelID = defaultModel
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.Temperature == 0 {
		opts.Temperature = defaultTemperature
	}
	return &Client{cc: cc, opts: opts}
}

// Classify requests a json_schema response format so the reply is the classification object.
func (c *Client) Classify(ctx context.Context, phrases []string) ([]oracle.Classification, error) {
	slog.Info("OPENAI: Classify invoked", "phrases", len(phrases), "model", c.opts.ModelID)

	schema, err := json.Marshal(oracle.ClassificationSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal classification schema: %w", err)
	}

	content, err := c.complete(ctx, oracle.SystemPrompt, oracle.UserMessage(phrases), &goopenai.ChatCompletionResponseFormat{
		Type: goopenai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &goopenai.ChatCompletionResponseFormatJSONSchema{
			Name:   oracle.ToolName,
			Schema: json.RawMessage(schema),
		},
	})
	if err != nil {
		return nil, err
	}
	return oracle.ParseClassifications(content, len(phrases))
}

func (c *Client) EstimateTotals(ctx context.Context, phrase string) (vidasync.Macros, error) {
	slog.Info("OPENAI: EstimateTotals invoked", "phrase", phrase)

	content, err := c.complete(ctx, oracle.LegacySystemPrompt, phrase, nil)
	if err != nil {
		return vidasync.Macros{}, err
	}
	return oracle.ParseTotals(content)
}

func (c *Client) complete(ctx context.Context, system, user string, format *goopenai.ChatCompletionResponseFormat) (string, error) {
	resp, err := c.cc.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: c.opts.ModelID,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: system},
			{Role: goopenai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens:      c.opts.MaxTokens,
		Temperature:    c.opts.Temperature,
		ResponseFormat: format,
	})
	if err != nil {
		slog.Error("OPENAI: Chat completion failed", "error", err, "model", c.opts.ModelID)
		return "", fmt.Errorf("openai chat completion: %w", err)
	}

	slog.Info("OPENAI: Chat completion succeeded",
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)

	if len(resp.Choices) == 0 {
		return "", &oracle.ParseError{Reason: "no choices in completion"}
	}
	choice := resp.Choices[0]
	if choice.FinishReason == goopenai.FinishReasonLength {
		return "", fmt.Errorf("completion truncated at %d tokens", c.opts.MaxTokens)
	}
	return choice.Message.Content, nil
}
