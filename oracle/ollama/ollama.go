// Package ollama implements oracle.Estimator against a local Ollama server's /api/chat endpoint.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"vidasync"
	"vidasync/oracle"
)

const defaultModel = "llama3.2"

type options struct {
	Temperature   float64 `json:"temperature,omitempty"`
	TopP          float64 `json:"top_p,omitempty"`
	RepeatPenalty float64 `json:"repeat_penalty,omitempty"`
	NumCtx        int     `json:"num_ctx,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
	// Format is a JSON schema that constrains the reply; omitted for the legacy prompt.
	Format  map[string]any `json:"format,omitempty"`
	Stream  bool           `json:"stream"`
	Options options        `json:"options,omitempty"`
}

type wireResponse struct {
	Message message `json:"message"`
}

type Client struct {
	endpoint   string
	model      string
	httpClient vidasync.HTTPClient
	options    options
}

type ClientOpts struct {
	BaseEndpoint string
	ModelID      string
	HTTPClient   vidasync.HTTPClient
}

func NewClient(opts ClientOpts) (*Client, error) {
	if strings.TrimSpace(opts.BaseEndpoint) == "" {
		return nil, fmt.Errorf("ollama base endpoint is required")
	}
	if opts.ModelID == "" {
		opts.ModelID = defaultModel
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Client{
		model:      opts.ModelID,
		httpClient: opts.HTTPClient,
		endpoint:   strings.TrimRight(opts.BaseEndpoint, "/") + "/api/chat",
		options: options{
			Temperature:   0.2,
			TopP:          0.9,
			RepeatPenalty: 1.05,
			NumCtx:        8192,
		},
	}, nil
}

// Classify asks for structured output constrained by the classification schema.
func (c *Client) Classify(ctx context.Context, phrases []string) ([]oracle.Classification, error) {
	slog.Info("OLLAMA: Classify invoked", "phrases", len(phrases), "model", c.model)

	schema, err := oracle.SchemaMap()
	if err != nil {
		return nil, err
	}

	content, err := c.chat(ctx, oracle.SystemPrompt, oracle.UserMessage(phrases), schema)
	if err != nil {
		return nil, err
	}
	return oracle.ParseClassifications(content, len(phrases))
}

func (c *Client) EstimateTotals(ctx context.Context, phrase string) (vidasync.Macros, error) {
	slog.Info("OLLAMA: EstimateTotals invoked", "phrase", phrase)

	content, err := c.chat(ctx, oracle.LegacySystemPrompt, phrase, nil)
	if err != nil {
		return vidasync.Macros{}, err
	}
	return oracle.ParseTotals(content)
}

func (c *Client) chat(ctx context.Context, system, user string, format map[string]any) (string, error) {
	reqBytes, err := json.Marshal(wireRequest{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Format:  format,
		Stream:  false,
		Options: c.options,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(reqBytes))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read ollama response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama chat: %s: %s", resp.Status, string(body))
	}

	var wr wireResponse
	if err := json.Unmarshal(body, &wr); err != nil {
		return "", &oracle.ParseError{Reason: "decode ollama envelope", Err: err}
	}
	return wr.Message.Content, nil
}
