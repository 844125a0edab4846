// Package bedrock implements oracle.Estimator on the Amazon Bedrock Converse API.
package bedrock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"vidasync"
	"vidasync/oracle"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

const (
	// defaultModelID is an inference profile ID, not the foundation model's ID.
	// See https://docs.aws.amazon.com/bedrock/latest/userguide/inference-profiles.html.
	defaultModelID = "us.anthropic.claude-3-7-sonnet-20250219-v1:0"

	// A batch of five ingredients answers in well under 1k tokens.
	defaultMaxTokens = 1024

	// Low temperature and top_p keep the structured answer stable between calls.
	defaultTemperature = 0.2
	defaultTopP        = 0.9
)

var (
	errMaxTokens = errors.New("model hit MaxTokens limit")
	errFiltered  = errors.New("model response blocked by Bedrock safety filters")
)

type bedrockRuntimeClient interface {
	Converse(context.Context, *bedrockruntime.ConverseInput, ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

type Options struct {
	ModelID     string
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

// Client asks a Bedrock-hosted model for nutrition estimates.
type Client struct {
	brc  bedrockRuntimeClient
	opts Options
}

func NewClient(brc bedrockRuntimeClient, opts Options) *Client {
	if opts.ModelID == "" {
		opts.ModelID = defaultModelID
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.Temperature == 0 {
		opts.Temperature = defaultTemperature
	}
	if opts.TopP == 0 {
		opts.TopP = defaultTopP
	}
	return &Client{
		brc:  brc,
		opts: opts,
	}
}

// Classify forces the model to answer through the report_ingredients tool. A plain text answer
// is still accepted when it holds the JSON array.
func (c *Client) Classify(ctx context.Context, phrases []string) ([]oracle.Classification, error) {
	slog.Info("BEDROCK: Classify invoked", "phrases", len(phrases), "model", c.opts.ModelID)

	spec, err := toolSpec()
	if err != nil {
		return nil, err
	}

	out, err := c.converse(ctx, oracle.ToolPrompt, oracle.UserMessage(phrases), &types.ToolConfiguration{
		Tools: []types.Tool{&types.ToolMemberToolSpec{Value: spec}},
		ToolChoice: &types.ToolChoiceMemberTool{
			Value: types.SpecificToolChoice{Name: aws.String(oracle.ToolName)},
		},
	})
	if err != nil {
		return nil, err
	}

	if input, ok := toolInputFromOutput(out, oracle.ToolName); ok {
		raw, err := input.MarshalSmithyDocument()
		if err != nil {
			return nil, &oracle.ParseError{Reason: "read tool input", Err: err}
		}
		return oracle.DecodeClassifications(raw, len(phrases))
	}

	text := textFromOutput(out)
	slog.Warn("BEDROCK: Model answered without the tool; parsing text", "text_len", len(text))
	return oracle.ParseClassifications(text, len(phrases))
}

// EstimateTotals runs the legacy line-format prompt for a single phrase.
func (c *Client) EstimateTotals(ctx context.Context, phrase string) (vidasync.Macros, error) {
	slog.Info("BEDROCK: EstimateTotals invoked", "phrase", phrase)

	out, err := c.converse(ctx, oracle.LegacySystemPrompt, phrase, nil)
	if err != nil {
		return vidasync.Macros{}, err
	}
	return oracle.ParseTotals(textFromOutput(out))
}

func (c *Client) converse(ctx context.Context, system, user string, tools *types.ToolConfiguration) (*bedrockruntime.ConverseOutput, error) {
	in := &bedrockruntime.ConverseInput{
		ModelId: aws.String(c.opts.ModelID),
		System:  []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: system}},
		Messages: []types.Message{{
			Role:    types.ConversationRoleUser,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: user}},
		}},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(c.opts.MaxTokens),
			Temperature: aws.Float32(c.opts.Temperature),
			TopP:        aws.Float32(c.opts.TopP),
		},
		ToolConfig: tools,
	}

	out, err := c.brc.Converse(ctx, in)
	if err != nil {
		slog.Error("BEDROCK: Converse failed", "error", err, "model", c.opts.ModelID)
		return nil, fmt.Errorf("bedrock converse: %w", err)
	}

	var latency int64
	if out.Metrics != nil {
		latency = aws.ToInt64(out.Metrics.LatencyMs)
	}
	var inTokens, outTokens int32
	if out.Usage != nil {
		inTokens = aws.ToInt32(out.Usage.InputTokens)
		outTokens = aws.ToInt32(out.Usage.OutputTokens)
	}
	slog.Info("BEDROCK: Converse succeeded",
		"stop_reason", out.StopReason,
		"latency_ms", latency,
		"input_tokens", inTokens,
		"output_tokens", outTokens,
	)

	switch out.StopReason {
	case types.StopReasonMaxTokens:
		slog.Warn("BEDROCK: Model hit MaxTokens limit; consider a smaller batch or a larger limit")
		return nil, errMaxTokens
	case types.StopReasonGuardrailIntervened, types.StopReasonContentFiltered:
		slog.Warn("BEDROCK: Model response blocked by safety filters")
		return nil, errFiltered
	}
	return out, nil
}

func toolSpec() (types.ToolSpecification, error) {
	schema, err := oracle.SchemaMap()
	if err != nil {
		return types.ToolSpecification{}, err
	}
	return types.ToolSpecification{
		Name:        aws.String(oracle.ToolName),
		Description: aws.String("Report calories, macros and food validity for every listed ingredient."),
		InputSchema: &types.ToolInputSchemaMemberJson{
			Value: document.NewLazyDocument(schema),
		},
	}, nil
}

// toolInputFromOutput returns the input of the first tool use with the given name.
func toolInputFromOutput(out *bedrockruntime.ConverseOutput, name string) (document.Interface, bool) {
	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok || msg == nil {
		return nil, false
	}
	for _, cb := range msg.Value.Content {
		tu, ok := cb.(*types.ContentBlockMemberToolUse)
		if !ok || tu == nil || tu.Value.Input == nil {
			continue
		}
		if aws.ToString(tu.Value.Name) == name {
			return tu.Value.Input, true
		}
	}
	return nil, false
}

// textFromOutput joins the assistant's text blocks with '\n'.
func textFromOutput(out *bedrockruntime.ConverseOutput) string {
	if out == nil || out.Output == nil {
		return ""
	}
	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok || msg == nil {
		return ""
	}

	var texts []string
	for _, cb := range msg.Value.Content {
		if t, ok := cb.(*types.ContentBlockMemberText); ok && t != nil && t.Value != "" {
			texts = append(texts, t.Value)
		}
	}
	return strings.Join(texts, "\n")
}
