package bedrock

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"docscan-backend/internal/llm"
	"docscan-backend/internal/shared/telemetry"
)

const defaultMaxTokens = 4096

type converseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Client implements llm.Completer with the Bedrock Converse API.
type Client struct {
	api       converseAPI
	modelID   string
	maxTokens int32
}

// New builds a Bedrock client for modelID.
func New(cfg aws.Config, modelID string) (*Client, error) {
	if strings.TrimSpace(modelID) == "" {
		return nil, fmt.Errorf("LLM_MODEL is required for Bedrock")
	}
	return &Client{api: bedrockruntime.NewFromConfig(cfg), modelID: modelID, maxTokens: defaultMaxTokens}, nil
}

// Complete sends one user turn. Bedrock has no JSON mode; callers parse the
// object out of the text.
func (c *Client) Complete(ctx context.Context, in llm.Request) (llm.Response, error) {
	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(c.modelID),
		Messages: []types.Message{{
			Role:    types.ConversationRoleUser,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: in.Prompt}},
		}},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(c.maxTokens),
			Temperature: aws.Float32(0),
		},
	}
	if strings.TrimSpace(in.System) != "" {
		input.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: in.System}}
	}

	out, err := c.api.Converse(ctx, input)
	if err != nil {
		return llm.Response{}, fmt.Errorf("bedrock converse model=%s: %w", c.modelID, err)
	}
	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return llm.Response{}, fmt.Errorf("bedrock converse model=%s: response has no message", c.modelID)
	}

	var b strings.Builder
	for _, block := range msg.Value.Content {
		if text, ok := block.(*types.ContentBlockMemberText); ok {
			b.WriteString(text.Value)
		}
	}
	resp := llm.Response{Text: strings.TrimSpace(b.String()), Model: c.modelID}
	if out.Usage != nil {
		resp.InputTokens = int(aws.ToInt32(out.Usage.InputTokens))
		resp.OutputTokens = int(aws.ToInt32(out.Usage.OutputTokens))
	}
	telemetry.Info("llm.response", map[string]any{
		"provider":      "bedrock",
		"model":         c.modelID,
		"stop_reason":   string(out.StopReason),
		"input_tokens":  resp.InputTokens,
		"output_tokens": resp.OutputTokens,
	})
	return resp, nil
}

var _ llm.Completer = (*Client)(nil)
