package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// defaultMaxTokens caps completions when a request does not set MaxTokens.
const defaultMaxTokens = 4096

// MessagesClient captures the subset of the Anthropic SDK used here. It is
// satisfied by *sdk.MessageService so tests can substitute a mock.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// AnthropicClient implements Client on top of Anthropic Claude Messages.
type AnthropicClient struct {
	msg   MessagesClient
	model string
}

// NewAnthropic builds a client from a raw messages client and model id.
func NewAnthropic(msg MessagesClient, model string) (*AnthropicClient, error) {
	if msg == nil {
		return nil, errors.New("anthropic messages client is required")
	}
	if model == "" {
		return nil, errors.New("model identifier is required")
	}
	return &AnthropicClient{msg: msg, model: model}, nil
}

// NewAnthropicFromAPIKey constructs a client using the default Anthropic
// HTTP client.
func NewAnthropicFromAPIKey(apiKey, model string) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	ac := sdk.NewClient(option.WithAPIKey(apiKey))
	return NewAnthropic(&ac.Messages, model)
}

// Chat issues one non-streaming Messages.New request.
func (c *AnthropicClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	params, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	msg, err := c.msg.New(ctx, *params)
	if err != nil {
		return nil, fmt.Errorf("anthropic messages.new: %w", err)
	}
	return translateResponse(msg)
}

func (c *AnthropicClient) prepareRequest(req *ChatRequest) (*sdk.MessageNewParams, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, errors.New("anthropic: messages are required")
	}

	msgs, err := encodeMessages(req.Messages)
	if err != nil {
		return nil, err
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := sdk.MessageNewParams{
		MaxTokens: int64(maxTokens),
		Messages:  msgs,
		Model:     sdk.Model(c.model),
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		tools, err := encodeTools(req.Tools)
		if err != nil {
			return nil, err
		}
		params.Tools = tools
	}
	return &params, nil
}

func encodeMessages(msgs []Message) ([]sdk.MessageParam, error) {
	conversation := make([]sdk.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		blocks := make([]sdk.ContentBlockParamUnion, 0, 1+len(m.ToolCalls)+len(m.ToolResults))
		if m.Text != "" {
			blocks = append(blocks, sdk.NewTextBlock(m.Text))
		}
		for _, call := range m.ToolCalls {
			blocks = append(blocks, sdk.NewToolUseBlock(call.ID, call.Input, call.Name))
		}
		for _, result := range m.ToolResults {
			blocks = append(blocks, sdk.NewToolResultBlock(result.ToolCallID, result.Content, result.IsError))
		}
		if len(blocks) == 0 {
			continue
		}
		switch m.Role {
		case RoleUser:
			conversation = append(conversation, sdk.NewUserMessage(blocks...))
		case RoleAssistant:
			conversation = append(conversation, sdk.NewAssistantMessage(blocks...))
		default:
			return nil, fmt.Errorf("anthropic: unsupported message role %q", m.Role)
		}
	}
	if len(conversation) == 0 {
		return nil, errors.New("anthropic: at least one user/assistant message is required")
	}
	return conversation, nil
}

func encodeTools(tools []Tool) ([]sdk.ToolUnionParam, error) {
	toolList := make([]sdk.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		if tool.Name == "" {
			return nil, errors.New("anthropic: tool is missing name")
		}
		if tool.Description == "" {
			return nil, fmt.Errorf("anthropic: tool %q is missing description", tool.Name)
		}
		schema := sdk.ToolInputSchemaParam{}
		if len(tool.InputSchema) > 0 {
			schema.ExtraFields = tool.InputSchema
		}
		u := sdk.ToolUnionParamOfTool(schema, tool.Name)
		if u.OfTool != nil {
			u.OfTool.Description = sdk.String(tool.Description)
		}
		toolList = append(toolList, u)
	}
	return toolList, nil
}

func translateResponse(msg *sdk.Message) (*ChatResponse, error) {
	if msg == nil {
		return nil, errors.New("anthropic: response message is nil")
	}
	resp := &ChatResponse{StopReason: string(msg.StopReason)}

	var text strings.Builder
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			if block.Text == "" {
				continue
			}
			if text.Len() > 0 {
				text.WriteString("\n")
			}
			text.WriteString(block.Text)
		case "tool_use":
			var input map[string]any
			if len(block.Input) > 0 {
				if err := json.Unmarshal(block.Input, &input); err != nil {
					input = map[string]any{"_raw": string(block.Input)}
				}
			}
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{
				ID:    block.ID,
				Name:  block.Name,
				Input: input,
			})
		}
	}
	resp.Text = text.String()
	resp.Usage = Usage{
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
	}
	return resp, nil
}
