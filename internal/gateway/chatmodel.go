package gateway

import (
	"context"
	"errors"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// GenParams fixes the generation parameters one chat model instance uses.
// Each pipeline stage gets its own instance with its own budget.
type GenParams struct {
	Model       string
	MaxTokens   int
	Temperature float32
}

// ChatModel adapts the gateway's text generation to eino's chat model
// contract so services keep composing prompt chains the usual way. A soft
// provider failure surfaces as an empty assistant message, not an error;
// stages apply their own policy fallback on empty content.
type ChatModel struct {
	gw     Gateway
	params GenParams
}

var _ model.BaseChatModel = (*ChatModel)(nil)

// NewChatModel wraps the gateway with fixed generation parameters.
func NewChatModel(gw Gateway, params GenParams) *ChatModel {
	return &ChatModel{gw: gw, params: params}
}

// Generate flattens the templated messages into one provider prompt.
func (m *ChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	prompt := flattenMessages(input)
	if prompt == "" {
		return nil, errors.New("chat input produced an empty prompt")
	}

	text := m.gw.GenerateText(ctx, prompt, m.params.MaxTokens, m.params.Temperature, m.params.Model)
	return schema.AssistantMessage(text, nil), nil
}

// Stream satisfies the chat model contract with a single-chunk stream.
func (m *ChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// The provider consumes one text blob per call; roles live inside the
// prompt text itself, so messages join in order.
func flattenMessages(input []*schema.Message) string {
	var b strings.Builder
	for _, msg := range input {
		if msg == nil {
			continue
		}
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(content)
	}
	return b.String()
}
