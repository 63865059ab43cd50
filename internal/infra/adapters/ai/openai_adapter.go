package ai

import (
	"context"
	"errors"

	"market-ai-pipeline/internal/domain/ports/adapter"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.CompletionAdapter = (*OpenAIAdapter)(nil)

// OpenAIAdapter implements the completion port on the Chat Completions API.
type OpenAIAdapter struct {
	client openai.Client
	maxOut int
}

func NewOpenAIAdapter(apiKey string, maxOutputTokens int) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	return &OpenAIAdapter{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		maxOut: maxOutputTokens,
	}, nil
}

func (o *OpenAIAdapter) Complete(ctx context.Context, model, prompt, systemContext string) (string, adapter.Usage, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if systemContext != "" {
		msgs = append(msgs, openai.SystemMessage(systemContext))
	}
	msgs = append(msgs, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: msgs,
	}
	if o.maxOut > 0 {
		params.MaxTokens = openai.Int(int64(o.maxOut))
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", adapter.Usage{}, err
	}

	usage := adapter.Usage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
	for _, c := range resp.Choices {
		if c.Message.Content != "" {
			return c.Message.Content, usage, nil
		}
	}
	return "", usage, errors.New("openai: no choice content")
}

func (o *OpenAIAdapter) CountTokens(model, text string) (int, error) {
	return estimateTokens(model, text)
}
