package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/grantpilot/grantpilot/internal/service"
	openai "github.com/sashabaranov/go-openai"
)

// DefaultGenerationModel is the chat model used when none is configured.
const DefaultGenerationModel = "gpt-4o-mini"

const systemPrompt = "You are a grant-proposal drafting assistant. Answer the " +
	"question using only the provided context passages. Write clear, " +
	"structured prose in plain language."

// ChatAPI defines the interface for chat completion calls
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// GenerationClient adapts OpenAI chat completions to the pipeline's
// generation-service contract.
type GenerationClient struct {
	api   ChatAPI
	model string
}

func NewGenerationClient(apiKey, model string) *GenerationClient {
	if model == "" {
		model = DefaultGenerationModel
	}
	return &GenerationClient{
		api:   openai.NewClient(apiKey),
		model: model,
	}
}

// NewGenerationClientWithAPI creates a client with an explicit API backend
// (for testing).
func NewGenerationClientWithAPI(api ChatAPI, model string) *GenerationClient {
	if model == "" {
		model = DefaultGenerationModel
	}
	return &GenerationClient{api: api, model: model}
}

// Generate produces one candidate response for the given prompt context.
// Failures are classified into the domain's retryable and terminal codes.
func (c *GenerationClient) Generate(ctx context.Context, req service.GenerationRequest) (string, error) {
	if strings.TrimSpace(req.Query) == "" {
		return "", ErrEmptyText
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(req)},
		},
	})
	if err != nil {
		return "", classifyAPIError(err)
	}

	if len(resp.Choices) == 0 {
		return "", classifyAPIError(fmt.Errorf("no completion choices returned"))
	}

	return resp.Choices[0].Message.Content, nil
}

// buildPrompt assembles the user message: context passages first, then any
// feedback from a rejected attempt, then the question.
func buildPrompt(req service.GenerationRequest) string {
	var b strings.Builder

	if len(req.Context) > 0 {
		b.WriteString("Context passages:\n")
		for i, rc := range req.Context {
			fmt.Fprintf(&b, "[%d] %s\n", i+1, rc.Chunk.Text)
		}
		b.WriteString("\n")
	}

	if len(req.Feedback) > 0 {
		b.WriteString("Revise to address this feedback from the previous draft:\n")
		for _, f := range req.Feedback {
			fmt.Fprintf(&b, "- %s\n", f)
		}
		b.WriteString("\n")
	}

	b.WriteString("Question: ")
	b.WriteString(req.Query)

	return b.String()
}
