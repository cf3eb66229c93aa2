package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/satriahrh/edge-assistant/domain"
)

const DefaultGeminiModel = "gemini-2.0-flash-001"

var ErrEmptyReply = errors.New("model returned an empty reply")

type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient builds a client from the GOOGLE_API_KEY / Vertex
// environment understood by genai.
func NewGeminiClient(ctx context.Context, model string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	if model == "" {
		model = DefaultGeminiModel
	}

	return &GeminiClient{client: client, model: model}, nil
}

// Reply implements domain.Llm.
func (g *GeminiClient) Reply(ctx context.Context, systemPrompt string, history []domain.Message) (string, error) {
	resp, err := g.client.Models.GenerateContent(
		ctx,
		g.model,
		toContents(history),
		&genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{
				Parts: []*genai.Part{{Text: systemPrompt}},
			},
		},
	)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", ErrEmptyReply
	}
	return text, nil
}

func toContents(history []domain.Message) []*genai.Content {
	contents := make([]*genai.Content, len(history))
	for i, msg := range history {
		role := genai.RoleModel
		if msg.Role == domain.UserRole {
			role = genai.RoleUser
		}
		contents[i] = &genai.Content{
			Role: role,
			Parts: []*genai.Part{
				{Text: msg.Content},
			},
		}
	}
	return contents
}
