package assistant

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// geminiBackend calls the Gemini API through the official SDK.
type geminiBackend struct {
	client *genai.Client
	model  string
}

func newGeminiBackend(ctx context.Context, apiKey, model string) (*geminiBackend, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &geminiBackend{client: client, model: model}, nil
}

func (b *geminiBackend) generate(ctx context.Context, prompt string, att *Attachment) (string, error) {
	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	if att != nil {
		parts = append(parts, genai.NewPartFromBytes(att.Data, att.MIMEType))
	}

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := b.client.Models.GenerateContent(ctx, b.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		MaxOutputTokens:   maxOutputTokens,
	})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	return resp.Text(), nil
}
