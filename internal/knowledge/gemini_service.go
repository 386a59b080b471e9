package knowledge

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiService implements Service using Gemini text generation.
type GeminiService struct {
	client        *genai.Client
	model         string
	promptBuilder *PromptBuilder
}

func NewGeminiService(ctx context.Context, apiKey string, modelName string) (*GeminiService, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiService{
		client:        client,
		model:         modelName,
		promptBuilder: &PromptBuilder{},
	}, nil
}

func (s *GeminiService) Verify(ctx context.Context, req VerifyRequest) (VerifyResponse, error) {
	text, err := s.generate(ctx, s.promptBuilder.BuildVerifyPrompt(req))
	if err != nil {
		return VerifyResponse{}, err
	}
	return parseVerdict(text)
}

func (s *GeminiService) generate(ctx context.Context, prompt string) (string, error) {
	var temperature float32
	config := &genai.GenerateContentConfig{
		Temperature:      &temperature,
		ResponseMIMEType: "application/json",
	}
	resp, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(prompt), config)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
