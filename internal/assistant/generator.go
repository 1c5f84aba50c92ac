// Package assistant forwards chat prompts and task extraction requests to a
// generative model.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/deskhub/deskhub/internal/config"
	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.5-flash"

// Turn is one message of a chat history.
type Turn struct {
	Role string `json:"role" binding:"required,oneof=user model"`
	Text string `json:"text" binding:"required"`
}

// Generator is the model surface the service needs.
type Generator interface {
	Generate(ctx context.Context, system string, history []Turn, input string) (string, error)
	// GenerateJSON constrains the reply to schema and decodes it into out.
	GenerateJSON(ctx context.Context, system, input string, schema *genai.Schema, out any) error
}

type GenAIGenerator struct {
	client *genai.Client
	model  string
}

// NewGenerator returns nil when no API key is configured; the service then
// reports the assistant as unavailable.
func NewGenerator(ctx context.Context, cfg config.GenAIConfig) (Generator, error) {
	if cfg.APIKey == "" {
		return nil, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &GenAIGenerator{client: client, model: model}, nil
}

func contents(history []Turn, input string) []*genai.Content {
	out := make([]*genai.Content, 0, len(history)+1)
	for _, t := range history {
		var role genai.Role = genai.RoleUser
		if t.Role == string(genai.RoleModel) {
			role = genai.RoleModel
		}
		out = append(out, genai.NewContentFromText(t.Text, role))
	}
	return append(out, genai.NewContentFromText(input, genai.RoleUser))
}

func (g *GenAIGenerator) Generate(ctx context.Context, system string, history []Turn, input string) (string, error) {
	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents(history, input), cfg)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("model returned no text")
	}
	return text, nil
}

func (g *GenAIGenerator) GenerateJSON(ctx context.Context, system, input string, schema *genai.Schema, out any) error {
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents(nil, input), cfg)
	if err != nil {
		return fmt.Errorf("generate content: %w", err)
	}
	if err := json.Unmarshal([]byte(resp.Text()), out); err != nil {
		return fmt.Errorf("decode model output: %w", err)
	}
	return nil
}
