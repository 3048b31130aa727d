package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Backend is the generative-text collaborator. The production
// implementation talks to Gemini; tests substitute a stub.
type Backend interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeminiBackend generates text with the Google GenAI API
type GeminiBackend struct {
	client *genai.Client
	model  string
}

// NewGeminiBackend creates a Gemini-backed generator backend
func NewGeminiBackend(ctx context.Context, apiKey, model string) (*GeminiBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("generator API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GeminiBackend{client: client, model: model}, nil
}

// Generate produces free text for the prompt
func (b *GeminiBackend) Generate(ctx context.Context, prompt string) (string, error) {
	result, err := b.client.Models.GenerateContent(ctx, b.model, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}

	text := result.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return text, nil
}

// errorClass is the typed retry decision produced by the classifier
type errorClass int

const (
	classTerminal errorClass = iota
	classOverloaded
	classQuota
)

// classifyBackendError maps a backend failure to a retry decision. The
// status may arrive as a structured API error code or embedded in the
// message text, so both are checked.
func classifyBackendError(err error) errorClass {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 503:
			return classOverloaded
		case apiErr.Code == 429:
			return classQuota
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "503"),
		strings.Contains(msg, "unavailable"),
		strings.Contains(msg, "overloaded"):
		return classOverloaded
	case strings.Contains(msg, "429"),
		strings.Contains(msg, "resource_exhausted"),
		strings.Contains(msg, "quota"):
		return classQuota
	}
	return classTerminal
}
