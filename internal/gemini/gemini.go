package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/lehigh-university-libraries/siteobserver/internal/models"
	"github.com/lehigh-university-libraries/siteobserver/internal/providers"
	"google.golang.org/api/option"
)

// Gemini is a provider for Google Gemini
type Gemini struct {
	apiKey string
}

// New returns a new Gemini provider
func New(apiKey string) *Gemini {
	return &Gemini{apiKey: apiKey}
}

func (g *Gemini) Name() string {
	return "gemini"
}

func toParts(m providers.Message) ([]genai.Part, error) {
	parts := []genai.Part{genai.Text(m.Text)}
	if m.Image != nil {
		data, err := base64.StdEncoding.DecodeString(m.Image.Base64)
		if err != nil {
			return nil, fmt.Errorf("failed to decode image payload: %w", err)
		}
		format := strings.TrimPrefix(m.Image.MIMEType, "image/")
		parts = append(parts, genai.ImageData(format, data))
	}
	return parts, nil
}

func toRole(r models.Role) string {
	if r == models.RoleAssistant {
		return "model"
	}
	return "user"
}

// toContents converts messages to Gemini contents. Gemini wants user and
// model turns to alternate, so consecutive messages sharing a role are
// merged.
func toContents(messages []providers.Message) ([]*genai.Content, error) {
	var contents []*genai.Content
	for _, m := range messages {
		parts, err := toParts(m)
		if err != nil {
			return nil, err
		}
		role := toRole(m.Role)
		if n := len(contents); n > 0 && contents[n-1].Role == role {
			contents[n-1].Parts = append(contents[n-1].Parts, parts...)
			continue
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}
	return contents, nil
}

// Complete replays the conversation as chat history and sends the final message
func (g *Gemini) Complete(ctx context.Context, config providers.Config, req providers.Request) (string, error) {
	if g.apiKey == "" {
		return "", fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}
	if len(req.Messages) == 0 {
		return "", fmt.Errorf("no messages to send to Gemini")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		return "", fmt.Errorf("failed to create new gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(config.Model)
	model.SetTemperature(float32(config.Temperature))
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}

	contents, err := toContents(req.Messages)
	if err != nil {
		return "", err
	}

	cs := model.StartChat()
	cs.History = contents[:len(contents)-1]
	parts := contents[len(contents)-1].Parts
	resp, err := cs.SendMessage(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned from Gemini")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("empty content returned from Gemini")
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("unexpected response format from Gemini")
	}

	return sb.String(), nil
}
