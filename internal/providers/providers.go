package providers

import (
	"context"

	"github.com/lehigh-university-libraries/siteobserver/internal/models"
)

// Config represents the configuration for an LLM provider
type Config struct {
	Model       string
	Temperature float64
}

// Message is one entry of the conversation sent to a provider.
// Image is attached to the message when non-nil.
type Message struct {
	Role  models.Role
	Text  string
	Image *models.NormalizedImage
}

// Request is a fully assembled model payload: a system instruction followed
// by an ordered message sequence.
type Request struct {
	System   string
	Messages []Message
}

// Provider defines the interface for a vision-capable LLM provider
type Provider interface {
	Name() string
	Complete(ctx context.Context, config Config, req Request) (string, error)
}
