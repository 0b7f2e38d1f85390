package gemini

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/lehigh-university-libraries/siteobserver/internal/models"
	"github.com/lehigh-university-libraries/siteobserver/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToContentsAlternatesRoles(t *testing.T) {
	img := &models.NormalizedImage{Base64: "AAAA", MIMEType: "image/png"}

	tests := []struct {
		name      string
		messages  []providers.Message
		wantRoles []string
		wantParts []int
	}{
		{
			name: "recap then first question",
			messages: []providers.Message{
				{Role: models.RoleUser, Text: "Initial analysis - Keywords: no helmet. Description: Worker without helmet."},
				{Role: models.RoleUser, Text: "Where is the worker?", Image: img},
			},
			wantRoles: []string{"user"},
			wantParts: []int{3},
		},
		{
			name: "recap then replayed turns",
			messages: []providers.Message{
				{Role: models.RoleUser, Text: "Initial analysis - Keywords: no helmet. Description: Worker without helmet."},
				{Role: models.RoleUser, Text: "Where is the worker?"},
				{Role: models.RoleAssistant, Text: "On the left."},
				{Role: models.RoleUser, Text: "Any other hazards?", Image: img},
			},
			wantRoles: []string{"user", "model", "user"},
			wantParts: []int{2, 1, 2},
		},
		{
			name: "single message",
			messages: []providers.Message{
				{Role: models.RoleUser, Text: "Describe the image", Image: img},
			},
			wantRoles: []string{"user"},
			wantParts: []int{2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contents, err := toContents(tt.messages)
			require.NoError(t, err)
			require.Len(t, contents, len(tt.wantRoles))
			for i, c := range contents {
				assert.Equal(t, tt.wantRoles[i], c.Role)
				assert.Len(t, c.Parts, tt.wantParts[i])
			}
		})
	}
}

func TestToContentsKeepsOrder(t *testing.T) {
	contents, err := toContents([]providers.Message{
		{Role: models.RoleUser, Text: "recap"},
		{Role: models.RoleUser, Text: "question"},
	})
	require.NoError(t, err)
	require.Len(t, contents, 1)
	assert.Equal(t, []genai.Part{genai.Text("recap"), genai.Text("question")}, contents[0].Parts)
}

func TestToContentsBadImage(t *testing.T) {
	_, err := toContents([]providers.Message{
		{Role: models.RoleUser, Text: "q", Image: &models.NormalizedImage{Base64: "%%%", MIMEType: "image/png"}},
	})
	assert.Error(t, err)
}

func TestCompleteRequiresKey(t *testing.T) {
	_, err := New("").Complete(context.Background(), providers.Config{Model: "gemini-1.5-flash"}, providers.Request{
		Messages: []providers.Message{{Role: models.RoleUser, Text: "hi"}},
	})
	assert.Error(t, err)
}
