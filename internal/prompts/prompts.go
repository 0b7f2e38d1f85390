package prompts

import (
	"fmt"
	"strings"

	"github.com/cbroglie/mustache"
	"github.com/lehigh-university-libraries/siteobserver/internal/models"
	"github.com/lehigh-university-libraries/siteobserver/internal/providers"
)

// KeywordSystemPrompt is the system instruction for keyword proposal
const KeywordSystemPrompt = "You propose concise safety keywords."

// SafetyAnalystPolicy is the system instruction for description generation
const SafetyAnalystPolicy = `You are a construction-safety analyst.

Your task is to analyze the provided image and (optionally) a user-supplied keyword or phrase, then output a short, factual safety observation. Follow these rules:

1. Provide a concise, professional observation (1–2 sentences) based solely on what is clearly visible in the image.
2. If multiple safety conditions or issues are visible, combine them briefly while keeping the description compact and neutral.
3. Do not speculate or assume any details that cannot be visually confirmed.
4. If a keyword is provided:
   - Address it **only if it aligns with visible evidence**.
   - If the keyword is **not supported by the image**, clearly but professionally state that the visual evidence does not match the keyword, and provide an accurate observation of what is visible instead.
5. Use neutral, audit-friendly language (avoid blame or judgmental wording).
6. Prioritize visual evidence over the keyword when there is a conflict.
7. Output **plain text only** — no bullet points, no extra fields, no JSON.
`

// ChatSystemPrompt is the assistant persona used for follow-up questions
const ChatSystemPrompt = `You are a construction-safety assistant. You have already analyzed an image and provided a safety observation.
Now the user has follow-up questions about the same image. Answer their questions based on what you can see in the image.
Be helpful, concise, and professional. Reference specific visual details when answering.`

// NoKeywords stands in for an empty keyword list in the description prompt
const NoKeywords = "none"

// Triple braces keep mustache from HTML-escaping user text.
const (
	proposalTemplate = `From this image, propose up to 5 *likely* construction-safety observations as short keywords (e.g., "no helmet", "damaged cable").
Only include items that seem visually plausible from the image. Return a comma-separated list of short phrases, no explanations.
Here are example safety phrases for inspiration (do not copy blindly): {{{safety_hints}}}.
`

	descriptionTemplate = `Use the image and the provided context to write a brief, audit-friendly observation description (1–2 sentences).
Context keyword(s): {{{keywords}}}

Write the final description only. Do not include headings or extra commentary.
`

	recapTemplate = `Initial analysis - Keywords: {{{keywords}}}. Description: {{{description}}}`
)

var (
	proposalTmpl    = mustParse(proposalTemplate)
	descriptionTmpl = mustParse(descriptionTemplate)
	recapTmpl       = mustParse(recapTemplate)
)

func mustParse(tmpl string) *mustache.Template {
	t, err := mustache.ParseString(tmpl)
	if err != nil {
		panic(fmt.Sprintf("invalid prompt template: %v", err))
	}
	return t
}

// Assembler builds the payloads for the three model interactions. It never
// looks at model output.
type Assembler struct {
	hints []string
}

// New returns an assembler that offers hints as inspiration for keyword proposal
func New(hints []string) *Assembler {
	return &Assembler{hints: append([]string(nil), hints...)}
}

// KeywordProposal asks the model for a comma-separated list of likely issues
func (a *Assembler) KeywordProposal(img models.NormalizedImage) (providers.Request, error) {
	text, err := proposalTmpl.Render(map[string]string{
		"safety_hints": strings.Join(a.hints, ", "),
	})
	if err != nil {
		return providers.Request{}, fmt.Errorf("failed to render proposal prompt: %w", err)
	}

	return providers.Request{
		System:   KeywordSystemPrompt,
		Messages: []providers.Message{visionMessage(img, text)},
	}, nil
}

// Description asks for the 1-2 sentence observation given the resolved keywords
func (a *Assembler) Description(img models.NormalizedImage, keywords []string) (providers.Request, error) {
	kw := NoKeywords
	if len(keywords) > 0 {
		kw = strings.Join(keywords, ", ")
	}

	text, err := descriptionTmpl.Render(map[string]string{"keywords": kw})
	if err != nil {
		return providers.Request{}, fmt.Errorf("failed to render description prompt: %w", err)
	}

	return providers.Request{
		System:   SafetyAnalystPolicy,
		Messages: []providers.Message{visionMessage(img, text)},
	}, nil
}

// Chat rebuilds the whole conversation for a follow-up question: a recap of
// the initial analysis, every prior turn, then the new message with the image.
func (a *Assembler) Chat(session *models.Session, message string) (providers.Request, error) {
	recap, err := recapTmpl.Render(map[string]string{
		"keywords":    strings.Join(session.Keywords, ", "),
		"description": session.Description,
	})
	if err != nil {
		return providers.Request{}, fmt.Errorf("failed to render recap prompt: %w", err)
	}

	messages := make([]providers.Message, 0, len(session.ChatHistory)+2)
	messages = append(messages, providers.Message{Role: models.RoleUser, Text: recap})
	for _, turn := range session.ChatHistory {
		messages = append(messages, providers.Message{Role: turn.Role, Text: turn.Content})
	}
	messages = append(messages, visionMessage(session.Image, message))

	return providers.Request{
		System:   ChatSystemPrompt,
		Messages: messages,
	}, nil
}

func visionMessage(img models.NormalizedImage, text string) providers.Message {
	return providers.Message{
		Role:  models.RoleUser,
		Text:  text,
		Image: &img,
	}
}
