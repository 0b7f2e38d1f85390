package models

import "time"

// Role identifies who authored a chat turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatTurn is one entry of a session's chat history
type ChatTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NormalizedImage is the canonical, transport-safe form of an uploaded image
// together with the file that backs it on disk.
type NormalizedImage struct {
	Base64   string `json:"-"`
	MIMEType string `json:"mime_type"`
	Path     string `json:"-"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// DataURL renders the image as a data URL for providers that take one
func (i NormalizedImage) DataURL() string {
	return "data:" + i.MIMEType + ";base64," + i.Base64
}

// Session binds one uploaded image to its initial analysis and chat transcript.
// Image, Keywords and Description never change once the session is created.
type Session struct {
	ID          string          `json:"session_id"`
	Image       NormalizedImage `json:"image"`
	Keywords    []string        `json:"keywords"`
	Description string          `json:"description"`
	ChatHistory []ChatTurn      `json:"chat_history"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Clone returns a deep copy safe to hand out of the session store
func (s *Session) Clone() *Session {
	c := *s
	c.Keywords = append([]string(nil), s.Keywords...)
	c.ChatHistory = append([]ChatTurn(nil), s.ChatHistory...)
	if c.Keywords == nil {
		c.Keywords = []string{}
	}
	if c.ChatHistory == nil {
		c.ChatHistory = []ChatTurn{}
	}
	return &c
}

// AnalysisResponse is returned by the analyze operation
type AnalysisResponse struct {
	SessionID   string   `json:"session_id"`
	Keywords    []string `json:"keywords"`
	Description string   `json:"description"`
}

// ChatRequest is the body of a chat call
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// ChatResponse is returned by the chat operation
type ChatResponse struct {
	Response    string     `json:"response"`
	ChatHistory []ChatTurn `json:"chat_history"`
}
