// Package analysis runs the analyze and chat flows: it ties the image
// normalizer, prompt assembler, model gateway and session store together.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/siteobserver/internal/imaging"
	"github.com/lehigh-university-libraries/siteobserver/internal/models"
	"github.com/lehigh-university-libraries/siteobserver/internal/prompts"
	"github.com/lehigh-university-libraries/siteobserver/internal/providers"
	"github.com/lehigh-university-libraries/siteobserver/internal/storage"
)

// Completer is the model gateway as seen by the service
type Completer interface {
	Complete(ctx context.Context, req providers.Request) (string, error)
}

type Service struct {
	images   *imaging.Normalizer
	prompts  *prompts.Assembler
	model    Completer
	sessions *storage.SessionStore
}

// AnalyzeInput is one upload plus the optional user keyword
type AnalyzeInput struct {
	Data        []byte
	ContentType string
	Filename    string
	Keyword     string
}

func NewService(images *imaging.Normalizer, assembler *prompts.Assembler, model Completer, sessions *storage.SessionStore) *Service {
	return &Service{
		images:   images,
		prompts:  assembler,
		model:    model,
		sessions: sessions,
	}
}

// Sessions exposes the session store for inspection
func (s *Service) Sessions() *storage.SessionStore {
	return s.sessions
}

// Analyze stores the upload, resolves keywords, writes the description and
// opens a session. Nothing is left behind when a step fails.
func (s *Service) Analyze(ctx context.Context, in AnalyzeInput) (*models.AnalysisResponse, error) {
	if err := imaging.ValidateContentType(in.ContentType); err != nil {
		return nil, err
	}
	if len(in.Data) == 0 {
		return nil, fmt.Errorf("%w: image is empty", models.ErrInvalidInput)
	}

	id := s.sessions.NewID()
	path, err := s.images.Store(id, in.Filename, in.ContentType, in.Data)
	if err != nil {
		return nil, err
	}

	resp, err := s.analyze(ctx, id, path, in)
	if err != nil {
		if rmErr := s.images.Remove(path); rmErr != nil {
			slog.Error("Unable to remove image after failed analysis", "session_id", id, "err", rmErr)
		}
		return nil, err
	}
	return resp, nil
}

func (s *Service) analyze(ctx context.Context, id, path string, in AnalyzeInput) (*models.AnalysisResponse, error) {
	start := time.Now()
	img, err := s.images.Normalize(in.Data, in.ContentType)
	if err != nil {
		return nil, err
	}
	img.Path = path

	keywords, err := s.resolveKeywords(ctx, *img, in.Keyword)
	if err != nil {
		return nil, err
	}

	req, err := s.prompts.Description(*img, keywords)
	if err != nil {
		return nil, err
	}
	description, err := s.model.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	if description == "" {
		return nil, fmt.Errorf("%w: model returned an empty description", models.ErrGeneration)
	}

	session := &models.Session{
		ID:          id,
		Image:       *img,
		Keywords:    keywords,
		Description: description,
		CreatedAt:   time.Now(),
	}
	if err := s.sessions.Create(session); err != nil {
		return nil, err
	}

	slog.Info("Image analyzed",
		"session_id", id,
		"keywords", keywords,
		"user_keyword", in.Keyword != "",
		"duration", time.Since(start))

	return &models.AnalysisResponse{
		SessionID:   id,
		Keywords:    keywords,
		Description: description,
	}, nil
}

// resolveKeywords prefers the user keyword and otherwise asks the model
func (s *Service) resolveKeywords(ctx context.Context, img models.NormalizedImage, keyword string) ([]string, error) {
	if kw := NormalizeKeyword(keyword); kw != "" {
		return []string{kw}, nil
	}

	req, err := s.prompts.KeywordProposal(img)
	if err != nil {
		return nil, err
	}
	raw, err := s.model.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	return ParseKeywords(raw), nil
}

// Chat answers a follow-up question about the session's image. The history
// only changes when the model call succeeds.
func (s *Service) Chat(ctx context.Context, sessionID, message string) (*models.ChatResponse, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("%w: message is required", models.ErrInvalidInput)
	}

	req, err := s.prompts.Chat(session, message)
	if err != nil {
		return nil, err
	}
	reply, err := s.model.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	if reply == "" {
		return nil, fmt.Errorf("%w: model returned an empty response", models.ErrGeneration)
	}

	history, err := s.sessions.AppendTurn(sessionID, message, reply)
	if err != nil {
		return nil, err
	}

	slog.Info("Chat turn recorded", "session_id", sessionID, "turns", len(history))
	return &models.ChatResponse{
		Response:    reply,
		ChatHistory: history,
	}, nil
}

// Delete ends a session and removes its backing image
func (s *Service) Delete(sessionID string) error {
	session, err := s.sessions.Delete(sessionID)
	if err != nil {
		return err
	}
	if err := s.images.Remove(session.Image.Path); err != nil {
		return err
	}
	slog.Info("Session deleted", "session_id", sessionID)
	return nil
}

// Close drops every session and its backing file
func (s *Service) Close() error {
	n := s.sessions.Len()
	err := s.sessions.Close(func(session *models.Session) error {
		return s.images.Remove(session.Image.Path)
	})
	if err != nil {
		return errors.Join(fmt.Errorf("failed to release %d sessions cleanly", n), err)
	}
	slog.Info("Sessions released", "count", n)
	return nil
}
