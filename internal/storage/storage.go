package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/lehigh-university-libraries/siteobserver/internal/models"
)

// entry guards one session. mu serializes mutation of that session only, so
// chats on different sessions never wait on each other.
type entry struct {
	mu      sync.Mutex
	session *models.Session
	deleted bool
}

// SessionStore is the in-memory session table. The table lock covers map
// access only; it is never held while a session is being mutated.
type SessionStore struct {
	sessions map[string]*entry
	mu       sync.RWMutex
}

func New() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*entry),
	}
}

// NewID allocates an identifier that is not in use
func (s *SessionStore) NewID() string {
	for {
		id := uuid.NewString()
		s.mu.RLock()
		_, taken := s.sessions[id]
		s.mu.RUnlock()
		if !taken {
			return id
		}
	}
}

// Create stores a new session with an empty chat history
func (s *SessionStore) Create(session *models.Session) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("%w: session id is required", models.ErrInvalidInput)
	}

	stored := session.Clone()
	stored.ChatHistory = []models.ChatTurn{}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.ID]; exists {
		return fmt.Errorf("%w: %s", models.ErrSessionExists, session.ID)
	}
	s.sessions[session.ID] = &entry{session: stored}
	return nil
}

func (s *SessionStore) lookup(sessionID string) (*entry, error) {
	s.mu.RLock()
	e, exists := s.sessions[sessionID]
	s.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("%w: %s", models.ErrSessionNotFound, sessionID)
	}
	return e, nil
}

// Get returns a snapshot of the session
func (s *SessionStore) Get(sessionID string) (*models.Session, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return nil, fmt.Errorf("%w: %s", models.ErrSessionNotFound, sessionID)
	}
	return e.session.Clone(), nil
}

// AppendTurn adds the user message and the assistant reply as one unit and
// returns a copy of the resulting history.
func (s *SessionStore) AppendTurn(sessionID, userText, assistantText string) ([]models.ChatTurn, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return nil, fmt.Errorf("%w: %s", models.ErrSessionNotFound, sessionID)
	}

	e.session.ChatHistory = append(e.session.ChatHistory,
		models.ChatTurn{Role: models.RoleUser, Content: userText},
		models.ChatTurn{Role: models.RoleAssistant, Content: assistantText},
	)
	return append([]models.ChatTurn(nil), e.session.ChatHistory...), nil
}

// Delete removes the session and returns it so the caller can release the
// backing image. Lookups that lose the race observe ErrSessionNotFound.
func (s *SessionStore) Delete(sessionID string) (*models.Session, error) {
	s.mu.Lock()
	e, exists := s.sessions[sessionID]
	if exists {
		delete(s.sessions, sessionID)
	}
	s.mu.Unlock()
	if !exists {
		return nil, fmt.Errorf("%w: %s", models.ErrSessionNotFound, sessionID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.deleted = true
	return e.session.Clone(), nil
}

// Len reports the number of live sessions
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close removes every session, calling release for each one. All release
// errors are returned together.
func (s *SessionStore) Close(release func(*models.Session) error) error {
	s.mu.Lock()
	entries := s.sessions
	s.sessions = make(map[string]*entry)
	s.mu.Unlock()

	var errs []error
	for _, e := range entries {
		e.mu.Lock()
		e.deleted = true
		session := e.session.Clone()
		e.mu.Unlock()

		if release != nil {
			if err := release(session); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
