package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"crazeai/internal/domain"
	"crazeai/internal/domain/model"
	"crazeai/internal/domain/ports/repository"
)

// UserNameKey is the single persisted key holding the learned name.
const UserNameKey = "crazeUserName"

// SessionStore owns the client conversation state and persists the learned name.
// It is not safe for concurrent use; Conversation serializes access.
type SessionStore struct {
	kv      repository.KeyValueStore
	prompts *PromptBuilder
	log     *zerolog.Logger
	state   *model.SessionState
}

func NewSessionStore(kv repository.KeyValueStore, prompts *PromptBuilder, log *zerolog.Logger) *SessionStore {
	return &SessionStore{kv: kv, prompts: prompts, log: log, state: model.NewSessionState("")}
}

// Load reads the persisted name once and starts the transcript with a greeting.
func (s *SessionStore) Load(ctx context.Context) error {
	name, err := s.kv.Read(ctx, UserNameKey)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("load user name: %w", err)
	}
	s.state = model.NewSessionState(name)
	s.state.Reset(s.prompts.Greeting(s.state.UserName))
	return nil
}

func (s *SessionStore) State() *model.SessionState { return s.state }

func (s *SessionStore) Snapshot() model.SessionState { return s.state.Snapshot() }

// RecordNameIfAbsent sets and persists the name when none is known yet.
// The in-memory name is kept even if the write fails.
func (s *SessionStore) RecordNameIfAbsent(ctx context.Context, candidate string) (bool, error) {
	if !s.state.RecordNameIfAbsent(candidate) {
		return false, nil
	}
	if err := s.kv.Write(ctx, UserNameKey, s.state.UserName); err != nil {
		return true, fmt.Errorf("persist user name: %w", err)
	}
	s.log.Debug().Msg("user name recorded")
	return true, nil
}

// Reset replaces the transcript with a greeting. The persisted name is untouched.
func (s *SessionStore) Reset() {
	s.state.Reset(s.prompts.Greeting(s.state.UserName))
}

// ForgetName clears the name in memory and in storage.
func (s *SessionStore) ForgetName(ctx context.Context) error {
	s.state.UserName = ""
	if err := s.kv.Delete(ctx, UserNameKey); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("forget user name: %w", err)
	}
	return nil
}

// NameMirror is the server-side copy of each session's name, keyed by session ID.
type NameMirror struct {
	kv repository.KeyValueStore
}

func NewNameMirror(kv repository.KeyValueStore) *NameMirror {
	return &NameMirror{kv: kv}
}

func mirrorKey(sessionID string) string {
	return "session:" + sessionID + ":" + UserNameKey
}

// Get returns "" when the session has no name yet.
func (m *NameMirror) Get(ctx context.Context, sessionID string) (string, error) {
	if m == nil || sessionID == "" {
		return "", nil
	}
	v, err := m.kv.Read(ctx, mirrorKey(sessionID))
	if errors.Is(err, domain.ErrNotFound) {
		return "", nil
	}
	return v, err
}

// RecordIfAbsent keeps the first name ever seen for the session.
func (m *NameMirror) RecordIfAbsent(ctx context.Context, sessionID, name string) error {
	name = strings.TrimSpace(name)
	if m == nil || sessionID == "" || name == "" {
		return nil
	}
	cur, err := m.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if cur != "" {
		return nil
	}
	return m.kv.Write(ctx, mirrorKey(sessionID), name)
}

func (m *NameMirror) Forget(ctx context.Context, sessionID string) error {
	if m == nil || sessionID == "" {
		return nil
	}
	err := m.kv.Delete(ctx, mirrorKey(sessionID))
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return err
}
