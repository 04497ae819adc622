package model

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// ChatMessage is one bubble in the conversation. IDs are ULIDs so they sort in append order.
type ChatMessage struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	IsUser    bool      `json:"isUser"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionState is the client-side conversation: transcript plus what we know about the user.
//
// IsFirstMessage stays true until one name-extraction attempt has been made, then stays
// false until Reset. UserName is first-write-wins.
type SessionState struct {
	Messages       []ChatMessage `json:"messages"`
	UserName       string        `json:"userName,omitempty"`
	IsFirstMessage bool          `json:"isFirstMessage"`
	LastAIReply    string        `json:"lastAiReply,omitempty"`
}

func NewSessionState(userName string) *SessionState {
	return &SessionState{
		Messages:       make([]ChatMessage, 0, 8),
		UserName:       strings.TrimSpace(userName),
		IsFirstMessage: true,
	}
}

func (s *SessionState) append(text string, isUser bool) ChatMessage {
	m := ChatMessage{
		ID:        ulid.Make().String(),
		Text:      text,
		IsUser:    isUser,
		Timestamp: time.Now(),
	}
	s.Messages = append(s.Messages, m)
	return m
}

// AppendUserMessage appends a user bubble. It never touches name state.
func (s *SessionState) AppendUserMessage(text string) ChatMessage {
	return s.append(text, true)
}

// AppendAIMessage appends a persona bubble and remembers it as the last reply.
func (s *SessionState) AppendAIMessage(text string) ChatMessage {
	s.LastAIReply = text
	return s.append(text, false)
}

// RecordNameIfAbsent sets UserName only when it is empty and candidate is not.
// Reports whether the name changed.
func (s *SessionState) RecordNameIfAbsent(candidate string) bool {
	candidate = strings.TrimSpace(candidate)
	if s.UserName != "" || candidate == "" {
		return false
	}
	s.UserName = candidate
	return true
}

func (s *SessionState) AdvancePastFirstMessage() {
	s.IsFirstMessage = false
}

// Reset replaces the transcript with a single greeting and re-arms the first-message flag.
// The known name is kept.
func (s *SessionState) Reset(greeting string) {
	s.Messages = make([]ChatMessage, 0, 8)
	s.LastAIReply = ""
	s.IsFirstMessage = true
	s.AppendAIMessage(greeting)
}

// Snapshot returns a deep copy safe to hand to other goroutines.
func (s *SessionState) Snapshot() SessionState {
	cp := *s
	cp.Messages = append([]ChatMessage(nil), s.Messages...)
	return cp
}
