package domain

import "time"

// Role identifies the author of a conversation turn.
type Role string

// Conversation roles.
const (
	// RoleUser marks a turn written by the person asking questions.
	RoleUser Role = "user"

	// RoleAssistant marks a turn produced by the answer synthesizer.
	RoleAssistant Role = "assistant"
)

// IsValid returns true if the role is recognised.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAssistant
}

// ConversationTurn is a single message within a session. Sessions are an
// ordered sequence of turns scoped to one user interaction; they are never
// persisted beyond the interaction's lifetime.
type ConversationTurn struct {
	Role      Role
	Text      string
	Timestamp time.Time
}
