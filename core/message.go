package core

import (
	"time"

	"github.com/google/uuid"
)

// MessageType categorizes agent lifecycle bus messages.
type MessageType string

const (
	// MessageTypeRequest marks a message describing inbound work.
	MessageTypeRequest MessageType = "request"
	// MessageTypeResponse marks a message describing produced output.
	MessageTypeResponse MessageType = "response"
	// MessageTypeNotification marks status and lifecycle transitions.
	MessageTypeNotification MessageType = "notification"
	// MessageTypeError marks failure reports.
	MessageTypeError MessageType = "error"
)

// AgentMessage is the payload broadcast on an agent's event bus. Every
// lifecycle transition and task transition emits one. After emission it should
// be treated as immutable.
type AgentMessage struct {
	ID        string         `json:"id"`
	AgentID   string         `json:"agent_id"`
	Type      MessageType    `json:"type"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewAgentMessage constructs a bus message authored by the given agent.
func NewAgentMessage(agentID string, t MessageType, content string) AgentMessage {
	return AgentMessage{
		ID:        NewID(),
		AgentID:   agentID,
		Type:      t,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

// NewID generates a new unique identifier for messages, nodes and derived
// workflow step records.
func NewID() string { return uuid.NewString() }
