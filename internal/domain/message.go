// Package domain defines the message model shared by the delivery,
// persistence, and reconciliation subsystems.
package domain

import "time"

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// CommunicationType classifies a message as agent-directed or peer-directed.
type CommunicationType string

const (
	CommUserAgent CommunicationType = "user_agent"
	CommUserUser  CommunicationType = "user_user"
)

// PartType discriminates message fragments.
type PartType string

const (
	PartText      PartType = "text"
	PartFile      PartType = "file"
	PartReasoning PartType = "reasoning"
)

// Part is one typed fragment of a message. Order within a message is
// significant and append-only while a turn streams.
type Part struct {
	Type PartType `json:"type"`

	// Text content for text and reasoning parts.
	Text string `json:"text,omitempty"`

	// File reference fields.
	URL       string `json:"url,omitempty"`
	Name      string `json:"name,omitempty"`
	MediaType string `json:"mediaType,omitempty"`
	Size      int64  `json:"size,omitempty"`
}

// TextPart builds a text fragment.
func TextPart(text string) Part {
	return Part{Type: PartText, Text: text}
}

// ReasoningPart builds a reasoning fragment.
func ReasoningPart(text string) Part {
	return Part{Type: PartReasoning, Text: text}
}

// FilePart builds a file-reference fragment from an attachment.
func FilePart(a Attachment) Part {
	return Part{
		Type:      PartFile,
		URL:       a.URL,
		Name:      a.Name,
		MediaType: a.MediaType,
		Size:      a.Size,
	}
}

// Metadata is fixed at message-creation time and never overwritten later.
// The sender/receiver names recorded here are the names used for rendering
// and for the durable record even if the underlying entity is later renamed.
type Metadata struct {
	SenderID          string            `json:"senderId"`
	SenderName        string            `json:"senderName,omitempty"`
	ReceiverID        string            `json:"receiverId,omitempty"`
	ReceiverName      string            `json:"receiverName,omitempty"`
	CommunicationType CommunicationType `json:"communicationType"`
	CreatedAt         time.Time         `json:"createdAt"`

	// OriginalMessageID preserves a client-local identifier that was replaced
	// by a durable one, so late correlation by the old id still resolves.
	OriginalMessageID string `json:"originalMessageId,omitempty"`
}

// Message is the unit of conversation.
type Message struct {
	ID       string   `json:"id"`
	Role     Role     `json:"role"`
	Parts    []Part   `json:"parts"`
	Metadata Metadata `json:"metadata"`
}

// Text concatenates the message's text parts.
func (m Message) Text() string {
	var out string
	for _, p := range m.Parts {
		if p.Type == PartText {
			out += p.Text
		}
	}
	return out
}

// HasContent reports whether the message carries renderable content: at least
// one non-empty text part or a file part. A message consisting only of
// reasoning fragments does not count as content.
func (m Message) HasContent() bool {
	for _, p := range m.Parts {
		switch p.Type {
		case PartText:
			if p.Text != "" {
				return true
			}
		case PartFile:
			if p.URL != "" {
				return true
			}
		}
	}
	return false
}
