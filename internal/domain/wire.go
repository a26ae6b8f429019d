package domain

import "time"

// Peer channel frame types.
const (
	FrameSendMessage = "send_message"
	FramePing        = "ping"
	FramePong        = "pong"
)

// FileOnlyBody is the sentinel body of a peer message that carries only a
// file attachment. It is never rendered as text.
const FileOnlyBody = "[file]"

// Attachment is the output shape of the file-object store, consumed as a
// message part.
type Attachment struct {
	URL       string `json:"url"`
	Name      string `json:"name,omitempty"`
	MediaType string `json:"mediaType,omitempty"`
	Size      int64  `json:"size,omitempty"`
}

// PeerFrame is an outbound frame on the peer channel.
type PeerFrame struct {
	Type           string      `json:"type"`
	ReceiverID     string      `json:"receiverId,omitempty"`
	Content        string      `json:"content,omitempty"`
	SessionID      string      `json:"sessionId,omitempty"`
	FileAttachment *Attachment `json:"fileAttachment,omitempty"`
}

// InboundPeerFrame is a frame delivered to a user over the peer channel.
type InboundPeerFrame struct {
	MessageType    string      `json:"messageType"`
	Content        string      `json:"content"`
	SenderID       string      `json:"senderId"`
	SenderName     string      `json:"senderName,omitempty"`
	ReceiverID     string      `json:"receiverId"`
	ReceiverName   string      `json:"receiverName,omitempty"`
	SessionID      string      `json:"sessionId"`
	FileAttachment *Attachment `json:"fileAttachment,omitempty"`
	MessageID      string      `json:"messageId"`
	Timestamp      time.Time   `json:"timestamp"`
}

// OfflineItem is one queued peer message returned by the reconciliation
// endpoint.
type OfflineItem struct {
	SessionID      string      `json:"sessionId"`
	SenderID       string      `json:"senderId"`
	SenderNickname string      `json:"senderNickname,omitempty"`
	Body           string      `json:"body"`
	CreatedAt      *time.Time  `json:"createdAt,omitempty"`
	FileAttachment *Attachment `json:"fileAttachment,omitempty"`
}
