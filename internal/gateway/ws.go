package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/parley-im/parley/internal/domain"
)

// ErrPeerClosed is returned when sending on a closed peer connection.
var ErrPeerClosed = errors.New("peer connection closed")

// handleWebSocket upgrades a peer connection and relays its frames until it
// drops.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "userId is required"})
		return
	}
	senderName := r.URL.Query().Get("name")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	peer := &Peer{UserID: userID, socket: conn}
	s.peers.Add(peer)
	defer func() {
		s.peers.Remove(peer)
		peer.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var frame domain.PeerFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.log.Warn().Err(err).Str("user", userID).Msg("unreadable peer frame")
			continue
		}

		switch frame.Type {
		case domain.FramePing:
			_ = peer.Send(domain.InboundPeerFrame{MessageType: domain.FramePong})
		case domain.FrameSendMessage:
			s.relay(peer, senderName, frame)
		default:
			s.log.Warn().Str("type", frame.Type).Str("user", userID).Msg("unknown frame type")
		}
	}
}

// relay delivers a frame to the receiver's live connection, or queues it if
// the receiver is offline.
func (s *Server) relay(sender *Peer, senderName string, frame domain.PeerFrame) {
	if frame.ReceiverID == "" {
		s.log.Warn().Str("user", sender.UserID).Msg("send_message without receiver")
		return
	}

	now := time.Now().UTC()
	inbound := domain.InboundPeerFrame{
		MessageType:    domain.FrameSendMessage,
		Content:        frame.Content,
		SenderID:       sender.UserID,
		SenderName:     senderName,
		ReceiverID:     frame.ReceiverID,
		SessionID:      frame.SessionID,
		FileAttachment: frame.FileAttachment,
		MessageID:      uuid.NewString(),
		Timestamp:      now,
	}

	if receiver, ok := s.peers.Get(frame.ReceiverID); ok {
		if err := receiver.Send(inbound); err == nil {
			return
		}
		// Live delivery failed mid-write; fall through to the queue.
		s.log.Warn().Str("receiver", frame.ReceiverID).Msg("live delivery failed, queueing")
	}

	err := s.offline.Enqueue(frame.ReceiverID, domain.OfflineItem{
		SessionID:      frame.SessionID,
		SenderID:       sender.UserID,
		SenderNickname: senderName,
		Body:           frame.Content,
		CreatedAt:      &now,
		FileAttachment: frame.FileAttachment,
	})
	if err != nil {
		s.log.Error().Err(err).Str("receiver", frame.ReceiverID).Msg("offline enqueue failed")
	}
}
