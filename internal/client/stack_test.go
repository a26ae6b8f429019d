package client

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-im/parley/internal/config"
	"github.com/parley-im/parley/internal/domain"
	"github.com/parley-im/parley/internal/gateway"
	"github.com/parley-im/parley/internal/logging"
	"github.com/parley-im/parley/internal/store"
)

func TestPeerChannelConfig_Translation(t *testing.T) {
	cfg := config.Defaults()
	cfg.Identity = config.IdentityConfig{UserID: "u1", Name: "Alice"}
	cfg.Peer.URL = "ws://relay.local:18790/ws"
	cfg.Peer.PingSeconds = 15
	cfg.Peer.ReconnectBaseMs = 250
	cfg.Peer.MaxReconnects = 7
	cfg.Peer.HandshakeSeconds = 3

	pc := PeerChannelConfig(cfg)
	assert.Equal(t, "ws://relay.local:18790/ws?name=Alice&userId=u1", pc.URL)
	assert.Equal(t, 15*time.Second, pc.PingInterval)
	assert.Equal(t, 250*time.Millisecond, pc.ReconnectBase)
	assert.Equal(t, 7, pc.MaxReconnects)
	assert.Equal(t, 3*time.Second, pc.HandshakeTimeout)
}

func TestConfigTranslation(t *testing.T) {
	cfg := config.Defaults()
	cfg.Identity.UserID = "u1"
	cfg.Persist.RetryBaseMs = 500
	cfg.Persist.MaxAttempts = 4
	cfg.Reconcile.SettleMs = 100
	cfg.Reconcile.MaxPolls = 6
	cfg.Reconcile.PollIntervalSeconds = 1
	cfg.Directory.AgentTTLMinutes = 10
	cfg.Directory.UserTTLMinutes = 1
	cfg.Directory.AgentCapacity = 8
	cfg.Directory.UserCapacity = 16

	wc := PersistWorkerConfig(cfg)
	assert.Equal(t, 500*time.Millisecond, wc.BaseDelay)
	assert.Equal(t, 4, wc.MaxAttempts)

	rc := ReconcilerConfig(cfg)
	assert.Equal(t, "u1", rc.UserID)
	assert.Equal(t, 100*time.Millisecond, rc.SettleDelay)
	assert.Equal(t, 6, rc.MaxPolls)
	assert.Equal(t, time.Second, rc.PollInterval)

	dc := DirectoryConfig(cfg)
	assert.Equal(t, 10*time.Minute, dc.AgentTTL)
	assert.Equal(t, time.Minute, dc.UserTTL)
	assert.Equal(t, 8, dc.AgentCapacity)
	assert.Equal(t, 16, dc.UserCapacity)
}

func TestProbeAddr(t *testing.T) {
	assert.Equal(t, "relay.local:18790", probeAddr("ws://relay.local:18790/ws"))
	assert.Equal(t, "relay.local:443", probeAddr("wss://relay.local/ws"))
	assert.Equal(t, "relay.local:80", probeAddr("ws://relay.local/ws"))
	assert.Empty(t, probeAddr("not a url"))
}

func TestConvertInboundFrame_FileOnly(t *testing.T) {
	msg := ConvertInboundFrame(domain.InboundPeerFrame{
		MessageType:    domain.FrameSendMessage,
		Content:        domain.FileOnlyBody,
		SenderID:       "u2",
		ReceiverID:     "u1",
		FileAttachment: &domain.Attachment{URL: "http://files/x.png", Name: "x.png"},
	})

	require.Len(t, msg.Parts, 1)
	assert.Equal(t, domain.PartFile, msg.Parts[0].Type)
	assert.Equal(t, "http://files/x.png", msg.Parts[0].URL)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, domain.CommUserUser, msg.Metadata.CommunicationType)
}

func TestStack_DeliversLivePeerMessages(t *testing.T) {
	log := logging.New(io.Discard, "silent")
	db, err := store.Open(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	relay := gateway.NewServer(gateway.Config{Addr: "127.0.0.1:0"}, db, log)
	require.NoError(t, relay.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = relay.Shutdown(ctx)
	})

	cfg := config.Defaults()
	cfg.Identity = config.IdentityConfig{UserID: "u1", Name: "Alice"}
	cfg.Peer.URL = "ws://" + relay.Addr() + "/ws"
	cfg.Peer.ReconnectBaseMs = 10
	cfg.Persist.URL = "http://" + relay.Addr()
	cfg.Backend.URL = "http://" + relay.Addr()

	got := make(chan domain.Message, 1)
	s := NewStack(cfg, nil, log)
	s.Deliver = func(m domain.Message) { got <- m }

	require.NoError(t, s.Start(context.Background()))
	defer s.Close()

	sender, _, err := websocket.DefaultDialer.Dial("ws://"+relay.Addr()+"/ws?userId=u2&name=Bo", nil)
	require.NoError(t, err)
	defer sender.Close()
	require.NoError(t, sender.WriteJSON(domain.PeerFrame{
		Type:       domain.FrameSendMessage,
		ReceiverID: "u1",
		Content:    "hello",
		SessionID:  "chat:u1:u2",
	}))

	select {
	case m := <-got:
		assert.Equal(t, "hello", m.Text())
		assert.Equal(t, "u2", m.Metadata.SenderID)
		assert.Equal(t, "Bo", m.Metadata.SenderName)
	case <-time.After(2 * time.Second):
		t.Fatal("live peer message not delivered through the stack")
	}

	// The sender's name was seeded into the directory cache from the frame.
	name, err := s.Names.Lookup(context.Background(), domain.User("u2"))
	require.NoError(t, err)
	assert.Equal(t, "Bo", name)
}
