package stream

import (
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-im/parley/internal/domain"
	"github.com/parley-im/parley/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New(io.Discard, "silent")
}

type captureSink struct {
	msgs []domain.Message
}

func (s *captureSink) Submit(msgs []domain.Message) int {
	s.msgs = append(s.msgs, msgs...)
	return len(msgs)
}

func newTestTransformer(sink Sink, forward Forwarder) *Transformer {
	return NewTransformer(TransformerConfig{
		Sender:     domain.Agent("a1"),
		SenderName: "Helper",
		Receiver:   domain.User("u1"),
	}, sink, forward, testLogger())
}

const turnID = "0b8f4e3a-7a1d-4d2e-9c6b-2f1e8a3c5d7e"

func turnLines(deltas ...string) string {
	var b strings.Builder
	b.WriteString(`turn-start:{"id":"` + turnID + `"}` + "\n")
	for _, d := range deltas {
		b.WriteString(`text-delta:{"id":"` + turnID + `","delta":"` + d + `"}` + "\n")
	}
	b.WriteString(`finish:{"id":"` + turnID + `","finishReason":"stop","usage":{"promptTokens":10,"completionTokens":5}}` + "\n")
	return b.String()
}

func TestTransformer_FinishPersistsOnce(t *testing.T) {
	sink := &captureSink{}
	tr := newTestTransformer(sink, nil)

	tr.Feed(turnLines("Hello, ", "world"))
	tr.Close()

	require.Len(t, sink.msgs, 1)
	msg := sink.msgs[0]
	assert.Equal(t, turnID, msg.ID)
	assert.Equal(t, domain.RoleAssistant, msg.Role)
	assert.Equal(t, "Hello, world", msg.Text())
	assert.Equal(t, "a1", msg.Metadata.SenderID)
	assert.Equal(t, "Helper", msg.Metadata.SenderName)
	assert.Equal(t, domain.CommUserAgent, msg.Metadata.CommunicationType)
	assert.Empty(t, msg.Metadata.OriginalMessageID)
}

func TestTransformer_StreamEndFallback(t *testing.T) {
	sink := &captureSink{}
	tr := newTestTransformer(sink, nil)

	// Connection dropped before the finish event.
	tr.Feed(`turn-start:{"id":"` + turnID + `"}` + "\n")
	tr.Feed(`text-delta:{"id":"` + turnID + `","delta":"partial answer"}` + "\n")
	tr.Close()

	require.Len(t, sink.msgs, 1)
	assert.Equal(t, "partial answer", sink.msgs[0].Text())
}

func TestTransformer_FinishThenCloseSubmitsOnce(t *testing.T) {
	sink := &captureSink{}
	tr := newTestTransformer(sink, nil)

	tr.Feed(turnLines("done"))
	tr.Close()
	tr.Close()

	assert.Len(t, sink.msgs, 1)
}

func TestTransformer_ChunkBoundarySplitsLine(t *testing.T) {
	sink := &captureSink{}
	var lines []string
	tr := newTestTransformer(sink, func(line string) { lines = append(lines, line) })

	whole := turnLines("split across chunks")
	// Feed in 7-byte chunks so most lines arrive in pieces.
	for i := 0; i < len(whole); i += 7 {
		end := i + 7
		if end > len(whole) {
			end = len(whole)
		}
		tr.Feed(whole[i:end])
	}
	tr.Close()

	require.Len(t, sink.msgs, 1)
	assert.Equal(t, "split across chunks", sink.msgs[0].Text())

	// Forwarded lines are whole, in order, regardless of chunking.
	assert.Equal(t, strings.Split(strings.TrimSuffix(whole, "\n"), "\n"), lines)
}

func TestTransformer_MalformedLineForwardedNotParsed(t *testing.T) {
	sink := &captureSink{}
	var lines []string
	tr := newTestTransformer(sink, func(line string) { lines = append(lines, line) })

	tr.Feed(`turn-start:{"id":"` + turnID + `"}` + "\n")
	tr.Feed("garbage without a tag\n")
	tr.Feed(`text-delta:{"id":"` + turnID + `","delta":"ok"}` + "\n")
	tr.Feed(`bogus-type:{"id":"x"}` + "\n")
	tr.Feed(`text-delta:{not json}` + "\n")
	tr.Feed(`finish:{"id":"` + turnID + `"}` + "\n")
	tr.Close()

	assert.Contains(t, lines, "garbage without a tag")
	assert.Contains(t, lines, `bogus-type:{"id":"x"}`)
	require.Len(t, sink.msgs, 1)
	assert.Equal(t, "ok", sink.msgs[0].Text())
}

func TestTransformer_ReasoningPrecedesText(t *testing.T) {
	sink := &captureSink{}
	tr := newTestTransformer(sink, nil)

	tr.Feed(`turn-start:{"id":"` + turnID + `"}` + "\n")
	tr.Feed(`reasoning-delta:{"id":"` + turnID + `","reasoning":"think "}` + "\n")
	tr.Feed(`text-delta:{"id":"` + turnID + `","delta":"answer"}` + "\n")
	tr.Feed(`reasoning-delta:{"id":"` + turnID + `","reasoning":"more"}` + "\n")
	tr.Feed(`finish:{"id":"` + turnID + `"}` + "\n")
	tr.Close()

	require.Len(t, sink.msgs, 1)
	parts := sink.msgs[0].Parts
	require.Len(t, parts, 2)
	assert.Equal(t, domain.PartReasoning, parts[0].Type)
	assert.Equal(t, "think more", parts[0].Text)
	assert.Equal(t, domain.PartText, parts[1].Type)
	assert.Equal(t, "answer", parts[1].Text)
}

func TestTransformer_NonCanonicalTurnIDRewritten(t *testing.T) {
	sink := &captureSink{}
	tr := newTestTransformer(sink, nil)

	tr.Feed(`turn-start:{"id":"local-42"}` + "\n")
	tr.Feed(`text-delta:{"id":"local-42","delta":"hi"}` + "\n")
	tr.Feed(`finish:{"id":"local-42"}` + "\n")
	tr.Close()

	require.Len(t, sink.msgs, 1)
	msg := sink.msgs[0]
	assert.NoError(t, uuid.Validate(msg.ID))
	assert.Equal(t, "local-42", msg.Metadata.OriginalMessageID)
}

func TestTransformer_DurableIDFixedAtTurnStart(t *testing.T) {
	sink := &captureSink{}
	tr := newTestTransformer(sink, nil)

	assert.Empty(t, tr.MessageID())

	tr.Feed(`turn-start:{"id":"local-7"}` + "\n")
	id := tr.MessageID()
	require.NoError(t, uuid.Validate(id), "working id adopted at turn start")

	tr.Feed(`text-delta:{"id":"local-7","delta":"hi"}` + "\n")
	tr.Feed(`finish:{"id":"local-7"}` + "\n")
	tr.Close()

	require.Len(t, sink.msgs, 1)
	assert.Equal(t, id, sink.msgs[0].ID, "the id adopted at turn start is the one persisted")
	assert.Equal(t, "local-7", sink.msgs[0].Metadata.OriginalMessageID)
}

func TestTransformer_SecondTurnStartFlushesFirst(t *testing.T) {
	sink := &captureSink{}
	tr := newTestTransformer(sink, nil)

	tr.Feed(`turn-start:{"id":"` + turnID + `"}` + "\n")
	tr.Feed(`text-delta:{"id":"` + turnID + `","delta":"first"}` + "\n")
	tr.Feed(`turn-start:{"id":"11111111-2222-4333-8444-555555555555"}` + "\n")
	tr.Feed(`text-delta:{"delta":"second"}` + "\n")
	tr.Feed(`finish:{}` + "\n")
	tr.Close()

	require.Len(t, sink.msgs, 2)
	assert.Equal(t, "first", sink.msgs[0].Text())
	assert.Equal(t, "second", sink.msgs[1].Text())
}
