package stream

import (
	"strings"
	"time"

	"github.com/parley-im/parley/internal/domain"
	"github.com/parley-im/parley/internal/ident"
	"github.com/parley-im/parley/internal/logging"
)

// Sink receives finished assistant messages for durable storage. It is
// satisfied by the persistence worker.
type Sink interface {
	Submit(msgs []domain.Message) int
}

// Forwarder receives every complete stream line, verbatim, before the
// transformer inspects it. The consumer-facing stream must never be altered
// or delayed by persistence concerns.
type Forwarder func(line string)

// TransformerConfig fixes the identity facts for one turn. The metadata is
// captured once here and stamped unchanged onto the finished message.
type TransformerConfig struct {
	Sender   domain.Participant
	Receiver domain.Participant

	SenderName   string
	ReceiverName string
}

// Transformer consumes the raw turn stream chunk by chunk. Each complete
// line is forwarded first, then parsed; text and reasoning deltas accumulate
// into an in-progress assistant message. The message is finalized and handed
// to the sink on the finish event, or on stream end if the finish event never
// arrived. Both paths may fire for the same turn; the sink deduplicates by
// message id, and the transformer's own finished flag keeps the common case
// to a single submission.
type Transformer struct {
	meta    domain.Metadata
	sink    Sink
	forward Forwarder
	log     *logging.Logger

	carry     string
	turnID    string
	msgID     string
	origID    string
	text      strings.Builder
	reasoning strings.Builder
	started   bool
	finished  bool
}

// NewTransformer creates a transformer for one turn's stream.
func NewTransformer(cfg TransformerConfig, sink Sink, forward Forwarder, log *logging.Logger) *Transformer {
	return &Transformer{
		meta: domain.Metadata{
			SenderID:          cfg.Sender.ID,
			SenderName:        cfg.SenderName,
			ReceiverID:        cfg.Receiver.ID,
			ReceiverName:      cfg.ReceiverName,
			CommunicationType: domain.CommUserAgent,
			CreatedAt:         time.Now().UTC(),
		},
		sink:    sink,
		forward: forward,
		log:     log.Sub("stream"),
	}
}

// Feed processes one chunk. Chunk boundaries carry no meaning: a line split
// across chunks is held back until its terminator arrives, then forwarded
// whole.
func (t *Transformer) Feed(chunk string) {
	data := t.carry + chunk
	t.carry = ""

	for {
		line, rest, found := strings.Cut(data, "\n")
		if !found {
			t.carry = line
			return
		}
		t.handleLine(line)
		data = rest
	}
}

// Close flushes a trailing unterminated line and, if the finish event never
// arrived, finalizes whatever content accumulated so an interrupted turn is
// still persisted.
func (t *Transformer) Close() {
	if t.carry != "" {
		t.handleLine(t.carry)
		t.carry = ""
	}
	if t.started && !t.finished {
		t.log.Warn().Str("turn", t.turnID).Msg("stream ended without finish event")
		t.finalize()
	}
}

func (t *Transformer) handleLine(line string) {
	if t.forward != nil {
		t.forward(line)
	}

	ev, ok := ParseLine(line)
	if !ok {
		return
	}

	switch ev.Type {
	case EventTurnStart:
		if t.started && !t.finished {
			// A new turn opened before the previous one finished; do not lose
			// the accumulated content.
			t.finalize()
		}
		t.turnID = ev.ID
		// The working id is fixed the moment the turn opens; both completion
		// paths reuse it.
		t.msgID, t.origID = ident.EnsureDurableID(ev.ID)
		t.text.Reset()
		t.reasoning.Reset()
		t.started = true
		t.finished = false
	case EventTextDelta:
		t.started = true
		if t.turnID == "" {
			t.turnID = ev.ID
		}
		t.text.WriteString(ev.Delta)
	case EventReasoningDelta:
		t.started = true
		if t.turnID == "" {
			t.turnID = ev.ID
		}
		t.reasoning.WriteString(ev.Reasoning)
	case EventFinish:
		if t.finished {
			return
		}
		if t.turnID == "" {
			t.turnID = ev.ID
		}
		t.finalize()
	}
}

// MessageID returns the durable id adopted for the in-progress turn. It is
// empty until the turn opens.
func (t *Transformer) MessageID() string {
	return t.msgID
}

// finalize assembles the accumulated turn into a message and submits it.
func (t *Transformer) finalize() {
	t.finished = true

	var parts []domain.Part
	if t.reasoning.Len() > 0 {
		parts = append(parts, domain.ReasoningPart(t.reasoning.String()))
	}
	if t.text.Len() > 0 {
		parts = append(parts, domain.TextPart(t.text.String()))
	}

	if t.msgID == "" {
		// The turn opened implicitly through deltas; mint now.
		t.msgID, t.origID = ident.EnsureDurableID(t.turnID)
	}
	meta := t.meta
	meta.OriginalMessageID = t.origID

	msg := domain.Message{
		ID:       t.msgID,
		Role:     domain.RoleAssistant,
		Parts:    parts,
		Metadata: meta,
	}

	accepted := t.sink.Submit([]domain.Message{msg})
	t.log.Debug().
		Str("id", t.msgID).
		Int("textBytes", t.text.Len()).
		Int("accepted", accepted).
		Msg("turn finalized")
}
