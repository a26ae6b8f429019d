package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessage_Text(t *testing.T) {
	m := Message{Parts: []Part{
		ReasoningPart("thinking"),
		TextPart("Hello, "),
		TextPart("world"),
	}}
	assert.Equal(t, "Hello, world", m.Text())
}

func TestMessage_HasContent(t *testing.T) {
	tests := []struct {
		name  string
		parts []Part
		want  bool
	}{
		{"empty", nil, false},
		{"text", []Part{TextPart("hi")}, true},
		{"empty text", []Part{TextPart("")}, false},
		{"reasoning only", []Part{ReasoningPart("hmm")}, false},
		{"file", []Part{FilePart(Attachment{URL: "https://files/x.png"})}, true},
		{"reasoning then text", []Part{ReasoningPart("hmm"), TextPart("answer")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Message{Parts: tt.parts}.HasContent())
		})
	}
}

func TestParticipantConstructors(t *testing.T) {
	a := Agent("a1")
	assert.Equal(t, KindAgent, a.Kind)
	assert.Equal(t, "a1", a.ID)

	u := User("u1")
	assert.Equal(t, KindUser, u.Kind)
	assert.False(t, u.IsZero())
	assert.True(t, Participant{}.IsZero())
}

func TestFilePart(t *testing.T) {
	p := FilePart(Attachment{URL: "https://files/doc.pdf", Name: "doc.pdf", MediaType: "application/pdf", Size: 1024})
	assert.Equal(t, PartFile, p.Type)
	assert.Equal(t, "https://files/doc.pdf", p.URL)
	assert.Equal(t, "doc.pdf", p.Name)
	assert.EqualValues(t, 1024, p.Size)
}
