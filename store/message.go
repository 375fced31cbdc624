package store

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Part kinds. The part union is closed: anything else is rejected when
// decoding rather than passed through untyped.
const (
	PartTypeText = "text"
	PartTypeFile = "file"
)

// Part is one content unit within a message: plain text or a reference
// to a binary attachment.
type Part struct {
	Type string `json:"type"`

	// Text fields
	Text string `json:"text,omitempty"`

	// File fields
	URL       string `json:"url,omitempty"`
	Filename  string `json:"filename,omitempty"`
	MediaType string `json:"mediaType,omitempty"`
}

// TextPart creates a text part.
func TextPart(text string) Part {
	return Part{Type: PartTypeText, Text: text}
}

// FilePart creates a file part.
func FilePart(url, filename, mediaType string) Part {
	return Part{Type: PartTypeFile, URL: url, Filename: filename, MediaType: mediaType}
}

// Message is one turn in a chat. The ID is stable across edits; editing
// never changes ID or Role.
type Message struct {
	ID    string `json:"id"`
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// Text concatenates all text parts in part order. Returns the empty
// string if the message has none.
func (m *Message) Text() string {
	var sb strings.Builder
	for _, p := range m.Parts {
		if p.Type == PartTypeText {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// Clone returns a deep copy of the message.
func (m *Message) Clone() *Message {
	clone := &Message{ID: m.ID, Role: m.Role}
	if m.Parts != nil {
		clone.Parts = make([]Part, len(m.Parts))
		copy(clone.Parts, m.Parts)
	}
	return clone
}

// UnmarshalJSON validates the part union on decode.
func (p *Part) UnmarshalJSON(data []byte) error {
	type rawPart Part
	var raw rawPart
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Type {
	case PartTypeText, PartTypeFile:
	default:
		return errors.Errorf("unknown part type %q", raw.Type)
	}
	*p = Part(raw)
	return nil
}

// MarshalMessages serializes a message sequence to its stored JSON form.
func MarshalMessages(messages []*Message) (string, error) {
	if messages == nil {
		messages = []*Message{}
	}
	data, err := json.Marshal(messages)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal messages")
	}
	return string(data), nil
}

// UnmarshalMessages parses the stored JSON form of a message sequence.
func UnmarshalMessages(data string) ([]*Message, error) {
	if data == "" {
		return []*Message{}, nil
	}
	messages := []*Message{}
	if err := json.Unmarshal([]byte(data), &messages); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal messages")
	}
	return messages, nil
}

// ValidateMessage checks the fields a message must carry before it is
// accepted at the API boundary.
func ValidateMessage(m *Message) error {
	if m == nil {
		return errors.New("message is nil")
	}
	if m.ID == "" {
		return errors.New("message id is required")
	}
	switch m.Role {
	case RoleUser, RoleAssistant, RoleSystem:
	default:
		return errors.Errorf("unknown role %q", m.Role)
	}
	return nil
}
