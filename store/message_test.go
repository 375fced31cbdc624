package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMessageText(t *testing.T) {
	m := &Message{
		ID:   "m1",
		Role: RoleAssistant,
		Parts: []Part{
			TextPart("Hello"),
			FilePart("https://blobs.example.com/a.png", "a.png", "image/png"),
			TextPart(" world"),
		},
	}
	require.Equal(t, "Hello world", m.Text())

	empty := &Message{ID: "m2", Role: RoleUser}
	require.Equal(t, "", empty.Text())
}

func TestMessageClone(t *testing.T) {
	m := &Message{ID: "m1", Role: RoleUser, Parts: []Part{TextPart("original")}}
	clone := m.Clone()
	clone.Parts[0].Text = "changed"
	require.Equal(t, "original", m.Parts[0].Text)
}

func TestUnmarshalMessagesRejectsUnknownPartType(t *testing.T) {
	_, err := UnmarshalMessages(`[{"id":"m1","role":"user","parts":[{"type":"tool-call"}]}]`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown part type")
}

func TestMarshalUnmarshalMessages(t *testing.T) {
	messages := []*Message{
		{ID: "u1", Role: RoleUser, Parts: []Part{
			TextPart("look at this"),
			FilePart("https://blobs.example.com/chat/x.png", "x.png", "image/png"),
		}},
		{ID: "a1", Role: RoleAssistant, Parts: []Part{TextPart("nice picture")}},
	}

	data, err := MarshalMessages(messages)
	require.NoError(t, err)

	decoded, err := UnmarshalMessages(data)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	require.Equal(t, "look at this", decoded[0].Text())
	require.Equal(t, PartTypeFile, decoded[0].Parts[1].Type)
	require.Equal(t, "x.png", decoded[0].Parts[1].Filename)

	// Empty forms stay well defined.
	data, err = MarshalMessages(nil)
	require.NoError(t, err)
	require.Equal(t, "[]", data)
	decoded, err = UnmarshalMessages("")
	require.NoError(t, err)
	require.Empty(t, decoded)
}

func TestValidateMessage(t *testing.T) {
	require.NoError(t, ValidateMessage(&Message{ID: "m1", Role: RoleUser}))
	require.Error(t, ValidateMessage(nil))
	require.Error(t, ValidateMessage(&Message{Role: RoleUser}))
	require.Error(t, ValidateMessage(&Message{ID: "m1", Role: "narrator"}))
}
