package chat

import (
	"sync"

	svcerrors "github.com/MelonGO/gemini-chatbot/server/internal/errors"
	"github.com/MelonGO/gemini-chatbot/store"
)

// MessageStore holds the in-memory, user-editable message sequence of the
// active conversation. It is the single mutable view the streaming session
// and the edit operations act on; rendering layers observe it through
// Subscribe rather than reaching into it.
type MessageStore struct {
	mu       sync.RWMutex
	messages []*store.Message

	// streamingID is the id of the message currently receiving streamed
	// content, empty when no stream is active.
	streamingID string

	subscribers []chan struct{}
}

// NewMessageStore creates an empty message store.
func NewMessageStore() *MessageStore {
	return &MessageStore{messages: []*store.Message{}}
}

// Subscribe returns a channel that receives a signal after every change.
// Signals are dropped if the subscriber is not ready.
func (s *MessageStore) Subscribe() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan struct{}, 1)
	s.subscribers = append(s.subscribers, ch)
	return ch
}

func (s *MessageStore) notifyLocked() {
	for _, ch := range s.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Append adds a message to the end of the sequence. It fails while a
// streaming session is filling a different message.
func (s *MessageStore) Append(m *store.Message) error {
	if err := store.ValidateMessage(m); err != nil {
		return svcerrors.InvalidArgument(err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.streamingID != "" && s.streamingID != m.ID {
		return svcerrors.SessionBusy("message sequence is locked by an active streaming session")
	}
	s.messages = append(s.messages, m.Clone())
	s.notifyLocked()
	return nil
}

// ReplaceText replaces the text of the target message's existing text
// part, or appends a new text part if the message has none. Other parts
// are unchanged. A message currently receiving streamed content cannot
// be edited; the stream must be cancelled first.
func (s *MessageStore) ReplaceText(id, newText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.streamingID != "" && s.streamingID == id {
		return svcerrors.SessionBusy("message is receiving streamed content; cancel the stream first")
	}
	m := s.findLocked(id)
	if m == nil {
		return svcerrors.NotFound("message not found")
	}
	for i := range m.Parts {
		if m.Parts[i].Type == store.PartTypeText {
			m.Parts[i].Text = newText
			s.notifyLocked()
			return nil
		}
	}
	m.Parts = append(m.Parts, store.TextPart(newText))
	s.notifyLocked()
	return nil
}

// Remove deletes the message with the given id. A message currently
// receiving streamed content cannot be removed; the stream must be
// cancelled first.
func (s *MessageStore) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.streamingID != "" && s.streamingID == id {
		return svcerrors.SessionBusy("message is receiving streamed content; cancel the stream first")
	}
	for i, m := range s.messages {
		if m.ID == id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			s.notifyLocked()
			return nil
		}
	}
	return svcerrors.NotFound("message not found")
}

// TruncateAt retains [0, index) when includeTarget is false, or
// [0, index+1) when true.
func (s *MessageStore) TruncateAt(index int, includeTarget bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.messages) {
		return svcerrors.OutOfRange("truncation index out of range")
	}
	end := index
	if includeTarget {
		end = index + 1
	}
	s.messages = s.messages[:end]
	s.notifyLocked()
	return nil
}

// ReplaceAll swaps the whole sequence for the given one. It fails while
// a streaming session is active.
func (s *MessageStore) ReplaceAll(messages []*store.Message) error {
	for _, m := range messages {
		if err := store.ValidateMessage(m); err != nil {
			return svcerrors.InvalidArgument(err.Error())
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.streamingID != "" {
		return svcerrors.SessionBusy("message sequence is locked by an active streaming session")
	}
	s.messages = cloneMessages(messages)
	s.notifyLocked()
	return nil
}

// List returns a copy of the current sequence.
func (s *MessageStore) List() []*store.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMessages(s.messages)
}

// Len returns the number of messages.
func (s *MessageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Get returns the message at index, or nil if out of range.
func (s *MessageStore) Get(index int) *store.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.messages) {
		return nil
	}
	return s.messages[index].Clone()
}

// Snapshot captures the current sequence as a value, to be restored if a
// commit of tentative state fails.
func (s *MessageStore) Snapshot() []*store.Message {
	return s.List()
}

// Restore replaces the sequence with a previously captured snapshot. An
// active streaming lock stays in place; only the session releases it.
func (s *MessageStore) Restore(snapshot []*store.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = cloneMessages(snapshot)
	s.notifyLocked()
}

// BeginStream appends the assistant message the stream will fill and
// locks the sequence against conflicting mutation.
func (s *MessageStore) BeginStream(m *store.Message) error {
	if err := store.ValidateMessage(m); err != nil {
		return svcerrors.InvalidArgument(err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.streamingID != "" {
		return svcerrors.SessionBusy("another message is already receiving streamed content")
	}
	s.messages = append(s.messages, m.Clone())
	s.streamingID = m.ID
	s.notifyLocked()
	return nil
}

// AppendStreamText appends a text increment to the streaming message's
// sole text part, creating the part if absent.
func (s *MessageStore) AppendStreamText(id, delta string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.streamingID != id {
		return svcerrors.SessionBusy("message is not receiving streamed content")
	}
	m := s.findLocked(id)
	if m == nil {
		return svcerrors.NotFound("streaming message not found")
	}
	for i := range m.Parts {
		if m.Parts[i].Type == store.PartTypeText {
			m.Parts[i].Text += delta
			s.notifyLocked()
			return nil
		}
	}
	m.Parts = append(m.Parts, store.TextPart(delta))
	s.notifyLocked()
	return nil
}

// EndStream releases the streaming lock. Partial content stays in place.
func (s *MessageStore) EndStream() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamingID = ""
}

func (s *MessageStore) findLocked(id string) *store.Message {
	for _, m := range s.messages {
		if m.ID == id {
			return m
		}
	}
	return nil
}

func cloneMessages(messages []*store.Message) []*store.Message {
	clone := make([]*store.Message, len(messages))
	for i, m := range messages {
		clone[i] = m.Clone()
	}
	return clone
}
