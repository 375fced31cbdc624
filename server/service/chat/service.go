package chat

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/MelonGO/gemini-chatbot/internal/profile"
	"github.com/MelonGO/gemini-chatbot/plugin/ai"
	"github.com/MelonGO/gemini-chatbot/plugin/blob"
	svcerrors "github.com/MelonGO/gemini-chatbot/server/internal/errors"
	"github.com/MelonGO/gemini-chatbot/store"
)

// maxConcurrentGenerations caps in-flight model requests server-wide.
const maxConcurrentGenerations = 8

// Conversation is the live state of one chat: its editable message
// sequence and its single streaming session.
type Conversation struct {
	Messages *MessageStore
	Session  *StreamSession
}

// Service reconciles in-memory conversations against the durable record
// store and drives streaming sessions against the model provider.
type Service struct {
	Profile   *profile.Profile
	Store     *store.Store
	Generator ai.Generator

	sync   *Synchronizer
	reaper *Reaper

	// generationSem limits concurrent model generations to prevent
	// provider rate-limit exhaustion.
	generationSem *semaphore.Weighted

	mu            sync.Mutex
	conversations map[string]*Conversation
}

// NewService creates the chat service.
func NewService(p *profile.Profile, st *store.Store, generator ai.Generator, blobStore blob.Store) *Service {
	return &Service{
		Profile:       p,
		Store:         st,
		Generator:     generator,
		sync:          NewSynchronizer(st),
		reaper:        NewReaper(blobStore, p.BlobDomain),
		generationSem: semaphore.NewWeighted(maxConcurrentGenerations),
		conversations: make(map[string]*Conversation),
	}
}

// SubmitRequest describes one send action.
type SubmitRequest struct {
	ChatID         string
	CallerID       string
	Messages       []*store.Message
	ModelID        string
	SystemPromptID *string
}

// conversation returns the live state for a chat, hydrating the message
// sequence from the durable record on first access.
func (s *Service) conversation(ctx context.Context, chatID string) (*Conversation, error) {
	s.mu.Lock()
	if conv, ok := s.conversations[chatID]; ok {
		s.mu.Unlock()
		return conv, nil
	}
	s.mu.Unlock()

	record, err := s.Store.GetChat(ctx, &store.FindChat{ID: &chatID})
	if err != nil {
		return nil, svcerrors.StoreUnavailable("failed to load chat", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if conv, ok := s.conversations[chatID]; ok {
		return conv, nil
	}
	conv := &Conversation{
		Messages: NewMessageStore(),
		Session:  NewStreamSession(),
	}
	if record != nil {
		if err := conv.Messages.ReplaceAll(record.Messages); err != nil {
			return nil, err
		}
	}
	s.conversations[chatID] = conv
	return conv, nil
}

// liveConversation returns the in-memory state for a chat without
// hydrating from the durable record, or nil if none exists.
func (s *Service) liveConversation(chatID string) *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversations[chatID]
}

// authorize checks chat ownership. A missing record is allowed only when
// allowNew is set; a record owned by someone else is always rejected.
// Missing and not-owned both map to Unauthorized so the response leaks
// no existence information.
func (s *Service) authorize(ctx context.Context, chatID, callerID string, allowNew bool) (*store.Chat, error) {
	record, err := s.Store.GetChat(ctx, &store.FindChat{ID: &chatID})
	if err != nil {
		return nil, svcerrors.StoreUnavailable("failed to load chat", err)
	}
	if record == nil {
		if allowNew {
			return nil, nil
		}
		return nil, svcerrors.Unauthorized("chat not found or not owned by caller")
	}
	if record.CreatorID != callerID {
		return nil, svcerrors.Unauthorized("chat not found or not owned by caller")
	}
	return record, nil
}

// resolveSystemText resolves a system prompt id to its content, but only
// when the prompt's owner matches the caller. Anything else resolves to
// the empty string rather than an error.
func (s *Service) resolveSystemText(ctx context.Context, promptID *string, callerID string) string {
	if promptID == nil || *promptID == "" {
		return ""
	}
	prompt, err := s.Store.GetSystemPrompt(ctx, &store.FindSystemPrompt{ID: promptID})
	if err != nil {
		slog.Warn("failed to resolve system prompt", "prompt_id", *promptID, "error", err)
		return ""
	}
	if prompt == nil || prompt.CreatorID != callerID {
		return ""
	}
	return prompt.Content
}

// Submit validates and runs one send action: the in-memory sequence is
// reconciled with the caller's, a streaming session generates the
// assistant reply, and the full sequence including the reply is
// committed when the stream finishes.
func (s *Service) Submit(ctx context.Context, req *SubmitRequest, events StreamEvents) error {
	if req.ChatID == "" {
		return svcerrors.InvalidArgument("chat id is required")
	}
	if len(req.Messages) == 0 {
		return svcerrors.InvalidArgument("messages are required")
	}
	if !ai.IsKnownModel(req.ModelID) {
		return svcerrors.InvalidArgument("unknown model id")
	}

	if _, err := s.authorize(ctx, req.ChatID, req.CallerID, true); err != nil {
		return err
	}

	conv, err := s.conversation(ctx, req.ChatID)
	if err != nil {
		return err
	}
	if err := conv.Messages.ReplaceAll(req.Messages); err != nil {
		return err
	}

	return s.runGeneration(ctx, conv, req.ChatID, req.CallerID, req.ModelID, req.SystemPromptID, events)
}

// Regenerate discards the conversation tail from the chosen index and
// re-issues generation over the truncated history. An active session is
// cancelled first; the truncated sequence is committed before the new
// submission so a failure mid-regeneration still leaves a consistent,
// shorter conversation on the server.
func (s *Service) Regenerate(ctx context.Context, chatID, callerID string, index int, modelID string, events StreamEvents) error {
	if !ai.IsKnownModel(modelID) {
		return svcerrors.InvalidArgument("unknown model id")
	}

	record, err := s.authorize(ctx, chatID, callerID, true)
	if err != nil {
		return err
	}
	if record == nil {
		// Without a durable record, regeneration only makes sense for a
		// conversation already held in memory (a chat whose commit after
		// generation failed). An unknown id answers like a foreign one.
		conv := s.liveConversation(chatID)
		if conv == nil || conv.Messages.Len() == 0 {
			return svcerrors.Unauthorized("chat not found or not owned by caller")
		}
	}

	conv, err := s.conversation(ctx, chatID)
	if err != nil {
		return err
	}
	conv.Session.CancelAndWait()

	target := conv.Messages.Get(index)
	if target == nil {
		return svcerrors.OutOfRange("regeneration index out of range")
	}
	// A regenerated assistant message is discarded with the tail; a user
	// message is kept and only the tail after it goes.
	includeTarget := target.Role != store.RoleAssistant

	snapshot := conv.Messages.Snapshot()
	if err := conv.Messages.TruncateAt(index, includeTarget); err != nil {
		return err
	}

	var systemPromptID *string
	if record != nil {
		systemPromptID = record.SystemPromptID
	}
	if err := s.sync.Commit(ctx, chatID, callerID, conv.Messages.List(), systemPromptID); err != nil {
		conv.Messages.Restore(snapshot)
		return err
	}

	return s.runGeneration(ctx, conv, chatID, callerID, modelID, systemPromptID, events)
}

// runGeneration drives one streaming session over the conversation's
// current sequence and commits the result at finish.
func (s *Service) runGeneration(ctx context.Context, conv *Conversation, chatID, callerID, modelID string, systemPromptID *string, events StreamEvents) error {
	if err := s.generationSem.Acquire(ctx, 1); err != nil {
		return svcerrors.GenerationFailed("generation slot unavailable", err)
	}
	defer s.generationSem.Release(1)

	request := &ai.GenerateRequest{
		ModelID:  modelID,
		System:   s.resolveSystemText(ctx, systemPromptID, callerID),
		Messages: historyFromMessages(conv.Messages.List()),
	}

	messageID, err := conv.Session.Run(ctx, RunParams{
		Generator: s.Generator,
		Request:   request,
		Messages:  conv.Messages,
		Events:    events,
	})
	if err != nil {
		return err
	}

	if conv.Session.LastOutcome() != SessionFinished {
		// Cancelled run: partial content stays in memory, nothing is
		// committed.
		return nil
	}

	if err := s.sync.Commit(ctx, chatID, callerID, conv.Messages.List(), systemPromptID); err != nil {
		// The reply was fully generated; losing the commit is accepted
		// over failing the whole stream.
		slog.Warn("failed to save chat after generation",
			"chat_id", chatID,
			"message_id", messageID,
			"error", err,
		)
	}
	return nil
}

// ReplaceMessages replaces the full message sequence and commits it,
// restoring the prior sequence if the commit fails.
func (s *Service) ReplaceMessages(ctx context.Context, chatID, callerID string, messages []*store.Message) error {
	record, err := s.authorize(ctx, chatID, callerID, false)
	if err != nil {
		return err
	}

	conv, err := s.conversation(ctx, chatID)
	if err != nil {
		return err
	}

	snapshot := conv.Messages.Snapshot()
	if err := conv.Messages.ReplaceAll(messages); err != nil {
		return err
	}
	if err := s.sync.Commit(ctx, chatID, callerID, conv.Messages.List(), record.SystemPromptID); err != nil {
		conv.Messages.Restore(snapshot)
		return err
	}
	return nil
}

// ReplaceMessageText edits one message's text and commits the sequence,
// restoring the prior sequence if the commit fails.
func (s *Service) ReplaceMessageText(ctx context.Context, chatID, callerID, messageID, newText string) error {
	record, err := s.authorize(ctx, chatID, callerID, false)
	if err != nil {
		return err
	}

	conv, err := s.conversation(ctx, chatID)
	if err != nil {
		return err
	}

	snapshot := conv.Messages.Snapshot()
	if err := conv.Messages.ReplaceText(messageID, newText); err != nil {
		return err
	}
	if err := s.sync.Commit(ctx, chatID, callerID, conv.Messages.List(), record.SystemPromptID); err != nil {
		conv.Messages.Restore(snapshot)
		return err
	}
	return nil
}

// RemoveMessage deletes one message and commits the sequence, restoring
// the prior sequence if the commit fails.
func (s *Service) RemoveMessage(ctx context.Context, chatID, callerID, messageID string) error {
	record, err := s.authorize(ctx, chatID, callerID, false)
	if err != nil {
		return err
	}

	conv, err := s.conversation(ctx, chatID)
	if err != nil {
		return err
	}

	snapshot := conv.Messages.Snapshot()
	if err := conv.Messages.Remove(messageID); err != nil {
		return err
	}
	if err := s.sync.Commit(ctx, chatID, callerID, conv.Messages.List(), record.SystemPromptID); err != nil {
		conv.Messages.Restore(snapshot)
		return err
	}
	return nil
}

// Delete reaps the chat's attachments and removes the durable record.
// Blob deletion failures are logged, never escalated: the record delete
// proceeds regardless.
func (s *Service) Delete(ctx context.Context, chatID, callerID string) error {
	record, err := s.authorize(ctx, chatID, callerID, false)
	if err != nil {
		return err
	}

	s.reaper.Reap(ctx, chatID, record.Messages)

	if err := s.Store.DeleteChat(ctx, &store.DeleteChat{ID: chatID}); err != nil {
		return svcerrors.StoreUnavailable("failed to delete chat", err)
	}

	s.mu.Lock()
	if conv, ok := s.conversations[chatID]; ok {
		conv.Session.Cancel()
		delete(s.conversations, chatID)
	}
	s.mu.Unlock()
	return nil
}

// GetChat returns the durable record for an owned chat.
func (s *Service) GetChat(ctx context.Context, chatID, callerID string) (*store.Chat, error) {
	return s.authorize(ctx, chatID, callerID, false)
}

// ListChats returns the caller's chats, newest first.
func (s *Service) ListChats(ctx context.Context, callerID string) ([]*store.Chat, error) {
	chats, err := s.Store.ListChats(ctx, &store.FindChat{CreatorID: &callerID})
	if err != nil {
		return nil, svcerrors.StoreUnavailable("failed to list chats", err)
	}
	return chats, nil
}

// historyFromMessages flattens the message sequence into provider
// history: role plus concatenated text, attachment-only turns skipped.
func historyFromMessages(messages []*store.Message) []ai.Message {
	history := make([]ai.Message, 0, len(messages))
	for _, m := range messages {
		text := m.Text()
		if text == "" {
			continue
		}
		history = append(history, ai.Message{Role: string(m.Role), Content: text})
	}
	return history
}
