package chat

import (
	"context"
	"sync"
	"time"

	svcerrors "github.com/MelonGO/gemini-chatbot/server/internal/errors"
	"github.com/MelonGO/gemini-chatbot/store"
)

// Synchronizer commits a chat's full message sequence to the durable
// record store. Every commit is a full-replace upsert; commits for the
// same chat are serialized so they apply in issue order.
type Synchronizer struct {
	store *store.Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewSynchronizer creates a synchronizer over the given record store.
func NewSynchronizer(st *store.Store) *Synchronizer {
	return &Synchronizer{
		store: st,
		locks: make(map[string]*sync.Mutex),
	}
}

func (s *Synchronizer) chatLock(chatID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[chatID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[chatID] = lock
	}
	return lock
}

// Commit replaces the durable record's message sequence wholesale,
// creating the record with creatorID as owner if it does not exist. It
// does not retry: a failure is returned as recoverable and the caller is
// responsible for restoring its in-memory snapshot.
func (s *Synchronizer) Commit(ctx context.Context, chatID, creatorID string, messages []*store.Message, systemPromptID *string) error {
	lock := s.chatLock(chatID)
	lock.Lock()
	defer lock.Unlock()

	_, err := s.store.UpsertChat(ctx, &store.UpsertChat{
		ID:             chatID,
		CreatorID:      creatorID,
		Messages:       messages,
		SystemPromptID: systemPromptID,
		CreatedTs:      time.Now().Unix(),
	})
	if err != nil {
		return svcerrors.StoreUnavailable("failed to commit chat", err)
	}
	return nil
}
