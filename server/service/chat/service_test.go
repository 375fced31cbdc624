package chat

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/MelonGO/gemini-chatbot/internal/profile"
	"github.com/MelonGO/gemini-chatbot/plugin/ai"
	"github.com/MelonGO/gemini-chatbot/plugin/blob"
	svcerrors "github.com/MelonGO/gemini-chatbot/server/internal/errors"
	"github.com/MelonGO/gemini-chatbot/store"
	storetest "github.com/MelonGO/gemini-chatbot/store/test"
)

type serviceFixture struct {
	service   *Service
	store     *store.Store
	generator *scriptedGenerator
	user      *store.User
	blobDir   string
}

func newServiceFixture(t *testing.T) *serviceFixture {
	ctx := context.Background()
	ts := storetest.NewTestingStore(ctx, t)
	user, err := storetest.CreateTestingUser(ctx, ts)
	require.NoError(t, err)

	blobDir := t.TempDir()
	blobStore, err := blob.NewLocalStore(blobDir)
	require.NoError(t, err)

	generator := &scriptedGenerator{deltas: []string{"reply"}}
	testProfile := &profile.Profile{Mode: "dev", Data: blobDir}
	return &serviceFixture{
		service:   NewService(testProfile, ts, generator, blobStore),
		store:     ts,
		generator: generator,
		user:      user,
		blobDir:   blobDir,
	}
}

func (f *serviceFixture) submit(t *testing.T, chatID string, messages []*store.Message) {
	err := f.service.Submit(context.Background(), &SubmitRequest{
		ChatID:   chatID,
		CallerID: f.user.ID,
		Messages: messages,
		ModelID:  ai.DefaultModelID,
	}, &eventRecorder{})
	require.NoError(t, err)
}

func (f *serviceFixture) storedMessages(t *testing.T, chatID string) []*store.Message {
	record, err := f.store.GetChat(context.Background(), &store.FindChat{ID: &chatID})
	require.NoError(t, err)
	require.NotNil(t, record)
	return record.Messages
}

func TestServiceSubmitCommitsOnFinish(t *testing.T) {
	f := newServiceFixture(t)
	f.generator.deltas = []string{"Hi ", "there"}

	f.submit(t, "chat-1", []*store.Message{userMessage("u1", "hello")})

	messages := f.storedMessages(t, "chat-1")
	require.Len(t, messages, 2)
	require.Equal(t, "u1", messages[0].ID)
	require.Equal(t, store.RoleAssistant, messages[1].Role)
	require.Equal(t, "Hi there", messages[1].Text())
}

func TestServiceSubmitValidation(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	err := f.service.Submit(ctx, &SubmitRequest{
		CallerID: f.user.ID,
		Messages: []*store.Message{userMessage("u1", "hello")},
		ModelID:  ai.DefaultModelID,
	}, &eventRecorder{})
	require.True(t, svcerrors.IsCode(err, svcerrors.ErrCodeInvalidArgument))

	err = f.service.Submit(ctx, &SubmitRequest{
		ChatID:   "chat-1",
		CallerID: f.user.ID,
		ModelID:  ai.DefaultModelID,
	}, &eventRecorder{})
	require.True(t, svcerrors.IsCode(err, svcerrors.ErrCodeInvalidArgument))

	err = f.service.Submit(ctx, &SubmitRequest{
		ChatID:   "chat-1",
		CallerID: f.user.ID,
		Messages: []*store.Message{userMessage("u1", "hello")},
		ModelID:  "made-up-model",
	}, &eventRecorder{})
	require.True(t, svcerrors.IsCode(err, svcerrors.ErrCodeInvalidArgument))
}

func TestServiceSubmitRejectsForeignChat(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.submit(t, "chat-1", []*store.Message{userMessage("u1", "mine")})

	intruder, err := storetest.CreateTestingUser(ctx, f.store)
	require.NoError(t, err)
	err = f.service.Submit(ctx, &SubmitRequest{
		ChatID:   "chat-1",
		CallerID: intruder.ID,
		Messages: []*store.Message{userMessage("u2", "theirs")},
		ModelID:  ai.DefaultModelID,
	}, &eventRecorder{})
	require.True(t, svcerrors.IsCode(err, svcerrors.ErrCodeUnauthorized))
}

func TestServiceRegenerateAssistantIndex(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	// Build [u1, a1, u2, a2].
	f.generator.deltas = []string{"r1"}
	f.submit(t, "chat-1", []*store.Message{userMessage("u1", "q1")})
	history := f.storedMessages(t, "chat-1")
	f.generator.deltas = []string{"r2"}
	f.submit(t, "chat-1", append(history, userMessage("u2", "q2")))

	before := f.storedMessages(t, "chat-1")
	require.Len(t, before, 4)
	oldAssistantID := before[3].ID

	// Regenerating the assistant turn discards it with the tail.
	f.generator.deltas = []string{"r2 improved"}
	err := f.service.Regenerate(ctx, "chat-1", f.user.ID, 3, ai.DefaultModelID, &eventRecorder{})
	require.NoError(t, err)

	after := f.storedMessages(t, "chat-1")
	require.Len(t, after, 4)
	require.Equal(t, "u2", after[2].ID)
	require.Equal(t, "r2 improved", after[3].Text())
	require.NotEqual(t, oldAssistantID, after[3].ID)
}

func TestServiceRegenerateUserIndex(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.generator.deltas = []string{"r1"}
	f.submit(t, "chat-1", []*store.Message{userMessage("u1", "q1")})
	history := f.storedMessages(t, "chat-1")
	f.generator.deltas = []string{"r2"}
	f.submit(t, "chat-1", append(history, userMessage("u2", "q2")))

	// Regenerating from the user turn keeps it and replaces the reply.
	f.generator.deltas = []string{"r2 again"}
	err := f.service.Regenerate(ctx, "chat-1", f.user.ID, 2, ai.DefaultModelID, &eventRecorder{})
	require.NoError(t, err)

	after := f.storedMessages(t, "chat-1")
	require.Len(t, after, 4)
	require.Equal(t, "u2", after[2].ID)
	require.Equal(t, "r2 again", after[3].Text())
}

func TestServiceRegenerateUnknownOrForeignChat(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.submit(t, "chat-1", []*store.Message{userMessage("u1", "q1")})

	// Absent and not-owned answer identically.
	err := f.service.Regenerate(ctx, "no-such-chat", f.user.ID, 0, ai.DefaultModelID, &eventRecorder{})
	require.True(t, svcerrors.IsCode(err, svcerrors.ErrCodeUnauthorized))

	intruder, err := storetest.CreateTestingUser(ctx, f.store)
	require.NoError(t, err)
	err = f.service.Regenerate(ctx, "chat-1", intruder.ID, 0, ai.DefaultModelID, &eventRecorder{})
	require.True(t, svcerrors.IsCode(err, svcerrors.ErrCodeUnauthorized))
}

func TestServiceRegenerateOutOfRange(t *testing.T) {
	f := newServiceFixture(t)
	f.submit(t, "chat-1", []*store.Message{userMessage("u1", "q1")})

	err := f.service.Regenerate(context.Background(), "chat-1", f.user.ID, 10, ai.DefaultModelID, &eventRecorder{})
	require.True(t, svcerrors.IsCode(err, svcerrors.ErrCodeOutOfRange))
}

func TestServiceReplaceMessages(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.submit(t, "chat-1", []*store.Message{userMessage("u1", "original")})

	err := f.service.ReplaceMessages(ctx, "chat-1", f.user.ID, []*store.Message{userMessage("u1", "edited")})
	require.NoError(t, err)
	require.Equal(t, "edited", f.storedMessages(t, "chat-1")[0].Text())

	// Missing and foreign chats answer identically.
	err = f.service.ReplaceMessages(ctx, "no-such-chat", f.user.ID, []*store.Message{})
	require.True(t, svcerrors.IsCode(err, svcerrors.ErrCodeUnauthorized))
}

func TestServiceEditAndRemoveMessage(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.generator.deltas = []string{"r1"}
	f.submit(t, "chat-1", []*store.Message{userMessage("u1", "q1")})

	require.NoError(t, f.service.ReplaceMessageText(ctx, "chat-1", f.user.ID, "u1", "q1 edited"))
	require.Equal(t, "q1 edited", f.storedMessages(t, "chat-1")[0].Text())

	assistantID := f.storedMessages(t, "chat-1")[1].ID
	require.NoError(t, f.service.RemoveMessage(ctx, "chat-1", f.user.ID, assistantID))
	require.Len(t, f.storedMessages(t, "chat-1"), 1)

	err := f.service.RemoveMessage(ctx, "chat-1", f.user.ID, "missing")
	require.True(t, svcerrors.IsCode(err, svcerrors.ErrCodeNotFound))
}

// flakyDriver wraps a real driver and fails chat upserts on demand.
type flakyDriver struct {
	store.Driver
	failUpserts bool
}

func (d *flakyDriver) UpsertChat(ctx context.Context, upsert *store.UpsertChat) (*store.Chat, error) {
	if d.failUpserts {
		return nil, errors.New("upsert refused")
	}
	return d.Driver.UpsertChat(ctx, upsert)
}

func TestServiceEditRollsBackOnCommitFailure(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.generator.deltas = []string{"r1"}
	f.submit(t, "chat-1", []*store.Message{userMessage("u1", "q1")})
	before := f.storedMessages(t, "chat-1")
	require.Len(t, before, 2)

	flaky := &flakyDriver{Driver: f.store.GetDriver()}
	testProfile := &profile.Profile{Mode: "dev", Data: f.blobDir}
	blobStore, err := blob.NewLocalStore(f.blobDir)
	require.NoError(t, err)
	svc := NewService(testProfile, store.New(flaky, testProfile), f.generator, blobStore)

	requireUnchanged := func() {
		conv, convErr := svc.conversation(ctx, "chat-1")
		require.NoError(t, convErr)
		current := conv.Messages.List()
		require.Len(t, current, len(before))
		for i := range before {
			require.Equal(t, before[i].ID, current[i].ID)
			require.Equal(t, before[i].Text(), current[i].Text())
		}
	}

	flaky.failUpserts = true

	err = svc.ReplaceMessageText(ctx, "chat-1", f.user.ID, "u1", "q1 edited")
	require.True(t, svcerrors.IsCode(err, svcerrors.ErrCodeStoreUnavailable))
	requireUnchanged()

	err = svc.RemoveMessage(ctx, "chat-1", f.user.ID, "u1")
	require.True(t, svcerrors.IsCode(err, svcerrors.ErrCodeStoreUnavailable))
	requireUnchanged()

	err = svc.ReplaceMessages(ctx, "chat-1", f.user.ID, []*store.Message{userMessage("u9", "replacement")})
	require.True(t, svcerrors.IsCode(err, svcerrors.ErrCodeStoreUnavailable))
	requireUnchanged()

	// Once the store recovers, the same edit goes through.
	flaky.failUpserts = false
	require.NoError(t, svc.ReplaceMessageText(ctx, "chat-1", f.user.ID, "u1", "q1 edited"))
	require.Equal(t, "q1 edited", f.storedMessages(t, "chat-1")[0].Text())
}

func TestServiceDeleteReapsAttachments(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	blobStore, err := blob.NewLocalStore(f.blobDir)
	require.NoError(t, err)
	require.NoError(t, blobStore.Put(ctx, "chat-1/img.png", []byte("png bytes")))

	attachment := &store.Message{
		ID:   "u1",
		Role: store.RoleUser,
		Parts: []store.Part{
			store.TextPart("see attachment"),
			store.FilePart("https://blobs.example.com/chat-1/img.png", "img.png", "image/png"),
		},
	}
	f.submit(t, "chat-1", []*store.Message{attachment})

	require.NoError(t, f.service.Delete(ctx, "chat-1", f.user.ID))

	record, err := f.store.GetChat(ctx, &store.FindChat{ID: stringPtr("chat-1")})
	require.NoError(t, err)
	require.Nil(t, record)

	_, statErr := os.Stat(filepath.Join(f.blobDir, "chat-1", "img.png"))
	require.True(t, os.IsNotExist(statErr))
}

func TestServiceDeleteUnknownChat(t *testing.T) {
	f := newServiceFixture(t)
	err := f.service.Delete(context.Background(), "no-such-chat", f.user.ID)
	require.True(t, svcerrors.IsCode(err, svcerrors.ErrCodeUnauthorized))
}

func stringPtr(s string) *string {
	return &s
}
