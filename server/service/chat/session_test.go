package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/MelonGO/gemini-chatbot/plugin/ai"
	svcerrors "github.com/MelonGO/gemini-chatbot/server/internal/errors"
)

// scriptedGenerator streams a fixed set of deltas, then ends with err.
type scriptedGenerator struct {
	deltas []string
	err    error
}

func (g *scriptedGenerator) Stream(ctx context.Context, _ *ai.GenerateRequest) (<-chan string, <-chan error) {
	contentChan := make(chan string)
	errChan := make(chan error, 1)
	go func() {
		defer close(contentChan)
		for _, delta := range g.deltas {
			select {
			case contentChan <- delta:
			case <-ctx.Done():
				errChan <- ctx.Err()
				return
			}
		}
		errChan <- g.err
	}()
	return contentChan, errChan
}

// gatedGenerator emits one delta and then holds the stream open until
// released or cancelled.
type gatedGenerator struct {
	released chan struct{}
}

func (g *gatedGenerator) Stream(ctx context.Context, _ *ai.GenerateRequest) (<-chan string, <-chan error) {
	contentChan := make(chan string)
	errChan := make(chan error, 1)
	go func() {
		defer close(contentChan)
		select {
		case contentChan <- "partial":
		case <-ctx.Done():
			errChan <- ctx.Err()
			return
		}
		select {
		case <-g.released:
			errChan <- nil
		case <-ctx.Done():
			errChan <- ctx.Err()
		}
	}()
	return contentChan, errChan
}

type eventRecorder struct {
	mu       sync.Mutex
	startID  string
	deltas   []string
	finishID string
	err      error
}

func (r *eventRecorder) OnMessageStart(messageID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startID = messageID
}

func (r *eventRecorder) OnTextDelta(delta string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deltas = append(r.deltas, delta)
}

func (r *eventRecorder) OnFinish(messageID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finishID = messageID
}

func (r *eventRecorder) OnError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func TestSessionRunFinishes(t *testing.T) {
	session := NewStreamSession()
	ms := NewMessageStore()
	require.NoError(t, ms.Append(userMessage("u1", "hello")))
	recorder := &eventRecorder{}

	messageID, err := session.Run(context.Background(), RunParams{
		Generator: &scriptedGenerator{deltas: []string{"Hel", "lo ", "there"}},
		Request:   &ai.GenerateRequest{ModelID: ai.DefaultModelID},
		Messages:  ms,
		Events:    recorder,
	})
	require.NoError(t, err)
	require.NotEmpty(t, messageID)

	require.Equal(t, SessionIdle, session.State())
	require.Equal(t, SessionFinished, session.LastOutcome())
	require.Equal(t, messageID, recorder.startID)
	require.Equal(t, messageID, recorder.finishID)
	require.Equal(t, []string{"Hel", "lo ", "there"}, recorder.deltas)

	list := ms.List()
	require.Len(t, list, 2)
	require.Equal(t, "Hello there", list[1].Text())
}

func TestSessionRunProviderError(t *testing.T) {
	session := NewStreamSession()
	ms := NewMessageStore()
	recorder := &eventRecorder{}

	messageID, err := session.Run(context.Background(), RunParams{
		Generator: &scriptedGenerator{deltas: []string{"par", "tial"}, err: errors.New("provider exploded")},
		Request:   &ai.GenerateRequest{ModelID: ai.DefaultModelID},
		Messages:  ms,
		Events:    recorder,
	})
	require.True(t, svcerrors.IsCode(err, svcerrors.ErrCodeGenerationFailed))
	require.Equal(t, SessionErrored, session.LastOutcome())
	require.Equal(t, SessionIdle, session.State())
	require.Error(t, recorder.err)

	// Partial content stays in the store for the caller to decide on.
	require.Len(t, ms.List(), 1)
	require.Equal(t, messageID, ms.List()[0].ID)
	require.Equal(t, "partial", ms.List()[0].Text())
}

func TestSessionOverlapAndCancel(t *testing.T) {
	session := NewStreamSession()
	ms := NewMessageStore()
	recorder := &eventRecorder{}
	generator := &gatedGenerator{released: make(chan struct{})}

	runErr := make(chan error, 1)
	go func() {
		_, err := session.Run(context.Background(), RunParams{
			Generator: generator,
			Request:   &ai.GenerateRequest{ModelID: ai.DefaultModelID},
			Messages:  ms,
			Events:    recorder,
		})
		runErr <- err
	}()

	require.Eventually(t, func() bool {
		return session.State() == SessionStreaming
	}, time.Second, 5*time.Millisecond)

	// A second submission while streaming is rejected.
	_, err := session.Run(context.Background(), RunParams{
		Generator: generator,
		Request:   &ai.GenerateRequest{ModelID: ai.DefaultModelID},
		Messages:  ms,
		Events:    recorder,
	})
	require.True(t, svcerrors.IsCode(err, svcerrors.ErrCodeSessionBusy))

	session.CancelAndWait()
	require.NoError(t, <-runErr)
	require.Equal(t, SessionCancelled, session.LastOutcome())
	require.Equal(t, SessionIdle, session.State())

	// Cancellation keeps the partial content and releases the lock.
	require.Len(t, ms.List(), 1)
	require.Equal(t, "partial", ms.List()[0].Text())
	require.NoError(t, ms.ReplaceAll(nil))
}

func TestSessionCancelWhenIdleIsNoop(t *testing.T) {
	session := NewStreamSession()
	session.Cancel()
	session.CancelAndWait()
	require.Equal(t, SessionIdle, session.State())
}
