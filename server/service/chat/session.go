package chat

import (
	"context"
	"sync"

	"github.com/lithammer/shortuuid/v4"

	"github.com/MelonGO/gemini-chatbot/plugin/ai"
	svcerrors "github.com/MelonGO/gemini-chatbot/server/internal/errors"
	"github.com/MelonGO/gemini-chatbot/store"
)

// SessionState is a streaming session lifecycle state.
type SessionState string

const (
	SessionIdle      SessionState = "IDLE"
	SessionSubmitted SessionState = "SUBMITTED"
	SessionStreaming SessionState = "STREAMING"
	SessionFinished  SessionState = "FINISHED"
	SessionErrored   SessionState = "ERRORED"
	SessionCancelled SessionState = "CANCELLED"
)

// StreamEvents receives the client-visible events of one streaming
// session. Callbacks run on the session's goroutine.
type StreamEvents interface {
	// OnMessageStart fires when the first increment arrives and the
	// assistant message is created.
	OnMessageStart(messageID string)
	// OnTextDelta fires for every text increment applied to the message.
	OnTextDelta(delta string)
	// OnFinish fires when the increment sequence ends normally.
	OnFinish(messageID string)
	// OnError fires when the provider fails mid-stream. The partial
	// message stays in the message store.
	OnError(err error)
}

// RunParams carries one generation request through a session run.
type RunParams struct {
	Generator ai.Generator
	Request   *ai.GenerateRequest
	Messages  *MessageStore
	Events    StreamEvents
}

// StreamSession owns the lifecycle of one in-flight generation request:
// Idle -> Submitted -> Streaming -> {Finished, Errored, Cancelled} -> Idle.
// Only one run is active at a time; overlapping submissions are rejected.
type StreamSession struct {
	mu          sync.Mutex
	state       SessionState
	lastOutcome SessionState
	cancel      context.CancelFunc
	cancelled   bool
	done        chan struct{}
}

// NewStreamSession creates an idle session.
func NewStreamSession() *StreamSession {
	return &StreamSession{state: SessionIdle}
}

// State returns the current lifecycle state.
func (s *StreamSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastOutcome returns the terminal state of the most recent run.
func (s *StreamSession) LastOutcome() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastOutcome
}

// Cancel aborts the in-flight request. It is only effective from
// Submitted or Streaming; partial content, if any, remains.
func (s *StreamSession) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionSubmitted && s.state != SessionStreaming {
		return
	}
	s.cancelled = true
	if s.cancel != nil {
		s.cancel()
	}
}

// CancelAndWait aborts the in-flight request and blocks until the run
// goroutine has released the message store.
func (s *StreamSession) CancelAndWait() {
	s.mu.Lock()
	if s.state != SessionSubmitted && s.state != SessionStreaming {
		s.mu.Unlock()
		return
	}
	s.cancelled = true
	if s.cancel != nil {
		s.cancel()
	}
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Run executes one generation request to completion, cancellation or
// error, applying increments to the message store as they arrive. It
// blocks until the session returns to Idle. The assistant message id is
// returned when at least one increment was applied.
func (s *StreamSession) Run(ctx context.Context, p RunParams) (string, error) {
	s.mu.Lock()
	if s.state != SessionIdle {
		s.mu.Unlock()
		return "", svcerrors.SessionBusy("a streaming session is already active")
	}
	ctx, cancel := context.WithCancel(ctx)
	s.state = SessionSubmitted
	s.cancel = cancel
	s.cancelled = false
	s.done = make(chan struct{})
	s.mu.Unlock()

	defer cancel()
	defer func() {
		s.mu.Lock()
		close(s.done)
		s.done = nil
		s.mu.Unlock()
	}()

	contentChan, errChan := p.Generator.Stream(ctx, p.Request)

	var messageID string
	for delta := range contentChan {
		if messageID == "" {
			messageID = shortuuid.New()
			assistant := &store.Message{ID: messageID, Role: store.RoleAssistant, Parts: []store.Part{}}
			if err := p.Messages.BeginStream(assistant); err != nil {
				s.terminal(SessionErrored)
				return "", err
			}
			s.setState(SessionStreaming)
			p.Events.OnMessageStart(messageID)
		}
		if err := p.Messages.AppendStreamText(messageID, delta); err != nil {
			p.Messages.EndStream()
			s.terminal(SessionErrored)
			return messageID, err
		}
		p.Events.OnTextDelta(delta)
	}
	p.Messages.EndStream()

	if err := <-errChan; err != nil {
		if s.wasCancelled() || ctx.Err() != nil {
			// Cooperative cancellation: partial content stays visible,
			// nothing is committed.
			s.terminal(SessionCancelled)
			return messageID, nil
		}
		s.terminal(SessionErrored)
		p.Events.OnError(err)
		return messageID, svcerrors.GenerationFailed("model stream failed", err)
	}

	if s.wasCancelled() {
		s.terminal(SessionCancelled)
		return messageID, nil
	}

	s.terminal(SessionFinished)
	p.Events.OnFinish(messageID)
	return messageID, nil
}

func (s *StreamSession) setState(state SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// terminal records the run outcome and returns the session to Idle.
func (s *StreamSession) terminal(outcome SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastOutcome = outcome
	s.state = SessionIdle
	s.cancel = nil
}

func (s *StreamSession) wasCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}
