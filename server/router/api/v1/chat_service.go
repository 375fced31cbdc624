package v1

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/MelonGO/gemini-chatbot/server/auth"
	"github.com/MelonGO/gemini-chatbot/server/internal/observability"
	"github.com/MelonGO/gemini-chatbot/server/service/chat"
	"github.com/MelonGO/gemini-chatbot/store"
)

type ChatRequest struct {
	ID             string           `json:"id"`
	Messages       []*store.Message `json:"messages"`
	ModelID        string           `json:"modelId"`
	SystemPromptID *string          `json:"systemPromptId,omitempty"`
}

type RegenerateRequest struct {
	ID      string `json:"id"`
	Index   int    `json:"index"`
	ModelID string `json:"modelId"`
}

type PatchChatRequest struct {
	Messages []*store.Message `json:"messages"`
}

type ChatResponse struct {
	ID             string           `json:"id"`
	CreatedTs      int64            `json:"createdTs"`
	Messages       []*store.Message `json:"messages,omitempty"`
	SystemPromptID *string          `json:"systemPromptId,omitempty"`
}

func convertChat(record *store.Chat, withMessages bool) *ChatResponse {
	response := &ChatResponse{
		ID:             record.ID,
		CreatedTs:      record.CreatedTs,
		SystemPromptID: record.SystemPromptID,
	}
	if withMessages {
		response.Messages = record.Messages
	}
	return response
}

// sseStream writes the client-visible events of one streaming session as
// server-sent events. Headers are written lazily on the first event so a
// request rejected before streaming still gets a plain JSON error.
type sseStream struct {
	c       echo.Context
	started bool
}

func (s *sseStream) Started() bool {
	return s.started
}

func (s *sseStream) writeEvent(event string, payload any) {
	response := s.c.Response()
	if !s.started {
		header := response.Header()
		header.Set(echo.HeaderContentType, "text/event-stream")
		header.Set("Cache-Control", "no-cache")
		header.Set("Connection", "keep-alive")
		response.WriteHeader(http.StatusOK)
		s.started = true
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(response, "event: %s\ndata: %s\n\n", event, data)
	response.Flush()
}

// end writes the stream terminator expected by the client.
func (s *sseStream) end() {
	if !s.started {
		return
	}
	fmt.Fprint(s.c.Response(), "data: [DONE]\n\n")
	s.c.Response().Flush()
}

func (s *sseStream) OnMessageStart(messageID string) {
	s.writeEvent("message-start", map[string]string{"messageId": messageID})
}

func (s *sseStream) OnTextDelta(delta string) {
	s.writeEvent("text-delta", map[string]string{"delta": delta})
}

func (s *sseStream) OnFinish(messageID string) {
	s.writeEvent("finish", map[string]string{"messageId": messageID})
}

func (s *sseStream) OnError(err error) {
	s.writeEvent("error", map[string]string{"message": err.Error()})
}

// PostChat runs one send action, streaming the assistant reply as SSE.
func (s *APIV1Service) PostChat(c echo.Context) error {
	ctx := c.Request().Context()
	userID := auth.GetUserIDFromContext(ctx)

	request := &ChatRequest{}
	if err := c.Bind(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	reqCtx := observability.NewRequestContext(slog.Default(), userID, request.ID)
	reqCtx.Info("chat submit", slog.String(observability.LogFieldModelID, request.ModelID))

	stream := &sseStream{c: c}
	err := s.ChatService.Submit(ctx, &chat.SubmitRequest{
		ChatID:         request.ID,
		CallerID:       userID,
		Messages:       request.Messages,
		ModelID:        request.ModelID,
		SystemPromptID: request.SystemPromptID,
	}, stream)
	if err != nil {
		reqCtx.Error("chat submit failed", err)
		if stream.Started() {
			// The failure was already surfaced as an error event.
			stream.end()
			return nil
		}
		return httpError(err)
	}
	reqCtx.Info("chat stream completed", slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()))
	stream.end()
	return nil
}

// RegenerateChat discards the conversation tail from the given index and
// streams a fresh assistant reply.
func (s *APIV1Service) RegenerateChat(c echo.Context) error {
	ctx := c.Request().Context()
	userID := auth.GetUserIDFromContext(ctx)

	request := &RegenerateRequest{}
	if err := c.Bind(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if request.ID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "chat id is required")
	}

	reqCtx := observability.NewRequestContext(slog.Default(), userID, request.ID)
	reqCtx.Info("chat regenerate", slog.Int("index", request.Index))

	stream := &sseStream{c: c}
	err := s.ChatService.Regenerate(ctx, request.ID, userID, request.Index, request.ModelID, stream)
	if err != nil {
		reqCtx.Error("chat regenerate failed", err)
		if stream.Started() {
			stream.end()
			return nil
		}
		return httpError(err)
	}
	reqCtx.Info("chat stream completed", slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()))
	stream.end()
	return nil
}

// GetChat returns one chat with its messages when an id is given, or the
// caller's chat list without messages otherwise.
func (s *APIV1Service) GetChat(c echo.Context) error {
	ctx := c.Request().Context()
	userID := auth.GetUserIDFromContext(ctx)

	if chatID := c.QueryParam("id"); chatID != "" {
		record, err := s.ChatService.GetChat(ctx, chatID, userID)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, convertChat(record, true))
	}

	records, err := s.ChatService.ListChats(ctx, userID)
	if err != nil {
		return httpError(err)
	}
	responses := make([]*ChatResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, convertChat(record, false))
	}
	return c.JSON(http.StatusOK, responses)
}

// PatchChat replaces the chat's full message array.
func (s *APIV1Service) PatchChat(c echo.Context) error {
	ctx := c.Request().Context()
	userID := auth.GetUserIDFromContext(ctx)

	chatID := c.QueryParam("id")
	if chatID == "" {
		return echo.NewHTTPError(http.StatusNotFound, "chat id is required")
	}
	request := &PatchChatRequest{}
	if err := c.Bind(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	if err := s.ChatService.ReplaceMessages(ctx, chatID, userID, request.Messages); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

// DeleteChat reaps the chat's attachments and removes the record.
func (s *APIV1Service) DeleteChat(c echo.Context) error {
	ctx := c.Request().Context()
	userID := auth.GetUserIDFromContext(ctx)

	chatID := c.QueryParam("id")
	if chatID == "" {
		return echo.NewHTTPError(http.StatusNotFound, "chat id is required")
	}

	if err := s.ChatService.Delete(ctx, chatID, userID); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}
