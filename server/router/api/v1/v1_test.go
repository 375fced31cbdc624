package v1

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/MelonGO/gemini-chatbot/internal/profile"
	"github.com/MelonGO/gemini-chatbot/plugin/ai"
	"github.com/MelonGO/gemini-chatbot/plugin/blob"
	"github.com/MelonGO/gemini-chatbot/server/service/chat"
	"github.com/MelonGO/gemini-chatbot/store"
	storetest "github.com/MelonGO/gemini-chatbot/store/test"
)

const testSecret = "test-secret"

// fakeGenerator streams fixed deltas.
type fakeGenerator struct {
	deltas []string
}

func (g *fakeGenerator) Stream(ctx context.Context, _ *ai.GenerateRequest) (<-chan string, <-chan error) {
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
		errChan <- nil
	}()
	return contentChan, errChan
}

func newTestAPI(t *testing.T) *echo.Echo {
	ctx := context.Background()
	ts := storetest.NewTestingStore(ctx, t)

	blobStore, err := blob.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	testProfile := &profile.Profile{Mode: "dev", Secret: testSecret, Data: t.TempDir()}
	chatService := chat.NewService(testProfile, ts, &fakeGenerator{deltas: []string{"Hi ", "there"}}, blobStore)

	e := echo.New()
	NewAPIV1Service(testSecret, testProfile, ts, chatService).Register(e)
	return e
}

func doJSON(e *echo.Echo, method, target, token string, body any) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = strings.NewReader(string(data))
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func signUp(t *testing.T, e *echo.Echo, email string) string {
	rec := doJSON(e, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email":    email,
		"password": "hunter22",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	response := &AuthResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), response))
	require.NotEmpty(t, response.Token)
	return response.Token
}

func TestSignUpAndSignIn(t *testing.T) {
	e := newTestAPI(t)
	signUp(t, e, "alice@example.com")

	// Duplicate email is rejected.
	rec := doJSON(e, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email":    "alice@example.com",
		"password": "hunter22",
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(e, http.MethodPost, "/api/v1/auth/signin", "", map[string]string{
		"email":    "alice@example.com",
		"password": "hunter22",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(e, http.MethodPost, "/api/v1/auth/signin", "", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(e, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email":    "not-an-email",
		"password": "hunter22",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatRequiresAuth(t *testing.T) {
	e := newTestAPI(t)
	rec := doJSON(e, http.MethodPost, "/api/v1/chat", "", &ChatRequest{ID: "chat-1"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(e, http.MethodGet, "/api/v1/chat", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChatStreamAndFetch(t *testing.T) {
	e := newTestAPI(t)
	token := signUp(t, e, "bob@example.com")

	rec := doJSON(e, http.MethodPost, "/api/v1/chat", token, &ChatRequest{
		ID:      "chat-1",
		ModelID: ai.DefaultModelID,
		Messages: []*store.Message{
			{ID: "u1", Role: store.RoleUser, Parts: []store.Part{store.TextPart("hello")}},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/event-stream")

	body := rec.Body.String()
	require.Contains(t, body, "event: message-start")
	require.Contains(t, body, "event: text-delta")
	require.Contains(t, body, `"delta":"Hi "`)
	require.Contains(t, body, "event: finish")
	require.Contains(t, body, "data: [DONE]")

	// The committed chat is readable with its generated reply.
	rec = doJSON(e, http.MethodGet, "/api/v1/chat?id=chat-1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	chatResponse := &ChatResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), chatResponse))
	require.Len(t, chatResponse.Messages, 2)
	require.Equal(t, "Hi there", chatResponse.Messages[1].Text())

	// Listing omits messages.
	rec = doJSON(e, http.MethodGet, "/api/v1/chat", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := []*ChatResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	require.Empty(t, list[0].Messages)
}

func TestChatRejectsUnknownModelBeforeStreaming(t *testing.T) {
	e := newTestAPI(t)
	token := signUp(t, e, "carol@example.com")

	rec := doJSON(e, http.MethodPost, "/api/v1/chat", token, &ChatRequest{
		ID:      "chat-1",
		ModelID: "made-up",
		Messages: []*store.Message{
			{ID: "u1", Role: store.RoleUser, Parts: []store.Part{store.TextPart("hello")}},
		},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON)
}

func TestChatOwnershipIsOpaque(t *testing.T) {
	e := newTestAPI(t)
	owner := signUp(t, e, "dave@example.com")
	intruder := signUp(t, e, "eve@example.com")

	rec := doJSON(e, http.MethodPost, "/api/v1/chat", owner, &ChatRequest{
		ID:      "chat-1",
		ModelID: ai.DefaultModelID,
		Messages: []*store.Message{
			{ID: "u1", Role: store.RoleUser, Parts: []store.Part{store.TextPart("secret")}},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Absent and not-owned answer with the same status.
	for _, target := range []string{"/api/v1/chat?id=chat-1", "/api/v1/chat?id=no-such-chat"} {
		rec = doJSON(e, http.MethodGet, target, intruder, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code, target)
		rec = doJSON(e, http.MethodDelete, target, intruder, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code, target)
	}
	for _, chatID := range []string{"chat-1", "no-such-chat"} {
		rec = doJSON(e, http.MethodPost, "/api/v1/chat/regenerate", intruder, &RegenerateRequest{
			ID:      chatID,
			Index:   0,
			ModelID: ai.DefaultModelID,
		})
		require.Equal(t, http.StatusUnauthorized, rec.Code, chatID)
	}

	// Missing id is its own failure mode.
	rec = doJSON(e, http.MethodDelete, "/api/v1/chat", owner, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSystemPromptLifecycle(t *testing.T) {
	e := newTestAPI(t)
	token := signUp(t, e, "frank@example.com")

	rec := doJSON(e, http.MethodPost, "/api/v1/system-prompts", token, &CreateSystemPromptRequest{
		Name: "incomplete",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(e, http.MethodPost, "/api/v1/system-prompts", token, &CreateSystemPromptRequest{
		Name:      "concise",
		Content:   "Answer concisely.",
		IsDefault: true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := &SystemPromptResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), created))

	rec = doJSON(e, http.MethodGet, "/api/v1/system-prompts?default=true", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	defaults := []*SystemPromptResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &defaults))
	require.Len(t, defaults, 1)
	require.Equal(t, created.ID, defaults[0].ID)

	// Another user cannot touch it.
	other := signUp(t, e, "grace@example.com")
	rec = doJSON(e, http.MethodDelete, fmt.Sprintf("/api/v1/system-prompts?id=%s", created.ID), other, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(e, http.MethodDelete, fmt.Sprintf("/api/v1/system-prompts?id=%s", created.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(e, http.MethodDelete, fmt.Sprintf("/api/v1/system-prompts?id=%s", created.ID), token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestModelSetting(t *testing.T) {
	e := newTestAPI(t)
	token := signUp(t, e, "heidi@example.com")

	rec := doJSON(e, http.MethodGet, "/api/v1/settings/model", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	setting := &ModelSettingResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), setting))
	require.Equal(t, ai.DefaultModelID, setting.ModelID)

	rec = doJSON(e, http.MethodPatch, "/api/v1/settings/model", token, &UpdateModelSettingRequest{ModelID: "gemini-3-pro-preview"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(e, http.MethodPatch, "/api/v1/settings/model", token, &UpdateModelSettingRequest{ModelID: "made-up"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(e, http.MethodGet, "/api/v1/settings/model", token, nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), setting))
	require.Equal(t, "gemini-3-pro-preview", setting.ModelID)
}
