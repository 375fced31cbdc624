package v1

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/lithammer/shortuuid/v4"

	"github.com/MelonGO/gemini-chatbot/server/auth"
	"github.com/MelonGO/gemini-chatbot/store"
)

type CreateSystemPromptRequest struct {
	Name      string `json:"name"`
	Content   string `json:"content"`
	IsDefault bool   `json:"isDefault"`
}

type UpdateSystemPromptRequest struct {
	Name      *string `json:"name,omitempty"`
	Content   *string `json:"content,omitempty"`
	IsDefault *bool   `json:"isDefault,omitempty"`
}

type SystemPromptResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Content   string `json:"content"`
	IsDefault bool   `json:"isDefault"`
	CreatedTs int64  `json:"createdTs"`
}

func convertSystemPrompt(prompt *store.SystemPrompt) *SystemPromptResponse {
	return &SystemPromptResponse{
		ID:        prompt.ID,
		Name:      prompt.Name,
		Content:   prompt.Content,
		IsDefault: prompt.IsDefault,
		CreatedTs: prompt.CreatedTs,
	}
}

// findOwnedPrompt loads a prompt and checks the caller owns it. Absent
// maps to 404, not-owned to 401.
func (s *APIV1Service) findOwnedPrompt(c echo.Context, promptID, userID string) (*store.SystemPrompt, error) {
	prompt, err := s.Store.GetSystemPrompt(c.Request().Context(), &store.FindSystemPrompt{ID: &promptID})
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "failed to load system prompt").SetInternal(err)
	}
	if prompt == nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "system prompt not found")
	}
	if prompt.CreatorID != userID {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "system prompt not owned by caller")
	}
	return prompt, nil
}

// ListSystemPrompts returns the caller's prompts newest first. With
// ?default=true only the default prompt, if any, is returned.
func (s *APIV1Service) ListSystemPrompts(c echo.Context) error {
	ctx := c.Request().Context()
	userID := auth.GetUserIDFromContext(ctx)

	find := &store.FindSystemPrompt{CreatorID: &userID}
	if c.QueryParam("default") == "true" {
		isDefault := true
		find.IsDefault = &isDefault
	}
	if promptID := c.QueryParam("id"); promptID != "" {
		prompt, err := s.findOwnedPrompt(c, promptID, userID)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, convertSystemPrompt(prompt))
	}

	prompts, err := s.Store.ListSystemPrompts(ctx, find)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list system prompts").SetInternal(err)
	}
	responses := make([]*SystemPromptResponse, 0, len(prompts))
	for _, prompt := range prompts {
		responses = append(responses, convertSystemPrompt(prompt))
	}
	return c.JSON(http.StatusOK, responses)
}

// CreateSystemPrompt creates a prompt. Marking it default clears the
// flag on the caller's other prompts in the same transaction.
func (s *APIV1Service) CreateSystemPrompt(c echo.Context) error {
	ctx := c.Request().Context()
	userID := auth.GetUserIDFromContext(ctx)

	request := &CreateSystemPromptRequest{}
	if err := c.Bind(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if request.Name == "" || request.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name and content are required")
	}

	prompt, err := s.Store.CreateSystemPrompt(ctx, &store.SystemPrompt{
		ID:        shortuuid.New(),
		CreatorID: userID,
		CreatedTs: time.Now().Unix(),
		Name:      request.Name,
		Content:   request.Content,
		IsDefault: request.IsDefault,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create system prompt").SetInternal(err)
	}
	return c.JSON(http.StatusCreated, convertSystemPrompt(prompt))
}

// UpdateSystemPrompt applies a partial update to an owned prompt.
func (s *APIV1Service) UpdateSystemPrompt(c echo.Context) error {
	ctx := c.Request().Context()
	userID := auth.GetUserIDFromContext(ctx)

	promptID := c.QueryParam("id")
	if promptID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "prompt id is required")
	}
	request := &UpdateSystemPromptRequest{}
	if err := c.Bind(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if request.Name != nil && *request.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name cannot be empty")
	}
	if request.Content != nil && *request.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content cannot be empty")
	}

	if _, err := s.findOwnedPrompt(c, promptID, userID); err != nil {
		return err
	}
	prompt, err := s.Store.UpdateSystemPrompt(ctx, &store.UpdateSystemPrompt{
		ID:        promptID,
		Name:      request.Name,
		Content:   request.Content,
		IsDefault: request.IsDefault,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update system prompt").SetInternal(err)
	}
	return c.JSON(http.StatusOK, convertSystemPrompt(prompt))
}

// DeleteSystemPrompt removes an owned prompt. Chats referencing it keep
// existing with the reference cleared.
func (s *APIV1Service) DeleteSystemPrompt(c echo.Context) error {
	ctx := c.Request().Context()
	userID := auth.GetUserIDFromContext(ctx)

	promptID := c.QueryParam("id")
	if promptID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "prompt id is required")
	}
	if _, err := s.findOwnedPrompt(c, promptID, userID); err != nil {
		return err
	}
	if err := s.Store.DeleteSystemPrompt(ctx, &store.DeleteSystemPrompt{ID: promptID}); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete system prompt").SetInternal(err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}
