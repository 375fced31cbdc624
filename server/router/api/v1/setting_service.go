package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/MelonGO/gemini-chatbot/plugin/ai"
	"github.com/MelonGO/gemini-chatbot/server/auth"
	"github.com/MelonGO/gemini-chatbot/store"
)

type ModelSettingResponse struct {
	ModelID string `json:"modelId"`
}

type UpdateModelSettingRequest struct {
	ModelID string `json:"modelId"`
}

// GetModelSetting returns the caller's selected model id, falling back
// to the catalog default when none was saved.
func (s *APIV1Service) GetModelSetting(c echo.Context) error {
	ctx := c.Request().Context()
	userID := auth.GetUserIDFromContext(ctx)

	setting, err := s.Store.GetUserSetting(ctx, &store.FindUserSetting{
		UserID: userID,
		Key:    store.UserSettingKeyModelID,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load model setting").SetInternal(err)
	}

	modelID := ai.DefaultModelID
	if setting != nil && ai.IsKnownModel(setting.Value) {
		modelID = setting.Value
	}
	return c.JSON(http.StatusOK, &ModelSettingResponse{ModelID: modelID})
}

// UpdateModelSetting saves the caller's model selection.
func (s *APIV1Service) UpdateModelSetting(c echo.Context) error {
	ctx := c.Request().Context()
	userID := auth.GetUserIDFromContext(ctx)

	request := &UpdateModelSettingRequest{}
	if err := c.Bind(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if !ai.IsKnownModel(request.ModelID) {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown model id")
	}

	if _, err := s.Store.UpsertUserSetting(ctx, &store.UserSetting{
		UserID: userID,
		Key:    store.UserSettingKeyModelID,
		Value:  request.ModelID,
	}); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to save model setting").SetInternal(err)
	}
	return c.JSON(http.StatusOK, &ModelSettingResponse{ModelID: request.ModelID})
}
