package v1

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/MelonGO/gemini-chatbot/internal/profile"
	"github.com/MelonGO/gemini-chatbot/server/auth"
	svcerrors "github.com/MelonGO/gemini-chatbot/server/internal/errors"
	"github.com/MelonGO/gemini-chatbot/server/middleware"
	"github.com/MelonGO/gemini-chatbot/server/service/chat"
	"github.com/MelonGO/gemini-chatbot/store"
)

type APIV1Service struct {
	Secret      string
	Profile     *profile.Profile
	Store       *store.Store
	ChatService *chat.Service

	authenticator *auth.Authenticator

	// chatLimiter throttles generation requests per user to keep one
	// misbehaving client from draining the provider quota.
	chatLimiter *middleware.RateLimiter
}

func NewAPIV1Service(secret string, profile *profile.Profile, store *store.Store, chatService *chat.Service) *APIV1Service {
	return &APIV1Service{
		Secret:        secret,
		Profile:       profile,
		Store:         store,
		ChatService:   chatService,
		authenticator: auth.NewAuthenticator(store, secret),
		chatLimiter:   middleware.NewRateLimiter(time.Second, 5),
	}
}

// Register mounts all v1 routes on the given Echo instance.
func (s *APIV1Service) Register(echoServer *echo.Echo) {
	g := echoServer.Group("/api/v1")

	g.POST("/auth/signup", s.SignUp)
	g.POST("/auth/signin", s.SignIn)

	authed := g.Group("", s.authMiddleware)
	authed.POST("/chat", s.PostChat, s.chatRateLimitMiddleware)
	authed.POST("/chat/regenerate", s.RegenerateChat, s.chatRateLimitMiddleware)
	authed.GET("/chat", s.GetChat)
	authed.PATCH("/chat", s.PatchChat)
	authed.DELETE("/chat", s.DeleteChat)

	authed.GET("/system-prompts", s.ListSystemPrompts)
	authed.POST("/system-prompts", s.CreateSystemPrompt)
	authed.PATCH("/system-prompts", s.UpdateSystemPrompt)
	authed.DELETE("/system-prompts", s.DeleteSystemPrompt)

	authed.GET("/settings/model", s.GetModelSetting)
	authed.PATCH("/settings/model", s.UpdateModelSetting)
}

// authMiddleware enforces bearer authentication and stores the user id
// in the request context.
func (s *APIV1Service) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		user, err := s.authenticator.Authenticate(ctx, c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
		}
		ctx = auth.SetUserIDInContext(ctx, user.ID)
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

func (s *APIV1Service) chatRateLimitMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID := auth.GetUserIDFromContext(c.Request().Context())
		if !s.chatLimiter.Allow(userID) {
			return echo.NewHTTPError(http.StatusTooManyRequests, "too many generation requests")
		}
		return next(c)
	}
}

// httpError maps a service error to its HTTP response.
func httpError(err error) *echo.HTTPError {
	code := svcerrors.GetCodeFromError(err, svcerrors.ErrCodeStoreUnavailable)
	status := http.StatusInternalServerError
	switch code {
	case svcerrors.ErrCodeUnauthorized:
		status = http.StatusUnauthorized
	case svcerrors.ErrCodeForbidden:
		status = http.StatusForbidden
	case svcerrors.ErrCodeNotFound:
		status = http.StatusNotFound
	case svcerrors.ErrCodeInvalidArgument, svcerrors.ErrCodeOutOfRange:
		status = http.StatusBadRequest
	case svcerrors.ErrCodeSessionBusy:
		status = http.StatusConflict
	case svcerrors.ErrCodeStoreUnavailable, svcerrors.ErrCodeGenerationFailed:
		status = http.StatusInternalServerError
	}
	message := err.Error()
	if svcErr, ok := err.(*svcerrors.ServiceError); ok {
		message = svcErr.Message
	}
	return echo.NewHTTPError(status, message)
}
