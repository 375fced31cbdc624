package v1

import (
	"net/http"
	"net/mail"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/lithammer/shortuuid/v4"

	"github.com/MelonGO/gemini-chatbot/server/auth"
	"github.com/MelonGO/gemini-chatbot/store"
)

type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string        `json:"token"`
	User  *UserResponse `json:"user"`
}

type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (s *APIV1Service) SignUp(c echo.Context) error {
	ctx := c.Request().Context()
	request := &SignUpRequest{}
	if err := c.Bind(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if _, err := mail.ParseAddress(request.Email); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid email address")
	}
	if len(request.Password) < 6 {
		return echo.NewHTTPError(http.StatusBadRequest, "password must be at least 6 characters")
	}

	existing, err := s.Store.GetUser(ctx, &store.FindUser{Email: &request.Email})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to look up user").SetInternal(err)
	}
	if existing != nil {
		return echo.NewHTTPError(http.StatusConflict, "email is already registered")
	}

	passwordHash, err := auth.HashPassword(request.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to hash password").SetInternal(err)
	}
	user, err := s.Store.CreateUser(ctx, &store.User{
		ID:           shortuuid.New(),
		CreatedTs:    time.Now().Unix(),
		Email:        request.Email,
		PasswordHash: passwordHash,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create user").SetInternal(err)
	}

	token, err := auth.GenerateAccessToken(user.ID, s.Secret)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to issue access token").SetInternal(err)
	}
	return c.JSON(http.StatusCreated, &AuthResponse{
		Token: token,
		User:  &UserResponse{ID: user.ID, Email: user.Email},
	})
}

func (s *APIV1Service) SignIn(c echo.Context) error {
	ctx := c.Request().Context()
	request := &SignInRequest{}
	if err := c.Bind(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	user, err := s.Store.GetUser(ctx, &store.FindUser{Email: &request.Email})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to look up user").SetInternal(err)
	}
	// Unknown email and wrong password answer identically.
	if user == nil || !auth.CheckPassword(user.PasswordHash, request.Password) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid email or password")
	}

	token, err := auth.GenerateAccessToken(user.ID, s.Secret)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to issue access token").SetInternal(err)
	}
	return c.JSON(http.StatusOK, &AuthResponse{
		Token: token,
		User:  &UserResponse{ID: user.ID, Email: user.Email},
	})
}
