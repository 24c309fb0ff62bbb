package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"

	"github.com/taxentia/taxentia-api/internal/api/middleware"
	"github.com/taxentia/taxentia-api/internal/core/domain"
	"github.com/taxentia/taxentia-api/internal/core/ports"
)

// sessionMaxAge bounds how long a login cookie stays valid, in seconds.
const sessionMaxAge = 24 * 60 * 60

// UsageReader reports how many research queries a user has spent today.
type UsageReader interface {
	Used(ctx context.Context, userID string) (int, error)
}

type AuthHandler struct {
	authService ports.AuthService
	usage       UsageReader
}

// NewAuthHandler builds the auth endpoints. usage may be nil when no quota
// store is wired; /auth/me then reports zero queries used.
func NewAuthHandler(authService ports.AuthService, usage UsageReader) *AuthHandler {
	return &AuthHandler{authService: authService, usage: usage}
}

// Register creates a new user account.
//
// @Summary      Register a new user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "Account details"
// @Success      201   {object}  authResponse
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, err := h.authService.Register(c.Request().Context(), ports.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Username: req.Username,
		FullName: req.FullName,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, authResponse{User: user})
}

// Login authenticates a user, opens a cookie session for browser clients and
// returns a JWT for programmatic ones.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  authResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	token, user, err := h.authService.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	h.openSession(c, user)
	return c.JSON(http.StatusOK, authResponse{Token: token, User: user})
}

// Logout clears the cookie session. Bearer tokens stay valid until expiry.
//
// @Summary      Logout
// @Tags         auth
// @Success      204  "session cleared"
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	if sess, err := session.Get(middleware.SessionName, c); err == nil {
		sess.Options = &sessions.Options{
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		}
		sess.Values = map[interface{}]interface{}{}
		_ = sess.Save(c.Request(), c.Response())
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the authenticated user's profile and quota state.
//
// @Summary      Current user
// @Tags         auth
// @Produce      json
// @Success      200  {object}  meResponse
// @Failure      401  {object}  map[string]string
// @Router       /auth/me [get]
// @Security     BearerAuth
func (h *AuthHandler) Me(c echo.Context) error {
	userID, err := ctxUserID(c)
	if err != nil {
		return err
	}

	user, err := h.authService.UserByID(c.Request().Context(), userID)
	if err != nil {
		// A valid credential for a deleted account is still unauthenticated.
		if errors.Is(err, domain.ErrUserNotFound) {
			return echo.NewHTTPError(http.StatusUnauthorized, "account no longer exists")
		}
		return err
	}

	if h.usage != nil {
		if used, err := h.usage.Used(c.Request().Context(), userID); err == nil {
			user.QueriesUsed = used
		}
	}

	return c.JSON(http.StatusOK, meResponse{
		User:       user,
		DailyLimit: domain.DailyQueryLimit(user.Tier),
	})
}

// openSession attaches the cookie session for browser clients. Session
// issuance failing is not fatal: the JWT in the response body still works.
func (h *AuthHandler) openSession(c echo.Context, user *domain.User) {
	sess, err := session.Get(middleware.SessionName, c)
	if err != nil {
		return
	}
	sess.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	sess.Values["user_id"] = user.ID
	sess.Values["tier"] = user.Tier
	_ = sess.Save(c.Request(), c.Response())
}
