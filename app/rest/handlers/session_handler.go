package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"session-hub/app/port"
)

// TokenSink receives session tokens handed over by the host after it
// completed a sign-in flow.
type TokenSink interface {
	SetToken(token string)
}

// VisibilityReporter receives host visibility transitions.
type VisibilityReporter interface {
	Notify()
}

// SessionHandler exposes the session lifecycle over HTTP.
type SessionHandler struct {
	manager    port.SessionManager
	tokens     TokenSink
	visibility VisibilityReporter
	logger     *slog.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(manager port.SessionManager, tokens TokenSink, visibility VisibilityReporter, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		manager:    manager,
		tokens:     tokens,
		visibility: visibility,
		logger:     logger,
	}
}

// SignInRequest is the body for the Google sign-in endpoint.
type SignInRequest struct {
	ReturnTo string `json:"returnTo"`
}

// SignInResponse carries the OAuth redirect URL.
type SignInResponse struct {
	RedirectURL string `json:"redirectUrl"`
}

// TokenRequest is the body for the token hand-over endpoint.
type TokenRequest struct {
	SessionToken string `json:"sessionToken"`
}

// GetState returns a snapshot of the lifecycle state.
func (h *SessionHandler) GetState(c echo.Context) error {
	return c.JSON(http.StatusOK, h.manager.State())
}

// SignInWithGoogle starts the OAuth flow and returns the redirect URL.
func (h *SessionHandler) SignInWithGoogle(c echo.Context) error {
	var req SignInRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body",
		})
	}
	if req.ReturnTo == "" {
		req.ReturnTo = "/"
	}

	url, err := h.manager.SignInWithGoogle(c.Request().Context(), req.ReturnTo)
	if err != nil {
		h.logger.Error("sign-in initiation failed",
			"error", err,
			"return_to", req.ReturnTo)
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error: "failed to initiate sign-in",
			Code:  "SIGNIN_FAILED",
		})
	}

	return c.JSON(http.StatusOK, SignInResponse{RedirectURL: url})
}

// SignOut tears the session down. Always succeeds from the caller's view.
func (h *SessionHandler) SignOut(c echo.Context) error {
	h.manager.SignOut(c.Request().Context())
	return c.NoContent(http.StatusNoContent)
}

// Refresh requests an immediate token refresh.
func (h *SessionHandler) Refresh(c echo.Context) error {
	h.manager.RefreshSession(c.Request().Context())
	return c.NoContent(http.StatusAccepted)
}

// UpdateToken accepts a session token from the host.
func (h *SessionHandler) UpdateToken(c echo.Context) error {
	var req TokenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body",
		})
	}
	if req.SessionToken == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "sessionToken is required",
		})
	}

	h.tokens.SetToken(req.SessionToken)
	h.logger.Info("session token updated")
	return c.NoContent(http.StatusNoContent)
}

// Visibility records that the host became visible again.
func (h *SessionHandler) Visibility(c echo.Context) error {
	h.visibility.Notify()
	return c.NoContent(http.StatusNoContent)
}
