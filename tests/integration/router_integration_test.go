package integration

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"session-hub/app/domain"
	mock_port "session-hub/app/mocks"
	"session-hub/app/rest"
)

type stubTokenSink struct {
	tokens []string
}

func (s *stubTokenSink) SetToken(token string) { s.tokens = append(s.tokens, token) }

type stubVisibility struct {
	notified int
}

func (s *stubVisibility) Notify() { s.notified++ }

type stubChecker struct {
	err error
}

func (s *stubChecker) HealthCheck(context.Context) error { return s.err }

// RouterIntegrationTestSuite exercises the fully wired HTTP surface.
type RouterIntegrationTestSuite struct {
	suite.Suite
	ctrl        *gomock.Controller
	mockManager *mock_port.MockSessionManager
	tokens      *stubTokenSink
	visibility  *stubVisibility
	checker     *stubChecker
	echo        *echo.Echo
}

func (s *RouterIntegrationTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockManager = mock_port.NewMockSessionManager(s.ctrl)
	s.tokens = &stubTokenSink{}
	s.visibility = &stubVisibility{}
	s.checker = &stubChecker{}

	s.echo = rest.NewRouter(rest.RouterConfig{
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Manager:    s.mockManager,
		Tokens:     s.tokens,
		Visibility: s.visibility,
		Identity:   s.checker,
	})
}

func (s *RouterIntegrationTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *RouterIntegrationTestSuite) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func (s *RouterIntegrationTestSuite) TestStateRoute() {
	s.mockManager.EXPECT().State().Return(domain.LifecycleState{
		Phase: domain.PhaseNoSession,
	})

	rec := s.do(http.MethodGet, "/v1/session/state", "")

	assert.Equal(s.T(), http.StatusOK, rec.Code)

	var payload map[string]any
	require.NoError(s.T(), json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(s.T(), "no_session", payload["phase"])
}

func (s *RouterIntegrationTestSuite) TestSignInRoute() {
	s.mockManager.EXPECT().
		SignInWithGoogle(gomock.Any(), "/app").
		Return("https://accounts.example.com/oauth", nil)

	rec := s.do(http.MethodPost, "/v1/session/signin/google", `{"returnTo": "/app"}`)

	assert.Equal(s.T(), http.StatusOK, rec.Code)
	assert.Contains(s.T(), rec.Body.String(), "https://accounts.example.com/oauth")
}

func (s *RouterIntegrationTestSuite) TestSignOutRoute() {
	s.mockManager.EXPECT().SignOut(gomock.Any())

	rec := s.do(http.MethodPost, "/v1/session/signout", "")
	assert.Equal(s.T(), http.StatusNoContent, rec.Code)
}

func (s *RouterIntegrationTestSuite) TestRefreshRoute() {
	s.mockManager.EXPECT().RefreshSession(gomock.Any())

	rec := s.do(http.MethodPost, "/v1/session/refresh", "")
	assert.Equal(s.T(), http.StatusAccepted, rec.Code)
}

func (s *RouterIntegrationTestSuite) TestTokenHandOver() {
	rec := s.do(http.MethodPost, "/v1/session/token", `{"sessionToken": "tok-1"}`)

	assert.Equal(s.T(), http.StatusNoContent, rec.Code)
	assert.Equal(s.T(), []string{"tok-1"}, s.tokens.tokens)
}

func (s *RouterIntegrationTestSuite) TestVisibilityRoute() {
	rec := s.do(http.MethodPost, "/v1/session/visibility", "")

	assert.Equal(s.T(), http.StatusNoContent, rec.Code)
	assert.Equal(s.T(), 1, s.visibility.notified)
}

func (s *RouterIntegrationTestSuite) TestHealthRoutes() {
	rec := s.do(http.MethodGet, "/v1/health", "")
	assert.Equal(s.T(), http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/v1/ready", "")
	assert.Equal(s.T(), http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/v1/live", "")
	assert.Equal(s.T(), http.StatusOK, rec.Code)
}

func (s *RouterIntegrationTestSuite) TestUnknownRoute() {
	rec := s.do(http.MethodGet, "/v1/unknown", "")
	assert.Equal(s.T(), http.StatusNotFound, rec.Code)
}

func TestRouterIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(RouterIntegrationTestSuite))
}
