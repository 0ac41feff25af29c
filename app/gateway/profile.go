package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"session-hub/app/domain"
	"session-hub/app/utils/validator"
)

// DefaultFetchTimeout bounds a single profile fetch. A fetch that exceeds it
// is cancelled and classified transient, never fatal.
const DefaultFetchTimeout = 15 * time.Second

// ProfileGateway resolves an email address to an application-user record via
// the backend profile API and classifies every possible result into the
// fixed outcome taxonomy. It implements port.ProfileGateway.
//
// Classification is the load-bearing part: only a backend-confirmed 404 or
// an explicit isActive=false may produce a fatal outcome. Everything else,
// including timeouts, cancellations and malformed bodies, collapses into
// transient so the session is never destroyed on hearsay. The gateway only
// classifies; revoking the provider session on a fatal outcome belongs to
// the lifecycle controller, which does it exactly once.
type ProfileGateway struct {
	baseURL    string
	httpClient *http.Client
	validate   *validator.Validator
	timeout    time.Duration
	logger     *slog.Logger
}

// NewProfileGateway creates a gateway against the backend profile API.
func NewProfileGateway(baseURL string, httpClient *http.Client, timeout time.Duration, logger *slog.Logger) *ProfileGateway {
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}

	return &ProfileGateway{
		baseURL:    baseURL,
		httpClient: httpClient,
		validate:   validator.New(),
		timeout:    timeout,
		logger:     logger.With("component", "profile_gateway"),
	}
}

type profileRequest struct {
	Email string `json:"email"`
}

// FetchProfile issues one POST /auth/user bound to the configured timeout.
// It never returns an error; every path settles into an outcome.
func (g *ProfileGateway) FetchProfile(ctx context.Context, email string) domain.FetchResult {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	body, err := json.Marshal(profileRequest{Email: email})
	if err != nil {
		g.logger.Error("failed to encode profile request", "error", err)
		return domain.FetchResult{Outcome: domain.OutcomeTransient}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/auth/user", bytes.NewReader(body))
	if err != nil {
		g.logger.Error("failed to build profile request", "error", err)
		return domain.FetchResult{Outcome: domain.OutcomeTransient}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		// Network failure, timeout or cancellation. The backend confirmed
		// nothing, so the outcome is transient.
		g.logger.Warn("profile fetch did not complete", "error", err)
		return domain.FetchResult{Outcome: domain.OutcomeTransient}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return g.classifyOK(resp)
	case http.StatusNotFound:
		g.logger.Info("backend confirmed user does not exist")
		return domain.FetchResult{Outcome: domain.OutcomeNotFound}
	default:
		g.logger.Warn("unexpected profile API status", "status", resp.StatusCode)
		return domain.FetchResult{Outcome: domain.OutcomeTransient}
	}
}

func (g *ProfileGateway) classifyOK(resp *http.Response) domain.FetchResult {
	var user domain.AuthUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		g.logger.Warn("malformed profile payload", "error", err)
		return domain.FetchResult{Outcome: domain.OutcomeTransient}
	}

	if err := g.validate.Validate(&user); err != nil {
		g.logger.Warn("profile payload failed validation", "error", err)
		return domain.FetchResult{Outcome: domain.OutcomeTransient}
	}

	if !user.IsActive {
		g.logger.Info("backend confirmed user is disabled", "user_id", user.ID)
		return domain.FetchResult{Outcome: domain.OutcomeInactive}
	}

	return domain.FetchResult{
		Outcome: domain.OutcomeSuccess,
		User:    &user,
	}
}

// SignOutServer clears server-held cookies via POST /auth/signout.
func (g *ProfileGateway) SignOutServer(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/auth/signout", nil)
	if err != nil {
		return fmt.Errorf("failed to build sign-out request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("server sign-out failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("server sign-out returned status %d", resp.StatusCode)
	}

	return nil
}
