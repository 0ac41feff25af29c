package kratos

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	kratosclient "github.com/ory/kratos-client-go"

	"session-hub/app/domain"
	"session-hub/app/port"
)

// Provider implements port.IdentityProvider on top of Ory Kratos. It holds
// the session token handed over by the host and exposes a polling change
// stream through its Watcher.
type Provider struct {
	client  *Client
	watcher *Watcher
	logger  *slog.Logger

	mu    sync.RWMutex
	token string
}

// NewProvider creates a Kratos-backed identity provider. The watcher is not
// started; call Watch from the composition root.
func NewProvider(client *Client, clock port.Clock, pollInterval time.Duration, initialToken string, logger *slog.Logger) *Provider {
	p := &Provider{
		client: client,
		logger: logger,
		token:  initialToken,
	}
	p.watcher = NewWatcher(p, clock, pollInterval, logger)
	return p
}

// SetToken replaces the session token, typically after the host completed a
// sign-in flow. The watcher is nudged so the change surfaces immediately.
func (p *Provider) SetToken(token string) {
	p.mu.Lock()
	p.token = token
	p.mu.Unlock()

	p.watcher.Nudge()
}

func (p *Provider) currentToken() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.token
}

// Watch runs the session change poller until ctx is cancelled.
func (p *Provider) Watch(ctx context.Context) {
	p.watcher.Run(ctx)
}

// Events returns the session change stream.
func (p *Provider) Events() <-chan domain.SessionEvent {
	return p.watcher.Events()
}

// GetSession asks Kratos who the current token belongs to.
func (p *Provider) GetSession(ctx context.Context) (*domain.IdentitySession, error) {
	token := p.currentToken()
	if token == "" {
		return nil, domain.ErrNoSession
	}

	session, resp, err := p.client.PublicAPI().FrontendAPI.ToSession(ctx).XSessionToken(token).Execute()
	if err != nil {
		if resp != nil {
			if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
				return nil, domain.ErrNoSession
			}
			return nil, fmt.Errorf("%w: kratos returned status %d", domain.ErrIdentityUnavailable, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrIdentityUnavailable, err)
	}

	return p.toDomainSession(session, token)
}

func (p *Provider) toDomainSession(session *kratosclient.Session, token string) (*domain.IdentitySession, error) {
	if session.Active != nil && !*session.Active {
		return nil, domain.ErrSessionInactive
	}
	if session.Identity == nil {
		return nil, domain.ErrMissingIdentity
	}

	email := ""
	if traits, ok := session.Identity.Traits.(map[string]interface{}); ok {
		if emailVal, ok := traits["email"]; ok {
			if emailStr, ok := emailVal.(string); ok {
				email = emailStr
			}
		}
	}

	var expiresAt time.Time
	if session.ExpiresAt != nil {
		expiresAt = *session.ExpiresAt
	}

	out, err := domain.NewIdentitySession(session.Id, session.Identity.Id, email, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMissingIdentity, err)
	}
	out.Token = token
	if session.IssuedAt != nil {
		out.IssuedAt = *session.IssuedAt
	}
	return out, nil
}

// Refresh extends the current session's expiry through the admin API and
// returns the re-read session.
func (p *Provider) Refresh(ctx context.Context) (*domain.IdentitySession, error) {
	current, err := p.GetSession(ctx)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/admin/sessions/%s/extend", p.client.GetAdminURL(), current.ID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRefreshFailed, err)
	}

	resp, err := p.client.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRefreshFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: kratos admin returned status %d", domain.ErrRefreshFailed, resp.StatusCode)
	}

	refreshed, err := p.GetSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRefreshFailed, err)
	}

	p.logger.Info("session extended",
		"session_id", refreshed.ID,
		"expires_at", refreshed.ExpiresAt)
	return refreshed, nil
}

// SignOut revokes the session. Local scope invalidates only the held token;
// global scope revokes every session of the identity first.
func (p *Provider) SignOut(ctx context.Context, scope port.SignOutScope) error {
	token := p.currentToken()
	if token == "" {
		return nil
	}

	if scope == port.SignOutGlobal {
		if current, err := p.GetSession(ctx); err == nil {
			if err := p.revokeAllSessions(ctx, current.SubjectID); err != nil {
				p.logger.Warn("failed to revoke all sessions", "error", err)
			}
		}
	}

	body := kratosclient.PerformNativeLogoutBody{SessionToken: token}
	resp, err := p.client.PublicAPI().FrontendAPI.PerformNativeLogout(ctx).
		PerformNativeLogoutBody(body).
		Execute()

	// The token is dropped regardless. An already-dead session is not an
	// error from the caller's point of view.
	p.mu.Lock()
	p.token = ""
	p.mu.Unlock()
	p.watcher.Nudge()

	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil
		}
		return fmt.Errorf("kratos logout failed: %w", err)
	}
	return nil
}

func (p *Provider) revokeAllSessions(ctx context.Context, identityID string) error {
	url := fmt.Sprintf("%s/admin/identities/%s/sessions", p.client.GetAdminURL(), identityID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}

	resp, err := p.client.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("kratos admin returned status %d", resp.StatusCode)
	}
	return nil
}

// OAuthRedirectURL starts a browser login flow and returns the URL the
// consumer must be redirected to for the named OIDC provider.
func (p *Provider) OAuthRedirectURL(ctx context.Context, provider, returnTo string) (string, error) {
	flow, resp, err := p.client.PublicAPI().FrontendAPI.CreateBrowserLoginFlow(ctx).
		ReturnTo(returnTo).
		Execute()
	if err != nil {
		if resp != nil {
			return "", fmt.Errorf("%w: kratos returned status %d", domain.ErrSignInFailed, resp.StatusCode)
		}
		return "", fmt.Errorf("%w: %w", domain.ErrSignInFailed, err)
	}

	p.logger.Info("login flow created",
		"flow_id", flow.Id,
		"provider", provider)
	return flow.RequestUrl, nil
}
