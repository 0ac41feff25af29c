package kratos

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"session-hub/app/domain"
	"session-hub/app/port"
)

// Watcher polls the identity provider and turns session differences into an
// ordered event stream. The first successful lookup produces an initial
// event, even when it confirms no session exists, so subscribers can finish
// hydrating. A failed lookup produces nothing: absence the provider never
// confirmed must not be reported as absence.
type Watcher struct {
	provider *Provider
	clock    port.Clock
	interval time.Duration
	logger   *slog.Logger

	events chan domain.SessionEvent
	nudge  chan struct{}

	last        *domain.IdentitySession
	initialSent bool
}

// NewWatcher creates a session change poller. It does nothing until Run.
func NewWatcher(provider *Provider, clock port.Clock, interval time.Duration, logger *slog.Logger) *Watcher {
	return &Watcher{
		provider: provider,
		clock:    clock,
		interval: interval,
		logger:   logger,
		events:   make(chan domain.SessionEvent, 8),
		nudge:    make(chan struct{}, 1),
	}
}

// Events returns the event stream. Closed when Run returns.
func (w *Watcher) Events() <-chan domain.SessionEvent {
	return w.events
}

// Nudge asks for an immediate poll, coalescing with any pending one.
func (w *Watcher) Nudge() {
	select {
	case w.nudge <- struct{}{}:
	default:
	}
}

// Run polls until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.events)

	w.emitInitial(ctx)

	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			w.poll(ctx)
		case <-w.nudge:
			w.poll(ctx)
		}
	}
}

func (w *Watcher) emitInitial(ctx context.Context) {
	session, err := w.lookup(ctx)
	if err != nil {
		// Provider unreachable. Emitting nothing here is the point: an
		// initial nil-session event means confirmed absence, and this is
		// not that. The first successful poll delivers the initial view.
		w.logger.Warn("initial session lookup failed", "error", err)
		return
	}

	w.initialSent = true
	w.last = session

	event := domain.SessionEvent{Type: domain.EventInitial, Session: session}
	select {
	case w.events <- event:
	case <-ctx.Done():
	}
}

func (w *Watcher) poll(ctx context.Context) {
	session, err := w.lookup(ctx)
	if err != nil {
		// Unknown state. Keep the last view rather than reporting a
		// logout we cannot confirm.
		w.logger.Debug("session poll failed", "error", err)
		return
	}

	if !w.initialSent {
		w.initialSent = true
		w.last = session

		event := domain.SessionEvent{Type: domain.EventInitial, Session: session}
		select {
		case w.events <- event:
		case <-ctx.Done():
		}
		return
	}

	if sameSessionView(w.last, session) {
		w.last = session
		return
	}
	w.last = session

	event := domain.SessionEvent{Type: domain.EventChanged, Session: session}
	if session == nil {
		event.Type = domain.EventNone
	}

	select {
	case w.events <- event:
	case <-ctx.Done():
	}
}

// lookup distinguishes confirmed absence (nil, nil) from provider failure.
func (w *Watcher) lookup(ctx context.Context) (*domain.IdentitySession, error) {
	session, err := w.provider.GetSession(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNoSession) ||
			errors.Is(err, domain.ErrSessionInactive) ||
			errors.Is(err, domain.ErrMissingIdentity) {
			return nil, nil
		}
		return nil, err
	}
	return session, nil
}

func sameSessionView(a, b *domain.IdentitySession) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.ID == b.ID &&
		a.SubjectID == b.SubjectID &&
		a.Token == b.Token &&
		a.ExpiresAt.Equal(b.ExpiresAt)
}
