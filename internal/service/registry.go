package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Workspace is the in-memory state owned by one session.
type Workspace struct {
	Session *domain.Session
	Cart    *CartManager

	mu       sync.Mutex
	checkout *Checkout
}

// Checkout returns the current checkout, or nil if none was started.
func (w *Workspace) Checkout() *Checkout {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.checkout
}

// Registry maps session ids to workspaces. A workspace is created at login,
// rebuilt lazily for a session found in the session store, and destroyed at
// logout.
type Registry struct {
	sessions cache.SessionStore
	remote   CartRemote
	local    cache.LocalCart
	deps     CheckoutDeps
	log      *zap.Logger

	mu         sync.RWMutex
	workspaces map[string]*Workspace
}

func NewRegistry(sessions cache.SessionStore, remote CartRemote, local cache.LocalCart, deps CheckoutDeps, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	if deps.Log == nil {
		deps.Log = log
	}
	return &Registry{
		sessions:   sessions,
		remote:     remote,
		local:      local,
		deps:       deps,
		log:        log,
		workspaces: make(map[string]*Workspace),
	}
}

// Login creates the session handed over by the auth service.
func (r *Registry) Login(ctx context.Context, s domain.Session) (*Workspace, error) {
	s.UserID = strings.TrimSpace(s.UserID)
	if err := s.Validate(); err != nil {
		return nil, err
	}
	s.ID = uuid.NewString()
	s.CreatedAt = time.Now().UTC()

	if err := r.sessions.Save(ctx, &s); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	ws := r.newWorkspace(ctx, &s)
	r.mu.Lock()
	r.workspaces[s.ID] = ws
	r.mu.Unlock()

	r.log.Info("session created", zap.String("session_id", s.ID), zap.String("user_id", s.UserID), zap.String("role", string(s.Role)))
	return ws, nil
}

// Logout destroys the session and everything it owns.
func (r *Registry) Logout(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	ws, ok := r.workspaces[sessionID]
	delete(r.workspaces, sessionID)
	r.mu.Unlock()

	if ok {
		if co := ws.Checkout(); co != nil && !co.Status().IsTerminal() {
			if err := co.Abandon(ctx); err != nil {
				r.log.Debug("checkout not abandoned at logout", zap.Error(err))
			}
		}
	}

	if err := r.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	r.log.Info("session destroyed", zap.String("session_id", sessionID))
	return nil
}

// Resolve returns the workspace of sessionID, or domain.ErrSessionNotFound.
func (r *Registry) Resolve(ctx context.Context, sessionID string) (*Workspace, error) {
	r.mu.RLock()
	ws, ok := r.workspaces[sessionID]
	r.mu.RUnlock()
	if ok {
		return ws, nil
	}

	s, err := r.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	built := r.newWorkspace(ctx, s)

	r.mu.Lock()
	defer r.mu.Unlock()
	if ws, ok := r.workspaces[sessionID]; ok {
		return ws, nil
	}
	r.workspaces[sessionID] = built
	return built, nil
}

// newWorkspace builds the in-memory state of s. Lines a previous session of
// the same user left in the local cart are carried over.
func (r *Registry) newWorkspace(ctx context.Context, s *domain.Session) *Workspace {
	cart := NewCartManager(s, r.remote, r.local, r.log)
	if err := cart.RestorePending(ctx); err != nil {
		r.log.Warn("failed to restore local cart", zap.String("user_id", s.UserID), zap.Error(err))
	}
	return &Workspace{Session: s, Cart: cart}
}

// StartCheckout begins a new checkout for ws, abandoning an unfinished one.
func (r *Registry) StartCheckout(ctx context.Context, ws *Workspace) (*Checkout, *CheckoutView, error) {
	co := NewCheckout(ws.Session, ws.Cart, r.deps)
	view, err := co.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}

	ws.mu.Lock()
	prev := ws.checkout
	ws.checkout = co
	ws.mu.Unlock()

	if prev != nil && !prev.Status().IsTerminal() {
		if err := prev.Abandon(ctx); err != nil {
			r.log.Debug("previous checkout not abandoned", zap.Error(err))
		}
	}
	return co, view, nil
}
