// Package session owns the authenticated principal for the lifetime of the
// portal process. The Store is created explicitly, restored from the
// identity provider's auth-state stream, mutated only through Login,
// Register and Logout, and passed by reference to anything that needs the
// current company, never accessed as ambient global state.
package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	e "github.com/internlink/company-portal/internal/portal/errors"
	"github.com/internlink/company-portal/internal/portal/identity"
	"github.com/internlink/company-portal/internal/portal/models"
)

// Gateway is the slice of the backend gateway the session store needs.
type Gateway interface {
	RegisterCompany(ctx context.Context, data *models.RegisterData) (*models.Company, error)
	ExchangeToken(ctx context.Context, idToken string) (*models.Company, error)
}

// TokenWriter persists and removes the durable bearer token.
type TokenWriter interface {
	Put(ctx context.Context, token string) error
	Delete(ctx context.Context) error
}

// errSuperseded reports that a newer auth event took over while this work
// was still in flight.
var errSuperseded = errors.New("superseded by a newer auth event")

// Store holds the current company and the ready flag. Exactly one of three
// states holds at any time: initial (no company, not ready), unauthenticated
// (no company, ready), authenticated (company, ready).
type Store struct {
	provider identity.Provider
	gateway  Gateway
	tokens   TokenWriter
	logger   *zap.Logger

	mu      sync.Mutex
	company *models.Company
	ready   bool

	// gen guards against out-of-order completion of the async work each
	// auth-state event triggers: a completion may only mutate state, in
	// memory or in the token store, while its generation is still the
	// latest issued.
	gen uint64

	// logins counts Login calls in flight; while nonzero the auth-state
	// subscription leaves credential events to Login.
	logins int

	unsubscribe func()
}

// NewStore constructs a session store wired to the identity provider, the
// backend gateway, and the durable token store.
func NewStore(provider identity.Provider, gw Gateway, tokens TokenWriter, logger *zap.Logger) *Store {
	return &Store{
		provider: provider,
		gateway:  gw,
		tokens:   tokens,
		logger:   logger.Named("session"),
	}
}

// Restore subscribes to the provider's auth-state stream. Each event
// resolves the credential (if any) into a company via the backend; the
// first event, successful or not, flips the store to ready.
func (s *Store) Restore(ctx context.Context) {
	s.unsubscribe = s.provider.OnAuthStateChanged(func(cred *identity.Credential) {
		if cred != nil && s.loginInFlight() {
			// Login resolves the credential it just created itself; a
			// second resolution here would double the token fetch and
			// the exchange.
			return
		}
		gen := s.nextGen()
		go s.handleAuthEvent(ctx, gen, cred)
	})
}

// Close detaches the store from the auth-state stream.
func (s *Store) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

// Snapshot returns the current company (nil when unauthenticated) and
// whether the initial auth check has completed.
func (s *Store) Snapshot() (*models.Company, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.company, s.ready
}

// Login authenticates against the identity provider and exchanges the
// fresh token for a company profile. On provider rejection or backend
// rejection it returns an AuthError and leaves no token persisted.
func (s *Store) Login(ctx context.Context, email, password string) error {
	s.beginLogin()
	defer s.endLogin()

	if _, err := s.provider.SignIn(ctx, email, password); err != nil {
		s.logger.Warn("provider rejected sign-in", zap.String("email", email), zap.Error(err))
		return &e.AuthError{Message: "Login failed", Err: err}
	}

	gen := s.nextGen()

	company, err := s.resolveCompany(ctx, gen)
	if err != nil {
		s.set(gen, nil)
		return &e.AuthError{Message: e.Message(err, "Login failed"), Err: err}
	}

	s.set(gen, company)
	return nil
}

// Register submits the registration fields to the backend. The session is
// deliberately left untouched: the new account is inactive until an
// administrator approves it, so the caller stays logged out.
func (s *Store) Register(ctx context.Context, data *models.RegisterData) (*models.Company, error) {
	company, err := s.gateway.RegisterCompany(ctx, data)
	if err != nil {
		s.logger.Warn("registration rejected", zap.String("email", data.Email), zap.Error(err))
		return nil, &e.RegistrationError{Message: e.Message(err, "Registration failed"), Err: err}
	}
	s.logger.Info("company registered, awaiting approval", zap.String("email", data.Email))
	return company, nil
}

// Logout signs out of the identity provider, then clears the company and
// deletes the persisted token, even when the company was already nil. If
// the provider call fails, state is left as the provider left it.
func (s *Store) Logout(ctx context.Context) error {
	if err := s.provider.SignOut(ctx); err != nil {
		return &e.LogoutError{Err: err}
	}
	s.set(s.nextGen(), nil)
	return nil
}

// handleAuthEvent runs the async work behind one auth-state event. A stale
// generation means a newer event or an explicit login already superseded
// this one; its result is discarded without touching state.
func (s *Store) handleAuthEvent(ctx context.Context, gen uint64, cred *identity.Credential) {
	if cred == nil {
		s.set(gen, nil)
		return
	}

	company, err := s.resolveCompany(ctx, gen)
	if !s.isCurrent(gen) {
		s.logger.Debug("discarding stale auth-state completion", zap.Uint64("generation", gen))
		return
	}
	if err != nil {
		s.logger.Warn("failed to resolve company from credential", zap.Error(err))
		s.set(gen, nil)
		return
	}
	s.set(gen, company)
}

// resolveCompany fetches a fresh token, persists it, and exchanges it for
// the company profile. On any failure the persisted token is deleted so a
// stale token never outlives an unresolvable session. Every token write is
// gated on gen: a completion that has been superseded can neither
// re-persist its token after a sign-out nor erase the token a newer login
// just stored.
func (s *Store) resolveCompany(ctx context.Context, gen uint64) (*models.Company, error) {
	token, err := s.provider.CurrentToken(ctx)
	if err != nil {
		s.deleteToken(ctx, gen)
		return nil, err
	}
	if err := s.putToken(ctx, gen, token); err != nil {
		return nil, err
	}

	company, err := s.gateway.ExchangeToken(ctx, token)
	if err != nil {
		s.deleteToken(ctx, gen)
		return nil, err
	}
	return company, nil
}

// putToken persists token while gen is still the latest generation. The
// check and the write share the lock nextGen uses, so a sign-out issued
// after the write always observes and removes the token.
func (s *Store) putToken(ctx context.Context, gen uint64, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return errSuperseded
	}
	return s.tokens.Put(ctx, token)
}

// deleteToken removes the persisted token unless gen has been superseded.
func (s *Store) deleteToken(ctx context.Context, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	_ = s.tokens.Delete(ctx)
}

// set installs company (nil clears it) and marks the store ready, provided
// gen is still the latest generation. Clearing also deletes the token,
// under the same lock, so the in-memory state and the stored token move
// together.
func (s *Store) set(gen uint64, company *models.Company) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.company = company
	s.ready = true
	if company == nil {
		_ = s.tokens.Delete(context.Background())
	}
}

func (s *Store) nextGen() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	return s.gen
}

func (s *Store) isCurrent(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.gen
}

func (s *Store) beginLogin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logins++
}

func (s *Store) endLogin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logins--
}

func (s *Store) loginInFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logins > 0
}
