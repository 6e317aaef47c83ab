package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	e "github.com/internlink/company-portal/internal/portal/errors"
	"github.com/internlink/company-portal/internal/portal/gateway"
	"github.com/internlink/company-portal/internal/portal/identity"
	"github.com/internlink/company-portal/internal/portal/models"
	"github.com/internlink/company-portal/internal/portal/tokenstore"
)

// fakeIdentity serves the identity provider endpoints for one account.
func fakeIdentity(t *testing.T, email, password string) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/signin", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Email != email || req.Password != password {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(identity.Credential{UID: "u1", Email: email, RefreshToken: "r1"})
	})
	mux.HandleFunc("/v1/token", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "id-token-for-" + email})
	})
	mux.HandleFunc("/v1/signout", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// fakeBackendAPI serves the auth endpoints of the backend with an account
// whose status flips only through the test's "administrative action".
type fakeBackendAPI struct {
	mu      sync.Mutex
	company *models.Company
}

func (b *fakeBackendAPI) server(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/company/register", func(w http.ResponseWriter, r *http.Request) {
		var data models.RegisterData
		require.NoError(t, json.NewDecoder(r.Body).Decode(&data))

		b.mu.Lock()
		defer b.mu.Unlock()
		if b.company != nil && b.company.Email == data.Email {
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "Email already registered"})
			return
		}
		b.company = &models.Company{ID: "c1", Name: data.Name, Email: data.Email, Status: models.StatusInactive}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"company": b.company})
	})
	mux.HandleFunc("/auth/company/login", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			IDToken string `json:"idToken"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		b.mu.Lock()
		defer b.mu.Unlock()
		if b.company == nil || req.IDToken != "id-token-for-"+b.company.Email {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "Company account not found"})
			return
		}
		if b.company.Status != models.StatusActive {
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "Account pending approval"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"company": b.company})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func (b *fakeBackendAPI) activate() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.company.Status = models.StatusActive
}

func TestRegistrationApprovalLoginFlow(t *testing.T) {
	logger := zaptest.NewLogger(t)
	idServer := fakeIdentity(t, "acme@co.com", "pw")
	backend := &fakeBackendAPI{}
	apiServer := backend.server(t)

	tokens, err := tokenstore.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = tokens.Close() })

	provider := identity.NewClient(idServer.URL, nil, logger)
	gw := gateway.NewClient(apiServer.URL, nil, tokens, logger)
	store := NewStore(provider, gw, tokens, logger)

	ctx := context.Background()

	// Registration creates an inactive account and does not sign in.
	created, err := store.Register(ctx, &models.RegisterData{Email: "acme@co.com", Password: "pw", Name: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusInactive, created.Status)
	company, _ := store.Snapshot()
	assert.Nil(t, company)

	// Login stays blocked until an external actor approves the account.
	err = store.Login(ctx, "acme@co.com", "pw")
	var authErr *e.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "Account pending approval", authErr.Message)
	_, tokenErr := tokens.Get(ctx)
	assert.ErrorIs(t, tokenErr, tokenstore.ErrNoToken, "a rejected exchange must not leave a token behind")

	backend.activate()

	require.NoError(t, store.Login(ctx, "acme@co.com", "pw"))
	company, ready := store.Snapshot()
	require.NotNil(t, company)
	assert.True(t, ready)
	assert.Equal(t, models.StatusActive, company.Status)

	persisted, err := tokens.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "id-token-for-acme@co.com", persisted)

	// Logout tears the whole session down.
	require.NoError(t, store.Logout(ctx))
	company, _ = store.Snapshot()
	assert.Nil(t, company)
	_, tokenErr = tokens.Get(ctx)
	assert.ErrorIs(t, tokenErr, tokenstore.ErrNoToken)
}
