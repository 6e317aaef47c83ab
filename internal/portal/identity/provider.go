// Package identity wraps the external identity provider: credential
// sign-in/sign-out, fresh-token retrieval, and the auth-state stream the
// session store subscribes to. Tokens are opaque bearer strings; nothing in
// the portal inspects them.
package identity

import "context"

// Credential identifies a signed-in account at the provider. The refresh
// token is provider-internal and never sent to the backend.
type Credential struct {
	UID          string `json:"uid"`
	Email        string `json:"email"`
	RefreshToken string `json:"refreshToken"`
}

// Provider is the identity provider surface consumed by the session store.
// Auth-state callbacks fire in the order the provider emits state changes;
// a nil credential means signed out.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*Credential, error)
	SignOut(ctx context.Context) error
	CurrentToken(ctx context.Context) (string, error)
	OnAuthStateChanged(fn func(*Credential)) (unsubscribe func())
}
