package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"go.uber.org/zap"
)

// ErrNotSignedIn is returned by CurrentToken when no credential is held.
var ErrNotSignedIn = errors.New("not signed in")

// ErrInvalidCredentials is returned by SignIn when the provider rejects the
// email/password pair.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Client talks to an identity provider over HTTP and tracks the current
// credential. It implements Provider.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger

	mu        sync.Mutex
	current   *Credential
	listeners map[int]func(*Credential)
	nextID    int
}

// NewClient constructs a Client for the provider at baseURL.
func NewClient(baseURL string, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger.Named("identity"),
		listeners:  map[int]func(*Credential){},
	}
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// SignIn authenticates with the provider. On success the credential becomes
// current and an auth-state change is emitted.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Credential, error) {
	var cred Credential
	err := c.post(ctx, "/v1/signin", signInRequest{Email: email, Password: password}, &cred)
	if err != nil {
		c.logger.Debug("sign-in failed", zap.Error(err))
		var provErr *providerError
		if errors.As(err, &provErr) && (provErr.status == http.StatusUnauthorized || provErr.status == http.StatusForbidden) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	c.setCurrent(&cred)
	return &cred, nil
}

// SignOut invalidates the current credential at the provider. Local state
// is only cleared when the provider call succeeds.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	cred := c.current
	c.mu.Unlock()

	if cred != nil {
		if err := c.post(ctx, "/v1/signout", tokenRequest{RefreshToken: cred.RefreshToken}, nil); err != nil {
			return err
		}
	}
	c.setCurrent(nil)
	return nil
}

// CurrentToken fetches a fresh identity token for the current credential.
func (c *Client) CurrentToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	cred := c.current
	c.mu.Unlock()

	if cred == nil {
		return "", ErrNotSignedIn
	}

	var resp tokenResponse
	if err := c.post(ctx, "/v1/token", tokenRequest{RefreshToken: cred.RefreshToken}, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", fmt.Errorf("provider returned empty token")
	}
	return resp.Token, nil
}

// OnAuthStateChanged registers fn and immediately delivers the current
// state to it, matching provider semantics: the subscriber always sees at
// least one event. The returned function unsubscribes.
func (c *Client) OnAuthStateChanged(fn func(*Credential)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	cred := c.current
	c.mu.Unlock()

	fn(cred)

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Client) setCurrent(cred *Credential) {
	c.mu.Lock()
	c.current = cred
	fns := make([]func(*Credential), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(cred)
	}
}

type providerError struct {
	status int
	body   string
}

func (e *providerError) Error() string {
	return fmt.Sprintf("identity provider returned %d: %s", e.status, e.body)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not reach identity provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &providerError{status: resp.StatusCode, body: string(bytes.TrimSpace(raw))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("could not parse provider response: %w", err)
	}
	return nil
}
