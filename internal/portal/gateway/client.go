// Package gateway is the typed HTTP client for the backend REST API. It is
// a boundary, not a core: its only logic is attaching the persisted bearer
// token to every outbound request, mapping response statuses onto the error
// taxonomy, and decoding bodies strictly so corrupt data surfaces as
// ErrDecode instead of placeholder fields.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	e "github.com/internlink/company-portal/internal/portal/errors"
	"github.com/internlink/company-portal/internal/portal/models"
	"github.com/internlink/company-portal/internal/portal/tokenstore"
)

// TokenSource supplies the persisted bearer token. tokenstore.Store
// implements it; tests substitute fakes.
type TokenSource interface {
	Get(ctx context.Context) (string, error)
}

// Client calls the backend REST API. Every request carries the stored
// bearer token when one exists; requests made before a token is stored
// simply go out without the header.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	logger     *zap.Logger

	// retryMax bounds the total time spent retrying an idempotent GET
	// after transport failures. Mutations are never retried.
	retryMax time.Duration
}

// NewClient constructs a gateway client for the backend at baseURL.
func NewClient(baseURL string, httpClient *http.Client, tokens TokenSource, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		tokens:     tokens,
		logger:     logger.Named("gateway"),
		retryMax:   5 * time.Second,
	}
}

type registerResponse struct {
	Company *models.Company `json:"company"`
	ID      string          `json:"id"`
	Email   string          `json:"email"`
	Status  string          `json:"status"`
}

// RegisterCompany submits the registration fields. The created account is
// inactive until approved; the caller stays unauthenticated.
func (c *Client) RegisterCompany(ctx context.Context, data *models.RegisterData) (*models.Company, error) {
	var resp registerResponse
	if err := c.do(ctx, http.MethodPost, "/auth/company/register", data, &resp); err != nil {
		return nil, err
	}
	// Some backend versions nest the summary under "company".
	summary := resp.Company
	if summary == nil {
		summary = &models.Company{ID: resp.ID, Email: resp.Email, Status: models.CompanyStatus(resp.Status)}
	}
	if summary.Email == "" {
		return nil, fmt.Errorf("%w: registration summary missing email", e.ErrDecode)
	}
	return summary, nil
}

type exchangeRequest struct {
	IDToken string `json:"idToken"`
}

type exchangeResponse struct {
	Company *models.Company `json:"company"`
}

// ExchangeToken trades a provider identity token for the company profile it
// belongs to. ErrUnauthorized when the backend cannot map the token.
func (c *Client) ExchangeToken(ctx context.Context, idToken string) (*models.Company, error) {
	var resp exchangeResponse
	if err := c.do(ctx, http.MethodPost, "/auth/company/login", exchangeRequest{IDToken: idToken}, &resp); err != nil {
		return nil, err
	}
	if resp.Company == nil || resp.Company.ID == "" || resp.Company.Email == "" {
		return nil, fmt.Errorf("%w: login response missing company", e.ErrDecode)
	}
	if resp.Company.Status != models.StatusActive && resp.Company.Status != models.StatusInactive {
		return nil, fmt.Errorf("%w: unknown company status %q", e.ErrDecode, resp.Company.Status)
	}
	return resp.Company, nil
}

// UpdateLogo replaces the company's logo reference.
func (c *Client) UpdateLogo(ctx context.Context, companyID, logoURL string) error {
	body := map[string]string{"logoUrl": logoURL}
	return c.do(ctx, http.MethodPatch, "/auth/company/update-logo/"+companyID, body, nil)
}

// ListInternships fetches the unscoped, all-tenant internship collection.
// Callers must narrow it with the scope filters before display.
func (c *Client) ListInternships(ctx context.Context) ([]models.Internship, error) {
	var out []models.Internship
	if err := c.get(ctx, "/internships", &out); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].ID == "" {
			return nil, fmt.Errorf("%w: internship at index %d missing id", e.ErrDecode, i)
		}
	}
	return out, nil
}

// GetInternship fetches a single internship by id.
func (c *Client) GetInternship(ctx context.Context, id string) (*models.Internship, error) {
	var out models.Internship
	if err := c.get(ctx, "/internships/"+id, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, fmt.Errorf("%w: internship response missing id", e.ErrDecode)
	}
	return &out, nil
}

// CreateInternship submits a new posting. The id must already be minted
// with the owner's tenant-key prefix.
func (c *Client) CreateInternship(ctx context.Context, in *models.Internship) error {
	return c.do(ctx, http.MethodPost, "/internships", in, nil)
}

// UpdateInternship replaces an existing posting.
func (c *Client) UpdateInternship(ctx context.Context, in *models.Internship) error {
	return c.do(ctx, http.MethodPut, "/internships/"+in.ID, in, nil)
}

// DeleteInternship removes a posting.
func (c *Client) DeleteInternship(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/internships/"+id, nil, nil)
}

// ListApplications fetches the unscoped application collection. Responses
// missing the denormalized student/internship fields are rejected rather
// than defaulted.
func (c *Client) ListApplications(ctx context.Context) ([]models.Application, error) {
	var out []models.Application
	if err := c.get(ctx, "/applications", &out); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].ID == "" || out[i].InternshipID == "" {
			return nil, fmt.Errorf("%w: application at index %d missing identifiers", e.ErrDecode, i)
		}
		if out[i].StudentName == "" || out[i].StudentEmail == "" {
			return nil, fmt.Errorf("%w: application %s missing student fields", e.ErrDecode, out[i].ID)
		}
	}
	return out, nil
}

// GetApplication fetches a single application by id.
func (c *Client) GetApplication(ctx context.Context, id string) (*models.Application, error) {
	var out models.Application
	if err := c.get(ctx, "/applications/"+id, &out); err != nil {
		return nil, err
	}
	if out.ID == "" || out.InternshipID == "" {
		return nil, fmt.Errorf("%w: application response missing identifiers", e.ErrDecode)
	}
	return &out, nil
}

// UpdateApplication replaces an existing application record.
func (c *Client) UpdateApplication(ctx context.Context, app *models.Application) error {
	return c.do(ctx, http.MethodPut, "/applications/"+app.ID, app, nil)
}

// DeleteApplication removes an application record.
func (c *Client) DeleteApplication(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/applications/"+id, nil, nil)
}

// UpdateApplicationStatus transitions an application to the given status.
func (c *Client) UpdateApplicationStatus(ctx context.Context, id string, status models.ApplicationStatus) error {
	body := map[string]models.ApplicationStatus{"status": status}
	return c.do(ctx, http.MethodPatch, "/applications/"+id+"/status", body, nil)
}

// ListEnrollments fetches the unscoped enrollment collection.
func (c *Client) ListEnrollments(ctx context.Context) ([]models.Enrollment, error) {
	var out []models.Enrollment
	if err := c.get(ctx, "/enrollments", &out); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].ID == "" || out[i].InternshipID == "" {
			return nil, fmt.Errorf("%w: enrollment at index %d missing identifiers", e.ErrDecode, i)
		}
	}
	return out, nil
}

// GetEnrollment fetches a single enrollment by id.
func (c *Client) GetEnrollment(ctx context.Context, id string) (*models.Enrollment, error) {
	var out models.Enrollment
	if err := c.get(ctx, "/enrollments/"+id, &out); err != nil {
		return nil, err
	}
	if out.ID == "" || out.InternshipID == "" {
		return nil, fmt.Errorf("%w: enrollment response missing identifiers", e.ErrDecode)
	}
	return &out, nil
}

// CreateEnrollment records a student enrollment. The backend mints the id.
func (c *Client) CreateEnrollment(ctx context.Context, en *models.Enrollment) error {
	return c.do(ctx, http.MethodPost, "/enrollments", en, nil)
}

// DeleteEnrollment removes an enrollment record.
func (c *Client) DeleteEnrollment(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/enrollments/"+id, nil, nil)
}

// DashboardStats fetches the aggregate counts for the caller's scope.
func (c *Client) DashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	var out models.DashboardStats
	if err := c.get(ctx, "/company-dashboard/stats", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// get performs an idempotent GET, retrying transport failures with capped
// exponential backoff. HTTP-level errors are permanent.
func (c *Client) get(ctx context.Context, path string, out any) error {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = c.retryMax

	return backoff.Retry(func() error {
		err := c.do(ctx, http.MethodGet, path, nil, out)
		if err != nil && !errors.Is(err, e.ErrNetwork) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(policy, ctx))
}

// do builds, authorizes, and dispatches one request, then maps the response
// onto the error taxonomy and decodes the body into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.tokens.Get(ctx)
	if err != nil && !errors.Is(err, tokenstore.ErrNoToken) {
		return fmt.Errorf("failed to read stored token: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed before a response arrived",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %s %s: %v", e.ErrNetwork, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.apiError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s %s: %v", e.ErrDecode, method, path, err)
	}
	return nil
}

// apiError turns a non-2xx response into an APIError, preserving the
// backend's {message} body when present.
func (c *Client) apiError(resp *http.Response) error {
	var body struct {
		Message string `json:"message"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	_ = json.Unmarshal(raw, &body)

	return &e.APIError{Status: resp.StatusCode, Message: body.Message}
}
