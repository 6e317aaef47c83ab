package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	e "github.com/internlink/company-portal/internal/portal/errors"
	"github.com/internlink/company-portal/internal/portal/models"
	"github.com/internlink/company-portal/internal/portal/scope"
)

// testMetrics is shared across tests: prometheus collectors register into
// the default registry once per process.
var testMetrics = NewMetrics()

// fakeSession implements Session with function fields.
type fakeSession struct {
	company  *models.Company
	ready    bool
	login    func(ctx context.Context, email, password string) error
	register func(ctx context.Context, data *models.RegisterData) (*models.Company, error)
	logout   func(ctx context.Context) error
}

func (s *fakeSession) Snapshot() (*models.Company, bool) { return s.company, s.ready }

func (s *fakeSession) Login(ctx context.Context, email, password string) error {
	return s.login(ctx, email, password)
}

func (s *fakeSession) Register(ctx context.Context, data *models.RegisterData) (*models.Company, error) {
	return s.register(ctx, data)
}

func (s *fakeSession) Logout(ctx context.Context) error { return s.logout(ctx) }

// fakeBackend implements BackendGateway with function fields; unset
// operations fail the test if called.
type fakeBackend struct {
	t *testing.T

	updateLogo              func(ctx context.Context, companyID, logoURL string) error
	listInternships         func(ctx context.Context) ([]models.Internship, error)
	getInternship           func(ctx context.Context, id string) (*models.Internship, error)
	createInternship        func(ctx context.Context, in *models.Internship) error
	updateInternship        func(ctx context.Context, in *models.Internship) error
	deleteInternship        func(ctx context.Context, id string) error
	listApplications        func(ctx context.Context) ([]models.Application, error)
	updateApplicationStatus func(ctx context.Context, id string, status models.ApplicationStatus) error
	listEnrollments         func(ctx context.Context) ([]models.Enrollment, error)
	dashboardStats          func(ctx context.Context) (*models.DashboardStats, error)
}

func (g *fakeBackend) UpdateLogo(ctx context.Context, companyID, logoURL string) error {
	if g.updateLogo == nil {
		g.t.Fatal("unexpected UpdateLogo call")
	}
	return g.updateLogo(ctx, companyID, logoURL)
}

func (g *fakeBackend) ListInternships(ctx context.Context) ([]models.Internship, error) {
	if g.listInternships == nil {
		g.t.Fatal("unexpected ListInternships call")
	}
	return g.listInternships(ctx)
}

func (g *fakeBackend) GetInternship(ctx context.Context, id string) (*models.Internship, error) {
	if g.getInternship == nil {
		g.t.Fatal("unexpected GetInternship call")
	}
	return g.getInternship(ctx, id)
}

func (g *fakeBackend) CreateInternship(ctx context.Context, in *models.Internship) error {
	if g.createInternship == nil {
		g.t.Fatal("unexpected CreateInternship call")
	}
	return g.createInternship(ctx, in)
}

func (g *fakeBackend) UpdateInternship(ctx context.Context, in *models.Internship) error {
	if g.updateInternship == nil {
		g.t.Fatal("unexpected UpdateInternship call")
	}
	return g.updateInternship(ctx, in)
}

func (g *fakeBackend) DeleteInternship(ctx context.Context, id string) error {
	if g.deleteInternship == nil {
		g.t.Fatal("unexpected DeleteInternship call")
	}
	return g.deleteInternship(ctx, id)
}

func (g *fakeBackend) ListApplications(ctx context.Context) ([]models.Application, error) {
	if g.listApplications == nil {
		g.t.Fatal("unexpected ListApplications call")
	}
	return g.listApplications(ctx)
}

func (g *fakeBackend) UpdateApplicationStatus(ctx context.Context, id string, status models.ApplicationStatus) error {
	if g.updateApplicationStatus == nil {
		g.t.Fatal("unexpected UpdateApplicationStatus call")
	}
	return g.updateApplicationStatus(ctx, id, status)
}

func (g *fakeBackend) ListEnrollments(ctx context.Context) ([]models.Enrollment, error) {
	if g.listEnrollments == nil {
		g.t.Fatal("unexpected ListEnrollments call")
	}
	return g.listEnrollments(ctx)
}

func (g *fakeBackend) DashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	if g.dashboardStats == nil {
		g.t.Fatal("unexpected DashboardStats call")
	}
	return g.dashboardStats(ctx)
}

var acme = &models.Company{ID: "c1", Name: "Acme", Email: "acme@co.com", Status: models.StatusActive}

func newRouter(t *testing.T, sess Session, gw BackendGateway) http.Handler {
	h := NewPortalHandler(sess, gw, testMetrics, zaptest.NewLogger(t))
	return h.Router()
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestDataEndpointsRequireSession(t *testing.T) {
	router := newRouter(t, &fakeSession{ready: true}, &fakeBackend{t: t})

	for _, path := range []string{"/dashboard", "/internships/", "/applications", "/enrollments"} {
		rec := doJSON(t, router, http.MethodGet, path, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "path %s", path)
	}
}

func TestListInternshipsIsScoped(t *testing.T) {
	key := scope.TenantKey(acme.Email)
	gw := &fakeBackend{t: t,
		listInternships: func(_ context.Context) ([]models.Internship, error) {
			return []models.Internship{
				{ID: key + "_1", Title: "Mine"},
				{ID: "rival_co_com_1", Title: "Theirs"},
				{ID: key + "_2", Title: "Also mine"},
			}, nil
		},
	}
	router := newRouter(t, &fakeSession{company: acme, ready: true}, gw)

	rec := doJSON(t, router, http.MethodGet, "/internships/", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []models.Internship
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "Mine", got[0].Title)
	assert.Equal(t, "Also mine", got[1].Title)
}

func TestCreateInternshipMintsScopedID(t *testing.T) {
	var created *models.Internship
	gw := &fakeBackend{t: t,
		createInternship: func(_ context.Context, in *models.Internship) error {
			created = in
			return nil
		},
	}
	router := newRouter(t, &fakeSession{company: acme, ready: true}, gw)

	body := `{"title":"Backend intern","description":"Go services","duration":"3 months","location":"Berlin","locationType":"onsite"}`
	rec := doJSON(t, router, http.MethodPost, "/internships/", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	require.NotNil(t, created)
	key := scope.TenantKey(acme.Email)
	assert.True(t, scope.Owns(key, created.ID), "created id %q must carry the tenant-key prefix", created.ID)
	assert.Equal(t, key, created.CompanyID)
	assert.Equal(t, models.InternshipOpen, created.Status)
}

func TestGetForeignInternshipIsNotFound(t *testing.T) {
	router := newRouter(t, &fakeSession{company: acme, ready: true}, &fakeBackend{t: t})

	rec := doJSON(t, router, http.MethodGet, "/internships/rival_co_com_1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListApplicationsTwoStepFilter(t *testing.T) {
	key := scope.TenantKey(acme.Email)
	gw := &fakeBackend{t: t,
		listInternships: func(_ context.Context) ([]models.Internship, error) {
			return []models.Internship{{ID: key + "_1"}, {ID: "rival_co_com_1"}}, nil
		},
		listApplications: func(_ context.Context) ([]models.Application, error) {
			return []models.Application{
				{ID: "a1", InternshipID: key + "_1", StudentName: "Dana", StudentEmail: "dana@uni.edu"},
				{ID: "a2", InternshipID: "rival_co_com_1", StudentName: "Eve", StudentEmail: "eve@uni.edu"},
			}, nil
		},
	}
	router := newRouter(t, &fakeSession{company: acme, ready: true}, gw)

	rec := doJSON(t, router, http.MethodGet, "/applications", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []models.Application
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "a1", got[0].ID)
}

func TestUpdateStatusOfForeignApplication(t *testing.T) {
	key := scope.TenantKey(acme.Email)
	gw := &fakeBackend{t: t,
		listInternships: func(_ context.Context) ([]models.Internship, error) {
			return []models.Internship{{ID: key + "_1"}}, nil
		},
		listApplications: func(_ context.Context) ([]models.Application, error) {
			return []models.Application{
				{ID: "a2", InternshipID: "rival_co_com_1", StudentName: "Eve", StudentEmail: "eve@uni.edu"},
			}, nil
		},
	}
	router := newRouter(t, &fakeSession{company: acme, ready: true}, gw)

	rec := doJSON(t, router, http.MethodPatch, "/applications/a2/status", `{"status":"accepted"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code, "mutating another tenant's application must be refused")
}

func TestUpdateStatusOfOwnApplication(t *testing.T) {
	key := scope.TenantKey(acme.Email)
	var patchedID string
	var patchedStatus models.ApplicationStatus
	gw := &fakeBackend{t: t,
		listInternships: func(_ context.Context) ([]models.Internship, error) {
			return []models.Internship{{ID: key + "_1"}}, nil
		},
		listApplications: func(_ context.Context) ([]models.Application, error) {
			return []models.Application{
				{ID: "a1", InternshipID: key + "_1", StudentName: "Dana", StudentEmail: "dana@uni.edu"},
			}, nil
		},
		updateApplicationStatus: func(_ context.Context, id string, status models.ApplicationStatus) error {
			patchedID = id
			patchedStatus = status
			return nil
		},
	}
	router := newRouter(t, &fakeSession{company: acme, ready: true}, gw)

	rec := doJSON(t, router, http.MethodPatch, "/applications/a1/status", `{"status":"rejected"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "a1", patchedID)
	assert.Equal(t, models.ApplicationRejected, patchedStatus)
}

func TestUpdateStatusValidation(t *testing.T) {
	router := newRouter(t, &fakeSession{company: acme, ready: true}, &fakeBackend{t: t})

	rec := doJSON(t, router, http.MethodPatch, "/applications/a1/status", `{"status":"pending"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListEnrollmentsIsScoped(t *testing.T) {
	key := scope.TenantKey(acme.Email)
	gw := &fakeBackend{t: t,
		listInternships: func(_ context.Context) ([]models.Internship, error) {
			return []models.Internship{{ID: key + "_1"}}, nil
		},
		listEnrollments: func(_ context.Context) ([]models.Enrollment, error) {
			return []models.Enrollment{
				{ID: "e1", InternshipID: key + "_1"},
				{ID: "e2", InternshipID: "rival_co_com_9"},
			}, nil
		},
	}
	router := newRouter(t, &fakeSession{company: acme, ready: true}, gw)

	rec := doJSON(t, router, http.MethodGet, "/enrollments", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []models.Enrollment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "e1", got[0].ID)
}

func TestLoginSurfacesSessionError(t *testing.T) {
	sess := &fakeSession{ready: true,
		login: func(_ context.Context, _, _ string) error {
			return &e.AuthError{Message: "Account pending approval"}
		},
	}
	router := newRouter(t, sess, &fakeBackend{t: t})

	rec := doJSON(t, router, http.MethodPost, "/login", `{"email":"acme@co.com","password":"pw"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Account pending approval", body["message"])
}

func TestRegisterConflict(t *testing.T) {
	sess := &fakeSession{ready: true,
		register: func(_ context.Context, _ *models.RegisterData) (*models.Company, error) {
			return nil, &e.RegistrationError{
				Message: "Email already registered",
				Err:     &e.APIError{Status: 409, Message: "Email already registered"},
			}
		},
	}
	router := newRouter(t, sess, &fakeBackend{t: t})

	rec := doJSON(t, router, http.MethodPost, "/register", `{"email":"dup@co.com","password":"pw","name":"Dup"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGatewayOutageMapsToBadGateway(t *testing.T) {
	gw := &fakeBackend{t: t,
		dashboardStats: func(_ context.Context) (*models.DashboardStats, error) {
			return nil, &networkError{}
		},
	}
	router := newRouter(t, &fakeSession{company: acme, ready: true}, gw)

	rec := doJSON(t, router, http.MethodGet, "/dashboard", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

// networkError unwraps to the transport-failure sentinel.
type networkError struct{}

func (networkError) Error() string { return "dial tcp: connection refused" }
func (networkError) Unwrap() error { return e.ErrNetwork }
