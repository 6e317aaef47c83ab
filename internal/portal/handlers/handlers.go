// Package handlers serves the portal's JSON surface: session operations
// plus tenant-scoped views over the backend's internship, application and
// enrollment collections. Every data endpoint narrows the backend's
// unscoped lists with the scope filters before anything is returned.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	e "github.com/internlink/company-portal/internal/portal/errors"
	"github.com/internlink/company-portal/internal/portal/models"
	"github.com/internlink/company-portal/internal/portal/scope"
)

// Session is the session store surface the handlers invoke.
type Session interface {
	Snapshot() (*models.Company, bool)
	Login(ctx context.Context, email, password string) error
	Register(ctx context.Context, data *models.RegisterData) (*models.Company, error)
	Logout(ctx context.Context) error
}

// BackendGateway is the gateway surface the data endpoints invoke.
type BackendGateway interface {
	UpdateLogo(ctx context.Context, companyID, logoURL string) error
	ListInternships(ctx context.Context) ([]models.Internship, error)
	GetInternship(ctx context.Context, id string) (*models.Internship, error)
	CreateInternship(ctx context.Context, in *models.Internship) error
	UpdateInternship(ctx context.Context, in *models.Internship) error
	DeleteInternship(ctx context.Context, id string) error
	ListApplications(ctx context.Context) ([]models.Application, error)
	UpdateApplicationStatus(ctx context.Context, id string, status models.ApplicationStatus) error
	ListEnrollments(ctx context.Context) ([]models.Enrollment, error)
	DashboardStats(ctx context.Context) (*models.DashboardStats, error)
}

// PortalHandler bridges HTTP requests to the session store and gateway.
type PortalHandler struct {
	session Session
	gateway BackendGateway
	logger  *zap.Logger
	metrics *Metrics
}

// NewPortalHandler constructs the handler with its collaborators.
func NewPortalHandler(sess Session, gw BackendGateway, metrics *Metrics, logger *zap.Logger) *PortalHandler {
	return &PortalHandler{
		session: sess,
		gateway: gw,
		logger:  logger.Named("handlers"),
		metrics: metrics,
	}
}

// Router assembles the portal routes.
func (h *PortalHandler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(h.instrument)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/login", h.login)
	r.Post("/register", h.register)
	r.Post("/logout", h.logout)
	r.Get("/session", h.sessionState)

	r.Group(func(r chi.Router) {
		r.Use(h.requireCompany)

		r.Get("/dashboard", h.dashboard)

		r.Route("/internships", func(r chi.Router) {
			r.Get("/", h.listInternships)
			r.Post("/", h.createInternship)
			r.Get("/{id}", h.getInternship)
			r.Put("/{id}", h.updateInternship)
			r.Delete("/{id}", h.deleteInternship)
		})

		r.Get("/applications", h.listApplications)
		r.Patch("/applications/{id}/status", h.updateApplicationStatus)
		r.Get("/enrollments", h.listEnrollments)
		r.Patch("/profile/logo", h.updateLogo)
	})

	return r
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *PortalHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "email and password are required")
		return
	}

	if err := h.session.Login(r.Context(), req.Email, req.Password); err != nil {
		h.writeError(w, err)
		return
	}
	company, _ := h.session.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{"company": company})
}

func (h *PortalHandler) register(w http.ResponseWriter, r *http.Request) {
	var data models.RegisterData
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	company, err := h.session.Register(r.Context(), &data)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, company)
}

func (h *PortalHandler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Logout(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PortalHandler) sessionState(w http.ResponseWriter, _ *http.Request) {
	company, ready := h.session.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{"company": company, "ready": ready})
}

func (h *PortalHandler) dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.gateway.DashboardStats(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// scopedInternships fetches the unscoped collection and narrows it to the
// current company, counting whatever the filter dropped.
func (h *PortalHandler) scopedInternships(r *http.Request) ([]models.Internship, error) {
	company := companyFrom(r.Context())
	all, err := h.gateway.ListInternships(r.Context())
	if err != nil {
		return nil, err
	}
	scoped := scope.FilterInternships(scope.TenantKey(company.Email), all)
	if dropped := len(all) - len(scoped); dropped > 0 {
		h.metrics.ScopedOut.Add(float64(dropped))
	}
	return scoped, nil
}

func (h *PortalHandler) listInternships(w http.ResponseWriter, r *http.Request) {
	scoped, err := h.scopedInternships(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scoped)
}

func (h *PortalHandler) getInternship(w http.ResponseWriter, r *http.Request) {
	company := companyFrom(r.Context())
	id := chi.URLParam(r, "id")
	if !scope.Owns(scope.TenantKey(company.Email), id) {
		writeMessage(w, http.StatusNotFound, "internship not found")
		return
	}

	internship, err := h.gateway.GetInternship(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, internship)
}

func (h *PortalHandler) createInternship(w http.ResponseWriter, r *http.Request) {
	company := companyFrom(r.Context())

	var in models.Internship
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if in.Title == "" || in.Description == "" || in.Duration == "" || in.Location == "" {
		writeMessage(w, http.StatusBadRequest, "title, description, duration and location are required")
		return
	}

	key := scope.TenantKey(company.Email)
	in.ID = scope.MintInternshipID(key)
	in.CompanyID = key
	if in.Status == "" {
		in.Status = models.InternshipOpen
	}

	if err := h.gateway.CreateInternship(r.Context(), &in); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, in)
}

func (h *PortalHandler) updateInternship(w http.ResponseWriter, r *http.Request) {
	company := companyFrom(r.Context())
	id := chi.URLParam(r, "id")
	if !scope.Owns(scope.TenantKey(company.Email), id) {
		writeMessage(w, http.StatusNotFound, "internship not found")
		return
	}

	var in models.Internship
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in.ID = id
	in.CompanyID = scope.TenantKey(company.Email)

	if err := h.gateway.UpdateInternship(r.Context(), &in); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, in)
}

func (h *PortalHandler) deleteInternship(w http.ResponseWriter, r *http.Request) {
	company := companyFrom(r.Context())
	id := chi.URLParam(r, "id")
	if !scope.Owns(scope.TenantKey(company.Email), id) {
		writeMessage(w, http.StatusNotFound, "internship not found")
		return
	}

	if err := h.gateway.DeleteInternship(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PortalHandler) listApplications(w http.ResponseWriter, r *http.Request) {
	scoped, err := h.scopedInternships(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	ids := scope.InternshipIDSet(scoped)

	all, err := h.gateway.ListApplications(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	apps := scope.FilterApplications(ids, all)
	if dropped := len(all) - len(apps); dropped > 0 {
		h.metrics.ScopedOut.Add(float64(dropped))
	}

	if internshipID := r.URL.Query().Get("internship"); internshipID != "" {
		narrowed := apps[:0:0]
		for _, app := range apps {
			if app.InternshipID == internshipID {
				narrowed = append(narrowed, app)
			}
		}
		apps = narrowed
	}
	writeJSON(w, http.StatusOK, apps)
}

type statusUpdateRequest struct {
	Status models.ApplicationStatus `json:"status"`
}

func (h *PortalHandler) updateApplicationStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req statusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status != models.ApplicationAccepted && req.Status != models.ApplicationRejected {
		writeMessage(w, http.StatusBadRequest, "status must be accepted or rejected")
		return
	}

	// The backend does not scope applications, so ownership has to be
	// established through the internship set before mutating.
	scoped, err := h.scopedInternships(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	ids := scope.InternshipIDSet(scoped)

	all, err := h.gateway.ListApplications(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	owned := false
	for _, app := range scope.FilterApplications(ids, all) {
		if app.ID == id {
			owned = true
			break
		}
	}
	if !owned {
		writeMessage(w, http.StatusNotFound, "application not found")
		return
	}

	if err := h.gateway.UpdateApplicationStatus(r.Context(), id, req.Status); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PortalHandler) listEnrollments(w http.ResponseWriter, r *http.Request) {
	scoped, err := h.scopedInternships(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	ids := scope.InternshipIDSet(scoped)

	all, err := h.gateway.ListEnrollments(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	enrollments := scope.FilterEnrollments(ids, all)
	if dropped := len(all) - len(enrollments); dropped > 0 {
		h.metrics.ScopedOut.Add(float64(dropped))
	}
	writeJSON(w, http.StatusOK, enrollments)
}

type logoUpdateRequest struct {
	LogoURL string `json:"logoUrl"`
}

func (h *PortalHandler) updateLogo(w http.ResponseWriter, r *http.Request) {
	company := companyFrom(r.Context())

	var req logoUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.gateway.UpdateLogo(r.Context(), company.ID, req.LogoURL); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeError maps session and gateway errors onto HTTP statuses, always
// responding with a {message} body the UI can display.
func (h *PortalHandler) writeError(w http.ResponseWriter, err error) {
	var authErr *e.AuthError
	if errors.As(err, &authErr) {
		writeMessage(w, http.StatusUnauthorized, authErr.Message)
		return
	}
	var regErr *e.RegistrationError
	if errors.As(err, &regErr) {
		status := http.StatusBadRequest
		if errors.Is(err, e.ErrConflict) {
			status = http.StatusConflict
		}
		writeMessage(w, status, regErr.Message)
		return
	}
	var logoutErr *e.LogoutError
	if errors.As(err, &logoutErr) {
		writeMessage(w, http.StatusBadGateway, "sign-out failed")
		return
	}

	switch {
	case errors.Is(err, e.ErrUnauthorized):
		writeMessage(w, http.StatusUnauthorized, e.Message(err, "session expired"))
	case errors.Is(err, e.ErrNotFound):
		writeMessage(w, http.StatusNotFound, e.Message(err, "not found"))
	case errors.Is(err, e.ErrConflict):
		writeMessage(w, http.StatusConflict, e.Message(err, "conflict"))
	case errors.Is(err, e.ErrValidation):
		writeMessage(w, http.StatusBadRequest, e.Message(err, "invalid request"))
	case errors.Is(err, e.ErrNetwork), errors.Is(err, e.ErrDecode):
		h.logger.Error("backend unavailable or returned garbage", zap.Error(err))
		writeMessage(w, http.StatusBadGateway, "backend unavailable")
	default:
		h.logger.Error("unhandled error", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
