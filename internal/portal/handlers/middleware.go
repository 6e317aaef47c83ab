package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/internlink/company-portal/internal/portal/models"
)

type contextKey string

const companyContextKey contextKey = "company"

// companyFrom returns the company the auth middleware attached to the
// request context.
func companyFrom(ctx context.Context) *models.Company {
	company, _ := ctx.Value(companyContextKey).(*models.Company)
	return company
}

// requireCompany gates data endpoints behind an authenticated session and
// attaches the current company to the request context.
func (h *PortalHandler) requireCompany(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		company, ready := h.session.Snapshot()
		if !ready || company == nil {
			writeMessage(w, http.StatusUnauthorized, "not signed in")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), companyContextKey, company)))
	})
}

// statusWriter captures the response status for logging and metrics.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// instrument logs every request and records request metrics.
func (h *PortalHandler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		elapsed := time.Since(start)
		h.metrics.RequestsTotal.WithLabelValues(r.Method, strconv.Itoa(sw.status)).Inc()
		h.metrics.RequestDuration.WithLabelValues(r.Method).Observe(elapsed.Seconds())
		h.logger.Info("handled request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", sw.status),
			zap.Duration("duration", elapsed),
		)
	})
}
