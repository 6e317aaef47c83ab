// Package scope narrows the backend's unscoped collections down to the
// records that belong to one company. Ownership is a naming convention:
// every internship id a company creates is prefixed with the company's
// tenant key, and applications/enrollments belong transitively through
// their internshipId. The filters are pure functions with no side effects;
// records with ids that do not match are dropped, never leaked.
package scope

import (
	"strings"

	"github.com/google/uuid"

	"github.com/internlink/company-portal/internal/portal/models"
)

// keyDelimiter separates the tenant key from the minted suffix. The key
// itself contains underscores (it is a normalized email), so ownership is
// checked as key-plus-delimiter prefix rather than by splitting.
const keyDelimiter = "_"

// TenantKey derives the scoping key from a company email: lowercase with
// '@' and '.' replaced by '_'. Emails are unique backend-side, so keys do
// not collide.
func TenantKey(email string) string {
	key := strings.ToLower(email)
	key = strings.ReplaceAll(key, "@", "_")
	key = strings.ReplaceAll(key, ".", "_")
	return key
}

// MintInternshipID produces a new internship id owned by the given tenant
// key. Any other scheme breaks scoping for that record permanently.
func MintInternshipID(tenantKey string) string {
	return tenantKey + keyDelimiter + uuid.NewString()
}

// Owns reports whether the record id belongs to the tenant key. The match
// is delimiter-bounded: key "co_x" does not own "co_xyz_1".
func Owns(tenantKey, id string) bool {
	return strings.HasPrefix(id, tenantKey+keyDelimiter)
}

// FilterInternships returns the internships owned by the tenant key,
// preserving input order. Empty input yields empty output.
func FilterInternships(tenantKey string, items []models.Internship) []models.Internship {
	scoped := make([]models.Internship, 0, len(items))
	for _, it := range items {
		if Owns(tenantKey, it.ID) {
			scoped = append(scoped, it)
		}
	}
	return scoped
}

// InternshipIDSet collects the ids of an already-scoped internship list for
// membership checks against applications and enrollments.
func InternshipIDSet(items []models.Internship) map[string]struct{} {
	ids := make(map[string]struct{}, len(items))
	for _, it := range items {
		ids[it.ID] = struct{}{}
	}
	return ids
}

// FilterApplications keeps applications whose internshipId is in the scoped
// internship id set. Membership is exact, never a substring test.
func FilterApplications(ids map[string]struct{}, items []models.Application) []models.Application {
	scoped := make([]models.Application, 0, len(items))
	for _, app := range items {
		if _, ok := ids[app.InternshipID]; ok {
			scoped = append(scoped, app)
		}
	}
	return scoped
}

// FilterEnrollments keeps enrollments whose internshipId is in the scoped
// internship id set.
func FilterEnrollments(ids map[string]struct{}, items []models.Enrollment) []models.Enrollment {
	scoped := make([]models.Enrollment, 0, len(items))
	for _, en := range items {
		if _, ok := ids[en.InternshipID]; ok {
			scoped = append(scoped, en)
		}
	}
	return scoped
}
