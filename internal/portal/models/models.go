// Package models defines the domain models the portal works with: the
// Company principal and the three backend-owned collections (internships,
// applications, enrollments). The backend is authoritative for all of them;
// the portal only holds transient copies.
package models

import "time"

// CompanyStatus represents the lifecycle status of a company account.
type CompanyStatus string

const (
	// StatusActive means the account was approved and may sign in.
	StatusActive CompanyStatus = "active"
	// StatusInactive means the account awaits administrative approval.
	StatusInactive CompanyStatus = "inactive"
)

// Company is the authenticated principal. Email doubles as the tenant key
// source: the backend derives record identifiers from it.
type Company struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Email       string        `json:"email"`
	Status      CompanyStatus `json:"status"`
	Industry    string        `json:"industry,omitempty"`
	Location    string        `json:"location,omitempty"`
	Description string        `json:"description,omitempty"`
	LogoURL     string        `json:"logoUrl,omitempty"`
}

// RegisterData carries the fields submitted by the registration form.
type RegisterData struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Name        string `json:"name"`
	Industry    string `json:"industry,omitempty"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
	LogoURL     string `json:"logoUrl,omitempty"`
}

// InternshipStatus is the publication state of an internship posting.
type InternshipStatus string

const (
	InternshipOpen   InternshipStatus = "open"
	InternshipClosed InternshipStatus = "closed"
)

// Internship is a posting owned by a company. Its ID is prefixed with the
// owning company's tenant key, which is the only ownership marker the
// backend exposes.
type Internship struct {
	ID                   string           `json:"id"`
	CompanyID            string           `json:"companyId,omitempty"`
	Title                string           `json:"title"`
	Description          string           `json:"description"`
	Duration             string           `json:"duration"`
	Location             string           `json:"location"`
	LocationType         string           `json:"locationType"`
	Status               InternshipStatus `json:"status"`
	RequiredSkills       []string         `json:"requiredSkills,omitempty"`
	LogoURL              string           `json:"logoUrl,omitempty"`
	ApplicationsCount    int              `json:"applicationsCount"`
	CurrentStudentsCount int              `json:"currentStudentsCount"`
	CreatedAt            time.Time        `json:"createdAt"`
}

// ApplicationStatus is the review state of a student application.
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationAccepted ApplicationStatus = "accepted"
	ApplicationRejected ApplicationStatus = "rejected"
)

// Application is a student's application to an internship. Student fields
// are denormalized by the backend join; the gateway rejects responses where
// they are missing instead of defaulting them.
type Application struct {
	ID                 string            `json:"id"`
	StudentID          string            `json:"studentId"`
	InternshipID       string            `json:"internshipId"`
	Status             ApplicationStatus `json:"status"`
	CoverLetter        string            `json:"coverLetter,omitempty"`
	ProjectDescription string            `json:"projectDescription,omitempty"`
	ResourceLinks      []string          `json:"resourceLinks,omitempty"`
	StudentName        string            `json:"studentName"`
	StudentEmail       string            `json:"studentEmail"`
	InternshipTitle    string            `json:"internshipTitle"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
}

// Enrollment records a student enrolled into an internship.
type Enrollment struct {
	ID           string    `json:"id"`
	StudentID    string    `json:"studentId"`
	InternshipID string    `json:"internshipId"`
	EnrolledAt   time.Time `json:"enrolledAt"`
}

// DashboardStats is the aggregate returned by the company dashboard
// endpoint, scoped by the backend to the calling company.
type DashboardStats struct {
	TotalInternships     int `json:"totalInternships"`
	TotalApplications    int `json:"totalApplications"`
	AcceptedApplications int `json:"acceptedApplications"`
	TotalEnrollments     int `json:"totalEnrollments"`
	AcceptedEnrollments  int `json:"acceptedEnrollments"`
}
