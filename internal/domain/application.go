package domain

import "time"

// Application captures a single candidate's (or referral's) run at a job.
// At most one application exists per (job, candidate) pair.
type Application struct {
	ID             string
	JobID          string
	CandidateEmail string
	ReferrerEmail  *string
	JobTitle       string
	Company        string
	AIScore        *int
	Status         string
	AppliedAt      time.Time
}

// IsReferral reports whether the application was submitted on behalf of the
// candidate by someone else.
func (a *Application) IsReferral() bool {
	return a.ReferrerEmail != nil && *a.ReferrerEmail != ""
}

// ApplicationStatusUpdate captures a recruiter-driven status change.
type ApplicationStatusUpdate struct {
	ApplicationID string
	Status        string
	UpdatedAt     time.Time
}
