package domain

import "time"

// Job describes a posting owned by a recruiter. Ownership is immutable.
type Job struct {
	ID             string
	RecruiterEmail string
	Title          string
	Company        string
	Location       string
	Salary         string
	Description    string
	Experience     string
	Skills         []string
	ReferralBonus  int
	PostedAt       time.Time
}

// IsPremium reports whether applying to the job costs credits.
func (j *Job) IsPremium() bool {
	return j.ReferralBonus > 0
}
