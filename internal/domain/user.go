package domain

import "time"

// Roles a marketplace account can hold.
const (
	RoleJobSeeker = "job_seeker"
	RoleRecruiter = "recruiter"
)

// User represents a marketplace account.
type User struct {
	ID               string
	Email            string
	Name             string
	PasswordHash     []byte
	Role             string
	Credits          int
	PhoneVerified    bool
	LinkedInVerified bool
	ResumeText       string
	Company          string
	Designation      string
	CreatedAt        time.Time
}

// HasResume reports whether a resume has been uploaded for the user.
func (u *User) HasResume() bool {
	return u.ResumeText != ""
}

// Wallet holds the quiz economy balances for a user. Wallet money funds quiz
// attempts; diamonds are earn-only and never convert to credits.
type Wallet struct {
	UserEmail string
	Balance   int
	Diamonds  int
	UpdatedAt time.Time
}
