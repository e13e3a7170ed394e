package job

import (
	"context"
	"errors"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/skillbit/marketplace/internal/domain"
	"github.com/skillbit/marketplace/internal/repository"
)

var (
	// ErrForbidden is returned when a recruiter touches a posting they
	// do not own.
	ErrForbidden = errors.New("job is owned by another recruiter")

	errInvalidTitle       = errors.New("job title is required")
	errInvalidLocation    = errors.New("job location is required")
	errInvalidSalary      = errors.New("job salary is required")
	errInvalidDescription = errors.New("job description is required")
	errNegativeBonus      = errors.New("referral bonus cannot be negative")
	errMissingJobID       = errors.New("job id required")
)

// PostInput encapsulates job posting attributes.
type PostInput struct {
	RecruiterEmail string
	Title          string
	Company        string
	Location       string
	Salary         string
	Description    string
	Experience     string
	Skills         []string
	ReferralBonus  int
}

// Service orchestrates job posting management.
type Service struct {
	jobs   repository.JobRepository
	logger *slog.Logger
}

// New returns a job service.
func New(jobs repository.JobRepository, logger *slog.Logger) Service {
	return Service{jobs: jobs, logger: logger}
}

// Post creates a new job owned by the recruiter.
func (s Service) Post(ctx context.Context, input PostInput) (*domain.Job, error) {
	if err := validate(input); err != nil {
		return nil, err
	}
	job := &domain.Job{
		ID:             uuid.NewString(),
		RecruiterEmail: input.RecruiterEmail,
		Title:          strings.TrimSpace(input.Title),
		Company:        strings.TrimSpace(input.Company),
		Location:       strings.TrimSpace(input.Location),
		Salary:         strings.TrimSpace(input.Salary),
		Description:    input.Description,
		Experience:     input.Experience,
		Skills:         trimSkills(input.Skills),
		ReferralBonus:  input.ReferralBonus,
		PostedAt:       time.Now().UTC(),
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	s.logger.Info("job posted", "job_id", job.ID, "recruiter", job.RecruiterEmail, "premium", job.IsPremium())
	return job, nil
}

// Update edits a posting. Ownership is immutable: only the owning
// recruiter may edit, and the recruiter email on the row never changes.
func (s Service) Update(ctx context.Context, recruiterEmail, jobID string, input PostInput) (*domain.Job, error) {
	if err := validate(input); err != nil {
		return nil, err
	}
	existing, err := s.owned(ctx, recruiterEmail, jobID)
	if err != nil {
		return nil, err
	}
	existing.Title = strings.TrimSpace(input.Title)
	existing.Company = strings.TrimSpace(input.Company)
	existing.Location = strings.TrimSpace(input.Location)
	existing.Salary = strings.TrimSpace(input.Salary)
	existing.Description = input.Description
	existing.Experience = input.Experience
	existing.Skills = trimSkills(input.Skills)
	existing.ReferralBonus = input.ReferralBonus
	if err := s.jobs.UpdateJob(ctx, existing); err != nil {
		return nil, err
	}
	s.logger.Info("job updated", "job_id", existing.ID, "recruiter", recruiterEmail)
	return existing, nil
}

// Delete removes a posting owned by the recruiter.
func (s Service) Delete(ctx context.Context, recruiterEmail, jobID string) error {
	if _, err := s.owned(ctx, recruiterEmail, jobID); err != nil {
		return err
	}
	if err := s.jobs.DeleteJob(ctx, jobID); err != nil {
		return err
	}
	s.logger.Info("job deleted", "job_id", jobID, "recruiter", recruiterEmail)
	return nil
}

// Get returns one posting by id.
func (s Service) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, errMissingJobID
	}
	return s.jobs.GetJobByID(ctx, jobID)
}

// List returns postings matching the optional search term.
func (s Service) List(ctx context.Context, search string) ([]domain.Job, error) {
	return s.jobs.ListJobs(ctx, strings.TrimSpace(search))
}

// ListByRecruiter returns postings owned by the recruiter.
func (s Service) ListByRecruiter(ctx context.Context, recruiterEmail string) ([]domain.Job, error) {
	return s.jobs.ListJobsByRecruiter(ctx, recruiterEmail)
}

func (s Service) owned(ctx context.Context, recruiterEmail, jobID string) (*domain.Job, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, errMissingJobID
	}
	job, err := s.jobs.GetJobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.RecruiterEmail != recruiterEmail {
		return nil, ErrForbidden
	}
	return job, nil
}

func validate(input PostInput) error {
	switch {
	case strings.TrimSpace(input.Title) == "":
		return errInvalidTitle
	case strings.TrimSpace(input.Location) == "":
		return errInvalidLocation
	case strings.TrimSpace(input.Salary) == "":
		return errInvalidSalary
	case strings.TrimSpace(input.Description) == "":
		return errInvalidDescription
	case input.ReferralBonus < 0:
		return errNegativeBonus
	}
	return nil
}

func trimSkills(skills []string) []string {
	out := make([]string, 0, len(skills))
	for _, skill := range skills {
		if trimmed := strings.TrimSpace(skill); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
