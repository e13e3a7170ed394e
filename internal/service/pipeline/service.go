package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/skillbit/marketplace/internal/domain"
	"github.com/skillbit/marketplace/internal/repository"
	"github.com/skillbit/marketplace/internal/service/ledger"
	"github.com/skillbit/marketplace/internal/service/oracle"
	"github.com/skillbit/marketplace/internal/ws"
	"github.com/skillbit/marketplace/pkg/config"
)

// Application statuses. Transitions move forward only, except Rejected,
// which is reachable from any non-terminal status.
const (
	StatusReceived     = "Received"
	StatusShortlisted  = "Shortlisted"
	StatusInterviewing = "Interviewing"
	StatusHired        = "Hired"
	StatusRejected     = "Rejected"
)

var (
	// ErrDuplicateApplication is returned on a second apply for the same
	// (job, candidate) pair.
	ErrDuplicateApplication = errors.New("application already exists for this job and candidate")
	// ErrInvalidTransition is returned for an edge the state graph does
	// not allow.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrTerminalState is returned when transitioning out of Hired or
	// Rejected.
	ErrTerminalState = errors.New("application is in a terminal state")
	// ErrForbidden is returned when a recruiter transitions an
	// application for a job they do not own.
	ErrForbidden = errors.New("application belongs to another recruiter's job")

	errSelfReferral     = errors.New("referrer and candidate must differ")
	errMissingCandidate = errors.New("candidate email required")
	errUnknownStatus    = errors.New("unknown application status")
)

// forward is the sanctioned forward edge per status. Rejected is handled
// separately: it is reachable from every non-terminal status.
var forward = map[string]string{
	StatusReceived:     StatusShortlisted,
	StatusShortlisted:  StatusInterviewing,
	StatusInterviewing: StatusHired,
}

// CreateInput encapsulates an apply or refer intent.
type CreateInput struct {
	JobID          string
	CandidateEmail string
	ReferrerEmail  string
}

// Service drives the application lifecycle: creation with screening and
// premium-spend, and the recruiter-facing status state machine.
type Service struct {
	apps   repository.ApplicationRepository
	users  repository.UserRepository
	jobs   repository.JobRepository
	ledger ledger.Service
	oracle oracle.Client
	hub    *ws.Hub
	logger *slog.Logger
	cfg    config.APIConfig
}

// New returns a pipeline service.
func New(apps repository.ApplicationRepository, users repository.UserRepository, jobs repository.JobRepository, ledgerSvc ledger.Service, oracleClient oracle.Client, hub *ws.Hub, logger *slog.Logger, cfg config.APIConfig) Service {
	return Service{
		apps:   apps,
		users:  users,
		jobs:   jobs,
		ledger: ledgerSvc,
		oracle: oracleClient,
		hub:    hub,
		logger: logger,
		cfg:    cfg,
	}
}

// Create submits an application. Premium jobs charge the candidate a fixed
// credit cost before insertion; the charge is refunded if insertion fails.
// Oracle outages never block creation: the application lands with a nil
// score instead.
func (s Service) Create(ctx context.Context, input CreateInput) (*domain.Application, error) {
	candidate := strings.TrimSpace(input.CandidateEmail)
	if candidate == "" {
		return nil, errMissingCandidate
	}
	referrer := strings.TrimSpace(input.ReferrerEmail)
	if referrer != "" && strings.EqualFold(referrer, candidate) {
		return nil, errSelfReferral
	}

	job, err := s.jobs.GetJobByID(ctx, input.JobID)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetUserByEmail(ctx, candidate)
	if err != nil {
		return nil, err
	}

	charged := 0
	if job.IsPremium() {
		if _, err := s.ledger.Spend(ctx, candidate, s.cfg.PremiumApplyCost, domain.ReasonJobApplySpend); err != nil {
			return nil, err
		}
		charged = s.cfg.PremiumApplyCost
	}

	app := &domain.Application{
		ID:             uuid.NewString(),
		JobID:          job.ID,
		CandidateEmail: candidate,
		JobTitle:       job.Title,
		Company:        job.Company,
		Status:         StatusReceived,
		AppliedAt:      time.Now().UTC(),
	}
	if referrer != "" {
		app.ReferrerEmail = &referrer
	}
	app.AIScore = s.screen(ctx, user, job)

	if err := s.apps.CreateApplication(ctx, app); err != nil {
		s.refund(ctx, candidate, charged)
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrDuplicateApplication
		}
		return nil, err
	}

	s.logger.Info("application created", "application_id", app.ID, "job_id", job.ID, "candidate", candidate, "referral", app.IsReferral())
	s.notifyStatus(job.RecruiterEmail, app)
	return app, nil
}

func (s Service) screen(ctx context.Context, user *domain.User, job *domain.Job) *int {
	if s.oracle == nil || !user.HasResume() {
		return nil
	}
	score, err := s.oracle.Score(ctx, user.ResumeText, job.Description)
	if err != nil {
		s.logger.Warn("screening unavailable, deferring score", "job_id", job.ID, "candidate", user.Email, "error", err)
		return nil
	}
	return &score
}

func (s Service) refund(ctx context.Context, email string, amount int) {
	if amount <= 0 {
		return
	}
	if _, err := s.ledger.Earn(ctx, email, domain.ReasonJobApplyRefund, amount); err != nil {
		s.logger.Error("apply refund failed", "candidate", email, "amount", amount, "error", err)
	}
}

// Transition moves an application to newStatus on behalf of the recruiter.
// Only the recruiter owning the parent job may transition; illegal edges
// leave state unchanged.
func (s Service) Transition(ctx context.Context, recruiterEmail, applicationID, newStatus string) (*domain.Application, error) {
	app, err := s.apps.GetApplicationByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	job, err := s.jobs.GetJobByID(ctx, app.JobID)
	if err != nil {
		return nil, err
	}
	if job.RecruiterEmail != recruiterEmail {
		return nil, ErrForbidden
	}
	if err := validateEdge(app.Status, newStatus); err != nil {
		return nil, err
	}

	update := domain.ApplicationStatusUpdate{
		ApplicationID: app.ID,
		Status:        newStatus,
		UpdatedAt:     time.Now().UTC(),
	}
	if err := s.apps.UpdateApplicationStatus(ctx, update); err != nil {
		return nil, err
	}
	app.Status = newStatus
	s.logger.Info("application transitioned", "application_id", app.ID, "status", newStatus, "recruiter", recruiterEmail)
	s.notifyStatus(app.CandidateEmail, app)
	return app, nil
}

func validateEdge(current, next string) error {
	if !knownStatus(next) {
		return errUnknownStatus
	}
	if current == StatusHired || current == StatusRejected {
		return ErrTerminalState
	}
	if next == StatusRejected {
		return nil
	}
	if forward[current] != next {
		return ErrInvalidTransition
	}
	return nil
}

func knownStatus(status string) bool {
	switch status {
	case StatusReceived, StatusShortlisted, StatusInterviewing, StatusHired, StatusRejected:
		return true
	}
	return false
}

// ListByCandidate returns the candidate's applications, newest first.
func (s Service) ListByCandidate(ctx context.Context, candidateEmail string) ([]domain.Application, error) {
	return s.apps.ListApplicationsByCandidate(ctx, candidateEmail)
}

// ListByRecruiter returns applications across the recruiter's jobs,
// newest first.
func (s Service) ListByRecruiter(ctx context.Context, recruiterEmail string) ([]domain.Application, error) {
	return s.apps.ListApplicationsByRecruiter(ctx, recruiterEmail)
}

// ListCandidateHistory returns one candidate's applications limited to the
// recruiter's jobs.
func (s Service) ListCandidateHistory(ctx context.Context, recruiterEmail, candidateEmail string) ([]domain.Application, error) {
	return s.apps.ListApplicationsForCandidateOfRecruiter(ctx, recruiterEmail, candidateEmail)
}

func (s Service) notifyStatus(userEmail string, app *domain.Application) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(userEmail, ws.Event{Type: "application_status", Data: map[string]any{
		"application_id": app.ID,
		"job_id":         app.JobID,
		"status":         app.Status,
	}})
}
