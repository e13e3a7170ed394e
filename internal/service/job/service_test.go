package job

import (
	"context"
	"errors"
	"io"
	"testing"

	"log/slog"

	"github.com/google/uuid"

	"github.com/skillbit/marketplace/internal/domain"
	"github.com/skillbit/marketplace/internal/repository"
)

func TestPostTrimsAndStoresJob(t *testing.T) {
	repo := &fakeJobRepo{}
	svc := newTestService(repo)

	job, err := svc.Post(context.Background(), PostInput{
		RecruiterEmail: "recruiter@corp.com",
		Title:          "  Backend Engineer  ",
		Company:        "Corp",
		Location:       " Bangalore ",
		Salary:         "30-40 LPA",
		Description:    "go services",
		Skills:         []string{" go ", "", "postgres"},
		ReferralBonus:  5000,
	})
	if err != nil {
		t.Fatalf("Post returned error: %v", err)
	}
	if job.Title != "Backend Engineer" || job.Location != "Bangalore" {
		t.Fatalf("expected trimmed fields, got %q / %q", job.Title, job.Location)
	}
	if len(job.Skills) != 2 || job.Skills[0] != "go" || job.Skills[1] != "postgres" {
		t.Fatalf("expected trimmed skills, got %v", job.Skills)
	}
	if !job.IsPremium() {
		t.Fatal("expected a referral bonus to make the job premium")
	}
	if repo.created == nil || repo.created.ID != job.ID {
		t.Fatal("expected job to be persisted")
	}
}

func TestPostValidatesRequiredFields(t *testing.T) {
	svc := newTestService(&fakeJobRepo{})
	base := PostInput{
		RecruiterEmail: "recruiter@corp.com",
		Title:          "Backend Engineer",
		Location:       "Remote",
		Salary:         "30-40 LPA",
		Description:    "go services",
	}

	cases := []struct {
		name   string
		mutate func(*PostInput)
	}{
		{"missing title", func(in *PostInput) { in.Title = "  " }},
		{"missing location", func(in *PostInput) { in.Location = "" }},
		{"missing salary", func(in *PostInput) { in.Salary = "" }},
		{"missing description", func(in *PostInput) { in.Description = "" }},
		{"negative bonus", func(in *PostInput) { in.ReferralBonus = -1 }},
	}
	for _, tc := range cases {
		input := base
		tc.mutate(&input)
		if _, err := svc.Post(context.Background(), input); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestUpdateByNonOwnerForbidden(t *testing.T) {
	repo := &fakeJobRepo{job: ownedJob()}
	svc := newTestService(repo)

	_, err := svc.Update(context.Background(), "intruder@other.com", repo.job.ID, validInput())
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if repo.updateCalls != 0 {
		t.Fatalf("expected no update, got %d", repo.updateCalls)
	}
}

func TestUpdateKeepsOwnership(t *testing.T) {
	repo := &fakeJobRepo{job: ownedJob()}
	svc := newTestService(repo)

	updated, err := svc.Update(context.Background(), "recruiter@corp.com", repo.job.ID, validInput())
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if updated.RecruiterEmail != "recruiter@corp.com" {
		t.Fatalf("expected ownership preserved, got %q", updated.RecruiterEmail)
	}
	if repo.updateCalls != 1 {
		t.Fatalf("expected one update, got %d", repo.updateCalls)
	}
}

func TestDeleteByNonOwnerForbidden(t *testing.T) {
	repo := &fakeJobRepo{job: ownedJob()}
	svc := newTestService(repo)

	if err := svc.Delete(context.Background(), "intruder@other.com", repo.job.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if repo.deleteCalls != 0 {
		t.Fatalf("expected no delete, got %d", repo.deleteCalls)
	}
}

func TestDeleteByOwner(t *testing.T) {
	repo := &fakeJobRepo{job: ownedJob()}
	svc := newTestService(repo)

	if err := svc.Delete(context.Background(), "recruiter@corp.com", repo.job.ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if repo.deleteCalls != 1 {
		t.Fatalf("expected one delete, got %d", repo.deleteCalls)
	}
}

func TestGetRequiresJobID(t *testing.T) {
	svc := newTestService(&fakeJobRepo{})
	if _, err := svc.Get(context.Background(), "  "); err == nil {
		t.Fatal("expected error for blank job id")
	}
}

func ownedJob() *domain.Job {
	return &domain.Job{
		ID:             uuid.NewString(),
		RecruiterEmail: "recruiter@corp.com",
		Title:          "Backend Engineer",
		Location:       "Remote",
		Salary:         "30-40 LPA",
		Description:    "go services",
	}
}

func validInput() PostInput {
	return PostInput{
		Title:       "Senior Backend Engineer",
		Location:    "Remote",
		Salary:      "40-50 LPA",
		Description: "go and postgres services",
	}
}

type fakeJobRepo struct {
	job         *domain.Job
	created     *domain.Job
	updateCalls int
	deleteCalls int
}

func (f *fakeJobRepo) CreateJob(_ context.Context, job *domain.Job) error {
	f.created = job
	return nil
}

func (f *fakeJobRepo) UpdateJob(_ context.Context, job *domain.Job) error {
	f.updateCalls++
	f.job = job
	return nil
}

func (f *fakeJobRepo) DeleteJob(context.Context, string) error {
	f.deleteCalls++
	return nil
}

func (f *fakeJobRepo) GetJobByID(_ context.Context, id string) (*domain.Job, error) {
	if f.job == nil || f.job.ID != id {
		return nil, repository.ErrNotFound
	}
	copied := *f.job
	return &copied, nil
}

func (f *fakeJobRepo) ListJobs(context.Context, string) ([]domain.Job, error) { return nil, nil }
func (f *fakeJobRepo) ListJobsByRecruiter(context.Context, string) ([]domain.Job, error) {
	return nil, nil
}

func newTestService(repo *fakeJobRepo) Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return New(repo, logger)
}
