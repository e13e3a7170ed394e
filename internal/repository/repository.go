package repository

import (
	"context"

	"github.com/skillbit/marketplace/internal/domain"
)

// UserRepository persists marketplace accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

// LedgerRepository owns credit, wallet and verification-flag arithmetic.
// Balance mutations are atomic: the balance update and the log row insert
// happen in one transaction, and guarded decrements fail with
// ErrInsufficientBalance without touching state. Both economies are
// append-only logged: credits in credit_transactions, wallet money and
// diamonds in wallet_transactions.
type LedgerRepository interface {
	ApplyCredits(ctx context.Context, tx *domain.CreditTransaction) (int, error)
	ListTransactions(ctx context.Context, email string, limit int) ([]domain.CreditTransaction, error)
	MarkPhoneVerified(ctx context.Context, email string) (bool, error)
	MarkLinkedInVerified(ctx context.Context, email string) (bool, error)
	SetResumeText(ctx context.Context, email, text string) (bool, error)
	GetWallet(ctx context.Context, email string) (*domain.Wallet, error)
	ApplyWallet(ctx context.Context, tx *domain.WalletTransaction) (*domain.Wallet, error)
	ListWalletTransactions(ctx context.Context, email string, limit int) ([]domain.WalletTransaction, error)
}

// JobRepository persists job postings.
type JobRepository interface {
	CreateJob(ctx context.Context, job *domain.Job) error
	UpdateJob(ctx context.Context, job *domain.Job) error
	DeleteJob(ctx context.Context, jobID string) error
	GetJobByID(ctx context.Context, jobID string) (*domain.Job, error)
	ListJobs(ctx context.Context, search string) ([]domain.Job, error)
	ListJobsByRecruiter(ctx context.Context, recruiterEmail string) ([]domain.Job, error)
}

// ApplicationRepository stores application history.
type ApplicationRepository interface {
	CreateApplication(ctx context.Context, app *domain.Application) error
	GetApplicationByID(ctx context.Context, appID string) (*domain.Application, error)
	UpdateApplicationStatus(ctx context.Context, update domain.ApplicationStatusUpdate) error
	ListApplicationsByCandidate(ctx context.Context, candidateEmail string) ([]domain.Application, error)
	ListApplicationsByRecruiter(ctx context.Context, recruiterEmail string) ([]domain.Application, error)
	ListApplicationsForCandidateOfRecruiter(ctx context.Context, recruiterEmail, candidateEmail string) ([]domain.Application, error)
}
