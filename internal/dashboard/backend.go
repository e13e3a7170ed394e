package dashboard

import (
	"context"

	apiclient "github.com/skillbit/marketplace/pkg/api/client"
)

// Backend is the slice of the API client the controllers depend on. Tests
// substitute a stub to simulate backend rejections deterministically.
type Backend interface {
	Me(ctx context.Context, token string) (apiclient.User, error)
	ListJobs(ctx context.Context, token, search string) ([]apiclient.Job, error)
	ListMyJobs(ctx context.Context, token string) ([]apiclient.Job, error)
	PostJob(ctx context.Context, token string, input apiclient.PostJobInput) (apiclient.Job, error)
	UpdateJob(ctx context.Context, token, jobID string, input apiclient.PostJobInput) (apiclient.Job, error)
	DeleteJob(ctx context.Context, token, jobID string) error
	Apply(ctx context.Context, token, jobID, candidateEmail string) (apiclient.ApplyResult, error)
	UpdateApplicationStatus(ctx context.Context, token, applicationID, status string) (apiclient.Application, error)
	ListCandidateApplications(ctx context.Context, token, email string) ([]apiclient.Application, error)
	ListRecruiterApplications(ctx context.Context, token string) ([]apiclient.Application, error)
	ListCandidateHistory(ctx context.Context, token, email string) ([]apiclient.Application, error)
	GenerateInterview(ctx context.Context, token, topic string) (apiclient.SessionQuestion, error)
	SubmitInterview(ctx context.Context, token, attemptID, answer string) (apiclient.SessionResult, error)
	GenerateQuiz(ctx context.Context, token, topic string) (apiclient.SessionQuestion, error)
	SubmitQuiz(ctx context.Context, token, attemptID, answer string) (apiclient.SessionResult, error)
	AddWalletFunds(ctx context.Context, token string, amount int) (apiclient.WalletBalance, error)
	GetWallet(ctx context.Context, token string) (apiclient.WalletBalance, error)
	UploadResume(ctx context.Context, token, fileName string, content []byte) (apiclient.UploadResult, error)
	VerifyPhone(ctx context.Context, token string) (apiclient.UploadResult, error)
	VerifyLinkedIn(ctx context.Context, token string) (apiclient.UploadResult, error)
}

// Notifier surfaces transient failure and progress messages to the user.
type Notifier func(message string)
