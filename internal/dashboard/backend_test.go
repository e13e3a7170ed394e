package dashboard

import (
	"context"

	apiclient "github.com/skillbit/marketplace/pkg/api/client"
)

// stubBackend simulates the API with canned responses and per-call errors.
type stubBackend struct {
	user   apiclient.User
	wallet apiclient.WalletBalance

	jobs         []apiclient.Job
	applications []apiclient.Application

	applyResult        apiclient.ApplyResult
	applyErr           error
	lastCandidateEmail string

	postJobErr error
	deleteErr  error

	statusResult apiclient.Application
	statusErr    error

	interviewResult apiclient.SessionResult
	quizQuestion    apiclient.SessionQuestion
	quizResult      apiclient.SessionResult
	quizErr         error

	uploadResult apiclient.UploadResult
	uploadErr    error

	topUpResult apiclient.WalletBalance
	topUpErr    error
}

func newStubBackend() *stubBackend {
	return &stubBackend{}
}

func (s *stubBackend) Me(context.Context, string) (apiclient.User, error) {
	return s.user, nil
}

func (s *stubBackend) ListJobs(context.Context, string, string) ([]apiclient.Job, error) {
	return s.jobs, nil
}

func (s *stubBackend) ListMyJobs(context.Context, string) ([]apiclient.Job, error) {
	return s.jobs, nil
}

func (s *stubBackend) PostJob(_ context.Context, _ string, input apiclient.PostJobInput) (apiclient.Job, error) {
	if s.postJobErr != nil {
		return apiclient.Job{}, s.postJobErr
	}
	return apiclient.Job{ID: "job-new", Title: input.Title, Company: input.Company, ReferralBonus: input.ReferralBonus}, nil
}

func (s *stubBackend) UpdateJob(_ context.Context, _ string, jobID string, input apiclient.PostJobInput) (apiclient.Job, error) {
	return apiclient.Job{ID: jobID, Title: input.Title, Company: input.Company, ReferralBonus: input.ReferralBonus}, nil
}

func (s *stubBackend) DeleteJob(context.Context, string, string) error {
	return s.deleteErr
}

func (s *stubBackend) Apply(_ context.Context, _ string, _ string, candidateEmail string) (apiclient.ApplyResult, error) {
	s.lastCandidateEmail = candidateEmail
	if s.applyErr != nil {
		return apiclient.ApplyResult{}, s.applyErr
	}
	return s.applyResult, nil
}

func (s *stubBackend) UpdateApplicationStatus(context.Context, string, string, string) (apiclient.Application, error) {
	if s.statusErr != nil {
		return apiclient.Application{}, s.statusErr
	}
	return s.statusResult, nil
}

func (s *stubBackend) ListCandidateApplications(context.Context, string, string) ([]apiclient.Application, error) {
	return s.applications, nil
}

func (s *stubBackend) ListRecruiterApplications(context.Context, string) ([]apiclient.Application, error) {
	return s.applications, nil
}

func (s *stubBackend) ListCandidateHistory(context.Context, string, string) ([]apiclient.Application, error) {
	return s.applications, nil
}

func (s *stubBackend) GenerateInterview(context.Context, string, string) (apiclient.SessionQuestion, error) {
	return apiclient.SessionQuestion{AttemptID: "attempt-1", Kind: "interview"}, nil
}

func (s *stubBackend) SubmitInterview(context.Context, string, string, string) (apiclient.SessionResult, error) {
	return s.interviewResult, nil
}

func (s *stubBackend) GenerateQuiz(context.Context, string, string) (apiclient.SessionQuestion, error) {
	if s.quizErr != nil {
		return apiclient.SessionQuestion{}, s.quizErr
	}
	return s.quizQuestion, nil
}

func (s *stubBackend) SubmitQuiz(context.Context, string, string, string) (apiclient.SessionResult, error) {
	return s.quizResult, nil
}

func (s *stubBackend) AddWalletFunds(context.Context, string, int) (apiclient.WalletBalance, error) {
	if s.topUpErr != nil {
		return apiclient.WalletBalance{}, s.topUpErr
	}
	return s.topUpResult, nil
}

func (s *stubBackend) GetWallet(context.Context, string) (apiclient.WalletBalance, error) {
	return s.wallet, nil
}

func (s *stubBackend) UploadResume(context.Context, string, string, []byte) (apiclient.UploadResult, error) {
	if s.uploadErr != nil {
		return apiclient.UploadResult{}, s.uploadErr
	}
	return s.uploadResult, nil
}

func (s *stubBackend) VerifyPhone(context.Context, string) (apiclient.UploadResult, error) {
	if s.uploadErr != nil {
		return apiclient.UploadResult{}, s.uploadErr
	}
	return s.uploadResult, nil
}

func (s *stubBackend) VerifyLinkedIn(context.Context, string) (apiclient.UploadResult, error) {
	if s.uploadErr != nil {
		return apiclient.UploadResult{}, s.uploadErr
	}
	return s.uploadResult, nil
}
