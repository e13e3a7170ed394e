package dashboard

import (
	"context"
	"strings"
	"sync"

	"log/slog"

	"github.com/google/uuid"

	apiclient "github.com/skillbit/marketplace/pkg/api/client"
)

// premiumApplyCost mirrors the server-side charge so the optimistic
// deduction matches what the ledger will confirm.
const premiumApplyCost = 6

// CandidateController orchestrates the job seeker workflows: browsing,
// applying, referrals, profile awards and practice sessions.
//
// Balance changes follow a two-phase commit: the tentative value is
// applied locally under a request id, then confirmed or rolled back
// against the backend response. The displayed balance is only ever
// derived from confirmed ledger state plus in-flight tentative deltas.
type CandidateController struct {
	api     Backend
	session *Session
	notify  Notifier
	logger  *slog.Logger

	// opMu serializes ledger-affecting calls so transactions apply in
	// the order their actions were issued.
	opMu sync.Mutex

	mu           sync.Mutex
	credits      int
	wallet       apiclient.WalletBalance
	applications []apiclient.Application
	pending      map[string]pendingCredits
}

type pendingCredits struct {
	previous int
}

// NewCandidateController builds a controller bound to one session.
func NewCandidateController(api Backend, session *Session, notify Notifier, logger *slog.Logger) *CandidateController {
	if notify == nil {
		notify = func(string) {}
	}
	return &CandidateController{
		api:     api,
		session: session,
		notify:  notify,
		logger:  logger,
		pending: make(map[string]pendingCredits),
	}
}

// Refresh pulls confirmed state from the backend.
func (c *CandidateController) Refresh(ctx context.Context) error {
	user, err := c.api.Me(ctx, c.session.AccessToken)
	if err != nil {
		return err
	}
	wallet, err := c.api.GetWallet(ctx, c.session.AccessToken)
	if err != nil {
		return err
	}
	apps, err := c.api.ListCandidateApplications(ctx, c.session.AccessToken, c.session.Email)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.credits = user.Credits
	c.wallet = wallet
	c.applications = apps
	c.mu.Unlock()
	return nil
}

// Credits returns the displayed balance: confirmed state plus any
// tentative in-flight deltas.
func (c *CandidateController) Credits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.credits
}

// Wallet returns the displayed quiz wallet.
func (c *CandidateController) Wallet() apiclient.WalletBalance {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wallet
}

// Applications returns the cached application list.
func (c *CandidateController) Applications() []apiclient.Application {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]apiclient.Application, len(c.applications))
	copy(out, c.applications)
	return out
}

// BrowseJobs lists postings matching the search term.
func (c *CandidateController) BrowseJobs(ctx context.Context, search string) ([]apiclient.Job, error) {
	return c.api.ListJobs(ctx, c.session.AccessToken, search)
}

// Apply submits an application for the signed-in candidate. For premium
// jobs the credit cost is deducted tentatively before the backend call and
// rolled back if the backend rejects it.
func (c *CandidateController) Apply(ctx context.Context, job apiclient.Job) (apiclient.ApplyResult, error) {
	return c.submitApplication(ctx, job, "")
}

// Refer submits an application on behalf of another candidate. The premium
// charge lands on the referred candidate's ledger, never the referrer's.
func (c *CandidateController) Refer(ctx context.Context, job apiclient.Job, candidateEmail string) (apiclient.ApplyResult, error) {
	return c.submitApplication(ctx, job, candidateEmail)
}

func (c *CandidateController) submitApplication(ctx context.Context, job apiclient.Job, candidateEmail string) (apiclient.ApplyResult, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	// The backend charges the candidate, so the deduction is only staged
	// when the acting user is the one applying.
	actingIsCandidate := candidateEmail == "" || strings.EqualFold(candidateEmail, c.session.Email)
	requestID := ""
	if job.IsPremium() && actingIsCandidate {
		requestID = c.stageCreditDelta(-premiumApplyCost)
	}
	result, err := c.api.Apply(ctx, c.session.AccessToken, job.ID, candidateEmail)
	if err != nil {
		c.rollbackCredits(requestID, err.Error())
		return apiclient.ApplyResult{}, err
	}
	c.confirmCredits(requestID)

	c.mu.Lock()
	if candidateEmail == "" || candidateEmail == c.session.Email {
		c.applications = append([]apiclient.Application{{
			ID:             result.ApplicationID,
			JobID:          job.ID,
			CandidateEmail: c.session.Email,
			JobTitle:       job.Title,
			Company:        job.Company,
			AIScore:        result.AIScore,
			Status:         "Received",
		}}, c.applications...)
	}
	c.mu.Unlock()
	return result, nil
}

// stageCreditDelta applies a tentative balance change and returns its
// request id.
func (c *CandidateController) stageCreditDelta(delta int) string {
	requestID := uuid.NewString()
	c.mu.Lock()
	c.pending[requestID] = pendingCredits{previous: c.credits}
	c.credits += delta
	c.mu.Unlock()
	return requestID
}

// confirmCredits finalizes a tentative change.
func (c *CandidateController) confirmCredits(requestID string) {
	if requestID == "" {
		return
	}
	c.mu.Lock()
	delete(c.pending, requestID)
	c.mu.Unlock()
}

// rollbackCredits reverts to the last confirmed balance and surfaces the
// failure reason.
func (c *CandidateController) rollbackCredits(requestID, reason string) {
	if requestID != "" {
		c.mu.Lock()
		if change, ok := c.pending[requestID]; ok {
			c.credits = change.previous
			delete(c.pending, requestID)
		}
		c.mu.Unlock()
	}
	c.notify(reason)
}

// UploadResume submits the resume and applies the confirmed award.
func (c *CandidateController) UploadResume(ctx context.Context, fileName string, content []byte) (apiclient.UploadResult, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	result, err := c.api.UploadResume(ctx, c.session.AccessToken, fileName, content)
	if err != nil {
		c.notify(err.Error())
		return apiclient.UploadResult{}, err
	}
	c.applyAward(result)
	return result, nil
}

// VerifyPhone triggers the one-time phone verification award.
func (c *CandidateController) VerifyPhone(ctx context.Context) (apiclient.UploadResult, error) {
	return c.verify(ctx, c.api.VerifyPhone)
}

// VerifyLinkedIn triggers the one-time LinkedIn verification award.
func (c *CandidateController) VerifyLinkedIn(ctx context.Context) (apiclient.UploadResult, error) {
	return c.verify(ctx, c.api.VerifyLinkedIn)
}

func (c *CandidateController) verify(ctx context.Context, call func(context.Context, string) (apiclient.UploadResult, error)) (apiclient.UploadResult, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	result, err := call(ctx, c.session.AccessToken)
	if err != nil {
		c.notify(err.Error())
		return apiclient.UploadResult{}, err
	}
	c.applyAward(result)
	return result, nil
}

func (c *CandidateController) applyAward(result apiclient.UploadResult) {
	if !result.Awarded {
		return
	}
	c.mu.Lock()
	c.credits = result.Credits
	c.mu.Unlock()
}

// StartInterview begins a timed practice interview.
func (c *CandidateController) StartInterview(ctx context.Context, topic string) (apiclient.SessionQuestion, error) {
	return c.api.GenerateInterview(ctx, c.session.AccessToken, topic)
}

// AnswerInterview consumes the outstanding interview attempt and applies
// any confirmed credit award.
func (c *CandidateController) AnswerInterview(ctx context.Context, attemptID, answer string) (apiclient.SessionResult, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	result, err := c.api.SubmitInterview(ctx, c.session.AccessToken, attemptID, answer)
	if err != nil {
		c.notify(err.Error())
		return apiclient.SessionResult{}, err
	}
	if result.AwardedCredits > 0 {
		c.mu.Lock()
		c.credits += result.AwardedCredits
		c.mu.Unlock()
	}
	return result, nil
}

// StartQuiz begins a paid quiz attempt. The wallet charge is tentative
// until the backend confirms the attempt started.
func (c *CandidateController) StartQuiz(ctx context.Context, topic string) (apiclient.SessionQuestion, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	previous := c.wallet
	c.wallet.Balance -= quizAttemptCost
	c.mu.Unlock()

	question, err := c.api.GenerateQuiz(ctx, c.session.AccessToken, topic)
	if err != nil {
		c.mu.Lock()
		c.wallet = previous
		c.mu.Unlock()
		c.notify(err.Error())
		return apiclient.SessionQuestion{}, err
	}
	return question, nil
}

// AnswerQuiz consumes the outstanding quiz attempt and applies any
// confirmed diamond award.
func (c *CandidateController) AnswerQuiz(ctx context.Context, attemptID, answer string) (apiclient.SessionResult, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	result, err := c.api.SubmitQuiz(ctx, c.session.AccessToken, attemptID, answer)
	if err != nil {
		c.notify(err.Error())
		return apiclient.SessionResult{}, err
	}
	if result.AwardedDiamonds > 0 {
		c.mu.Lock()
		c.wallet.Diamonds += result.AwardedDiamonds
		c.mu.Unlock()
	}
	return result, nil
}

// TopUpWallet adds funds to the quiz wallet and stores the confirmed
// balance.
func (c *CandidateController) TopUpWallet(ctx context.Context, amount int) (apiclient.WalletBalance, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	wallet, err := c.api.AddWalletFunds(ctx, c.session.AccessToken, amount)
	if err != nil {
		c.notify(err.Error())
		return apiclient.WalletBalance{}, err
	}
	c.mu.Lock()
	c.wallet = wallet
	c.mu.Unlock()
	return wallet, nil
}

// quizAttemptCost mirrors the server-side quiz charge.
const quizAttemptCost = 10
