package dashboard

import (
	"context"
	"errors"
	"io"
	"testing"

	"log/slog"

	apiclient "github.com/skillbit/marketplace/pkg/api/client"
)

func TestApplyPremiumRollsBackCreditsOnRejection(t *testing.T) {
	backend := newStubBackend()
	backend.applyErr = apiclient.APIError{Status: 400, Message: "insufficient credits"}
	var notices []string
	ctrl := newCandidate(backend, func(msg string) { notices = append(notices, msg) })
	seedCandidate(t, ctrl, backend, 10)

	_, err := ctrl.Apply(context.Background(), premiumJob())
	if err == nil {
		t.Fatal("expected backend rejection to propagate")
	}
	if got := ctrl.Credits(); got != 10 {
		t.Fatalf("expected balance restored to 10, got %d", got)
	}
	if len(notices) != 1 {
		t.Fatalf("expected one failure notice, got %v", notices)
	}
	if len(ctrl.Applications()) != 0 {
		t.Fatal("expected no application cached after rejection")
	}
}

func TestApplyPremiumConfirmsTentativeCharge(t *testing.T) {
	backend := newStubBackend()
	backend.applyResult = apiclient.ApplyResult{Status: "success", ApplicationID: "app-1"}
	ctrl := newCandidate(backend, nil)
	seedCandidate(t, ctrl, backend, 10)

	if _, err := ctrl.Apply(context.Background(), premiumJob()); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if got := ctrl.Credits(); got != 10-premiumApplyCost {
		t.Fatalf("expected balance %d after premium apply, got %d", 10-premiumApplyCost, got)
	}
	apps := ctrl.Applications()
	if len(apps) != 1 || apps[0].Status != "Received" {
		t.Fatalf("expected one Received application, got %+v", apps)
	}
}

func TestApplyFreeJobNeverTouchesCredits(t *testing.T) {
	backend := newStubBackend()
	backend.applyErr = errors.New("backend down")
	ctrl := newCandidate(backend, nil)
	seedCandidate(t, ctrl, backend, 10)

	if _, err := ctrl.Apply(context.Background(), freeJob()); err == nil {
		t.Fatal("expected backend error to propagate")
	}
	if got := ctrl.Credits(); got != 10 {
		t.Fatalf("expected balance unchanged at 10, got %d", got)
	}
}

func TestReferDoesNotCacheApplicationForReferrer(t *testing.T) {
	backend := newStubBackend()
	backend.applyResult = apiclient.ApplyResult{Status: "success", ApplicationID: "app-1"}
	ctrl := newCandidate(backend, nil)
	seedCandidate(t, ctrl, backend, 10)

	if _, err := ctrl.Refer(context.Background(), freeJob(), "friend@example.com"); err != nil {
		t.Fatalf("Refer returned error: %v", err)
	}
	if len(ctrl.Applications()) != 0 {
		t.Fatal("expected the referral not to appear in the referrer's list")
	}
	if backend.lastCandidateEmail != "friend@example.com" {
		t.Fatalf("expected referral candidate forwarded, got %q", backend.lastCandidateEmail)
	}
}

func TestReferPremiumLeavesReferrerBalance(t *testing.T) {
	backend := newStubBackend()
	backend.applyResult = apiclient.ApplyResult{Status: "success", ApplicationID: "app-1"}
	ctrl := newCandidate(backend, nil)
	seedCandidate(t, ctrl, backend, 10)

	if _, err := ctrl.Refer(context.Background(), premiumJob(), "friend@example.com"); err != nil {
		t.Fatalf("Refer returned error: %v", err)
	}
	if got := ctrl.Credits(); got != 10 {
		t.Fatalf("expected referrer balance untouched at 10, got %d", got)
	}
}

func TestReferPremiumRejectionLeavesReferrerBalance(t *testing.T) {
	backend := newStubBackend()
	backend.applyErr = apiclient.APIError{Status: 400, Message: "insufficient credits"}
	var notices []string
	ctrl := newCandidate(backend, func(msg string) { notices = append(notices, msg) })
	seedCandidate(t, ctrl, backend, 10)

	if _, err := ctrl.Refer(context.Background(), premiumJob(), "friend@example.com"); err == nil {
		t.Fatal("expected backend rejection to propagate")
	}
	if got := ctrl.Credits(); got != 10 {
		t.Fatalf("expected referrer balance untouched at 10, got %d", got)
	}
	if len(notices) != 1 {
		t.Fatalf("expected one failure notice, got %v", notices)
	}
}

func TestStartQuizRevertsWalletOnPaymentRequired(t *testing.T) {
	backend := newStubBackend()
	backend.quizErr = apiclient.APIError{Status: 402, Kind: "payment_required", Message: "add funds"}
	var notices []string
	ctrl := newCandidate(backend, func(msg string) { notices = append(notices, msg) })
	backend.wallet = apiclient.WalletBalance{Balance: 5}
	seedCandidate(t, ctrl, backend, 10)

	_, err := ctrl.StartQuiz(context.Background(), "graphs")
	var apiErr apiclient.APIError
	if !errors.As(err, &apiErr) || !apiErr.IsPaymentRequired() {
		t.Fatalf("expected payment-required error, got %v", err)
	}
	if got := ctrl.Wallet().Balance; got != 5 {
		t.Fatalf("expected wallet restored to 5, got %d", got)
	}
	if len(notices) != 1 {
		t.Fatalf("expected one notice, got %v", notices)
	}
}

func TestStartQuizKeepsTentativeCharge(t *testing.T) {
	backend := newStubBackend()
	backend.wallet = apiclient.WalletBalance{Balance: 25}
	ctrl := newCandidate(backend, nil)
	seedCandidate(t, ctrl, backend, 10)

	if _, err := ctrl.StartQuiz(context.Background(), "graphs"); err != nil {
		t.Fatalf("StartQuiz returned error: %v", err)
	}
	if got := ctrl.Wallet().Balance; got != 25-quizAttemptCost {
		t.Fatalf("expected wallet %d, got %d", 25-quizAttemptCost, got)
	}
}

func TestAnswerInterviewAppliesAward(t *testing.T) {
	backend := newStubBackend()
	backend.interviewResult = apiclient.SessionResult{Correct: true, AwardedCredits: 5}
	ctrl := newCandidate(backend, nil)
	seedCandidate(t, ctrl, backend, 10)

	result, err := ctrl.AnswerInterview(context.Background(), "attempt-1", "O(log n)")
	if err != nil {
		t.Fatalf("AnswerInterview returned error: %v", err)
	}
	if !result.Correct {
		t.Fatal("expected correct result")
	}
	if got := ctrl.Credits(); got != 15 {
		t.Fatalf("expected balance 15 after award, got %d", got)
	}
}

func TestAnswerQuizAppliesDiamonds(t *testing.T) {
	backend := newStubBackend()
	backend.quizResult = apiclient.SessionResult{Correct: true, AwardedDiamonds: 5}
	backend.wallet = apiclient.WalletBalance{Balance: 20, Diamonds: 3}
	ctrl := newCandidate(backend, nil)
	seedCandidate(t, ctrl, backend, 10)

	if _, err := ctrl.AnswerQuiz(context.Background(), "attempt-1", "Depth-first"); err != nil {
		t.Fatalf("AnswerQuiz returned error: %v", err)
	}
	if got := ctrl.Wallet().Diamonds; got != 8 {
		t.Fatalf("expected 8 diamonds, got %d", got)
	}
}

func TestUploadResumeUsesConfirmedBalance(t *testing.T) {
	backend := newStubBackend()
	backend.uploadResult = apiclient.UploadResult{Status: "success", Awarded: true, Credits: 30}
	ctrl := newCandidate(backend, nil)
	seedCandidate(t, ctrl, backend, 10)

	result, err := ctrl.UploadResume(context.Background(), "resume.pdf", []byte("golang"))
	if err != nil {
		t.Fatalf("UploadResume returned error: %v", err)
	}
	if !result.Awarded {
		t.Fatal("expected first upload to award")
	}
	if got := ctrl.Credits(); got != 30 {
		t.Fatalf("expected confirmed balance 30, got %d", got)
	}
}

func TestVerifyPhoneNoAwardLeavesBalance(t *testing.T) {
	backend := newStubBackend()
	backend.uploadResult = apiclient.UploadResult{Status: "success", Awarded: false}
	ctrl := newCandidate(backend, nil)
	seedCandidate(t, ctrl, backend, 10)

	result, err := ctrl.VerifyPhone(context.Background())
	if err != nil {
		t.Fatalf("VerifyPhone returned error: %v", err)
	}
	if result.Awarded {
		t.Fatal("expected repeat verification not to award")
	}
	if got := ctrl.Credits(); got != 10 {
		t.Fatalf("expected balance unchanged at 10, got %d", got)
	}
}

func TestTopUpWalletStoresConfirmedBalance(t *testing.T) {
	backend := newStubBackend()
	backend.topUpResult = apiclient.WalletBalance{Balance: 35, Diamonds: 2}
	ctrl := newCandidate(backend, nil)
	seedCandidate(t, ctrl, backend, 10)

	wallet, err := ctrl.TopUpWallet(context.Background(), 25)
	if err != nil {
		t.Fatalf("TopUpWallet returned error: %v", err)
	}
	if wallet.Balance != 35 {
		t.Fatalf("expected confirmed balance 35, got %d", wallet.Balance)
	}
	if got := ctrl.Wallet().Balance; got != 35 {
		t.Fatalf("expected cached wallet 35, got %d", got)
	}
}

func newCandidate(backend *stubBackend, notify Notifier) *CandidateController {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
	session := &Session{Email: "sam@example.com", Name: "Sam", Role: "job_seeker", AccessToken: "token"}
	return NewCandidateController(backend, session, notify, logger)
}

func seedCandidate(t *testing.T, ctrl *CandidateController, backend *stubBackend, credits int) {
	t.Helper()
	backend.user = apiclient.User{Email: "sam@example.com", Name: "Sam", Role: "job_seeker", Credits: credits}
	if err := ctrl.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
}

func premiumJob() apiclient.Job {
	return apiclient.Job{ID: "job-1", Title: "Backend Engineer", Company: "Corp", ReferralBonus: 5000}
}

func freeJob() apiclient.Job {
	return apiclient.Job{ID: "job-2", Title: "Frontend Engineer", Company: "Corp"}
}
