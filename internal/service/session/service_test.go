package session

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"log/slog"

	"github.com/skillbit/marketplace/internal/domain"
	"github.com/skillbit/marketplace/internal/repository"
	"github.com/skillbit/marketplace/internal/service/ledger"
	"github.com/skillbit/marketplace/internal/service/oracle"
	"github.com/skillbit/marketplace/pkg/config"
)

func TestStartInterviewFallsBackWhenOracleDown(t *testing.T) {
	env := newTestEnv(t)
	env.oracle.err = oracle.ErrUnavailable

	attempt, err := env.svc.StartInterview(context.Background(), "sam@example.com", "")
	if err != nil {
		t.Fatalf("StartInterview returned error: %v", err)
	}
	if attempt.Question != fallbackQuestion.Text {
		t.Fatalf("expected fallback question, got %q", attempt.Question)
	}
	if attempt.Topic != "data structures and algorithms" {
		t.Fatalf("expected default topic, got %q", attempt.Topic)
	}
}

func TestStartInterviewRequiresResume(t *testing.T) {
	env := newTestEnv(t)
	env.users.user.ResumeText = ""

	_, err := env.svc.StartInterview(context.Background(), "sam@example.com", "graphs")
	if !errors.Is(err, ErrResumeRequired) {
		t.Fatalf("expected ErrResumeRequired, got %v", err)
	}
	env.svc.mu.Lock()
	_, exists := env.svc.attempts[sessionKey("sam@example.com", domain.SessionInterview)]
	env.svc.mu.Unlock()
	if exists {
		t.Fatal("expected no attempt without a resume")
	}
}

func TestSubmitCorrectAnswerAwardsCredits(t *testing.T) {
	env := newTestEnv(t)

	attempt, err := env.svc.StartInterview(context.Background(), "sam@example.com", "graphs")
	if err != nil {
		t.Fatalf("StartInterview returned error: %v", err)
	}

	result, err := env.svc.Submit(context.Background(), "sam@example.com", domain.SessionInterview, attempt.ID, attempt.CorrectOption)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if !result.Correct {
		t.Fatal("expected correct result")
	}
	if result.AwardedCredits != ledger.InterviewCorrectAward {
		t.Fatalf("expected %d awarded credits, got %d", ledger.InterviewCorrectAward, result.AwardedCredits)
	}
	if env.credits.balance != ledger.InterviewCorrectAward {
		t.Fatalf("expected ledger balance %d, got %d", ledger.InterviewCorrectAward, env.credits.balance)
	}
	if !env.clock.cancelled {
		t.Fatal("expected timeout timer to be cancelled on answer")
	}
}

func TestSubmitWrongAnswerAwardsNothing(t *testing.T) {
	env := newTestEnv(t)

	attempt, err := env.svc.StartInterview(context.Background(), "sam@example.com", "graphs")
	if err != nil {
		t.Fatalf("StartInterview returned error: %v", err)
	}

	result, err := env.svc.Submit(context.Background(), "sam@example.com", domain.SessionInterview, attempt.ID, "wrong")
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if result.Correct {
		t.Fatal("expected incorrect result")
	}
	if result.CorrectOption != attempt.CorrectOption {
		t.Fatalf("expected the correct option to be revealed, got %q", result.CorrectOption)
	}
	if env.credits.balance != 0 {
		t.Fatalf("expected no credits awarded, got %d", env.credits.balance)
	}
}

func TestTimeoutResolvesAttemptExactlyOnce(t *testing.T) {
	env := newTestEnv(t)

	attempt, err := env.svc.StartInterview(context.Background(), "sam@example.com", "graphs")
	if err != nil {
		t.Fatalf("StartInterview returned error: %v", err)
	}

	env.clock.fire()

	result, err := env.svc.Submit(context.Background(), "sam@example.com", domain.SessionInterview, attempt.ID, attempt.CorrectOption)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if !result.AlreadyResolved || !result.TimedOut {
		t.Fatalf("expected timed-out attempt to report AlreadyResolved, got %+v", result)
	}
	if env.credits.balance != 0 {
		t.Fatalf("expected no award after timeout, got %d", env.credits.balance)
	}

	// A second fire must not re-resolve.
	env.clock.fire()
	result, err = env.svc.Submit(context.Background(), "sam@example.com", domain.SessionInterview, attempt.ID, attempt.CorrectOption)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if !result.AlreadyResolved {
		t.Fatal("expected attempt to stay resolved")
	}
}

func TestLateTimerAfterAnswerIsNoOp(t *testing.T) {
	env := newTestEnv(t)

	attempt, err := env.svc.StartInterview(context.Background(), "sam@example.com", "graphs")
	if err != nil {
		t.Fatalf("StartInterview returned error: %v", err)
	}
	if _, err := env.svc.Submit(context.Background(), "sam@example.com", domain.SessionInterview, attempt.ID, attempt.CorrectOption); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	env.clock.fire()

	result, err := env.svc.Submit(context.Background(), "sam@example.com", domain.SessionInterview, attempt.ID, "anything")
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if !result.AlreadyResolved || result.TimedOut || !result.Correct {
		t.Fatalf("expected the answered outcome to survive a late timer, got %+v", result)
	}
}

func TestRestartDiscardsPriorAttempt(t *testing.T) {
	env := newTestEnv(t)

	first, err := env.svc.StartInterview(context.Background(), "sam@example.com", "graphs")
	if err != nil {
		t.Fatalf("first StartInterview returned error: %v", err)
	}
	firstTimer := env.clock.last

	second, err := env.svc.StartInterview(context.Background(), "sam@example.com", "trees")
	if err != nil {
		t.Fatalf("second StartInterview returned error: %v", err)
	}
	if first.ID == second.ID {
		t.Fatal("expected a fresh attempt id")
	}
	if !firstTimer.cancelled {
		t.Fatal("expected the replaced attempt's timer to be cancelled")
	}

	if _, err := env.svc.Submit(context.Background(), "sam@example.com", domain.SessionInterview, first.ID, first.CorrectOption); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession for the discarded attempt, got %v", err)
	}

	// Firing the stale timer must not touch the new attempt.
	firstTimer.fn()
	result, err := env.svc.Submit(context.Background(), "sam@example.com", domain.SessionInterview, second.ID, second.CorrectOption)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if result.TimedOut || result.AlreadyResolved {
		t.Fatalf("expected the new attempt to be unaffected by the stale timer, got %+v", result)
	}
}

func TestSubmitUnknownAttempt(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.svc.Submit(context.Background(), "sam@example.com", domain.SessionInterview, "missing", "x"); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}
}

func TestInterviewAndQuizAttemptsAreIndependent(t *testing.T) {
	env := newTestEnv(t)
	env.credits.walletBalance = 10

	interview, err := env.svc.StartInterview(context.Background(), "sam@example.com", "graphs")
	if err != nil {
		t.Fatalf("StartInterview returned error: %v", err)
	}
	quiz, err := env.svc.StartQuiz(context.Background(), "sam@example.com", "graphs")
	if err != nil {
		t.Fatalf("StartQuiz returned error: %v", err)
	}

	result, err := env.svc.Submit(context.Background(), "sam@example.com", domain.SessionInterview, interview.ID, interview.CorrectOption)
	if err != nil {
		t.Fatalf("interview Submit returned error: %v", err)
	}
	if result.AlreadyResolved {
		t.Fatal("expected the interview attempt to survive a quiz start")
	}
	if _, err := env.svc.Submit(context.Background(), "sam@example.com", domain.SessionQuiz, quiz.ID, quiz.CorrectOption); err != nil {
		t.Fatalf("quiz Submit returned error: %v", err)
	}
}

func TestStartQuizChargesWallet(t *testing.T) {
	env := newTestEnv(t)
	env.credits.walletBalance = 10

	if _, err := env.svc.StartQuiz(context.Background(), "sam@example.com", "graphs"); err != nil {
		t.Fatalf("StartQuiz returned error: %v", err)
	}
	if env.credits.walletBalance != 0 {
		t.Fatalf("expected wallet charged to 0, got %d", env.credits.walletBalance)
	}
}

func TestStartQuizInsufficientFunds(t *testing.T) {
	env := newTestEnv(t)
	env.credits.walletBalance = 5

	_, err := env.svc.StartQuiz(context.Background(), "sam@example.com", "graphs")
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if env.credits.walletBalance != 5 {
		t.Fatalf("expected wallet unchanged at 5, got %d", env.credits.walletBalance)
	}
	env.svc.mu.Lock()
	_, exists := env.svc.attempts[sessionKey("sam@example.com", domain.SessionQuiz)]
	env.svc.mu.Unlock()
	if exists {
		t.Fatal("expected no attempt when the charge fails")
	}
}

func TestQuizCorrectAwardsDiamonds(t *testing.T) {
	env := newTestEnv(t)
	env.credits.walletBalance = 10

	attempt, err := env.svc.StartQuiz(context.Background(), "sam@example.com", "graphs")
	if err != nil {
		t.Fatalf("StartQuiz returned error: %v", err)
	}
	result, err := env.svc.Submit(context.Background(), "sam@example.com", domain.SessionQuiz, attempt.ID, attempt.CorrectOption)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if result.AwardedDiamonds != ledger.QuizCorrectAward {
		t.Fatalf("expected %d diamonds, got %d", ledger.QuizCorrectAward, result.AwardedDiamonds)
	}
	if env.credits.walletDiamonds != ledger.QuizCorrectAward {
		t.Fatalf("expected wallet diamonds %d, got %d", ledger.QuizCorrectAward, env.credits.walletDiamonds)
	}
}

func TestDeadlineUsesConfiguredDuration(t *testing.T) {
	env := newTestEnv(t)
	started := env.svc.now()

	attempt, err := env.svc.StartInterview(context.Background(), "sam@example.com", "graphs")
	if err != nil {
		t.Fatalf("StartInterview returned error: %v", err)
	}
	want := started.Add(time.Minute)
	if !attempt.Deadline.Equal(want) {
		t.Fatalf("expected deadline %s, got %s", want, attempt.Deadline)
	}
}

type testEnv struct {
	svc     *Service
	credits *creditStore
	users   *fakeUserRepo
	oracle  *stubOracle
	clock   *manualClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
	env := &testEnv{
		credits: &creditStore{},
		users: &fakeUserRepo{user: &domain.User{
			Email:      "sam@example.com",
			Role:       domain.RoleJobSeeker,
			ResumeText: "Five years of Go backend work: services, queues, Postgres.",
		}},
		oracle: &stubOracle{},
		clock:  &manualClock{at: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	cfg := config.APIConfig{InterviewDuration: time.Minute, QuizAttemptCost: 10}
	ledgerSvc := ledger.New(env.credits, nil, logger)
	env.svc = New(ledgerSvc, env.oracle, env.users, nil, logger, cfg)
	env.svc.now = env.clock.now
	env.svc.schedule = env.clock.schedule
	return env
}

type fakeUserRepo struct {
	user *domain.User
}

func (f *fakeUserRepo) CreateUser(context.Context, *domain.User) error { return nil }

func (f *fakeUserRepo) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	if f.user == nil || f.user.Email != email {
		return nil, repository.ErrNotFound
	}
	return f.user, nil
}

func (f *fakeUserRepo) GetUserByID(context.Context, string) (*domain.User, error) {
	return nil, repository.ErrNotFound
}

// manualClock replaces the wall clock and timer wheel so tests drive
// expiry deterministically.
type manualClock struct {
	at        time.Time
	last      *manualTimer
	cancelled bool
}

type manualTimer struct {
	fn        func()
	cancelled bool
}

func (m *manualClock) now() time.Time { return m.at }

func (m *manualClock) schedule(_ time.Duration, fn func()) func() {
	timer := &manualTimer{fn: fn}
	m.last = timer
	return func() {
		timer.cancelled = true
		m.cancelled = true
	}
}

func (m *manualClock) fire() {
	if m.last != nil && !m.last.cancelled {
		m.last.fn()
	}
}

type creditStore struct {
	balance        int
	walletBalance  int
	walletDiamonds int
}

func (c *creditStore) ApplyCredits(_ context.Context, tx *domain.CreditTransaction) (int, error) {
	if c.balance+tx.Delta < 0 {
		return 0, repository.ErrInsufficientBalance
	}
	c.balance += tx.Delta
	return c.balance, nil
}

func (c *creditStore) ListTransactions(context.Context, string, int) ([]domain.CreditTransaction, error) {
	return nil, nil
}

func (c *creditStore) MarkPhoneVerified(context.Context, string) (bool, error)    { return false, nil }
func (c *creditStore) MarkLinkedInVerified(context.Context, string) (bool, error) { return false, nil }
func (c *creditStore) SetResumeText(context.Context, string, string) (bool, error) {
	return false, nil
}

func (c *creditStore) GetWallet(_ context.Context, email string) (*domain.Wallet, error) {
	return &domain.Wallet{UserEmail: email, Balance: c.walletBalance, Diamonds: c.walletDiamonds}, nil
}

func (c *creditStore) ApplyWallet(_ context.Context, tx *domain.WalletTransaction) (*domain.Wallet, error) {
	if c.walletBalance+tx.MoneyDelta < 0 {
		return nil, repository.ErrInsufficientBalance
	}
	c.walletBalance += tx.MoneyDelta
	c.walletDiamonds += tx.DiamondDelta
	return &domain.Wallet{UserEmail: tx.UserEmail, Balance: c.walletBalance, Diamonds: c.walletDiamonds}, nil
}

func (c *creditStore) ListWalletTransactions(context.Context, string, int) ([]domain.WalletTransaction, error) {
	return nil, nil
}

type stubOracle struct {
	err error
}

func (s *stubOracle) Score(context.Context, string, string) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	return 50, nil
}

func (s *stubOracle) GenerateQuestion(context.Context, string) (*oracle.Question, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &oracle.Question{
		Text:          "Which traversal visits children before siblings?",
		Options:       []string{"Breadth-first", "Depth-first", "Level order"},
		CorrectOption: "Depth-first",
	}, nil
}
