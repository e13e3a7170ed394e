package session

import (
	"context"
	"errors"
	"strings"
	"sync"
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

var (
	// ErrNoActiveSession is returned when a submission references an attempt
	// that was never started or was replaced by a newer session.
	ErrNoActiveSession = errors.New("no active session attempt")
	// ErrResumeRequired gates interviews: questions are generated from the
	// candidate's resume, so there must be one.
	ErrResumeRequired = errors.New("upload a resume before starting an interview")
)

// fallbackQuestion keeps sessions usable when the oracle is down.
var fallbackQuestion = oracle.Question{
	Text:          "What is the complexity of Binary Search?",
	Options:       []string{"O(n)", "O(log n)", "O(n log n)", "O(1)"},
	CorrectOption: "O(log n)",
}

// Result reports the outcome of consuming a session attempt.
type Result struct {
	AttemptID       string
	Correct         bool
	TimedOut        bool
	CorrectOption   string
	AlreadyResolved bool
	AwardedCredits  int
	AwardedDiamonds int
}

type attempt struct {
	domain.SessionAttempt
	cancel func()
}

// Service runs timed interview and quiz attempts. Each attempt carries a
// single consumption token shared by the answer path and the timeout path,
// so an attempt is scored exactly once no matter how the two race.
type Service struct {
	ledger ledger.Service
	oracle oracle.Client
	users  repository.UserRepository
	hub    *ws.Hub
	logger *slog.Logger
	cfg    config.APIConfig

	now      func() time.Time
	schedule func(d time.Duration, fn func()) (cancel func())

	mu       sync.Mutex
	attempts map[string]*attempt
}

// New returns a session service using the wall clock and time.AfterFunc.
func New(ledgerSvc ledger.Service, oracleClient oracle.Client, users repository.UserRepository, hub *ws.Hub, logger *slog.Logger, cfg config.APIConfig) *Service {
	return &Service{
		ledger:   ledgerSvc,
		oracle:   oracleClient,
		users:    users,
		hub:      hub,
		logger:   logger,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
		schedule: scheduleAfterFunc,
		attempts: make(map[string]*attempt),
	}
}

func scheduleAfterFunc(d time.Duration, fn func()) func() {
	timer := time.AfterFunc(d, fn)
	return func() { timer.Stop() }
}

// StartInterview begins a free interview attempt. The candidate must have
// uploaded a resume; when no topic is given the question is generated from
// it. A prior outstanding attempt of the same kind is discarded without
// scoring.
func (s *Service) StartInterview(ctx context.Context, email, topic string) (*domain.SessionAttempt, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !user.HasResume() {
		return nil, ErrResumeRequired
	}
	var prompt string
	if strings.TrimSpace(topic) == "" {
		prompt = resumePrompt(user.ResumeText)
	}
	return s.start(ctx, email, domain.SessionInterview, topic, prompt)
}

// resumePrompt clips the resume so the generation request stays small.
func resumePrompt(resume string) string {
	const maxLen = 500
	resume = strings.TrimSpace(resume)
	if len(resume) > maxLen {
		resume = resume[:maxLen]
	}
	return "skills and experience from this resume: " + resume
}

// StartQuiz begins a paid quiz attempt. The wallet is charged before the
// question is generated; ledger.ErrInsufficientFunds propagates unchanged.
func (s *Service) StartQuiz(ctx context.Context, email, topic string) (*domain.SessionAttempt, error) {
	if _, err := s.ledger.ChargeWallet(ctx, email, s.cfg.QuizAttemptCost, domain.ReasonQuizSpend); err != nil {
		return nil, err
	}
	return s.start(ctx, email, domain.SessionQuiz, topic, "")
}

func (s *Service) start(ctx context.Context, email, kind, topic, prompt string) (*domain.SessionAttempt, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = "data structures and algorithms"
	}
	if prompt == "" {
		prompt = topic
	}
	question := s.generate(ctx, prompt)

	s.mu.Lock()
	defer s.mu.Unlock()

	key := sessionKey(email, kind)
	if prev, ok := s.attempts[key]; ok && !prev.Consumed {
		prev.cancel()
		s.logger.Info("session replaced", "user", email, "kind", kind, "attempt_id", prev.ID)
	}

	a := &attempt{
		SessionAttempt: domain.SessionAttempt{
			ID:            uuid.NewString(),
			UserEmail:     email,
			Kind:          kind,
			Topic:         topic,
			Question:      question.Text,
			Options:       question.Options,
			CorrectOption: question.CorrectOption,
			Deadline:      s.now().Add(s.cfg.InterviewDuration),
		},
	}
	attemptID := a.ID
	a.cancel = s.schedule(s.cfg.InterviewDuration, func() {
		s.expire(email, kind, attemptID)
	})
	s.attempts[key] = a

	s.logger.Info("session started", "user", email, "kind", kind, "attempt_id", a.ID, "deadline", a.Deadline)
	copied := a.SessionAttempt
	return &copied, nil
}

func (s *Service) generate(ctx context.Context, prompt string) oracle.Question {
	if s.oracle != nil {
		if q, err := s.oracle.GenerateQuestion(ctx, prompt); err == nil {
			return *q
		}
		s.logger.Warn("question generation unavailable, using fallback")
	}
	return fallbackQuestion
}

// Submit consumes the user's outstanding attempt with the given answer.
// Submissions after consumption are no-ops that report the recorded
// outcome.
func (s *Service) Submit(ctx context.Context, email, kind, attemptID, answer string) (*Result, error) {
	s.mu.Lock()
	key := sessionKey(email, kind)
	a, ok := s.attempts[key]
	if !ok || (attemptID != "" && a.ID != attemptID) {
		s.mu.Unlock()
		return nil, ErrNoActiveSession
	}
	if a.Consumed {
		result := &Result{
			AttemptID:       a.ID,
			Correct:         a.Correct,
			TimedOut:        a.TimedOut,
			CorrectOption:   a.CorrectOption,
			AlreadyResolved: true,
		}
		s.mu.Unlock()
		return result, nil
	}
	a.cancel()
	a.Consumed = true
	a.Correct = answer == a.CorrectOption
	result := &Result{
		AttemptID:     a.ID,
		Correct:       a.Correct,
		CorrectOption: a.CorrectOption,
	}
	s.mu.Unlock()

	if result.Correct {
		s.award(ctx, email, kind, result)
	}
	s.logger.Info("session answered", "user", email, "kind", kind, "attempt_id", result.AttemptID, "correct", result.Correct)
	return result, nil
}

func (s *Service) award(ctx context.Context, email, kind string, result *Result) {
	switch kind {
	case domain.SessionInterview:
		if _, err := s.ledger.AwardInterviewCorrect(ctx, email); err != nil {
			s.logger.Error("interview award failed", "user", email, "error", err)
			return
		}
		result.AwardedCredits = ledger.InterviewCorrectAward
	case domain.SessionQuiz:
		if _, err := s.ledger.AwardQuizDiamonds(ctx, email); err != nil {
			s.logger.Error("quiz award failed", "user", email, "error", err)
			return
		}
		result.AwardedDiamonds = ledger.QuizCorrectAward
	}
}

// expire consumes an unanswered attempt as a forfeit. The attempt id guard
// makes a late fire after replacement or cancellation a no-op.
func (s *Service) expire(email, kind, attemptID string) {
	s.mu.Lock()
	key := sessionKey(email, kind)
	a, ok := s.attempts[key]
	if !ok || a.ID != attemptID || a.Consumed {
		s.mu.Unlock()
		return
	}
	a.Consumed = true
	a.TimedOut = true
	s.mu.Unlock()

	s.logger.Info("session timed out", "user", email, "kind", kind, "attempt_id", attemptID)
	if s.hub != nil {
		s.hub.Publish(email, ws.Event{Type: "session_timeout", Data: map[string]any{
			"attempt_id": attemptID,
			"kind":       kind,
		}})
	}
}

func sessionKey(email, kind string) string {
	return email + "/" + kind
}
