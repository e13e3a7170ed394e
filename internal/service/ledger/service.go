package ledger

import (
	"context"
	"errors"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/skillbit/marketplace/internal/domain"
	"github.com/skillbit/marketplace/internal/repository"
	"github.com/skillbit/marketplace/internal/ws"
)

// Fixed earn amounts per reason. Earn amounts are policy, not caller input.
const (
	ProfileCompletionAward = 5
	ResumeUploadAward      = 20
	QuizCorrectAward       = 5
	InterviewCorrectAward  = 5
)

var (
	// ErrInsufficientCredits is returned when a spend exceeds the balance.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrInsufficientFunds is returned when a wallet charge exceeds the
	// wallet balance. The quiz wallet is a separate economy from credits.
	ErrInsufficientFunds = errors.New("insufficient wallet funds")

	errInvalidAmount = errors.New("amount must be positive")
)

// Service is the authoritative arithmetic for the credit and wallet
// economies. Balances never go negative; every mutation in either economy
// appends a transaction entry and notifies the user's event stream.
type Service struct {
	ledger repository.LedgerRepository
	hub    *ws.Hub
	logger *slog.Logger
}

// New returns a ledger service.
func New(ledger repository.LedgerRepository, hub *ws.Hub, logger *slog.Logger) Service {
	return Service{ledger: ledger, hub: hub, logger: logger}
}

// Earn credits a user for a reason and returns the resulting balance.
func (s Service) Earn(ctx context.Context, email, reason string, amount int) (int, error) {
	if amount <= 0 {
		return 0, errInvalidAmount
	}
	return s.apply(ctx, email, reason, amount)
}

// Spend debits a user's credits. It fails with ErrInsufficientCredits and
// leaves the balance untouched when the user cannot cover the amount.
func (s Service) Spend(ctx context.Context, email string, amount int, reason string) (int, error) {
	if amount <= 0 {
		return 0, errInvalidAmount
	}
	balance, err := s.apply(ctx, email, reason, -amount)
	if errors.Is(err, repository.ErrInsufficientBalance) {
		return 0, ErrInsufficientCredits
	}
	return balance, err
}

func (s Service) apply(ctx context.Context, email, reason string, delta int) (int, error) {
	tx := &domain.CreditTransaction{
		ID:        uuid.NewString(),
		UserEmail: email,
		Delta:     delta,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}
	balance, err := s.ledger.ApplyCredits(ctx, tx)
	if err != nil {
		return 0, err
	}
	s.logger.Info("credits applied", "user", email, "reason", reason, "delta", delta, "balance", balance)
	s.notifyBalance(email, balance)
	return balance, nil
}

// AwardPhoneVerification marks the phone flag and credits the profile
// completion award once. Re-verifying an already-verified phone is a no-op.
func (s Service) AwardPhoneVerification(ctx context.Context, email string) (int, bool, error) {
	changed, err := s.ledger.MarkPhoneVerified(ctx, email)
	if err != nil {
		return 0, false, err
	}
	return s.flagAward(ctx, email, changed)
}

// AwardLinkedInVerification mirrors AwardPhoneVerification for the LinkedIn
// flag. The two flags are independent; each awards at most once.
func (s Service) AwardLinkedInVerification(ctx context.Context, email string) (int, bool, error) {
	changed, err := s.ledger.MarkLinkedInVerified(ctx, email)
	if err != nil {
		return 0, false, err
	}
	return s.flagAward(ctx, email, changed)
}

func (s Service) flagAward(ctx context.Context, email string, changed bool) (int, bool, error) {
	if !changed {
		return 0, false, nil
	}
	balance, err := s.Earn(ctx, email, domain.ReasonProfileCompleted, ProfileCompletionAward)
	if err != nil {
		return 0, false, err
	}
	return balance, true, nil
}

// AwardResumeUpload stores the resume text and credits the upload award on
// the first upload only. Replacing an existing resume earns nothing.
func (s Service) AwardResumeUpload(ctx context.Context, email, resumeText string) (int, bool, error) {
	first, err := s.ledger.SetResumeText(ctx, email, resumeText)
	if err != nil {
		return 0, false, err
	}
	if !first {
		return 0, false, nil
	}
	balance, err := s.Earn(ctx, email, domain.ReasonResumeUpload, ResumeUploadAward)
	if err != nil {
		return 0, false, err
	}
	return balance, true, nil
}

// AwardInterviewCorrect credits a correct interview answer.
func (s Service) AwardInterviewCorrect(ctx context.Context, email string) (int, error) {
	return s.Earn(ctx, email, domain.ReasonInterviewCorrect, InterviewCorrectAward)
}

// TopUpWallet adds funds to the quiz wallet. Top-ups only add, so no
// balance check is needed.
func (s Service) TopUpWallet(ctx context.Context, email string, amount int) (*domain.Wallet, error) {
	if amount <= 0 {
		return nil, errInvalidAmount
	}
	return s.applyWallet(ctx, email, domain.ReasonWalletTopUp, amount, 0)
}

// ChargeWallet debits the quiz wallet for a reason, failing with
// ErrInsufficientFunds when the wallet cannot cover the amount.
func (s Service) ChargeWallet(ctx context.Context, email string, amount int, reason string) (*domain.Wallet, error) {
	if amount <= 0 {
		return nil, errInvalidAmount
	}
	wallet, err := s.applyWallet(ctx, email, reason, -amount, 0)
	if errors.Is(err, repository.ErrInsufficientBalance) {
		return nil, ErrInsufficientFunds
	}
	return wallet, err
}

// AwardQuizDiamonds credits diamonds for a correct quiz answer. Diamonds
// are earn-only and never spendable.
func (s Service) AwardQuizDiamonds(ctx context.Context, email string) (*domain.Wallet, error) {
	return s.applyWallet(ctx, email, domain.ReasonQuizCorrect, 0, QuizCorrectAward)
}

// applyWallet mirrors apply for the wallet economy: every mutation appends
// a WalletTransaction in the same repository transaction.
func (s Service) applyWallet(ctx context.Context, email, reason string, moneyDelta, diamondDelta int) (*domain.Wallet, error) {
	tx := &domain.WalletTransaction{
		ID:           uuid.NewString(),
		UserEmail:    email,
		MoneyDelta:   moneyDelta,
		DiamondDelta: diamondDelta,
		Reason:       reason,
		CreatedAt:    time.Now().UTC(),
	}
	wallet, err := s.ledger.ApplyWallet(ctx, tx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("wallet applied", "user", email, "reason", reason, "money", moneyDelta, "diamonds", diamondDelta, "balance", wallet.Balance)
	s.notifyWallet(email, wallet)
	return wallet, nil
}

// Wallet returns the user's quiz wallet.
func (s Service) Wallet(ctx context.Context, email string) (*domain.Wallet, error) {
	return s.ledger.GetWallet(ctx, email)
}

// Transactions returns the most recent credit ledger entries for a user.
func (s Service) Transactions(ctx context.Context, email string, limit int) ([]domain.CreditTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.ledger.ListTransactions(ctx, email, limit)
}

// WalletTransactions returns the most recent wallet log entries for a user.
func (s Service) WalletTransactions(ctx context.Context, email string, limit int) ([]domain.WalletTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.ledger.ListWalletTransactions(ctx, email, limit)
}

func (s Service) notifyBalance(email string, balance int) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(email, ws.Event{Type: "balance_changed", Data: map[string]any{"credits": balance}})
}

func (s Service) notifyWallet(email string, wallet *domain.Wallet) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(email, ws.Event{Type: "wallet_changed", Data: map[string]any{
		"balance":  wallet.Balance,
		"diamonds": wallet.Diamonds,
	}})
}
