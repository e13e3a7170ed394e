package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skillbit/marketplace/internal/domain"
	"github.com/skillbit/marketplace/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.UserRepository        = (*Repository)(nil)
	_ repository.LedgerRepository      = (*Repository)(nil)
	_ repository.JobRepository         = (*Repository)(nil)
	_ repository.ApplicationRepository = (*Repository)(nil)
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// CreateUser inserts an account.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	const query = `INSERT INTO users (id, email, name, password_hash, role, credits, phone_verified, linkedin_verified, resume_text, company, designation, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.pool.Exec(ctx, query,
		user.ID, user.Email, user.Name, user.PasswordHash, user.Role, user.Credits,
		user.PhoneVerified, user.LinkedInVerified, user.ResumeText, user.Company, user.Designation, user.CreatedAt)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	return err
}

const userColumns = `id, email, name, password_hash, role, credits, phone_verified, linkedin_verified, resume_text, company, designation, created_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.Credits,
		&u.PhoneVerified, &u.LinkedInVerified, &u.ResumeText, &u.Company, &u.Designation, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetUserByEmail fetches an account by email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// GetUserByID fetches an account by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// ApplyCredits atomically shifts a user's credit balance and appends the
// ledger entry. A decrement that would go negative fails with
// ErrInsufficientBalance and leaves both tables untouched.
func (r *Repository) ApplyCredits(ctx context.Context, entry *domain.CreditTransaction) (int, error) {
	if entry == nil {
		return 0, repository.ErrInvalidArgument
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	const update = `UPDATE users SET credits = credits + $2
		WHERE email = $1 AND credits + $2 >= 0
		RETURNING credits`
	var balance int
	if err := tx.QueryRow(ctx, update, entry.UserEmail, entry.Delta).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, lookupErr := r.GetUserByEmail(ctx, entry.UserEmail); lookupErr != nil {
				return 0, lookupErr
			}
			return 0, repository.ErrInsufficientBalance
		}
		return 0, err
	}

	const insert = `INSERT INTO credit_transactions (id, user_email, delta, reason, resulting_balance, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := tx.Exec(ctx, insert, entry.ID, entry.UserEmail, entry.Delta, entry.Reason, balance, entry.CreatedAt); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return balance, nil
}

// ListTransactions returns recent ledger entries, newest first.
func (r *Repository) ListTransactions(ctx context.Context, email string, limit int) ([]domain.CreditTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `SELECT id, user_email, delta, reason, resulting_balance, created_at
		FROM credit_transactions WHERE user_email = $1
		ORDER BY created_at DESC, id DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, email, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.CreditTransaction
	for rows.Next() {
		var t domain.CreditTransaction
		if err := rows.Scan(&t.ID, &t.UserEmail, &t.Delta, &t.Reason, &t.ResultingBalance, &t.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, t)
	}
	return entries, rows.Err()
}

// MarkPhoneVerified flips the phone flag, reporting whether it changed.
func (r *Repository) MarkPhoneVerified(ctx context.Context, email string) (bool, error) {
	return r.markFlag(ctx, email, "phone_verified")
}

// MarkLinkedInVerified flips the LinkedIn flag, reporting whether it changed.
func (r *Repository) MarkLinkedInVerified(ctx context.Context, email string) (bool, error) {
	return r.markFlag(ctx, email, "linkedin_verified")
}

func (r *Repository) markFlag(ctx context.Context, email, column string) (bool, error) {
	query := `UPDATE users SET ` + column + ` = TRUE WHERE email = $1 AND ` + column + ` = FALSE`
	tag, err := r.pool.Exec(ctx, query, email)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	if _, err := r.GetUserByEmail(ctx, email); err != nil {
		return false, err
	}
	return false, nil
}

// SetResumeText stores resume text, reporting whether this was the first
// upload for the user.
func (r *Repository) SetResumeText(ctx context.Context, email, text string) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var previous string
	if err := tx.QueryRow(ctx, `SELECT resume_text FROM users WHERE email = $1 FOR UPDATE`, email).Scan(&previous); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, repository.ErrNotFound
		}
		return false, err
	}
	if _, err := tx.Exec(ctx, `UPDATE users SET resume_text = $2 WHERE email = $1`, email, text); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return previous == "", nil
}

// GetWallet returns the wallet row for a user, zero-valued when absent.
func (r *Repository) GetWallet(ctx context.Context, email string) (*domain.Wallet, error) {
	const query = `SELECT user_email, balance, diamonds, updated_at FROM wallets WHERE user_email = $1`
	var w domain.Wallet
	err := r.pool.QueryRow(ctx, query, email).Scan(&w.UserEmail, &w.Balance, &w.Diamonds, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return &domain.Wallet{UserEmail: email}, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// ApplyWallet atomically shifts wallet money and diamonds and appends the
// movement to the wallet log; guarded against either balance going negative.
func (r *Repository) ApplyWallet(ctx context.Context, entry *domain.WalletTransaction) (*domain.Wallet, error) {
	if entry == nil {
		return nil, repository.ErrInvalidArgument
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	const ensure = `INSERT INTO wallets (user_email, balance, diamonds, updated_at)
		VALUES ($1, 0, 0, NOW())
		ON CONFLICT (user_email) DO NOTHING`
	if _, err := tx.Exec(ctx, ensure, entry.UserEmail); err != nil {
		return nil, err
	}

	const update = `UPDATE wallets
		SET balance = balance + $2, diamonds = diamonds + $3, updated_at = NOW()
		WHERE user_email = $1 AND balance + $2 >= 0 AND diamonds + $3 >= 0
		RETURNING user_email, balance, diamonds, updated_at`
	var w domain.Wallet
	if err := tx.QueryRow(ctx, update, entry.UserEmail, entry.MoneyDelta, entry.DiamondDelta).Scan(&w.UserEmail, &w.Balance, &w.Diamonds, &w.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrInsufficientBalance
		}
		return nil, err
	}

	const insert = `INSERT INTO wallet_transactions (id, user_email, money_delta, diamond_delta, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := tx.Exec(ctx, insert, entry.ID, entry.UserEmail, entry.MoneyDelta, entry.DiamondDelta, entry.Reason, entry.CreatedAt); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &w, nil
}

// ListWalletTransactions returns recent wallet log entries, newest first.
func (r *Repository) ListWalletTransactions(ctx context.Context, email string, limit int) ([]domain.WalletTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `SELECT id, user_email, money_delta, diamond_delta, reason, created_at
		FROM wallet_transactions WHERE user_email = $1
		ORDER BY created_at DESC, id DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, email, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.WalletTransaction
	for rows.Next() {
		var t domain.WalletTransaction
		if err := rows.Scan(&t.ID, &t.UserEmail, &t.MoneyDelta, &t.DiamondDelta, &t.Reason, &t.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, t)
	}
	return entries, rows.Err()
}

// CreateJob inserts a posting.
func (r *Repository) CreateJob(ctx context.Context, job *domain.Job) error {
	const query = `INSERT INTO jobs (id, recruiter_email, title, company, location, salary, description, experience, skills, referral_bonus, posted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.pool.Exec(ctx, query,
		job.ID, job.RecruiterEmail, job.Title, job.Company, job.Location, job.Salary,
		job.Description, job.Experience, joinSkills(job.Skills), job.ReferralBonus, job.PostedAt)
	return err
}

// UpdateJob rewrites the mutable fields of a posting. Ownership is immutable.
func (r *Repository) UpdateJob(ctx context.Context, job *domain.Job) error {
	const query = `UPDATE jobs SET title = $2, location = $3, salary = $4, description = $5, experience = $6, skills = $7, referral_bonus = $8
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query,
		job.ID, job.Title, job.Location, job.Salary, job.Description, job.Experience,
		joinSkills(job.Skills), job.ReferralBonus)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteJob removes a posting.
func (r *Repository) DeleteJob(ctx context.Context, jobID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, jobID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

const jobColumns = `id, recruiter_email, title, company, location, salary, description, experience, skills, referral_bonus, posted_at`

func scanJob(row pgx.Row) (*domain.Job, error) {
	var j domain.Job
	var skills string
	err := row.Scan(&j.ID, &j.RecruiterEmail, &j.Title, &j.Company, &j.Location, &j.Salary,
		&j.Description, &j.Experience, &skills, &j.ReferralBonus, &j.PostedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	j.Skills = splitSkills(skills)
	return &j, nil
}

// GetJobByID fetches a posting.
func (r *Repository) GetJobByID(ctx context.Context, jobID string) (*domain.Job, error) {
	return scanJob(r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, jobID))
}

// ListJobs returns postings, optionally filtered by a case-insensitive
// title/company search term, newest first.
func (r *Repository) ListJobs(ctx context.Context, search string) ([]domain.Job, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if strings.TrimSpace(search) != "" {
		const query = `SELECT ` + jobColumns + ` FROM jobs
			WHERE title ILIKE $1 OR company ILIKE $1
			ORDER BY posted_at DESC, id DESC`
		rows, err = r.pool.Query(ctx, query, "%"+strings.TrimSpace(search)+"%")
	} else {
		rows, err = r.pool.Query(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY posted_at DESC, id DESC`)
	}
	if err != nil {
		return nil, err
	}
	return collectJobs(rows)
}

// ListJobsByRecruiter returns the recruiter's own postings, newest first.
func (r *Repository) ListJobsByRecruiter(ctx context.Context, recruiterEmail string) ([]domain.Job, error) {
	const query = `SELECT ` + jobColumns + ` FROM jobs WHERE recruiter_email = $1 ORDER BY posted_at DESC, id DESC`
	rows, err := r.pool.Query(ctx, query, recruiterEmail)
	if err != nil {
		return nil, err
	}
	return collectJobs(rows)
}

func collectJobs(rows pgx.Rows) ([]domain.Job, error) {
	defer rows.Close()
	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func joinSkills(skills []string) string {
	return strings.Join(skills, ",")
}

func splitSkills(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// CreateApplication inserts an application; a second application for the
// same (job, candidate) pair maps to ErrConflict.
func (r *Repository) CreateApplication(ctx context.Context, app *domain.Application) error {
	const query = `INSERT INTO applications (id, job_id, candidate_email, referrer_email, job_title, company, ai_score, status, applied_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.pool.Exec(ctx, query,
		app.ID, app.JobID, app.CandidateEmail, app.ReferrerEmail, app.JobTitle, app.Company,
		app.AIScore, app.Status, app.AppliedAt)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	return err
}

const applicationColumns = `id, job_id, candidate_email, referrer_email, job_title, company, ai_score, status, applied_at`

func scanApplication(row pgx.Row) (*domain.Application, error) {
	var a domain.Application
	err := row.Scan(&a.ID, &a.JobID, &a.CandidateEmail, &a.ReferrerEmail, &a.JobTitle, &a.Company,
		&a.AIScore, &a.Status, &a.AppliedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// GetApplicationByID fetches one application.
func (r *Repository) GetApplicationByID(ctx context.Context, appID string) (*domain.Application, error) {
	return scanApplication(r.pool.QueryRow(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id = $1`, appID))
}

// UpdateApplicationStatus rewrites the status of an application.
func (r *Repository) UpdateApplicationStatus(ctx context.Context, update domain.ApplicationStatusUpdate) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE applications SET status = $2 WHERE id = $1`,
		update.ApplicationID, update.Status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListApplicationsByCandidate returns a candidate's history, newest first.
func (r *Repository) ListApplicationsByCandidate(ctx context.Context, candidateEmail string) ([]domain.Application, error) {
	const query = `SELECT ` + applicationColumns + ` FROM applications
		WHERE candidate_email = $1 ORDER BY applied_at DESC, id DESC`
	rows, err := r.pool.Query(ctx, query, candidateEmail)
	if err != nil {
		return nil, err
	}
	return collectApplications(rows)
}

// ListApplicationsByRecruiter returns applications across all jobs owned by
// the recruiter, newest first.
func (r *Repository) ListApplicationsByRecruiter(ctx context.Context, recruiterEmail string) ([]domain.Application, error) {
	const query = `SELECT a.id, a.job_id, a.candidate_email, a.referrer_email, a.job_title, a.company, a.ai_score, a.status, a.applied_at
		FROM applications a JOIN jobs j ON a.job_id = j.id
		WHERE j.recruiter_email = $1
		ORDER BY a.applied_at DESC, a.id DESC`
	rows, err := r.pool.Query(ctx, query, recruiterEmail)
	if err != nil {
		return nil, err
	}
	return collectApplications(rows)
}

// ListApplicationsForCandidateOfRecruiter narrows the recruiter view to one
// candidate.
func (r *Repository) ListApplicationsForCandidateOfRecruiter(ctx context.Context, recruiterEmail, candidateEmail string) ([]domain.Application, error) {
	const query = `SELECT a.id, a.job_id, a.candidate_email, a.referrer_email, a.job_title, a.company, a.ai_score, a.status, a.applied_at
		FROM applications a JOIN jobs j ON a.job_id = j.id
		WHERE j.recruiter_email = $1 AND a.candidate_email = $2
		ORDER BY a.applied_at DESC, a.id DESC`
	rows, err := r.pool.Query(ctx, query, recruiterEmail, candidateEmail)
	if err != nil {
		return nil, err
	}
	return collectApplications(rows)
}

func collectApplications(rows pgx.Rows) ([]domain.Application, error) {
	defer rows.Close()
	var apps []domain.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, *app)
	}
	return apps, rows.Err()
}
