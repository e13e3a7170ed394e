package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client provides typed access to the marketplace API for interactive tools.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = "http://localhost:4000"
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// APIError represents an error response from the API.
type APIError struct {
	Status  int
	Kind    string
	Message string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
}

// IsPaymentRequired reports whether the API asked for a wallet top-up.
func (e APIError) IsPaymentRequired() bool {
	return e.Status == http.StatusPaymentRequired || e.Kind == "payment_required"
}

func (c *Client) do(ctx context.Context, method, path string, body any, token string, v any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	var reader io.Reader
	contentType := ""
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
		contentType = "application/json"
	}
	return c.roundTrip(ctx, method, path, reader, contentType, token, v)
}

func (c *Client) doMultipart(ctx context.Context, path string, fields map[string]string, fileField, fileName string, file []byte, token string, v any) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return fmt.Errorf("encode form field: %w", err)
		}
	}
	if fileField != "" {
		part, err := writer.CreateFormFile(fileField, fileName)
		if err != nil {
			return fmt.Errorf("encode form file: %w", err)
		}
		if _, err := part.Write(file); err != nil {
			return fmt.Errorf("encode form file: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalize form: %w", err)
	}
	return c.roundTrip(ctx, http.MethodPost, path, &buf, writer.FormDataContentType(), token, v)
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body io.Reader, contentType, token string, v any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		kind, msg := extractError(resp.Body)
		return APIError{Status: resp.StatusCode, Kind: kind, Message: msg}
	}

	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractError(body io.Reader) (kind, message string) {
	if body == nil {
		return "", ""
	}
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return "", ""
	}
	var payload struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", strings.TrimSpace(string(data))
	}
	return payload.Status, strings.TrimSpace(payload.Message)
}

// User reflects API user payloads.
type User struct {
	Email            string `json:"email"`
	Name             string `json:"name"`
	Role             string `json:"role"`
	Credits          int    `json:"credits"`
	PhoneVerified    bool   `json:"phone_verified"`
	LinkedInVerified bool   `json:"linkedin_verified"`
	HasResume        bool   `json:"has_resume"`
	Company          string `json:"company"`
	Designation      string `json:"designation"`
}

// TokenPair includes access and refresh tokens.
type TokenPair struct {
	AccessToken  string        `json:"AccessToken"`
	RefreshToken string        `json:"RefreshToken"`
	ExpiresIn    time.Duration `json:"ExpiresIn"`
}

// AuthResponse captures the signup/login payload emitted by the API.
type AuthResponse struct {
	Status string    `json:"status"`
	User   User      `json:"user"`
	Tokens TokenPair `json:"tokens"`
}

// SignupInput captures the registration payload.
type SignupInput struct {
	Email       string `json:"email"`
	Name        string `json:"name"`
	Password    string `json:"password"`
	Role        string `json:"role"`
	Company     string `json:"company,omitempty"`
	Designation string `json:"designation,omitempty"`
}

// Signup registers an account and returns the seeded profile.
func (c *Client) Signup(ctx context.Context, input SignupInput) (AuthResponse, error) {
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/signup", input, "", &resp); err != nil {
		return AuthResponse{}, err
	}
	return resp, nil
}

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, email, password string) (AuthResponse, error) {
	body := map[string]string{"email": email, "password": password}
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/login", body, "", &resp); err != nil {
		return AuthResponse{}, err
	}
	return resp, nil
}

// Me fetches the authenticated profile with live balances and flags.
func (c *Client) Me(ctx context.Context, token string) (User, error) {
	var resp struct {
		User User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/me", nil, token, &resp); err != nil {
		return User{}, err
	}
	return resp.User, nil
}

// Job describes a posting.
type Job struct {
	ID             string    `json:"ID"`
	RecruiterEmail string    `json:"RecruiterEmail"`
	Title          string    `json:"Title"`
	Company        string    `json:"Company"`
	Location       string    `json:"Location"`
	Salary         string    `json:"Salary"`
	Description    string    `json:"Description"`
	Experience     string    `json:"Experience"`
	Skills         []string  `json:"Skills"`
	ReferralBonus  int       `json:"ReferralBonus"`
	PostedAt       time.Time `json:"PostedAt"`
}

// IsPremium reports whether applying costs credits.
func (j Job) IsPremium() bool {
	return j.ReferralBonus > 0
}

// ListJobs returns postings matching the optional search term.
func (c *Client) ListJobs(ctx context.Context, token, search string) ([]Job, error) {
	path := "/api/jobs"
	if strings.TrimSpace(search) != "" {
		path += "?search=" + url.QueryEscape(search)
	}
	var jobs []Job
	if err := c.do(ctx, http.MethodGet, path, nil, token, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// ListMyJobs returns postings owned by the authenticated recruiter.
func (c *Client) ListMyJobs(ctx context.Context, token string) ([]Job, error) {
	var jobs []Job
	if err := c.do(ctx, http.MethodGet, "/api/jobs?mine=true", nil, token, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// PostJobInput captures the posting payload.
type PostJobInput struct {
	Title         string   `json:"Title"`
	Company       string   `json:"Company"`
	Location      string   `json:"Location"`
	Salary        string   `json:"Salary"`
	Description   string   `json:"Description"`
	Experience    string   `json:"Experience"`
	Skills        []string `json:"Skills"`
	ReferralBonus int      `json:"ReferralBonus"`
}

// PostJob creates a posting owned by the authenticated recruiter.
func (c *Client) PostJob(ctx context.Context, token string, input PostJobInput) (Job, error) {
	var job Job
	if err := c.do(ctx, http.MethodPost, "/api/jobs", input, token, &job); err != nil {
		return Job{}, err
	}
	return job, nil
}

// UpdateJob edits an owned posting.
func (c *Client) UpdateJob(ctx context.Context, token, jobID string, input PostJobInput) (Job, error) {
	path := "/api/jobs/" + url.PathEscape(jobID)
	var job Job
	if err := c.do(ctx, http.MethodPut, path, input, token, &job); err != nil {
		return Job{}, err
	}
	return job, nil
}

// DeleteJob removes an owned posting.
func (c *Client) DeleteJob(ctx context.Context, token, jobID string) error {
	path := "/api/jobs/" + url.PathEscape(jobID)
	return c.do(ctx, http.MethodDelete, path, nil, token, nil)
}

// ApplyResult reports the outcome of an application submission.
type ApplyResult struct {
	Status        string `json:"status"`
	ApplicationID string `json:"application_id"`
	AIScore       *int   `json:"ai_score"`
}

// Apply submits the multipart application form. Leave candidateEmail empty
// to apply as the authenticated user; set it to another user's email to
// submit a referral on their behalf.
func (c *Client) Apply(ctx context.Context, token, jobID, candidateEmail string) (ApplyResult, error) {
	fields := map[string]string{"jobId": jobID}
	if strings.TrimSpace(candidateEmail) != "" {
		fields["candidateEmail"] = candidateEmail
	}
	var result ApplyResult
	if err := c.doMultipart(ctx, "/api/apply", fields, "", "", nil, token, &result); err != nil {
		return ApplyResult{}, err
	}
	return result, nil
}

// Application models an application row.
type Application struct {
	ID             string    `json:"ID"`
	JobID          string    `json:"JobID"`
	CandidateEmail string    `json:"CandidateEmail"`
	ReferrerEmail  *string   `json:"ReferrerEmail"`
	JobTitle       string    `json:"JobTitle"`
	Company        string    `json:"Company"`
	AIScore        *int      `json:"AIScore"`
	Status         string    `json:"Status"`
	AppliedAt      time.Time `json:"AppliedAt"`
}

// UpdateApplicationStatus transitions an application on behalf of the
// recruiter owning the parent job.
func (c *Client) UpdateApplicationStatus(ctx context.Context, token, applicationID, status string) (Application, error) {
	body := map[string]string{"id": applicationID, "status": status}
	var resp struct {
		Application Application `json:"application"`
	}
	if err := c.do(ctx, http.MethodPut, "/api/applications/status", body, token, &resp); err != nil {
		return Application{}, err
	}
	return resp.Application, nil
}

// ListCandidateApplications returns a candidate's applications.
func (c *Client) ListCandidateApplications(ctx context.Context, token, email string) ([]Application, error) {
	path := "/api/applications/" + url.PathEscape(email)
	var apps []Application
	if err := c.do(ctx, http.MethodGet, path, nil, token, &apps); err != nil {
		return nil, err
	}
	return apps, nil
}

// ListRecruiterApplications returns applications across the recruiter's jobs.
func (c *Client) ListRecruiterApplications(ctx context.Context, token string) ([]Application, error) {
	var apps []Application
	if err := c.do(ctx, http.MethodGet, "/api/recruiter/applications", nil, token, &apps); err != nil {
		return nil, err
	}
	return apps, nil
}

// ListCandidateHistory returns one candidate's applications limited to the
// recruiter's jobs.
func (c *Client) ListCandidateHistory(ctx context.Context, token, email string) ([]Application, error) {
	path := "/api/recruiter/candidates/" + url.PathEscape(email)
	var apps []Application
	if err := c.do(ctx, http.MethodGet, path, nil, token, &apps); err != nil {
		return nil, err
	}
	return apps, nil
}

// SessionQuestion is one generated timed question.
type SessionQuestion struct {
	AttemptID string    `json:"attempt_id"`
	Kind      string    `json:"kind"`
	Topic     string    `json:"topic"`
	Question  string    `json:"question"`
	Options   []string  `json:"options"`
	Deadline  time.Time `json:"deadline"`
}

// SessionResult reports a consumed attempt.
type SessionResult struct {
	Status          string `json:"status"`
	AttemptID       string `json:"attempt_id"`
	Correct         bool   `json:"correct"`
	TimedOut        bool   `json:"timed_out"`
	CorrectOption   string `json:"correct_option"`
	AlreadyResolved bool   `json:"already_resolved"`
	AwardedCredits  int    `json:"awarded_credits"`
	AwardedDiamonds int    `json:"awarded_diamonds"`
}

// GenerateInterview starts a timed interview attempt.
func (c *Client) GenerateInterview(ctx context.Context, token, topic string) (SessionQuestion, error) {
	body := map[string]string{"topic": topic}
	var question SessionQuestion
	if err := c.do(ctx, http.MethodPost, "/api/interview/generate", body, token, &question); err != nil {
		return SessionQuestion{}, err
	}
	return question, nil
}

// SubmitInterview answers the outstanding interview attempt.
func (c *Client) SubmitInterview(ctx context.Context, token, attemptID, answer string) (SessionResult, error) {
	return c.submitSession(ctx, token, "/api/interview/submit", attemptID, answer)
}

// GenerateQuiz starts a paid quiz attempt. An empty wallet surfaces as an
// APIError with IsPaymentRequired() == true.
func (c *Client) GenerateQuiz(ctx context.Context, token, topic string) (SessionQuestion, error) {
	body := map[string]string{"topic": topic}
	var question SessionQuestion
	if err := c.do(ctx, http.MethodPost, "/api/quiz/generate", body, token, &question); err != nil {
		return SessionQuestion{}, err
	}
	return question, nil
}

// SubmitQuiz answers the outstanding quiz attempt.
func (c *Client) SubmitQuiz(ctx context.Context, token, attemptID, answer string) (SessionResult, error) {
	return c.submitSession(ctx, token, "/api/quiz/submit", attemptID, answer)
}

func (c *Client) submitSession(ctx context.Context, token, path, attemptID, answer string) (SessionResult, error) {
	body := map[string]string{"attempt_id": attemptID, "answer": answer}
	var result SessionResult
	if err := c.do(ctx, http.MethodPost, path, body, token, &result); err != nil {
		return SessionResult{}, err
	}
	return result, nil
}

// WalletBalance reflects the quiz economy balances.
type WalletBalance struct {
	Balance  int `json:"balance"`
	Diamonds int `json:"diamonds"`
}

// AddWalletFunds tops up the quiz wallet.
func (c *Client) AddWalletFunds(ctx context.Context, token string, amount int) (WalletBalance, error) {
	body := map[string]int{"amount": amount}
	var wallet WalletBalance
	if err := c.do(ctx, http.MethodPost, "/api/wallet/add", body, token, &wallet); err != nil {
		return WalletBalance{}, err
	}
	return wallet, nil
}

// GetWallet fetches the quiz wallet balances.
func (c *Client) GetWallet(ctx context.Context, token string) (WalletBalance, error) {
	var wallet WalletBalance
	if err := c.do(ctx, http.MethodGet, "/api/wallet", nil, token, &wallet); err != nil {
		return WalletBalance{}, err
	}
	return wallet, nil
}

// Transaction models one credit ledger entry.
type Transaction struct {
	ID               string    `json:"ID"`
	UserEmail        string    `json:"UserEmail"`
	Delta            int       `json:"Delta"`
	Reason           string    `json:"Reason"`
	ResultingBalance int       `json:"ResultingBalance"`
	CreatedAt        time.Time `json:"CreatedAt"`
}

// ListTransactions fetches recent ledger entries for the user.
func (c *Client) ListTransactions(ctx context.Context, token string, limit int) ([]Transaction, error) {
	path := "/api/transactions"
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}
	var entries []Transaction
	if err := c.do(ctx, http.MethodGet, path, nil, token, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// UploadResult reports a flag-award outcome.
type UploadResult struct {
	Status  string `json:"status"`
	Awarded bool   `json:"awarded"`
	Credits int    `json:"credits"`
}

// UploadResume submits the resume file and triggers the one-time award.
func (c *Client) UploadResume(ctx context.Context, token, fileName string, content []byte) (UploadResult, error) {
	var result UploadResult
	if err := c.doMultipart(ctx, "/api/upload-resume", nil, "resume", fileName, content, token, &result); err != nil {
		return UploadResult{}, err
	}
	return result, nil
}

// VerifyPhone marks the phone flag, awarding credits once.
func (c *Client) VerifyPhone(ctx context.Context, token string) (UploadResult, error) {
	var result UploadResult
	if err := c.do(ctx, http.MethodPost, "/api/verify/phone", nil, token, &result); err != nil {
		return UploadResult{}, err
	}
	return result, nil
}

// VerifyLinkedIn marks the LinkedIn flag, awarding credits once.
func (c *Client) VerifyLinkedIn(ctx context.Context, token string) (UploadResult, error) {
	var result UploadResult
	if err := c.do(ctx, http.MethodPost, "/api/verify/linkedin", nil, token, &result); err != nil {
		return UploadResult{}, err
	}
	return result, nil
}
