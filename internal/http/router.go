package httpx

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skillbit/marketplace/internal/domain"
	"github.com/skillbit/marketplace/internal/repository"
	"github.com/skillbit/marketplace/internal/service/auth"
	"github.com/skillbit/marketplace/internal/service/job"
	"github.com/skillbit/marketplace/internal/service/ledger"
	"github.com/skillbit/marketplace/internal/service/pipeline"
	"github.com/skillbit/marketplace/internal/service/session"
	"github.com/skillbit/marketplace/internal/ws"
)

const (
	rateWindowDefault  = time.Minute
	rateWindowRealtime = 30 * time.Second
	rateLimitSignup    = 5
	rateLimitLogin     = 12
	rateLimitUserWrite = 60
	rateLimitUserRead  = 120
	rateLimitWebsocket = 30
	healthCheckTimeout = 2 * time.Second

	maxResumeBytes = 2 << 20
)

// Router wires HTTP endpoints to services.
type Router struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	auth     auth.Service
	jobs     job.Service
	pipeline pipeline.Service
	ledger   ledger.Service
	sessions *session.Service
	hub      *ws.Hub
	upgrader websocket.Upgrader
	limiter  RateLimiter
	dbHealth func(context.Context) error

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
}

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, authSvc auth.Service, jobSvc job.Service, pipelineSvc pipeline.Service, ledgerSvc ledger.Service, sessionSvc *session.Service, hub *ws.Hub, limiter RateLimiter, dbHealth func(context.Context) error) *Router {
	r := &Router{
		mux:      http.NewServeMux(),
		logger:   logger,
		auth:     authSvc,
		jobs:     jobSvc,
		pipeline: pipelineSvc,
		ledger:   ledgerSvc,
		sessions: sessionSvc,
		hub:      hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter:  limiter,
		dbHealth: dbHealth,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.audit("healthz", r.handleHealthz))
	r.mux.Handle("/metrics", promhttp.Handler())
	r.mux.HandleFunc("/signup", r.audit("signup", r.withRateLimit("signup", rateLimitSignup, rateWindowDefault, rateLimitKeyIP, r.handleSignup)))
	r.mux.HandleFunc("/login", r.audit("login", r.withRateLimit("login", rateLimitLogin, rateWindowDefault, rateLimitKeyIP, r.handleLogin)))
	r.mux.HandleFunc("/api/me", r.audit("me", r.handlerAuthRate("me", rateLimitUserRead, rateWindowDefault, r.handleMe)))
	r.mux.HandleFunc("/api/jobs", r.audit("jobs", r.handlerAuthRate("jobs", rateLimitUserWrite, rateWindowDefault, r.handleJobs)))
	r.mux.HandleFunc("/api/jobs/", r.audit("jobs_item", r.handlerAuthRate("jobs_item", rateLimitUserWrite, rateWindowDefault, r.handleJobItem)))
	r.mux.HandleFunc("/api/apply", r.audit("apply", r.handlerAuthRate("apply", rateLimitUserWrite, rateWindowDefault, r.handleApply)))
	r.mux.HandleFunc("/api/applications/status", r.audit("application_status", r.handlerAuthRate("application_status", rateLimitUserWrite, rateWindowDefault, r.handleApplicationStatus)))
	r.mux.HandleFunc("/api/applications/", r.audit("applications", r.handlerAuthRate("applications", rateLimitUserRead, rateWindowDefault, r.handleCandidateApplications)))
	r.mux.HandleFunc("/api/recruiter/applications", r.audit("recruiter_applications", r.handlerAuthRate("recruiter_applications", rateLimitUserRead, rateWindowDefault, r.requireRecruiter(r.handleRecruiterApplications))))
	r.mux.HandleFunc("/api/recruiter/candidates/", r.audit("recruiter_candidates", r.handlerAuthRate("recruiter_candidates", rateLimitUserRead, rateWindowDefault, r.requireRecruiter(r.handleRecruiterCandidate))))
	r.mux.HandleFunc("/api/interview/generate", r.audit("interview_generate", r.handlerAuthRate("interview_generate", rateLimitUserWrite, rateWindowDefault, r.handleInterviewGenerate)))
	r.mux.HandleFunc("/api/interview/submit", r.audit("interview_submit", r.handlerAuthRate("interview_submit", rateLimitUserWrite, rateWindowDefault, r.handleInterviewSubmit)))
	r.mux.HandleFunc("/api/quiz/generate", r.audit("quiz_generate", r.handlerAuthRate("quiz_generate", rateLimitUserWrite, rateWindowDefault, r.handleQuizGenerate)))
	r.mux.HandleFunc("/api/quiz/submit", r.audit("quiz_submit", r.handlerAuthRate("quiz_submit", rateLimitUserWrite, rateWindowDefault, r.handleQuizSubmit)))
	r.mux.HandleFunc("/api/wallet/add", r.audit("wallet_add", r.handlerAuthRate("wallet_add", rateLimitUserWrite, rateWindowDefault, r.handleWalletAdd)))
	r.mux.HandleFunc("/api/wallet", r.audit("wallet", r.handlerAuthRate("wallet", rateLimitUserRead, rateWindowDefault, r.handleWallet)))
	r.mux.HandleFunc("/api/transactions", r.audit("transactions", r.handlerAuthRate("transactions", rateLimitUserRead, rateWindowDefault, r.handleTransactions)))
	r.mux.HandleFunc("/api/upload-resume", r.audit("upload_resume", r.handlerAuthRate("upload_resume", rateLimitUserWrite, rateWindowDefault, r.handleUploadResume)))
	r.mux.HandleFunc("/api/verify/phone", r.audit("verify_phone", r.handlerAuthRate("verify_phone", rateLimitUserWrite, rateWindowDefault, r.handleVerifyPhone)))
	r.mux.HandleFunc("/api/verify/linkedin", r.audit("verify_linkedin", r.handlerAuthRate("verify_linkedin", rateLimitUserWrite, rateWindowDefault, r.handleVerifyLinkedIn)))
	r.mux.HandleFunc("/ws/events", r.audit("ws_events", r.handlerAuthRate("ws_events", rateLimitWebsocket, rateWindowRealtime, r.handleEventsWS)))
	r.mux.HandleFunc("/events", r.audit("sse_events", r.handlerAuthRate("sse_events", rateLimitWebsocket, rateWindowRealtime, r.handleEventsSSE)))
}

func userPayload(user *domain.User) map[string]any {
	return map[string]any{
		"email":             user.Email,
		"name":              user.Name,
		"role":              user.Role,
		"credits":           user.Credits,
		"phone_verified":    user.PhoneVerified,
		"linkedin_verified": user.LinkedInVerified,
		"has_resume":        user.HasResume(),
		"company":           user.Company,
		"designation":       user.Designation,
	}
}

func (r *Router) handleSignup(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Email       string `json:"email"`
		Name        string `json:"name"`
		Password    string `json:"password"`
		Role        string `json:"role"`
		Company     string `json:"company"`
		Designation string `json:"designation"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, tokens, err := r.auth.Signup(req.Context(), auth.SignupInput{
		Email:       payload.Email,
		Name:        payload.Name,
		Password:    payload.Password,
		Role:        payload.Role,
		Company:     payload.Company,
		Designation: payload.Designation,
	})
	if err != nil {
		if errors.Is(err, auth.ErrEmailTaken) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"status": "success",
		"user":   userPayload(user),
		"tokens": tokens,
	})
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, tokens, err := r.auth.Login(req.Context(), payload.Email, payload.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"user":   userPayload(user),
		"tokens": tokens,
	})
}

func (r *Router) handleMe(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	_, user, ok := r.currentUser(w, req)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "user": userPayload(user)})
}

func (r *Router) handleJobs(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		search := req.URL.Query().Get("search")
		var (
			jobs []domain.Job
			err  error
		)
		if req.URL.Query().Get("mine") == "true" {
			info, ok := authInfoFromContext(req.Context())
			if !ok {
				writeError(w, http.StatusInternalServerError, "authorization context missing")
				return
			}
			jobs, err = r.jobs.ListByRecruiter(req.Context(), info.Email)
		} else {
			jobs, err = r.jobs.List(req.Context(), search)
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, jobs)
	case http.MethodPost:
		info, ok := authInfoFromContext(req.Context())
		if !ok || info.Role != domain.RoleRecruiter {
			writeError(w, http.StatusForbidden, "recruiter role required")
			return
		}
		var payload job.PostInput
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		payload.RecruiterEmail = info.Email
		posted, err := r.jobs.Post(req.Context(), payload)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, posted)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleJobItem(w http.ResponseWriter, req *http.Request) {
	jobID := strings.TrimPrefix(req.URL.Path, "/api/jobs/")
	if jobID == "" || strings.Contains(jobID, "/") {
		r.notFound(w)
		return
	}
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	switch req.Method {
	case http.MethodGet:
		found, err := r.jobs.Get(req.Context(), jobID)
		if err != nil {
			r.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, found)
	case http.MethodPut:
		if info.Role != domain.RoleRecruiter {
			writeError(w, http.StatusForbidden, "recruiter role required")
			return
		}
		var payload job.PostInput
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		updated, err := r.jobs.Update(req.Context(), info.Email, jobID, payload)
		if err != nil {
			r.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if info.Role != domain.RoleRecruiter {
			writeError(w, http.StatusForbidden, "recruiter role required")
			return
		}
		if err := r.jobs.Delete(req.Context(), info.Email, jobID); err != nil {
			r.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
	default:
		r.methodNotAllowed(w)
	}
}

// handleApply accepts the multipart apply form. When the submitted
// candidate email differs from the authenticated user, the request is a
// referral on the candidate's behalf.
func (r *Router) handleApply(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	if err := req.ParseMultipartForm(maxResumeBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	candidate := strings.TrimSpace(req.FormValue("candidateEmail"))
	if candidate == "" {
		candidate = info.Email
	}
	jobID := strings.TrimSpace(req.FormValue("jobId"))
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "jobId is required")
		return
	}
	input := pipeline.CreateInput{JobID: jobID, CandidateEmail: candidate}
	if !strings.EqualFold(candidate, info.Email) {
		input.ReferrerEmail = info.Email
	}
	app, err := r.pipeline.Create(req.Context(), input)
	if err != nil {
		r.writeServiceError(w, err)
		return
	}
	payload := map[string]any{"status": "success", "application_id": app.ID}
	if app.AIScore != nil {
		payload["ai_score"] = *app.AIScore
	}
	writeJSON(w, http.StatusCreated, payload)
}

func (r *Router) handleApplicationStatus(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPut {
		r.methodNotAllowed(w)
		return
	}
	info, ok := authInfoFromContext(req.Context())
	if !ok || info.Role != domain.RoleRecruiter {
		writeError(w, http.StatusForbidden, "recruiter role required")
		return
	}
	var payload struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	app, err := r.pipeline.Transition(req.Context(), info.Email, payload.ID, payload.Status)
	if err != nil {
		r.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "application": app})
}

func (r *Router) handleCandidateApplications(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	email := strings.TrimPrefix(req.URL.Path, "/api/applications/")
	if email == "" {
		r.notFound(w)
		return
	}
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	if !strings.EqualFold(email, info.Email) && info.Role != domain.RoleRecruiter {
		writeError(w, http.StatusForbidden, "cannot view another candidate's applications")
		return
	}
	apps, err := r.pipeline.ListByCandidate(req.Context(), email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, apps)
}

func (r *Router) handleRecruiterApplications(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	info, _ := authInfoFromContext(req.Context())
	apps, err := r.pipeline.ListByRecruiter(req.Context(), info.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, apps)
}

func (r *Router) handleRecruiterCandidate(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	email := strings.TrimPrefix(req.URL.Path, "/api/recruiter/candidates/")
	if email == "" {
		r.notFound(w)
		return
	}
	info, _ := authInfoFromContext(req.Context())
	apps, err := r.pipeline.ListCandidateHistory(req.Context(), info.Email, email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, apps)
}

func attemptPayload(attempt *domain.SessionAttempt) map[string]any {
	return map[string]any{
		"attempt_id": attempt.ID,
		"kind":       attempt.Kind,
		"topic":      attempt.Topic,
		"question":   attempt.Question,
		"options":    attempt.Options,
		"deadline":   attempt.Deadline.Format(time.RFC3339),
	}
}

func (r *Router) handleInterviewGenerate(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	info, _ := authInfoFromContext(req.Context())
	var payload struct {
		Topic string `json:"topic"`
	}
	_ = json.NewDecoder(req.Body).Decode(&payload)
	attempt, err := r.sessions.StartInterview(req.Context(), info.Email, payload.Topic)
	if err != nil {
		r.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, attemptPayload(attempt))
}

func (r *Router) handleInterviewSubmit(w http.ResponseWriter, req *http.Request) {
	r.handleSessionSubmit(w, req, domain.SessionInterview)
}

func (r *Router) handleQuizGenerate(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	info, _ := authInfoFromContext(req.Context())
	var payload struct {
		Topic string `json:"topic"`
	}
	_ = json.NewDecoder(req.Body).Decode(&payload)
	attempt, err := r.sessions.StartQuiz(req.Context(), info.Email, payload.Topic)
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			writePaymentRequired(w, "wallet balance too low, add funds to continue")
			return
		}
		r.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, attemptPayload(attempt))
}

func (r *Router) handleQuizSubmit(w http.ResponseWriter, req *http.Request) {
	r.handleSessionSubmit(w, req, domain.SessionQuiz)
}

func (r *Router) handleSessionSubmit(w http.ResponseWriter, req *http.Request, kind string) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	info, _ := authInfoFromContext(req.Context())
	var payload struct {
		AttemptID string `json:"attempt_id"`
		Answer    string `json:"answer"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	result, err := r.sessions.Submit(req.Context(), info.Email, kind, payload.AttemptID, payload.Answer)
	if err != nil {
		r.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "success",
		"attempt_id":       result.AttemptID,
		"correct":          result.Correct,
		"timed_out":        result.TimedOut,
		"correct_option":   result.CorrectOption,
		"already_resolved": result.AlreadyResolved,
		"awarded_credits":  result.AwardedCredits,
		"awarded_diamonds": result.AwardedDiamonds,
	})
}

func (r *Router) handleWalletAdd(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	info, _ := authInfoFromContext(req.Context())
	var payload struct {
		Amount int `json:"amount"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	wallet, err := r.ledger.TopUpWallet(req.Context(), info.Email, payload.Amount)
	if err != nil {
		r.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "success",
		"balance":  wallet.Balance,
		"diamonds": wallet.Diamonds,
	})
}

func (r *Router) handleWallet(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	info, _ := authInfoFromContext(req.Context())
	wallet, err := r.ledger.Wallet(req.Context(), info.Email)
	if err != nil {
		r.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "success",
		"balance":  wallet.Balance,
		"diamonds": wallet.Diamonds,
	})
}

func (r *Router) handleTransactions(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	info, _ := authInfoFromContext(req.Context())
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	if req.URL.Query().Get("economy") == "wallet" {
		entries, err := r.ledger.WalletTransactions(req.Context(), info.Email, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, entries)
		return
	}
	entries, err := r.ledger.Transactions(req.Context(), info.Email, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (r *Router) handleUploadResume(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	info, _ := authInfoFromContext(req.Context())
	if err := req.ParseMultipartForm(maxResumeBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, _, err := req.FormFile("resume")
	if err != nil {
		writeError(w, http.StatusBadRequest, "resume file is required")
		return
	}
	defer file.Close()
	content, err := io.ReadAll(io.LimitReader(file, maxResumeBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read resume file")
		return
	}
	text := strings.TrimSpace(string(content))
	if text == "" {
		writeError(w, http.StatusBadRequest, "resume file is empty")
		return
	}
	balance, awarded, err := r.ledger.AwardResumeUpload(req.Context(), info.Email, text)
	if err != nil {
		r.writeServiceError(w, err)
		return
	}
	payload := map[string]any{"status": "success", "awarded": awarded}
	if awarded {
		payload["credits"] = balance
	}
	writeJSON(w, http.StatusOK, payload)
}

func (r *Router) handleVerifyPhone(w http.ResponseWriter, req *http.Request) {
	r.handleVerification(w, req, r.ledger.AwardPhoneVerification)
}

func (r *Router) handleVerifyLinkedIn(w http.ResponseWriter, req *http.Request) {
	r.handleVerification(w, req, r.ledger.AwardLinkedInVerification)
}

func (r *Router) handleVerification(w http.ResponseWriter, req *http.Request, award func(context.Context, string) (int, bool, error)) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	info, _ := authInfoFromContext(req.Context())
	balance, awarded, err := award(req.Context(), info.Email)
	if err != nil {
		r.writeServiceError(w, err)
		return
	}
	payload := map[string]any{"status": "success", "awarded": awarded}
	if awarded {
		payload["credits"] = balance
	}
	writeJSON(w, http.StatusOK, payload)
}

func (r *Router) handleEventsWS(w http.ResponseWriter, req *http.Request) {
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger)
	r.hub.Register(info.Email, client)
	go func() {
		defer func() {
			r.hub.Unregister(info.Email, client)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (r *Router) handleEventsSSE(w http.ResponseWriter, req *http.Request) {
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	client := ws.NewSSEClient(w, flusher, r.logger)
	r.hub.Register(info.Email, client)
	defer func() {
		r.hub.Unregister(info.Email, client)
		client.Close()
	}()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-req.Context().Done():
			return
		case <-ticker.C:
			if err := client.Heartbeat(); err != nil {
				return
			}
		}
	}
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

func (r *Router) currentUser(w http.ResponseWriter, req *http.Request) (authInfo, *domain.User, bool) {
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return authInfo{}, nil, false
	}
	token, err := bearerToken(req.Header.Get("Authorization"))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return authInfo{}, nil, false
	}
	user, _, err := r.auth.Authorize(req.Context(), token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication failed")
		return authInfo{}, nil, false
	}
	return info, user, true
}

// writeServiceError maps service sentinels onto HTTP statuses.
func (r *Router) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, ledger.ErrInsufficientCredits):
		writeError(w, http.StatusBadRequest, "insufficient credits")
	case errors.Is(err, ledger.ErrInsufficientFunds):
		writePaymentRequired(w, "wallet balance too low, add funds to continue")
	case errors.Is(err, pipeline.ErrDuplicateApplication):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, pipeline.ErrInvalidTransition), errors.Is(err, pipeline.ErrTerminalState):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, pipeline.ErrForbidden), errors.Is(err, job.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, session.ErrNoActiveSession):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrResumeRequired):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.recordRequestMetrics(req.Method, route, status, duration)
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		actor := "anonymous"
		if info, ok := authInfoFromContext(ctx); ok {
			actor = "user"
			fields = append(fields, "user_id", info.UserID, "role", info.Role)
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func (sr *statusRecorder) Push(target string, opts *http.PushOptions) error {
	if p, ok := sr.ResponseWriter.(http.Pusher); ok {
		return p.Push(target, opts)
	}
	return http.ErrNotSupported
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

func (r *Router) applyRateHeaders(w http.ResponseWriter, limit int, decision rateDecision) {
	if limit <= 0 {
		return
	}
	remaining := limit - decision.count
	if remaining < 0 {
		remaining = 0
	}
	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !decision.windowEnd.IsZero() {
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.windowEnd.Unix(), 10))
	}
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}
