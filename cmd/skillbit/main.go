package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"log/slog"

	"golang.org/x/term"

	"github.com/skillbit/marketplace/internal/dashboard"
	apiclient "github.com/skillbit/marketplace/pkg/api/client"
	"github.com/skillbit/marketplace/pkg/logger"
)

var buildVersion = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "signup":
		err = commandSignup(args)
	case "login":
		err = commandLogin(args)
	case "logout":
		err = commandLogout()
	case "whoami":
		err = commandWhoami(args)
	case "jobs":
		err = commandJobs(args)
	case "post-job":
		err = commandPostJob(args)
	case "delete-job":
		err = commandDeleteJob(args)
	case "apply":
		err = commandApply(args)
	case "refer":
		err = commandRefer(args)
	case "applications":
		err = commandApplications(args)
	case "triage":
		err = commandTriage(args)
	case "candidates":
		err = commandCandidates(args)
	case "interview":
		err = commandInterview(args)
	case "quiz":
		err = commandQuiz(args)
	case "wallet":
		err = commandWallet(args)
	case "resume":
		err = commandResume(args)
	case "verify":
		err = commandVerify(args)
	case "cities":
		err = commandCities(args)
	case "version", "--version", "-v":
		printVersion()
		return
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`skillbit - job marketplace CLI

Usage:
  skillbit signup --email <email> --name <name> --role <job_seeker|recruiter>
  skillbit login --email <email>
  skillbit logout
  skillbit whoami
  skillbit jobs [--search <term>] [--mine]
  skillbit post-job --title <t> --company <c> --location <l> --salary <s> --description <d> [--bonus <n>]
  skillbit delete-job --id <job-id>
  skillbit apply --job <job-id>
  skillbit refer --job <job-id> --candidate <email>
  skillbit applications
  skillbit triage --id <application-id> --status <Shortlisted|Interviewing|Hired|Rejected>
  skillbit candidates --email <email>
  skillbit interview [--topic <topic>]
  skillbit quiz [--topic <topic>]
  skillbit wallet [--add <amount>]
  skillbit resume --file <path>
  skillbit verify --channel <phone|linkedin>
  skillbit cities --q <fragment>
  skillbit version`)
}

func printVersion() {
	fmt.Printf("skillbit %s\n", buildVersion)
}

func sessionStore() (*dashboard.FileStore, error) {
	return dashboard.NewFileStore("")
}

func loadSession() (*dashboard.Session, *apiclient.Client, error) {
	store, err := sessionStore()
	if err != nil {
		return nil, nil, err
	}
	session, err := store.Load()
	if err != nil {
		return nil, nil, err
	}
	api, err := apiclient.New(session.APIBaseURL)
	if err != nil {
		return nil, nil, err
	}
	return session, api, nil
}

func notifier() dashboard.Notifier {
	return func(message string) {
		fmt.Fprintf(os.Stderr, "! %s\n", message)
	}
}

func cliLogger() *slog.Logger {
	return logger.New("skillbit", slog.LevelWarn)
}

func candidateController(session *dashboard.Session, api *apiclient.Client) *dashboard.CandidateController {
	return dashboard.NewCandidateController(api, session, notifier(), cliLogger())
}

func recruiterController(session *dashboard.Session, api *apiclient.Client) *dashboard.RecruiterController {
	return dashboard.NewRecruiterController(api, session, notifier(), cliLogger())
}

func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Print("\n")
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(raw), nil
}

func timeoutContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

func commandSignup(args []string) error {
	fs := flag.NewFlagSet("signup", flag.ExitOnError)
	email := fs.String("email", "", "Email address")
	name := fs.String("name", "", "Display name")
	role := fs.String("role", "job_seeker", "Role (job_seeker|recruiter)")
	company := fs.String("company", "", "Company (recruiters)")
	designation := fs.String("designation", "", "Designation (recruiters)")
	apiBase := fs.String("api", "", "API base URL (default http://localhost:4000)")
	fs.Parse(args)

	if strings.TrimSpace(*email) == "" {
		return errors.New("--email is required")
	}
	if strings.TrimSpace(*name) == "" {
		return errors.New("--name is required")
	}
	password, err := readPassword("Password: ")
	if err != nil {
		return err
	}

	api, err := apiclient.New(*apiBase)
	if err != nil {
		return err
	}
	ctx, cancel := timeoutContext()
	defer cancel()
	resp, err := api.Signup(ctx, apiclient.SignupInput{
		Email:       *email,
		Name:        *name,
		Password:    password,
		Role:        *role,
		Company:     *company,
		Designation: *designation,
	})
	if err != nil {
		return err
	}
	if err := saveSession(resp, *apiBase); err != nil {
		return err
	}
	fmt.Printf("welcome %s (%s), starting credits: %d\n", resp.User.Name, resp.User.Role, resp.User.Credits)
	return nil
}

func commandLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password (supply to avoid prompt)")
	apiBase := fs.String("api", "", "API base URL (default http://localhost:4000)")
	fs.Parse(args)

	if strings.TrimSpace(*email) == "" {
		return errors.New("--email is required")
	}
	secret := strings.TrimSpace(*password)
	if secret == "" {
		var err error
		secret, err = readPassword("Password: ")
		if err != nil {
			return err
		}
	}

	api, err := apiclient.New(*apiBase)
	if err != nil {
		return err
	}
	ctx, cancel := timeoutContext()
	defer cancel()
	resp, err := api.Login(ctx, *email, secret)
	if err != nil {
		return err
	}
	if err := saveSession(resp, *apiBase); err != nil {
		return err
	}
	fmt.Println("login successful")
	return nil
}

func saveSession(resp apiclient.AuthResponse, apiBase string) error {
	store, err := sessionStore()
	if err != nil {
		return err
	}
	base := strings.TrimSpace(apiBase)
	if base == "" {
		base = "http://localhost:4000"
	}
	return store.Save(&dashboard.Session{
		Email:       resp.User.Email,
		Name:        resp.User.Name,
		Role:        resp.User.Role,
		AccessToken: resp.Tokens.AccessToken,
		APIBaseURL:  base,
	})
}

func commandLogout() error {
	store, err := sessionStore()
	if err != nil {
		return err
	}
	if err := store.Clear(); err != nil {
		return err
	}
	fmt.Println("logged out")
	return nil
}

func commandWhoami(args []string) error {
	session, api, err := loadSession()
	if err != nil {
		return err
	}
	ctx, cancel := timeoutContext()
	defer cancel()
	user, err := api.Me(ctx, session.AccessToken)
	if err != nil {
		return err
	}
	fmt.Printf("%s <%s> role=%s credits=%d phone=%v linkedin=%v resume=%v\n",
		user.Name, user.Email, user.Role, user.Credits, user.PhoneVerified, user.LinkedInVerified, user.HasResume)
	return nil
}

func commandJobs(args []string) error {
	fs := flag.NewFlagSet("jobs", flag.ExitOnError)
	search := fs.String("search", "", "Search term")
	mine := fs.Bool("mine", false, "Only my postings (recruiters)")
	fs.Parse(args)

	session, api, err := loadSession()
	if err != nil {
		return err
	}
	ctx, cancel := timeoutContext()
	defer cancel()

	var jobs []apiclient.Job
	if *mine {
		jobs, err = api.ListMyJobs(ctx, session.AccessToken)
	} else {
		jobs, err = api.ListJobs(ctx, session.AccessToken, *search)
	}
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Println("no jobs found")
		return nil
	}
	for _, job := range jobs {
		premium := ""
		if job.IsPremium() {
			premium = fmt.Sprintf(" [premium, referral bonus %d]", job.ReferralBonus)
		}
		fmt.Printf("%s  %s @ %s (%s, %s)%s\n", job.ID, job.Title, job.Company, job.Location, job.Salary, premium)
	}
	return nil
}

func commandPostJob(args []string) error {
	fs := flag.NewFlagSet("post-job", flag.ExitOnError)
	title := fs.String("title", "", "Job title")
	company := fs.String("company", "", "Company name")
	location := fs.String("location", "", "Job location")
	salary := fs.String("salary", "", "Salary range")
	description := fs.String("description", "", "Job description")
	experience := fs.String("experience", "", "Experience requirement")
	skills := fs.String("skills", "", "Comma-separated skills")
	bonus := fs.Int("bonus", 0, "Referral bonus (premium when > 0)")
	fs.Parse(args)

	session, api, err := loadSession()
	if err != nil {
		return err
	}
	if suggestions := dashboard.SuggestLocations(*location, dashboard.DefaultCities); *location != "" && len(suggestions) > 0 && !containsFold(suggestions, *location) {
		fmt.Printf("did you mean: %s\n", strings.Join(suggestions, ", "))
	}

	ctrl := recruiterController(session, api)
	ctx, cancel := timeoutContext()
	defer cancel()
	job, err := ctrl.PostJob(ctx, apiclient.PostJobInput{
		Title:         *title,
		Company:       *company,
		Location:      *location,
		Salary:        *salary,
		Description:   *description,
		Experience:    *experience,
		Skills:        splitSkills(*skills),
		ReferralBonus: *bonus,
	})
	if err != nil {
		return err
	}
	fmt.Printf("posted %s (%s)\n", job.Title, job.ID)
	return nil
}

func containsFold(list []string, value string) bool {
	for _, item := range list {
		if strings.EqualFold(item, value) {
			return true
		}
	}
	return false
}

func splitSkills(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func commandDeleteJob(args []string) error {
	fs := flag.NewFlagSet("delete-job", flag.ExitOnError)
	id := fs.String("id", "", "Job ID")
	fs.Parse(args)
	if strings.TrimSpace(*id) == "" {
		return errors.New("--id is required")
	}

	session, api, err := loadSession()
	if err != nil {
		return err
	}
	ctrl := recruiterController(session, api)
	ctx, cancel := timeoutContext()
	defer cancel()
	if err := ctrl.Refresh(ctx); err != nil {
		return err
	}
	if err := ctrl.DeleteJob(ctx, *id); err != nil {
		return err
	}
	fmt.Println("job deleted")
	return nil
}

func commandApply(args []string) error {
	fs := flag.NewFlagSet("apply", flag.ExitOnError)
	jobID := fs.String("job", "", "Job ID")
	fs.Parse(args)
	if strings.TrimSpace(*jobID) == "" {
		return errors.New("--job is required")
	}

	session, api, err := loadSession()
	if err != nil {
		return err
	}
	ctrl := candidateController(session, api)
	ctx, cancel := timeoutContext()
	defer cancel()
	if err := ctrl.Refresh(ctx); err != nil {
		return err
	}
	jobs, err := ctrl.BrowseJobs(ctx, "")
	if err != nil {
		return err
	}
	var target *apiclient.Job
	for i := range jobs {
		if jobs[i].ID == *jobID {
			target = &jobs[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("job %s not found", *jobID)
	}
	result, err := ctrl.Apply(ctx, *target)
	if err != nil {
		return err
	}
	if result.AIScore != nil {
		fmt.Printf("applied, screening score %d, credits remaining %d\n", *result.AIScore, ctrl.Credits())
	} else {
		fmt.Printf("applied, screening pending, credits remaining %d\n", ctrl.Credits())
	}
	return nil
}

func commandRefer(args []string) error {
	fs := flag.NewFlagSet("refer", flag.ExitOnError)
	jobID := fs.String("job", "", "Job ID")
	candidate := fs.String("candidate", "", "Candidate email")
	fs.Parse(args)
	if strings.TrimSpace(*jobID) == "" || strings.TrimSpace(*candidate) == "" {
		return errors.New("--job and --candidate are required")
	}

	session, api, err := loadSession()
	if err != nil {
		return err
	}
	ctrl := candidateController(session, api)
	ctx, cancel := timeoutContext()
	defer cancel()
	if err := ctrl.Refresh(ctx); err != nil {
		return err
	}
	jobs, err := ctrl.BrowseJobs(ctx, "")
	if err != nil {
		return err
	}
	var target *apiclient.Job
	for i := range jobs {
		if jobs[i].ID == *jobID {
			target = &jobs[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("job %s not found", *jobID)
	}
	if _, err := ctrl.Refer(ctx, *target, *candidate); err != nil {
		return err
	}
	fmt.Printf("referred %s, credits remaining %d\n", *candidate, ctrl.Credits())
	return nil
}

func commandApplications(args []string) error {
	session, api, err := loadSession()
	if err != nil {
		return err
	}
	ctx, cancel := timeoutContext()
	defer cancel()

	var apps []apiclient.Application
	if session.Role == "recruiter" {
		apps, err = api.ListRecruiterApplications(ctx, session.AccessToken)
	} else {
		apps, err = api.ListCandidateApplications(ctx, session.AccessToken, session.Email)
	}
	if err != nil {
		return err
	}
	if len(apps) == 0 {
		fmt.Println("no applications")
		return nil
	}
	for _, app := range apps {
		score := "-"
		if app.AIScore != nil {
			score = fmt.Sprintf("%d", *app.AIScore)
		}
		referral := ""
		if app.ReferrerEmail != nil {
			referral = fmt.Sprintf(" (referred by %s)", *app.ReferrerEmail)
		}
		fmt.Printf("%s  %s @ %s  candidate=%s status=%s score=%s%s\n",
			app.ID, app.JobTitle, app.Company, app.CandidateEmail, app.Status, score, referral)
	}
	return nil
}

func commandTriage(args []string) error {
	fs := flag.NewFlagSet("triage", flag.ExitOnError)
	id := fs.String("id", "", "Application ID")
	status := fs.String("status", "", "New status")
	fs.Parse(args)
	if strings.TrimSpace(*id) == "" || strings.TrimSpace(*status) == "" {
		return errors.New("--id and --status are required")
	}

	session, api, err := loadSession()
	if err != nil {
		return err
	}
	ctrl := recruiterController(session, api)
	ctx, cancel := timeoutContext()
	defer cancel()
	if err := ctrl.Refresh(ctx); err != nil {
		return err
	}
	app, err := ctrl.Triage(ctx, *id, *status)
	if err != nil {
		return err
	}
	fmt.Printf("application %s is now %s\n", app.ID, app.Status)
	return nil
}

func commandCandidates(args []string) error {
	fs := flag.NewFlagSet("candidates", flag.ExitOnError)
	email := fs.String("email", "", "Candidate email")
	fs.Parse(args)
	if strings.TrimSpace(*email) == "" {
		return errors.New("--email is required")
	}

	session, api, err := loadSession()
	if err != nil {
		return err
	}
	ctrl := recruiterController(session, api)
	ctx, cancel := timeoutContext()
	defer cancel()
	apps, err := ctrl.CandidateHistory(ctx, *email)
	if err != nil {
		return err
	}
	if len(apps) == 0 {
		fmt.Println("no history with this candidate")
		return nil
	}
	for _, app := range apps {
		fmt.Printf("%s  %s  status=%s applied=%s\n", app.ID, app.JobTitle, app.Status, app.AppliedAt.Format(time.RFC3339))
	}
	return nil
}

func runSession(generate func(context.Context) (apiclient.SessionQuestion, error), submit func(context.Context, string, string) (apiclient.SessionResult, error)) error {
	ctx, cancel := timeoutContext()
	question, err := generate(ctx)
	cancel()
	if err != nil {
		var apiErr apiclient.APIError
		if errors.As(err, &apiErr) && apiErr.IsPaymentRequired() {
			return errors.New("wallet balance too low, run: skillbit wallet --add <amount>")
		}
		return err
	}

	fmt.Printf("\n%s\n", question.Question)
	for i, option := range question.Options {
		fmt.Printf("  %d) %s\n", i+1, option)
	}
	fmt.Printf("answer before %s\n> ", question.Deadline.Format(time.Kitchen))

	var choice int
	if _, err := fmt.Scanln(&choice); err != nil {
		return fmt.Errorf("read answer: %w", err)
	}
	if choice < 1 || choice > len(question.Options) {
		return errors.New("answer out of range")
	}

	ctx, cancel = timeoutContext()
	defer cancel()
	result, err := submit(ctx, question.AttemptID, question.Options[choice-1])
	if err != nil {
		return err
	}
	switch {
	case result.TimedOut:
		fmt.Printf("time expired, correct answer was %q\n", result.CorrectOption)
	case result.AlreadyResolved:
		fmt.Println("attempt was already scored")
	case result.Correct:
		fmt.Printf("correct! +%d credits +%d diamonds\n", result.AwardedCredits, result.AwardedDiamonds)
	default:
		fmt.Printf("incorrect, the answer was %q\n", result.CorrectOption)
	}
	return nil
}

func commandInterview(args []string) error {
	fs := flag.NewFlagSet("interview", flag.ExitOnError)
	topic := fs.String("topic", "", "Interview topic")
	fs.Parse(args)

	session, api, err := loadSession()
	if err != nil {
		return err
	}
	ctrl := candidateController(session, api)
	return runSession(
		func(ctx context.Context) (apiclient.SessionQuestion, error) {
			return ctrl.StartInterview(ctx, *topic)
		},
		ctrl.AnswerInterview,
	)
}

func commandQuiz(args []string) error {
	fs := flag.NewFlagSet("quiz", flag.ExitOnError)
	topic := fs.String("topic", "", "Quiz topic")
	fs.Parse(args)

	session, api, err := loadSession()
	if err != nil {
		return err
	}
	ctrl := candidateController(session, api)
	return runSession(
		func(ctx context.Context) (apiclient.SessionQuestion, error) {
			return ctrl.StartQuiz(ctx, *topic)
		},
		ctrl.AnswerQuiz,
	)
}

func commandWallet(args []string) error {
	fs := flag.NewFlagSet("wallet", flag.ExitOnError)
	add := fs.Int("add", 0, "Amount to add")
	fs.Parse(args)

	session, api, err := loadSession()
	if err != nil {
		return err
	}
	ctrl := candidateController(session, api)
	ctx, cancel := timeoutContext()
	defer cancel()

	if *add > 0 {
		wallet, err := ctrl.TopUpWallet(ctx, *add)
		if err != nil {
			return err
		}
		fmt.Printf("wallet balance %d, diamonds %d\n", wallet.Balance, wallet.Diamonds)
		return nil
	}
	wallet, err := api.GetWallet(ctx, session.AccessToken)
	if err != nil {
		return err
	}
	fmt.Printf("wallet balance %d, diamonds %d\n", wallet.Balance, wallet.Diamonds)
	return nil
}

func commandResume(args []string) error {
	fs := flag.NewFlagSet("resume", flag.ExitOnError)
	file := fs.String("file", "", "Path to resume file")
	fs.Parse(args)
	if strings.TrimSpace(*file) == "" {
		return errors.New("--file is required")
	}

	content, err := os.ReadFile(*file)
	if err != nil {
		return fmt.Errorf("read resume: %w", err)
	}

	session, api, err := loadSession()
	if err != nil {
		return err
	}
	ctrl := candidateController(session, api)
	ctx, cancel := timeoutContext()
	defer cancel()
	result, err := ctrl.UploadResume(ctx, filepath.Base(*file), content)
	if err != nil {
		return err
	}
	if result.Awarded {
		fmt.Printf("resume stored, +20 credits (balance %d)\n", result.Credits)
	} else {
		fmt.Println("resume updated")
	}
	return nil
}

func commandVerify(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	channel := fs.String("channel", "", "Verification channel (phone|linkedin)")
	fs.Parse(args)

	session, api, err := loadSession()
	if err != nil {
		return err
	}
	ctrl := candidateController(session, api)
	ctx, cancel := timeoutContext()
	defer cancel()

	var result apiclient.UploadResult
	switch strings.ToLower(strings.TrimSpace(*channel)) {
	case "phone":
		result, err = ctrl.VerifyPhone(ctx)
	case "linkedin":
		result, err = ctrl.VerifyLinkedIn(ctx)
	default:
		return errors.New("--channel must be phone or linkedin")
	}
	if err != nil {
		return err
	}
	if result.Awarded {
		fmt.Printf("verified, +5 credits (balance %d)\n", result.Credits)
	} else {
		fmt.Println("already verified")
	}
	return nil
}

func commandCities(args []string) error {
	fs := flag.NewFlagSet("cities", flag.ExitOnError)
	fragment := fs.String("q", "", "Typed fragment")
	fs.Parse(args)

	matches := dashboard.SuggestLocations(*fragment, dashboard.DefaultCities)
	if len(matches) == 0 {
		fmt.Println("no suggestions")
		return nil
	}
	for _, city := range matches {
		fmt.Println(city)
	}
	return nil
}
