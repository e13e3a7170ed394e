package dashboard

import (
	"context"
	"errors"
	"sync"

	"log/slog"

	"github.com/google/uuid"

	apiclient "github.com/skillbit/marketplace/pkg/api/client"
)

// RecruiterController orchestrates posting management and application
// triage. Status changes are applied optimistically and rolled back to
// the last confirmed value when the backend rejects the transition.
type RecruiterController struct {
	api     Backend
	session *Session
	notify  Notifier
	logger  *slog.Logger

	mu           sync.Mutex
	jobs         []apiclient.Job
	applications []apiclient.Application
	pending      map[string]pendingStatus
}

type pendingStatus struct {
	applicationID string
	previous      string
}

// NewRecruiterController builds a controller bound to one session.
func NewRecruiterController(api Backend, session *Session, notify Notifier, logger *slog.Logger) *RecruiterController {
	if notify == nil {
		notify = func(string) {}
	}
	return &RecruiterController{
		api:     api,
		session: session,
		notify:  notify,
		logger:  logger,
		pending: make(map[string]pendingStatus),
	}
}

// Refresh pulls confirmed postings and applications from the backend.
func (r *RecruiterController) Refresh(ctx context.Context) error {
	jobs, err := r.api.ListMyJobs(ctx, r.session.AccessToken)
	if err != nil {
		return err
	}
	apps, err := r.api.ListRecruiterApplications(ctx, r.session.AccessToken)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.jobs = jobs
	r.applications = apps
	r.mu.Unlock()
	return nil
}

// Jobs returns the cached postings.
func (r *RecruiterController) Jobs() []apiclient.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]apiclient.Job, len(r.jobs))
	copy(out, r.jobs)
	return out
}

// Applications returns the cached application list.
func (r *RecruiterController) Applications() []apiclient.Application {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]apiclient.Application, len(r.applications))
	copy(out, r.applications)
	return out
}

// PostJob creates a posting and caches the confirmed row.
func (r *RecruiterController) PostJob(ctx context.Context, input apiclient.PostJobInput) (apiclient.Job, error) {
	job, err := r.api.PostJob(ctx, r.session.AccessToken, input)
	if err != nil {
		r.notify(err.Error())
		return apiclient.Job{}, err
	}
	r.mu.Lock()
	r.jobs = append([]apiclient.Job{job}, r.jobs...)
	r.mu.Unlock()
	return job, nil
}

// EditJob updates a posting and replaces the cached row.
func (r *RecruiterController) EditJob(ctx context.Context, jobID string, input apiclient.PostJobInput) (apiclient.Job, error) {
	job, err := r.api.UpdateJob(ctx, r.session.AccessToken, jobID, input)
	if err != nil {
		r.notify(err.Error())
		return apiclient.Job{}, err
	}
	r.mu.Lock()
	for i := range r.jobs {
		if r.jobs[i].ID == jobID {
			r.jobs[i] = job
			break
		}
	}
	r.mu.Unlock()
	return job, nil
}

// DeleteJob removes a posting optimistically and restores it on failure.
func (r *RecruiterController) DeleteJob(ctx context.Context, jobID string) error {
	r.mu.Lock()
	index := -1
	var removed apiclient.Job
	for i := range r.jobs {
		if r.jobs[i].ID == jobID {
			index = i
			removed = r.jobs[i]
			break
		}
	}
	if index >= 0 {
		r.jobs = append(r.jobs[:index], r.jobs[index+1:]...)
	}
	r.mu.Unlock()

	if err := r.api.DeleteJob(ctx, r.session.AccessToken, jobID); err != nil {
		if index >= 0 {
			r.mu.Lock()
			r.jobs = append(r.jobs[:index], append([]apiclient.Job{removed}, r.jobs[index:]...)...)
			r.mu.Unlock()
		}
		r.notify(err.Error())
		return err
	}
	return nil
}

// Triage transitions an application. The new status shows immediately and
// reverts to the last confirmed status if the backend rejects the edge.
func (r *RecruiterController) Triage(ctx context.Context, applicationID, newStatus string) (apiclient.Application, error) {
	requestID, staged := r.stageStatus(applicationID, newStatus)
	if !staged {
		r.notify("application not loaded, refresh first")
		return apiclient.Application{}, ErrUnknownApplication
	}

	app, err := r.api.UpdateApplicationStatus(ctx, r.session.AccessToken, applicationID, newStatus)
	if err != nil {
		r.rollbackStatus(requestID, err.Error())
		return apiclient.Application{}, err
	}
	r.confirmStatus(requestID, app)
	return app, nil
}

// ErrUnknownApplication is returned when triaging an application that is
// not in the confirmed cache.
var ErrUnknownApplication = errors.New("unknown application")

func (r *RecruiterController) stageStatus(applicationID, newStatus string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.applications {
		if r.applications[i].ID == applicationID {
			requestID := uuid.NewString()
			r.pending[requestID] = pendingStatus{
				applicationID: applicationID,
				previous:      r.applications[i].Status,
			}
			r.applications[i].Status = newStatus
			return requestID, true
		}
	}
	return "", false
}

func (r *RecruiterController) confirmStatus(requestID string, confirmed apiclient.Application) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, requestID)
	for i := range r.applications {
		if r.applications[i].ID == confirmed.ID {
			r.applications[i] = confirmed
			return
		}
	}
}

func (r *RecruiterController) rollbackStatus(requestID, reason string) {
	r.mu.Lock()
	if change, ok := r.pending[requestID]; ok {
		for i := range r.applications {
			if r.applications[i].ID == change.applicationID {
				r.applications[i].Status = change.previous
				break
			}
		}
		delete(r.pending, requestID)
	}
	r.mu.Unlock()
	r.notify(reason)
}

// CandidateHistory fetches one candidate's applications limited to this
// recruiter's jobs.
func (r *RecruiterController) CandidateHistory(ctx context.Context, email string) ([]apiclient.Application, error) {
	return r.api.ListCandidateHistory(ctx, r.session.AccessToken, email)
}
