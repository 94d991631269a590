package campaigns

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicbase/clinic-platform/internal/messaging"
	"github.com/clinicbase/clinic-platform/internal/observability/metrics"
	"github.com/clinicbase/clinic-platform/pkg/logging"
)

// MessageSender delivers one outbound message. Satisfied by *messaging.Gateway.
type MessageSender interface {
	Send(ctx context.Context, req messaging.SendRequest) (string, error)
}

// ConsentChecker reports whether a contact may receive campaign traffic.
// Satisfied by *consent.Registry.
type ConsentChecker interface {
	Check(ctx context.Context, tenantID uuid.UUID, contact, channel string) (bool, error)
}

// Summarizer receives the outcome of a completed campaign run.
type Summarizer interface {
	SendCampaignSummary(ctx context.Context, summary RunSummary) error
}

// JobResult is the outcome of one campaign job within a run.
type JobResult struct {
	Job        string
	Candidates int
	Sent       int
	Skipped    int
	Err        error
}

// RunSummary aggregates one full campaign run.
type RunSummary struct {
	RanAt time.Time
	Jobs  []JobResult
}

// Options carries the tunable knobs of the campaign runner.
type Options struct {
	// RunAt is the daily wall-clock firing time, "HH:MM".
	RunAt string
	// RetentionDays is how long after a completed treatment the follow-up goes out.
	RetentionDays int
	// TreatmentMarker narrows retention to appointment types containing it.
	TreatmentMarker string
}

// Runner executes the daily campaign jobs: birthday greetings, treatment
// retention follow-ups, and next-day appointment reminders.
type Runner struct {
	repo    *Repository
	sender  MessageSender
	consent ConsentChecker
	summary Summarizer
	metrics *metrics.CampaignMetrics
	logger  *logging.Logger
	opts    Options
	now     func() time.Time
}

// NewRunner creates a campaign runner. summary may be nil.
func NewRunner(repo *Repository, sender MessageSender, consent ConsentChecker, summary Summarizer, m *metrics.CampaignMetrics, logger *logging.Logger, opts Options) *Runner {
	if repo == nil {
		panic("campaigns: repository required")
	}
	if sender == nil {
		panic("campaigns: message sender required")
	}
	if consent == nil {
		panic("campaigns: consent checker required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if opts.RunAt == "" {
		opts.RunAt = "09:00"
	}
	if opts.RetentionDays <= 0 {
		opts.RetentionDays = 30
	}
	if opts.TreatmentMarker == "" {
		opts.TreatmentMarker = "treatment"
	}
	return &Runner{
		repo:    repo,
		sender:  sender,
		consent: consent,
		summary: summary,
		metrics: m,
		logger:  logger,
		opts:    opts,
		now:     time.Now,
	}
}

// WithClock overrides the runner's clock for tests.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	if now != nil {
		r.now = now
	}
	return r
}

// RunOnce executes the three jobs sequentially. Each job's error is captured
// in its result so one failing job never blocks the others.
func (r *Runner) RunOnce(ctx context.Context) RunSummary {
	now := r.now().UTC()
	summary := RunSummary{RanAt: now}

	summary.Jobs = append(summary.Jobs, r.runJob(ctx, "birthday", r.runBirthday))
	summary.Jobs = append(summary.Jobs, r.runJob(ctx, "retention", r.runRetention))
	summary.Jobs = append(summary.Jobs, r.runJob(ctx, "reminder", r.runReminder))

	if r.summary != nil {
		if err := r.summary.SendCampaignSummary(ctx, summary); err != nil {
			r.logger.Warn("campaign summary email failed", "error", err)
		}
	}
	return summary
}

func (r *Runner) runJob(ctx context.Context, name string, job func(context.Context) (JobResult, error)) JobResult {
	start := r.now()
	result, err := job(ctx)
	result.Job = name
	result.Err = err

	outcome := "ok"
	if err != nil {
		outcome = "error"
		r.logger.Error("campaign job failed", "job", name, "error", err)
	} else {
		r.logger.Info("campaign job finished",
			"job", name,
			"candidates", result.Candidates,
			"sent", result.Sent,
			"skipped", result.Skipped,
		)
	}
	r.metrics.ObserveJob(name, outcome, time.Since(start).Seconds())
	return result
}

func (r *Runner) runBirthday(ctx context.Context) (JobResult, error) {
	candidates, err := r.repo.BirthdayCandidates(ctx, r.now().UTC())
	if err != nil {
		return JobResult{}, err
	}
	return r.deliver(ctx, candidates, birthdayMessage, true), nil
}

func (r *Runner) runRetention(ctx context.Context) (JobResult, error) {
	candidates, err := r.repo.RetentionCandidates(ctx, r.now().UTC(), r.opts.RetentionDays, r.opts.TreatmentMarker)
	if err != nil {
		return JobResult{}, err
	}
	return r.deliver(ctx, candidates, retentionMessage, true), nil
}

func (r *Runner) runReminder(ctx context.Context) (JobResult, error) {
	candidates, err := r.repo.ReminderCandidates(ctx, r.now().UTC())
	if err != nil {
		return JobResult{}, err
	}
	// Reminders are transactional: the patient booked the appointment, so
	// consent is not consulted.
	return r.deliver(ctx, candidates, reminderMessage, false), nil
}

func (r *Runner) deliver(ctx context.Context, candidates []Candidate, message func(Candidate) string, checkConsent bool) JobResult {
	result := JobResult{Candidates: len(candidates)}

	for _, c := range candidates {
		if checkConsent {
			allowed, err := r.consent.Check(ctx, c.TenantID, c.Phone, messaging.ChannelSMS)
			if err != nil {
				r.logger.Warn("consent check failed, skipping recipient", "error", err, "tenant_id", c.TenantID)
				result.Skipped++
				continue
			}
			if !allowed {
				result.Skipped++
				continue
			}
		}

		// The gateway records its own outcome; a failed send is counted
		// and the loop moves on.
		status, err := r.sender.Send(ctx, messaging.SendRequest{
			TenantID:  c.TenantID,
			Channel:   messaging.ChannelSMS,
			Recipient: c.Phone,
			Content:   message(c),
		})
		if err != nil || status != messaging.StatusSent {
			result.Skipped++
			continue
		}
		result.Sent++
	}
	return result
}

// RunDaily blocks, firing RunOnce at the configured wall-clock time each day
// until ctx is cancelled.
func (r *Runner) RunDaily(ctx context.Context) error {
	for {
		next, err := r.nextFiring(r.now())
		if err != nil {
			return err
		}
		r.logger.Info("campaign runner sleeping", "until", next.Format(time.RFC3339))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		r.RunOnce(ctx)
	}
}

func (r *Runner) nextFiring(now time.Time) (time.Time, error) {
	at, err := time.Parse("15:04", r.opts.RunAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("campaigns: invalid run-at time %q: %w", r.opts.RunAt, err)
	}
	next := time.Date(now.Year(), now.Month(), now.Day(), at.Hour(), at.Minute(), 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next, nil
}

// Errs returns the joined job errors of a run, or nil when all jobs passed.
func (s RunSummary) Errs() error {
	var errs []error
	for _, job := range s.Jobs {
		if job.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", job.Job, job.Err))
		}
	}
	return errors.Join(errs...)
}
