package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/clinicbase/clinic-platform/internal/campaigns"
	"github.com/clinicbase/clinic-platform/pkg/logging"
)

// Service sends operational notifications to the platform operators.
type Service struct {
	email     EmailSender
	recipient string
	logger    *logging.Logger
}

// NewService creates a notification service. The recipient is the ops inbox
// that receives campaign run summaries.
func NewService(email EmailSender, recipient string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		email:     email,
		recipient: recipient,
		logger:    logger,
	}
}

// SendCampaignSummary emails the outcome of one campaign run. A missing
// sender or recipient makes it a logged no-op; the job runner never fails
// because of a summary email.
func (s *Service) SendCampaignSummary(ctx context.Context, summary campaigns.RunSummary) error {
	if s.email == nil || s.recipient == "" {
		s.logger.Debug("campaign summary skipped: email not configured")
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Campaign run at %s\n\n", summary.RanAt.Format("2006-01-02 15:04 MST"))
	failed := 0
	for _, job := range summary.Jobs {
		if job.Err != nil {
			failed++
			fmt.Fprintf(&b, "%s: FAILED (%v)\n", job.Job, job.Err)
			continue
		}
		fmt.Fprintf(&b, "%s: %d candidates, %d sent, %d skipped\n",
			job.Job, job.Candidates, job.Sent, job.Skipped)
	}

	subject := fmt.Sprintf("Campaign summary %s", summary.RanAt.Format("2006-01-02"))
	if failed > 0 {
		subject = fmt.Sprintf("Campaign summary %s (%d job(s) failed)", summary.RanAt.Format("2006-01-02"), failed)
	}

	msg := EmailMessage{
		To:      s.recipient,
		Subject: subject,
		Body:    b.String(),
	}
	if err := s.email.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: campaign summary: %w", err)
	}
	return nil
}

var _ campaigns.Summarizer = (*Service)(nil)
