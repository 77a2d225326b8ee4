// Package worker processes queued email jobs.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/teenagetech/beta/pkg/queue"
)

// Sender delivers a single email message.
type Sender interface {
	Send(to, subject, body string) error
}

// Jobs is the queue contract the worker drains.
type Jobs interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// EmailProcessor drains the email queue: verification mail for beta
// applicants and confirmations for notify-me signups.
type EmailProcessor struct {
	queue   Jobs
	mailer  Sender
	logger  *zap.Logger
	backoff time.Duration
}

// NewEmailProcessor creates an email job processor.
func NewEmailProcessor(q Jobs, mailer Sender, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{queue: q, mailer: mailer, logger: logger, backoff: queue.RetryBackoff}
}

// Process executes one email job.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeVerificationEmail:
		var payload queue.VerificationEmailPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		body := fmt.Sprintf(
			"Thanks for applying for beta access!\n\nPlease verify your email address by opening this link:\n%s\n\nYour application is pending admin approval.\n",
			payload.VerifyURL)
		if err := p.mailer.Send(payload.Recipient, "Verify your email address", body); err != nil {
			return fmt.Errorf("send verification email: %w", err)
		}
		return nil

	case queue.JobTypeNotifyEmail:
		var payload queue.NotifyEmailPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		body := fmt.Sprintf(
			"Thanks! We'll email you as soon as the %s beta is ready to test.\n",
			payload.Project)
		if err := p.mailer.Send(payload.Recipient, "You're on the list", body); err != nil {
			return fmt.Errorf("send notify email: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *EmailProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("email worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				p.logger.Info("email worker stopping")
				return
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(p.backoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			p.retryLater(job)
		}
	}
}

// retryLater re-enqueues a failed job after the backoff. The backoff
// applies to the job, not the dequeue loop, so one undeliverable
// address cannot stall the rest of the queue.
func (p *EmailProcessor) retryLater(job *queue.Job) {
	time.AfterFunc(p.backoff, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.queue.Retry(ctx, job); err != nil {
			p.logger.Error("retry enqueue failed", zap.String("job_id", job.ID), zap.Error(err))
		}
	})
}
