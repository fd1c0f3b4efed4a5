// Package dispatch runs the welcome step after registration without holding up
// the registration response.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/verify-emails/internal/domain"
	"github.com/verify-emails/internal/pkg/id"
)

// Dispatcher hands a welcome job off to run detached from the caller.
// Dispatch never blocks on the job and never reports its outcome.
type Dispatcher interface {
	Dispatch(ctx context.Context, job domain.WelcomeJob)
	// Wait blocks until every job dispatched so far has finished.
	Wait()
}

// WelcomeSender is the in-process welcome step.
type WelcomeSender interface {
	SendWelcome(ctx context.Context, req domain.SendWelcomeRequest) (*domain.WelcomeResult, error)
}

// WelcomePublisher queues a welcome job for another process.
type WelcomePublisher interface {
	PublishWelcome(ctx context.Context, job domain.WelcomeJob) (string, error)
}

// runner tracks detached goroutines and bounds each one by timeout.
type runner struct {
	wg      sync.WaitGroup
	timeout time.Duration
}

func (r *runner) goDetached(ctx context.Context, job domain.WelcomeJob, mode string, fn func(ctx context.Context) error) {
	if job.JobID == "" {
		job.JobID = id.New()
	}
	// The request context is cancelled as soon as the response is written.
	ctx = context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				slog.Error("welcome job panicked", "job_id", job.JobID, "mode", mode, "panic", p)
			}
		}()
		if r.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}
		if err := fn(ctx); err != nil {
			slog.Warn("welcome job failed", "job_id", job.JobID, "mode", mode, "account_id", job.AccountID, "err", err)
			return
		}
		slog.Info("welcome job done", "job_id", job.JobID, "mode", mode, "account_id", job.AccountID)
	}()
}

func (r *runner) Wait() { r.wg.Wait() }

// Local runs the welcome step in-process.
type Local struct {
	runner
	sender WelcomeSender
}

func NewLocal(sender WelcomeSender, timeout time.Duration) *Local {
	return &Local{runner: runner{timeout: timeout}, sender: sender}
}

func (l *Local) Dispatch(ctx context.Context, job domain.WelcomeJob) {
	l.goDetached(ctx, job, "local", func(ctx context.Context) error {
		_, err := l.sender.SendWelcome(ctx, domain.SendWelcomeRequest{
			Email:     job.Email,
			Name:      job.Name,
			AccountID: job.AccountID,
		})
		return err
	})
}

type webhookBody struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	AccountID string `json:"accountId"`
}

// Webhook POSTs the job to an external welcome endpoint.
type Webhook struct {
	runner
	endpoint string
	http     *http.Client
}

func NewWebhook(endpoint string, timeout time.Duration) *Webhook {
	return &Webhook{
		runner:   runner{timeout: timeout},
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}
}

func (w *Webhook) Dispatch(ctx context.Context, job domain.WelcomeJob) {
	w.goDetached(ctx, job, "webhook", func(ctx context.Context) error {
		payload, err := json.Marshal(webhookBody{Email: job.Email, Name: job.Name, AccountID: job.AccountID})
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := w.http.Do(req)
		if err != nil {
			return fmt.Errorf("welcome webhook: %w: %w", domain.ErrProviderCallFailed, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
			return &domain.ProviderError{Op: "welcome webhook", Status: resp.StatusCode, Body: string(raw)}
		}
		return nil
	})
}

// Queue publishes the job to a message queue.
type Queue struct {
	runner
	publisher WelcomePublisher
}

func NewQueue(publisher WelcomePublisher, timeout time.Duration) *Queue {
	return &Queue{runner: runner{timeout: timeout}, publisher: publisher}
}

func (q *Queue) Dispatch(ctx context.Context, job domain.WelcomeJob) {
	if job.JobID == "" {
		job.JobID = id.New()
	}
	q.goDetached(ctx, job, "sns", func(ctx context.Context) error {
		msgID, err := q.publisher.PublishWelcome(ctx, job)
		if err == nil {
			slog.Debug("welcome job queued", "job_id", job.JobID, "message_id", msgID)
		}
		return err
	})
}

// Noop drops every job.
type Noop struct{}

func (Noop) Dispatch(_ context.Context, job domain.WelcomeJob) {
	slog.Debug("welcome disabled, job dropped", "account_id", job.AccountID)
}

func (Noop) Wait() {}
