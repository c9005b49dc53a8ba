// Package scheduler runs the periodic billing jobs: overdue sweeps for
// payment intents and invoices, due-date payment reminders, and
// subscription expiry. Jobs are re-entrant; the guarded updates in the
// domain services make a double run a no-op, so overlapping schedulers
// are safe, just wasteful.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/edusuite/billing/internal/clock"
	"github.com/edusuite/billing/internal/config"
	invoicedomain "github.com/edusuite/billing/internal/invoice/domain"
	notifdomain "github.com/edusuite/billing/internal/notification/domain"
	obsmetrics "github.com/edusuite/billing/internal/observability/metrics"
	paymentservice "github.com/edusuite/billing/internal/payment/service"
	subscriptiondomain "github.com/edusuite/billing/internal/subscription/domain"
)

// ErrMissingDependency rejects construction with a nil service.
var ErrMissingDependency = errors.New("scheduler: missing dependency")

const jobTimeout = 30 * time.Second

type Params struct {
	fx.In

	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Payments      *paymentservice.Service
	Invoices      invoicedomain.Service
	Subscriptions subscriptiondomain.Service
	Billing       *config.BillingConfigHolder

	Notify notifdomain.Dispatcher `optional:"true"`
	Config Config                 `optional:"true"`
}

type Scheduler struct {
	log           *zap.Logger
	cfg           Config
	genID         *snowflake.Node
	clock         clock.Clock
	payments      *paymentservice.Service
	invoices      invoicedomain.Service
	subscriptions subscriptiondomain.Service
	billing       *config.BillingConfigHolder
	notify        notifdomain.Dispatcher
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Payments == nil || p.Invoices == nil || p.Subscriptions == nil || p.Billing == nil {
		return nil, ErrMissingDependency
	}
	cfg := p.Config.withDefaults()
	return &Scheduler{
		log:           p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:           cfg,
		genID:         p.GenID,
		clock:         p.Clock,
		payments:      p.Payments,
		invoices:      p.Invoices,
		subscriptions: p.Subscriptions,
		billing:       p.Billing,
		notify:        p.Notify,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	if owner {
		if err != nil && run != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// A deadline is a soft timeout: the next tick resumes where this
	// run stopped, so it is not propagated as a failure.
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name    string
		Enabled bool
		Run     func(context.Context) error
	}{
		{"overdue_sweep", s.isJobEnabled("overdue_sweep"), func(ctx context.Context) error {
			return s.runJob(ctx, "overdue_sweep", s.cfg.BatchSize, jobTimeout, s.OverdueSweepJob)
		}},
		// Reminders need a dispatcher; without one the job would only
		// burn dedup marks.
		{"payment_reminders", s.isJobEnabled("payment_reminders") && s.notify != nil, func(ctx context.Context) error {
			return s.runJob(ctx, "payment_reminders", s.cfg.BatchSize, jobTimeout, s.PaymentRemindersJob)
		}},
		{"subscription_expiry", s.isJobEnabled("subscription_expiry"), func(ctx context.Context) error {
			return s.runJob(ctx, "subscription_expiry", s.cfg.BatchSize, jobTimeout, s.SubscriptionExpiryJob)
		}},
	}

	for _, job := range jobs {
		if job.Enabled {
			err = errors.Join(err, job.Run(parent))
		}
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := time.Since(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// If EnabledJobs is empty, all jobs are enabled by default (monolith mode)
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// OverdueSweepJob flips payment intents and invoices whose due dates
// have passed. Intents get the grace window from billing config before
// flipping; a sent invoice flips as soon as its due date is behind us.
// Overdue intents still settle on a late charge, so the sweep never
// blocks money coming in.
func (s *Scheduler) OverdueSweepJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, "overdue_sweep", s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}
	now := s.clock.Now()
	graceDays := s.billing.Get().AutoMarkOverdueDays
	cutoff := now.Add(-time.Duration(graceDays) * 24 * time.Hour)
	schedMetrics := obsmetrics.Scheduler()
	var jobErr error

	intents, err := s.payments.MarkIntentsOverdue(ctx, cutoff)
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.overdue.intents_failed", "overdue_sweep", 0, err)
		jobErr = errors.Join(jobErr, err)
	} else if intents > 0 {
		run.AddProcessed(int(intents))
		schedMetrics.AddBatchProcessed("overdue_sweep", "payment_intents", int(intents))
		schedMetrics.IncIntentTransition("pending", "overdue")
	}

	invoices, err := s.invoices.MarkOverdue(ctx, now)
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.overdue.invoices_failed", "overdue_sweep", 0, err)
		jobErr = errors.Join(jobErr, err)
	} else if invoices > 0 {
		run.AddProcessed(int(invoices))
		schedMetrics.AddBatchProcessed("overdue_sweep", "invoices", int(invoices))
	}

	return jobErr
}

// PaymentRemindersJob nudges parents about intents coming due. Each
// (intent, days_before) pair is marked before the send: a crashed run
// drops a reminder, it never repeats one.
func (s *Scheduler) PaymentRemindersJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, "payment_reminders", s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}
	if s.notify == nil {
		return nil
	}
	now := s.clock.Now()
	reminderDays := s.billing.Get().PaymentReminderDays
	schedMetrics := obsmetrics.Scheduler()
	var jobErr error

	for _, daysBefore := range reminderDays {
		candidates, err := s.payments.DueReminders(ctx, now, daysBefore, s.cfg.BatchSize)
		if err != nil {
			s.logSchedulerError(ctx, run, "scheduler.reminders.list_failed", "payment_reminders", 0, err)
			jobErr = errors.Join(jobErr, err)
			continue
		}

		for _, cand := range candidates {
			if ctx.Err() != nil {
				return errors.Join(jobErr, ctx.Err())
			}
			marked, err := s.payments.MarkReminded(ctx, cand.IntentID, daysBefore)
			if err != nil {
				s.logSchedulerError(ctx, run, "scheduler.reminders.mark_failed", "payment_reminders", cand.SchoolID, err)
				jobErr = errors.Join(jobErr, err)
				continue
			}
			if !marked {
				// another scheduler got here first
				schedMetrics.IncBatchDeferred("payment_reminders", obsmetrics.SchedulerBatchDeferredReasonAlreadyMarked)
				continue
			}

			s.notify.PaymentReminder(ctx, notifdomain.Reminder{
				Reference:   cand.Reference,
				ParentEmail: cand.ParentEmail,
				SchoolName:  cand.SchoolName,
				StudentName: cand.StudentName,
				AmountDue:   cand.AmountDue,
				Currency:    cand.Currency,
				DueAt:       cand.DueAt,
				DaysBefore:  daysBefore,
			})
			run.AddProcessed(1)
			schedMetrics.AddBatchProcessed("payment_reminders", "payment_reminders", 1)
		}
	}

	return jobErr
}

// SubscriptionExpiryJob lapses platform subscriptions whose paid
// period ended: past-due first, expiry once the grace runs out.
func (s *Scheduler) SubscriptionExpiryJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, "subscription_expiry", s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	result, err := s.subscriptions.SweepExpiry(ctx)
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.subscriptions.sweep_failed", "subscription_expiry", 0, err)
		return err
	}
	if total := result.PastDue + result.Expired; total > 0 {
		run.AddProcessed(int(total))
		obsmetrics.Scheduler().AddBatchProcessed("subscription_expiry", "school_subscriptions", int(total))
	}
	return nil
}
