package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/edusuite/billing/internal/config"
	"github.com/edusuite/billing/internal/notification/domain"
	obsmetrics "github.com/edusuite/billing/internal/observability/metrics"
	"github.com/edusuite/billing/internal/providers/email"
	"github.com/edusuite/billing/internal/providers/slack"
	"github.com/edusuite/billing/pkg/money"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Cfg        config.Config
	Email      email.Provider
	Slack      slack.Provider
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Dispatcher struct {
	log        *zap.Logger
	opsChannel string
	email      email.Provider
	slack      slack.Provider
	obsMetrics *obsmetrics.Metrics
}

func NewDispatcher(p Params) domain.Dispatcher {
	return &Dispatcher{
		log:        p.Log.Named("notification.dispatcher"),
		opsChannel: p.Cfg.SlackOpsChannel,
		email:      p.Email,
		slack:      p.Slack,
		obsMetrics: p.ObsMetrics,
	}
}

func (d *Dispatcher) PaymentStateChanged(ctx context.Context, change domain.StateChange) {
	to := strings.TrimSpace(change.ParentEmail)
	if to == "" {
		d.log.Debug("notification.no_parent_email", zap.String("reference", change.Reference))
		return
	}

	subject := fmt.Sprintf("Payment %s: %s", change.Reference, statusLabel(change.ToStatus))
	body := fmt.Sprintf(
		"<p>Dear parent,</p><p>The payment <strong>%s</strong> for %s at %s is now <strong>%s</strong>.</p><p>Amount due: %s<br/>Amount received: %s</p>",
		change.Reference,
		htmlEscape(change.StudentName),
		htmlEscape(change.SchoolName),
		statusLabel(change.ToStatus),
		money.FormatNaira(change.AmountDue),
		money.FormatNaira(change.AmountReceived),
	)
	if change.FailureReason != "" {
		body += fmt.Sprintf("<p>Reason: %s</p>", htmlEscape(change.FailureReason))
	}

	if err := d.email.Send(ctx, []string{to}, subject, body); err != nil {
		d.log.Warn("notification.email_failed",
			zap.String("kind", "state_change"),
			zap.String("reference", change.Reference),
			zap.Error(err),
		)
		return
	}
	d.record(ctx, "email", "state_change")
}

func (d *Dispatcher) ReconcileAlert(ctx context.Context, alert domain.Alert) {
	message := fmt.Sprintf(
		":rotating_light: reconcile %s on %s (reference=%s provider_event=%s) %s",
		alert.Code,
		alert.Provider,
		alert.Reference,
		alert.ProviderEventID,
		alert.Detail,
	)
	if err := d.slack.PostMessage(ctx, d.opsChannel, message); err != nil {
		d.log.Warn("notification.slack_failed",
			zap.String("kind", "reconcile_alert"),
			zap.String("reference", alert.Reference),
			zap.Error(err),
		)
		return
	}
	d.record(ctx, "slack", "reconcile_alert")
}

func (d *Dispatcher) PaymentReminder(ctx context.Context, reminder domain.Reminder) {
	to := strings.TrimSpace(reminder.ParentEmail)
	if to == "" {
		d.log.Debug("notification.no_parent_email", zap.String("reference", reminder.Reference))
		return
	}

	subject := fmt.Sprintf("Reminder: school fees due in %d day(s)", reminder.DaysBefore)
	body := fmt.Sprintf(
		"<p>Dear parent,</p><p>The fees of %s for %s at %s are due on %s.</p><p>Reference: %s</p>",
		money.FormatNaira(reminder.AmountDue),
		htmlEscape(reminder.StudentName),
		htmlEscape(reminder.SchoolName),
		reminder.DueAt.Format("2 January 2006"),
		reminder.Reference,
	)

	if err := d.email.Send(ctx, []string{to}, subject, body); err != nil {
		d.log.Warn("notification.email_failed",
			zap.String("kind", "reminder"),
			zap.String("reference", reminder.Reference),
			zap.Error(err),
		)
		return
	}
	d.record(ctx, "email", "reminder")
}

func (d *Dispatcher) InvoiceIssued(ctx context.Context, notice domain.InvoiceNotice) {
	to := strings.TrimSpace(notice.ParentEmail)
	if to == "" {
		d.log.Debug("notification.no_parent_email", zap.String("invoice_number", notice.InvoiceNumber))
		return
	}

	subject := fmt.Sprintf("Invoice %s from %s", notice.InvoiceNumber, notice.SchoolName)
	body := fmt.Sprintf(
		"<p>Dear parent,</p><p>%s has issued invoice <strong>%s</strong> for %s.</p><p>Amount due: %s</p>",
		htmlEscape(notice.SchoolName),
		notice.InvoiceNumber,
		htmlEscape(notice.StudentName),
		money.FormatNaira(notice.TotalAmount),
	)
	if notice.DueAt != nil {
		body += fmt.Sprintf("<p>Due date: %s</p>", notice.DueAt.Format("2 January 2006"))
	}

	if err := d.email.Send(ctx, []string{to}, subject, body); err != nil {
		d.log.Warn("notification.email_failed",
			zap.String("kind", "invoice_issued"),
			zap.String("invoice_number", notice.InvoiceNumber),
			zap.Error(err),
		)
		return
	}
	d.record(ctx, "email", "invoice_issued")
}

func (d *Dispatcher) record(ctx context.Context, channel, kind string) {
	if d.obsMetrics != nil {
		d.obsMetrics.RecordNotification(ctx, channel, kind)
	}
}

func statusLabel(status string) string {
	return strings.ReplaceAll(status, "_", " ")
}

func htmlEscape(s string) string {
	replacer := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return replacer.Replace(s)
}
