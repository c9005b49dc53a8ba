package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/edusuite/billing/internal/payment/domain"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertEvent(ctx context.Context, db *gorm.DB, event *domain.EventRecord) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO payment_events (
			id, provider, provider_event_id, event_type, reference,
			amount, fees, currency, payload, received_at, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (provider, provider_event_id) DO NOTHING`,
		event.ID,
		event.Provider,
		event.ProviderEventID,
		event.EventType,
		event.Reference,
		event.Amount,
		event.Fees,
		event.Currency,
		event.Payload,
		event.ReceivedAt,
		event.ProcessedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindEvent(ctx context.Context, db *gorm.DB, provider string, providerEventID string) (*domain.EventRecord, error) {
	var item domain.EventRecord
	err := db.WithContext(ctx).Raw(
		`SELECT id, provider, provider_event_id, event_type, reference,
			amount, fees, currency, payload, received_at, processed_at
		 FROM payment_events
		 WHERE provider = ? AND provider_event_id = ?
		 LIMIT 1`,
		provider,
		providerEventID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payment_events
		 SET processed_at = ?
		 WHERE id = ?`,
		processedAt,
		id,
	).Error
}

func (r *repo) InsertIntent(ctx context.Context, db *gorm.DB, intent *domain.PaymentIntent) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payment_intents (
			id, school_id, student_id, invoice_id, reference, purpose,
			amount_due, amount_received, currency, status,
			platform_fee, gateway_fee, net_amount, channel,
			failure_reason, metadata, paid_at, due_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		intent.ID,
		intent.SchoolID,
		intent.StudentID,
		intent.InvoiceID,
		intent.Reference,
		intent.Purpose,
		intent.AmountDue,
		intent.AmountReceived,
		intent.Currency,
		string(intent.Status),
		intent.PlatformFee,
		intent.GatewayFee,
		intent.NetAmount,
		intent.Channel,
		intent.FailureReason,
		intent.Metadata,
		intent.PaidAt,
		intent.DueAt,
		intent.CreatedAt,
		intent.UpdatedAt,
	).Error
}

const intentColumns = `id, school_id, student_id, invoice_id, reference, purpose,
	amount_due, amount_received, currency, status,
	platform_fee, gateway_fee, net_amount, channel,
	failure_reason, metadata, paid_at, due_at, created_at, updated_at`

func (r *repo) FindIntent(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.PaymentIntent, error) {
	var item domain.PaymentIntent
	err := db.WithContext(ctx).Raw(
		`SELECT `+intentColumns+`
		 FROM payment_intents
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindIntentByReference(ctx context.Context, db *gorm.DB, reference string) (*domain.PaymentIntent, error) {
	var item domain.PaymentIntent
	err := db.WithContext(ctx).Raw(
		`SELECT `+intentColumns+`
		 FROM payment_intents
		 WHERE reference = ?
		 LIMIT 1`,
		reference,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListIntents(ctx context.Context, db *gorm.DB, filter domain.IntentFilter) ([]domain.PaymentIntent, error) {
	where := make([]string, 0, 3)
	args := make([]any, 0, 4)
	if filter.SchoolID != 0 {
		where = append(where, "school_id = ?")
		args = append(args, filter.SchoolID)
	}
	if filter.StudentID != 0 {
		where = append(where, "student_id = ?")
		args = append(args, filter.StudentID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := `SELECT ` + intentColumns + ` FROM payment_intents`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit)

	var items []domain.PaymentIntent
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) TransitionIntent(ctx context.Context, db *gorm.DB, id snowflake.ID, from []domain.IntentStatus, tr domain.IntentTransition) (bool, error) {
	if len(from) == 0 || tr.To == "" {
		return false, nil
	}

	set := []string{"status = ?", "updated_at = ?"}
	args := []any{string(tr.To), tr.UpdatedAt}
	if tr.AmountReceived != nil {
		set = append(set, "amount_received = ?")
		args = append(args, *tr.AmountReceived)
	}
	if tr.GatewayFee != nil {
		set = append(set, "gateway_fee = ?")
		args = append(args, *tr.GatewayFee)
	}
	if tr.NetAmount != nil {
		set = append(set, "net_amount = ?")
		args = append(args, *tr.NetAmount)
	}
	if tr.Channel != "" {
		set = append(set, "channel = ?")
		args = append(args, tr.Channel)
	}
	if tr.FailureReason != "" {
		set = append(set, "failure_reason = ?")
		args = append(args, tr.FailureReason)
	}
	if tr.PaidAt != nil {
		set = append(set, "paid_at = ?")
		args = append(args, *tr.PaidAt)
	}

	args = append(args, id)
	placeholders := make([]string, 0, len(from))
	for _, status := range from {
		placeholders = append(placeholders, "?")
		args = append(args, string(status))
	}

	guard := ""
	if tr.ExpectReceived != nil {
		guard = " AND amount_received = ?"
		args = append(args, *tr.ExpectReceived)
	}

	query := fmt.Sprintf(
		`UPDATE payment_intents SET %s WHERE id = ? AND status IN (%s)%s`,
		strings.Join(set, ", "),
		strings.Join(placeholders, ", "),
		guard,
	)
	res := db.WithContext(ctx).Exec(query, args...)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FailIntentsByInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID, reason string, at time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE payment_intents
		 SET status = ?, failure_reason = ?, updated_at = ?
		 WHERE invoice_id = ? AND status IN (?, ?)`,
		string(domain.IntentFailed),
		reason,
		at,
		invoiceID,
		string(domain.IntentPending),
		string(domain.IntentOverdue),
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repo) MarkOverdue(ctx context.Context, db *gorm.DB, cutoff time.Time, at time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE payment_intents
		 SET status = ?, updated_at = ?
		 WHERE status = ? AND COALESCE(due_at, created_at) < ?`,
		string(domain.IntentOverdue),
		at,
		string(domain.IntentPending),
		cutoff,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repo) ListReminderCandidates(ctx context.Context, db *gorm.DB, from, to time.Time, daysBefore int, limit int) ([]domain.ReminderCandidate, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var items []domain.ReminderCandidate
	err := db.WithContext(ctx).Raw(
		`SELECT pi.id AS intent_id, pi.reference, pi.school_id, pi.student_id,
			pi.amount_due, pi.currency, pi.due_at,
			st.parent_email, st.full_name AS student_name, sc.name AS school_name
		 FROM payment_intents pi
		 JOIN students st ON st.id = pi.student_id
		 JOIN schools sc ON sc.id = pi.school_id
		 WHERE pi.status = ?
		   AND pi.due_at IS NOT NULL
		   AND pi.due_at > ? AND pi.due_at <= ?
		   AND st.parent_email <> ''
		   AND NOT EXISTS (
			SELECT 1 FROM payment_reminders pr
			WHERE pr.payment_intent_id = pi.id AND pr.days_before = ?
		   )
		 ORDER BY pi.due_at ASC, pi.id ASC
		 LIMIT ?`,
		string(domain.IntentPending),
		from,
		to,
		daysBefore,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) InsertReminderMark(ctx context.Context, db *gorm.DB, id snowflake.ID, intentID snowflake.ID, daysBefore int, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO payment_reminders (id, payment_intent_id, days_before, sent_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (payment_intent_id, days_before) DO NOTHING`,
		id,
		intentID,
		daysBefore,
		at,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) InsertReconciliationError(ctx context.Context, db *gorm.DB, recErr *domain.ReconciliationError) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO reconciliation_errors (
			id, payment_intent_id, reference, code, detail,
			provider, provider_event_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		recErr.ID,
		recErr.PaymentIntentID,
		recErr.Reference,
		recErr.Code,
		recErr.Detail,
		recErr.Provider,
		recErr.ProviderEventID,
		recErr.CreatedAt,
	).Error
}

func (r *repo) ListReconciliationErrors(ctx context.Context, db *gorm.DB, limit int) ([]domain.ReconciliationError, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var items []domain.ReconciliationError
	err := db.WithContext(ctx).Raw(
		`SELECT id, payment_intent_id, reference, code, detail,
			provider, provider_event_id, created_at
		 FROM reconciliation_errors
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
