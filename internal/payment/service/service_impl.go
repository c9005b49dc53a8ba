package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/edusuite/billing/internal/config"
	"github.com/edusuite/billing/internal/feesplit"
	gwpaystack "github.com/edusuite/billing/internal/gateway/paystack"
	ledgerdomain "github.com/edusuite/billing/internal/ledger/domain"
	notifdomain "github.com/edusuite/billing/internal/notification/domain"
	obsmetrics "github.com/edusuite/billing/internal/observability/metrics"
	"github.com/edusuite/billing/internal/payment/domain"
	"github.com/edusuite/billing/internal/ratelimit"
	schooldomain "github.com/edusuite/billing/internal/school/domain"
	pkgdb "github.com/edusuite/billing/pkg/db"
)

// reconcileLockTTL bounds how long one webhook delivery may hold a
// reference. The guarded update is the correctness backstop; the lock
// only reduces wasted work on concurrent redeliveries.
const reconcileLockTTL = 30 * time.Second

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Ledger  ledgerdomain.Service
	Billing *config.BillingConfigHolder

	Gateway    *gwpaystack.Client     `optional:"true"`
	Locker     *ratelimit.Locker      `optional:"true"`
	Notify     notifdomain.Dispatcher `optional:"true"`
	ObsMetrics *obsmetrics.Metrics    `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       domain.Repository
	ledger     ledgerdomain.Service
	billing    *config.BillingConfigHolder
	gateway    *gwpaystack.Client
	locker     *ratelimit.Locker
	notify     notifdomain.Dispatcher
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		ledger:     p.Ledger,
		billing:    p.Billing,
		gateway:    p.Gateway,
		locker:     p.Locker,
		notify:     p.Notify,
		obsMetrics: p.ObsMetrics,
	}
}

type CreateIntentRequest struct {
	SchoolID  string         `json:"school_id"`
	StudentID string         `json:"student_id"`
	InvoiceID string         `json:"invoice_id"`
	Purpose   string         `json:"purpose"`
	AmountDue int64          `json:"amount_due"`
	Currency  string         `json:"currency"`
	Reference string         `json:"reference"`
	DueAt     *time.Time     `json:"due_at"`
	Metadata  map[string]any `json:"metadata"`
}

// CreateIntent registers an expected payment and locks in the fee
// split estimate at today's configuration.
func (s *Service) CreateIntent(ctx context.Context, req CreateIntentRequest) (*domain.PaymentIntent, error) {
	schoolID, err := parseID(req.SchoolID, domain.ErrInvalidIntent)
	if err != nil {
		return nil, err
	}
	studentID, err := parseID(req.StudentID, domain.ErrInvalidIntent)
	if err != nil {
		return nil, err
	}
	var invoiceID *snowflake.ID
	if strings.TrimSpace(req.InvoiceID) != "" {
		parsed, err := parseID(req.InvoiceID, domain.ErrInvalidIntent)
		if err != nil {
			return nil, err
		}
		invoiceID = &parsed
	}
	if req.AmountDue <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	purpose := strings.TrimSpace(req.Purpose)
	if purpose == "" {
		purpose = domain.PurposeTermFees
	}
	switch purpose {
	case domain.PurposeTermFees, domain.PurposeApplication, domain.PurposeAdmission:
	default:
		return nil, domain.ErrInvalidIntent
	}

	billing := s.billing.Get()
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = billing.CurrencyCode
	}
	if len(currency) != 3 {
		return nil, domain.ErrInvalidCurrency
	}

	var studentSchoolID snowflake.ID
	if err := s.db.WithContext(ctx).Raw(
		`SELECT school_id FROM students WHERE id = ?`,
		studentID,
	).Scan(&studentSchoolID).Error; err != nil {
		return nil, err
	}
	if studentSchoolID == 0 {
		return nil, schooldomain.ErrStudentNotFound
	}
	if studentSchoolID != schoolID {
		return nil, domain.ErrInvalidIntent
	}

	split, err := feesplit.Compute(req.AmountDue, billing)
	if err != nil {
		return nil, err
	}

	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		reference = domain.NewReference()
	}

	now := time.Now().UTC()
	intent := &domain.PaymentIntent{
		ID:          s.genID.Generate(),
		SchoolID:    schoolID,
		StudentID:   studentID,
		InvoiceID:   invoiceID,
		Reference:   reference,
		Purpose:     purpose,
		AmountDue:   req.AmountDue,
		Currency:    currency,
		Status:      domain.IntentPending,
		PlatformFee: split.PlatformFee,
		GatewayFee:  split.GatewayFee,
		NetAmount:   split.Net,
		Metadata:    datatypes.JSONMap(req.Metadata),
		DueAt:       req.DueAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.InsertIntent(ctx, s.db, intent); err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return nil, domain.ErrDuplicateReference
		}
		return nil, fmt.Errorf("insert payment intent: %w", err)
	}

	s.log.Info("payment.intent_created",
		zap.String("reference", intent.Reference),
		zap.String("school_id", schoolID.String()),
		zap.String("purpose", purpose),
		zap.Int64("amount_due", intent.AmountDue),
	)
	return intent, nil
}

func (s *Service) GetIntent(ctx context.Context, id string) (*domain.PaymentIntent, error) {
	intentID, err := parseID(id, domain.ErrInvalidIntent)
	if err != nil {
		return nil, err
	}
	intent, err := s.repo.FindIntent(ctx, s.db, intentID)
	if err != nil {
		return nil, err
	}
	if intent == nil {
		return nil, domain.ErrIntentNotFound
	}
	return intent, nil
}

func (s *Service) GetIntentByReference(ctx context.Context, reference string) (*domain.PaymentIntent, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, domain.ErrInvalidIntent
	}
	intent, err := s.repo.FindIntentByReference(ctx, s.db, reference)
	if err != nil {
		return nil, err
	}
	if intent == nil {
		return nil, domain.ErrIntentNotFound
	}
	return intent, nil
}

type ListIntentsRequest struct {
	SchoolID  string
	StudentID string
	Status    string
	Limit     int
}

func (s *Service) ListIntents(ctx context.Context, req ListIntentsRequest) ([]domain.PaymentIntent, error) {
	filter := domain.IntentFilter{Limit: req.Limit}
	if strings.TrimSpace(req.SchoolID) != "" {
		schoolID, err := parseID(req.SchoolID, domain.ErrInvalidIntent)
		if err != nil {
			return nil, err
		}
		filter.SchoolID = schoolID
	}
	if strings.TrimSpace(req.StudentID) != "" {
		studentID, err := parseID(req.StudentID, domain.ErrInvalidIntent)
		if err != nil {
			return nil, err
		}
		filter.StudentID = studentID
	}
	if status := strings.TrimSpace(req.Status); status != "" {
		switch domain.IntentStatus(status) {
		case domain.IntentPending, domain.IntentPaid, domain.IntentFailed,
			domain.IntentOverdue, domain.IntentPartiallyPaid:
			filter.Status = domain.IntentStatus(status)
		default:
			return nil, domain.ErrInvalidIntent
		}
	}
	return s.repo.ListIntents(ctx, s.db, filter)
}

func (s *Service) ListReconciliationErrors(ctx context.Context, limit int) ([]domain.ReconciliationError, error) {
	return s.repo.ListReconciliationErrors(ctx, s.db, limit)
}

// CancelIntentsForInvoice fails the open intents of a cancelled
// invoice so their references stop accepting checkout sessions.
// Intents already holding money are not touched.
func (s *Service) CancelIntentsForInvoice(ctx context.Context, invoiceID snowflake.ID, reason string) (int64, error) {
	count, err := s.repo.FailIntentsByInvoice(ctx, s.db, invoiceID, reason, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.log.Info("payment.intents_cancelled",
			zap.Int64("invoice_id", int64(invoiceID)),
			zap.Int64("count", count),
			zap.String("reason", reason),
		)
	}
	return count, nil
}

// MarkIntentsOverdue flips pending intents whose due date passed
// before cutoff. Overdue is not terminal, so a late charge still
// settles the intent afterwards.
func (s *Service) MarkIntentsOverdue(ctx context.Context, cutoff time.Time) (int64, error) {
	count, err := s.repo.MarkOverdue(ctx, s.db, cutoff, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("mark intents overdue: %w", err)
	}
	if count > 0 {
		s.log.Info("payment.intents_overdue",
			zap.Int64("count", count),
			zap.Time("cutoff", cutoff),
		)
	}
	return count, nil
}

// DueReminders lists pending intents coming due within daysBefore days
// that have not been reminded at that threshold yet.
func (s *Service) DueReminders(ctx context.Context, now time.Time, daysBefore int, limit int) ([]domain.ReminderCandidate, error) {
	if daysBefore < 0 {
		return nil, nil
	}
	to := now.Add(time.Duration(daysBefore) * 24 * time.Hour)
	return s.repo.ListReminderCandidates(ctx, s.db, now, to, daysBefore, limit)
}

// MarkReminded records that a reminder went out. A false return means
// another run already marked this intent at this threshold.
func (s *Service) MarkReminded(ctx context.Context, intentID snowflake.ID, daysBefore int) (bool, error) {
	return s.repo.InsertReminderMark(ctx, s.db, s.genID.Generate(), intentID, daysBefore, time.Now().UTC())
}

// InitializeCheckout opens a gateway checkout session for the intent's
// outstanding balance. The school's subaccount, when provisioned,
// routes the settlement split at the gateway.
func (s *Service) InitializeCheckout(ctx context.Context, reference string, payerEmail string) (*gwpaystack.InitializeResponse, error) {
	if s.gateway == nil {
		return nil, domain.ErrGatewayNotConfigured
	}
	intent, err := s.GetIntentByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if intent.Status.Terminal() {
		return nil, domain.ErrAlreadyFinalized
	}
	outstanding := intent.AmountDue - intent.AmountReceived
	if outstanding <= 0 {
		return nil, domain.ErrAlreadyFinalized
	}

	email := strings.TrimSpace(payerEmail)
	contact := s.loadStudentContact(ctx, intent.StudentID)
	if email == "" {
		email = contact.ParentEmail
	}
	if email == "" {
		return nil, domain.ErrInvalidIntent
	}

	resp, err := s.gateway.InitializeTransaction(ctx, gwpaystack.InitializeRequest{
		Email:      email,
		Amount:     outstanding,
		Reference:  intent.Reference,
		Currency:   intent.Currency,
		Subaccount: s.loadSchoolSubaccount(ctx, intent.SchoolID),
		Metadata: map[string]any{
			"school_id":  intent.SchoolID.String(),
			"student_id": intent.StudentID.String(),
			"purpose":    intent.Purpose,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("initialize checkout: %w", err)
	}

	s.log.Info("payment.checkout_initialized",
		zap.String("reference", intent.Reference),
		zap.Int64("amount", outstanding),
	)
	return resp, nil
}

// ProcessEvent drives the reconciliation state machine for one gateway
// event. Events are deduplicated on (provider, provider_event_id);
// replays of settled charges are no-ops. Outcome errors (mismatch,
// unknown reference, late events) mark the event processed so the
// gateway stops redelivering; infrastructure errors leave it
// unprocessed for retry.
func (s *Service) ProcessEvent(ctx context.Context, event *domain.PaymentEvent) error {
	if err := validateEvent(event); err != nil {
		return err
	}

	if s.locker != nil && event.Reference != "" {
		key := "reconcile:" + event.Reference
		token, acquired, err := s.locker.TryLock(ctx, key, reconcileLockTTL)
		if err != nil {
			// redis being down must not stall settlements; the
			// guarded update below still prevents double application
			s.log.Warn("payment.lock_unavailable", zap.String("reference", event.Reference), zap.Error(err))
		} else if !acquired {
			return domain.ErrReferenceLocked
		} else {
			defer func() {
				if err := s.locker.Release(ctx, key, token); err != nil {
					s.log.Warn("payment.lock_release_failed", zap.String("reference", event.Reference), zap.Error(err))
				}
			}()
		}
	}

	now := time.Now().UTC()
	payload := event.RawPayload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	rec := &domain.EventRecord{
		ID:              s.genID.Generate(),
		Provider:        event.Provider,
		ProviderEventID: event.ProviderEventID,
		EventType:       event.Type,
		Reference:       event.Reference,
		Amount:          event.Amount,
		Fees:            event.Fees,
		Currency:        event.Currency,
		Payload:         datatypes.JSON(payload),
		ReceivedAt:      now,
	}

	inserted, err := s.repo.InsertEvent(ctx, s.db, rec)
	if err != nil {
		return fmt.Errorf("insert payment event: %w", err)
	}
	stored := rec
	if !inserted {
		stored, err = s.repo.FindEvent(ctx, s.db, event.Provider, event.ProviderEventID)
		if err != nil {
			return err
		}
		if stored == nil {
			return domain.ErrInvalidEvent
		}
		if stored.ProcessedAt != nil {
			return domain.ErrEventAlreadyProcessed
		}
	}

	procErr := s.processEvent(ctx, event, now)
	if procErr == nil || isReconcileOutcome(procErr) {
		if err := s.repo.MarkProcessed(ctx, s.db, stored.ID, time.Now().UTC()); err != nil {
			return fmt.Errorf("mark event processed: %w", err)
		}
	}
	return procErr
}

// isReconcileOutcome distinguishes decided outcomes from transient
// failures: decided events must not be reprocessed on redelivery.
func isReconcileOutcome(err error) bool {
	return errors.Is(err, domain.ErrUnknownReference) ||
		errors.Is(err, domain.ErrAmountMismatch) ||
		errors.Is(err, domain.ErrAlreadyFinalized)
}

func validateEvent(event *domain.PaymentEvent) error {
	if event == nil {
		return domain.ErrInvalidEvent
	}
	event.Provider = strings.ToLower(strings.TrimSpace(event.Provider))
	if event.Provider == "" {
		return domain.ErrInvalidProvider
	}
	event.ProviderEventID = strings.TrimSpace(event.ProviderEventID)
	if event.ProviderEventID == "" {
		return domain.ErrInvalidEvent
	}
	event.Type = strings.TrimSpace(event.Type)
	event.Reference = strings.TrimSpace(event.Reference)
	event.Currency = strings.ToUpper(strings.TrimSpace(event.Currency))
	if len(event.RawPayload) > 0 && !json.Valid(event.RawPayload) {
		return domain.ErrInvalidPayload
	}

	switch event.Type {
	case domain.EventTypeChargeSucceeded:
		if event.Reference == "" {
			return domain.ErrInvalidEvent
		}
		if event.Amount <= 0 {
			return domain.ErrInvalidAmount
		}
	case domain.EventTypeChargeFailed:
		if event.Reference == "" {
			return domain.ErrInvalidEvent
		}
	case domain.EventTypeTransferSucceeded, domain.EventTypeTransferFailed:
	default:
		return domain.ErrInvalidEvent
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	return nil
}

func (s *Service) processEvent(ctx context.Context, event *domain.PaymentEvent, now time.Time) error {
	switch event.Type {
	case domain.EventTypeTransferSucceeded:
		s.log.Info("payment.transfer_settled",
			zap.String("provider", event.Provider),
			zap.String("provider_event_id", event.ProviderEventID),
			zap.String("reference", event.Reference),
		)
		return nil
	case domain.EventTypeTransferFailed:
		return s.handleTransferFailed(ctx, event)
	}

	intent, err := s.repo.FindIntentByReference(ctx, s.db, event.Reference)
	if err != nil {
		return err
	}
	if intent == nil {
		s.recordReconcileError(ctx, nil, event, domain.ReconcileCodeUnknownReference, "no payment intent matches reference")
		return domain.ErrUnknownReference
	}

	if intent.Status.Terminal() {
		if intent.Status == domain.IntentPaid && event.Type == domain.EventTypeChargeSucceeded {
			if event.Amount == intent.AmountReceived {
				// replayed settlement; nothing to change
				return nil
			}
			// Same reference settled twice with different numbers is
			// not a replay; operations has to look at it.
			s.recordReconcileError(ctx, &intent.ID, event, domain.ReconcileCodeAlreadyFinalized,
				fmt.Sprintf("settled at %d but a later success event reports %d", intent.AmountReceived, event.Amount))
			return domain.ErrAlreadyFinalized
		}
		s.recordReconcileError(ctx, &intent.ID, event, domain.ReconcileCodeAlreadyFinalized,
			fmt.Sprintf("%s arrived after intent was %s", event.Type, intent.Status))
		return domain.ErrAlreadyFinalized
	}

	switch event.Type {
	case domain.EventTypeChargeSucceeded:
		return s.settleCharge(ctx, intent, event, now)
	case domain.EventTypeChargeFailed:
		return s.failCharge(ctx, intent, event, now)
	default:
		return domain.ErrInvalidEvent
	}
}

func (s *Service) settleCharge(ctx context.Context, intent *domain.PaymentIntent, event *domain.PaymentEvent, now time.Time) error {
	if event.Currency != "" && event.Currency != intent.Currency {
		detail := fmt.Sprintf("intent is %s but gateway settled %s", intent.Currency, event.Currency)
		return s.failMismatch(ctx, intent, event, domain.ReconcileCodeCurrencyMismatch, detail, now)
	}

	billing := s.billing.Get()
	if !billing.AllowPartialPayments && event.Amount != intent.AmountDue {
		detail := fmt.Sprintf("expected %d, gateway reported %d", intent.AmountDue, event.Amount)
		return s.failMismatch(ctx, intent, event, domain.ReconcileCodeAmountMismatch, detail, now)
	}

	newReceived := intent.AmountReceived + event.Amount
	if newReceived >= intent.AmountDue {
		return s.finalizePaid(ctx, intent, event, newReceived, now)
	}
	return s.recordPartial(ctx, intent, event, newReceived, now)
}

// finalizePaid moves the intent to paid and, in the same transaction,
// posts the settlement split to the ledger and settles any linked
// invoice. The gateway's reported fee replaces the estimate when
// present.
func (s *Service) finalizePaid(ctx context.Context, intent *domain.PaymentIntent, event *domain.PaymentEvent, received int64, now time.Time) error {
	gatewayFee := intent.GatewayFee
	if event.Fees > 0 {
		gatewayFee = event.Fees
	}
	platformFee := intent.PlatformFee
	residual := received - platformFee - gatewayFee
	net := residual
	if net < 0 {
		net = 0
	}

	paidAt := event.OccurredAt
	if paidAt.IsZero() {
		paidAt = now
	}

	tr := domain.IntentTransition{
		To:             domain.IntentPaid,
		AmountReceived: &received,
		GatewayFee:     &gatewayFee,
		NetAmount:      &net,
		Channel:        event.Channel,
		PaidAt:         &paidAt,
		UpdatedAt:      now,
		ExpectReceived: &intent.AmountReceived,
	}
	from := []domain.IntentStatus{domain.IntentPending, domain.IntentOverdue, domain.IntentPartiallyPaid}

	var updated bool
	err := s.db.Transaction(func(tx *gorm.DB) error {
		ok, err := s.repo.TransitionIntent(ctx, tx, intent.ID, from, tr)
		if err != nil {
			return err
		}
		updated = ok
		if !ok {
			return nil
		}
		if err := s.postSettlementLedger(ctx, tx, intent, received, gatewayFee, platformFee, residual, paidAt); err != nil {
			return err
		}
		if intent.InvoiceID != nil && *intent.InvoiceID != 0 {
			if err := s.settleInvoice(ctx, tx, *intent.InvoiceID, received, paidAt, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("settle intent: %w", err)
	}

	if !updated {
		current, err := s.repo.FindIntent(ctx, s.db, intent.ID)
		if err != nil {
			return err
		}
		if current != nil && current.Status == domain.IntentPaid {
			return nil
		}
		if current != nil && !current.Status.Terminal() {
			// a concurrent charge moved the balance first; let the
			// gateway redeliver against the fresh state
			return domain.ErrReferenceLocked
		}
		status := "missing"
		if current != nil {
			status = string(current.Status)
		}
		s.recordReconcileError(ctx, &intent.ID, event, domain.ReconcileCodeAlreadyFinalized,
			fmt.Sprintf("lost settlement race, intent is %s", status))
		return domain.ErrAlreadyFinalized
	}

	s.afterTransition(ctx, intent, domain.IntentPaid, received, "")
	return nil
}

func (s *Service) recordPartial(ctx context.Context, intent *domain.PaymentIntent, event *domain.PaymentEvent, newReceived int64, now time.Time) error {
	tr := domain.IntentTransition{
		To:             domain.IntentPartiallyPaid,
		AmountReceived: &newReceived,
		Channel:        event.Channel,
		UpdatedAt:      now,
		ExpectReceived: &intent.AmountReceived,
	}
	from := []domain.IntentStatus{domain.IntentPending, domain.IntentOverdue, domain.IntentPartiallyPaid}

	var updated bool
	err := s.db.Transaction(func(tx *gorm.DB) error {
		ok, err := s.repo.TransitionIntent(ctx, tx, intent.ID, from, tr)
		if err != nil {
			return err
		}
		updated = ok
		if !ok {
			return nil
		}
		if intent.InvoiceID != nil && *intent.InvoiceID != 0 {
			return s.markInvoicePartial(ctx, tx, *intent.InvoiceID, newReceived, now)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("record partial payment: %w", err)
	}
	if !updated {
		// balance moved underneath us; redelivery recomputes
		return domain.ErrReferenceLocked
	}

	s.afterTransition(ctx, intent, domain.IntentPartiallyPaid, newReceived, "")
	return nil
}

func (s *Service) failCharge(ctx context.Context, intent *domain.PaymentIntent, event *domain.PaymentEvent, now time.Time) error {
	reason := event.GatewayStatus
	if reason == "" {
		reason = "charge failed"
	}

	if intent.Status == domain.IntentPartiallyPaid {
		// money is already in; a declined follow-up charge must not
		// strand the intent in a terminal state
		s.log.Info("payment.charge_attempt_failed",
			zap.String("reference", intent.Reference),
			zap.String("reason", reason),
		)
		return nil
	}

	tr := domain.IntentTransition{
		To:            domain.IntentFailed,
		FailureReason: reason,
		Channel:       event.Channel,
		UpdatedAt:     now,
	}
	from := []domain.IntentStatus{domain.IntentPending, domain.IntentOverdue}
	updated, err := s.repo.TransitionIntent(ctx, s.db, intent.ID, from, tr)
	if err != nil {
		return fmt.Errorf("fail charge: %w", err)
	}
	if updated {
		s.afterTransition(ctx, intent, domain.IntentFailed, intent.AmountReceived, reason)
	}
	return nil
}

// failMismatch fails the intent because the gateway's numbers disagree
// with ours, records the discrepancy for operations and reports it as
// an amount mismatch to the caller.
func (s *Service) failMismatch(ctx context.Context, intent *domain.PaymentIntent, event *domain.PaymentEvent, code, detail string, now time.Time) error {
	tr := domain.IntentTransition{
		To:            domain.IntentFailed,
		FailureReason: code,
		UpdatedAt:     now,
	}
	from := []domain.IntentStatus{domain.IntentPending, domain.IntentOverdue, domain.IntentPartiallyPaid}
	updated, err := s.repo.TransitionIntent(ctx, s.db, intent.ID, from, tr)
	if err != nil {
		return fmt.Errorf("fail intent: %w", err)
	}
	s.recordReconcileError(ctx, &intent.ID, event, code, detail)
	if s.notify != nil {
		s.notify.ReconcileAlert(ctx, notifdomain.Alert{
			Reference:       intent.Reference,
			Provider:        event.Provider,
			ProviderEventID: event.ProviderEventID,
			Code:            code,
			Detail:          detail,
		})
	}
	if updated {
		s.afterTransition(ctx, intent, domain.IntentFailed, intent.AmountReceived, code)
	}
	return domain.ErrAmountMismatch
}

func (s *Service) handleTransferFailed(ctx context.Context, event *domain.PaymentEvent) error {
	detail := event.GatewayStatus
	if detail == "" {
		detail = "settlement transfer failed"
	}
	s.recordReconcileError(ctx, nil, event, domain.ReconcileCodeTransferFailed, detail)
	if s.notify != nil {
		s.notify.ReconcileAlert(ctx, notifdomain.Alert{
			Reference:       event.Reference,
			Provider:        event.Provider,
			ProviderEventID: event.ProviderEventID,
			Code:            domain.ReconcileCodeTransferFailed,
			Detail:          detail,
		})
	}
	return nil
}

func (s *Service) postSettlementLedger(ctx context.Context, tx *gorm.DB, intent *domain.PaymentIntent, received, gatewayFee, platformFee, residual int64, paidAt time.Time) error {
	lines := []ledgerdomain.EntryLine{
		{AccountCode: ledgerdomain.AccountCodeCash, Direction: ledgerdomain.DirectionDebit, Amount: received},
		{AccountCode: ledgerdomain.AccountCodeGatewayFees, Direction: ledgerdomain.DirectionCredit, Amount: gatewayFee},
		{AccountCode: ledgerdomain.AccountCodePlatformRevenue, Direction: ledgerdomain.DirectionCredit, Amount: platformFee},
	}
	if residual >= 0 {
		lines = append(lines, ledgerdomain.EntryLine{
			AccountCode: ledgerdomain.AccountCodeSchoolPayable,
			Direction:   ledgerdomain.DirectionCredit,
			Amount:      residual,
		})
	} else {
		// fees exceeded the money collected; the payable absorbs the
		// shortfall as a debit to keep the entry balanced
		lines = append(lines, ledgerdomain.EntryLine{
			AccountCode: ledgerdomain.AccountCodeSchoolPayable,
			Direction:   ledgerdomain.DirectionDebit,
			Amount:      -residual,
		})
	}

	_, err := s.ledger.CreateEntry(ctx, tx, ledgerdomain.NewEntry{
		SchoolID:   intent.SchoolID,
		SourceType: ledgerdomain.SourceTypePayment,
		SourceID:   intent.ID,
		Currency:   intent.Currency,
		OccurredAt: paidAt,
		Lines:      lines,
	})
	if err != nil {
		return fmt.Errorf("post settlement ledger: %w", err)
	}
	return nil
}

func (s *Service) settleInvoice(ctx context.Context, tx *gorm.DB, invoiceID snowflake.ID, received int64, paidAt, now time.Time) error {
	res := tx.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET status = 'paid', amount_paid = ?, paid_at = ?, updated_at = ?
		 WHERE id = ? AND status NOT IN ('paid', 'cancelled')`,
		received,
		paidAt,
		now,
		invoiceID,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		s.log.Warn("payment.invoice_not_settled", zap.String("invoice_id", invoiceID.String()))
	}
	return nil
}

func (s *Service) markInvoicePartial(ctx context.Context, tx *gorm.DB, invoiceID snowflake.ID, received int64, now time.Time) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET status = 'partially_paid', amount_paid = ?, updated_at = ?
		 WHERE id = ? AND status NOT IN ('paid', 'cancelled')`,
		received,
		now,
		invoiceID,
	).Error
}

// recordReconcileError stores the discrepancy for the operations
// queue. Failures here are logged, not returned: losing the audit row
// must not abort the event outcome itself.
func (s *Service) recordReconcileError(ctx context.Context, intentID *snowflake.ID, event *domain.PaymentEvent, code, detail string) {
	recErr := &domain.ReconciliationError{
		ID:              s.genID.Generate(),
		PaymentIntentID: intentID,
		Reference:       event.Reference,
		Code:            code,
		Detail:          detail,
		Provider:        event.Provider,
		ProviderEventID: event.ProviderEventID,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.repo.InsertReconciliationError(ctx, s.db, recErr); err != nil {
		s.log.Warn("payment.reconcile_error_not_recorded", zap.String("code", code), zap.Error(err))
	}
	s.log.Warn("payment.reconcile_error",
		zap.String("code", code),
		zap.String("reference", event.Reference),
		zap.String("provider_event_id", event.ProviderEventID),
		zap.String("detail", detail),
	)
	if s.obsMetrics != nil {
		s.obsMetrics.RecordReconcileError(ctx, code)
	}
}

func (s *Service) afterTransition(ctx context.Context, intent *domain.PaymentIntent, to domain.IntentStatus, received int64, failureReason string) {
	if s.obsMetrics != nil {
		s.obsMetrics.RecordReconcileTransition(ctx, string(intent.Status), string(to))
	}
	s.log.Info("payment.intent_transitioned",
		zap.String("reference", intent.Reference),
		zap.String("from", string(intent.Status)),
		zap.String("to", string(to)),
		zap.Int64("amount_received", received),
	)

	if s.notify == nil {
		return
	}
	contact := s.loadStudentContact(ctx, intent.StudentID)
	s.notify.PaymentStateChanged(ctx, notifdomain.StateChange{
		Reference:      intent.Reference,
		Purpose:        intent.Purpose,
		FromStatus:     string(intent.Status),
		ToStatus:       string(to),
		SchoolName:     contact.SchoolName,
		StudentName:    contact.StudentName,
		ParentEmail:    contact.ParentEmail,
		AmountDue:      intent.AmountDue,
		AmountReceived: received,
		Currency:       intent.Currency,
		FailureReason:  failureReason,
	})
}

type studentContact struct {
	StudentName string
	ParentEmail string
	SchoolName  string
}

func (s *Service) loadStudentContact(ctx context.Context, studentID snowflake.ID) studentContact {
	var row struct {
		FullName    string `gorm:"column:full_name"`
		ParentEmail string `gorm:"column:parent_email"`
		SchoolName  string `gorm:"column:school_name"`
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT st.full_name, st.parent_email, sc.name AS school_name
		 FROM students st
		 JOIN schools sc ON sc.id = st.school_id
		 WHERE st.id = ?`,
		studentID,
	).Scan(&row).Error; err != nil {
		s.log.Warn("payment.contact_lookup_failed", zap.String("student_id", studentID.String()), zap.Error(err))
		return studentContact{}
	}
	return studentContact{
		StudentName: row.FullName,
		ParentEmail: row.ParentEmail,
		SchoolName:  row.SchoolName,
	}
}

func (s *Service) loadSchoolSubaccount(ctx context.Context, schoolID snowflake.ID) string {
	var subaccount string
	if err := s.db.WithContext(ctx).Raw(
		`SELECT subaccount_code FROM schools WHERE id = ?`,
		schoolID,
	).Scan(&subaccount).Error; err != nil {
		s.log.Warn("payment.subaccount_lookup_failed", zap.String("school_id", schoolID.String()), zap.Error(err))
		return ""
	}
	return strings.TrimSpace(subaccount)
}

func parseID(raw string, invalid error) (snowflake.ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, invalid
	}
	parsed, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, invalid
	}
	return parsed, nil
}
