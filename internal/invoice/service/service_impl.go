package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/edusuite/billing/internal/config"
	discountdomain "github.com/edusuite/billing/internal/discount/domain"
	feescheduledomain "github.com/edusuite/billing/internal/feeschedule/domain"
	"github.com/edusuite/billing/internal/invoice/domain"
	"github.com/edusuite/billing/internal/invoice/format"
	"github.com/edusuite/billing/internal/invoice/render"
	notifdomain "github.com/edusuite/billing/internal/notification/domain"
	obsmetrics "github.com/edusuite/billing/internal/observability/metrics"
	paymentdomain "github.com/edusuite/billing/internal/payment/domain"
	paymentservice "github.com/edusuite/billing/internal/payment/service"
	schooldomain "github.com/edusuite/billing/internal/school/domain"
)

// defaultDueDays pads manually issued invoices that carry no due date.
const defaultDueDays = 30

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      domain.Repository
	Schools   schooldomain.Service
	Fees      feescheduledomain.Service
	Discounts discountdomain.Service
	Payments  *paymentservice.Service
	Billing   *config.BillingConfigHolder
	Renderer  render.Renderer

	Notify     notifdomain.Dispatcher `optional:"true"`
	ObsMetrics *obsmetrics.Metrics    `optional:"true"`
}

type service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       domain.Repository
	schools    schooldomain.Service
	fees       feescheduledomain.Service
	discounts  discountdomain.Service
	payments   *paymentservice.Service
	billing    *config.BillingConfigHolder
	renderer   render.Renderer
	notify     notifdomain.Dispatcher
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &service{
		db:         p.DB,
		log:        p.Log.Named("invoice.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		schools:    p.Schools,
		fees:       p.Fees,
		discounts:  p.Discounts,
		payments:   p.Payments,
		billing:    p.Billing,
		renderer:   p.Renderer,
		notify:     p.Notify,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *service) IssueFromFees(ctx context.Context, req domain.IssueFromFeesRequest) (*domain.Issued, error) {
	key := strings.TrimSpace(req.StructureKey)
	if key == "" {
		return nil, feescheduledomain.ErrInvalidKey
	}

	school, err := s.schools.GetByID(ctx, req.SchoolID)
	if err != nil {
		return nil, err
	}
	student, err := s.schools.GetStudent(ctx, req.SchoolID, req.StudentID)
	if err != nil {
		return nil, err
	}

	structure, err := s.fees.GetStructure(ctx, req.SchoolID, key)
	if err != nil {
		return nil, err
	}
	lines, err := s.fees.Resolve(ctx, req.SchoolID, key, student.BillingContext())
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, domain.ErrNoBillableLines
	}

	var gross int64
	for _, line := range lines {
		gross += line.Amount
	}

	// Early-bird windows close at the structure's due date.
	breakdown, err := s.discounts.Preview(ctx, req.SchoolID, gross, student.BillingContext(), structure.DueAt)
	if err != nil {
		return nil, err
	}

	kind := domain.KindTermFees
	if structure.Kind == feescheduledomain.StructureKindApplication {
		kind = domain.KindApplication
	}

	now := time.Now().UTC()
	dueAt := structure.DueAt
	inv := &domain.Invoice{
		ID:             s.genID.Generate(),
		SchoolID:       student.SchoolID,
		StudentID:      student.ID,
		InvoiceNumber:  format.Number(s.prefixFor(kind), school.Code, now, format.NewSuffix()),
		Kind:           kind,
		StructureKey:   structure.Key,
		Status:         domain.StatusDraft,
		Currency:       structure.Currency,
		GrossAmount:    gross,
		DiscountAmount: breakdown.TotalDiscount,
		TotalAmount:    breakdown.Payable,
		Metadata:       discountMetadata(breakdown),
		DueAt:          &dueAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	items := make([]domain.InvoiceItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, domain.InvoiceItem{
			ID:           s.genID.Generate(),
			InvoiceID:    inv.ID,
			Category:     line.Category,
			CategoryRank: line.CategoryRank,
			Amount:       line.Amount,
			CreatedAt:    now,
		})
	}

	return s.issue(ctx, inv, items, breakdown)
}

func (s *service) Issue(ctx context.Context, req domain.IssueRequest) (*domain.Issued, error) {
	if !req.Kind.Valid() {
		return nil, domain.ErrInvalidInvoice
	}
	if len(req.Lines) == 0 {
		return nil, domain.ErrNoBillableLines
	}

	school, err := s.schools.GetByID(ctx, req.SchoolID)
	if err != nil {
		return nil, err
	}
	student, err := s.schools.GetStudent(ctx, req.SchoolID, req.StudentID)
	if err != nil {
		return nil, err
	}

	cfg := s.billing.Get()
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = cfg.CurrencyCode
	}
	if len(currency) != 3 {
		return nil, domain.ErrInvalidInvoice
	}

	var gross int64
	for _, line := range req.Lines {
		if strings.TrimSpace(line.Category) == "" || line.Amount < 0 {
			return nil, domain.ErrInvalidInvoice
		}
		gross += line.Amount
	}

	now := time.Now().UTC()
	dueAt := req.DueAt
	if dueAt == nil {
		fallback := now.AddDate(0, 0, defaultDueDays)
		dueAt = &fallback
	}

	metadata := datatypes.JSONMap{}
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	inv := &domain.Invoice{
		ID:            s.genID.Generate(),
		SchoolID:      student.SchoolID,
		StudentID:     student.ID,
		InvoiceNumber: format.Number(s.prefixFor(req.Kind), school.Code, now, format.NewSuffix()),
		Kind:          req.Kind,
		Status:        domain.StatusDraft,
		Currency:      currency,
		GrossAmount:   gross,
		TotalAmount:   gross,
		Metadata:      metadata,
		DueAt:         dueAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	items := make([]domain.InvoiceItem, 0, len(req.Lines))
	for rank, line := range req.Lines {
		items = append(items, domain.InvoiceItem{
			ID:           s.genID.Generate(),
			InvoiceID:    inv.ID,
			Category:     strings.TrimSpace(line.Category),
			CategoryRank: rank,
			Amount:       line.Amount,
			CreatedAt:    now,
		})
	}

	return s.issue(ctx, inv, items, nil)
}

// issue persists the invoice and opens the payment intent for its
// payable balance. A zero balance short-circuits: the invoice is
// recorded as paid under a waiver reference and no intent exists for
// the gateway to settle.
func (s *service) issue(ctx context.Context, inv *domain.Invoice, items []domain.InvoiceItem, breakdown *discountdomain.Breakdown) (*domain.Issued, error) {
	now := inv.CreatedAt
	waived := inv.TotalAmount == 0
	if waived {
		if inv.Metadata == nil {
			inv.Metadata = datatypes.JSONMap{}
		}
		inv.Status = domain.StatusPaid
		inv.PaidAt = &now
		inv.Metadata["waiver_reference"] = paymentdomain.NewWaiverReference()
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.Insert(ctx, tx, inv, items)
	})
	if err != nil {
		return nil, err
	}

	issued := &domain.Issued{Invoice: inv, Items: items, Discount: breakdown}
	if waived {
		s.log.Info("invoice.issued_waived",
			zap.String("invoice_number", inv.InvoiceNumber),
			zap.Int64("gross_amount", inv.GrossAmount),
		)
		s.recordIssued(ctx, inv.Kind)
		return issued, nil
	}

	intent, err := s.payments.CreateIntent(ctx, paymentservice.CreateIntentRequest{
		SchoolID:  inv.SchoolID.String(),
		StudentID: inv.StudentID.String(),
		InvoiceID: inv.ID.String(),
		Purpose:   string(inv.Kind),
		AmountDue: inv.TotalAmount,
		Currency:  inv.Currency,
		Reference: paymentdomain.NewPrefixedReference(s.prefixFor(inv.Kind)),
		DueAt:     inv.DueAt,
		Metadata:  map[string]any{"invoice_number": inv.InvoiceNumber},
	})
	if err != nil {
		// An invoice nobody can pay must not linger; withdraw it and
		// surface the failure to the caller.
		upd := domain.StatusUpdate{To: domain.StatusCancelled, UpdatedAt: time.Now().UTC()}
		if _, cErr := s.repo.UpdateStatus(ctx, s.db, inv.ID, []domain.Status{domain.StatusDraft}, upd); cErr != nil {
			s.log.Warn("invoice.withdraw_failed",
				zap.String("invoice_number", inv.InvoiceNumber),
				zap.Error(cErr),
			)
		}
		return nil, err
	}

	s.log.Info("invoice.issued",
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("reference", intent.Reference),
		zap.Int64("total_amount", inv.TotalAmount),
		zap.Int64("discount_amount", inv.DiscountAmount),
	)
	s.recordIssued(ctx, inv.Kind)

	issued.Intent = intent
	return issued, nil
}

func (s *service) Get(ctx context.Context, schoolID string, invoiceID string) (*domain.Detail, error) {
	sid, err := parseID(schoolID, schooldomain.ErrInvalidSchool)
	if err != nil {
		return nil, err
	}
	id, err := parseID(invoiceID, domain.ErrInvalidInvoice)
	if err != nil {
		return nil, err
	}

	inv, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if inv == nil || inv.SchoolID != sid {
		return nil, domain.ErrInvoiceNotFound
	}
	return s.detail(ctx, inv)
}

func (s *service) GetByNumber(ctx context.Context, number string) (*domain.Detail, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, domain.ErrInvalidInvoice
	}

	inv, err := s.repo.FindByNumber(ctx, s.db, number)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, domain.ErrInvoiceNotFound
	}
	return s.detail(ctx, inv)
}

func (s *service) List(ctx context.Context, req domain.ListRequest) ([]domain.Invoice, error) {
	sid, err := parseID(req.SchoolID, schooldomain.ErrInvalidSchool)
	if err != nil {
		return nil, err
	}

	filter := domain.ListFilter{SchoolID: sid, Limit: req.Limit}
	if strings.TrimSpace(req.StudentID) != "" {
		studentID, err := parseID(req.StudentID, schooldomain.ErrInvalidStudent)
		if err != nil {
			return nil, err
		}
		filter.StudentID = studentID
	}
	if status := strings.TrimSpace(req.Status); status != "" {
		if !domain.Status(status).Valid() {
			return nil, domain.ErrInvalidInvoice
		}
		filter.Status = domain.Status(status)
	}
	return s.repo.List(ctx, s.db, filter)
}

func (s *service) Send(ctx context.Context, schoolID string, invoiceID string) (*domain.Invoice, error) {
	inv, err := s.load(ctx, schoolID, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status.Closed() {
		return nil, domain.ErrInvoiceClosed
	}
	if inv.Status != domain.StatusDraft {
		return inv, nil
	}

	now := time.Now().UTC()
	upd := domain.StatusUpdate{To: domain.StatusSent, SentAt: &now, UpdatedAt: now}
	updated, err := s.repo.UpdateStatus(ctx, s.db, inv.ID, []domain.Status{domain.StatusDraft}, upd)
	if err != nil {
		return nil, err
	}
	if !updated {
		// Lost a race with settlement or another sender; report the
		// fresh state instead.
		return s.load(ctx, schoolID, invoiceID)
	}

	inv.Status = domain.StatusSent
	inv.SentAt = &now
	inv.UpdatedAt = now

	s.log.Info("invoice.sent", zap.String("invoice_number", inv.InvoiceNumber))
	s.notifyIssued(ctx, inv)
	return inv, nil
}

func (s *service) Cancel(ctx context.Context, schoolID string, invoiceID string) (*domain.Invoice, error) {
	inv, err := s.load(ctx, schoolID, invoiceID)
	if err != nil {
		return nil, err
	}

	// Partially paid invoices hold the parent's money and cannot be
	// withdrawn from under them.
	if inv.Status.Closed() || inv.Status == domain.StatusPartiallyPaid {
		return nil, domain.ErrInvoiceClosed
	}

	cancelable := []domain.Status{domain.StatusDraft, domain.StatusSent, domain.StatusOverdue}
	now := time.Now().UTC()
	upd := domain.StatusUpdate{To: domain.StatusCancelled, UpdatedAt: now}
	updated, err := s.repo.UpdateStatus(ctx, s.db, inv.ID, cancelable, upd)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, domain.ErrInvoiceClosed
	}

	if _, err := s.payments.CancelIntentsForInvoice(ctx, inv.ID, "invoice_cancelled"); err != nil {
		s.log.Warn("invoice.intent_cancel_failed",
			zap.String("invoice_number", inv.InvoiceNumber),
			zap.Error(err),
		)
	}

	inv.Status = domain.StatusCancelled
	inv.UpdatedAt = now

	s.log.Info("invoice.cancelled", zap.String("invoice_number", inv.InvoiceNumber))
	return inv, nil
}

func (s *service) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	count, err := s.repo.MarkOverdue(ctx, s.db, asOf)
	if err != nil {
		return 0, fmt.Errorf("mark invoices overdue: %w", err)
	}
	if count > 0 {
		s.log.Info("invoice.marked_overdue",
			zap.Int64("count", count),
			zap.Time("as_of", asOf),
		)
	}
	return count, nil
}

func (s *service) load(ctx context.Context, schoolID string, invoiceID string) (*domain.Invoice, error) {
	sid, err := parseID(schoolID, schooldomain.ErrInvalidSchool)
	if err != nil {
		return nil, err
	}
	id, err := parseID(invoiceID, domain.ErrInvalidInvoice)
	if err != nil {
		return nil, err
	}

	inv, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if inv == nil || inv.SchoolID != sid {
		return nil, domain.ErrInvoiceNotFound
	}
	return inv, nil
}

func (s *service) detail(ctx context.Context, inv *domain.Invoice) (*domain.Detail, error) {
	items, err := s.repo.ListItems(ctx, s.db, inv.ID)
	if err != nil {
		return nil, err
	}
	return &domain.Detail{Invoice: *inv, Items: items}, nil
}

func (s *service) notifyIssued(ctx context.Context, inv *domain.Invoice) {
	if s.notify == nil {
		return
	}

	notice := notifdomain.InvoiceNotice{
		InvoiceNumber: inv.InvoiceNumber,
		TotalAmount:   inv.TotalAmount,
		Currency:      inv.Currency,
		DueAt:         inv.DueAt,
	}
	if student, err := s.schools.GetStudent(ctx, inv.SchoolID.String(), inv.StudentID.String()); err == nil {
		notice.StudentName = student.FullName
		notice.ParentEmail = student.ParentEmail
	}
	if school, err := s.schools.GetByID(ctx, inv.SchoolID.String()); err == nil {
		notice.SchoolName = school.Name
	}
	s.notify.InvoiceIssued(ctx, notice)
}

func (s *service) recordIssued(ctx context.Context, kind domain.Kind) {
	if s.obsMetrics != nil {
		s.obsMetrics.RecordInvoiceIssued(ctx, string(kind))
	}
}

// prefixFor maps a document series to its configured number prefix.
func (s *service) prefixFor(kind domain.Kind) string {
	cfg := s.billing.Get()
	switch kind {
	case domain.KindApplication:
		return cfg.ApplicationPrefix
	case domain.KindAdmission:
		return cfg.AdmissionPrefix
	default:
		return cfg.InvoicePrefix
	}
}

func discountMetadata(breakdown *discountdomain.Breakdown) datatypes.JSONMap {
	metadata := datatypes.JSONMap{}
	if breakdown == nil || len(breakdown.Applied) == 0 {
		return metadata
	}
	applied := make([]map[string]any, 0, len(breakdown.Applied))
	for _, rule := range breakdown.Applied {
		applied = append(applied, map[string]any{
			"rule":    string(rule.Rule),
			"percent": rule.Percent,
			"amount":  rule.Amount,
		})
	}
	metadata["applied_discounts"] = applied
	return metadata
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
