package scheduler_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/edusuite/billing/internal/clock"
	"github.com/edusuite/billing/internal/config"
	discountrepo "github.com/edusuite/billing/internal/discount/repository"
	discountservice "github.com/edusuite/billing/internal/discount/service"
	feeschedulerepo "github.com/edusuite/billing/internal/feeschedule/repository"
	feescheduleservice "github.com/edusuite/billing/internal/feeschedule/service"
	"github.com/edusuite/billing/internal/invoice/render"
	invoicerepo "github.com/edusuite/billing/internal/invoice/repository"
	invoiceservice "github.com/edusuite/billing/internal/invoice/service"
	ledgerservice "github.com/edusuite/billing/internal/ledger/service"
	notifdomain "github.com/edusuite/billing/internal/notification/domain"
	paymentrepo "github.com/edusuite/billing/internal/payment/repository"
	paymentservice "github.com/edusuite/billing/internal/payment/service"
	"github.com/edusuite/billing/internal/reference"
	"github.com/edusuite/billing/internal/scheduler"
	schoolrepo "github.com/edusuite/billing/internal/school/repository"
	schoolservice "github.com/edusuite/billing/internal/school/service"
	subscriptiondomain "github.com/edusuite/billing/internal/subscription/domain"
	subscriptionrepo "github.com/edusuite/billing/internal/subscription/repository"
	subscriptionservice "github.com/edusuite/billing/internal/subscription/service"
)

func TestOverdueSweepFlipsIntentsAndInvoices(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	base := time.Now().UTC()
	clk := clock.NewFakeClock(base)
	stack := newTestScheduler(t, db, 90, clk, &captureDispatcher{}, scheduler.Config{})

	seedSchool(t, db, 1001, "Sunrise Academy", "sunrise-academy")
	seedStudent(t, db, 2001, 1001, "Ada Obi", "parent@example.com")

	// Pending intents: one past the grace window, one inside it, one
	// with no due date riding on created_at, one already settled.
	seedIntent(t, db, intentSeed{id: 3001, reference: "PAY-old", dueAt: timePtr(base.AddDate(0, 0, -10)), createdAt: base.AddDate(0, 0, -12)})
	seedIntent(t, db, intentSeed{id: 3002, reference: "PAY-recent", dueAt: timePtr(base.AddDate(0, 0, -2)), createdAt: base.AddDate(0, 0, -3)})
	seedIntent(t, db, intentSeed{id: 3003, reference: "PAY-nodue", createdAt: base.AddDate(0, 0, -20)})
	seedIntent(t, db, intentSeed{id: 3004, reference: "PAY-paid", status: "paid", dueAt: timePtr(base.AddDate(0, 0, -30)), createdAt: base.AddDate(0, 0, -31)})

	seedInvoice(t, db, invoiceSeed{id: 4001, number: "INV/SUN/2602/AAAA0001", status: "sent", dueAt: timePtr(base.AddDate(0, 0, -1))})
	seedInvoice(t, db, invoiceSeed{id: 4002, number: "INV/SUN/2602/AAAA0002", status: "draft", dueAt: timePtr(base.AddDate(0, 0, -10))})
	seedInvoice(t, db, invoiceSeed{id: 4003, number: "INV/SUN/2602/AAAA0003", status: "sent", dueAt: timePtr(base.AddDate(0, 0, 5))})

	if err := stack.sched.RunOnce(ctx); err != nil {
		t.Fatalf("run once: %v", err)
	}

	assertCount(t, db, `SELECT COUNT(*) FROM payment_intents WHERE status = 'overdue'`, 2)
	assertCount(t, db, `SELECT COUNT(*) FROM payment_intents WHERE id = 3002 AND status = 'pending'`, 1)
	assertCount(t, db, `SELECT COUNT(*) FROM payment_intents WHERE id = 3004 AND status = 'paid'`, 1)
	assertCount(t, db, `SELECT COUNT(*) FROM invoices WHERE id = 4001 AND status = 'overdue'`, 1)
	assertCount(t, db, `SELECT COUNT(*) FROM invoices WHERE id = 4002 AND status = 'draft'`, 1)
	assertCount(t, db, `SELECT COUNT(*) FROM invoices WHERE id = 4003 AND status = 'sent'`, 1)

	// second pass finds nothing new
	if err := stack.sched.RunOnce(ctx); err != nil {
		t.Fatalf("rerun: %v", err)
	}
	assertCount(t, db, `SELECT COUNT(*) FROM payment_intents WHERE status = 'overdue'`, 2)
	assertCount(t, db, `SELECT COUNT(*) FROM invoices WHERE status = 'overdue'`, 1)
}

func TestPaymentRemindersSendOncePerThreshold(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	base := time.Now().UTC()
	clk := clock.NewFakeClock(base)
	notify := &captureDispatcher{}
	stack := newTestScheduler(t, db, 91, clk, notify, scheduler.Config{})

	seedSchool(t, db, 1001, "Sunrise Academy", "sunrise-academy")
	seedStudent(t, db, 2001, 1001, "Ada Obi", "parent@example.com")
	seedStudent(t, db, 2002, 1001, "Chidi Eze", "")

	seedIntent(t, db, intentSeed{id: 3101, reference: "PAY-soon", dueAt: timePtr(base.Add(48 * time.Hour)), createdAt: base})
	// no parent email on file, so no reminder can go out
	seedIntent(t, db, intentSeed{id: 3102, studentID: 2002, reference: "PAY-nomail", dueAt: timePtr(base.Add(20 * time.Hour)), createdAt: base})

	if err := stack.sched.RunOnce(ctx); err != nil {
		t.Fatalf("run once: %v", err)
	}

	sent := notify.sent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 reminder, got %d", len(sent))
	}
	if sent[0].Reference != "PAY-soon" || sent[0].DaysBefore != 3 {
		t.Fatalf("unexpected reminder %+v", sent[0])
	}
	if sent[0].ParentEmail != "parent@example.com" || sent[0].StudentName != "Ada Obi" || sent[0].SchoolName != "Sunrise Academy" {
		t.Fatalf("reminder contact fields wrong: %+v", sent[0])
	}
	assertCount(t, db, `SELECT COUNT(*) FROM payment_reminders`, 1)

	// replaying the loop sends nothing new
	if err := stack.sched.RunOnce(ctx); err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if got := len(notify.sent()); got != 1 {
		t.Fatalf("expected still 1 reminder, got %d", got)
	}

	// a day and a half later the 1-day threshold fires for the same intent
	clk.Advance(36 * time.Hour)
	if err := stack.sched.RunOnce(ctx); err != nil {
		t.Fatalf("run after advance: %v", err)
	}

	sent = notify.sent()
	if len(sent) != 2 {
		t.Fatalf("expected 2 reminders, got %d", len(sent))
	}
	if sent[1].Reference != "PAY-soon" || sent[1].DaysBefore != 1 {
		t.Fatalf("unexpected second reminder %+v", sent[1])
	}
	assertCount(t, db, `SELECT COUNT(*) FROM payment_reminders WHERE payment_intent_id = 3101`, 2)
	assertCount(t, db, `SELECT COUNT(*) FROM payment_reminders WHERE payment_intent_id = 3102`, 0)
}

func TestSubscriptionExpirySweep(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	base := time.Now().UTC()
	clk := clock.NewFakeClock(base)
	stack := newTestScheduler(t, db, 92, clk, &captureDispatcher{}, scheduler.Config{})

	seedSchool(t, db, 1001, "Sunrise Academy", "sunrise-academy")
	if _, err := stack.subscriptions.Start(ctx, subscriptiondomain.StartRequest{
		SchoolID:  "1001",
		PlanCode:  "basic",
		TrialDays: 7,
	}); err != nil {
		t.Fatalf("start subscription: %v", err)
	}

	clk.Advance(8 * 24 * time.Hour)
	if err := stack.sched.RunOnce(ctx); err != nil {
		t.Fatalf("run once: %v", err)
	}

	sub, err := stack.subscriptions.Get(ctx, "1001")
	if err != nil {
		t.Fatalf("get subscription: %v", err)
	}
	if sub.Status != subscriptiondomain.StatusExpired {
		t.Fatalf("status = %s, want expired", sub.Status)
	}
}

func TestEnabledJobsFilter(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	base := time.Now().UTC()
	clk := clock.NewFakeClock(base)
	notify := &captureDispatcher{}
	stack := newTestScheduler(t, db, 93, clk, notify, scheduler.Config{
		EnabledJobs: []string{"overdue_sweep"},
	})

	seedSchool(t, db, 1001, "Sunrise Academy", "sunrise-academy")
	seedStudent(t, db, 2001, 1001, "Ada Obi", "parent@example.com")
	seedIntent(t, db, intentSeed{id: 3201, reference: "PAY-old", dueAt: timePtr(base.AddDate(0, 0, -10)), createdAt: base.AddDate(0, 0, -12)})
	seedIntent(t, db, intentSeed{id: 3202, reference: "PAY-soon", dueAt: timePtr(base.Add(24 * time.Hour)), createdAt: base})

	if err := stack.sched.RunOnce(ctx); err != nil {
		t.Fatalf("run once: %v", err)
	}

	assertCount(t, db, `SELECT COUNT(*) FROM payment_intents WHERE id = 3201 AND status = 'overdue'`, 1)
	assertCount(t, db, `SELECT COUNT(*) FROM payment_reminders`, 0)
	if got := len(notify.sent()); got != 0 {
		t.Fatalf("expected no reminders, got %d", got)
	}
}

func TestRemindersNeedDispatcher(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	base := time.Now().UTC()
	clk := clock.NewFakeClock(base)
	stack := newTestScheduler(t, db, 94, clk, nil, scheduler.Config{})

	seedSchool(t, db, 1001, "Sunrise Academy", "sunrise-academy")
	seedStudent(t, db, 2001, 1001, "Ada Obi", "parent@example.com")
	seedIntent(t, db, intentSeed{id: 3301, reference: "PAY-soon", dueAt: timePtr(base.Add(24 * time.Hour)), createdAt: base})

	if err := stack.sched.RunOnce(ctx); err != nil {
		t.Fatalf("run once: %v", err)
	}

	// without a dispatcher no dedup marks are burned
	assertCount(t, db, `SELECT COUNT(*) FROM payment_reminders`, 0)
}

type schedStack struct {
	sched         *scheduler.Scheduler
	subscriptions subscriptiondomain.Service
}

func newTestScheduler(t *testing.T, db *gorm.DB, nodeID int64, clk clock.Clock, notify notifdomain.Dispatcher, cfg scheduler.Config) schedStack {
	t.Helper()

	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	holder, err := config.NewStaticBillingConfigHolder(config.DefaultBillingConfig())
	if err != nil {
		t.Fatalf("billing config: %v", err)
	}
	log := zap.NewNop()

	schoolRepo := schoolrepo.NewRepository(db)
	schools := schoolservice.NewService(log, schoolRepo, reference.NewRepository(), node)
	fees := feescheduleservice.NewService(db, log, feeschedulerepo.NewRepository(db), schoolRepo, node)
	discounts := discountservice.NewService(log, discountrepo.NewRepository(db), clk, node)
	ledger := ledgerservice.NewService(ledgerservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
	})
	payments := paymentservice.NewService(paymentservice.Params{
		DB:      db,
		Log:     log,
		GenID:   node,
		Repo:    paymentrepo.Provide(),
		Ledger:  ledger,
		Billing: holder,
	})
	invoices := invoiceservice.NewService(invoiceservice.Params{
		DB:        db,
		Log:       log,
		GenID:     node,
		Repo:      invoicerepo.Provide(),
		Schools:   schools,
		Fees:      fees,
		Discounts: discounts,
		Payments:  payments,
		Billing:   holder,
		Renderer:  render.NewRenderer(),
	})
	subscriptions := subscriptionservice.NewService(subscriptionservice.Params{
		DB:      db,
		Log:     log,
		GenID:   node,
		Clock:   clk,
		Repo:    subscriptionrepo.Provide(),
		Schools: schools,
	})

	sched, err := scheduler.New(scheduler.Params{
		Log:           log,
		GenID:         node,
		Clock:         clk,
		Payments:      payments,
		Invoices:      invoices,
		Subscriptions: subscriptions,
		Billing:       holder,
		Notify:        notify,
		Config:        cfg,
	})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	return schedStack{sched: sched, subscriptions: subscriptions}
}

type captureDispatcher struct {
	mu        sync.Mutex
	reminders []notifdomain.Reminder
}

func (d *captureDispatcher) PaymentStateChanged(context.Context, notifdomain.StateChange) {}

func (d *captureDispatcher) ReconcileAlert(context.Context, notifdomain.Alert) {}

func (d *captureDispatcher) InvoiceIssued(context.Context, notifdomain.InvoiceNotice) {}

func (d *captureDispatcher) PaymentReminder(_ context.Context, reminder notifdomain.Reminder) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reminders = append(d.reminders, reminder)
}

func (d *captureDispatcher) sent() []notifdomain.Reminder {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]notifdomain.Reminder(nil), d.reminders...)
}

type intentSeed struct {
	id        int64
	studentID int64
	reference string
	status    string
	amountDue int64
	dueAt     *time.Time
	createdAt time.Time
}

func seedIntent(t *testing.T, db *gorm.DB, seed intentSeed) {
	t.Helper()

	if seed.status == "" {
		seed.status = "pending"
	}
	if seed.amountDue == 0 {
		seed.amountDue = 5_000_000
	}
	if seed.studentID == 0 {
		seed.studentID = 2001
	}
	err := db.Exec(
		`INSERT INTO payment_intents (
			id, school_id, student_id, reference, purpose, amount_due,
			amount_received, currency, status, platform_fee, gateway_fee,
			net_amount, due_at, created_at, updated_at
		) VALUES (?, 1001, ?, ?, 'term_fees', ?, 0, 'NGN', ?, 0, 0, 0, ?, ?, ?)`,
		seed.id, seed.studentID, seed.reference, seed.amountDue, seed.status,
		seed.dueAt, seed.createdAt, seed.createdAt,
	).Error
	if err != nil {
		t.Fatalf("seed intent: %v", err)
	}
}

type invoiceSeed struct {
	id     int64
	number string
	status string
	dueAt  *time.Time
}

func seedInvoice(t *testing.T, db *gorm.DB, seed invoiceSeed) {
	t.Helper()

	now := time.Now().UTC()
	err := db.Exec(
		`INSERT INTO invoices (
			id, school_id, student_id, invoice_number, kind, status, currency,
			gross_amount, discount_amount, total_amount, amount_paid,
			due_at, created_at, updated_at
		) VALUES (?, 1001, 2001, ?, 'term_fees', ?, 'NGN', 5000000, 0, 5000000, 0, ?, ?, ?)`,
		seed.id, seed.number, seed.status, seed.dueAt, now, now,
	).Error
	if err != nil {
		t.Fatalf("seed invoice: %v", err)
	}
}

func seedStudent(t *testing.T, db *gorm.DB, id, schoolID int64, name, parentEmail string) {
	t.Helper()

	now := time.Now().UTC()
	err := db.Exec(
		`INSERT INTO students (
			id, school_id, full_name, class_level, boarder, staff_child,
			scholarship_percent, parent_email, active, created_at, updated_at
		) VALUES (?, ?, ?, 'JSS1', FALSE, FALSE, 0, ?, TRUE, ?, ?)`,
		id, schoolID, name, parentEmail, now, now,
	).Error
	if err != nil {
		t.Fatalf("seed student: %v", err)
	}
}

func seedSchool(t *testing.T, db *gorm.DB, id int64, name, code string) {
	t.Helper()

	now := time.Now().UTC()
	err := db.Exec(
		`INSERT INTO schools (id, name, code, contact_email, active, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, name, code, "bursar@school.example", true, "{}", now, now,
	).Error
	if err != nil {
		t.Fatalf("seed school: %v", err)
	}
}

func timePtr(ts time.Time) *time.Time { return &ts }

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_sched_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	schema := []string{
		`CREATE TABLE schools (
			id BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			code TEXT NOT NULL,
			contact_email TEXT,
			subaccount_code TEXT,
			bank_code TEXT,
			account_number TEXT,
			account_name TEXT,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE students (
			id BIGINT PRIMARY KEY,
			school_id BIGINT NOT NULL,
			full_name TEXT NOT NULL,
			class_level TEXT,
			boarder BOOLEAN NOT NULL DEFAULT FALSE,
			staff_child BOOLEAN NOT NULL DEFAULT FALSE,
			scholarship_percent REAL NOT NULL DEFAULT 0,
			parent_email TEXT,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE payment_intents (
			id BIGINT PRIMARY KEY,
			school_id BIGINT NOT NULL,
			student_id BIGINT NOT NULL,
			invoice_id BIGINT,
			reference TEXT NOT NULL,
			purpose TEXT NOT NULL,
			amount_due BIGINT NOT NULL,
			amount_received BIGINT NOT NULL DEFAULT 0,
			currency TEXT NOT NULL,
			status TEXT NOT NULL,
			platform_fee BIGINT NOT NULL DEFAULT 0,
			gateway_fee BIGINT NOT NULL DEFAULT 0,
			net_amount BIGINT NOT NULL DEFAULT 0,
			channel TEXT,
			failure_reason TEXT,
			metadata JSONB,
			paid_at TIMESTAMP,
			due_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_payment_intents_reference ON payment_intents(reference)`,
		`CREATE TABLE payment_reminders (
			id BIGINT PRIMARY KEY,
			payment_intent_id BIGINT NOT NULL,
			days_before INTEGER NOT NULL,
			sent_at TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_payment_reminders_intent_days ON payment_reminders(payment_intent_id, days_before)`,
		`CREATE TABLE invoices (
			id BIGINT PRIMARY KEY,
			school_id BIGINT NOT NULL,
			student_id BIGINT NOT NULL,
			invoice_number TEXT NOT NULL,
			kind TEXT NOT NULL,
			structure_key TEXT,
			status TEXT NOT NULL,
			currency TEXT NOT NULL,
			gross_amount BIGINT NOT NULL,
			discount_amount BIGINT NOT NULL DEFAULT 0,
			total_amount BIGINT NOT NULL,
			amount_paid BIGINT NOT NULL DEFAULT 0,
			metadata JSONB,
			due_at TIMESTAMP,
			sent_at TIMESTAMP,
			paid_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_invoices_number ON invoices(invoice_number)`,
		`CREATE TABLE school_subscriptions (
			id BIGINT PRIMARY KEY,
			school_id BIGINT NOT NULL,
			plan_code TEXT NOT NULL,
			status TEXT NOT NULL,
			billing_period TEXT NOT NULL,
			period_start TIMESTAMP NOT NULL,
			period_end TIMESTAMP NOT NULL,
			auto_renew BOOLEAN NOT NULL DEFAULT TRUE,
			cancelled_at TIMESTAMP,
			metadata JSONB,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_school_subscriptions_school ON school_subscriptions(school_id)`,
	}

	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("schema exec failed: %v", err)
		}
	}

	return db
}

func assertCount(t *testing.T, db *gorm.DB, query string, expected int64) {
	t.Helper()

	var count int64
	if err := db.Raw(query).Scan(&count).Error; err != nil {
		t.Fatalf("query count: %v", err)
	}
	if count != expected {
		t.Fatalf("expected %d, got %d", expected, count)
	}
}
