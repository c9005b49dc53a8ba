package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/edusuite/billing/internal/clock"
	"github.com/edusuite/billing/internal/reference"
	schooldomain "github.com/edusuite/billing/internal/school/domain"
	schoolrepo "github.com/edusuite/billing/internal/school/repository"
	schoolservice "github.com/edusuite/billing/internal/school/service"
	"github.com/edusuite/billing/internal/subscription/domain"
	subscriptionrepo "github.com/edusuite/billing/internal/subscription/repository"
	subscriptionservice "github.com/edusuite/billing/internal/subscription/service"
)

func TestStartTrialSubscription(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC))
	subs := newSubscriptionService(t, db, 80, clk)

	seedSchool(t, db, 1001, "Sunrise Academy", "sunrise-academy")

	sub, err := subs.Start(ctx, domain.StartRequest{
		SchoolID:  "1001",
		PlanCode:  "basic",
		TrialDays: 14,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if sub.Status != domain.StatusTrialing {
		t.Fatalf("status = %s, want trialing", sub.Status)
	}
	if sub.PlanCode != domain.PlanBasic || sub.BillingPeriod != domain.PeriodTerm {
		t.Fatalf("plan/period = %s/%s", sub.PlanCode, sub.BillingPeriod)
	}
	if got := sub.PeriodEnd.Sub(sub.PeriodStart); got != 14*24*time.Hour {
		t.Fatalf("trial window = %v, want 14 days", got)
	}
	if !sub.AutoRenew {
		t.Fatal("expected auto renew on")
	}

	if _, err := subs.Start(ctx, domain.StartRequest{SchoolID: "1001", PlanCode: "basic"}); !errors.Is(err, domain.ErrSubscriptionExists) {
		t.Fatalf("expected ErrSubscriptionExists, got %v", err)
	}
}

func TestStartValidation(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC))
	subs := newSubscriptionService(t, db, 81, clk)

	seedSchool(t, db, 1001, "Sunrise Academy", "sunrise-academy")

	cases := []struct {
		name string
		req  domain.StartRequest
		want error
	}{
		{"unknown plan", domain.StartRequest{SchoolID: "1001", PlanCode: "platinum"}, domain.ErrPlanNotFound},
		{"bad period", domain.StartRequest{SchoolID: "1001", PlanCode: "basic", BillingPeriod: "weekly"}, domain.ErrInvalidBillingPeriod},
		{"trial too long", domain.StartRequest{SchoolID: "1001", PlanCode: "basic", TrialDays: 120}, domain.ErrInvalidTrialDays},
		{"unknown school", domain.StartRequest{SchoolID: "9999", PlanCode: "basic"}, schooldomain.ErrSchoolNotFound},
	}
	for _, tc := range cases {
		if _, err := subs.Start(ctx, tc.req); !errors.Is(err, tc.want) {
			t.Fatalf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestStartPaidAnnualSubscription(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC))
	subs := newSubscriptionService(t, db, 82, clk)

	seedSchool(t, db, 1001, "Sunrise Academy", "sunrise-academy")

	sub, err := subs.Start(ctx, domain.StartRequest{
		SchoolID:      "1001",
		PlanCode:      "premium",
		BillingPeriod: "annual",
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if sub.Status != domain.StatusActive {
		t.Fatalf("status = %s, want active", sub.Status)
	}
	if got := sub.PeriodEnd.Sub(sub.PeriodStart); got != 365*24*time.Hour {
		t.Fatalf("period = %v, want 365 days", got)
	}
}

func TestActivateRenewsFromPeriodEnd(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC))
	subs := newSubscriptionService(t, db, 83, clk)

	seedSchool(t, db, 1001, "Sunrise Academy", "sunrise-academy")

	started, err := subs.Start(ctx, domain.StartRequest{SchoolID: "1001", PlanCode: "standard"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	// Renewing mid-period stacks the next term on the current window.
	renewed, err := subs.Activate(ctx, "1001")
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if !renewed.PeriodStart.Equal(started.PeriodEnd) {
		t.Fatalf("renewal start = %v, want %v", renewed.PeriodStart, started.PeriodEnd)
	}
	if got := renewed.PeriodEnd.Sub(renewed.PeriodStart); got != 120*24*time.Hour {
		t.Fatalf("renewal window = %v, want 120 days", got)
	}
}

func TestActivateRestoresPastDue(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC))
	subs := newSubscriptionService(t, db, 84, clk)

	seedSchool(t, db, 1001, "Sunrise Academy", "sunrise-academy")

	if _, err := subs.Start(ctx, domain.StartRequest{SchoolID: "1001", PlanCode: "basic"}); err != nil {
		t.Fatalf("start: %v", err)
	}

	clk.Advance(121 * 24 * time.Hour)
	res, err := subs.SweepExpiry(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.PastDue != 1 {
		t.Fatalf("past due = %d, want 1", res.PastDue)
	}

	sub, err := subs.Activate(ctx, "1001")
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if sub.Status != domain.StatusActive {
		t.Fatalf("status = %s, want active", sub.Status)
	}
	if !sub.PeriodStart.Equal(clk.Now()) {
		t.Fatalf("lapsed renewal must restart from now, got %v", sub.PeriodStart)
	}
}

func TestChangePlanKeepsWindow(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC))
	subs := newSubscriptionService(t, db, 85, clk)

	seedSchool(t, db, 1001, "Sunrise Academy", "sunrise-academy")

	started, err := subs.Start(ctx, domain.StartRequest{SchoolID: "1001", PlanCode: "basic"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	changed, err := subs.ChangePlan(ctx, "1001", "standard")
	if err != nil {
		t.Fatalf("change plan: %v", err)
	}
	if changed.PlanCode != domain.PlanStandard {
		t.Fatalf("plan = %s, want standard", changed.PlanCode)
	}
	if !changed.PeriodEnd.Equal(started.PeriodEnd) {
		t.Fatalf("period end moved from %v to %v", started.PeriodEnd, changed.PeriodEnd)
	}

	if _, err := subs.ChangePlan(ctx, "1001", "platinum"); !errors.Is(err, domain.ErrPlanNotFound) {
		t.Fatalf("expected ErrPlanNotFound, got %v", err)
	}

	same, err := subs.ChangePlan(ctx, "1001", "standard")
	if err != nil || same.PlanCode != domain.PlanStandard {
		t.Fatalf("same-plan change: %v %+v", err, same)
	}
}

func TestCancelSubscription(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC))
	subs := newSubscriptionService(t, db, 86, clk)

	seedSchool(t, db, 1001, "Sunrise Academy", "sunrise-academy")

	if _, err := subs.Start(ctx, domain.StartRequest{SchoolID: "1001", PlanCode: "basic"}); err != nil {
		t.Fatalf("start: %v", err)
	}

	sub, err := subs.Cancel(ctx, "1001")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if sub.Status != domain.StatusCancelled || sub.CancelledAt == nil || sub.AutoRenew {
		t.Fatalf("cancelled sub = %+v", sub)
	}

	if _, err := subs.Cancel(ctx, "1001"); !errors.Is(err, domain.ErrSubscriptionClosed) {
		t.Fatalf("expected ErrSubscriptionClosed, got %v", err)
	}
	if _, err := subs.ChangePlan(ctx, "1001", "premium"); !errors.Is(err, domain.ErrSubscriptionClosed) {
		t.Fatalf("expected ErrSubscriptionClosed on plan change, got %v", err)
	}
}

func TestEntitlementReflectsPlanAndState(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC))
	subs := newSubscriptionService(t, db, 87, clk)

	seedSchool(t, db, 1001, "Sunrise Academy", "sunrise-academy")

	if _, err := subs.Entitlement(ctx, "1001"); !errors.Is(err, domain.ErrSubscriptionNotFound) {
		t.Fatalf("expected ErrSubscriptionNotFound, got %v", err)
	}

	if _, err := subs.Start(ctx, domain.StartRequest{SchoolID: "1001", PlanCode: "standard"}); err != nil {
		t.Fatalf("start: %v", err)
	}

	ent, err := subs.Entitlement(ctx, "1001")
	if err != nil {
		t.Fatalf("entitlement: %v", err)
	}
	if !ent.Active || ent.MaxStudents != 1500 || ent.MaxStaff != 150 {
		t.Fatalf("entitlement = %+v", ent)
	}
	if !ent.Has("pdf_documents") || ent.Has("api_access") {
		t.Fatalf("feature set wrong: %v", ent.Features)
	}

	// Once the window lapses the plan stays visible but access is off.
	clk.Advance(121 * 24 * time.Hour)
	ent, err = subs.Entitlement(ctx, "1001")
	if err != nil {
		t.Fatalf("entitlement after lapse: %v", err)
	}
	if ent.Active {
		t.Fatal("lapsed subscription must not be active")
	}
	if ent.PlanCode != domain.PlanStandard {
		t.Fatalf("plan = %s, want standard", ent.PlanCode)
	}
}

func TestSweepExpiry(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC))
	subs := newSubscriptionService(t, db, 88, clk)

	seedSchool(t, db, 1001, "Sunrise Academy", "sunrise-academy")
	seedSchool(t, db, 1002, "Golden Gate College", "golden-gate")
	seedSchool(t, db, 1003, "Unity High", "unity-high")

	if _, err := subs.Start(ctx, domain.StartRequest{SchoolID: "1001", PlanCode: "basic", TrialDays: 7}); err != nil {
		t.Fatalf("start trial: %v", err)
	}
	if _, err := subs.Start(ctx, domain.StartRequest{SchoolID: "1002", PlanCode: "standard"}); err != nil {
		t.Fatalf("start renewing: %v", err)
	}
	if _, err := subs.Start(ctx, domain.StartRequest{SchoolID: "1003", PlanCode: "basic"}); err != nil {
		t.Fatalf("start non-renewing: %v", err)
	}
	if err := db.Exec(`UPDATE school_subscriptions SET auto_renew = ? WHERE school_id = ?`, false, 1003).Error; err != nil {
		t.Fatalf("disable auto renew: %v", err)
	}

	// Day 8: only the 7-day trial has lapsed.
	clk.Advance(8 * 24 * time.Hour)
	res, err := subs.SweepExpiry(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.PastDue != 0 || res.Expired != 1 {
		t.Fatalf("sweep 1 = %+v, want 0 past due / 1 expired", res)
	}

	// Day 121: both term subscriptions lapsed. The renewing one gets a
	// grace window as past_due, the non-renewing one expires outright.
	clk.Advance(113 * 24 * time.Hour)
	res, err = subs.SweepExpiry(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.PastDue != 1 || res.Expired != 1 {
		t.Fatalf("sweep 2 = %+v, want 1 past due / 1 expired", res)
	}

	// Day 129: grace exhausted.
	clk.Advance(8 * 24 * time.Hour)
	res, err = subs.SweepExpiry(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.PastDue != 0 || res.Expired != 1 {
		t.Fatalf("sweep 3 = %+v, want 0 past due / 1 expired", res)
	}

	for schoolID, want := range map[string]domain.Status{
		"1001": domain.StatusExpired,
		"1002": domain.StatusExpired,
		"1003": domain.StatusExpired,
	} {
		sub, err := subs.Get(ctx, schoolID)
		if err != nil {
			t.Fatalf("get %s: %v", schoolID, err)
		}
		if sub.Status != want {
			t.Fatalf("school %s status = %s, want %s", schoolID, sub.Status, want)
		}
	}
}

func newSubscriptionService(t *testing.T, db *gorm.DB, nodeID int64, clk clock.Clock) domain.Service {
	t.Helper()

	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	log := zap.NewNop()

	schoolRepo := schoolrepo.NewRepository(db)
	schools := schoolservice.NewService(log, schoolRepo, reference.NewRepository(), node)

	return subscriptionservice.NewService(subscriptionservice.Params{
		DB:      db,
		Log:     log,
		GenID:   node,
		Clock:   clk,
		Repo:    subscriptionrepo.Provide(),
		Schools: schools,
	})
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

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_subs_%d?mode=memory&cache=shared", time.Now().UnixNano())
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
