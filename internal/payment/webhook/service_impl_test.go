package webhook_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/edusuite/billing/internal/config"
	ledgerservice "github.com/edusuite/billing/internal/ledger/service"
	"github.com/edusuite/billing/internal/payment/adapters"
	"github.com/edusuite/billing/internal/payment/adapters/paystack"
	paymentdomain "github.com/edusuite/billing/internal/payment/domain"
	paymentrepo "github.com/edusuite/billing/internal/payment/repository"
	paymentservice "github.com/edusuite/billing/internal/payment/service"
	paymentwebhook "github.com/edusuite/billing/internal/payment/webhook"
)

const testSecretKey = "sk_test_secret"

func TestIngestWebhookSettlesIntent(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	paymentSvc, webhookSvc := newWebhookStack(t, db, 50)

	seedSchool(t, db, 1001, "Sunrise Academy")
	seedStudent(t, db, 2001, 1001, "Ada Obi", "ada.parent@example.com")

	intent, err := paymentSvc.CreateIntent(ctx, paymentservice.CreateIntentRequest{
		SchoolID:  "1001",
		StudentID: "2001",
		AmountDue: 1_500_000,
	})
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}

	payload := []byte(fmt.Sprintf(
		`{"event":"charge.success","data":{"id":555001,"reference":%q,"amount":1500000,"fees":24000,"currency":"NGN","channel":"card","status":"success","gateway_response":"Approved","paid_at":"2026-03-02T10:00:00.000Z","authorization":{"last4":"4081"}}}`,
		intent.Reference,
	))
	headers := http.Header{}
	headers.Set("x-paystack-signature", signPayload(testSecretKey, payload))

	if err := webhookSvc.IngestWebhook(ctx, "paystack", payload, headers); err != nil {
		t.Fatalf("ingest webhook: %v", err)
	}

	settled, err := paymentSvc.GetIntentByReference(ctx, intent.Reference)
	if err != nil {
		t.Fatalf("reload intent: %v", err)
	}
	if settled.Status != paymentdomain.IntentPaid {
		t.Fatalf("expected paid, got %s", settled.Status)
	}
	if settled.GatewayFee != 24_000 {
		t.Fatalf("expected gateway fee 24000, got %d", settled.GatewayFee)
	}

	var storedPayload string
	err = db.Raw(
		`SELECT payload FROM payment_events WHERE provider_event_id = ?`,
		"charge.success:555001",
	).Scan(&storedPayload).Error
	if err != nil {
		t.Fatalf("load stored event: %v", err)
	}
	if strings.Contains(storedPayload, "authorization") {
		t.Fatalf("stored payload keeps card authorization: %s", storedPayload)
	}

	assertCount(t, db, "SELECT COUNT(1) FROM payment_events WHERE processed_at IS NOT NULL", 1)
	assertCount(t, db, "SELECT COUNT(1) FROM ledger_entries", 1)
}

func TestIngestWebhookRejectsBadSignature(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	_, webhookSvc := newWebhookStack(t, db, 51)

	payload := []byte(`{"event":"charge.success","data":{"id":555002,"reference":"PAY-X","amount":100,"currency":"NGN"}}`)
	headers := http.Header{}
	headers.Set("x-paystack-signature", signPayload("wrong_secret", payload))

	err := webhookSvc.IngestWebhook(ctx, "paystack", payload, headers)
	if !errors.Is(err, paymentdomain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}

	// a rejected delivery must leave no trace
	assertCount(t, db, "SELECT COUNT(1) FROM payment_events", 0)
	assertCount(t, db, "SELECT COUNT(1) FROM reconciliation_errors", 0)
}

func TestIngestWebhookIgnoresUnhandledEvents(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	_, webhookSvc := newWebhookStack(t, db, 52)

	payload := []byte(`{"event":"subscription.create","data":{"id":99}}`)
	headers := http.Header{}
	headers.Set("x-paystack-signature", signPayload(testSecretKey, payload))

	if err := webhookSvc.IngestWebhook(ctx, "paystack", payload, headers); err != nil {
		t.Fatalf("expected ignored event to be dropped quietly, got %v", err)
	}
	assertCount(t, db, "SELECT COUNT(1) FROM payment_events", 0)
}

func TestIngestWebhookUnknownProvider(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	_, webhookSvc := newWebhookStack(t, db, 53)

	err := webhookSvc.IngestWebhook(ctx, "stripe", []byte(`{}`), http.Header{})
	if !errors.Is(err, paymentdomain.ErrProviderNotFound) {
		t.Fatalf("expected ErrProviderNotFound, got %v", err)
	}
}

func TestIngestWebhookInvalidPayload(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	_, webhookSvc := newWebhookStack(t, db, 54)

	err := webhookSvc.IngestWebhook(ctx, "paystack", []byte("not json"), http.Header{})
	if !errors.Is(err, paymentdomain.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
}

func newWebhookStack(t *testing.T, db *gorm.DB, nodeID int64) (*paymentservice.Service, *paymentwebhook.Service) {
	t.Helper()

	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	holder, err := config.NewStaticBillingConfigHolder(config.DefaultBillingConfig())
	if err != nil {
		t.Fatalf("billing config: %v", err)
	}
	ledger := ledgerservice.NewService(ledgerservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
	})
	paymentSvc := paymentservice.NewService(paymentservice.Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Repo:    paymentrepo.Provide(),
		Ledger:  ledger,
		Billing: holder,
	})
	webhookSvc := paymentwebhook.NewService(paymentwebhook.Params{
		Log:        zap.NewNop(),
		PaymentSvc: paymentSvc,
		Adapters:   adapters.NewRegistry(paystack.NewFactory()),
		Cfg: config.Config{
			Paystack: config.PaystackConfig{SecretKey: testSecretKey},
		},
	})
	return paymentSvc, webhookSvc
}

func signPayload(secret string, payload []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func seedSchool(t *testing.T, db *gorm.DB, id int64, name string) {
	t.Helper()

	now := time.Now().UTC()
	err := db.Exec(
		`INSERT INTO schools (id, name, code, contact_email, subaccount_code, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, name, fmt.Sprintf("SCH%d", id), "bursar@example.com", "", true, now, now,
	).Error
	if err != nil {
		t.Fatalf("seed school: %v", err)
	}
}

func seedStudent(t *testing.T, db *gorm.DB, id, schoolID int64, name, parentEmail string) {
	t.Helper()

	now := time.Now().UTC()
	err := db.Exec(
		`INSERT INTO students (id, school_id, full_name, class_level, parent_email, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, schoolID, name, "JSS1", parentEmail, true, now, now,
	).Error
	if err != nil {
		t.Fatalf("seed student: %v", err)
	}
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_wh_%d?mode=memory&cache=shared", time.Now().UnixNano())
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
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE students (
			id BIGINT PRIMARY KEY,
			school_id BIGINT NOT NULL,
			full_name TEXT NOT NULL,
			class_level TEXT,
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
		`CREATE TABLE payment_events (
			id BIGINT PRIMARY KEY,
			provider TEXT NOT NULL,
			provider_event_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			reference TEXT,
			amount BIGINT NOT NULL DEFAULT 0,
			fees BIGINT NOT NULL DEFAULT 0,
			currency TEXT,
			payload JSONB NOT NULL,
			received_at TIMESTAMP NOT NULL,
			processed_at TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX ux_payment_events_provider_event ON payment_events(provider, provider_event_id)`,
		`CREATE TABLE reconciliation_errors (
			id BIGINT PRIMARY KEY,
			payment_intent_id BIGINT,
			reference TEXT,
			code TEXT NOT NULL,
			detail TEXT,
			provider TEXT,
			provider_event_id TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE ledger_accounts (
			id BIGINT PRIMARY KEY,
			school_id BIGINT NOT NULL,
			code TEXT NOT NULL,
			name TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_ledger_accounts_school_code ON ledger_accounts(school_id, code)`,
		`CREATE TABLE ledger_entries (
			id BIGINT PRIMARY KEY,
			school_id BIGINT NOT NULL,
			source_type TEXT NOT NULL,
			source_id BIGINT NOT NULL,
			currency TEXT NOT NULL,
			occurred_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_ledger_entries_source ON ledger_entries(school_id, source_type, source_id)`,
		`CREATE TABLE ledger_entry_lines (
			id BIGINT PRIMARY KEY,
			ledger_entry_id BIGINT NOT NULL,
			account_id BIGINT NOT NULL,
			direction TEXT NOT NULL,
			currency TEXT NOT NULL,
			amount BIGINT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
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
