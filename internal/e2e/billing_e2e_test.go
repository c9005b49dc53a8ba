package e2e

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/edusuite/billing/internal/clock"
	"github.com/edusuite/billing/internal/config"
	discountrepo "github.com/edusuite/billing/internal/discount/repository"
	discountservice "github.com/edusuite/billing/internal/discount/service"
	feeschedulerepo "github.com/edusuite/billing/internal/feeschedule/repository"
	feescheduleservice "github.com/edusuite/billing/internal/feeschedule/service"
	invoicerepo "github.com/edusuite/billing/internal/invoice/repository"
	"github.com/edusuite/billing/internal/invoice/render"
	invoiceservice "github.com/edusuite/billing/internal/invoice/service"
	ledgerservice "github.com/edusuite/billing/internal/ledger/service"
	"github.com/edusuite/billing/internal/observability"
	"github.com/edusuite/billing/internal/payment/adapters"
	"github.com/edusuite/billing/internal/payment/adapters/paystack"
	paymentrepo "github.com/edusuite/billing/internal/payment/repository"
	paymentservice "github.com/edusuite/billing/internal/payment/service"
	paymentwebhook "github.com/edusuite/billing/internal/payment/webhook"
	"github.com/edusuite/billing/internal/providers/pdf"
	"github.com/edusuite/billing/internal/reference"
	schoolrepo "github.com/edusuite/billing/internal/school/repository"
	schoolservice "github.com/edusuite/billing/internal/school/service"
	"github.com/edusuite/billing/internal/server"
	subscriptionrepo "github.com/edusuite/billing/internal/subscription/repository"
	subscriptionservice "github.com/edusuite/billing/internal/subscription/service"
)

const testSecretKey = "sk_test_e2e_secret"

// testEnv hosts the whole billing surface over an in-memory database:
// real gin engine, real services, no HTTP mocks. The gateway client is
// left unwired, so only endpoints that stay inside the platform are
// exercised here.
type testEnv struct {
	db      *gorm.DB
	httpSrv *httptest.Server
	baseURL string
}

func newEnv(t *testing.T, nodeID int64) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := setupTestDB(t)

	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	holder, err := config.NewStaticBillingConfigHolder(config.DefaultBillingConfig())
	if err != nil {
		t.Fatalf("billing config: %v", err)
	}
	log := zap.NewNop()
	cfg := config.Config{
		Environment: "test",
		Paystack:    config.PaystackConfig{SecretKey: testSecretKey},
	}

	schoolRepo := schoolrepo.NewRepository(db)
	schools := schoolservice.NewService(log, schoolRepo, reference.NewRepository(), node)
	fees := feescheduleservice.NewService(db, log, feeschedulerepo.NewRepository(db), schoolRepo, node)
	discounts := discountservice.NewService(log, discountrepo.NewRepository(db), clock.NewSystemClock(), node)
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
		Clock:   clock.NewSystemClock(),
		Repo:    subscriptionrepo.Provide(),
		Schools: schools,
	})
	webhookSvc := paymentwebhook.NewService(paymentwebhook.Params{
		Log:        log,
		PaymentSvc: payments,
		Adapters:   adapters.NewRegistry(paystack.NewFactory()),
		Cfg:        cfg,
	})

	engine := server.NewEngine(observability.Config{}, nil)
	server.NewServer(server.ServerParams{
		Gin:             engine,
		Cfg:             cfg,
		Billing:         holder,
		SchoolSvc:       schools,
		FeeSvc:          fees,
		DiscountSvc:     discounts,
		InvoiceSvc:      invoices,
		PaymentSvc:      payments,
		WebhookSvc:      webhookSvc,
		SubscriptionSvc: subscriptions,
		LedgerSvc:       ledger,
		PDFSvc:          pdf.New(),
	})

	httpSrv := httptest.NewServer(engine)
	t.Cleanup(httpSrv.Close)

	return &testEnv{db: db, httpSrv: httpSrv, baseURL: httpSrv.URL}
}

func TestE2E_HealthCheck(t *testing.T) {
	env := newEnv(t, 80)

	resp, err := http.Get(env.baseURL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
}

func TestE2E_TermFeesToSettlement(t *testing.T) {
	env := newEnv(t, 81)

	schoolID := env.createSchool(t, "Sunrise Academy")
	studentID := env.registerStudent(t, schoolID, map[string]any{
		"full_name":    "Ada Obi",
		"class_level":  "JSS1",
		"parent_email": "ada.parent@example.com",
	})
	// Due in a week, inside the early-bird window, so no discount for
	// a regular day student.
	env.createFeeStructure(t, schoolID, "2026-t1", 7)

	quote := env.getJSON(t, fmt.Sprintf("%s/api/schools/%s/fee-structures/%s/quote?student_id=%s",
		env.baseURL, schoolID, "2026-t1", studentID))
	if got := quote["gross_amount"].(float64); got != 5_000_000 {
		t.Fatalf("expected gross 5000000, got %v", got)
	}
	if got := quote["payable"].(float64); got != 5_000_000 {
		t.Fatalf("expected payable to equal gross, got %v", got)
	}

	issued := env.postJSON(t, env.baseURL+"/api/invoices/from-fees", map[string]any{
		"school_id":     schoolID,
		"student_id":    studentID,
		"structure_key": "2026-t1",
	}, http.StatusOK)
	invoice := issued["invoice"].(map[string]any)
	intent := issued["intent"].(map[string]any)
	invoiceID := invoice["id"].(string)
	payRef := intent["reference"].(string)

	if invoice["status"].(string) != "draft" {
		t.Fatalf("expected draft invoice, got %v", invoice["status"])
	}
	if len(payRef) < 4 || payRef[:4] != "INV-" {
		t.Fatalf("expected INV reference series, got %s", payRef)
	}

	// The split is locked in at intent creation and must add back up
	// to the amount due exactly.
	amountDue := int64(intent["amount_due"].(float64))
	split := int64(intent["platform_fee"].(float64)) +
		int64(intent["gateway_fee"].(float64)) +
		int64(intent["net_amount"].(float64))
	if split != amountDue {
		t.Fatalf("fee split does not reassemble: %d != %d", split, amountDue)
	}

	env.postJSON(t, fmt.Sprintf("%s/api/schools/%s/invoices/%s/send", env.baseURL, schoolID, invoiceID),
		nil, http.StatusOK)

	payload := chargeSuccessPayload(910001, payRef, amountDue)
	env.deliverWebhook(t, payload, signPayload(testSecretKey, payload), http.StatusOK)

	settled := env.getJSON(t, fmt.Sprintf("%s/api/schools/%s/invoices/%s", env.baseURL, schoolID, invoiceID))
	if got := settled["invoice"].(map[string]any)["status"].(string); got != "paid" {
		t.Fatalf("expected paid invoice, got %s", got)
	}

	// Redelivery of the same event acknowledges without a second
	// transition or a second ledger posting.
	env.deliverWebhook(t, payload, signPayload(testSecretKey, payload), http.StatusOK)
	assertCount(t, env.db, "SELECT COUNT(1) FROM ledger_entries", 1)
	assertCount(t, env.db, "SELECT COUNT(1) FROM payment_events", 1)

	balances := env.getList(t, fmt.Sprintf("%s/api/schools/%s/ledger/balances", env.baseURL, schoolID))
	if len(balances) == 0 {
		t.Fatalf("expected ledger balances after settlement")
	}
}

func TestE2E_StaffChildFullWaiver(t *testing.T) {
	env := newEnv(t, 82)

	schoolID := env.createSchool(t, "Golden Gate College")
	studentID := env.registerStudent(t, schoolID, map[string]any{
		"full_name":    "Bola Hassan",
		"class_level":  "JSS1",
		"staff_child":  true,
		"parent_email": "bola.parent@example.com",
	})
	env.createFeeStructure(t, schoolID, "2026-t1", 7)

	issued := env.postJSON(t, env.baseURL+"/api/invoices/from-fees", map[string]any{
		"school_id":     schoolID,
		"student_id":    studentID,
		"structure_key": "2026-t1",
	}, http.StatusOK)

	invoice := issued["invoice"].(map[string]any)
	if got := invoice["status"].(string); got != "paid" {
		t.Fatalf("expected waived invoice issued as paid, got %s", got)
	}
	if got := invoice["total_amount"].(float64); got != 0 {
		t.Fatalf("expected zero total after full waiver, got %v", got)
	}
	if _, hasIntent := issued["intent"]; hasIntent {
		t.Fatalf("expected no payment intent for a fully waived invoice")
	}
	assertCount(t, env.db, "SELECT COUNT(1) FROM payment_intents", 0)
}

func TestE2E_AmountMismatchGoesToOperations(t *testing.T) {
	env := newEnv(t, 83)

	schoolID := env.createSchool(t, "Unity High")
	studentID := env.registerStudent(t, schoolID, map[string]any{
		"full_name":    "Chi Eze",
		"class_level":  "SS2",
		"parent_email": "chi.parent@example.com",
	})

	created := env.postJSON(t, env.baseURL+"/api/payment-intents", map[string]any{
		"school_id":  schoolID,
		"student_id": studentID,
		"amount_due": 2_000_000,
	}, http.StatusOK)
	payRef := created["reference"].(string)

	payload := chargeSuccessPayload(910002, payRef, 1_500_000)
	env.deliverWebhook(t, payload, signPayload(testSecretKey, payload), http.StatusOK)

	intent := env.getJSON(t, env.baseURL+"/api/payment-intents/"+created["id"].(string))
	if got := intent["status"].(string); got != "failed" {
		t.Fatalf("expected failed intent after mismatch, got %s", got)
	}

	recErrs := env.getList(t, env.baseURL+"/api/reconciliation-errors")
	if len(recErrs) != 1 {
		t.Fatalf("expected one reconciliation error, got %d", len(recErrs))
	}
	if code := recErrs[0].(map[string]any)["code"].(string); code != "amount_mismatch" {
		t.Fatalf("expected amount_mismatch, got %s", code)
	}
}

func TestE2E_WebhookBadSignatureRejected(t *testing.T) {
	env := newEnv(t, 84)

	payload := chargeSuccessPayload(910003, "PAY-MISSING", 1_000)
	env.deliverWebhook(t, payload, signPayload("wrong_secret", payload), http.StatusUnauthorized)

	assertCount(t, env.db, "SELECT COUNT(1) FROM payment_events", 0)
	assertCount(t, env.db, "SELECT COUNT(1) FROM reconciliation_errors", 0)
}

func (e *testEnv) createSchool(t *testing.T, name string) string {
	t.Helper()
	data := e.postJSON(t, e.baseURL+"/api/schools", map[string]any{
		"name":          name,
		"contact_email": "bursar@school.example",
	}, http.StatusOK)
	return data["id"].(string)
}

func (e *testEnv) registerStudent(t *testing.T, schoolID string, req map[string]any) string {
	t.Helper()
	data := e.postJSON(t, fmt.Sprintf("%s/api/schools/%s/students", e.baseURL, schoolID), req, http.StatusOK)
	return data["id"].(string)
}

// createFeeStructure posts a three-line term structure totalling
// 5,000,000 kobo for day students.
func (e *testEnv) createFeeStructure(t *testing.T, schoolID, key string, dueInDays int) {
	t.Helper()
	e.postJSON(t, fmt.Sprintf("%s/api/schools/%s/fee-structures", e.baseURL, schoolID), map[string]any{
		"kind":   "term",
		"key":    key,
		"name":   "First Term",
		"due_at": time.Now().UTC().AddDate(0, 0, dueInDays).Format(time.RFC3339),
		"items": []map[string]any{
			{"category": "tuition", "category_rank": 1, "amount": 4_500_000},
			{"category": "development levy", "category_rank": 2, "amount": 500_000},
			{"category": "boarding", "category_rank": 3, "boarders_only": true, "amount": 1_500_000},
		},
	}, http.StatusOK)
}

func (e *testEnv) deliverWebhook(t *testing.T, payload []byte, signature string, wantStatus int) {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, e.baseURL+"/webhooks/paystack", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("build webhook request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-paystack-signature", signature)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("deliver webhook: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("webhook status %d, want %d: %s", resp.StatusCode, wantStatus, string(body))
	}
}

func (e *testEnv) postJSON(t *testing.T, url string, req map[string]any, wantStatus int) map[string]any {
	t.Helper()

	var body io.Reader
	if req != nil {
		raw, err := json.Marshal(req)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		body = bytes.NewReader(raw)
	}

	resp, err := http.Post(url, "application/json", body)
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != wantStatus {
		t.Fatalf("post %s: status %d, want %d: %s", url, resp.StatusCode, wantStatus, string(raw))
	}

	var payload struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("decode %s response: %v", url, err)
	}
	return payload.Data
}

func (e *testEnv) getJSON(t *testing.T, url string) map[string]any {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get %s: status %d: %s", url, resp.StatusCode, string(raw))
	}

	var payload struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("decode %s response: %v", url, err)
	}
	return payload.Data
}

func (e *testEnv) getList(t *testing.T, url string) []any {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get %s: status %d: %s", url, resp.StatusCode, string(raw))
	}

	var payload struct {
		Data []any `json:"data"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("decode %s response: %v", url, err)
	}
	return payload.Data
}

func chargeSuccessPayload(eventID int64, reference string, amount int64) []byte {
	return []byte(fmt.Sprintf(
		`{"event":"charge.success","data":{"id":%d,"reference":%q,"amount":%d,"fees":24000,"currency":"NGN","channel":"card","status":"success","gateway_response":"Approved","paid_at":"2026-03-02T10:00:00.000Z"}}`,
		eventID, reference, amount,
	))
}

func signPayload(secret string, payload []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
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

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_e2e_%d?mode=memory&cache=shared", time.Now().UnixNano())
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
		`CREATE UNIQUE INDEX ux_schools_code ON schools(code)`,
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
		`CREATE TABLE fee_structures (
			id BIGINT PRIMARY KEY,
			school_id BIGINT NOT NULL,
			kind TEXT NOT NULL,
			key TEXT NOT NULL,
			name TEXT NOT NULL,
			currency TEXT NOT NULL,
			due_at TIMESTAMP NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_fee_structures_school_key ON fee_structures(school_id, key)`,
		`CREATE TABLE fee_items (
			id BIGINT PRIMARY KEY,
			fee_structure_id BIGINT NOT NULL,
			category TEXT NOT NULL,
			category_rank INTEGER NOT NULL,
			class_level TEXT,
			boarders_only BOOLEAN NOT NULL DEFAULT FALSE,
			amount BIGINT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE discount_policies (
			id BIGINT PRIMARY KEY,
			school_id BIGINT NOT NULL,
			staff_waiver_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			staff_waiver_percent REAL NOT NULL DEFAULT 100,
			staff_waiver_cap BIGINT NOT NULL DEFAULT 0,
			early_bird_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			early_bird_days INTEGER NOT NULL DEFAULT 30,
			early_bird_percent REAL NOT NULL DEFAULT 10,
			scholarship_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_discount_policies_school ON discount_policies(school_id)`,
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
		`CREATE TABLE invoice_items (
			id BIGINT PRIMARY KEY,
			invoice_id BIGINT NOT NULL,
			category TEXT NOT NULL,
			category_rank INTEGER NOT NULL DEFAULT 0,
			amount BIGINT NOT NULL,
			created_at TIMESTAMP NOT NULL
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
		`CREATE TABLE payment_reminders (
			id BIGINT PRIMARY KEY,
			payment_intent_id BIGINT NOT NULL,
			days_before INTEGER NOT NULL,
			sent_at TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_payment_reminders_intent_days ON payment_reminders(payment_intent_id, days_before)`,
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
