package paystack

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	paymentdomain "github.com/edusuite/billing/internal/payment/domain"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return "paystack"
}

// NewAdapter prefers the dedicated webhook secret; Paystack signs
// webhook deliveries with the account's secret key when none is set.
func (f *Factory) NewAdapter(cfg paymentdomain.AdapterConfig) (paymentdomain.PaymentAdapter, error) {
	secret := strings.TrimSpace(cfg.WebhookSecret)
	if secret == "" {
		secret = strings.TrimSpace(cfg.SecretKey)
	}
	if secret == "" {
		return nil, paymentdomain.ErrInvalidConfig
	}
	return &Adapter{webhookSecret: secret}, nil
}

type Adapter struct {
	webhookSecret string
}

// Verify checks the x-paystack-signature header, an HMAC-SHA512 hex
// digest of the raw request body.
func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	signature := strings.ToLower(strings.TrimSpace(headers.Get("x-paystack-signature")))
	if signature == "" {
		return paymentdomain.ErrInvalidSignature
	}

	mac := hmac.New(sha512.New, []byte(a.webhookSecret))
	_, _ = mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return paymentdomain.ErrInvalidSignature
	}
	return nil
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*paymentdomain.PaymentEvent, error) {
	var event paystackEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}

	var eventType string
	switch strings.TrimSpace(event.Event) {
	case "charge.success":
		eventType = paymentdomain.EventTypeChargeSucceeded
	case "charge.failed":
		eventType = paymentdomain.EventTypeChargeFailed
	case "transfer.success":
		eventType = paymentdomain.EventTypeTransferSucceeded
	case "transfer.failed", "transfer.reversed":
		eventType = paymentdomain.EventTypeTransferFailed
	default:
		return nil, paymentdomain.ErrEventIgnored
	}

	reference := strings.TrimSpace(event.Data.Reference)
	eventID := providerEventID(event, reference)
	if eventID == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	gatewayStatus := strings.TrimSpace(event.Data.GatewayResponse)
	if gatewayStatus == "" {
		gatewayStatus = strings.TrimSpace(event.Data.Status)
	}

	return &paymentdomain.PaymentEvent{
		Provider:        "paystack",
		ProviderEventID: eventID,
		Type:            eventType,
		Reference:       reference,
		Amount:          event.Data.Amount,
		Fees:            event.Data.Fees,
		Currency:        strings.ToUpper(strings.TrimSpace(event.Data.Currency)),
		Channel:         strings.TrimSpace(event.Data.Channel),
		GatewayStatus:   gatewayStatus,
		OccurredAt:      occurredAt(event.Data.PaidAt),
		RawPayload:      sanitizePayload(payload),
	}, nil
}

type paystackEvent struct {
	Event string       `json:"event"`
	Data  paystackData `json:"data"`
}

// Amounts arrive in kobo already; no unit conversion happens here.
type paystackData struct {
	ID              json.Number `json:"id"`
	Reference       string      `json:"reference"`
	Amount          int64       `json:"amount"`
	Fees            int64       `json:"fees"`
	Currency        string      `json:"currency"`
	Channel         string      `json:"channel"`
	Status          string      `json:"status"`
	GatewayResponse string      `json:"gateway_response"`
	PaidAt          string      `json:"paid_at"`
	TransferCode    string      `json:"transfer_code"`
}

// providerEventID builds a replay-stable identifier. Paystack does not
// ship a distinct event id, so the event name is combined with the
// transaction id: a success and a later failure on the same
// transaction stay distinct while redeliveries collapse.
func providerEventID(event paystackEvent, reference string) string {
	id := strings.TrimSpace(event.Data.ID.String())
	if id == "" || id == "0" {
		id = strings.TrimSpace(event.Data.TransferCode)
	}
	if id == "" {
		id = reference
	}
	if id == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", strings.TrimSpace(event.Event), id)
}

func occurredAt(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Now().UTC()
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Now().UTC()
	}
	return parsed.UTC()
}

// sanitizePayload strips card authorization and customer PII from the
// stored copy of the webhook. The original bytes stay untouched for
// signature checks, which always run first.
func sanitizePayload(payload []byte) []byte {
	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return payload
	}
	data, ok := doc["data"].(map[string]any)
	if !ok {
		return payload
	}
	delete(data, "authorization")
	delete(data, "customer")
	delete(data, "log")

	sanitized, err := json.Marshal(doc)
	if err != nil {
		return payload
	}
	return sanitized
}
