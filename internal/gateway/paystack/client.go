// Package paystack is the REST client for the Paystack gateway. It
// covers the calls billing needs: checkout initialization, transaction
// verification, bank lookups, subaccount provisioning and transfers.
// All amounts are minor units (kobo).
package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/edusuite/billing/internal/config"
)

// DefaultChannels are the payment channels offered at checkout.
var DefaultChannels = []string{"card", "bank", "ussd", "qr", "mobile_money"}

// APIError is a non-2xx response from Paystack.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paystack: %s (http %d)", e.Message, e.StatusCode)
}

type Client struct {
	baseURL   string
	secretKey string
	client    *http.Client
	log       *zap.Logger
}

// NewFromConfig builds the client, or returns nil when no secret key
// is configured. Callers treat a nil client as "gateway disabled".
func NewFromConfig(cfg config.Config, log *zap.Logger) *Client {
	if cfg.Paystack.SecretKey == "" {
		return nil
	}
	return NewClient(cfg.Paystack.BaseURL, cfg.Paystack.SecretKey, log)
}

func NewClient(baseURL, secretKey string, log *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = "https://api.paystack.co"
	}
	return &Client{
		baseURL:   baseURL,
		secretKey: secretKey,
		client:    &http.Client{Timeout: 30 * time.Second},
		log:       log.Named("gateway.paystack"),
	}
}

var Module = fx.Module("gateway.paystack",
	fx.Provide(NewFromConfig),
)

type InitializeRequest struct {
	Email       string
	Amount      int64
	Reference   string
	Currency    string
	CallbackURL string
	Channels    []string
	// Subaccount routes the settlement split. When set, the
	// subaccount bears the transaction charge.
	Subaccount string
	Metadata   map[string]any
}

type InitializeResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// InitializeTransaction opens a checkout session and returns the
// authorization URL the payer is redirected to.
func (c *Client) InitializeTransaction(ctx context.Context, req InitializeRequest) (*InitializeResponse, error) {
	if req.Email == "" {
		return nil, fmt.Errorf("paystack: email is required")
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("paystack: amount must be positive")
	}
	if req.Reference == "" {
		return nil, fmt.Errorf("paystack: reference is required")
	}

	channels := req.Channels
	if len(channels) == 0 {
		channels = DefaultChannels
	}
	body := map[string]any{
		"email":     req.Email,
		"amount":    req.Amount,
		"reference": req.Reference,
		"channels":  channels,
	}
	if req.Currency != "" {
		body["currency"] = req.Currency
	}
	if req.CallbackURL != "" {
		body["callback_url"] = req.CallbackURL
	}
	if req.Subaccount != "" {
		body["subaccount"] = req.Subaccount
		body["bearer"] = "subaccount"
	}
	if len(req.Metadata) > 0 {
		body["metadata"] = req.Metadata
	}

	var out InitializeResponse
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type TransactionData struct {
	ID              int64  `json:"id"`
	Status          string `json:"status"`
	Reference       string `json:"reference"`
	Amount          int64  `json:"amount"`
	Fees            int64  `json:"fees"`
	Currency        string `json:"currency"`
	Channel         string `json:"channel"`
	GatewayResponse string `json:"gateway_response"`
	PaidAt          string `json:"paid_at"`
}

// VerifyTransaction fetches the gateway's view of a transaction. Used
// by reconciliation tooling to cross-check webhook data.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*TransactionData, error) {
	if reference == "" {
		return nil, fmt.Errorf("paystack: reference is required")
	}

	var out TransactionData
	if err := c.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type Bank struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// ListBanks returns the settlement banks for a currency (NGN default).
func (c *Client) ListBanks(ctx context.Context, currency string) ([]Bank, error) {
	if currency == "" {
		currency = "NGN"
	}

	var out []Bank
	if err := c.do(ctx, http.MethodGet, "/bank?currency="+url.QueryEscape(currency), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type AccountResolution struct {
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
}

// ResolveAccount validates a bank account number against the bank's
// records before onboarding a school's settlement details.
func (c *Client) ResolveAccount(ctx context.Context, accountNumber, bankCode string) (*AccountResolution, error) {
	if accountNumber == "" || bankCode == "" {
		return nil, fmt.Errorf("paystack: account number and bank code are required")
	}

	query := url.Values{}
	query.Set("account_number", accountNumber)
	query.Set("bank_code", bankCode)

	var out AccountResolution
	if err := c.do(ctx, http.MethodGet, "/bank/resolve?"+query.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type SubaccountRequest struct {
	BusinessName  string
	BankCode      string
	AccountNumber string
	// PercentageCharge is the platform share Paystack applies when
	// splitting by subaccount.
	PercentageCharge float64
}

type Subaccount struct {
	SubaccountCode string `json:"subaccount_code"`
	BusinessName   string `json:"business_name"`
	AccountNumber  string `json:"account_number"`
	SettlementBank string `json:"settlement_bank"`
}

// CreateSubaccount provisions the settlement split account for a
// school.
func (c *Client) CreateSubaccount(ctx context.Context, req SubaccountRequest) (*Subaccount, error) {
	if req.BusinessName == "" || req.BankCode == "" || req.AccountNumber == "" {
		return nil, fmt.Errorf("paystack: business name, bank code and account number are required")
	}

	body := map[string]any{
		"business_name":     req.BusinessName,
		"settlement_bank":   req.BankCode,
		"account_number":    req.AccountNumber,
		"percentage_charge": req.PercentageCharge,
	}

	var out Subaccount
	if err := c.do(ctx, http.MethodPost, "/subaccount", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type TransferRecipientRequest struct {
	Name          string
	AccountNumber string
	BankCode      string
	Currency      string
}

type TransferRecipient struct {
	RecipientCode string `json:"recipient_code"`
}

func (c *Client) CreateTransferRecipient(ctx context.Context, req TransferRecipientRequest) (*TransferRecipient, error) {
	if req.Name == "" || req.AccountNumber == "" || req.BankCode == "" {
		return nil, fmt.Errorf("paystack: name, account number and bank code are required")
	}

	currency := req.Currency
	if currency == "" {
		currency = "NGN"
	}
	body := map[string]any{
		"type":           "nuban",
		"name":           req.Name,
		"account_number": req.AccountNumber,
		"bank_code":      req.BankCode,
		"currency":       currency,
	}

	var out TransferRecipient
	if err := c.do(ctx, http.MethodPost, "/transferrecipient", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type TransferRequest struct {
	Amount        int64
	RecipientCode string
	Reference     string
	Reason        string
}

type Transfer struct {
	TransferCode string `json:"transfer_code"`
	Status       string `json:"status"`
	Reference    string `json:"reference"`
}

// InitiateTransfer pays a school's balance out to its bank account.
func (c *Client) InitiateTransfer(ctx context.Context, req TransferRequest) (*Transfer, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("paystack: amount must be positive")
	}
	if req.RecipientCode == "" {
		return nil, fmt.Errorf("paystack: recipient code is required")
	}

	body := map[string]any{
		"source":    "balance",
		"amount":    req.Amount,
		"recipient": req.RecipientCode,
	}
	if req.Reference != "" {
		body["reference"] = req.Reference
	}
	if req.Reason != "" {
		body["reason"] = req.Reason
	}

	var out Transfer
	if err := c.do(ctx, http.MethodPost, "/transfer", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type apiEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("paystack: encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("paystack: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("paystack: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("paystack: read response: %w", err)
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("paystack: decode response (http %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices || !envelope.Status {
		c.log.Warn("paystack.request_failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status_code", resp.StatusCode),
			zap.String("message", envelope.Message),
		)
		return &APIError{StatusCode: resp.StatusCode, Message: envelope.Message}
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("paystack: decode data: %w", err)
		}
	}
	return nil
}
