package domain

import "errors"

var (
	ErrInvalidProvider       = errors.New("invalid_provider")
	ErrProviderNotFound      = errors.New("provider_not_found")
	ErrInvalidConfig         = errors.New("invalid_provider_config")
	ErrInvalidPayload        = errors.New("invalid_payload")
	ErrInvalidSignature      = errors.New("invalid_signature")
	ErrInvalidEvent          = errors.New("invalid_event")
	ErrInvalidAmount         = errors.New("invalid_amount")
	ErrInvalidCurrency       = errors.New("invalid_currency")
	ErrEventIgnored          = errors.New("event_ignored")
	ErrEventAlreadyProcessed = errors.New("event_already_processed")

	ErrInvalidIntent        = errors.New("invalid_payment_intent")
	ErrIntentNotFound       = errors.New("payment_intent_not_found")
	ErrDuplicateReference   = errors.New("duplicate_reference")
	ErrUnknownReference     = errors.New("unknown_reference")
	ErrAlreadyFinalized     = errors.New("intent_already_finalized")
	ErrAmountMismatch       = errors.New("amount_mismatch")
	ErrReferenceLocked      = errors.New("reference_locked")
	ErrGatewayNotConfigured = errors.New("gateway_not_configured")
)
