// Package feesplit splits a gross payment into the gateway fee, the
// platform fee, and the school's net settlement.
package feesplit

import (
	"errors"

	"github.com/edusuite/billing/internal/config"
	"github.com/edusuite/billing/pkg/money"
)

var ErrNegativeAmount = errors.New("negative_amount")

// Split is the three-way breakdown of a gross amount. All values are kobo
// and PlatformFee + GatewayFee + Net == Gross exactly.
type Split struct {
	Gross       int64 `json:"gross"`
	GatewayFee  int64 `json:"gateway_fee"`
	PlatformFee int64 `json:"platform_fee"`
	Net         int64 `json:"net"`
}

// Compute splits gross under cfg. Fees round half-up to the kobo and the
// residual lands in Net, which keeps the sum exact.
func Compute(gross int64, cfg config.BillingConfig) (Split, error) {
	if gross <= 0 {
		return Split{}, ErrNegativeAmount
	}

	gatewayFee := money.FractionOf(gross, cfg.GatewayFeePercent) + cfg.GatewayFixedFee
	if cfg.GatewayFeeCap > 0 && gatewayFee > cfg.GatewayFeeCap {
		gatewayFee = cfg.GatewayFeeCap
	}
	platformFee := money.FractionOf(gross, cfg.PlatformFeePercent)

	return Split{
		Gross:       gross,
		GatewayFee:  gatewayFee,
		PlatformFee: platformFee,
		Net:         gross - gatewayFee - platformFee,
	}, nil
}
