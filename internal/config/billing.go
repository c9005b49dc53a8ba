package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// BillingConfig holds the tunable billing constants. Amounts are kobo,
// rate fields are fractions (0.015 means 1.5%).
type BillingConfig struct {
	CurrencyCode         string  `mapstructure:"currencyCode"`
	PlatformFeePercent   float64 `mapstructure:"platformFeePercent"`
	GatewayFeePercent    float64 `mapstructure:"gatewayFeePercent"`
	GatewayFixedFee      int64   `mapstructure:"gatewayFixedFee"`
	GatewayFeeCap        int64   `mapstructure:"gatewayFeeCap"`
	AllowPartialPayments bool    `mapstructure:"allowPartialPayments"`
	AutoMarkOverdueDays  int     `mapstructure:"autoMarkOverdueDays"`
	PaymentReminderDays  []int   `mapstructure:"paymentReminderDays"`
	InvoicePrefix        string  `mapstructure:"invoicePrefix"`
	ApplicationPrefix    string  `mapstructure:"applicationPrefix"`
	AdmissionPrefix      string  `mapstructure:"admissionPrefix"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		CurrencyCode:         "NGN",
		PlatformFeePercent:   0.015,
		GatewayFeePercent:    0.015,
		GatewayFixedFee:      1_500,   // ₦15
		GatewayFeeCap:        200_000, // ₦2,000; 0 disables the cap
		AllowPartialPayments: false,
		AutoMarkOverdueDays:  7,
		PaymentReminderDays:  []int{3, 1},
		InvoicePrefix:        "INV",
		ApplicationPrefix:    "APP",
		AdmissionPrefix:      "ADM",
	}
}

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

func NewBillingConfigHolder() (*BillingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/edusuite/config") // Volume-mounted config
	v.AddConfigPath("/etc/edusuite")            // System config
	v.AddConfigPath(".")                        // Current directory (dev mode)

	v.SetEnvPrefix("EDUSUITE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingConfig()
	v.SetDefault("billing.currencyCode", defaults.CurrencyCode)
	v.SetDefault("billing.platformFeePercent", defaults.PlatformFeePercent)
	v.SetDefault("billing.gatewayFeePercent", defaults.GatewayFeePercent)
	v.SetDefault("billing.gatewayFixedFee", defaults.GatewayFixedFee)
	v.SetDefault("billing.gatewayFeeCap", defaults.GatewayFeeCap)
	v.SetDefault("billing.allowPartialPayments", defaults.AllowPartialPayments)
	v.SetDefault("billing.autoMarkOverdueDays", defaults.AutoMarkOverdueDays)
	v.SetDefault("billing.paymentReminderDays", defaults.PaymentReminderDays)
	v.SetDefault("billing.invoicePrefix", defaults.InvoicePrefix)
	v.SetDefault("billing.applicationPrefix", defaults.ApplicationPrefix)
	v.SetDefault("billing.admissionPrefix", defaults.AdmissionPrefix)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// no config file: defaults carry the full configuration
	}

	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingConfig
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Printf("[billing-config] reload failed: %v", err)
			return
		}
		if err := validateBillingConfig(updated); err != nil {
			log.Printf("[billing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[billing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticBillingConfigHolder wraps a fixed config without file
// watching. Tests and one-shot tools use this instead of the viper
// backed holder.
func NewStaticBillingConfigHolder(cfg BillingConfig) (*BillingConfigHolder, error) {
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}
	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)
	return holder, nil
}

func (h *BillingConfigHolder) Get() BillingConfig {
	return h.current.Load().(BillingConfig)
}

func validateBillingConfig(cfg BillingConfig) error {
	if len(cfg.CurrencyCode) != 3 {
		return errors.New("billing.currencyCode must be a 3-letter code")
	}
	if cfg.PlatformFeePercent < 0 || cfg.PlatformFeePercent > 1 {
		return errors.New("billing.platformFeePercent must be within [0, 1]")
	}
	if cfg.GatewayFeePercent < 0 || cfg.GatewayFeePercent > 1 {
		return errors.New("billing.gatewayFeePercent must be within [0, 1]")
	}
	if cfg.GatewayFixedFee < 0 {
		return errors.New("billing.gatewayFixedFee cannot be negative")
	}
	if cfg.GatewayFeeCap < 0 {
		return errors.New("billing.gatewayFeeCap cannot be negative")
	}
	if cfg.AutoMarkOverdueDays < 1 {
		return errors.New("billing.autoMarkOverdueDays must be at least 1")
	}
	for _, days := range cfg.PaymentReminderDays {
		if days < 0 {
			return errors.New("billing.paymentReminderDays cannot contain negative values")
		}
	}
	if strings.TrimSpace(cfg.InvoicePrefix) == "" ||
		strings.TrimSpace(cfg.ApplicationPrefix) == "" ||
		strings.TrimSpace(cfg.AdmissionPrefix) == "" {
		return errors.New("billing invoice prefixes cannot be empty")
	}
	return nil
}
