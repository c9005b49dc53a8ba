package reference

import (
	"context"
	"sort"
	"strings"

	"github.com/edusuite/billing/internal/reference/domain"
)

// The bank registry is the gateway's fixed code catalogue, so it ships as
// static data instead of a database table.
var banks = map[string]string{
	"044":    "Access Bank",
	"023":    "Citibank Nigeria",
	"050":    "Ecobank Nigeria",
	"070":    "Fidelity Bank",
	"011":    "First Bank of Nigeria",
	"214":    "First City Monument Bank",
	"058":    "Guaranty Trust Bank",
	"030":    "Heritage Bank",
	"301":    "Jaiz Bank",
	"082":    "Keystone Bank",
	"50211":  "Kuda Microfinance Bank",
	"999992": "OPay Digital Services",
	"999991": "PalmPay",
	"076":    "Polaris Bank",
	"101":    "Providus Bank",
	"221":    "Stanbic IBTC Bank",
	"068":    "Standard Chartered Bank",
	"232":    "Sterling Bank",
	"032":    "Union Bank of Nigeria",
	"033":    "United Bank For Africa",
	"215":    "Unity Bank",
	"035":    "Wema Bank",
	"057":    "Zenith Bank",
}

var currencies = map[string]domain.Currency{
	"NGN": {Code: "NGN", Name: "Nigerian Naira", Symbol: "₦", MinorUnit: 2},
}

type repository struct{}

func NewRepository() domain.Repository {
	return &repository{}
}

func (r *repository) ListBanks(_ context.Context) ([]domain.Bank, error) {
	out := make([]domain.Bank, 0, len(banks))
	for code, name := range banks {
		out = append(out, domain.Bank{Code: code, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *repository) GetBank(_ context.Context, code string) (*domain.Bank, error) {
	name, ok := banks[strings.TrimSpace(code)]
	if !ok {
		return nil, nil
	}
	return &domain.Bank{Code: strings.TrimSpace(code), Name: name}, nil
}

func (r *repository) ListCurrencies(_ context.Context) ([]domain.Currency, error) {
	out := make([]domain.Currency, 0, len(currencies))
	for _, currency := range currencies {
		out = append(out, currency)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *repository) GetCurrency(_ context.Context, code string) (*domain.Currency, error) {
	currency, ok := currencies[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return nil, nil
	}
	return &currency, nil
}
