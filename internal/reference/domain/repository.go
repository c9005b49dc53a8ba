package domain

import "context"

type Repository interface {
	ListBanks(ctx context.Context) ([]Bank, error)
	GetBank(ctx context.Context, code string) (*Bank, error)
	ListCurrencies(ctx context.Context) ([]Currency, error)
	GetCurrency(ctx context.Context, code string) (*Currency, error)
}
