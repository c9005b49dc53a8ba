package reference

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetBankKnownCode(t *testing.T) {
	repo := NewRepository()

	bank, err := repo.GetBank(context.Background(), "058")
	require.NoError(t, err)
	require.NotNil(t, bank)
	assert.Equal(t, "Guaranty Trust Bank", bank.Name)
}

func TestGetBankUnknownCode(t *testing.T) {
	repo := NewRepository()

	bank, err := repo.GetBank(context.Background(), "000")
	require.NoError(t, err)
	assert.Nil(t, bank)
}

func TestListBanksSortedByName(t *testing.T) {
	repo := NewRepository()

	banks, err := repo.ListBanks(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, banks)
	for i := 1; i < len(banks); i++ {
		assert.LessOrEqual(t, banks[i-1].Name, banks[i].Name)
	}
}

func TestGetCurrencyNormalizesCode(t *testing.T) {
	repo := NewRepository()

	currency, err := repo.GetCurrency(context.Background(), " ngn ")
	require.NoError(t, err)
	require.NotNil(t, currency)
	assert.Equal(t, "NGN", currency.Code)
	assert.EqualValues(t, 2, currency.MinorUnit)
}
