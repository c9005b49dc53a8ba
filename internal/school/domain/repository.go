package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// SubaccountDetails is the settlement destination a school collects
// into, as returned by the gateway when the subaccount is provisioned.
type SubaccountDetails struct {
	SubaccountCode string
	BankCode       string
	AccountNumber  string
	AccountName    string
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateSchool(ctx context.Context, school School) error
	GetSchool(ctx context.Context, id snowflake.ID) (*School, error)
	GetSchoolByCode(ctx context.Context, code string) (*School, error)
	ListSchools(ctx context.Context) ([]School, error)
	// UpdateSubaccount stores the provisioned settlement destination.
	UpdateSubaccount(ctx context.Context, id snowflake.ID, sub SubaccountDetails, at time.Time) (int64, error)
	CreateStudent(ctx context.Context, student Student) error
	GetStudent(ctx context.Context, schoolID snowflake.ID, id snowflake.ID) (*Student, error)
}
