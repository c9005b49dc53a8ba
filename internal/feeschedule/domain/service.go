package domain

import (
	"context"
	"errors"
	"time"

	schooldomain "github.com/edusuite/billing/internal/school/domain"
)

type Service interface {
	// Resolve returns the ordered fee lines the student owes under the
	// school's structure for key (a term code or application type).
	Resolve(ctx context.Context, schoolID string, key string, student schooldomain.StudentContext) ([]FeeLine, error)
	CreateStructure(ctx context.Context, schoolID string, req CreateStructureRequest) (*FeeStructure, error)
	GetStructure(ctx context.Context, schoolID string, key string) (*FeeStructure, error)
}

type CreateStructureRequest struct {
	Kind     StructureKind      `json:"kind"`
	Key      string             `json:"key"`
	Name     string             `json:"name"`
	Currency string             `json:"currency"`
	DueAt    time.Time          `json:"due_at"`
	Items    []CreateItemInput  `json:"items"`
}

type CreateItemInput struct {
	Category     string `json:"category"`
	CategoryRank int    `json:"category_rank"`
	ClassLevel   string `json:"class_level"`
	BoardersOnly bool   `json:"boarders_only"`
	Amount       int64  `json:"amount"`
}

var (
	ErrFeeStructureNotFound = errors.New("fee_structure_not_found")
	ErrInvalidStructure     = errors.New("invalid_fee_structure")
	ErrInvalidKey           = errors.New("invalid_structure_key")
	ErrInvalidItem          = errors.New("invalid_fee_item")
	ErrDuplicateKey         = errors.New("duplicate_structure_key")
)
