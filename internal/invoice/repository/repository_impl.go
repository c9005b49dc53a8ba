package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/edusuite/billing/internal/invoice/domain"
)

const invoiceColumns = `id, school_id, student_id, invoice_number, kind, structure_key,
	status, currency, gross_amount, discount_amount, total_amount, amount_paid,
	metadata, due_at, sent_at, paid_at, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, inv *domain.Invoice, items []domain.InvoiceItem) error {
	err := db.WithContext(ctx).Exec(
		`INSERT INTO invoices (
			id, school_id, student_id, invoice_number, kind, structure_key,
			status, currency, gross_amount, discount_amount, total_amount,
			amount_paid, metadata, due_at, sent_at, paid_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID,
		inv.SchoolID,
		inv.StudentID,
		inv.InvoiceNumber,
		string(inv.Kind),
		inv.StructureKey,
		string(inv.Status),
		inv.Currency,
		inv.GrossAmount,
		inv.DiscountAmount,
		inv.TotalAmount,
		inv.AmountPaid,
		inv.Metadata,
		inv.DueAt,
		inv.SentAt,
		inv.PaidAt,
		inv.CreatedAt,
		inv.UpdatedAt,
	).Error
	if err != nil {
		return err
	}

	for _, item := range items {
		err := db.WithContext(ctx).Exec(
			`INSERT INTO invoice_items (
				id, invoice_id, category, category_rank, amount, created_at
			) VALUES (?, ?, ?, ?, ?, ?)`,
			item.ID,
			item.InvoiceID,
			item.Category,
			item.CategoryRank,
			item.Amount,
			item.CreatedAt,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	var item domain.Invoice
	err := db.WithContext(ctx).Raw(
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = ? LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindByNumber(ctx context.Context, db *gorm.DB, number string) (*domain.Invoice, error) {
	var item domain.Invoice
	err := db.WithContext(ctx).Raw(
		`SELECT `+invoiceColumns+` FROM invoices WHERE invoice_number = ? LIMIT 1`,
		number,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Invoice, error) {
	where := make([]string, 0, 3)
	args := make([]any, 0, 4)
	if filter.SchoolID != 0 {
		where = append(where, "school_id = ?")
		args = append(args, filter.SchoolID)
	}
	if filter.StudentID != 0 {
		where = append(where, "student_id = ?")
		args = append(args, filter.StudentID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := `SELECT ` + invoiceColumns + ` FROM invoices`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit)

	var items []domain.Invoice
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]domain.InvoiceItem, error) {
	var items []domain.InvoiceItem
	err := db.WithContext(ctx).Raw(
		`SELECT id, invoice_id, category, category_rank, amount, created_at
		 FROM invoice_items
		 WHERE invoice_id = ?
		 ORDER BY category_rank ASC, id ASC`,
		invoiceID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from []domain.Status, upd domain.StatusUpdate) (bool, error) {
	if len(from) == 0 || upd.To == "" {
		return false, nil
	}

	set := []string{"status = ?", "updated_at = ?"}
	args := []any{string(upd.To), upd.UpdatedAt}
	if upd.SentAt != nil {
		set = append(set, "sent_at = ?")
		args = append(args, *upd.SentAt)
	}

	args = append(args, id)
	placeholders := make([]string, 0, len(from))
	for _, status := range from {
		placeholders = append(placeholders, "?")
		args = append(args, string(status))
	}

	query := fmt.Sprintf(
		`UPDATE invoices SET %s WHERE id = ? AND status IN (%s)`,
		strings.Join(set, ", "),
		strings.Join(placeholders, ", "),
	)
	res := db.WithContext(ctx).Exec(query, args...)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) MarkOverdue(ctx context.Context, db *gorm.DB, asOf time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET status = ?, updated_at = ?
		 WHERE status = ? AND due_at IS NOT NULL AND due_at < ?`,
		string(domain.StatusOverdue),
		asOf,
		string(domain.StatusSent),
		asOf,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
