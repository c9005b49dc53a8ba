package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	ledgerdomain "github.com/edusuite/billing/internal/ledger/domain"
	obsmetrics "github.com/edusuite/billing/internal/observability/metrics"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("ledger.service"),
		genID:      p.GenID,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) CreateEntry(ctx context.Context, db *gorm.DB, entry ledgerdomain.NewEntry) (bool, error) {
	if db == nil {
		db = s.db
	}
	if entry.SchoolID == 0 {
		return false, ledgerdomain.ErrInvalidSchool
	}
	if strings.TrimSpace(string(entry.SourceType)) == "" {
		return false, ledgerdomain.ErrInvalidSourceType
	}
	if entry.SourceID == 0 {
		return false, ledgerdomain.ErrInvalidSourceID
	}
	currency := strings.ToUpper(strings.TrimSpace(entry.Currency))
	if currency == "" {
		return false, ledgerdomain.ErrInvalidCurrency
	}
	if entry.OccurredAt.IsZero() {
		return false, ledgerdomain.ErrInvalidOccurredAt
	}
	if len(entry.Lines) < 2 {
		return false, ledgerdomain.ErrInvalidEntryLines
	}

	normalized := make([]ledgerdomain.EntryLine, 0, len(entry.Lines))
	for _, line := range entry.Lines {
		if strings.TrimSpace(string(line.AccountCode)) == "" {
			return false, ledgerdomain.ErrInvalidAccount
		}
		direction, err := normalizeDirection(line.Direction)
		if err != nil {
			return false, err
		}
		if line.Amount < 0 {
			return false, ledgerdomain.ErrInvalidLineAmount
		}
		normalized = append(normalized, ledgerdomain.EntryLine{
			AccountCode: line.AccountCode,
			Direction:   direction,
			Amount:      line.Amount,
		})
	}

	if err := ledgerdomain.ValidateBalanced(normalized); err != nil {
		return false, err
	}

	inserted := false
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entryID := s.genID.Generate()
		now := time.Now().UTC()
		result := tx.WithContext(ctx).Exec(
			`INSERT INTO ledger_entries (
				id, school_id, source_type, source_id, currency, occurred_at, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (school_id, source_type, source_id) DO NOTHING`,
			entryID,
			entry.SchoolID,
			string(entry.SourceType),
			entry.SourceID,
			currency,
			entry.OccurredAt.UTC(),
			now,
		)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		inserted = true

		for _, line := range normalized {
			accountID, err := s.ensureAccount(ctx, tx, entry.SchoolID, line.AccountCode, now)
			if err != nil {
				return err
			}
			if err := tx.WithContext(ctx).Exec(
				`INSERT INTO ledger_entry_lines (
					id, ledger_entry_id, account_id, direction, currency, amount, created_at
				) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				s.genID.Generate(),
				entryID,
				accountID,
				string(line.Direction),
				currency,
				line.Amount,
				now,
			).Error; err != nil {
				return err
			}
		}

		s.log.Info("ledger.entry_created",
			zap.String("school_id", entry.SchoolID.String()),
			zap.String("source_type", string(entry.SourceType)),
			zap.String("source_id", entry.SourceID.String()),
			zap.String("currency", currency),
		)
		return nil
	})
	if err != nil {
		return false, err
	}
	if inserted && s.obsMetrics != nil {
		s.obsMetrics.RecordLedgerEntry(ctx, string(entry.SourceType))
	}
	return inserted, nil
}

func (s *Service) ListEntries(ctx context.Context, schoolID snowflake.ID, limit int) ([]ledgerdomain.LedgerEntry, error) {
	if schoolID == 0 {
		return nil, ledgerdomain.ErrInvalidSchool
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var entries []ledgerdomain.LedgerEntry
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, school_id, source_type, source_id, currency, occurred_at, created_at
		 FROM ledger_entries
		 WHERE school_id = ?
		 ORDER BY occurred_at DESC, id DESC
		 LIMIT ?`,
		schoolID,
		limit,
	).Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Service) AccountBalances(ctx context.Context, schoolID snowflake.ID, currency string) ([]ledgerdomain.AccountBalance, error) {
	if schoolID == 0 {
		return nil, ledgerdomain.ErrInvalidSchool
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return nil, ledgerdomain.ErrInvalidCurrency
	}

	var balances []ledgerdomain.AccountBalance
	err := s.db.WithContext(ctx).Raw(
		`SELECT a.code AS code, a.name AS name,
			COALESCE(SUM(CASE l.direction WHEN 'debit' THEN l.amount ELSE -l.amount END), 0) AS balance
		 FROM ledger_accounts a
		 LEFT JOIN ledger_entry_lines l ON l.account_id = a.id AND l.currency = ?
		 WHERE a.school_id = ?
		 GROUP BY a.code, a.name
		 ORDER BY a.code ASC`,
		currency,
		schoolID,
	).Scan(&balances).Error
	if err != nil {
		return nil, err
	}
	return balances, nil
}

// ensureAccount resolves the per-school account row for a code,
// creating it on first use. Concurrent creators race on the unique
// index, so the lookup runs again after the insert.
func (s *Service) ensureAccount(ctx context.Context, db *gorm.DB, schoolID snowflake.ID, code ledgerdomain.AccountCode, now time.Time) (snowflake.ID, error) {
	var accountID snowflake.ID
	if err := db.WithContext(ctx).Raw(
		`SELECT id FROM ledger_accounts WHERE school_id = ? AND code = ?`,
		schoolID,
		string(code),
	).Scan(&accountID).Error; err != nil {
		return 0, err
	}
	if accountID != 0 {
		return accountID, nil
	}

	if err := db.WithContext(ctx).Exec(
		`INSERT INTO ledger_accounts (id, school_id, code, name, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (school_id, code) DO NOTHING`,
		s.genID.Generate(),
		schoolID,
		string(code),
		accountName(code),
		now,
	).Error; err != nil {
		return 0, err
	}

	if err := db.WithContext(ctx).Raw(
		`SELECT id FROM ledger_accounts WHERE school_id = ? AND code = ?`,
		schoolID,
		string(code),
	).Scan(&accountID).Error; err != nil {
		return 0, err
	}
	if accountID == 0 {
		return 0, ledgerdomain.ErrInvalidAccount
	}
	return accountID, nil
}

func accountName(code ledgerdomain.AccountCode) string {
	switch code {
	case ledgerdomain.AccountCodeCash:
		return "Cash"
	case ledgerdomain.AccountCodeSchoolPayable:
		return "School payable"
	case ledgerdomain.AccountCodePlatformRevenue:
		return "Platform revenue"
	case ledgerdomain.AccountCodeGatewayFees:
		return "Gateway fees"
	default:
		return string(code)
	}
}

func normalizeDirection(direction ledgerdomain.Direction) (ledgerdomain.Direction, error) {
	switch strings.ToLower(strings.TrimSpace(string(direction))) {
	case string(ledgerdomain.DirectionDebit):
		return ledgerdomain.DirectionDebit, nil
	case string(ledgerdomain.DirectionCredit):
		return ledgerdomain.DirectionCredit, nil
	default:
		return "", ledgerdomain.ErrInvalidLineDirection
	}
}
