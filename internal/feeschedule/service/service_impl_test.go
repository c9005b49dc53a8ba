package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	feescheduledomain "github.com/edusuite/billing/internal/feeschedule/domain"
	feeschedulerepo "github.com/edusuite/billing/internal/feeschedule/repository"
	feescheduleservice "github.com/edusuite/billing/internal/feeschedule/service"
	schooldomain "github.com/edusuite/billing/internal/school/domain"
	schoolrepo "github.com/edusuite/billing/internal/school/repository"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestCreateAndResolveStructure(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	node, err := snowflake.NewNode(20)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	schoolID := node.Generate()
	if err := seedSchool(db, schoolID); err != nil {
		t.Fatalf("seed school: %v", err)
	}

	svc := feescheduleservice.NewService(db, zap.NewNop(), feeschedulerepo.NewRepository(db), schoolrepo.NewRepository(db), node)

	dueAt := time.Now().UTC().Add(45 * 24 * time.Hour)
	structure, err := svc.CreateStructure(ctx, schoolID.String(), feescheduledomain.CreateStructureRequest{
		Kind: feescheduledomain.StructureKindTerm,
		Key:  "2026/2027-T1",
		Name: "First Term 2026/2027",
		DueAt: dueAt,
		Items: []feescheduledomain.CreateItemInput{
			{Category: "boarding", CategoryRank: 3, BoardersOnly: true, Amount: 8_000_000},
			{Category: "tuition", CategoryRank: 1, Amount: 15_000_000},
			{Category: "pta", CategoryRank: 2, Amount: 500_000},
			{Category: "textbook", CategoryRank: 4, ClassLevel: "JSS1", Amount: 2_500_000},
		},
	})
	if err != nil {
		t.Fatalf("create structure: %v", err)
	}
	if structure.Currency != "NGN" {
		t.Fatalf("expected default currency NGN, got %s", structure.Currency)
	}

	assertCount(t, db, "SELECT COUNT(1) FROM fee_structures", 1)
	assertCount(t, db, "SELECT COUNT(1) FROM fee_items", 4)

	lines, err := svc.Resolve(ctx, schoolID.String(), "2026/2027-T1", schooldomain.StudentContext{
		ClassLevel: "JSS1",
		Boarder:    false,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	want := []string{"tuition", "pta", "textbook"}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d", len(want), len(lines))
	}
	for i, category := range want {
		if lines[i].Category != category {
			t.Fatalf("line %d: expected %s, got %s", i, category, lines[i].Category)
		}
	}
	if got := feescheduledomain.TotalOf(lines); got != 18_000_000 {
		t.Fatalf("total = %d, want 18000000", got)
	}
}

func TestResolveUnknownKey(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	node, err := snowflake.NewNode(21)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	schoolID := node.Generate()
	if err := seedSchool(db, schoolID); err != nil {
		t.Fatalf("seed school: %v", err)
	}

	svc := feescheduleservice.NewService(db, zap.NewNop(), feeschedulerepo.NewRepository(db), schoolrepo.NewRepository(db), node)

	_, err = svc.Resolve(ctx, schoolID.String(), "2026/2027-T9", schooldomain.StudentContext{ClassLevel: "JSS1"})
	if !errors.Is(err, feescheduledomain.ErrFeeStructureNotFound) {
		t.Fatalf("expected ErrFeeStructureNotFound, got %v", err)
	}
}

func TestCreateStructureDuplicateKey(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	node, err := snowflake.NewNode(22)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	schoolID := node.Generate()
	if err := seedSchool(db, schoolID); err != nil {
		t.Fatalf("seed school: %v", err)
	}

	svc := feescheduleservice.NewService(db, zap.NewNop(), feeschedulerepo.NewRepository(db), schoolrepo.NewRepository(db), node)

	req := feescheduledomain.CreateStructureRequest{
		Kind:  feescheduledomain.StructureKindApplication,
		Key:   "admission",
		Name:  "Admission Application",
		DueAt: time.Now().UTC().Add(30 * 24 * time.Hour),
		Items: []feescheduledomain.CreateItemInput{
			{Category: "application", CategoryRank: 1, Amount: 1_000_000},
		},
	}
	if _, err := svc.CreateStructure(ctx, schoolID.String(), req); err != nil {
		t.Fatalf("create structure: %v", err)
	}
	_, err = svc.CreateStructure(ctx, schoolID.String(), req)
	if !errors.Is(err, feescheduledomain.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
	assertCount(t, db, "SELECT COUNT(1) FROM fee_structures", 1)
	assertCount(t, db, "SELECT COUNT(1) FROM fee_items", 1)
}

func TestCreateStructureValidation(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	node, err := snowflake.NewNode(23)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	schoolID := node.Generate()
	if err := seedSchool(db, schoolID); err != nil {
		t.Fatalf("seed school: %v", err)
	}

	svc := feescheduleservice.NewService(db, zap.NewNop(), feeschedulerepo.NewRepository(db), schoolrepo.NewRepository(db), node)
	dueAt := time.Now().UTC().Add(30 * 24 * time.Hour)

	_, err = svc.CreateStructure(ctx, schoolID.String(), feescheduledomain.CreateStructureRequest{
		Kind: feescheduledomain.StructureKindTerm, Key: "t1", Name: "Term", DueAt: dueAt,
	})
	if !errors.Is(err, feescheduledomain.ErrInvalidItem) {
		t.Fatalf("expected ErrInvalidItem for empty items, got %v", err)
	}

	_, err = svc.CreateStructure(ctx, schoolID.String(), feescheduledomain.CreateStructureRequest{
		Kind: feescheduledomain.StructureKindTerm, Key: "t1", Name: "Term", DueAt: dueAt,
		Items: []feescheduledomain.CreateItemInput{{Category: "tuition", Amount: -1}},
	})
	if !errors.Is(err, feescheduledomain.ErrInvalidItem) {
		t.Fatalf("expected ErrInvalidItem for negative amount, got %v", err)
	}

	_, err = svc.CreateStructure(ctx, node.Generate().String(), feescheduledomain.CreateStructureRequest{
		Kind: feescheduledomain.StructureKindTerm, Key: "t1", Name: "Term", DueAt: dueAt,
		Items: []feescheduledomain.CreateItemInput{{Category: "tuition", Amount: 1}},
	})
	if !errors.Is(err, schooldomain.ErrSchoolNotFound) {
		t.Fatalf("expected ErrSchoolNotFound, got %v", err)
	}
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_feeschedule_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	schema := []string{
		`CREATE TABLE schools (
			id BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			code TEXT NOT NULL,
			contact_email TEXT,
			subaccount_code TEXT,
			bank_code TEXT,
			account_number TEXT,
			account_name TEXT,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE fee_structures (
			id BIGINT PRIMARY KEY,
			school_id BIGINT NOT NULL,
			kind TEXT NOT NULL,
			key TEXT NOT NULL,
			name TEXT NOT NULL,
			currency TEXT NOT NULL,
			due_at TIMESTAMP NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_fee_structures_school_key ON fee_structures(school_id, key)`,
		`CREATE TABLE fee_items (
			id BIGINT PRIMARY KEY,
			fee_structure_id BIGINT NOT NULL,
			category TEXT NOT NULL,
			category_rank INTEGER NOT NULL,
			class_level TEXT,
			boarders_only BOOLEAN NOT NULL DEFAULT FALSE,
			amount BIGINT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
	}

	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("schema exec failed: %v", err)
		}
	}

	return db
}

func seedSchool(db *gorm.DB, id snowflake.ID) error {
	now := time.Now().UTC()
	return db.Exec(
		`INSERT INTO schools (id, name, code, contact_email, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id,
		"Sunrise College",
		"sunrise-college",
		"bursar@sunrise.example",
		true,
		now,
		now,
	).Error
}

func assertCount(t *testing.T, db *gorm.DB, query string, expected int64) {
	t.Helper()

	var count int64
	if err := db.Raw(query).Scan(&count).Error; err != nil {
		t.Fatalf("query count: %v", err)
	}
	if count != expected {
		t.Fatalf("expected %d, got %d", expected, count)
	}
}
