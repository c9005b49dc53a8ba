package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/edusuite/billing/internal/feeschedule/domain"
	schooldomain "github.com/edusuite/billing/internal/school/domain"
	"github.com/edusuite/billing/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type service struct {
	db      *gorm.DB
	log     *zap.Logger
	repo    domain.Repository
	schools schooldomain.Repository
	genID   *snowflake.Node
}

func NewService(gdb *gorm.DB, log *zap.Logger, repo domain.Repository, schools schooldomain.Repository, genID *snowflake.Node) domain.Service {
	return &service{
		db:      gdb,
		log:     log.Named("feeschedule.service"),
		repo:    repo,
		schools: schools,
		genID:   genID,
	}
}

func (s *service) Resolve(ctx context.Context, schoolID string, key string, student schooldomain.StudentContext) ([]domain.FeeLine, error) {
	structure, err := s.loadStructure(ctx, schoolID, key)
	if err != nil {
		return nil, err
	}
	if !structure.Active {
		return nil, domain.ErrFeeStructureNotFound
	}
	return domain.ResolveLines(*structure, student), nil
}

func (s *service) CreateStructure(ctx context.Context, schoolID string, req domain.CreateStructureRequest) (*domain.FeeStructure, error) {
	sid, err := parseID(schoolID)
	if err != nil {
		return nil, schooldomain.ErrInvalidSchool
	}

	school, err := s.schools.GetSchool(ctx, sid)
	if err != nil {
		return nil, err
	}
	if school == nil {
		return nil, schooldomain.ErrSchoolNotFound
	}

	key := strings.TrimSpace(req.Key)
	if key == "" {
		return nil, domain.ErrInvalidKey
	}
	if req.Kind != domain.StructureKindTerm && req.Kind != domain.StructureKindApplication {
		return nil, domain.ErrInvalidStructure
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, domain.ErrInvalidStructure
	}
	if req.DueAt.IsZero() {
		return nil, domain.ErrInvalidStructure
	}
	if len(req.Items) == 0 {
		return nil, domain.ErrInvalidItem
	}
	for _, item := range req.Items {
		if strings.TrimSpace(item.Category) == "" || item.Amount < 0 || item.CategoryRank < 0 {
			return nil, domain.ErrInvalidItem
		}
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "NGN"
	}

	now := time.Now().UTC()
	structure := domain.FeeStructure{
		ID:        s.genID.Generate(),
		SchoolID:  sid,
		Kind:      req.Kind,
		Key:       key,
		Name:      strings.TrimSpace(req.Name),
		Currency:  currency,
		DueAt:     req.DueAt.UTC(),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, input := range req.Items {
		structure.Items = append(structure.Items, domain.FeeItem{
			ID:             s.genID.Generate(),
			FeeStructureID: structure.ID,
			Category:       strings.TrimSpace(input.Category),
			CategoryRank:   input.CategoryRank,
			ClassLevel:     strings.TrimSpace(input.ClassLevel),
			BoardersOnly:   input.BoardersOnly,
			Amount:         input.Amount,
			CreatedAt:      now,
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateStructure(ctx, structure); err != nil {
			return err
		}
		for _, item := range structure.Items {
			if err := repo.CreateItem(ctx, item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrDuplicateKey
		}
		return nil, err
	}

	s.log.Info("feeschedule.structure.created",
		zap.String("school_id", sid.String()),
		zap.String("key", structure.Key),
		zap.Int("items", len(structure.Items)),
	)

	return &structure, nil
}

func (s *service) GetStructure(ctx context.Context, schoolID string, key string) (*domain.FeeStructure, error) {
	return s.loadStructure(ctx, schoolID, key)
}

func (s *service) loadStructure(ctx context.Context, schoolID string, key string) (*domain.FeeStructure, error) {
	sid, err := parseID(schoolID)
	if err != nil {
		return nil, domain.ErrFeeStructureNotFound
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, domain.ErrInvalidKey
	}

	structure, err := s.repo.GetStructure(ctx, sid, key)
	if err != nil {
		return nil, err
	}
	if structure == nil {
		return nil, domain.ErrFeeStructureNotFound
	}

	items, err := s.repo.ListItems(ctx, structure.ID)
	if err != nil {
		return nil, err
	}
	structure.Items = items
	return structure, nil
}

func parseID(raw string) (snowflake.ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, schooldomain.ErrInvalidSchool
	}
	return snowflake.ParseString(raw)
}
