package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	referencedomain "github.com/edusuite/billing/internal/reference/domain"
	"github.com/edusuite/billing/internal/school/domain"
	"github.com/edusuite/billing/pkg/db"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
)

type service struct {
	log   *zap.Logger
	repo  domain.Repository
	banks referencedomain.Repository
	genID *snowflake.Node
}

func NewService(log *zap.Logger, repo domain.Repository, banks referencedomain.Repository, genID *snowflake.Node) domain.Service {
	return &service{
		log:   log.Named("school.service"),
		repo:  repo,
		banks: banks,
		genID: genID,
	}
}

func (s *service) Create(ctx context.Context, req domain.CreateSchoolRequest) (*domain.SchoolResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	bankCode := strings.TrimSpace(req.BankCode)
	if bankCode != "" {
		bank, err := s.banks.GetBank(ctx, bankCode)
		if err != nil {
			return nil, err
		}
		if bank == nil {
			return nil, domain.ErrInvalidBank
		}
	}

	now := time.Now().UTC()
	school := domain.School{
		ID:             s.genID.Generate(),
		Name:           name,
		Code:           slug.Make(name),
		ContactEmail:   strings.TrimSpace(req.ContactEmail),
		SubaccountCode: strings.TrimSpace(req.SubaccountCode),
		BankCode:       bankCode,
		AccountNumber:  strings.TrimSpace(req.AccountNumber),
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.CreateSchool(ctx, school); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrDuplicateCode
		}
		return nil, err
	}

	s.log.Info("school.created",
		zap.String("school_id", school.ID.String()),
		zap.String("code", school.Code),
	)

	return toSchoolResponse(&school), nil
}

func (s *service) GetByID(ctx context.Context, id string) (*domain.SchoolResponse, error) {
	schoolID, err := parseID(id)
	if err != nil {
		return nil, domain.ErrInvalidSchool
	}

	school, err := s.repo.GetSchool(ctx, schoolID)
	if err != nil {
		return nil, err
	}
	if school == nil {
		return nil, domain.ErrSchoolNotFound
	}
	return toSchoolResponse(school), nil
}

func (s *service) List(ctx context.Context) ([]domain.SchoolResponse, error) {
	schools, err := s.repo.ListSchools(ctx)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.SchoolResponse, 0, len(schools))
	for i := range schools {
		resp = append(resp, *toSchoolResponse(&schools[i]))
	}
	return resp, nil
}

func (s *service) AttachSubaccount(ctx context.Context, schoolID string, sub domain.SubaccountDetails) (*domain.SchoolResponse, error) {
	sid, err := parseID(schoolID)
	if err != nil {
		return nil, domain.ErrInvalidSchool
	}

	sub.SubaccountCode = strings.TrimSpace(sub.SubaccountCode)
	sub.BankCode = strings.TrimSpace(sub.BankCode)
	sub.AccountNumber = strings.TrimSpace(sub.AccountNumber)
	sub.AccountName = strings.TrimSpace(sub.AccountName)
	if sub.SubaccountCode == "" || sub.BankCode == "" {
		return nil, domain.ErrInvalidBank
	}

	updated, err := s.repo.UpdateSubaccount(ctx, sid, sub, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if updated == 0 {
		return nil, domain.ErrSchoolNotFound
	}

	s.log.Info("school.subaccount_attached",
		zap.String("school_id", sid.String()),
		zap.String("subaccount_code", sub.SubaccountCode),
	)

	school, err := s.repo.GetSchool(ctx, sid)
	if err != nil {
		return nil, err
	}
	if school == nil {
		return nil, domain.ErrSchoolNotFound
	}
	return toSchoolResponse(school), nil
}

func (s *service) RegisterStudent(ctx context.Context, schoolID string, req domain.RegisterStudentRequest) (*domain.StudentResponse, error) {
	sid, err := parseID(schoolID)
	if err != nil {
		return nil, domain.ErrInvalidSchool
	}

	school, err := s.repo.GetSchool(ctx, sid)
	if err != nil {
		return nil, err
	}
	if school == nil {
		return nil, domain.ErrSchoolNotFound
	}

	fullName := strings.TrimSpace(req.FullName)
	if fullName == "" {
		return nil, domain.ErrInvalidStudent
	}
	classLevel := strings.TrimSpace(req.ClassLevel)
	if classLevel == "" {
		return nil, domain.ErrInvalidStudent
	}
	if req.ScholarshipPercent < 0 || req.ScholarshipPercent > 100 {
		return nil, domain.ErrInvalidScholarship
	}

	now := time.Now().UTC()
	student := domain.Student{
		ID:                 s.genID.Generate(),
		SchoolID:           sid,
		FullName:           fullName,
		ClassLevel:         classLevel,
		Boarder:            req.Boarder,
		StaffChild:         req.StaffChild,
		ScholarshipPercent: req.ScholarshipPercent,
		ParentEmail:        strings.TrimSpace(req.ParentEmail),
		Active:             true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.repo.CreateStudent(ctx, student); err != nil {
		return nil, err
	}

	return &domain.StudentResponse{
		ID:                 student.ID.String(),
		SchoolID:           student.SchoolID.String(),
		FullName:           student.FullName,
		ClassLevel:         student.ClassLevel,
		Boarder:            student.Boarder,
		StaffChild:         student.StaffChild,
		ScholarshipPercent: student.ScholarshipPercent,
	}, nil
}

func (s *service) GetStudent(ctx context.Context, schoolID string, studentID string) (*domain.Student, error) {
	sid, err := parseID(schoolID)
	if err != nil {
		return nil, domain.ErrInvalidSchool
	}
	stid, err := parseID(studentID)
	if err != nil {
		return nil, domain.ErrInvalidStudent
	}

	student, err := s.repo.GetStudent(ctx, sid, stid)
	if err != nil {
		return nil, err
	}
	if student == nil {
		return nil, domain.ErrStudentNotFound
	}
	return student, nil
}

func parseID(raw string) (snowflake.ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, domain.ErrInvalidSchool
	}
	return snowflake.ParseString(raw)
}

func toSchoolResponse(school *domain.School) *domain.SchoolResponse {
	return &domain.SchoolResponse{
		ID:             school.ID.String(),
		Name:           school.Name,
		Code:           school.Code,
		ContactEmail:   school.ContactEmail,
		SubaccountCode: school.SubaccountCode,
		AccountName:    school.AccountName,
		Active:         school.Active,
		CreatedAt:      school.CreatedAt,
	}
}
