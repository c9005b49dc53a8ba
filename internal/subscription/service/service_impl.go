package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/edusuite/billing/internal/clock"
	schooldomain "github.com/edusuite/billing/internal/school/domain"
	"github.com/edusuite/billing/internal/subscription/domain"
)

const (
	// A school term runs about four months.
	termPeriodDays   = 120
	annualPeriodDays = 365

	maxTrialDays = 90

	// Past-due subscriptions keep access for a week before expiring.
	pastDueGraceDays = 7
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository

	schools schooldomain.Service
}

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Schools schooldomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("subscription.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		schools: p.Schools,
	}
}

func (s *Service) Plans(ctx context.Context) []domain.Plan {
	return domain.Plans()
}

func (s *Service) Start(ctx context.Context, req domain.StartRequest) (*domain.SchoolSubscription, error) {
	schoolID, err := s.parseSchoolID(req.SchoolID)
	if err != nil {
		return nil, err
	}
	if _, err := s.schools.GetByID(ctx, req.SchoolID); err != nil {
		return nil, err
	}

	plan, ok := domain.PlanByCode(domain.PlanCode(strings.TrimSpace(req.PlanCode)))
	if !ok {
		return nil, domain.ErrPlanNotFound
	}

	period := domain.BillingPeriod(strings.TrimSpace(req.BillingPeriod))
	if period == "" {
		period = domain.PeriodTerm
	}
	if !period.Valid() {
		return nil, domain.ErrInvalidBillingPeriod
	}

	if req.TrialDays < 0 || req.TrialDays > maxTrialDays {
		return nil, domain.ErrInvalidTrialDays
	}

	existing, err := s.repo.FindBySchool(ctx, s.db, schoolID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrSubscriptionExists
	}

	now := s.clock.Now().UTC()
	status := domain.StatusActive
	periodEnd := now.AddDate(0, 0, periodDays(period))
	if req.TrialDays > 0 {
		status = domain.StatusTrialing
		periodEnd = now.AddDate(0, 0, req.TrialDays)
	}

	sub := &domain.SchoolSubscription{
		ID:            s.genID.Generate(),
		SchoolID:      schoolID,
		PlanCode:      plan.Code,
		Status:        status,
		BillingPeriod: period,
		PeriodStart:   now,
		PeriodEnd:     periodEnd,
		AutoRenew:     true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if req.Metadata != nil {
		sub.Metadata = datatypes.JSONMap(req.Metadata)
	}

	// The unique index on school_id backstops concurrent starts.
	if err := s.repo.Insert(ctx, s.db, sub); err != nil {
		return nil, err
	}

	s.log.Info("subscription.started",
		zap.Int64("school_id", int64(schoolID)),
		zap.String("plan", string(plan.Code)),
		zap.String("status", string(status)),
		zap.String("billing_period", string(period)),
	)
	return sub, nil
}

func (s *Service) Get(ctx context.Context, schoolID string) (*domain.SchoolSubscription, error) {
	return s.load(ctx, schoolID)
}

func (s *Service) Activate(ctx context.Context, schoolID string) (*domain.SchoolSubscription, error) {
	sub, err := s.load(ctx, schoolID)
	if err != nil {
		return nil, err
	}
	if sub.Status.Closed() {
		return nil, domain.ErrSubscriptionClosed
	}

	now := s.clock.Now().UTC()

	// Renewals stack on the current window; lapsed ones restart from now.
	start := now
	if sub.Status == domain.StatusActive && sub.PeriodEnd.After(now) {
		start = sub.PeriodEnd
	}
	end := start.AddDate(0, 0, periodDays(sub.BillingPeriod))

	updated, err := s.repo.UpdateStatus(ctx, s.db, sub.ID,
		[]domain.Status{domain.StatusTrialing, domain.StatusActive, domain.StatusPastDue},
		domain.StatusUpdate{
			To:          domain.StatusActive,
			PeriodStart: &start,
			PeriodEnd:   &end,
			UpdatedAt:   now,
		},
	)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, domain.ErrSubscriptionClosed
	}

	s.log.Info("subscription.activated",
		zap.Int64("school_id", int64(sub.SchoolID)),
		zap.String("plan", string(sub.PlanCode)),
		zap.Time("period_end", end),
	)
	return s.load(ctx, schoolID)
}

func (s *Service) ChangePlan(ctx context.Context, schoolID, planCode string) (*domain.SchoolSubscription, error) {
	sub, err := s.load(ctx, schoolID)
	if err != nil {
		return nil, err
	}
	if sub.Status.Closed() {
		return nil, domain.ErrSubscriptionClosed
	}

	plan, ok := domain.PlanByCode(domain.PlanCode(strings.TrimSpace(planCode)))
	if !ok {
		return nil, domain.ErrPlanNotFound
	}
	if plan.Code == sub.PlanCode {
		return sub, nil
	}

	updated, err := s.repo.UpdateStatus(ctx, s.db, sub.ID,
		[]domain.Status{sub.Status},
		domain.StatusUpdate{
			To:        sub.Status,
			PlanCode:  &plan.Code,
			UpdatedAt: s.clock.Now().UTC(),
		},
	)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, domain.ErrSubscriptionClosed
	}

	s.log.Info("subscription.plan_changed",
		zap.Int64("school_id", int64(sub.SchoolID)),
		zap.String("from", string(sub.PlanCode)),
		zap.String("to", string(plan.Code)),
	)
	return s.load(ctx, schoolID)
}

func (s *Service) Cancel(ctx context.Context, schoolID string) (*domain.SchoolSubscription, error) {
	sub, err := s.load(ctx, schoolID)
	if err != nil {
		return nil, err
	}
	if sub.Status.Closed() {
		return nil, domain.ErrSubscriptionClosed
	}

	now := s.clock.Now().UTC()
	autoRenew := false
	updated, err := s.repo.UpdateStatus(ctx, s.db, sub.ID,
		[]domain.Status{domain.StatusTrialing, domain.StatusActive, domain.StatusPastDue},
		domain.StatusUpdate{
			To:          domain.StatusCancelled,
			AutoRenew:   &autoRenew,
			CancelledAt: &now,
			UpdatedAt:   now,
		},
	)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, domain.ErrSubscriptionClosed
	}

	s.log.Info("subscription.cancelled",
		zap.Int64("school_id", int64(sub.SchoolID)),
		zap.String("plan", string(sub.PlanCode)),
	)
	return s.load(ctx, schoolID)
}

func (s *Service) Entitlement(ctx context.Context, schoolID string) (*domain.Entitlement, error) {
	sub, err := s.load(ctx, schoolID)
	if err != nil {
		return nil, err
	}

	plan, ok := domain.PlanByCode(sub.PlanCode)
	if !ok {
		return nil, domain.ErrPlanNotFound
	}

	now := s.clock.Now().UTC()
	active := (sub.Status == domain.StatusActive || sub.Status == domain.StatusTrialing) && sub.InPeriod(now)

	return &domain.Entitlement{
		PlanCode:    plan.Code,
		Status:      sub.Status,
		Active:      active,
		MaxStudents: plan.MaxStudents,
		MaxStaff:    plan.MaxStaff,
		StorageMB:   plan.StorageMB,
		Features:    plan.Features,
		ExpiresAt:   sub.PeriodEnd,
	}, nil
}

func (s *Service) SweepExpiry(ctx context.Context) (domain.SweepResult, error) {
	now := s.clock.Now().UTC()

	pastDue, err := s.repo.MarkPastDue(ctx, s.db, now)
	if err != nil {
		return domain.SweepResult{}, err
	}

	expired, err := s.repo.Expire(ctx, s.db, now, now.AddDate(0, 0, -pastDueGraceDays))
	if err != nil {
		return domain.SweepResult{PastDue: pastDue}, err
	}

	if pastDue > 0 || expired > 0 {
		s.log.Info("subscription.sweep",
			zap.Int64("past_due", pastDue),
			zap.Int64("expired", expired),
		)
	}
	return domain.SweepResult{PastDue: pastDue, Expired: expired}, nil
}

func (s *Service) load(ctx context.Context, schoolID string) (*domain.SchoolSubscription, error) {
	id, err := s.parseSchoolID(schoolID)
	if err != nil {
		return nil, err
	}
	sub, err := s.repo.FindBySchool(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, domain.ErrSubscriptionNotFound
	}
	return sub, nil
}

func (s *Service) parseSchoolID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, schooldomain.ErrSchoolNotFound
	}
	return id, nil
}

func periodDays(period domain.BillingPeriod) int {
	if period == domain.PeriodAnnual {
		return annualPeriodDays
	}
	return termPeriodDays
}
