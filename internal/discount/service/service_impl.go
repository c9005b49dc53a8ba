package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/edusuite/billing/internal/clock"
	"github.com/edusuite/billing/internal/discount/domain"
	schooldomain "github.com/edusuite/billing/internal/school/domain"
	"go.uber.org/zap"
)

type service struct {
	log   *zap.Logger
	repo  domain.Repository
	clk   clock.Clock
	genID *snowflake.Node
}

func NewService(log *zap.Logger, repo domain.Repository, clk clock.Clock, genID *snowflake.Node) domain.Service {
	return &service{
		log:   log.Named("discount.service"),
		repo:  repo,
		clk:   clk,
		genID: genID,
	}
}

func (s *service) PolicyFor(ctx context.Context, schoolID string) (*domain.DiscountPolicy, error) {
	sid, err := parseID(schoolID)
	if err != nil {
		return nil, schooldomain.ErrInvalidSchool
	}

	policy, err := s.repo.Get(ctx, sid)
	if err != nil {
		return nil, err
	}
	if policy == nil {
		fallback := domain.DefaultPolicy(sid)
		return &fallback, nil
	}
	return policy, nil
}

func (s *service) SetPolicy(ctx context.Context, schoolID string, req domain.UpsertPolicyRequest) (*domain.DiscountPolicy, error) {
	sid, err := parseID(schoolID)
	if err != nil {
		return nil, schooldomain.ErrInvalidSchool
	}

	now := s.clk.Now()
	policy := domain.DiscountPolicy{
		ID:                 s.genID.Generate(),
		SchoolID:           sid,
		StaffWaiverEnabled: req.StaffWaiverEnabled,
		StaffWaiverPercent: req.StaffWaiverPercent,
		StaffWaiverCap:     req.StaffWaiverCap,
		EarlyBirdEnabled:   req.EarlyBirdEnabled,
		EarlyBirdDays:      req.EarlyBirdDays,
		EarlyBirdPercent:   req.EarlyBirdPercent,
		ScholarshipEnabled: req.ScholarshipEnabled,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := domain.Validate(policy); err != nil {
		return nil, err
	}

	if err := s.repo.Upsert(ctx, policy); err != nil {
		return nil, err
	}

	s.log.Info("discount.policy.updated",
		zap.String("school_id", sid.String()),
		zap.Bool("staff_waiver", policy.StaffWaiverEnabled),
		zap.Bool("early_bird", policy.EarlyBirdEnabled),
		zap.Bool("scholarship", policy.ScholarshipEnabled),
	)

	stored, err := s.repo.Get(ctx, sid)
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (s *service) Preview(ctx context.Context, schoolID string, baseAmount int64, student schooldomain.StudentContext, closesAt time.Time) (*domain.Breakdown, error) {
	policy, err := s.PolicyFor(ctx, schoolID)
	if err != nil {
		return nil, err
	}

	breakdown, err := domain.Apply(*policy, domain.Input{
		BaseAmount: baseAmount,
		Student:    student,
		Now:        s.clk.Now(),
		ClosesAt:   closesAt,
	})
	if err != nil {
		return nil, err
	}
	return &breakdown, nil
}

func parseID(raw string) (snowflake.ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, schooldomain.ErrInvalidSchool
	}
	return snowflake.ParseString(raw)
}
