package service

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/libris/circulation-service/circulation/internal/errs"
	"github.com/libris/circulation-service/circulation/internal/model"
	"github.com/libris/circulation-service/circulation/internal/repository"
)

// Fine is the overdue/fine engine. A fine always references an existing
// loan; the loan's member is authoritative for the fine's member.
type Fine struct {
	log    *zap.Logger
	repo   repository.FineRepository
	events Emitter
}

func NewFine(repo repository.FineRepository, events Emitter, log *zap.Logger) *Fine {
	return &Fine{
		log:    log,
		repo:   repo,
		events: events,
	}
}

func (s *Fine) RaiseFine(ctx context.Context, req model.RaiseFineRequest) (model.Fine, error) {
	if req.Amount <= 0 {
		return model.Fine{}, errors.Wrap(errs.ErrInvalidArgument, "amount must be positive")
	}
	fine, err := s.repo.CreateFine(ctx, req)
	if err != nil {
		return model.Fine{}, err
	}
	s.events.emit(ctx, "raise_fine", TargetFine, fine.FineUid,
		fmt.Sprintf("fine of %d raised on loan %s: %s", fine.Amount, fine.LoanUid, fine.Reason))
	return fine, nil
}

func (s *Fine) GetFine(ctx context.Context, fineUid string) (model.Fine, error) {
	return s.repo.GetFine(ctx, fineUid)
}

func (s *Fine) ListFines(ctx context.Context, filter model.FineFilter) (model.ListFines, error) {
	return s.repo.ListFines(ctx, filter)
}

func (s *Fine) MarkPaid(ctx context.Context, fineUid string) (model.Fine, error) {
	fine, err := s.repo.MarkFinePaid(ctx, fineUid)
	if err != nil {
		return model.Fine{}, err
	}
	s.events.emit(ctx, "pay_fine", TargetFine, fine.FineUid,
		fmt.Sprintf("fine of %d settled", fine.Amount))
	return fine, nil
}

func (s *Fine) UnpaidTotal(ctx context.Context, memberID string) (int64, error) {
	return s.repo.UnpaidTotal(ctx, memberID)
}

func (s *Fine) DeleteFine(ctx context.Context, fineUid string) error {
	if err := s.repo.SoftDeleteFine(ctx, fineUid); err != nil {
		return err
	}
	s.events.emit(ctx, "soft_delete_fine", TargetFine, fineUid, "fine soft deleted")
	return nil
}

func (s *Fine) HardDeleteFine(ctx context.Context, fineUid string) error {
	if err := s.repo.HardDeleteFine(ctx, fineUid); err != nil {
		return err
	}
	s.events.emit(ctx, "hard_delete_fine", TargetFine, fineUid, "fine permanently deleted")
	return nil
}
