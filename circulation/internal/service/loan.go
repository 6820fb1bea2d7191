package service

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/libris/circulation-service/circulation/internal/errs"
	"github.com/libris/circulation-service/circulation/internal/model"
	"github.com/libris/circulation-service/circulation/internal/repository"
)

// Lending converts available items into loans and back. All claiming
// goes through the item registry's compare-and-set; a lost race surfaces
// as ErrItemUnavailable and is never retried here.
type Lending struct {
	log    *zap.Logger
	repo   repository.LoanRepository
	events Emitter
}

func NewLending(repo repository.LoanRepository, events Emitter, log *zap.Logger) *Lending {
	return &Lending{
		log:    log,
		repo:   repo,
		events: events,
	}
}

func (s *Lending) CreateLoan(ctx context.Context, req model.CreateLoanRequest) (model.Loan, error) {
	if !req.DueDate.After(time.Now()) {
		return model.Loan{}, errors.Wrap(errs.ErrInvalidArgument, "due date must be in the future")
	}
	loan, err := s.repo.CreateLoan(ctx, req)
	if err != nil {
		if errors.Is(err, errs.ErrConflict) || errors.Is(err, errs.ErrReferenceOnly) {
			return model.Loan{}, errs.ErrItemUnavailable
		}
		return model.Loan{}, err
	}
	s.events.emit(ctx, "create_loan", TargetLoan, loan.LoanUid,
		fmt.Sprintf("item %s loaned to %s until %s", loan.ItemUid, loan.MemberID, loan.DueDate.Format(time.DateOnly)))
	return loan, nil
}

func (s *Lending) GetLoan(ctx context.Context, loanUid string) (model.LoanDetails, error) {
	return s.repo.GetLoan(ctx, loanUid)
}

func (s *Lending) ListLoans(ctx context.Context, filter model.LoanFilter) (model.ListLoans, error) {
	return s.repo.ListLoans(ctx, filter)
}

func (s *Lending) ReturnLoan(ctx context.Context, loanUid string) (model.Loan, error) {
	loan, err := s.repo.ReturnLoan(ctx, loanUid)
	if err != nil {
		return model.Loan{}, err
	}
	s.events.emit(ctx, "return_loan", TargetLoan, loan.LoanUid,
		fmt.Sprintf("item %s returned", loan.ItemUid))
	return loan, nil
}

func (s *Lending) ExtendLoan(ctx context.Context, loanUid string, req model.ExtendLoanRequest) (model.Loan, error) {
	if !req.DueDate.After(time.Now()) {
		return model.Loan{}, errors.Wrap(errs.ErrInvalidArgument, "new due date must be in the future")
	}
	loan, err := s.repo.ExtendLoan(ctx, loanUid, req)
	if err != nil {
		return model.Loan{}, err
	}
	s.events.emit(ctx, "extend_loan", TargetLoan, loan.LoanUid,
		fmt.Sprintf("due date extended to %s", loan.DueDate.Format(time.DateOnly)))
	return loan, nil
}

// CheckOverdue is a pure read; nothing is persisted.
func (s *Lending) CheckOverdue(ctx context.Context, loanUid string) (model.LoanDetails, error) {
	return s.repo.GetLoan(ctx, loanUid)
}

func (s *Lending) DeleteLoan(ctx context.Context, loanUid string) error {
	if err := s.repo.SoftDeleteLoan(ctx, loanUid); err != nil {
		return err
	}
	s.events.emit(ctx, "soft_delete_loan", TargetLoan, loanUid, "loan soft deleted")
	return nil
}

func (s *Lending) HardDeleteLoan(ctx context.Context, loanUid string) error {
	if err := s.repo.HardDeleteLoan(ctx, loanUid); err != nil {
		return err
	}
	s.events.emit(ctx, "hard_delete_loan", TargetLoan, loanUid, "loan permanently deleted")
	return nil
}
