package repository

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/libris/circulation-service/circulation/internal/errs"
	"github.com/libris/circulation-service/circulation/internal/model"
)

// CreateLoan claims the item with the AVAILABLE->LOANED compare-and-set
// and inserts the loan in one transaction. A pending reservation held by
// another member blocks the loan.
func (r *repository) CreateLoan(ctx context.Context, req model.CreateLoanRequest) (model.Loan, error) {
	var loan model.Loan
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := expireDueReservations(ctx, tx, sq.Eq{"item_uid": req.ItemUid}); err != nil {
			return err
		}

		blocked, err := hasBlockingReservation(ctx, tx, req.ItemUid, req.MemberID)
		if err != nil {
			return err
		}
		if blocked {
			return errs.ErrConflict
		}

		if err := transitionStatus(ctx, tx, req.ItemUid, model.ItemAvailable, model.ItemLoaned); err != nil {
			return err
		}

		query, args, err := qb.Insert(loanTableName).
			Columns("loan_uid", "item_uid", "member_id", "creation_date", "due_date", "status").
			Values(uuid.New(), req.ItemUid, req.MemberID, time.Now().UTC(), req.DueDate.UTC(), model.LoanBorrowed).
			Suffix("returning *").
			ToSql()
		if err != nil {
			return err
		}
		if err := tx.GetContext(ctx, &loan, query, args...); err != nil {
			r.log.Error("CreateLoan", zap.String("q", query), zap.Any("args", args))
			return err
		}
		return nil
	})
	if err != nil {
		return model.Loan{}, err
	}
	return loan, nil
}

func hasBlockingReservation(ctx context.Context, ext sqlx.ExtContext, itemUid, memberID string) (bool, error) {
	query, args, err := qb.Select("1").
		From(reservationTableName).
		Where(sq.Eq{"item_uid": itemUid, "status": model.ReservationPending, "is_deleted": false}).
		Where(sq.NotEq{"member_id": memberID}).
		Prefix("select exists (").
		Suffix(")").
		ToSql()
	if err != nil {
		return false, err
	}
	var exists bool
	if err := sqlx.GetContext(ctx, ext, &exists, query, args...); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *repository) GetLoan(ctx context.Context, loanUid string) (model.LoanDetails, error) {
	loan, err := getLoan(ctx, r.db, loanUid)
	if err != nil {
		return model.LoanDetails{}, err
	}

	query, args, err := qb.Select("fine_uid").
		From(fineTableName).
		Where(sq.Eq{"loan_uid": loanUid, "is_deleted": false}).
		OrderBy("created_at").
		ToSql()
	if err != nil {
		return model.LoanDetails{}, err
	}
	var fineUids []string
	if err := r.db.SelectContext(ctx, &fineUids, query, args...); err != nil {
		return model.LoanDetails{}, err
	}

	return model.LoanDetails{
		Loan:     loan,
		Overdue:  loan.Overdue(time.Now().UTC()),
		FineUids: fineUids,
	}, nil
}

func getLoan(ctx context.Context, ext sqlx.ExtContext, loanUid string) (model.Loan, error) {
	query, args, err := qb.Select("*").
		From(loanTableName).
		Where(sq.Eq{"loan_uid": loanUid, "is_deleted": false}).
		Limit(1).
		ToSql()
	if err != nil {
		return model.Loan{}, err
	}
	var loan model.Loan
	if err := sqlx.GetContext(ctx, ext, &loan, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Loan{}, errs.ErrNotFound
		}
		return model.Loan{}, err
	}
	return loan, nil
}

func (r *repository) ListLoans(ctx context.Context, filter model.LoanFilter) (model.ListLoans, error) {
	b := qb.Select("*").
		From(loanTableName).
		Where(sq.Eq{"is_deleted": false}).
		OrderBy("creation_date desc")
	if filter.MemberID != "" {
		b = b.Where(sq.Eq{"member_id": filter.MemberID})
	}
	if filter.Status != "" {
		b = b.Where(sq.Eq{"status": filter.Status})
	}
	query, args, err := withPaging(b, filter.Page, filter.Size).ToSql()
	if err != nil {
		return model.ListLoans{}, err
	}

	var loans []model.Loan
	if err := r.db.SelectContext(ctx, &loans, query, args...); err != nil {
		return model.ListLoans{}, err
	}

	now := time.Now().UTC()
	items := make([]model.LoanDetails, 0, len(loans))
	for _, l := range loans {
		items = append(items, model.LoanDetails{Loan: l, Overdue: l.Overdue(now)})
	}
	return model.ListLoans{
		Paging: model.Paging{
			Page:          filter.Page,
			PageSize:      filter.Size,
			TotalElements: len(items),
		},
		Items: items,
	}, nil
}

// ReturnLoan closes the loan first and frees the item second, in one
// transaction; repeating the call is a no-op error, never a double free.
func (r *repository) ReturnLoan(ctx context.Context, loanUid string) (model.Loan, error) {
	var loan model.Loan
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		query, args, err := qb.Update(loanTableName).
			Set("status", model.LoanReturned).
			Set("return_date", time.Now().UTC()).
			Where(sq.Eq{"loan_uid": loanUid, "is_deleted": false}).
			Where(sq.Eq{"status": []model.LoanStatus{model.LoanBorrowed, model.LoanOverdue}}).
			Suffix("returning *").
			ToSql()
		if err != nil {
			return err
		}
		if err := tx.GetContext(ctx, &loan, query, args...); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return classifyLoanWrite(ctx, tx, loanUid)
			}
			return err
		}

		return transitionStatus(ctx, tx, loan.ItemUid, model.ItemLoaned, model.ItemAvailable)
	})
	if err != nil {
		return model.Loan{}, err
	}
	return loan, nil
}

func classifyLoanWrite(ctx context.Context, ext sqlx.ExtContext, loanUid string) error {
	existing, err := getLoan(ctx, ext, loanUid)
	if err != nil {
		return err
	}
	if existing.Status == model.LoanReturned {
		return errs.ErrAlreadyReturned
	}
	return errs.ErrInvalidState
}

func (r *repository) ExtendLoan(ctx context.Context, loanUid string, req model.ExtendLoanRequest) (model.Loan, error) {
	query, args, err := qb.Update(loanTableName).
		Set("due_date", req.DueDate.UTC()).
		Where(sq.Eq{"loan_uid": loanUid, "status": model.LoanBorrowed, "is_deleted": false}).
		Where(sq.Lt{"due_date": req.DueDate.UTC()}).
		Suffix("returning *").
		ToSql()
	if err != nil {
		return model.Loan{}, err
	}
	var loan model.Loan
	if err := r.db.GetContext(ctx, &loan, query, args...); err == nil {
		return loan, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return model.Loan{}, err
	}

	existing, err := getLoan(ctx, r.db, loanUid)
	if err != nil {
		return model.Loan{}, err
	}
	if existing.Status != model.LoanBorrowed {
		return model.Loan{}, errs.ErrInvalidState
	}
	// loan is borrowed, so the new due date did not move forward
	return model.Loan{}, errs.ErrInvalidArgument
}

func (r *repository) SoftDeleteLoan(ctx context.Context, loanUid string) error {
	query, args, err := qb.Update(loanTableName).
		Set("is_deleted", true).
		Where(sq.Eq{"loan_uid": loanUid, "is_deleted": false, "status": model.LoanReturned}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 1 {
		return nil
	}
	if _, err := getLoan(ctx, r.db, loanUid); err != nil {
		return err
	}
	// an open loan keeps the item claimed, deleting it would strand the copy
	return errs.ErrInvalidState
}

// HardDeleteLoan is irreversible and restricted to already
// soft-deleted loans with no fines attached; it never touches the item.
func (r *repository) HardDeleteLoan(ctx context.Context, loanUid string) error {
	query, args, err := qb.Delete(loanTableName).
		Where(sq.Eq{"loan_uid": loanUid, "is_deleted": true}).
		Where("not exists (select 1 from "+fineTableName+" f where f.loan_uid = "+loanTableName+".loan_uid)").
		ToSql()
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 1 {
		return nil
	}

	var exists bool
	q, qargs, err := qb.Select("1").
		From(loanTableName).
		Where(sq.Eq{"loan_uid": loanUid}).
		Prefix("select exists (").
		Suffix(")").
		ToSql()
	if err != nil {
		return err
	}
	if err := r.db.GetContext(ctx, &exists, q, qargs...); err != nil {
		return err
	}
	if !exists {
		return errs.ErrNotFound
	}
	return errs.ErrInvalidState
}
