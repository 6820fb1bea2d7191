package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/libris/circulation-service/circulation/internal/errs"
	"github.com/libris/circulation-service/circulation/internal/model"
)

// CreateFine copies the member reference from the loan row; the loan is
// authoritative, a caller-supplied member is never stored.
func (r *repository) CreateFine(ctx context.Context, req model.RaiseFineRequest) (model.Fine, error) {
	q := fmt.Sprintf(`insert into %s (fine_uid, loan_uid, member_id, amount, reason, status, created_at)
	select $1, l.loan_uid, l.member_id, $2, $3, $4, $5
	from %s l where l.loan_uid = $6 and not l.is_deleted
	returning *`, fineTableName, loanTableName)

	var fine model.Fine
	err := r.db.GetContext(ctx, &fine, q,
		uuid.New(), req.Amount, req.Reason, model.FineUnpaid, time.Now().UTC(), req.LoanUid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Fine{}, errs.ErrNotFound
		}
		r.log.Error("CreateFine", zap.String("q", q), zap.Any("loanUid", req.LoanUid))
		return model.Fine{}, err
	}
	return fine, nil
}

func (r *repository) GetFine(ctx context.Context, fineUid string) (model.Fine, error) {
	return getFine(ctx, r.db, fineUid)
}

func getFine(ctx context.Context, ext sqlx.ExtContext, fineUid string) (model.Fine, error) {
	query, args, err := qb.Select("*").
		From(fineTableName).
		Where(sq.Eq{"fine_uid": fineUid, "is_deleted": false}).
		Limit(1).
		ToSql()
	if err != nil {
		return model.Fine{}, err
	}
	var fine model.Fine
	if err := sqlx.GetContext(ctx, ext, &fine, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Fine{}, errs.ErrNotFound
		}
		return model.Fine{}, err
	}
	return fine, nil
}

func (r *repository) ListFines(ctx context.Context, filter model.FineFilter) (model.ListFines, error) {
	b := qb.Select("*").
		From(fineTableName).
		Where(sq.Eq{"is_deleted": false}).
		OrderBy("created_at desc")
	if filter.MemberID != "" {
		b = b.Where(sq.Eq{"member_id": filter.MemberID})
	}
	if filter.Status != "" {
		b = b.Where(sq.Eq{"status": filter.Status})
	}
	query, args, err := withPaging(b, filter.Page, filter.Size).ToSql()
	if err != nil {
		return model.ListFines{}, err
	}

	var fines []model.Fine
	if err := r.db.SelectContext(ctx, &fines, query, args...); err != nil {
		return model.ListFines{}, err
	}
	return model.ListFines{
		Paging: model.Paging{
			Page:          filter.Page,
			PageSize:      filter.Size,
			TotalElements: len(fines),
		},
		Items: fines,
	}, nil
}

func (r *repository) MarkFinePaid(ctx context.Context, fineUid string) (model.Fine, error) {
	query, args, err := qb.Update(fineTableName).
		Set("status", model.FinePaid).
		Where(sq.Eq{"fine_uid": fineUid, "status": model.FineUnpaid, "is_deleted": false}).
		Suffix("returning *").
		ToSql()
	if err != nil {
		return model.Fine{}, err
	}
	var fine model.Fine
	if err := r.db.GetContext(ctx, &fine, query, args...); err == nil {
		return fine, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return model.Fine{}, err
	}

	existing, err := getFine(ctx, r.db, fineUid)
	if err != nil {
		return model.Fine{}, err
	}
	if existing.Status == model.FinePaid {
		return model.Fine{}, errs.ErrAlreadyPaid
	}
	return model.Fine{}, errs.ErrInvalidState
}

// UnpaidTotal is always computed, never cached; fines and payments
// mutate independently.
func (r *repository) UnpaidTotal(ctx context.Context, memberID string) (int64, error) {
	query, args, err := qb.Select("coalesce(sum(amount), 0)").
		From(fineTableName).
		Where(sq.Eq{"member_id": memberID, "status": model.FineUnpaid, "is_deleted": false}).
		ToSql()
	if err != nil {
		return 0, err
	}
	var total int64
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *repository) SoftDeleteFine(ctx context.Context, fineUid string) error {
	query, args, err := qb.Update(fineTableName).
		Set("is_deleted", true).
		Where(sq.Eq{"fine_uid": fineUid, "is_deleted": false}).
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
	} else if n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// HardDeleteFine is permitted only for soft-deleted fines that no
// payment references.
func (r *repository) HardDeleteFine(ctx context.Context, fineUid string) error {
	query, args, err := qb.Delete(fineTableName).
		Where(sq.Eq{"fine_uid": fineUid, "is_deleted": true}).
		Where("not exists (select 1 from "+paymentTableName+" p where p.fine_uid = "+fineTableName+".fine_uid)").
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
		From(fineTableName).
		Where(sq.Eq{"fine_uid": fineUid}).
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
