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

// CreatePayment settles a fine: the row is locked, the amount must match
// the fine exactly, and the fine flips UNPAID->PAID in the same
// transaction as the payment insert.
func (r *repository) CreatePayment(ctx context.Context, req model.CreatePaymentRequest) (model.Payment, error) {
	var payment model.Payment
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		q := fmt.Sprintf(`select * from %s where fine_uid = $1 and not is_deleted for update`, fineTableName)
		var fine model.Fine
		if err := tx.GetContext(ctx, &fine, q, req.FineUid); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errs.ErrNotFound
			}
			return err
		}
		if fine.Status == model.FinePaid {
			return errs.ErrAlreadyPaid
		}
		if req.Amount != fine.Amount {
			return errs.ErrInvalidArgument
		}

		query, args, err := qb.Insert(paymentTableName).
			Columns("payment_uid", "fine_uid", "amount", "method", "transaction_id", "paid_date").
			Values(uuid.New(), req.FineUid, req.Amount, req.Method, req.TransactionID, time.Now().UTC()).
			Suffix("returning *").
			ToSql()
		if err != nil {
			return err
		}
		if err := tx.GetContext(ctx, &payment, query, args...); err != nil {
			r.log.Error("CreatePayment", zap.String("q", query), zap.Any("args", args))
			return err
		}

		query, args, err = qb.Update(fineTableName).
			Set("status", model.FinePaid).
			Where(sq.Eq{"fine_uid": req.FineUid}).
			ToSql()
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		return model.Payment{}, err
	}
	return payment, nil
}

func (r *repository) GetPayment(ctx context.Context, paymentUid string) (model.Payment, error) {
	query, args, err := qb.Select("*").
		From(paymentTableName).
		Where(sq.Eq{"payment_uid": paymentUid, "is_deleted": false}).
		Limit(1).
		ToSql()
	if err != nil {
		return model.Payment{}, err
	}
	var payment model.Payment
	if err := r.db.GetContext(ctx, &payment, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Payment{}, errs.ErrNotFound
		}
		return model.Payment{}, err
	}
	return payment, nil
}

func (r *repository) ListPayments(ctx context.Context, filter model.PaymentFilter) (model.ListPayments, error) {
	b := qb.Select("p.*").
		From(paymentTableName + " p").
		Where(sq.Eq{"p.is_deleted": false}).
		OrderBy("p.paid_date desc")
	if filter.FineUid != "" {
		b = b.Where(sq.Eq{"p.fine_uid": filter.FineUid})
	}
	if filter.Method != "" {
		b = b.Where(sq.Eq{"p.method": filter.Method})
	}
	if filter.MemberID != "" {
		b = b.Join(fmt.Sprintf("%s f on f.fine_uid = p.fine_uid", fineTableName)).
			Where(sq.Eq{"f.member_id": filter.MemberID})
	}
	query, args, err := withPaging(b, filter.Page, filter.Size).ToSql()
	if err != nil {
		return model.ListPayments{}, err
	}

	var payments []model.Payment
	if err := r.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return model.ListPayments{}, err
	}
	return model.ListPayments{
		Paging: model.Paging{
			Page:          filter.Page,
			PageSize:      filter.Size,
			TotalElements: len(payments),
		},
		Items: payments,
	}, nil
}

// DeletePayment is the payment-reversal path: the payment is
// soft-deleted and the fine reopens as UNPAID in one transaction.
func (r *repository) DeletePayment(ctx context.Context, paymentUid string) (model.Payment, error) {
	var payment model.Payment
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		query, args, err := qb.Update(paymentTableName).
			Set("is_deleted", true).
			Where(sq.Eq{"payment_uid": paymentUid, "is_deleted": false}).
			Suffix("returning *").
			ToSql()
		if err != nil {
			return err
		}
		if err := tx.GetContext(ctx, &payment, query, args...); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errs.ErrNotFound
			}
			return err
		}

		query, args, err = qb.Update(fineTableName).
			Set("status", model.FineUnpaid).
			Where(sq.Eq{"fine_uid": payment.FineUid, "is_deleted": false}).
			ToSql()
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		return model.Payment{}, err
	}
	return payment, nil
}
