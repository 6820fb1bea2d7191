package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/libris/circulation-service/circulation/internal/errs"
	"github.com/libris/circulation-service/circulation/internal/model"
)

const barcodeAttempts = 5

func newBarcode() string {
	return "BOOK-" + strings.ToUpper(uuid.NewString()[:8])
}

func (r *repository) CreateItem(ctx context.Context, req model.CreateItemRequest) (model.Item, error) {
	var item model.Item
	for i := 0; i < barcodeAttempts; i++ {
		query, args, err := qb.Insert(itemTableName).
			Columns("item_uid", "book_uid", "barcode", "is_reference_only", "price", "status", "date_of_purchase", "rack_uid").
			Values(uuid.New(), req.BookUid, newBarcode(), req.IsReferenceOnly, req.Price, model.ItemAvailable, time.Now().UTC(), req.RackUid).
			Suffix("returning *").
			ToSql()
		if err != nil {
			return model.Item{}, err
		}
		err = r.db.GetContext(ctx, &item, query, args...)
		if err == nil {
			return item, nil
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			continue // barcode collision, regenerate
		}
		r.log.Error("CreateItem", zap.String("q", query), zap.Any("args", args))
		return model.Item{}, err
	}
	return model.Item{}, fmt.Errorf("barcode generation exhausted after %d attempts", barcodeAttempts)
}

func (r *repository) GetItem(ctx context.Context, itemUid string) (model.Item, error) {
	return r.getItem(ctx, r.db, sq.Eq{"item_uid": itemUid})
}

func (r *repository) GetItemByBarcode(ctx context.Context, barcode string) (model.Item, error) {
	return r.getItem(ctx, r.db, sq.Eq{"barcode": barcode})
}

func (r *repository) getItem(ctx context.Context, ext sqlx.ExtContext, pred sq.Eq) (model.Item, error) {
	query, args, err := qb.Select("*").
		From(itemTableName).
		Where(pred).
		Where(sq.Eq{"is_deleted": false}).
		Limit(1).
		ToSql()
	if err != nil {
		return model.Item{}, err
	}
	var item model.Item
	if err := sqlx.GetContext(ctx, ext, &item, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Item{}, errs.ErrNotFound
		}
		return model.Item{}, err
	}
	return item, nil
}

func (r *repository) ListItems(ctx context.Context, filter model.ItemFilter) (model.ListItems, error) {
	b := qb.Select("*").
		From(itemTableName).
		Where(sq.Eq{"is_deleted": false}).
		OrderBy("barcode")
	if filter.BookUid != "" {
		b = b.Where(sq.Eq{"book_uid": filter.BookUid})
	}
	if filter.Status != "" {
		b = b.Where(sq.Eq{"status": filter.Status})
	}
	query, args, err := withPaging(b, filter.Page, filter.Size).ToSql()
	if err != nil {
		return model.ListItems{}, err
	}

	var items []model.Item
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return model.ListItems{}, err
	}
	return model.ListItems{
		Paging: model.Paging{
			Page:          filter.Page,
			PageSize:      filter.Size,
			TotalElements: len(items),
		},
		Items: items,
	}, nil
}

func (r *repository) UpdateItem(ctx context.Context, itemUid string, req model.UpdateItemRequest) (model.Item, error) {
	b := qb.Update(itemTableName).
		Where(sq.Eq{"item_uid": itemUid, "is_deleted": false}).
		Suffix("returning *")
	if req.Price != nil {
		b = b.Set("price", *req.Price)
	}
	if req.RackUid != nil {
		b = b.Set("rack_uid", *req.RackUid)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return model.Item{}, err
	}
	var item model.Item
	if err := r.db.GetContext(ctx, &item, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Item{}, errs.ErrNotFound
		}
		return model.Item{}, err
	}
	return item, nil
}

// TransitionStatus is the atomic compare-and-set on the item status
// cell. Exactly one of two concurrent claimers gets the row; the other
// sees ErrConflict.
func (r *repository) TransitionStatus(ctx context.Context, itemUid string, from, to model.ItemStatus) error {
	return transitionStatus(ctx, r.db, itemUid, from, to)
}

func transitionStatus(ctx context.Context, ext sqlx.ExtContext, itemUid string, from, to model.ItemStatus) error {
	b := qb.Update(itemTableName).
		Set("status", to).
		Where(sq.Eq{"item_uid": itemUid, "status": from, "is_deleted": false})
	if to != model.ItemAvailable {
		b = b.Where(sq.Eq{"is_reference_only": false})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	res, err := ext.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 1 {
		return nil
	}
	return classifyTransition(ctx, ext, itemUid, to)
}

// classifyTransition turns a zero-row conditional update into the
// error the caller can act on.
func classifyTransition(ctx context.Context, ext sqlx.ExtContext, itemUid string, to model.ItemStatus) error {
	query, args, err := qb.Select("status", "is_reference_only").
		From(itemTableName).
		Where(sq.Eq{"item_uid": itemUid, "is_deleted": false}).
		ToSql()
	if err != nil {
		return err
	}
	var it struct {
		Status          model.ItemStatus `db:"status"`
		IsReferenceOnly bool             `db:"is_reference_only"`
	}
	if err := sqlx.GetContext(ctx, ext, &it, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errs.ErrNotFound
		}
		return err
	}
	if it.IsReferenceOnly && to != model.ItemAvailable {
		return errs.ErrReferenceOnly
	}
	return errs.ErrConflict
}

// SoftDeleteItem only frees copies that are on the shelf; a loaned or
// reserved copy is still referenced by an active transaction.
func (r *repository) SoftDeleteItem(ctx context.Context, itemUid string) error {
	query, args, err := qb.Update(itemTableName).
		Set("is_deleted", true).
		Where(sq.Eq{"item_uid": itemUid, "is_deleted": false, "status": model.ItemAvailable}).
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
	if _, err := r.getItem(ctx, r.db, sq.Eq{"item_uid": itemUid}); err != nil {
		return err
	}
	return errs.ErrInvalidState
}
