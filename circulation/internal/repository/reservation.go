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

// ExpireAfter is the hold window applied to a new reservation.
type ExpireAfter time.Duration

// expireDueReservations lazily flips overdue PENDING reservations to
// EXPIRED and releases their items. Every read path that must not see
// stale pending rows runs this first, scoped by pred.
func expireDueReservations(ctx context.Context, ext sqlx.ExtContext, pred interface{}) error {
	b := qb.Update(reservationTableName).
		Set("status", model.ReservationExpired).
		Where(sq.Eq{"status": model.ReservationPending, "is_deleted": false}).
		Where(sq.Lt{"expiration_date": time.Now().UTC()}).
		Suffix("returning item_uid")
	if pred != nil {
		b = b.Where(pred)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	var itemUids []string
	if err := sqlx.SelectContext(ctx, ext, &itemUids, query, args...); err != nil {
		return err
	}
	for _, itemUid := range itemUids {
		err := transitionStatus(ctx, ext, itemUid, model.ItemReserved, model.ItemAvailable)
		if err != nil && !errors.Is(err, errs.ErrConflict) && !errors.Is(err, errs.ErrNotFound) {
			return err
		}
	}
	return nil
}

// CreateReservation claims the item with the AVAILABLE->RESERVED
// compare-and-set and inserts the hold in one transaction.
func (r *repository) CreateReservation(ctx context.Context, req model.CreateReservationRequest, expiration ExpireAfter) (model.Reservation, error) {
	var rsv model.Reservation
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := expireDueReservations(ctx, tx, sq.Eq{"item_uid": req.ItemUid}); err != nil {
			return err
		}
		if err := transitionStatus(ctx, tx, req.ItemUid, model.ItemAvailable, model.ItemReserved); err != nil {
			return err
		}

		now := time.Now().UTC()
		query, args, err := qb.Insert(reservationTableName).
			Columns("reservation_uid", "item_uid", "member_id", "creation_date", "expiration_date", "status").
			Values(uuid.New(), req.ItemUid, req.MemberID, now, now.Add(time.Duration(expiration)), model.ReservationPending).
			Suffix("returning *").
			ToSql()
		if err != nil {
			return err
		}
		if err := tx.GetContext(ctx, &rsv, query, args...); err != nil {
			r.log.Error("CreateReservation", zap.String("q", query), zap.Any("args", args))
			return err
		}
		return nil
	})
	if err != nil {
		return model.Reservation{}, err
	}
	return rsv, nil
}

func (r *repository) GetReservation(ctx context.Context, reservationUid string) (model.Reservation, error) {
	var rsv model.Reservation
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := expireDueReservations(ctx, tx, sq.Eq{"reservation_uid": reservationUid}); err != nil {
			return err
		}
		var err error
		rsv, err = getReservation(ctx, tx, reservationUid)
		return err
	})
	if err != nil {
		return model.Reservation{}, err
	}
	return rsv, nil
}

func getReservation(ctx context.Context, ext sqlx.ExtContext, reservationUid string) (model.Reservation, error) {
	query, args, err := qb.Select("*").
		From(reservationTableName).
		Where(sq.Eq{"reservation_uid": reservationUid, "is_deleted": false}).
		Limit(1).
		ToSql()
	if err != nil {
		return model.Reservation{}, err
	}
	var rsv model.Reservation
	if err := sqlx.GetContext(ctx, ext, &rsv, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Reservation{}, errs.ErrNotFound
		}
		return model.Reservation{}, err
	}
	return rsv, nil
}

func (r *repository) ListReservations(ctx context.Context, filter model.ReservationFilter) (model.ListReservations, error) {
	var list model.ListReservations
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		// sweep before reporting so listings never show stale pending rows
		if err := expireDueReservations(ctx, tx, nil); err != nil {
			return err
		}

		b := qb.Select("*").
			From(reservationTableName).
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
			return err
		}

		var items []model.Reservation
		if err := tx.SelectContext(ctx, &items, query, args...); err != nil {
			return err
		}
		list = model.ListReservations{
			Paging: model.Paging{
				Page:          filter.Page,
				PageSize:      filter.Size,
				TotalElements: len(items),
			},
			Items: items,
		}
		return nil
	})
	if err != nil {
		return model.ListReservations{}, err
	}
	return list, nil
}

func (r *repository) CancelReservation(ctx context.Context, reservationUid string) (model.Reservation, error) {
	return r.closeReservation(ctx, reservationUid, model.ReservationCancelled, false)
}

func (r *repository) CompleteReservation(ctx context.Context, reservationUid string) (model.Reservation, error) {
	return r.closeReservation(ctx, reservationUid, model.ReservationCompleted, true)
}

// closeReservation moves a PENDING hold to a terminal state and hands
// the item back to AVAILABLE.
func (r *repository) closeReservation(ctx context.Context, reservationUid string, to model.ReservationStatus, fulfil bool) (model.Reservation, error) {
	var rsv model.Reservation
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := expireDueReservations(ctx, tx, sq.Eq{"reservation_uid": reservationUid}); err != nil {
			return err
		}

		b := qb.Update(reservationTableName).
			Set("status", to).
			Where(sq.Eq{"reservation_uid": reservationUid, "status": model.ReservationPending, "is_deleted": false}).
			Suffix("returning *")
		if fulfil {
			b = b.Set("reservation_date", time.Now().UTC())
		}
		query, args, err := b.ToSql()
		if err != nil {
			return err
		}
		if err := tx.GetContext(ctx, &rsv, query, args...); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				if _, err := getReservation(ctx, tx, reservationUid); err != nil {
					return err
				}
				return errs.ErrInvalidState
			}
			return err
		}

		return transitionStatus(ctx, tx, rsv.ItemUid, model.ItemReserved, model.ItemAvailable)
	})
	if err != nil {
		return model.Reservation{}, err
	}
	return rsv, nil
}

// CheckExpiration applies the lazy expiry rule to one reservation and
// reports its resulting status; the bool is true when this call did the
// PENDING->EXPIRED flip.
func (r *repository) CheckExpiration(ctx context.Context, reservationUid string) (model.Reservation, bool, error) {
	var (
		rsv     model.Reservation
		flipped bool
	)
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		query, args, err := qb.Update(reservationTableName).
			Set("status", model.ReservationExpired).
			Where(sq.Eq{"reservation_uid": reservationUid, "status": model.ReservationPending, "is_deleted": false}).
			Where(sq.Lt{"expiration_date": time.Now().UTC()}).
			Suffix("returning *").
			ToSql()
		if err != nil {
			return err
		}
		err = tx.GetContext(ctx, &rsv, query, args...)
		if err == nil {
			flipped = true
			err := transitionStatus(ctx, tx, rsv.ItemUid, model.ItemReserved, model.ItemAvailable)
			if err != nil && !errors.Is(err, errs.ErrConflict) && !errors.Is(err, errs.ErrNotFound) {
				return err
			}
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		rsv, err = getReservation(ctx, tx, reservationUid)
		return err
	})
	if err != nil {
		return model.Reservation{}, false, err
	}
	return rsv, flipped, nil
}

func (r *repository) SoftDeleteReservation(ctx context.Context, reservationUid string) error {
	terminal := []model.ReservationStatus{
		model.ReservationCompleted,
		model.ReservationCancelled,
		model.ReservationExpired,
	}
	query, args, err := qb.Update(reservationTableName).
		Set("is_deleted", true).
		Where(sq.Eq{"reservation_uid": reservationUid, "is_deleted": false}).
		Where(sq.Eq{"status": terminal}).
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
	if _, err := getReservation(ctx, r.db, reservationUid); err != nil {
		return err
	}
	// still pending, release it before deleting
	return errs.ErrInvalidState
}
