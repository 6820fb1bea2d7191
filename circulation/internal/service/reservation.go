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

// Reservation manages holds. A hold claims the item with the same
// compare-and-set the lending manager uses; expiry is lazy, applied by
// every read path that must not see stale pending rows.
type Reservation struct {
	log        *zap.Logger
	repo       repository.ReservationRepository
	holdWindow time.Duration
	events     Emitter
}

func NewReservation(repo repository.ReservationRepository, holdWindow time.Duration, events Emitter, log *zap.Logger) *Reservation {
	return &Reservation{
		log:        log,
		repo:       repo,
		holdWindow: holdWindow,
		events:     events,
	}
}

func (s *Reservation) CreateReservation(ctx context.Context, req model.CreateReservationRequest) (model.Reservation, error) {
	rsv, err := s.repo.CreateReservation(ctx, req, repository.ExpireAfter(s.holdWindow))
	if err != nil {
		if errors.Is(err, errs.ErrConflict) || errors.Is(err, errs.ErrReferenceOnly) {
			return model.Reservation{}, errs.ErrNotReservable
		}
		return model.Reservation{}, err
	}
	s.events.emit(ctx, "create_reservation", TargetReservation, rsv.ReservationUid,
		fmt.Sprintf("item %s held for %s until %s", rsv.ItemUid, rsv.MemberID, rsv.ExpirationDate.Format(time.RFC3339)))
	return rsv, nil
}

func (s *Reservation) GetReservation(ctx context.Context, reservationUid string) (model.Reservation, error) {
	return s.repo.GetReservation(ctx, reservationUid)
}

func (s *Reservation) ListReservations(ctx context.Context, filter model.ReservationFilter) (model.ListReservations, error) {
	return s.repo.ListReservations(ctx, filter)
}

func (s *Reservation) CancelReservation(ctx context.Context, reservationUid string) (model.Reservation, error) {
	rsv, err := s.repo.CancelReservation(ctx, reservationUid)
	if err != nil {
		return model.Reservation{}, err
	}
	s.events.emit(ctx, "cancel_reservation", TargetReservation, rsv.ReservationUid,
		fmt.Sprintf("item %s released", rsv.ItemUid))
	return rsv, nil
}

// CompleteReservation marks fulfilment and hands the item back so the
// member's follow-up loan request can claim it; the reservation manager
// never creates loans itself.
func (s *Reservation) CompleteReservation(ctx context.Context, reservationUid string) (model.Reservation, error) {
	rsv, err := s.repo.CompleteReservation(ctx, reservationUid)
	if err != nil {
		return model.Reservation{}, err
	}
	s.events.emit(ctx, "complete_reservation", TargetReservation, rsv.ReservationUid,
		fmt.Sprintf("item %s ready for pickup", rsv.ItemUid))
	return rsv, nil
}

func (s *Reservation) CheckExpiration(ctx context.Context, reservationUid string) (model.Reservation, error) {
	rsv, flipped, err := s.repo.CheckExpiration(ctx, reservationUid)
	if err != nil {
		return model.Reservation{}, err
	}
	if flipped {
		s.events.emit(ctx, "expire_reservation", TargetReservation, rsv.ReservationUid,
			fmt.Sprintf("hold on item %s expired", rsv.ItemUid))
	}
	return rsv, nil
}

func (s *Reservation) DeleteReservation(ctx context.Context, reservationUid string) error {
	if err := s.repo.SoftDeleteReservation(ctx, reservationUid); err != nil {
		return err
	}
	s.events.emit(ctx, "soft_delete_reservation", TargetReservation, reservationUid, "reservation soft deleted")
	return nil
}
