package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/libris/circulation-service/circulation/internal/model"
)

func (h *Handler) CreateReservation(c echo.Context) error {
	cl, err := caller(c)
	if err != nil {
		return err
	}
	var req model.CreateReservationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if !cl.Role.Staff() {
		req.MemberID = cl.ID
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	rsv, err := h.reservationSvc.CreateReservation(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, rsv)
}

func (h *Handler) GetReservation(c echo.Context) error {
	cl, err := caller(c)
	if err != nil {
		return err
	}
	rsv, err := h.reservationSvc.GetReservation(c.Request().Context(), c.Param("reservationUid"))
	if err != nil {
		return httpError(err)
	}
	if !cl.Role.Staff() && rsv.MemberID != cl.ID {
		return echo.NewHTTPError(http.StatusForbidden, "AccessDenied")
	}
	return c.JSON(http.StatusOK, rsv)
}

func (h *Handler) ListReservations(c echo.Context) error {
	cl, err := caller(c)
	if err != nil {
		return err
	}
	page, size := paging(c)
	filter := model.ReservationFilter{
		MemberID: c.QueryParam("memberId"),
		Status:   model.ReservationStatus(c.QueryParam("status")),
		Page:     page,
		Size:     size,
	}
	if !cl.Role.Staff() {
		filter.MemberID = cl.ID
	}
	rsvs, err := h.reservationSvc.ListReservations(c.Request().Context(), filter)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rsvs)
}

func (h *Handler) CancelReservation(c echo.Context) error {
	cl, err := caller(c)
	if err != nil {
		return err
	}
	reservationUid := c.Param("reservationUid")
	if !cl.Role.Staff() {
		rsv, err := h.reservationSvc.GetReservation(c.Request().Context(), reservationUid)
		if err != nil {
			return httpError(err)
		}
		if rsv.MemberID != cl.ID {
			return echo.NewHTTPError(http.StatusForbidden, "AccessDenied")
		}
	}
	rsv, err := h.reservationSvc.CancelReservation(c.Request().Context(), reservationUid)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rsv)
}

func (h *Handler) CompleteReservation(c echo.Context) error {
	rsv, err := h.reservationSvc.CompleteReservation(c.Request().Context(), c.Param("reservationUid"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rsv)
}

func (h *Handler) CheckExpiration(c echo.Context) error {
	rsv, err := h.reservationSvc.CheckExpiration(c.Request().Context(), c.Param("reservationUid"))
	if err != nil {
		return httpError(err)
	}
	type resp struct {
		ReservationUid string                  `json:"reservationUid"`
		Status         model.ReservationStatus `json:"status"`
	}
	return c.JSON(http.StatusOK, resp{ReservationUid: rsv.ReservationUid, Status: rsv.Status})
}

func (h *Handler) DeleteReservation(c echo.Context) error {
	if err := h.reservationSvc.DeleteReservation(c.Request().Context(), c.Param("reservationUid")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
