package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/libris/circulation-service/circulation/internal/model"
)

func (h *Handler) RaiseFine(c echo.Context) error {
	var req model.RaiseFineRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	fine, err := h.fineSvc.RaiseFine(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, fine)
}

func (h *Handler) GetFine(c echo.Context) error {
	cl, err := caller(c)
	if err != nil {
		return err
	}
	fine, err := h.fineSvc.GetFine(c.Request().Context(), c.Param("fineUid"))
	if err != nil {
		return httpError(err)
	}
	if !cl.Role.Staff() && fine.MemberID != cl.ID {
		return echo.NewHTTPError(http.StatusForbidden, "AccessDenied")
	}
	return c.JSON(http.StatusOK, fine)
}

func (h *Handler) ListFines(c echo.Context) error {
	cl, err := caller(c)
	if err != nil {
		return err
	}
	page, size := paging(c)
	filter := model.FineFilter{
		MemberID: c.QueryParam("memberId"),
		Status:   model.FineStatus(c.QueryParam("status")),
		Page:     page,
		Size:     size,
	}
	if !cl.Role.Staff() {
		filter.MemberID = cl.ID
	}
	fines, err := h.fineSvc.ListFines(c.Request().Context(), filter)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, fines)
}

func (h *Handler) MarkFinePaid(c echo.Context) error {
	fine, err := h.fineSvc.MarkPaid(c.Request().Context(), c.Param("fineUid"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, fine)
}

func (h *Handler) UnpaidTotal(c echo.Context) error {
	cl, err := caller(c)
	if err != nil {
		return err
	}
	memberID := c.QueryParam("memberId")
	if !cl.Role.Staff() {
		memberID = cl.ID
	}
	if memberID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "memberId is required")
	}
	total, err := h.fineSvc.UnpaidTotal(c.Request().Context(), memberID)
	if err != nil {
		return httpError(err)
	}
	type resp struct {
		MemberID string `json:"memberId"`
		Total    int64  `json:"total"`
	}
	return c.JSON(http.StatusOK, resp{MemberID: memberID, Total: total})
}

func (h *Handler) DeleteFine(c echo.Context) error {
	if err := h.fineSvc.DeleteFine(c.Request().Context(), c.Param("fineUid")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) HardDeleteFine(c echo.Context) error {
	if err := h.fineSvc.HardDeleteFine(c.Request().Context(), c.Param("fineUid")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
