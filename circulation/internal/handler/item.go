package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/libris/circulation-service/circulation/internal/model"
)

func (h *Handler) CreateItem(c echo.Context) error {
	var req model.CreateItemRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	item, err := h.itemSvc.CreateItem(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, item)
}

func (h *Handler) GetItem(c echo.Context) error {
	item, err := h.itemSvc.GetItem(c.Request().Context(), c.Param("itemUid"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) GetItemByBarcode(c echo.Context) error {
	item, err := h.itemSvc.GetItemByBarcode(c.Request().Context(), c.Param("barcode"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) ListItems(c echo.Context) error {
	page, size := paging(c)
	filter := model.ItemFilter{
		BookUid: c.QueryParam("bookUid"),
		Status:  model.ItemStatus(c.QueryParam("status")),
		Page:    page,
		Size:    size,
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid status filter")
	}
	items, err := h.itemSvc.ListItems(c.Request().Context(), filter)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UpdateItem(c echo.Context) error {
	var req model.UpdateItemRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	item, err := h.itemSvc.UpdateItem(c.Request().Context(), c.Param("itemUid"), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) UpdateItemStatus(c echo.Context) error {
	type Req struct {
		Status model.ItemStatus `json:"status" validate:"required,oneof=AVAILABLE LOANED RESERVED"`
	}
	var req Req
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	if err := h.itemSvc.UpdateStatus(c.Request().Context(), c.Param("itemUid"), req.Status); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusOK)
}

func (h *Handler) DeleteItem(c echo.Context) error {
	if err := h.itemSvc.DeleteItem(c.Request().Context(), c.Param("itemUid")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
