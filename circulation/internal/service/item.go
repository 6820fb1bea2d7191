package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/libris/circulation-service/circulation/internal/errs"
	"github.com/libris/circulation-service/circulation/internal/model"
	"github.com/libris/circulation-service/circulation/internal/repository"
	"github.com/libris/circulation-service/circulation/internal/service/catalog"
)

// CatalogClient is the read-only catalog collaborator.
type CatalogClient interface {
	GetBook(ctx context.Context, bookUid string) (catalog.Book, error)
}

// Item is the registry of physical copies; it owns the status cell that
// the reservation and lending managers transition.
type Item struct {
	log     *zap.Logger
	repo    repository.ItemRepository
	catalog CatalogClient
	events  Emitter
}

func NewItem(repo repository.ItemRepository, cat CatalogClient, events Emitter, log *zap.Logger) *Item {
	return &Item{
		log:     log,
		repo:    repo,
		catalog: cat,
		events:  events,
	}
}

func (s *Item) CreateItem(ctx context.Context, req model.CreateItemRequest) (model.Item, error) {
	item, err := s.repo.CreateItem(ctx, req)
	if err != nil {
		return model.Item{}, err
	}
	s.events.emit(ctx, "create_book_item", TargetItem, item.ItemUid,
		fmt.Sprintf("book item %q created", item.Barcode))
	return item, nil
}

// GetItem enriches the copy with its catalog title when the catalog is
// reachable; a catalog failure degrades to bare ids.
func (s *Item) GetItem(ctx context.Context, itemUid string) (model.ItemDetails, error) {
	item, err := s.repo.GetItem(ctx, itemUid)
	if err != nil {
		return model.ItemDetails{}, err
	}
	details := model.ItemDetails{Item: item}
	if s.catalog != nil {
		if book, err := s.catalog.GetBook(ctx, item.BookUid); err == nil {
			details.BookTitle = book.Title
		} else {
			s.log.Debug("catalog lookup failed", zap.String("bookUid", item.BookUid), zap.Error(err))
		}
	}
	return details, nil
}

func (s *Item) GetItemByBarcode(ctx context.Context, barcode string) (model.Item, error) {
	return s.repo.GetItemByBarcode(ctx, barcode)
}

func (s *Item) ListItems(ctx context.Context, filter model.ItemFilter) (model.ListItems, error) {
	return s.repo.ListItems(ctx, filter)
}

func (s *Item) UpdateItem(ctx context.Context, itemUid string, req model.UpdateItemRequest) (model.Item, error) {
	if req.Price == nil && req.RackUid == nil {
		return model.Item{}, errs.ErrInvalidArgument
	}
	item, err := s.repo.UpdateItem(ctx, itemUid, req)
	if err != nil {
		return model.Item{}, err
	}
	s.events.emit(ctx, "update_book_item", TargetItem, item.ItemUid, "book item updated")
	return item, nil
}

func (s *Item) GetStatus(ctx context.Context, itemUid string) (model.ItemStatus, error) {
	item, err := s.repo.GetItem(ctx, itemUid)
	if err != nil {
		return "", err
	}
	return item.Status, nil
}

// UpdateStatus is the privileged direct transition; the reference-only
// rule still applies at the registry.
func (s *Item) UpdateStatus(ctx context.Context, itemUid string, status model.ItemStatus) error {
	if !status.Valid() {
		return errs.ErrInvalidArgument
	}
	item, err := s.repo.GetItem(ctx, itemUid)
	if err != nil {
		return err
	}
	if item.Status == status {
		return nil
	}
	if err := s.repo.TransitionStatus(ctx, itemUid, item.Status, status); err != nil {
		return err
	}
	s.events.emit(ctx, "update_book_item_status", TargetItem, itemUid,
		fmt.Sprintf("book item status updated to %s", status))
	return nil
}

func (s *Item) DeleteItem(ctx context.Context, itemUid string) error {
	if err := s.repo.SoftDeleteItem(ctx, itemUid); err != nil {
		return err
	}
	s.events.emit(ctx, "soft_delete_book_item", TargetItem, itemUid, "book item soft deleted")
	return nil
}
