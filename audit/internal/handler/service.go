package handler

import (
	"context"

	"github.com/libris/circulation-service/audit/internal/model"
	"github.com/libris/circulation-service/audit/internal/service"
)

type AuditService interface {
	GetRecords(ctx context.Context, filter model.Filter) (model.ListRecords, error)
}

var _ AuditService = (*service.Service)(nil)
