package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/libris/circulation-service/audit/internal/model"
	"github.com/libris/circulation-service/audit/internal/repository"
	"github.com/libris/circulation-service/pkg/kafka"
)

type Service struct {
	repo repository.Repository
	log  *zap.Logger
}

func NewService(repo repository.Repository, log *zap.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.Named("service"),
	}
}

func (s *Service) Append(ctx context.Context, event kafka.Event) error {
	return s.repo.Append(ctx, event)
}

func (s *Service) GetRecords(ctx context.Context, filter model.Filter) (model.ListRecords, error) {
	return s.repo.GetRecords(ctx, filter)
}
