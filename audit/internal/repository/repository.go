package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/libris/circulation-service/audit/internal/model"
	"github.com/libris/circulation-service/pkg/kafka"
)

type Repository interface {
	Append(ctx context.Context, event kafka.Event) error
	GetRecords(ctx context.Context, filter model.Filter) (model.ListRecords, error)
}

type repository struct {
	db  *pgxpool.Pool
	log *zap.Logger
}

func NewRepository(db *pgxpool.Pool, log *zap.Logger) (Repository, error) {
	return &repository{
		db:  db,
		log: log.Named("repo"),
	}, nil
}

func (r *repository) Append(ctx context.Context, event kafka.Event) error {
	q := `insert into audit_events (actor, action, target_type, target_uid, details, timestamp)
	values (@actor, @action, @target_type, @target_uid, @details, @timestamp)`
	args := pgx.NamedArgs{
		"actor":       event.Actor,
		"action":      event.Action,
		"target_type": event.TargetType,
		"target_uid":  event.TargetUID,
		"details":     event.Details,
		"timestamp":   event.Timestamp,
	}
	_, err := r.db.Exec(ctx, q, args)
	return err
}

const defaultPageSize = 100

func (r *repository) GetRecords(ctx context.Context, filter model.Filter) (model.ListRecords, error) {
	q := `select actor, action, target_type, target_uid, details, timestamp from audit_events where true`
	args := pgx.NamedArgs{}
	if filter.Actor != "" {
		q += ` and actor = @actor`
		args["actor"] = filter.Actor
	}
	if filter.Action != "" {
		q += ` and action = @action`
		args["action"] = filter.Action
	}
	if filter.TargetType != "" {
		q += ` and target_type = @target_type`
		args["target_type"] = filter.TargetType
	}
	if filter.TargetUID != "" {
		q += ` and target_uid = @target_uid`
		args["target_uid"] = filter.TargetUID
	}
	if !filter.From.IsZero() {
		q += ` and timestamp >= @from`
		args["from"] = filter.From
	}
	if !filter.To.IsZero() {
		q += ` and timestamp < @to`
		args["to"] = filter.To
	}
	size := filter.Size
	if size <= 0 {
		size = defaultPageSize
	}
	page := filter.Page
	if page < 0 {
		page = 0
	}
	q += ` order by timestamp desc limit @limit offset @offset`
	args["limit"] = size
	args["offset"] = page * size

	rows, err := r.db.Query(ctx, q, args)
	if err != nil {
		return model.ListRecords{}, err
	}
	defer rows.Close()
	records, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.Record])
	if err != nil {
		return model.ListRecords{}, fmt.Errorf("pgx.CollectRows: %w", err)
	}
	return model.ListRecords{Data: records}, nil
}
