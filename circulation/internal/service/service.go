package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/libris/circulation-service/pkg/auth"
	"github.com/libris/circulation-service/pkg/kafka"
)

// Target types used in audit events.
const (
	TargetItem        = "BookItem"
	TargetLoan        = "Loan"
	TargetReservation = "Reservation"
	TargetFine        = "Fine"
	TargetPayment     = "Payment"
)

type Enqueuer interface {
	Enqueue(topic string, v any) error
}

func NewEnqueuer(producer sarama.SyncProducer) Enqueuer {
	return &enqueuerImpl{
		producer: producer,
	}
}

type enqueuerImpl struct {
	producer sarama.SyncProducer
}

func (q *enqueuerImpl) Enqueue(topic string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{Topic: topic, Value: sarama.StringEncoder(data)}
	if _, _, err = q.producer.SendMessage(msg); err != nil {
		return err
	}
	return nil
}

// Emitter publishes one audit event per successful state transition.
// Emission is best-effort: failures are logged and dropped, never
// propagated into the primary operation.
type Emitter struct {
	enq   Enqueuer
	topic string
	log   *zap.Logger
}

func NewEmitter(enq Enqueuer, topic string, log *zap.Logger) Emitter {
	return Emitter{enq: enq, topic: topic, log: log.Named("audit")}
}

func (e Emitter) emit(ctx context.Context, action, targetType, targetUid, details string) {
	if e.enq == nil {
		return
	}
	actor := "system"
	if caller, err := auth.FromContext(ctx); err == nil {
		actor = caller.ID
	}
	ev := kafka.Event{
		Actor:      actor,
		Action:     action,
		TargetType: targetType,
		TargetUID:  targetUid,
		Details:    details,
		Timestamp:  time.Now().UTC(),
	}
	if err := e.enq.Enqueue(e.topic, ev); err != nil {
		e.log.Warn("audit emit dropped", zap.String("action", action), zap.Error(err))
	}
}
