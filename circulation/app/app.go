package app

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/libris/circulation-service/circulation/config"
	"github.com/libris/circulation-service/circulation/internal/handler"
	"github.com/libris/circulation-service/circulation/internal/repository"
	"github.com/libris/circulation-service/circulation/internal/server"
	"github.com/libris/circulation-service/circulation/internal/service"
	"github.com/libris/circulation-service/circulation/internal/service/catalog"
	"github.com/libris/circulation-service/circulation/migrations"
	"github.com/libris/circulation-service/pkg/kafka"
	"github.com/libris/circulation-service/pkg/logger"
	md "github.com/libris/circulation-service/pkg/middleware"
	"github.com/libris/circulation-service/pkg/postgres"
)

func Run(cfg *config.Config) error {
	log := logger.NewLogger(cfg.Log, "circulation")
	db, err := postgres.NewPostgresDB(context.Background(), &cfg.Database, migrations.MigrationFiles)
	if err != nil {
		return fmt.Errorf("db init %v", err)
	}
	repo, err := repository.NewRepository(db, log)
	if err != nil {
		return fmt.Errorf("repo init %v", err)
	}

	producer, err := kafka.NewProducer(cfg.Kafka)
	if err != nil {
		return fmt.Errorf("kafka producer %v", err)
	}
	events := service.NewEmitter(service.NewEnqueuer(producer), cfg.Kafka.Topic, log)

	catalogClient := catalog.NewClient(log, cfg.Catalog)

	itemSvc := service.NewItem(repo, catalogClient, events, log)
	lendingSvc := service.NewLending(repo, events, log)
	reservationSvc := service.NewReservation(repo, cfg.HoldWindow, events, log)
	fineSvc := service.NewFine(repo, events, log)
	paymentSvc := service.NewPayment(repo, events, log)

	h := handler.New(itemSvc, lendingSvc, reservationSvc, fineSvc, paymentSvc, log)

	authn := md.JwtAuthentication([]byte(cfg.JWTSecret))
	if cfg.TrustGatewayHeaders {
		// identity comes from the gateway's X-User-Name/X-User-Role headers
		authn = md.AuthContext
	}
	srv := server.NewServer(cfg.Server, h.NewRouter(authn))
	log.Info("http server start ON: ",
		zap.String("addr",
			net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)))
	go func() {
		if err := srv.Run(); err != nil {
			log.Error("server run", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	termSig := <-sig

	log.Debug("Graceful shutdown", zap.Any("signal", termSig))

	closeCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err = srv.Stop(closeCtx); err != nil {
		log.Error("srv.Stop", zap.Error(err))
	}
	if err = producer.Close(); err != nil {
		log.Error("producer.Close", zap.Error(err))
	}
	db.Close()
	log.Info("Graceful shutdown finished")
	return nil
}
