package app

import (
	"context"
	"fmt"
	"net"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/libris/circulation-service/audit/config"
	"github.com/libris/circulation-service/audit/internal/handler"
	"github.com/libris/circulation-service/audit/internal/repository"
	"github.com/libris/circulation-service/audit/internal/server"
	"github.com/libris/circulation-service/audit/internal/service"
	"github.com/libris/circulation-service/audit/migrations"
	"github.com/libris/circulation-service/pkg/kafka"
	"github.com/libris/circulation-service/pkg/logger"
	md "github.com/libris/circulation-service/pkg/middleware"
	"github.com/libris/circulation-service/pkg/postgres"
)

func Run(cfg *config.Config) error {
	log := logger.NewLogger(cfg.Log, "audit")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	db, err := postgres.NewPool(ctx, &cfg.Database, migrations.MigrationFiles)
	if err != nil {
		return fmt.Errorf("db init %w", err)
	}
	defer db.Close()

	repo, err := repository.NewRepository(db, log)
	if err != nil {
		return fmt.Errorf("repo init %w", err)
	}
	svc := service.NewService(repo, log)

	group, err := kafka.NewConsumerGroup(cfg.Kafka)
	if err != nil {
		return fmt.Errorf("kafka.NewConsumerGroup %w", err)
	}

	h := handler.New(svc, log)
	authn := md.JwtAuthentication([]byte(cfg.JWTSecret))
	if cfg.TrustGatewayHeaders {
		authn = md.AuthContext
	}
	srv := server.NewServer(cfg.Server, h.NewRouter(authn))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return kafka.Consume(ctx, group, handler.NewConsumer(svc.Append, log), cfg.Kafka.Topic)
	})
	g.Go(func() error {
		log.Info("http server start ON: ",
			zap.String("addr",
				net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)))
		return srv.Run()
	})
	g.Go(func() error {
		<-ctx.Done()
		closeCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		if err := srv.Stop(closeCtx); err != nil {
			log.Error("srv.Stop", zap.Error(err))
		}
		return group.Close()
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	log.Info("Graceful shutdown finished")
	return nil
}
