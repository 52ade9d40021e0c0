package main

import (
	"context"

	zlog "github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"atlas/internal/pkg/bootstrap"
	"atlas/internal/pkg/config"
	"atlas/internal/pkg/logger"
	"atlas/internal/pkg/mq"
	redispkg "atlas/internal/pkg/redis"
	"atlas/internal/service/inventory/application"
	"atlas/internal/service/inventory/domain/port"
	"atlas/internal/service/inventory/infrastructure"
	"atlas/internal/service/inventory/infrastructure/adapter"
	"atlas/internal/service/inventory/interfaces"
	"atlas/internal/zookeeper"
)

const serviceName = "inventory-service"

func main() {
	logger.Init(serviceName)

	cfg, err := config.Load("")
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := gorm.Open(mysql.Open(cfg.Mysql.DSN), &gorm.Config{})
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to connect to mysql")
	}
	if err := db.AutoMigrate(
		&infrastructure.StockModel{},
		&infrastructure.ReservationModel{},
		&infrastructure.ReservationItemModel{},
	); err != nil {
		zlog.Fatal().Err(err).Msg("failed to migrate schema")
	}

	stocks := infrastructure.NewGormStockRepository(db, cfg.Inventory.LockWaitTimeout())
	reservations := infrastructure.NewGormReservationRepository(db)

	locker, cleanupLocker := buildLocker(cfg)
	publisher := adapter.NewStockEventKafkaAdapter(mq.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.EventTopic))

	service, err := application.NewReservationService(
		stocks,
		reservations,
		locker,
		publisher,
		otel.Tracer(serviceName),
		application.Options{
			Strategy:               application.Strategy(cfg.Inventory.Strategy),
			LockWaitTimeout:        cfg.Inventory.LockWaitTimeout(),
			LockTTL:                cfg.Inventory.LockTTL(),
			PessimisticMaxAttempts: cfg.Inventory.PessimisticMaxAttempts,
			OptimisticMaxRetries:   cfg.Inventory.OptimisticMaxRetries,
			RetryBackoffBase:       cfg.Inventory.RetryBackoffBase(),
			ReservationTTL:         cfg.Inventory.ReservationTTL(),
		},
	)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to build reservation service")
	}

	reaperCtx, stopReaper := context.WithCancel(context.Background())
	reaper := application.NewExpiryReaper(service, cfg.Inventory.ReaperInterval(), cfg.Inventory.ReaperBatchSize)
	go reaper.Run(reaperCtx)

	handler := interfaces.NewInventoryHandler(service)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        cfg.Service.Port,
		Config:      cfg,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			handler.RegisterRoutes(appCtx.Mux)
		},
		OnShutdown: func(ctx context.Context) {
			stopReaper()
			if err := publisher.Close(); err != nil {
				zlog.Error().Err(err).Msg("error closing event publisher")
			}
			cleanupLocker()
		},
	})
}

// buildLocker 按配置选择分布式锁后端。锁只是降低行锁争用的优化，
// "none" 也是合法部署：正确性完全由台账的事务行锁保证。
func buildLocker(cfg *config.Config) (port.DistributedLocker, func()) {
	switch cfg.Inventory.LockBackend {
	case "redis":
		client, err := redispkg.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			zlog.Fatal().Err(err).Msg("failed to connect to redis")
		}
		locker, err := adapter.NewRedisLockAdapter(client)
		if err != nil {
			zlog.Fatal().Err(err).Msg("failed to build redis lock adapter")
		}
		return locker, func() { _ = client.Close() }
	case "zookeeper":
		conn, err := zookeeper.Connect(cfg.Zookeeper.Servers, cfg.Inventory.LockTTL())
		if err != nil {
			zlog.Fatal().Err(err).Msg("failed to connect to zookeeper")
		}
		return adapter.NewZookeeperLockAdapter(conn), conn.Close
	default:
		zlog.Warn().Msg("distributed lock disabled, relying on row locks only")
		return nil, func() {}
	}
}
