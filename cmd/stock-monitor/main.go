package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"atlas/internal/pkg/config"
	"atlas/internal/pkg/logger"
	"atlas/internal/pkg/mq"
	"atlas/internal/pkg/tracing"
	"atlas/internal/service/inventory/domain"
	"atlas/internal/service/inventory/infrastructure"
	"atlas/internal/service/inventory/infrastructure/adapter"
	"atlas/internal/service/inventory/infrastructure/rule"
)

const serviceName = "stock-monitor"

// stock-monitor 周期性扫描台账里可用量跌破阈值的商品，
// 用配置的 CEL 规则过滤后发布 stock.low 告警事件。
// 它只读台账，绝不碰预占路径。
func main() {
	logger.Init(serviceName)

	cfg, err := config.Load("")
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to load config")
	}

	tp, err := tracing.InitTracerProvider(serviceName, cfg.Jaeger.Endpoint)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to initialize tracer provider")
	}

	db, err := gorm.Open(mysql.Open(cfg.Mysql.DSN), &gorm.Config{})
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to connect to mysql")
	}
	stocks := infrastructure.NewGormStockRepository(db, cfg.Inventory.LockWaitTimeout())

	engine, err := rule.NewCELAlertEngine(cfg.Monitor.AlertRule)
	if err != nil {
		zlog.Fatal().Err(err).Msg("invalid alert rule")
	}

	publisher := adapter.NewStockEventKafkaAdapter(mq.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.AlertTopic))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	interval := time.Duration(cfg.Monitor.IntervalMs) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	zlog.Info().Dur("interval", interval).Str("rule", cfg.Monitor.AlertRule).Msg("stock monitor started")
	for {
		select {
		case <-ctx.Done():
			zlog.Info().Msg("stock monitor stopping")
			if err := publisher.Close(); err != nil {
				zlog.Error().Err(err).Msg("error closing alert publisher")
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = tp.Shutdown(shutdownCtx)
			cancel()
			os.Exit(0)
		case <-ticker.C:
			if err := scanOnce(ctx, cfg, stocks, engine, publisher); err != nil {
				zlog.Error().Err(err).Msg("low stock scan failed")
			}
		}
	}
}

// scanOnce 扫描一轮：候选来自台账的阈值查询，规则引擎做二次过滤，
// 每个候选的评估和发布并发执行。
func scanOnce(
	ctx context.Context,
	cfg *config.Config,
	stocks domain.StockRepository,
	engine *rule.CELAlertEngine,
	publisher *adapter.StockEventKafkaAdapter,
) error {
	candidates, err := stocks.LowStock(ctx, cfg.Monitor.BatchSize)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Monitor.Concurrency)
	for _, record := range candidates {
		record := record
		g.Go(func() error {
			alert, err := engine.ShouldAlert(domain.StockAlertFact{
				ProductID: record.ProductID,
				Quantity:  record.Quantity,
				Reserved:  record.Reserved,
				Available: record.Available(),
				Threshold: record.LowStockThreshold,
			})
			if err != nil {
				return err
			}
			if !alert {
				return nil
			}

			logger.Ctx(gctx).Warn().
				Str("product_id", record.ProductID).
				Int("available", record.Available()).
				Int("threshold", record.LowStockThreshold).
				Msg("low stock detected")

			return publisher.Publish(gctx, &domain.StockEvent{
				Type:       domain.EventLowStock,
				ProductID:  record.ProductID,
				Available:  record.Available(),
				Threshold:  record.LowStockThreshold,
				OccurredAt: time.Now(),
			})
		})
	}
	return g.Wait()
}
