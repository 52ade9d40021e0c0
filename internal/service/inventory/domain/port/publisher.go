package port

import (
	"context"

	"atlas/internal/service/inventory/domain"
)

// StockEventPublisher 是库存域事件的出站端口，由基础设施层实现。
// 事件发布是尽力而为的：发布失败只记录日志，从不让主流程失败。
type StockEventPublisher interface {
	Publish(ctx context.Context, event *domain.StockEvent) error
	Close() error
}

// AlertRuleEngine 评估一条台账事实是否应该触发低库存告警。
// 规则本身（例如一个 CEL 表达式）来自配置，由监控任务加载。
type AlertRuleEngine interface {
	ShouldAlert(fact domain.StockAlertFact) (bool, error)
}
