package rule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlas/internal/service/inventory/domain"
)

func TestCELAlertEngineEvaluates(t *testing.T) {
	engine, err := NewCELAlertEngine("available <= threshold")
	require.NoError(t, err)

	alert, err := engine.ShouldAlert(domain.StockAlertFact{
		ProductID: "sku-1", Quantity: 10, Reserved: 8, Available: 2, Threshold: 3,
	})
	require.NoError(t, err)
	assert.True(t, alert)

	alert, err = engine.ShouldAlert(domain.StockAlertFact{
		ProductID: "sku-1", Quantity: 10, Reserved: 2, Available: 8, Threshold: 3,
	})
	require.NoError(t, err)
	assert.False(t, alert)
}

func TestCELAlertEngineCompoundRule(t *testing.T) {
	engine, err := NewCELAlertEngine(`available <= threshold && reserved > 0 && product_id != "sku-ignored"`)
	require.NoError(t, err)

	alert, err := engine.ShouldAlert(domain.StockAlertFact{
		ProductID: "sku-1", Quantity: 5, Reserved: 5, Available: 0, Threshold: 1,
	})
	require.NoError(t, err)
	assert.True(t, alert)

	alert, err = engine.ShouldAlert(domain.StockAlertFact{
		ProductID: "sku-ignored", Quantity: 5, Reserved: 5, Available: 0, Threshold: 1,
	})
	require.NoError(t, err)
	assert.False(t, alert)
}

func TestCELAlertEngineRejectsBadRules(t *testing.T) {
	// 语法错误
	_, err := NewCELAlertEngine("available <=")
	assert.Error(t, err)

	// 合法表达式但不是 bool
	_, err = NewCELAlertEngine("available + threshold")
	assert.Error(t, err)

	// 引用了未声明的变量
	_, err = NewCELAlertEngine("warehouse_load > 0.9")
	assert.Error(t, err)
}
