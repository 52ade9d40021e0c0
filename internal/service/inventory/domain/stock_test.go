package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStockRecord(t *testing.T) {
	rec, err := NewStockRecord("sku-1", 10, 3, "wh-east")
	require.NoError(t, err)
	assert.Equal(t, 10, rec.Quantity)
	assert.Equal(t, 0, rec.Reserved)
	assert.EqualValues(t, 1, rec.Version)
	assert.Equal(t, 10, rec.Available())

	_, err = NewStockRecord("", 10, 0, "")
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = NewStockRecord("sku-1", -1, 0, "")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestStockReserve(t *testing.T) {
	rec, _ := NewStockRecord("sku-1", 10, 0, "")

	require.NoError(t, rec.Reserve(4))
	assert.Equal(t, 4, rec.Reserved)
	assert.Equal(t, 6, rec.Available())
	assert.EqualValues(t, 2, rec.Version)

	// 可用量不足：台账必须原封不动
	err := rec.Reserve(7)
	assert.ErrorIs(t, err, ErrOutOfStock)
	assert.Equal(t, 4, rec.Reserved)
	assert.EqualValues(t, 2, rec.Version)

	assert.ErrorIs(t, rec.Reserve(0), ErrInvalidRequest)
	assert.ErrorIs(t, rec.Reserve(-3), ErrInvalidRequest)

	// 刚好占满
	require.NoError(t, rec.Reserve(6))
	assert.Equal(t, 0, rec.Available())
	assert.ErrorIs(t, rec.Reserve(1), ErrOutOfStock)
}

func TestStockRelease(t *testing.T) {
	rec, _ := NewStockRecord("sku-1", 10, 0, "")
	require.NoError(t, rec.Reserve(4))

	require.NoError(t, rec.Release(3))
	assert.Equal(t, 1, rec.Reserved)
	assert.Equal(t, 9, rec.Available())

	// reserved 扣成负数说明上游逻辑出错，必须响亮地失败
	err := rec.Release(2)
	assert.ErrorIs(t, err, ErrLedgerUnderflow)
	assert.Equal(t, 1, rec.Reserved)

	assert.ErrorIs(t, rec.Release(0), ErrInvalidRequest)
}

func TestStockConfirm(t *testing.T) {
	rec, _ := NewStockRecord("sku-1", 10, 0, "")
	require.NoError(t, rec.Reserve(4))

	require.NoError(t, rec.Confirm(4))
	assert.Equal(t, 6, rec.Quantity)
	assert.Equal(t, 0, rec.Reserved)
	assert.Equal(t, 6, rec.Available())

	// 没有预占量可消耗
	assert.ErrorIs(t, rec.Confirm(1), ErrLedgerUnderflow)
}

func TestStockRestock(t *testing.T) {
	rec, _ := NewStockRecord("sku-1", 2, 0, "")
	require.NoError(t, rec.Reserve(2))
	assert.Equal(t, 0, rec.Available())

	require.NoError(t, rec.Restock(5))
	assert.Equal(t, 7, rec.Quantity)
	assert.Equal(t, 2, rec.Reserved) // 补货不碰预占量
	assert.Equal(t, 5, rec.Available())

	assert.ErrorIs(t, rec.Restock(0), ErrInvalidRequest)
}

func TestStockThresholds(t *testing.T) {
	rec, _ := NewStockRecord("sku-1", 10, 3, "")
	assert.False(t, rec.IsLowStock())
	assert.False(t, rec.IsOutOfStock())

	require.NoError(t, rec.Reserve(7))
	assert.True(t, rec.IsLowStock())
	assert.False(t, rec.IsOutOfStock())

	require.NoError(t, rec.Reserve(3))
	assert.True(t, rec.IsOutOfStock())
}

func TestVersionIncrementsOnEveryMutation(t *testing.T) {
	rec, _ := NewStockRecord("sku-1", 10, 0, "")
	v := rec.Version
	require.NoError(t, rec.Reserve(2))
	require.NoError(t, rec.Release(1))
	require.NoError(t, rec.Confirm(1))
	require.NoError(t, rec.Restock(5))
	assert.EqualValues(t, v+4, rec.Version)
}
