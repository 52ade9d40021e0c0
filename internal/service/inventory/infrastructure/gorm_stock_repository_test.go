package infrastructure

import (
	"context"
	"testing"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"atlas/internal/service/inventory/domain"
)

// 所有写路径都经过 translateLockErr：等锁超时、死锁回滚和超时取消
// 统一归类为可重试的 ErrLockTimeout，其余错误原样透传。
func TestTranslateLockErr(t *testing.T) {
	repo := &GormStockRepository{}

	assert.NoError(t, repo.translateLockErr(nil))

	err := repo.translateLockErr(&gomysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"})
	assert.ErrorIs(t, err, domain.ErrLockTimeout)

	err = repo.translateLockErr(&gomysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"})
	assert.ErrorIs(t, err, domain.ErrLockTimeout)

	err = repo.translateLockErr(context.DeadlineExceeded)
	assert.ErrorIs(t, err, domain.ErrLockTimeout)

	// GORM/仓储层包装过之后仍要能识别
	wrapped := errors.Wrap(&gomysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"}, "update stock_inventory")
	assert.ErrorIs(t, repo.translateLockErr(wrapped), domain.ErrLockTimeout)

	// 唯一键冲突不是等锁问题
	dup := &gomysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
	assert.NotErrorIs(t, repo.translateLockErr(dup), domain.ErrLockTimeout)

	other := errors.New("connection refused")
	assert.Equal(t, other, repo.translateLockErr(other))
}

func TestIsMysqlErr(t *testing.T) {
	assert.True(t, isMysqlErr(&gomysql.MySQLError{Number: 1062}, 1062))
	assert.True(t, isMysqlErr(errors.Wrap(&gomysql.MySQLError{Number: 1062}, "insert"), 1062))
	assert.False(t, isMysqlErr(&gomysql.MySQLError{Number: 1205}, 1062))
	assert.False(t, isMysqlErr(errors.New("not a mysql error"), 1062))
	assert.False(t, isMysqlErr(nil, 1062))
}
