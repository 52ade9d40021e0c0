package application

import (
	"context"
	"math/rand"
	"time"
)

// backoff 实现带抖动的指数退避。attempt 从 0 开始，等待时长为
// base * 2^attempt，封顶 max，再叠加 ±50% 的随机抖动，避免重试者齐步冲突。
type backoff struct {
	base time.Duration
	max  time.Duration
}

func newBackoff(base, max time.Duration) backoff {
	if base <= 0 {
		base = 10 * time.Millisecond
	}
	if max <= 0 {
		max = 500 * time.Millisecond
	}
	return backoff{base: base, max: max}
}

// wait 阻塞到本次退避结束，ctx 取消时立即返回其错误。
func (b backoff) wait(ctx context.Context, attempt int) error {
	d := b.base << uint(attempt)
	if d > b.max || d <= 0 {
		d = b.max
	}
	// 抖动区间 [d/2, 3d/2)
	d = d/2 + time.Duration(rand.Int63n(int64(d)))

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
