package scheduler

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer 控制相邻两次抓取之间的最小间隔，每次抓取前调用 Wait
type Pacer interface {
	Wait(ctx context.Context) error
}

// NoopPacer 不做任何等待
type NoopPacer struct{}

func (NoopPacer) Wait(ctx context.Context) error {
	return ctx.Err()
}

type intervalPacer struct {
	limiter *rate.Limiter
}

// NewIntervalPacer 每 interval 放行一次抓取，首次立即放行；interval<=0 时不限速
func NewIntervalPacer(interval time.Duration) Pacer {
	if interval <= 0 {
		return NoopPacer{}
	}
	return &intervalPacer{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

func (p *intervalPacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
