package job

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PaymentExpirer 由订单服务实现：把超过支付期限的 payment_pending 订单走正常迁移取消，
// limit 是每页条数，返回本次取消的总数
type PaymentExpirer interface {
	ExpireStalePayments(ctx context.Context, limit int) (int, error)
}

// PaymentTimeoutJob 支付超时监督任务
type PaymentTimeoutJob struct {
	expirer   PaymentExpirer
	logger    *zap.Logger
	stopCh    chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
	interval  time.Duration
	batchSize int
}

func NewPaymentTimeoutJob(expirer PaymentExpirer, logger *zap.Logger) *PaymentTimeoutJob {
	return &PaymentTimeoutJob{
		expirer:   expirer,
		logger:    logger.Named("payment_timeout"),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
		interval:  10 * time.Second,
		batchSize: 100,
	}
}

// Start 阻塞运行，返回时关闭 Done()
func (j *PaymentTimeoutJob) Start(ctx context.Context) {
	defer close(j.done)
	j.logger.Info("支付超时任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("收到停止信号，任务退出")
			return
		case <-j.stopCh:
			j.logger.Info("任务停止")
			return
		case <-ticker.C:
			j.cancelExpiredOrders(ctx)
		}
	}
}

func (j *PaymentTimeoutJob) Stop() {
	j.stopOnce.Do(func() { close(j.stopCh) })
}

// Done 在 Start 返回后关闭，关闭依赖（如 publisher）前先等待它
func (j *PaymentTimeoutJob) Done() <-chan struct{} {
	return j.done
}

func (j *PaymentTimeoutJob) cancelExpiredOrders(ctx context.Context) {
	// 翻页由 expirer 负责，这里每个周期调用一次
	n, err := j.expirer.ExpireStalePayments(ctx, j.batchSize)
	if err != nil {
		j.logger.Error("取消超时订单失败", zap.Int("cancelled", n), zap.Error(err))
		return
	}
	if n > 0 {
		j.logger.Info("超时订单已取消", zap.Int("count", n))
	}
}
