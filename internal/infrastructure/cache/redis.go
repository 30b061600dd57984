package cache

import (
	"context"
	"fmt"
	"time"

	"agrimarket/internal/config"

	"github.com/go-redis/redis/v8"
)

func InitRedis(cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}
	return client, nil
}

const orderStatusTTL = 5 * time.Minute

// OrderStatusCache 订单最新状态，供外部轮询使用；数据库是唯一事实来源
type OrderStatusCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewOrderStatusCache(client *redis.Client) *OrderStatusCache {
	return &OrderStatusCache{client: client, ttl: orderStatusTTL}
}

func orderStatusKey(orderNo string) string {
	return "order:status:" + orderNo
}

// SetOrderStatus 只写不读，供外部系统轮询；服务自身始终读数据库
func (c *OrderStatusCache) SetOrderStatus(ctx context.Context, orderNo, status string) error {
	return c.client.Set(ctx, orderStatusKey(orderNo), status, c.ttl).Err()
}
