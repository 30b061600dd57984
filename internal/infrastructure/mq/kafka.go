package mq

import (
	"context"
	"fmt"

	"agrimarket/internal/config"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// Publisher outbox 消息的投递出口
type Publisher interface {
	Publish(ctx context.Context, topic, key, value string) error
	Close() error
}

// KafkaPublisher 基于同步生产者，Publish 返回即代表 broker 已确认
type KafkaPublisher struct {
	producer sarama.SyncProducer
}

// NewKafkaPublisher 初始化 Kafka 生产者
func NewKafkaPublisher(cfg *config.KafkaConfig) (*KafkaPublisher, error) {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll // 等待所有副本确认
	kafkaConfig.Producer.Retry.Max = 3
	kafkaConfig.Producer.Return.Successes = true
	kafkaConfig.Producer.Idempotent = true
	kafkaConfig.Net.MaxOpenRequests = 1
	kafkaConfig.Version = sarama.V2_1_0_0

	producer, err := sarama.NewSyncProducer(cfg.Brokers, kafkaConfig)
	if err != nil {
		return nil, fmt.Errorf("创建 Kafka 生产者失败: %w", err)
	}
	return NewPublisherWithProducer(producer), nil
}

func NewPublisherWithProducer(producer sarama.SyncProducer) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.StringEncoder(value),
	}
	_, _, err := p.producer.SendMessage(msg)
	return err
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// LogPublisher 未启用 Kafka 时使用，只把事件写到日志
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, topic, key, value string) error {
	p.logger.Info("事件", zap.String("topic", topic), zap.String("key", key), zap.String("payload", value))
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
