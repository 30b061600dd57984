package idgen

import (
	"fmt"
	"sync"
	"time"
)

// 雪花算法 64 位布局：
//
//	0 | 41 位毫秒时间戳 | 10 位节点号 | 12 位序列号
//
// 订单号、流水支付参考号都由它派生，趋势递增且不暴露业务量。
const (
	epoch          = int64(1704067200000) // 2024-01-01 00:00:00 UTC
	nodeBits       = 10
	sequenceBits   = 12
	MaxNode        = -1 ^ (-1 << nodeBits)
	maxSequence    = -1 ^ (-1 << sequenceBits)
	nodeShift      = sequenceBits
	timestampShift = sequenceBits + nodeBits
)

type Snowflake struct {
	mu        sync.Mutex
	timestamp int64
	node      int64
	sequence  int64
}

func NewSnowflake(node int64) (*Snowflake, error) {
	if node < 0 || node > MaxNode {
		return nil, fmt.Errorf("snowflake node must be between 0 and %d, got %d", MaxNode, node)
	}
	return &Snowflake{node: node}, nil
}

var (
	defaultGenerator = &Snowflake{node: 1}
	initOnce         sync.Once
)

// Init 设置进程级默认节点号，只有第一次调用生效
func Init(node int64) error {
	var err error
	initOnce.Do(func() {
		var g *Snowflake
		g, err = NewSnowflake(node)
		if err == nil {
			defaultGenerator = g
		}
	})
	return err
}

func NextID() int64 {
	return defaultGenerator.Generate()
}

func (s *Snowflake) Generate() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()

	if now == s.timestamp {
		s.sequence = (s.sequence + 1) & maxSequence
		if s.sequence == 0 {
			// 本毫秒序列号用完，自旋到下一毫秒
			for now <= s.timestamp {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		s.sequence = 0
	}

	s.timestamp = now

	return ((now - epoch) << timestampShift) |
		(s.node << nodeShift) |
		s.sequence
}

// GenerateOrderNo 订单号，如 AGO20240115143052000123456789
func GenerateOrderNo() string {
	return format("AGO", NextID())
}

// GenerateReference 流水的支付参考号
func GenerateReference() string {
	return format("TXN", NextID())
}

func format(prefix string, id int64) string {
	return fmt.Sprintf("%s%s%012d", prefix, time.Now().Format("20060102150405"), id%1000000000000)
}
