// Package broker 把已提交的平台事件发到消息总线。单机用内存实现，多实例用 NATS。
package broker

import (
	"context"
	"strings"
)

type Message struct {
	Topic   string
	Payload []byte
}

type Broker interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	// Subscribe topic 支持末尾 ":*" 通配
	Subscribe(ctx context.Context, topics []string) (<-chan Message, error)
	Close() error
}

const TopicPrefix = "acdm:"

// TopicAll 订阅全部平台事件
const TopicAll = TopicPrefix + "*"

func Topic(event string) string { return TopicPrefix + event }

func match(pattern, topic string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(topic, prefix)
	}
	return pattern == topic
}
