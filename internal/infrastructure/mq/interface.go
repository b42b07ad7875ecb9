// Package mq 提供 relay 的消息扇出通道
// 支持两种实现：ChannelBroker（单机）和 KafkaBroker（多实例），由 kafkaConfig.messageMode 选择
package mq

import (
	"context"

	"kama_chat_client/internal/config"
)

// Envelope 一帧聊天消息及其所属聊天室
type Envelope struct {
	ChatID string
	Frame  []byte
}

// Broker 消息代理
// Publish 由 WebSocket 读协程调用；Run 在后台消费并把每一帧交给 deliver
type Broker interface {
	// Publish 发布一帧到聊天室
	Publish(ctx context.Context, env Envelope) error
	// Run 阻塞消费，ctx 结束时返回
	Run(ctx context.Context, deliver func(Envelope)) error
	// Close 关闭代理资源
	Close() error
}

// New 根据配置创建 Broker
func New(conf *config.KafkaConfig) Broker {
	if conf.MessageMode == "kafka" {
		return NewKafkaBroker(conf)
	}
	return NewChannelBroker()
}
