package mq

import (
	"context"
	"errors"
	"sync"

	"kama_chat_client/pkg/constants"
)

// ErrBrokerClosed 代理已关闭
var ErrBrokerClosed = errors.New("broker closed")

// ChannelBroker 单机模式，不依赖外部消息队列
type ChannelBroker struct {
	// Transmit 消息转发通道
	Transmit chan Envelope

	closeOnce sync.Once
	done      chan struct{}
}

// NewChannelBroker 创建单机代理
func NewChannelBroker() *ChannelBroker {
	return &ChannelBroker{
		Transmit: make(chan Envelope, constants.CHANNEL_SIZE),
		done:     make(chan struct{}),
	}
}

// Publish 通道满时阻塞，直到 ctx 结束
func (b *ChannelBroker) Publish(ctx context.Context, env Envelope) error {
	select {
	case b.Transmit <- env:
		return nil
	case <-b.done:
		return ErrBrokerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *ChannelBroker) Run(ctx context.Context, deliver func(Envelope)) error {
	for {
		select {
		case env := <-b.Transmit:
			deliver(env)
		case <-b.done:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

func (b *ChannelBroker) Close() error {
	b.closeOnce.Do(func() { close(b.done) })
	return nil
}
