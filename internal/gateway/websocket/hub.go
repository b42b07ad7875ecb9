// Package websocket 实现 relay 的 WebSocket 接入层
// hub.go
// 核心职责：
// 1. 维护每个聊天室的在线连接（Login/Logout 通道）
// 2. 把代理投递回来的帧广播给聊天室内的所有连接，发送者自己也会收到
// 3. 定时向所有连接推送心跳帧
package websocket

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"kama_chat_client/internal/infrastructure/mq"
	"kama_chat_client/internal/model"
	"kama_chat_client/pkg/constants"
)

// Hub 在线连接管理与广播
// rooms 只在 Run 协程中修改，mu 仅用于 Online 的并发读
type Hub struct {
	broker    mq.Broker
	heartbeat time.Duration

	// Login 连接建立后写入
	Login chan *Client
	// Logout 连接断开后写入
	Logout chan *Client
	// Transmit 代理投递回来等待广播的帧
	Transmit chan mq.Envelope

	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}

	done chan struct{}
}

// NewHub 创建 Hub，heartbeat 为 0 时不推送心跳
func NewHub(broker mq.Broker, heartbeat time.Duration) *Hub {
	return &Hub{
		broker:    broker,
		heartbeat: heartbeat,
		Login:     make(chan *Client, constants.CHANNEL_SIZE),
		Logout:    make(chan *Client, constants.CHANNEL_SIZE),
		Transmit:  make(chan mq.Envelope, constants.CHANNEL_SIZE),
		rooms:     make(map[string]map[*Client]struct{}),
		done:      make(chan struct{}),
	}
}

// Publish 把一帧交给代理
func (h *Hub) Publish(ctx context.Context, env mq.Envelope) error {
	return h.broker.Publish(ctx, env)
}

// Deliver 代理消费到的帧进入广播队列，作为 mq.Broker.Run 的回调
func (h *Hub) Deliver(env mq.Envelope) {
	select {
	case h.Transmit <- env:
	case <-h.done:
	}
}

// Online 聊天室当前的连接数
func (h *Hub) Online(chatID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[chatID])
}

// Run 主循环，ctx 结束时关闭所有连接
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	var tick <-chan time.Time
	if h.heartbeat > 0 {
		ticker := time.NewTicker(h.heartbeat)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		// 处理客户端登录事件
		case client := <-h.Login:
			h.mu.Lock()
			room, ok := h.rooms[client.ChatID]
			if !ok {
				room = make(map[*Client]struct{})
				h.rooms[client.ChatID] = room
			}
			room[client] = struct{}{}
			h.mu.Unlock()
			zap.L().Info("用户进入聊天室", zap.String("chatId", client.ChatID), zap.String("userId", client.UserID))

		// 处理客户端登出事件
		case client := <-h.Logout:
			if h.remove(client) {
				zap.L().Info("用户离开聊天室", zap.String("chatId", client.ChatID), zap.String("userId", client.UserID))
			}

		// 处理消息转发事件
		case env := <-h.Transmit:
			h.broadcast(env.ChatID, env.Frame)

		case <-tick:
			h.mu.RLock()
			chatIDs := make([]string, 0, len(h.rooms))
			for chatID := range h.rooms {
				chatIDs = append(chatIDs, chatID)
			}
			h.mu.RUnlock()
			for _, chatID := range chatIDs {
				h.broadcast(chatID, model.EncodeHeartbeat())
			}

		case <-ctx.Done():
			h.mu.Lock()
			for _, room := range h.rooms {
				for client := range room {
					close(client.send)
				}
			}
			h.rooms = make(map[string]map[*Client]struct{})
			h.mu.Unlock()
			return nil
		}
	}
}

// broadcast 写缓冲已满的连接视为掉线，直接移除
func (h *Hub) broadcast(chatID string, frame []byte) {
	h.mu.RLock()
	room := h.rooms[chatID]
	var slow []*Client
	for client := range room {
		select {
		case client.send <- frame:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		zap.L().Warn("写缓冲已满，断开连接", zap.String("chatId", chatID), zap.String("userId", client.UserID))
		h.remove(client)
	}
}

// remove 从聊天室移除并关闭写通道，只在 Run 协程中调用
func (h *Hub) remove(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[client.ChatID]
	if !ok {
		return false
	}
	if _, ok := room[client]; !ok {
		return false
	}
	delete(room, client)
	if len(room) == 0 {
		delete(h.rooms, client.ChatID)
	}
	close(client.send)
	return true
}

func (h *Hub) register(client *Client) bool {
	select {
	case h.Login <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregister(client *Client) {
	select {
	case h.Logout <- client:
	case <-h.done:
	}
}
