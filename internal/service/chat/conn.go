// Package chat 实现了聊天客户端的核心会话层
// conn.go
// 核心职责：单个聊天室的 WebSocket 连接
// 1. 拨号成功后启动读写两个协程：读协程串行处理入站帧，写协程按调用顺序串行写出
// 2. 任意一端关闭连接后，把自己从注册表中移除，不自动重连
package chat

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"kama_chat_client/internal/model"
	"kama_chat_client/pkg/constants"
)

// roomConn 一个聊天室的连接
// conn 在拨号完成前为 nil，此时该条目已占位，重复 Connect 不会再次拨号
type roomConn struct {
	chatID   string
	registry *Registry

	mu   sync.Mutex
	conn *websocket.Conn
	open bool // 受 registry.mu 保护

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newRoomConn(r *Registry, chatID string) *roomConn {
	return &roomConn{
		chatID:   chatID,
		registry: r,
		send:     make(chan []byte, r.opts.SendChanSize),
		done:     make(chan struct{}),
	}
}

// dial 建立连接并运行读循环，返回时连接已关闭
func (c *roomConn) dial(target string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.registry.opts.HandshakeTimeout)
	conn, _, err := c.registry.dialer.DialContext(ctx, target, nil)
	cancel()
	if err != nil {
		zap.L().Error("ws 连接失败", zap.String("chatId", c.chatID), zap.Error(err))
		c.registry.detach(c)
		return
	}

	if !c.registry.attach(c, conn) {
		// 拨号期间聊天室已被关闭
		_ = conn.Close()
		return
	}
	zap.L().Info("ws 已连接", zap.String("chatId", c.chatID))

	go c.writeLoop()
	c.readLoop()
}

// readLoop 读取入站帧，心跳直接丢弃，无法解析的帧记录后丢弃
func (c *roomConn) readLoop() {
	defer func() {
		c.registry.detach(c)
		c.shutdown()
		zap.L().Warn("ws 已关闭", zap.String("chatId", c.chatID))
	}()

	timeout := c.registry.opts.ReadTimeout
	if timeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
		c.conn.SetPongHandler(func(string) error {
			return c.conn.SetReadDeadline(time.Now().Add(timeout))
		})
	}

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				zap.L().Error("ws 读取失败", zap.String("chatId", c.chatID), zap.Error(err))
			}
			return
		}
		if timeout > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
		}
		c.handle(data)
	}
}

func (c *roomConn) handle(data []byte) {
	frame, err := model.Decode(data)
	if err != nil {
		zap.L().Warn("丢弃无法解析的消息", zap.String("chatId", c.chatID), zap.Error(err))
		return
	}
	msg, ok := frame.(model.ChatMessage)
	if !ok {
		return
	}
	if msg.ChatID == "" {
		msg.ChatID = c.chatID
	}
	// 旧连接的迟到消息不能复活已清空的聊天室
	if !c.registry.isCurrent(c) {
		return
	}
	if !c.registry.store.applyExisting(c.chatID, msg) {
		zap.L().Debug("聊天室已清空，丢弃迟到消息", zap.String("chatId", c.chatID))
	}
}

// writeLoop 唯一的写协程
func (c *roomConn) writeLoop() {
	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(constants.WRITE_WAIT))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				zap.L().Error("ws 写入失败", zap.String("chatId", c.chatID), zap.Error(err))
				c.shutdown()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *roomConn) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

// enqueue 把帧交给写协程，连接关闭后丢弃
func (c *roomConn) enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	case <-c.done:
		return false
	}
}

// shutdown 关闭连接，可重复调用
// 先发送关闭帧，读协程随后收到对端的关闭回应或读错误并退出
func (c *roomConn) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return
		}
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(constants.WRITE_WAIT))
		if err := conn.Close(); err != nil {
			zap.L().Warn("ws 关闭失败", zap.String("chatId", c.chatID), zap.Error(err))
		}
	})
}
