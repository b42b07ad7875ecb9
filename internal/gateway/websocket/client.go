package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"kama_chat_client/internal/infrastructure/mq"
	"kama_chat_client/internal/model"
	"kama_chat_client/pkg/constants"
)

const (
	// pongWait 等待对端 pong 的时间
	pongWait = 60 * time.Second
	// pingPeriod 必须小于 pongWait
	pingPeriod = pongWait * 9 / 10
	// maxMessageSize 单帧上限
	maxMessageSize = 64 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  2048,
	WriteBufferSize: 2048,
	// 检查连接的Origin头
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client 一个聊天室内的一条连接
type Client struct {
	ChatID string
	UserID string

	hub  *Hub
	conn *websocket.Conn
	send chan []byte // 给前端，只由 Hub 关闭
}

// Serve 升级连接并加入聊天室
func Serve(h *Hub, w http.ResponseWriter, r *http.Request, chatID, userID string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	client := &Client{
		ChatID: chatID,
		UserID: userID,
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, constants.CHANNEL_SIZE),
	}
	if !h.register(client) {
		_ = conn.Close()
		return nil
	}
	go client.WritePump()
	go client.ReadPump()
	zap.L().Info("ws连接成功", zap.String("chatId", chatID), zap.String("userId", userID))
	return nil
}

// ReadPump 读取客户端发来的帧，校验后交给代理
// 心跳、无法解析的帧、聊天室或发送者不符的帧都被丢弃
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				zap.L().Warn("ws read error", zap.String("chatId", c.ChatID), zap.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		frame, err := model.Decode(data)
		if err != nil {
			zap.L().Warn("丢弃无法解析的消息", zap.String("chatId", c.ChatID), zap.Error(err))
			continue
		}
		msg, ok := frame.(model.ChatMessage)
		if !ok {
			continue
		}
		if msg.ChatID != c.ChatID || msg.SenderID != c.UserID {
			zap.L().Warn("丢弃不属于当前连接的消息",
				zap.String("chatId", c.ChatID), zap.String("msgChatId", msg.ChatID),
				zap.String("userId", c.UserID), zap.String("senderId", msg.SenderID))
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), constants.WRITE_WAIT)
		err = c.hub.Publish(ctx, mq.Envelope{ChatID: c.ChatID, Frame: data})
		cancel()
		if err != nil {
			zap.L().Error("消息投递失败", zap.String("chatId", c.ChatID), zap.Error(err))
		}
	}
}

// WritePump 把 Hub 广播的帧写给前端，并定时发送 ping
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(constants.WRITE_WAIT))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				zap.L().Warn("ws write error", zap.String("chatId", c.ChatID), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(constants.WRITE_WAIT))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
