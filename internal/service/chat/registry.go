// Package chat 实现了聊天客户端的核心会话层
// registry.go
// 核心职责：聊天室连接注册表
// 1. 每个聊天室最多一个连接，Connect 幂等且不等待连接完成
// 2. Send 只在连接已打开时发送，否则记录警告后丢弃，不排队不重试
// 3. DisconnectAll 关闭所有连接并清空注册表和所有消息流，从不返回错误
package chat

import (
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"kama_chat_client/internal/model"
	"kama_chat_client/internal/service/session"
	"kama_chat_client/pkg/constants"
)

// RegistryOptions 连接参数
type RegistryOptions struct {
	// ReadTimeout 大于 0 时启用读超时，每收到一帧或 pong 就顺延
	ReadTimeout time.Duration
	// HandshakeTimeout 拨号超时
	HandshakeTimeout time.Duration
	// SendChanSize 每个连接的写缓冲
	SendChanSize int
	// Dialer 为空时使用默认拨号器
	Dialer *websocket.Dialer
}

// Registry 聊天室连接注册表，Key 为 chatId
type Registry struct {
	creds     session.CredentialsProvider
	endpoints session.EndpointsProvider
	store     *Store
	dialer    *websocket.Dialer
	opts      RegistryOptions

	// now 和 newID 可在测试中替换
	now   func() time.Time
	newID func() string

	mu    sync.Mutex
	rooms map[string]*roomConn
}

// NewRegistry 创建连接注册表
// 入站消息写入 store；凭证和服务地址在每次 Connect/Send 时读取
func NewRegistry(creds session.CredentialsProvider, endpoints session.EndpointsProvider, store *Store, opts RegistryOptions) *Registry {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = constants.HANDSHAKE_TIMEOUT
	}
	if opts.SendChanSize <= 0 {
		opts.SendChanSize = constants.CHANNEL_SIZE
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: opts.HandshakeTimeout,
		}
	}
	return &Registry{
		creds:     creds,
		endpoints: endpoints,
		store:     store,
		dialer:    dialer,
		opts:      opts,
		now:       time.Now,
		newID:     uuid.NewString,
		rooms:     make(map[string]*roomConn),
	}
}

// Store 注册表写入的消息流仓库
func (r *Registry) Store() *Store { return r.store }

// Connect 为聊天室建立连接
// 已有连接（包括正在拨号的）时不做任何事；缺少凭证或 WebSocket 地址时记录日志后返回
func (r *Registry) Connect(chatID string) {
	userID, token, ok := r.creds.Credentials()
	if !ok {
		zap.L().Warn("未登录，跳过连接", zap.String("chatId", chatID))
		return
	}
	base := r.endpoints.WSBase()
	if base == "" {
		zap.L().Warn("未配置 WebSocket 地址，跳过连接", zap.String("chatId", chatID))
		return
	}

	r.mu.Lock()
	if _, exists := r.rooms[chatID]; exists {
		r.mu.Unlock()
		return
	}
	c := newRoomConn(r, chatID)
	r.rooms[chatID] = c
	r.mu.Unlock()
	// 入站消息只并入已存在的流，连接前先建好
	r.store.GetOrCreate(chatID)

	go c.dial(DialURL(base, chatID, userID, token))
}

// DialURL 拼接连接地址 {wsBase}/chat?chatId=&userId=&token=
func DialURL(base, chatID, userID, token string) string {
	q := url.Values{}
	q.Set("chatId", chatID)
	q.Set("userId", userID)
	q.Set("token", token)
	return base + "/chat?" + q.Encode()
}

// IsOpen 聊天室连接是否已打开
func (r *Registry) IsOpen(chatID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rooms[chatID]
	return ok && c.open
}

// Rooms 注册表中的聊天室 ID（含正在拨号的），按字典序
func (r *Registry) Rooms() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// Send 发送一条消息
// 连接未打开时记录警告后丢弃，调用方收不到任何错误
// 填写 chatId、senderId、createdAt，messageId 为空时生成一个
func (r *Registry) Send(chatID string, out model.OutboundMessage) {
	r.mu.Lock()
	c, ok := r.rooms[chatID]
	if ok && !c.open {
		ok = false
	}
	r.mu.Unlock()
	if !ok {
		zap.L().Warn("ws 未就绪，消息已丢弃", zap.String("chatId", chatID))
		return
	}

	// 发送时没有用户 ID 则跳过，不发出匿名帧
	senderID, _, _ := r.creds.Credentials()
	if senderID == "" {
		zap.L().Warn("未登录，消息已丢弃", zap.String("chatId", chatID))
		return
	}

	msg := model.ChatMessage{
		ChatID:    chatID,
		MessageID: out.MessageID,
		Sequence:  out.Sequence,
		SenderID:  senderID,
		CreatedAt: r.now().UTC(),
		Body:      out.Body,
	}
	if msg.MessageID == "" {
		msg.MessageID = r.newID()
	}

	data, err := model.Encode(msg)
	if err != nil {
		zap.L().Error("消息序列化失败", zap.String("chatId", chatID), zap.Error(err))
		return
	}
	if !c.enqueue(data) {
		zap.L().Warn("ws 已关闭，消息已丢弃", zap.String("chatId", chatID))
	}
}

// Close 关闭聊天室连接，消息流保留
func (r *Registry) Close(chatID string) {
	r.mu.Lock()
	c, ok := r.rooms[chatID]
	delete(r.rooms, chatID)
	r.mu.Unlock()
	if ok {
		c.shutdown()
	}
}

// DisconnectAll 关闭所有连接，清空注册表和所有消息流
func (r *Registry) DisconnectAll() {
	r.mu.Lock()
	rooms := r.rooms
	r.rooms = make(map[string]*roomConn)
	r.mu.Unlock()

	for chatID, c := range rooms {
		c.shutdown()
		zap.L().Info("ws 已断开", zap.String("chatId", chatID))
	}
	r.store.Clear()
}

// attach 拨号成功后登记连接，聊天室已被关闭时返回 false
func (r *Registry) attach(c *roomConn, conn *websocket.Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rooms[c.chatID] != c {
		return false
	}
	c.setConn(conn)
	c.open = true
	return true
}

// detach 连接关闭后移除条目，只移除自己，不影响之后新建的连接
func (r *Registry) detach(c *roomConn) {
	r.mu.Lock()
	if r.rooms[c.chatID] == c {
		delete(r.rooms, c.chatID)
	}
	r.mu.Unlock()
}

func (r *Registry) isCurrent(c *roomConn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rooms[c.chatID] == c
}
