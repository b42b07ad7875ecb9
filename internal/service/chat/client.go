// Package chat 实现了聊天客户端的核心会话层
// client.go
// 核心职责：聚合会话层的各个组件，宿主只需要持有一个 Client
// 1. 凭证、服务地址、连接注册表、消息流、派发器、附件网关、聊天室目录都由 Client 创建并持有
// 2. CloseRoom 关闭单个聊天室，DisconnectAll 关闭整个会话，两者都不返回错误
package chat

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"kama_chat_client/internal/config"
	"kama_chat_client/internal/model"
	"kama_chat_client/internal/service/file"
	"kama_chat_client/internal/service/room"
	"kama_chat_client/internal/service/session"
)

// Options 客户端参数
type Options struct {
	Registry RegistryOptions
	File     file.Options
	// HTTPClient 聊天室目录使用的 HTTP 客户端，为空时按 File.HTTPTimeout 新建
	HTTPClient *http.Client
}

// OptionsFromConfig 从配置文件的 clientConfig 段生成参数
func OptionsFromConfig(cfg *config.ClientConfig) Options {
	return Options{
		Registry: RegistryOptions{
			ReadTimeout:  cfg.ReadTimeout,
			SendChanSize: cfg.SendChanSize,
		},
		File: file.Options{
			CacheDir:    cfg.CacheDir,
			HTTPTimeout: cfg.HttpTimeout,
		},
	}
}

// Client 聊天会话
type Client struct {
	creds     *session.Credentials
	endpoints *session.Endpoints

	store      *Store
	registry   *Registry
	dispatcher *Dispatcher
	gateway    *file.Gateway
	directory  *room.Directory
	images     *ImageLoader
}

// NewClient 创建聊天会话
func NewClient(creds *session.Credentials, endpoints *session.Endpoints, opts Options) *Client {
	store := NewStore()
	registry := NewRegistry(creds, endpoints, store, opts.Registry)
	gateway := file.NewGateway(creds, endpoints, opts.File)
	return &Client{
		creds:      creds,
		endpoints:  endpoints,
		store:      store,
		registry:   registry,
		dispatcher: NewDispatcher(registry, gateway),
		gateway:    gateway,
		directory:  room.NewDirectory(creds, endpoints, opts.HTTPClient, opts.File.HTTPTimeout),
		images:     NewImageLoader(store, gateway),
	}
}

// NewClientFromConfig 按 clientConfig 创建聊天会话
func NewClientFromConfig(cfg *config.ClientConfig) *Client {
	return NewClient(
		session.NewCredentials(cfg.UserId, cfg.Token),
		session.NewEndpoints(cfg.ApiUrl, cfg.WsUrl),
		OptionsFromConfig(cfg),
	)
}

// Credentials 当前用户凭证，可在运行时修改
func (c *Client) Credentials() *session.Credentials { return c.creds }

// Endpoints 服务地址，运行时修改只影响之后的连接和请求
func (c *Client) Endpoints() *session.Endpoints { return c.endpoints }

// ConfigureURLs 运行时修改服务地址
func (c *Client) ConfigureURLs(apiBase, wsBase string) {
	zap.L().Info("配置服务地址", zap.String("api", apiBase), zap.String("ws", wsBase))
	c.endpoints.Configure(apiBase, wsBase)
}

// OpenChat 获取与目标用户的聊天室并建立连接
// 获取失败时不会建立连接
func (c *Client) OpenChat(ctx context.Context, targetUserID string) (string, error) {
	chatID, err := c.directory.GetChatRoom(ctx, targetUserID)
	if err != nil {
		return "", err
	}
	c.registry.Connect(chatID)
	return chatID, nil
}

// Connect 为已知的聊天室建立连接
func (c *Client) Connect(chatID string) { c.registry.Connect(chatID) }

// IsOpen 聊天室连接是否已打开
func (c *Client) IsOpen(chatID string) bool { return c.registry.IsOpen(chatID) }

// Subscribe 订阅聊天室消息流，使用完后调用 Unsubscribe
func (c *Client) Subscribe(chatID string) *Subscription { return c.store.Subscribe(chatID) }

// Unsubscribe 取消订阅
func (c *Client) Unsubscribe(sub *Subscription) { c.store.Unsubscribe(sub) }

// Messages 聊天室当前的有序消息列表
func (c *Client) Messages(chatID string) []model.ChatMessage { return c.store.Snapshot(chatID) }

// Watch 订阅聊天室，图片消息下载完成后带上 LocalURL
func (c *Client) Watch(ctx context.Context, chatID string) <-chan []model.ChatMessage {
	return c.images.Watch(ctx, chatID)
}

// Send 发送一条多段消息
func (c *Client) Send(ctx context.Context, chatID string, parts ...Part) (string, error) {
	return c.dispatcher.Dispatch(ctx, chatID, parts)
}

// Fetch 下载附件，结果按聊天室缓存
func (c *Client) Fetch(ctx context.Context, chatID, ref string) (*file.LocalFile, error) {
	return c.gateway.Fetch(ctx, chatID, ref)
}

// CloseRoom 关闭单个聊天室：连接、消息流、附件缓存
func (c *Client) CloseRoom(chatID string) {
	c.registry.Close(chatID)
	c.store.Discard(chatID)
	c.gateway.Clear(chatID)
}

// DisconnectAll 关闭所有聊天室并清空所有缓存
func (c *Client) DisconnectAll() {
	zap.L().Info("断开所有 WebSocket 连接")
	c.registry.DisconnectAll()
	c.gateway.ClearAll()
}
