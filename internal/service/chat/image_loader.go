// Package chat 实现了聊天客户端的核心会话层
// image_loader.go
// 核心职责：图片消息的预加载视图
// 订阅聊天室的消息流，对文件名是图片的消息发起下载，下载完成后重新推送带 LocalURL 的列表
// 下载失败只记录日志，该消息不会再重试
package chat

import (
	"context"

	"go.uber.org/zap"

	"kama_chat_client/internal/model"
	"kama_chat_client/internal/service/file"
)

// Fetcher 带缓存的附件下载
type Fetcher interface {
	Fetch(ctx context.Context, chatID, ref string) (*file.LocalFile, error)
	Cached(chatID, ref string) (*file.LocalFile, bool)
}

// ImageLoader 图片预加载
type ImageLoader struct {
	store   *Store
	fetcher Fetcher
}

// NewImageLoader 创建图片预加载器
func NewImageLoader(store *Store, fetcher Fetcher) *ImageLoader {
	return &ImageLoader{store: store, fetcher: fetcher}
}

// Watch 订阅聊天室，推送填好 LocalURL 的列表
// ctx 结束或消息流完成时关闭通道；已发起的下载不会被取消
func (l *ImageLoader) Watch(ctx context.Context, chatID string) <-chan []model.ChatMessage {
	out := make(chan []model.ChatMessage)
	sub := l.store.Subscribe(chatID)

	go func() {
		defer close(out)
		defer l.store.Unsubscribe(sub)

		var (
			latest  []model.ChatMessage
			started = make(map[string]struct{})
			loaded  = make(chan struct{}, 1)
		)
		fetchCtx := context.WithoutCancel(ctx)

		emit := func() bool {
			select {
			case out <- l.decorate(chatID, latest):
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case list, ok := <-sub.C:
				if !ok {
					return
				}
				latest = list
				for _, ref := range l.pending(chatID, list, started) {
					started[ref] = struct{}{}
					go func(ref string) {
						if _, err := l.fetcher.Fetch(fetchCtx, chatID, ref); err != nil {
							zap.L().Warn("图片加载失败", zap.String("chatId", chatID), zap.String("ref", ref), zap.Error(err))
							return
						}
						select {
						case loaded <- struct{}{}:
						default:
						}
					}(ref)
				}
				if !emit() {
					return
				}
			case <-loaded:
				if !emit() {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// pending 需要下载且尚未发起下载的图片引用
func (l *ImageLoader) pending(chatID string, list []model.ChatMessage, started map[string]struct{}) []string {
	var refs []string
	for _, m := range list {
		f, ok := m.File()
		if !ok || !file.IsImage(f.Name) {
			continue
		}
		if _, ok := started[f.URL]; ok {
			continue
		}
		if _, ok := l.fetcher.Cached(chatID, f.URL); ok {
			continue
		}
		refs = append(refs, f.URL)
	}
	return refs
}

// decorate 返回新切片，已缓存的图片消息填上 LocalURL
func (l *ImageLoader) decorate(chatID string, list []model.ChatMessage) []model.ChatMessage {
	view := make([]model.ChatMessage, len(list))
	copy(view, list)
	for i := range view {
		f, ok := view[i].File()
		if !ok || !file.IsImage(f.Name) {
			continue
		}
		if local, ok := l.fetcher.Cached(chatID, f.URL); ok {
			view[i].LocalURL = local.URI()
		}
	}
	return view
}
