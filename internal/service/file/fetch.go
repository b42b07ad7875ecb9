package file

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"kama_chat_client/internal/service/session"
	"kama_chat_client/pkg/constants"
	"kama_chat_client/pkg/errorx"
)

// LocalFile 已下载到本地的附件
type LocalFile struct {
	ChatID string
	Ref    string // 消息中的 fileUrl
	Path   string // 落盘路径
	MIME   string // 按内容探测的类型
	Size   int64
}

// URI 本地文件的 file:// 地址，写入 ChatMessage.LocalURL
func (f *LocalFile) URI() string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(f.Path)}).String()
}

// Fetch 获取附件内容，优先使用缓存
// 同一聊天室同一引用的并发请求只访问远端一次；下载期间缓存被清空时，结果照常返回但不入缓存
// 共享的下载不随任何一个调用方的 ctx 取消，只受 HTTP 超时约束；ctx 结束时调用方自己停止等待
func (g *Gateway) Fetch(ctx context.Context, chatID, ref string) (*LocalFile, error) {
	if f, ok := g.Cached(chatID, ref); ok {
		return f, nil
	}
	rc := g.room(chatID)
	dlCtx := context.WithoutCancel(ctx)

	ch := g.group.DoChan(chatID+"\x00"+ref, func() (any, error) {
		if f, ok := g.Cached(chatID, ref); ok {
			return f, nil
		}
		f, err := g.download(dlCtx, chatID, ref)
		if err != nil {
			return nil, err
		}
		if !g.store(chatID, rc, f) {
			zap.L().Info("缓存已清空，下载结果不入缓存", zap.String("chatId", chatID), zap.String("ref", ref))
		}
		return f, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*LocalFile), nil
	case <-ctx.Done():
		return nil, errorx.Wrapf(ctx.Err(), errorx.CodeFetchFailed, "下载文件 %s 失败", ref)
	}
}

func (g *Gateway) download(ctx context.Context, chatID, ref string) (*LocalFile, error) {
	base := g.endpoints.APIBase()
	if base == "" {
		return nil, errorx.Wrap(errorx.ErrNotConfigured, errorx.CodeFetchFailed, "下载文件失败")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, FileURL(base, chatID, ref), nil)
	if err != nil {
		return nil, errorx.Wrapf(err, errorx.CodeFetchFailed, "下载文件 %s 失败", ref)
	}
	session.Authorize(req, g.creds)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, errorx.Wrapf(err, errorx.CodeFetchFailed, "下载文件 %s 失败", ref)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		code := errorx.CodeFetchFailed
		if resp.StatusCode == http.StatusNotFound {
			code = errorx.CodeNotFound
		}
		return nil, errorx.Newf(code, "下载文件 %s 失败: status %d", ref, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, constants.FILE_MAX_SIZE+1))
	if err != nil {
		return nil, errorx.Wrapf(err, errorx.CodeFetchFailed, "读取文件 %s 失败", ref)
	}
	if len(data) > constants.FILE_MAX_SIZE {
		return nil, errorx.Newf(errorx.CodeFetchFailed, "文件 %s 超过大小限制", ref)
	}

	mt := mimetype.Detect(data)
	dir, err := g.ensureRoomDir(chatID)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.CodeCacheError, "创建缓存目录失败")
	}
	path := filepath.Join(dir, uuid.NewString()+mt.Extension())
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, errorx.Wrap(err, errorx.CodeCacheError, "写入缓存文件失败")
	}

	return &LocalFile{
		ChatID: chatID,
		Ref:    ref,
		Path:   path,
		MIME:   mt.String(),
		Size:   int64(len(data)),
	}, nil
}
