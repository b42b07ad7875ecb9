// Package chat 实现了聊天客户端的核心会话层
// dispatch.go
// 核心职责：多段消息的发送
// 一次发送的所有段共享一个 messageId，sequence 为该段在原始列表中的下标
// 附件先整批上传，上传失败则整条消息都不发送；上传成功后逐段发送，不回滚
package chat

import (
	"context"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"kama_chat_client/internal/model"
	"kama_chat_client/internal/service/file"
	"kama_chat_client/pkg/errorx"
)

// Part 待发送的一段
type Part struct {
	Type    model.MessageType
	Content string          // 文本段内容
	File    file.Attachment // 文件段附件
}

// TextPart 文本段
func TextPart(content string) Part {
	return Part{Type: model.TypeText, Content: content}
}

// FilePart 文件段
func FilePart(name string, content io.Reader) Part {
	return Part{Type: model.TypeFile, File: file.Attachment{Name: name, Content: content}}
}

// Uploader 附件上传
type Uploader interface {
	Upload(ctx context.Context, chatID string, files []file.Attachment) ([]file.UploadedFile, error)
}

// Sender 单条消息发送
type Sender interface {
	Send(chatID string, out model.OutboundMessage)
}

// Dispatcher 多段消息派发
type Dispatcher struct {
	sender   Sender
	uploader Uploader
	newID    func() string
}

// NewDispatcher 创建派发器
func NewDispatcher(sender Sender, uploader Uploader) *Dispatcher {
	return &Dispatcher{sender: sender, uploader: uploader, newID: uuid.NewString}
}

// Dispatch 发送一条多段消息，返回共享的 messageId
// 只有参数错误和上传失败会返回错误；各段的发送是尽力而为，连接未打开时静默丢弃
func (d *Dispatcher) Dispatch(ctx context.Context, chatID string, parts []Part) (string, error) {
	if err := validateParts(parts); err != nil {
		return "", err
	}
	messageID := d.newID()

	files := lo.FilterMap(parts, func(p Part, _ int) (file.Attachment, bool) {
		return p.File, p.Type == model.TypeFile
	})
	var uploaded []file.UploadedFile
	if len(files) > 0 {
		var err error
		uploaded, err = d.uploader.Upload(ctx, chatID, files)
		if err != nil {
			zap.L().Error("附件上传失败，消息未发送", zap.String("chatId", chatID), zap.Error(err))
			return "", errorx.Wrap(err, errorx.CodeUploadFailed, "附件上传失败")
		}
		if len(uploaded) != len(files) {
			return "", errorx.Newf(errorx.CodeUploadFailed, "上传结果数量不符: 提交 %d 个，返回 %d 个", len(files), len(uploaded))
		}
	}

	next := 0
	for i, p := range parts {
		out := model.OutboundMessage{MessageID: messageID, Sequence: i}
		switch p.Type {
		case model.TypeText:
			out.Body = model.TextBody{Content: p.Content}
		case model.TypeFile:
			u := uploaded[next]
			next++
			out.Body = model.FileBody{URL: u.URL, Name: u.Name}
		}
		d.sender.Send(chatID, out)
	}
	return messageID, nil
}

func validateParts(parts []Part) error {
	if len(parts) == 0 {
		return errorx.New(errorx.CodeInvalidParam, "消息内容为空")
	}
	for i, p := range parts {
		switch p.Type {
		case model.TypeText:
			if strings.TrimSpace(p.Content) == "" {
				return errorx.Newf(errorx.CodeInvalidParam, "第 %d 段文本为空", i)
			}
		case model.TypeFile:
			if p.File.Content == nil {
				return errorx.Newf(errorx.CodeInvalidParam, "第 %d 段附件为空", i)
			}
		default:
			return errorx.Newf(errorx.CodeInvalidParam, "第 %d 段类型 %q 无法发送", i, p.Type)
		}
	}
	return nil
}
