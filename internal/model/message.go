// Package model 定义聊天消息模型
// 消息体是带标签的变体：文本或文件；心跳帧不是消息，只在解码阶段出现
package model

import "time"

// MessageType 线上消息类型
type MessageType string

const (
	TypeText      MessageType = "text"
	TypeFile      MessageType = "file"
	TypeHeartbeat MessageType = "heartbeat"
)

// Body 消息体，只有 TextBody 和 FileBody 两种实现
type Body interface {
	Type() MessageType
	// identity 去重键中的载荷部分：文件取 URL，文本取内容
	identity() string
}

// TextBody 文本消息体
type TextBody struct {
	Content string
}

func (TextBody) Type() MessageType   { return TypeText }
func (b TextBody) identity() string { return b.Content }

// FileBody 文件消息体
// URL 是服务端分配的不透明引用，Name 是原始展示文件名
type FileBody struct {
	URL  string
	Name string
}

func (FileBody) Type() MessageType   { return TypeFile }
func (b FileBody) identity() string { return b.URL }

// ChatMessage 聊天消息
type ChatMessage struct {
	ChatID    string    // 聊天室 ID
	MessageID string    // 同一次多段发送共享的关联 ID
	SenderID  string    // 发送者 ID，由发送端在发送时填写
	Sequence  int       // 在多段发送中的下标，从 0 开始
	CreatedAt time.Time // 发送端派发时间
	Body      Body

	// LocalURL 文件下载成功后指向本地内容，只存在于本进程，永不上线
	LocalURL string `json:"-"`
}

// Type 返回消息体类型
func (m ChatMessage) Type() MessageType {
	if m.Body == nil {
		return ""
	}
	return m.Body.Type()
}

// Text 返回文本内容，非文本消息返回 false
func (m ChatMessage) Text() (string, bool) {
	b, ok := m.Body.(TextBody)
	return b.Content, ok
}

// File 返回文件消息体，非文件消息返回 false
func (m ChatMessage) File() (FileBody, bool) {
	b, ok := m.Body.(FileBody)
	return b, ok
}

// Key 去重键 (messageId, sequence, type, payload-identity)
type Key struct {
	MessageID string
	Sequence  int
	Type      MessageType
	Payload   string
}

// Key 计算消息的去重键
func (m ChatMessage) Key() Key {
	k := Key{MessageID: m.MessageID, Sequence: m.Sequence, Type: m.Type()}
	if m.Body != nil {
		k.Payload = m.Body.identity()
	}
	return k
}

// OutboundMessage 调用方交给连接层发送的部分消息
// senderId、createdAt 由连接层填写；MessageID 为空时自动生成
type OutboundMessage struct {
	MessageID string
	Sequence  int
	Body      Body
}
