package model

import (
	"encoding/json"
	"time"

	"kama_chat_client/pkg/errorx"
)

// TimeLayout 发送端写出的 createdAt 格式（ISO-8601，毫秒，UTC）
const TimeLayout = "2006-01-02T15:04:05.000Z"

// 解码时依次尝试的时间格式
var parseLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// Frame 入站帧：ChatMessage 或 Heartbeat
type Frame interface {
	frame()
}

// Heartbeat 保活帧，不携带载荷，永远不会进入消息流
type Heartbeat struct{}

func (Heartbeat) frame()   {}
func (ChatMessage) frame() {}

// wireMessage 线上 JSON 结构
type wireMessage struct {
	ChatID    string      `json:"chatId"`
	MessageID string      `json:"messageId"`
	SenderID  string      `json:"senderId"`
	Type      MessageType `json:"type"`
	Content   *string     `json:"content,omitempty"`
	FileURL   string      `json:"fileUrl,omitempty"`
	FileName  string      `json:"fileName,omitempty"`
	Sequence  *int        `json:"sequence,omitempty"`
	CreatedAt string      `json:"createdAt"`
}

// Encode 序列化为线上 JSON，LocalURL 不会被写出
func Encode(m ChatMessage) ([]byte, error) {
	seq := m.Sequence
	w := wireMessage{
		ChatID:    m.ChatID,
		MessageID: m.MessageID,
		SenderID:  m.SenderID,
		Sequence:  &seq,
		CreatedAt: m.CreatedAt.UTC().Format(TimeLayout),
	}
	switch b := m.Body.(type) {
	case TextBody:
		content := b.Content
		w.Type = TypeText
		w.Content = &content
	case FileBody:
		w.Type = TypeFile
		w.FileURL = b.URL
		w.FileName = b.Name
	default:
		return nil, errorx.Newf(errorx.CodeProtocol, "message %s has no body", m.MessageID)
	}
	return json.Marshal(w)
}

// EncodeHeartbeat 序列化心跳帧
func EncodeHeartbeat() []byte {
	return []byte(`{"type":"heartbeat"}`)
}

// Decode 解析入站帧
// 心跳帧只看 type，其余字段一律忽略；未知类型、文件缺少 fileUrl、时间无法解析都视为协议错误
func Decode(data []byte) (Frame, error) {
	// 先只读 type，心跳帧的其他字段类型不对也不影响识别
	var head struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, errorx.Wrap(err, errorx.CodeProtocol, "invalid chat frame")
	}
	if head.Type == TypeHeartbeat {
		return Heartbeat{}, nil
	}

	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, errorx.Wrap(err, errorx.CodeProtocol, "invalid chat frame")
	}

	var body Body
	switch w.Type {
	case TypeText:
		b := TextBody{}
		if w.Content != nil {
			b.Content = *w.Content
		}
		body = b
	case TypeFile:
		if w.FileURL == "" {
			return nil, errorx.Newf(errorx.CodeProtocol, "file message %s without fileUrl", w.MessageID)
		}
		body = FileBody{URL: w.FileURL, Name: w.FileName}
	default:
		return nil, errorx.Newf(errorx.CodeProtocol, "unknown message type %q", w.Type)
	}

	createdAt, err := parseTime(w.CreatedAt)
	if err != nil {
		return nil, errorx.Wrapf(err, errorx.CodeProtocol, "message %s createdAt", w.MessageID)
	}

	m := ChatMessage{
		ChatID:    w.ChatID,
		MessageID: w.MessageID,
		SenderID:  w.SenderID,
		CreatedAt: createdAt,
		Body:      body,
	}
	if w.Sequence != nil {
		m.Sequence = *w.Sequence
	}
	return m, nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	var firstErr error
	for _, layout := range parseLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}
