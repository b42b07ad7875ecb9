// Package chat 实现了聊天客户端的核心会话层
// order.go
// 核心职责：入站消息的去重与排序
// 纯函数，不持有状态；每个聊天室的入站消息由唯一的读协程串行调用 Merge
package chat

import (
	"sort"

	"kama_chat_client/internal/model"
)

// Less 全序比较：createdAt 升序，其次 messageId 字典序，最后 sequence 数值序
func Less(a, b model.ChatMessage) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	if a.MessageID != b.MessageID {
		return a.MessageID < b.MessageID
	}
	return a.Sequence < b.Sequence
}

// Sort 原地排序
func Sort(list []model.ChatMessage) {
	sort.SliceStable(list, func(i, j int) bool { return Less(list[i], list[j]) })
}

// Contains 列表中是否已有相同去重键的消息
func Contains(list []model.ChatMessage, key model.Key) bool {
	for i := range list {
		if list[i].Key() == key {
			return true
		}
	}
	return false
}

// Merge 将一条入站消息并入有序列表
// 重复消息返回原列表和 false；否则返回一个新的有序切片，原列表不会被修改
func Merge(current []model.ChatMessage, incoming model.ChatMessage) ([]model.ChatMessage, bool) {
	if Contains(current, incoming.Key()) {
		return current, false
	}
	// 找到第一个比 incoming 大的位置，结果与整体重排一致
	idx := sort.Search(len(current), func(i int) bool { return Less(incoming, current[i]) })

	next := make([]model.ChatMessage, 0, len(current)+1)
	next = append(next, current[:idx]...)
	next = append(next, incoming)
	next = append(next, current[idx:]...)
	return next, true
}
