package request

import (
	"sort"
	"strings"
)

// GetChatRoomRequest 获取聊天室请求
// 使用位置:
//   - internal/handler/chat_room_handler.go: GetChatRoomHandler
// participant_pair 规则由 handler.RegisterValidations 注册
type GetChatRoomRequest struct {
	ParticipantIds []string `json:"participantIds" binding:"required,participant_pair"`
}

// PairKey 参与者排序后拼接，与参与者顺序无关
func (r GetChatRoomRequest) PairKey() string {
	ids := append([]string(nil), r.ParticipantIds...)
	sort.Strings(ids)
	return strings.Join(ids, ":")
}
