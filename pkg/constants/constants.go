package constants

import "time"

const (
	CHANNEL_SIZE       = 100              // 单连接写通道大小
	FILE_MAX_SIZE      = 32 << 20         // 上传表单内存上限
	HANDSHAKE_TIMEOUT  = 10 * time.Second // WebSocket 握手超时
	WRITE_WAIT         = 10 * time.Second // 单帧写超时
	HEARTBEAT_INTERVAL = 25 * time.Second // relay 心跳间隔
	ROOM_KEY_PREFIX    = "chat_room_"     // Redis 中聊天室映射前缀
)
