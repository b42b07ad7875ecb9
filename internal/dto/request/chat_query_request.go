package request

// WsConnectRequest WebSocket 连接查询参数
type WsConnectRequest struct {
	ChatId string `form:"chatId" binding:"required"`
	UserId string `form:"userId" binding:"required"`
	Token  string `form:"token"`
}

// ChatIdRequest 上传与下载接口的查询参数
type ChatIdRequest struct {
	ChatId string `form:"chatId" binding:"required"`
}
