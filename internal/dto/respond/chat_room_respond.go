package respond

// ChatRoomRespond 获取聊天室响应
type ChatRoomRespond struct {
	Id string `json:"id"`
}

// UploadFileRespond 单个附件的上传结果，按提交顺序返回
type UploadFileRespond struct {
	FileUrl string `json:"fileUrl"`
}
