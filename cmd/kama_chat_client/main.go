// kama_chat_client 命令行聊天客户端，用于对着 relay 联调会话层
package main

func main() {
	Execute()
}
