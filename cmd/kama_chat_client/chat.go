package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"kama_chat_client/internal/model"
	"kama_chat_client/internal/service/chat"
)

func newChatCmd() *cobra.Command {
	var target, userID, token string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "与指定用户聊天，逐行读取标准输入发送；/file <路径> 发送附件",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig()
			if err != nil {
				return err
			}
			cc := conf.ClientConfig
			if userID != "" {
				cc.UserId = userID
			}
			if token != "" {
				cc.Token = token
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			client := chat.NewClientFromConfig(&cc)
			defer client.DisconnectAll()

			chatID, err := client.OpenChat(ctx, target)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "已进入聊天室 %s\n", chatID)

			go printMessages(cmd.OutOrStdout(), client.Watch(ctx, chatID))
			return sendLines(ctx, client, chatID, cmd.InOrStdin())
		},
	}
	cmd.Flags().StringVarP(&target, "target", "t", "", "对方用户 ID")
	cmd.Flags().StringVarP(&userID, "user", "u", "", "当前用户 ID，覆盖配置文件")
	cmd.Flags().StringVar(&token, "token", "", "当前用户令牌，覆盖配置文件")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

// printMessages 只打印没见过的消息，附件下载完成后再打印一次本地地址
func printMessages(w io.Writer, updates <-chan []model.ChatMessage) {
	seen := make(map[model.Key]bool)
	for list := range updates {
		for _, m := range list {
			k := m.Key()
			loaded := m.LocalURL != ""
			if printed, ok := seen[k]; ok && (printed || !loaded) {
				continue
			}
			seen[k] = loaded
			ts := m.CreatedAt.Local().Format("15:04:05")
			if text, ok := m.Text(); ok {
				fmt.Fprintf(w, "[%s] %s: %s\n", ts, m.SenderID, text)
				seen[k] = true
				continue
			}
			if f, ok := m.File(); ok {
				if loaded {
					fmt.Fprintf(w, "[%s] %s: [附件] %s -> %s\n", ts, m.SenderID, f.Name, m.LocalURL)
				} else {
					fmt.Fprintf(w, "[%s] %s: [附件] %s\n", ts, m.SenderID, f.Name)
				}
			}
		}
	}
}

func sendLines(ctx context.Context, client *chat.Client, chatID string, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if err := sendLine(ctx, client, chatID, line); err != nil {
				fmt.Fprintf(os.Stderr, "发送失败: %v\n", err)
			}
		}
	}
}

func sendLine(ctx context.Context, client *chat.Client, chatID, line string) error {
	path, isFile := strings.CutPrefix(line, "/file ")
	if !isFile {
		_, err := client.Send(ctx, chatID, chat.TextPart(line))
		return err
	}
	f, err := os.Open(strings.TrimSpace(path))
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = client.Send(ctx, chatID, chat.FilePart(filepath.Base(f.Name()), f))
	return err
}
