package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"kama_chat_client/pkg/util/jwt"
)

func newTokenCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "用 jwtConfig.secret 为用户签发令牌，与 relay 使用同一份配置",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig()
			if err != nil {
				return err
			}
			jwt.Init(conf.JWTConfig.Secret, conf.JWTConfig.AccessTokenExpiry)
			token, err := jwt.GenerateAccessToken(userID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "用户 ID")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
