package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"support-rag/internal/models"
	"support-rag/internal/rag"
)

func NewChatCmd(st *state) *cobra.Command {
	var sessionID, userID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat session on the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, st.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			svc, err := a.chatService(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Type your question, or 'exit' to quit.")
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "> ")
				if !scanner.Scan() {
					break
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "exit" || line == "quit" {
					break
				}
				if line == "" {
					continue
				}
				if err := rag.ValidateMessage(line, st.cfg.Server.MaxMessageLength); err != nil {
					fmt.Fprintf(out, "error: %v\n", err)
					continue
				}

				resp, err := svc.Chat(ctx, models.ChatRequest{Message: line, SessionID: sessionID, UserID: userID})
				if err != nil {
					log.Error().Err(err).Str("code", models.ErrorCode(err)).Msg("Chat turn failed")
					fmt.Fprintf(out, "error: %s\n", models.ErrorCode(err))
					continue
				}
				sessionID = resp.SessionID
				printResponse(out, resp)
			}
			return scanner.Err()
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Resume an existing session")
	cmd.Flags().StringVar(&userID, "user", "", "User id attached to a new session")
	return cmd
}
