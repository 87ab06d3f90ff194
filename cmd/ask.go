package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"support-rag/internal/helper"
	"support-rag/internal/models"
	"support-rag/internal/rag"
)

func NewAskCmd(st *state) *cobra.Command {
	var sessionID, userID string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a single question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			message := strings.Join(args, " ")
			if err := rag.ValidateMessage(message, st.cfg.Server.MaxMessageLength); err != nil {
				return err
			}

			a, err := newApp(ctx, st.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			svc, err := a.chatService(ctx)
			if err != nil {
				return err
			}
			resp, err := svc.Chat(ctx, models.ChatRequest{Message: message, SessionID: sessionID, UserID: userID})
			if err != nil {
				return fmt.Errorf("%s: %w", models.ErrorCode(err), err)
			}

			if asJSON {
				helper.PrettyPrint(cmd.OutOrStdout(), resp)
				return nil
			}
			printResponse(cmd.OutOrStdout(), resp)
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Continue an existing session")
	cmd.Flags().StringVar(&userID, "user", "", "User id attached to a new session")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full response as JSON")
	return cmd
}

func printResponse(w io.Writer, resp *models.ChatResponse) {
	fmt.Fprintf(w, "%s\n\n", resp.Response)
	fmt.Fprintf(w, "confidence: %.2f  session: %s\n", resp.Confidence, resp.SessionID)
	if resp.Escalated {
		fmt.Fprintln(w, "escalated: a human agent will follow up")
	}
	for i, f := range resp.RelevantFAQs {
		fmt.Fprintf(w, "  %d. %s (%.3f)\n", i+1, f.Question, f.Score)
	}
}
