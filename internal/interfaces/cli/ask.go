package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coursebot/backend/internal/application/chat"
	"github.com/coursebot/backend/internal/domain/conversation"
)

func newAskCmd(a *app) *cobra.Command {
	var (
		identity       string
		persona        string
		conversationID string
	)
	cmd := &cobra.Command{
		Use:   "ask [text]",
		Short: "Ask the course assistant a question",
		Long: `Runs one chat turn against the assistant.
Counts against the daily chat limit of the given identity. The usage
token is kept in the data directory between runs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tk, err := a.services()
			if err != nil {
				return err
			}

			usageToken, err := a.readUsageToken()
			if err != nil {
				return err
			}
			res, askErr := tk.Chat.Ask(cmd.Context(), chat.AskRequest{
				Identity:       identity,
				ConversationID: conversationID,
				Persona:        persona,
				Text:           args[0],
				UsageToken:     usageToken,
			})
			if res != nil && res.UsageToken != "" {
				usageToken = res.UsageToken
				if err := a.writeUsageToken(usageToken); err != nil {
					return err
				}
			}
			if askErr != nil {
				return askErr
			}

			out := cmd.OutOrStdout()
			if reply, ok := lastAssistantTurn(res.Transcript); ok {
				fmt.Fprintln(out, reply)
			}
			fmt.Fprintf(out, "\nconversation: %s\n", res.ConversationID)
			if tk.Limiter != nil {
				remaining := tk.Limiter.Remaining(identity, usageToken, tk.Chat.Today())
				fmt.Fprintf(out, "chats left today: %d\n", remaining)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&identity, "identity", "i", defaultIdentity(), "identity the question is asked as")
	cmd.Flags().StringVarP(&persona, "persona", "p", "", "persona tag or model for a new conversation")
	cmd.Flags().StringVarP(&conversationID, "conversation", "c", "", "conversation to continue")
	return cmd
}

func defaultIdentity() string {
	if u := os.Getenv("USER"); u != "" {
		return "cli-" + u
	}
	return "cli"
}

func lastAssistantTurn(turns []conversation.Turn) (string, bool) {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == conversation.RoleAssistant {
			return turns[i].Content, true
		}
	}
	return "", false
}

func (a *app) readUsageToken() (string, error) {
	data, err := os.ReadFile(a.tokenPath)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read usage token: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (a *app) writeUsageToken(tok string) error {
	if err := os.MkdirAll(filepath.Dir(a.tokenPath), 0o700); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := os.WriteFile(a.tokenPath, []byte(tok+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to save usage token: %w", err)
	}
	return nil
}
